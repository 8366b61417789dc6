// Package mockapi is an in-memory stand-in for the back-office REST
// backend, built on gin. It serves any resource path generically:
//
//	GET    /{resource}         list
//	GET    /{resource}/{key}   one record
//	POST   /{resource}         create
//	PATCH  /{resource}/{key}   merge the body into the record
//	DELETE /{resource}/{key}   remove
//
// A key matches a record's id field, email, phone or username, which is
// how the real backend addresses members. PATCH on a sub-resource of a
// known collection ("user-list/bal-update/{key}") updates the parent
// collection's record.
//
// Failures can be injected per method and path to exercise error paths.
package mockapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/roach88/backoffice/internal/record"
)

// Call is one request the server received.
type Call struct {
	Method string         `json:"method"`
	Path   string         `json:"path"`
	Body   map[string]any `json:"body,omitempty"`
	Status int            `json:"status"`
}

// Server holds the collections.
//
// Thread-safety: all methods are safe for concurrent use.
type Server struct {
	mu          sync.Mutex
	collections map[string][]record.Record
	idFields    map[string]string
	failures    map[string]int
	calls       []Call
	newID       func() string
	logger      *slog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithIDField sets the id field of a resource (default "_id").
func WithIDField(resource, field string) Option {
	return func(s *Server) { s.idFields[strings.Trim(resource, "/")] = field }
}

// WithIDGenerator overrides how created records get their id.
func WithIDGenerator(gen func() string) Option {
	return func(s *Server) { s.newID = gen }
}

// WithLogger sets the request logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// New returns an empty server.
func New(opts ...Option) *Server {
	s := &Server{
		collections: make(map[string][]record.Record),
		idFields:    make(map[string]string),
		failures:    make(map[string]int),
		newID:       uuid.NewString,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Seed appends records to resource, creating it if needed.
func (s *Server) Seed(resource string, recs ...record.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	resource = strings.Trim(resource, "/")
	for _, r := range recs {
		s.collections[resource] = append(s.collections[resource], r.Clone())
	}
	if _, ok := s.collections[resource]; !ok {
		s.collections[resource] = []record.Record{}
	}
}

// LoadSeed reads a JSON object mapping resource paths to record arrays.
func (s *Server) LoadSeed(r io.Reader) error {
	var raw map[string]json.RawMessage
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return fmt.Errorf("decode seed: %w", err)
	}
	for resource, msg := range raw {
		recs, err := record.Decode(bytes.NewReader(msg))
		if err != nil {
			return fmt.Errorf("seed %s: %w", resource, err)
		}
		s.Seed(resource, recs...)
	}
	return nil
}

// Fail makes every request with method on path answer status until
// Recover is called. path is relative to the server root.
func (s *Server) Fail(method, path string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[failureKey(method, path)] = status
}

// Recover removes all injected failures.
func (s *Server) Recover() {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.failures)
}

// Records returns a copy of a collection.
func (s *Server) Records(resource string) []record.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	src := s.collections[strings.Trim(resource, "/")]
	out := make([]record.Record, len(src))
	for i, r := range src {
		out[i] = r.Clone()
	}
	return out
}

// Record returns the record of resource matching key.
func (s *Server) Record(resource, key string) (record.Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	resource = strings.Trim(resource, "/")
	i := s.indexLocked(resource, key)
	if i < 0 {
		return nil, false
	}
	return s.collections[resource][i].Clone(), true
}

// Calls returns the requests received so far.
func (s *Server) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.calls)
}

// MutatingCalls counts POST, PATCH and DELETE requests received.
func (s *Server) MutatingCalls() int {
	n := 0
	for _, c := range s.Calls() {
		if c.Method != http.MethodGet {
			n++
		}
	}
	return n
}

// Handler returns the gin engine serving the collections.
func (s *Server) Handler() http.Handler {
	r := gin.New()
	r.Use(gin.Recovery(), s.logRequests())
	r.GET("/*path", s.get)
	r.POST("/*path", s.create)
	r.PATCH("/*path", s.update)
	r.DELETE("/*path", s.remove)
	return r
}

func (s *Server) logRequests() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		s.logger.Debug("mock request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
		)
	}
}

// begin records the call and applies any injected failure. It returns
// false when the request was answered already.
func (s *Server) begin(c *gin.Context) (string, map[string]any, bool) {
	path := strings.Trim(c.Param("path"), "/")

	var body map[string]any
	if c.Request.Method != http.MethodGet && c.Request.Method != http.MethodDelete {
		data, err := c.GetRawData()
		if err == nil && len(data) > 0 {
			rec, err := record.DecodeOne(data)
			if err != nil {
				s.track(c.Request.Method, path, nil, http.StatusBadRequest)
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return "", nil, false
			}
			body = rec
		}
	}

	s.mu.Lock()
	status, failing := s.failures[failureKey(c.Request.Method, path)]
	s.mu.Unlock()
	if failing {
		s.track(c.Request.Method, path, body, status)
		c.JSON(status, gin.H{"error": "injected failure"})
		return "", nil, false
	}
	return path, body, true
}

func (s *Server) get(c *gin.Context) {
	path, _, ok := s.begin(c)
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if recs, ok := s.collections[path]; ok {
		s.recordLocked(http.MethodGet, path, nil, http.StatusOK)
		c.JSON(http.StatusOK, recs)
		return
	}
	resource, key := split(path)
	if i := s.indexLocked(resource, key); i >= 0 {
		s.recordLocked(http.MethodGet, path, nil, http.StatusOK)
		c.JSON(http.StatusOK, s.collections[resource][i])
		return
	}
	s.recordLocked(http.MethodGet, path, nil, http.StatusNotFound)
	c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
}

func (s *Server) create(c *gin.Context) {
	path, body, ok := s.begin(c)
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := record.Record(body)
	if rec == nil {
		rec = record.Record{}
	}
	idField := s.idFieldLocked(path)
	id := rec.ID(idField)
	if id == "" {
		id = s.newID()
		rec[idField] = id
	}
	s.collections[path] = append(s.collections[path], rec)
	s.recordLocked(http.MethodPost, path, body, http.StatusCreated)
	c.JSON(http.StatusCreated, gin.H{"acknowledged": true, "insertedId": id})
}

func (s *Server) update(c *gin.Context) {
	path, body, ok := s.begin(c)
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	resource, key := split(path)
	target := s.ownerLocked(resource)
	i := s.indexLocked(target, key)
	if i < 0 {
		s.recordLocked(http.MethodPatch, path, body, http.StatusNotFound)
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	idField := s.idFieldLocked(target)
	delta := make(map[string]any, len(body))
	for k, v := range body {
		if k != idField {
			delta[k] = v
		}
	}
	s.collections[target][i] = s.collections[target][i].Merge(delta)
	s.recordLocked(http.MethodPatch, path, body, http.StatusOK)
	c.JSON(http.StatusOK, gin.H{"acknowledged": true, "modifiedCount": 1})
}

func (s *Server) remove(c *gin.Context) {
	path, _, ok := s.begin(c)
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	resource, key := split(path)
	i := s.indexLocked(resource, key)
	if i < 0 {
		s.recordLocked(http.MethodDelete, path, nil, http.StatusNotFound)
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	s.collections[resource] = slices.Delete(s.collections[resource], i, i+1)
	s.recordLocked(http.MethodDelete, path, nil, http.StatusOK)
	c.JSON(http.StatusOK, gin.H{"acknowledged": true, "deletedCount": 1})
}

// ownerLocked maps a sub-resource like "user-list/bal-update" to the
// nearest known collection.
func (s *Server) ownerLocked(resource string) string {
	r := resource
	for {
		if _, ok := s.collections[r]; ok {
			return r
		}
		i := strings.LastIndex(r, "/")
		if i < 0 {
			return resource
		}
		r = r[:i]
	}
}

func (s *Server) indexLocked(resource, key string) int {
	if key == "" {
		return -1
	}
	recs := s.collections[resource]
	idField := s.idFieldLocked(resource)
	if i := record.IndexOf(recs, idField, key); i >= 0 {
		return i
	}
	for _, field := range []string{"email", "phone", "username"} {
		if i := slices.IndexFunc(recs, func(r record.Record) bool {
			v, ok := r.Text(field)
			return ok && v == key
		}); i >= 0 {
			return i
		}
	}
	return -1
}

func (s *Server) idFieldLocked(resource string) string {
	if f, ok := s.idFields[resource]; ok {
		return f
	}
	return record.DefaultIDField
}

func (s *Server) track(method, path string, body map[string]any, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recordLocked(method, path, body, status)
}

func (s *Server) recordLocked(method, path string, body map[string]any, status int) {
	s.calls = append(s.calls, Call{Method: method, Path: path, Body: body, Status: status})
}

func split(path string) (string, string) {
	i := strings.LastIndex(path, "/")
	if i < 0 {
		return path, ""
	}
	return path[:i], path[i+1:]
}

func failureKey(method, path string) string {
	return strings.ToUpper(method) + " " + strings.Trim(path, "/")
}
