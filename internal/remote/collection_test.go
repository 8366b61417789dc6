package remote

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingServer answers every request with the given status and body and
// remembers the last request it saw.
type recordingServer struct {
	*httptest.Server
	calls atomic.Int32

	mu   sync.Mutex
	last seenRequest
}

type seenRequest struct {
	Method      string
	Path        string
	ContentType string
	Body        []byte
}

func (rs *recordingServer) seen() seenRequest {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return rs.last
}

func newRecordingServer(t *testing.T, status int, body string) *recordingServer {
	t.Helper()
	rs := &recordingServer{}
	rs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqBody, _ := io.ReadAll(r.Body)
		rs.mu.Lock()
		rs.last = seenRequest{
			Method:      r.Method,
			Path:        r.URL.Path,
			ContentType: r.Header.Get("Content-Type"),
			Body:        reqBody,
		}
		rs.mu.Unlock()
		rs.calls.Add(1)
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(rs.Close)
	return rs
}

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	c, err := New(baseURL)
	require.NoError(t, err)
	return c
}

func TestNew_RejectsBadBaseURL(t *testing.T) {
	for _, raw := range []string{"", "ftp://host", "not a url", "http://"} {
		_, err := New(raw)
		assert.Error(t, err, "base url %q", raw)
	}
}

func TestList_Success(t *testing.T) {
	srv := newRecordingServer(t, http.StatusOK, `[{"_id":"1","username":"alice"},{"_id":"2","username":"bob"}]`)
	col := newTestClient(t, srv.URL).Collection("deposit", "_id")

	recs, err := col.List(context.Background())
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "bob", recs[1]["username"])
	assert.Equal(t, http.MethodGet, srv.seen().Method)
	assert.Equal(t, "/deposit", srv.seen().Path)
	assert.EqualValues(t, 1, srv.calls.Load())
}

func TestList_FailureCauses(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		cause  Cause
	}{
		{"http 500", http.StatusInternalServerError, `oops`, CauseHTTP},
		{"http 404", http.StatusNotFound, `[]`, CauseHTTP},
		{"bad json", http.StatusOK, `{not json`, CauseParse},
		{"object not array", http.StatusOK, `{"_id":"1"}`, CauseParse},
		{"duplicate ids", http.StatusOK, `[{"_id":"1"},{"_id":"1"}]`, CauseParse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newRecordingServer(t, tt.status, tt.body)
			col := newTestClient(t, srv.URL).Collection("deposit", "_id")

			_, err := col.List(context.Background())
			require.Error(t, err)
			assert.True(t, IsCause(err, tt.cause), "got %v", err)
			assert.EqualValues(t, 1, srv.calls.Load(), "no retry")
		})
	}
}

func TestList_NetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := newTestClient(t, url).Collection("deposit", "_id").List(context.Background())
	require.Error(t, err)
	assert.True(t, IsCause(err, CauseNetwork))
}

func TestUpdate_SendsJSONPatch(t *testing.T) {
	srv := newRecordingServer(t, http.StatusOK, `{"acknowledged":true,"modifiedCount":1}`)
	col := newTestClient(t, srv.URL).Collection("withdraw", "id")

	ack, err := col.Update(context.Background(), "42", map[string]any{"status": "Approved"})
	require.NoError(t, err)
	assert.Equal(t, true, ack["acknowledged"])

	assert.Equal(t, http.MethodPatch, srv.seen().Method)
	assert.Equal(t, "/withdraw/42", srv.seen().Path)
	assert.Equal(t, "application/json", srv.seen().ContentType)

	var sent map[string]any
	require.NoError(t, json.Unmarshal(srv.seen().Body, &sent))
	assert.Equal(t, "Approved", sent["status"])
}

func TestUpdate_EmptyKeyNeverCallsBackend(t *testing.T) {
	srv := newRecordingServer(t, http.StatusOK, `{}`)
	col := newTestClient(t, srv.URL).Collection("withdraw", "id")

	_, err := col.Update(context.Background(), "", map[string]any{"status": "x"})
	require.Error(t, err)
	assert.EqualValues(t, 0, srv.calls.Load())
}

func TestCreate_EmptyResponseBody(t *testing.T) {
	srv := newRecordingServer(t, http.StatusCreated, ``)
	col := newTestClient(t, srv.URL).Collection("promo-code", "_id")

	rec, err := col.Create(context.Background(), map[string]any{"code": "WELCOME"})
	require.NoError(t, err)
	assert.Nil(t, rec)
	assert.Equal(t, http.MethodPost, srv.seen().Method)
}

func TestRemove(t *testing.T) {
	srv := newRecordingServer(t, http.StatusOK, `{"deletedCount":1}`)
	col := newTestClient(t, srv.URL).Collection("promo-code", "_id")

	require.NoError(t, col.Remove(context.Background(), "abc"))
	assert.Equal(t, http.MethodDelete, srv.seen().Method)
	assert.Equal(t, "/promo-code/abc", srv.seen().Path)

	failing := newRecordingServer(t, http.StatusInternalServerError, ``)
	err := newTestClient(t, failing.URL).Collection("promo-code", "_id").Remove(context.Background(), "abc")
	require.Error(t, err)
	assert.Equal(t, http.StatusInternalServerError, StatusOf(err))
}

func TestGet_EscapesKeyAndRejectsEmptyBody(t *testing.T) {
	srv := newRecordingServer(t, http.StatusOK, ``)
	col := newTestClient(t, srv.URL).Collection("admin-list", "_id")

	_, err := col.Get(context.Background(), "root@example.com")
	require.Error(t, err)
	assert.True(t, IsCause(err, CauseParse))
	assert.Equal(t, "/admin-list/root@example.com", srv.seen().Path)
}

func TestEndpoint_KeepsBasePath(t *testing.T) {
	c := newTestClient(t, "https://api.example.com/v1/")
	assert.Equal(t, "https://api.example.com/v1/deposit/7", c.endpoint("deposit", "7"))
}

func TestNewHTTPClient_Tracing(t *testing.T) {
	rs := newRecordingServer(t, http.StatusOK, `[{"_id":"a"}]`)

	plain := NewHTTPClient(2*time.Second, false)
	assert.Equal(t, 2*time.Second, plain.Timeout)
	assert.Same(t, http.DefaultTransport, plain.Transport)

	traced := NewHTTPClient(time.Second, true)
	assert.NotSame(t, http.DefaultTransport, traced.Transport)

	c, err := New(rs.URL, WithHTTPClient(traced))
	require.NoError(t, err)
	recs, err := c.Collection("deposit", "_id").List(context.Background())
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}
