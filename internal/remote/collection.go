package remote

import (
	"bytes"
	"context"
	"fmt"
	"net/http"

	"github.com/roach88/backoffice/internal/record"
)

// Collection is a typed handle on one REST resource.
type Collection struct {
	client  *Client
	path    string
	idField string
}

// Path returns the resource path relative to the base URL.
func (c *Collection) Path() string {
	return c.path
}

// IDField returns the identifier field of the collection's records.
func (c *Collection) IDField() string {
	return c.idField
}

// List fetches the whole collection.
// A snapshot with missing or duplicate identifiers is a CauseParse failure.
func (c *Collection) List(ctx context.Context) ([]record.Record, error) {
	target := c.client.endpoint(c.path)
	data, err := c.client.do(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}

	recs, err := record.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, &FetchError{Cause: CauseParse, Method: http.MethodGet, URL: target, Err: err}
	}
	if c.idField != "" {
		if err := record.CheckIDs(recs, c.idField); err != nil {
			return nil, &FetchError{Cause: CauseParse, Method: http.MethodGet, URL: target, Err: err}
		}
	}
	return recs, nil
}

// Get fetches a single record by key. The key is whatever the endpoint
// accepts in its last path segment (id, email, phone or username).
// An empty or non-object body is a CauseParse failure.
func (c *Collection) Get(ctx context.Context, key string) (record.Record, error) {
	if key == "" {
		return nil, fmt.Errorf("get %s: empty key", c.path)
	}
	target := c.client.endpoint(c.path, key)
	data, err := c.client.do(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}

	rec, err := record.DecodeOne(data)
	if err != nil {
		return nil, &FetchError{Cause: CauseParse, Method: http.MethodGet, URL: target, Err: err}
	}
	if rec == nil {
		return nil, &FetchError{Cause: CauseParse, Method: http.MethodGet, URL: target, Err: fmt.Errorf("empty body")}
	}
	return rec, nil
}

// Create POSTs payload to the collection and returns the decoded response.
// The backend may answer with an acknowledgement object instead of the
// created row; either is returned as-is.
func (c *Collection) Create(ctx context.Context, payload any) (record.Record, error) {
	target := c.client.endpoint(c.path)
	return c.write(ctx, http.MethodPost, target, payload)
}

// Update PATCHes a partial payload onto the record with the given key.
func (c *Collection) Update(ctx context.Context, key string, partial any) (record.Record, error) {
	if key == "" {
		return nil, fmt.Errorf("update %s: empty key", c.path)
	}
	target := c.client.endpoint(c.path, key)
	return c.write(ctx, http.MethodPatch, target, partial)
}

// Remove DELETEs the record with the given key.
func (c *Collection) Remove(ctx context.Context, key string) error {
	if key == "" {
		return fmt.Errorf("remove %s: empty key", c.path)
	}
	target := c.client.endpoint(c.path, key)
	_, err := c.client.do(ctx, http.MethodDelete, target, nil)
	return err
}

func (c *Collection) write(ctx context.Context, method, target string, payload any) (record.Record, error) {
	if payload == nil {
		payload = map[string]any{}
	}
	data, err := c.client.do(ctx, method, target, payload)
	if err != nil {
		return nil, err
	}
	rec, err := record.DecodeOne(data)
	if err != nil {
		return nil, &FetchError{Cause: CauseParse, Method: method, URL: target, Err: err}
	}
	return rec, nil
}
