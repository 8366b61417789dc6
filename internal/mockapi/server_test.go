package mockapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/backoffice/internal/record"
	"github.com/roach88/backoffice/internal/remote"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

func newClient(t *testing.T, s *Server) *remote.Client {
	t.Helper()
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	c, err := remote.New(srv.URL)
	require.NoError(t, err)
	return c
}

func TestServer_ListGetByAnyKey(t *testing.T) {
	s := New()
	s.Seed("user-list",
		record.Record{"_id": "u1", "email": "alice@example.com", "phone": "555", "username": "alice"},
		record.Record{"_id": "u2", "email": "bob@example.com", "username": "bob"},
	)
	c := newClient(t, s)
	users := c.Collection("user-list", "_id")

	recs, err := users.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, recs, 2)

	for _, key := range []string{"u1", "alice@example.com", "555", "alice"} {
		r, err := users.Get(context.Background(), key)
		require.NoError(t, err, key)
		assert.Equal(t, "u1", r.ID("_id"))
	}

	_, err = users.Get(context.Background(), "nobody")
	assert.Equal(t, http.StatusNotFound, remote.StatusOf(err))
}

func TestServer_SubResourcePatchUpdatesParent(t *testing.T) {
	s := New()
	s.Seed("user-list", record.Record{"_id": "u1", "email": "alice@example.com", "totalBal": 10})
	c := newClient(t, s)

	_, err := c.Collection("user-list/bal-update", "").Update(context.Background(), "alice@example.com", map[string]any{"totalBal": 25.5, "_id": "evil"})
	require.NoError(t, err)

	got, ok := s.Record("user-list", "u1")
	require.True(t, ok)
	n, _ := record.Number(got["totalBal"])
	assert.Equal(t, "25.5", n.String())
	assert.Equal(t, "u1", got["_id"], "id is never overwritten")
}

func TestServer_CreateAndRemove(t *testing.T) {
	s := New(WithIDGenerator(func() string { return "new-1" }), WithIDField("withdraw", "id"))
	s.Seed("withdraw")
	c := newClient(t, s)
	col := c.Collection("withdraw", "id")

	ack, err := col.Create(context.Background(), map[string]any{"amount": 5})
	require.NoError(t, err)
	assert.Equal(t, "new-1", ack["insertedId"])

	recs := s.Records("withdraw")
	require.Len(t, recs, 1)
	assert.Equal(t, "new-1", recs[0]["id"])

	require.NoError(t, col.Remove(context.Background(), "new-1"))
	assert.Empty(t, s.Records("withdraw"))
	assert.Equal(t, 2, s.MutatingCalls())
}

func TestServer_InjectedFailure(t *testing.T) {
	s := New()
	s.Seed("deposit", record.Record{"_id": "d1", "status": "Pending"})
	c := newClient(t, s)
	col := c.Collection("deposit", "_id")

	s.Fail(http.MethodPatch, "/deposit/d1", http.StatusInternalServerError)
	_, err := col.Update(context.Background(), "d1", map[string]any{"status": "Success"})
	require.Error(t, err)
	assert.True(t, remote.IsCause(err, remote.CauseHTTP))
	assert.Equal(t, http.StatusInternalServerError, remote.StatusOf(err))

	got, _ := s.Record("deposit", "d1")
	assert.Equal(t, "Pending", got["status"], "failed request changes nothing")

	s.Recover()
	_, err = col.Update(context.Background(), "d1", map[string]any{"status": "Success"})
	require.NoError(t, err)

	calls := s.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, http.StatusInternalServerError, calls[0].Status)
	assert.Equal(t, http.StatusOK, calls[1].Status)
	assert.Equal(t, "deposit/d1", calls[1].Path)
}

func TestServer_LoadSeed(t *testing.T) {
	s := New()
	err := s.LoadSeed(strings.NewReader(`{"promo-code":[{"_id":"p1","code":"WELCOME","amount":5}],"tasks":[]}`))
	require.NoError(t, err)
	assert.Len(t, s.Records("promo-code"), 1)
	assert.Empty(t, s.Records("tasks"))

	assert.Error(t, s.LoadSeed(strings.NewReader(`[1,2]`)))
}
