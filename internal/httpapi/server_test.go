package httpapi

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrison/undercity/internal/board"
	"github.com/harrison/undercity/internal/store"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	st, err := store.New(t.TempDir())
	require.NoError(t, err)
	b := board.New(st)
	_, err = b.AddTask("add a retry budget", 1, nil)
	require.NoError(t, err)
	return New(b, nil, 0)
}

func TestHandleHealthzReturnsOK(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	s.http.Handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHandleTasksListsBoardTasks(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/tasks", nil)
	rec := httptest.NewRecorder()
	s.http.Handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "add a retry budget")
}

func TestHandleMergeQueueWithoutQueueReturnsZeroCounts(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/merge-queue", nil)
	rec := httptest.NewRecorder()
	s.http.Handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"pending":0`)
}
