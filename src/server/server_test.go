package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubQueue struct {
	pending int64
	err     error
}

func (s *stubQueue) CountPending(context.Context, time.Duration) (int64, error) {
	if s.err != nil {
		return 0, s.err
	}
	return s.pending, nil
}

func (s *stubQueue) Ping(context.Context) error {
	return s.err
}

func TestStatusEndpoints(t *testing.T) {
	srv := StartServer("0", &stubQueue{pending: 3}, 24*time.Hour)
	defer Shutdown(srv)

	t.Run("healthcheck", func(t *testing.T) {
		rec := httptest.NewRecorder()
		srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthcheck", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "OK", rec.Body.String())
	})

	t.Run("pending signals", func(t *testing.T) {
		rec := httptest.NewRecorder()
		srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/signals/pending", nil))

		require.Equal(t, http.StatusOK, rec.Code)

		var body map[string]int64
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, int64(3), body["pending"])
	})

	t.Run("metrics", func(t *testing.T) {
		rec := httptest.NewRecorder()
		srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestStatusEndpointsStoreDown(t *testing.T) {
	srv := StartServer("0", &stubQueue{err: errors.New("connection refused")}, 24*time.Hour)
	defer Shutdown(srv)

	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthcheck", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/signals/pending", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
