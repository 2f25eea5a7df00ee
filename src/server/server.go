package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	logger "github.com/sirupsen/logrus"

	"makenaide/src/monitoring"
)

// QueueReader is the read-only view of the signal queue the status
// endpoints expose.
type QueueReader interface {
	CountPending(ctx context.Context, lookback time.Duration) (int64, error)
	Ping(ctx context.Context) error
}

// StartServer runs the status HTTP server in the background and returns it so
// the caller can shut it down during graceful drain.
func StartServer(port string, queue QueueReader, pendingLookback time.Duration) *http.Server {
	r := chi.NewRouter()

	r.Get("/healthcheck", func(w http.ResponseWriter, req *http.Request) {
		if err := queue.Ping(req.Context()); err != nil {
			logger.WithError(err).Error("healthcheck store ping failed")
			http.Error(w, "store unreachable", http.StatusServiceUnavailable)
			return
		}
		if _, err := w.Write([]byte("OK")); err != nil {
			logger.WithError(err).Error("/healthcheck write error")
		}
	})

	r.Get("/signals/pending", func(w http.ResponseWriter, req *http.Request) {
		count, err := queue.CountPending(req.Context(), pendingLookback)
		if err != nil {
			logger.WithError(err).Error("failed to count pending signals")
			http.Error(w, "store unreachable", http.StatusServiceUnavailable)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(map[string]int64{"pending": count}); err != nil {
			logger.WithError(err).Error("/signals/pending write error")
		}
	})

	r.Handle("/metrics", monitoring.Handler())

	addr := ":" + port
	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		logger.Infof("status server listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Error("status server crashed")
		}
	}()

	return srv
}

// Shutdown stops the status server with a short grace period.
func Shutdown(srv *http.Server) {
	if srv == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("status server shutdown error")
	}
}
