// Package adminserver exposes the optional operational HTTP surface
// (metrics.addr in configuration): health, readiness and Prometheus
// metrics, routed through gorilla/mux behind the logging and recovery
// middleware.
package adminserver

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/kenneth/fs2cloud/internal/metrics"
	"github.com/kenneth/fs2cloud/internal/middleware"
	"github.com/sirupsen/logrus"
)

// Server serves /healthz, /readyz and /metrics for a running backup engine
// process.
type Server struct {
	httpServer *http.Server
	log        *logrus.Entry
}

// New builds a Server bound to addr. readyCheck, if non-nil, gates /readyz
// (e.g. a catalog ping); it may be nil for commands with no long-lived
// dependency to probe.
func New(addr string, m *metrics.Metrics, readyCheck func(context.Context) error, log *logrus.Logger) *Server {
	r := mux.NewRouter()
	r.Use(middleware.RecoveryMiddleware(log))
	r.Use(middleware.LoggingMiddleware(log))

	r.Handle("/healthz", metrics.LivenessHandler()).Methods(http.MethodGet)
	r.Handle("/readyz", metrics.ReadinessHandler(readyCheck)).Methods(http.MethodGet)
	if m != nil {
		r.Handle("/metrics", m.Handler()).Methods(http.MethodGet)
	}

	return &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      r,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
		log: logrus.NewEntry(log).WithField("component", "adminserver"),
	}
}

// Run starts serving and blocks until ctx is canceled, at which point it
// shuts the server down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.WithField("addr", s.httpServer.Addr).Info("admin server listening")
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return <-errCh
	case err := <-errCh:
		return err
	}
}
