package api

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/eargollo/thlocate/internal/api/handlers"
	"github.com/eargollo/thlocate/internal/scan"
	"github.com/eargollo/thlocate/internal/scheduler"
)

// Server holds the HTTP server and all handler dependencies.
type Server struct {
	addr string
	srv  *http.Server
}

// New wires all routes and returns a Server ready to Run.
func New(addr string, db *sql.DB, mgr *scan.Manager, sched *scheduler.Scheduler, version string) *Server {
	return &Server{
		addr: addr,
		srv: &http.Server{
			Addr:              addr,
			Handler:           NewRouter(db, mgr, sched, version),
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

// NewRouter returns the API routes.
func NewRouter(db *sql.DB, mgr *scan.Manager, sched *scheduler.Scheduler, version string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	statusH := &handlers.StatusHandler{DB: db, Manager: mgr, Sched: sched, Version: version}
	scansH := &handlers.ScansHandler{DB: db, Manager: mgr}

	r.Route("/api", func(r chi.Router) {
		r.Get("/status", statusH.ServeHTTP)

		r.Post("/scans", scansH.Create)
		r.Get("/scans", scansH.List)
		r.Get("/scans/{id}", scansH.Get)
		r.Get("/scans/{id}/games", scansH.Games)

		r.Get("/games", scansH.Latest)
	})
	return r
}

// Run starts the HTTP server and blocks until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", s.addr)
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutting down HTTP server")
		return s.srv.Shutdown(context.Background())
	case err := <-errCh:
		return err
	}
}
