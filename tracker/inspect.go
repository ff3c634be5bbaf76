package tracker

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// InspectHandler serves the local inspection API:
//
//	GET /healthz     liveness
//	GET /api/runs    recent acquisition runs from the run log
//	GET /api/latest  the last in-process snapshot and trend report
//
// The server is meant to be bound to loopback; it carries no auth.
func (s *Service) InspectHandler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(10 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Get("/api/runs", func(w http.ResponseWriter, req *http.Request) {
		if s.runs == nil {
			writeJSON(w, http.StatusOK, []struct{}{})
			return
		}
		runs, err := s.runs.Recent(req.Context(), 30)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, runs)
	})

	r.Get("/api/latest", func(w http.ResponseWriter, req *http.Request) {
		snap, report := s.Latest()
		if snap == nil {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "no run completed yet"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"snapshot": snap,
			"report":   report,
		})
	})

	return r
}

// ServeInspect runs the inspection server until ctx is cancelled.
func (s *Service) ServeInspect(ctx context.Context, listen string) error {
	srv := &http.Server{
		Addr:              listen,
		Handler:           s.InspectHandler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("tracker: inspect server listening", "addr", listen)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
