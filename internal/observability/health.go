package observability

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"golang.org/x/sync/errgroup"
)

// liveness responds with 200 OK while the process can serve HTTP.
func (s *Server) liveness(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// readiness runs every registered checker concurrently and answers 200 only
// when all of them pass.
func (s *Server) readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.Timeout)
	defer cancel()

	statuses := make(map[string]string, len(s.checkers))
	var mu sync.Mutex
	healthy := true

	// Checkers never return errors to the group; every one must report.
	var g errgroup.Group
	for _, checker := range s.checkers {
		g.Go(func() error {
			err := checker.Check(ctx)

			mu.Lock()
			defer mu.Unlock()

			if err != nil {
				s.logger.Warn("health check failed",
					slog.String("component", checker.Name()),
					slog.String("error", err.Error()),
				)
				statuses[checker.Name()] = fmt.Sprintf("down: %v", err)
				healthy = false
				return nil
			}
			statuses[checker.Name()] = "up"
			return nil
		})
	}
	_ = g.Wait()

	w.Header().Set("Content-Type", "application/json")
	if healthy {
		w.WriteHeader(http.StatusOK)
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
	}

	// The status code is already written; the body is for humans.
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status": statuses,
	})
}
