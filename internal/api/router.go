package api

import (
	"context"
	"net/http"
	"slices"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
)

// healthCheckTimeout bounds each dependency check.
const healthCheckTimeout = 3 * time.Second

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeNotFound(w, "no such endpoint")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, ErrCodeMethodNotAllow, "read-only endpoint")
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/automations", s.handleListAutomations)
		r.Get("/automations/{name}", s.handleGetAutomation)
		r.Get("/activity", s.handleListActivity)
	})

	return r
}

// handleHealth runs every dependency check and reports 503 if any fails.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	names := make([]string, 0, len(s.checks))
	for name := range s.checks {
		names = append(names, name)
	}
	slices.Sort(names)

	status := "ok"
	checks := make(map[string]string, len(names))
	for _, name := range names {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		err := s.checks[name](ctx)
		cancel()

		if err != nil {
			status = "degraded"
			checks[name] = err.Error()
			s.logger.Warn("health check failed", "check", name, "error", err)
			continue
		}
		checks[name] = "ok"
	}

	code := http.StatusOK
	if status != "ok" {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]any{
		"status":  status,
		"version": s.version,
		"checks":  checks,
	})
}

func (s *Server) handleListAutomations(w http.ResponseWriter, r *http.Request) {
	list, err := s.automations.Automations(r.Context())
	if err != nil {
		s.logger.Error("listing automations", "error", err)
		writeInternalError(w, "failed to list automations")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"automations": list,
		"count":       len(list),
	})
}

func (s *Server) handleGetAutomation(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	list, err := s.automations.Automations(r.Context())
	if err != nil {
		s.logger.Error("listing automations", "error", err)
		writeInternalError(w, "failed to list automations")
		return
	}

	for _, a := range list {
		if a.Name == name {
			writeJSON(w, http.StatusOK, a)
			return
		}
	}
	writeNotFound(w, "automation not found")
}

// handleListActivity returns recent activity, newest first.
//
// Query parameters: automation (optional filter), limit (1..500).
func (s *Server) handleListActivity(w http.ResponseWriter, r *http.Request) {
	if s.activity == nil {
		writeNotFound(w, "activity log is disabled")
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeBadRequest(w, "limit must be a positive integer")
			return
		}
		limit = n
	}

	entries, err := s.activity.List(r.Context(), r.URL.Query().Get("automation"), limit)
	if err != nil {
		s.logger.Error("listing activity", "error", err)
		writeInternalError(w, "failed to list activity")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"entries": entries,
		"count":   len(entries),
	})
}
