package server

import (
	"net/http"
	"strings"

	"github.com/skuforge/skuforge/internal/handlers"
)

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// Pipeline status
	mux.HandleFunc("/api/status", s.app.StatusHandler.GetStatusHandler)

	// Match review queue
	mux.HandleFunc("/api/reviews", s.app.ReviewHandler.ListHandler)
	mux.HandleFunc("/api/reviews/", s.handleReviewRoutes) // POST /{id}/action

	// Master sync
	mux.HandleFunc("/api/sync/trigger", s.app.SyncHandler.TriggerHandler)
	mux.HandleFunc("/api/sync/status", s.app.SyncHandler.StatusHandler)

	// Queue and DLQ
	mux.HandleFunc("/api/queue/stats", s.app.QueueHandler.StatsHandler)
	mux.HandleFunc("/api/queue/dlq", s.app.QueueHandler.DLQListHandler)
	mux.HandleFunc("/api/queue/dlq/", s.handleDLQRoutes) // POST /{task_id}/reprocess

	// System
	mux.HandleFunc("/health", s.app.HealthHandler.HealthHandler)

	// 404 handler for unmatched API routes
	mux.HandleFunc("/api/", s.notFoundHandler)

	return mux
}

// handleReviewRoutes routes /api/reviews/{id}/action
func (s *Server) handleReviewRoutes(w http.ResponseWriter, r *http.Request) {
	if strings.HasSuffix(r.URL.Path, "/action") {
		s.app.ReviewHandler.ActionHandler(w, r)
		return
	}
	s.notFoundHandler(w, r)
}

// handleDLQRoutes routes /api/queue/dlq/{task_id}/reprocess
func (s *Server) handleDLQRoutes(w http.ResponseWriter, r *http.Request) {
	if strings.HasSuffix(r.URL.Path, "/reprocess") {
		s.app.QueueHandler.DLQReprocessHandler(w, r)
		return
	}
	s.notFoundHandler(w, r)
}

func (s *Server) notFoundHandler(w http.ResponseWriter, r *http.Request) {
	handlers.WriteError(w, http.StatusNotFound, "not found: "+r.URL.Path)
}
