package server

import (
	"net/http"
	"strings"
)

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// WebSocket route - live job progress
	mux.HandleFunc("/ws", s.app.WSHandler.HandleWebSocket)

	// API routes - Analyses
	mux.HandleFunc("/api/analyses/stats", s.app.AnalysisHandler.StatsHandler)
	mux.HandleFunc("/api/analyses", s.handleAnalysesRoute)
	mux.HandleFunc("/api/analyses/", s.handleAnalysisRoutes)

	// API routes - System
	mux.HandleFunc("/api/version", s.app.APIHandler.VersionHandler)
	mux.HandleFunc("/api/health", s.app.APIHandler.HealthHandler)

	// 404 handler for unmatched API routes
	mux.HandleFunc("/api/", s.app.APIHandler.NotFoundHandler)

	return mux
}

// handleAnalysesRoute routes the collection endpoint by method
func (s *Server) handleAnalysesRoute(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.app.AnalysisHandler.SubmitHandler(w, r)
	case http.MethodGet:
		s.app.AnalysisHandler.ListHandler(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleAnalysisRoutes routes /api/analyses/{id} and subpaths
func (s *Server) handleAnalysisRoutes(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path

	switch {
	case strings.HasSuffix(path, "/logs"):
		s.app.AnalysisHandler.LogsHandler(w, r)
	case strings.HasSuffix(path, "/results"):
		s.app.AnalysisHandler.ResultsHandler(w, r)
	case strings.HasSuffix(path, "/cancel"):
		s.app.AnalysisHandler.CancelHandler(w, r)
	default:
		switch r.Method {
		case http.MethodGet:
			s.app.AnalysisHandler.GetHandler(w, r)
		case http.MethodDelete:
			s.app.AnalysisHandler.DeleteHandler(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	}
}
