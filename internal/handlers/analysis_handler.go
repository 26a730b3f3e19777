package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/reperio/internal/analyzer"
	"github.com/ternarybob/reperio/internal/interfaces"
	"github.com/ternarybob/reperio/internal/models"
	"github.com/ternarybob/reperio/internal/publisher"
)

const defaultLogLimit = 200

// AnalysisHandler handles analysis job API requests
type AnalysisHandler struct {
	orchestrator *analyzer.Orchestrator
	store        interfaces.JobStore
	publisher    *publisher.Publisher
	logger       arbor.ILogger
}

// NewAnalysisHandler creates a new analysis handler
func NewAnalysisHandler(orchestrator *analyzer.Orchestrator, store interfaces.JobStore, pub *publisher.Publisher, logger arbor.ILogger) *AnalysisHandler {
	return &AnalysisHandler{
		orchestrator: orchestrator,
		store:        store,
		publisher:    pub,
		logger:       logger,
	}
}

// submitRequest is the POST /api/analyses body
type submitRequest struct {
	URL     string                 `json:"url"`
	Options models.AnalysisOptions `json:"options"`
}

// SubmitHandler starts a new analysis job
// POST /api/analyses
func (h *AnalysisHandler) SubmitHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	defer r.Body.Close()

	if req.URL == "" {
		WriteError(w, http.StatusBadRequest, "url is required")
		return
	}

	job, err := h.orchestrator.Submit(r.Context(), req.URL, req.Options)
	if err != nil {
		h.logger.Warn().Err(err).Str("url", req.URL).Msg("Analysis submission rejected")
		WriteDomainError(w, err)
		return
	}

	WriteJSON(w, http.StatusAccepted, map[string]interface{}{
		"job_id": job.ID,
		"url":    job.URL,
		"status": job.Status,
	})
}

// ListHandler returns jobs newest first
// GET /api/analyses?status=completed&limit=50
func (h *AnalysisHandler) ListHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	limit := 50
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	status := models.JobStatus(r.URL.Query().Get("status"))

	jobs, err := h.store.ListJobs(r.Context(), status, limit)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to list jobs")
		WriteDomainError(w, err)
		return
	}

	views := make([]*models.JobView, 0, len(jobs))
	for _, job := range jobs {
		views = append(views, models.NewJobView(job))
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  views,
		"count": len(views),
		"limit": limit,
	})
}

// StatsHandler returns job counts grouped by status
// GET /api/analyses/stats
func (h *AnalysisHandler) StatsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	counts, err := h.store.CountJobsByStatus(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to count jobs")
		WriteDomainError(w, err)
		return
	}

	total := 0
	byStatus := make(map[string]int, len(counts))
	for status, n := range counts {
		byStatus[string(status)] = n
		total += n
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"total":     total,
		"by_status": byStatus,
	})
}

// GetHandler returns the current view of one job
// GET /api/analyses/{id}
func (h *AnalysisHandler) GetHandler(w http.ResponseWriter, r *http.Request) {
	jobID := pathJobID(r.URL.Path)
	if jobID == "" {
		WriteError(w, http.StatusBadRequest, "Job ID is required")
		return
	}

	view, _, err := h.publisher.Snapshot(r.Context(), jobID, 0)
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, view)
}

// LogsHandler returns a job's log entries
// GET /api/analyses/{id}/logs?limit=200
func (h *AnalysisHandler) LogsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	jobID := pathJobID(r.URL.Path)
	if jobID == "" {
		WriteError(w, http.StatusBadRequest, "Job ID is required")
		return
	}

	limit := defaultLogLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	if _, err := h.store.GetJob(r.Context(), jobID); err != nil {
		WriteDomainError(w, err)
		return
	}
	logs, err := h.store.GetLogs(r.Context(), jobID, limit)
	if err != nil {
		h.logger.Error().Err(err).Str("job_id", jobID).Msg("Failed to get job logs")
		WriteDomainError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"job_id": jobID,
		"logs":   logs,
		"count":  len(logs),
	})
}

// ResultsHandler returns the stored outcome of a completed job
// GET /api/analyses/{id}/results
func (h *AnalysisHandler) ResultsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	jobID := pathJobID(r.URL.Path)
	if jobID == "" {
		WriteError(w, http.StatusBadRequest, "Job ID is required")
		return
	}

	result, err := h.store.GetResults(r.Context(), jobID)
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, result)
}

// CancelHandler aborts a pending or running job
// POST /api/analyses/{id}/cancel
func (h *AnalysisHandler) CancelHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}
	jobID := pathJobID(r.URL.Path)
	if jobID == "" {
		WriteError(w, http.StatusBadRequest, "Job ID is required")
		return
	}

	if err := h.orchestrator.Cancel(r.Context(), jobID); err != nil {
		WriteDomainError(w, err)
		return
	}

	h.logger.Info().Str("job_id", jobID).Msg("Job cancellation requested")
	WriteJSON(w, http.StatusOK, map[string]string{
		"job_id": jobID,
		"status": "cancelling",
	})
}

// DeleteHandler removes a job with its logs and results
// DELETE /api/analyses/{id}
func (h *AnalysisHandler) DeleteHandler(w http.ResponseWriter, r *http.Request) {
	jobID := pathJobID(r.URL.Path)
	if jobID == "" {
		WriteError(w, http.StatusBadRequest, "Job ID is required")
		return
	}

	job, err := h.store.GetJob(r.Context(), jobID)
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	if !job.Status.IsTerminal() {
		WriteError(w, http.StatusConflict, "Cannot delete a job that is still pending or running")
		return
	}

	if err := h.store.DeleteJob(r.Context(), jobID); err != nil {
		h.logger.Error().Err(err).Str("job_id", jobID).Msg("Failed to delete job")
		WriteDomainError(w, err)
		return
	}

	h.logger.Info().Str("job_id", jobID).Msg("Job deleted")
	WriteJSON(w, http.StatusOK, map[string]string{
		"job_id": jobID,
		"status": "deleted",
	})
}

// pathJobID extracts the job ID from /api/analyses/{id}[/subpath]
func pathJobID(path string) string {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) < 3 {
		return ""
	}
	return parts[2]
}
