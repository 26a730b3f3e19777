package models

import (
	"time"
)

// JobStatus represents the state of an analysis job
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// IsTerminal reports whether the status is a final state
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed || s == JobStatusCancelled
}

// statusRank orders statuses so updates can never move a job backwards.
// Terminal states share the highest rank and are never overwritten.
func statusRank(s JobStatus) int {
	switch s {
	case JobStatusPending:
		return 0
	case JobStatusRunning:
		return 1
	case JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return 2
	default:
		return -1
	}
}

// CanTransitionTo reports whether moving from s to next is a forward transition.
// pending -> running -> {completed, failed, cancelled}; terminal states are frozen.
func (s JobStatus) CanTransitionTo(next JobStatus) bool {
	if s.IsTerminal() {
		return false
	}
	return statusRank(next) > statusRank(s)
}

// PhaseKey identifies one of the five pipeline phases
type PhaseKey string

const (
	PhaseScraping     PhaseKey = "scraping"
	PhaseAIAnalysis   PhaseKey = "ai_analysis"
	PhaseSearchVolume PhaseKey = "search_volume"
	PhaseRankingCheck PhaseKey = "ranking_check"
	PhaseDataSave     PhaseKey = "data_save"
)

// PhaseOrder is the fixed execution order of the pipeline
var PhaseOrder = []PhaseKey{
	PhaseScraping,
	PhaseAIAnalysis,
	PhaseSearchVolume,
	PhaseRankingCheck,
	PhaseDataSave,
}

// PhaseStatus represents the state of a single phase
type PhaseStatus string

const (
	PhaseStatusPending   PhaseStatus = "pending"
	PhaseStatusRunning   PhaseStatus = "running"
	PhaseStatusCompleted PhaseStatus = "completed"
	PhaseStatusFailed    PhaseStatus = "failed"
	PhaseStatusSkipped   PhaseStatus = "skipped"
)

// PhaseState tracks progress of one phase within a job
type PhaseState struct {
	Status      PhaseStatus `json:"status"`
	Progress    int         `json:"progress"` // 0-100 within the phase
	Detail      string      `json:"detail,omitempty"`
	Error       string      `json:"error,omitempty"`
	StartedAt   time.Time   `json:"started_at,omitempty"`
	CompletedAt time.Time   `json:"completed_at,omitempty"`
}

// AnalysisOptions configure a single analysis run.
// Snapshot at submission time so a job is self-contained and re-runnable.
type AnalysisOptions struct {
	MaxPages     int    `json:"max_pages" validate:"omitempty,min=1,max=50"`
	MaxKeywords  int    `json:"max_keywords" validate:"omitempty,min=1,max=100"`
	SearchEngine string `json:"search_engine" validate:"omitempty,oneof=google bing"`
	DeepAnalysis bool   `json:"deep_analysis"`
	IncludeAds   bool   `json:"include_ads"`
	RenderJS     bool   `json:"render_js"`
}

// AnalysisJob represents one website keyword analysis run through the
// five-phase pipeline: scraping, ai_analysis, search_volume, ranking_check,
// data_save. Status transitions are strictly forward; terminal states are
// never overwritten.
type AnalysisJob struct {
	ID           string                   `json:"id" badgerhold:"key"`
	URL          string                   `json:"url"`
	Domain       string                   `json:"domain"`
	Status       JobStatus                `json:"status" badgerhold:"index"`
	Progress     int                      `json:"progress"` // 0-100 weighted overall
	CurrentPhase PhaseKey                 `json:"current_phase,omitempty"`
	Phases       map[PhaseKey]*PhaseState `json:"phases"`
	Options      AnalysisOptions          `json:"options"`
	// Error contains a concise description of why the job failed.
	// Only populated when status is failed.
	Error       string        `json:"error,omitempty"`
	Stats       *KeywordStats `json:"stats,omitempty"`
	CreatedAt   time.Time     `json:"created_at" badgerhold:"index"`
	StartedAt   time.Time     `json:"started_at,omitempty"`
	CompletedAt time.Time     `json:"completed_at,omitempty"`
	// LastHeartbeat is refreshed whenever a phase reports progress.
	// The stale-job reaper fails running jobs whose heartbeat goes quiet.
	LastHeartbeat time.Time `json:"last_heartbeat,omitempty"`
}

// NewAnalysisJob creates a pending job with all phases initialized
func NewAnalysisJob(id, url, domain string, opts AnalysisOptions) *AnalysisJob {
	phases := make(map[PhaseKey]*PhaseState, len(PhaseOrder))
	for _, key := range PhaseOrder {
		phases[key] = &PhaseState{Status: PhaseStatusPending}
	}
	return &AnalysisJob{
		ID:        id,
		URL:       url,
		Domain:    domain,
		Status:    JobStatusPending,
		Phases:    phases,
		Options:   opts,
		CreatedAt: time.Now().UTC(),
	}
}

// MarkStarted transitions the job to running and stamps the start time
func (j *AnalysisJob) MarkStarted() {
	j.Status = JobStatusRunning
	j.StartedAt = time.Now().UTC()
	j.LastHeartbeat = j.StartedAt
}

// MarkCompleted transitions the job to completed with full progress
func (j *AnalysisJob) MarkCompleted() {
	j.Status = JobStatusCompleted
	j.Progress = 100
	j.CurrentPhase = ""
	j.CompletedAt = time.Now().UTC()
}

// MarkFailed transitions the job to failed and records the reason
func (j *AnalysisJob) MarkFailed(reason string) {
	j.Status = JobStatusFailed
	j.Error = reason
	j.CompletedAt = time.Now().UTC()
}

// MarkCancelled transitions the job to cancelled
func (j *AnalysisJob) MarkCancelled() {
	j.Status = JobStatusCancelled
	j.CompletedAt = time.Now().UTC()
}

// Phase returns the state for a phase key, never nil
func (j *AnalysisJob) Phase(key PhaseKey) *PhaseState {
	if j.Phases == nil {
		j.Phases = make(map[PhaseKey]*PhaseState)
	}
	state, ok := j.Phases[key]
	if !ok {
		state = &PhaseState{Status: PhaseStatusPending}
		j.Phases[key] = state
	}
	return state
}

// Duration returns elapsed run time, zero if the job never started
func (j *AnalysisJob) Duration() time.Duration {
	if j.StartedAt.IsZero() {
		return 0
	}
	if j.CompletedAt.IsZero() {
		return time.Since(j.StartedAt)
	}
	return j.CompletedAt.Sub(j.StartedAt)
}
