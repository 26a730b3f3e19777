package models

import "time"

// PhaseView is the wire form of one phase's state
type PhaseView struct {
	Key      PhaseKey    `json:"key"`
	Status   PhaseStatus `json:"status"`
	Progress int         `json:"progress"`
	Detail   string      `json:"detail,omitempty"`
	Error    string      `json:"error,omitempty"`
}

// JobView is the denormalized snapshot returned by the poll and stream
// endpoints: job state plus phase breakdown in fixed pipeline order.
type JobView struct {
	ID           string        `json:"id"`
	URL          string        `json:"url"`
	Domain       string        `json:"domain"`
	Status       JobStatus     `json:"status"`
	Progress     int           `json:"progress"`
	CurrentPhase PhaseKey      `json:"current_phase,omitempty"`
	Phases       []PhaseView   `json:"phases"`
	Error        string        `json:"error,omitempty"`
	Stats        *KeywordStats `json:"stats,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
	StartedAt    *time.Time    `json:"started_at,omitempty"`
	CompletedAt  *time.Time    `json:"completed_at,omitempty"`
	DurationMS   int64         `json:"duration_ms,omitempty"`
}

// NewJobView flattens a job into its wire form
func NewJobView(job *AnalysisJob) *JobView {
	view := &JobView{
		ID:           job.ID,
		URL:          job.URL,
		Domain:       job.Domain,
		Status:       job.Status,
		Progress:     job.Progress,
		CurrentPhase: job.CurrentPhase,
		Error:        job.Error,
		CreatedAt:    job.CreatedAt,
	}
	// Final statistics are only meaningful once the job completed
	if job.Status == JobStatusCompleted {
		view.Stats = job.Stats
	}
	if !job.StartedAt.IsZero() {
		t := job.StartedAt
		view.StartedAt = &t
		view.DurationMS = job.Duration().Milliseconds()
	}
	if !job.CompletedAt.IsZero() {
		t := job.CompletedAt
		view.CompletedAt = &t
	}
	for _, key := range PhaseOrder {
		state := job.Phase(key)
		view.Phases = append(view.Phases, PhaseView{
			Key:      key,
			Status:   state.Status,
			Progress: state.Progress,
			Detail:   state.Detail,
			Error:    state.Error,
		})
	}
	return view
}

// Equal reports whether two views describe the same observable state.
// Used by the publisher to suppress no-change emissions.
func (v *JobView) Equal(other *JobView) bool {
	if other == nil {
		return false
	}
	if v.Status != other.Status || v.Progress != other.Progress ||
		v.CurrentPhase != other.CurrentPhase || v.Error != other.Error {
		return false
	}
	if len(v.Phases) != len(other.Phases) {
		return false
	}
	for i := range v.Phases {
		if v.Phases[i] != other.Phases[i] {
			return false
		}
	}
	return true
}
