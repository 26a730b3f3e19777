package models

import "time"

// Log levels for job log entries
const (
	LogLevelInfo    = "info"
	LogLevelWarning = "warning"
	LogLevelError   = "error"
	LogLevelSuccess = "success"
)

// sortableTimestamp is fixed-width so lexicographic order matches
// chronological order. RFC3339Nano trims trailing zeros and breaks that.
const sortableTimestamp = "2006-01-02T15:04:05.000000000Z"

// JobLogEntry is a single persistent log line attached to a job.
//
// Timestamp Format:
//   - Timestamp: "15:04:05.000" (HH:MM:SS.mmm) for display
//   - FullTimestamp: fixed-width UTC nanoseconds for accurate sorting
type JobLogEntry struct {
	Timestamp     string         `json:"timestamp"`
	FullTimestamp string         `json:"full_timestamp"`
	JobID         string         `json:"job_id" badgerhold:"index"`
	Level         string         `json:"level" badgerhold:"index"`
	Phase         PhaseKey       `json:"phase,omitempty"`
	Message       string         `json:"message"`
	Detail        map[string]any `json:"detail,omitempty"`
}

// NewJobLogEntry stamps a log entry with both display and sort timestamps
func NewJobLogEntry(jobID string, phase PhaseKey, level, message string) *JobLogEntry {
	now := time.Now().UTC()
	return &JobLogEntry{
		Timestamp:     now.Format("15:04:05.000"),
		FullTimestamp: now.Format(sortableTimestamp),
		JobID:         jobID,
		Level:         level,
		Phase:         phase,
		Message:       message,
	}
}

// WithDetail attaches a structured context payload to the entry
func (e *JobLogEntry) WithDetail(detail map[string]any) *JobLogEntry {
	e.Detail = detail
	return e
}
