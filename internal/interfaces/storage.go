package interfaces

import (
	"context"
	"time"

	"github.com/ternarybob/reperio/internal/models"
)

// JobStore is the single source of truth for job state, logs, and results.
// Implementations must serialize concurrent writers so progress updates from
// parallel phases never interleave into a torn record.
type JobStore interface {
	// CreateJob persists a new pending job
	CreateJob(ctx context.Context, job *models.AnalysisJob) error

	// UpdateJobStatus advances a job's status. Transitions are strictly
	// forward: an attempt to move a terminal job returns models.ErrJobTerminal.
	// Start and completion timestamps are stamped on the matching transitions.
	UpdateJobStatus(ctx context.Context, jobID string, status models.JobStatus, errMsg string) error

	// UpdatePhase records one phase's state and recomputes the job's weighted
	// overall progress. Also refreshes the job heartbeat.
	UpdatePhase(ctx context.Context, jobID string, key models.PhaseKey, state models.PhaseState) error

	// AppendLog stores one job log line. Failures are reported to the server
	// log and swallowed so logging can never fail a job.
	AppendLog(ctx context.Context, entry *models.JobLogEntry)

	// WriteResults persists the analysis outcome, replacing any prior write
	// for the same job.
	WriteResults(ctx context.Context, result *models.AnalysisResult) error

	// GetJob returns a job by ID, models.ErrNotFound if absent
	GetJob(ctx context.Context, jobID string) (*models.AnalysisJob, error)

	// GetLogs returns a job's log entries ordered by FullTimestamp
	GetLogs(ctx context.Context, jobID string, limit int) ([]*models.JobLogEntry, error)

	// GetResults returns the stored outcome. models.ErrNotFound if the job
	// does not exist, models.ErrNotReady if it has not completed.
	GetResults(ctx context.Context, jobID string) (*models.AnalysisResult, error)

	// ListJobs returns jobs newest first, optionally filtered by status
	// (empty status means all)
	ListJobs(ctx context.Context, status models.JobStatus, limit int) ([]*models.AnalysisJob, error)

	// CountJobsByStatus returns job counts keyed by status
	CountJobsByStatus(ctx context.Context) (map[models.JobStatus]int, error)

	// GetStaleJobs returns running jobs whose heartbeat is older than cutoff
	GetStaleJobs(ctx context.Context, cutoff time.Time) ([]*models.AnalysisJob, error)

	// DeleteJob removes a job along with its logs and results
	DeleteJob(ctx context.Context, jobID string) error
}
