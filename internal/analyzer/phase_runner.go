package analyzer

import (
	"context"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/reperio/internal/interfaces"
	"github.com/ternarybob/reperio/internal/models"
)

// reportFunc lets a phase's work function publish sub-progress (0-100
// within the phase) and a human-readable detail string.
type reportFunc func(progress int, detail string)

// phaseRunner wraps each phase's work with uniform progress and log
// instrumentation. Whether a failure is fatal is the orchestrator's
// decision, not the runner's.
type phaseRunner struct {
	store  interfaces.JobStore
	logger arbor.ILogger
	jobID  string
}

func newPhaseRunner(store interfaces.JobStore, logger arbor.ILogger, jobID string) *phaseRunner {
	return &phaseRunner{store: store, logger: logger, jobID: jobID}
}

// run executes one phase: progress 0 and an info log at entry, the work
// function with a live report callback, then progress 100 and a success
// log, or an error log on failure.
func (r *phaseRunner) run(ctx context.Context, key models.PhaseKey, describe string, work func(ctx context.Context, report reportFunc) error) error {
	started := time.Now().UTC()
	r.updatePhase(ctx, key, models.PhaseState{
		Status:    models.PhaseStatusRunning,
		Progress:  0,
		Detail:    describe,
		StartedAt: started,
	})
	r.log(ctx, key, models.LogLevelInfo, describe)

	report := func(progress int, detail string) {
		if progress < 0 {
			progress = 0
		} else if progress > 100 {
			progress = 100
		}
		r.updatePhase(ctx, key, models.PhaseState{
			Status:    models.PhaseStatusRunning,
			Progress:  progress,
			Detail:    detail,
			StartedAt: started,
		})
	}

	if err := work(ctx, report); err != nil {
		r.updatePhase(ctx, key, models.PhaseState{
			Status:      models.PhaseStatusFailed,
			Progress:    100,
			Error:       err.Error(),
			StartedAt:   started,
			CompletedAt: time.Now().UTC(),
		})
		r.log(ctx, key, models.LogLevelError, err.Error())
		return err
	}

	r.updatePhase(ctx, key, models.PhaseState{
		Status:      models.PhaseStatusCompleted,
		Progress:    100,
		StartedAt:   started,
		CompletedAt: time.Now().UTC(),
	})
	r.log(ctx, key, models.LogLevelSuccess, describe+" completed")
	return nil
}

func (r *phaseRunner) updatePhase(ctx context.Context, key models.PhaseKey, state models.PhaseState) {
	if err := r.store.UpdatePhase(ctx, r.jobID, key, state); err != nil {
		r.logger.Warn().Err(err).
			Str("job_id", r.jobID).
			Str("phase", string(key)).
			Msg("Failed to update phase state")
	}
}

func (r *phaseRunner) log(ctx context.Context, key models.PhaseKey, level, message string) {
	r.store.AppendLog(ctx, models.NewJobLogEntry(r.jobID, key, level, message))
}

func (r *phaseRunner) logDetail(ctx context.Context, key models.PhaseKey, level, message string, detail map[string]any) {
	r.store.AppendLog(ctx, models.NewJobLogEntry(r.jobID, key, level, message).WithDetail(detail))
}
