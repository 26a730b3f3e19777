package app

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/reperio/internal/common"
	"github.com/ternarybob/reperio/internal/interfaces"
	"github.com/ternarybob/reperio/internal/models"
)

// Reaper periodically fails running jobs whose heartbeat has gone quiet.
// A crashed process leaves its jobs stuck in running; the reaper is what
// moves them to a terminal state after restart.
type Reaper struct {
	store   interfaces.JobStore
	cfg     *common.AnalysisConfig
	logger  arbor.ILogger
	cron    *cron.Cron
	entryID cron.EntryID
}

// NewReaper creates the stale-job reaper on the configured cron schedule
func NewReaper(store interfaces.JobStore, cfg *common.AnalysisConfig, logger arbor.ILogger) (*Reaper, error) {
	r := &Reaper{
		store:  store,
		cfg:    cfg,
		logger: logger,
		cron:   cron.New(cron.WithSeconds()),
	}

	entryID, err := r.cron.AddFunc(cfg.StaleCheckSchedule, r.reap)
	if err != nil {
		return nil, fmt.Errorf("invalid stale check schedule %q: %w", cfg.StaleCheckSchedule, err)
	}
	r.entryID = entryID
	return r, nil
}

// Start begins scheduled reaping and runs one pass immediately to clear
// jobs orphaned by a previous process. The startup pass is skipped when
// the application context is already cancelled.
func (r *Reaper) Start(ctx context.Context) {
	common.SafeGoWithContext(ctx, r.logger, "reaper:startup", r.reap)
	r.cron.Start()
	r.logger.Info().
		Str("schedule", r.cfg.StaleCheckSchedule).
		Dur("timeout", r.cfg.StaleJobTimeout).
		Msg("Stale job reaper started")
}

// Stop halts scheduled reaping
func (r *Reaper) Stop() {
	stopCtx := r.cron.Stop()
	<-stopCtx.Done()
	r.logger.Debug().Msg("Stale job reaper stopped")
}

func (r *Reaper) reap() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cutoff := time.Now().Add(-r.cfg.StaleJobTimeout)
	stale, err := r.store.GetStaleJobs(ctx, cutoff)
	if err != nil {
		r.logger.Warn().Err(err).Msg("Stale job scan failed")
		return
	}

	for _, job := range stale {
		msg := fmt.Sprintf("no progress since %s", job.LastHeartbeat.Format(time.RFC3339))
		if err := r.store.UpdateJobStatus(ctx, job.ID, models.JobStatusFailed, msg); err != nil {
			r.logger.Warn().Err(err).Str("job_id", job.ID).Msg("Failed to reap stale job")
			continue
		}
		r.store.AppendLog(ctx, models.NewJobLogEntry(job.ID, job.CurrentPhase, models.LogLevelError,
			"analysis abandoned: "+msg).
			WithDetail(map[string]any{"last_heartbeat": job.LastHeartbeat.Format(time.RFC3339)}))
		r.logger.Warn().
			Str("job_id", job.ID).
			Str("last_heartbeat", job.LastHeartbeat.Format(time.RFC3339)).
			Msg("Stale job marked failed")
	}
}
