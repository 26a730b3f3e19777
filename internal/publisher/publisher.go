// Package publisher projects job state for external callers in two
// delivery modes: point-in-time snapshots for polling and a change-driven
// channel for streaming.
package publisher

import (
	"context"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/reperio/internal/interfaces"
	"github.com/ternarybob/reperio/internal/models"
)

const defaultPollInterval = 1 * time.Second

// Publisher is a read-only projection over the job store
type Publisher struct {
	store        interfaces.JobStore
	logger       arbor.ILogger
	pollInterval time.Duration
}

// NewPublisher creates a progress publisher polling at the given interval;
// zero means the 1s default
func NewPublisher(store interfaces.JobStore, logger arbor.ILogger, pollInterval time.Duration) *Publisher {
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}
	return &Publisher{
		store:        store,
		logger:       logger,
		pollInterval: pollInterval,
	}
}

// Snapshot returns the current denormalized view of one job plus its most
// recent log entries
func (p *Publisher) Snapshot(ctx context.Context, jobID string, logLimit int) (*models.JobView, []*models.JobLogEntry, error) {
	job, err := p.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, nil, err
	}
	logs, err := p.store.GetLogs(ctx, jobID, logLimit)
	if err != nil {
		// A view without logs still beats no view
		p.logger.Warn().Err(err).Str("job_id", jobID).Msg("Failed to load job logs for snapshot")
		logs = nil
	}
	return models.NewJobView(job), logs, nil
}

// Subscribe emits a view whenever the job's observable state changes,
// starting with the current state, and closes the channel once the job
// reaches a terminal status or the context is cancelled.
//
// Best-effort notification layer: no exactly-once guarantee, just a
// change-compressed poll of the store.
func (p *Publisher) Subscribe(ctx context.Context, jobID string) (<-chan *models.JobView, error) {
	job, err := p.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}

	ch := make(chan *models.JobView, 8)
	last := models.NewJobView(job)

	go func() {
		defer close(ch)

		select {
		case ch <- last:
		case <-ctx.Done():
			return
		}
		if last.Status.IsTerminal() {
			return
		}

		ticker := time.NewTicker(p.pollInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}

			job, err := p.store.GetJob(ctx, jobID)
			if err != nil {
				p.logger.Warn().Err(err).Str("job_id", jobID).Msg("Subscription poll failed")
				return
			}
			view := models.NewJobView(job)
			if view.Equal(last) {
				continue
			}
			last = view

			select {
			case ch <- view:
			case <-ctx.Done():
				return
			}
			if view.Status.IsTerminal() {
				return
			}
		}
	}()

	return ch, nil
}
