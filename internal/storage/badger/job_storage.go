package badger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/reperio/internal/interfaces"
	"github.com/ternarybob/reperio/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// JobStorage implements interfaces.JobStore over BadgerDB.
//
// All read-modify-write updates go through a single mutex: BadgerHold writes
// are atomic per record, but phase updates from parallel goroutines would
// otherwise lose each other's changes between Get and Upsert.
type JobStorage struct {
	db      *BadgerDB
	logger  arbor.ILogger
	weights map[models.PhaseKey]float64
	mu      sync.Mutex
}

// NewJobStorage creates the job store. phaseWeights are relative weights in
// pipeline order (scraping, ai_analysis, search_volume, ranking_check,
// data_save) and are normalized here.
func NewJobStorage(db *BadgerDB, logger arbor.ILogger, phaseWeights []int) interfaces.JobStore {
	weights := make(map[models.PhaseKey]float64, len(models.PhaseOrder))
	total := 0
	for i := range models.PhaseOrder {
		if i < len(phaseWeights) {
			total += phaseWeights[i]
		}
	}
	for i, key := range models.PhaseOrder {
		if total > 0 && i < len(phaseWeights) {
			weights[key] = float64(phaseWeights[i]) / float64(total)
		} else {
			weights[key] = 1.0 / float64(len(models.PhaseOrder))
		}
	}
	return &JobStorage{
		db:      db,
		logger:  logger,
		weights: weights,
	}
}

func (s *JobStorage) CreateJob(ctx context.Context, job *models.AnalysisJob) error {
	if job.ID == "" {
		return fmt.Errorf("%w: job ID is required", models.ErrInvalidInput)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.db.Store().Insert(job.ID, job); err != nil {
		if errors.Is(err, badgerhold.ErrKeyExists) {
			return &models.PersistenceError{Op: "create", JobID: job.ID, Err: err}
		}
		return &models.PersistenceError{Op: "create", JobID: job.ID, Err: err}
	}
	return nil
}

func (s *JobStorage) UpdateJobStatus(ctx context.Context, jobID string, status models.JobStatus, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, err := s.getJob(jobID)
	if err != nil {
		return err
	}

	if !job.Status.CanTransitionTo(status) {
		if job.Status.IsTerminal() {
			return models.ErrJobTerminal
		}
		return fmt.Errorf("%w: cannot transition %s from %s to %s", models.ErrInvalidInput, jobID, job.Status, status)
	}

	switch status {
	case models.JobStatusRunning:
		job.MarkStarted()
	case models.JobStatusCompleted:
		job.MarkCompleted()
	case models.JobStatusFailed:
		job.MarkFailed(errMsg)
	case models.JobStatusCancelled:
		job.MarkCancelled()
	default:
		return fmt.Errorf("%w: unknown status %q", models.ErrInvalidInput, status)
	}

	return s.saveJob(job)
}

func (s *JobStorage) UpdatePhase(ctx context.Context, jobID string, key models.PhaseKey, state models.PhaseState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, err := s.getJob(jobID)
	if err != nil {
		return err
	}

	// Late progress reports after cancellation or failure are dropped,
	// never resurrected into the record.
	if job.Status.IsTerminal() {
		s.logger.Debug().
			Str("job_id", jobID).
			Str("phase", string(key)).
			Str("status", string(job.Status)).
			Msg("Dropping phase update for terminal job")
		return nil
	}

	current := job.Phase(key)
	if state.StartedAt.IsZero() {
		state.StartedAt = current.StartedAt
	}
	job.Phases[key] = &state

	if state.Status == models.PhaseStatusRunning {
		job.CurrentPhase = key
	}
	job.LastHeartbeat = time.Now().UTC()
	s.recomputeProgress(job)

	return s.saveJob(job)
}

// recomputeProgress folds per-phase progress into the weighted overall
// number. Overall progress never decreases.
func (s *JobStorage) recomputeProgress(job *models.AnalysisJob) {
	var overall float64
	for _, key := range models.PhaseOrder {
		state := job.Phase(key)
		progress := float64(state.Progress)
		switch state.Status {
		case models.PhaseStatusCompleted, models.PhaseStatusSkipped, models.PhaseStatusFailed:
			progress = 100
		}
		overall += s.weights[key] * progress
	}
	if rounded := int(overall); rounded > job.Progress {
		job.Progress = rounded
	}
}

func (s *JobStorage) AppendLog(ctx context.Context, entry *models.JobLogEntry) {
	key := fmt.Sprintf("%s_%d_%d", entry.JobID, time.Now().UnixNano(), nextLogSequence())
	if err := s.db.Store().Insert(key, entry); err != nil {
		// Logging must never fail a job
		s.logger.Warn().Err(err).Str("job_id", entry.JobID).Msg("Failed to append job log")
	}
}

func (s *JobStorage) WriteResults(ctx context.Context, result *models.AnalysisResult) error {
	if result.JobID == "" {
		return fmt.Errorf("%w: result job ID is required", models.ErrInvalidInput)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	// Keyed by job ID: a rerun replaces, never duplicates
	if err := s.db.Store().Upsert(result.JobID, result); err != nil {
		return &models.PersistenceError{Op: "write results", JobID: result.JobID, Err: err}
	}

	// Final statistics ride on the job record for cheap polling
	job, err := s.getJob(result.JobID)
	if err != nil {
		return err
	}
	stats := result.Stats
	job.Stats = &stats
	return s.saveJob(job)
}

func (s *JobStorage) GetJob(ctx context.Context, jobID string) (*models.AnalysisJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getJob(jobID)
}

func (s *JobStorage) getJob(jobID string) (*models.AnalysisJob, error) {
	var job models.AnalysisJob
	if err := s.db.Store().Get(jobID, &job); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil, fmt.Errorf("job %s: %w", jobID, models.ErrNotFound)
		}
		return nil, &models.PersistenceError{Op: "get", JobID: jobID, Err: err}
	}
	return &job, nil
}

func (s *JobStorage) saveJob(job *models.AnalysisJob) error {
	if err := s.db.Store().Upsert(job.ID, job); err != nil {
		return &models.PersistenceError{Op: "save", JobID: job.ID, Err: err}
	}
	return nil
}

func (s *JobStorage) GetLogs(ctx context.Context, jobID string, limit int) ([]*models.JobLogEntry, error) {
	var logs []models.JobLogEntry
	query := badgerhold.Where("JobID").Eq(jobID).SortBy("FullTimestamp")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := s.db.Store().Find(&logs, query); err != nil {
		return nil, &models.PersistenceError{Op: "get logs", JobID: jobID, Err: err}
	}
	result := make([]*models.JobLogEntry, len(logs))
	for i := range logs {
		result[i] = &logs[i]
	}
	return result, nil
}

func (s *JobStorage) GetResults(ctx context.Context, jobID string) (*models.AnalysisResult, error) {
	job, err := s.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status != models.JobStatusCompleted {
		return nil, fmt.Errorf("job %s is %s: %w", jobID, job.Status, models.ErrNotReady)
	}

	var result models.AnalysisResult
	if err := s.db.Store().Get(jobID, &result); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil, fmt.Errorf("results for %s: %w", jobID, models.ErrNotFound)
		}
		return nil, &models.PersistenceError{Op: "get results", JobID: jobID, Err: err}
	}
	return &result, nil
}

func (s *JobStorage) ListJobs(ctx context.Context, status models.JobStatus, limit int) ([]*models.AnalysisJob, error) {
	query := badgerhold.Where("ID").Ne("")
	if status != "" {
		query = query.And("Status").Eq(status)
	}
	query = query.SortBy("CreatedAt").Reverse()
	if limit > 0 {
		query = query.Limit(limit)
	}

	var jobs []models.AnalysisJob
	if err := s.db.Store().Find(&jobs, query); err != nil {
		return nil, &models.PersistenceError{Op: "list", Err: err}
	}

	result := make([]*models.AnalysisJob, len(jobs))
	for i := range jobs {
		result[i] = &jobs[i]
	}
	return result, nil
}

func (s *JobStorage) CountJobsByStatus(ctx context.Context) (map[models.JobStatus]int, error) {
	counts := make(map[models.JobStatus]int)
	for _, status := range []models.JobStatus{
		models.JobStatusPending,
		models.JobStatusRunning,
		models.JobStatusCompleted,
		models.JobStatusFailed,
		models.JobStatusCancelled,
	} {
		n, err := s.db.Store().Count(&models.AnalysisJob{}, badgerhold.Where("Status").Eq(status))
		if err != nil {
			return nil, &models.PersistenceError{Op: "count", Err: err}
		}
		counts[status] = int(n)
	}
	return counts, nil
}

func (s *JobStorage) GetStaleJobs(ctx context.Context, cutoff time.Time) ([]*models.AnalysisJob, error) {
	var jobs []models.AnalysisJob
	err := s.db.Store().Find(&jobs,
		badgerhold.Where("Status").Eq(models.JobStatusRunning).And("LastHeartbeat").Lt(cutoff))
	if err != nil {
		return nil, &models.PersistenceError{Op: "stale scan", Err: err}
	}

	result := make([]*models.AnalysisJob, len(jobs))
	for i := range jobs {
		result[i] = &jobs[i]
	}
	return result, nil
}

func (s *JobStorage) DeleteJob(ctx context.Context, jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.getJob(jobID); err != nil {
		return err
	}
	if err := s.db.Store().Delete(jobID, &models.AnalysisJob{}); err != nil {
		return &models.PersistenceError{Op: "delete", JobID: jobID, Err: err}
	}
	if err := s.db.Store().DeleteMatching(&models.JobLogEntry{}, badgerhold.Where("JobID").Eq(jobID)); err != nil {
		s.logger.Warn().Err(err).Str("job_id", jobID).Msg("Failed to delete job logs")
	}
	if err := s.db.Store().Delete(jobID, &models.AnalysisResult{}); err != nil && !errors.Is(err, badgerhold.ErrNotFound) {
		s.logger.Warn().Err(err).Str("job_id", jobID).Msg("Failed to delete job results")
	}
	return nil
}
