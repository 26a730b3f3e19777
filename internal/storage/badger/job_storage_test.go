package badger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/reperio/internal/common"
	"github.com/ternarybob/reperio/internal/interfaces"
	"github.com/ternarybob/reperio/internal/models"
)

func newTestStore(t *testing.T) interfaces.JobStore {
	t.Helper()
	logger := arbor.NewLogger()
	db, err := NewBadgerDB(logger, &common.BadgerConfig{Path: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewJobStorage(db, logger, []int{20, 20, 20, 30, 10})
}

func newTestJob(id string) *models.AnalysisJob {
	return models.NewAnalysisJob(id, "https://example.com", "example.com", models.AnalysisOptions{
		MaxPages:     3,
		MaxKeywords:  10,
		SearchEngine: "google",
	})
}

func TestCreateAndGetJob(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	job := newTestJob("job_create")
	require.NoError(t, store.CreateJob(ctx, job))

	loaded, err := store.GetJob(ctx, "job_create")
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusPending, loaded.Status)
	assert.Equal(t, "https://example.com", loaded.URL)
	assert.Equal(t, "example.com", loaded.Domain)
	assert.Len(t, loaded.Phases, 5)
	for _, key := range models.PhaseOrder {
		assert.Equal(t, models.PhaseStatusPending, loaded.Phase(key).Status)
	}
}

func TestGetJobNotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetJob(context.Background(), "job_missing")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestCreateJobRequiresID(t *testing.T) {
	store := newTestStore(t)

	err := store.CreateJob(context.Background(), &models.AnalysisJob{})
	assert.ErrorIs(t, err, models.ErrInvalidInput)
}

func TestStatusTransitionsAreForwardOnly(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	job := newTestJob("job_transitions")
	require.NoError(t, store.CreateJob(ctx, job))

	require.NoError(t, store.UpdateJobStatus(ctx, job.ID, models.JobStatusRunning, ""))
	loaded, err := store.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusRunning, loaded.Status)
	assert.False(t, loaded.StartedAt.IsZero())
	assert.True(t, loaded.CompletedAt.IsZero())

	// Backwards to pending is rejected
	err = store.UpdateJobStatus(ctx, job.ID, models.JobStatusPending, "")
	assert.ErrorIs(t, err, models.ErrInvalidInput)

	require.NoError(t, store.UpdateJobStatus(ctx, job.ID, models.JobStatusCompleted, ""))
	loaded, err = store.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCompleted, loaded.Status)
	assert.Equal(t, 100, loaded.Progress)
	assert.False(t, loaded.CompletedAt.IsZero())

	// Terminal states are frozen
	err = store.UpdateJobStatus(ctx, job.ID, models.JobStatusFailed, "too late")
	assert.ErrorIs(t, err, models.ErrJobTerminal)
	loaded, err = store.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCompleted, loaded.Status)
	assert.Empty(t, loaded.Error)
}

func TestFailedJobRecordsError(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	job := newTestJob("job_failed")
	require.NoError(t, store.CreateJob(ctx, job))
	require.NoError(t, store.UpdateJobStatus(ctx, job.ID, models.JobStatusRunning, ""))
	require.NoError(t, store.UpdateJobStatus(ctx, job.ID, models.JobStatusFailed, "entry page unreachable"))

	loaded, err := store.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusFailed, loaded.Status)
	assert.Equal(t, "entry page unreachable", loaded.Error)
	assert.False(t, loaded.CompletedAt.IsZero())
}

func TestUpdatePhaseRecomputesWeightedProgress(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	job := newTestJob("job_progress")
	require.NoError(t, store.CreateJob(ctx, job))
	require.NoError(t, store.UpdateJobStatus(ctx, job.ID, models.JobStatusRunning, ""))

	// Scraping (weight 20%) halfway: overall 10
	require.NoError(t, store.UpdatePhase(ctx, job.ID, models.PhaseScraping, models.PhaseState{
		Status:   models.PhaseStatusRunning,
		Progress: 50,
	}))
	loaded, err := store.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, loaded.Progress)
	assert.Equal(t, models.PhaseScraping, loaded.CurrentPhase)
	assert.False(t, loaded.LastHeartbeat.IsZero())

	// Scraping done, ai_analysis (20%) at 50: overall 20 + 10 = 30
	require.NoError(t, store.UpdatePhase(ctx, job.ID, models.PhaseScraping, models.PhaseState{
		Status:   models.PhaseStatusCompleted,
		Progress: 100,
	}))
	require.NoError(t, store.UpdatePhase(ctx, job.ID, models.PhaseAIAnalysis, models.PhaseState{
		Status:   models.PhaseStatusRunning,
		Progress: 50,
	}))
	loaded, err = store.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, 30, loaded.Progress)
	assert.Equal(t, models.PhaseAIAnalysis, loaded.CurrentPhase)
}

func TestOverallProgressNeverDecreases(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	job := newTestJob("job_monotonic")
	require.NoError(t, store.CreateJob(ctx, job))
	require.NoError(t, store.UpdateJobStatus(ctx, job.ID, models.JobStatusRunning, ""))

	require.NoError(t, store.UpdatePhase(ctx, job.ID, models.PhaseScraping, models.PhaseState{
		Status:   models.PhaseStatusRunning,
		Progress: 90,
	}))
	loaded, err := store.GetJob(ctx, job.ID)
	require.NoError(t, err)
	before := loaded.Progress

	// A lower per-phase report must not pull the overall number back
	require.NoError(t, store.UpdatePhase(ctx, job.ID, models.PhaseScraping, models.PhaseState{
		Status:   models.PhaseStatusRunning,
		Progress: 10,
	}))
	loaded, err = store.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, loaded.Progress, before)
}

func TestUpdatePhaseDroppedOnTerminalJob(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	job := newTestJob("job_terminal_drop")
	require.NoError(t, store.CreateJob(ctx, job))
	require.NoError(t, store.UpdateJobStatus(ctx, job.ID, models.JobStatusRunning, ""))
	require.NoError(t, store.UpdateJobStatus(ctx, job.ID, models.JobStatusCancelled, ""))

	require.NoError(t, store.UpdatePhase(ctx, job.ID, models.PhaseRankingCheck, models.PhaseState{
		Status:   models.PhaseStatusRunning,
		Progress: 40,
	}))

	loaded, err := store.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCancelled, loaded.Status)
	assert.Equal(t, models.PhaseStatusPending, loaded.Phase(models.PhaseRankingCheck).Status)
}

func TestGetResultsBeforeCompletion(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	job := newTestJob("job_not_ready")
	require.NoError(t, store.CreateJob(ctx, job))
	require.NoError(t, store.UpdateJobStatus(ctx, job.ID, models.JobStatusRunning, ""))

	_, err := store.GetResults(ctx, job.ID)
	assert.ErrorIs(t, err, models.ErrNotReady)
}

func TestWriteResultsAndRead(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	job := newTestJob("job_results")
	require.NoError(t, store.CreateJob(ctx, job))
	require.NoError(t, store.UpdateJobStatus(ctx, job.ID, models.JobStatusRunning, ""))

	result := &models.AnalysisResult{
		JobID:  job.ID,
		URL:    job.URL,
		Domain: job.Domain,
		Keywords: []models.Keyword{
			{Text: "plumbing services", Category: models.CategorySecondary, Relevance: 88},
		},
		CompetitorStatus: models.CompetitorsUnavailable,
		Stats:            models.KeywordStats{TotalKeywords: 1, SecondaryCount: 1, AvgRelevance: 88},
		KeywordSource:    models.KeywordSourceLLM,
	}
	require.NoError(t, store.WriteResults(ctx, result))

	// A rewrite replaces, never duplicates
	result.Keywords = append(result.Keywords, models.Keyword{Text: "emergency plumber", Category: models.CategorySecondary})
	result.Stats.TotalKeywords = 2
	require.NoError(t, store.WriteResults(ctx, result))

	require.NoError(t, store.UpdateJobStatus(ctx, job.ID, models.JobStatusCompleted, ""))

	loaded, err := store.GetResults(ctx, job.ID)
	require.NoError(t, err)
	assert.Len(t, loaded.Keywords, 2)
	assert.Equal(t, 2, loaded.Stats.TotalKeywords)

	// Stats ride on the job record too
	loadedJob, err := store.GetJob(ctx, job.ID)
	require.NoError(t, err)
	require.NotNil(t, loadedJob.Stats)
	assert.Equal(t, 2, loadedJob.Stats.TotalKeywords)
}

func TestAppendAndGetLogsOrdered(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	job := newTestJob("job_logs")
	require.NoError(t, store.CreateJob(ctx, job))

	store.AppendLog(ctx, models.NewJobLogEntry(job.ID, models.PhaseScraping, models.LogLevelInfo, "first"))
	store.AppendLog(ctx, models.NewJobLogEntry(job.ID, models.PhaseScraping, models.LogLevelWarning, "second"))
	store.AppendLog(ctx, models.NewJobLogEntry(job.ID, models.PhaseAIAnalysis, models.LogLevelInfo, "third"))

	logs, err := store.GetLogs(ctx, job.ID, 0)
	require.NoError(t, err)
	require.Len(t, logs, 3)
	assert.Equal(t, "first", logs[0].Message)
	assert.Equal(t, "second", logs[1].Message)
	assert.Equal(t, "third", logs[2].Message)

	limited, err := store.GetLogs(ctx, job.ID, 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestAppendLogCarriesDetail(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	job := newTestJob("job_log_detail")
	require.NoError(t, store.CreateJob(ctx, job))

	store.AppendLog(ctx, models.NewJobLogEntry(job.ID, models.PhaseRankingCheck, models.LogLevelWarning,
		"2 keywords have unknown ranking").
		WithDetail(map[string]any{"unknown": 2, "total": 5}))
	store.AppendLog(ctx, models.NewJobLogEntry(job.ID, models.PhaseRankingCheck, models.LogLevelInfo, "no detail"))

	logs, err := store.GetLogs(ctx, job.ID, 0)
	require.NoError(t, err)
	require.Len(t, logs, 2)

	require.NotNil(t, logs[0].Detail)
	assert.EqualValues(t, 2, logs[0].Detail["unknown"])
	assert.EqualValues(t, 5, logs[0].Detail["total"])
	assert.Nil(t, logs[1].Detail)
}

func TestListJobsFilterAndOrder(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"job_a", "job_b", "job_c"} {
		job := newTestJob(id)
		require.NoError(t, store.CreateJob(ctx, job))
		time.Sleep(5 * time.Millisecond)
	}
	require.NoError(t, store.UpdateJobStatus(ctx, "job_b", models.JobStatusRunning, ""))

	all, err := store.ListJobs(ctx, "", 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "job_c", all[0].ID)

	running, err := store.ListJobs(ctx, models.JobStatusRunning, 0)
	require.NoError(t, err)
	require.Len(t, running, 1)
	assert.Equal(t, "job_b", running[0].ID)
}

func TestCountJobsByStatus(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.CreateJob(ctx, newTestJob("job_p1")))
	require.NoError(t, store.CreateJob(ctx, newTestJob("job_p2")))
	require.NoError(t, store.CreateJob(ctx, newTestJob("job_r1")))
	require.NoError(t, store.UpdateJobStatus(ctx, "job_r1", models.JobStatusRunning, ""))

	counts, err := store.CountJobsByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, counts[models.JobStatusPending])
	assert.Equal(t, 1, counts[models.JobStatusRunning])
	assert.Equal(t, 0, counts[models.JobStatusCompleted])
}

func TestGetStaleJobs(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	stale := newTestJob("job_stale")
	require.NoError(t, store.CreateJob(ctx, stale))
	require.NoError(t, store.UpdateJobStatus(ctx, stale.ID, models.JobStatusRunning, ""))

	fresh := newTestJob("job_fresh")
	require.NoError(t, store.CreateJob(ctx, fresh))
	require.NoError(t, store.UpdateJobStatus(ctx, fresh.ID, models.JobStatusRunning, ""))

	time.Sleep(20 * time.Millisecond)
	cutoff := time.Now().UTC()
	// Fresh job heartbeats after the cutoff
	require.NoError(t, store.UpdatePhase(ctx, fresh.ID, models.PhaseScraping, models.PhaseState{
		Status:   models.PhaseStatusRunning,
		Progress: 10,
	}))

	found, err := store.GetStaleJobs(ctx, cutoff)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, stale.ID, found[0].ID)
}

func TestDeleteJobRemovesLogsAndResults(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	job := newTestJob("job_delete")
	require.NoError(t, store.CreateJob(ctx, job))
	require.NoError(t, store.UpdateJobStatus(ctx, job.ID, models.JobStatusRunning, ""))
	store.AppendLog(ctx, models.NewJobLogEntry(job.ID, models.PhaseScraping, models.LogLevelInfo, "scraped"))
	require.NoError(t, store.WriteResults(ctx, &models.AnalysisResult{JobID: job.ID}))
	require.NoError(t, store.UpdateJobStatus(ctx, job.ID, models.JobStatusCompleted, ""))

	require.NoError(t, store.DeleteJob(ctx, job.ID))

	_, err := store.GetJob(ctx, job.ID)
	assert.ErrorIs(t, err, models.ErrNotFound)
	logs, err := store.GetLogs(ctx, job.ID, 0)
	require.NoError(t, err)
	assert.Empty(t, logs)

	assert.ErrorIs(t, store.DeleteJob(ctx, job.ID), models.ErrNotFound)
}
