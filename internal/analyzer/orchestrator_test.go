package analyzer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/reperio/internal/common"
	"github.com/ternarybob/reperio/internal/interfaces"
	"github.com/ternarybob/reperio/internal/models"
)

// memStore is an in-memory JobStore with the same transition semantics as
// the badger-backed implementation
type memStore struct {
	mu      sync.Mutex
	jobs    map[string]*models.AnalysisJob
	logs    map[string][]*models.JobLogEntry
	results map[string]*models.AnalysisResult
}

func newMemStore() *memStore {
	return &memStore{
		jobs:    make(map[string]*models.AnalysisJob),
		logs:    make(map[string][]*models.JobLogEntry),
		results: make(map[string]*models.AnalysisResult),
	}
}

func (s *memStore) CreateJob(ctx context.Context, job *models.AnalysisJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *job
	s.jobs[job.ID] = &copied
	return nil
}

func (s *memStore) UpdateJobStatus(ctx context.Context, jobID string, status models.JobStatus, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return models.ErrNotFound
	}
	if !job.Status.CanTransitionTo(status) {
		if job.Status.IsTerminal() {
			return models.ErrJobTerminal
		}
		return models.ErrInvalidInput
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
	}
	return nil
}

func (s *memStore) UpdatePhase(ctx context.Context, jobID string, key models.PhaseKey, state models.PhaseState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return models.ErrNotFound
	}
	if job.Status.IsTerminal() {
		return nil
	}
	job.Phases[key] = &state
	if state.Status == models.PhaseStatusRunning {
		job.CurrentPhase = key
	}
	job.LastHeartbeat = time.Now().UTC()
	return nil
}

func (s *memStore) AppendLog(ctx context.Context, entry *models.JobLogEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs[entry.JobID] = append(s.logs[entry.JobID], entry)
}

func (s *memStore) WriteResults(ctx context.Context, result *models.AnalysisResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results[result.JobID] = result
	if job, ok := s.jobs[result.JobID]; ok {
		stats := result.Stats
		job.Stats = &stats
	}
	return nil
}

func (s *memStore) GetJob(ctx context.Context, jobID string) (*models.AnalysisJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return nil, models.ErrNotFound
	}
	copied := *job
	copied.Phases = make(map[models.PhaseKey]*models.PhaseState, len(job.Phases))
	for k, v := range job.Phases {
		state := *v
		copied.Phases[k] = &state
	}
	return &copied, nil
}

func (s *memStore) GetLogs(ctx context.Context, jobID string, limit int) ([]*models.JobLogEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	logs := s.logs[jobID]
	if limit > 0 && len(logs) > limit {
		logs = logs[:limit]
	}
	return append([]*models.JobLogEntry(nil), logs...), nil
}

func (s *memStore) GetResults(ctx context.Context, jobID string) (*models.AnalysisResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return nil, models.ErrNotFound
	}
	if job.Status != models.JobStatusCompleted {
		return nil, models.ErrNotReady
	}
	result, ok := s.results[jobID]
	if !ok {
		return nil, models.ErrNotFound
	}
	return result, nil
}

func (s *memStore) ListJobs(ctx context.Context, status models.JobStatus, limit int) ([]*models.AnalysisJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.AnalysisJob
	for _, job := range s.jobs {
		if status == "" || job.Status == status {
			copied := *job
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (s *memStore) CountJobsByStatus(ctx context.Context) (map[models.JobStatus]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	counts := make(map[models.JobStatus]int)
	for _, job := range s.jobs {
		counts[job.Status]++
	}
	return counts, nil
}

func (s *memStore) GetStaleJobs(ctx context.Context, cutoff time.Time) ([]*models.AnalysisJob, error) {
	return nil, nil
}

func (s *memStore) DeleteJob(ctx context.Context, jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.jobs, jobID)
	delete(s.logs, jobID)
	delete(s.results, jobID)
	return nil
}

var _ interfaces.JobStore = (*memStore)(nil)

// Mock collaborators with overridable behavior

type mockScraper struct {
	discoverFunc func(ctx context.Context, url string, maxPages int) ([]string, error)
	scrapeFunc   func(ctx context.Context, url string, renderJS bool) (*models.PageContent, error)
}

func (m *mockScraper) DiscoverPages(ctx context.Context, url string, maxPages int) ([]string, error) {
	if m.discoverFunc != nil {
		return m.discoverFunc(ctx, url, maxPages)
	}
	return []string{url}, nil
}

func (m *mockScraper) ScrapePage(ctx context.Context, url string, renderJS bool) (*models.PageContent, error) {
	if m.scrapeFunc != nil {
		return m.scrapeFunc(ctx, url, renderJS)
	}
	return &models.PageContent{
		URL:      url,
		Title:    "Acme Plumbing - Emergency Repairs",
		Headings: []string{"24/7 Emergency Repairs"},
		Markdown: "We fix pipes.",
	}, nil
}

type mockGenerator struct {
	generateFunc func(ctx context.Context, content *models.WebsiteContent, maxKeywords int) ([]models.Keyword, error)
}

func (m *mockGenerator) GenerateKeywords(ctx context.Context, content *models.WebsiteContent, maxKeywords int) ([]models.Keyword, error) {
	if m.generateFunc != nil {
		return m.generateFunc(ctx, content, maxKeywords)
	}
	return []models.Keyword{
		{Text: "plumber", Relevance: 95, Category: models.CategoryPrimary, Intent: models.IntentTransactional},
		{Text: "emergency plumber", Relevance: 85, Category: models.CategorySecondary, Intent: models.IntentTransactional},
		{Text: "burst pipe repair cost", Relevance: 70, Category: models.CategoryLongTail, Intent: models.IntentInformational},
	}, nil
}

func (m *mockGenerator) ProviderName() string { return "mock" }

type mockRankChecker struct {
	checkFunc func(ctx context.Context, keyword, domain, engine string) (*interfaces.RankResult, error)
}

func (m *mockRankChecker) CheckRank(ctx context.Context, keyword, domain, engine string) (*interfaces.RankResult, error) {
	if m.checkFunc != nil {
		return m.checkFunc(ctx, keyword, domain, engine)
	}
	if keyword == "plumber" {
		return &interfaces.RankResult{
			Status:   models.RankStatusRanked,
			Position: 7,
			URL:      "https://" + domain + "/",
			Snippet:  "Acme Plumbing",
		}, nil
	}
	return &interfaces.RankResult{Status: models.RankStatusNotFound}, nil
}

type mockCompetitors struct {
	findFunc func(ctx context.Context, query string, limit int) ([]models.Competitor, error)
}

func (m *mockCompetitors) FindCompetitors(ctx context.Context, query string, limit int) ([]models.Competitor, error) {
	if m.findFunc != nil {
		return m.findFunc(ctx, query, limit)
	}
	return []models.Competitor{{Name: "Rival Plumbing", Rating: 4.5, Reviews: 120}}, nil
}

func testConfig() common.AnalysisConfig {
	return common.AnalysisConfig{
		MaxConcurrentJobs:    2,
		PhaseWeights:         []int{20, 20, 20, 30, 10},
		BatchSize:            5,
		BatchConcurrency:     3,
		DefaultMaxKeywords:   30,
		DefaultMaxPages:      3,
		OpportunityMinVolume: 500,
	}
}

func newTestOrchestrator(store interfaces.JobStore, services Collaborators) *Orchestrator {
	return NewOrchestrator(store, services, testConfig(), arbor.NewLogger())
}

func defaultCollaborators() Collaborators {
	return Collaborators{
		Scraper:     &mockScraper{},
		Generator:   &mockGenerator{},
		RankChecker: &mockRankChecker{},
		Competitors: &mockCompetitors{},
	}
}

// waitForTerminal polls until the job reaches a terminal status
func waitForTerminal(t *testing.T, store interfaces.JobStore, jobID string) *models.AnalysisJob {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		job, err := store.GetJob(context.Background(), jobID)
		require.NoError(t, err)
		if job.Status.IsTerminal() {
			return job
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("job never reached a terminal status")
	return nil
}

func hasLogContaining(logs []*models.JobLogEntry, level, substr string) bool {
	for _, entry := range logs {
		if (level == "" || entry.Level == level) && strings.Contains(entry.Message, substr) {
			return true
		}
	}
	return false
}

func TestSubmitRejectsInvalidInput(t *testing.T) {
	o := newTestOrchestrator(newMemStore(), defaultCollaborators())

	_, err := o.Submit(context.Background(), "not a url at all ://", models.AnalysisOptions{})
	assert.ErrorIs(t, err, models.ErrInvalidInput)

	_, err = o.Submit(context.Background(), "https://example.com", models.AnalysisOptions{MaxPages: 500})
	assert.ErrorIs(t, err, models.ErrInvalidInput)

	_, err = o.Submit(context.Background(), "https://example.com", models.AnalysisOptions{SearchEngine: "altavista"})
	assert.ErrorIs(t, err, models.ErrInvalidInput)
}

func TestSubmitAppliesDefaults(t *testing.T) {
	store := newMemStore()
	o := newTestOrchestrator(store, defaultCollaborators())

	job, err := o.Submit(context.Background(), "example.com", models.AnalysisOptions{})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(job.ID, "job_"))
	assert.Equal(t, "https://example.com", job.URL)
	assert.Equal(t, "example.com", job.Domain)
	assert.Equal(t, 3, job.Options.MaxPages)
	assert.Equal(t, 30, job.Options.MaxKeywords)
	assert.Equal(t, "google", job.Options.SearchEngine)

	waitForTerminal(t, store, job.ID)
}

func TestPipelineHappyPath(t *testing.T) {
	store := newMemStore()
	o := newTestOrchestrator(store, defaultCollaborators())

	job, err := o.Submit(context.Background(), "https://acmeplumbing.com", models.AnalysisOptions{MaxPages: 2})
	require.NoError(t, err)

	final := waitForTerminal(t, store, job.ID)
	assert.Equal(t, models.JobStatusCompleted, final.Status)
	assert.Equal(t, 100, final.Progress)
	assert.False(t, final.CompletedAt.IsZero())
	require.NotNil(t, final.Stats)
	assert.Equal(t, 3, final.Stats.TotalKeywords)

	for _, key := range models.PhaseOrder {
		assert.Equal(t, models.PhaseStatusCompleted, final.Phase(key).Status, string(key))
	}

	result, err := store.GetResults(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.KeywordSourceLLM, result.KeywordSource)
	assert.Equal(t, models.CompetitorsAvailable, result.CompetitorStatus)
	assert.Len(t, result.Competitors, 1)

	var plumber *models.Keyword
	for i := range result.Keywords {
		if result.Keywords[i].Text == "plumber" {
			plumber = &result.Keywords[i]
		}
		// Every keyword was enriched
		assert.Greater(t, result.Keywords[i].SearchVolume, 0, result.Keywords[i].Text)
	}
	require.NotNil(t, plumber)
	assert.Equal(t, models.RankStatusRanked, plumber.RankStatus)
	assert.Equal(t, 7, plumber.RankPosition)
}

func TestScraperFailureFailsJob(t *testing.T) {
	store := newMemStore()
	services := defaultCollaborators()
	services.Scraper = &mockScraper{
		scrapeFunc: func(ctx context.Context, url string, renderJS bool) (*models.PageContent, error) {
			return nil, &models.ScrapeError{URL: url, Err: errors.New("connection refused")}
		},
	}
	o := newTestOrchestrator(store, services)

	job, err := o.Submit(context.Background(), "https://unreachable.example", models.AnalysisOptions{MaxPages: 1})
	require.NoError(t, err)

	final := waitForTerminal(t, store, job.ID)
	assert.Equal(t, models.JobStatusFailed, final.Status)
	assert.Contains(t, final.Error, "connection refused")

	assert.Equal(t, models.PhaseStatusFailed, final.Phase(models.PhaseScraping).Status)
	// Later phases never ran
	for _, key := range models.PhaseOrder[1:] {
		assert.Equal(t, models.PhaseStatusPending, final.Phase(key).Status, string(key))
	}

	_, err = store.GetResults(context.Background(), job.ID)
	assert.Error(t, err)
}

func TestGeneratorFailureFallsBack(t *testing.T) {
	store := newMemStore()
	services := defaultCollaborators()
	services.Generator = &mockGenerator{
		generateFunc: func(ctx context.Context, content *models.WebsiteContent, maxKeywords int) ([]models.Keyword, error) {
			return nil, &models.GenerationError{Provider: "mock", Err: errors.New("rate limited")}
		},
	}
	o := newTestOrchestrator(store, services)

	job, err := o.Submit(context.Background(), "https://acmeplumbing.com", models.AnalysisOptions{MaxPages: 1})
	require.NoError(t, err)

	final := waitForTerminal(t, store, job.ID)
	assert.Equal(t, models.JobStatusCompleted, final.Status)
	assert.Equal(t, models.PhaseStatusCompleted, final.Phase(models.PhaseAIAnalysis).Status)

	result, err := store.GetResults(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.KeywordSourceFallback, result.KeywordSource)
	assert.NotEmpty(t, result.Keywords)

	logs, err := store.GetLogs(context.Background(), job.ID, 0)
	require.NoError(t, err)
	assert.True(t, hasLogContaining(logs, models.LogLevelWarning, "fallback"),
		"expected a warning log about fallback extraction")
}

func TestCompetitorFailureDegradesGracefully(t *testing.T) {
	store := newMemStore()
	services := defaultCollaborators()
	services.Competitors = &mockCompetitors{
		findFunc: func(ctx context.Context, query string, limit int) ([]models.Competitor, error) {
			return nil, errors.New("places API quota exceeded")
		},
	}
	o := newTestOrchestrator(store, services)

	job, err := o.Submit(context.Background(), "https://acmeplumbing.com", models.AnalysisOptions{MaxPages: 1})
	require.NoError(t, err)

	final := waitForTerminal(t, store, job.ID)
	assert.Equal(t, models.JobStatusCompleted, final.Status)

	result, err := store.GetResults(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CompetitorsUnavailable, result.CompetitorStatus)
	assert.Empty(t, result.Competitors)

	logs, err := store.GetLogs(context.Background(), job.ID, 0)
	require.NoError(t, err)
	assert.True(t, hasLogContaining(logs, models.LogLevelWarning, "competitor"),
		"expected a warning log about the competitor lookup")
}

func TestRankCheckerFailureLeavesUnknown(t *testing.T) {
	store := newMemStore()
	services := defaultCollaborators()
	services.RankChecker = &mockRankChecker{
		checkFunc: func(ctx context.Context, keyword, domain, engine string) (*interfaces.RankResult, error) {
			return nil, &models.RankCheckError{Keyword: keyword, Err: errors.New("serp timeout")}
		},
	}
	o := newTestOrchestrator(store, services)

	job, err := o.Submit(context.Background(), "https://acmeplumbing.com", models.AnalysisOptions{MaxPages: 1})
	require.NoError(t, err)

	final := waitForTerminal(t, store, job.ID)
	assert.Equal(t, models.JobStatusCompleted, final.Status)

	result, err := store.GetResults(context.Background(), job.ID)
	require.NoError(t, err)
	for _, kw := range result.Keywords {
		assert.Equal(t, models.RankStatusUnknown, kw.RankStatus, kw.Text)
	}
}

func TestCancelRunningJob(t *testing.T) {
	store := newMemStore()
	services := defaultCollaborators()

	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	services.Scraper = &mockScraper{
		scrapeFunc: func(ctx context.Context, url string, renderJS bool) (*models.PageContent, error) {
			once.Do(func() { close(started) })
			select {
			case <-release:
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			return &models.PageContent{URL: url, Title: "slow page"}, nil
		},
	}
	o := newTestOrchestrator(store, services)

	job, err := o.Submit(context.Background(), "https://slow.example", models.AnalysisOptions{MaxPages: 1})
	require.NoError(t, err)

	<-started
	require.NoError(t, o.Cancel(context.Background(), job.ID))
	close(release)

	final := waitForTerminal(t, store, job.ID)
	assert.Equal(t, models.JobStatusCancelled, final.Status)

	// Cancelling again reports the job is already terminal
	assert.ErrorIs(t, o.Cancel(context.Background(), job.ID), models.ErrJobTerminal)
}

func TestCancelUnknownJob(t *testing.T) {
	o := newTestOrchestrator(newMemStore(), defaultCollaborators())
	assert.ErrorIs(t, o.Cancel(context.Background(), "job_missing"), models.ErrNotFound)
}

func TestConcurrencyCapHoldsSubmissionsPending(t *testing.T) {
	store := newMemStore()
	services := defaultCollaborators()

	release := make(chan struct{})
	services.Scraper = &mockScraper{
		scrapeFunc: func(ctx context.Context, url string, renderJS bool) (*models.PageContent, error) {
			select {
			case <-release:
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			return &models.PageContent{URL: url, Title: "page"}, nil
		},
	}
	o := newTestOrchestrator(store, services)

	var jobs []*models.AnalysisJob
	for i := 0; i < 4; i++ {
		job, err := o.Submit(context.Background(), fmt.Sprintf("https://site%d.example", i), models.AnalysisOptions{MaxPages: 1})
		require.NoError(t, err)
		jobs = append(jobs, job)
	}

	// Cap is 2: at most two jobs can be running at once
	require.Eventually(t, func() bool {
		counts, err := store.CountJobsByStatus(context.Background())
		require.NoError(t, err)
		return counts[models.JobStatusRunning] == 2 && counts[models.JobStatusPending] == 2
	}, 2*time.Second, 10*time.Millisecond)

	close(release)
	for _, job := range jobs {
		final := waitForTerminal(t, store, job.ID)
		assert.Equal(t, models.JobStatusCompleted, final.Status)
	}
}
