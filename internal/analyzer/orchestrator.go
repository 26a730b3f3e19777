package analyzer

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/reperio/internal/common"
	"github.com/ternarybob/reperio/internal/interfaces"
	"github.com/ternarybob/reperio/internal/models"
)

// Collaborators are the external services the pipeline drives
type Collaborators struct {
	Scraper     interfaces.ScraperService
	Generator   interfaces.KeywordGenerator
	RankChecker interfaces.RankChecker
	Competitors interfaces.CompetitorFinder
}

// Orchestrator drives analysis jobs through the five-phase pipeline:
// scraping, ai_analysis, search_volume, ranking_check, data_save.
//
// One job is one supervised goroutine. A global semaphore caps how many
// run simultaneously; submissions beyond the cap stay pending until a
// slot frees. Every job leaves running state through exactly one of
// completed, failed or cancelled; an unhandled fault anywhere in the
// pipeline is converted to failed, never left stuck.
type Orchestrator struct {
	store    interfaces.JobStore
	services Collaborators
	cfg      common.AnalysisConfig
	logger   arbor.ILogger
	validate *validator.Validate

	slots chan struct{}

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

// NewOrchestrator creates the analysis orchestrator
func NewOrchestrator(store interfaces.JobStore, services Collaborators, cfg common.AnalysisConfig, logger arbor.ILogger) *Orchestrator {
	maxJobs := cfg.MaxConcurrentJobs
	if maxJobs < 1 {
		maxJobs = 1
	}
	return &Orchestrator{
		store:    store,
		services: services,
		cfg:      cfg,
		logger:   logger,
		validate: validator.New(),
		slots:    make(chan struct{}, maxJobs),
		cancels:  make(map[string]context.CancelFunc),
	}
}

// Submit validates the request, creates a pending job and starts the
// pipeline fire-and-forget. Returns the new job immediately.
func (o *Orchestrator) Submit(ctx context.Context, rawURL string, opts models.AnalysisOptions) (*models.AnalysisJob, error) {
	normalized, domain, err := common.NormalizeURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrInvalidInput, err)
	}

	if opts.MaxPages == 0 {
		opts.MaxPages = o.cfg.DefaultMaxPages
	}
	if opts.MaxKeywords == 0 {
		opts.MaxKeywords = o.cfg.DefaultMaxKeywords
	}
	if opts.SearchEngine == "" {
		opts.SearchEngine = "google"
	}
	if err := o.validate.Struct(opts); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrInvalidInput, err)
	}

	job := models.NewAnalysisJob(common.NewJobID(), normalized, domain, opts)
	if err := o.store.CreateJob(ctx, job); err != nil {
		return nil, err
	}

	jobCtx, cancel := context.WithCancel(context.Background())
	o.mu.Lock()
	o.cancels[job.ID] = cancel
	o.mu.Unlock()

	o.logger.Info().
		Str("job_id", job.ID).
		Str("url", normalized).
		Str("domain", domain).
		Msg("Analysis job submitted")

	common.SafeGo(o.logger, "analysis:"+job.ID, func() {
		defer o.release(job.ID)
		o.run(jobCtx, job.ID)
	})

	return job, nil
}

// Cancel aborts a pending or running job. Terminal jobs return
// models.ErrJobTerminal.
func (o *Orchestrator) Cancel(ctx context.Context, jobID string) error {
	job, err := o.store.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	if job.Status.IsTerminal() {
		return models.ErrJobTerminal
	}

	o.mu.Lock()
	cancel, ok := o.cancels[jobID]
	o.mu.Unlock()
	if ok {
		cancel()
	}

	// Pending jobs have no pipeline to observe the context yet; mark them
	// directly. Running jobs are marked by the pipeline on its way out, but
	// marking here makes cancellation prompt either way.
	if err := o.store.UpdateJobStatus(ctx, jobID, models.JobStatusCancelled, ""); err != nil && !errors.Is(err, models.ErrJobTerminal) {
		return err
	}
	o.store.AppendLog(ctx, models.NewJobLogEntry(jobID, "", models.LogLevelWarning, "analysis cancelled by caller"))
	return nil
}

func (o *Orchestrator) release(jobID string) {
	o.mu.Lock()
	if cancel, ok := o.cancels[jobID]; ok {
		cancel()
		delete(o.cancels, jobID)
	}
	o.mu.Unlock()
}

// run executes the whole pipeline for one job. It owns the job's slot in
// the global semaphore and the conversion of every exit path into a
// terminal status.
func (o *Orchestrator) run(ctx context.Context, jobID string) {
	// Wait for a slot; the job stays pending until one frees
	select {
	case o.slots <- struct{}{}:
		defer func() { <-o.slots }()
	case <-ctx.Done():
		o.finish(ctx, jobID, nil)
		return
	}

	defer func() {
		if r := recover(); r != nil {
			o.logger.Error().
				Str("job_id", jobID).
				Str("panic", fmt.Sprintf("%v", r)).
				Msg("Analysis pipeline panicked")
			o.finish(ctx, jobID, fmt.Errorf("internal error: %v", r))
		}
	}()

	if err := o.store.UpdateJobStatus(ctx, jobID, models.JobStatusRunning, ""); err != nil {
		// Cancelled before starting
		if errors.Is(err, models.ErrJobTerminal) {
			return
		}
		o.logger.Error().Err(err).Str("job_id", jobID).Msg("Failed to mark job running")
		return
	}

	err := o.pipeline(ctx, jobID)
	o.finish(ctx, jobID, err)
}

// finish converts the pipeline outcome into the job's terminal status
func (o *Orchestrator) finish(ctx context.Context, jobID string, err error) {
	// Status writes must survive the job context being cancelled
	bg := context.Background()

	switch {
	case err == nil && ctx.Err() == nil:
		if uerr := o.store.UpdateJobStatus(bg, jobID, models.JobStatusCompleted, ""); uerr != nil && !errors.Is(uerr, models.ErrJobTerminal) {
			o.logger.Error().Err(uerr).Str("job_id", jobID).Msg("Failed to mark job completed")
		}
	case ctx.Err() != nil:
		if uerr := o.store.UpdateJobStatus(bg, jobID, models.JobStatusCancelled, ""); uerr != nil && !errors.Is(uerr, models.ErrJobTerminal) {
			o.logger.Error().Err(uerr).Str("job_id", jobID).Msg("Failed to mark job cancelled")
		}
	default:
		if uerr := o.store.UpdateJobStatus(bg, jobID, models.JobStatusFailed, err.Error()); uerr != nil && !errors.Is(uerr, models.ErrJobTerminal) {
			o.logger.Error().Err(uerr).Str("job_id", jobID).Msg("Failed to mark job failed")
		}
	}
}

// pipeline runs phases 1-5 in order. The returned error is the fatal
// failure that should fail the job, nil on success.
func (o *Orchestrator) pipeline(ctx context.Context, jobID string) error {
	job, err := o.store.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	runner := newPhaseRunner(o.store, o.logger, jobID)

	// Phase 1: scraping (fatal)
	content, err := o.runScraping(ctx, runner, job)
	if err != nil {
		return err
	}

	// Phase 2: ai_analysis (fatal call, non-fatal result: fallback)
	keywords, source := o.runAIAnalysis(ctx, runner, job, content)
	if len(keywords) == 0 {
		return fmt.Errorf("no keywords could be derived from %s", job.URL)
	}

	// Phase 3: search_volume (non-fatal per item)
	if err := o.runSearchVolume(ctx, runner, keywords); err != nil {
		return err
	}

	// Phase 4: ranking_check (best-effort per item, optional competitor lookup)
	competitors, competitorStatus, err := o.runRankingCheck(ctx, runner, job, keywords, content)
	if err != nil {
		return err
	}

	// Phase 5: data_save (fatal)
	return runner.run(ctx, models.PhaseDataSave, "persisting analysis results", func(ctx context.Context, report reportFunc) error {
		final := make([]models.Keyword, len(keywords))
		for i, kw := range keywords {
			final[i] = *kw
		}
		stats := ComputeStats(final)
		report(50, "writing keyword set")

		result := &models.AnalysisResult{
			JobID:            jobID,
			URL:              job.URL,
			Domain:           job.Domain,
			Keywords:         final,
			Competitors:      competitors,
			CompetitorStatus: competitorStatus,
			Stats:            stats,
			Content:          content,
			KeywordSource:    source,
		}
		return o.store.WriteResults(ctx, result)
	})
}

// runScraping discovers same-domain pages and scrapes each one. Fatal:
// a job without content has nothing to analyze.
func (o *Orchestrator) runScraping(ctx context.Context, runner *phaseRunner, job *models.AnalysisJob) (*models.WebsiteContent, error) {
	content := &models.WebsiteContent{Domain: job.Domain}

	err := runner.run(ctx, models.PhaseScraping, fmt.Sprintf("scraping %s", job.URL), func(ctx context.Context, report reportFunc) error {
		pages, err := o.services.Scraper.DiscoverPages(ctx, job.URL, job.Options.MaxPages)
		if err != nil {
			return err
		}
		if len(pages) == 0 {
			return &models.ScrapeError{URL: job.URL, Err: fmt.Errorf("no pages discovered")}
		}
		report(10, fmt.Sprintf("found %d pages", len(pages)))

		scraped := 0
		for i, pageURL := range pages {
			if err := ctx.Err(); err != nil {
				return err
			}
			page, err := o.services.Scraper.ScrapePage(ctx, pageURL, job.Options.RenderJS)
			if err != nil {
				// Secondary pages are best-effort; the entry page is not
				if i == 0 {
					return err
				}
				runner.log(ctx, models.PhaseScraping, models.LogLevelWarning,
					fmt.Sprintf("skipping %s: %v", pageURL, err))
			} else {
				content.Pages = append(content.Pages, *page)
				scraped++
				if i == 0 {
					content.Title = page.Title
					content.MetaDescription = page.MetaDescription
				}
			}
			report(10+(i+1)*90/len(pages), fmt.Sprintf("processing: %s", pageURL))
		}

		if scraped == 0 {
			return &models.ScrapeError{URL: job.URL, Err: fmt.Errorf("all %d pages failed", len(pages))}
		}
		runner.log(ctx, models.PhaseScraping, models.LogLevelInfo,
			fmt.Sprintf("scraped %d of %d pages", scraped, len(pages)))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return content, nil
}

// runAIAnalysis asks the generator for keywords and falls back to
// deterministic extraction when the provider call fails outright.
// Returns the keyword set and its source, never an error: the phase
// itself cannot fail the job.
func (o *Orchestrator) runAIAnalysis(ctx context.Context, runner *phaseRunner, job *models.AnalysisJob, content *models.WebsiteContent) ([]*models.Keyword, string) {
	var keywords []models.Keyword
	source := models.KeywordSourceLLM

	_ = runner.run(ctx, models.PhaseAIAnalysis, "generating keywords", func(ctx context.Context, report reportFunc) error {
		report(10, fmt.Sprintf("prompting %s", o.services.Generator.ProviderName()))

		generated, err := o.services.Generator.GenerateKeywords(ctx, content, job.Options.MaxKeywords)
		if err != nil {
			source = models.KeywordSourceFallback
			runner.logDetail(ctx, models.PhaseAIAnalysis, models.LogLevelWarning,
				fmt.Sprintf("keyword generation failed, using fallback extraction: %v", err),
				map[string]any{"provider": o.services.Generator.ProviderName(), "error": err.Error()})
			generated = FallbackKeywords(content, job.Options.MaxKeywords)
		}

		report(80, "validating keyword payload")
		keywords = SanitizeKeywords(generated, job.Options.MaxKeywords)
		runner.log(ctx, models.PhaseAIAnalysis, models.LogLevelInfo,
			fmt.Sprintf("%d keywords from %s", len(keywords), source))
		return nil
	})

	out := make([]*models.Keyword, len(keywords))
	for i := range keywords {
		out[i] = &keywords[i]
	}
	return out, source
}

// runSearchVolume enriches every keyword with estimated volume,
// competition and CPC. The estimator is pure, but items still run through
// the batch fan-out so progress and rate-limit discipline match phase 4.
func (o *Orchestrator) runSearchVolume(ctx context.Context, runner *phaseRunner, keywords []*models.Keyword) error {
	return runner.run(ctx, models.PhaseSearchVolume, "estimating search volumes", func(ctx context.Context, report reportFunc) error {
		failed, err := RunBatches(ctx, keywords, o.batchOptions(), func(ctx context.Context, kw *models.Keyword) error {
			EnrichKeyword(kw, o.cfg.OpportunityMinVolume)
			return nil
		}, func(completed, total int, kw *models.Keyword) {
			report(completed*100/total, fmt.Sprintf("processing: %s", kw.Text))
		})
		if err != nil {
			return err
		}
		if failed > 0 {
			runner.logDetail(ctx, models.PhaseSearchVolume, models.LogLevelWarning,
				fmt.Sprintf("%d keywords could not be enriched", failed),
				map[string]any{"failed": failed, "total": len(keywords)})
		}
		return nil
	})
}

// runRankingCheck runs the two independent sub-activities concurrently:
// per-keyword rank verification through the batch fan-out, and a single
// competitor lookup. Rank failures degrade to unknown per keyword; a
// competitor failure degrades to an unavailable analysis. Neither fails
// the job.
func (o *Orchestrator) runRankingCheck(ctx context.Context, runner *phaseRunner, job *models.AnalysisJob, keywords []*models.Keyword, content *models.WebsiteContent) ([]models.Competitor, string, error) {
	var competitors []models.Competitor
	competitorStatus := models.CompetitorsUnavailable

	err := runner.run(ctx, models.PhaseRankingCheck, "checking search rankings", func(ctx context.Context, report reportFunc) error {
		var wg sync.WaitGroup

		wg.Add(1)
		go func() {
			defer wg.Done()
			query := competitorQuery(content, keywords)
			found, err := o.services.Competitors.FindCompetitors(ctx, query, 10)
			if err != nil {
				runner.log(ctx, models.PhaseRankingCheck, models.LogLevelWarning,
					fmt.Sprintf("competitor lookup unavailable: %v", err))
				return
			}
			competitors = found
			competitorStatus = models.CompetitorsAvailable
		}()

		unknown := 0
		var unknownMu sync.Mutex
		_, err := RunBatches(ctx, keywords, o.batchOptions(), func(ctx context.Context, kw *models.Keyword) error {
			res, err := o.services.RankChecker.CheckRank(ctx, kw.Text, job.Domain, job.Options.SearchEngine)
			if err != nil {
				kw.RankStatus = models.RankStatusUnknown
				unknownMu.Lock()
				unknown++
				unknownMu.Unlock()
				return err
			}
			kw.RankStatus = res.Status
			kw.RankPosition = res.Position
			kw.RankingURL = res.URL
			kw.RankSnippet = res.Snippet
			kw.IsFeatured = res.IsFeatured
			return nil
		}, func(completed, total int, kw *models.Keyword) {
			// Leave headroom for the competitor lookup to finish
			report(completed*95/total, fmt.Sprintf("processing: %s", kw.Text))
		})

		wg.Wait()
		if err != nil {
			return err
		}
		if unknown > 0 {
			runner.logDetail(ctx, models.PhaseRankingCheck, models.LogLevelWarning,
				fmt.Sprintf("%d keywords have unknown ranking", unknown),
				map[string]any{"unknown": unknown, "total": len(keywords)})
		}
		return nil
	})
	if err != nil {
		return nil, competitorStatus, err
	}
	return competitors, competitorStatus, nil
}

func (o *Orchestrator) batchOptions() BatchOptions {
	return BatchOptions{
		Size:        o.cfg.BatchSize,
		Concurrency: o.cfg.BatchConcurrency,
		Delay:       o.cfg.BatchDelay,
	}
}

// competitorQuery picks the strongest primary keyword, falling back to
// the site title
func competitorQuery(content *models.WebsiteContent, keywords []*models.Keyword) string {
	var best *models.Keyword
	for _, kw := range keywords {
		if kw.Category != models.CategoryPrimary {
			continue
		}
		if best == nil || kw.Relevance > best.Relevance {
			best = kw
		}
	}
	if best != nil {
		return best.Text
	}
	if len(keywords) > 0 {
		return keywords[0].Text
	}
	return content.Title
}
