package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"heystak-spider/internal/domain"
	"heystak-spider/internal/domain/model"
	"heystak-spider/internal/domain/ports/adapter"
	"heystak-spider/internal/domain/ports/repository"
	"heystak-spider/internal/infra/logging"
	"heystak-spider/internal/infra/metrics"

	"github.com/rs/zerolog"
)

// progressBatch bounds store write volume: progress is flushed every this
// many items instead of per item.
const progressBatch = 5

// Pipeline executes the fixed per-job step sequence:
// scrape -> analyze -> persist raw -> persist store -> completion.
// Analyzer, raw store, ad store and notifier are optional; a nil
// collaborator skips its step.
type Pipeline struct {
	repo     repository.JobRepository
	scraper  adapter.ScrapeProvider
	analyzer adapter.Analyzer
	rawStore adapter.RawStore
	adStore  adapter.AdStore
	notifier adapter.Notifier

	pollInterval time.Duration
	maxPolls     int

	log *zerolog.Logger
}

func NewPipeline(
	repo repository.JobRepository,
	scraper adapter.ScrapeProvider,
	analyzer adapter.Analyzer,
	rawStore adapter.RawStore,
	adStore adapter.AdStore,
	notifier adapter.Notifier,
	pollInterval time.Duration,
	maxPolls int,
	log *zerolog.Logger,
) *Pipeline {
	if pollInterval <= 0 {
		pollInterval = time.Second
	}
	if maxPolls <= 0 {
		maxPolls = 3600
	}
	return &Pipeline{
		repo:         repo,
		scraper:      scraper,
		analyzer:     analyzer,
		rawStore:     rawStore,
		adStore:      adStore,
		notifier:     notifier,
		pollInterval: pollInterval,
		maxPolls:     maxPolls,
		log:          log,
	}
}

var _ JobRunner = (*Pipeline)(nil)

// Run drives one job through every step. A returned error means the job
// must be marked failed by the caller; per-item analysis and insert
// failures are absorbed here and only counted.
func (p *Pipeline) Run(ctx context.Context, job *model.Job) error {
	ctx = logging.WithJobID(ctx, job.ID)
	if job.PageID != "" {
		ctx = logging.WithPageID(ctx, job.PageID)
	}
	defer logging.TraceDuration(logging.With(ctx, p.log), "Pipeline.Run")()

	items, err := p.scrape(ctx, job)
	if err != nil {
		p.notifyFailure(job, err)
		return err
	}

	analyzed := p.analyze(ctx, job, items)

	if job.SaveRaw && p.rawStore != nil {
		if err := p.rawStore.SaveBatch(ctx, job.ID, items); err != nil {
			p.log.Error().Err(err).Str("job_id", job.ID).Msg("raw batch save failed; continuing")
		}
	}

	inserted, failed := p.persist(ctx, job, items)

	return p.complete(ctx, job, len(items), analyzed, inserted, failed)
}

// scrape submits the run and polls it on a fixed interval up to maxPolls.
// Zero results is a failure: the job exists to find ads.
func (p *Pipeline) scrape(ctx context.Context, job *model.Job) ([]*model.AdItem, error) {
	req := adapter.ScrapeRequest{
		URL:       job.URL,
		MaxItems:  job.MaxItems,
		StartDate: job.StartDate,
		EndDate:   job.EndDate,
	}
	runID, err := p.scraper.Submit(ctx, req)
	if err != nil {
		return nil, mapScrapeError(err)
	}
	p.progress(job.ID, model.ProgressPatch{Message: strPtr("Scrape run submitted")})

	lastReported := -1
	for i := 0; i < p.maxPolls; i++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(p.pollInterval):
		}

		status, err := p.scraper.PollStatus(ctx, runID)
		if err != nil {
			return nil, mapScrapeError(err)
		}
		switch status.State {
		case adapter.RunStateSucceeded:
			items, err := p.scraper.FetchResults(ctx, runID)
			if err != nil {
				return nil, mapScrapeError(err)
			}
			if len(items) == 0 {
				return nil, domain.ErrNoAdsFound
			}
			n := len(items)
			pending := n
			p.progress(job.ID, model.ProgressPatch{
				Scraped: &n,
				Pending: &pending,
				Message: strPtr(fmt.Sprintf("Scraped %d ads", n)),
			})
			metrics.AddScrapedItems(n)
			return items, nil
		case adapter.RunStateFailed, adapter.RunStateAborted:
			msg := status.Message
			if msg == "" {
				msg = string(status.State)
			}
			return nil, fmt.Errorf("scrape run %s: %s", status.State, msg)
		default:
			if status.ItemsProcessed != lastReported {
				lastReported = status.ItemsProcessed
				p.progress(job.ID, model.ProgressPatch{
					Scraped: &status.ItemsProcessed,
					Message: strPtr(fmt.Sprintf("Scraping... %d items so far", status.ItemsProcessed)),
				})
			}
		}
	}
	return nil, domain.ErrScrapeTimeout
}

// analyze runs the per-item analyzer. Individual failures are logged and
// skipped; they never abort the batch.
func (p *Pipeline) analyze(ctx context.Context, job *model.Job, items []*model.AdItem) int {
	if !job.AutoAnalyze || p.analyzer == nil {
		return 0
	}
	analyzed := 0
	for i, item := range items {
		mode := analysisModeFor(job, item)
		res, err := p.analyzer.AnalyzeAd(ctx, item, mode)
		if err != nil {
			p.log.Warn().Err(err).Str("job_id", job.ID).Str("ad", item.AdArchiveID).Msg("analysis failed; skipping item")
			metrics.IncAnalysis("error")
			continue
		}
		if res != nil {
			item.Analysis = res
			analyzed++
			metrics.IncAnalysis("ok")
		}
		if (i+1)%progressBatch == 0 || i == len(items)-1 {
			n := analyzed
			p.progress(job.ID, model.ProgressPatch{
				Analyzed: &n,
				Message:  strPtr(fmt.Sprintf("Analyzed %d/%d ads", i+1, len(items))),
			})
		}
	}
	return analyzed
}

// persist batch-inserts items into the relational store. Per-item insert
// failures increment the failed count but do not abort.
func (p *Pipeline) persist(ctx context.Context, job *model.Job, items []*model.AdItem) (inserted, failed int) {
	if !job.SaveStore || p.adStore == nil {
		return 0, 0
	}

	brandIDs := map[string]string{}
	for i, item := range items {
		brandID, ok := brandIDs[item.PageID]
		if !ok {
			id, err := p.adStore.UpsertBrand(ctx, item.PageID, item.PageName)
			if err != nil {
				p.log.Warn().Err(err).Str("page_id", item.PageID).Msg("brand upsert failed")
				failed++
				continue
			}
			brandIDs[item.PageID] = id
			brandID = id
		}
		if err := p.adStore.InsertAd(ctx, brandID, item); err != nil {
			p.log.Warn().Err(err).Str("ad", item.AdArchiveID).Msg("ad insert failed")
			failed++
		} else {
			inserted++
		}
		if (i+1)%progressBatch == 0 || i == len(items)-1 {
			ins, fld := inserted, failed
			pending := len(items) - (i + 1)
			p.progress(job.ID, model.ProgressPatch{
				Inserted: &ins,
				Failed:   &fld,
				Pending:  &pending,
				Message:  strPtr(fmt.Sprintf("Saved %d/%d ads", i+1, len(items))),
			})
		}
	}
	return inserted, failed
}

// complete marks the job done and fires best-effort side effects. Side
// effect failures are logged and never revert the completed status.
func (p *Pipeline) complete(ctx context.Context, job *model.Job, scraped, analyzed, inserted, failed int) error {
	summary := &model.RunSummary{Scraped: scraped, Analyzed: analyzed, Inserted: inserted}
	msg := fmt.Sprintf("Completed: %d scraped, %d analyzed, %d inserted", scraped, analyzed, inserted)
	if failed > 0 {
		msg = fmt.Sprintf("%s, %d failed", msg, failed)
	}
	if err := p.repo.SetCompleted(ctx, job.ID, summary, msg); err != nil {
		p.log.Error().Err(err).Str("job_id", job.ID).Msg("could not persist completed state")
	}

	if job.PageID != "" && inserted > 0 && p.adStore != nil {
		if err := p.adStore.MarkScrapeRequestDone(ctx, job.PageID); err != nil {
			p.log.Warn().Err(err).Str("page_id", job.PageID).Msg("could not close scrape request")
		}
		if _, err := p.adStore.UpsertBrand(ctx, job.PageID, ""); err != nil {
			p.log.Warn().Err(err).Str("page_id", job.PageID).Msg("brand relation refresh failed")
		}
	}
	if p.notifier != nil {
		done := *job
		done.Status = model.JobStatusCompleted
		done.Result = summary
		if err := p.notifier.NotifyJobCompleted(ctx, &done); err != nil {
			p.log.Warn().Err(err).Str("job_id", job.ID).Msg("completion notification failed")
		}
	}
	return nil
}

func (p *Pipeline) notifyFailure(job *model.Job, cause error) {
	if p.notifier == nil {
		return
	}
	failed := *job
	failed.Status = model.JobStatusFailed
	failed.Error = cause.Error()
	if err := p.notifier.NotifyJobFailed(context.Background(), &failed); err != nil {
		p.log.Warn().Err(err).Str("job_id", job.ID).Msg("failure notification failed")
	}
}

// progress forwards a throttled progress write; store outages are logged
// and swallowed so a flaky store cannot fail a healthy pipeline.
func (p *Pipeline) progress(jobID string, patch model.ProgressPatch) {
	if err := p.repo.UpdateProgress(context.Background(), jobID, patch); err != nil {
		p.log.Debug().Err(err).Str("job_id", jobID).Msg("progress write skipped")
	}
}

// mapScrapeError translates provider errors into user-facing messages.
func mapScrapeError(err error) error {
	if errors.Is(err, domain.ErrUsageLimit) {
		return errors.New("scraping quota exhausted for this billing period; try again later")
	}
	return err
}

// analysisModeFor derives the per-item mode. An explicit job mode wins;
// otherwise the creative's assets decide.
func analysisModeFor(job *model.Job, item *model.AdItem) model.AnalysisMode {
	switch model.AnalysisMode(job.AnalysisMode) {
	case model.AnalysisModeText, model.AnalysisModeImage, model.AnalysisModeVideo:
		return model.AnalysisMode(job.AnalysisMode)
	}
	switch {
	case item.HasVideo():
		return model.AnalysisModeVideo
	case item.HasImage():
		return model.AnalysisModeImage
	default:
		return model.AnalysisModeText
	}
}

func strPtr(s string) *string { return &s }
