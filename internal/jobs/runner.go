package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/tagsapp/catalog-scraper/internal/catalog"
	"github.com/tagsapp/catalog-scraper/internal/models"
	"github.com/tagsapp/catalog-scraper/internal/ratelimit"
)

// Deduper answers whether a product URL is already in the catalog.
type Deduper interface {
	Exists(ctx context.Context, sourceURL string) bool
}

// Enricher fills in a candidate's missing attributes from its detail page.
type Enricher interface {
	Enrich(ctx context.Context, candidate models.ProductCandidate, storeURL string, storeCategories []string) models.EnrichedProduct
}

// Persister upserts an enriched product into the catalog.
type Persister interface {
	Save(ctx context.Context, p models.EnrichedProduct) (*catalog.SaveResult, error)
}

// Historian records per-store scrape history rows. Optional.
type Historian interface {
	RecordScrape(ctx context.Context, rec catalog.ScrapeRecord)
}

// outcomeRecorder is implemented by the adaptive rate limiter.
type outcomeRecorder interface {
	RecordSuccess()
	RecordError()
}

// Runner drives one job's per-candidate loop on a detached goroutine. It is
// the only writer to a running job's counters; everything it observes about
// the outside world goes through the registry.
type Runner struct {
	registry  *Registry
	dedup     Deduper
	enricher  Enricher
	persister Persister
	limiter   ratelimit.Limiter
	history   Historian
	logger    *slog.Logger
}

func NewRunner(registry *Registry, dedup Deduper, enricher Enricher, persister Persister, limiter ratelimit.Limiter, history Historian, logger *slog.Logger) *Runner {
	return &Runner{
		registry:  registry,
		dedup:     dedup,
		enricher:  enricher,
		persister: persister,
		limiter:   limiter,
		history:   history,
		logger:    logger.With("component", "job_runner"),
	}
}

// Launch starts the job's processing loop detached from the caller. The
// caller's request context is deliberately not used; the run outlives it.
func (r *Runner) Launch(jobID string) {
	go r.run(context.Background(), jobID)
}

func (r *Runner) run(ctx context.Context, jobID string) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("job panicked", "job_id", jobID, "panic", rec)
			r.registry.Update(jobID, func(j *Job) {
				now := time.Now()
				j.Status = StatusError
				j.Error = fmt.Sprintf("internal failure: %v", rec)
				j.EndedAt = &now
			})
		}
	}()

	job, err := r.registry.Get(jobID)
	if err != nil {
		r.logger.Error("job vanished before start", "job_id", jobID)
		return
	}

	r.registry.Update(jobID, func(j *Job) {
		j.Status = StatusProcessing
		j.LastMessage = "scraping started"
	})

	r.logger.Info("job started", "job_id", jobID, "store_url", job.StoreURL,
		"candidates", len(job.Candidates), "target", job.TargetCount)

	for _, candidate := range job.Candidates {
		current, err := r.registry.Get(jobID)
		if err != nil {
			return
		}
		if current.Status == StatusStopped {
			r.finish(ctx, jobID)
			return
		}
		if current.SavedCount >= current.TargetCount {
			break
		}

		if r.limiter != nil {
			if err := r.limiter.Wait(ctx); err != nil {
				break
			}
		}

		r.processCandidate(ctx, jobID, job, candidate)
	}

	r.finish(ctx, jobID)
}

func (r *Runner) processCandidate(ctx context.Context, jobID string, job Job, candidate models.ProductCandidate) {
	if r.dedup != nil && r.dedup.Exists(ctx, candidate.SourceURL) {
		r.registry.Update(jobID, func(j *Job) {
			j.ProcessedCount++
			j.SkippedCount++
			j.Skipped = append(j.Skipped, SkippedItem{
				Name:   candidate.DisplayName,
				URL:    candidate.SourceURL,
				Reason: "already exists",
			})
			j.LastMessage = fmt.Sprintf("skipped %s (already exists)", candidate.DisplayName)
		})
		return
	}

	enriched := r.enricher.Enrich(ctx, candidate, job.StoreURL, job.Categories)

	result, err := r.persister.Save(ctx, enriched)
	if err != nil {
		r.logger.Warn("failed to save product", "job_id", jobID,
			"url", candidate.SourceURL, "error", err)
		r.recordOutcome(false)
		r.registry.Update(jobID, func(j *Job) {
			j.ProcessedCount++
			j.SkippedCount++
			j.Skipped = append(j.Skipped, SkippedItem{
				Name:   candidate.DisplayName,
				URL:    candidate.SourceURL,
				Reason: err.Error(),
			})
			j.LastMessage = fmt.Sprintf("failed to save %s", candidate.DisplayName)
		})
		return
	}

	r.recordOutcome(true)
	r.registry.Update(jobID, func(j *Job) {
		j.ProcessedCount++
		j.SavedCount++
		j.Saved = append(j.Saved, SavedItem{
			Name: candidate.DisplayName,
			URL:  candidate.SourceURL,
		})
		j.LastMessage = fmt.Sprintf("saved %s (%s)", candidate.DisplayName, result.Outcome)
	})
}

func (r *Runner) recordOutcome(success bool) {
	rec, ok := r.limiter.(outcomeRecorder)
	if !ok {
		return
	}
	if success {
		rec.RecordSuccess()
	} else {
		rec.RecordError()
	}
}

// finish sets the terminal state. A stop observed mid-loop already made the
// job terminal; completion is recorded here otherwise.
func (r *Runner) finish(ctx context.Context, jobID string) {
	final, err := r.registry.Get(jobID)
	if err != nil {
		return
	}

	if !final.Status.Terminal() {
		final, _ = r.registry.Update(jobID, func(j *Job) {
			now := time.Now()
			j.Status = StatusCompleted
			j.EndedAt = &now
			j.LastMessage = fmt.Sprintf("finished: %d saved, %d skipped", j.SavedCount, j.SkippedCount)
		})
	}

	r.logger.Info("job finished", "job_id", jobID, "status", final.Status,
		"saved", final.SavedCount, "skipped", final.SkippedCount)

	if r.history != nil {
		finished := time.Now()
		if final.EndedAt != nil {
			finished = *final.EndedAt
		}
		r.history.RecordScrape(ctx, catalog.ScrapeRecord{
			JobID:           final.ID,
			StoreURL:        final.StoreURL,
			Status:          string(final.Status),
			ProductsSaved:   final.SavedCount,
			ProductsSkipped: final.SkippedCount,
			FinishedAt:      finished,
		})
	}
}
