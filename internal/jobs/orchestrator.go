package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/tagsapp/catalog-scraper/internal/models"
)

// ListingExtractor produces candidates for one collection URL.
type ListingExtractor interface {
	ExtractListing(ctx context.Context, storeURL string, maxHint int) (*models.Listing, error)
}

// Orchestrator drives a full catalog refresh: one child scrape job per known
// collection URL, strictly in sequence, aggregated onto a parent job.
type Orchestrator struct {
	registry      *Registry
	runner        *Runner
	extractor     ListingExtractor
	collections   []string
	perCollection int
	pollInterval  time.Duration
	logger        *slog.Logger
}

func NewOrchestrator(registry *Registry, runner *Runner, extractor ListingExtractor, collections []string, perCollection int, pollInterval time.Duration, logger *slog.Logger) *Orchestrator {
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}
	return &Orchestrator{
		registry:      registry,
		runner:        runner,
		extractor:     extractor,
		collections:   collections,
		perCollection: perCollection,
		pollInterval:  pollInterval,
		logger:        logger.With("component", "orchestrator"),
	}
}

func (o *Orchestrator) Collections() []string {
	return o.collections
}

// Start creates the parent job and launches the run detached.
func (o *Orchestrator) Start() Job {
	parent := o.registry.CreateParent(o.collections, o.perCollection)
	go o.run(context.Background(), parent.ID)
	return parent
}

func (o *Orchestrator) run(ctx context.Context, parentID string) {
	defer func() {
		if rec := recover(); rec != nil {
			o.logger.Error("auto-scrape panicked", "job_id", parentID, "panic", rec)
			o.registry.Update(parentID, func(j *Job) {
				now := time.Now()
				j.Status = StatusError
				j.Error = fmt.Sprintf("internal failure: %v", rec)
				j.EndedAt = &now
			})
		}
	}()

	o.registry.Update(parentID, func(j *Job) {
		j.Status = StatusProcessing
		j.LastMessage = "auto-scrape started"
	})

	o.logger.Info("auto-scrape started", "job_id", parentID, "collections", len(o.collections))

	for _, collection := range o.collections {
		parent, err := o.registry.Get(parentID)
		if err != nil {
			return
		}
		if parent.Status == StatusStopped {
			o.logger.Info("auto-scrape stopped, skipping remaining collections",
				"job_id", parentID)
			return
		}

		o.scrapeCollection(ctx, parentID, collection)
	}

	final, _ := o.registry.Update(parentID, func(j *Job) {
		now := time.Now()
		j.Status = StatusCompleted
		j.EndedAt = &now
		j.LastMessage = fmt.Sprintf("auto-scrape finished: %d saved, %d skipped over %d collections",
			j.SavedCount, j.SkippedCount, j.ProcessedPages)
	})

	o.logger.Info("auto-scrape finished", "job_id", parentID, "status", final.Status,
		"saved", final.SavedCount, "skipped", final.SkippedCount)
}

// scrapeCollection runs one collection to its terminal state. A failed
// collection is recorded on the parent and does not abort the run.
func (o *Orchestrator) scrapeCollection(ctx context.Context, parentID, collection string) {
	o.registry.Update(parentID, func(j *Job) {
		j.ProcessedPages++
		j.LastMessage = fmt.Sprintf("scraping %s", collection)
	})

	listing, err := o.extractor.ExtractListing(ctx, collection, o.perCollection)
	if err != nil {
		o.logger.Warn("collection listing failed", "job_id", parentID,
			"collection", collection, "error", err)
		o.registry.Update(parentID, func(j *Job) {
			j.LastMessage = fmt.Sprintf("collection %s failed: %v", collection, err)
		})
		return
	}
	if listing == nil || len(listing.Candidates) == 0 {
		o.registry.Update(parentID, func(j *Job) {
			j.LastMessage = fmt.Sprintf("collection %s yielded no products", collection)
		})
		return
	}

	child := o.registry.Create(collection, listing.Candidates, listing.Categories,
		o.perCollection, parentID)
	o.runner.Launch(child.ID)

	o.awaitChild(ctx, parentID, child.ID)
}

// awaitChild polls the child job until it reaches a terminal state, folding
// its counters onto the parent. A parent stop is relayed to the child.
func (o *Orchestrator) awaitChild(ctx context.Context, parentID, childID string) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(o.pollInterval):
		}

		child, err := o.registry.Get(childID)
		if err != nil {
			return
		}

		if child.Status.Terminal() {
			o.registry.Update(parentID, func(j *Job) {
				j.SavedCount += child.SavedCount
				j.SkippedCount += child.SkippedCount
				j.ProcessedCount += child.ProcessedCount
				j.LastMessage = fmt.Sprintf("collection %s %s: %d saved, %d skipped",
					child.StoreURL, child.Status, child.SavedCount, child.SkippedCount)
			})
			return
		}

		parent, err := o.registry.Get(parentID)
		if err != nil {
			return
		}
		if parent.Status == StatusStopped {
			o.registry.RequestStop(childID)
		}
	}
}
