package jobs

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tagsapp/catalog-scraper/internal/models"
)

var (
	ErrJobNotFound       = errors.New("job not found")
	ErrInvalidTransition = errors.New("job is already in a terminal state")
)

// Registry owns all job records for the lifetime of the process. Callers get
// copies; the only way to mutate a job is through Update or RequestStop, so
// map access stays confined behind the lock.
type Registry struct {
	mu     sync.RWMutex
	jobs   map[string]*Job
	logger *slog.Logger
}

func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		jobs:   make(map[string]*Job),
		logger: logger.With("component", "job_registry"),
	}
}

// Create registers a new pending job for one store URL.
func (r *Registry) Create(storeURL string, candidates []models.ProductCandidate, categories []string, targetCount int, parentJobID string) Job {
	job := &Job{
		ID:          uuid.NewString(),
		ParentJobID: parentJobID,
		StoreURL:    storeURL,
		Status:      StatusPending,
		Candidates:  candidates,
		Categories:  categories,
		TargetCount: targetCount,
		LastMessage: "job created",
		StartedAt:   time.Now(),
	}

	r.mu.Lock()
	r.jobs[job.ID] = job
	r.mu.Unlock()

	r.logger.Info("job created", "job_id", job.ID, "store_url", storeURL,
		"candidates", len(candidates), "target", targetCount)

	return *job
}

// CreateParent registers the orchestrator's aggregate job over a set of
// collection URLs.
func (r *Registry) CreateParent(collections []string, targetPerCollection int) Job {
	job := &Job{
		ID:          uuid.NewString(),
		StoreURL:    "auto-scrape",
		Status:      StatusPending,
		Collections: collections,
		TargetCount: len(collections) * targetPerCollection,
		LastMessage: "auto-scrape created",
		StartedAt:   time.Now(),
	}

	r.mu.Lock()
	r.jobs[job.ID] = job
	r.mu.Unlock()

	r.logger.Info("parent job created", "job_id", job.ID, "collections", len(collections))

	return *job
}

func (r *Registry) Get(id string) (Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	job, ok := r.jobs[id]
	if !ok {
		return Job{}, ErrJobNotFound
	}
	return *job, nil
}

// List returns a snapshot of every job, parents and children alike.
func (r *Registry) List() []Job {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Job, 0, len(r.jobs))
	for _, job := range r.jobs {
		out = append(out, *job)
	}
	return out
}

// ListParents returns only jobs that were created by the orchestrator.
func (r *Registry) ListParents() []Job {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Job
	for _, job := range r.jobs {
		if len(job.Collections) > 0 {
			out = append(out, *job)
		}
	}
	return out
}

// Update applies mutate atomically. A job already in a terminal state is
// returned unchanged; terminal records never mutate again.
func (r *Registry) Update(id string, mutate func(*Job)) (Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[id]
	if !ok {
		return Job{}, ErrJobNotFound
	}
	if job.Status.Terminal() {
		return *job, nil
	}

	mutate(job)
	return *job, nil
}

// RequestStop transitions a pending or processing job to stopped. The runner
// observes the status at its next loop boundary and exits.
func (r *Registry) RequestStop(id string) (Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[id]
	if !ok {
		return Job{}, ErrJobNotFound
	}
	if job.Status.Terminal() {
		return *job, ErrInvalidTransition
	}

	now := time.Now()
	job.Status = StatusStopped
	job.EndedAt = &now
	job.LastMessage = "stop requested"

	r.logger.Info("job stop requested", "job_id", id)

	return *job, nil
}
