package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/tagsapp/catalog-scraper/internal/adapters"
	"github.com/tagsapp/catalog-scraper/internal/jobs"
	"github.com/tagsapp/catalog-scraper/internal/models"
	"github.com/tagsapp/catalog-scraper/internal/normalize"
)

type Handlers struct {
	extractor    jobs.ListingExtractor
	enricher     jobs.Enricher
	persister    jobs.Persister
	registry     *jobs.Registry
	runner       *jobs.Runner
	orchestrator *jobs.Orchestrator
	cronSecret   string
	defaultMax   int
	logger       *slog.Logger
}

func NewHandlers(extractor jobs.ListingExtractor, enricher jobs.Enricher, persister jobs.Persister, registry *jobs.Registry, runner *jobs.Runner, orchestrator *jobs.Orchestrator, cronSecret string, defaultMax int, logger *slog.Logger) *Handlers {
	if defaultMax <= 0 {
		defaultMax = 10
	}
	return &Handlers{
		extractor:    extractor,
		enricher:     enricher,
		persister:    persister,
		registry:     registry,
		runner:       runner,
		orchestrator: orchestrator,
		cronSecret:   cronSecret,
		defaultMax:   defaultMax,
		logger:       logger,
	}
}

// ScrapeStoreRequest starts one scrape job over a store URL.
type ScrapeStoreRequest struct {
	StoreURL    string `json:"storeUrl"`
	MaxProducts int    `json:"maxProducts"`
	ParentJobID string `json:"parentJobId,omitempty"`
}

type ScrapeStoreResponse struct {
	JobID             string `json:"jobId"`
	Status            string `json:"status"`
	StoreURL          string `json:"storeUrl"`
	TotalCandidates   int    `json:"totalCandidates"`
	TargetNewProducts int    `json:"targetNewProducts"`
}

// JobStatusResponse is the polling payload for one job.
type JobStatusResponse struct {
	JobID          string `json:"jobId"`
	Status         string `json:"status"`
	Progress       int    `json:"progress"`
	Message        string `json:"message"`
	SavedCount     int    `json:"savedCount"`
	SkippedCount   int    `json:"skippedCount"`
	TotalProcessed int    `json:"totalProcessed"`
	Error          string `json:"error,omitempty"`
}

func statusResponse(job jobs.Job) JobStatusResponse {
	return JobStatusResponse{
		JobID:          job.ID,
		Status:         string(job.Status),
		Progress:       job.Progress(),
		Message:        job.LastMessage,
		SavedCount:     job.SavedCount,
		SkippedCount:   job.SkippedCount,
		TotalProcessed: job.ProcessedCount,
		Error:          job.Error,
	}
}

// ScrapeStore handles POST /api/scrape-store.
func (h *Handlers) ScrapeStore(w http.ResponseWriter, r *http.Request) {
	var req ScrapeStoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if strings.TrimSpace(req.StoreURL) == "" {
		h.respondError(w, http.StatusBadRequest, "storeUrl is required")
		return
	}
	if req.MaxProducts <= 0 {
		req.MaxProducts = h.defaultMax
	}

	listing, err := h.extractor.ExtractListing(r.Context(), req.StoreURL, req.MaxProducts)
	if err != nil {
		if errors.Is(err, adapters.ErrNoProducts) {
			h.respondError(w, http.StatusNotFound, "no products found on the store page")
			return
		}
		h.logger.Error("listing extraction failed", "store_url", req.StoreURL, "error", err)
		h.respondError(w, http.StatusBadRequest, "store page could not be fetched")
		return
	}

	job := h.registry.Create(req.StoreURL, listing.Candidates, listing.Categories,
		req.MaxProducts, req.ParentJobID)
	h.runner.Launch(job.ID)

	h.respondJSON(w, http.StatusOK, ScrapeStoreResponse{
		JobID:             job.ID,
		Status:            string(jobs.StatusProcessing),
		StoreURL:          req.StoreURL,
		TotalCandidates:   len(listing.Candidates),
		TargetNewProducts: req.MaxProducts,
	})
}

// GetScrapeStore handles GET /api/scrape-store. With a jobId it returns that
// job's status; without one it lists every job.
func (h *Handlers) GetScrapeStore(w http.ResponseWriter, r *http.Request) {
	jobID := r.URL.Query().Get("jobId")
	if jobID == "" {
		all := h.registry.List()
		out := make([]JobStatusResponse, 0, len(all))
		for _, job := range all {
			out = append(out, statusResponse(job))
		}
		h.respondJSON(w, http.StatusOK, map[string]any{"jobs": out})
		return
	}

	job, err := h.registry.Get(jobID)
	if err != nil {
		h.respondError(w, http.StatusNotFound, "job not found")
		return
	}

	h.respondJSON(w, http.StatusOK, statusResponse(job))
}

type ScrapeProductRequest struct {
	URL string `json:"url"`
}

type ScrapeProductResponse struct {
	Success bool                   `json:"success"`
	Outcome string                 `json:"outcome"`
	Product models.EnrichedProduct `json:"product"`
}

// ScrapeProduct handles POST /api/scrape-product: enrich a single product
// URL from its detail page and upsert it, synchronously, without a job.
func (h *Handlers) ScrapeProduct(w http.ResponseWriter, r *http.Request) {
	var req ScrapeProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.URL) == "" {
		h.respondError(w, http.StatusBadRequest, "url is required")
		return
	}

	candidate := models.ProductCandidate{
		SourceURL:     req.URL,
		DisplayName:   normalize.NameFromSlug(req.URL),
		RawColorGuess: normalize.ColorFromSlug(req.URL),
	}
	product := h.enricher.Enrich(r.Context(), candidate, req.URL, nil)

	result, err := h.persister.Save(r.Context(), product)
	if err != nil {
		h.logger.Error("single product save failed", "url", req.URL, "error", err)
		h.respondError(w, http.StatusInternalServerError, "product could not be saved")
		return
	}

	h.respondJSON(w, http.StatusOK, ScrapeProductResponse{
		Success: true,
		Outcome: string(result.Outcome),
		Product: product,
	})
}

type StopRequest struct {
	JobID string `json:"jobId"`
}

type StopResponse struct {
	Success bool     `json:"success"`
	Job     jobs.Job `json:"job"`
}

// StopJob handles POST /api/scrape-store/stop and /api/scrape-auto/stop.
func (h *Handlers) StopJob(w http.ResponseWriter, r *http.Request) {
	var req StopRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.JobID == "" {
		h.respondError(w, http.StatusBadRequest, "jobId is required")
		return
	}

	job, err := h.registry.RequestStop(req.JobID)
	switch {
	case errors.Is(err, jobs.ErrJobNotFound):
		h.respondError(w, http.StatusNotFound, "job not found")
		return
	case errors.Is(err, jobs.ErrInvalidTransition):
		h.respondError(w, http.StatusBadRequest, "job is already finished")
		return
	}

	h.respondJSON(w, http.StatusOK, StopResponse{Success: true, Job: job})
}

type ScrapeAutoResponse struct {
	JobID      string `json:"jobId"`
	TotalPages int    `json:"totalPages"`
}

// ScrapeAuto handles POST /api/scrape-auto.
func (h *Handlers) ScrapeAuto(w http.ResponseWriter, r *http.Request) {
	parent := h.orchestrator.Start()

	h.respondJSON(w, http.StatusOK, ScrapeAutoResponse{
		JobID:      parent.ID,
		TotalPages: len(parent.Collections),
	})
}

// GetScrapeAuto handles GET /api/scrape-auto. With a jobId it returns the
// full parent snapshot including its collection list.
func (h *Handlers) GetScrapeAuto(w http.ResponseWriter, r *http.Request) {
	jobID := r.URL.Query().Get("jobId")
	if jobID == "" {
		h.respondJSON(w, http.StatusOK, map[string]any{"jobs": h.registry.ListParents()})
		return
	}

	job, err := h.registry.Get(jobID)
	if err != nil {
		h.respondError(w, http.StatusNotFound, "job not found")
		return
	}

	h.respondJSON(w, http.StatusOK, job)
}

// CronDailyScrape handles GET /api/cron/daily-scrape. The scheduler
// authenticates with a bearer token.
func (h *Handlers) CronDailyScrape(w http.ResponseWriter, r *http.Request) {
	auth := r.Header.Get("Authorization")
	if h.cronSecret == "" || auth != "Bearer "+h.cronSecret {
		h.respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	parent := h.orchestrator.Start()
	h.logger.Info("daily scrape triggered", "job_id", parent.ID)

	h.respondJSON(w, http.StatusOK, ScrapeAutoResponse{
		JobID:      parent.ID,
		TotalPages: len(parent.Collections),
	})
}

// Health handles GET /health.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"jobs":   len(h.registry.List()),
	})
}

func (h *Handlers) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handlers) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}
