package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tagsapp/catalog-scraper/internal/adapters"
	"github.com/tagsapp/catalog-scraper/internal/catalog"
	"github.com/tagsapp/catalog-scraper/internal/jobs"
	"github.com/tagsapp/catalog-scraper/internal/models"
)

type fakeExtractor struct {
	listings map[string]*models.Listing
}

func (e *fakeExtractor) ExtractListing(_ context.Context, storeURL string, _ int) (*models.Listing, error) {
	listing, ok := e.listings[storeURL]
	if !ok || len(listing.Candidates) == 0 {
		return nil, adapters.ErrNoProducts
	}
	return listing, nil
}

type fakeEnricher struct{}

func (fakeEnricher) Enrich(_ context.Context, c models.ProductCandidate, _ string, _ []string) models.EnrichedProduct {
	return models.EnrichedProduct{ProductCandidate: c, Color: "unknown"}
}

type fakePersister struct{}

func (fakePersister) Save(context.Context, models.EnrichedProduct) (*catalog.SaveResult, error) {
	return &catalog.SaveResult{ID: "1", Outcome: catalog.OutcomeCreated}, nil
}

type fakeDeduper struct{}

func (fakeDeduper) Exists(context.Context, string) bool { return false }

func testServer(t *testing.T, extractor jobs.ListingExtractor, collections []string) (*httptest.Server, *jobs.Registry) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	registry := jobs.NewRegistry(logger)
	runner := jobs.NewRunner(registry, fakeDeduper{}, fakeEnricher{}, fakePersister{}, nil, nil, logger)
	orchestrator := jobs.NewOrchestrator(registry, runner, extractor, collections, 5, 5*time.Millisecond, logger)

	h := NewHandlers(extractor, fakeEnricher{}, fakePersister{}, registry, runner, orchestrator, "test-secret", 10, logger)
	srv := httptest.NewServer(NewRouter(h))
	t.Cleanup(srv.Close)

	return srv, registry
}

func listingFor(storeURL string, n int) *models.Listing {
	l := &models.Listing{StoreURL: storeURL}
	for i := 0; i < n; i++ {
		l.Candidates = append(l.Candidates, models.ProductCandidate{
			SourceURL:   storeURL + "/products/item-" + string(rune('a'+i)),
			DisplayName: "Item " + string(rune('A'+i)),
		})
	}
	return l
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	b, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(b))
	require.NoError(t, err)
	return resp
}

func decode(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func TestScrapeStoreStartsJob(t *testing.T) {
	store := "https://example.com/collections/new"
	extractor := &fakeExtractor{listings: map[string]*models.Listing{
		store: listingFor(store, 5),
	}}
	srv, registry := testServer(t, extractor, nil)

	resp := postJSON(t, srv.URL+"/api/scrape-store", ScrapeStoreRequest{
		StoreURL:    store,
		MaxProducts: 3,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out ScrapeStoreResponse
	decode(t, resp, &out)
	assert.NotEmpty(t, out.JobID)
	assert.Equal(t, "processing", out.Status)
	assert.Equal(t, 5, out.TotalCandidates)
	assert.Equal(t, 3, out.TargetNewProducts)

	require.Eventually(t, func() bool {
		j, err := registry.Get(out.JobID)
		return err == nil && j.Status.Terminal()
	}, 5*time.Second, 10*time.Millisecond)

	final, err := registry.Get(out.JobID)
	require.NoError(t, err)
	assert.Equal(t, jobs.StatusCompleted, final.Status)
	assert.Equal(t, 3, final.SavedCount)
}

func TestScrapeStoreMissingURL(t *testing.T) {
	srv, _ := testServer(t, &fakeExtractor{}, nil)

	resp := postJSON(t, srv.URL+"/api/scrape-store", ScrapeStoreRequest{})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestScrapeStoreZeroCandidatesIs404(t *testing.T) {
	srv, registry := testServer(t, &fakeExtractor{}, nil)

	resp := postJSON(t, srv.URL+"/api/scrape-store", ScrapeStoreRequest{
		StoreURL: "https://empty.example.com",
	})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Empty(t, registry.List())
}

func TestGetScrapeStoreStatusAndUnknown(t *testing.T) {
	store := "https://example.com/collections/new"
	extractor := &fakeExtractor{listings: map[string]*models.Listing{
		store: listingFor(store, 2),
	}}
	srv, registry := testServer(t, extractor, nil)

	resp := postJSON(t, srv.URL+"/api/scrape-store", ScrapeStoreRequest{StoreURL: store})
	var created ScrapeStoreResponse
	decode(t, resp, &created)

	require.Eventually(t, func() bool {
		j, err := registry.Get(created.JobID)
		return err == nil && j.Status.Terminal()
	}, 5*time.Second, 10*time.Millisecond)

	statusResp, err := http.Get(srv.URL + "/api/scrape-store?jobId=" + created.JobID)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, statusResp.StatusCode)

	var status JobStatusResponse
	decode(t, statusResp, &status)
	assert.Equal(t, "completed", status.Status)
	assert.Equal(t, 2, status.SavedCount)
	assert.Equal(t, 2, status.TotalProcessed)

	missing, err := http.Get(srv.URL + "/api/scrape-store?jobId=unknown")
	require.NoError(t, err)
	defer missing.Body.Close()
	assert.Equal(t, http.StatusNotFound, missing.StatusCode)
}

func TestStopJobSemantics(t *testing.T) {
	srv, registry := testServer(t, &fakeExtractor{}, nil)

	resp := postJSON(t, srv.URL+"/api/scrape-store/stop", StopRequest{JobID: "unknown"})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	job := registry.Create("https://example.com", nil, nil, 1, "")

	ok := postJSON(t, srv.URL+"/api/scrape-store/stop", StopRequest{JobID: job.ID})
	require.Equal(t, http.StatusOK, ok.StatusCode)
	var stopped StopResponse
	decode(t, ok, &stopped)
	assert.True(t, stopped.Success)
	assert.Equal(t, jobs.StatusStopped, stopped.Job.Status)

	again := postJSON(t, srv.URL+"/api/scrape-store/stop", StopRequest{JobID: job.ID})
	defer again.Body.Close()
	assert.Equal(t, http.StatusBadRequest, again.StatusCode)
}

func TestScrapeProductSavesSingleURL(t *testing.T) {
	srv, registry := testServer(t, &fakeExtractor{}, nil)

	resp := postJSON(t, srv.URL+"/api/scrape-product", ScrapeProductRequest{
		URL: "https://example.com/products/detroit-jacket-brown",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out ScrapeProductResponse
	decode(t, resp, &out)
	assert.True(t, out.Success)
	assert.Equal(t, "created", out.Outcome)
	assert.Equal(t, "Detroit Jacket Brown", out.Product.DisplayName)
	assert.Equal(t, "https://example.com/products/detroit-jacket-brown", out.Product.SourceURL)

	// Synchronous: no job appears in the registry.
	assert.Empty(t, registry.List())
}

func TestScrapeProductMissingURL(t *testing.T) {
	srv, _ := testServer(t, &fakeExtractor{}, nil)

	resp := postJSON(t, srv.URL+"/api/scrape-product", ScrapeProductRequest{})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestScrapeAutoLifecycle(t *testing.T) {
	collection := "https://example.com/collections/new"
	extractor := &fakeExtractor{listings: map[string]*models.Listing{
		collection: listingFor(collection, 2),
	}}
	srv, registry := testServer(t, extractor, []string{collection})

	resp := postJSON(t, srv.URL+"/api/scrape-auto", struct{}{})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out ScrapeAutoResponse
	decode(t, resp, &out)
	require.NotEmpty(t, out.JobID)
	assert.Equal(t, 1, out.TotalPages)

	require.Eventually(t, func() bool {
		j, err := registry.Get(out.JobID)
		return err == nil && j.Status.Terminal()
	}, 5*time.Second, 10*time.Millisecond)

	snapResp, err := http.Get(srv.URL + "/api/scrape-auto?jobId=" + out.JobID)
	require.NoError(t, err)
	var snapshot jobs.Job
	decode(t, snapResp, &snapshot)
	assert.Equal(t, jobs.StatusCompleted, snapshot.Status)
	assert.Equal(t, []string{collection}, snapshot.Collections)
	assert.Equal(t, 2, snapshot.SavedCount)
}

func TestCronDailyScrapeAuth(t *testing.T) {
	srv, _ := testServer(t, &fakeExtractor{}, nil)

	resp, err := http.Get(srv.URL + "/api/cron/daily-scrape")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/api/cron/daily-scrape", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer test-secret")

	ok, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer ok.Body.Close()
	assert.Equal(t, http.StatusOK, ok.StatusCode)
}

func TestHealth(t *testing.T) {
	srv, _ := testServer(t, &fakeExtractor{}, nil)

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out map[string]any
	decode(t, resp, &out)
	assert.Equal(t, "ok", out["status"])
}
