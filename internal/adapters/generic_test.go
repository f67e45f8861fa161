package adapters

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tagsapp/catalog-scraper/internal/fetch"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

const cardListingPage = `<html><body>
	<div class="collection-filters">
		<div class="filter-group">
			<h3>Category</h3>
			<label>Tees</label>
			<label>Hoodies</label>
			<label>View All</label>
		</div>
	</div>
	<div class="product-card">
		<a href="/products/basic-tee-black">
			<img src="/cdn/tee.jpg" alt="Black tee"/>
		</a>
		<h3 class="product-card__title">Basic Tee</h3>
		<span class="product-card__price">€49.90</span>
	</div>
	<div class="product-card">
		<a href="/products/zip-hoodie-navy">
			<img data-src="/cdn/hoodie.jpg" alt="Navy hoodie"/>
		</a>
		<h3 class="product-card__title">Zip Hoodie</h3>
		<span class="product-card__price">€89.00</span>
	</div>
	<div class="product-card">
		<a href="/products/basic-tee-black?variant=123">
			<img src="/cdn/tee2.jpg"/>
		</a>
		<h3 class="product-card__title">Basic Tee</h3>
	</div>
</body></html>`

const anchorListingPage = `<html><body>
	<a href="/products/chore-coat-brown">Chore Coat</a>
	<a href="/products/chore-coat-brown">Chore Coat again</a>
	<a href="/products/work-pant">Work Pant</a>
	<a href="/about">About us</a>
</body></html>`

func newGenericServer(t *testing.T, page string) (*httptest.Server, *GenericAdapter) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, page)
	}))
	t.Cleanup(srv.Close)

	fetcher := fetch.New(nil, testLogger())
	return srv, NewGenericAdapter(fetcher, testLogger())
}

func TestGenericAdapterExtractsCards(t *testing.T) {
	srv, adapter := newGenericServer(t, cardListingPage)

	listing, err := adapter.ExtractListing(context.Background(), srv.URL, 10)
	require.NoError(t, err)

	// The variant link normalizes to the same URL as the first card.
	require.Len(t, listing.Candidates, 2)

	first := listing.Candidates[0]
	assert.Equal(t, "Basic Tee", first.DisplayName)
	assert.Equal(t, "€49.90", first.RawPriceText)
	assert.Contains(t, first.RawImageURL, "/cdn/tee.jpg")
	assert.Equal(t, "black", first.RawColorGuess)

	second := listing.Candidates[1]
	assert.Equal(t, "Zip Hoodie", second.DisplayName)
	assert.Contains(t, second.RawImageURL, "/cdn/hoodie.jpg")

	assert.Contains(t, listing.Categories, "tees")
	assert.Contains(t, listing.Categories, "hoodies")
	assert.NotContains(t, listing.Categories, "view all")
}

func TestGenericAdapterFallsBackToAnchors(t *testing.T) {
	srv, adapter := newGenericServer(t, anchorListingPage)

	listing, err := adapter.ExtractListing(context.Background(), srv.URL, 10)
	require.NoError(t, err)

	require.Len(t, listing.Candidates, 2)
	assert.Equal(t, "Chore Coat", listing.Candidates[0].DisplayName)
	assert.Equal(t, "brown", listing.Candidates[0].RawColorGuess)
	assert.Equal(t, "Work Pant", listing.Candidates[1].DisplayName)
}

func TestGenericAdapterDetectAlwaysMatches(t *testing.T) {
	adapter := NewGenericAdapter(fetch.New(nil, testLogger()), testLogger())
	assert.True(t, adapter.Detect("https://anything.example.com"))
}

func TestGenericAdapterFetchFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(srv.Close)

	fetcher := fetch.New(&fetch.Options{MaxRetries: 1}, testLogger())
	adapter := NewGenericAdapter(fetcher, testLogger())
	_, err := adapter.ExtractListing(context.Background(), srv.URL, 10)
	assert.Error(t, err)
}
