package adapters

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tagsapp/catalog-scraper/internal/firecrawl"
	"github.com/tagsapp/catalog-scraper/internal/models"
)

type stubAdapter struct {
	name    string
	matches bool
	listing *models.Listing
	err     error
}

func (a *stubAdapter) Name() string       { return a.name }
func (a *stubAdapter) Detect(string) bool { return a.matches }
func (a *stubAdapter) ExtractListing(context.Context, string, int) (*models.Listing, error) {
	return a.listing, a.err
}

func TestRegistrySelectsFirstMatch(t *testing.T) {
	first := &stubAdapter{name: "first", matches: false}
	second := &stubAdapter{name: "second", matches: true}
	third := &stubAdapter{name: "third", matches: true}

	r := NewRegistry(testLogger(), first, second, third)

	selected := r.Select("https://example.com")
	require.NotNil(t, selected)
	assert.Equal(t, "second", selected.Name())
}

func TestRegistryExtractListing(t *testing.T) {
	listing := &models.Listing{
		StoreURL:   "https://example.com",
		Candidates: []models.ProductCandidate{{SourceURL: "https://example.com/products/a"}},
	}
	r := NewRegistry(testLogger(), &stubAdapter{name: "stub", matches: true, listing: listing})

	got, err := r.ExtractListing(context.Background(), "https://example.com", 5)
	require.NoError(t, err)
	assert.Len(t, got.Candidates, 1)
}

func TestRegistryZeroCandidatesIsErrNoProducts(t *testing.T) {
	r := NewRegistry(testLogger(), &stubAdapter{
		name: "stub", matches: true,
		listing: &models.Listing{StoreURL: "https://example.com"},
	})

	_, err := r.ExtractListing(context.Background(), "https://example.com", 5)
	assert.ErrorIs(t, err, ErrNoProducts)
}

func TestRegistryNoAdapterMatches(t *testing.T) {
	r := NewRegistry(testLogger(), &stubAdapter{name: "stub", matches: false})

	_, err := r.ExtractListing(context.Background(), "https://example.com", 5)
	assert.ErrorIs(t, err, ErrNoProducts)
}

func TestRegistryAdapterErrorPropagates(t *testing.T) {
	boom := errors.New("boom")
	r := NewRegistry(testLogger(), &stubAdapter{name: "stub", matches: true, err: boom})

	_, err := r.ExtractListing(context.Background(), "https://example.com", 5)
	assert.ErrorIs(t, err, boom)
}

type stubListingExtractor struct {
	extract *firecrawl.ListingExtract
	err     error
}

func (s *stubListingExtractor) ExtractListing(context.Context, string) (*firecrawl.ListingExtract, error) {
	return s.extract, s.err
}

func TestStructuredAdapterMapsExtract(t *testing.T) {
	client := &stubListingExtractor{extract: &firecrawl.ListingExtract{
		Products: []firecrawl.ProductExtract{
			{Name: "Detroit Jacket", URL: "https://www.carhartt-wip.com/products/detroit-jacket?ref=1", Price: "189.00", Color: "Hamilton Brown"},
			{URL: ""},
			{URL: "https://carhartt-wip.com/products/116618-big-ol-jean"},
		},
		CategoryLinks: []firecrawl.CategoryLink{
			{Name: "Jackets"},
			{Name: "jackets"},
			{Name: ""},
		},
	}}

	adapter := NewStructuredAdapter(client, nil, testLogger())
	listing, err := adapter.ExtractListing(context.Background(), "https://carhartt-wip.com/collections/men", 10)
	require.NoError(t, err)

	require.Len(t, listing.Candidates, 2)
	first := listing.Candidates[0]
	assert.Equal(t, "Detroit Jacket", first.DisplayName)
	assert.Equal(t, "https://carhartt-wip.com/products/detroit-jacket", first.SourceURL)
	assert.Equal(t, "hamilton brown", first.RawColorGuess)

	// Name synthesized from the slug, numeric id stripped.
	assert.Equal(t, "Big Ol Jean", listing.Candidates[1].DisplayName)

	assert.Equal(t, []string{"jackets"}, listing.Categories)
}

func TestStructuredAdapterDetectRequiresClient(t *testing.T) {
	withClient := NewStructuredAdapter(&stubListingExtractor{}, nil, testLogger())
	assert.True(t, withClient.Detect("https://carhartt-wip.com/collections/men"))
	assert.False(t, withClient.Detect("https://eu.stussy.com"))

	without := NewStructuredAdapter(nil, nil, testLogger())
	assert.False(t, without.Detect("https://carhartt-wip.com/collections/men"))
}
