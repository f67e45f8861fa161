package adapters

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tagsapp/catalog-scraper/internal/firecrawl"
	"github.com/tagsapp/catalog-scraper/internal/models"
	"github.com/tagsapp/catalog-scraper/internal/normalize"
)

// listingExtractor is the slice of the firecrawl client this adapter uses.
type listingExtractor interface {
	ExtractListing(ctx context.Context, listingURL string) (*firecrawl.ListingExtract, error)
}

// StructuredAdapter delegates listing extraction to the third-party
// structured-extraction service. Registered for storefronts whose markup is
// rendered client-side and defeats static parsing.
type StructuredAdapter struct {
	client listingExtractor
	hosts  []string
	logger *slog.Logger
}

func NewStructuredAdapter(client listingExtractor, hosts []string, logger *slog.Logger) *StructuredAdapter {
	if len(hosts) == 0 {
		hosts = []string{"carhartt-wip.com"}
	}
	return &StructuredAdapter{
		client: client,
		hosts:  hosts,
		logger: logger.With("component", "structured_adapter"),
	}
}

func (a *StructuredAdapter) Name() string { return "structured" }

func (a *StructuredAdapter) Detect(storeURL string) bool {
	return a.client != nil && hostMatches(storeURL, a.hosts...)
}

func (a *StructuredAdapter) ExtractListing(ctx context.Context, storeURL string, maxHint int) (*models.Listing, error) {
	extract, err := a.client.ExtractListing(ctx, storeURL)
	if err != nil {
		return nil, fmt.Errorf("structured extraction: %w", err)
	}

	want := maxHint
	if want < listingHeadroom {
		want = listingHeadroom
	}

	listing := &models.Listing{StoreURL: storeURL}
	for _, p := range extract.Products {
		if len(listing.Candidates) >= want {
			break
		}
		if p.URL == "" {
			continue
		}

		name := p.Name
		if name == "" {
			name = normalize.NameFromSlug(p.URL)
		}

		listing.Candidates = append(listing.Candidates, models.ProductCandidate{
			SourceURL:     normalize.URL(p.URL),
			DisplayName:   name,
			RawPriceText:  p.Price,
			RawImageURL:   p.ImageURL,
			RawColorGuess: strings.ToLower(p.Color),
		})
	}

	seen := make(map[string]bool)
	for _, link := range extract.CategoryLinks {
		c := strings.ToLower(strings.TrimSpace(link.Name))
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		listing.Categories = append(listing.Categories, c)
	}

	a.logger.Info("structured listing extracted", "url", storeURL,
		"candidates", len(listing.Candidates))

	return listing, nil
}
