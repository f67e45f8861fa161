package adapters

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/tagsapp/catalog-scraper/internal/fetch"
	"github.com/tagsapp/catalog-scraper/internal/models"
)

// jsonGetter is the slice of the fetch client the Shopify adapter needs.
type jsonGetter interface {
	fetch.Getter
	GetJSON(ctx context.Context, url string, v any) error
}

// ShopifyAdapter reads a collection's products straight from the Shopify
// storefront JSON endpoint (/collections/<handle>/products.json) instead of
// scraping markup.
type ShopifyAdapter struct {
	fetcher jsonGetter
	hosts   []string
	logger  *slog.Logger
}

func NewShopifyAdapter(fetcher jsonGetter, hosts []string, logger *slog.Logger) *ShopifyAdapter {
	if len(hosts) == 0 {
		hosts = []string{"myshopify.com", "stussy.com"}
	}
	return &ShopifyAdapter{
		fetcher: fetcher,
		hosts:   hosts,
		logger:  logger.With("component", "shopify_adapter"),
	}
}

func (a *ShopifyAdapter) Name() string { return "shopify" }

func (a *ShopifyAdapter) Detect(storeURL string) bool {
	return hostMatches(storeURL, a.hosts...)
}

type shopifyProduct struct {
	Title       string   `json:"title"`
	Handle      string   `json:"handle"`
	ProductType string   `json:"product_type"`
	Tags        []string `json:"tags"`
	Images      []struct {
		Src string `json:"src"`
	} `json:"images"`
	Variants []struct {
		Price string `json:"price"`
	} `json:"variants"`
	Options []struct {
		Name   string   `json:"name"`
		Values []string `json:"values"`
	} `json:"options"`
}

type shopifyListing struct {
	Products []shopifyProduct `json:"products"`
}

func (a *ShopifyAdapter) ExtractListing(ctx context.Context, storeURL string, maxHint int) (*models.Listing, error) {
	base, handle, err := collectionHandle(storeURL)
	if err != nil {
		return nil, err
	}

	apiURL := fmt.Sprintf("%s/collections/%s/products.json", base, handle)
	a.logger.Info("fetching shopify collection", "url", apiURL)

	var payload shopifyListing
	if err := a.fetcher.GetJSON(ctx, apiURL, &payload); err != nil {
		return nil, fmt.Errorf("shopify products.json: %w", err)
	}

	want := maxHint
	if want < listingHeadroom {
		want = listingHeadroom
	}

	listing := &models.Listing{StoreURL: storeURL}
	catSeen := make(map[string]bool)

	for _, p := range payload.Products {
		if len(listing.Candidates) < want {
			listing.Candidates = append(listing.Candidates, a.toCandidate(base, p))
		}

		for _, tag := range p.Tags {
			tag = strings.ToLower(strings.TrimSpace(tag))
			if tag == "" || len(tag) >= 30 || strings.Contains(tag, ":") || catSeen[tag] {
				continue
			}
			catSeen[tag] = true
			listing.Categories = append(listing.Categories, tag)
		}
		if pt := strings.ToLower(strings.TrimSpace(p.ProductType)); pt != "" && !catSeen[pt] {
			catSeen[pt] = true
			listing.Categories = append(listing.Categories, pt)
		}
	}

	return listing, nil
}

func (a *ShopifyAdapter) toCandidate(base string, p shopifyProduct) models.ProductCandidate {
	c := models.ProductCandidate{
		SourceURL:   fmt.Sprintf("%s/products/%s", base, p.Handle),
		DisplayName: p.Title,
	}

	if len(p.Images) > 0 {
		c.RawImageURL = p.Images[0].Src
	}
	if len(p.Variants) > 0 {
		c.RawPriceText = p.Variants[0].Price
	}

	for _, opt := range p.Options {
		name := strings.ToLower(opt.Name)
		if (name == "color" || name == "colour") && len(opt.Values) > 0 {
			c.RawColorGuess = strings.ToLower(opt.Values[0])
			break
		}
	}
	if c.RawColorGuess == "" {
		if parts := strings.Split(p.Handle, "-"); len(parts) > 1 {
			c.RawColorGuess = parts[len(parts)-1]
		}
	}

	return c
}

// collectionHandle splits a collection URL into its origin and collection
// handle, defaulting to new-arrivals when the path names no collection.
func collectionHandle(storeURL string) (base, handle string, err error) {
	u, err := url.Parse(storeURL)
	if err != nil || u.Host == "" {
		return "", "", fmt.Errorf("invalid store url %q", storeURL)
	}

	handle = "new-arrivals"
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i, p := range parts {
		if p == "collections" && i+1 < len(parts) {
			handle = parts[i+1]
			break
		}
	}

	return fmt.Sprintf("%s://%s", u.Scheme, u.Host), handle, nil
}
