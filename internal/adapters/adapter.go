package adapters

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"strings"

	"github.com/tagsapp/catalog-scraper/internal/models"
)

// ErrNoProducts is returned when a listing page yields zero candidates by
// every strategy. It aborts job creation before a job record exists.
var ErrNoProducts = errors.New("no products found on the store page")

// Adapter knows how to extract product listings for a class of storefronts.
type Adapter interface {
	Name() string
	Detect(storeURL string) bool
	ExtractListing(ctx context.Context, storeURL string, maxHint int) (*models.Listing, error)
}

// Registry holds adapters in priority order. The first adapter whose Detect
// matches wins; the generic adapter is registered last and always matches.
type Registry struct {
	adapters []Adapter
	logger   *slog.Logger
}

func NewRegistry(logger *slog.Logger, adapters ...Adapter) *Registry {
	return &Registry{
		adapters: adapters,
		logger:   logger.With("component", "adapter_registry"),
	}
}

// Select returns the highest-priority adapter that claims the URL.
func (r *Registry) Select(storeURL string) Adapter {
	for _, a := range r.adapters {
		if a.Detect(storeURL) {
			return a
		}
	}
	return nil
}

// ExtractListing selects an adapter for storeURL and delegates to it.
func (r *Registry) ExtractListing(ctx context.Context, storeURL string, maxHint int) (*models.Listing, error) {
	a := r.Select(storeURL)
	if a == nil {
		return nil, ErrNoProducts
	}

	r.logger.Info("extracting listing", "url", storeURL, "adapter", a.Name())

	listing, err := a.ExtractListing(ctx, storeURL, maxHint)
	if err != nil {
		return nil, err
	}
	if len(listing.Candidates) == 0 {
		return nil, ErrNoProducts
	}
	return listing, nil
}

// hostMatches reports whether the URL's host contains any of the given
// substrings.
func hostMatches(storeURL string, hosts ...string) bool {
	u, err := url.Parse(storeURL)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	for _, h := range hosts {
		if strings.Contains(host, h) {
			return true
		}
	}
	return false
}

// resolveURL makes href absolute against base.
func resolveURL(base, href string) string {
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	if strings.HasPrefix(href, "//") {
		return "https:" + href
	}
	b, err := url.Parse(base)
	if err != nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return b.ResolveReference(ref).String()
}
