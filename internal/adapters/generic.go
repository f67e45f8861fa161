package adapters

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/tagsapp/catalog-scraper/internal/fetch"
	"github.com/tagsapp/catalog-scraper/internal/models"
	"github.com/tagsapp/catalog-scraper/internal/normalize"
)

// listingHeadroom is the minimum candidate count requested from a listing
// page regardless of the caller's target, so that duplicates and per-item
// failures still leave enough to reach it.
const listingHeadroom = 50

// cardSelectors are tried in order against the listing page; the first one
// that yields product cards wins.
var cardSelectors = []string{
	".product-card",
	".product-item",
	".product-grid-item",
	".grid-product",
	"li.grid__item",
	"div[data-product-id]",
}

var cardNameSelectors = []string{
	".product-card__title",
	".product-item__title",
	".product-title",
	".product-name",
	"h3",
	"h2",
}

var productPathPattern = regexp.MustCompile(`/products?/|[?&]variant=`)

// GenericAdapter extracts listings from arbitrary storefronts with CSS
// heuristics, falling back to a raw anchor scan when no product cards match.
// It is always registered last and matches every URL.
type GenericAdapter struct {
	fetcher fetch.Getter
	logger  *slog.Logger
}

func NewGenericAdapter(fetcher fetch.Getter, logger *slog.Logger) *GenericAdapter {
	return &GenericAdapter{
		fetcher: fetcher,
		logger:  logger.With("component", "generic_adapter"),
	}
}

func (a *GenericAdapter) Name() string { return "generic" }

func (a *GenericAdapter) Detect(string) bool { return true }

func (a *GenericAdapter) ExtractListing(ctx context.Context, storeURL string, maxHint int) (*models.Listing, error) {
	want := maxHint
	if want < listingHeadroom {
		want = listingHeadroom
	}

	body, err := a.fetcher.Get(ctx, storeURL)
	if err != nil {
		return nil, fmt.Errorf("fetch listing page: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse listing page: %w", err)
	}

	candidates := a.extractCards(doc, storeURL, want)
	if len(candidates) == 0 {
		candidates = a.extractFromAnchors(doc, storeURL, want)
	}

	categories := a.extractCategories(doc)

	a.logger.Info("extracted listing", "url", storeURL,
		"candidates", len(candidates), "categories", len(categories))

	return &models.Listing{
		StoreURL:   storeURL,
		Candidates: candidates,
		Categories: categories,
	}, nil
}

// extractCards walks the known product-card container patterns and pulls
// name/price/image/link per card.
func (a *GenericAdapter) extractCards(doc *goquery.Document, storeURL string, want int) []models.ProductCandidate {
	var candidates []models.ProductCandidate
	seen := make(map[string]bool)

	for _, selector := range cardSelectors {
		doc.Find(selector).EachWithBreak(func(_ int, card *goquery.Selection) bool {
			link := card
			if !card.Is("a") {
				link = card.Find("a").First()
			}
			href, ok := link.Attr("href")
			if !ok || !productPathPattern.MatchString(href) {
				return true
			}

			full := normalize.URL(resolveURL(storeURL, href))
			if seen[full] {
				return true
			}
			seen[full] = true

			name := ""
			for _, ns := range cardNameSelectors {
				if t := strings.TrimSpace(card.Find(ns).First().Text()); t != "" {
					name = t
					break
				}
			}
			if name == "" {
				name = normalize.NameFromSlug(full)
			}

			img := card.Find("img").First()
			imgSrc, _ := img.Attr("src")
			if imgSrc == "" {
				imgSrc, _ = img.Attr("data-src")
			}
			if imgSrc != "" {
				imgSrc = resolveURL(storeURL, imgSrc)
			}

			price := strings.TrimSpace(card.Find(".product-card__price, .product-item__price, .price, .money").First().Text())

			color := ""
			if alt, ok := img.Attr("alt"); ok {
				// The first word of the alt text is often the colorway.
				if fields := strings.Fields(alt); len(fields) > 0 && !strings.EqualFold(fields[0], name) {
					color = strings.ToLower(fields[0])
				}
			}
			if color == "" {
				color = normalize.ColorFromSlug(full)
			}

			candidates = append(candidates, models.ProductCandidate{
				SourceURL:     full,
				DisplayName:   name,
				RawPriceText:  price,
				RawImageURL:   imgSrc,
				RawColorGuess: color,
			})
			return len(candidates) < want
		})

		if len(candidates) > 0 {
			break
		}
	}

	return candidates
}

// extractFromAnchors synthesizes candidates from bare product links when no
// card container matched, deriving names from link text or the URL slug.
func (a *GenericAdapter) extractFromAnchors(doc *goquery.Document, storeURL string, want int) []models.ProductCandidate {
	var candidates []models.ProductCandidate
	seen := make(map[string]bool)

	doc.Find("a[href]").EachWithBreak(func(_ int, link *goquery.Selection) bool {
		href, _ := link.Attr("href")
		if !productPathPattern.MatchString(href) {
			return true
		}

		full := normalize.URL(resolveURL(storeURL, href))
		if seen[full] {
			return true
		}
		seen[full] = true

		name := strings.TrimSpace(link.Text())
		if name == "" || len(name) > 120 {
			name = normalize.NameFromSlug(full)
		}
		if name == "" {
			return true
		}

		candidates = append(candidates, models.ProductCandidate{
			SourceURL:     full,
			DisplayName:   name,
			RawColorGuess: normalize.ColorFromSlug(full),
		})
		return len(candidates) < want
	})

	return candidates
}

// extractCategories scans filter/facet blocks and navigation links for
// category names. Independent of product extraction; an empty result is fine.
func (a *GenericAdapter) extractCategories(doc *goquery.Document) []string {
	seen := make(map[string]bool)
	var categories []string

	add := func(raw string) {
		c := strings.ToLower(strings.TrimSpace(raw))
		if c == "" || seen[c] || strings.Contains(c, "all") || strings.Contains(c, "clear") {
			return
		}
		if isDigits(c) {
			return
		}
		seen[c] = true
		categories = append(categories, c)
	}

	doc.Find(".filter-group, .facets__display, .collection-filters").Each(func(_ int, group *goquery.Selection) {
		title := strings.ToLower(group.Find(".filter-group__header, .facets__heading, h3").First().Text())
		if !strings.Contains(title, "category") && !strings.Contains(title, "product type") {
			return
		}
		group.Find("label, li, .filter-group__option, .facets__item").Each(func(_ int, opt *goquery.Selection) {
			add(opt.Text())
		})
	})

	doc.Find("nav a, .collection-filters a, .facets__list a, .breadcrumb a, .breadcrumbs a").Each(func(_ int, link *goquery.Selection) {
		href, _ := link.Attr("href")
		if strings.Contains(href, "category") || strings.Contains(href, "collection") {
			add(link.Text())
		}
	})

	return categories
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
