package enrich

import (
	"bytes"
	"context"
	"log/slog"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/tagsapp/catalog-scraper/internal/fetch"
	"github.com/tagsapp/catalog-scraper/internal/firecrawl"
	"github.com/tagsapp/catalog-scraper/internal/models"
	"github.com/tagsapp/catalog-scraper/internal/normalize"
)

// colorKeywords is scanned against the product title when no explicit color
// element is present.
var colorKeywords = []string{
	"black", "white", "red", "blue", "green", "yellow", "purple", "pink",
	"orange", "brown", "grey", "gray", "navy", "olive", "tan", "cream",
	"beige", "khaki", "natural", "stripe",
}

// nameCategoryRules infer a category from keywords in the product name, as a
// last resort when the page carries no breadcrumbs or tags.
var nameCategoryRules = []struct {
	keywords []string
	category string
}{
	{keywords: []string{"t-shirt", "tee"}, category: "t-shirts"},
	{keywords: []string{"hoodie"}, category: "hoodies"},
	{keywords: []string{"shirt"}, category: "shirts"},
	{keywords: []string{"pant", "trouser", "jean"}, category: "trousers"},
	{keywords: []string{"jacket", "coat"}, category: "outerwear"},
	{keywords: []string{"sweater", "knit"}, category: "knitwear"},
	{keywords: []string{"cap", "hat", "beanie"}, category: "hats"},
	{keywords: []string{"bag", "tote", "backpack"}, category: "bags"},
}

// placeholderCategories are dropped when more specific categories exist.
var placeholderCategories = map[string]bool{
	"new":     true,
	"all":     true,
	"general": true,
}

var priceTextPattern = regexp.MustCompile(`[\d][\d.,]*`)

// productExtractor is the optional richer extraction path for price and
// friends; nil disables it.
type productExtractor interface {
	ExtractProduct(ctx context.Context, pageURL string) (*firecrawl.ProductExtract, error)
}

// Enricher fetches a candidate's detail page and fills in the attributes the
// listing did not carry. Every field is extracted independently with
// graceful degradation; Enrich never fails a candidate.
type Enricher struct {
	fetcher   fetch.Getter
	extractor productExtractor
	logger    *slog.Logger
}

func New(fetcher fetch.Getter, extractor productExtractor, logger *slog.Logger) *Enricher {
	return &Enricher{
		fetcher:   fetcher,
		extractor: extractor,
		logger:    logger.With("component", "enricher"),
	}
}

// Enrich builds the persistable product for one candidate. storeCategories
// are the categories discovered on the listing page; they are merged with
// whatever the detail page yields.
func (e *Enricher) Enrich(ctx context.Context, candidate models.ProductCandidate, storeURL string, storeCategories []string) models.EnrichedProduct {
	p := models.EnrichedProduct{
		ProductCandidate: candidate,
		Brand:            normalize.BrandFromURL(storeURL),
		Color:            candidate.RawColorGuess,
		ImageURL:         candidate.RawImageURL,
	}

	priceText := candidate.RawPriceText

	body, err := e.fetcher.Get(ctx, candidate.SourceURL)
	if err != nil {
		e.logger.Warn("detail fetch failed, keeping listing data",
			"url", candidate.SourceURL, "error", err)
	} else if doc, derr := goquery.NewDocumentFromReader(bytes.NewReader(body)); derr == nil {
		if t := extractPriceText(doc); t != "" {
			priceText = t
		}
		if d := extractDescription(doc); d != "" {
			p.Description = d
		}
		if c := extractColor(doc, candidate); c != "" {
			p.Color = c
		}
		p.Categories = extractCategories(doc, candidate.DisplayName)
		img, secondary := extractImages(doc, candidate.SourceURL)
		if img != "" {
			p.ImageURL = img
		}
		p.SecondaryImageURL = secondary
	}

	// Richer alternative path when the page yielded nothing usable.
	if e.extractor != nil && (priceText == "" || p.Description == "") {
		if extract, xerr := e.extractor.ExtractProduct(ctx, candidate.SourceURL); xerr == nil {
			if priceText == "" {
				priceText = extract.Price
			}
			if p.Description == "" {
				p.Description = extract.Description
			}
			if p.Color == "" {
				p.Color = strings.ToLower(extract.Color)
			}
			if len(p.Categories) == 0 {
				p.Categories = extract.Categories
			}
			if p.ImageURL == "" {
				p.ImageURL = extract.ImageURL
			}
		} else {
			e.logger.Warn("structured extraction failed", "url", candidate.SourceURL, "error", xerr)
		}
	}

	if v, ok := normalize.Price(priceText); ok {
		p.Price = &v
	}

	p.Categories = mergeCategories(storeCategories, p.Categories)

	if p.Color == "" {
		p.Color = "unknown"
	}
	p.Color = strings.ToLower(p.Color)

	if p.Description == "" {
		p.Description = candidate.DisplayName + " - " + p.Color
	}

	return p
}

var priceSelectors = []string{
	".product-price",
	".price",
	".product-single__price",
	".product__price",
	"[data-product-price]",
	".money",
}

func extractPriceText(doc *goquery.Document) string {
	for _, sel := range priceSelectors {
		if t := strings.TrimSpace(doc.Find(sel).First().Text()); t != "" {
			if m := priceTextPattern.FindString(t); m != "" {
				return m
			}
			return t
		}
	}
	if content, ok := doc.Find(`meta[property="product:price:amount"]`).Attr("content"); ok {
		return content
	}
	return ""
}

var descriptionSelectors = []string{
	".product-description",
	".product-single__description",
	".product-details__description",
	".product__description",
	"[data-product-description]",
	".description",
}

func extractDescription(doc *goquery.Document) string {
	for _, sel := range descriptionSelectors {
		if t := strings.TrimSpace(doc.Find(sel).First().Text()); t != "" {
			return t
		}
	}
	if content, ok := doc.Find(`meta[property="og:description"]`).Attr("content"); ok {
		return strings.TrimSpace(content)
	}
	return ""
}

var colorSelectors = []string{
	".color-option.selected",
	".color-swatch.selected",
	".swatch-selected",
	".color-swatch.active",
	".product-option-value",
	"[data-selected-color]",
}

// extractColor applies the cascade: explicit selected option, then color
// keywords in the title, then the URL slug tail.
func extractColor(doc *goquery.Document, candidate models.ProductCandidate) string {
	for _, sel := range colorSelectors {
		el := doc.Find(sel).First()
		if el.Length() == 0 {
			continue
		}
		c := el.AttrOr("data-selected-color", "")
		if c == "" {
			c = el.AttrOr("title", "")
		}
		if c == "" {
			c = strings.TrimSpace(el.Text())
		}
		if c != "" {
			return strings.ToLower(c)
		}
	}

	title := strings.ToLower(doc.Find("h1").First().Text())
	if title == "" {
		title = strings.ToLower(candidate.DisplayName)
	}
	for _, keyword := range colorKeywords {
		if strings.Contains(title, keyword) {
			return keyword
		}
	}

	return normalize.ColorFromSlug(candidate.SourceURL)
}

// extractCategories applies the cascade: breadcrumbs, then tag elements, then
// inference from the product name.
func extractCategories(doc *goquery.Document, displayName string) []string {
	seen := make(map[string]bool)
	var categories []string

	add := func(raw string) {
		c := strings.ToLower(strings.TrimSpace(raw))
		if c == "" || seen[c] || c == "home" || c == "index" || isDigits(c) {
			return
		}
		seen[c] = true
		categories = append(categories, c)
	}

	doc.Find(`.breadcrumb a, .breadcrumbs a, nav[aria-label="breadcrumb"] a`).Each(func(_ int, el *goquery.Selection) {
		add(el.Text())
	})

	if len(categories) == 0 {
		doc.Find(".product-tags a, .tags a, .product-type").Each(func(_ int, el *goquery.Selection) {
			add(el.Text())
		})
	}

	if len(categories) == 0 {
		name := strings.ToLower(doc.Find("h1").First().Text())
		if name == "" {
			name = strings.ToLower(displayName)
		}
		for _, rule := range nameCategoryRules {
			for _, kw := range rule.keywords {
				if strings.Contains(name, kw) {
					add(rule.category)
					break
				}
			}
			if len(categories) > 0 {
				break
			}
		}
	}

	return categories
}

var imageSelectors = []string{
	".product-featured-img",
	".product-single__photo img",
	".product-image img",
	".product__image img",
	".product-gallery__image img",
}

func extractImages(doc *goquery.Document, pageURL string) (main, secondary string) {
	for _, sel := range imageSelectors {
		imgs := doc.Find(sel)
		if imgs.Length() == 0 {
			continue
		}
		main = imageSrc(imgs.First())
		if imgs.Length() > 1 {
			secondary = imageSrc(imgs.Eq(1))
		}
		if main != "" {
			break
		}
	}

	if main == "" {
		if content, ok := doc.Find(`meta[property="og:image"]`).Attr("content"); ok {
			main = content
		}
	}

	if strings.HasPrefix(main, "//") {
		main = "https:" + main
	}
	if strings.HasPrefix(secondary, "//") {
		secondary = "https:" + secondary
	}
	return main, secondary
}

func imageSrc(img *goquery.Selection) string {
	if src := img.AttrOr("data-zoom-image", ""); src != "" {
		return src
	}
	if src := img.AttrOr("src", ""); src != "" {
		return src
	}
	return img.AttrOr("data-src", "")
}

// mergeCategories combines listing-level and detail-level categories,
// dedupes, and drops the generic placeholders when specific ones exist.
func mergeCategories(storeCategories, productCategories []string) []string {
	seen := make(map[string]bool)
	var merged []string

	for _, group := range [][]string{storeCategories, productCategories} {
		for _, c := range group {
			c = strings.ToLower(strings.TrimSpace(c))
			if c == "" || seen[c] {
				continue
			}
			seen[c] = true
			merged = append(merged, c)
		}
	}

	var specific []string
	for _, c := range merged {
		if !placeholderCategories[c] {
			specific = append(specific, c)
		}
	}
	if len(specific) > 0 {
		return specific
	}
	return merged
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
