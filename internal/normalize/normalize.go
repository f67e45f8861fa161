package normalize

import (
	"net/url"
	"strconv"
	"strings"
)

var separatorStripper = strings.NewReplacer(".", "", ",", "")

// Price canonicalizes a raw price string to a decimal value. The grammar:
// keep digits and separators, then collapse all separators keeping the last
// one (comma or dot) as the decimal point, so "1.234,56" and "1,234.56" both
// come out as 1234.56. A string with no usable digits reports ok=false and
// the caller persists NULL instead of failing the record.
func Price(raw string) (float64, bool) {
	var b strings.Builder
	for _, r := range raw {
		if (r >= '0' && r <= '9') || r == '.' || r == ',' {
			b.WriteRune(r)
		}
	}
	s := b.String()
	if s == "" {
		return 0, false
	}

	if last := strings.LastIndexAny(s, ".,"); last >= 0 {
		s = separatorStripper.Replace(s[:last]) + "." + s[last+1:]
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// URL canonicalizes a URL for identity comparison: coerce to https, strip a
// leading "www." from the host, drop the query string, and drop a single
// trailing slash. Unparseable input comes back unchanged.
func URL(raw string) string {
	s := raw
	if !strings.HasPrefix(s, "http://") && !strings.HasPrefix(s, "https://") {
		s = "https://" + s
	}

	u, err := url.Parse(s)
	if err != nil || u.Host == "" {
		return raw
	}

	u.Scheme = "https"
	u.Host = strings.TrimPrefix(u.Host, "www.")
	u.RawQuery = ""
	u.Fragment = ""
	if len(u.Path) > 1 && strings.HasSuffix(u.Path, "/") {
		u.Path = strings.TrimSuffix(u.Path, "/")
	}

	return u.String()
}

// BrandFromURL derives a brand name from a store URL's domain, skipping
// common region and shop subdomain labels.
func BrandFromURL(storeURL string) string {
	s := storeURL
	if !strings.HasPrefix(s, "http://") && !strings.HasPrefix(s, "https://") {
		s = "https://" + s
	}
	u, err := url.Parse(s)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}

	labels := strings.Split(u.Hostname(), ".")
	for _, l := range labels {
		switch l {
		case "www", "eu", "us", "uk", "shop", "store":
			continue
		}
		if l != "" {
			return l
		}
	}
	return "unknown"
}

// CategoryFromURL extracts a category name from a collection URL: the path
// segment following "collections", with hyphens turned into spaces and the
// storefront's stock names mapped to short labels.
func CategoryFromURL(collectionURL string) string {
	u, err := url.Parse(collectionURL)
	if err != nil {
		return "unknown"
	}

	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i, p := range parts {
		if p == "collections" && i+1 < len(parts) {
			c := strings.ReplaceAll(parts[i+1], "-", " ")
			switch strings.ToLower(c) {
			case "new arrivals":
				return "new"
			case "all", "all products":
				return "general"
			}
			return strings.ToLower(c)
		}
	}
	return "unknown"
}

// NameFromSlug synthesizes a display name from a product URL's final path
// segment: hyphens become spaces, a leading numeric id is stripped and each
// word is title-cased.
func NameFromSlug(productURL string) string {
	u, err := url.Parse(productURL)
	path := productURL
	if err == nil && u.Path != "" {
		path = u.Path
	}

	parts := strings.Split(strings.Trim(path, "/"), "/")
	slug := parts[len(parts)-1]
	if i := strings.IndexAny(slug, "?#"); i >= 0 {
		slug = slug[:i]
	}

	words := strings.Split(slug, "-")
	// Drop a leading product id like "116618-big-ol-jean".
	if len(words) > 1 && isDigits(words[0]) {
		words = words[1:]
	}

	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.TrimSpace(strings.Join(words, " "))
}

var slugColors = map[string]bool{
	"black": true, "white": true, "red": true, "blue": true, "green": true,
	"yellow": true, "purple": true, "pink": true, "orange": true,
	"brown": true, "grey": true, "gray": true, "navy": true, "olive": true,
	"tan": true, "cream": true, "beige": true, "khaki": true, "natural": true,
}

// ColorFromSlug guesses a color from the trailing hyphen-delimited token of
// a product URL slug. Empty unless the tail is a recognized color word.
func ColorFromSlug(productURL string) string {
	u, err := url.Parse(productURL)
	path := productURL
	if err == nil && u.Path != "" {
		path = u.Path
	}

	parts := strings.Split(strings.Trim(path, "/"), "/")
	slug := parts[len(parts)-1]
	if i := strings.IndexAny(slug, "?#"); i >= 0 {
		slug = slug[:i]
	}

	tokens := strings.Split(slug, "-")
	if len(tokens) < 2 {
		return ""
	}
	tail := strings.ToLower(tokens[len(tokens)-1])
	if !slugColors[tail] {
		return ""
	}
	return tail
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
