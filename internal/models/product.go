package models

// ProductCandidate is a minimally-extracted reference to one product found
// on a listing page. Candidates are produced by a listing adapter and are
// read-only afterwards.
type ProductCandidate struct {
	SourceURL     string `json:"source_url"`
	DisplayName   string `json:"display_name"`
	RawPriceText  string `json:"raw_price_text"`
	RawImageURL   string `json:"raw_image_url"`
	RawColorGuess string `json:"raw_color_guess"`
}

// Listing is the result of extracting one store/collection page: the
// candidates in page order plus any category names discovered alongside them.
type Listing struct {
	StoreURL   string             `json:"store_url"`
	Candidates []ProductCandidate `json:"candidates"`
	Categories []string           `json:"categories"`
}

// EnrichedProduct is a candidate whose own detail page has been fetched to
// fill in the missing attributes. Enrichment never fails a candidate: every
// field degrades to its zero value independently, and Color falls back to
// "unknown".
type EnrichedProduct struct {
	ProductCandidate

	Description       string   `json:"description"`
	Color             string   `json:"color"`
	Categories        []string `json:"categories"`
	Price             *float64 `json:"price"`
	ImageURL          string   `json:"image_url"`
	SecondaryImageURL string   `json:"secondary_image_url"`
	Brand             string   `json:"brand"`
}
