package firecrawl

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// Client talks to a Firecrawl-compatible structured-extraction API. The
// contract is consumed as-is: we send a URL plus a field schema and get back
// structured product data the service extracted from the rendered page.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	logger  *slog.Logger
}

func New(baseURL, apiKey string, logger *slog.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 60 * time.Second},
		logger:  logger.With("component", "firecrawl"),
	}
}

// ProductExtract is the structured product payload the extraction service
// returns for a single page.
type ProductExtract struct {
	Name        string   `json:"name"`
	Price       string   `json:"price"`
	Description string   `json:"description"`
	Color       string   `json:"color"`
	Categories  []string `json:"categories"`
	ImageURL    string   `json:"imageUrl"`
	URL         string   `json:"url"`
}

type CategoryLink struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// ListingExtract is the structured payload for a listing/collection page.
type ListingExtract struct {
	Products      []ProductExtract `json:"products"`
	CategoryLinks []CategoryLink   `json:"categoryLinks"`
}

type extractRequest struct {
	URLs   []string        `json:"urls"`
	Prompt string          `json:"prompt,omitempty"`
	Schema json.RawMessage `json:"schema,omitempty"`
}

type extractResponse struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data"`
}

// ExtractProduct asks the service for the structured fields of one product
// detail page.
func (c *Client) ExtractProduct(ctx context.Context, pageURL string) (*ProductExtract, error) {
	req := extractRequest{
		URLs:   []string{pageURL},
		Prompt: "Extract the product name, price, description, color, categories (from breadcrumbs or tags) and main image URL from this product page.",
	}

	var out ProductExtract
	if err := c.extract(ctx, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ExtractListing asks the service for every product visible on a listing
// page, for storefronts whose markup defeats static parsing.
func (c *Client) ExtractListing(ctx context.Context, listingURL string) (*ListingExtract, error) {
	req := extractRequest{
		URLs:   []string{listingURL},
		Prompt: "Extract every product on this listing page: name, url, price, imageUrl, color and categories. Also extract the category links in the navigation.",
	}

	var out ListingExtract
	if err := c.extract(ctx, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) extract(ctx context.Context, reqBody extractRequest, v any) error {
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/extract", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("extract call: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("extract returned status %d", resp.StatusCode)
	}

	var envelope extractResponse
	if err := json.Unmarshal(body, &envelope); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if !envelope.Success {
		return fmt.Errorf("extract failed: %s", envelope.Error)
	}

	if err := json.Unmarshal(envelope.Data, v); err != nil {
		return fmt.Errorf("decode extract data: %w", err)
	}
	return nil
}
