package firecrawl

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestExtractProduct(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/extract", r.URL.Path)
		assert.Equal(t, "Bearer key-123", r.Header.Get("Authorization"))

		var req extractRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.URLs, 1)

		io.WriteString(w, `{
			"success": true,
			"data": {"name": "Detroit Jacket", "price": "189.00", "color": "brown"}
		}`)
	}))
	t.Cleanup(srv.Close)

	c := New(srv.URL, "key-123", testLogger())

	out, err := c.ExtractProduct(context.Background(), "https://example.com/products/detroit-jacket")
	require.NoError(t, err)
	assert.Equal(t, "Detroit Jacket", out.Name)
	assert.Equal(t, "189.00", out.Price)
	assert.Equal(t, "brown", out.Color)
}

func TestExtractListingFailureEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"success": false, "error": "quota exceeded"}`)
	}))
	t.Cleanup(srv.Close)

	c := New(srv.URL, "key-123", testLogger())

	_, err := c.ExtractListing(context.Background(), "https://example.com/collections/men")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota exceeded")
}

func TestExtractNon200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	t.Cleanup(srv.Close)

	c := New(srv.URL, "key-123", testLogger())

	_, err := c.ExtractProduct(context.Background(), "https://example.com/products/x")
	assert.Error(t, err)
}
