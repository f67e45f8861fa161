package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/tagsapp/catalog-scraper/internal/models"
	"github.com/tagsapp/catalog-scraper/internal/normalize"
)

// SaveOutcome describes what Save did with a product.
type SaveOutcome string

const (
	OutcomeCreated SaveOutcome = "created"
	OutcomeUpdated SaveOutcome = "updated"
)

type SaveResult struct {
	ID      string
	Outcome SaveOutcome
}

// ScrapeRecord is one row of the scrape history table.
type ScrapeRecord struct {
	JobID           string
	StoreURL        string
	Status          string
	ProductsSaved   int
	ProductsSkipped int
	FinishedAt      time.Time
}

// Store persists enriched products and answers duplicate checks. The target
// products table is not fully under this service's control, so the writable
// column set is probed once at first use and writes are restricted to the
// columns that actually exist.
type Store struct {
	db     *DB
	cache  *Cache
	logger *slog.Logger

	colOnce sync.Once
	columns map[string]bool
	colErr  error
}

func NewStore(db *DB, cache *Cache, logger *slog.Logger) *Store {
	return &Store{
		db:     db,
		cache:  cache,
		logger: logger.With("component", "catalog_store"),
	}
}

// Exists reports whether a product with this source URL is already in the
// catalog. Lookup errors are logged and reported as "not a duplicate" so a
// flaky database degrades to extra writes rather than lost products.
func (s *Store) Exists(ctx context.Context, sourceURL string) bool {
	normalized := normalize.URL(sourceURL)

	if s.cache.IsKnown(ctx, normalized) {
		return true
	}

	var id string
	err := s.db.QueryRow(ctx,
		`SELECT id FROM products WHERE url = $1 LIMIT 1`, normalized,
	).Scan(&id)
	if err == nil {
		s.cache.MarkKnown(ctx, normalized)
		return true
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		s.logger.Warn("duplicate check failed, assuming new", "url", normalized, "error", err)
		return false
	}

	// Stored URLs may carry trailing variants the normalizer did not see.
	err = s.db.QueryRow(ctx,
		`SELECT id FROM products WHERE url ILIKE $1 LIMIT 1`, normalized+"%",
	).Scan(&id)
	if err == nil {
		s.cache.MarkKnown(ctx, normalized)
		return true
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		s.logger.Warn("duplicate check failed, assuming new", "url", normalized, "error", err)
	}
	return false
}

// Save upserts an enriched product keyed by its normalized URL. The lookup
// and the write run in one transaction so concurrent runners cannot race a
// second insert in between.
func (s *Store) Save(ctx context.Context, p models.EnrichedProduct) (*SaveResult, error) {
	columns, err := s.availableColumns(ctx)
	if err != nil {
		return nil, err
	}

	normalized := normalize.URL(p.SourceURL)
	values := s.columnValues(p, normalized, columns)
	if len(values) == 0 {
		return nil, fmt.Errorf("products table exposes none of the writable columns")
	}

	var result *SaveResult
	err = s.db.WithTx(ctx, func(tx pgx.Tx) error {
		var id string
		err := tx.QueryRow(ctx,
			`SELECT id FROM products WHERE url = $1 LIMIT 1 FOR UPDATE`, normalized,
		).Scan(&id)

		switch {
		case err == nil:
			query, args := buildUpdate(id, values)
			if _, uerr := tx.Exec(ctx, query, args...); uerr != nil {
				return fmt.Errorf("failed to update product: %w", uerr)
			}
			result = &SaveResult{ID: id, Outcome: OutcomeUpdated}
			return nil

		case errors.Is(err, pgx.ErrNoRows):
			query, args := buildInsert(values)
			if ierr := tx.QueryRow(ctx, query, args...).Scan(&id); ierr != nil {
				return fmt.Errorf("failed to insert product: %w", ierr)
			}
			result = &SaveResult{ID: id, Outcome: OutcomeCreated}
			return nil

		default:
			return fmt.Errorf("failed to look up product: %w", err)
		}
	})
	if err != nil {
		return nil, err
	}

	s.cache.MarkKnown(ctx, normalized)
	return result, nil
}

// RecordScrape appends one row of scrape history. Best effort; history must
// never fail a job.
func (s *Store) RecordScrape(ctx context.Context, rec ScrapeRecord) {
	_, err := s.db.Exec(ctx,
		`INSERT INTO scrape_stores (job_id, store_url, status, products_saved, products_skipped, finished_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		rec.JobID, rec.StoreURL, rec.Status, rec.ProductsSaved, rec.ProductsSkipped, rec.FinishedAt,
	)
	if err != nil {
		s.logger.Warn("failed to record scrape history", "job_id", rec.JobID, "error", err)
	}
}

func (s *Store) availableColumns(ctx context.Context) (map[string]bool, error) {
	s.colOnce.Do(func() {
		rows, err := s.db.Query(ctx,
			`SELECT column_name FROM information_schema.columns WHERE table_name = 'products'`)
		if err != nil {
			s.colErr = fmt.Errorf("failed to probe products columns: %w", err)
			return
		}
		defer rows.Close()

		cols := make(map[string]bool)
		for rows.Next() {
			var name string
			if err := rows.Scan(&name); err != nil {
				s.colErr = fmt.Errorf("failed to scan column name: %w", err)
				return
			}
			cols[name] = true
		}
		s.columns = cols
		s.logger.Info("probed products table", "columns", len(cols))
	})
	return s.columns, s.colErr
}

// columnValues maps the product onto the writable columns that exist.
func (s *Store) columnValues(p models.EnrichedProduct, normalizedURL string, columns map[string]bool) map[string]any {
	all := map[string]any{
		"name":                p.DisplayName,
		"url":                 normalizedURL,
		"brand":               p.Brand,
		"description":         p.Description,
		"color":               p.Color,
		"image_url":           p.ImageURL,
		"secondary_image_url": p.SecondaryImageURL,
		"categories":          p.Categories,
	}
	if p.Price != nil {
		all["price"] = *p.Price
	}

	values := make(map[string]any)
	for col, v := range all {
		if columns[col] {
			values[col] = v
		}
	}
	return values
}

func buildInsert(values map[string]any) (string, []any) {
	cols := make([]string, 0, len(values))
	placeholders := make([]string, 0, len(values))
	args := make([]any, 0, len(values))

	for col, v := range values {
		cols = append(cols, col)
		placeholders = append(placeholders, fmt.Sprintf("$%d", len(args)+1))
		args = append(args, v)
	}

	query := fmt.Sprintf(
		`INSERT INTO products (%s) VALUES (%s) RETURNING id`,
		strings.Join(cols, ", "), strings.Join(placeholders, ", "),
	)
	return query, args
}

func buildUpdate(id string, values map[string]any) (string, []any) {
	sets := make([]string, 0, len(values))
	args := make([]any, 0, len(values)+1)

	for col, v := range values {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	args = append(args, id)

	query := fmt.Sprintf(
		`UPDATE products SET %s WHERE id = $%d`,
		strings.Join(sets, ", "), len(args),
	)
	return query, args
}
