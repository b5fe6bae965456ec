package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gamedex/catalog/internal/domain/stagingstore"
	"github.com/gamedex/catalog/internal/schema"
)

// CatalogStore persists staged per-store records and ingestion run audit rows.
type CatalogStore struct {
	pool *pgxpool.Pool
}

// NewCatalogStore constructs a CatalogStore backed by the provided pool.
func NewCatalogStore(pool *pgxpool.Pool) *CatalogStore {
	return &CatalogStore{pool: pool}
}

var _ stagingstore.Store = (*CatalogStore)(nil)

const (
	runInsertSQL = `
INSERT INTO ingestion_runs (
    id,
    started_at,
    finished_at,
    records,
    report,
    created_at
)
VALUES (
    @id,
    @started_at,
    @finished_at,
    @records,
    @report::jsonb,
    NOW()
)
ON CONFLICT (id) DO UPDATE SET
    finished_at = EXCLUDED.finished_at,
    records = EXCLUDED.records,
    report = EXCLUDED.report;
`

	recordUpsertSQL = `
INSERT INTO catalog_records (
    store,
    uuid,
    name,
    record_type,
    price_minor_units,
    price_currency,
    price_display,
    price_free,
    price_known,
    image,
    href,
    platforms,
    rating,
    release_year,
    release_date,
    publisher,
    content_hash,
    first_seen_run,
    last_seen_run,
    created_at,
    updated_at
)
VALUES (
    @store,
    @uuid,
    @name,
    @record_type,
    @price_minor_units,
    @price_currency,
    @price_display,
    @price_free,
    @price_known,
    @image,
    @href,
    @platforms,
    @rating,
    @release_year,
    @release_date,
    @publisher,
    @content_hash,
    @run_id,
    @run_id,
    NOW(),
    NOW()
)
ON CONFLICT (store, uuid) DO UPDATE SET
    name = EXCLUDED.name,
    record_type = EXCLUDED.record_type,
    price_minor_units = EXCLUDED.price_minor_units,
    price_currency = EXCLUDED.price_currency,
    price_display = EXCLUDED.price_display,
    price_free = EXCLUDED.price_free,
    price_known = EXCLUDED.price_known,
    image = EXCLUDED.image,
    href = EXCLUDED.href,
    platforms = EXCLUDED.platforms,
    rating = EXCLUDED.rating,
    release_year = EXCLUDED.release_year,
    release_date = EXCLUDED.release_date,
    publisher = EXCLUDED.publisher,
    content_hash = EXCLUDED.content_hash,
    last_seen_run = EXCLUDED.last_seen_run,
    updated_at = CASE
        WHEN catalog_records.content_hash IS DISTINCT FROM EXCLUDED.content_hash THEN NOW()
        ELSE catalog_records.updated_at
    END;
`

	recordSelectBase = `
SELECT
    store,
    uuid,
    name,
    record_type,
    price_minor_units,
    price_currency,
    price_display,
    price_free,
    price_known,
    image,
    href,
    platforms,
    rating,
    release_year,
    release_date,
    publisher,
    content_hash
FROM catalog_records
`

	defaultRecordLimit = 1000
	maxRecordLimit     = 100000
)

func (s *CatalogStore) ensurePool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, fmt.Errorf("catalog store: nil pool")
	}
	return s.pool, nil
}

// RecordRun inserts or finalises an ingestion run audit row.
func (s *CatalogStore) RecordRun(ctx context.Context, run stagingstore.Run) error {
	pool, err := s.ensurePool()
	if err != nil {
		return err
	}
	if strings.TrimSpace(run.ID) == "" {
		return fmt.Errorf("catalog store: run id required")
	}
	report, err := encodeReport(run.Report)
	if err != nil {
		return err
	}
	args := pgx.NamedArgs{
		"id":          run.ID,
		"started_at":  run.StartedAt.UTC(),
		"finished_at": nullableTime(run.FinishedAt),
		"records":     run.Records,
		"report":      report,
	}
	if _, err := pool.Exec(ctx, runInsertSQL, args); err != nil {
		return fmt.Errorf("catalog store: upsert run: %w", err)
	}
	return nil
}

// UpsertRecords writes the staged records keyed by (store, uuid) inside one
// transaction, batching the statements over a single round trip per chunk.
func (s *CatalogStore) UpsertRecords(ctx context.Context, runID string, records []stagingstore.Record) error {
	pool, err := s.ensurePool()
	if err != nil {
		return err
	}
	if strings.TrimSpace(runID) == "" {
		return fmt.Errorf("catalog store: run id required")
	}
	if len(records) == 0 {
		return nil
	}

	var txOptions pgx.TxOptions
	txOptions.IsoLevel = pgx.ReadCommitted
	txOptions.AccessMode = pgx.ReadWrite

	tx, err := pool.BeginTx(ctx, txOptions)
	if err != nil {
		return fmt.Errorf("catalog store: begin tx: %w", err)
	}
	defer func() {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			_ = rbErr
		}
	}()

	batch := new(pgx.Batch)
	for _, record := range records {
		if err := record.Validate(); err != nil {
			return fmt.Errorf("catalog store: invalid record %s/%s: %w",
				record.Store, record.UUID, err)
		}
		batch.Queue(recordUpsertSQL, upsertArgs(runID, record))
	}
	results := tx.SendBatch(ctx, batch)
	for range records {
		if _, err := results.Exec(); err != nil {
			_ = results.Close()
			return fmt.Errorf("catalog store: upsert record: %w", err)
		}
	}
	if err := results.Close(); err != nil {
		return fmt.Errorf("catalog store: close batch: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("catalog store: commit tx: %w", err)
	}
	return nil
}

// ListRecords retrieves staged records matching the query filters, ordered by
// (store, uuid) for stable reads.
func (s *CatalogStore) ListRecords(ctx context.Context, query stagingstore.Query) ([]stagingstore.Record, error) {
	pool, err := s.ensurePool()
	if err != nil {
		return nil, err
	}
	limit := clampLimit(query.Limit, defaultRecordLimit, maxRecordLimit)

	builder := strings.Builder{}
	builder.WriteString(recordSelectBase)
	builder.WriteString(" WHERE 1=1")

	args := make([]any, 0, 2)
	argPos := 1

	if query.Store != "" {
		fmt.Fprintf(&builder, " AND store = $%d", argPos)
		args = append(args, string(query.Store))
		argPos++
	}
	fmt.Fprintf(&builder, " ORDER BY store, uuid LIMIT $%d", argPos)
	args = append(args, limit)

	rows, err := pool.Query(ctx, builder.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("catalog store: list records: %w", err)
	}
	defer rows.Close()

	var records []stagingstore.Record
	for rows.Next() {
		var (
			record      stagingstore.Record
			store       string
			recordType  string
			rating      string
			contentHash int64
		)
		if err := rows.Scan(
			&store,
			&record.UUID,
			&record.Name,
			&recordType,
			&record.Price.MinorUnits,
			&record.Price.Currency,
			&record.Price.Display,
			&record.Price.Free,
			&record.Price.Known,
			&record.Image,
			&record.Href,
			&record.Platforms,
			&rating,
			&record.ReleaseYear,
			&record.ReleaseDate,
			&record.Publisher,
			&contentHash,
		); err != nil {
			return nil, fmt.Errorf("catalog store: scan record: %w", err)
		}
		record.Store = schema.StoreID(store)
		record.Type = schema.RecordType(recordType)
		record.Rating = schema.Rating(rating)
		record.ContentHash = uint64(contentHash)
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("catalog store: iterate records: %w", err)
	}
	return records, nil
}

func upsertArgs(runID string, record stagingstore.Record) pgx.NamedArgs {
	platforms := record.Platforms
	if platforms == nil {
		platforms = []string{}
	}
	return pgx.NamedArgs{
		"store":             string(record.Store),
		"uuid":              record.UUID,
		"name":              record.Name,
		"record_type":       string(record.Type),
		"price_minor_units": record.Price.MinorUnits,
		"price_currency":    record.Price.Currency,
		"price_display":     record.Price.Display,
		"price_free":        record.Price.Free,
		"price_known":       record.Price.Known,
		"image":             record.Image,
		"href":              record.Href,
		"platforms":         platforms,
		"rating":            string(record.Rating),
		"release_year":      record.ReleaseYear,
		"release_date":      record.ReleaseDate,
		"publisher":         record.Publisher,
		// content hashes live in the uint64 space; stored as the bit-equal int64
		"content_hash": int64(record.ContentHash),
		"run_id":       runID,
	}
}

func encodeReport(report map[string]any) ([]byte, error) {
	if len(report) == 0 {
		return []byte("{}"), nil
	}
	data, err := json.Marshal(report)
	if err != nil {
		return nil, fmt.Errorf("catalog store: encode report: %w", err)
	}
	return data, nil
}

func nullableTime(value time.Time) any {
	if value.IsZero() {
		return nil
	}
	return value.UTC()
}

func clampLimit(value, fallback, maximum int) int {
	if value <= 0 {
		return fallback
	}
	if value > maximum {
		return maximum
	}
	return value
}
