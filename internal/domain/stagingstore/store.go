// Package stagingstore defines persistence contracts for per-store catalog
// records staged between ingestion runs.
package stagingstore

import (
	"context"
	"sort"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/gamedex/catalog/internal/schema"
)

// Record is a staged per-store listing with its content hash.
type Record struct {
	schema.CanonicalRecord
	ContentHash uint64 `json:"contentHash"`
}

// Run captures the outcome of one ingestion run for auditing.
type Run struct {
	ID         string         `json:"id"`
	StartedAt  time.Time      `json:"startedAt"`
	FinishedAt time.Time      `json:"finishedAt"`
	Records    int            `json:"records"`
	Report     map[string]any `json:"report,omitempty"`
}

// Query scopes staged record lookups.
type Query struct {
	Store schema.StoreID
	Limit int
}

// Store persists staged records and run audit rows.
type Store interface {
	RecordRun(ctx context.Context, run Run) error
	UpsertRecords(ctx context.Context, runID string, records []Record) error
	ListRecords(ctx context.Context, query Query) ([]Record, error)
}

// Hash computes the content hash of a canonical record. Platform order does
// not affect the result.
func Hash(record schema.CanonicalRecord) uint64 {
	const sep = "\x1f"
	h := xxhash.New()
	write := func(parts ...string) {
		for _, part := range parts {
			_, _ = h.WriteString(part)
			_, _ = h.WriteString(sep)
		}
	}
	write(string(record.Store), record.UUID, record.Name, string(record.Type))
	write(strconv.FormatInt(record.Price.MinorUnits, 10), record.Price.Currency,
		record.Price.Display, strconv.FormatBool(record.Price.Free),
		strconv.FormatBool(record.Price.Known))
	write(record.Image, record.Href, string(record.Rating))
	write(strconv.Itoa(record.ReleaseYear), record.ReleaseDate, record.Publisher)

	platforms := append([]string(nil), record.Platforms...)
	sort.Strings(platforms)
	write(platforms...)
	return h.Sum64()
}

// Staged wraps canonical records with their content hashes.
func Staged(records []schema.CanonicalRecord) []Record {
	out := make([]Record, 0, len(records))
	for _, record := range records {
		out = append(out, Record{CanonicalRecord: record, ContentHash: Hash(record)})
	}
	return out
}
