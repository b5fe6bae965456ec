// Package telemetry defines the pipeline's OpenTelemetry instruments.
package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Semantic convention attribute keys for catalog telemetry.
const (
	// AttrStore identifies which storefront produced the signal.
	AttrStore = attribute.Key("store")
	// AttrDomain captures the HTTP host a request targeted.
	AttrDomain = attribute.Key("domain")
)

// Counter names a pipeline counter instrument.
type Counter string

const (
	// CounterRequests counts HTTP requests issued per store/domain.
	CounterRequests Counter = "catalog.http.requests"
	// CounterRetries counts retry attempts after transient failures.
	CounterRetries Counter = "catalog.http.retries"
	// CounterBreakerRejects counts requests rejected by an open circuit.
	CounterBreakerRejects Counter = "catalog.http.breaker_rejects"
	// CounterRecordsFetched counts raw listings fetched per store.
	CounterRecordsFetched Counter = "catalog.ingest.records_fetched"
	// CounterRecordsDropped counts listings dropped by validation.
	CounterRecordsDropped Counter = "catalog.ingest.records_dropped"
	// CounterStoresSkipped counts stores degraded to skipped status.
	CounterStoresSkipped Counter = "catalog.ingest.stores_skipped"
	// CounterEntriesMerged counts catalog entries produced by deduplication.
	CounterEntriesMerged Counter = "catalog.dedupe.entries_merged"
)

var counterDescriptions = map[Counter]string{
	CounterRequests:       "HTTP requests issued to storefront endpoints.",
	CounterRetries:        "Retry attempts after transient storefront failures.",
	CounterBreakerRejects: "Requests rejected fast by an open per-domain circuit.",
	CounterRecordsFetched: "Raw listings fetched from storefront adapters.",
	CounterRecordsDropped: "Listings dropped due to mandatory-field validation.",
	CounterStoresSkipped:  "Stores degraded to skipped status during a run.",
	CounterEntriesMerged:  "Catalog entries produced by cross-store deduplication.",
}

// Metrics bundles the counter instruments used across the pipeline.
type Metrics struct {
	counters map[Counter]metric.Int64Counter
}

// NewMetrics registers every pipeline counter on the provided meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	counters := make(map[Counter]metric.Int64Counter, len(counterDescriptions))
	for name, description := range counterDescriptions {
		counter, err := meter.Int64Counter(string(name), metric.WithDescription(description))
		if err != nil {
			return nil, err
		}
		counters[name] = counter
	}
	return &Metrics{counters: counters}, nil
}

// Count increments the named counter by one, labelled with store and domain
// when provided.
func (m *Metrics) Count(ctx context.Context, name Counter, store, domain string) {
	m.Add(ctx, name, 1, store, domain)
}

// Add increments the named counter by value.
func (m *Metrics) Add(ctx context.Context, name Counter, value int64, store, domain string) {
	if m == nil {
		return
	}
	counter, ok := m.counters[name]
	if !ok {
		return
	}
	var attrs []attribute.KeyValue
	if store != "" {
		attrs = append(attrs, AttrStore.String(store))
	}
	if domain != "" {
		attrs = append(attrs, AttrDomain.String(domain))
	}
	counter.Add(ctx, value, metric.WithAttributes(attrs...))
}
