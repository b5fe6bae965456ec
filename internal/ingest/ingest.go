// Package ingest drives storefront adapters concurrently and funnels their
// raw listings through normalization into a single record set.
package ingest

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/gamedex/catalog/errs"
	"github.com/gamedex/catalog/internal/adapters"
	"github.com/gamedex/catalog/internal/normalize"
	"github.com/gamedex/catalog/internal/observability"
	"github.com/gamedex/catalog/internal/schema"
	"github.com/gamedex/catalog/internal/telemetry"
	"github.com/gamedex/catalog/lib/async"
)

// StoreStatus classifies a store's outcome within one run.
type StoreStatus string

const (
	// StatusComplete means the adapter walked its full sequence.
	StatusComplete StoreStatus = "complete"
	// StatusPartial means the adapter failed after yielding some records;
	// the records it produced stay in the run.
	StatusPartial StoreStatus = "partial"
	// StatusSkipped means the adapter produced nothing before failing.
	StatusSkipped StoreStatus = "skipped"
)

// StoreReport summarises one store's fetch.
type StoreReport struct {
	Store    schema.StoreID `json:"store"`
	Status   StoreStatus    `json:"status"`
	Fetched  int            `json:"fetched"`
	Dropped  int            `json:"dropped"`
	Error    string         `json:"error,omitempty"`
	Duration time.Duration  `json:"duration"`
}

// Report describes a full ingestion run.
type Report struct {
	RunID      string        `json:"run_id"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Stores     []StoreReport `json:"stores"`
	Records    int           `json:"records"`
}

// Succeeded reports whether at least one store yielded records.
func (r Report) Succeeded() bool {
	for _, store := range r.Stores {
		if store.Status != StatusSkipped {
			return true
		}
	}
	return false
}

// Config bounds orchestrator concurrency.
type Config struct {
	Workers  int
	Deadline time.Duration
}

// Orchestrator fans one fetch task per store onto a bounded worker pool.
type Orchestrator struct {
	registry *adapters.Registry
	deps     func(schema.StoreID) adapters.Deps
	metrics  *telemetry.Metrics
	cfg      Config
	now      func() time.Time
}

// New constructs an orchestrator. deps resolves per-store dependencies; a
// nil metrics handle disables instrumentation.
func New(registry *adapters.Registry, deps func(schema.StoreID) adapters.Deps, metrics *telemetry.Metrics, cfg Config) *Orchestrator {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if deps == nil {
		deps = func(schema.StoreID) adapters.Deps { return adapters.Deps{} }
	}
	return &Orchestrator{registry: registry, deps: deps, metrics: metrics, cfg: cfg, now: time.Now}
}

type storeResult struct {
	report  StoreReport
	records []schema.CanonicalRecord
}

// Run fetches every requested store concurrently and returns the combined
// normalized record set plus the per-store report. A store failure never
// fails the run; the report carries its status instead.
func (o *Orchestrator) Run(ctx context.Context, stores []schema.StoreID, params adapters.Params) ([]schema.CanonicalRecord, Report, error) {
	report := Report{RunID: uuid.NewString(), StartedAt: o.now().UTC()}

	if o.cfg.Deadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.cfg.Deadline)
		defer cancel()
	}

	pool, err := async.NewPool(o.cfg.Workers, len(stores))
	if err != nil {
		return nil, report, err
	}
	defer pool.Close()

	results := make(chan storeResult, len(stores))
	submitted := 0
	for _, store := range stores {
		s := store
		if err := pool.Submit(ctx, func(taskCtx context.Context) error {
			results <- o.fetchStore(taskCtx, s, params)
			return nil
		}); err != nil {
			results <- storeResult{report: StoreReport{
				Store:  s,
				Status: StatusSkipped,
				Error:  err.Error(),
			}}
		}
		submitted++
	}

	var records []schema.CanonicalRecord
	for i := 0; i < submitted; i++ {
		result := <-results
		report.Stores = append(report.Stores, result.report)
		records = append(records, result.records...)
	}
	sort.Slice(report.Stores, func(i, j int) bool {
		return report.Stores[i].Store.Priority() < report.Stores[j].Store.Priority()
	})

	report.FinishedAt = o.now().UTC()
	report.Records = len(records)
	return records, report, nil
}

func (o *Orchestrator) fetchStore(ctx context.Context, store schema.StoreID, params adapters.Params) storeResult {
	started := o.now()
	result := storeResult{report: StoreReport{Store: store}}

	adapter, err := o.registry.New(store, o.deps(store))
	if err != nil {
		result.report.Status = StatusSkipped
		result.report.Error = err.Error()
		o.countSkip(ctx, store)
		return result
	}

	fetchErr := adapter.Fetch(ctx, params, func(raw schema.RawListing) error {
		result.report.Fetched++
		o.count(ctx, telemetry.CounterRecordsFetched, store)

		normalized, err := normalize.Record(raw)
		if err != nil {
			result.report.Dropped++
			o.count(ctx, telemetry.CounterRecordsDropped, store)
			observability.Log().Warn("drop listing",
				observability.F("store", string(store)),
				observability.F("error", err.Error()))
			return nil
		}
		if len(normalized.UnknownPlatforms) > 0 {
			observability.Log().Debug("unknown platform tags",
				observability.F("store", string(store)),
				observability.F("platforms", normalized.UnknownPlatforms))
		}
		result.records = append(result.records, normalized.Record)
		return nil
	})

	result.report.Duration = o.now().Sub(started)
	switch {
	case fetchErr == nil:
		result.report.Status = StatusComplete
	case len(result.records) > 0:
		result.report.Status = StatusPartial
		result.report.Error = fetchErr.Error()
		observability.Log().Warn("store fetch incomplete",
			observability.F("store", string(store)),
			observability.F("code", string(errs.CodeOf(fetchErr))),
			observability.F("records", len(result.records)))
	default:
		result.report.Status = StatusSkipped
		result.report.Error = fetchErr.Error()
		result.records = nil
		o.countSkip(ctx, store)
		observability.Log().Warn("store skipped",
			observability.F("store", string(store)),
			observability.F("code", string(errs.CodeOf(fetchErr))))
	}
	return result
}

func (o *Orchestrator) count(ctx context.Context, counter telemetry.Counter, store schema.StoreID) {
	if o.metrics == nil {
		return
	}
	o.metrics.Count(ctx, counter, string(store), "")
}

func (o *Orchestrator) countSkip(ctx context.Context, store schema.StoreID) {
	o.count(ctx, telemetry.CounterStoresSkipped, store)
}
