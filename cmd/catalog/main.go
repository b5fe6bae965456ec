// Command catalog runs the full ingestion pipeline: fetch every requested
// storefront, normalize and deduplicate the listings, and write the
// deterministic snapshot layout.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/sourcegraph/conc"

	"github.com/gamedex/catalog/config"
	"github.com/gamedex/catalog/internal/adapters"
	"github.com/gamedex/catalog/internal/adapters/builtin"
	"github.com/gamedex/catalog/internal/dedupe"
	"github.com/gamedex/catalog/internal/domain/stagingstore"
	"github.com/gamedex/catalog/internal/httpx"
	"github.com/gamedex/catalog/internal/infra/persistence/postgres"
	"github.com/gamedex/catalog/internal/ingest"
	"github.com/gamedex/catalog/internal/merge"
	"github.com/gamedex/catalog/internal/observability"
	"github.com/gamedex/catalog/internal/schema"
	"github.com/gamedex/catalog/internal/snapshot"
	"github.com/gamedex/catalog/internal/telemetry"
	libtelemetry "github.com/gamedex/catalog/lib/telemetry"
)

const telemetryShutdownTimeout = 5 * time.Second

type flags struct {
	configPath string
	stores     string
	outputDir  string
	country    string
	locale     string
	workers    int
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	f := parseFlags()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load(f.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	applyFlags(&cfg, f)

	logger, err := observability.NewZapLogger(cfg.Log.Level, cfg.Log.Pretty)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	observability.SetLogger(logger)

	provider, shutdownTelemetry, err := libtelemetry.Init(ctx, cfg.Telemetry)
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), telemetryShutdownTimeout)
		defer shutdownCancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			logger.Warn("telemetry shutdown", observability.F("error", err.Error()))
		}
	}()

	metrics, err := telemetry.NewMetrics(provider.Meter("gamedex.catalog"))
	if err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}

	stores, err := resolveStores(f.stores, builtin.Registry())
	if err != nil {
		return err
	}

	logger.Info("pipeline starting",
		observability.F("stores", storeNames(stores)),
		observability.F("country", cfg.Ingest.Country),
		observability.F("output", cfg.OutputDir))

	client := httpx.NewClient(httpClientConfig(cfg), metrics)
	orchestrator := ingest.New(builtin.Registry(), storeDeps(cfg, client), metrics, ingest.Config{
		Workers:  cfg.Ingest.Workers,
		Deadline: cfg.Ingest.Deadline,
	})

	records, report, err := orchestrator.Run(ctx, stores, adapters.Params{
		Country: cfg.Ingest.Country,
		Locale:  cfg.Ingest.Locale,
	})
	if err != nil {
		return fmt.Errorf("ingest: %w", err)
	}
	for _, sr := range report.Stores {
		logger.Info("store result",
			observability.F("store", string(sr.Store)),
			observability.F("status", string(sr.Status)),
			observability.F("fetched", sr.Fetched),
			observability.F("dropped", sr.Dropped))
	}
	if !report.Succeeded() {
		return fmt.Errorf("ingest: every store failed (run %s)", report.RunID)
	}

	var lifecycle conc.WaitGroup
	var stagingErr error
	if dsn := strings.TrimSpace(cfg.DatabaseDSN); dsn != "" {
		lifecycle.Go(func() {
			stagingErr = stageRecords(ctx, dsn, report, records)
		})
	}

	deduper := dedupe.New(dedupe.Config{
		SimilarityThreshold: cfg.Dedupe.SimilarityThreshold,
		YearTolerance:       cfg.Dedupe.YearTolerance,
	})
	entries := deduper.Cluster(records)
	metrics.Add(ctx, telemetry.CounterEntriesMerged, int64(len(entries)), "", "")

	previous, err := snapshot.Read(cfg.OutputDir)
	if err != nil {
		return fmt.Errorf("read previous snapshot: %w", err)
	}

	snap := merge.NewEngine().Build(entries, previous.Entries)
	meta, err := snapshot.NewWriter(cfg.OutputDir).Write(snap)
	if err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}

	lifecycle.Wait()
	if stagingErr != nil {
		// snapshot output is already on disk; a staging failure degrades, it
		// does not fail the run
		logger.Warn("staging store", observability.F("error", stagingErr.Error()))
	}

	logger.Info("pipeline finished",
		observability.F("run", report.RunID),
		observability.F("entries", len(snap.Entries)),
		observability.F("new", meta.New),
		observability.F("bytes", meta.Size))
	return nil
}

func parseFlags() flags {
	var f flags
	flag.StringVar(&f.configPath, "config", "", "Path to YAML configuration file (optional)")
	flag.StringVar(&f.stores, "stores", "", "Comma-separated store list (default: all built-ins)")
	flag.StringVar(&f.outputDir, "out", "", "Snapshot output directory (overrides config)")
	flag.StringVar(&f.country, "country", "", "Storefront country code (overrides config)")
	flag.StringVar(&f.locale, "locale", "", "Storefront locale (overrides config)")
	flag.IntVar(&f.workers, "workers", 0, "Concurrent store fetches (overrides config)")
	flag.Parse()
	return f
}

func applyFlags(cfg *config.Settings, f flags) {
	if f.outputDir != "" {
		cfg.OutputDir = f.outputDir
	}
	if f.country != "" {
		cfg.Ingest.Country = f.country
	}
	if f.locale != "" {
		cfg.Ingest.Locale = f.locale
	}
	if f.workers > 0 {
		cfg.Ingest.Workers = f.workers
	}
}

func resolveStores(raw string, registry *adapters.Registry) ([]schema.StoreID, error) {
	if strings.TrimSpace(raw) == "" {
		return registry.Stores(), nil
	}
	return schema.ParseStores(raw)
}

func storeNames(stores []schema.StoreID) []string {
	out := make([]string, 0, len(stores))
	for _, store := range stores {
		out = append(out, string(store))
	}
	return out
}

func httpClientConfig(cfg config.Settings) httpx.Config {
	return httpx.Config{
		Timeout:         cfg.HTTP.Timeout,
		MaxRetries:      cfg.HTTP.MaxRetries,
		BackoffBase:     cfg.HTTP.BackoffBase,
		BackoffCap:      cfg.HTTP.BackoffCap,
		RequestsPerSec:  cfg.HTTP.RequestsPerSec,
		Burst:           cfg.HTTP.Burst,
		BreakerTrip:     cfg.HTTP.BreakerTrip,
		BreakerCooldown: cfg.HTTP.BreakerCooldown,
		UserAgent:       cfg.HTTP.UserAgent,
	}
}

func storeDeps(cfg config.Settings, client *httpx.Client) func(schema.StoreID) adapters.Deps {
	return func(store schema.StoreID) adapters.Deps {
		return adapters.Deps{
			Client: client,
			Store: config.StoreSettings{
				BaseURL:        cfg.StoreBaseURL(string(store)),
				RequestsPerSec: cfg.StoreRate(string(store)),
			},
		}
	}
}

// stageRecords persists the run's per-store records for later auditing.
func stageRecords(ctx context.Context, dsn string, report ingest.Report, records []schema.CanonicalRecord) error {
	store, err := postgres.Connect(ctx, dsn)
	if err != nil {
		return err
	}
	defer store.Close()
	postgres.ObservePoolMetrics(store.Pool(), "catalog")

	catalog := postgres.NewCatalogStore(store.Pool())
	run := stagingstore.Run{
		ID:         report.RunID,
		StartedAt:  report.StartedAt,
		FinishedAt: report.FinishedAt,
		Records:    report.Records,
		Report:     reportDetails(report),
	}
	if err := catalog.RecordRun(ctx, run); err != nil {
		return err
	}
	return catalog.UpsertRecords(ctx, report.RunID, stagingstore.Staged(records))
}

func reportDetails(report ingest.Report) map[string]any {
	stores := make(map[string]any, len(report.Stores))
	for _, sr := range report.Stores {
		stores[string(sr.Store)] = map[string]any{
			"status":  string(sr.Status),
			"fetched": sr.Fetched,
			"dropped": sr.Dropped,
			"error":   sr.Error,
		}
	}
	return map[string]any{"stores": stores}
}
