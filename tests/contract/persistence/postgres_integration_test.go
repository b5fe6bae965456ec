package persistence_test

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/gamedex/catalog/internal/domain/stagingstore"
	pgstore "github.com/gamedex/catalog/internal/infra/persistence/postgres"
	"github.com/gamedex/catalog/internal/schema"

	"github.com/golang-migrate/migrate/v4"
	pgxmigrate "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/jackc/pgx/v5/stdlib"
)

var (
	testPool    *pgxpool.Pool
	pgContainer testcontainers.Container
	setupErr    error
)

func TestMain(m *testing.M) {
	ctx := context.Background()
	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		Env:          map[string]string{"POSTGRES_PASSWORD": "secret", "POSTGRES_USER": "postgres", "POSTGRES_DB": "catalog"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start postgres container: %v\n", err)
		os.Exit(1)
	}
	pgContainer = container

	setupErr = initialiseDatabase(ctx)
	exitCode := 0
	if setupErr != nil {
		fmt.Fprintf(os.Stderr, "postgres contract tests skipped: %v\n", setupErr)
	} else {
		exitCode = m.Run()
	}

	if testPool != nil {
		testPool.Close()
	}
	if pgContainer != nil {
		_ = pgContainer.Terminate(ctx)
	}
	os.Exit(exitCode)
}

func initialiseDatabase(ctx context.Context) error {
	host, err := pgContainer.Host(ctx)
	if err != nil {
		return fmt.Errorf("container host: %w", err)
	}
	port, err := pgContainer.MappedPort(ctx, "5432/tcp")
	if err != nil {
		return fmt.Errorf("container port: %w", err)
	}
	dsn := fmt.Sprintf("postgres://postgres:secret@%s:%s/catalog?sslmode=disable", host, port.Port())

	if err := applyMigrations(dsn); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return fmt.Errorf("pgx pool: %w", err)
	}
	testPool = pool
	return nil
}

func applyMigrations(dsn string) error {
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		return fmt.Errorf("runtime caller lookup failed")
	}
	root := filepath.Clean(filepath.Join(filepath.Dir(file), "..", "..", ".."))
	migrationsDir := filepath.Join(root, "db", "migrations")
	sourceURL := fmt.Sprintf("file://%s", migrationsDir)

	sqlDB, err := sql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("open sql connection: %w", err)
	}
	defer sqlDB.Close()

	driver, err := pgxmigrate.WithInstance(sqlDB, &pgxmigrate.Config{})
	if err != nil {
		return fmt.Errorf("postgres driver: %w", err)
	}
	m, err := migrate.NewWithDatabaseInstance(sourceURL, "postgres", driver)
	if err != nil {
		return fmt.Errorf("migrate instance: %w", err)
	}
	defer m.Close()
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("migrate up: %w", err)
	}
	return nil
}

func canonicalRecord(store schema.StoreID, id, name string, cents int64) schema.CanonicalRecord {
	return schema.CanonicalRecord{
		Store: store,
		UUID:  id,
		Name:  name,
		Type:  schema.TypeGame,
		Price: schema.Price{
			MinorUnits: cents,
			Currency:   "USD",
			Display:    fmt.Sprintf("$%d.%02d", cents/100, cents%100),
			Known:      true,
		},
		Href:      fmt.Sprintf("https://%s.example/%s", store, id),
		Platforms: []string{"Windows"},
		Rating:    schema.RatingTeen,
	}
}

func TestCatalogStoreRoundTrip(t *testing.T) {
	if setupErr != nil {
		t.Skipf("postgres contract setup unavailable: %v", setupErr)
	}
	ctx := context.Background()
	store := pgstore.NewCatalogStore(testPool)

	runID := uuid.NewString()
	started := time.Now().UTC().Truncate(time.Second)
	if err := store.RecordRun(ctx, stagingstore.Run{
		ID:        runID,
		StartedAt: started,
		Records:   2,
		Report:    map[string]any{"stores": map[string]any{"steam": "complete"}},
	}); err != nil {
		t.Fatalf("record run: %v", err)
	}

	records := stagingstore.Staged([]schema.CanonicalRecord{
		canonicalRecord(schema.StoreSteam, "620", "Portal 2", 999),
		canonicalRecord(schema.StorePSN, "UP1", "Bloodborne", 1999),
	})
	if err := store.UpsertRecords(ctx, runID, records); err != nil {
		t.Fatalf("upsert records: %v", err)
	}

	listed, err := store.ListRecords(ctx, stagingstore.Query{})
	if err != nil {
		t.Fatalf("list records: %v", err)
	}
	if len(listed) != 2 {
		t.Fatalf("expected 2 records, got %d", len(listed))
	}
	// ordered by (store, uuid): psn before steam
	if listed[0].Store != schema.StorePSN || listed[0].Name != "Bloodborne" {
		t.Fatalf("unexpected first record %s/%s", listed[0].Store, listed[0].Name)
	}
	if listed[1].ContentHash != records[0].ContentHash && listed[1].ContentHash != records[1].ContentHash {
		t.Fatalf("content hash did not round-trip")
	}
	if listed[1].Price.MinorUnits != 999 || !listed[1].Price.Known {
		t.Fatalf("unexpected steam price %+v", listed[1].Price)
	}
}

func TestCatalogStoreUpsertIsIdempotent(t *testing.T) {
	if setupErr != nil {
		t.Skipf("postgres contract setup unavailable: %v", setupErr)
	}
	ctx := context.Background()
	store := pgstore.NewCatalogStore(testPool)

	runA := uuid.NewString()
	runB := uuid.NewString()
	for _, id := range []string{runA, runB} {
		if err := store.RecordRun(ctx, stagingstore.Run{ID: id, StartedAt: time.Now().UTC()}); err != nil {
			t.Fatalf("record run: %v", err)
		}
	}

	original := stagingstore.Staged([]schema.CanonicalRecord{
		canonicalRecord(schema.StoreXbox, "halo-1", "Halo Infinite", 5999),
	})
	if err := store.UpsertRecords(ctx, runA, original); err != nil {
		t.Fatalf("initial upsert: %v", err)
	}

	discounted := stagingstore.Staged([]schema.CanonicalRecord{
		canonicalRecord(schema.StoreXbox, "halo-1", "Halo Infinite", 2999),
	})
	if err := store.UpsertRecords(ctx, runB, discounted); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	listed, err := store.ListRecords(ctx, stagingstore.Query{Store: schema.StoreXbox})
	if err != nil {
		t.Fatalf("list records: %v", err)
	}
	if len(listed) != 1 {
		t.Fatalf("expected single upserted row, got %d", len(listed))
	}
	if listed[0].Price.MinorUnits != 2999 {
		t.Fatalf("expected updated price, got %d", listed[0].Price.MinorUnits)
	}
	if listed[0].ContentHash != discounted[0].ContentHash {
		t.Fatalf("expected refreshed content hash")
	}
}

func TestCatalogStoreFinalisesRun(t *testing.T) {
	if setupErr != nil {
		t.Skipf("postgres contract setup unavailable: %v", setupErr)
	}
	ctx := context.Background()
	store := pgstore.NewCatalogStore(testPool)

	runID := uuid.NewString()
	started := time.Now().UTC()
	if err := store.RecordRun(ctx, stagingstore.Run{ID: runID, StartedAt: started}); err != nil {
		t.Fatalf("open run: %v", err)
	}
	if err := store.RecordRun(ctx, stagingstore.Run{
		ID:         runID,
		StartedAt:  started,
		FinishedAt: started.Add(time.Minute),
		Records:    42,
	}); err != nil {
		t.Fatalf("finalise run: %v", err)
	}

	var records int
	var finished time.Time
	row := testPool.QueryRow(ctx, "SELECT records, finished_at FROM ingestion_runs WHERE id = $1", runID)
	if err := row.Scan(&records, &finished); err != nil {
		t.Fatalf("scan run: %v", err)
	}
	if records != 42 {
		t.Fatalf("expected 42 records, got %d", records)
	}
	if finished.IsZero() {
		t.Fatalf("expected finished_at to be set")
	}
}
