package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefaultValidates(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.yaml")
	body := `
outputDir: /tmp/catalog-out
http:
  timeout: 10s
  maxRetries: 2
  backoffBase: 250ms
  backoffCap: 4s
  requestsPerSec: 1.5
  burst: 2
  breakerTrip: 3
  breakerCooldown: 15s
ingest:
  workers: 8
  country: CA
stores:
  steam:
    requestsPerSec: 2.0
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	settings, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "/tmp/catalog-out", settings.OutputDir)
	require.Equal(t, 2, settings.HTTP.MaxRetries)
	require.Equal(t, 250*time.Millisecond, settings.HTTP.BackoffBase)
	require.Equal(t, 8, settings.Ingest.Workers)
	require.Equal(t, "CA", settings.Ingest.Country)
	// untouched keys keep defaults
	require.Equal(t, "en-US", settings.Ingest.Locale)
	require.InDelta(t, 0.6, settings.Dedupe.SimilarityThreshold, 1e-9)
}

func TestEnvOverrides(t *testing.T) {
	settings := Default()
	settings.applyEnv(func(key string) string {
		switch key {
		case "CATALOG_OUTPUT_DIR":
			return "/srv/catalog"
		case "CATALOG_WORKERS":
			return "12"
		case "CATALOG_COUNTRY":
			return "GB"
		default:
			return ""
		}
	})
	require.Equal(t, "/srv/catalog", settings.OutputDir)
	require.Equal(t, 12, settings.Ingest.Workers)
	require.Equal(t, "GB", settings.Ingest.Country)
}

func TestValidateRejectsBadBackoff(t *testing.T) {
	settings := Default()
	settings.HTTP.BackoffCap = settings.HTTP.BackoffBase / 2
	require.Error(t, settings.Validate())
}

func TestValidateRejectsBadThreshold(t *testing.T) {
	settings := Default()
	settings.Dedupe.SimilarityThreshold = 1.5
	require.Error(t, settings.Validate())
}

func TestStoreRateFallback(t *testing.T) {
	settings := Default()
	settings.Stores = map[string]StoreSettings{"steam": {RequestsPerSec: 2.0}}
	require.InDelta(t, 2.0, settings.StoreRate("steam"), 1e-9)
	require.InDelta(t, settings.HTTP.RequestsPerSec, settings.StoreRate("psn"), 1e-9)
}
