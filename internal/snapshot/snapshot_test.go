package snapshot

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/require"

	"github.com/gamedex/catalog/internal/dedupe"
	"github.com/gamedex/catalog/internal/schema"
)

func sampleSnapshot() schema.Snapshot {
	return schema.Snapshot{
		Entries: []schema.CatalogEntry{
			{
				Name:  "428: Shibuya Scramble",
				Type:  schema.TypeGame,
				Price: schema.Price{MinorUnits: 4999, Currency: "USD", Display: "$49.99", Known: true},
				Links: []schema.StoreLink{{Store: schema.StorePSN, Href: "https://psn.example/428"}},
				Provenance: []schema.Provenance{
					{Store: schema.StorePSN, UUID: "JP0571"},
				},
				Platforms: []string{"PS4"},
				Rating:    schema.RatingMature,
			},
			{
				Name:  "Celeste",
				Type:  schema.TypeGame,
				Price: schema.Price{MinorUnits: 1999, Currency: "USD", Display: "$19.99", Known: true},
				Image: "https://cdn.example/celeste.jpg",
				Links: []schema.StoreLink{
					{Store: schema.StoreNintendo, Href: "https://nintendo.example/celeste"},
					{Store: schema.StoreSteam, Href: "https://steam.example/504230"},
				},
				Provenance: []schema.Provenance{
					{Store: schema.StoreNintendo, UUID: "70010000002083"},
					{Store: schema.StoreSteam, UUID: "504230"},
				},
				Platforms: []string{"Windows", "Switch"},
				Rating:    schema.RatingEveryone10,
			},
		},
		Meta: schema.SnapshotMeta{Date: "2026-08-30T12:00:00Z", New: 2},
	}
}

func TestWriteProducesFullLayout(t *testing.T) {
	dir := t.TempDir()
	meta, err := NewWriter(dir).Write(sampleSnapshot())
	require.NoError(t, err)
	require.Positive(t, meta.Size)

	// 27 letter files plus bang and metadata
	names, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, names, 29)

	for _, file := range []string{BangFile, MetaFile, OtherFile, "a.json", "c.json", "z.json"} {
		_, err := os.Stat(filepath.Join(dir, file))
		require.NoError(t, err, file)
	}
}

func TestBangFileShape(t *testing.T) {
	dir := t.TempDir()
	_, err := NewWriter(dir).Write(sampleSnapshot())
	require.NoError(t, err)

	payload, err := os.ReadFile(filepath.Join(dir, BangFile))
	require.NoError(t, err)

	var raw [][2]json.RawMessage
	require.NoError(t, json.Unmarshal(payload, &raw))
	require.Len(t, raw, 2)

	var name string
	require.NoError(t, json.Unmarshal(raw[1][0], &name))
	require.Equal(t, "Celeste", name)

	var got map[string]any
	require.NoError(t, json.Unmarshal(raw[1][1], &got))
	require.Equal(t, "$19.99", got["price"])
	// primary link and uuid come from the highest-priority store
	require.Equal(t, "https://steam.example/504230", got["href"])
	require.Equal(t, "504230", got["uuid"])
	require.Equal(t, "everyone_10", got["rating"])
}

func TestLetterBucketing(t *testing.T) {
	dir := t.TempDir()
	_, err := NewWriter(dir).Write(sampleSnapshot())
	require.NoError(t, err)

	var cEntries []letterEntry
	payload, err := os.ReadFile(filepath.Join(dir, "c.json"))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(payload, &cEntries))
	require.Len(t, cEntries, 1)
	require.Equal(t, "Celeste", cEntries[0].Name)

	var other []letterEntry
	payload, err = os.ReadFile(filepath.Join(dir, OtherFile))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(payload, &other))
	require.Len(t, other, 1)
	require.Equal(t, "428: Shibuya Scramble", other[0].Name)

	var empty []letterEntry
	payload, err = os.ReadFile(filepath.Join(dir, "q.json"))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(payload, &empty))
	require.Empty(t, empty)
}

func TestMetaFileCarriesSizeDateDelta(t *testing.T) {
	dir := t.TempDir()
	meta, err := NewWriter(dir).Write(sampleSnapshot())
	require.NoError(t, err)

	payload, err := os.ReadFile(filepath.Join(dir, MetaFile))
	require.NoError(t, err)

	var got schema.SnapshotMeta
	require.NoError(t, json.Unmarshal(payload, &got))
	require.Equal(t, meta, got)
	require.Equal(t, "2026-08-30T12:00:00Z", got.Date)
	require.Equal(t, 2, got.New)
}

func TestReadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	snap := sampleSnapshot()
	_, err := NewWriter(dir).Write(snap)
	require.NoError(t, err)

	got, err := Read(dir)
	require.NoError(t, err)
	require.Len(t, got.Entries, 2)
	require.Equal(t, "428: Shibuya Scramble", got.Entries[0].Name)
	require.Equal(t, "Celeste", got.Entries[1].Name)
	require.Equal(t, "$19.99", got.Entries[1].Price.Display)
	require.Equal(t, []string{"Windows", "Switch"}, got.Entries[1].Platforms)
	require.Equal(t, 2, got.Meta.New)

	// the read-back catalog survives re-clustering: a run seeded from this
	// snapshot keeps the same names and platform sets
	records := make([]schema.CanonicalRecord, 0, len(got.Entries))
	for i, e := range got.Entries {
		records = append(records, schema.CanonicalRecord{
			Store:     schema.StoreSteam,
			UUID:      fmt.Sprintf("prev-%d", i),
			Name:      e.Name,
			Type:      e.Type,
			Price:     e.Price,
			Image:     e.Image,
			Platforms: e.Platforms,
			Rating:    e.Rating,
		})
	}
	clustered := dedupe.New(dedupe.DefaultConfig()).Cluster(records)
	require.Len(t, clustered, len(got.Entries))
	for i, e := range clustered {
		require.Equal(t, got.Entries[i].Name, e.Name)
		require.ElementsMatch(t, got.Entries[i].Platforms, e.Platforms)
	}
}

func TestReadMissingSnapshotIsEmpty(t *testing.T) {
	got, err := Read(t.TempDir())
	require.NoError(t, err)
	require.Empty(t, got.Entries)
}

func TestRewriteReplacesPreviousFiles(t *testing.T) {
	dir := t.TempDir()
	_, err := NewWriter(dir).Write(sampleSnapshot())
	require.NoError(t, err)

	next := schema.Snapshot{
		Entries: []schema.CatalogEntry{{
			Name:   "Portal",
			Type:   schema.TypeGame,
			Price:  schema.Price{MinorUnits: 999, Currency: "USD", Display: "$9.99", Known: true},
			Links:  []schema.StoreLink{{Store: schema.StoreSteam, Href: "https://steam.example/400"}},
			Rating: schema.RatingTeen,
		}},
		Meta: schema.SnapshotMeta{Date: "2026-08-31T12:00:00Z", New: -1},
	}
	_, err = NewWriter(dir).Write(next)
	require.NoError(t, err)

	got, err := Read(dir)
	require.NoError(t, err)
	require.Len(t, got.Entries, 1)
	require.Equal(t, "Portal", got.Entries[0].Name)

	// the old Celeste bucket is rewritten empty, no stale temp files remain
	var cEntries []letterEntry
	payload, err := os.ReadFile(filepath.Join(dir, "c.json"))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(payload, &cEntries))
	require.Empty(t, cEntries)

	names, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, names, 29)
}
