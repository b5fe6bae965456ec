package merge

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/gamedex/catalog/internal/schema"
)

func entry(name string, mutate ...func(*schema.CatalogEntry)) schema.CatalogEntry {
	e := schema.CatalogEntry{
		Name:   name,
		Type:   schema.TypeGame,
		Price:  schema.Price{MinorUnits: 1999, Currency: "USD", Display: "$19.99", Known: true},
		Rating: schema.RatingUnrated,
		Links:  []schema.StoreLink{{Store: schema.StoreSteam, Href: "https://steam.example/" + name}},
		Provenance: []schema.Provenance{
			{Store: schema.StoreSteam, UUID: name + "-id"},
		},
		Platforms: []string{"Windows"},
	}
	for _, fn := range mutate {
		fn(&e)
	}
	return e
}

func entries(names ...string) []schema.CatalogEntry {
	out := make([]schema.CatalogEntry, 0, len(names))
	for _, name := range names {
		out = append(out, entry(name))
	}
	return out
}

func TestHashEntryIgnoresListOrder(t *testing.T) {
	a := entry("Hades", func(e *schema.CatalogEntry) {
		e.Platforms = []string{"Windows", "Switch"}
		e.Links = []schema.StoreLink{
			{Store: schema.StoreSteam, Href: "https://steam.example/hades"},
			{Store: schema.StoreNintendo, Href: "https://nintendo.example/hades"},
		}
	})
	b := entry("Hades", func(e *schema.CatalogEntry) {
		e.Platforms = []string{"Switch", "Windows"}
		e.Links = []schema.StoreLink{
			{Store: schema.StoreNintendo, Href: "https://nintendo.example/hades"},
			{Store: schema.StoreSteam, Href: "https://steam.example/hades"},
		}
	})
	require.Equal(t, HashEntry(a), HashEntry(b))
}

func TestHashEntryDetectsFieldChange(t *testing.T) {
	base := entry("Celeste")
	repriced := entry("Celeste", func(e *schema.CatalogEntry) {
		e.Price.MinorUnits = 999
	})
	require.NotEqual(t, HashEntry(base), HashEntry(repriced))
}

func TestHashEntrySeparatorsPreventGluing(t *testing.T) {
	a := entry("ab", func(e *schema.CatalogEntry) { e.Type = "c" })
	b := entry("a", func(e *schema.CatalogEntry) { e.Type = "bc" })
	require.NotEqual(t, HashEntry(a), HashEntry(b))
}

func TestDeltaSignedCount(t *testing.T) {
	previous := make([]schema.CatalogEntry, 0, 100)
	for i := 0; i < 100; i++ {
		previous = append(previous, entry(fmt.Sprintf("Game %03d", i)))
	}
	// 97 survivors plus 5 fresh names
	current := make([]schema.CatalogEntry, 0, 102)
	current = append(current, previous[:97]...)
	for i := 0; i < 5; i++ {
		current = append(current, entry(fmt.Sprintf("New Game %d", i)))
	}

	require.Equal(t, 2, Delta(current, previous))
}

func TestDeltaNegativeWhenCatalogShrinks(t *testing.T) {
	require.Equal(t, -2, Delta(entries("A"), entries("A", "B", "C")))
}

func TestBuildStampsHashesAndMeta(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	engine := NewEngine().WithClock(func() time.Time { return now })

	snap := engine.Build(entries("Portal", "Celeste"), entries("Portal"))
	require.Equal(t, "2026-08-30T12:00:00Z", snap.Meta.Date)
	require.Equal(t, 1, snap.Meta.New)
	for _, e := range snap.Entries {
		require.NotZero(t, e.Hash)
	}
}
