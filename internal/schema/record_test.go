package schema

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gamedex/catalog/errs"
)

func TestParseStores(t *testing.T) {
	stores, err := ParseStores("steam, PSN,steam,nintendo")
	require.NoError(t, err)
	require.Equal(t, []StoreID{StoreSteam, StorePSN, StoreNintendo}, stores)
}

func TestParseStoresRejectsUnknown(t *testing.T) {
	_, err := ParseStores("steam,gog")
	require.Error(t, err)
	require.True(t, errs.Is(err, errs.CodeInvalid))
}

func TestParseStoresRejectsEmpty(t *testing.T) {
	_, err := ParseStores(" , ,")
	require.Error(t, err)
}

func TestValidateRequiresNameAndUUID(t *testing.T) {
	rec := CanonicalRecord{Store: StoreSteam, Name: "Hades II", UUID: "1145350"}
	require.NoError(t, rec.Validate())

	rec.Name = "  "
	err := rec.Validate()
	require.Error(t, err)
	require.True(t, errs.Is(err, errs.CodeValidation))

	rec.Name = "Hades II"
	rec.UUID = ""
	require.Error(t, rec.Validate())
}

func TestRatingRestrictiveness(t *testing.T) {
	require.Greater(t, RatingMature.Restrictiveness(), RatingTeen.Restrictiveness())
	require.Greater(t, RatingTeen.Restrictiveness(), RatingEveryone10.Restrictiveness())
	require.Equal(t, 0, RatingUnrated.Restrictiveness())
	require.Equal(t, 0, Rating("bogus").Restrictiveness())
}

func TestPriceLessPrefersKnownThenLowest(t *testing.T) {
	known := Price{MinorUnits: 5999, Currency: "USD", Known: true}
	cheaper := Price{MinorUnits: 4999, Currency: "USD", Known: true}
	unknown := Price{}

	require.True(t, cheaper.Less(known))
	require.False(t, known.Less(cheaper))
	require.True(t, known.Less(unknown))
	require.False(t, unknown.Less(known))
	require.False(t, unknown.Less(unknown))
}

func TestPrimaryLinkFollowsStorePriority(t *testing.T) {
	entry := CatalogEntry{
		Links: []StoreLink{
			{Store: StoreNintendo, Href: "https://nintendo.example/a"},
			{Store: StoreSteam, Href: "https://steam.example/a"},
			{Store: StoreXbox, Href: "https://xbox.example/a"},
		},
		Provenance: []Provenance{
			{Store: StoreNintendo, UUID: "n-1"},
			{Store: StoreSteam, UUID: "s-1"},
			{Store: StoreXbox, UUID: "x-1"},
		},
	}
	require.Equal(t, "https://steam.example/a", entry.PrimaryLink().Href)
	require.Equal(t, "s-1", entry.PrimaryUUID())
}
