package xbox

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gamedex/catalog/internal/adapters"
	"github.com/gamedex/catalog/internal/httpx"
	"github.com/gamedex/catalog/internal/normalize"
	"github.com/gamedex/catalog/internal/schema"
)

func testClient() *httpx.Client {
	return httpx.NewClient(httpx.Config{RequestsPerSec: 1000, Burst: 100, BreakerTrip: 100}, nil)
}

func TestFetchPaginatesWithNextSkip(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/xwebapp/UnifiedSearch", r.URL.Path)
		query := r.URL.Query()
		require.Equal(t, "en-us", query.Get("Locale"))
		require.Equal(t, "US", query.Get("Market"))
		require.Equal(t, "60", query.Get("Take"))

		if query.Get("Query") != "h" {
			w.Write([]byte(`{"products":[]}`))
			return
		}
		switch query.Get("Skip") {
		case "0":
			products := `[`
			for i := 0; i < 60; i++ {
				if i > 0 {
					products += ","
				}
				products += fmt.Sprintf(`{"productId":"9N%04d","title":"Game %d"}`, i, i)
			}
			products += `]`
			w.Write([]byte(`{"products":` + products + `,"paging":{"totalItems":61,"nextSkip":60}}`))
		case "60":
			w.Write([]byte(`{"products":[{"productId":"9NHALO","title":"Halo Infinite",
				"url":"https://www.xbox.com/en-us/games/store/halo",
				"imageUrl":"https://cdn.example/halo.jpg",
				"price":{"display":"$59.99","currency":"USD"},
				"platforms":["Xbox Series X|S"],
				"contentRating":{"rating":"ESRB Teen"},
				"releaseDate":"2021-12-08","publisherName":"Xbox Game Studios",
				"productKind":"Game"}],
				"paging":{"totalItems":61,"nextSkip":0}}`))
		default:
			t.Fatalf("unexpected skip %q", query.Get("Skip"))
		}
	}))
	defer server.Close()

	adapter, err := New(testClient(), server.URL)
	require.NoError(t, err)

	var listings []schema.RawListing
	err = adapter.Fetch(context.Background(), adapters.Params{Country: "us", Locale: "en-US"},
		func(l schema.RawListing) error {
			listings = append(listings, l)
			return nil
		})
	require.NoError(t, err)
	require.Len(t, listings, 61)

	halo := listings[60].Fields
	require.Equal(t, "Halo Infinite", halo[normalize.FieldName])
	require.Equal(t, "9NHALO", halo[normalize.FieldUUID])
	require.Equal(t, "game", halo[normalize.FieldType])
	require.Equal(t, "$59.99", halo[normalize.FieldPrice])
	require.Equal(t, "ESRB Teen", halo[normalize.FieldRating])
	require.Equal(t, "Xbox Game Studios", halo[normalize.FieldPublisher])
}

func TestFetchDeduplicatesAcrossSeeds(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query().Get("Query")
		if query != "a" && query != "b" {
			w.Write([]byte(`{"products":[]}`))
			return
		}
		// same product surfaces under both seeds
		w.Write([]byte(`{"products":[{"productId":"9NSHARED","title":"A Bird Story"}],
			"paging":{"totalItems":1}}`))
	}))
	defer server.Close()

	adapter, err := New(testClient(), server.URL)
	require.NoError(t, err)

	count := 0
	err = adapter.Fetch(context.Background(), adapters.Params{Country: "US", Locale: "en-US"},
		func(schema.RawListing) error {
			count++
			return nil
		})
	require.NoError(t, err)
	require.Equal(t, 1, count)
}

func TestFetchSkipsItemsWithoutIdentity(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("Query") == "a" && r.URL.Query().Get("Skip") == "0" {
			w.Write([]byte(`{"products":[{"title":"No ID"},{"productId":"9NVALID","title":"Valid"}]}`))
			return
		}
		w.Write([]byte(`{"products":[]}`))
	}))
	defer server.Close()

	adapter, err := New(testClient(), server.URL)
	require.NoError(t, err)

	var names []string
	err = adapter.Fetch(context.Background(), adapters.Params{Country: "US", Locale: "en-US"},
		func(l schema.RawListing) error {
			names = append(names, l.Fields[normalize.FieldName].(string))
			return nil
		})
	require.NoError(t, err)
	require.Equal(t, []string{"Valid"}, names)
}
