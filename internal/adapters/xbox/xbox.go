// Package xbox implements the Xbox storefront adapter using the unified
// search endpoint with skip/take pagination per seed letter.
package xbox

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/gamedex/catalog/internal/adapters"
	"github.com/gamedex/catalog/internal/httpx"
	"github.com/gamedex/catalog/internal/normalize"
	"github.com/gamedex/catalog/internal/schema"
)

const (
	defaultBase = "https://www.xbox.com"
	pageSize    = 60
)

// Adapter fetches Xbox storefront listings.
type Adapter struct {
	client *httpx.Client
	base   string
}

// New constructs the Xbox adapter; baseURL overrides the store host.
func New(client *httpx.Client, baseURL string) (*Adapter, error) {
	base := defaultBase
	if trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/"); trimmed != "" {
		base = trimmed
	}
	return &Adapter{client: client, base: base}, nil
}

// Register installs the adapter factory into the registry.
func Register(reg *adapters.Registry) {
	reg.Register(schema.StoreXbox, func(deps adapters.Deps) (adapters.Adapter, error) {
		return New(deps.Client, deps.Store.BaseURL)
	})
}

func (a *Adapter) Store() schema.StoreID { return schema.StoreXbox }

func (a *Adapter) Capabilities() adapters.Capabilities {
	return adapters.Capabilities{Paginated: true, PartialPrices: true}
}

type searchResponse struct {
	Products []item `json:"products"`
	Items    []item `json:"items"`
	Results  []item `json:"results"`
	Paging   struct {
		TotalItems int `json:"totalItems"`
		NextSkip   int `json:"nextSkip"`
	} `json:"paging"`
}

type item struct {
	ProductID   string `json:"productId"`
	LegacyID    string `json:"legacyId"`
	Title       string `json:"title"`
	DisplayName string `json:"displayName"`
	ImageURL    string `json:"imageUrl"`
	URL         string `json:"url"`
	Price       struct {
		Display  string  `json:"display"`
		Amount   float64 `json:"amount"`
		Currency string  `json:"currency"`
	} `json:"price"`
	Platforms     []string `json:"platforms"`
	ContentRating struct {
		Rating string `json:"rating"`
	} `json:"contentRating"`
	ReleaseDate string `json:"releaseDate"`
	Publisher   string `json:"publisherName"`
	ProductKind string `json:"productKind"`
}

// Fetch walks a-z seed queries with skip/take pagination.
func (a *Adapter) Fetch(ctx context.Context, params adapters.Params, emit adapters.Emit) error {
	ctx = httpx.WithStore(ctx, string(schema.StoreXbox))
	locale := strings.ToLower(strings.ReplaceAll(params.Locale, "_", "-"))
	seen := make(map[string]struct{})

	for seed := 'a'; seed <= 'z'; seed++ {
		if err := a.fetchSeed(ctx, string(seed), params.Country, locale, seen, emit); err != nil {
			return err
		}
	}
	return nil
}

func (a *Adapter) fetchSeed(ctx context.Context, query, country, locale string, seen map[string]struct{}, emit adapters.Emit) error {
	skip := 0
	for {
		var page searchResponse
		err := a.client.GetJSON(ctx, a.base+"/xwebapp/UnifiedSearch", url.Values{
			"Locale": {locale},
			"Market": {strings.ToUpper(country)},
			"Query":  {query},
			"Skip":   {fmt.Sprintf("%d", skip)},
			"Take":   {fmt.Sprintf("%d", pageSize)},
		}, &page)
		if err != nil {
			return err
		}

		items := page.Products
		if len(items) == 0 {
			items = page.Items
		}
		if len(items) == 0 {
			items = page.Results
		}
		produced := 0
		for _, it := range items {
			listing, key, ok := a.listing(it, locale)
			if !ok {
				continue
			}
			// seeds overlap; every listing surfaces once per run
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			produced++
			if err := emit(listing); err != nil {
				return err
			}
		}

		switch {
		case page.Paging.NextSkip > skip:
			skip = page.Paging.NextSkip
		case len(items) >= pageSize && (page.Paging.TotalItems == 0 || skip+len(items) < page.Paging.TotalItems):
			skip += len(items)
		default:
			return nil
		}
		if produced == 0 && page.Paging.NextSkip <= skip {
			return nil
		}
	}
}

func (a *Adapter) listing(it item, locale string) (schema.RawListing, string, bool) {
	name := firstNonEmpty(it.Title, it.DisplayName)
	uuid := firstNonEmpty(it.ProductID, it.LegacyID)
	if name == "" || uuid == "" {
		return schema.RawListing{}, "", false
	}

	href := it.URL
	if href == "" {
		href = fmt.Sprintf("%s/%s/games/store/%s", defaultBase, locale, uuid)
	}
	kind := strings.ToLower(it.ProductKind)
	if kind == "" {
		kind = "game"
	}

	fields := map[string]any{
		normalize.FieldName: name,
		normalize.FieldUUID: uuid,
		normalize.FieldType: kind,
		normalize.FieldHref: href,
	}
	if it.ImageURL != "" {
		fields[normalize.FieldImage] = it.ImageURL
	}
	switch {
	case it.Price.Display != "":
		fields[normalize.FieldPrice] = it.Price.Display
		fields[normalize.FieldCurrency] = it.Price.Currency
	case it.Price.Amount > 0:
		fields[normalize.FieldPrice] = it.Price.Amount
		fields[normalize.FieldCurrency] = it.Price.Currency
	}
	if len(it.Platforms) > 0 {
		fields[normalize.FieldPlatforms] = it.Platforms
	}
	if it.ContentRating.Rating != "" {
		fields[normalize.FieldRating] = it.ContentRating.Rating
	}
	if it.ReleaseDate != "" {
		fields[normalize.FieldReleaseDate] = it.ReleaseDate
	}
	if it.Publisher != "" {
		fields[normalize.FieldPublisher] = it.Publisher
	}
	return schema.RawListing{Store: schema.StoreXbox, Fields: fields, FetchedAt: time.Now().UTC()}, uuid, true
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
