// Package psn implements the PlayStation storefront adapter backed by the
// product search API, paginated per seed letter by offset.
package psn

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
	defaultBase = "https://store.playstation.com"
	pageSize    = 50
)

// Adapter fetches PlayStation Store listings.
type Adapter struct {
	client *httpx.Client
	base   string
}

// New constructs the PSN adapter; baseURL overrides the store host.
func New(client *httpx.Client, baseURL string) (*Adapter, error) {
	base := defaultBase
	if trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/"); trimmed != "" {
		base = trimmed
	}
	return &Adapter{client: client, base: base}, nil
}

// Register installs the adapter factory into the registry.
func Register(reg *adapters.Registry) {
	reg.Register(schema.StorePSN, func(deps adapters.Deps) (adapters.Adapter, error) {
		return New(deps.Client, deps.Store.BaseURL)
	})
}

func (a *Adapter) Store() schema.StoreID { return schema.StorePSN }

func (a *Adapter) Capabilities() adapters.Capabilities {
	return adapters.Capabilities{Paginated: true, PartialPrices: true}
}

type searchResponse struct {
	Products     []item `json:"products"`
	Results      []item `json:"results"`
	Items        []item `json:"items"`
	TotalResults int    `json:"total_results"`
}

type item struct {
	ID        string `json:"id"`
	SkuID     string `json:"skuId"`
	ProductID string `json:"productId"`
	Name      string `json:"name"`
	Title     string `json:"title"`
	URL       string `json:"url"`
	Image     string `json:"image"`
	Media     struct {
		ThumbnailURL string `json:"thumbnailUrl"`
	} `json:"media"`
	Price struct {
		Display    string  `json:"display"`
		Discounted float64 `json:"discounted"`
		Current    float64 `json:"current"`
		Currency   string  `json:"currency"`
	} `json:"price"`
	Platforms []string `json:"platforms"`
	Rating    struct {
		Display   string `json:"display"`
		AgeRating string `json:"ageRating"`
	} `json:"rating"`
	ReleaseDate string `json:"releaseDate"`
	Publisher   string `json:"publisherName"`
}

// Fetch walks a-z seed queries through the search API and emits every
// product returned.
func (a *Adapter) Fetch(ctx context.Context, params adapters.Params, emit adapters.Emit) error {
	ctx = httpx.WithStore(ctx, string(schema.StorePSN))
	language := strings.SplitN(strings.ReplaceAll(params.Locale, "_", "-"), "-", 2)[0]

	for seed := 'a'; seed <= 'z'; seed++ {
		if err := a.fetchSeed(ctx, string(seed), params.Country, language, emit); err != nil {
			return err
		}
	}
	return nil
}

func (a *Adapter) fetchSeed(ctx context.Context, query, country, language string, emit adapters.Emit) error {
	offset := 0
	for {
		var page searchResponse
		err := a.client.GetJSON(ctx, a.base+"/api/productsearch/v2", url.Values{
			"query":    {query},
			"size":     {fmt.Sprintf("%d", pageSize)},
			"country":  {strings.ToUpper(country)},
			"language": {language},
			"offset":   {fmt.Sprintf("%d", offset)},
		}, &page)
		if err != nil {
			return err
		}

		items := page.Products
		if len(items) == 0 {
			items = page.Results
		}
		if len(items) == 0 {
			items = page.Items
		}
		for _, it := range items {
			listing, ok := a.listing(it)
			if !ok {
				continue
			}
			if err := emit(listing); err != nil {
				return err
			}
		}

		offset += len(items)
		if len(items) < pageSize {
			return nil
		}
		if page.TotalResults > 0 && offset >= page.TotalResults {
			return nil
		}
	}
}

func (a *Adapter) listing(it item) (schema.RawListing, bool) {
	name := firstNonEmpty(it.Name, it.Title)
	uuid := firstNonEmpty(it.ID, it.SkuID, it.ProductID)
	if name == "" || uuid == "" {
		return schema.RawListing{}, false
	}

	fields := map[string]any{
		normalize.FieldName: name,
		normalize.FieldUUID: uuid,
		normalize.FieldType: "game",
		normalize.FieldHref: firstNonEmpty(it.URL, defaultBase+"/product/"+uuid),
	}
	if image := firstNonEmpty(it.Image, it.Media.ThumbnailURL); image != "" {
		fields[normalize.FieldImage] = image
	}
	switch {
	case it.Price.Display != "":
		fields[normalize.FieldPrice] = it.Price.Display
		fields[normalize.FieldCurrency] = it.Price.Currency
	case it.Price.Discounted > 0:
		fields[normalize.FieldPrice] = it.Price.Discounted
		fields[normalize.FieldCurrency] = it.Price.Currency
	case it.Price.Current > 0:
		fields[normalize.FieldPrice] = it.Price.Current
		fields[normalize.FieldCurrency] = it.Price.Currency
	}
	if len(it.Platforms) > 0 {
		fields[normalize.FieldPlatforms] = it.Platforms
	}
	if rating := firstNonEmpty(it.Rating.Display, it.Rating.AgeRating); rating != "" {
		fields[normalize.FieldRating] = rating
	}
	if it.ReleaseDate != "" {
		fields[normalize.FieldReleaseDate] = it.ReleaseDate
	}
	if it.Publisher != "" {
		fields[normalize.FieldPublisher] = it.Publisher
	}
	return schema.RawListing{Store: schema.StorePSN, Fields: fields, FetchedAt: time.Now().UTC()}, true
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
