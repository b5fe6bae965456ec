// Package nintendo implements the Nintendo eShop adapter on top of the
// Algolia multi-query endpoint, paginated per seed letter by page number.
package nintendo

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gamedex/catalog/internal/adapters"
	"github.com/gamedex/catalog/internal/httpx"
	"github.com/gamedex/catalog/internal/normalize"
	"github.com/gamedex/catalog/internal/schema"
)

const (
	defaultBase   = "https://u3b6gr4ua3-dsn.algolia.net"
	storeBase     = "https://www.nintendo.com"
	indexTemplate = "ncom_game_en_%s"
	pageSize      = 60
)

// Adapter fetches eShop listings through Algolia search.
type Adapter struct {
	client *httpx.Client
	base   string
}

// New constructs the Nintendo adapter; baseURL overrides the Algolia host.
func New(client *httpx.Client, baseURL string) (*Adapter, error) {
	base := defaultBase
	if trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/"); trimmed != "" {
		base = trimmed
	}
	return &Adapter{client: client, base: base}, nil
}

// Register installs the adapter factory into the registry.
func Register(reg *adapters.Registry) {
	reg.Register(schema.StoreNintendo, func(deps adapters.Deps) (adapters.Adapter, error) {
		return New(deps.Client, deps.Store.BaseURL)
	})
}

func (a *Adapter) Store() schema.StoreID { return schema.StoreNintendo }

func (a *Adapter) Capabilities() adapters.Capabilities {
	return adapters.Capabilities{Paginated: true, PartialPrices: true}
}

type queryRequest struct {
	Requests []queryParams `json:"requests"`
}

type queryParams struct {
	IndexName string `json:"indexName"`
	Params    string `json:"params"`
}

type queryResponse struct {
	Results []struct {
		Hits    []hit `json:"hits"`
		NbPages int   `json:"nbPages"`
	} `json:"results"`
}

type hit struct {
	NSUID string `json:"nsuid"`
	ID    string `json:"id"`
	Title string `json:"title"`
	Slug  string `json:"slug"`
	URL   string `json:"url"`
	Box   string `json:"boxArt"`
	Image string `json:"image"`
	Price struct {
		Display    string  `json:"display"`
		Regular    float64 `json:"regular"`
		Discounted float64 `json:"discounted"`
		Currency   string  `json:"currency"`
	} `json:"price"`
	Platforms   []string `json:"platforms"`
	ESRB        string   `json:"esrbRating"`
	ReleaseDate string   `json:"releaseDate"`
	Publisher   string   `json:"publisher"`
}

// Fetch walks a-z seed queries against the per-country game index.
func (a *Adapter) Fetch(ctx context.Context, params adapters.Params, emit adapters.Emit) error {
	ctx = httpx.WithStore(ctx, string(schema.StoreNintendo))
	index := fmt.Sprintf(indexTemplate, strings.ToLower(params.Country))
	locale := strings.ToLower(strings.ReplaceAll(params.Locale, "_", "-"))

	for seed := 'a'; seed <= 'z'; seed++ {
		if err := a.fetchSeed(ctx, index, string(seed), locale, emit); err != nil {
			return err
		}
	}
	return nil
}

func (a *Adapter) fetchSeed(ctx context.Context, index, query, locale string, emit adapters.Emit) error {
	page := 0
	for {
		body := queryRequest{Requests: []queryParams{{
			IndexName: index,
			Params:    fmt.Sprintf("query=%s&hitsPerPage=%d&page=%d", query, pageSize, page),
		}}}
		var resp queryResponse
		if err := a.client.PostJSON(ctx, a.base+"/1/indexes/*/queries", body, &resp); err != nil {
			return err
		}
		if len(resp.Results) == 0 {
			return nil
		}
		result := resp.Results[0]
		for _, h := range result.Hits {
			listing, ok := a.listing(h, locale)
			if !ok {
				continue
			}
			if err := emit(listing); err != nil {
				return err
			}
		}
		page++
		if page >= result.NbPages || len(result.Hits) < pageSize {
			return nil
		}
	}
}

func (a *Adapter) listing(h hit, locale string) (schema.RawListing, bool) {
	name := strings.TrimSpace(h.Title)
	uuid := firstNonEmpty(h.NSUID, h.ID)
	if name == "" || uuid == "" {
		return schema.RawListing{}, false
	}

	href := h.URL
	if href == "" && h.Slug != "" {
		href = fmt.Sprintf("%s/%s/store/products/%s/", storeBase, locale, h.Slug)
	}
	if href == "" {
		href = fmt.Sprintf("%s/%s/store/products/%s/", storeBase, locale, uuid)
	}

	fields := map[string]any{
		normalize.FieldName: name,
		normalize.FieldUUID: uuid,
		normalize.FieldType: "game",
		normalize.FieldHref: href,
	}
	if image := firstNonEmpty(h.Box, h.Image); image != "" {
		fields[normalize.FieldImage] = image
	}
	switch {
	case h.Price.Display != "":
		fields[normalize.FieldPrice] = h.Price.Display
		fields[normalize.FieldCurrency] = h.Price.Currency
	case h.Price.Discounted > 0:
		fields[normalize.FieldPrice] = h.Price.Discounted
		fields[normalize.FieldCurrency] = h.Price.Currency
	case h.Price.Regular > 0:
		fields[normalize.FieldPrice] = h.Price.Regular
		fields[normalize.FieldCurrency] = h.Price.Currency
	}
	platforms := h.Platforms
	if len(platforms) == 0 {
		platforms = []string{"Switch"}
	}
	fields[normalize.FieldPlatforms] = platforms
	if h.ESRB != "" {
		fields[normalize.FieldRating] = h.ESRB
	}
	if h.ReleaseDate != "" {
		fields[normalize.FieldReleaseDate] = h.ReleaseDate
	}
	if h.Publisher != "" {
		fields[normalize.FieldPublisher] = h.Publisher
	}
	return schema.RawListing{Store: schema.StoreNintendo, Fields: fields, FetchedAt: time.Now().UTC()}, true
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
