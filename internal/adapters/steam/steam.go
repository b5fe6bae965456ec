// Package steam implements the Steam storefront adapter. It seeds appids
// from the global app list (falling back to the featured categories feed)
// and hydrates each one through the appdetails endpoint.
package steam

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/gamedex/catalog/internal/adapters"
	"github.com/gamedex/catalog/internal/httpx"
	"github.com/gamedex/catalog/internal/normalize"
	"github.com/gamedex/catalog/internal/observability"
	"github.com/gamedex/catalog/internal/schema"
)

const (
	defaultStoreBase = "https://store.steampowered.com"
	defaultAPIBase   = "https://api.steampowered.com"
)

// Adapter fetches Steam listings without authentication.
type Adapter struct {
	client    *httpx.Client
	storeBase string
	apiBase   string
}

// New constructs the Steam adapter. A non-empty baseURL overrides both the
// store and api hosts, which keeps tests on a single fake server.
func New(client *httpx.Client, baseURL string) (*Adapter, error) {
	a := &Adapter{client: client, storeBase: defaultStoreBase, apiBase: defaultAPIBase}
	if trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/"); trimmed != "" {
		a.storeBase = trimmed
		a.apiBase = trimmed
	}
	return a, nil
}

// Register installs the adapter factory into the registry.
func Register(reg *adapters.Registry) {
	reg.Register(schema.StoreSteam, func(deps adapters.Deps) (adapters.Adapter, error) {
		return New(deps.Client, deps.Store.BaseURL)
	})
}

func (a *Adapter) Store() schema.StoreID { return schema.StoreSteam }

func (a *Adapter) Capabilities() adapters.Capabilities {
	return adapters.Capabilities{YieldsDLC: true}
}

type appListResponse struct {
	AppList struct {
		Apps []struct {
			AppID int64 `json:"appid"`
		} `json:"apps"`
	} `json:"applist"`
}

type featuredResponse map[string]struct {
	Items []struct {
		ID int64 `json:"id"`
	} `json:"items"`
}

type appDetails struct {
	Success bool `json:"success"`
	Data    struct {
		Type          string `json:"type"`
		Name          string `json:"name"`
		IsFree        bool   `json:"is_free"`
		HeaderImage   string `json:"header_image"`
		PriceOverview *struct {
			Currency string `json:"currency"`
			Final    int64  `json:"final"`
		} `json:"price_overview"`
		Platforms struct {
			Windows bool `json:"windows"`
			Mac     bool `json:"mac"`
			Linux   bool `json:"linux"`
		} `json:"platforms"`
		ReleaseDate struct {
			ComingSoon bool   `json:"coming_soon"`
			Date       string `json:"date"`
		} `json:"release_date"`
		Publishers []string `json:"publishers"`
	} `json:"data"`
}

// Fetch walks the appid universe and emits one raw listing per hydrated app.
func (a *Adapter) Fetch(ctx context.Context, params adapters.Params, emit adapters.Emit) error {
	ctx = httpx.WithStore(ctx, string(schema.StoreSteam))

	ids, err := a.appIDs(ctx)
	if err != nil {
		return err
	}
	for _, id := range ids {
		details, err := a.appDetails(ctx, id, params.Country)
		if err != nil {
			if ctx.Err() != nil {
				return err
			}
			observability.Log().Warn("steam: skip appid",
				observability.F("appid", id), observability.F("error", err.Error()))
			continue
		}
		if details == nil {
			continue
		}
		if err := emit(a.listing(id, *details)); err != nil {
			return err
		}
	}
	return nil
}

// appIDs seeds from the global app list, falling back to featured categories
// when the list endpoint yields nothing.
func (a *Adapter) appIDs(ctx context.Context) ([]int64, error) {
	var list appListResponse
	err := a.client.GetJSON(ctx, a.apiBase+"/ISteamApps/GetAppList/v0002/",
		url.Values{"format": {"json"}}, &list)
	if err == nil && len(list.AppList.Apps) > 0 {
		seen := make(map[int64]struct{}, len(list.AppList.Apps))
		ids := make([]int64, 0, len(list.AppList.Apps))
		for _, app := range list.AppList.Apps {
			if _, dup := seen[app.AppID]; dup {
				continue
			}
			seen[app.AppID] = struct{}{}
			ids = append(ids, app.AppID)
		}
		return ids, nil
	}
	if ctx.Err() != nil {
		return nil, err
	}

	var featured featuredResponse
	if ferr := a.client.GetJSON(ctx, a.storeBase+"/api/featuredcategories",
		url.Values{"l": {"english"}}, &featured); ferr != nil {
		return nil, ferr
	}
	var ids []int64
	seen := make(map[int64]struct{})
	for _, bucket := range []string{"coming_soon", "specials", "top_sellers", "new_releases"} {
		for _, item := range featured[bucket].Items {
			if _, dup := seen[item.ID]; dup {
				continue
			}
			seen[item.ID] = struct{}{}
			ids = append(ids, item.ID)
		}
	}
	return ids, nil
}

func (a *Adapter) appDetails(ctx context.Context, id int64, country string) (*appDetails, error) {
	key := fmt.Sprintf("%d", id)
	var payload map[string]appDetails
	err := a.client.GetJSON(ctx, a.storeBase+"/api/appdetails", url.Values{
		"appids": {key},
		"l":      {"english"},
		"cc":     {country},
	}, &payload)
	if err != nil {
		return nil, err
	}
	details, ok := payload[key]
	if !ok || !details.Success {
		return nil, nil
	}
	return &details, nil
}

func (a *Adapter) listing(id int64, details appDetails) schema.RawListing {
	data := details.Data
	fields := map[string]any{
		normalize.FieldName: data.Name,
		normalize.FieldUUID: fmt.Sprintf("%d", id),
		normalize.FieldType: data.Type,
		normalize.FieldHref: fmt.Sprintf("%s/app/%d", defaultStoreBase, id),
	}
	if data.HeaderImage != "" {
		fields[normalize.FieldImage] = data.HeaderImage
	}
	if data.PriceOverview != nil {
		fields[normalize.FieldPrice] = data.PriceOverview.Final
		fields[normalize.FieldCurrency] = data.PriceOverview.Currency
	} else if data.IsFree {
		fields[normalize.FieldIsFree] = true
	}

	var platforms []string
	if data.Platforms.Windows {
		platforms = append(platforms, "Windows")
	}
	if data.Platforms.Mac {
		platforms = append(platforms, "Mac")
	}
	if data.Platforms.Linux {
		platforms = append(platforms, "Linux")
	}
	if len(platforms) > 0 {
		fields[normalize.FieldPlatforms] = platforms
	}
	if !data.ReleaseDate.ComingSoon && data.ReleaseDate.Date != "" {
		fields[normalize.FieldReleaseDate] = data.ReleaseDate.Date
	}
	if len(data.Publishers) > 0 {
		fields[normalize.FieldPublisher] = data.Publishers[0]
	}
	return schema.RawListing{Store: schema.StoreSteam, Fields: fields, FetchedAt: time.Now().UTC()}
}
