// Package adapters defines the storefront adapter contract and the registry
// the orchestrator resolves concrete adapters from.
package adapters

import (
	"context"
	"sort"
	"sync"

	"github.com/gamedex/catalog/config"
	"github.com/gamedex/catalog/errs"
	"github.com/gamedex/catalog/internal/httpx"
	"github.com/gamedex/catalog/internal/schema"
)

// Params scopes a fetch to a storefront region.
type Params struct {
	Country string
	Locale  string
}

// Capabilities describes what a store's surface can deliver.
type Capabilities struct {
	// Paginated is set when listings arrive through cursor or offset pages.
	Paginated bool
	// PartialPrices is set when region gating can leave prices absent.
	PartialPrices bool
	// YieldsDLC is set when the raw feed mixes DLC into game listings.
	YieldsDLC bool
}

// Emit receives one raw listing. Returning an error aborts the fetch; the
// adapter propagates it unchanged.
type Emit func(schema.RawListing) error

// Adapter produces the raw listing sequence for one storefront. Fetch is
// restartable: each call walks the full sequence from the start, issuing
// requests lazily through the shared rate-limited client.
type Adapter interface {
	Store() schema.StoreID
	Capabilities() Capabilities
	Fetch(ctx context.Context, params Params, emit Emit) error
}

// Deps carries the shared infrastructure injected into adapter factories.
type Deps struct {
	Client *httpx.Client
	Store  config.StoreSettings
}

// Factory constructs an adapter from shared dependencies.
type Factory func(deps Deps) (Adapter, error)

// Registry maps store identifiers to adapter factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[schema.StoreID]Factory
}

// NewRegistry creates an empty adapter registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[schema.StoreID]Factory)}
}

// Register installs a factory for the store, replacing any previous one.
func (r *Registry) Register(store schema.StoreID, factory Factory) {
	if factory == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[store] = factory
}

// New resolves and constructs the adapter for the store.
func (r *Registry) New(store schema.StoreID, deps Deps) (Adapter, error) {
	r.mu.RLock()
	factory, ok := r.factories[store]
	r.mu.RUnlock()
	if !ok {
		return nil, errs.New(string(store), errs.CodeNotFound,
			errs.WithMessage("no adapter registered"))
	}
	return factory(deps)
}

// Stores lists every registered store in priority order.
func (r *Registry) Stores() []schema.StoreID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]schema.StoreID, 0, len(r.factories))
	for store := range r.factories {
		out = append(out, store)
	}
	sort.Slice(out, func(i, j int) bool {
		if pi, pj := out[i].Priority(), out[j].Priority(); pi != pj {
			return pi < pj
		}
		return out[i] < out[j]
	})
	return out
}
