// Package fake provides a synthetic storefront adapter for testing and
// development. It serves canned listings without network access and can be
// scripted to fail partway through a fetch.
package fake

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/gamedex/catalog/errs"
	"github.com/gamedex/catalog/internal/adapters"
	"github.com/gamedex/catalog/internal/normalize"
	"github.com/gamedex/catalog/internal/schema"
)

// Options configures the fake adapter.
type Options struct {
	Store    schema.StoreID
	Listings []schema.RawListing
	// FailAfter aborts the fetch with a network error once this many
	// listings have been emitted. Zero disables the failure.
	FailAfter int
	// FailOnce limits the scripted failure to the first Fetch call, so a
	// retry of the whole store succeeds.
	FailOnce bool
}

// Adapter replays canned listings.
type Adapter struct {
	opts    Options
	fetches atomic.Int64
}

// New constructs a fake adapter for the given store.
func New(opts Options) *Adapter {
	if opts.Store == "" {
		opts.Store = schema.StoreSteam
	}
	return &Adapter{opts: opts}
}

// Register installs the fake under its configured store identifier.
func Register(reg *adapters.Registry, opts Options) {
	reg.Register(opts.Store, func(adapters.Deps) (adapters.Adapter, error) {
		return New(opts), nil
	})
}

func (a *Adapter) Store() schema.StoreID { return a.opts.Store }

func (a *Adapter) Capabilities() adapters.Capabilities {
	return adapters.Capabilities{}
}

// Fetches reports how many times Fetch has been called.
func (a *Adapter) Fetches() int {
	return int(a.fetches.Load())
}

// Fetch replays the canned listings, honouring the scripted failure.
func (a *Adapter) Fetch(ctx context.Context, _ adapters.Params, emit adapters.Emit) error {
	call := a.fetches.Add(1)
	failing := a.opts.FailAfter > 0 && (!a.opts.FailOnce || call == 1)

	for i, listing := range a.opts.Listings {
		if err := ctx.Err(); err != nil {
			return errs.New(string(a.opts.Store), errs.CodeDeadline, errs.WithCause(err))
		}
		if failing && i >= a.opts.FailAfter {
			return errs.New(string(a.opts.Store), errs.CodeNetwork,
				errs.WithMessage("scripted fetch failure"))
		}
		if err := emit(listing.Clone()); err != nil {
			return err
		}
	}
	if failing {
		return errs.New(string(a.opts.Store), errs.CodeNetwork,
			errs.WithMessage("scripted fetch failure"))
	}
	return nil
}

// Listing builds a plausible raw listing for tests.
func Listing(store schema.StoreID, uuid, name string, extra map[string]any) schema.RawListing {
	fields := map[string]any{
		normalize.FieldName: name,
		normalize.FieldUUID: uuid,
		normalize.FieldType: "game",
		normalize.FieldHref: "https://" + string(store) + ".example/" + uuid,
	}
	for k, v := range extra {
		fields[k] = v
	}
	return schema.RawListing{Store: store, Fields: fields, FetchedAt: time.Now().UTC()}
}
