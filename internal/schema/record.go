// Package schema defines the canonical catalog record types shared across the pipeline.
package schema

import (
	"strings"
	"time"

	"github.com/gamedex/catalog/errs"
)

// StoreID identifies a supported storefront source.
type StoreID string

const (
	// StoreSteam identifies the Steam storefront.
	StoreSteam StoreID = "steam"
	// StorePSN identifies the PlayStation storefront.
	StorePSN StoreID = "psn"
	// StoreXbox identifies the Xbox storefront.
	StoreXbox StoreID = "xbox"
	// StoreNintendo identifies the Nintendo eShop storefront.
	StoreNintendo StoreID = "nintendo"
)

// KnownStores lists every built-in storefront in priority order. Earlier
// stores win ties when merged entries select an image or primary link.
var KnownStores = []StoreID{StoreSteam, StorePSN, StoreXbox, StoreNintendo}

// Validate ensures the store identifier names a supported storefront.
func (s StoreID) Validate() error {
	for _, known := range KnownStores {
		if s == known {
			return nil
		}
	}
	return errs.New(string(s), errs.CodeInvalid, errs.WithMessage("unknown store identifier"))
}

// Priority returns the merge tie-break rank for the store; lower wins.
// Unknown stores sort after every built-in one.
func (s StoreID) Priority() int {
	for i, known := range KnownStores {
		if s == known {
			return i
		}
	}
	return len(KnownStores)
}

// ParseStores splits a comma-separated store list into validated identifiers.
func ParseStores(raw string) ([]StoreID, error) {
	var out []StoreID
	seen := make(map[StoreID]struct{})
	for _, part := range strings.Split(raw, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		if part == "" {
			continue
		}
		id := StoreID(part)
		if err := id.Validate(); err != nil {
			return nil, err
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	if len(out) == 0 {
		return nil, errs.New("", errs.CodeInvalid, errs.WithMessage("at least one store required"))
	}
	return out, nil
}

// RecordType classifies a catalog listing.
type RecordType string

const (
	// TypeGame marks a full game listing.
	TypeGame RecordType = "game"
	// TypeDLC marks downloadable content.
	TypeDLC RecordType = "dlc"
	// TypeBundle marks a multi-title bundle.
	TypeBundle RecordType = "bundle"
	// TypeOther marks listings outside the game/dlc/bundle taxonomy.
	TypeOther RecordType = "other"
)

// Rating is the controlled age-rating vocabulary.
type Rating string

const (
	// RatingEveryone corresponds to ESRB Everyone / PEGI 3.
	RatingEveryone Rating = "everyone"
	// RatingEveryone10 corresponds to ESRB E10+ / PEGI 7.
	RatingEveryone10 Rating = "everyone_10"
	// RatingTeen corresponds to ESRB Teen / PEGI 12.
	RatingTeen Rating = "teen"
	// RatingMature corresponds to ESRB Mature / PEGI 16-18.
	RatingMature Rating = "mature"
	// RatingAdultsOnly corresponds to ESRB AO / CERO Z.
	RatingAdultsOnly Rating = "adults_only"
	// RatingUnrated marks listings with no recognized rating.
	RatingUnrated Rating = "unrated"
)

// Restrictiveness ranks ratings for most-restrictive merge selection.
// Unrated ranks lowest so any real rating wins a merge.
func (r Rating) Restrictiveness() int {
	switch r {
	case RatingEveryone:
		return 1
	case RatingEveryone10:
		return 2
	case RatingTeen:
		return 3
	case RatingMature:
		return 4
	case RatingAdultsOnly:
		return 5
	default:
		return 0
	}
}

// Price carries a catalog price in minor units alongside its display form.
type Price struct {
	MinorUnits int64  `json:"minor_units"`
	Currency   string `json:"currency"`
	Display    string `json:"display"`
	Free       bool   `json:"free"`
	Known      bool   `json:"known"`
}

// Less orders prices for lowest-price merge selection. Unknown prices sort
// after every known one; free counts as zero.
func (p Price) Less(other Price) bool {
	if p.Known != other.Known {
		return p.Known
	}
	if !p.Known {
		return false
	}
	return p.MinorUnits < other.MinorUnits
}

// RawListing is the transient per-store payload produced by an adapter.
// It is discarded once the normalizer has mapped it to a CanonicalRecord.
type RawListing struct {
	Store     StoreID
	Fields    map[string]any
	FetchedAt time.Time
}

// Clone returns a shallow copy of the listing with a detached field map.
func (l RawListing) Clone() RawListing {
	out := l
	if l.Fields != nil {
		out.Fields = make(map[string]any, len(l.Fields))
		for k, v := range l.Fields {
			out.Fields[k] = v
		}
	}
	return out
}

// CanonicalRecord is the normalized per-store representation of a listing.
type CanonicalRecord struct {
	Store       StoreID    `json:"store"`
	UUID        string     `json:"uuid"`
	Name        string     `json:"name"`
	Type        RecordType `json:"type"`
	Price       Price      `json:"price"`
	Image       string     `json:"image,omitempty"`
	Href        string     `json:"href"`
	Platforms   []string   `json:"platforms"`
	Rating      Rating     `json:"rating"`
	ReleaseYear int        `json:"release_year,omitempty"`
	ReleaseDate string     `json:"release_date,omitempty"`
	Publisher   string     `json:"publisher,omitempty"`
}

// Validate enforces the mandatory-field invariant: a record that survives
// normalization always carries a name and a store-scoped uuid.
func (r CanonicalRecord) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return errs.New(string(r.Store), errs.CodeValidation, errs.WithMessage("record name required"))
	}
	if strings.TrimSpace(r.UUID) == "" {
		return errs.New(string(r.Store), errs.CodeValidation, errs.WithMessage("record uuid required"))
	}
	if err := r.Store.Validate(); err != nil {
		return errs.New(string(r.Store), errs.CodeValidation, errs.WithMessage("record store unknown"))
	}
	return nil
}

// Provenance records which store-scoped listing contributed to a merged entry.
type Provenance struct {
	Store StoreID `json:"store"`
	UUID  string  `json:"uuid"`
}

// StoreLink pairs a contributing store with its listing URL.
type StoreLink struct {
	Store StoreID `json:"store"`
	Href  string  `json:"href"`
}

// CatalogEntry is the final deduplicated cross-store output unit. Within one
// snapshot entry names are unique.
type CatalogEntry struct {
	Name       string       `json:"name"`
	Type       RecordType   `json:"type"`
	Price      Price        `json:"price"`
	Image      string       `json:"image,omitempty"`
	Links      []StoreLink  `json:"links"`
	Provenance []Provenance `json:"provenance"`
	Platforms  []string     `json:"platforms"`
	Rating     Rating       `json:"rating"`

	// Hash is the content hash over the entry's normalized fields. Populated
	// by the merge engine; excluded from serialized output.
	Hash uint64 `json:"-"`
}

// PrimaryLink returns the store link used for the single href emitted in the
// on-disk layout, chosen by store priority so output is order-independent.
func (e CatalogEntry) PrimaryLink() StoreLink {
	var best StoreLink
	bestRank := -1
	for _, link := range e.Links {
		rank := link.Store.Priority()
		if bestRank < 0 || rank < bestRank {
			best = link
			bestRank = rank
		}
	}
	return best
}

// PrimaryUUID returns the provenance uuid matching the primary link's store,
// falling back to the highest-priority provenance entry.
func (e CatalogEntry) PrimaryUUID() string {
	primary := e.PrimaryLink().Store
	var best string
	bestRank := -1
	for _, p := range e.Provenance {
		if p.Store == primary {
			return p.UUID
		}
		rank := p.Store.Priority()
		if bestRank < 0 || rank < bestRank {
			best = p.UUID
			bestRank = rank
		}
	}
	return best
}

// SnapshotMeta is the `$.json` metadata record.
type SnapshotMeta struct {
	Size int64  `json:"size"`
	Date string `json:"date"`
	New  int    `json:"new"`
}

// Snapshot is an immutable, name-ordered catalog export.
type Snapshot struct {
	Entries []CatalogEntry
	Meta    SnapshotMeta
}
