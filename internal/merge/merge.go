// Package merge computes per-entry content hashes and the signed change
// delta between a freshly built catalog and the previous snapshot.
package merge

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/gamedex/catalog/internal/schema"
)

// fieldSep keeps adjacent hash inputs from gluing together ("ab"+"c" vs "a"+"bc").
const fieldSep = "\x1f"

// HashEntry computes the content hash over an entry's normalized fields.
// The serialization is canonical: list fields are hashed in sorted order so
// the hash is independent of fetch order, and volatile fields (fetch
// timestamps, the previous hash) never feed into it.
func HashEntry(entry schema.CatalogEntry) uint64 {
	digest := xxhash.New()
	write := func(parts ...string) {
		for _, part := range parts {
			digest.WriteString(part)
			digest.WriteString(fieldSep)
		}
	}

	write(entry.Name, string(entry.Type), string(entry.Rating), entry.Image)
	write(strconv.FormatInt(entry.Price.MinorUnits, 10), entry.Price.Currency,
		strconv.FormatBool(entry.Price.Free), strconv.FormatBool(entry.Price.Known))

	platforms := make([]string, len(entry.Platforms))
	copy(platforms, entry.Platforms)
	sort.Strings(platforms)
	write(platforms...)

	links := make([]string, 0, len(entry.Links))
	for _, link := range entry.Links {
		links = append(links, string(link.Store)+"="+link.Href)
	}
	sort.Strings(links)
	write(links...)

	provenance := make([]string, 0, len(entry.Provenance))
	for _, p := range entry.Provenance {
		provenance = append(provenance, string(p.Store)+"="+p.UUID)
	}
	sort.Strings(provenance)
	write(provenance...)

	return digest.Sum64()
}

// Engine diffs a freshly deduplicated entry set against the prior snapshot.
// It mutates neither input.
type Engine struct {
	now func() time.Time
}

// NewEngine constructs a merge engine using wall-clock time.
func NewEngine() *Engine {
	return &Engine{now: time.Now}
}

// WithClock overrides the engine clock. Test hook.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// Build stamps content hashes onto the entries and produces the snapshot
// with its signed delta against the previous entry set. The metadata size is
// filled in by the writer once the serialized byte count is known.
func (e *Engine) Build(entries, previous []schema.CatalogEntry) schema.Snapshot {
	stamped := make([]schema.CatalogEntry, len(entries))
	copy(stamped, entries)
	for i := range stamped {
		stamped[i].Hash = HashEntry(stamped[i])
	}
	return schema.Snapshot{
		Entries: stamped,
		Meta: schema.SnapshotMeta{
			Date: e.now().UTC().Format(time.RFC3339),
			New:  Delta(stamped, previous),
		},
	}
}

// Delta returns the signed change count: entries whose name is new minus
// entries that disappeared. The result is negative when the catalog shrank.
func Delta(current, previous []schema.CatalogEntry) int {
	prevNames := nameSet(previous)
	currNames := nameSet(current)
	added, removed := 0, 0
	for name := range currNames {
		if _, ok := prevNames[name]; !ok {
			added++
		}
	}
	for name := range prevNames {
		if _, ok := currNames[name]; !ok {
			removed++
		}
	}
	return added - removed
}

func nameSet(entries []schema.CatalogEntry) map[string]struct{} {
	set := make(map[string]struct{}, len(entries))
	for _, entry := range entries {
		set[strings.ToLower(entry.Name)] = struct{}{}
	}
	return set
}
