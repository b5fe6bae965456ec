package dedupe

import (
	"sort"
	"strings"

	"github.com/gamedex/catalog/internal/schema"
)

// mergedEntry pairs a built entry with the earliest release year observed in
// its cluster, used for name disambiguation.
type mergedEntry struct {
	entry schema.CatalogEntry
	year  int
}

var typeRank = map[schema.RecordType]int{
	schema.TypeGame:   0,
	schema.TypeDLC:    1,
	schema.TypeBundle: 2,
	schema.TypeOther:  3,
}

// mergeCluster combines the cluster's records into one catalog entry. Every
// selection rule below is independent of arrival order: records are sorted
// by (store priority, uuid) first and each field either unions, takes an
// extremum, or follows that fixed priority order.
func mergeCluster(records []schema.CanonicalRecord) mergedEntry {
	sorted := make([]schema.CanonicalRecord, len(records))
	copy(sorted, records)
	sort.Slice(sorted, func(i, j int) bool {
		pi, pj := sorted[i].Store.Priority(), sorted[j].Store.Priority()
		if pi != pj {
			return pi < pj
		}
		return sorted[i].UUID < sorted[j].UUID
	})

	entry := schema.CatalogEntry{
		Rating: schema.RatingUnrated,
		Type:   schema.TypeOther,
	}
	if len(sorted) > 0 {
		entry.Price = sorted[0].Price
	}
	year := 0
	platformSeen := make(map[string]struct{})
	linkSeen := make(map[schema.StoreID]struct{})
	provSeen := make(map[schema.Provenance]struct{})

	for _, record := range sorted {
		// longest display name wins; ties break lexicographically
		if len(record.Name) > len(entry.Name) ||
			(len(record.Name) == len(entry.Name) && record.Name < entry.Name) {
			entry.Name = record.Name
		}
		if typeRank[record.Type] < typeRank[entry.Type] {
			entry.Type = record.Type
		}
		if record.Price.Less(entry.Price) {
			entry.Price = record.Price
		}
		if record.Rating.Restrictiveness() > entry.Rating.Restrictiveness() {
			entry.Rating = record.Rating
		}
		if entry.Image == "" && record.Image != "" {
			entry.Image = record.Image
		}
		for _, platform := range record.Platforms {
			key := strings.ToLower(platform)
			if _, dup := platformSeen[key]; dup {
				continue
			}
			platformSeen[key] = struct{}{}
			entry.Platforms = append(entry.Platforms, platform)
		}
		if _, dup := linkSeen[record.Store]; !dup && record.Href != "" {
			linkSeen[record.Store] = struct{}{}
			entry.Links = append(entry.Links, schema.StoreLink{Store: record.Store, Href: record.Href})
		}
		prov := schema.Provenance{Store: record.Store, UUID: record.UUID}
		if _, dup := provSeen[prov]; !dup {
			provSeen[prov] = struct{}{}
			entry.Provenance = append(entry.Provenance, prov)
		}
		if record.ReleaseYear != 0 && (year == 0 || record.ReleaseYear < year) {
			year = record.ReleaseYear
		}
	}

	sort.Slice(entry.Provenance, func(i, j int) bool {
		if entry.Provenance[i].Store != entry.Provenance[j].Store {
			return entry.Provenance[i].Store < entry.Provenance[j].Store
		}
		return entry.Provenance[i].UUID < entry.Provenance[j].UUID
	})
	sort.Slice(entry.Links, func(i, j int) bool {
		return entry.Links[i].Store < entry.Links[j].Store
	})

	return mergedEntry{entry: entry, year: year}
}

// foldEntries merges two same-name entries that clustering kept apart but
// the unique-name invariant cannot distinguish.
func foldEntries(a, b schema.CatalogEntry) schema.CatalogEntry {
	if typeRank[b.Type] < typeRank[a.Type] {
		a.Type = b.Type
	}
	if b.Price.Less(a.Price) {
		a.Price = b.Price
	}
	if b.Rating.Restrictiveness() > a.Rating.Restrictiveness() {
		a.Rating = b.Rating
	}
	if a.Image == "" {
		a.Image = b.Image
	}
	seen := make(map[string]struct{}, len(a.Platforms))
	for _, platform := range a.Platforms {
		seen[strings.ToLower(platform)] = struct{}{}
	}
	for _, platform := range b.Platforms {
		if _, dup := seen[strings.ToLower(platform)]; !dup {
			a.Platforms = append(a.Platforms, platform)
		}
	}
	linkSeen := make(map[schema.StoreID]struct{}, len(a.Links))
	for _, link := range a.Links {
		linkSeen[link.Store] = struct{}{}
	}
	for _, link := range b.Links {
		if _, dup := linkSeen[link.Store]; !dup {
			a.Links = append(a.Links, link)
		}
	}
	provSeen := make(map[schema.Provenance]struct{}, len(a.Provenance))
	for _, prov := range a.Provenance {
		provSeen[prov] = struct{}{}
	}
	for _, prov := range b.Provenance {
		if _, dup := provSeen[prov]; !dup {
			a.Provenance = append(a.Provenance, prov)
		}
	}
	sort.Slice(a.Provenance, func(i, j int) bool {
		if a.Provenance[i].Store != a.Provenance[j].Store {
			return a.Provenance[i].Store < a.Provenance[j].Store
		}
		return a.Provenance[i].UUID < a.Provenance[j].UUID
	})
	sort.Slice(a.Links, func(i, j int) bool {
		return a.Links[i].Store < a.Links[j].Store
	})
	return a
}
