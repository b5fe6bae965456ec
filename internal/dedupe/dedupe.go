// Package dedupe clusters canonical records from different stores that
// represent the same game into merged catalog entries.
package dedupe

import (
	"fmt"
	"sort"
	"strings"

	"github.com/gamedex/catalog/internal/normalize"
	"github.com/gamedex/catalog/internal/schema"
)

// Config carries the fuzzy-match tuning constants.
type Config struct {
	// SimilarityThreshold is the minimum title token-set similarity for a
	// cross-key merge. Empirical; near-threshold pairs need manual review.
	SimilarityThreshold float64
	// YearTolerance is the maximum release-year distance for a merge.
	YearTolerance int
}

// DefaultConfig returns the tuned clustering constants.
func DefaultConfig() Config {
	return Config{SimilarityThreshold: 0.6, YearTolerance: 1}
}

// Key is the exact-match clustering key derived from a record.
type Key struct {
	Title     string
	Year      int
	Publisher string
}

// KeyOf derives the clustering key: normalized title, release year when
// known, and the leading publisher token.
func KeyOf(record schema.CanonicalRecord) Key {
	return Key{
		Title:     normalize.TitleKey(record.Name),
		Year:      record.ReleaseYear,
		Publisher: publisherToken(record.Publisher),
	}
}

func publisherToken(publisher string) string {
	tokens := normalize.TitleTokens(publisher)
	if len(tokens) == 0 {
		return ""
	}
	return tokens[0]
}

// Deduper clusters records into catalog entries. Clustering is recomputed
// fresh from the full record set each run, never patched incrementally.
type Deduper struct {
	cfg Config
}

// New constructs a deduper with the provided tuning.
func New(cfg Config) *Deduper {
	if cfg.SimilarityThreshold <= 0 || cfg.SimilarityThreshold > 1 {
		cfg.SimilarityThreshold = DefaultConfig().SimilarityThreshold
	}
	if cfg.YearTolerance < 0 {
		cfg.YearTolerance = DefaultConfig().YearTolerance
	}
	return &Deduper{cfg: cfg}
}

type cluster struct {
	records []schema.CanonicalRecord
	tokens  map[string]struct{}
	// years and publishers observed across member records; zero/empty
	// means unknown and matches anything.
	years      map[int]struct{}
	publishers map[string]struct{}
}

// Cluster groups the records into merged catalog entries sorted by name.
// The result is independent of input order: records are pre-sorted by
// (store, uuid) and every merge rule selects fields order-independently.
func (d *Deduper) Cluster(records []schema.CanonicalRecord) []schema.CatalogEntry {
	sorted := make([]schema.CanonicalRecord, len(records))
	copy(sorted, records)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Store != sorted[j].Store {
			return sorted[i].Store < sorted[j].Store
		}
		return sorted[i].UUID < sorted[j].UUID
	})

	// First pass: exact key grouping.
	groups := make(map[Key][]schema.CanonicalRecord)
	keys := make([]Key, 0)
	for _, record := range sorted {
		key := KeyOf(record)
		if _, seen := groups[key]; !seen {
			keys = append(keys, key)
		}
		groups[key] = append(groups[key], record)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Title != keys[j].Title {
			return keys[i].Title < keys[j].Title
		}
		if keys[i].Year != keys[j].Year {
			return keys[i].Year < keys[j].Year
		}
		return keys[i].Publisher < keys[j].Publisher
	})

	// Second pass: fold similar keys into existing clusters.
	var clusters []*cluster
	for _, key := range keys {
		members := groups[key]
		target := d.matchCluster(clusters, key, members[0])
		if target == nil {
			target = &cluster{
				tokens:     make(map[string]struct{}),
				years:      make(map[int]struct{}),
				publishers: make(map[string]struct{}),
			}
			clusters = append(clusters, target)
		}
		for _, record := range members {
			target.absorb(record)
		}
	}

	merged := make([]mergedEntry, 0, len(clusters))
	for _, c := range clusters {
		merged = append(merged, mergeCluster(c.records))
	}
	sort.SliceStable(merged, func(i, j int) bool {
		a, b := strings.ToLower(merged[i].entry.Name), strings.ToLower(merged[j].entry.Name)
		if a != b {
			return a < b
		}
		return merged[i].year < merged[j].year
	})
	return dedupeNames(merged)
}

func (d *Deduper) matchCluster(clusters []*cluster, key Key, sample schema.CanonicalRecord) *cluster {
	tokens := tokenSet(normalize.TitleTokens(sample.Name))
	for _, c := range clusters {
		if !d.yearsCompatible(c, key.Year) {
			continue
		}
		if !publishersCompatible(c, key.Publisher) {
			continue
		}
		if jaccard(tokens, c.tokens) >= d.cfg.SimilarityThreshold {
			return c
		}
	}
	return nil
}

func (d *Deduper) yearsCompatible(c *cluster, year int) bool {
	if year == 0 || len(c.years) == 0 {
		return true
	}
	for existing := range c.years {
		if abs(existing-year) <= d.cfg.YearTolerance {
			return true
		}
	}
	return false
}

func publishersCompatible(c *cluster, publisher string) bool {
	if publisher == "" || len(c.publishers) == 0 {
		return true
	}
	_, ok := c.publishers[publisher]
	return ok
}

func (c *cluster) absorb(record schema.CanonicalRecord) {
	c.records = append(c.records, record)
	for _, token := range normalize.TitleTokens(record.Name) {
		c.tokens[token] = struct{}{}
	}
	if record.ReleaseYear != 0 {
		c.years[record.ReleaseYear] = struct{}{}
	}
	if token := publisherToken(record.Publisher); token != "" {
		c.publishers[token] = struct{}{}
	}
}

func tokenSet(tokens []string) map[string]struct{} {
	set := make(map[string]struct{}, len(tokens))
	for _, token := range tokens {
		set[token] = struct{}{}
	}
	return set
}

// jaccard computes token-set similarity: |A∩B| / |A∪B|.
func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	intersection := 0
	for token := range a {
		if _, ok := b[token]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	return float64(intersection) / float64(union)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// dedupeNames enforces the unique-name invariant across clusters that
// resisted merging (same title, incompatible years or publishers): later
// same-name entries with a known release year get a year suffix; entries
// with no disambiguating year fold into the first occurrence.
func dedupeNames(merged []mergedEntry) []schema.CatalogEntry {
	byName := make(map[string]int, len(merged))
	out := make([]schema.CatalogEntry, 0, len(merged))
	for _, m := range merged {
		key := strings.ToLower(m.entry.Name)
		first, dup := byName[key]
		if !dup {
			byName[key] = len(out)
			out = append(out, m.entry)
			continue
		}
		if m.year != 0 {
			m.entry.Name = fmt.Sprintf("%s (%d)", m.entry.Name, m.year)
			byName[strings.ToLower(m.entry.Name)] = len(out)
			out = append(out, m.entry)
			continue
		}
		out[first] = foldEntries(out[first], m.entry)
	}
	return out
}
