// Package normalize maps raw storefront listings to canonical catalog records.
// Every function here is a pure mapping; no I/O happens during normalization.
package normalize

import (
	"strings"

	"github.com/gamedex/catalog/errs"
	"github.com/gamedex/catalog/internal/schema"
)

// Well-known raw listing field keys populated by adapters.
const (
	FieldName        = "name"
	FieldUUID        = "uuid"
	FieldType        = "type"
	FieldPrice       = "price"
	FieldCurrency    = "currency"
	FieldIsFree      = "is_free"
	FieldImage       = "image"
	FieldHref        = "href"
	FieldPlatforms   = "platforms"
	FieldRating      = "rating"
	FieldReleaseDate = "release_date"
	FieldPublisher   = "publisher"
)

// Result carries a normalized record plus any platform strings the alias
// table did not recognize; those pass through into the record unchanged but
// are surfaced for adapter-side follow-up.
type Result struct {
	Record           schema.CanonicalRecord
	UnknownPlatforms []string
}

// Record converts a raw listing into a canonical record. A listing whose
// mandatory name or uuid cannot be derived is rejected with a validation
// error; every other field degrades to absent instead of failing the record.
func Record(raw schema.RawListing) (Result, error) {
	name := CleanTitle(stringField(raw.Fields, FieldName))
	if name == "" {
		return Result{}, errs.New(string(raw.Store), errs.CodeValidation,
			errs.WithMessage("listing has no usable name"))
	}
	uuid := strings.TrimSpace(stringField(raw.Fields, FieldUUID))
	if uuid == "" {
		return Result{}, errs.New(string(raw.Store), errs.CodeValidation,
			errs.WithMessage("listing has no usable uuid"),
			errs.WithField("name", name))
	}

	record := schema.CanonicalRecord{
		Store: raw.Store,
		UUID:  uuid,
		Name:  name,
		Type:  recordType(stringField(raw.Fields, FieldType)),
		Image: strings.TrimSpace(stringField(raw.Fields, FieldImage)),
		Href:  strings.TrimSpace(stringField(raw.Fields, FieldHref)),
	}

	if boolField(raw.Fields, FieldIsFree) {
		record.Price = FreePrice(stringField(raw.Fields, FieldCurrency))
	} else {
		record.Price = ParsePrice(raw.Fields[FieldPrice], stringField(raw.Fields, FieldCurrency))
	}

	tags, unknown := Platforms(stringsField(raw.Fields, FieldPlatforms))
	record.Platforms = tags

	record.Rating = ParseRating(stringField(raw.Fields, FieldRating))
	record.ReleaseDate, record.ReleaseYear = ParseDate(stringField(raw.Fields, FieldReleaseDate))
	record.Publisher = CleanTitle(stringField(raw.Fields, FieldPublisher))

	return Result{Record: record, UnknownPlatforms: unknown}, nil
}

func recordType(value string) schema.RecordType {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "game", "full game", "full_game":
		return schema.TypeGame
	case "dlc", "add-on", "addon", "add_on":
		return schema.TypeDLC
	case "bundle":
		return schema.TypeBundle
	default:
		return schema.TypeOther
	}
}

func stringField(fields map[string]any, key string) string {
	switch v := fields[key].(type) {
	case string:
		return v
	default:
		return ""
	}
}

func boolField(fields map[string]any, key string) bool {
	v, _ := fields[key].(bool)
	return v
}

func stringsField(fields map[string]any, key string) []string {
	switch v := fields[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
