package normalize

import (
	"regexp"
	"strings"

	"github.com/gamedex/catalog/internal/schema"
)

var ratingCleanRx = regexp.MustCompile(`[^a-z0-9+ ]+`)

// ratingAliases folds ESRB, PEGI, and CERO strings into the controlled
// vocabulary.
var ratingAliases = map[string]schema.Rating{
	"everyone":           schema.RatingEveryone,
	"e":                  schema.RatingEveryone,
	"e for everyone":     schema.RatingEveryone,
	"esrb everyone":      schema.RatingEveryone,
	"everyone 10+":       schema.RatingEveryone10,
	"e10+":               schema.RatingEveryone10,
	"e 10+":              schema.RatingEveryone10,
	"esrb everyone 10+":  schema.RatingEveryone10,
	"teen":               schema.RatingTeen,
	"t":                  schema.RatingTeen,
	"esrb teen":          schema.RatingTeen,
	"mature":             schema.RatingMature,
	"mature 17+":         schema.RatingMature,
	"m":                  schema.RatingMature,
	"esrb mature":        schema.RatingMature,
	"adults only":        schema.RatingAdultsOnly,
	"adults only 18+":    schema.RatingAdultsOnly,
	"ao":                 schema.RatingAdultsOnly,
	"pegi 3":             schema.RatingEveryone,
	"pegi 7":             schema.RatingEveryone10,
	"pegi 12":            schema.RatingTeen,
	"pegi 16":            schema.RatingMature,
	"pegi 18":            schema.RatingMature,
	"cero a":             schema.RatingEveryone,
	"cero b":             schema.RatingTeen,
	"cero c":             schema.RatingMature,
	"cero d":             schema.RatingMature,
	"cero z":             schema.RatingAdultsOnly,
	"rating pending":     schema.RatingUnrated,
	"rp":                 schema.RatingUnrated,
}

// ParseRating maps a source rating string to the controlled vocabulary.
// Unknown values map to unrated, never dropped.
func ParseRating(value string) schema.Rating {
	cleaned := ratingCleanRx.ReplaceAllString(strings.ToLower(value), "")
	cleaned = strings.TrimSpace(spaceRx.ReplaceAllString(cleaned, " "))
	if cleaned == "" {
		return schema.RatingUnrated
	}
	if rating, ok := ratingAliases[cleaned]; ok {
		return rating
	}
	return schema.RatingUnrated
}
