package normalize

import "strings"

// platformAliases maps source-specific platform strings to canonical tags.
var platformAliases = map[string]string{
	"ps4":               "PS4",
	"ps5":               "PS5",
	"playstation 4":     "PS4",
	"playstation 5":     "PS5",
	"ps4 & ps5":         "PS4/PS5",
	"ps5|ps4":           "PS4/PS5",
	"xbox one":          "Xbox One",
	"xbox series x|s":   "Xbox Series X|S",
	"xbox series x":     "Xbox Series X|S",
	"xbox series s":     "Xbox Series X|S",
	"xbox series":       "Xbox Series X|S",
	"xbox":              "Xbox",
	"xbox play anywhere": "Xbox Play Anywhere",
	"windows":           "Windows",
	"win32":             "Windows",
	"pc":                "PC",
	"steam":             "PC",
	"mac":               "Mac",
	"macos":             "Mac",
	"linux":             "Linux",
	"switch":            "Switch",
	"nintendo switch":   "Switch",
	"nintendo switch 2": "Switch 2",
}

// Platforms maps source platform strings through the alias table, dropping
// duplicates while preserving first-seen order. Unknown strings pass through
// unchanged and are returned separately for adapter-side follow-up.
func Platforms(values []string) (tags []string, unknown []string) {
	seen := make(map[string]struct{}, len(values))
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			continue
		}
		canonical, ok := platformAliases[strings.ToLower(trimmed)]
		if !ok {
			canonical = trimmed
			unknown = append(unknown, trimmed)
		}
		key := strings.ToLower(canonical)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		tags = append(tags, canonical)
	}
	return tags, unknown
}
