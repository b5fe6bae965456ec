package normalize

import (
	"strconv"
	"strings"
	"time"
)

// dateLayouts lists the source date formats seen across storefront payloads,
// tried in order.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05.999999Z",
	"2006-01-02",
	"Jan 2, 2006",
	"January 2, 2006",
	"2 Jan, 2006",
	"02 Jan 2006",
	"2006/01/02",
}

// ParseDate parses a source release date into an ISO-8601 date string and its
// year. Unparsable input yields ("", 0); the date is treated as absent.
func ParseDate(value string) (iso string, year int) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "", 0
	}
	for _, layout := range dateLayouts {
		if parsed, err := time.Parse(layout, trimmed); err == nil {
			return parsed.Format("2006-01-02"), parsed.Year()
		}
	}
	// Bare year, common for unreleased titles.
	if len(trimmed) == 4 {
		if y, err := strconv.Atoi(trimmed); err == nil && y >= 1970 && y <= 2100 {
			return "", y
		}
	}
	return "", 0
}
