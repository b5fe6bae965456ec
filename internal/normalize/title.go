package normalize

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

var (
	markRx  = regexp.MustCompile(`[™®©]`)
	spaceRx = regexp.MustCompile(`\s{2,}`)

	editionRx = regexp.MustCompile(`(?i)\b(deluxe|definitive|gold|ultimate|goty|complete|remastered|hd|bundle|collection|director'?s cut|edition|standard|launch|classic)\b`)

	platformNoiseRx = regexp.MustCompile(`(?i)\b(ps\s*4|ps\s*5|playstation\s*4|playstation\s*5|xbox(\s+one|\s+series\s+x\|?s)?|series\s+x\|?s|nintendo\s+switch|switch)\b`)

	titleTokenRx = regexp.MustCompile(`[a-z0-9]+`)
)

// CleanTitle produces the canonical display title: trademark glyphs stripped,
// Unicode NFKC-normalized, whitespace collapsed and trimmed.
func CleanTitle(name string) string {
	t := norm.NFKC.String(name)
	t = markRx.ReplaceAllString(t, "")
	t = spaceRx.ReplaceAllString(t, " ")
	return strings.TrimSpace(t)
}

// TitleKey reduces a title to its clustering form: cleaned, casefolded, with
// platform and edition noise removed. Falls back to the cleaned title when
// stripping would leave nothing.
func TitleKey(name string) string {
	t := strings.ToLower(CleanTitle(name))
	stripped := platformNoiseRx.ReplaceAllString(t, "")
	stripped = editionRx.ReplaceAllString(stripped, "")
	stripped = spaceRx.ReplaceAllString(stripped, " ")
	stripped = strings.Trim(stripped, " -–—:")
	if stripped == "" {
		return t
	}
	return stripped
}

// TitleTokens splits a clustering title key into its alphanumeric token set.
func TitleTokens(name string) []string {
	return titleTokenRx.FindAllString(TitleKey(name), -1)
}

// LetterBucket routes a name to its per-letter output file: its lowercased
// first character for a-z, underscore otherwise.
func LetterBucket(name string) string {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return "_"
	}
	ch := strings.ToLower(trimmed[:1])
	if ch >= "a" && ch <= "z" {
		return ch
	}
	return "_"
}
