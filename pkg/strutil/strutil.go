// Package strutil provides string processing utilities.
package strutil

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	// Only treat < followed by a letter as a tag, so math expressions like
	// "3 < 5" survive while "<br>" and "<b>" are removed.
	htmlTagRegexp = regexp.MustCompile(`</?([a-zA-Z]+)[^>]*>`)

	titleCaser = cases.Title(language.Und)
)

// NormalizeSpaces trims the string and collapses consecutive whitespace
// into a single space.
// Example: "  hello   world  " -> "hello world"
func NormalizeSpaces(s string) string {
	return strings.Join(strings.Fields(strings.TrimSpace(s)), " ")
}

// StripHTMLTags removes HTML tags from the string.
func StripHTMLTags(s string) string {
	return htmlTagRegexp.ReplaceAllString(s, "")
}

// StripAccents removes diacritical marks from the string.
// Example: "Córdoba Señal" -> "Cordoba Senal"
func StripAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	result, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return result
}

// TitleCase upper-cases the first letter of each word.
// Example: "new balance" -> "New Balance"
func TitleCase(s string) string {
	return titleCaser.String(s)
}

// AlphanumericOnly removes every rune that is not an ASCII letter or digit.
func AlphanumericOnly(s string) string {
	var builder strings.Builder
	builder.Grow(len(s))
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			builder.WriteRune(r)
		}
	}
	return builder.String()
}

// SplitAndTrim splits the string on sep, trims each token and drops empty
// ones. Returns nil when nothing remains.
// Example: "a, , b,c" (sep ",") -> ["a", "b", "c"]
func SplitAndTrim(s, sep string) []string {
	tokens := strings.Split(s, sep)
	if len(tokens) == 0 {
		return nil
	}

	result := make([]string, 0, len(tokens))
	for _, token := range tokens {
		token = strings.TrimSpace(token)
		if token != "" {
			result = append(result, token)
		}
	}

	if len(result) == 0 {
		return nil
	}

	return result
}

// Truncate cuts the string to at most limit bytes. The inputs it is used on
// are ASCII after normalization, so byte-based slicing is safe here.
func Truncate(s string, limit int) string {
	if limit <= 0 || len(s) <= limit {
		return s
	}
	return s[:limit]
}
