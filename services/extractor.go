package services

import (
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"
)

const maxProductNameLen = 60

var (
	schemeRegex     = regexp.MustCompile(`(?i)^https?://`)
	asinRegex       = regexp.MustCompile(`(?i)(?:/dp|/gp/product)/([A-Z0-9]{10})(?:[/?]|$)`)
	markerRegex     = regexp.MustCompile(`(?i)/(?:dp|gp/product)/`)
	asinPrefixRegex = regexp.MustCompile(`^[A-Z0-9]{10}/?(.+)?`)
	asinShapeRegex  = regexp.MustCompile(`^[A-Z0-9]{10}$`)
	separatorRegex  = regexp.MustCompile(`[-_+]`)
	spaceRegex      = regexp.MustCompile(`\s+`)
)

// NormalizeURL trims the raw value and prefixes https:// when no scheme is present.
// The result is not validated.
func NormalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if !schemeRegex.MatchString(raw) {
		raw = "https://" + raw
	}
	return raw
}

// ExtractASIN returns the upper-cased 10-character identifier following a
// /dp/ or /gp/product/ segment, or "" when the URL has none.
func ExtractASIN(raw string) string {
	normalized := NormalizeURL(raw)
	if normalized == "" {
		return ""
	}
	m := asinRegex.FindStringSubmatch(normalized)
	if len(m) < 2 {
		return ""
	}
	return strings.ToUpper(m[1])
}

// IsASIN reports whether s already has the identifier shape
func IsASIN(s string) bool {
	return asinShapeRegex.MatchString(s)
}

// DeriveProductName guesses a readable product name from the URL path.
// It returns "" when nothing usable is found.
func DeriveProductName(raw string) string {
	normalized := NormalizeURL(raw)
	if normalized == "" {
		return ""
	}
	u, err := url.Parse(normalized)
	if err != nil {
		return ""
	}
	path := u.Path

	if loc := markerRegex.FindStringIndex(path); loc != nil {
		// Slug before the marker: /Some-Product/dp/ASIN
		if before := nonEmptySegments(path[:loc[0]]); len(before) > 0 {
			return cleanProductName(before[len(before)-1])
		}
		// Slug after the identifier: /dp/ASIN/Some-Product
		if m := asinPrefixRegex.FindStringSubmatch(path[loc[1]:]); len(m) > 1 && m[1] != "" {
			return cleanProductName(strings.Split(m[1], "/")[0])
		}
	}

	var candidates []string
	for _, seg := range nonEmptySegments(path) {
		if len(seg) > 2 && !asinShapeRegex.MatchString(seg) {
			candidates = append(candidates, seg)
		}
	}
	if len(candidates) > 0 {
		return cleanProductName(candidates[len(candidates)-1])
	}
	return ""
}

func nonEmptySegments(path string) []string {
	var out []string
	for _, seg := range strings.Split(path, "/") {
		if seg != "" {
			out = append(out, seg)
		}
	}
	return out
}

// cleanProductName turns a URL slug into a title-cased display name
func cleanProductName(slug string) string {
	name := separatorRegex.ReplaceAllString(slug, " ")
	name = titleWords(name)
	name = spaceRegex.ReplaceAllString(name, " ")
	name = strings.TrimSpace(name)
	if utf8.RuneCountInString(name) > maxProductNameLen {
		name = string([]rune(name)[:maxProductNameLen])
	}
	return name
}

// titleWords upper-cases every word character that starts a word
func titleWords(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	prevWord := false
	for _, r := range s {
		word := isWordRune(r)
		if word && !prevWord && r >= 'a' && r <= 'z' {
			r -= 'a' - 'A'
		}
		prevWord = word
		b.WriteRune(r)
	}
	return b.String()
}

func isWordRune(r rune) bool {
	return r == '_' || (r >= '0' && r <= '9') || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}
