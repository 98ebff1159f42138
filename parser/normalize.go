package parser

import (
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"
	"unicode"
)

// ParsePercent reads the frequency from a title such as "37.5% (partial)".
// A missing title or an empty prefix yields zero.
func ParsePercent(title string, present bool) (float32, error) {
	if !present {
		return 0, nil
	}
	prefix, _, _ := strings.Cut(title, "%")
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(prefix, 32)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: %q", ErrMalformedPercent, title)
	}
	return float32(v), nil
}

// ParseChecklists keeps the digits of text such as "Based on 1,234 checklists".
// Anything unparseable counts as zero.
func ParseChecklists(text string) int32 {
	digits := strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, text)
	n, err := strconv.ParseInt(digits, 10, 32)
	if err != nil {
		return 0
	}
	return int32(n)
}

// ParseSpeciesCount reads the species-count heading.
func ParseSpeciesCount(text string) (uint32, error) {
	cleaned := strings.ReplaceAll(strings.TrimSpace(text), ",", "")
	n, err := strconv.ParseUint(cleaned, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrSpeciesCount, text)
	}
	return uint32(n), nil
}

// NormalizeName trims a display name and collapses inner whitespace.
func NormalizeName(name string) string {
	return strings.Join(strings.Fields(name), " ")
}

// CodeFromHref returns the last path segment of a region or hotspot link.
func CodeFromHref(href string) string {
	if u, err := url.Parse(href); err == nil {
		href = u.Path
	}
	href = strings.TrimRight(href, "/")
	if i := strings.LastIndex(href, "/"); i >= 0 {
		return href[i+1:]
	}
	return href
}
