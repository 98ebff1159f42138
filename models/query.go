// Package models defines the query and result types shared by the scraper.
package models

import (
	"fmt"
	"strconv"
	"strings"
)

// ListGranularity is the spatial level of the locations being scraped.
type ListGranularity int

const (
	GranularitySubRegion ListGranularity = iota
	GranularityHotspot
)

// String returns the wire token used in column names.
func (g ListGranularity) String() string {
	switch g {
	case GranularityHotspot:
		return "hotspot"
	default:
		return "sub_region"
	}
}

// CodeColumn is the location-table column holding the target code.
func (g ListGranularity) CodeColumn() string {
	return g.String() + "_code"
}

// IdentityPrefix is the href prefix of the anchor that identifies a target page.
func (g ListGranularity) IdentityPrefix() string {
	if g == GranularityHotspot {
		return "hotspot"
	}
	return "region"
}

// ParseListGranularity converts a token into a ListGranularity.
func ParseListGranularity(s string) (ListGranularity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "hotspot":
		return GranularityHotspot, nil
	case "sub_region", "subregion":
		return GranularitySubRegion, nil
	default:
		return 0, fmt.Errorf("unknown list granularity %q", s)
	}
}

// ComparisonScope selects the list a species must be missing from to count as a target.
type ComparisonScope int

const (
	ScopeHotspot ComparisonScope = iota
	ScopeSubRegion
	ScopeRegion
	ScopeCountry
	ScopeGlobal
)

// GlobalCode is the r2 value sent for the global scope.
const GlobalCode = "world"

func (s ComparisonScope) String() string {
	switch s {
	case ScopeHotspot:
		return "hotspot"
	case ScopeSubRegion:
		return "sub_region"
	case ScopeRegion:
		return "region"
	case ScopeCountry:
		return "country"
	default:
		return "global"
	}
}

// CodeColumn is the location-table column holding the scope code. Global has none.
func (s ComparisonScope) CodeColumn() string {
	if s == ScopeGlobal {
		return ""
	}
	return s.String() + "_code"
}

// ParseComparisonScope converts a token into a ComparisonScope.
func ParseComparisonScope(s string) (ComparisonScope, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "hotspot":
		return ScopeHotspot, nil
	case "sub_region", "subregion", "local":
		return ScopeSubRegion, nil
	case "region":
		return ScopeRegion, nil
	case "country":
		return ScopeCountry, nil
	case "global", "world":
		return ScopeGlobal, nil
	default:
		return 0, fmt.Errorf("unknown comparison scope %q", s)
	}
}

// CompatibleWith reports whether the scope can be requested for locations of granularity g.
func (s ComparisonScope) CompatibleWith(g ListGranularity) bool {
	switch g {
	case GranularityHotspot:
		return s == ScopeHotspot || s == ScopeGlobal
	default:
		return s != ScopeHotspot
	}
}

// CodeColumns returns the ordered location-table columns read to build r1 (and r2).
func CodeColumns(g ListGranularity, s ComparisonScope) []string {
	if s == ScopeGlobal {
		return []string{g.CodeColumn()}
	}
	return []string{g.CodeColumn(), s.CodeColumn()}
}

// TemporalBasis selects the personal list the frequencies are computed against.
type TemporalBasis int

const (
	BasisLife TemporalBasis = iota
	BasisYear
	BasisMonth
	BasisDate
)

// String returns the t2 query value.
func (b TemporalBasis) String() string {
	switch b {
	case BasisYear:
		return "year"
	case BasisMonth:
		return "month"
	case BasisDate:
		return "day"
	default:
		return "life"
	}
}

// ParseTemporalBasis converts a token into a TemporalBasis.
func ParseTemporalBasis(s string) (TemporalBasis, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "life":
		return BasisLife, nil
	case "year", "ytd":
		return BasisYear, nil
	case "month", "current_month", "mtd":
		return BasisMonth, nil
	case "day", "date":
		return BasisDate, nil
	default:
		return 0, fmt.Errorf("unknown temporal basis %q", s)
	}
}

// TimeWindow is an inclusive range of calendar months.
type TimeWindow struct {
	Start uint8
	End   uint8
}

// Inverted reports whether the window wraps past December.
func (w TimeWindow) Inverted() bool {
	return w.Start > w.End
}

func (w TimeWindow) String() string {
	return fmt.Sprintf("%d-%d", w.Start, w.End)
}

// FullYear is the single January-December window.
func FullYear() []TimeWindow {
	return []TimeWindow{{Start: 1, End: 12}}
}

// AllMonths returns one single-month window per month.
func AllMonths() []TimeWindow {
	windows := make([]TimeWindow, 0, 12)
	for m := uint8(1); m <= 12; m++ {
		windows = append(windows, TimeWindow{Start: m, End: m})
	}
	return windows
}

// SingleMonth returns the window covering month m only.
func SingleMonth(m int) ([]TimeWindow, error) {
	month, err := checkMonth(m)
	if err != nil {
		return nil, err
	}
	return []TimeWindow{{Start: month, End: month}}, nil
}

// ParseRange parses "a-b" into a single window.
func ParseRange(s string) ([]TimeWindow, error) {
	parts := strings.Split(strings.TrimSpace(s), "-")
	if len(parts) != 2 {
		return nil, fmt.Errorf("time range %q must look like start-end", s)
	}
	start, err := parseMonth(parts[0])
	if err != nil {
		return nil, fmt.Errorf("time range %q start: %w", s, err)
	}
	end, err := parseMonth(parts[1])
	if err != nil {
		return nil, fmt.Errorf("time range %q end: %w", s, err)
	}
	return []TimeWindow{{Start: start, End: end}}, nil
}

func parseMonth(s string) (uint8, error) {
	m, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("invalid month %q", s)
	}
	return checkMonth(m)
}

func checkMonth(m int) (uint8, error) {
	if m < 1 || m > 12 {
		return 0, fmt.Errorf("month %d out of range 1-12", m)
	}
	return uint8(m), nil
}
