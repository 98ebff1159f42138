package scraper

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/aluiziolira/magpie/models"
	"github.com/aluiziolira/magpie/parser"
)

// ErrEmptyCode is returned when a location row lacks a code the query needs.
var ErrEmptyCode = errors.New("scraper: empty location code")

// Payload is one unit of work: a location queried over one time window.
type Payload struct {
	Record models.LocationRecord
	Target parser.Target
	R1     string
	R2     string
	Window models.TimeWindow
}

// BuildPayloads pairs every location row with every window. The result has
// len(rows)*len(windows) payloads, rows in the outer loop.
func BuildPayloads(rows []models.LocationRow, g models.ListGranularity, s models.ComparisonScope, windows []models.TimeWindow) ([]Payload, error) {
	columns := models.CodeColumns(g, s)
	payloads := make([]Payload, 0, len(rows)*len(windows))
	for i, row := range rows {
		codes := make([]string, len(columns))
		for j, column := range columns {
			code, ok := row.Code(column)
			code = strings.TrimSpace(code)
			if !ok || code == "" {
				return nil, fmt.Errorf("%w: row %d column %s", ErrEmptyCode, i+1, column)
			}
			codes[j] = code
		}
		r2 := models.GlobalCode
		if len(codes) > 1 {
			r2 = codes[1]
		}

		record := row.Record(g)
		target := parser.Target{Granularity: g, Code: codes[0]}
		for _, w := range windows {
			payloads = append(payloads, Payload{
				Record: record,
				Target: target,
				R1:     codes[0],
				R2:     r2,
				Window: w,
			})
		}
	}
	return payloads, nil
}

// Query returns the merged location, window and basis parameters.
func (p Payload) Query(basis models.TemporalBasis) string {
	// url.Values.Encode sorts keys; the site expects r1, r2, bmo, emo, t2.
	params := [][2]string{
		{"r1", p.R1},
		{"r2", p.R2},
		{"bmo", strconv.Itoa(int(p.Window.Start))},
		{"emo", strconv.Itoa(int(p.Window.End))},
		{"t2", basis.String()},
	}
	var b strings.Builder
	for i, kv := range params {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(kv[0]))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(kv[1]))
	}
	return b.String()
}

// URL joins base and the payload query.
func (p Payload) URL(base string, basis models.TemporalBasis) string {
	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}
	return base + sep + p.Query(basis)
}

// String identifies the payload in logs and errors.
func (p Payload) String() string {
	return fmt.Sprintf("r1=%s r2=%s bmo=%d emo=%d", p.R1, p.R2, p.Window.Start, p.Window.End)
}
