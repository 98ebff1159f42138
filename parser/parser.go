// Package parser turns eBird HTML into typed rows.
package parser

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/aluiziolira/magpie/models"
	"github.com/aluiziolira/magpie/table"
)

var (
	// ErrIdentityMismatch means the page is not the one requested.
	ErrIdentityMismatch = errors.New("parser: page identity mismatch")
	// ErrSpeciesCount means the species-count heading is missing or not a number.
	ErrSpeciesCount = errors.New("parser: species count unavailable")
	// ErrMissingSection means species were reported but the results section is absent.
	ErrMissingSection = errors.New("parser: native species section missing")
	// ErrMalformedPercent means a percentage attribute was present but not numeric.
	ErrMalformedPercent = errors.New("parser: malformed percentage")
	// ErrMissingLeaderboard means a region listing page has no leaderboard.
	ErrMissingLeaderboard = errors.New("parser: leaderboard missing")
)

// IsTransient reports whether err should trigger another fetch of the same page.
func IsTransient(err error) bool {
	return errors.Is(err, ErrIdentityMismatch) ||
		errors.Is(err, ErrSpeciesCount) ||
		errors.Is(err, ErrMissingSection) ||
		errors.Is(err, ErrMissingLeaderboard)
}

// Target identifies the page a response is expected to describe.
type Target struct {
	Granularity models.ListGranularity
	Code        string
}

// Href is the identity anchor href the page must carry.
func (t Target) Href() string {
	return t.Granularity.IdentityPrefix() + "/" + t.Code
}

// Page is the extracted content of one targets page.
type Page struct {
	SpeciesCount uint32
	Checklists   int32
	Rows         []models.SpeciesRow
}

// Fragment converts the rows into a species table.
func (p *Page) Fragment() (*table.Table, error) {
	names := make([]string, len(p.Rows))
	sci := make([]string, len(p.Rows))
	percents := make([]float32, len(p.Rows))
	for i, r := range p.Rows {
		names[i] = r.CommonName
		sci[i] = r.ScientificName
		percents[i] = r.Percent
	}
	return table.New(
		table.NewStringColumn(models.ColCommonName, names),
		table.NewStringColumn(models.ColScientificName, sci),
		table.NewFloat32Column(models.ColPercent, percents),
	)
}

// EmptyFragment is the species table of a location with nothing to report.
func EmptyFragment() (*table.Table, error) {
	return (&Page{}).Fragment()
}

// Parser extracts target species from fetched pages.
type Parser struct {
	sel *Selectors
}

// New builds a parser over a compiled selector table.
func New(sel *Selectors) *Parser {
	return &Parser{sel: sel}
}

// ParsePage validates a targets page and extracts its rows.
func (p *Parser) ParsePage(body []byte, target Target) (*Page, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSpeciesCount, err)
	}

	href, _ := doc.FindMatcher(p.sel.Identity(target.Granularity)).First().Attr("href")
	if href != target.Href() {
		return nil, fmt.Errorf("%w: found %q, want %q", ErrIdentityMismatch, href, target.Href())
	}

	page := &Page{}
	if text, ok := firstText(doc.FindMatcher(p.sel.Checklists).First()); ok {
		page.Checklists = ParseChecklists(text)
	}

	countText, ok := firstText(doc.FindMatcher(p.sel.SpeciesCount).First())
	if !ok {
		return nil, fmt.Errorf("%w: heading not found", ErrSpeciesCount)
	}
	count, err := ParseSpeciesCount(countText)
	if err != nil {
		return nil, err
	}
	page.SpeciesCount = count
	if count == 0 {
		return page, nil
	}

	native := doc.FindMatcher(p.sel.Native).First()
	if native.Length() == 0 {
		return nil, fmt.Errorf("%w: %d species reported", ErrMissingSection, count)
	}

	rows, err := p.parseRows(native)
	if err != nil {
		return nil, err
	}
	page.Rows = rows
	return page, nil
}

func (p *Parser) parseRows(section *goquery.Selection) ([]models.SpeciesRow, error) {
	var (
		rows     []models.SpeciesRow
		firstErr error
	)
	section.FindMatcher(p.sel.Rows).EachWithBreak(func(i int, row *goquery.Selection) bool {
		anchor := row.FindMatcher(p.sel.Species).First().FindMatcher(p.sel.Anchor).First()

		commonName := ownText(anchor)
		scientificName, _ := firstText(anchor.FindMatcher(p.sel.ScientificName).First())

		title, present := row.FindMatcher(p.sel.Percent).First().Attr("title")
		percent, err := ParsePercent(title, present)
		if err != nil {
			firstErr = fmt.Errorf("row %d (%s): %w", i, commonName, err)
			return false
		}

		rows = append(rows, models.SpeciesRow{
			CommonName:     commonName,
			ScientificName: strings.TrimSpace(scientificName),
			Percent:        percent,
		})
		return true
	})
	if firstErr != nil {
		return nil, firstErr
	}
	return rows, nil
}

// firstText returns the first non-blank text node below the selection.
func firstText(sel *goquery.Selection) (string, bool) {
	if sel.Length() == 0 {
		return "", false
	}
	var walk func(n *html.Node) (string, bool)
	walk = func(n *html.Node) (string, bool) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.TextNode {
				if text := strings.TrimSpace(c.Data); text != "" {
					return text, true
				}
				continue
			}
			if text, ok := walk(c); ok {
				return text, true
			}
		}
		return "", false
	}
	return walk(sel.Get(0))
}

// ownText returns the first non-blank text node directly under the selection,
// ignoring text nested in child elements such as the scientific name.
func ownText(sel *goquery.Selection) string {
	if sel.Length() == 0 {
		return ""
	}
	for c := sel.Get(0).FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.TextNode {
			continue
		}
		if text := strings.TrimSpace(c.Data); text != "" {
			return text
		}
	}
	return ""
}
