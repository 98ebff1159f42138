package parser

import (
	"bytes"
	"fmt"

	"github.com/PuerkitoBio/goquery"
)

// Link is one entry of a region leaderboard.
type Link struct {
	Name string
	Code string
}

// ParseLeaderboard lists the regions or hotspots linked from a region page.
// Anchors without a title or href are skipped.
func (p *Parser) ParseLeaderboard(body []byte) ([]Link, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMissingLeaderboard, err)
	}
	board := doc.FindMatcher(p.sel.Leaderboard).First()
	if board.Length() == 0 {
		return nil, ErrMissingLeaderboard
	}

	var links []Link
	board.FindMatcher(p.sel.Anchor).Each(func(_ int, a *goquery.Selection) {
		href, ok := a.Attr("href")
		if !ok {
			return
		}
		title, ok := a.Attr("title")
		if !ok {
			return
		}
		code := CodeFromHref(href)
		if code == "" {
			return
		}
		links = append(links, Link{Name: NormalizeName(title), Code: code})
	})
	return links, nil
}
