package parser

import (
	"fmt"

	"github.com/andybalholm/cascadia"

	"github.com/aluiziolira/magpie/models"
)

// Selectors is the compiled set of queries for eBird target, region and login pages.
// It is built once and shared read-only by every worker.
type Selectors struct {
	Anchor          cascadia.Selector
	Checklists      cascadia.Selector
	HotspotIdentity cascadia.Selector
	Leaderboard     cascadia.Selector
	LoginToken      cascadia.Selector
	Native          cascadia.Selector
	Percent         cascadia.Selector
	RegionIdentity  cascadia.Selector
	Rows            cascadia.Selector
	ScientificName  cascadia.Selector
	Species         cascadia.Selector
	SpeciesCount    cascadia.Selector
}

const (
	anchorQuery          = `a`
	checklistsQuery      = `p[class="u-text-3 u-margin-none"]`
	hotspotIdentityQuery = `a[href^="hotspot"]`
	leaderboardQuery     = `div[class="LeaderBoardSection"]`
	loginTokenQuery      = `input[name="lt"]`
	nativeQuery          = `section[aria-labelledby="native-and-naturalized"]`
	percentQuery         = `div[class="ResultsStats-stats"]`
	regionIdentityQuery  = `a[href^="region"]`
	rowsQuery            = `li[class="ResultsStats ResultsStats--action ResultsStats--toEdge"]`
	scientificNameQuery  = `em[class="sci"]`
	speciesQuery         = `div[class="SpecimenHeader"]`
	speciesCountQuery    = `strong[class="Heading Heading--h2"]`
)

// NewSelectors compiles every query.
func NewSelectors() (*Selectors, error) {
	s := &Selectors{}
	queries := []struct {
		dst   *cascadia.Selector
		query string
	}{
		{&s.Anchor, anchorQuery},
		{&s.Checklists, checklistsQuery},
		{&s.HotspotIdentity, hotspotIdentityQuery},
		{&s.Leaderboard, leaderboardQuery},
		{&s.LoginToken, loginTokenQuery},
		{&s.Native, nativeQuery},
		{&s.Percent, percentQuery},
		{&s.RegionIdentity, regionIdentityQuery},
		{&s.Rows, rowsQuery},
		{&s.ScientificName, scientificNameQuery},
		{&s.Species, speciesQuery},
		{&s.SpeciesCount, speciesCountQuery},
	}
	for _, q := range queries {
		compiled, err := cascadia.Compile(q.query)
		if err != nil {
			return nil, fmt.Errorf("compile selector %q: %w", q.query, err)
		}
		*q.dst = compiled
	}
	return s, nil
}

// Identity returns the anchor query that proves a page belongs to a location of granularity g.
func (s *Selectors) Identity(g models.ListGranularity) cascadia.Selector {
	if g == models.GranularityHotspot {
		return s.HotspotIdentity
	}
	return s.RegionIdentity
}
