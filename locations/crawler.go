package locations

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/errgroup"

	"github.com/aluiziolira/magpie/config"
	"github.com/aluiziolira/magpie/models"
	"github.com/aluiziolira/magpie/parser"
	"github.com/aluiziolira/magpie/scraper"
)

// Levels of the region hierarchy, used as metric labels.
const (
	LevelCountry   = "country"
	LevelRegion    = "region"
	LevelSubRegion = "sub_region"
	LevelHotspot   = "hotspot"
)

const (
	worldCode     = "world"
	subregionPath = "subregions"
	hotspotPath   = "hotspots"
)

// Result holds every location found by a crawl, parents before children.
type Result struct {
	Countries  []models.Country
	Regions    []models.Region
	SubRegions []models.SubRegion
	Hotspots   []models.Hotspot
	StartTime  time.Time
	EndTime    time.Time

	// Evicted counts seen-set evictions per level. A non-zero count means
	// that level may hold duplicates.
	Evicted map[string]int
}

// Crawler walks country, region, sub-region and hotspot listings.
type Crawler struct {
	cfg     *config.Config
	fetcher *scraper.Fetcher
	parser  *parser.Parser
	metrics *scraper.Metrics
	seen    *lru.Cache[string, struct{}]
	evicted atomic.Int64
}

// NewCrawler builds a crawler sharing fetcher's session and rate limits. The
// seen-set holds at most cfg.SeenCacheSize codes per level.
func NewCrawler(cfg *config.Config, fetcher *scraper.Fetcher, p *parser.Parser, metrics *scraper.Metrics) (*Crawler, error) {
	c := &Crawler{
		cfg:     cfg,
		fetcher: fetcher,
		parser:  p,
		metrics: metrics,
	}
	seen, err := lru.NewWithEvict[string, struct{}](cfg.SeenCacheSize, func(string, struct{}) {
		c.evicted.Add(1)
	})
	if err != nil {
		return nil, fmt.Errorf("create seen cache: %w", err)
	}
	c.seen = seen
	return c, nil
}

// Crawl walks the full hierarchy one level at a time.
func (c *Crawler) Crawl(ctx context.Context) (*Result, error) {
	res := &Result{StartTime: time.Now(), Evicted: make(map[string]int)}

	countries, err := crawlLevel(ctx, c, LevelCountry, []string{worldCode},
		func(code string) string { return c.listURL(code, subregionPath) },
		func(_ string, l parser.Link) models.Country {
			return models.Country{Country: l.Name, CountryCode: l.Code}
		})
	if err != nil {
		return nil, err
	}
	c.noteEvictions(res, LevelCountry)
	res.Countries = countries

	regions, err := crawlLevel(ctx, c, LevelRegion, countries,
		func(p models.Country) string { return c.listURL(p.CountryCode, subregionPath) },
		func(p models.Country, l parser.Link) models.Region { return models.NewRegion(p, l.Name, l.Code) })
	if err != nil {
		return nil, err
	}
	c.noteEvictions(res, LevelRegion)
	res.Regions = regions

	subRegions, err := crawlLevel(ctx, c, LevelSubRegion, regions,
		func(p models.Region) string { return c.listURL(p.RegionCode, subregionPath) },
		func(p models.Region, l parser.Link) models.SubRegion { return models.NewSubRegion(p, l.Name, l.Code) })
	if err != nil {
		return nil, err
	}
	c.noteEvictions(res, LevelSubRegion)
	res.SubRegions = subRegions

	hotspots, err := crawlLevel(ctx, c, LevelHotspot, subRegions,
		func(p models.SubRegion) string { return c.listURL(p.SubRegionCode, hotspotPath) },
		func(p models.SubRegion, l parser.Link) models.Hotspot { return models.NewHotspot(p, l.Name, l.Code) })
	if err != nil {
		return nil, err
	}
	c.noteEvictions(res, LevelHotspot)
	res.Hotspots = hotspots

	res.EndTime = time.Now()
	return res, nil
}

func (c *Crawler) listURL(code, suffix string) string {
	return strings.TrimRight(c.cfg.RegionURL, "/") + "/" + code + "/" + suffix
}

// crawlLevel lists the children of every parent in bounded parallel. Output
// keeps parent order; a code already seen at this level is dropped.
func crawlLevel[P, C any](ctx context.Context, c *Crawler, level string, parents []P, listURL func(P) string, build func(P, parser.Link) C) ([]C, error) {
	limit := c.cfg.Parallelism
	if limit <= 0 {
		limit = 1
	}
	c.seen.Purge()
	c.evicted.Store(0)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	children := make([][]C, len(parents))
	for i, parent := range parents {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			links, err := c.links(gctx, listURL(parent))
			if err != nil {
				return fmt.Errorf("crawl %s: %w", level, err)
			}
			for _, l := range links {
				if c.markSeen(l.Code) {
					continue
				}
				children[i] = append(children[i], build(parent, l))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var out []C
	for _, batch := range children {
		out = append(out, batch...)
	}
	c.metrics.AddLocations(level, len(out))
	slog.Info("crawled level",
		slog.String("level", level),
		slog.Int("parents", len(parents)),
		slog.Int("found", len(out)),
	)
	return out, nil
}

// markSeen records code and reports whether it was already present at the
// current level.
func (c *Crawler) markSeen(code string) bool {
	seen, _ := c.seen.ContainsOrAdd(code, struct{}{})
	return seen
}

// noteEvictions records how many codes level pushed out of the seen-set.
func (c *Crawler) noteEvictions(res *Result, level string) {
	n := int(c.evicted.Load())
	if n == 0 {
		return
	}
	res.Evicted[level] = n
	slog.Warn("seen cache overflowed, level may contain duplicates",
		slog.String("level", level),
		slog.Int("evicted", n),
		slog.Int("capacity", c.cfg.SeenCacheSize),
	)
}

// links fetches one listing page. A page that never shows a leaderboard by the
// backoff ceiling has no children.
func (c *Crawler) links(ctx context.Context, rawURL string) ([]parser.Link, error) {
	b := c.fetcher.NewBackoff(c.cfg.MinBackoff, c.cfg.MaxBackoff)
	for {
		body, err := c.fetcher.Fetch(ctx, rawURL, b)
		if err != nil {
			return nil, err
		}
		links, err := c.parser.ParseLeaderboard(body)
		if err == nil {
			return links, nil
		}

		c.fetcher.RecordError(err)
		if b.AtCeiling() {
			slog.Warn("no leaderboard, treating as empty", slog.String("url", rawURL))
			return nil, nil
		}
		if err := c.fetcher.Retry(ctx, b, rawURL, err); err != nil {
			return nil, err
		}
	}
}

// Write saves the sub-region and hotspot tables.
func (r *Result) Write(regionFile, hotspotFile string) error {
	if err := WriteCSV(regionFile, r.SubRegions); err != nil {
		return fmt.Errorf("write sub-regions: %w", err)
	}
	if err := WriteCSV(hotspotFile, r.Hotspots); err != nil {
		return fmt.Errorf("write hotspots: %w", err)
	}
	return nil
}
