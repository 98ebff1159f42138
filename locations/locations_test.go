package locations

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aluiziolira/magpie/config"
	"github.com/aluiziolira/magpie/models"
	"github.com/aluiziolira/magpie/parser"
	"github.com/aluiziolira/magpie/scraper"
)

const testRegionURL = "https://ebird.test/region"

func TestLoadSubRegions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "regions.csv")
	content := "country,country_code,region,region_code,sub_region,sub_region_code\n" +
		"United States,US,Ohio,US-OH,Franklin,US-OH-049\n" +
		"United States,US,Ohio,US-OH, \"Cuyahoga\" ,US-OH-035\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	rows, err := Load(path, models.GranularitySubRegion, models.ScopeRegion)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, models.LocationRow{
		Country: "United States", CountryCode: "US",
		Region: "Ohio", RegionCode: "US-OH",
		SubRegion: "Franklin", SubRegionCode: "US-OH-049",
	}, rows[0])
	assert.Equal(t, "Cuyahoga", rows[1].SubRegion)
}

func TestLoadHotspotsWithExtraColumns(t *testing.T) {
	content := "country,region,sub_region,hotspot,hotspot_code,latitude\n" +
		"United States,Ohio,Franklin,Scioto Audubon,L1234,39.9\n"

	rows, err := Decode(strings.NewReader(content), RequiredColumns(models.GranularityHotspot, models.ScopeGlobal))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "L1234", rows[0].HotspotCode)
	assert.Equal(t, "Scioto Audubon", rows[0].Hotspot)

	rec := rows[0].Record(models.GranularityHotspot)
	require.NotNil(t, rec.Hotspot)
	assert.Equal(t, "Scioto Audubon", *rec.Hotspot)
}

func TestLoadMissingColumns(t *testing.T) {
	content := "country,region,sub_region,sub_region_code\nUnited States,Ohio,Franklin,US-OH-049\n"

	_, err := Decode(strings.NewReader(content), RequiredColumns(models.GranularitySubRegion, models.ScopeCountry))
	require.ErrorIs(t, err, ErrMissingColumn)
	assert.Contains(t, err.Error(), "country_code")

	_, err = Decode(strings.NewReader(""), RequiredColumns(models.GranularitySubRegion, models.ScopeGlobal))
	assert.ErrorIs(t, err, ErrEmptyFile)

	_, err = Load(filepath.Join(t.TempDir(), "absent.csv"), models.GranularitySubRegion, models.ScopeGlobal)
	assert.Error(t, err)
}

func TestRequiredColumns(t *testing.T) {
	assert.Equal(t,
		[]string{"country", "region", "sub_region", "sub_region_code", "region_code"},
		RequiredColumns(models.GranularitySubRegion, models.ScopeRegion))
	assert.Equal(t,
		[]string{"country", "region", "sub_region", "hotspot", "hotspot_code"},
		RequiredColumns(models.GranularityHotspot, models.ScopeGlobal))
}

func TestWriteCSVRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "hotspots.csv")
	sub := models.NewSubRegion(models.NewRegion(models.Country{Country: "United States", CountryCode: "US"}, "Ohio", "US-OH"), "Franklin", "US-OH-049")
	hotspots := []models.Hotspot{
		models.NewHotspot(sub, "Scioto Audubon", "L1234"),
		models.NewHotspot(sub, "Green Lawn", "L5678"),
	}
	require.NoError(t, WriteCSV(path, hotspots))

	rows, err := Load(path, models.GranularityHotspot, models.ScopeHotspot)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "US-OH-049", rows[1].SubRegionCode)
	assert.Equal(t, "L5678", rows[1].HotspotCode)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestWriteCSVEmptyWritesHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "regions.csv")
	require.NoError(t, WriteCSV[models.SubRegion](path, nil))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "country,country_code,region,region_code,sub_region,sub_region_code\n", string(data))
}

func leaderboard(prefix string, names map[string]string, order ...string) string {
	var b strings.Builder
	b.WriteString(`<html><body><div class="LeaderBoardSection"><ol>`)
	for _, code := range order {
		fmt.Fprintf(&b, `<li><a href="/%s/%s" title="%s">%s</a></li>`, prefix, code, names[code], names[code])
	}
	b.WriteString(`</ol></div></body></html>`)
	return b.String()
}

type sleepLog struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (s *sleepLog) sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.delays = append(s.delays, d)
	s.mu.Unlock()
	return ctx.Err()
}

func newTestCrawler(t *testing.T, seenSize int) (*Crawler, *httpmock.MockTransport, *sleepLog) {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.RegionURL = testRegionURL
	cfg.HomeURL = "https://ebird.test/home"
	cfg.LoginURL = "https://ebird.test/cassso/login"
	cfg.Parallelism = 3
	cfg.MinBackoff = time.Second
	cfg.MaxBackoff = 2 * time.Second
	cfg.SeenCacheSize = seenSize

	metrics := scraper.NewMetrics()
	fetcher, err := scraper.NewFetcher(cfg, metrics)
	require.NoError(t, err)
	transport := httpmock.NewMockTransport()
	fetcher.WithTransport(transport)
	sleeps := &sleepLog{}
	fetcher.WithSleep(sleeps.sleep)

	sel, err := parser.NewSelectors()
	require.NoError(t, err)
	c, err := NewCrawler(cfg, fetcher, parser.New(sel), metrics)
	require.NoError(t, err)
	return c, transport, sleeps
}

func TestCrawl(t *testing.T) {
	c, transport, sleeps := newTestCrawler(t, 128)

	page := func(body string) httpmock.Responder {
		return httpmock.NewStringResponder(http.StatusOK, body)
	}
	transport.RegisterResponder(http.MethodGet, testRegionURL+"/world/subregions",
		page(leaderboard("region", map[string]string{"US": "United States", "AQ": "Antarctica"}, "US", "AQ", "US")))
	transport.RegisterResponder(http.MethodGet, testRegionURL+"/US/subregions",
		page(leaderboard("region", map[string]string{"US-OH": "Ohio"}, "US-OH")))
	transport.RegisterResponder(http.MethodGet, testRegionURL+"/AQ/subregions",
		page(`<html><body><p>No subregions</p></body></html>`))
	transport.RegisterResponder(http.MethodGet, testRegionURL+"/US-OH/subregions",
		page(leaderboard("region", map[string]string{"US-OH-049": "Franklin", "US-OH-035": "Cuyahoga"}, "US-OH-049", "US-OH-035")))
	transport.RegisterResponder(http.MethodGet, testRegionURL+"/US-OH-049/hotspots",
		page(leaderboard("hotspot", map[string]string{"L1234": "Scioto Audubon"}, "L1234")))
	transport.RegisterResponder(http.MethodGet, testRegionURL+"/US-OH-035/hotspots",
		page(leaderboard("hotspot", nil)))

	res, err := c.Crawl(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []models.Country{
		{Country: "United States", CountryCode: "US"},
		{Country: "Antarctica", CountryCode: "AQ"},
	}, res.Countries)
	assert.Equal(t, []models.Region{
		{Country: "United States", CountryCode: "US", Region: "Ohio", RegionCode: "US-OH"},
	}, res.Regions)
	require.Len(t, res.SubRegions, 2)
	assert.Equal(t, "Franklin", res.SubRegions[0].SubRegion)
	assert.Equal(t, "US-OH-035", res.SubRegions[1].SubRegionCode)
	assert.Equal(t, []models.Hotspot{{
		Country: "United States", CountryCode: "US",
		Region: "Ohio", RegionCode: "US-OH",
		SubRegion: "Franklin", SubRegionCode: "US-OH-049",
		Hotspot: "Scioto Audubon", HotspotCode: "L1234",
	}}, res.Hotspots)

	// Antarctica never shows a leaderboard: one wait at 1s, then the 2s ceiling.
	sleeps.mu.Lock()
	assert.Equal(t, []time.Duration{time.Second}, sleeps.delays)
	sleeps.mu.Unlock()
	assert.Empty(t, res.Evicted)

	dir := t.TempDir()
	regionFile := filepath.Join(dir, "regions.csv")
	hotspotFile := filepath.Join(dir, "hotspots.csv")
	require.NoError(t, res.Write(regionFile, hotspotFile))

	rows, err := Load(regionFile, models.GranularitySubRegion, models.ScopeCountry)
	require.NoError(t, err)
	assert.Len(t, rows, 2)
	rows, err = Load(hotspotFile, models.GranularityHotspot, models.ScopeGlobal)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestCrawlPropagatesCancel(t *testing.T) {
	c, transport, _ := newTestCrawler(t, 128)
	transport.RegisterResponder(http.MethodGet, testRegionURL+"/world/subregions",
		httpmock.NewStringResponder(http.StatusServiceUnavailable, ""))

	ctx, cancel := context.WithCancel(context.Background())
	c.fetcher.WithSleep(func(ctx context.Context, d time.Duration) error {
		cancel()
		return ctx.Err()
	})

	_, err := c.Crawl(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCrawlReportsSeenCacheOverflow(t *testing.T) {
	c, transport, _ := newTestCrawler(t, 1)

	empty := httpmock.NewStringResponder(http.StatusOK, leaderboard("region", nil))
	transport.RegisterResponder(http.MethodGet, testRegionURL+"/world/subregions",
		httpmock.NewStringResponder(http.StatusOK,
			leaderboard("region", map[string]string{"US": "United States", "AQ": "Antarctica"}, "US", "AQ", "US")))
	transport.RegisterResponder(http.MethodGet, testRegionURL+"/US/subregions", empty)
	transport.RegisterResponder(http.MethodGet, testRegionURL+"/AQ/subregions", empty)

	res, err := c.Crawl(context.Background())
	require.NoError(t, err)

	// US is evicted by AQ and comes back as a duplicate.
	assert.Len(t, res.Countries, 3)
	assert.Equal(t, map[string]int{LevelCountry: 2}, res.Evicted)
	assert.Empty(t, res.Regions)
}

func TestCrawlSeenSetIsPerLevel(t *testing.T) {
	c, transport, _ := newTestCrawler(t, 4)

	transport.RegisterResponder(http.MethodGet, testRegionURL+"/world/subregions",
		httpmock.NewStringResponder(http.StatusOK, leaderboard("region", map[string]string{"SG": "Singapore"}, "SG")))
	transport.RegisterResponder(http.MethodGet, testRegionURL+"/SG/subregions",
		httpmock.NewStringResponder(http.StatusOK, leaderboard("region", map[string]string{"SG": "Singapore"}, "SG")))
	transport.RegisterResponder(http.MethodGet, testRegionURL+"/SG/hotspots",
		httpmock.NewStringResponder(http.StatusOK, leaderboard("hotspot", nil)))

	res, err := c.Crawl(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []models.Country{{Country: "Singapore", CountryCode: "SG"}}, res.Countries)
	require.Len(t, res.Regions, 1)
	assert.Equal(t, "SG", res.Regions[0].RegionCode)
	require.Len(t, res.SubRegions, 1)
	assert.Equal(t, "SG", res.SubRegions[0].SubRegionCode)
	assert.Empty(t, res.Hotspots)
	assert.Empty(t, res.Evicted)
}
