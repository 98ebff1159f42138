package main

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/aluiziolira/magpie/locations"
	"github.com/aluiziolira/magpie/models"
)

func newTable(out io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(out)
	return t
}

// formatElapsed renders d as HH:MM:SS.mmm.
func formatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	ms := d.Milliseconds()
	h := ms / 3_600_000
	m := ms / 60_000 % 60
	s := ms / 1000 % 60
	return fmt.Sprintf("%02d:%02d:%02d.%03d", h, m, s, ms%1000)
}

func printSpeciesSummary(result *models.ScraperResult, rows int, outputs []string) {
	writeSpeciesSummary(os.Stdout, result, rows, outputs)
}

func writeSpeciesSummary(out io.Writer, result *models.ScraperResult, rows int, outputs []string) {
	t := newTable(out)
	t.SetTitle("Scrape complete")
	t.AppendRows([]table.Row{
		{"Payloads", result.PayloadCount},
		{"Fragments", result.FragmentCount},
		{"Empty fragments", result.EmptyFragments},
		{"Rows", rows},
		{"Requests", result.RequestCount},
		{"Retries", result.RetryCount},
		{"Gave up", result.GiveUpCount},
	})
	if len(result.ErrorsByType) > 0 {
		t.AppendRow(table.Row{"Error types", formatCounts(result.ErrorsByType)})
	}
	t.AppendSeparator()
	t.AppendRow(table.Row{"Elapsed", formatElapsed(result.Duration())})
	t.AppendRow(table.Row{"Output", strings.Join(outputs, ", ")})
	t.Render()
}

func printCrawlSummary(res *locations.Result, regionFile, hotspotFile string) {
	writeCrawlSummary(os.Stdout, res, regionFile, hotspotFile)
}

func writeCrawlSummary(out io.Writer, res *locations.Result, regionFile, hotspotFile string) {
	t := newTable(out)
	t.SetTitle("Crawl complete")
	t.AppendHeader(table.Row{"Level", "Found", "File"})
	t.AppendRows([]table.Row{
		{locations.LevelCountry, len(res.Countries), ""},
		{locations.LevelRegion, len(res.Regions), ""},
		{locations.LevelSubRegion, len(res.SubRegions), regionFile},
		{locations.LevelHotspot, len(res.Hotspots), hotspotFile},
	})
	t.AppendFooter(table.Row{"Elapsed", formatElapsed(res.EndTime.Sub(res.StartTime)), ""})
	t.Render()
}

// formatCounts renders m as "a=1 b=2" in key order.
func formatCounts(m map[string]int) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%d", k, m[k])
	}
	return strings.Join(parts, " ")
}
