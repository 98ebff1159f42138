package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/aluiziolira/magpie/config"
	"github.com/aluiziolira/magpie/locations"
	"github.com/aluiziolira/magpie/scraper"
)

func newLocationsCmd(a *app) *cobra.Command {
	d := config.DefaultConfig()
	cmd := &cobra.Command{
		Use:   "locations",
		Short: "Crawl the eBird region tree into sub-region and hotspot files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLocations(cmd.Context(), a.cfg)
		},
	}

	f := cmd.Flags()
	f.String(config.KeyRegionURL, d.RegionURL, "Region listing base URL")
	f.String(config.KeyRegionOutput, d.RegionFile, "Sub-region output file")
	f.String(config.KeyHotspotOutput, d.HotspotFile, "Hotspot output file")
	f.Int(config.KeySeenCache, d.SeenCacheSize, "Location codes remembered per level for de-duplication; a level with more may keep duplicates")
	return cmd
}

func runLocations(ctx context.Context, cfg *config.Config) error {
	if err := cfg.ValidateCrawl(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	s, err := scraper.NewScraper(cfg)
	if err != nil {
		return fmt.Errorf("initialising fetcher: %w", err)
	}
	stopMetrics := serveMetrics(cfg.MetricsAddr, s.Metrics)
	defer stopMetrics()

	c, err := locations.NewCrawler(cfg, s.Fetcher(), s.Parser(), s.Metrics)
	if err != nil {
		return err
	}

	slog.Info("starting crawl",
		slog.String("region_url", cfg.RegionURL),
		slog.Int("workers", cfg.Parallelism),
	)
	res, err := c.Crawl(ctx)
	if err != nil {
		return fmt.Errorf("crawl: %w", err)
	}
	if err := res.Write(cfg.RegionFile, cfg.HotspotFile); err != nil {
		return fmt.Errorf("writing locations: %w", err)
	}

	printCrawlSummary(res, cfg.RegionFile, cfg.HotspotFile)
	return nil
}
