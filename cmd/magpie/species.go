package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/aluiziolira/magpie/config"
	"github.com/aluiziolira/magpie/locations"
	"github.com/aluiziolira/magpie/pipeline"
	"github.com/aluiziolira/magpie/scraper"
)

func newSpeciesCmd(a *app) *cobra.Command {
	d := config.DefaultConfig()
	cmd := &cobra.Command{
		Use:   "species",
		Short: "Scrape target species for every location and time window",
		Example: `  magpie species --locations regions.csv --scope region --period year
  magpie species --granularity hotspot --locations hotspots.csv --period range --range 3-5 --format parquet`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSpecies(cmd.Context(), a.cfg)
		},
	}

	f := cmd.Flags()
	f.String(config.KeyGranularity, d.Granularity.String(), "Location list granularity: sub_region or hotspot")
	f.String(config.KeyScope, d.Scope.String(), "Comparison scope: global, country, region, sub_region, hotspot or local")
	f.String(config.KeyBasis, d.Basis.String(), "Temporal basis: life, year, month or day")
	f.String(config.KeyPeriod, d.Period, "Time windows: year, all, month or range")
	f.Int(config.KeyMonth, 0, "Month for --period month (1-12)")
	f.String(config.KeyRange, "", "Window for --period range, e.g. 3-5")
	f.String(config.KeyLocations, d.LocationFile, "Location CSV file")
	f.String(config.KeyTargetsURL, d.TargetsURL, "Targets page URL")
	f.String(config.KeyUsername, "", "eBird username")
	f.String(config.KeyPassword, "", "eBird password (prefer MAGPIE_PASSWORD)")
	f.Bool(config.KeySkipLogin, false, "Do not log in before scraping")
	f.Int(config.KeyBuffer, d.PipelineBufferSize, "Fragment queue size")
	f.StringP(config.KeyOutput, "o", d.OutputFile, "Output file path")
	f.String(config.KeyFormat, d.OutputFormat, "Output format: csv, json, dual or parquet")
	return cmd
}

func runSpecies(ctx context.Context, cfg *config.Config) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	windows, err := cfg.TimeWindows()
	if err != nil {
		return err
	}
	rows, err := locations.Load(cfg.LocationFile, cfg.Granularity, cfg.Scope)
	if err != nil {
		return fmt.Errorf("loading locations: %w", err)
	}
	payloads, err := scraper.BuildPayloads(rows, cfg.Granularity, cfg.Scope, windows)
	if err != nil {
		return fmt.Errorf("building payloads: %w", err)
	}

	slog.Info("starting scrape",
		slog.String("granularity", cfg.Granularity.String()),
		slog.String("scope", cfg.Scope.String()),
		slog.String("basis", cfg.Basis.String()),
		slog.Int("locations", len(rows)),
		slog.Int("windows", len(windows)),
		slog.Int("payloads", len(payloads)),
		slog.Int("workers", cfg.Parallelism),
	)

	s, err := scraper.NewScraper(cfg)
	if err != nil {
		return fmt.Errorf("initialising scraper: %w", err)
	}
	stopMetrics := serveMetrics(cfg.MetricsAddr, s.Metrics)
	defer stopMetrics()

	if !cfg.SkipLogin {
		if err := s.Login(ctx); err != nil {
			return fmt.Errorf("login: %w", err)
		}
	}

	writer, err := createWriter(cfg.OutputFormat, cfg.OutputFile)
	if err != nil {
		return fmt.Errorf("creating writer: %w", err)
	}
	schema, err := scraper.Schema(cfg.Granularity)
	if err != nil {
		_ = writer.Discard()
		return err
	}

	p := pipeline.NewPipeline(ctx, writer, schema, cfg.PipelineBufferSize)
	p.Start(cfg.Parallelism)
	if cfg.Verbose {
		p.StartMetricsReporting(10 * time.Second)
	}

	if bar := newProgressBar(cfg.Progress, len(payloads), "scraping"); bar != nil {
		s.OnPayloadDone(func() { _ = bar.Add(1) })
		defer bar.Finish()
	}

	result, err := s.Run(ctx, payloads, p)
	if err != nil {
		p.Abort(err)
		return fmt.Errorf("scrape: %w", err)
	}

	final, err := p.Close()
	if err != nil {
		return fmt.Errorf("pipeline shutdown: %w", err)
	}
	if err := writer.Validate(); err != nil {
		return fmt.Errorf("validate output: %w", err)
	}

	printSpeciesSummary(result, final.Height(), outputFiles(cfg.OutputFormat, cfg.OutputFile))
	return nil
}

func createWriter(format, filename string) (pipeline.OutputWriter, error) {
	switch format {
	case config.FormatJSON:
		return pipeline.NewJSONWriter(filename)
	case config.FormatCSV:
		return pipeline.NewCSVWriter(filename)
	case config.FormatDual:
		return pipeline.NewDualWriter(filename, jsonSibling(filename))
	case config.FormatParquet:
		return pipeline.NewParquetWriter(filename)
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}
}

func jsonSibling(filename string) string {
	return strings.TrimSuffix(filename, ".csv") + ".json"
}

func outputFiles(format, filename string) []string {
	if format == config.FormatDual {
		return []string{filename, jsonSibling(filename)}
	}
	return []string{filename}
}

// newProgressBar returns nil when disabled or when stderr is not a terminal.
func newProgressBar(enabled bool, total int, description string) *progressbar.ProgressBar {
	if !enabled || total <= 0 || !isTerminal(os.Stderr) {
		return nil
	}
	return progressbar.NewOptions(total,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)
}
