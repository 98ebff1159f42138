package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/aluiziolira/magpie/config"
	"github.com/aluiziolira/magpie/scraper"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(&app{}).ExecuteContext(ctx); err != nil {
		slog.Error("magpie failed", slog.Any("error", err))
		stop()
		os.Exit(1)
	}
}

// app carries the resolved configuration from the root command to its children.
type app struct {
	configFile string
	cfg        *config.Config
}

func newRootCmd(a *app) *cobra.Command {
	d := config.DefaultConfig()

	root := &cobra.Command{
		Use:           "magpie",
		Short:         "Scrape eBird target species for a set of locations",
		Long:          "Fetches eBird targets pages for every location and month window, and merges the species frequencies into one table.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			v, err := config.NewViper(a.configFile)
			if err != nil {
				return err
			}
			if err := v.BindPFlags(cmd.Flags()); err != nil {
				return fmt.Errorf("bind flags: %w", err)
			}
			cfg, err := config.FromViper(v)
			if err != nil {
				return err
			}
			a.cfg = cfg

			logger, level := newLogger(cfg.Verbose)
			slog.SetDefault(logger)
			slog.SetLogLoggerLevel(level.Level())
			logConfigSource(v)
			return nil
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.configFile, "config", "", "Config file (default ./magpie.yaml)")
	pf.Int(config.KeyParallel, d.Parallelism, "Number of concurrent requests")
	pf.Duration(config.KeyTimeout, d.Timeout, "Per-request timeout")
	pf.Float64(config.KeyRPS, d.RequestsPerSecond, "Global request rate limit (0 disables)")
	pf.Duration(config.KeyMinBackoff, d.MinBackoff, "Initial retry delay")
	pf.Duration(config.KeyMaxBackoff, d.MaxBackoff, "Retry delay ceiling")
	pf.String(config.KeyUserAgent, d.UserAgent, "User-Agent header")
	pf.String(config.KeyHomeURL, d.HomeURL, "Home page that signals an expired session")
	pf.String(config.KeyLoginURL, d.LoginURL, "Login page")
	pf.String(config.KeyMetricsAddr, "", "Prometheus metrics listen address (e.g. :9090)")
	pf.Bool(config.KeyProgress, d.Progress, "Show a progress bar on a terminal")
	pf.BoolP(config.KeyVerbose, "v", false, "Enable verbose logging")

	root.AddCommand(newSpeciesCmd(a), newLocationsCmd(a))
	return root
}

func logConfigSource(v *viper.Viper) {
	if file := v.ConfigFileUsed(); file != "" {
		slog.Debug("loaded config file", slog.String("path", file))
	}
}

func newLogger(verbose bool) (*slog.Logger, *slog.LevelVar) {
	level := &slog.LevelVar{}
	if verbose {
		level.Set(slog.LevelDebug)
	} else {
		level.Set(slog.LevelInfo)
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if isTerminal(os.Stdout) {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler), level
}

func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// serveMetrics exposes m on addr until the returned stop function is called.
func serveMetrics(addr string, m *scraper.Metrics) func() {
	if addr == "" || m == nil {
		return func() {}
	}
	server := &http.Server{
		Addr:    addr,
		Handler: promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{}),
	}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server failed", slog.Any("error", err))
		}
	}()
	slog.Info("metrics server enabled", slog.String("addr", addr))

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("metrics server shutdown failed", slog.Any("error", err))
		}
	}
}
