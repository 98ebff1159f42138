package config

import (
	"fmt"
	"net/url"
	"runtime"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"

	"github.com/aluiziolira/magpie/models"
)

// Time periods accepted by Config.Period.
const (
	PeriodYear  = "year"
	PeriodAll   = "all"
	PeriodMonth = "month"
	PeriodRange = "range"
)

// Output formats accepted by Config.OutputFormat.
const (
	FormatCSV     = "csv"
	FormatJSON    = "json"
	FormatDual    = "dual"
	FormatParquet = "parquet"
)

// Config holds scraper configuration.
type Config struct {
	// What to scrape.
	Granularity  models.ListGranularity
	Scope        models.ComparisonScope
	Basis        models.TemporalBasis
	Period       string
	Month        int
	Range        string
	LocationFile string

	// Where.
	TargetsURL string
	HomeURL    string
	LoginURL   string
	RegionURL  string

	// Session.
	Username  string
	Password  string
	SkipLogin bool

	// How.
	Parallelism        int
	Timeout            time.Duration
	RequestsPerSecond  float64
	MinBackoff         time.Duration
	MaxBackoff         time.Duration
	UserAgent          string
	PipelineBufferSize int

	// Output.
	OutputFile   string
	OutputFormat string // csv, json, dual or parquet

	// Location crawl.
	RegionFile    string
	HotspotFile   string
	SeenCacheSize int // distinct codes de-duplicated exactly per crawl level

	MetricsAddr string
	Progress    bool
	Verbose     bool
}

// DefaultConfig returns defaults for ebird.org.
func DefaultConfig() *Config {
	return &Config{
		Granularity:        models.GranularitySubRegion,
		Scope:              models.ScopeSubRegion,
		Basis:              models.BasisLife,
		Period:             PeriodYear,
		LocationFile:       "regions.csv",
		TargetsURL:         "https://ebird.org/targets",
		HomeURL:            "https://ebird.org/home",
		LoginURL:           "https://secure.birds.cornell.edu/cassso/login",
		RegionURL:          "https://ebird.org/region",
		Parallelism:        DefaultParallelism(),
		Timeout:            30 * time.Second,
		RequestsPerSecond:  0,
		MinBackoff:         5 * time.Second,
		MaxBackoff:         200 * time.Second,
		UserAgent:          "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/117.0.0.0 Safari/537.36",
		PipelineBufferSize: 64,
		OutputFile:         "targets.csv",
		OutputFormat:       FormatCSV,
		RegionFile:         "regions.csv",
		HotspotFile:        "hotspots.csv",
		SeenCacheSize:      1 << 16,
		Progress:           true,
	}
}

// DefaultParallelism is the number of logical CPUs.
func DefaultParallelism() int {
	n, err := cpu.Counts(true)
	if err != nil || n <= 0 {
		return runtime.NumCPU()
	}
	return n
}

// TimeWindows expands the configured period into month windows.
func (c *Config) TimeWindows() ([]models.TimeWindow, error) {
	switch c.Period {
	case PeriodYear:
		return models.FullYear(), nil
	case PeriodAll:
		return models.AllMonths(), nil
	case PeriodMonth:
		return models.SingleMonth(c.Month)
	case PeriodRange:
		return models.ParseRange(c.Range)
	default:
		return nil, fmt.Errorf("period must be year, all, month, or range, got %q", c.Period)
	}
}

// Validate ensures the configuration can drive a species scrape.
func (c *Config) Validate() error {
	if err := c.validateTransport(); err != nil {
		return err
	}
	if err := checkURL("targets URL", c.TargetsURL); err != nil {
		return err
	}
	if err := checkURL("home URL", c.HomeURL); err != nil {
		return err
	}
	if !c.Scope.CompatibleWith(c.Granularity) {
		return fmt.Errorf("scope %s cannot be used with %s locations", c.Scope, c.Granularity)
	}
	if _, err := c.TimeWindows(); err != nil {
		return fmt.Errorf("time window: %w", err)
	}
	if c.LocationFile == "" {
		return fmt.Errorf("location file cannot be empty")
	}
	if !c.SkipLogin {
		if err := checkURL("login URL", c.LoginURL); err != nil {
			return err
		}
		if c.Username == "" || c.Password == "" {
			return fmt.Errorf("username and password are required unless login is skipped")
		}
	}
	if c.OutputFile == "" {
		return fmt.Errorf("output file cannot be empty")
	}
	switch c.OutputFormat {
	case FormatCSV, FormatJSON, FormatDual, FormatParquet:
	default:
		return fmt.Errorf("output format must be csv, json, dual, or parquet")
	}
	if c.PipelineBufferSize <= 0 {
		return fmt.Errorf("pipeline buffer size must be positive")
	}
	return nil
}

// ValidateCrawl ensures the configuration can drive a location crawl.
func (c *Config) ValidateCrawl() error {
	if err := c.validateTransport(); err != nil {
		return err
	}
	if err := checkURL("region URL", c.RegionURL); err != nil {
		return err
	}
	if c.RegionFile == "" {
		return fmt.Errorf("region file cannot be empty")
	}
	if c.HotspotFile == "" {
		return fmt.Errorf("hotspot file cannot be empty")
	}
	if c.SeenCacheSize <= 0 {
		return fmt.Errorf("seen cache size must be positive")
	}
	return nil
}

func (c *Config) validateTransport() error {
	if c.Parallelism <= 0 {
		return fmt.Errorf("parallelism must be positive")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.RequestsPerSecond < 0 {
		return fmt.Errorf("requests per second cannot be negative")
	}
	if c.MinBackoff <= 0 {
		return fmt.Errorf("min backoff must be positive")
	}
	if c.MaxBackoff < c.MinBackoff {
		return fmt.Errorf("min backoff (%s) cannot exceed max backoff (%s)", c.MinBackoff, c.MaxBackoff)
	}
	if strings.TrimSpace(c.UserAgent) == "" {
		return fmt.Errorf("user agent cannot be empty")
	}
	return nil
}

func checkURL(name, raw string) error {
	if raw == "" {
		return fmt.Errorf("%s cannot be empty", name)
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", name, err)
	}
	if parsed.Host == "" {
		return fmt.Errorf("%s must include a host", name)
	}
	return nil
}
