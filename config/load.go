package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/aluiziolira/magpie/models"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "MAGPIE"

// Setting keys. Flags use the same names so viper can bind them directly.
const (
	KeyGranularity   = "granularity"
	KeyScope         = "scope"
	KeyBasis         = "basis"
	KeyPeriod        = "period"
	KeyMonth         = "month"
	KeyRange         = "range"
	KeyLocations     = "locations"
	KeyTargetsURL    = "targets-url"
	KeyHomeURL       = "home-url"
	KeyLoginURL      = "login-url"
	KeyRegionURL     = "region-url"
	KeyUsername      = "username"
	KeyPassword      = "password"
	KeySkipLogin     = "skip-login"
	KeyParallel      = "parallel"
	KeyTimeout       = "timeout"
	KeyRPS           = "rps"
	KeyMinBackoff    = "min-backoff"
	KeyMaxBackoff    = "max-backoff"
	KeyUserAgent     = "user-agent"
	KeyBuffer        = "buffer"
	KeyOutput        = "output"
	KeyFormat        = "format"
	KeyRegionOutput  = "region-output"
	KeyHotspotOutput = "hotspot-output"
	KeySeenCache     = "seen-cache"
	KeyMetricsAddr   = "metrics-addr"
	KeyProgress      = "progress"
	KeyVerbose       = "verbose"
)

// NewViper prepares a viper instance reading MAGPIE_* variables and an optional
// magpie.yaml from the working directory, or file when it is set.
func NewViper(file string) (*viper.Viper, error) {
	v := viper.New()

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("magpie")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	d := DefaultConfig()
	v.SetDefault(KeyGranularity, d.Granularity.String())
	v.SetDefault(KeyScope, d.Scope.String())
	v.SetDefault(KeyBasis, d.Basis.String())
	v.SetDefault(KeyPeriod, d.Period)
	v.SetDefault(KeyLocations, d.LocationFile)
	v.SetDefault(KeyTargetsURL, d.TargetsURL)
	v.SetDefault(KeyHomeURL, d.HomeURL)
	v.SetDefault(KeyLoginURL, d.LoginURL)
	v.SetDefault(KeyRegionURL, d.RegionURL)
	v.SetDefault(KeyParallel, d.Parallelism)
	v.SetDefault(KeyTimeout, d.Timeout)
	v.SetDefault(KeyRPS, d.RequestsPerSecond)
	v.SetDefault(KeyMinBackoff, d.MinBackoff)
	v.SetDefault(KeyMaxBackoff, d.MaxBackoff)
	v.SetDefault(KeyUserAgent, d.UserAgent)
	v.SetDefault(KeyBuffer, d.PipelineBufferSize)
	v.SetDefault(KeyOutput, d.OutputFile)
	v.SetDefault(KeyFormat, d.OutputFormat)
	v.SetDefault(KeyRegionOutput, d.RegionFile)
	v.SetDefault(KeyHotspotOutput, d.HotspotFile)
	v.SetDefault(KeySeenCache, d.SeenCacheSize)
	v.SetDefault(KeyProgress, d.Progress)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config: read file: %w", err)
		}
	}
	return v, nil
}

// FromViper builds a Config from flags, environment, file and defaults, in
// viper's order of precedence. It does not validate.
func FromViper(v *viper.Viper) (*Config, error) {
	granularity, err := models.ParseListGranularity(v.GetString(KeyGranularity))
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	scope, err := models.ParseComparisonScope(v.GetString(KeyScope))
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	basis, err := models.ParseTemporalBasis(v.GetString(KeyBasis))
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	// The "local" scope follows the location granularity.
	if granularity == models.GranularityHotspot && strings.EqualFold(v.GetString(KeyScope), "local") {
		scope = models.ScopeHotspot
	}

	return &Config{
		Granularity:        granularity,
		Scope:              scope,
		Basis:              basis,
		Period:             strings.ToLower(strings.TrimSpace(v.GetString(KeyPeriod))),
		Month:              v.GetInt(KeyMonth),
		Range:              v.GetString(KeyRange),
		LocationFile:       v.GetString(KeyLocations),
		TargetsURL:         v.GetString(KeyTargetsURL),
		HomeURL:            v.GetString(KeyHomeURL),
		LoginURL:           v.GetString(KeyLoginURL),
		RegionURL:          v.GetString(KeyRegionURL),
		Username:           v.GetString(KeyUsername),
		Password:           v.GetString(KeyPassword),
		SkipLogin:          v.GetBool(KeySkipLogin),
		Parallelism:        v.GetInt(KeyParallel),
		Timeout:            v.GetDuration(KeyTimeout),
		RequestsPerSecond:  v.GetFloat64(KeyRPS),
		MinBackoff:         v.GetDuration(KeyMinBackoff),
		MaxBackoff:         v.GetDuration(KeyMaxBackoff),
		UserAgent:          v.GetString(KeyUserAgent),
		PipelineBufferSize: v.GetInt(KeyBuffer),
		OutputFile:         v.GetString(KeyOutput),
		OutputFormat:       strings.ToLower(v.GetString(KeyFormat)),
		RegionFile:         v.GetString(KeyRegionOutput),
		HotspotFile:        v.GetString(KeyHotspotOutput),
		SeenCacheSize:      v.GetInt(KeySeenCache),
		MetricsAddr:        v.GetString(KeyMetricsAddr),
		Progress:           v.GetBool(KeyProgress),
		Verbose:            v.GetBool(KeyVerbose),
	}, nil
}
