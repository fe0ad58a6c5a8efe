package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"cropfetcher/internal/source"
)

// CommodityConfig names one crop across the sources that are keyed by crop.
type CommodityConfig struct {
	Name     string `mapstructure:"name"`
	Ticker   string `mapstructure:"ticker"`
	NASSDesc string `mapstructure:"nass_desc"`
}

// Config holds all configuration for the crop data fetcher.
type Config struct {
	// API keys
	NOAAAPIKey string `mapstructure:"noaa_api_key"`
	NASSAPIKey string `mapstructure:"nass_api_key"`

	// Run settings
	DataDir      string            `mapstructure:"data_dir"`
	LogLevel     string            `mapstructure:"log_level"`
	FetchTimeout time.Duration     `mapstructure:"fetch_timeout"`
	PoolSize     int               `mapstructure:"pool_size"`
	Modes        map[string]string `mapstructure:"modes"`

	// Base URLs for API endpoints (configurable for testing)
	YahooBaseURL     string `mapstructure:"yahoo_base_url"`
	NASSBaseURL      string `mapstructure:"nass_base_url"`
	TrendsBaseURL    string `mapstructure:"trends_base_url"`
	NOAABaseURL      string `mapstructure:"noaa_base_url"`
	WorldBankBaseURL string `mapstructure:"worldbank_base_url"`

	// Source parameters
	Commodities        []CommodityConfig `mapstructure:"commodities"`
	FuturesRange       string            `mapstructure:"futures_range"`
	FuturesInterval    string            `mapstructure:"futures_interval"`
	NASSYearFrom       int               `mapstructure:"nass_year_from"`
	TrendsTimeframe    string            `mapstructure:"trends_timeframe"`
	TrendsGeo          string            `mapstructure:"trends_geo"`
	NOAADatasetID      string            `mapstructure:"noaa_dataset_id"`
	NOAAStationID      string            `mapstructure:"noaa_station_id"`
	NOAALookbackDays   int               `mapstructure:"noaa_lookback_days"`
	NOAALimit          int               `mapstructure:"noaa_limit"`
	WorldBankIndicator string            `mapstructure:"worldbank_indicator"`
	WorldBankPerPage   int               `mapstructure:"worldbank_per_page"`
}

var defaults = map[string]any{
	"data_dir":      "data",
	"log_level":     "info",
	"fetch_timeout": "2m",
	"pool_size":     0,

	"yahoo_base_url":     "https://query1.finance.yahoo.com",
	"nass_base_url":      "https://quickstats.nass.usda.gov/api",
	"trends_base_url":    "https://trends.google.com",
	"noaa_base_url":      "https://www.ncei.noaa.gov/cdo-web/api/v2",
	"worldbank_base_url": "https://api.worldbank.org",

	"futures_range":       "5y",
	"futures_interval":    "1d",
	"nass_year_from":      2015,
	"trends_timeframe":    "today 5-y",
	"trends_geo":          "US",
	"noaa_dataset_id":     "GHCND",
	"noaa_station_id":     "GHCND:USW00094846",
	"noaa_lookback_days":  30,
	"noaa_limit":          1000,
	"worldbank_indicator": "TM.TAX.MRCH.SM.AR.ZS",
	"worldbank_per_page":  1000,

	"commodities": []map[string]any{
		{"name": "Corn", "ticker": "ZC=F", "nass_desc": "CORN"},
		{"name": "Soybeans", "ticker": "ZS=F", "nass_desc": "SOYBEANS"},
		{"name": "Rice", "ticker": "ZR=F", "nass_desc": "RICE"},
	},
}

// flagKeys maps command line flags onto configuration keys
var flagKeys = map[string]string{
	"data-dir":  "data_dir",
	"log-level": "log_level",
}

// Load reads configuration from environment variables, an optional config
// file and command line flags. Flags take precedence over environment
// variables, which take precedence over the config file.
//
// Expected environment variables:
//   - NOAA_API_KEY
//   - NASS_API_KEY
//   - any other key in upper case, e.g. DATA_DIR or NOAA_BASE_URL (optional)
//
// flags may be nil. When it defines --config, that file must exist;
// otherwise config.yaml is looked up in . and $HOME/.cropfetcher.
func Load(flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	// Bind environment variables, one per key
	v.BindEnv("noaa_api_key", "NOAA_API_KEY")
	v.BindEnv("nass_api_key", "NASS_API_KEY")
	for key := range defaults {
		if key == "commodities" {
			continue
		}
		v.BindEnv(key, strings.ToUpper(key))
	}

	if err := readConfigFile(v, flags); err != nil {
		return nil, err
	}

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("failed to bind flag --%s: %w", name, err)
				}
			}
		}
	}

	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func readConfigFile(v *viper.Viper, flags *pflag.FlagSet) error {
	if flags != nil {
		if path, err := flags.GetString("config"); err == nil && path != "" {
			v.SetConfigFile(path)
			if err := v.ReadInConfig(); err != nil {
				return fmt.Errorf("failed to read config file %s: %w", path, err)
			}
			return nil
		}
	}

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.cropfetcher")

	// A missing file is fine, a broken one is not
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return nil
}

// Validate reports every missing required key in one error, followed by
// any invalid values.
func (c *Config) Validate() error {
	var missing []string
	if c.NOAAAPIKey == "" {
		missing = append(missing, "NOAA_API_KEY")
	}
	if c.NASSAPIKey == "" {
		missing = append(missing, "NASS_API_KEY")
	}

	var errs []error
	if len(missing) > 0 {
		errs = append(errs, fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", ")))
	}

	if c.DataDir == "" {
		errs = append(errs, fmt.Errorf("data_dir must not be empty"))
	}
	if _, err := c.Level(); err != nil {
		errs = append(errs, err)
	}
	if c.FetchTimeout < 0 {
		errs = append(errs, fmt.Errorf("fetch_timeout must not be negative, got %s", c.FetchTimeout))
	}
	if c.PoolSize < 0 {
		errs = append(errs, fmt.Errorf("pool_size must not be negative, got %d", c.PoolSize))
	}

	for key, n := range map[string]int{
		"nass_year_from":     c.NASSYearFrom,
		"noaa_lookback_days": c.NOAALookbackDays,
		"noaa_limit":         c.NOAALimit,
		"worldbank_per_page": c.WorldBankPerPage,
	} {
		if n <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %d", key, n))
		}
	}

	if len(c.Commodities) == 0 {
		errs = append(errs, fmt.Errorf("at least one commodity is required"))
	}
	for i, cm := range c.Commodities {
		if cm.Name == "" || cm.Ticker == "" || cm.NASSDesc == "" {
			errs = append(errs, fmt.Errorf("commodity %d: name, ticker and nass_desc are required", i))
		}
	}

	if _, err := c.SourceModes(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// Level parses LogLevel
func (c *Config) Level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("invalid log_level %q", c.LogLevel)
	}
	return level, nil
}

// SourceModes parses the mode overrides keyed by source name
func (c *Config) SourceModes() (map[string]source.Mode, error) {
	known := make(map[string]bool)
	for _, d := range source.Defaults() {
		known[d.Name] = true
	}

	modes := make(map[string]source.Mode, len(c.Modes))
	for name, raw := range c.Modes {
		if !known[name] {
			return nil, fmt.Errorf("modes: unknown source %q", name)
		}
		m, err := source.ParseMode(raw)
		if err != nil {
			return nil, fmt.Errorf("modes.%s: %w", name, err)
		}
		modes[name] = m
	}
	return modes, nil
}
