package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	User struct {
		ID string `yaml:"id"`
	} `yaml:"user"`
	Database struct {
		ConnectionString string `yaml:"connection_string"`
	} `yaml:"database"`
	Pricing struct {
		SpotProvider       string `yaml:"spot_provider"`       // coingecko
		HistoricalProvider string `yaml:"historical_provider"` // coingecko or binance
		RefreshCron        string `yaml:"refresh_cron"`
		FetchTimeoutSec    int    `yaml:"fetch_timeout_sec"`
	} `yaml:"pricing"`
	Log struct {
		Level  string `yaml:"level"`
		Pretty bool   `yaml:"pretty"`
	} `yaml:"log"`
}

// Load reads config from a YAML file, then applies environment variable
// overrides. A missing file is fine; the defaults plus environment carry a
// full configuration.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Environment variable overrides
	if v := os.Getenv("DCA_USER_ID"); v != "" {
		cfg.User.ID = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.ConnectionString = v
	}
	if v := os.Getenv("DCA_HISTORICAL_PROVIDER"); v != "" {
		cfg.Pricing.HistoricalProvider = v
	}
	if v := os.Getenv("DCA_REFRESH_CRON"); v != "" {
		cfg.Pricing.RefreshCron = v
	}
	if v := os.Getenv("DCA_FETCH_TIMEOUT_SEC"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Pricing.FetchTimeoutSec = n
		}
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}

	// Defaults
	if cfg.User.ID == "" {
		cfg.User.ID = "default"
	}
	if cfg.Database.ConnectionString == "" {
		cfg.Database.ConnectionString = "host=localhost port=5432 user=postgres password=postgres dbname=dcaplanner sslmode=disable"
	}
	if cfg.Pricing.SpotProvider == "" {
		cfg.Pricing.SpotProvider = "coingecko"
	}
	if cfg.Pricing.HistoricalProvider == "" {
		cfg.Pricing.HistoricalProvider = "binance"
	}
	if cfg.Pricing.RefreshCron == "" {
		// Every 60 seconds.
		cfg.Pricing.RefreshCron = "0 * * * * *"
	}
	if cfg.Pricing.FetchTimeoutSec == 0 {
		cfg.Pricing.FetchTimeoutSec = 30
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Pricing.HistoricalProvider {
	case "binance", "coingecko":
	default:
		return fmt.Errorf("unknown historical provider %q", c.Pricing.HistoricalProvider)
	}
	return nil
}
