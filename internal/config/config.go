// Package config loads application configuration from file and environment.
package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Edgar    EdgarConfig    `yaml:"edgar" mapstructure:"edgar"`
	Prices   PricesConfig   `yaml:"prices" mapstructure:"prices"`
	Universe UniverseConfig `yaml:"universe" mapstructure:"universe"`
	Scan     ScanConfig     `yaml:"scan" mapstructure:"scan"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the durable cache backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// EdgarConfig configures the SEC EDGAR client. The user agent is mandatory:
// EDGAR rejects requests without an identifying header.
type EdgarConfig struct {
	UserAgent      string `yaml:"user_agent" mapstructure:"user_agent"`
	BaseURL        string `yaml:"base_url" mapstructure:"base_url"`
	TickerMapURL   string `yaml:"ticker_map_url" mapstructure:"ticker_map_url"`
	MaxAttempts    int    `yaml:"max_attempts" mapstructure:"max_attempts"`
	BackoffInitial int    `yaml:"backoff_initial_secs" mapstructure:"backoff_initial_secs"`
}

// PricesConfig configures the daily price fetcher.
type PricesConfig struct {
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	Days    int    `yaml:"days" mapstructure:"days"`
}

// UniverseConfig configures the ticker universe loader.
type UniverseConfig struct {
	ConstituentsURL string `yaml:"constituents_url" mapstructure:"constituents_url"`
}

// ScanConfig configures batch orchestration.
type ScanConfig struct {
	Concurrency       int     `yaml:"concurrency" mapstructure:"concurrency"`
	SymbolTimeoutSecs int     `yaml:"symbol_timeout_secs" mapstructure:"symbol_timeout_secs"`
	DegradedThreshold float64 `yaml:"degraded_threshold" mapstructure:"degraded_threshold"`
	DegradedPauseSecs int     `yaml:"degraded_pause_secs" mapstructure:"degraded_pause_secs"`
	MaxFundamentals   int     `yaml:"max_fundamentals" mapstructure:"max_fundamentals"`
	OversoldThreshold float64 `yaml:"oversold_threshold" mapstructure:"oversold_threshold"`
	MinScore          int     `yaml:"min_score" mapstructure:"min_score"`
	TechnicalWeight   float64 `yaml:"technical_weight" mapstructure:"technical_weight"`
	FundamentalWeight float64 `yaml:"fundamental_weight" mapstructure:"fundamental_weight"`
}

// SymbolTimeout returns the per-symbol deadline as a duration.
func (c ScanConfig) SymbolTimeout() time.Duration {
	return time.Duration(c.SymbolTimeoutSecs) * time.Second
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("SCREENER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "data/screener.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("edgar.user_agent", "screener-cli/1.0 (research@sellsadvisors.com)")
	v.SetDefault("edgar.base_url", "https://data.sec.gov")
	v.SetDefault("edgar.ticker_map_url", "https://www.sec.gov/files/company_tickers.json")
	v.SetDefault("edgar.max_attempts", 4)
	v.SetDefault("edgar.backoff_initial_secs", 2)
	v.SetDefault("prices.base_url", "https://stooq.com/q/d/l")
	v.SetDefault("prices.days", 90)
	v.SetDefault("universe.constituents_url",
		"https://raw.githubusercontent.com/datasets/s-and-p-500-companies/main/data/constituents.csv")
	v.SetDefault("scan.concurrency", 10)
	v.SetDefault("scan.symbol_timeout_secs", 60)
	v.SetDefault("scan.degraded_threshold", 0.10)
	v.SetDefault("scan.degraded_pause_secs", 5)
	v.SetDefault("scan.max_fundamentals", 50)
	v.SetDefault("scan.oversold_threshold", -80.0)
	v.SetDefault("scan.min_score", 5)
	v.SetDefault("scan.technical_weight", 0.3)
	v.SetDefault("scan.fundamental_weight", 0.7)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
