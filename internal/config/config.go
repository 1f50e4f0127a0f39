// Package config loads fundnav configuration from config.yaml, FUNDNAV_*
// environment variables and built-in defaults.
package config

import (
	"fmt"
	"slices"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Upstream  UpstreamConfig  `yaml:"upstream" mapstructure:"upstream"`
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Portfolio PortfolioConfig `yaml:"portfolio" mapstructure:"portfolio"`
	Seed      SeedConfig      `yaml:"seed" mapstructure:"seed"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// UpstreamConfig configures the eastmoney endpoints and HTTP behavior.
type UpstreamConfig struct {
	NavURL            string  `yaml:"nav_url" mapstructure:"nav_url"`
	SearchURL         string  `yaml:"search_url" mapstructure:"search_url"`
	RankURL           string  `yaml:"rank_url" mapstructure:"rank_url"`
	Referer           string  `yaml:"referer" mapstructure:"referer"`
	RankReferer       string  `yaml:"rank_referer" mapstructure:"rank_referer"`
	UserAgent         string  `yaml:"user_agent" mapstructure:"user_agent"`
	TimeoutSecs       int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	SearchTimeoutSecs int     `yaml:"search_timeout_secs" mapstructure:"search_timeout_secs"`
	RankTimeoutSecs   int     `yaml:"rank_timeout_secs" mapstructure:"rank_timeout_secs"`
	PageSize          int     `yaml:"page_size" mapstructure:"page_size"`
	MaxConcurrency    int     `yaml:"max_concurrency" mapstructure:"max_concurrency"`
	MaxAttempts       int     `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs  int     `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs      int     `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port        int      `yaml:"port" mapstructure:"port"`
	StaticDir   string   `yaml:"static_dir" mapstructure:"static_dir"`
	CORSOrigins []string `yaml:"cors_origins" mapstructure:"cors_origins"`
}

// PortfolioConfig configures on-demand queries.
type PortfolioConfig struct {
	LookbackDays    int `yaml:"lookback_days" mapstructure:"lookback_days"`
	FundConcurrency int `yaml:"fund_concurrency" mapstructure:"fund_concurrency"`
}

// SeedConfig configures the seeding jobs.
type SeedConfig struct {
	FundBatchSize     int      `yaml:"fund_batch_size" mapstructure:"fund_batch_size"`
	UpsertBatchSize   int      `yaml:"upsert_batch_size" mapstructure:"upsert_batch_size"`
	FundInfoBatchSize int      `yaml:"fund_info_batch_size" mapstructure:"fund_info_batch_size"`
	Concurrency       int      `yaml:"concurrency" mapstructure:"concurrency"`
	LookbackDays      int      `yaml:"lookback_days" mapstructure:"lookback_days"`
	FundTypes         []string `yaml:"fund_types" mapstructure:"fund_types"`
	StrictPages       bool     `yaml:"strict_pages" mapstructure:"strict_pages"`
	TimeZone          string   `yaml:"timezone" mapstructure:"timezone"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("FUNDNAV")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("upstream.nav_url", "https://api.fund.eastmoney.com/f10/lsjz")
	v.SetDefault("upstream.search_url", "https://fundsuggest.eastmoney.com/FundSearch/api/FundSearchAPI.ashx")
	v.SetDefault("upstream.rank_url", "http://fund.eastmoney.com/data/rankhandler.aspx?op=ph&dt=kf&rs=&gs=0&sc=zzf&st=desc&pi=1&pn=30000&dx=1")
	v.SetDefault("upstream.referer", "https://fund.eastmoney.com/")
	v.SetDefault("upstream.rank_referer", "https://fund.eastmoney.com/fund.html")
	v.SetDefault("upstream.user_agent", defaultUserAgent)
	v.SetDefault("upstream.timeout_secs", 10)
	v.SetDefault("upstream.search_timeout_secs", 20)
	v.SetDefault("upstream.rank_timeout_secs", 30)
	v.SetDefault("upstream.page_size", 20)
	v.SetDefault("upstream.max_concurrency", 20)
	v.SetDefault("upstream.max_attempts", 1)
	v.SetDefault("upstream.initial_backoff_ms", 500)
	v.SetDefault("upstream.max_backoff_ms", 5000)
	v.SetDefault("upstream.requests_per_second", 0)
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.database_url", "")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.static_dir", "")
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("portfolio.lookback_days", 365)
	v.SetDefault("portfolio.fund_concurrency", 20)
	v.SetDefault("seed.fund_batch_size", 200)
	v.SetDefault("seed.upsert_batch_size", 1000)
	v.SetDefault("seed.fund_info_batch_size", 2000)
	v.SetDefault("seed.concurrency", 20)
	v.SetDefault("seed.lookback_days", 7)
	v.SetDefault("seed.fund_types", []string{"gp", "hh", "zq", "zs", "qdii", "lof", "fof"})
	v.SetDefault("seed.strict_pages", false)
	v.SetDefault("seed.timezone", "UTC")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

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

// Validate checks the settings a command mode depends on. Modes: query
// (fund, portfolio, name), serve, store (migrate, runs) and seed.
func (c *Config) Validate(mode string) error {
	var errs []string

	checkUpstream := func() {
		if c.Upstream.NavURL == "" {
			errs = append(errs, "upstream.nav_url is required")
		}
		if c.Upstream.PageSize <= 0 {
			errs = append(errs, "upstream.page_size must be > 0")
		}
		if c.Upstream.MaxConcurrency < 1 || c.Upstream.MaxConcurrency > 100 {
			errs = append(errs, "upstream.max_concurrency must be between 1 and 100")
		}
		if c.Upstream.MaxAttempts < 1 {
			errs = append(errs, "upstream.max_attempts must be >= 1")
		}
		if c.Upstream.RequestsPerSecond < 0 {
			errs = append(errs, "upstream.requests_per_second must be >= 0")
		}
	}
	checkStore := func() {
		if !slices.Contains([]string{"postgres", "sqlite"}, c.Store.Driver) {
			errs = append(errs, fmt.Sprintf("store.driver must be postgres or sqlite, got %q", c.Store.Driver))
		}
		if c.Store.Driver == "postgres" && c.Store.DatabaseURL == "" {
			errs = append(errs, "store.database_url is required")
		}
	}

	switch mode {
	case "query":
		checkUpstream()
	case "serve":
		checkUpstream()
		if c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
	case "store":
		checkStore()
	case "seed":
		checkUpstream()
		checkStore()
		if c.Seed.FundBatchSize <= 0 {
			errs = append(errs, "seed.fund_batch_size must be > 0")
		}
		if c.Seed.Concurrency < 1 || c.Seed.Concurrency > 100 {
			errs = append(errs, "seed.concurrency must be between 1 and 100")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
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
