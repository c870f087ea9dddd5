// Package config defines the top-level configuration for the polywatch
// service and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by POLYWATCH_* environment
// variables.
type Config struct {
	Market     MarketConfig     `toml:"market"`
	Polymarket PolymarketConfig `toml:"polymarket"`
	Ingest     IngestConfig     `toml:"ingest"`
	Database   DatabaseConfig   `toml:"database"`
	Redis      RedisConfig      `toml:"redis"`
	S3         S3Config         `toml:"s3"`
	Server     ServerConfig     `toml:"server"`
	Notify     NotifyConfig     `toml:"notify"`
	LogLevel   string           `toml:"log_level"`
}

// MarketConfig names the single tracked instrument.
type MarketConfig struct {
	// ConditionID is the market's condition ID on Polymarket.
	ConditionID string `toml:"condition_id"`
	// TokenIDs are the outcome token IDs subscribed on the websocket feed.
	TokenIDs []string `toml:"token_ids"`
}

// PolymarketConfig holds Polymarket API endpoints.
type PolymarketConfig struct {
	DataHost  string `toml:"data_host"`
	GammaHost string `toml:"gamma_host"`
	WsHost    string `toml:"ws_host"`
}

// IngestConfig holds ingestion and analytics tuning parameters.
type IngestConfig struct {
	// PollInterval is the delay between REST trade-history polls.
	PollInterval duration `toml:"poll_interval"`
	// PageLimit is the number of recent trades fetched per poll.
	PageLimit int `toml:"page_limit"`
	// WhaleThreshold is the USDC notional at or above which a trade counts
	// as a whale. Applied at read time, so changing it reclassifies all
	// stored history.
	WhaleThreshold float64 `toml:"whale_threshold"`
	// ProfileRefreshInterval is the delay between profile refresher runs.
	ProfileRefreshInterval duration `toml:"profile_refresh_interval"`
	// ProfileRetryTTL is the minimum delay before retrying a profile fetch
	// for the same wallet.
	ProfileRetryTTL duration `toml:"profile_retry_ttl"`
}

// DatabaseConfig holds PostgreSQL connection parameters.
type DatabaseConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters for ledger
// archival. Archival is skipped entirely when Enabled is false.
type S3Config struct {
	Enabled         bool     `toml:"enabled"`
	Endpoint        string   `toml:"endpoint"`
	Region          string   `toml:"region"`
	Bucket          string   `toml:"bucket"`
	AccessKey       string   `toml:"access_key"`
	SecretKey       string   `toml:"secret_key"`
	UseSSL          bool     `toml:"use_ssl"`
	ForcePathStyle  bool     `toml:"force_path_style"`
	ArchiveInterval duration `toml:"archive_interval"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
}

// NotifyConfig holds notification channel credentials for whale alerts.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Polymarket: PolymarketConfig{
			DataHost:  "https://data-api.polymarket.com",
			GammaHost: "https://gamma-api.polymarket.com",
			WsHost:    "wss://ws-subscriptions-clob.polymarket.com/ws/market",
		},
		Ingest: IngestConfig{
			PollInterval:           duration{60 * time.Second},
			PageLimit:              500,
			WhaleThreshold:         1000,
			ProfileRefreshInterval: duration{5 * time.Minute},
			ProfileRetryTTL:        duration{24 * time.Hour},
		},
		Database: DatabaseConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "polywatch",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
		},
		S3: S3Config{
			Enabled:         false,
			Endpoint:        "http://localhost:9000",
			Region:          "us-east-1",
			Bucket:          "polywatch-archive",
			UseSSL:          false,
			ForcePathStyle:  true,
			ArchiveInterval: duration{24 * time.Hour},
		},
		Server: ServerConfig{
			Port:        8000,
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
		},
		Notify: NotifyConfig{
			Events: []string{"whale_trade", "error"},
		},
		LogLevel: "info",
	}
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns
// a combined error describing every problem found.
func (c *Config) Validate() error {
	var problems []string

	if strings.TrimSpace(c.Market.ConditionID) == "" {
		problems = append(problems, "market.condition_id is required")
	}
	if c.Ingest.PollInterval.Duration < 5*time.Second {
		problems = append(problems, "ingest.poll_interval must be at least 5s")
	}
	if c.Ingest.PageLimit <= 0 {
		problems = append(problems, "ingest.page_limit must be positive")
	}
	if c.Ingest.WhaleThreshold <= 0 {
		problems = append(problems, "ingest.whale_threshold must be positive")
	}
	if !validLogLevels[c.LogLevel] {
		problems = append(problems, fmt.Sprintf("log_level %q is not one of debug/info/warn/error", c.LogLevel))
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		problems = append(problems, fmt.Sprintf("server.port %d is out of range", c.Server.Port))
	}
	if c.Database.DSN == "" && (c.Database.Host == "" || c.Database.Database == "" || c.Database.User == "") {
		problems = append(problems, "database requires either dsn or host/database/user")
	}
	if c.S3.Enabled {
		if c.S3.Bucket == "" {
			problems = append(problems, "s3.bucket is required when s3.enabled")
		}
		if c.S3.ArchiveInterval.Duration < time.Minute {
			problems = append(problems, "s3.archive_interval must be at least 1m")
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("config: %s", strings.Join(problems, "; "))
	}
	return nil
}
