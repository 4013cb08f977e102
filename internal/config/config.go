package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/kelseyhightower/envconfig"
)

// Supported values for enumerated settings.
const (
	ProviderAnthropic = "anthropic"

	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	FetcherAPI     = "api"
	FetcherBrowser = "browser"

	ExecutorSequential = "sequential"
	ExecutorPool       = "pool"
)

// Config holds all application configuration
type Config struct {
	Version    int              `toml:"version"`
	Database   DatabaseConfig   `toml:"database"`
	Reddit     RedditConfig     `toml:"reddit"`
	Enrichment EnrichmentConfig `toml:"enrichment"`
	Generation GenerationConfig `toml:"generation"`
	Scan       ScanConfig       `toml:"scan"`
	Email      EmailConfig      `toml:"email"`
	Debug      DebugConfig      `toml:"debug"`
	Log        LogConfig        `toml:"log"`
}

type DatabaseConfig struct {
	Driver string `toml:"driver"`
	DSN    string `toml:"dsn"`
}

type RedditConfig struct {
	Fetcher           string `toml:"fetcher"`
	BaseURL           string `toml:"base_url"`
	UserAgent         string `toml:"user_agent"`
	PostsPerFetch     int    `toml:"posts_per_fetch"`
	RequestsPerMinute int    `toml:"requests_per_minute"`
	TimeoutSeconds    int    `toml:"timeout_seconds"`
	Headless          bool   `toml:"headless"`
}

type EnrichmentConfig struct {
	GoogleAPIKey     string `toml:"google_api_key"`
	GoogleCSEID      string `toml:"google_cse_id"`
	ResultsPerSource int    `toml:"results_per_source"`
	TimeoutSeconds   int    `toml:"timeout_seconds"`
}

type GenerationConfig struct {
	Provider       string `toml:"provider"`
	APIKey         string `toml:"api_key"`
	Model          string `toml:"model"`
	Candidates     int    `toml:"candidates"`
	MaxTokens      int    `toml:"max_tokens"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

type ScanConfig struct {
	TickSeconds         int    `toml:"tick_seconds"`
	TickDeadlineSeconds int    `toml:"tick_deadline_seconds"`
	Executor            string `toml:"executor"`
	Workers             int    `toml:"workers"`
	Timezone            string `toml:"timezone"`
}

type EmailConfig struct {
	SMTPHost string `toml:"smtp_host"`
	SMTPPort int    `toml:"smtp_port"`
	SMTPUser string `toml:"smtp_user"`
	SMTPPass string `toml:"smtp_pass"`
	FromAddr string `toml:"from_address"`
	ToAddr   string `toml:"to_address"`
}

// Enabled reports whether reports should be emailed.
func (e EmailConfig) Enabled() bool {
	return e.SMTPHost != "" && e.ToAddr != ""
}

type DebugConfig struct {
	CacheSteps bool `toml:"cache_steps"`
	CacheLLM   bool `toml:"cache_llm"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Pretty bool   `toml:"pretty"`
}

// Env holds overrides read from REPLYSCOUT_* environment variables.
// Secrets are expected here rather than in the config file.
type Env struct {
	DatabaseDriver  string `envconfig:"DATABASE_DRIVER"`
	DatabaseDSN     string `envconfig:"DATABASE_DSN"`
	AnthropicAPIKey string `envconfig:"ANTHROPIC_API_KEY"`
	GoogleAPIKey    string `envconfig:"GOOGLE_API_KEY"`
	GoogleCSEID     string `envconfig:"GOOGLE_CSE_ID"`
	SMTPPass        string `envconfig:"SMTP_PASS"`
	LogLevel        string `envconfig:"LOG_LEVEL"`
}

// Default returns a Config with sensible defaults
func Default() *Config {
	return &Config{
		Version: 1,
		Database: DatabaseConfig{
			Driver: DriverSQLite,
		},
		Reddit: RedditConfig{
			Fetcher:           FetcherAPI,
			BaseURL:           "https://www.reddit.com",
			UserAgent:         "replyscout/1.0",
			PostsPerFetch:     50,
			RequestsPerMinute: 30,
			TimeoutSeconds:    20,
			Headless:          true,
		},
		Enrichment: EnrichmentConfig{
			ResultsPerSource: 3,
			TimeoutSeconds:   10,
		},
		Generation: GenerationConfig{
			Provider:       ProviderAnthropic,
			Model:          "claude-sonnet-4-20250514",
			Candidates:     3,
			MaxTokens:      2048,
			TimeoutSeconds: 90,
		},
		Scan: ScanConfig{
			TickSeconds:         60,
			TickDeadlineSeconds: 900,
			Executor:            ExecutorPool,
			Workers:             4,
			Timezone:            "UTC",
		},
		Email: EmailConfig{
			SMTPPort: 587,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// ConfigDir returns the platform-appropriate config directory
func ConfigDir() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "replyscout"), nil
}

// ConfigPath returns the full path to the config file
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// CacheDir returns the platform-appropriate cache directory.
// On macOS this is ~/Library/Caches/replyscout/
func CacheDir() (string, error) {
	cacheDir, err := os.UserCacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(cacheDir, "replyscout"), nil
}

// Load reads config from disk and applies environment overrides.
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadFile(path)
}

// LoadFile reads config from path, starting from defaults so that
// missing keys keep their default values.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overlays non-empty REPLYSCOUT_* variables.
func (c *Config) ApplyEnv() error {
	var env Env
	if err := envconfig.Process("REPLYSCOUT", &env); err != nil {
		return fmt.Errorf("failed to process environment variables: %w", err)
	}

	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&c.Database.Driver, env.DatabaseDriver)
	set(&c.Database.DSN, env.DatabaseDSN)
	set(&c.Generation.APIKey, env.AnthropicAPIKey)
	set(&c.Enrichment.GoogleAPIKey, env.GoogleAPIKey)
	set(&c.Enrichment.GoogleCSEID, env.GoogleCSEID)
	set(&c.Email.SMTPPass, env.SMTPPass)
	set(&c.Log.Level, env.LogLevel)
	return nil
}

// Validate checks enumerated settings and fills derived defaults.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case DriverSQLite:
		if c.Database.DSN == "" {
			dir, err := ConfigDir()
			if err != nil {
				return err
			}
			c.Database.DSN = filepath.Join(dir, "replyscout.db")
		}
	case DriverPostgres:
		if c.Database.DSN == "" {
			return fmt.Errorf("database.dsn is required for postgres")
		}
	default:
		return fmt.Errorf("unsupported database driver: %s", c.Database.Driver)
	}

	switch c.Reddit.Fetcher {
	case FetcherAPI, FetcherBrowser:
	default:
		return fmt.Errorf("unsupported reddit fetcher: %s", c.Reddit.Fetcher)
	}

	switch c.Scan.Executor {
	case ExecutorSequential, ExecutorPool:
	default:
		return fmt.Errorf("unsupported scan executor: %s", c.Scan.Executor)
	}

	if _, err := time.LoadLocation(c.Scan.Timezone); err != nil {
		return fmt.Errorf("invalid timezone %s: %w", c.Scan.Timezone, err)
	}

	if c.Generation.Candidates < 1 {
		c.Generation.Candidates = 1
	}
	if c.Scan.Workers < 1 {
		c.Scan.Workers = 1
	}
	return nil
}

// Location returns the scan timezone. Validate must have succeeded.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Scan.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Seconds converts a seconds setting into a duration.
func Seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

// Save writes config to disk
func (c *Config) Save() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}

	path, err := ConfigPath()
	if err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	defer f.Close()

	encoder := toml.NewEncoder(f)
	return encoder.Encode(c)
}
