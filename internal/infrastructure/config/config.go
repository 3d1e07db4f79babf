package config

import (
	"fmt"
	"os"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/kelseyhightower/envconfig"

	"github.com/GriffinCanCode/jobscan/internal/backend"
	"github.com/GriffinCanCode/jobscan/internal/logging"
	"github.com/GriffinCanCode/jobscan/internal/scanner"
	"github.com/GriffinCanCode/jobscan/internal/session"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Logging   LogConfig
	RateLimit RateLimitConfig
	Storage   StorageConfig
	Scanner   ScannerConfig
	Session   SessionConfig
	Backend   BackendConfig
	Browser   BrowserConfig
	Domains   DomainsConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port           string   `envconfig:"JOBSCAN_PORT" default:"8000"`
	Host           string   `envconfig:"JOBSCAN_HOST" default:"127.0.0.1"`
	AllowedOrigins []string `envconfig:"JOBSCAN_ALLOWED_ORIGINS" default:"chrome-extension://*,moz-extension://*"`
	MaxBodyBytes   int64    `envconfig:"JOBSCAN_MAX_BODY_BYTES" default:"5242880"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// RateLimitConfig holds API rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"20"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"40"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
}

// StorageConfig selects the record store. An empty path keeps state in
// memory.
type StorageConfig struct {
	Path string `envconfig:"JOBSCAN_DB" default:""`
}

// ScannerConfig holds scan retry settings and the heuristics file.
type ScannerConfig struct {
	Attempts       int           `envconfig:"JOBSCAN_SCAN_ATTEMPTS" default:"3"`
	Delay          time.Duration `envconfig:"JOBSCAN_SCAN_DELAY" default:"1s"`
	FrameTimeout   time.Duration `envconfig:"JOBSCAN_FRAME_TIMEOUT" default:"5s"`
	HeuristicsFile string        `envconfig:"JOBSCAN_HEURISTICS" default:""`
}

// SessionConfig holds correlator limits.
type SessionConfig struct {
	TTL            time.Duration `envconfig:"JOBSCAN_SESSION_TTL" default:"2h"`
	Capacity       int           `envconfig:"JOBSCAN_SESSION_CAPACITY" default:"50"`
	DispatchWindow time.Duration `envconfig:"JOBSCAN_DISPATCH_WINDOW" default:"30s"`
}

// BackendConfig holds the matching backend connection.
type BackendConfig struct {
	URL          string        `envconfig:"JOBSCAN_BACKEND_URL" default:"http://localhost:8080"`
	Token        string        `envconfig:"JOBSCAN_BACKEND_TOKEN" default:""`
	Timeout      time.Duration `envconfig:"JOBSCAN_BACKEND_TIMEOUT" default:"30s"`
	RetryMax     int           `envconfig:"JOBSCAN_BACKEND_RETRIES" default:"3"`
	RateLimit    float64       `envconfig:"JOBSCAN_BACKEND_RPS" default:"5"`
	PollInterval time.Duration `envconfig:"JOBSCAN_BACKEND_POLL" default:"2s"`
	Stream       bool          `envconfig:"JOBSCAN_BACKEND_STREAM" default:"true"`
}

// BrowserConfig holds live page settings.
type BrowserConfig struct {
	Bin          string        `envconfig:"JOBSCAN_BROWSER_BIN" default:""`
	Headless     bool          `envconfig:"JOBSCAN_BROWSER_HEADLESS" default:"true"`
	LoadTimeout  time.Duration `envconfig:"JOBSCAN_BROWSER_TIMEOUT" default:"30s"`
	PollInterval time.Duration `envconfig:"JOBSCAN_NAV_POLL" default:"1s"`
	Debounce     time.Duration `envconfig:"JOBSCAN_NAV_DEBOUNCE" default:"500ms"`
}

// DomainsConfig seeds the host policy.
type DomainsConfig struct {
	Allow []string `envconfig:"JOBSCAN_ALLOW_DOMAINS" default:""`
	Deny  []string `envconfig:"JOBSCAN_DENY_DOMAINS" default:""`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks settings that depend on each other.
func (c *Config) Validate() error {
	if c.Browser.Debounce <= 0 {
		return fmt.Errorf("JOBSCAN_NAV_DEBOUNCE must be positive")
	}
	if c.Browser.PollInterval <= c.Browser.Debounce {
		return fmt.Errorf("JOBSCAN_NAV_POLL (%s) must exceed JOBSCAN_NAV_DEBOUNCE (%s)",
			c.Browser.PollInterval, c.Browser.Debounce)
	}
	return nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:           "8000",
			Host:           "127.0.0.1",
			AllowedOrigins: []string{"chrome-extension://*", "moz-extension://*"},
			MaxBodyBytes:   5 << 20,
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 20,
			Burst:             40,
			Enabled:           true,
		},
		Scanner: ScannerConfig{
			Attempts:     3,
			Delay:        time.Second,
			FrameTimeout: 5 * time.Second,
		},
		Session: SessionConfig{
			TTL:            session.DefaultTTL,
			Capacity:       session.DefaultCapacity,
			DispatchWindow: session.DefaultDispatchWindow,
		},
		Backend: BackendConfig{
			URL:          "http://localhost:8080",
			Timeout:      30 * time.Second,
			RetryMax:     3,
			RateLimit:    5,
			PollInterval: 2 * time.Second,
			Stream:       true,
		},
		Browser: BrowserConfig{
			Headless:     true,
			LoadTimeout:  30 * time.Second,
			PollInterval: time.Second,
			Debounce:     500 * time.Millisecond,
		},
	}
}

// LoggingConfig maps to the logger configuration.
func (c *Config) LoggingConfig() logging.Config {
	if c.Logging.Development {
		cfg := logging.DevelopmentConfig()
		cfg.Level = c.Logging.Level
		return cfg
	}
	cfg := logging.DefaultConfig()
	cfg.Level = c.Logging.Level
	return cfg
}

// ScannerOptions maps to scanner options, reading the heuristics file when
// one is configured.
func (c *Config) ScannerOptions() (scanner.Options, error) {
	opts := scanner.Options{
		Attempts:     c.Scanner.Attempts,
		Delay:        c.Scanner.Delay,
		FrameTimeout: c.Scanner.FrameTimeout,
		Heuristics:   scanner.DefaultHeuristics(),
	}
	if c.Scanner.HeuristicsFile == "" {
		return opts, nil
	}

	h, err := LoadHeuristics(c.Scanner.HeuristicsFile)
	if err != nil {
		return opts, err
	}
	opts.Heuristics = h
	return opts, nil
}

// SessionManagerConfig maps to the correlator configuration.
func (c *Config) SessionManagerConfig() session.Config {
	return session.Config{
		TTL:            c.Session.TTL,
		Capacity:       c.Session.Capacity,
		DispatchWindow: c.Session.DispatchWindow,
	}
}

// BackendClientConfig maps to the backend client configuration.
func (c *Config) BackendClientConfig() backend.Config {
	cfg := backend.DefaultConfig()
	cfg.BaseURL = c.Backend.URL
	cfg.Token = c.Backend.Token
	cfg.Timeout = c.Backend.Timeout
	cfg.RetryMax = c.Backend.RetryMax
	cfg.RateLimit = c.Backend.RateLimit
	cfg.PollInterval = c.Backend.PollInterval
	cfg.Stream = c.Backend.Stream
	return cfg
}

// LoadHeuristics reads listing weights from a YAML file. Keys missing from
// the file keep their defaults; unknown keys are rejected.
func LoadHeuristics(path string) (scanner.Heuristics, error) {
	h := scanner.DefaultHeuristics()

	data, err := os.ReadFile(path)
	if err != nil {
		return h, fmt.Errorf("read heuristics: %w", err)
	}
	if err := yaml.UnmarshalWithOptions(data, &h, yaml.Strict()); err != nil {
		return scanner.DefaultHeuristics(), fmt.Errorf("parse heuristics %s: %w", path, err)
	}
	if err := validateHeuristics(h); err != nil {
		return scanner.DefaultHeuristics(), fmt.Errorf("heuristics %s: %w", path, err)
	}
	return h, nil
}

func validateHeuristics(h scanner.Heuristics) error {
	weights := map[string]float64{
		"apply_weight":         h.ApplyWeight,
		"link_weight":          h.LinkWeight,
		"card_weight":          h.CardWeight,
		"pagination_weight":    h.PaginationWeight,
		"search_weight":        h.SearchWeight,
		"keyword_repeat_bonus": h.KeywordRepeatBonus,
		"detail_penalty_many":  h.DetailPenaltyMany,
		"detail_penalty_some":  h.DetailPenaltySome,
		"detail_penalty_one":   h.DetailPenaltyOne,
	}
	for name, w := range weights {
		if w < 0 {
			return fmt.Errorf("%s must not be negative", name)
		}
	}
	if h.ListingThreshold <= 0 || h.ListingThreshold > 1 {
		return fmt.Errorf("listing_threshold must be in (0, 1]")
	}
	if h.MinRepeats < 1 {
		return fmt.Errorf("min_repeats must be at least 1")
	}
	return nil
}
