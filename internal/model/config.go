package model

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config holds the configuration consumed by the verification core
type Config struct {
	Sources      SourcesConfig      `yaml:"sources" mapstructure:"sources"`
	Cache        CacheConfig        `yaml:"cache" mapstructure:"cache"`
	Verification VerificationConfig `yaml:"verification" mapstructure:"verification"`
	RateLimiting RateLimitConfig    `yaml:"rate_limiting" mapstructure:"rate_limiting"`
	HTTP         HTTPConfig         `yaml:"http" mapstructure:"http"`
	Linkrot      LinkrotConfig      `yaml:"linkrot" mapstructure:"linkrot"`
}

// SourcesConfig configures the primary API and fallback sources
type SourcesConfig struct {
	CourtListenerToken   string   `yaml:"courtlistener_token,omitempty" mapstructure:"courtlistener_token"`
	CourtListenerBaseURL string   `yaml:"courtlistener_base_url" mapstructure:"courtlistener_base_url" validate:"required,url"`
	Fallbacks            []string `yaml:"fallbacks" mapstructure:"fallbacks"` // Enabled fallback sources; empty enables all
	DisablePrimary       bool     `yaml:"disable_primary" mapstructure:"disable_primary"`
}

// CacheConfig configures the cache manager and its backing store
type CacheConfig struct {
	Enabled      bool          `yaml:"enabled" mapstructure:"enabled"`
	Backend      string        `yaml:"backend" mapstructure:"backend" validate:"oneof=memory badger redis layered"`
	TTLHours     int           `yaml:"ttl_hours" mapstructure:"ttl_hours" validate:"gte=1,lte=8760"`
	URLStatusTTL time.Duration `yaml:"url_status_ttl" mapstructure:"url_status_ttl" validate:"gte=0"`
	Dir          string        `yaml:"dir" mapstructure:"dir"`
	RedisAddr    string        `yaml:"redis_addr,omitempty" mapstructure:"redis_addr"`
}

// TTL returns the result cache TTL as a duration
func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLHours) * time.Hour
}

// VerificationConfig configures the orchestrator
type VerificationConfig struct {
	GlobalTimeout       time.Duration `yaml:"global_timeout" mapstructure:"global_timeout" validate:"gt=0"`
	SourceTimeout       time.Duration `yaml:"source_timeout" mapstructure:"source_timeout" validate:"gt=0"`
	CascadeWindow       int           `yaml:"cascade_window" mapstructure:"cascade_window" validate:"gte=1,lte=6"`
	CitationConcurrency int           `yaml:"citation_concurrency" mapstructure:"citation_concurrency" validate:"gte=1,lte=32"`
	FailureThreshold    int           `yaml:"failure_threshold" mapstructure:"failure_threshold" validate:"gte=1"`
	SimilarityThreshold float64       `yaml:"similarity_threshold" mapstructure:"similarity_threshold" validate:"gt=0,lte=1"`
}

// RateLimitConfig configures per-source request budgets
type RateLimitConfig struct {
	DefaultRPM int            `yaml:"default_rpm" mapstructure:"default_rpm" validate:"gte=1"`
	SourceRPM  map[string]int `yaml:"source_rpm,omitempty" mapstructure:"source_rpm"`
	MaxWait    time.Duration  `yaml:"max_wait" mapstructure:"max_wait" validate:"gte=0"` // Bounded wait before skipping a source
}

// HTTPConfig holds shared HTTP settings for adapters
type HTTPConfig struct {
	UserAgent     string `yaml:"user_agent" mapstructure:"user_agent" validate:"required"`
	MaxBodyBytes  int64  `yaml:"max_body_bytes" mapstructure:"max_body_bytes" validate:"gt=0"`
	HTTPProxy     string `yaml:"http_proxy,omitempty" mapstructure:"http_proxy"`
	HTTPSProxy    string `yaml:"https_proxy,omitempty" mapstructure:"https_proxy"`
	RespectRobots bool   `yaml:"respect_robots" mapstructure:"respect_robots"`
}

// LinkrotConfig configures URL liveness checks
type LinkrotConfig struct {
	Enabled    bool          `yaml:"enabled" mapstructure:"enabled"`
	Timeout    time.Duration `yaml:"timeout" mapstructure:"timeout" validate:"gt=0"`
	ArchiveAPI string        `yaml:"archive_api" mapstructure:"archive_api" validate:"omitempty,url"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Sources: SourcesConfig{
			CourtListenerBaseURL: "https://www.courtlistener.com",
		},
		Cache: CacheConfig{
			Enabled:      true,
			Backend:      "layered",
			TTLHours:     24 * 7,
			URLStatusTTL: time.Hour,
			Dir:          "~/.citeverify/cache",
		},
		Verification: VerificationConfig{
			GlobalTimeout:       20 * time.Second,
			SourceTimeout:       10 * time.Second,
			CascadeWindow:       1,
			CitationConcurrency: 4,
			FailureThreshold:    2,
			SimilarityThreshold: 0.5,
		},
		RateLimiting: RateLimitConfig{
			DefaultRPM: 30,
			SourceRPM: map[string]int{
				"courtlistener": 60,
				"google":        10,
				"bing":          10,
				"duckduckgo":    20,
			},
			MaxWait: 2 * time.Second,
		},
		HTTP: HTTPConfig{
			UserAgent:     "CiteVerify/0.1 (+https://github.com/ppiankov/citeverify)",
			MaxBodyBytes:  2_000_000,
			RespectRobots: true,
		},
		Linkrot: LinkrotConfig{
			Enabled:    true,
			Timeout:    5 * time.Second,
			ArchiveAPI: "https://archive.org/wayback/available",
		},
	}
}

// Validate checks field constraints
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.Cache.Backend == "redis" && c.Cache.RedisAddr == "" {
		return fmt.Errorf("invalid config: cache.redis_addr is required for redis backend")
	}
	return nil
}
