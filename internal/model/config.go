package model

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

var configValidate = validator.New()

// Config holds all runtime settings. Loaded by viper (mapstructure tags),
// rendered by `config show` (yaml tags), checked by validator (validate tags).
type Config struct {
	HTTP        HTTPConfig        `yaml:"http" mapstructure:"http"`
	Cache       CacheConfig       `yaml:"cache" mapstructure:"cache"`
	Concurrency ConcurrencyConfig `yaml:"concurrency" mapstructure:"concurrency"`
	Judge       JudgeConfig       `yaml:"judge" mapstructure:"judge"`
	Rewrite     RewriteConfig     `yaml:"rewrite" mapstructure:"rewrite"`
	Authority   AuthorityConfig   `yaml:"authority" mapstructure:"authority"`
	Output      OutputConfig      `yaml:"output" mapstructure:"output"`
}

// HTTPConfig configures the HTTP fetch capability
type HTTPConfig struct {
	Timeout       time.Duration `yaml:"timeout" mapstructure:"timeout" validate:"gt=0"`
	UserAgent     string        `yaml:"user_agent" mapstructure:"user_agent" validate:"required"`
	MaxBodyBytes  int64         `yaml:"max_body_bytes" mapstructure:"max_body_bytes" validate:"gt=0"`
	MaxRetries    int           `yaml:"max_retries" mapstructure:"max_retries" validate:"gte=1,lte=10"`
	RespectRobots bool          `yaml:"respect_robots" mapstructure:"respect_robots"`
	RatePerHost   float64       `yaml:"rate_per_host" mapstructure:"rate_per_host" validate:"gt=0"`
	BurstPerHost  int           `yaml:"burst_per_host" mapstructure:"burst_per_host" validate:"gte=1"`
	InsecureTLS   bool          `yaml:"insecure_tls" mapstructure:"insecure_tls"`
	HTTPProxy     string        `yaml:"http_proxy,omitempty" mapstructure:"http_proxy"`
	HTTPSProxy    string        `yaml:"https_proxy,omitempty" mapstructure:"https_proxy"`
	NoProxy       string        `yaml:"no_proxy,omitempty" mapstructure:"no_proxy"`

	// Local file sources are refused unless enabled; FileRoot, when set,
	// confines them to one directory tree
	AllowFileSources bool   `yaml:"allow_file_sources" mapstructure:"allow_file_sources"`
	FileRoot         string `yaml:"file_root,omitempty" mapstructure:"file_root"`
}

// CacheConfig configures the persistent source content store
type CacheConfig struct {
	Enabled   bool          `yaml:"enabled" mapstructure:"enabled"`
	Dir       string        `yaml:"dir" mapstructure:"dir"`
	MemoryTTL time.Duration `yaml:"memory_ttl" mapstructure:"memory_ttl" validate:"gte=0"`
	DiskTTL   time.Duration `yaml:"disk_ttl" mapstructure:"disk_ttl" validate:"gte=0"`
}

// ConcurrencyConfig configures the scheduler
type ConcurrencyConfig struct {
	ClaimWorkers int    `yaml:"claim_workers" mapstructure:"claim_workers" validate:"gte=1,lte=256"`
	JudgeWorkers int    `yaml:"judge_workers" mapstructure:"judge_workers" validate:"gte=1,lte=64"`
	BatchWorkers int    `yaml:"batch_workers" mapstructure:"batch_workers" validate:"gte=1,lte=64"`
	CancelMode   string `yaml:"cancel_mode" mapstructure:"cancel_mode" validate:"oneof=abandon drain"`
}

// JudgeConfig configures the external logic checker
type JudgeConfig struct {
	Provider  string `yaml:"provider" mapstructure:"provider" validate:"omitempty,oneof=openai anthropic claude ollama"`
	Model     string `yaml:"model,omitempty" mapstructure:"model"`
	APIKey    string `yaml:"-" mapstructure:"api_key"`
	BaseURL   string `yaml:"base_url,omitempty" mapstructure:"base_url"`
	Timeout   int    `yaml:"timeout" mapstructure:"timeout" validate:"gte=0"` // seconds
	MaxTokens int    `yaml:"max_tokens" mapstructure:"max_tokens" validate:"gte=0"`
}

// RewriteConfig configures the document rewriter
type RewriteConfig struct {
	Mode          string `yaml:"mode" mapstructure:"mode" validate:"oneof=remove flag"`
	StripMarkers  bool   `yaml:"strip_markers" mapstructure:"strip_markers"`
	EmbedRegistry bool   `yaml:"embed_registry" mapstructure:"embed_registry"`
}

// AuthorityConfig drives authority tier classification of declared sources
type AuthorityConfig struct {
	PrimaryDomains   []string          `yaml:"primary_domains" mapstructure:"primary_domains"`
	SecondaryDomains []string          `yaml:"secondary_domains" mapstructure:"secondary_domains"`
	DomainMap        map[string]string `yaml:"domain_map,omitempty" mapstructure:"domain_map"`
	PathPatterns     []PathPattern     `yaml:"path_patterns,omitempty" mapstructure:"path_patterns"`
}

// PathPattern maps a URL path regex to a tier name
type PathPattern struct {
	Pattern string `yaml:"pattern" mapstructure:"pattern"`
	Tier    string `yaml:"tier" mapstructure:"tier"`
}

// OutputConfig configures renderers
type OutputConfig struct {
	Verbose       bool `yaml:"verbose" mapstructure:"verbose"`
	IncludeFooter bool `yaml:"include_footer" mapstructure:"include_footer"`
}

// DefaultConfig returns the built-in defaults
func DefaultConfig() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Timeout:       30 * time.Second,
			UserAgent:     "Veracity/0.1 (+https://github.com/ppiankov/veracity)",
			MaxBodyBytes:  5_000_000,
			MaxRetries:    3,
			RespectRobots: true,
			RatePerHost:   2,
			BurstPerHost:  4,
		},
		Cache: CacheConfig{
			Enabled:   true,
			Dir:       "",
			MemoryTTL: 30 * time.Minute,
			DiskTTL:   7 * 24 * time.Hour,
		},
		Concurrency: ConcurrencyConfig{
			ClaimWorkers: 8,
			JudgeWorkers: 4,
			BatchWorkers: 2,
			CancelMode:   "abandon",
		},
		Judge: JudgeConfig{
			Timeout:   30,
			MaxTokens: 400,
		},
		Rewrite: RewriteConfig{
			Mode: "remove",
		},
		Authority: AuthorityConfig{
			PrimaryDomains: []string{
				"gov", "gov.uk", "europa.eu", "legislation.gov.uk",
				"arxiv.org", "doi.org", "nih.gov", "who.int",
			},
			SecondaryDomains: []string{
				"wikipedia.org", "britannica.com", "reuters.com",
				"apnews.com", "bbc.co.uk", "nature.com",
			},
		},
		Output: OutputConfig{
			IncludeFooter: true,
		},
	}
}

// Validate checks field constraints declared in the struct tags
func (c *Config) Validate() error {
	if err := configValidate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
