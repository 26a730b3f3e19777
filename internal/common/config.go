package common

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration
type Config struct {
	Environment string          `toml:"environment"` // "development" or "production"
	Server      ServerConfig    `toml:"server"`
	Storage     StorageConfig   `toml:"storage"`
	Logging     LoggingConfig   `toml:"logging"`
	Analysis    AnalysisConfig  `toml:"analysis"`
	Scraper     ScraperConfig   `toml:"scraper"`
	Serp        SerpConfig      `toml:"serp"`
	PlacesAPI   PlacesAPIConfig `toml:"places_api"`
	Gemini      GeminiConfig    `toml:"gemini"`
	Claude      ClaudeConfig    `toml:"claude"`
	LLM         LLMConfig       `toml:"llm"`
}

type ServerConfig struct {
	Port int    `toml:"port"`
	Host string `toml:"host"`
}

type StorageConfig struct {
	Badger BadgerConfig `toml:"badger"`
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path"`             // Database directory path
	ResetOnStartup bool   `toml:"reset_on_startup"` // Delete database on startup for clean test runs
}

type LoggingConfig struct {
	Level  string   `toml:"level"`  // "debug", "info", "warn", "error"
	Output []string `toml:"output"` // "stdout", "file"
}

// AnalysisConfig controls the five-phase pipeline
type AnalysisConfig struct {
	// MaxConcurrentJobs caps jobs analyzed in parallel; submits beyond the
	// cap stay pending until a slot frees
	MaxConcurrentJobs int `toml:"max_concurrent_jobs"`
	// PhaseWeights are relative weights for scraping, ai_analysis,
	// search_volume, ranking_check, data_save. Normalized at load.
	PhaseWeights []int `toml:"phase_weights"`
	// BatchSize is items per batch in batched phases
	BatchSize int `toml:"batch_size"`
	// BatchConcurrency is max parallel items within one batch
	BatchConcurrency int `toml:"batch_concurrency"`
	// BatchDelay is the pause between batches
	BatchDelay time.Duration `toml:"batch_delay"`
	// DefaultMaxKeywords applies when a submission omits max_keywords
	DefaultMaxKeywords int `toml:"default_max_keywords"`
	// DefaultMaxPages applies when a submission omits max_pages
	DefaultMaxPages int `toml:"default_max_pages"`
	// OpportunityMinVolume is the search volume floor for opportunity keywords
	OpportunityMinVolume int `toml:"opportunity_min_volume"`
	// StaleJobTimeout fails running jobs whose heartbeat goes quiet this long
	StaleJobTimeout time.Duration `toml:"stale_job_timeout"`
	// StaleCheckSchedule is the cron schedule for the stale-job reaper
	StaleCheckSchedule string `toml:"stale_check_schedule"`
}

// ScraperConfig contains HTML scraping configuration
type ScraperConfig struct {
	UserAgent          string        `toml:"user_agent"`
	RequestTimeout     time.Duration `toml:"request_timeout"`
	MaxBodySize        int           `toml:"max_body_size"`
	EnableJavaScript   bool          `toml:"enable_javascript"`    // JavaScript rendering with chromedp
	JavaScriptWaitTime time.Duration `toml:"javascript_wait_time"` // Time to wait for JavaScript to render
}

// SerpConfig contains search result page lookup configuration
type SerpConfig struct {
	Endpoint       string        `toml:"endpoint"` // SERP API base URL
	APIKey         string        `toml:"api_key"`
	RateLimit      time.Duration `toml:"rate_limit"` // Minimum time between lookups
	RequestTimeout time.Duration `toml:"request_timeout"`
	ResultDepth    int           `toml:"result_depth"` // Positions fetched per lookup
}

// PlacesAPIConfig contains Google Places API configuration
type PlacesAPIConfig struct {
	APIKey         string        `toml:"api_key"`
	RateLimit      time.Duration `toml:"rate_limit"`
	RequestTimeout time.Duration `toml:"request_timeout"`
	MaxResults     int           `toml:"max_results"`
}

// GeminiConfig contains Google Gemini API configuration
type GeminiConfig struct {
	APIKey      string  `toml:"api_key"`
	Model       string  `toml:"model"`
	Timeout     string  `toml:"timeout"`     // Operation timeout as duration string
	RateLimit   string  `toml:"rate_limit"`  // Rate limit duration string
	Temperature float32 `toml:"temperature"`
}

// ClaudeConfig contains Anthropic Claude API configuration
type ClaudeConfig struct {
	APIKey      string  `toml:"api_key"`
	Model       string  `toml:"model"`
	MaxTokens   int     `toml:"max_tokens"`
	Timeout     string  `toml:"timeout"`
	RateLimit   string  `toml:"rate_limit"`
	Temperature float32 `toml:"temperature"`
}

// LLMProvider represents the AI provider type
type LLMProvider string

const (
	// LLMProviderGemini uses Google Gemini API
	LLMProviderGemini LLMProvider = "gemini"
	// LLMProviderClaude uses Anthropic Claude API
	LLMProviderClaude LLMProvider = "claude"
)

// LLMConfig contains unified configuration for AI providers
type LLMConfig struct {
	DefaultProvider LLMProvider `toml:"default_provider"` // "gemini" or "claude"
}

// NewDefaultConfig creates a configuration with default values.
// Technical parameters are hardcoded here for production stability.
// Only user-facing settings should be exposed in reperio.toml.
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Port: 8080,
			Host: "localhost",
		},
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path: "./data",
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: []string{"stdout", "file"},
		},
		Analysis: AnalysisConfig{
			MaxConcurrentJobs:    3,
			PhaseWeights:         []int{20, 20, 20, 30, 10},
			BatchSize:            5,
			BatchConcurrency:     3,
			BatchDelay:           500 * time.Millisecond,
			DefaultMaxKeywords:   30,
			DefaultMaxPages:      5,
			OpportunityMinVolume: 500,
			StaleJobTimeout:      10 * time.Minute,
			StaleCheckSchedule:   "0 */5 * * * *", // Every 5 minutes (cron format with seconds)
		},
		Scraper: ScraperConfig{
			UserAgent:          "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			RequestTimeout:     30 * time.Second,
			MaxBodySize:        10 * 1024 * 1024, // 10MB
			EnableJavaScript:   false,
			JavaScriptWaitTime: 3 * time.Second,
		},
		Serp: SerpConfig{
			Endpoint:       "https://serpapi.com/search",
			RateLimit:      1 * time.Second,
			RequestTimeout: 30 * time.Second,
			ResultDepth:    100,
		},
		PlacesAPI: PlacesAPIConfig{
			APIKey:         "", // User must provide API key in config file
			RateLimit:      1 * time.Second,
			RequestTimeout: 30 * time.Second,
			MaxResults:     10,
		},
		Gemini: GeminiConfig{
			APIKey:      "",
			Model:       "gemini-3-flash-preview",
			Timeout:     "5m",
			RateLimit:   "4s", // 15 RPM free tier
			Temperature: 0.7,
		},
		Claude: ClaudeConfig{
			APIKey:      "", // ANTHROPIC_API_KEY or config
			Model:       "claude-haiku-3-5-20241022",
			MaxTokens:   8192,
			Timeout:     "5m",
			RateLimit:   "1s",
			Temperature: 0.7,
		},
		LLM: LLMConfig{
			DefaultProvider: LLMProviderGemini,
		},
	}
}

// LoadFromFiles loads configuration from files with priority:
// CLI flags > environment variables > last config file > ... > defaults.
// Later files override earlier files.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("REPERIO_ENV"); env != "" {
		config.Environment = env
	} else if env := os.Getenv("GO_ENV"); env != "" {
		config.Environment = env
	}

	if port := os.Getenv("REPERIO_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if host := os.Getenv("REPERIO_SERVER_HOST"); host != "" {
		config.Server.Host = host
	}

	if badgerPath := os.Getenv("REPERIO_BADGER_PATH"); badgerPath != "" {
		config.Storage.Badger.Path = badgerPath
	}

	if level := os.Getenv("REPERIO_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}

	if maxJobs := os.Getenv("REPERIO_MAX_CONCURRENT_JOBS"); maxJobs != "" {
		if mj, err := strconv.Atoi(maxJobs); err == nil {
			config.Analysis.MaxConcurrentJobs = mj
		}
	}

	if key := os.Getenv("GEMINI_API_KEY"); key != "" && config.Gemini.APIKey == "" {
		config.Gemini.APIKey = key
	}
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" && config.Claude.APIKey == "" {
		config.Claude.APIKey = key
	}
	if key := os.Getenv("REPERIO_SERP_API_KEY"); key != "" && config.Serp.APIKey == "" {
		config.Serp.APIKey = key
	}
	if key := os.Getenv("REPERIO_PLACES_API_KEY"); key != "" && config.PlacesAPI.APIKey == "" {
		config.PlacesAPI.APIKey = key
	}
}

// Validate checks invariants that would otherwise surface deep in the pipeline
func (c *Config) Validate() error {
	if len(c.Analysis.PhaseWeights) != 5 {
		return fmt.Errorf("analysis.phase_weights must have exactly 5 entries, got %d", len(c.Analysis.PhaseWeights))
	}
	total := 0
	for _, w := range c.Analysis.PhaseWeights {
		if w <= 0 {
			return fmt.Errorf("analysis.phase_weights entries must be positive, got %v", c.Analysis.PhaseWeights)
		}
		total += w
	}
	if total == 0 {
		return fmt.Errorf("analysis.phase_weights must not sum to zero")
	}
	if c.Analysis.MaxConcurrentJobs < 1 {
		return fmt.Errorf("analysis.max_concurrent_jobs must be at least 1")
	}
	if c.Analysis.BatchSize < 1 || c.Analysis.BatchConcurrency < 1 {
		return fmt.Errorf("analysis.batch_size and analysis.batch_concurrency must be at least 1")
	}
	return nil
}
