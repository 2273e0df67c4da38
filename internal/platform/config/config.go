// Package config loads application configuration from environment variables
// and an optional config file. Environment variables use the EXAM_ prefix,
// with nested keys joined by underscores (analysis.max_pages is
// EXAM_ANALYSIS_MAX_PAGES).
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable name.
const EnvPrefix = "EXAM"

// ConfigFileEnv names the variable that points at an optional config file.
const ConfigFileEnv = "EXAM_CONFIG_FILE"

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Cache    CacheConfig    `mapstructure:"cache"`
	AI       AIConfig       `mapstructure:"ai"`
	Analysis AnalysisConfig `mapstructure:"analysis"`
	Taxonomy TaxonomyConfig `mapstructure:"taxonomy"`
	Match    MatchConfig    `mapstructure:"match"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Log      LogConfig      `mapstructure:"log"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	Host            string        `mapstructure:"host"`
	MaxUploadMB     int64         `mapstructure:"max_upload_mb"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Addr is the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// DatabaseConfig holds PostgreSQL connection settings. An empty URL keeps
// jobs in memory.
type DatabaseConfig struct {
	URL         string `mapstructure:"url"`
	MaxConns    int    `mapstructure:"max_conns"`
	MinConns    int    `mapstructure:"min_conns"`
	AutoMigrate bool   `mapstructure:"auto_migrate"`
}

// Enabled reports whether a database is configured.
func (d DatabaseConfig) Enabled() bool {
	return d.URL != ""
}

// CacheConfig holds Dragonfly/Redis connection settings. An empty URL
// disables the result cache.
type CacheConfig struct {
	URL string        `mapstructure:"url"`
	TTL time.Duration `mapstructure:"ttl"`
}

// Enabled reports whether a result cache is configured.
func (c CacheConfig) Enabled() bool {
	return c.URL != ""
}

// AIConfig holds classifier provider and request settings.
type AIConfig struct {
	OpenRouter    OpenRouterConfig `mapstructure:"openrouter"`
	OpenAI        OpenAIConfig     `mapstructure:"openai"`
	DefaultModel  string           `mapstructure:"default_model"`
	TextTimeout   time.Duration    `mapstructure:"text_timeout"`
	VisionTimeout time.Duration    `mapstructure:"vision_timeout"`
	MaxRetries    int              `mapstructure:"max_retries"`
	TextDelay     time.Duration    `mapstructure:"text_retry_delay"`
	VisionDelay   time.Duration    `mapstructure:"vision_retry_delay"`
	TextTokens    int              `mapstructure:"text_max_tokens"`
	VisionTokens  int              `mapstructure:"vision_max_tokens"`
	Temperature   float64          `mapstructure:"temperature"`
}

// OpenRouterConfig holds OpenRouter provider settings.
type OpenRouterConfig struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
	Referer string `mapstructure:"referer"`
}

// OpenAIConfig holds settings for any OpenAI-compatible endpoint.
type OpenAIConfig struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
}

// AnalysisConfig holds extraction and chunking settings.
type AnalysisConfig struct {
	Mode          string `mapstructure:"mode"` // "vision" or "text"
	MaxChunkChars int    `mapstructure:"max_chunk_chars"`
	PagesPerChunk int    `mapstructure:"pages_per_chunk"`
	MaxPages      int    `mapstructure:"max_pages"`
	DPI           int    `mapstructure:"dpi"`
}

// TaxonomyConfig selects where reference data is read from.
type TaxonomyConfig struct {
	Source string `mapstructure:"source"` // "dir" or "postgres"
	Dir    string `mapstructure:"dir"`
}

// MatchConfig holds fuzzy matching settings.
type MatchConfig struct {
	Threshold float64 `mapstructure:"threshold"`
}

// StorageConfig holds filesystem locations.
type StorageConfig struct {
	WorkDir   string `mapstructure:"work_dir"`
	OutputDir string `mapstructure:"output_dir"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

var defaults = map[string]any{
	"server.port":             8080,
	"server.host":             "0.0.0.0",
	"server.max_upload_mb":    50,
	"server.shutdown_timeout": "15s",

	"database.url":          "",
	"database.max_conns":    10,
	"database.min_conns":    2,
	"database.auto_migrate": true,

	"cache.url": "",
	"cache.ttl": "24h",

	"ai.openrouter.api_key":  "",
	"ai.openrouter.base_url": "https://openrouter.ai/api/v1",
	"ai.openrouter.referer":  "https://github.com/p-n-ai/exam-analyzer",
	"ai.openai.api_key":      "",
	"ai.openai.base_url":     "https://api.openai.com/v1",
	"ai.default_model":       "google/gemini-2.5-flash",
	"ai.text_timeout":        "120s",
	"ai.vision_timeout":      "180s",
	"ai.max_retries":         2,
	"ai.text_retry_delay":    "2s",
	"ai.vision_retry_delay":  "3s",
	"ai.text_max_tokens":     8000,
	"ai.vision_max_tokens":   16000,
	"ai.temperature":         0.1,

	"analysis.mode":            "vision",
	"analysis.max_chunk_chars": 15000,
	"analysis.pages_per_chunk": 8,
	"analysis.max_pages":       30,
	"analysis.dpi":             200,

	"taxonomy.source": "dir",
	"taxonomy.dir":    "./references",

	"match.threshold": 60.0,

	"storage.work_dir":   os.TempDir(),
	"storage.output_dir": "./outputs",

	"log.level":  "info",
	"log.format": "json",
}

// Load reads configuration from EXAM_ environment variables, layered over
// the file named by EXAM_CONFIG_FILE when it is set.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, value := range defaults {
		v.SetDefault(key, value)
		_ = v.BindEnv(key)
	}

	if path := os.Getenv(ConfigFileEnv); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}

// Validate checks that required configuration is present and consistent.
func (c *Config) Validate() error {
	if !c.HasAIProvider() {
		return fmt.Errorf("at least one AI provider must be configured (EXAM_AI_OPENROUTER_API_KEY or EXAM_AI_OPENAI_API_KEY)")
	}

	if c.Analysis.Mode != "vision" && c.Analysis.Mode != "text" {
		return fmt.Errorf("EXAM_ANALYSIS_MODE must be 'vision' or 'text', got %q", c.Analysis.Mode)
	}

	switch c.Taxonomy.Source {
	case "dir":
		if c.Taxonomy.Dir == "" {
			return fmt.Errorf("EXAM_TAXONOMY_DIR is required when the taxonomy source is 'dir'")
		}
	case "postgres":
		if !c.Database.Enabled() {
			return fmt.Errorf("EXAM_DATABASE_URL is required when the taxonomy source is 'postgres'")
		}
	default:
		return fmt.Errorf("EXAM_TAXONOMY_SOURCE must be 'dir' or 'postgres', got %q", c.Taxonomy.Source)
	}

	if c.Match.Threshold < 0 || c.Match.Threshold > 100 {
		return fmt.Errorf("EXAM_MATCH_THRESHOLD must be between 0 and 100, got %v", c.Match.Threshold)
	}
	if c.AI.MaxRetries < 0 {
		return fmt.Errorf("EXAM_AI_MAX_RETRIES must not be negative, got %d", c.AI.MaxRetries)
	}
	if c.Storage.OutputDir == "" {
		return fmt.Errorf("EXAM_STORAGE_OUTPUT_DIR is required")
	}

	return nil
}

// HasAIProvider returns true if at least one AI provider is configured.
func (c *Config) HasAIProvider() bool {
	return c.AI.OpenRouter.APIKey != "" || c.AI.OpenAI.APIKey != ""
}
