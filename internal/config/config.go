// Package config handles configuration loading for FRJAR.ai.
// It supports YAML config files with environment variable overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of every environment override.
const EnvPrefix = "FRJARAI"

// Config represents the complete application configuration.
type Config struct {
	LLM      LLMConfig      `mapstructure:"llm"      yaml:"llm"      json:"llm"`
	Pricing  PricingConfig  `mapstructure:"pricing"  yaml:"pricing"  json:"pricing"`
	Verify   VerifyConfig   `mapstructure:"verify"   yaml:"verify"   json:"verify"`
	Forecast ForecastConfig `mapstructure:"forecast" yaml:"forecast" json:"forecast"`
	Storage  StorageConfig  `mapstructure:"storage"  yaml:"storage"  json:"storage"`
	News     NewsConfig     `mapstructure:"news"     yaml:"news"     json:"news"`
	Supplier SupplierConfig `mapstructure:"supplier" yaml:"supplier" json:"supplier"`
	API      APIConfig      `mapstructure:"api"      yaml:"api"      json:"api"`
	Logging  LoggingConfig  `mapstructure:"logging"  yaml:"logging"  json:"logging"`

	// File is the config file that was read, empty when none was found.
	File string `mapstructure:"-" yaml:"-" json:"-"`
}

// LLMConfig holds the provider chain configuration. Keys never serialise.
type LLMConfig struct {
	Order          []string      `mapstructure:"order"           yaml:"order"           json:"order"` // tried in this order
	GeminiKey      string        `mapstructure:"gemini_key"      yaml:"gemini_key"      json:"-"`
	GeminiModel    string        `mapstructure:"gemini_model"    yaml:"gemini_model"    json:"gemini_model"`
	OpenAIKey      string        `mapstructure:"openai_key"      yaml:"openai_key"      json:"-"`
	OpenAIModel    string        `mapstructure:"openai_model"    yaml:"openai_model"    json:"openai_model"`
	DeepSeekKey    string        `mapstructure:"deepseek_key"    yaml:"deepseek_key"    json:"-"`
	DeepSeekModel  string        `mapstructure:"deepseek_model"  yaml:"deepseek_model"  json:"deepseek_model"`
	GroqKey        string        `mapstructure:"groq_key"        yaml:"groq_key"        json:"-"`
	GroqModel      string        `mapstructure:"groq_model"      yaml:"groq_model"      json:"groq_model"`
	AnthropicKey   string        `mapstructure:"anthropic_key"   yaml:"anthropic_key"   json:"-"`
	AnthropicModel string        `mapstructure:"anthropic_model" yaml:"anthropic_model" json:"anthropic_model"`
	OllamaURL      string        `mapstructure:"ollama_url"      yaml:"ollama_url"      json:"ollama_url"`
	OllamaModel    string        `mapstructure:"ollama_model"    yaml:"ollama_model"    json:"ollama_model"`
	Temperature    float64       `mapstructure:"temperature"     yaml:"temperature"     json:"temperature"`
	MaxTokens      int           `mapstructure:"max_tokens"      yaml:"max_tokens"      json:"max_tokens"`
	CallTimeout    time.Duration `mapstructure:"call_timeout"    yaml:"call_timeout"    json:"call_timeout"`
}

// PricingConfig holds estimator and cache settings.
type PricingConfig struct {
	MemoryTTL    time.Duration `mapstructure:"memory_ttl"    yaml:"memory_ttl"    json:"memory_ttl"`
	Timezone     string        `mapstructure:"timezone"      yaml:"timezone"      json:"timezone"`
	HistoryFile  string        `mapstructure:"history_file"  yaml:"history_file"  json:"history_file"`
	TrainingFile string        `mapstructure:"training_file" yaml:"training_file" json:"training_file"`
	ModelFile    string        `mapstructure:"model_file"    yaml:"model_file"    json:"model_file"`
	CatalogFile  string        `mapstructure:"catalog_file"  yaml:"catalog_file"  json:"catalog_file"`
	Fluctuation  float64       `mapstructure:"fluctuation"   yaml:"fluctuation"   json:"fluctuation"` // ±fraction applied to local predictions
}

// VerifyConfig holds bulk market verification settings.
type VerifyConfig struct {
	Workers     int           `mapstructure:"workers"      yaml:"workers"      json:"workers"`
	MaxAttempts int           `mapstructure:"max_attempts" yaml:"max_attempts" json:"max_attempts"`
	RetryDelay  time.Duration `mapstructure:"retry_delay"  yaml:"retry_delay"  json:"retry_delay"`
}

// ForecastConfig holds yearly forecast settings.
type ForecastConfig struct {
	Country     string        `mapstructure:"country"      yaml:"country"      json:"country"`
	PastYears   int           `mapstructure:"past_years"   yaml:"past_years"   json:"past_years"`
	FutureYears int           `mapstructure:"future_years" yaml:"future_years" json:"future_years"`
	Attempts    int           `mapstructure:"attempts"     yaml:"attempts"     json:"attempts"`
	RetryDelay  time.Duration `mapstructure:"retry_delay"  yaml:"retry_delay"  json:"retry_delay"`
}

// StorageConfig selects the persistence backend for history and training data.
type StorageConfig struct {
	Backend      string `mapstructure:"backend"        yaml:"backend"        json:"backend"` // "json" or "mysql"
	MySQLDSN     string `mapstructure:"mysql_dsn"      yaml:"mysql_dsn"      json:"-"`
	MaxOpenConns int    `mapstructure:"max_open_conns" yaml:"max_open_conns" json:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns" yaml:"max_idle_conns" json:"max_idle_conns"`
}

// NewsConfig holds the market headline feeds.
type NewsConfig struct {
	Enabled      bool          `mapstructure:"enabled"       yaml:"enabled"       json:"enabled"`
	Feeds        []string      `mapstructure:"feeds"         yaml:"feeds"         json:"feeds"`
	MaxHeadlines int           `mapstructure:"max_headlines" yaml:"max_headlines" json:"max_headlines"`
	Timeout      time.Duration `mapstructure:"timeout"       yaml:"timeout"       json:"timeout"`
}

// SupplierConfig holds the supplier search service settings.
type SupplierConfig struct {
	SearchURL  string        `mapstructure:"search_url"  yaml:"search_url"  json:"search_url"`
	Timeout    time.Duration `mapstructure:"timeout"     yaml:"timeout"     json:"timeout"`
	RetryCount int           `mapstructure:"retry_count" yaml:"retry_count" json:"retry_count"`
}

// APIConfig holds HTTP API server settings.
type APIConfig struct {
	Host        string   `mapstructure:"host"         yaml:"host"         json:"host"`
	Port        int      `mapstructure:"port"         yaml:"port"         json:"port"`
	CORSOrigins []string `mapstructure:"cors_origins" yaml:"cors_origins" json:"cors_origins"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"  yaml:"level"  json:"level"`  // "debug", "info", "warn", "error"
	Format string `mapstructure:"format" yaml:"format" json:"format"` // "text" or "json"
}

// Load reads the configuration from file and environment variables.
// Config file search order:
//  1. ./config/config.yaml (project root)
//  2. ~/.frjarai/config.yaml (home directory)
//  3. /etc/frjarai/config.yaml (system)
//
// Environment variables override config file values.
// Format: FRJARAI_<SECTION>_<KEY>, e.g., FRJARAI_LLM_GROQ_KEY
func Load() (*Config, error) {
	v := newViper()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(filepath.Join(homeDir(), ".frjarai"))
	v.AddConfigPath("/etc/frjarai")

	// Config file is optional.
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}
	return decode(v)
}

// LoadFromFile reads configuration from a specific file path.
func LoadFromFile(path string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", path, err)
	}
	return decode(v)
}

// Default returns the configuration with defaults only.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	_ = v.Unmarshal(&cfg)
	return &cfg
}

// Addr returns the host:port the API server listens on.
func (c APIConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	cfg.File = v.ConfigFileUsed()
	overrideFromEnv(&cfg)
	return &cfg, nil
}

// setDefaults sets sensible defaults for all config values.
func setDefaults(v *viper.Viper) {
	// LLM defaults
	v.SetDefault("llm.order", []string{"gemini", "openai", "deepseek", "groq"})
	v.SetDefault("llm.gemini_model", "gemini-2.0-flash")
	v.SetDefault("llm.openai_model", "gpt-4o")
	v.SetDefault("llm.deepseek_model", "deepseek-chat")
	v.SetDefault("llm.groq_model", "llama3-70b-8192")
	v.SetDefault("llm.anthropic_model", "claude-3-5-haiku-20241022")
	v.SetDefault("llm.ollama_model", "qwen2.5:7b")
	v.SetDefault("llm.temperature", 0.3)
	v.SetDefault("llm.max_tokens", 300)
	v.SetDefault("llm.call_timeout", 30*time.Second)

	// Pricing defaults
	v.SetDefault("pricing.memory_ttl", 6*time.Hour)
	v.SetDefault("pricing.timezone", "Asia/Riyadh")
	v.SetDefault("pricing.history_file", "data/daily_price_history.json")
	v.SetDefault("pricing.training_file", "data/training_data.json")
	v.SetDefault("pricing.model_file", "data/price_model.json")
	v.SetDefault("pricing.catalog_file", "data/products.json")
	v.SetDefault("pricing.fluctuation", 0.02)

	// Verify defaults
	v.SetDefault("verify.workers", 10)
	v.SetDefault("verify.max_attempts", 5)
	v.SetDefault("verify.retry_delay", time.Second)

	// Forecast defaults
	v.SetDefault("forecast.country", "Saudi Arabia")
	v.SetDefault("forecast.past_years", 3)
	v.SetDefault("forecast.future_years", 3)
	v.SetDefault("forecast.attempts", 3)
	v.SetDefault("forecast.retry_delay", time.Second)

	// Storage defaults
	v.SetDefault("storage.backend", "json")
	v.SetDefault("storage.max_open_conns", 10)
	v.SetDefault("storage.max_idle_conns", 5)

	// News defaults
	v.SetDefault("news.enabled", false)
	v.SetDefault("news.feeds", []string{
		"https://www.argaam.com/en/rss/articles",
		"https://www.arabnews.com/cat/3/rss.xml",
	})
	v.SetDefault("news.max_headlines", 5)
	v.SetDefault("news.timeout", 10*time.Second)

	// Supplier defaults
	v.SetDefault("supplier.search_url", "https://api.frjar.com/api/search/suggestions")
	v.SetDefault("supplier.timeout", 15*time.Second)
	v.SetDefault("supplier.retry_count", 2)

	// API defaults
	v.SetDefault("api.host", "0.0.0.0")
	v.SetDefault("api.port", 8080)
	v.SetDefault("api.cors_origins", []string{"http://localhost:3000"})

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

// keyEnv lists, per secret, the prefixed variable followed by the plain
// variable name honoured for compatibility with existing deployments.
var keyEnv = []struct {
	prefixed, plain string
	field           func(*Config) *string
}{
	{"FRJARAI_LLM_GEMINI_KEY", "GEMINI_API_KEY", func(c *Config) *string { return &c.LLM.GeminiKey }},
	{"FRJARAI_LLM_OPENAI_KEY", "OPENAI_API_KEY", func(c *Config) *string { return &c.LLM.OpenAIKey }},
	{"FRJARAI_LLM_DEEPSEEK_KEY", "DEEPSEEK_API_KEY", func(c *Config) *string { return &c.LLM.DeepSeekKey }},
	{"FRJARAI_LLM_GROQ_KEY", "GROQ_API_KEY", func(c *Config) *string { return &c.LLM.GroqKey }},
	{"FRJARAI_LLM_ANTHROPIC_KEY", "ANTHROPIC_API_KEY", func(c *Config) *string { return &c.LLM.AnthropicKey }},
	{"FRJARAI_STORAGE_MYSQL_DSN", "", func(c *Config) *string { return &c.Storage.MySQLDSN }},
}

// overrideFromEnv explicitly reads sensitive keys from environment variables.
// The prefixed variable wins over the plain one.
func overrideFromEnv(cfg *Config) {
	for _, k := range keyEnv {
		dst := k.field(cfg)
		if v := os.Getenv(k.prefixed); v != "" {
			*dst = v
		} else if k.plain != "" && *dst == "" {
			if v := os.Getenv(k.plain); v != "" {
				*dst = v
			}
		}
	}
}

// homeDir returns the user's home directory.
func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
