package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the gridseer service
type Config struct {
	General   GeneralConfig   `mapstructure:"general"`
	Server    ServerConfig    `mapstructure:"server"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Agent     AgentConfig     `mapstructure:"agent"`
	Search    SearchConfig    `mapstructure:"search"`
	Vector    VectorConfig    `mapstructure:"vector"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// GeneralConfig contains general application settings
type GeneralConfig struct {
	Debug    bool   `mapstructure:"debug"`
	LogLevel string `mapstructure:"log_level"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Address string `mapstructure:"address"`
}

// LLMConfig contains model and embedding provider settings
type LLMConfig struct {
	Provider    string          `mapstructure:"provider"` // anthropic
	APIKey      string          `mapstructure:"api_key"`
	Model       string          `mapstructure:"model"`
	MaxTokens   int             `mapstructure:"max_tokens"`
	Temperature float64         `mapstructure:"temperature"`
	Timeout     time.Duration   `mapstructure:"timeout"`
	Embedding   EmbeddingConfig `mapstructure:"embedding"`
}

// EmbeddingConfig selects the embedding backend used for vector queries
type EmbeddingConfig struct {
	APIKey  string        `mapstructure:"api_key"`
	Model   string        `mapstructure:"model"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// AgentConfig bounds the analysis loop
type AgentConfig struct {
	MaxRounds   int           `mapstructure:"max_rounds"`
	ToolTimeout time.Duration `mapstructure:"tool_timeout"`
}

func (a AgentConfig) Validate() error {
	if a.MaxRounds <= 0 {
		return fmt.Errorf("agent.max_rounds must be > 0")
	}
	return nil
}

// SearchConfig contains web search provider settings
type SearchConfig struct {
	Provider     string        `mapstructure:"provider"` // serper or brave
	SerperAPIKey string        `mapstructure:"serper_api_key"`
	BraveAPIKey  string        `mapstructure:"brave_api_key"`
	MaxResults   int           `mapstructure:"max_results"`
	FetchContent bool          `mapstructure:"fetch_content"`
	FetchTimeout time.Duration `mapstructure:"fetch_timeout"`
}

// VectorConfig contains Qdrant settings
type VectorConfig struct {
	URL        string `mapstructure:"url"`
	APIKey     string `mapstructure:"api_key"`
	Collection string `mapstructure:"collection"`
	Dimensions int    `mapstructure:"dimensions"`
	TopK       int    `mapstructure:"top_k"`
}

// StorageConfig contains database settings
type StorageConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

// PostgresConfig contains PostgreSQL settings
type PostgresConfig struct {
	URL      string        `mapstructure:"url"`
	Host     string        `mapstructure:"host"`
	Port     string        `mapstructure:"port"`
	User     string        `mapstructure:"user"`
	Password string        `mapstructure:"password"`
	DBName   string        `mapstructure:"dbname"`
	SSLMode  string        `mapstructure:"sslmode"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// DSN builds a postgres connection string from the configured fields.
func (p PostgresConfig) DSN() (string, error) {
	if p.URL != "" {
		return p.URL, nil
	}
	if p.Host == "" || p.DBName == "" {
		return "", fmt.Errorf("postgres not configured (storage.postgres.host/dbname or url)")
	}
	port := p.Port
	if port == "" {
		port = "5432"
	}
	ssl := p.SSLMode
	if ssl == "" {
		ssl = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", p.User, p.Password, p.Host, port, p.DBName, ssl), nil
}

// RedisConfig contains the optional answer-cache settings
type RedisConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Host     string        `mapstructure:"host"`
	Port     string        `mapstructure:"port"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// TelemetryConfig contains telemetry and cost tracking settings
type TelemetryConfig struct {
	Enabled      bool `mapstructure:"enabled"`
	CostTracking bool `mapstructure:"cost_tracking"`
}

// LoadConfig reads configuration from file and environment (GRIDSEER_*)
func LoadConfig(path string) *Config {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	viper.SetDefault("general.log_level", "info")
	viper.SetDefault("server.address", ":10020")
	viper.SetDefault("llm.provider", "anthropic")
	viper.SetDefault("llm.model", "claude-3-5-sonnet-20241022")
	viper.SetDefault("llm.max_tokens", 4000)
	viper.SetDefault("llm.temperature", 0.2)
	viper.SetDefault("llm.timeout", 2*time.Minute)
	viper.SetDefault("llm.embedding.model", "text-embedding-3-small")
	viper.SetDefault("llm.embedding.timeout", 30*time.Second)
	viper.SetDefault("agent.max_rounds", 10)
	viper.SetDefault("agent.tool_timeout", 8*time.Second)
	viper.SetDefault("search.provider", "serper")
	viper.SetDefault("search.max_results", 8)
	viper.SetDefault("search.fetch_content", true)
	viper.SetDefault("search.fetch_timeout", 5*time.Second)
	viper.SetDefault("vector.url", "http://localhost:6333")
	viper.SetDefault("vector.collection", "energy_collection")
	viper.SetDefault("vector.dimensions", 1536)
	viper.SetDefault("vector.top_k", 5)
	viper.SetDefault("storage.redis.ttl", 15*time.Minute)
	viper.SetDefault("telemetry.enabled", true)
	viper.SetDefault("telemetry.cost_tracking", true)

	if path == "" {
		viper.AddConfigPath("./config")
		viper.AddConfigPath(".")
		exe, _ := os.Executable()
		exeDir := filepath.Dir(exe)
		viper.AddConfigPath(exeDir)
		viper.AddConfigPath(filepath.Join(exeDir, "..", "config"))
	} else {
		viper.SetConfigFile(path)
	}

	viper.SetEnvPrefix("GRIDSEER")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		// config may come entirely from env; only a malformed file is fatal
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			panic(fmt.Errorf("fatal error config file: %w", err))
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		panic(fmt.Errorf("fatal error config file: %w", err))
	}

	if err := config.Agent.Validate(); err != nil {
		panic(err)
	}
	return &config
}
