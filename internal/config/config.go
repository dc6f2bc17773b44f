package config

import (
	"os"

	"github.com/spf13/viper"
)

// Config holds the application configuration
type Config struct {
	Server  ServerConfig
	LLM     LLMConfig
	Storage StorageConfig
	Log     LogConfig
}

// ServerConfig holds the HTTP server configuration
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port string `mapstructure:"port"`
}

// LLMConfig holds the generation backend configuration.
// Model identifiers, temperature and max tokens are fixed here per
// deployment; they are never taken from request payloads.
type LLMConfig struct {
	BaseURL        string  `mapstructure:"base_url"`
	APIKey         string  `mapstructure:"api_key"`
	Model          string  `mapstructure:"model"`
	FallbackModel  string  `mapstructure:"fallback_model"`
	Temperature    float32 `mapstructure:"temperature"`
	MaxTokens      int     `mapstructure:"max_tokens"`
	TimeoutSeconds int     `mapstructure:"timeout_seconds"`
}

// StorageConfig selects the session store backend.
type StorageConfig struct {
	Backend string `mapstructure:"backend"` // "memory" or "sqlite"
	Path    string `mapstructure:"path"`    // sqlite database file
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// Load loads the configuration from config.yaml (or the file pointed at by
// CONFIG_PATH) with environment-friendly defaults. A missing config file is
// not an error; defaults apply.
func Load() (*Config, error) {
	v := viper.New()

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", "8000")
	v.SetDefault("llm.model", "gpt-4")
	v.SetDefault("llm.fallback_model", "gpt-3.5-turbo")
	v.SetDefault("llm.temperature", 0.7)
	v.SetDefault("llm.max_tokens", 500)
	v.SetDefault("llm.timeout_seconds", 60)
	v.SetDefault("storage.backend", "memory")
	v.SetDefault("storage.path", "newsletter.db")
	v.SetDefault("log.level", "info")

	if path := os.Getenv("CONFIG_PATH"); path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		v.Set("llm.api_key", key)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}
