package config

import (
	"os"

	"github.com/spf13/viper"
)

// ServerConfig holds the HTTP server settings.
type ServerConfig struct {
	Port string `mapstructure:"port"`
}

// DatabaseConfig selects the backing store. Driver is "sqlite" or
// "postgres". For sqlite the DSN is a file path or "memory"; for postgres
// the host fields are used.
type DatabaseConfig struct {
	Driver   string `mapstructure:"driver"`
	DSN      string `mapstructure:"dsn"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

// ProviderConfig holds the credential and endpoint for one LLM backend.
type ProviderConfig struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
}

// ProvidersConfig holds the three supported LLM backends. Groq and Ollama
// speak the OpenAI protocol at different base URLs; Ollama needs no key.
type ProvidersConfig struct {
	OpenAI ProviderConfig `mapstructure:"openai"`
	Groq   ProviderConfig `mapstructure:"groq"`
	Ollama ProviderConfig `mapstructure:"ollama"`
}

// ChatConfig holds generation defaults applied when an agent does not
// specify its own.
type ChatConfig struct {
	DefaultModel        string `mapstructure:"default_model"`
	DefaultSystemPrompt string `mapstructure:"default_system_prompt"`
	HistoryLimit        int    `mapstructure:"history_limit"`
}

// Config holds the application's configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Providers ProvidersConfig `mapstructure:"providers"`
	Chat      ChatConfig      `mapstructure:"chat"`
}

// AppConfig is the global configuration instance.
var AppConfig Config

// LoadConfig loads configuration from config.yaml and environment variables.
// API keys are always taken from the environment when present so they never
// have to live in the config file.
func LoadConfig() error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./config")
	viper.AddConfigPath(".")

	viper.SetDefault("server.port", "8080")
	viper.SetDefault("database.driver", "sqlite")
	viper.SetDefault("database.dsn", "memory")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.sslmode", "disable")
	viper.SetDefault("providers.openai.base_url", "")
	viper.SetDefault("providers.groq.base_url", "https://api.groq.com/openai/v1")
	viper.SetDefault("providers.ollama.base_url", "http://localhost:11434/v1")
	viper.SetDefault("chat.default_model", "llama3.2")
	viper.SetDefault("chat.default_system_prompt",
		"You are a helpful and friendly assistant. Respond clearly and concisely.")
	viper.SetDefault("chat.history_limit", 50)

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return err
		}
		// No config file is fine: defaults plus environment cover everything.
	}

	if err := viper.Unmarshal(&AppConfig); err != nil {
		return err
	}

	// Environment overrides.
	if port := os.Getenv("SERVER_PORT"); port != "" {
		AppConfig.Server.Port = port
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		AppConfig.Providers.OpenAI.APIKey = key
	}
	if key := os.Getenv("GROQ_API_KEY"); key != "" {
		AppConfig.Providers.Groq.APIKey = key
	}
	if url := os.Getenv("OLLAMA_BASE_URL"); url != "" {
		AppConfig.Providers.Ollama.BaseURL = url
	}
	if dsn := os.Getenv("DATABASE_DSN"); dsn != "" {
		AppConfig.Database.DSN = dsn
	}

	return nil
}
