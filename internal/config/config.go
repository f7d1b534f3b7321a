package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds the application configuration
type Config struct {
	DatabasePath string `json:"database_path" env:"MAILTRACK_DATABASE_PATH"`
	APIPort      string `json:"api_port" env:"PORT"`
	DataDir      string `json:"data_dir" env:"MAILTRACK_DATA_DIR"`
	LogLevel     string `json:"log_level" env:"MAILTRACK_LOG_LEVEL"`
	LogFormat    string `json:"log_format" env:"MAILTRACK_LOG_FORMAT"`
	JWTSecret    string `json:"jwt_secret" env:"JWT_SECRET"`
	CORSOrigins  string `json:"cors_origins" env:"MAILTRACK_CORS_ORIGINS"`
}

// Default configuration values
const (
	DefaultDatabasePath = "data/mailtracker.db"
	DefaultAPIPort      = "8000"
	DefaultDataDir      = "data"
	DefaultLogLevel     = "info"
	DefaultLogFormat    = "text"
	DefaultJWTSecret    = "your-secret-key"
	DefaultCORSOrigins  = "*"
)

// Load loads configuration from environment variables and config file.
// Priority: Environment variables > Config file > Default values.
// An empty database path is valid: the server starts in log-fallback mode.
func Load() (*Config, error) {
	// .env file is optional
	_ = godotenv.Load()

	cfg := &Config{
		DatabasePath: DefaultDatabasePath,
		APIPort:      DefaultAPIPort,
		DataDir:      DefaultDataDir,
		LogLevel:     DefaultLogLevel,
		LogFormat:    DefaultLogFormat,
		JWTSecret:    DefaultJWTSecret,
		CORSOrigins:  DefaultCORSOrigins,
	}

	// Config file is optional
	_ = cfg.loadFromFile()

	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadFromFile loads configuration from config.json file
func (c *Config) loadFromFile() error {
	// Look for config file in current directory and data directory
	configPaths := []string{
		"config.json",
		filepath.Join(c.DataDir, "config.json"),
	}

	for _, path := range configPaths {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}

		if err := json.Unmarshal(data, c); err != nil {
			return err
		}
		return nil
	}

	return nil
}

// AllowedOrigins returns the configured CORS origins as a list
func (c *Config) AllowedOrigins() []string {
	parts := strings.Split(c.CORSOrigins, ",")
	origins := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}

// Save saves the current configuration to a file
func (c *Config) Save(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
