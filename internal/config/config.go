// Package config assembles the worker's configuration from an optional YAML
// file with environment variables layered on top. Environment wins: the
// worker normally runs from a .env file alone.
package config

import (
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration for the trading worker.
type Config struct {
	Fidelity FidelityConfig `yaml:"fidelity"`
	Server   ServerConfig   `yaml:"server"`
	Browser  BrowserConfig  `yaml:"browser"`
	Database DatabaseConfig `yaml:"database"`
	Alpaca   AlpacaConfig   `yaml:"alpaca"`
	Logging  LoggingConfig  `yaml:"logging"`

	// CatalogPath optionally points at a YAML selector-catalog override.
	CatalogPath string `yaml:"catalog_path"`
}

// FidelityConfig holds login credentials and the default trading account.
type FidelityConfig struct {
	Username       string `yaml:"username"`
	Password       string `yaml:"password"`
	TOTPSecret     string `yaml:"totp_secret"`
	DefaultAccount string `yaml:"default_account"`
}

// HasCredentials reports whether enough is configured to attempt a login.
// The TOTP secret is optional; the SMS fallback covers accounts without an
// authenticator.
func (f FidelityConfig) HasCredentials() bool {
	return f.Username != "" && f.Password != ""
}

// ServerConfig holds the HTTP listener and API credential settings.
type ServerConfig struct {
	Host      string `yaml:"host"`
	Port      int    `yaml:"port"`
	APIKey    string `yaml:"api_key"`
	JWTSecret string `yaml:"jwt_secret"`
}

// BrowserConfig controls the puppeted browser session.
type BrowserConfig struct {
	Headless    bool   `yaml:"headless"`
	ProfilePath string `yaml:"profile_path"`
	Title       string `yaml:"title"`
	Channel     string `yaml:"channel"`
}

// DatabaseConfig holds the optional Postgres trade-journal connection. The
// journal is enabled only when a password is set.
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
}

// Enabled reports whether the trade journal should connect.
func (d DatabaseConfig) Enabled() bool { return d.Password != "" }

// AlpacaConfig holds optional market-data keys for the reference-quote
// cross-check.
type AlpacaConfig struct {
	APIKey    string `yaml:"api_key"`
	APISecret string `yaml:"api_secret"`
}

// Enabled reports whether the quote cross-check should run.
func (a AlpacaConfig) Enabled() bool { return a.APIKey != "" && a.APISecret != "" }

// LoggingConfig configures the application logger.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Load reads the YAML configuration file at path (skipped when path is empty
// or the file is absent), then applies environment variable overrides.
func Load(path string) (*Config, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err == nil {
			if uerr := yaml.Unmarshal(data, cfg); uerr != nil {
				return nil, uerr
			}
		} else if !os.IsNotExist(err) {
			return nil, err
		}
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Host:   "127.0.0.1",
			Port:   8765,
			APIKey: "dev-secret",
		},
		Browser: BrowserConfig{
			Headless:    true,
			ProfilePath: ".",
		},
		Database: DatabaseConfig{
			Host:    "localhost",
			Port:    "5432",
			User:    "postgres",
			DBName:  "trader",
			SSLMode: "disable",
		},
		Logging: LoggingConfig{Level: "info"},
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("FIDELITY_USERNAME"); v != "" {
		cfg.Fidelity.Username = v
	}
	if v := os.Getenv("FIDELITY_PASSWORD"); v != "" {
		cfg.Fidelity.Password = v
	}
	if v := os.Getenv("FIDELITY_TOTP_SECRET"); v != "" {
		cfg.Fidelity.TOTPSecret = v
	}
	if v := os.Getenv("FIDELITY_DEFAULT_ACCOUNT"); v != "" {
		cfg.Fidelity.DefaultAccount = v
	}

	if v := os.Getenv("TRADER_API_KEY"); v != "" {
		cfg.Server.APIKey = v
	}
	if v := os.Getenv("JWT_SECRET_KEY"); v != "" {
		cfg.Server.JWTSecret = v
	}
	if v := os.Getenv("TRADER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("TRADER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}

	if v := os.Getenv("TRADER_HEADLESS"); v != "" {
		cfg.Browser.Headless = v != "0" && v != "false"
	}
	if v := os.Getenv("TRADER_PROFILE_PATH"); v != "" {
		cfg.Browser.ProfilePath = v
	}
	if v := os.Getenv("TRADER_SESSION_TITLE"); v != "" {
		cfg.Browser.Title = v
	}
	if v := os.Getenv("TRADER_BROWSER_CHANNEL"); v != "" {
		cfg.Browser.Channel = v
	}
	if v := os.Getenv("TRADER_CATALOG_PATH"); v != "" {
		cfg.CatalogPath = v
	}

	if v := os.Getenv("DB_HOST"); v != "" {
		cfg.Database.Host = v
	}
	if v := os.Getenv("DB_PORT"); v != "" {
		cfg.Database.Port = v
	}
	if v := os.Getenv("DB_USER"); v != "" {
		cfg.Database.User = v
	}
	if v := os.Getenv("DB_PASSWORD"); v != "" {
		cfg.Database.Password = v
	}
	if v := os.Getenv("DB_NAME"); v != "" {
		cfg.Database.DBName = v
	}
	if v := os.Getenv("DB_SSLMODE"); v != "" {
		cfg.Database.SSLMode = v
	}

	if v := os.Getenv("ALPACA_API_KEY"); v != "" {
		cfg.Alpaca.APIKey = v
	}
	if v := os.Getenv("ALPACA_API_SECRET"); v != "" {
		cfg.Alpaca.APISecret = v
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}
