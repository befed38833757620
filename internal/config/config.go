// Package config loads the aviabot configuration: the bot core settings plus
// database, external API, dialog and ops sections.
package config

import (
	"fmt"
	"strings"
	"time"

	coreconfig "github.com/m3rciful/aviabot/core/config"
	coredatabase "github.com/m3rciful/aviabot/core/database"
	"github.com/m3rciful/aviabot/internal/history"
)

// EnvFile is the optional dotenv file read before the environment overlay.
const EnvFile = "keys.env"

// AviasalesConfig configures the flight price API.
type AviasalesConfig struct {
	BaseURL  string        `yaml:"base_url" envconfig:"AVIASALES_BASE_URL"`
	Token    string        `yaml:"token" envconfig:"AVIASALES_API_KEY"`
	Currency string        `yaml:"currency"`
	Limit    int           `yaml:"limit"`
	Timeout  time.Duration `yaml:"timeout" envconfig:"AVIASALES_TIMEOUT"`
}

// WeatherConfig configures the RapidAPI weather provider.
type WeatherConfig struct {
	BaseURL string        `yaml:"base_url" envconfig:"WEATHER_BASE_URL"`
	Host    string        `yaml:"host" envconfig:"RAPID_API_HOST"`
	Key     string        `yaml:"key" envconfig:"RAPID_API_KEY"`
	Timeout time.Duration `yaml:"timeout" envconfig:"WEATHER_TIMEOUT"`
}

// DialogConfig controls session lifetime.
type DialogConfig struct {
	SessionTTL    time.Duration `yaml:"session_ttl" envconfig:"DIALOG_SESSION_TTL"`
	SweepInterval time.Duration `yaml:"sweep_interval" envconfig:"DIALOG_SWEEP_INTERVAL"`
}

// OpsConfig configures the health and metrics endpoint. Empty Listen disables it.
type OpsConfig struct {
	Listen string `yaml:"listen" envconfig:"OPS_LISTEN"`
}

// ReferenceConfig points at the city and airport seed file.
type ReferenceConfig struct {
	SeedFile string `yaml:"seed_file" envconfig:"REFERENCE_SEED_FILE"`
}

// HistoryConfig bounds the per-user command history.
type HistoryConfig struct {
	Limit int `yaml:"limit"`
}

// Config is the full application configuration.
type Config struct {
	coreconfig.Config `yaml:",inline"`

	Database  coredatabase.Config `yaml:"database"`
	Aviasales AviasalesConfig     `yaml:"aviasales"`
	Weather   WeatherConfig       `yaml:"weather"`
	Dialog    DialogConfig        `yaml:"dialog"`
	History   HistoryConfig       `yaml:"history"`
	Ops       OpsConfig           `yaml:"ops"`
	Reference ReferenceConfig     `yaml:"reference"`
}

// CoreConfig exposes the embedded bot core section.
func (c *Config) CoreConfig() *coreconfig.Config {
	if c == nil {
		return nil
	}
	return &c.Config
}

// Load reads path, overlays keys.env and the environment, then normalizes.
func Load(path string) (*Config, error) {
	var cfg Config
	if err := coreconfig.Decode(path, &cfg, EnvFile); err != nil {
		return nil, err
	}
	if err := Normalize(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize validates cfg and fills defaults.
func Normalize(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}
	if err := coreconfig.Normalize(&cfg.Config); err != nil {
		return err
	}

	if strings.TrimSpace(cfg.Aviasales.Token) == "" {
		return fmt.Errorf("aviasales.token is required")
	}
	if strings.TrimSpace(cfg.Weather.Key) == "" {
		return fmt.Errorf("weather.key is required")
	}
	if cfg.Aviasales.Timeout < 0 || cfg.Weather.Timeout < 0 {
		return fmt.Errorf("api timeouts must be >= 0")
	}
	if cfg.Aviasales.Timeout == 0 {
		cfg.Aviasales.Timeout = 10 * time.Second
	}
	if cfg.Weather.Timeout == 0 {
		cfg.Weather.Timeout = 10 * time.Second
	}
	if cfg.Aviasales.Currency == "" {
		cfg.Aviasales.Currency = "rub"
	}
	if cfg.Aviasales.Limit <= 0 {
		cfg.Aviasales.Limit = 50
	}

	if cfg.Dialog.SessionTTL < 0 {
		return fmt.Errorf("dialog.session_ttl must be >= 0")
	}
	if cfg.Dialog.SessionTTL == 0 {
		cfg.Dialog.SessionTTL = 30 * time.Minute
	}
	if cfg.Dialog.SweepInterval <= 0 {
		cfg.Dialog.SweepInterval = time.Minute
	}
	if cfg.History.Limit > history.DefaultLimit {
		return fmt.Errorf("history.limit must be <= %d", history.DefaultLimit)
	}
	if cfg.History.Limit <= 0 {
		cfg.History.Limit = history.DefaultLimit
	}

	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == "" {
		cfg.Database.Port = "5432"
	}
	if cfg.Database.Name == "" {
		return fmt.Errorf("database.name is required")
	}
	if cfg.Database.MigrationsDir == "" {
		cfg.Database.MigrationsDir = "migrations"
	}
	if cfg.Reference.SeedFile == "" {
		cfg.Reference.SeedFile = "data/reference.yaml"
	}
	return nil
}
