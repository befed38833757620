package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const sample = `
telegram:
  token: "123:abc"
  run_mode: polling
database:
  name: aviabot
aviasales:
  token: avia-token
  timeout: 3s
weather:
  key: rapid-key
dialog:
  session_ttl: 15m
ops:
  listen: ":9090"
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

// chdir changes the working directory for the duration of the test,
// restoring it on cleanup (equivalent to testing.T.Chdir in Go 1.24+).
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(prev); err != nil {
			t.Fatalf("restore wd: %v", err)
		}
	})
}

func TestLoadAppliesDefaults(t *testing.T) {
	chdir(t, t.TempDir())
	cfg, err := Load(writeConfig(t, sample))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.CoreConfig().Telegram.RunMode != "longpoll" {
		t.Fatalf("run mode = %q, want longpoll", cfg.Telegram.RunMode)
	}
	if cfg.Aviasales.Timeout != 3*time.Second {
		t.Fatalf("aviasales timeout = %v", cfg.Aviasales.Timeout)
	}
	if cfg.Weather.Timeout != 10*time.Second {
		t.Fatalf("weather timeout = %v", cfg.Weather.Timeout)
	}
	if cfg.Dialog.SessionTTL != 15*time.Minute || cfg.Dialog.SweepInterval != time.Minute {
		t.Fatalf("dialog = %+v", cfg.Dialog)
	}
	if cfg.Aviasales.Currency != "rub" || cfg.Aviasales.Limit != 50 {
		t.Fatalf("aviasales = %+v", cfg.Aviasales)
	}
	if cfg.History.Limit != 10 {
		t.Fatalf("history limit = %d", cfg.History.Limit)
	}
	if cfg.Database.Port != "5432" || cfg.Database.MigrationsDir != "migrations" {
		t.Fatalf("database = %+v", cfg.Database)
	}
}

func TestLoadEnvOverridesYAML(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("AVIASALES_API_KEY", "from-env")
	cfg, err := Load(writeConfig(t, sample))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Aviasales.Token != "from-env" {
		t.Fatalf("token = %q, want from-env", cfg.Aviasales.Token)
	}
}

func TestNormalizeRequiresKeys(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"aviasales token", func(c *Config) { c.Aviasales.Token = "" }, "aviasales.token"},
		{"weather key", func(c *Config) { c.Weather.Key = " " }, "weather.key"},
		{"database name", func(c *Config) { c.Database.Name = "" }, "database.name"},
		{"negative ttl", func(c *Config) { c.Dialog.SessionTTL = -time.Second }, "session_ttl"},
		{"telegram token", func(c *Config) { c.Telegram.Token = "" }, "telegram token"},
		{"history above cap", func(c *Config) { c.History.Limit = 11 }, "history.limit"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{}
			cfg.Telegram.Token = "123:abc"
			cfg.Aviasales.Token = "t"
			cfg.Weather.Key = "k"
			cfg.Database.Name = "aviabot"
			tt.mutate(cfg)
			err := Normalize(cfg)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("Normalize() error = %v, want mention of %q", err, tt.want)
			}
		})
	}
}
