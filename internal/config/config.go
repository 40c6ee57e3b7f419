package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/theirongolddev/fintrack/internal/remote"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Environment variables that override the config file.
const (
	EnvDatabaseURL = "FINTRACK_DATABASE_URL"
	EnvAPIURL      = "FINTRACK_API_URL"
	EnvAPIKey      = "FINTRACK_API_KEY"
)

// Config holds all fintrack configuration.
type Config struct {
	General    GeneralConfig    `toml:"general"`
	Backend    BackendConfig    `toml:"backend"`
	Sync       SyncConfig       `toml:"sync"`
	Appearance AppearanceConfig `toml:"appearance"`
}

// GeneralConfig holds general preferences.
type GeneralConfig struct {
	Workspace string `toml:"workspace"`
	Currency  string `toml:"currency"`
	DBPath    string `toml:"db_path,omitempty"`
}

// BackendConfig selects the remote store.
type BackendConfig struct {
	Driver     string `toml:"driver,omitempty"`
	DSN        string `toml:"dsn,omitempty"`
	URL        string `toml:"url,omitempty"`
	APIKey     string `toml:"api_key,omitempty"`
	TimeoutSec int    `toml:"timeout_sec"`
}

// SyncConfig holds worker and status API settings.
type SyncConfig struct {
	IntervalSec  int    `toml:"interval_sec"`
	Addr         string `toml:"addr"`
	EventsBuffer int    `toml:"events_buffer"`
}

// AppearanceConfig holds theme settings.
type AppearanceConfig struct {
	Theme string `toml:"theme"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		General: GeneralConfig{
			Workspace: "personal",
			Currency:  "USD",
		},
		Backend: BackendConfig{
			TimeoutSec: 10,
		},
		Sync: SyncConfig{
			IntervalSec:  30,
			Addr:         "127.0.0.1:8787",
			EventsBuffer: 200,
		},
		Appearance: AppearanceConfig{
			Theme: "flexoki-dark",
		},
	}
}

// ConfigDir returns the XDG-compliant config directory.
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "fintrack")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "fintrack")
}

// ConfigPath returns the full path to the config file.
func ConfigPath() string {
	return filepath.Join(ConfigDir(), "config.toml")
}

// LoadEnv reads .env from the working directory and then the config
// directory. Variables already set are left alone; missing files are ignored.
func LoadEnv() {
	for _, p := range []string{".env", filepath.Join(ConfigDir(), ".env")} {
		if _, err := os.Stat(p); err == nil {
			_ = godotenv.Load(p)
		}
	}
}

// Load reads the config file, returning defaults if it doesn't exist.
func Load() (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(ConfigPath())
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config: %w", err)
	}

	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config: %w", err)
	}

	return cfg, nil
}

// Save writes the config to disk.
func Save(cfg Config) error {
	dir := ConfigDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}

	f, err := os.OpenFile(ConfigPath(), os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("creating config file: %w", err)
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}

// Exists returns true if a config file exists on disk.
func Exists() bool {
	_, err := os.Stat(ConfigPath())
	return err == nil
}

// DatabaseURL returns the Postgres DSN from env var or config, in that order.
func DatabaseURL(cfg Config) string {
	if v := os.Getenv(EnvDatabaseURL); v != "" {
		return v
	}
	return cfg.Backend.DSN
}

// APIURL returns the REST endpoint from env var or config, in that order.
func APIURL(cfg Config) string {
	if v := os.Getenv(EnvAPIURL); v != "" {
		return v
	}
	return cfg.Backend.URL
}

// APIKey returns the REST key from env var or config, in that order.
func APIKey(cfg Config) string {
	if v := os.Getenv(EnvAPIKey); v != "" {
		return v
	}
	return cfg.Backend.APIKey
}

// Remote builds the backend config. Without an explicit driver, a database
// URL selects postgres, an API URL selects rest, and otherwise sync is
// disabled.
func Remote(cfg Config) remote.Config {
	rc := remote.Config{
		Driver:  cfg.Backend.Driver,
		DSN:     DatabaseURL(cfg),
		URL:     APIURL(cfg),
		APIKey:  APIKey(cfg),
		Timeout: time.Duration(cfg.Backend.TimeoutSec) * time.Second,
	}
	if rc.Driver == "" {
		switch {
		case rc.DSN != "":
			rc.Driver = remote.DriverPostgres
		case rc.URL != "":
			rc.Driver = remote.DriverREST
		default:
			rc.Driver = remote.DriverNone
		}
	}
	return rc
}

// SyncInterval is the worker's fallback poll period.
func SyncInterval(cfg Config) time.Duration {
	if cfg.Sync.IntervalSec <= 0 {
		return 30 * time.Second
	}
	return time.Duration(cfg.Sync.IntervalSec) * time.Second
}
