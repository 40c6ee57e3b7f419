package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/theirongolddev/fintrack/internal/remote"
)

func TestLoadMissingReturnsDefaults(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.General.Currency != "USD" || cfg.Sync.Addr != "127.0.0.1:8787" {
		t.Fatalf("defaults = %+v", cfg)
	}
	if Exists() {
		t.Fatal("Exists reported a config that was never written")
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg := DefaultConfig()
	cfg.General.Workspace = "business"
	cfg.Backend.Driver = remote.DriverREST
	cfg.Backend.URL = "https://example.supabase.co"
	cfg.Sync.IntervalSec = 5
	if err := Save(cfg); err != nil {
		t.Fatalf("Save: %v", err)
	}

	info, err := os.Stat(ConfigPath())
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Fatalf("mode = %o, want 600", info.Mode().Perm())
	}

	got, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.General.Workspace != "business" || got.Backend.URL != cfg.Backend.URL || got.Sync.IntervalSec != 5 {
		t.Fatalf("loaded = %+v", got)
	}
}

func TestLoadRejectsBadTOML(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	if err := os.MkdirAll(filepath.Join(dir, "fintrack"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(ConfigPath(), []byte("[general\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestRemoteDriverSelection(t *testing.T) {
	t.Setenv(EnvDatabaseURL, "")
	t.Setenv(EnvAPIURL, "")
	t.Setenv(EnvAPIKey, "")

	cfg := DefaultConfig()
	if rc := Remote(cfg); rc.Driver != remote.DriverNone || rc.Timeout != 10*time.Second {
		t.Fatalf("empty config = %+v", rc)
	}

	cfg.Backend.URL = "http://file"
	if rc := Remote(cfg); rc.Driver != remote.DriverREST {
		t.Fatalf("url config driver = %q", rc.Driver)
	}

	t.Setenv(EnvDatabaseURL, "postgres://env")
	rc := Remote(cfg)
	if rc.Driver != remote.DriverPostgres || rc.DSN != "postgres://env" {
		t.Fatalf("env dsn = %+v", rc)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Backend.APIKey = "from-file"

	t.Setenv(EnvAPIKey, "")
	if got := APIKey(cfg); got != "from-file" {
		t.Fatalf("APIKey = %q", got)
	}
	t.Setenv(EnvAPIKey, "from-env")
	if got := APIKey(cfg); got != "from-env" {
		t.Fatalf("APIKey = %q", got)
	}
}

func TestLoadEnvFromConfigDir(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	chdir(t, t.TempDir())
	t.Setenv(EnvAPIURL, "")
	os.Unsetenv(EnvAPIURL)

	if err := os.MkdirAll(ConfigDir(), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(ConfigDir(), ".env"), []byte(EnvAPIURL+"=https://dotenv.example\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	LoadEnv()
	if got := APIURL(DefaultConfig()); got != "https://dotenv.example" {
		t.Fatalf("APIURL = %q", got)
	}
}

// chdir stands in for t.Chdir (Go 1.24+): it restores the working directory when the test ends.
func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(old) })
}
