package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	t.Setenv(EnvAPIBaseURL, "")
	path := filepath.Join(t.TempDir(), "config.yaml")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.NotificationDuration != 3*time.Second {
		t.Fatalf("expected 3s notification duration, got %s", cfg.NotificationDuration)
	}
	if cfg.Auth.RedirectPort != 6789 {
		t.Fatalf("expected default redirect port, got %d", cfg.Auth.RedirectPort)
	}
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected missing base url to fail validation")
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	t.Setenv(EnvAPIBaseURL, "")
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := Default()
	cfg.APIBaseURL = "https://api.example.com/prod"
	cfg.BackendScoped = true
	cfg.Auth.ClientID = "client"
	cfg.Auth.AuthURL = "https://auth.example.com/oauth2/authorize"
	cfg.Auth.TokenURL = "https://auth.example.com/oauth2/token"
	if err := Save(path, cfg); err != nil {
		t.Fatalf("save: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Fatalf("expected 0600 config file, got %v", info.Mode().Perm())
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.APIBaseURL != cfg.APIBaseURL || !loaded.BackendScoped {
		t.Fatalf("unexpected loaded config %+v", loaded)
	}
	if !loaded.AuthConfigured() {
		t.Fatalf("expected auth to be configured")
	}
	if loaded.RequestTimeout != 30*time.Second {
		t.Fatalf("expected request timeout to survive round trip, got %s", loaded.RequestTimeout)
	}
}

func TestLoadParsesDurationsAndEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte("api_base_url: https://file.example.com/\nnotification_duration: 5s\nlog:\n  level: debug\n")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	t.Setenv(EnvAPIBaseURL, "https://env.example.com/")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.NotificationDuration != 5*time.Second {
		t.Fatalf("expected 5s, got %s", cfg.NotificationDuration)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "json" {
		t.Fatalf("expected partial log block to keep defaults, got %+v", cfg.Log)
	}

	cfg.Resolve(path)
	if cfg.APIBaseURL != "https://env.example.com" {
		t.Fatalf("expected env override without trailing slash, got %q", cfg.APIBaseURL)
	}
	if cfg.DBPath != filepath.Join(filepath.Dir(path), "taskflow.db") {
		t.Fatalf("unexpected db path %q", cfg.DBPath)
	}
}
