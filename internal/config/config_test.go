package config

import (
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg := FromEnv()
	if cfg.BaseURL != "http://localhost:8080" {
		t.Fatalf("unexpected default base URL: %s", cfg.BaseURL)
	}
	if cfg.RequestTimeout != 15*time.Second {
		t.Fatalf("unexpected default timeout: %v", cfg.RequestTimeout)
	}
	if cfg.CredentialsPath == "" {
		t.Fatalf("credentials path must have a default")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("PIPEWATCH_API_URL", "https://api.example.com")
	t.Setenv("PIPEWATCH_TIMEOUT", "30s")
	t.Setenv("PIPEWATCH_CREDENTIALS_FILE", "/tmp/creds.json")

	cfg := FromEnv()
	if cfg.BaseURL != "https://api.example.com" {
		t.Fatalf("base URL override ignored: %s", cfg.BaseURL)
	}
	if cfg.RequestTimeout != 30*time.Second {
		t.Fatalf("timeout override ignored: %v", cfg.RequestTimeout)
	}
	if cfg.CredentialsPath != "/tmp/creds.json" {
		t.Fatalf("credentials path override ignored: %s", cfg.CredentialsPath)
	}
}

func TestBadDurationFallsBack(t *testing.T) {
	t.Setenv("PIPEWATCH_TIMEOUT", "soon")
	if cfg := FromEnv(); cfg.RequestTimeout != 15*time.Second {
		t.Fatalf("invalid duration should fall back: %v", cfg.RequestTimeout)
	}
}
