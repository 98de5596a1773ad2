// Package config resolves client configuration from the environment.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"
)

const envPrefix = "PIPEWATCH_"

// Config carries everything the client stack needs at construction time.
type Config struct {
	// BaseURL is the root of the PipeWatch API.
	BaseURL string
	// RequestTimeout bounds each HTTP exchange.
	RequestTimeout time.Duration
	// CredentialsPath is the persistent ("remember me") credential file.
	CredentialsPath string
	// SealPassphrase, when non-empty, seals the credential file at rest.
	SealPassphrase string
	// RefreshSkew is how long before expiry a token counts as lapsed.
	RefreshSkew time.Duration
	// RefreshInterval is the auto-refresh poll interval.
	RefreshInterval time.Duration
}

// FromEnv reads PIPEWATCH_* variables, falling back to defaults.
func FromEnv() Config {
	return Config{
		BaseURL:         stringEnv("API_URL", "http://localhost:8080"),
		RequestTimeout:  durationEnv("TIMEOUT", 15*time.Second),
		CredentialsPath: stringEnv("CREDENTIALS_FILE", defaultCredentialsPath()),
		SealPassphrase:  os.Getenv(envPrefix + "SEAL_PASSPHRASE"),
		RefreshSkew:     durationEnv("REFRESH_SKEW", 10*time.Second),
		RefreshInterval: durationEnv("REFRESH_INTERVAL", time.Minute),
	}
}

func defaultCredentialsPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".pipewatch", "credentials.json")
	}
	return filepath.Join(home, ".pipewatch", "credentials.json")
}

func stringEnv(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(envPrefix + key))
	if v == "" {
		return fallback
	}
	return v
}

func durationEnv(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(envPrefix + key))
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
