package config

import (
	"testing"
	"time"
)

func TestParseLifetime(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  time.Duration
	}{
		{"seconds", "45s", 45 * time.Second},
		{"minutes", "15m", 15 * time.Minute},
		{"hours", "2h", 2 * time.Hour},
		{"days", "7d", 7 * 24 * time.Hour},
		{"extended days", "30d", 30 * 24 * time.Hour},
		{"unknown unit falls back", "15w", DefaultTokenLifetime},
		{"no unit falls back", "900", DefaultTokenLifetime},
		{"empty falls back", "", DefaultTokenLifetime},
		{"garbage falls back", "abc", DefaultTokenLifetime},
		{"negative falls back", "-5m", DefaultTokenLifetime},
		{"whitespace tolerated", " 10m ", 10 * time.Minute},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ParseLifetime(tc.input); got != tc.want {
				t.Fatalf("ParseLifetime(%q) = %v, want %v", tc.input, got, tc.want)
			}
		})
	}
}

func TestJWTSettingsLifetimes(t *testing.T) {
	settings := JWTSettings{
		AccessTokenTTL:     "15m",
		RefreshTokenTTL:    "7d",
		ExtendedRefreshTTL: "30d",
	}

	if got := settings.AccessTokenLifetime(); got != 15*time.Minute {
		t.Fatalf("access lifetime = %v", got)
	}
	if got := settings.RefreshTokenLifetime(false); got != 7*24*time.Hour {
		t.Fatalf("refresh lifetime = %v", got)
	}
	if got := settings.RefreshTokenLifetime(true); got != 30*24*time.Hour {
		t.Fatalf("extended refresh lifetime = %v", got)
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.App.Name != "pns-auth" {
		t.Fatalf("unexpected app name %q", cfg.App.Name)
	}
	if cfg.JWT.AccessTokenTTL != "15m" {
		t.Fatalf("unexpected access ttl %q", cfg.JWT.AccessTokenTTL)
	}
	if cfg.RateLimit.LoginMaxAttempts != 5 {
		t.Fatalf("unexpected login max attempts %d", cfg.RateLimit.LoginMaxAttempts)
	}
	if cfg.Maintenance.PurgeInterval != time.Hour {
		t.Fatalf("unexpected purge interval %v", cfg.Maintenance.PurgeInterval)
	}
}
