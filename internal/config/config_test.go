package config

import (
	"slices"
	"strings"
	"testing"
	"time"
)

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(NewViper())
	if err != nil {
		t.Fatalf("unexpected load error: %v", err)
	}
	if cfg.HTTPAddress != defaultHTTPAddress || cfg.DatabaseDriver != "sqlite" || cfg.DatabasePath != defaultDatabasePath {
		t.Fatalf("unexpected defaults %#v", cfg)
	}
	if !slices.Equal(cfg.CORSOrigins, defaultCORSOrigins) {
		t.Fatalf("unexpected default origins %v", cfg.CORSOrigins)
	}
	if cfg.AuthEnabled() {
		t.Fatalf("expected auth to be disabled without a signing secret")
	}
	if cfg.AuthTokenTTL != 12*time.Hour {
		t.Fatalf("unexpected token ttl %s", cfg.AuthTokenTTL)
	}
}

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv("GANTT_HTTP_CORS_ORIGINS", "https://a.example.com, https://b.example.com")
	t.Setenv("GANTT_DATABASE_DRIVER", "MySQL")
	t.Setenv("GANTT_DATABASE_DSN", "user:pass@tcp(localhost:3306)/gantt")
	t.Setenv("GANTT_AUTH_SIGNING_SECRET", "secret")

	cfg, err := Load(NewViper())
	if err != nil {
		t.Fatalf("unexpected load error: %v", err)
	}
	if cfg.DatabaseDriver != "mysql" || cfg.DatabaseDSN == "" {
		t.Fatalf("unexpected database config %#v", cfg)
	}
	if !slices.Equal(cfg.CORSOrigins, []string{"https://a.example.com", "https://b.example.com"}) {
		t.Fatalf("unexpected origins %v", cfg.CORSOrigins)
	}
	if !cfg.AuthEnabled() {
		t.Fatalf("expected auth to be enabled")
	}
}

func TestLoadRejectsInvalidConfiguration(t *testing.T) {
	testCases := []struct {
		name    string
		key     string
		value   any
		message string
	}{
		{name: "unknown driver", key: "database.driver", value: "postgres", message: "not supported"},
		{name: "mysql without dsn", key: "database.driver", value: "mysql", message: "database.dsn"},
		{name: "empty sqlite path", key: "database.path", value: " ", message: "database.path"},
	}
	for _, testCase := range testCases {
		configViper := NewViper()
		configViper.Set(testCase.key, testCase.value)
		_, err := Load(configViper)
		if err == nil || !strings.Contains(err.Error(), testCase.message) {
			t.Fatalf("%s: expected error mentioning %q, got %v", testCase.name, testCase.message, err)
		}
	}

	configViper := NewViper()
	configViper.Set("auth.signing_secret", "secret")
	configViper.Set("auth.token_ttl_minutes", 0)
	if _, err := Load(configViper); err == nil {
		t.Fatalf("expected error for non-positive token ttl")
	}
}
