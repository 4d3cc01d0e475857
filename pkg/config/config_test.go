package config

import (
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func envMap(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestDefaults(t *testing.T) {
	cfg, err := FromEnv(envMap(nil))
	if err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
	if cfg.Port != "8000" || cfg.DataDir != "data" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.FetchTimeout != 15*time.Second || cfg.FetchAttempts != 3 || cfg.SpeculativeCandidates != 1 {
		t.Fatalf("unexpected fetch defaults: %+v", cfg)
	}
	if cfg.RequestTimeout != 90*time.Second {
		t.Fatalf("unexpected request timeout %v", cfg.RequestTimeout)
	}
	if cfg.AuditCSV != filepath.Join("data", "part_logs.csv") {
		t.Fatalf("unexpected audit path %q", cfg.AuditCSV)
	}
	if cfg.CatalogPath() != filepath.Join("data", "catalog.json") {
		t.Fatalf("unexpected catalog path %q", cfg.CatalogPath())
	}
	if cfg.ScrapeCachePath() != filepath.Join("data", "scrape_cache.json") {
		t.Fatalf("unexpected cache path %q", cfg.ScrapeCachePath())
	}
	if cfg.SlogLevel() != slog.LevelInfo {
		t.Fatalf("expected info level, got %v", cfg.SlogLevel())
	}
}

func TestOverrides(t *testing.T) {
	cfg, err := FromEnv(envMap(map[string]string{
		"PORT":                   "9090",
		"DATA_DIR":               "/var/lib/parts",
		"PRIMARY_BASE_URL":       "http://127.0.0.1:8081/",
		"FETCH_TIMEOUT":          "2s",
		"SPECULATIVE_CANDIDATES": "3",
		"REDIS_ADDR":             "localhost:6379",
		"LOG_LEVEL":              "DEBUG",
	}))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.PrimaryBaseURL != "http://127.0.0.1:8081" {
		t.Fatalf("trailing slash should be trimmed, got %q", cfg.PrimaryBaseURL)
	}
	if cfg.AuditCSV != filepath.Join("/var/lib/parts", "part_logs.csv") {
		t.Fatalf("audit path should follow DATA_DIR, got %q", cfg.AuditCSV)
	}
	if cfg.FetchTimeout != 2*time.Second || cfg.SpeculativeCandidates != 3 {
		t.Fatalf("unexpected: %+v", cfg)
	}
	if cfg.SlogLevel() != slog.LevelDebug {
		t.Fatalf("expected debug, got %v", cfg.SlogLevel())
	}
}

func TestInvalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"bad duration", map[string]string{"FETCH_TIMEOUT": "soon"}, "FETCH_TIMEOUT"},
		{"bad int", map[string]string{"FETCH_ATTEMPTS": "many"}, "FETCH_ATTEMPTS"},
		{"zero request timeout", map[string]string{"REQUEST_TIMEOUT": "0s"}, "RequestTimeout"},
		{"zero attempts", map[string]string{"FETCH_ATTEMPTS": "0"}, "FetchAttempts"},
		{"bad url", map[string]string{"PRIMARY_BASE_URL": "not a url"}, "PrimaryBaseURL"},
		{"bad redis", map[string]string{"REDIS_ADDR": "localhost"}, "RedisAddr"},
		{"bad level", map[string]string{"LOG_LEVEL": "loud"}, "LogLevel"},
		{"bad port", map[string]string{"PORT": "http"}, "Port"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromEnv(envMap(tt.env))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("error %q should mention %q", err, tt.want)
			}
		})
	}
}
