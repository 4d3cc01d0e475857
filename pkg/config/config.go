// Package config loads service configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Config holds all environment-based configuration.
type Config struct {
	Port    string `validate:"required,numeric"`
	DataDir string `validate:"required"`
	// RequestTimeout bounds one part request, scraping included.
	RequestTimeout time.Duration `validate:"gt=0"`

	// Reference data. Empty paths use the embedded defaults.
	TaxonomyPath      string
	LookupPath        string
	StaticCatalogPath string
	ReferencePath     string

	PrimaryBaseURL        string        `validate:"required,http_url"`
	SecondaryBaseURL      string        `validate:"required,http_url"`
	FetchTimeout          time.Duration `validate:"gt=0"`
	FetchAttempts         int           `validate:"min=1,max=10"`
	FetchRPS              float64       `validate:"gte=0"`
	SpeculativeCandidates int           `validate:"min=1,max=16"`

	// Optional backends. Empty disables them.
	RedisAddr    string `validate:"omitempty,hostname_port"`
	NATSURL      string `validate:"omitempty,url"`
	AuditSubject string `validate:"required_with=NATSURL"`
	AuditCSV     string
	Neo4jURL     string `validate:"omitempty,url"`
	Neo4jUser    string
	Neo4jPass    string

	CORSOrigin string `validate:"required"`
	LogLevel   string `validate:"oneof=debug info warn error"`
}

// Load reads .env (if present) and the process environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds and validates a Config using getenv for lookups.
func FromEnv(getenv func(string) string) (Config, error) {
	env := func(key, fallback string) string {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			return v
		}
		return fallback
	}

	var errs []error
	dataDir := env("DATA_DIR", "data")
	cfg := Config{
		Port:              env("PORT", "8000"),
		DataDir:           dataDir,
		TaxonomyPath:      env("TAXONOMY_PATH", ""),
		LookupPath:        env("LOOKUP_PATH", ""),
		StaticCatalogPath: env("STATIC_CATALOG_PATH", ""),
		ReferencePath:     env("REFERENCE_PATH", ""),
		PrimaryBaseURL:    strings.TrimRight(env("PRIMARY_BASE_URL", "https://rrr.lt"), "/"),
		SecondaryBaseURL:  strings.TrimRight(env("SECONDARY_BASE_URL", "https://www.ebay.de"), "/"),
		RedisAddr:         env("REDIS_ADDR", ""),
		NATSURL:           env("NATS_URL", ""),
		AuditSubject:      env("AUDIT_SUBJECT", "parts.priced"),
		AuditCSV:          env("AUDIT_CSV", filepath.Join(dataDir, "part_logs.csv")),
		Neo4jURL:          env("NEO4J_URL", ""),
		Neo4jUser:         env("NEO4J_USER", "neo4j"),
		Neo4jPass:         env("NEO4J_PASS", "password"),
		CORSOrigin:        env("CORS_ORIGIN", "*"),
		LogLevel:          strings.ToLower(env("LOG_LEVEL", "info")),
	}

	var err error
	if cfg.RequestTimeout, err = time.ParseDuration(env("REQUEST_TIMEOUT", "90s")); err != nil {
		errs = append(errs, fmt.Errorf("REQUEST_TIMEOUT: %w", err))
	}
	if cfg.FetchTimeout, err = time.ParseDuration(env("FETCH_TIMEOUT", "15s")); err != nil {
		errs = append(errs, fmt.Errorf("FETCH_TIMEOUT: %w", err))
	}
	if cfg.FetchAttempts, err = strconv.Atoi(env("FETCH_ATTEMPTS", "3")); err != nil {
		errs = append(errs, fmt.Errorf("FETCH_ATTEMPTS: %w", err))
	}
	if cfg.FetchRPS, err = strconv.ParseFloat(env("FETCH_RPS", "2"), 64); err != nil {
		errs = append(errs, fmt.Errorf("FETCH_RPS: %w", err))
	}
	if cfg.SpeculativeCandidates, err = strconv.Atoi(env("SPECULATIVE_CANDIDATES", "1")); err != nil {
		errs = append(errs, fmt.Errorf("SPECULATIVE_CANDIDATES: %w", err))
	}
	if len(errs) > 0 {
		return Config{}, errors.Join(errs...)
	}

	if err := validate.Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// SlogLevel maps LogLevel to a slog.Level.
func (c Config) SlogLevel() slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return l
}

// CatalogPath is the learned catalog document.
func (c Config) CatalogPath() string { return filepath.Join(c.DataDir, "catalog.json") }

// ScrapeCachePath is the file-backed scrape cache document.
func (c Config) ScrapeCachePath() string { return filepath.Join(c.DataDir, "scrape_cache.json") }
