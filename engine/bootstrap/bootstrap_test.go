package bootstrap

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/WessleyAI/wessley-parts/engine/domain"
	"github.com/WessleyAI/wessley-parts/pkg/config"
)

func testConfig(t *testing.T, env map[string]string) config.Config {
	t.Helper()
	env["DATA_DIR"] = t.TempDir()
	cfg, err := config.FromEnv(func(k string) string { return env[k] })
	if err != nil {
		t.Fatal(err)
	}
	return cfg
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewWithoutBackends(t *testing.T) {
	app, err := New(context.Background(), testConfig(t, map[string]string{}), quietLogger())
	if err != nil {
		t.Fatal(err)
	}
	defer app.Close(context.Background())

	if app.Engine == nil || app.Metrics == nil || app.Data == nil {
		t.Fatalf("incomplete app: %+v", app)
	}
	breakers := app.Breakers()
	if len(breakers) != 2 || breakers[domain.SourcePrimary] != "closed" || breakers[domain.SourceSecondary] != "closed" {
		t.Fatalf("breakers = %v", breakers)
	}
	if len(app.closers) != 0 {
		t.Fatalf("expected no connections, got %d", len(app.closers))
	}
}

func TestNewRejectsUnreachableRedis(t *testing.T) {
	cfg := testConfig(t, map[string]string{"REDIS_ADDR": "127.0.0.1:1"})
	if _, err := New(context.Background(), cfg, quietLogger()); err == nil {
		t.Fatal("expected redis error")
	}
}

func TestNewRejectsMissingReferenceFile(t *testing.T) {
	cfg := testConfig(t, map[string]string{"TAXONOMY_PATH": "/does/not/exist.yaml"})
	if _, err := New(context.Background(), cfg, quietLogger()); err == nil {
		t.Fatal("expected reference data error")
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	app := &App{}
	calls := 0
	app.closers = append(app.closers, func(context.Context) error { calls++; return nil })
	if err := app.Close(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := app.Close(context.Background()); err != nil {
		t.Fatal(err)
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
}
