package catalog

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/WessleyAI/wessley-parts/engine/refdata"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestCatalog(t *testing.T, opts ...Option) (*Catalog, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data", "catalog.json")
	opts = append([]Option{WithLogger(quietLogger())}, opts...)
	return NewCatalog(path, opts...), path
}

func TestKnownOEMsEmptyKey(t *testing.T) {
	c, _ := newTestCatalog(t)
	for _, k := range [][3]string{{"", "F30", "radiator"}, {"BMW", "", "radiator"}, {"BMW", "F30", ""}} {
		if got := c.KnownOEMs(k[0], k[1], k[2]); got != nil {
			t.Fatalf("%v: expected nil, got %v", k, got)
		}
	}
}

func TestMissingDocumentIsCreated(t *testing.T) {
	c, path := newTestCatalog(t)
	if got := c.KnownOEMs("BMW", "F30", "radiator"); len(got) != 0 {
		t.Fatalf("expected empty, got %v", got)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("document should be created: %v", err)
	}
	if string(raw) != "{}\n" {
		t.Fatalf("expected empty object, got %q", raw)
	}
}

func TestSaveOEMIdempotent(t *testing.T) {
	c, _ := newTestCatalog(t)
	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if err := c.SaveOEM(ctx, "BMW", "F30", "oil filter housing", "11428576524"); err != nil {
			t.Fatal(err)
		}
	}
	if err := c.SaveOEM(ctx, "BMW", "F30", "oil filter housing", "11428506797"); err != nil {
		t.Fatal(err)
	}
	if err := c.SaveOEM(ctx, "BMW", "F30", "oil filter housing", "11428576524"); err != nil {
		t.Fatal(err)
	}
	got := c.KnownOEMs("BMW", "F30", "oil filter housing")
	want := []string{"11428576524", "11428506797"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestSaveOEMIgnoresEmptyArgs(t *testing.T) {
	c, path := newTestCatalog(t)
	if err := c.SaveOEM(context.Background(), "BMW", "", "radiator", "X"); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatal("no-op save should not touch the document")
	}
}

func TestKnownOEMsMergesBase(t *testing.T) {
	var details refdata.Ordered[[]string]
	details.Set("radiator", []string{"17117600520", "17118642240"})
	var models refdata.Ordered[refdata.Ordered[[]string]]
	models.Set("F30", details)
	var base refdata.Tree
	base.Set("BMW", models)

	c, _ := newTestCatalog(t, WithBase(base))
	ctx := context.Background()
	_ = c.SaveOEM(ctx, "BMW", "F30", "radiator", "17118642240")
	_ = c.SaveOEM(ctx, "BMW", "F30", "radiator", "17117573781")

	got := c.KnownOEMs("BMW", "F30", "radiator")
	want := []string{"17117600520", "17118642240", "17117573781"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestCorruptDocumentRecovers(t *testing.T) {
	c, path := newTestCatalog(t)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if got := c.KnownOEMs("BMW", "F30", "radiator"); len(got) != 0 {
		t.Fatalf("corrupt document should read as empty, got %v", got)
	}
	if err := c.SaveOEM(context.Background(), "BMW", "F30", "radiator", "X1"); err != nil {
		t.Fatal(err)
	}
	if got := c.KnownOEMs("BMW", "F30", "radiator"); !reflect.DeepEqual(got, []string{"X1"}) {
		t.Fatalf("save should replace the corrupt document, got %v", got)
	}
}

type recordingMirror struct {
	calls [][4]string
	err   error
}

func (m *recordingMirror) RecordOEM(_ context.Context, mk, model, detail, oem string) error {
	m.calls = append(m.calls, [4]string{mk, model, detail, oem})
	return m.err
}

func TestMirrorSeesNewOEMsOnly(t *testing.T) {
	m := &recordingMirror{err: errors.New("neo4j down")}
	c, _ := newTestCatalog(t, WithMirror(m))
	ctx := context.Background()
	if err := c.SaveOEM(ctx, "Audi", "A4", "radiator", "8K0121251L"); err != nil {
		t.Fatalf("mirror failure must not fail the save: %v", err)
	}
	_ = c.SaveOEM(ctx, "Audi", "A4", "radiator", "8K0121251L")
	if len(m.calls) != 1 || m.calls[0][3] != "8K0121251L" {
		t.Fatalf("unexpected mirror calls: %v", m.calls)
	}
}
