package main

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/WessleyAI/wessley-parts/engine/domain"
)

type stubPricer struct {
	inFlight, peak atomic.Int32
}

func (s *stubPricer) ResolveAndPrice(ctx context.Context, q string) (domain.Result, error) {
	n := s.inFlight.Add(1)
	defer s.inFlight.Add(-1)
	for {
		p := s.peak.Load()
		if n <= p || s.peak.CompareAndSwap(p, n) {
			break
		}
	}
	time.Sleep(10 * time.Millisecond)
	if _, err := domain.ValidateQuery(q); err != nil {
		return domain.Result{}, err
	}
	return domain.Result{ResolvedOEM: strings.ToUpper(q)}, nil
}

func TestPriceAllKeepsOrderAndBounds(t *testing.T) {
	s := &stubPricer{}
	queries := []string{"a1", "b2", "c3", "d4", "e5"}

	lines, err := priceAll(context.Background(), s, queries, 2)
	if err != nil {
		t.Fatal(err)
	}
	for i, l := range lines {
		if l.Query != queries[i] || l.Result == nil || l.Result.ResolvedOEM != strings.ToUpper(queries[i]) {
			t.Fatalf("line %d = %+v", i, l)
		}
	}
	if p := s.peak.Load(); p > 2 {
		t.Fatalf("peak concurrency %d, want <= 2", p)
	}
}

func TestPriceAllReportsPerQueryErrors(t *testing.T) {
	lines, err := priceAll(context.Background(), &stubPricer{}, []string{"ok", "   "}, 1)
	if err != nil {
		t.Fatalf("a bad query must not stop the batch: %v", err)
	}
	if lines[0].Result == nil || lines[1].Error == "" || lines[1].Result != nil {
		t.Fatalf("lines = %+v", lines)
	}
}

func TestPriceAllCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	lines, err := priceAll(ctx, &stubPricer{}, []string{"a", "b"}, 1)
	if err == nil {
		t.Fatal("expected cancellation error")
	}
	if len(lines) != 2 || lines[1].Query != "b" {
		t.Fatalf("lines = %+v", lines)
	}
}

func TestReadQueries(t *testing.T) {
	got, err := readQueries(strings.NewReader("bmw f30 radiator\n\n  audi a4 control arm  \n"))
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[1] != "audi a4 control arm" {
		t.Fatalf("got %q", got)
	}
}

func TestWriteLines(t *testing.T) {
	var buf bytes.Buffer
	lines := []Line{{Query: "x", Error: "empty query"}, {Query: "y", Result: &domain.Result{ResolvedOEM: "Y"}}}
	if err := writeLines(&buf, lines, false); err != nil {
		t.Fatal(err)
	}
	dec := json.NewDecoder(&buf)
	var n int
	for dec.More() {
		var l Line
		if err := dec.Decode(&l); err != nil {
			t.Fatal(err)
		}
		n++
	}
	if n != 2 {
		t.Fatalf("decoded %d lines", n)
	}
}
