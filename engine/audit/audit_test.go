package audit

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
)

var fixedNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func TestNewRecord(t *testing.T) {
	r := NewRecord("11428576524", []float64{100, 120, 140}, 162, fixedNow)
	if r.Min != 100 || r.Max != 140 || r.Avg != 120 || r.Final != 162 || r.Count != 3 {
		t.Fatalf("unexpected record: %+v", r)
	}
	if r.ID == uuid.Nil {
		t.Fatal("expected an id")
	}
	if !r.Timestamp.Equal(fixedNow) {
		t.Fatalf("timestamp = %v", r.Timestamp)
	}
}

func TestCSVSinkWritesHeaderOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "part_logs.csv")
	s := NewCSVSink(path)
	ctx := context.Background()

	if err := s.Record(ctx, NewRecord("A1", []float64{10, 20}, 20.25, fixedNow)); err != nil {
		t.Fatal(err)
	}
	if err := s.Record(ctx, NewRecord("bmw f30 radiator", []float64{5}, 6.75, fixedNow)); err != nil {
		t.Fatal(err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 3 {
		t.Fatalf("got %d rows, want 3", len(rows))
	}
	if strings.Join(rows[0], ",") != "timestamp,part_number,min_price,max_price,avg_price,final_price,count,id" {
		t.Fatalf("header = %v", rows[0])
	}
	want := []string{"2025-03-01T12:00:00Z", "A1", "10", "20", "15", "20.25", "2"}
	for i, v := range want {
		if rows[1][i] != v {
			t.Fatalf("row 1 col %d = %q, want %q", i, rows[1][i], v)
		}
	}
	if rows[2][1] != "bmw f30 radiator" {
		t.Fatalf("row 2 = %v", rows[2])
	}
}

type capturePublisher struct {
	msgs []*nats.Msg
	err  error
}

func (c *capturePublisher) PublishMsg(m *nats.Msg) error {
	c.msgs = append(c.msgs, m)
	return c.err
}

func TestNATSSinkPublishes(t *testing.T) {
	pub := &capturePublisher{}
	s := NewNATSSink(pub, "")
	r := NewRecord("A1", []float64{10}, 13.5, fixedNow)

	if err := s.Record(context.Background(), r); err != nil {
		t.Fatal(err)
	}
	if len(pub.msgs) != 1 || pub.msgs[0].Subject != DefaultSubject {
		t.Fatalf("unexpected messages: %+v", pub.msgs)
	}
	var got Record
	if err := json.Unmarshal(pub.msgs[0].Data, &got); err != nil {
		t.Fatal(err)
	}
	if got.ID != r.ID || got.Final != 13.5 {
		t.Fatalf("got %+v", got)
	}
}

type failingSink struct{ err error }

func (f failingSink) Record(context.Context, Record) error { return f.err }

func TestMultiJoinsErrors(t *testing.T) {
	boom := errors.New("boom")
	pub := &capturePublisher{}
	m := Multi{failingSink{boom}, NewNATSSink(pub, "x"), Nop{}}

	err := m.Record(context.Background(), NewRecord("A1", []float64{1}, 1.35, fixedNow))
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if len(pub.msgs) != 1 {
		t.Fatal("later sinks must still run")
	}
}
