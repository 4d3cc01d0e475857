package audit

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"
)

var csvHeader = []string{"timestamp", "part_number", "min_price", "max_price", "avg_price", "final_price", "count", "id"}

// CSVSink appends records to a CSV file, writing the header when the file is
// new or empty.
type CSVSink struct {
	path string
	mu   sync.Mutex
}

// NewCSVSink creates a sink writing to path. The file is created on first use.
func NewCSVSink(path string) *CSVSink {
	return &CSVSink{path: path}
}

func (s *CSVSink) Record(_ context.Context, r Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("audit csv: %w", err)
	}
	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("audit csv: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("audit csv: %w", err)
	}
	w := csv.NewWriter(f)
	if info.Size() == 0 {
		if err := w.Write(csvHeader); err != nil {
			return fmt.Errorf("audit csv header: %w", err)
		}
	}
	if err := w.Write(row(r)); err != nil {
		return fmt.Errorf("audit csv row: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("audit csv flush: %w", err)
	}
	return nil
}

func row(r Record) []string {
	return []string{
		r.Timestamp.UTC().Format(time.RFC3339),
		r.Identifier,
		formatFloat(r.Min),
		formatFloat(r.Max),
		formatFloat(r.Avg),
		formatFloat(r.Final),
		strconv.Itoa(r.Count),
		r.ID.String(),
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
