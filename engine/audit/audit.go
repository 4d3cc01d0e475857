// Package audit records one entry per priced request.
package audit

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/google/uuid"
)

// Record summarizes the prices behind one final price.
type Record struct {
	ID         uuid.UUID `json:"id"`
	Timestamp  time.Time `json:"timestamp"`
	Identifier string    `json:"identifier"`
	Min        float64   `json:"min"`
	Max        float64   `json:"max"`
	Avg        float64   `json:"avg"`
	Final      float64   `json:"final"`
	Count      int       `json:"count"`
}

// NewRecord builds a Record for identifier, the resolved OEM or the raw
// query. prices must not be empty.
func NewRecord(identifier string, prices []float64, final float64, now time.Time) Record {
	var sum float64
	for _, p := range prices {
		sum += p
	}
	return Record{
		ID:         uuid.New(),
		Timestamp:  now.UTC(),
		Identifier: identifier,
		Min:        slices.Min(prices),
		Max:        slices.Max(prices),
		Avg:        sum / float64(len(prices)),
		Final:      final,
		Count:      len(prices),
	}
}

// Sink accepts audit records.
type Sink interface {
	Record(ctx context.Context, r Record) error
}

// Nop discards records.
type Nop struct{}

func (Nop) Record(context.Context, Record) error { return nil }

// Multi fans a record out to every sink and joins their errors.
type Multi []Sink

func (m Multi) Record(ctx context.Context, r Record) error {
	var errs []error
	for _, s := range m {
		if err := s.Record(ctx, r); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
