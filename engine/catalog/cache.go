package catalog

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/WessleyAI/wessley-parts/engine/domain"
)

// TTL is how long a scrape snapshot stays valid.
const TTL = 7 * 24 * time.Hour

// Cache stores the last scrape of each OEM.
type Cache interface {
	// Get returns a snapshot younger than TTL. Absent, expired, empty, or
	// unparseable entries are misses.
	Get(ctx context.Context, oem string) (domain.Snapshot, bool)
	// Put overwrites the snapshot for oem, stamped now. Empty oem is a no-op.
	Put(ctx context.Context, oem string, prices []float64, image string) error
}

// cacheEntry is the stored form of a snapshot.
type cacheEntry struct {
	Prices    []float64 `json:"prices"`
	Image     string    `json:"image"`
	Timestamp string    `json:"timestamp"`
}

// Stored timestamps are RFC 3339. Older documents carry naive UTC times
// with optional fractional seconds.
var timestampLayouts = []string{time.RFC3339, "2006-01-02T15:04:05"}

func parseTimestamp(s string) (time.Time, bool) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func (e cacheEntry) snapshot(now time.Time) (domain.Snapshot, bool) {
	if len(e.Prices) == 0 {
		return domain.Snapshot{}, false
	}
	ts, ok := parseTimestamp(e.Timestamp)
	if !ok || now.Sub(ts) > TTL {
		return domain.Snapshot{}, false
	}
	return domain.Snapshot{Prices: e.Prices, Image: e.Image, Timestamp: ts}, true
}

func newEntry(prices []float64, image string, now time.Time) cacheEntry {
	return cacheEntry{
		Prices:    append([]float64(nil), prices...),
		Image:     image,
		Timestamp: now.UTC().Format(time.RFC3339Nano),
	}
}

// FileCache keeps snapshots in one JSON document keyed by OEM.
type FileCache struct {
	mu     sync.Mutex
	path   string
	now    func() time.Time
	logger *slog.Logger
}

// NewFileCache opens the cache document at path. logger may be nil.
func NewFileCache(path string, logger *slog.Logger) *FileCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileCache{path: path, now: time.Now, logger: logger}
}

// Entries are decoded one at a time, so a malformed entry misses alone and
// never costs its siblings.
func (c *FileCache) Get(_ context.Context, oem string) (domain.Snapshot, bool) {
	c.mu.Lock()
	doc := loadDoc[map[string]json.RawMessage](c.path, c.logger)
	c.mu.Unlock()

	raw, ok := doc[oem]
	if !ok {
		return domain.Snapshot{}, false
	}
	var e cacheEntry
	if err := json.Unmarshal(raw, &e); err != nil {
		c.logger.Debug("malformed cache entry", "oem", oem, "err", err)
		return domain.Snapshot{}, false
	}
	return e.snapshot(c.now())
}

func (c *FileCache) Put(_ context.Context, oem string, prices []float64, image string) error {
	if oem == "" {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	doc := loadDoc[map[string]json.RawMessage](c.path, c.logger)
	if doc == nil {
		doc = map[string]json.RawMessage{}
	}
	raw, err := json.Marshal(newEntry(prices, image, c.now()))
	if err != nil {
		return err
	}
	doc[oem] = raw
	return saveDoc(c.path, doc)
}
