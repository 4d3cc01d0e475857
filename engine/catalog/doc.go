// Package catalog persists what the engine learns: the catalog of OEMs
// confirmed per vehicle context, and a seven-day cache of scraped prices per
// OEM. Both are whole JSON documents rewritten on every mutation; each store
// serializes its own reads and writes.
package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
)

// loadDoc reads the JSON document at path. A missing file is created holding
// an empty object. An unreadable or corrupt document yields the zero value.
func loadDoc[T any](path string, logger *slog.Logger) T {
	var doc T
	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		if err := writeRaw(path, []byte("{}\n")); err != nil {
			logger.Warn("create document failed", "path", path, "err", err)
		}
		return doc
	}
	if err != nil {
		logger.Warn("read document failed, using empty", "path", path, "err", err)
		return doc
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		logger.Warn("corrupt document, using empty", "path", path, "err", err)
		var zero T
		return zero
	}
	return doc
}

// saveDoc replaces the document at path with v.
func saveDoc(path string, v any) error {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return writeRaw(path, append(raw, '\n'))
}

// writeRaw writes through a temp file and rename so readers never see a
// partial document.
func writeRaw(path string, raw []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
