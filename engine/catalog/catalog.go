package catalog

import (
	"context"
	"log/slog"
	"slices"
	"sync"

	"github.com/WessleyAI/wessley-parts/engine/refdata"
)

// entries is make → model → detail → OEMs.
type entries map[string]map[string]map[string][]string

// Mirror receives every OEM newly appended to the catalog.
type Mirror interface {
	RecordOEM(ctx context.Context, mk, model, detail, oem string) error
}

// Catalog is the learned make → model → detail → OEM list. Lists only grow.
type Catalog struct {
	mu     sync.Mutex
	path   string
	base   refdata.Tree
	mirror Mirror
	logger *slog.Logger
}

// Option configures a Catalog.
type Option func(*Catalog)

// WithBase sets a static catalog whose entries precede persisted ones.
func WithBase(base refdata.Tree) Option { return func(c *Catalog) { c.base = base } }

// WithMirror forwards newly saved OEMs to m.
func WithMirror(m Mirror) Option { return func(c *Catalog) { c.mirror = m } }

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option { return func(c *Catalog) { c.logger = l } }

// NewCatalog opens the catalog document at path.
func NewCatalog(path string, opts ...Option) *Catalog {
	c := &Catalog{path: path}
	for _, o := range opts {
		o(c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c
}

// KnownOEMs returns the OEMs recorded for the exact key triple: static base
// entries first, then persisted entries not already listed. Any empty key
// yields nil.
func (c *Catalog) KnownOEMs(mk, model, detail string) []string {
	if mk == "" || model == "" || detail == "" {
		return nil
	}
	var out []string
	if models, ok := c.base.Get(mk); ok {
		if details, ok := models.Get(model); ok {
			if oems, ok := details.Get(detail); ok {
				out = append(out, oems...)
			}
		}
	}

	c.mu.Lock()
	doc := loadDoc[entries](c.path, c.logger)
	c.mu.Unlock()

	for _, oem := range doc[mk][model][detail] {
		if !slices.Contains(out, oem) {
			out = append(out, oem)
		}
	}
	return out
}

// SaveOEM appends oem under the key triple and persists the catalog. It is a
// no-op when any argument is empty or the OEM is already recorded.
func (c *Catalog) SaveOEM(ctx context.Context, mk, model, detail, oem string) error {
	if mk == "" || model == "" || detail == "" || oem == "" {
		return nil
	}

	c.mu.Lock()
	doc := loadDoc[entries](c.path, c.logger)
	if doc == nil {
		doc = entries{}
	}
	if doc[mk] == nil {
		doc[mk] = map[string]map[string][]string{}
	}
	if doc[mk][model] == nil {
		doc[mk][model] = map[string][]string{}
	}
	list := doc[mk][model][detail]
	if slices.Contains(list, oem) {
		c.mu.Unlock()
		return nil
	}
	doc[mk][model][detail] = append(list, oem)
	err := saveDoc(c.path, doc)
	c.mu.Unlock()
	if err != nil {
		return err
	}

	c.logger.Info("catalog learned oem", "make", mk, "model", model, "detail", detail, "oem", oem)
	if c.mirror != nil {
		if err := c.mirror.RecordOEM(ctx, mk, model, detail, oem); err != nil {
			c.logger.Warn("catalog mirror failed", "oem", oem, "err", err)
		}
	}
	return nil
}
