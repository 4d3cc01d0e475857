// Package resolver turns a vehicle context and raw query into ranked OEM
// candidates by merging several weighted evidence sources.
package resolver

import (
	"cmp"
	"context"
	"log/slog"
	"slices"
	"strings"

	"github.com/WessleyAI/wessley-parts/engine/domain"
	"github.com/WessleyAI/wessley-parts/engine/refdata"
	"github.com/WessleyAI/wessley-parts/pkg/fuzzy"
	"github.com/WessleyAI/wessley-parts/pkg/textnorm"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// Evidence weights. Fixed by source.
const (
	WeightRegex    = 95
	WeightLookup   = 90
	WeightCatalog  = 88
	WeightKnown    = 87
	WeightKeyword  = 85
	WeightPrefix   = 80
	WeightLiveScan = 70
)

// keywordRatio is the partial ratio a keyword must exceed to count as present.
const keywordRatio = 85

// maxScanKeywords bounds the tokens used for a live scan.
const maxScanKeywords = 3

// Known supplies OEMs already learned for a vehicle context.
type Known interface {
	KnownOEMs(mk, model, detail string) []string
}

// LiveScanner searches a marketplace by keyword and returns OEM-shaped
// strings found on the result page.
type LiveScanner interface {
	ScanOEMs(ctx context.Context, keyword string) []string
}

// Resolver ranks OEM candidates. It never fails: no evidence gives an empty
// list.
type Resolver struct {
	data    *refdata.Data
	known   Known
	scanner LiveScanner
	logger  *slog.Logger
}

// New creates a Resolver. known and scanner may be nil.
func New(data *refdata.Data, known Known, scanner LiveScanner, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{data: data, known: known, scanner: scanner, logger: logger}
}

// Resolve returns unique OEMs, highest confidence first.
func (r *Resolver) Resolve(ctx context.Context, vc domain.VehicleContext, raw string) []string {
	cands := r.Candidates(ctx, vc, raw)
	out := make([]string, len(cands))
	for i, c := range cands {
		out[i] = c.Value
	}
	return out
}

// Candidates returns deduplicated weighted candidates ordered by weight,
// first-seen first among equal weights.
func (r *Resolver) Candidates(ctx context.Context, vc domain.VehicleContext, raw string) []domain.Candidate {
	ctx, span := otel.Tracer("engine/resolver").Start(ctx, "resolver.candidates")
	defer span.End()

	var acc accumulator
	acc.add(lookupTable(r.data.Lookup, vc), WeightLookup)
	acc.add(lookupTable(r.data.Catalog, vc), WeightCatalog)
	if r.known != nil {
		acc.add(r.known.KnownOEMs(vc.Make, vc.Model, vc.Detail), WeightKnown)
	}

	norm := textnorm.Normalize(raw)
	acc.add(r.keywordOEMs(norm), WeightKeyword)
	acc.add(r.data.ExtractOEMs(raw+" "+norm), WeightRegex)
	acc.add(r.data.PrefixHints(norm), WeightPrefix)

	if acc.empty() && r.scanner != nil {
		for _, kw := range r.scanKeywords(norm) {
			if ctx.Err() != nil {
				break
			}
			acc.add(r.scanner.ScanOEMs(ctx, kw), WeightLiveScan)
		}
	}

	out := acc.ranked()
	span.SetAttributes(attribute.Int("resolver.candidates", len(out)))
	r.logger.Debug("oem candidates", "make", vc.Make, "model", vc.Model, "detail", vc.Detail, "count", len(out))
	return out
}

// lookupTable walks make → model → detail through best-key matching. Each
// level keys off the matched table key, not the input.
func lookupTable(t refdata.Tree, vc domain.VehicleContext) []string {
	mk, ok := fuzzy.BestKey(t.Keys(), vc.Make)
	if !ok {
		return nil
	}
	models, _ := t.Get(mk)
	model, ok := fuzzy.BestKey(models.Keys(), vc.Model)
	if !ok {
		return nil
	}
	details, _ := models.Get(model)
	detail, ok := fuzzy.BestKey(details.Keys(), vc.Detail)
	if !ok {
		return nil
	}
	oems, _ := details.Get(detail)
	return oems
}

func (r *Resolver) keywordOEMs(norm string) []string {
	var out []string
	r.data.Keywords.Each(func(kw string, oems []string) bool {
		if strings.Contains(norm, kw) || fuzzy.PartialRatio(kw, norm) > keywordRatio {
			out = append(out, oems...)
		}
		return true
	})
	return out
}

func (r *Resolver) scanKeywords(norm string) []string {
	var out []string
	for _, tok := range strings.Fields(norm) {
		if len(out) == maxScanKeywords {
			break
		}
		if r.data.IsStopword(tok) || len([]rune(tok)) <= 2 {
			continue
		}
		out = append(out, tok)
	}
	return out
}

type scored struct {
	value  string
	weight int
}

// accumulator collects (candidate, weight) pairs in arrival order.
type accumulator struct {
	items []scored
}

func (a *accumulator) add(values []string, weight int) {
	for _, v := range values {
		v = strings.ToUpper(strings.TrimSpace(v))
		if v == "" {
			continue
		}
		a.items = append(a.items, scored{value: v, weight: weight})
	}
}

func (a *accumulator) empty() bool { return len(a.items) == 0 }

// ranked stable-sorts by weight descending and keeps each value's first
// occurrence, which is its highest weight.
func (a *accumulator) ranked() []domain.Candidate {
	items := slices.Clone(a.items)
	slices.SortStableFunc(items, func(x, y scored) int {
		return cmp.Compare(y.weight, x.weight)
	})
	seen := make(map[string]struct{}, len(items))
	out := make([]domain.Candidate, 0, len(items))
	for _, it := range items {
		if _, ok := seen[it.value]; ok {
			continue
		}
		seen[it.value] = struct{}{}
		out = append(out, domain.Candidate{Value: it.value, Score: it.weight})
	}
	return out
}
