// Package pricing resolves a free-text part query to OEM candidates, collects
// marketplace offers for the first candidate that has any, and prices them.
package pricing

import (
	"context"
	"log/slog"
	"math"
	"slices"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/WessleyAI/wessley-parts/engine/audit"
	"github.com/WessleyAI/wessley-parts/engine/domain"
	"github.com/WessleyAI/wessley-parts/pkg/fn"
	"github.com/WessleyAI/wessley-parts/pkg/metrics"
)

// Markup is applied to the mean offer price.
const Markup = 1.35

// sourceCache labels listings rebuilt from a cached snapshot.
const sourceCache = "cache"

// Matcher finds the vehicle context in a query.
type Matcher interface {
	Match(query string) domain.VehicleContext
}

// Resolver ranks OEM candidates.
type Resolver interface {
	Candidates(ctx context.Context, vc domain.VehicleContext, raw string) []domain.Candidate
}

// Primary searches the primary marketplace.
type Primary interface {
	Search(ctx context.Context, oem, detail, raw string) []domain.Listing
	SearchByText(ctx context.Context, raw string) []domain.Listing
}

// Secondary searches the secondary marketplace.
type Secondary interface {
	Search(ctx context.Context, term string) []domain.Listing
}

// Catalog stores OEMs learned per vehicle context.
type Catalog interface {
	KnownOEMs(mk, model, detail string) []string
	SaveOEM(ctx context.Context, mk, model, detail, oem string) error
}

// Cache holds recent scrape results per OEM.
type Cache interface {
	Get(ctx context.Context, oem string) (domain.Snapshot, bool)
	Put(ctx context.Context, oem string, prices []float64, image string) error
}

// Deps are the collaborators of an Engine. Audit, Metrics and Logger are
// optional.
type Deps struct {
	Matcher   Matcher
	Resolver  Resolver
	Primary   Primary
	Secondary Secondary
	Catalog   Catalog
	Cache     Cache
	Audit     audit.Sink
	Metrics   *metrics.Metrics
	Logger    *slog.Logger
	// Speculative is how many candidates may be scraped at once. Results are
	// still taken in rank order. Values below 2 scrape one at a time.
	Speculative int
}

// Engine prices part queries.
type Engine struct {
	d   Deps
	now func() time.Time
}

// New creates an Engine.
func New(d Deps) *Engine {
	if d.Audit == nil {
		d.Audit = audit.Nop{}
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Speculative < 1 {
		d.Speculative = 1
	}
	return &Engine{d: d, now: time.Now}
}

// attempt is what scraping one candidate produced.
type attempt struct {
	listings []domain.Listing
	cached   bool
}

// ResolveAndPrice prices query. No offers is reported in the result, not as
// an error; errors are returned only for an invalid query or a cancelled
// context.
func (e *Engine) ResolveAndPrice(ctx context.Context, query string) (domain.Result, error) {
	start := e.now()
	q, err := domain.ValidateQuery(query)
	if err != nil {
		return domain.Result{}, err
	}

	ctx, span := otel.Tracer("engine/pricing").Start(ctx, "pricing.resolve_and_price")
	defer span.End()

	vc := e.d.Matcher.Match(q)
	cands := e.d.Resolver.Candidates(ctx, vc, q)
	oems := fn.Map(cands, func(c domain.Candidate) string { return c.Value })

	res := domain.Result{
		OEMCandidates: oems,
		RawPrices:     []float64{},
		InternalLinks: []domain.InternalLink{},
		Vehicle:       vc,
	}
	if res.OEMCandidates == nil {
		res.OEMCandidates = []string{}
	}

	idx, won, ok := fn.FirstInOrder(ctx, oems, e.d.Speculative, func(ctx context.Context, oem string) (attempt, bool) {
		a := e.try(ctx, oem, vc, q)
		return a, len(a.listings) > 0
	})
	if err := ctx.Err(); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return domain.Result{}, err
	}

	var found []domain.Listing
	identifier := q
	if ok {
		oem := oems[idx]
		found = won.listings
		identifier = oem
		res.ResolvedOEM = oem
		res.CacheUsed = won.cached
		res.CatalogHit = slices.Contains(e.d.Catalog.KnownOEMs(vc.Make, vc.Model, vc.Detail), oem)
		if !won.cached {
			e.persist(ctx, oem, vc, found)
		}
	} else {
		found = e.fallback(ctx, q)
	}

	for _, l := range found {
		res.RawPrices = append(res.RawPrices, l.Price)
	}
	res.InternalLinks = internalLinks(found)
	span.SetAttributes(
		attribute.String("pricing.resolved_oem", res.ResolvedOEM),
		attribute.Int("pricing.candidates", len(oems)),
		attribute.Int("pricing.offers", len(res.RawPrices)),
		attribute.Bool("pricing.cache_used", res.CacheUsed),
	)

	if len(res.RawPrices) == 0 {
		res.Error = domain.NoOffers
		e.d.Metrics.Resolution(metrics.OutcomeFailed, e.now().Sub(start))
		e.d.Logger.Info("no offers found", "query", q, "candidates", len(oems))
		return res, nil
	}

	final := FinalPrice(res.RawPrices)
	res.FinalPrice = &final
	res.Photo = photo(found)

	if err := e.d.Audit.Record(ctx, audit.NewRecord(identifier, res.RawPrices, final, e.now())); err != nil {
		e.d.Logger.Warn("audit record failed", "identifier", identifier, "err", err)
	}
	e.d.Metrics.Resolution(metrics.OutcomeOK, e.now().Sub(start))
	e.d.Logger.Info("part priced",
		"query", q,
		"resolved_oem", res.ResolvedOEM,
		"offers", len(res.RawPrices),
		"final_price", final,
		"cache_used", res.CacheUsed,
	)
	return res, nil
}

// try collects listings for one candidate, from the cache when fresh.
func (e *Engine) try(ctx context.Context, oem string, vc domain.VehicleContext, raw string) attempt {
	ctx, span := otel.Tracer("engine/pricing").Start(ctx, "pricing.candidate")
	defer span.End()
	span.SetAttributes(attribute.String("pricing.oem", oem))

	if snap, ok := e.d.Cache.Get(ctx, oem); ok {
		e.d.Metrics.CacheLookup(true)
		return attempt{listings: fromSnapshot(snap), cached: true}
	}
	e.d.Metrics.CacheLookup(false)

	found := e.scrape(
		func(ctx context.Context) []domain.Listing { return e.d.Primary.Search(ctx, oem, vc.Detail, raw) },
		func(ctx context.Context) []domain.Listing { return e.d.Secondary.Search(ctx, oem) },
	)(ctx)
	span.SetAttributes(attribute.Int("pricing.offers", len(found)))
	return attempt{listings: found}
}

func (e *Engine) fallback(ctx context.Context, raw string) []domain.Listing {
	return e.scrape(
		func(ctx context.Context) []domain.Listing { return e.d.Primary.SearchByText(ctx, raw) },
		func(ctx context.Context) []domain.Listing { return e.d.Secondary.Search(ctx, raw) },
	)(ctx)
}

// scrape runs the primary and secondary searches concurrently and returns
// primary listings first.
func (e *Engine) scrape(primary, secondary fn.Step[domain.Listing]) fn.Step[domain.Listing] {
	return func(ctx context.Context) []domain.Listing {
		parts := fn.FanOut(
			func() []domain.Listing { return primary(ctx) },
			func() []domain.Listing { return secondary(ctx) },
		)
		return slices.Concat(parts...)
	}
}

// persist writes the winning scrape to the cache and, for a fully matched
// vehicle, teaches the catalog the OEM. Failures are logged.
func (e *Engine) persist(ctx context.Context, oem string, vc domain.VehicleContext, found []domain.Listing) {
	prices := fn.Map(found, func(l domain.Listing) float64 { return l.Price })
	if err := e.d.Cache.Put(ctx, oem, prices, photo(found)); err != nil {
		e.d.Logger.Warn("scrape cache write failed", "oem", oem, "err", err)
	}
	if !vc.Complete() {
		return
	}
	if err := e.d.Catalog.SaveOEM(ctx, vc.Make, vc.Model, vc.Detail, oem); err != nil {
		e.d.Logger.Warn("catalog save failed", "oem", oem, "err", err)
	}
}

// FinalPrice is the mean of prices times Markup, rounded to cents.
func FinalPrice(prices []float64) float64 {
	var sum float64
	for _, p := range prices {
		sum += p
	}
	return math.Round(sum/float64(len(prices))*Markup*100) / 100
}

func fromSnapshot(s domain.Snapshot) []domain.Listing {
	out := make([]domain.Listing, len(s.Prices))
	for i, p := range s.Prices {
		out[i] = domain.Listing{Source: sourceCache, Price: p}
	}
	if len(out) > 0 {
		out[0].Image = s.Image
	}
	return out
}

func photo(found []domain.Listing) string {
	for _, l := range found {
		if l.Image != "" {
			return l.Image
		}
	}
	return ""
}

// internalLinks keeps the first listing link of each marketplace.
func internalLinks(found []domain.Listing) []domain.InternalLink {
	links := []domain.InternalLink{}
	for _, src := range []string{domain.SourcePrimary, domain.SourceSecondary} {
		i := slices.IndexFunc(found, func(l domain.Listing) bool { return l.Source == src })
		if i >= 0 && found[i].Link != "" {
			links = append(links, domain.InternalLink{Source: src, URL: found[i].Link})
		}
	}
	return links
}
