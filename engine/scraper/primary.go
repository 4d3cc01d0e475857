package scraper

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/WessleyAI/wessley-parts/engine/domain"
	"github.com/WessleyAI/wessley-parts/engine/refdata"
	"github.com/WessleyAI/wessley-parts/pkg/fn"
	"github.com/WessleyAI/wessley-parts/pkg/textnorm"
)

const (
	// substringRunes is the OEM prefix length searched by the substring strategy.
	substringRunes = 5
	// keywordTokens is how many query tokens the keyword strategy searches.
	keywordTokens = 3
	// maxDetailPages bounds detail-page fetches per direct search.
	maxDetailPages = 5
)

// PrimaryRules match the primary marketplace's search result markup.
var PrimaryRules = Rules{
	Containers: []string{".item-block", ".products-list .product", "[data-product-id]"},
	Fallback:   "article, li:has(a[href])",
	Title:      []string{".item-title", ".title", "a"},
	Price:      []string{".item-price", ".price", "[class*='price']"},
	Image:      []string{`img[itemprop="image"]`, "img"},
	Link:       []string{"a[href]"},
}

// Detail page selectors, tried in order.
var (
	detailPriceAttr = []string{`[itemprop="price"]`, `meta[property="product:price:amount"]`}
	detailPrice     = []string{".product-price", ".item-price", ".price"}
	detailImage     = []string{`meta[property="og:image"]`, `img[itemprop="image"]`}
)

// Primary searches the primary marketplace with a chain of fallback
// strategies.
type Primary struct {
	base   *url.URL
	fetch  *Fetcher
	data   *refdata.Data
	logger *slog.Logger
}

// NewPrimary creates a Primary rooted at baseURL.
func NewPrimary(baseURL string, f *Fetcher, data *refdata.Data, logger *slog.Logger) (*Primary, error) {
	base, err := url.Parse(baseURL)
	if err != nil || base.Host == "" {
		return nil, fmt.Errorf("primary base url %q: invalid", baseURL)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Primary{base: base, fetch: f, data: data, logger: logger}, nil
}

// Search tries, in order: the OEM itself, its first five characters, the
// translated part name from detail, and the first query tokens. The first
// strategy with listings wins.
func (p *Primary) Search(ctx context.Context, oem, detail, raw string) []domain.Listing {
	return fn.FirstNonEmpty(ctx,
		p.step("direct", func(ctx context.Context) []domain.Listing { return p.direct(ctx, oem) }),
		p.step("substring", func(ctx context.Context) []domain.Listing { return p.substring(ctx, oem) }),
		p.step("translated", func(ctx context.Context) []domain.Listing { return p.translated(ctx, detail) }),
		p.step("keyword", func(ctx context.Context) []domain.Listing { return p.keyword(ctx, raw) }),
	)
}

// SearchByText runs the keyword strategy alone on the raw query.
func (p *Primary) SearchByText(ctx context.Context, raw string) []domain.Listing {
	return p.step("keyword", func(ctx context.Context) []domain.Listing { return p.keyword(ctx, raw) })(ctx)
}

// ScanOEMs searches by keyword and returns each distinct OEM-shaped string on
// the result page, its link texts and its link targets, in page order.
func (p *Primary) ScanOEMs(ctx context.Context, keyword string) []string {
	body, ok := p.fetch.Get(ctx, p.searchURL(keyword))
	if !ok {
		return nil
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil
	}
	var texts []string
	doc.Find("*").Not("script, style").Contents().Each(func(_ int, s *goquery.Selection) {
		if goquery.NodeName(s) == "#text" {
			if t := strings.TrimSpace(s.Text()); t != "" {
				texts = append(texts, t)
			}
		}
	})
	found := p.data.ExtractOEMs(strings.Join(texts, " "))
	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		found = append(found, p.data.ExtractOEMs(strings.TrimSpace(a.Text()))...)
		found = append(found, p.data.ExtractOEMs(a.AttrOr("href", ""))...)
	})
	return fn.Unique(found)
}

func (p *Primary) step(name string, f func(context.Context) []domain.Listing) fn.Step[domain.Listing] {
	return func(ctx context.Context) []domain.Listing {
		ctx, span := otel.Tracer("engine/scraper").Start(ctx, "scraper.primary."+name)
		defer span.End()
		out := f(ctx)
		span.SetAttributes(attribute.Int("scraper.listings", len(out)))
		p.logger.Debug("primary strategy", "strategy", name, "listings", len(out))
		return out
	}
}

func (p *Primary) searchURL(term string) string {
	u := *p.base
	u.Path = strings.TrimRight(u.Path, "/") + "/paieska/"
	u.RawQuery = url.Values{"q": {term}}.Encode()
	return u.String()
}

func (p *Primary) search(ctx context.Context, term string) []item {
	if strings.TrimSpace(term) == "" {
		return nil
	}
	body, ok := p.fetch.Get(ctx, p.searchURL(term))
	if !ok {
		return nil
	}
	return extract(body, p.base, domain.SourcePrimary, PrimaryRules)
}

// direct searches by OEM. Matching items get their price from the detail
// page when it has one and keep the listing-page price otherwise. When no
// detail page yields a price, every listing-page result is returned.
func (p *Primary) direct(ctx context.Context, oem string) []domain.Listing {
	found := p.search(ctx, oem)
	if len(found) == 0 {
		return nil
	}
	matched := fn.Filter(found, func(it item) bool { return p.mentions(it, oem) })
	n := min(len(matched), maxDetailPages)
	fetches := make([]func() (domain.Listing, bool), n)
	for i, it := range matched[:n] {
		fetches[i] = func() (domain.Listing, bool) { return p.enrich(ctx, it) }
	}
	details := fn.FanOut(fn.Map(fetches, toResult)...)
	if !slices.ContainsFunc(details, func(r fn.Result[domain.Listing]) bool { return r.IsOk() }) {
		return listings(found)
	}
	out := make([]domain.Listing, len(matched))
	for i, it := range matched {
		out[i] = it.Listing
		if i < n {
			out[i] = details[i].UnwrapOr(it.Listing)
		}
	}
	return out
}

func toResult(f func() (domain.Listing, bool)) func() fn.Result[domain.Listing] {
	return func() fn.Result[domain.Listing] {
		l, ok := f()
		if !ok {
			return fn.Errf[domain.Listing]("no detail price")
		}
		return fn.Ok(l)
	}
}

func (p *Primary) substring(ctx context.Context, oem string) []domain.Listing {
	runes := []rune(strings.TrimSpace(oem))
	if len(runes) < substringRunes {
		return nil
	}
	found := p.search(ctx, string(runes[:substringRunes]))
	return listings(fn.Filter(found, func(it item) bool { return p.mentions(it, oem) }))
}

func (p *Primary) translated(ctx context.Context, detail string) []domain.Listing {
	norm := textnorm.Normalize(detail)
	if norm == "" {
		return nil
	}
	var phrase string
	p.data.Translations.Each(func(key, v string) bool {
		if strings.Contains(norm, key) {
			phrase = v
			return false
		}
		return true
	})
	if phrase == "" {
		return nil
	}
	return listings(p.search(ctx, phrase))
}

func (p *Primary) keyword(ctx context.Context, raw string) []domain.Listing {
	tokens := textnorm.Tokens(raw)
	if len(tokens) > keywordTokens {
		tokens = tokens[:keywordTokens]
	}
	return listings(p.search(ctx, strings.Join(tokens, " ")))
}

// mentions reports whether a result item refers to oem, verbatim, ignoring
// separators, or through an OEM-shaped match in its text.
func (p *Primary) mentions(it item, oem string) bool {
	want := textnorm.Compact(oem)
	if want == "" {
		return false
	}
	text := it.text + " " + it.Title + " " + it.Link
	if strings.Contains(strings.ToUpper(text), strings.ToUpper(strings.TrimSpace(oem))) {
		return true
	}
	if strings.Contains(textnorm.Compact(text), want) {
		return true
	}
	for _, m := range p.data.ExtractOEMs(text) {
		if textnorm.Compact(m) == want {
			return true
		}
	}
	return false
}

// enrich re-reads the price, and image when present, from the item's detail
// page.
func (p *Primary) enrich(ctx context.Context, it item) (domain.Listing, bool) {
	if it.Link == "" {
		return domain.Listing{}, false
	}
	body, ok := p.fetch.Get(ctx, it.Link)
	if !ok {
		return domain.Listing{}, false
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return domain.Listing{}, false
	}
	price, ok := detailPriceOf(doc.Selection)
	if !ok {
		return domain.Listing{}, false
	}
	l := it.Listing
	l.Price = price
	if img := firstAttr(doc.Selection, detailImage, "content", "src"); img != "" {
		l.Image = resolve(p.base, img)
	}
	return l, true
}

// detailPriceOf prefers machine-readable price attributes, which use a dot
// decimal, over the visible label.
func detailPriceOf(doc *goquery.Selection) (float64, bool) {
	if v := firstAttr(doc, detailPriceAttr, "content"); v != "" {
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil && f >= 0 {
			return f, true
		}
	}
	return ParsePrice(firstText(doc, detailPrice))
}
