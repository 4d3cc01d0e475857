package scraper

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/WessleyAI/wessley-parts/engine/domain"
)

// SecondaryRules match the secondary marketplace's search result markup.
// Listings there carry no usable title.
var SecondaryRules = Rules{
	Containers: []string{".s-item", ".s-card"},
	Fallback:   "ul.srp-results > li",
	Price:      []string{".s-item__price", ".s-card__price", "[class*='price']"},
	Image:      []string{".s-item__image-img", "img"},
	Link:       []string{".s-item__link", "a[href]"},
}

// Secondary searches the secondary marketplace with a single fetch.
type Secondary struct {
	base  *url.URL
	fetch *Fetcher
}

// NewSecondary creates a Secondary rooted at baseURL. f should be configured
// for a single attempt.
func NewSecondary(baseURL string, f *Fetcher) (*Secondary, error) {
	base, err := url.Parse(baseURL)
	if err != nil || base.Host == "" {
		return nil, fmt.Errorf("secondary base url %q: invalid", baseURL)
	}
	return &Secondary{base: base, fetch: f}, nil
}

// Search returns priced listings for term. Any failure yields no listings.
func (s *Secondary) Search(ctx context.Context, term string) []domain.Listing {
	ctx, span := otel.Tracer("engine/scraper").Start(ctx, "scraper.secondary")
	defer span.End()

	term = strings.TrimSpace(term)
	if term == "" {
		return nil
	}
	u := *s.base
	u.Path = strings.TrimRight(u.Path, "/") + "/sch/i.html"
	u.RawQuery = url.Values{"_nkw": {term}}.Encode()

	body, ok := s.fetch.Get(ctx, u.String())
	if !ok {
		return nil
	}
	out := listings(extract(body, s.base, domain.SourceSecondary, SecondaryRules))
	span.SetAttributes(attribute.Int("scraper.listings", len(out)))
	return out
}
