package scraper

import (
	"bytes"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/WessleyAI/wessley-parts/engine/domain"
)

// Rules locate listing fields on a result page. Field selectors are tried in
// order and the first non-empty match wins.
type Rules struct {
	// Containers are tried in order; the first that matches anything is used.
	Containers []string
	// Fallback is a generic container selector used when no Container matches.
	Fallback string
	Title    []string
	Price    []string
	Image    []string
	Link     []string
}

// item is an extracted listing plus the container text, kept for OEM checks.
type item struct {
	domain.Listing
	text string
}

var imageAttrs = []string{"src", "data-src"}

func extract(body []byte, base *url.URL, source string, r Rules) []item {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil
	}
	containers := containersOf(doc, r)
	if containers == nil {
		return nil
	}
	var out []item
	containers.Each(func(_ int, sel *goquery.Selection) {
		price, ok := ParsePrice(firstText(sel, r.Price))
		if !ok {
			return
		}
		out = append(out, item{
			Listing: domain.Listing{
				Source: source,
				Title:  firstText(sel, r.Title),
				Price:  price,
				Image:  resolve(base, firstAttr(sel, r.Image, imageAttrs...)),
				Link:   resolve(base, firstAttr(sel, r.Link, "href")),
			},
			text: strings.Join(strings.Fields(sel.Text()), " "),
		})
	})
	return out
}

func containersOf(doc *goquery.Document, r Rules) *goquery.Selection {
	for _, s := range r.Containers {
		if sel := doc.Find(s); sel.Length() > 0 {
			return sel
		}
	}
	if r.Fallback == "" {
		return nil
	}
	return doc.Find(r.Fallback)
}

func firstText(sel *goquery.Selection, selectors []string) string {
	for _, s := range selectors {
		var found string
		sel.Find(s).EachWithBreak(func(_ int, el *goquery.Selection) bool {
			found = strings.TrimSpace(el.Text())
			return found == ""
		})
		if found != "" {
			return strings.Join(strings.Fields(found), " ")
		}
	}
	return ""
}

func firstAttr(sel *goquery.Selection, selectors []string, attrs ...string) string {
	for _, s := range selectors {
		var found string
		sel.Find(s).EachWithBreak(func(_ int, el *goquery.Selection) bool {
			for _, a := range attrs {
				if v := strings.TrimSpace(el.AttrOr(a, "")); v != "" {
					found = v
					return false
				}
			}
			return true
		})
		if found != "" {
			return found
		}
	}
	return ""
}

// resolve makes ref absolute against base. Unparseable refs are dropped.
func resolve(base *url.URL, ref string) string {
	if ref == "" {
		return ""
	}
	u, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	if base == nil {
		return u.String()
	}
	return base.ResolveReference(u).String()
}

func listings(items []item) []domain.Listing {
	if len(items) == 0 {
		return nil
	}
	out := make([]domain.Listing, len(items))
	for i, it := range items {
		out[i] = it.Listing
	}
	return out
}
