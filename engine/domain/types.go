// Package domain defines the value types shared by the resolution and
// pricing pipeline, and validates queries at its entry point.
package domain

import "time"

// Source names used in listings, internal links, and metrics.
const (
	SourcePrimary   = "rrr"
	SourceSecondary = "ebay"
)

// VehicleContext is the (make, model, detail) triple matched from a query.
// Unmatched levels are empty.
type VehicleContext struct {
	Make   string `json:"make"`
	Model  string `json:"model"`
	Detail string `json:"detail"`
}

// Complete reports whether all three levels matched.
func (v VehicleContext) Complete() bool {
	return v.Make != "" && v.Model != "" && v.Detail != ""
}

// Candidate is a weighted OEM guess.
type Candidate struct {
	Value string `json:"value"`
	Score int    `json:"score"`
}

// Listing is one marketplace offer. Price is always set.
type Listing struct {
	Source string  `json:"source"`
	Title  string  `json:"title,omitempty"`
	Price  float64 `json:"price"`
	Image  string  `json:"image,omitempty"`
	Link   string  `json:"link,omitempty"`
}

// InternalLink points at a source's first listing.
type InternalLink struct {
	Source string `json:"source"`
	URL    string `json:"url"`
}

// Snapshot is a cached scrape of one OEM.
type Snapshot struct {
	Prices    []float64 `json:"prices"`
	Image     string    `json:"image,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Result is the outcome of pricing one query. Error is set, and FinalPrice
// nil, when no offers were found.
type Result struct {
	FinalPrice    *float64       `json:"final_price,omitempty"`
	Photo         string         `json:"photo,omitempty"`
	OEMCandidates []string       `json:"oem_candidates"`
	ResolvedOEM   string         `json:"resolved_oem,omitempty"`
	RawPrices     []float64      `json:"raw_prices"`
	InternalLinks []InternalLink `json:"internal_links"`
	CatalogHit    bool           `json:"catalog_hit"`
	CacheUsed     bool           `json:"cache_used"`
	Vehicle       VehicleContext `json:"vehicle"`
	Error         string         `json:"error,omitempty"`
}
