// Package vehicle matches free-text queries onto the vehicle taxonomy.
package vehicle

import (
	"strings"

	"github.com/WessleyAI/wessley-parts/engine/domain"
	"github.com/WessleyAI/wessley-parts/engine/refdata"
	"github.com/WessleyAI/wessley-parts/pkg/textnorm"
)

// Matcher finds the (make, model, detail) named in a query by substring
// containment. At every level the first entry in taxonomy order wins; there
// is no scoring and no preference for longer names.
type Matcher struct {
	tax     refdata.Tree
	aliases refdata.Ordered[string]
}

// NewMatcher creates a Matcher over data's taxonomy.
func NewMatcher(data *refdata.Data) *Matcher {
	return &Matcher{tax: data.Taxonomy, aliases: data.MakeAliases}
}

// Match returns the context named in query. Levels that do not match are
// empty. When no make name appears, make aliases are tried as whole words.
// When a make matches but none of its models do, details are searched across
// all of that make's models.
func (m *Matcher) Match(query string) domain.VehicleContext {
	var vc domain.VehicleContext
	q := textnorm.Normalize(query)
	if q == "" {
		return vc
	}

	var models refdata.Ordered[refdata.Ordered[[]string]]
	vc.Make, models = first(m.tax, q)
	if vc.Make == "" {
		vc.Make, models = m.alias(q)
	}
	if vc.Make == "" {
		return vc
	}

	var systems refdata.Ordered[[]string]
	vc.Model, systems = first(models, q)
	if vc.Model != "" {
		vc.Detail = firstDetail(systems, q)
		return vc
	}

	models.Each(func(_ string, s refdata.Ordered[[]string]) bool {
		vc.Detail = firstDetail(s, q)
		return vc.Detail == ""
	})
	return vc
}

func (m *Matcher) alias(q string) (string, refdata.Ordered[refdata.Ordered[[]string]]) {
	padded := " " + q + " "
	var (
		name   string
		models refdata.Ordered[refdata.Ordered[[]string]]
	)
	m.aliases.Each(func(a, target string) bool {
		n := textnorm.Normalize(a)
		if n == "" || !strings.Contains(padded, " "+n+" ") {
			return true
		}
		ms, ok := m.tax.Get(target)
		if !ok {
			return true
		}
		name, models = target, ms
		return false
	})
	return name, models
}

func first[V any](o refdata.Ordered[V], q string) (string, V) {
	var (
		key string
		val V
	)
	o.Each(func(k string, v V) bool {
		if contains(q, k) {
			key, val = k, v
			return false
		}
		return true
	})
	return key, val
}

func firstDetail(systems refdata.Ordered[[]string], q string) string {
	var found string
	systems.Each(func(_ string, details []string) bool {
		for _, d := range details {
			if contains(q, d) {
				found = d
				return false
			}
		}
		return true
	})
	return found
}

func contains(q, name string) bool {
	n := textnorm.Normalize(name)
	return n != "" && strings.Contains(q, n)
}
