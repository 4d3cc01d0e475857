// Package refdata loads the static reference data used to match vehicles and
// resolve OEM numbers: the vehicle taxonomy, the curated OEM tables, the
// keyword map, phrase translations, make aliases, stopwords and part-number
// patterns.
//
// Documents may be YAML or JSON. Mapping order is preserved because several
// consumers are first-match-wins over document order. A loaded *Data is never
// mutated and is safe to share.
package refdata

import (
	"embed"
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

//go:embed defaults/*.yaml
var defaults embed.FS

// Paths names reference documents on disk. Empty fields use the built-in
// defaults.
type Paths struct {
	Taxonomy  string
	Lookup    string
	Catalog   string
	Reference string
}

// Data is the immutable reference data set.
type Data struct {
	// Taxonomy is make → model → part system → details.
	Taxonomy Tree
	// Lookup and Catalog are make → model → detail → OEMs.
	Lookup  Tree
	Catalog Tree

	Keywords     Ordered[[]string]
	Translations Ordered[string]
	// MakeAliases maps shorthand such as "vw" to a taxonomy make.
	MakeAliases Ordered[string]

	stopwords map[string]struct{}
	oem       *regexp.Regexp
	hints     []*regexp.Regexp
}

type reference struct {
	Keywords     Ordered[[]string] `yaml:"keywords"`
	Translations Ordered[string]   `yaml:"translations"`
	MakeAliases  Ordered[string]   `yaml:"make_aliases"`
	Stopwords    []string          `yaml:"stopwords"`
}

// Load reads every document named in p.
func Load(p Paths) (*Data, error) {
	d := &Data{oem: oemPattern, hints: prefixHintPatterns}
	if err := decode(p.Taxonomy, "defaults/taxonomy.yaml", &d.Taxonomy); err != nil {
		return nil, err
	}
	if err := decode(p.Lookup, "defaults/lookup.yaml", &d.Lookup); err != nil {
		return nil, err
	}
	if err := decode(p.Catalog, "defaults/catalog.yaml", &d.Catalog); err != nil {
		return nil, err
	}
	var ref reference
	if err := decode(p.Reference, "defaults/reference.yaml", &ref); err != nil {
		return nil, err
	}
	d.Keywords = ref.Keywords
	d.Translations = ref.Translations
	d.MakeAliases = ref.MakeAliases
	d.stopwords = make(map[string]struct{}, len(ref.Stopwords))
	for _, w := range ref.Stopwords {
		d.stopwords[w] = struct{}{}
	}
	return d, nil
}

// Default returns the built-in reference data.
func Default() *Data {
	d, err := Load(Paths{})
	if err != nil {
		panic(fmt.Sprintf("refdata: embedded defaults: %v", err))
	}
	return d
}

// IsStopword reports whether token is excluded from live keyword searches.
func (d *Data) IsStopword(token string) bool {
	_, ok := d.stopwords[token]
	return ok
}

func decode(path, fallback string, out any) error {
	var (
		raw []byte
		err error
	)
	if path == "" {
		raw, err = defaults.ReadFile(fallback)
	} else {
		raw, err = os.ReadFile(path)
	}
	if err != nil {
		return fmt.Errorf("refdata: read %s: %w", nameOr(path, fallback), err)
	}
	if err := yaml.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("refdata: parse %s: %w", nameOr(path, fallback), err)
	}
	return nil
}

func nameOr(path, fallback string) string {
	if path != "" {
		return path
	}
	return fallback
}
