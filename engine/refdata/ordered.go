package refdata

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Ordered is a string-keyed mapping that remembers document order.
// Duplicate keys keep their first position and take the last value.
type Ordered[V any] struct {
	keys []string
	vals map[string]V
}

// Keys returns keys in document order.
func (o Ordered[V]) Keys() []string { return o.keys }

// Len returns the number of keys.
func (o Ordered[V]) Len() int { return len(o.keys) }

// Get returns the value stored under key.
func (o Ordered[V]) Get(key string) (V, bool) {
	v, ok := o.vals[key]
	return v, ok
}

// Set appends key, or replaces its value in place.
func (o *Ordered[V]) Set(key string, v V) {
	if o.vals == nil {
		o.vals = make(map[string]V)
	}
	if _, ok := o.vals[key]; !ok {
		o.keys = append(o.keys, key)
	}
	o.vals[key] = v
}

// Each calls f for every entry in document order until f returns false.
func (o Ordered[V]) Each(f func(key string, v V) bool) {
	for _, k := range o.keys {
		if !f(k, o.vals[k]) {
			return
		}
	}
}

// UnmarshalYAML decodes a mapping node. JSON documents parse the same way.
func (o *Ordered[V]) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.AliasNode {
		node = node.Alias
	}
	if node.Kind == yaml.ScalarNode && node.Tag == "!!null" {
		return nil
	}
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("refdata: line %d: expected mapping, got %s", node.Line, kindName(node.Kind))
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		var v V
		if err := node.Content[i+1].Decode(&v); err != nil {
			return err
		}
		o.Set(node.Content[i].Value, v)
	}
	return nil
}

func kindName(k yaml.Kind) string {
	switch k {
	case yaml.DocumentNode:
		return "document"
	case yaml.SequenceNode:
		return "sequence"
	case yaml.ScalarNode:
		return "scalar"
	default:
		return "node"
	}
}

// Tree is the three-level make → model → leaf → values shape shared by the
// vehicle taxonomy (leaf = part system, values = detail names) and the OEM
// tables (leaf = detail, values = OEMs).
type Tree = Ordered[Ordered[Ordered[[]string]]]
