package data

import "gopkg.in/yaml.v3"

// Section is a read view of a Document scoped to a key prefix.
// Getters return the zero value (or the supplied default) when the key is
// missing or holds a value of the wrong type.
type Section struct {
	doc    *Document
	prefix string
}

// View returns a Section over the whole document.
func (d *Document) View() Section {
	return Section{doc: d}
}

// Section returns a view scoped to prefix.
func (d *Document) Section(prefix string) Section {
	return Section{doc: d, prefix: prefix}
}

// Sub narrows the view to a child section.
func (s Section) Sub(key string) Section {
	return Section{doc: s.doc, prefix: joinPath(s.prefix, key)}
}

// Prefix returns the dotted path the view is scoped to.
func (s Section) Prefix() string {
	return s.prefix
}

// Exists reports whether the scoped prefix is present and is a section.
func (s Section) Exists() bool {
	n := s.node("")
	return n != nil && n.Kind == yaml.MappingNode
}

// Has reports whether key exists below the prefix.
func (s Section) Has(key string) bool {
	return s.node(key) != nil
}

// Keys returns the direct child keys of the section in document order.
func (s Section) Keys() []string {
	n := s.node("")
	if n == nil || n.Kind != yaml.MappingNode {
		return nil
	}
	keys := make([]string, 0, len(n.Content)/2)
	for i := 0; i+1 < len(n.Content); i += 2 {
		keys = append(keys, n.Content[i].Value)
	}
	return keys
}

// Values flattens every leaf below the prefix into relative dotted keys.
func (s Section) Values() map[string]any {
	out := make(map[string]any)
	n := s.node("")
	if n == nil || n.Kind != yaml.MappingNode {
		return out
	}
	walk(n, "", func(path string, _, v *yaml.Node) {
		if v.Kind == yaml.MappingNode {
			return
		}
		var x any
		if err := v.Decode(&x); err == nil {
			out[path] = x
		}
	})
	return out
}

func (s Section) node(key string) *yaml.Node {
	if s.doc == nil {
		return nil
	}
	_, v := s.doc.pair(joinPath(s.prefix, key))
	return v
}

func (s Section) scalar(key string) *yaml.Node {
	n := s.node(key)
	if n == nil || n.Kind != yaml.ScalarNode || n.Tag == "!!null" {
		return nil
	}
	return n
}

func (s Section) sequence(key string) []*yaml.Node {
	n := s.node(key)
	if n == nil || n.Kind != yaml.SequenceNode {
		return nil
	}
	return n.Content
}

// Int returns an integer, or 0.
func (s Section) Int(key string) int {
	return s.IntOr(key, 0)
}

// IntOr returns an integer, or def.
func (s Section) IntOr(key string, def int) int {
	n := s.scalar(key)
	if n == nil {
		return def
	}
	var v int
	if err := n.Decode(&v); err != nil {
		return def
	}
	return v
}

// Ints returns a list of integers; entries that are not integers are skipped.
func (s Section) Ints(key string) []int {
	var out []int
	for _, n := range s.sequence(key) {
		var v int
		if err := n.Decode(&v); err == nil {
			out = append(out, v)
		}
	}
	return out
}

// Bool returns a boolean, or false.
func (s Section) Bool(key string) bool {
	return s.BoolOr(key, false)
}

// BoolOr returns a boolean, or def.
func (s Section) BoolOr(key string, def bool) bool {
	n := s.scalar(key)
	if n == nil {
		return def
	}
	var v bool
	if err := n.Decode(&v); err != nil {
		return def
	}
	return v
}

// Bools returns a list of booleans; entries that are not booleans are skipped.
func (s Section) Bools(key string) []bool {
	var out []bool
	for _, n := range s.sequence(key) {
		var v bool
		if err := n.Decode(&v); err == nil {
			out = append(out, v)
		}
	}
	return out
}

// String returns a string, or "".
func (s Section) String(key string) string {
	return s.StringOr(key, "")
}

// StringOr returns the scalar text at key, or def.
func (s Section) StringOr(key, def string) string {
	n := s.scalar(key)
	if n == nil {
		return def
	}
	return n.Value
}

// Strings returns a list of strings; non-scalar entries are skipped.
func (s Section) Strings(key string) []string {
	var out []string
	for _, n := range s.sequence(key) {
		if n.Kind == yaml.ScalarNode {
			out = append(out, n.Value)
		}
	}
	return out
}

// Float returns a decimal, or 0.
func (s Section) Float(key string) float64 {
	return s.FloatOr(key, 0)
}

// FloatOr returns a decimal, or def. Integers are widened.
func (s Section) FloatOr(key string, def float64) float64 {
	n := s.scalar(key)
	if n == nil {
		return def
	}
	var v float64
	if err := n.Decode(&v); err != nil {
		return def
	}
	return v
}

// Floats returns a list of decimals; entries that are not numbers are skipped.
func (s Section) Floats(key string) []float64 {
	var out []float64
	for _, n := range s.sequence(key) {
		var v float64
		if err := n.Decode(&v); err == nil {
			out = append(out, v)
		}
	}
	return out
}
