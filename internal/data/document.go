package data

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrMalformedDocument is returned when a configuration document cannot be parsed
// or its top level is not a mapping.
var ErrMalformedDocument = errors.New("data: malformed document")

// Document is an ordered YAML mapping addressed by dotted key paths
// ("levels.1.percentage-bonus"). Comments and key order survive a load/save cycle.
//
// A Document handed to readers is treated as immutable; writers work on a Clone.
type Document struct {
	node *yaml.Node // DocumentNode wrapping a single MappingNode
}

// NewDocument returns an empty document.
func NewDocument() *Document {
	return &Document{node: &yaml.Node{
		Kind:    yaml.DocumentNode,
		Content: []*yaml.Node{{Kind: yaml.MappingNode, Tag: "!!map"}},
	}}
}

// Parse decodes raw YAML into a Document.
func Parse(raw []byte) (*Document, error) {
	var n yaml.Node
	if err := yaml.Unmarshal(raw, &n); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedDocument, err)
	}
	if n.Kind == 0 {
		// empty input
		return NewDocument(), nil
	}
	if n.Kind == yaml.DocumentNode && len(n.Content) == 0 {
		d := NewDocument()
		d.node.HeadComment = n.HeadComment
		return d, nil
	}
	if n.Kind != yaml.DocumentNode || len(n.Content) != 1 {
		return nil, fmt.Errorf("%w: expected a single document", ErrMalformedDocument)
	}
	top := n.Content[0]
	switch {
	case top.Kind == yaml.MappingNode:
	case top.Kind == yaml.ScalarNode && top.Tag == "!!null":
		// comment-only file
		n.Content[0] = &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map", HeadComment: top.HeadComment}
	default:
		return nil, fmt.Errorf("%w: top level is not a mapping", ErrMalformedDocument)
	}
	if err := checkDuplicateKeys(n.Content[0], ""); err != nil {
		return nil, err
	}
	return &Document{node: &n}, nil
}

// checkDuplicateKeys rejects a mapping that repeats a key at any depth.
// yaml.v3 only reports duplicates when decoding into Go values, not into a Node.
func checkDuplicateKeys(n *yaml.Node, prefix string) error {
	switch n.Kind {
	case yaml.MappingNode:
		seen := make(map[string]struct{}, len(n.Content)/2)
		for i := 0; i+1 < len(n.Content); i += 2 {
			key := n.Content[i].Value
			path := joinPath(prefix, key)
			if _, dup := seen[key]; dup {
				return fmt.Errorf("%w: duplicate key %q (line %d)", ErrMalformedDocument, path, n.Content[i].Line)
			}
			seen[key] = struct{}{}
			if err := checkDuplicateKeys(n.Content[i+1], path); err != nil {
				return err
			}
		}
	case yaml.SequenceNode:
		for _, c := range n.Content {
			if err := checkDuplicateKeys(c, prefix); err != nil {
				return err
			}
		}
	}
	return nil
}

// MustParse is Parse for literals in tests and bundled data; it panics on error.
func MustParse(raw string) *Document {
	d, err := Parse([]byte(raw))
	if err != nil {
		panic(err)
	}
	return d
}

func (d *Document) root() *yaml.Node {
	return d.node.Content[0]
}

// Marshal encodes the document with two-space indentation.
func (d *Document) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(d.node); err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	return buf.Bytes(), nil
}

// Clone returns a deep copy.
func (d *Document) Clone() *Document {
	return &Document{node: copyNode(d.node)}
}

// Keys returns every dotted key path, sections and leaves, in document order
// (a section precedes its children).
func (d *Document) Keys() []string {
	var keys []string
	walk(d.root(), "", func(path string, _, _ *yaml.Node) {
		keys = append(keys, path)
	})
	return keys
}

// Has reports whether path exists.
func (d *Document) Has(path string) bool {
	_, v := d.pair(path)
	return v != nil
}

// Set encodes value at path, creating intermediate sections. A non-mapping
// value in the way of the path is replaced by a section.
func (d *Document) Set(path string, value any) error {
	var n yaml.Node
	if err := n.Encode(value); err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	d.setNode(path, nil, &n)
	return nil
}

// Delete removes path and everything below it. Returns false if absent.
func (d *Document) Delete(path string) bool {
	parent, key := d.root(), path
	if i := strings.LastIndexByte(path, '.'); i >= 0 {
		_, parent = d.pair(path[:i])
		key = path[i+1:]
	}
	if parent == nil || parent.Kind != yaml.MappingNode {
		return false
	}
	for i := 0; i+1 < len(parent.Content); i += 2 {
		if parent.Content[i].Value == key {
			parent.Content = append(parent.Content[:i], parent.Content[i+2:]...)
			return true
		}
	}
	return false
}

// copyFrom copies path (key node with its comments, and the full value subtree)
// from src into d.
func (d *Document) copyFrom(src *Document, path string) {
	k, v := src.pair(path)
	if v == nil {
		return
	}
	d.setNode(path, copyNode(k), copyNode(v))
}

func (d *Document) setNode(path string, key, value *yaml.Node) {
	parts := strings.Split(path, ".")
	cur := d.root()
	for _, part := range parts[:len(parts)-1] {
		next := child(cur, part)
		if next == nil {
			next = &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
			cur.Content = append(cur.Content, keyNode(part), next)
		} else if next.Kind != yaml.MappingNode {
			*next = yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		}
		cur = next
	}
	last := parts[len(parts)-1]
	if key == nil {
		key = keyNode(last)
	}
	for i := 0; i+1 < len(cur.Content); i += 2 {
		if cur.Content[i].Value == last {
			cur.Content[i+1] = value
			return
		}
	}
	cur.Content = append(cur.Content, key, value)
}

// pair returns the key and value nodes at path (both nil if absent).
// The empty path addresses the root mapping.
func (d *Document) pair(path string) (key, value *yaml.Node) {
	cur := d.root()
	if path == "" {
		return nil, cur
	}
	for _, part := range strings.Split(path, ".") {
		if cur.Kind != yaml.MappingNode {
			return nil, nil
		}
		key, cur = childPair(cur, part)
		if cur == nil {
			return nil, nil
		}
	}
	return key, cur
}

func walk(m *yaml.Node, prefix string, fn func(path string, key, value *yaml.Node)) {
	for i := 0; i+1 < len(m.Content); i += 2 {
		k, v := m.Content[i], m.Content[i+1]
		path := joinPath(prefix, k.Value)
		fn(path, k, v)
		if v.Kind == yaml.MappingNode {
			walk(v, path, fn)
		}
	}
}

func child(m *yaml.Node, key string) *yaml.Node {
	_, v := childPair(m, key)
	return v
}

func childPair(m *yaml.Node, key string) (*yaml.Node, *yaml.Node) {
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			return m.Content[i], m.Content[i+1]
		}
	}
	return nil, nil
}

func keyNode(name string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Value: name}
}

func joinPath(prefix, key string) string {
	if prefix == "" {
		return key
	}
	if key == "" {
		return prefix
	}
	return prefix + "." + key
}

func copyNode(n *yaml.Node) *yaml.Node {
	if n == nil {
		return nil
	}
	c := *n
	if n.Content != nil {
		c.Content = make([]*yaml.Node, len(n.Content))
		for i, sub := range n.Content {
			c.Content[i] = copyNode(sub)
		}
	}
	return &c
}
