// Package manifest holds the in-memory document model for parsed manifest
// sources: a Node tree per document, document provenance, and the path
// accessor rules use to reach nested fields without assuming they exist.
package manifest

import (
	"fmt"
	"sort"
)

// NodeKind identifies the shape of a Node.
type NodeKind uint8

const (
	ScalarNode NodeKind = iota + 1
	MappingNode
	SequenceNode
)

func (k NodeKind) String() string {
	switch k {
	case ScalarNode:
		return "scalar"
	case MappingNode:
		return "mapping"
	case SequenceNode:
		return "sequence"
	default:
		return "unknown"
	}
}

// Node is one element of a parsed document tree.
//
// Scalars carry a decoded Value of type string, bool, int64, float64 or nil
// (an explicit YAML null). Mappings carry Fields, sequences carry Items.
// Line and Column point at the node in the source (1-based, 0 when unknown).
type Node struct {
	Kind   NodeKind
	Value  any
	Fields map[string]*Node
	Items  []*Node
	Line   int
	Column int
}

// NewScalar returns a scalar node. v must be string, bool, int64, float64 or nil.
func NewScalar(v any) *Node {
	return &Node{Kind: ScalarNode, Value: v}
}

// NewMapping returns a mapping node over fields.
func NewMapping(fields map[string]*Node) *Node {
	if fields == nil {
		fields = make(map[string]*Node)
	}
	return &Node{Kind: MappingNode, Fields: fields}
}

// NewSequence returns a sequence node over items.
func NewSequence(items ...*Node) *Node {
	return &Node{Kind: SequenceNode, Items: items}
}

// IsNull reports whether n is an explicit null scalar.
func (n *Node) IsNull() bool {
	return n != nil && n.Kind == ScalarNode && n.Value == nil
}

// AsString returns the scalar string value. ok is false for non-string nodes.
func (n *Node) AsString() (string, bool) {
	if n == nil || n.Kind != ScalarNode {
		return "", false
	}
	s, ok := n.Value.(string)
	return s, ok
}

// AsBool returns the scalar bool value. ok is false for non-bool nodes, so an
// absent or mistyped field is never mistaken for an explicit false.
func (n *Node) AsBool() (bool, bool) {
	if n == nil || n.Kind != ScalarNode {
		return false, false
	}
	b, ok := n.Value.(bool)
	return b, ok
}

// AsInt returns the scalar integer value. Floats with no fractional part are
// accepted.
func (n *Node) AsInt() (int64, bool) {
	if n == nil || n.Kind != ScalarNode {
		return 0, false
	}
	switch v := n.Value.(type) {
	case int64:
		return v, true
	case float64:
		if v == float64(int64(v)) {
			return int64(v), true
		}
	}
	return 0, false
}

// Text renders a scalar as text regardless of its decoded type. Resource
// quantities such as `cpu: 1` decode as integers but are compared as strings.
func (n *Node) Text() (string, bool) {
	if n == nil || n.Kind != ScalarNode || n.Value == nil {
		return "", false
	}
	switch v := n.Value.(type) {
	case string:
		return v, true
	default:
		return fmt.Sprint(v), true
	}
}

// Keys returns the mapping keys in sorted order.
func (n *Node) Keys() []string {
	if n == nil || n.Kind != MappingNode {
		return nil
	}
	keys := make([]string, 0, len(n.Fields))
	for k := range n.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// StringMap returns the string-valued entries of a mapping. Non-string values
// are rendered with Text; nested collections are skipped.
func (n *Node) StringMap() map[string]string {
	if n == nil || n.Kind != MappingNode {
		return nil
	}
	out := make(map[string]string, len(n.Fields))
	for k, v := range n.Fields {
		if s, ok := v.Text(); ok {
			out[k] = s
		}
	}
	return out
}

// Interface converts n into plain Go values (map[string]any, []any and
// scalars), the representation used by unstructured Kubernetes objects.
func (n *Node) Interface() any {
	if n == nil {
		return nil
	}
	switch n.Kind {
	case MappingNode:
		m := make(map[string]any, len(n.Fields))
		for k, v := range n.Fields {
			m[k] = v.Interface()
		}
		return m
	case SequenceNode:
		items := make([]any, len(n.Items))
		for i, v := range n.Items {
			items[i] = v.Interface()
		}
		return items
	default:
		return n.Value
	}
}
