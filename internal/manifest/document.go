package manifest

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"regexp"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Source is one raw input handed to the parser: an identifier (usually a file
// path or object URI) and its bytes.
type Source struct {
	ID      string
	Content []byte
}

// Document is one parsed object from a source.
//
// Kind is resolved through the path accessor at parse time and is empty when
// the document has no string `kind` field; rules must not assume it is set.
type Document struct {
	// SourceID identifies the source the document was read from.
	SourceID string

	// Index is the position of the document within its source, starting at 0.
	// Empty documents in a multi-document stream are skipped and not counted.
	Index int

	// Line is the 1-based line where the document starts in its source.
	Line int

	// Kind is the value of the top-level kind field, or "".
	Kind string

	// Root is the document tree.
	Root *Node
}

// APIVersion returns the top-level apiVersion, or "".
func (d *Document) APIVersion() string {
	s, _ := GetString(d.Root, "apiVersion")
	return s
}

// Name returns metadata.name, or "".
func (d *Document) Name() string {
	s, _ := GetString(d.Root, "metadata", "name")
	return s
}

// Namespace returns metadata.namespace, or "".
func (d *Document) Namespace() string {
	s, _ := GetString(d.Root, "metadata", "namespace")
	return s
}

// Labels returns metadata.labels as a string map. The map is empty when the
// field is absent.
func (d *Document) Labels() map[string]string {
	m, ok := GetMapping(d.Root, "metadata", "labels")
	if !ok {
		return map[string]string{}
	}
	return m.StringMap()
}

// Ref returns a short human-readable reference such as "Deployment/web".
func (d *Document) Ref() string {
	kind, name := d.Kind, d.Name()
	switch {
	case kind == "" && name == "":
		return fmt.Sprintf("document[%d]", d.Index)
	case name == "":
		return kind
	case kind == "":
		return name
	default:
		return kind + "/" + name
	}
}

// ParseError reports malformed input. The whole source is rejected; no
// documents from it are returned.
type ParseError struct {
	SourceID string

	// Line is 1-based, or 0 when unknown.
	Line int

	// Column is 1-based, or 0 when unknown. yaml.v3 syntax errors report only
	// a line, so Column is set for structural errors (duplicate keys, bad
	// merges, excessive aliasing) and left 0 for syntax errors.
	Column int

	Message string
}

func (e *ParseError) Error() string {
	switch {
	case e.Line > 0 && e.Column > 0:
		return fmt.Sprintf("%s:%d:%d: %s", e.SourceID, e.Line, e.Column, e.Message)
	case e.Line > 0:
		return fmt.Sprintf("%s:%d: %s", e.SourceID, e.Line, e.Message)
	default:
		return fmt.Sprintf("%s: %s", e.SourceID, e.Message)
	}
}

// yaml.v3 syntax errors carry their line only in the message text and never
// a column.
var yamlLineRe = regexp.MustCompile(`line (\d+)`)

// Parse decodes every document in raw. A source with no documents (empty or
// only comments) yields an empty slice and no error. Any malformed document
// fails the whole source with a *ParseError.
func Parse(raw []byte, sourceID string) ([]*Document, error) {
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	var docs []*Document
	for {
		var yn yaml.Node
		err := dec.Decode(&yn)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, newParseError(sourceID, err)
		}
		if isEmptyDocument(&yn) {
			continue
		}
		root, err := newConverter(&yn, sourceID).convert(&yn, 0)
		if err != nil {
			return nil, err
		}
		kind, _ := GetString(root, "kind")
		docs = append(docs, &Document{
			SourceID: sourceID,
			Index:    len(docs),
			Line:     yn.Line,
			Kind:     kind,
			Root:     root,
		})
	}
	return docs, nil
}

func newParseError(sourceID string, err error) *ParseError {
	pe := &ParseError{SourceID: sourceID, Message: err.Error()}
	if m := yamlLineRe.FindStringSubmatch(err.Error()); m != nil {
		pe.Line, _ = strconv.Atoi(m[1])
	}
	return pe
}

func isEmptyDocument(yn *yaml.Node) bool {
	if yn.Kind == 0 {
		return true
	}
	if yn.Kind != yaml.DocumentNode {
		return false
	}
	if len(yn.Content) == 0 {
		return true
	}
	c := yn.Content[0]
	return c.Kind == yaml.ScalarNode && c.ShortTag() == "!!null"
}

// maxDepth bounds alias expansion so a self-referencing document cannot
// recurse forever.
const maxDepth = 256

// Alias expansion budget: nodes produced while expanding aliases may not
// exceed aliasRatio times the nodes written in the document, with a floor of
// minAliasBudget. This rejects exponential "billion laughs" documents.
const (
	aliasRatio     = 10
	minAliasBudget = 10000
)

// converter maps a yaml.v3 node tree onto Node, resolving aliases and merge
// keys and rejecting duplicate mapping keys.
type converter struct {
	sourceID string
	budget   int
	expanded int
	inAlias  int
}

func newConverter(doc *yaml.Node, sourceID string) *converter {
	return &converter{
		sourceID: sourceID,
		budget:   max(minAliasBudget, aliasRatio*countNodes(doc)),
	}
}

// countNodes counts the nodes written in the document, without following
// aliases.
func countNodes(yn *yaml.Node) int {
	n := 1
	for _, c := range yn.Content {
		n += countNodes(c)
	}
	return n
}

func (c *converter) errorAt(yn *yaml.Node, msg string) *ParseError {
	return &ParseError{SourceID: c.sourceID, Line: yn.Line, Column: yn.Column, Message: msg}
}

// produced charges one node against the alias budget when it comes from an
// alias expansion.
func (c *converter) produced(yn *yaml.Node) error {
	if c.inAlias == 0 {
		return nil
	}
	c.expanded++
	if c.expanded > c.budget {
		return c.errorAt(yn, "document contains excessive aliasing")
	}
	return nil
}

func (c *converter) convert(yn *yaml.Node, depth int) (*Node, error) {
	if depth > maxDepth {
		return nil, c.errorAt(yn, "document nesting too deep")
	}
	switch yn.Kind {
	case yaml.DocumentNode:
		if len(yn.Content) == 0 {
			return NewScalar(nil), nil
		}
		return c.convert(yn.Content[0], depth+1)
	case yaml.AliasNode:
		if yn.Alias == nil {
			return nil, c.errorAt(yn, "unresolved alias")
		}
		c.inAlias++
		defer func() { c.inAlias-- }()
		return c.convert(yn.Alias, depth+1)
	case yaml.ScalarNode:
		if err := c.produced(yn); err != nil {
			return nil, err
		}
		v, err := scalarValue(yn)
		if err != nil {
			return nil, c.errorAt(yn, err.Error())
		}
		n := NewScalar(v)
		n.Line, n.Column = yn.Line, yn.Column
		return n, nil
	case yaml.SequenceNode:
		if err := c.produced(yn); err != nil {
			return nil, err
		}
		n := NewSequence()
		n.Line, n.Column = yn.Line, yn.Column
		for _, item := range yn.Content {
			v, err := c.convert(item, depth+1)
			if err != nil {
				return nil, err
			}
			n.Items = append(n.Items, v)
		}
		return n, nil
	case yaml.MappingNode:
		if err := c.produced(yn); err != nil {
			return nil, err
		}
		return c.convertMapping(yn, depth)
	default:
		return nil, c.errorAt(yn, fmt.Sprintf("unsupported node kind %d", yn.Kind))
	}
}

func (c *converter) convertMapping(yn *yaml.Node, depth int) (*Node, error) {
	n := NewMapping(nil)
	n.Line, n.Column = yn.Line, yn.Column
	var merges []*Node
	for i := 0; i+1 < len(yn.Content); i += 2 {
		k, v := yn.Content[i], yn.Content[i+1]
		if k.Kind != yaml.ScalarNode {
			return nil, c.errorAt(k, "mapping key is not a scalar")
		}
		val, err := c.convert(v, depth+1)
		if err != nil {
			return nil, err
		}
		if k.ShortTag() == "!!merge" {
			merges = append(merges, val)
			continue
		}
		if _, dup := n.Fields[k.Value]; dup {
			return nil, c.errorAt(k, fmt.Sprintf("duplicate key %q", k.Value))
		}
		n.Fields[k.Value] = val
	}
	// Explicit keys win over merged ones; earlier merges win over later ones.
	for _, m := range merges {
		var sources []*Node
		switch m.Kind {
		case MappingNode:
			sources = []*Node{m}
		case SequenceNode:
			sources = m.Items
		}
		for _, src := range sources {
			if src.Kind != MappingNode {
				return nil, c.errorAt(yn, "merge value is not a mapping")
			}
			for key, val := range src.Fields {
				if _, exists := n.Fields[key]; !exists {
					n.Fields[key] = val
				}
			}
		}
	}
	return n, nil
}

func scalarValue(yn *yaml.Node) (any, error) {
	switch yn.ShortTag() {
	case "!!null":
		return nil, nil
	case "!!bool":
		var b bool
		if err := yn.Decode(&b); err != nil {
			return nil, err
		}
		return b, nil
	case "!!int":
		var i int64
		if err := yn.Decode(&i); err == nil {
			return i, nil
		}
		// Out of int64 range: keep the magnitude as a float.
		var f float64
		if err := yn.Decode(&f); err != nil {
			return nil, err
		}
		return f, nil
	case "!!float":
		var f float64
		if err := yn.Decode(&f); err != nil {
			return nil, err
		}
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return yn.Value, nil
		}
		return f, nil
	default:
		return yn.Value, nil
	}
}
