package manifest

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Path is an ordered sequence of segments addressing a node inside a
// document: a string segment selects a mapping key, an int segment selects a
// sequence index. Any other segment type, or a negative index, is a
// programming error and makes Get panic.
type Path []any

// Child returns a copy of p extended with segs. p itself is never modified,
// so a shared prefix can be extended from several goroutines.
func (p Path) Child(segs ...any) Path {
	out := make(Path, 0, len(p)+len(segs))
	out = append(out, p...)
	return append(out, segs...)
}

var plainKey = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_-]*$`)

// String renders p in dotted form, e.g.
// spec.template.spec.containers[0].securityContext or
// metadata.labels["app.kubernetes.io/name"].
func (p Path) String() string {
	var b strings.Builder
	for i, seg := range p {
		switch s := seg.(type) {
		case int:
			fmt.Fprintf(&b, "[%d]", s)
		case string:
			if plainKey.MatchString(s) {
				if i > 0 {
					b.WriteByte('.')
				}
				b.WriteString(s)
			} else {
				b.WriteString("[" + strconv.Quote(s) + "]")
			}
		default:
			fmt.Fprintf(&b, "[%v]", s)
		}
	}
	return b.String()
}

// Get walks path from n and returns the node it addresses. ok is false
// (the node is absent) the first time a mapping lacks the key, an index is
// out of range, or a scalar would have to be indexed further. Absence is a
// normal outcome, never an error.
func Get(n *Node, path ...any) (*Node, bool) {
	cur := n
	if cur == nil {
		return nil, false
	}
	for _, seg := range path {
		switch s := seg.(type) {
		case string:
			if cur.Kind != MappingNode {
				return nil, false
			}
			next, ok := cur.Fields[s]
			if !ok {
				return nil, false
			}
			cur = next
		case int:
			if s < 0 {
				panic(fmt.Sprintf("manifest: negative index %d in path", s))
			}
			if cur.Kind != SequenceNode || s >= len(cur.Items) {
				return nil, false
			}
			cur = cur.Items[s]
		default:
			panic(fmt.Sprintf("manifest: unsupported path segment %T", seg))
		}
	}
	return cur, true
}

// GetString returns the string scalar at path. ok is false when the node is
// absent or not a string.
func GetString(n *Node, path ...any) (string, bool) {
	v, ok := Get(n, path...)
	if !ok {
		return "", false
	}
	return v.AsString()
}

// GetMapping returns the mapping at path, or false when absent or not a
// mapping.
func GetMapping(n *Node, path ...any) (*Node, bool) {
	v, ok := Get(n, path...)
	if !ok || v.Kind != MappingNode {
		return nil, false
	}
	return v, true
}

// GetSequence returns the items of the sequence at path, or false when absent
// or not a sequence.
func GetSequence(n *Node, path ...any) ([]*Node, bool) {
	v, ok := Get(n, path...)
	if !ok || v.Kind != SequenceNode {
		return nil, false
	}
	return v.Items, true
}

// Has reports whether path resolves to a node (an explicit null counts).
func Has(n *Node, path ...any) bool {
	_, ok := Get(n, path...)
	return ok
}

// ParsePath parses the dotted form produced by Path.String. It accepts
// plain keys separated by dots, [N] indexes and ["quoted key"] selectors.
func ParsePath(expr string) (Path, error) {
	var p Path
	i := 0
	for i < len(expr) {
		switch expr[i] {
		case '.':
			if i == 0 || i == len(expr)-1 {
				return nil, fmt.Errorf("path %q: misplaced '.' at offset %d", expr, i)
			}
			i++
		case '[':
			end := strings.IndexByte(expr[i:], ']')
			if end < 0 {
				return nil, fmt.Errorf("path %q: unterminated '[' at offset %d", expr, i)
			}
			inner := expr[i+1 : i+end]
			if strings.HasPrefix(inner, `"`) {
				// Quoted keys may themselves contain ']'.
				q, rest, err := unquotePrefix(expr[i+1:])
				if err != nil {
					return nil, fmt.Errorf("path %q: %w", expr, err)
				}
				if !strings.HasPrefix(rest, "]") {
					return nil, fmt.Errorf("path %q: expected ']' after quoted key", expr)
				}
				p = append(p, q)
				i = len(expr) - len(rest) + 1
				continue
			}
			idx, err := strconv.Atoi(inner)
			if err != nil || idx < 0 {
				return nil, fmt.Errorf("path %q: invalid index %q", expr, inner)
			}
			p = append(p, idx)
			i += end + 1
		default:
			end := strings.IndexAny(expr[i:], ".[")
			if end < 0 {
				end = len(expr) - i
			}
			p = append(p, expr[i:i+end])
			i += end
		}
	}
	return p, nil
}

func unquotePrefix(s string) (string, string, error) {
	prefix, err := strconv.QuotedPrefix(s)
	if err != nil {
		return "", "", fmt.Errorf("invalid quoted key: %w", err)
	}
	v, err := strconv.Unquote(prefix)
	if err != nil {
		return "", "", fmt.Errorf("invalid quoted key: %w", err)
	}
	return v, s[len(prefix):], nil
}
