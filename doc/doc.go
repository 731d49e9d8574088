// Package doc handles ArangoDB documents decoded as dynamic maps.
//
// Attributes are addressed by paths like "address.city". Like in AQL, an attribute
// name that has dots is quoted with backticks: "meta.`content.type`".
package doc

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// D is a document as returned by encoding/json when decoding an object.
type D = map[string]any

// Path is a parsed attribute path.
type Path []string

var (
	// ErrMissing indicates that an attribute of a path does not exist on a document.
	ErrMissing = errors.New("doc: attribute not found")

	// ErrInvalidPath indicates that an attribute path can't be parsed.
	ErrInvalidPath = errors.New("doc: invalid attribute path")

	// ErrConflict indicates that two paths of a patch address the same attribute
	// with incompatible values.
	ErrConflict = errors.New("doc: conflicting attribute paths")
)

// ParsePath parses an attribute path. Empty attribute names are invalid, so are
// "", "a." and "a..b". Inside backticks a backslash escapes the next character.
func ParsePath(s string) (Path, error) {
	var (
		path   Path
		name   strings.Builder
		quoted bool
		escape bool
		closed bool
	)
	invalid := func(reason string) (Path, error) {
		return nil, fmt.Errorf("%w: %q: %s", ErrInvalidPath, s, reason)
	}
	for _, r := range s {
		switch {
		case escape:
			name.WriteRune(r)
			escape = false
		case quoted && r == '\\':
			escape = true
		case r == '`':
			if !quoted && name.Len() > 0 {
				return invalid("quote inside attribute name")
			}
			quoted = !quoted
			closed = !quoted
		case quoted:
			name.WriteRune(r)
		case r == '.':
			if name.Len() == 0 && !closed {
				return invalid("empty attribute name")
			}
			path = append(path, name.String())
			name.Reset()
			closed = false
		default:
			if closed {
				return invalid("text after quoted attribute name")
			}
			name.WriteRune(r)
		}
	}
	if quoted || escape {
		return invalid("unterminated quote")
	}
	if name.Len() == 0 && !closed {
		return invalid("empty attribute name")
	}
	return append(path, name.String()), nil
}

// IsValidPath reports whether [ParsePath] accepts s.
func IsValidPath(s string) bool {
	_, err := ParsePath(s)
	return err == nil
}

// String formats the path so that [ParsePath] returns it back.
func (p Path) String() string {
	names := make([]string, len(p))
	for i, name := range p {
		if name == "" || strings.ContainsAny(name, ".`\\") {
			name = "`" + strings.NewReplacer("\\", "\\\\", "`", "\\`").Replace(name) + "`"
		}
		names[i] = name
	}
	return strings.Join(names, ".")
}

// Lookup returns the value of the attribute at path. Every attribute but the last
// must be a document.
func Lookup(d D, path string) (any, error) {
	p, err := ParsePath(path)
	if err != nil {
		return nil, err
	}
	parent, err := walk(d, p)
	if err != nil {
		return nil, err
	}
	v, ok := parent[p[len(p)-1]]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissing, p)
	}
	return v, nil
}

// Get is [Lookup] that also checks that the value has type T.
func Get[T any](d D, path string) (T, error) {
	var zero T
	v, err := Lookup(d, path)
	if err != nil {
		return zero, err
	}
	t, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("doc: attribute %s: has type %T, want %T", path, v, zero)
	}
	return t, nil
}

// Set sets the attribute at path, creating the documents in between.
// Attributes in between that are not documents are replaced.
func Set(d D, path string, value any) error {
	if d == nil {
		return fmt.Errorf("doc: setting %s on nil document", path)
	}
	p, err := ParsePath(path)
	if err != nil {
		return err
	}
	node := d
	for _, name := range p[:len(p)-1] {
		next, ok := node[name].(D)
		if !ok {
			next = D{}
			node[name] = next
		}
		node = next
	}
	node[p[len(p)-1]] = value
	return nil
}

// Del removes the attribute at path. Missing attributes are not an error.
func Del(d D, path string) error {
	p, err := ParsePath(path)
	if err != nil {
		return err
	}
	parent, err := walk(d, p)
	if errors.Is(err, ErrMissing) {
		return nil
	}
	if err != nil {
		return err
	}
	delete(parent, p[len(p)-1])
	return nil
}

// Expand turns a patch with attribute paths as keys into nested documents:
// {"a.b": 1, "a.c": 2} is {"a": {"b": 1, "c": 2}}. Values that are documents
// are merged with the attributes set by other paths. A key that addresses an
// attribute of a value that is not a document is an [ErrConflict].
func Expand(patch D) (D, error) {
	keys := make([]string, 0, len(patch))
	for key := range patch {
		keys = append(keys, key)
	}
	// Shorter paths first, so nested values are merged into their parents.
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) < len(keys[j])
		}
		return keys[i] < keys[j]
	})

	res := D{}
	for _, key := range keys {
		p, err := ParsePath(key)
		if err != nil {
			return nil, err
		}
		node := res
		for i, name := range p[:len(p)-1] {
			v, ok := node[name]
			if !ok {
				next := D{}
				node[name] = next
				node = next
				continue
			}
			next, ok := v.(D)
			if !ok {
				return nil, fmt.Errorf("%w: %q sets an attribute of %s, which is %T", ErrConflict, key, p[:i+1], v)
			}
			node = next
		}
		name := p[len(p)-1]
		if err := merge(node, name, patch[key], key); err != nil {
			return nil, err
		}
	}
	return res, nil
}

// KeyOf formats an attribute value as a map key. Strings are kept, integral
// numbers lose their fraction and booleans become "true" or "false".
func KeyOf(v any) (string, error) {
	switch v := v.(type) {
	case string:
		return v, nil
	case bool:
		return strconv.FormatBool(v), nil
	case float64:
		if v == math.Trunc(v) && math.Abs(v) < 1e15 {
			return strconv.FormatInt(int64(v), 10), nil
		}
		return strconv.FormatFloat(v, 'g', -1, 64), nil
	case int:
		return strconv.Itoa(v), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case fmt.Stringer:
		return v.String(), nil
	}
	return "", fmt.Errorf("doc: %T can't be used as a key", v)
}

func merge(node D, name string, value any, key string) error {
	current, ok := node[name]
	if !ok {
		node[name] = clone(value)
		return nil
	}
	dst, ok := current.(D)
	src, srcOK := value.(D)
	if !ok || !srcOK {
		return fmt.Errorf("%w: %q", ErrConflict, key)
	}
	for k, v := range src {
		if err := merge(dst, k, v, key); err != nil {
			return err
		}
	}
	return nil
}

func clone(v any) any {
	d, ok := v.(D)
	if !ok {
		return v
	}
	c := make(D, len(d))
	for k, v := range d {
		c[k] = clone(v)
	}
	return c
}

func walk(d D, p Path) (D, error) {
	node := d
	for i, name := range p[:len(p)-1] {
		v, ok := node[name]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissing, p[:i+1])
		}
		next, ok := v.(D)
		if !ok {
			return nil, fmt.Errorf("doc: attribute %s: has type %T, want a document", p[:i+1], v)
		}
		node = next
	}
	return node, nil
}
