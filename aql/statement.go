package aql

import (
	"fmt"
	"log/slog"
	"strings"
)

// Kind is the kind of operation a [Statement] performs.
type Kind string

// Statement kinds.
const (
	KindSelect Kind = "select"
	KindCount  Kind = "count"
	KindInsert Kind = "insert"
	KindUpdate Kind = "update"
	KindRemove Kind = "remove"
)

// ParseKind parses the name of a statement kind. An empty name is [KindSelect].
func ParseKind(name string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(name))); k {
	case "":
		return KindSelect, nil
	case KindSelect, KindCount, KindInsert, KindUpdate, KindRemove:
		return k, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidKind, name)
}

// Mutation reports whether statements of this kind write to the collection.
func (k Kind) Mutation() bool {
	return k == KindInsert || k == KindUpdate || k == KindRemove
}

// Statement is a compiled AQL statement, ready to be handed to an executor.
type Statement struct {
	// Query is the AQL text.
	Query string
	// BindVars has the values of every bind parameter referenced by Query.
	BindVars Params
	Kind     Kind
	// Collection is the source collection, empty if the statement has none.
	Collection string
	// FullCount asks the executor for the number of documents that would match
	// without the last LIMIT.
	FullCount bool
	// BatchSize is the number of rows per round-trip. Zero means the executor default.
	BatchSize int
	// IndexBy is the dotted path of the attribute that indexes the result rows, if any.
	IndexBy string
	// Options are cursor options for read statements. Mutations carry their options
	// on the OPTIONS clause instead.
	Options map[string]any
}

// String returns the interpolated query.
func (s Statement) String() string {
	return s.Interpolate()
}

// LogValue implements [slog.LogValuer].
func (s Statement) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("kind", string(s.Kind)),
		slog.String("collection", s.Collection),
		slog.String("query", s.Query),
		slog.Any("bind_vars", s.BindVars),
	)
}

// Interpolate returns the query with the bind parameters replaced by their literal values.
// The result is meant for logs, it should never be executed.
// References inside string literals and unknown parameters are left as they are.
func (s Statement) Interpolate() string {
	if len(s.BindVars) == 0 {
		return s.Query
	}
	var (
		b     strings.Builder
		query = s.Query
		quote byte
	)
	for i := 0; i < len(query); i++ {
		c := query[i]
		if quote != 0 {
			b.WriteByte(c)
			switch c {
			case '\\':
				if i+1 < len(query) {
					i++
					b.WriteByte(query[i])
				}
			case quote:
				quote = 0
			}
			continue
		}
		switch c {
		case '"', '\'', '`':
			quote = c
			b.WriteByte(c)
			continue
		case '@':
		default:
			b.WriteByte(c)
			continue
		}

		start := i + 1
		collection := start < len(query) && query[start] == '@'
		if collection {
			start++
		}
		end := start
		for end < len(query) && isIdentByte(query[end]) {
			end++
		}
		name := query[start:end]
		if collection {
			name = "@" + name
		}
		v, ok := s.BindVars[name]
		if end == start || !ok {
			b.WriteString(query[i:end])
			i = end - 1
			continue
		}
		if collection {
			fmt.Fprint(&b, v)
		} else if lit, err := Marshal(v); err == nil {
			b.WriteString(lit)
		} else {
			b.WriteString(query[i:end])
		}
		i = end - 1
	}
	return b.String()
}

func isIdentByte(c byte) bool {
	return c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9'
}
