package aql

import (
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"
)

// assembler renders the clauses of a query in their fixed order.
// Sub-queries are assembled with the binder of the enclosing statement.
type assembler struct {
	b     *binder
	depth int
}

func (a *assembler) statement(q *Query, kind Kind, arg any) (string, error) {
	if q.err != nil {
		return "", q.err
	}
	if err := MergeParams(a.b.params, q.params); err != nil {
		return "", err
	}
	if err := a.reserve(q.where, a.depth); err != nil {
		return "", err
	}
	from := strings.TrimSpace(q.from)
	if kind.Mutation() && from == "" {
		return "", fmt.Errorf("%w: %s statements require a collection", ErrMissingCollection, kind)
	}
	opts, err := a.options(q, kind)
	if err != nil {
		return "", err
	}

	if kind == KindInsert {
		if arg == nil {
			return "", fmt.Errorf("%w: insert document is nil", ErrInvalidOperand)
		}
		document, err := Marshal(arg)
		if err != nil {
			return "", err
		}
		return joinClauses("INSERT "+document+" IN "+from, opts), nil
	}

	c := compiler{from: from, b: a.b, depth: a.depth}
	filter, err := c.condition(q.where)
	if err != nil {
		return "", err
	}
	var action string
	switch kind {
	case KindUpdate:
		if arg == nil {
			return "", fmt.Errorf("%w: update patch is nil", ErrInvalidOperand)
		}
		patch, err := Marshal(arg)
		if err != nil {
			return "", err
		}
		action = "UPDATE " + from + " WITH " + patch + " IN " + from
	case KindRemove:
		action = "REMOVE " + from + " IN " + from
	default:
		action, err = projection(from, q.sel)
		if err != nil {
			return "", err
		}
	}

	return joinClauses(
		source(from),
		prefixed("FILTER ", filter),
		sorting(from, q.orderBy),
		paging(q),
		action,
		opts,
	), nil
}

// reserve binds the params of every sub-query nested on v before anything is compiled,
// so the generated names skip them whatever the order the sub-queries are reached.
func (a *assembler) reserve(v any, depth int) error {
	if depth > MaxConditionDepth {
		return nil
	}
	switch v := v.(type) {
	case *Query:
		if v == nil || v.err != nil {
			return nil
		}
		if err := MergeParams(a.b.params, v.params); err != nil {
			return err
		}
		return a.reserve(v.where, depth+1)
	case Hash:
		for _, field := range slices.Sorted(maps.Keys(v)) {
			if err := a.reserve(v[field], depth+1); err != nil {
				return err
			}
		}
	case map[string]any:
		return a.reserve(Hash(v), depth)
	case Op:
		for _, o := range v.Operands {
			if err := a.reserve(o, depth+1); err != nil {
				return err
			}
		}
	case []any:
		for _, o := range v {
			if err := a.reserve(o, depth+1); err != nil {
				return err
			}
		}
	}
	return nil
}

func (a *assembler) options(q *Query, kind Kind) (string, error) {
	if !kind.Mutation() || len(q.options) == 0 {
		return "", nil
	}
	opts, err := Marshal(q.options)
	if err != nil {
		return "", err
	}
	return "OPTIONS " + opts, nil
}

func source(from string) string {
	if from == "" {
		return ""
	}
	return "FOR " + from + " IN " + from
}

func sorting(from string, orderBy []Sort) string {
	if len(orderBy) == 0 {
		return ""
	}
	fields := make([]string, 0, len(orderBy))
	for _, s := range orderBy {
		field := qualify(from, s.Field)
		if s.Desc {
			field += " DESC"
		}
		fields = append(fields, field)
	}
	return "SORT " + strings.Join(fields, ", ")
}

func paging(q *Query) string {
	if !q.hasLimit {
		return ""
	}
	return "LIMIT " + strconv.Itoa(q.offset) + ", " + strconv.Itoa(q.limit)
}

// projection renders the RETURN clause of a read statement.
func projection(from string, sel any) (string, error) {
	switch s := sel.(type) {
	case nil:
		return prefixed("RETURN ", from), nil
	case string:
		if strings.TrimSpace(s) == "" {
			return prefixed("RETURN ", from), nil
		}
		return "RETURN " + s, nil
	case Expr:
		return "RETURN " + s.text, nil
	case []string:
		doc := make(Doc, 0, len(s))
		for _, field := range s {
			doc = append(doc, KV{field, field})
		}
		return projectDoc(from, doc)
	case map[string]string:
		doc := make(Doc, 0, len(s))
		for _, k := range slices.Sorted(maps.Keys(s)) {
			doc = append(doc, KV{k, s[k]})
		}
		return projectDoc(from, doc)
	case map[string]any:
		doc := make(Doc, 0, len(s))
		for _, k := range slices.Sorted(maps.Keys(s)) {
			doc = append(doc, KV{k, s[k]})
		}
		return projectDoc(from, doc)
	case Doc:
		return projectDoc(from, s)
	}
	return "", fmt.Errorf("%w: unsupported type %T", ErrInvalidProjection, sel)
}

func projectDoc(from string, d Doc) (string, error) {
	if len(d) == 0 {
		return prefixed("RETURN ", from), nil
	}
	entries := make([]string, 0, len(d))
	for _, kv := range d {
		var ref string
		switch v := kv.Value.(type) {
		case string:
			ref = qualify(from, v)
		case Expr:
			ref = v.text
		default:
			return "", fmt.Errorf("%w: field %q must be a string or an Expr, got %T", ErrInvalidProjection, kv.Key, kv.Value)
		}
		entries = append(entries, string(quote(kv.Key))+": "+ref)
	}
	return "RETURN {" + strings.Join(entries, ", ") + "}", nil
}

func prefixed(prefix, text string) string {
	if text == "" {
		return ""
	}
	return prefix + text
}

func joinClauses(clauses ...string) string {
	return strings.Join(slices.DeleteFunc(clauses, func(c string) bool { return c == "" }), " ")
}
