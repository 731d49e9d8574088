package aql

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Spec is the declarative description of a statement, usually decoded from JSON:
//
//	{
//		"from": "users",
//		"select": {"id": "_key", "name": "name"},
//		"where": {"status": "active"},
//		"filter_where": ["AND", ["LIKE", "name", "jo%"], ["BETWEEN", "age", 18, null]],
//		"order_by": "created_at DESC, name",
//		"limit": 10,
//		"offset": 20,
//		"kind": "select"
//	}
//
// Conditions are decoded as: objects to [Hash], arrays whose first element is the
// operator name to [Op], strings to [RawCond] and null, {} or [] to [Empty].
// An object of the form {"$aql": "DATE_NOW()"} anywhere is an [Expr] and an object
// of the form {"$query": {...}} is a sub-query described by a nested Spec.
type Spec struct {
	From        string
	Select      any
	Where       Condition
	FilterWhere Condition
	OrderBy     []Sort
	// Limit is nil when there is no limit.
	Limit     *int
	Offset    int
	IndexBy   string
	Params    Params
	Options   map[string]any
	BatchSize int
	Kind      Kind
	// Document is the inserted document or the update patch.
	Document any
}

type specJSON struct {
	From        string          `json:"from"`
	Select      json.RawMessage `json:"select"`
	Where       json.RawMessage `json:"where"`
	FilterWhere json.RawMessage `json:"filter_where"`
	OrderBy     string          `json:"order_by"`
	Limit       *int            `json:"limit"`
	Offset      int             `json:"offset"`
	IndexBy     string          `json:"index_by"`
	Params      json.RawMessage `json:"params"`
	Options     json.RawMessage `json:"options"`
	BatchSize   int             `json:"batch_size"`
	Kind        string          `json:"kind"`
	Document    json.RawMessage `json:"document"`
}

// ErrInvalidSpec is returned when a JSON spec document is malformed.
var ErrInvalidSpec = errors.New("invalid spec")

// UnmarshalJSON decodes a spec document.
func (s *Spec) UnmarshalJSON(data []byte) error {
	var raw specJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	kind, err := ParseKind(raw.Kind)
	if err != nil {
		return err
	}
	spec := Spec{
		From:      raw.From,
		OrderBy:   ParseOrderBy(raw.OrderBy),
		Limit:     raw.Limit,
		Offset:    raw.Offset,
		IndexBy:   raw.IndexBy,
		BatchSize: raw.BatchSize,
		Kind:      kind,
	}

	if spec.Select, err = decodeSelect(raw.Select); err != nil {
		return err
	}
	if spec.Where, err = decodeConditionJSON(raw.Where); err != nil {
		return fmt.Errorf("where: %w", err)
	}
	if spec.FilterWhere, err = decodeConditionJSON(raw.FilterWhere); err != nil {
		return fmt.Errorf("filter_where: %w", err)
	}
	if spec.Document, err = decodeValue(raw.Document); err != nil {
		return fmt.Errorf("document: %w", err)
	}
	params, err := decodeValue(raw.Params)
	if err != nil {
		return fmt.Errorf("params: %w", err)
	}
	if p, ok := params.(map[string]any); ok {
		spec.Params = p
	} else if params != nil {
		return fmt.Errorf("%w: params must be an object, got %T", ErrInvalidSpec, params)
	}
	options, err := decodeValue(raw.Options)
	if err != nil {
		return fmt.Errorf("options: %w", err)
	}
	if o, ok := options.(map[string]any); ok {
		spec.Options = o
	} else if options != nil {
		return fmt.Errorf("%w: options must be an object, got %T", ErrInvalidSpec, options)
	}

	*s = spec
	return nil
}

// Query creates the query described by the spec.
func (s Spec) Query() *Query {
	q := New().
		From(s.From).
		Select(s.Select).
		Where(s.Where).
		AndFilterWhere(s.FilterWhere).
		OrderBy(s.OrderBy...).
		Offset(s.Offset).
		IndexBy(s.IndexBy).
		Params(s.Params).
		Options(s.Options).
		BatchSize(s.BatchSize)
	if s.Limit != nil {
		q.Limit(*s.Limit)
	}
	return q
}

// Statement compiles the statement of the spec kind.
func (s Spec) Statement() (Statement, error) {
	return s.Query().BuildKind(s.Kind, s.Document)
}

func decodeSelect(data json.RawMessage) (any, error) {
	v, err := decodeValue(data)
	if err != nil {
		return nil, fmt.Errorf("select: %w", err)
	}
	list, ok := v.([]any)
	if !ok {
		return v, nil
	}
	fields := make([]string, 0, len(list))
	for _, f := range list {
		field, ok := f.(string)
		if !ok {
			return nil, fmt.Errorf("%w: select fields must be strings, got %T", ErrInvalidSpec, f)
		}
		fields = append(fields, field)
	}
	return fields, nil
}

func decodeConditionJSON(data json.RawMessage) (Condition, error) {
	v, err := decodeValue(data)
	if err != nil {
		return nil, err
	}
	return decodeCondition(v)
}

func decodeCondition(v any) (Condition, error) {
	switch v := v.(type) {
	case nil:
		return Empty{}, nil
	case string:
		return RawCond(v), nil
	case map[string]any:
		if len(v) == 0 {
			return Empty{}, nil
		}
		return Hash(v), nil
	case []any:
		if len(v) == 0 {
			return Empty{}, nil
		}
		name, ok := v[0].(string)
		if !ok {
			return nil, fmt.Errorf("%w: operator must be a string, got %T", ErrInvalidSpec, v[0])
		}
		op := Op{Name: name, Operands: v[1:]}
		switch op.operator() {
		case "NOT", "AND", "OR":
			operands := make([]any, len(op.Operands))
			for i, o := range op.Operands {
				c, err := decodeCondition(o)
				if err != nil {
					return nil, err
				}
				operands[i] = c
			}
			op.Operands = operands
		}
		return op, nil
	}
	return nil, fmt.Errorf("%w: condition must be an object, an array or a string, got %T", ErrInvalidSpec, v)
}

// decodeValue decodes a JSON value, turning "$aql" objects into expressions and
// "$query" objects into sub-queries. Integral numbers are decoded as int64.
func decodeValue(data json.RawMessage) (any, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return lift(v)
}

func lift(v any) (any, error) {
	switch v := v.(type) {
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return i, nil
		}
		return v.Float64()
	case []any:
		for i, e := range v {
			l, err := lift(e)
			if err != nil {
				return nil, err
			}
			v[i] = l
		}
		return v, nil
	case map[string]any:
		if len(v) == 1 {
			if text, ok := v["$aql"]; ok {
				s, ok := text.(string)
				if !ok {
					return nil, fmt.Errorf("%w: $aql must be a string, got %T", ErrInvalidSpec, text)
				}
				return Raw(s), nil
			}
			if sub, ok := v["$query"]; ok {
				return subquery(sub)
			}
		}
		for k, e := range v {
			l, err := lift(e)
			if err != nil {
				return nil, err
			}
			v[k] = l
		}
		return v, nil
	}
	return v, nil
}

func subquery(v any) (*Query, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var spec Spec
	if err := json.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("$query: %w", err)
	}
	return spec.Query(), nil
}
