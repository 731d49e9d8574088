package aql

import (
	"fmt"
	"maps"
	"reflect"
	"slices"
	"strconv"
	"strings"
)

// MaxConditionDepth is the deepest condition nesting (sub-queries included) that compiles.
const MaxConditionDepth = 256

var conditionMap = map[string]string{
	"NOT":    "!",
	"AND":    "&&",
	"OR":     "||",
	"IN":     "in",
	"NOT IN": "not in",
	"LIKE":   "LIKE",
}

// compiler turns conditions into AQL boolean expressions.
// Fields without a qualifier are qualified with from.
type compiler struct {
	from  string
	b     *binder
	depth int
}

func (c *compiler) condition(cond Condition) (string, error) {
	c.depth++
	defer func() { c.depth-- }()
	if c.depth > MaxConditionDepth {
		return "", ErrConditionTooDeep
	}

	switch cond := cond.(type) {
	case nil, Empty:
		return "", nil
	case RawCond:
		return string(cond), nil
	case Hash:
		return c.hash(cond)
	case Op:
		return c.operator(cond)
	}
	return "", fmt.Errorf("%w: unknown condition type %T", ErrInvalidOperand, cond)
}

func (c *compiler) operator(op Op) (string, error) {
	name := op.operator()
	switch name {
	case "NOT":
		return c.not(name, op.Operands)
	case "AND", "OR":
		return c.and(name, op.Operands)
	case "IN", "NOT IN":
		return c.in(name, op.Operands)
	case "LIKE":
		return c.like(name, op.Operands)
	case "BETWEEN":
		return c.between(name, op.Operands)
	}
	return "", &UnknownOperatorError{Operator: op.Name}
}

func (c *compiler) hash(h Hash) (string, error) {
	parts := make([]string, 0, len(h))
	for _, field := range slices.Sorted(maps.Keys(h)) {
		value := h[field]
		column := qualify(c.from, field)
		if isNil(value) {
			parts = append(parts, column+"==null")
			continue
		}
		if _, ok := value.(*Query); ok || isSequence(value) {
			part, err := c.in("IN", []any{field, value})
			if err != nil {
				return "", err
			}
			parts = append(parts, part)
			continue
		}
		v, err := c.b.value(value, field)
		if err != nil {
			return "", err
		}
		parts = append(parts, column+"=="+v)
	}
	if len(parts) == 1 {
		return parts[0], nil
	}
	return joinParts(parts, conditionMap["AND"]), nil
}

func (c *compiler) not(name string, operands []any) (string, error) {
	if len(operands) != 1 {
		return "", &ArityError{Operator: name, Want: "exactly one operand", Got: len(operands)}
	}
	operand, err := c.operand(name, operands[0])
	if err != nil {
		return "", err
	}
	if operand == "" {
		return "", nil
	}
	return conditionMap[name] + "(" + operand + ")", nil
}

func (c *compiler) and(name string, operands []any) (string, error) {
	parts := make([]string, 0, len(operands))
	for _, o := range operands {
		operand, err := c.operand(name, o)
		if err != nil {
			return "", err
		}
		if operand != "" {
			parts = append(parts, operand)
		}
	}
	return joinParts(parts, conditionMap[name]), nil
}

// operand compiles an operand of a logical operator.
func (c *compiler) operand(name string, o any) (string, error) {
	switch o := o.(type) {
	case nil:
		return "", nil
	case string:
		return o, nil
	case Condition:
		return c.condition(o)
	case map[string]any:
		return c.condition(Hash(o))
	}
	return "", fmt.Errorf("%w: operand of %s must be a condition, got %T", ErrInvalidOperand, name, o)
}

func (c *compiler) in(name string, operands []any) (string, error) {
	if len(operands) != 2 {
		return "", &ArityError{Operator: name, Want: "exactly two operands", Got: len(operands)}
	}
	column, values := operands[0], operands[1]

	columns, keys, err := c.columns(column)
	if err != nil {
		return "", err
	}
	if len(columns) == 0 || isEmptyList(values) {
		if name == "IN" {
			return "0==1", nil
		}
		return "", nil
	}
	word := conditionMap[name]

	if sub, ok := values.(*Query); ok {
		text, err := c.subquery(sub)
		if err != nil {
			return "", err
		}
		return tuple(columns) + " " + word + " (" + text + ")", nil
	}

	rows := listOf(values)
	if len(columns) > 1 {
		return c.compositeIn(word, columns, keys, rows)
	}

	items := make([]string, 0, len(rows))
	for i, v := range rows {
		if m, ok := asMapping(v); ok {
			v = m[keys[0]]
		}
		item, err := c.b.value(v, keys[0]+"["+strconv.Itoa(i)+"]")
		if err != nil {
			return "", err
		}
		items = append(items, item)
	}
	if len(items) > 1 {
		return columns[0] + " " + word + " [" + strings.Join(items, ", ") + "]", nil
	}
	eq := "=="
	if name != "IN" {
		eq = "!="
	}
	return columns[0] + eq + items[0], nil
}

// compositeIn tests a list of columns against rows of values. AQL has no tuples so
// both sides are arrays.
func (c *compiler) compositeIn(word string, columns, keys []string, rows []any) (string, error) {
	tuples := make([]string, 0, len(rows))
	for i, row := range rows {
		m, ok := asMapping(row)
		if !ok {
			return "", fmt.Errorf("%w: row %d of a multi column IN must be a mapping, got %T", ErrInvalidOperand, i, row)
		}
		vals := make([]string, 0, len(keys))
		for _, key := range keys {
			v, err := c.b.value(m[key], key+"["+strconv.Itoa(i)+"]")
			if err != nil {
				return "", err
			}
			vals = append(vals, v)
		}
		tuples = append(tuples, "["+strings.Join(vals, ", ")+"]")
	}
	return tuple(columns) + " " + word + " [" + strings.Join(tuples, ", ") + "]", nil
}

func (c *compiler) subquery(q *Query) (string, error) {
	if ret, err := projection(strings.TrimSpace(q.from), q.sel); err == nil && ret == "" {
		return "", fmt.Errorf("%w: sub-queries require a collection or a projection", ErrMissingCollection)
	}
	a := assembler{b: c.b, depth: c.depth}
	return a.statement(q, KindSelect, nil)
}

func (c *compiler) like(name string, operands []any) (string, error) {
	if len(operands) < 2 || len(operands) > 3 || operands[0] == nil || operands[1] == nil {
		return "", &ArityError{Operator: name, Want: "a column and a pattern", Got: len(operands)}
	}
	column, err := c.column(operands[0])
	if err != nil {
		return "", err
	}
	var pattern string
	if e, ok := operands[1].(Expr); ok {
		pattern = e.text
	} else {
		pattern, err = Marshal(operands[1])
		if err != nil {
			return "", err
		}
	}
	caseInsensitive := len(operands) == 3 && truthy(operands[2])
	return conditionMap[name] + "(" + column + ", " + pattern + ", " + strconv.FormatBool(caseInsensitive) + ")", nil
}

func (c *compiler) between(name string, operands []any) (string, error) {
	if len(operands) != 3 {
		return "", &ArityError{Operator: name, Want: "exactly three operands", Got: len(operands)}
	}
	column, err := c.column(operands[0])
	if err != nil {
		return "", err
	}
	low, err := c.b.value(operands[1], "low")
	if err != nil {
		return "", err
	}
	high, err := c.b.value(operands[2], "high")
	if err != nil {
		return "", err
	}
	return column + " >= " + low + " && " + column + " <= " + high, nil
}

// column returns the AQL reference of a single field.
func (c *compiler) column(ref any) (string, error) {
	switch r := ref.(type) {
	case string:
		return qualify(c.from, r), nil
	case Expr:
		return r.text, nil
	}
	return "", fmt.Errorf("%w: column must be a string or an Expr, got %T", ErrInvalidOperand, ref)
}

// columns returns the references of a column operand that may be a list, along with the keys
// used to look the columns up on mapping rows.
func (c *compiler) columns(ref any) ([]string, []string, error) {
	var list []any
	switch r := ref.(type) {
	case string, Expr:
		list = []any{r}
	case []string:
		for _, s := range r {
			list = append(list, s)
		}
	case []any:
		list = r
	default:
		return nil, nil, fmt.Errorf("%w: column must be a string, an Expr or a list of them, got %T", ErrInvalidOperand, ref)
	}
	columns := make([]string, 0, len(list))
	keys := make([]string, 0, len(list))
	for _, l := range list {
		column, err := c.column(l)
		if err != nil {
			return nil, nil, err
		}
		columns = append(columns, column)
		keys = append(keys, fmt.Sprint(l))
	}
	return columns, keys, nil
}

// qualify prefixes name with the collection variable unless it is already qualified or
// is an expression (function call, quoted placeholder). Qualifying twice is a no-op.
func qualify(from, name string) string {
	if strings.Contains(name, "(") || strings.Contains(name, "[[") || strings.Contains(name, "{{") {
		return name
	}
	if strings.Contains(name, ".") || from == "" {
		return name
	}
	return from + "." + name
}

func tuple(columns []string) string {
	if len(columns) == 1 {
		return columns[0]
	}
	return "[" + strings.Join(columns, ", ") + "]"
}

func joinParts(parts []string, op string) string {
	if len(parts) == 0 {
		return ""
	}
	return "(" + strings.Join(parts, ") "+op+" (") + ")"
}

// isSequence reports whether v is a list of values. A []byte or a [Doc] is not.
func isSequence(v any) bool {
	if _, ok := v.(Doc); ok || v == nil {
		return false
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		return rv.Type().Elem().Kind() != reflect.Uint8
	}
	return false
}

// truthy converts a flag operand to a bool: nil, false, zero numbers, "", "0" and
// empty lists are false, everything else is true.
func truthy(v any) bool {
	if isNil(v) {
		return false
	}
	switch v := v.(type) {
	case bool:
		return v
	case string:
		return v != "" && v != "0"
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Bool:
		return rv.Bool()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int() != 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return rv.Uint() != 0
	case reflect.Float32, reflect.Float64:
		return rv.Float() != 0
	case reflect.Slice, reflect.Array, reflect.Map:
		return rv.Len() > 0
	}
	return true
}

func isEmptyList(v any) bool {
	if isNil(v) {
		return true
	}
	return isSequence(v) && reflect.ValueOf(v).Len() == 0
}

// listOf returns the elements of a sequence, other values are a single element list.
func listOf(v any) []any {
	if vv, ok := v.([]any); ok {
		return vv
	}
	if !isSequence(v) {
		return []any{v}
	}
	rv := reflect.ValueOf(v)
	list := make([]any, rv.Len())
	for i := range rv.Len() {
		list[i] = rv.Index(i).Interface()
	}
	return list
}

func asMapping(v any) (map[string]any, bool) {
	switch v := v.(type) {
	case map[string]any:
		return v, true
	case Hash:
		return v, true
	case Doc:
		m := make(map[string]any, len(v))
		for _, kv := range v {
			if _, ok := m[kv.Key]; !ok {
				m[kv.Key] = kv.Value
			}
		}
		return m, true
	}
	return nil, false
}
