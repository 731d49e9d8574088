package aql

import (
	"reflect"
	"strings"
)

// FilterCondition removes the empty operands of c, so the condition only filters on
// the values that were actually provided (like the optional fields of a search form).
//
// Empty operands are nil, [Empty], strings that are blank or only have "%" (the LIKE
// wildcard), empty slices and empty maps. Hash entries with empty values are dropped.
// NOT, AND and OR drop their empty operands and become [Empty] when none remain.
// IN, NOT IN, LIKE and BETWEEN become [Empty] when one of their values is empty.
// Any other operator fails with a [*UnsupportedOperatorError].
func FilterCondition(c Condition) (Condition, error) {
	switch c := c.(type) {
	case nil, Empty:
		return Empty{}, nil
	case RawCond:
		if isEmpty(string(c)) {
			return Empty{}, nil
		}
		return c, nil
	case Hash:
		return filterHash(c), nil
	case Op:
		return filterOp(c)
	}
	return c, nil
}

func filterHash(h Hash) Condition {
	filtered := Hash{}
	for field, value := range h {
		if !isEmpty(value) {
			filtered[field] = value
		}
	}
	if len(filtered) == 0 {
		return Empty{}
	}
	return filtered
}

func filterOp(op Op) (Condition, error) {
	operands := op.Operands
	switch op.operator() {
	case "NOT", "AND", "OR":
		kept := make([]any, 0, len(operands))
		for _, o := range operands {
			o, err := filterOperand(o)
			if err != nil {
				return nil, err
			}
			if !isEmpty(o) {
				kept = append(kept, o)
			}
		}
		if len(kept) == 0 {
			return Empty{}, nil
		}
		return Op{Name: op.Name, Operands: kept}, nil
	case "IN", "NOT IN", "LIKE":
		if len(operands) > 1 && isEmpty(operands[1]) {
			return Empty{}, nil
		}
		return op, nil
	case "BETWEEN":
		if len(operands) > 1 && isEmpty(operands[1]) || len(operands) > 2 && isEmpty(operands[2]) {
			return Empty{}, nil
		}
		return op, nil
	}
	return nil, &UnsupportedOperatorError{Operator: op.Name}
}

func filterOperand(o any) (any, error) {
	switch o := o.(type) {
	case Condition:
		return FilterCondition(o)
	case map[string]any:
		return FilterCondition(Hash(o))
	}
	return o, nil
}

func isEmpty(v any) bool {
	switch v := v.(type) {
	case nil, Empty:
		return true
	case RawCond:
		return isEmpty(string(v))
	case string:
		return strings.TrimSpace(v) == "" || strings.Trim(v, "%") == ""
	case Expr:
		return false
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Map:
		return rv.Len() == 0
	case reflect.Pointer, reflect.Interface:
		return rv.IsNil()
	}
	return false
}
