package aql

import "strings"

type (
	// Condition describes a filter predicate before it is compiled.
	// It is one of [Hash], [Op], [RawCond] or [Empty]. A nil Condition is the same as [Empty].
	Condition interface {
		condition()
	}

	// Hash is the equality form: every entry is a field and the value it must have.
	// Entries are conjoined. A slice or *[Query] value is an IN test, a nil value a null test.
	// Fields are compiled on their sorted order.
	Hash map[string]any

	// Op is the operator form: an operator name applied to its operands.
	// Supported operators are NOT, AND, OR, IN, NOT IN, LIKE and BETWEEN (case insensitive).
	//
	// Operands of NOT, AND and OR are conditions (a string operand is raw condition text).
	// IN and NOT IN take a column (a field name, an [Expr] or a list of field names) and
	// the values (a slice, a single value or a *[Query]). LIKE takes a column, a pattern
	// and optionally a bool that enables case insensitive matching. BETWEEN takes a column
	// and the lower and upper bounds.
	Op struct {
		Name     string
		Operands []any
	}

	// RawCond is condition text that is inserted verbatim.
	RawCond string

	// Empty is the absence of a condition, it compiles to no filter at all.
	Empty struct{}
)

func (Hash) condition()    {}
func (Op) condition()      {}
func (RawCond) condition() {}
func (Empty) condition()   {}

// Not negates c.
func Not(c Condition) Op {
	return Op{Name: "NOT", Operands: []any{c}}
}

// And conjoins the given conditions.
func And(conds ...Condition) Op {
	return Op{Name: "AND", Operands: conditionOperands(conds)}
}

// Or disjoins the given conditions.
func Or(conds ...Condition) Op {
	return Op{Name: "OR", Operands: conditionOperands(conds)}
}

// In tests that column is one of values.
// values may be a slice, a single value or a *[Query] (sub-query).
// If column is a list of fields then values must be a list of mappings keyed by those fields.
func In(column, values any) Op {
	return Op{Name: "IN", Operands: []any{column, values}}
}

// NotIn is the negation of [In].
func NotIn(column, values any) Op {
	return Op{Name: "NOT IN", Operands: []any{column, values}}
}

// Like tests column against a LIKE pattern (case sensitive).
func Like(column any, pattern any) Op {
	return Op{Name: "LIKE", Operands: []any{column, pattern}}
}

// ILike tests column against a LIKE pattern ignoring case.
func ILike(column any, pattern any) Op {
	return Op{Name: "LIKE", Operands: []any{column, pattern, true}}
}

// Between tests that low <= column <= high.
func Between(column any, low, high any) Op {
	return Op{Name: "BETWEEN", Operands: []any{column, low, high}}
}

// Operator creates an [Op] with any name and operands.
func Operator(name string, operands ...any) Op {
	return Op{Name: name, Operands: operands}
}

// RawCondition creates a [RawCond].
func RawCondition(text string) RawCond {
	return RawCond(text)
}

// operator returns the normalized operator name: upper case with single spaces.
func (o Op) operator() string {
	return strings.Join(strings.Fields(strings.ToUpper(o.Name)), " ")
}

func conditionOperands(conds []Condition) []any {
	operands := make([]any, len(conds))
	for i, c := range conds {
		operands[i] = c
	}
	return operands
}
