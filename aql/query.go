package aql

import (
	"errors"
	"maps"
	"slices"
	"strings"
)

// Query builds AQL statements. The zero value is an empty query, ready to use.
//
// Mutators return the query itself so calls can be chained. Terminal operations
// (Build and friends) never change the query and can be called any number of times.
// A Query must not be mutated concurrently, distinct queries are independent.
type Query struct {
	sel       any
	from      string
	where     Condition
	orderBy   []Sort
	limit     int
	offset    int
	hasLimit  bool
	indexBy   string
	params    Params
	options   map[string]any
	batchSize int
	err       error
}

// Sort is an ordering criteria.
type Sort struct {
	Field string
	Desc  bool
}

// New creates an empty query.
func New() *Query {
	return &Query{}
}

// Asc orders by field on ascending order.
func Asc(field string) Sort {
	return Sort{Field: field}
}

// Desc orders by field on descending order.
func Desc(field string) Sort {
	return Sort{Field: field, Desc: true}
}

// Select sets the projection of read statements. It may be:
//   - nil or an empty string: the whole document is returned.
//   - a string or an [Expr]: an AQL expression returned verbatim.
//   - a map[string]string, map[string]any or [Doc]: an object whose keys are the given keys
//     and whose values are the referenced fields (strings) or expressions ([Expr]).
//   - a []string: an object with the given fields.
func (q *Query) Select(sel any) *Query {
	q.sel = sel
	return q
}

// From sets the source collection. It is also the name of the loop variable.
func (q *Query) From(collection string) *Query {
	q.from = collection
	return q
}

// Where sets the filter condition, replacing any previous one.
func (q *Query) Where(c Condition) *Query {
	q.where = c
	return q
}

// AndWhere conjoins c with the current filter condition.
func (q *Query) AndWhere(c Condition) *Query {
	if isNone(q.where) {
		q.where = c
		return q
	}
	q.where = And(q.where, c)
	return q
}

// OrWhere disjoins c with the current filter condition.
func (q *Query) OrWhere(c Condition) *Query {
	if isNone(q.where) {
		q.where = c
		return q
	}
	q.where = Or(q.where, c)
	return q
}

// FilterWhere is like [Query.Where] but empty operands are removed from c first,
// see [FilterCondition]. If nothing remains the current condition is kept.
func (q *Query) FilterWhere(c Condition) *Query {
	if c, ok := q.filter(c); ok {
		q.Where(c)
	}
	return q
}

// AndFilterWhere is like [Query.AndWhere] but empty operands are removed from c first.
func (q *Query) AndFilterWhere(c Condition) *Query {
	if c, ok := q.filter(c); ok {
		q.AndWhere(c)
	}
	return q
}

// OrFilterWhere is like [Query.OrWhere] but empty operands are removed from c first.
func (q *Query) OrFilterWhere(c Condition) *Query {
	if c, ok := q.filter(c); ok {
		q.OrWhere(c)
	}
	return q
}

func (q *Query) filter(c Condition) (Condition, bool) {
	c, err := FilterCondition(c)
	if err != nil {
		q.err = errors.Join(q.err, err)
		return nil, false
	}
	return c, !isNone(c)
}

// OrderBy sets the ordering criteria, replacing any previous one.
func (q *Query) OrderBy(sorts ...Sort) *Query {
	q.orderBy = slices.Clone(sorts)
	return q
}

// AddOrderBy appends ordering criteria.
func (q *Query) AddOrderBy(sorts ...Sort) *Query {
	q.orderBy = append(q.orderBy, sorts...)
	return q
}

// OrderByString sets the ordering criteria from a comma separated list of fields,
// each optionally followed by ASC or DESC, like "created_at DESC, name".
func (q *Query) OrderByString(orderBy string) *Query {
	return q.OrderBy(ParseOrderBy(orderBy)...)
}

// ParseOrderBy parses a comma separated list of fields with an optional direction.
func ParseOrderBy(orderBy string) []Sort {
	var sorts []Sort
	for _, part := range strings.Split(orderBy, ",") {
		fields := strings.Fields(part)
		if len(fields) == 0 {
			continue
		}
		s := Sort{Field: fields[0]}
		if len(fields) > 1 {
			switch strings.ToUpper(fields[len(fields)-1]) {
			case "DESC":
				s.Field = strings.Join(fields[:len(fields)-1], " ")
				s.Desc = true
			case "ASC":
				s.Field = strings.Join(fields[:len(fields)-1], " ")
			default:
				s.Field = strings.Join(fields, " ")
			}
		}
		sorts = append(sorts, s)
	}
	return sorts
}

// Limit sets the maximum number of rows. A negative limit removes it.
// Without a limit the offset is ignored.
func (q *Query) Limit(limit int) *Query {
	q.limit = max(limit, 0)
	q.hasLimit = limit >= 0
	return q
}

// Offset sets the number of rows to skip. Negative offsets are zero.
func (q *Query) Offset(offset int) *Query {
	q.offset = max(offset, 0)
	return q
}

// IndexBy sets the dotted path of the attribute that indexes the result rows.
func (q *Query) IndexBy(path string) *Query {
	q.indexBy = path
	return q
}

// Params sets the bind parameters of the query, replacing previous ones.
// Generated parameters never reuse these names.
func (q *Query) Params(params Params) *Query {
	q.params = maps.Clone(params)
	return q
}

// AddParams adds bind parameters. Binding an existing name to a different value
// fails on the next terminal operation with a [*DuplicateParamError].
func (q *Query) AddParams(params Params) *Query {
	if q.params == nil {
		q.params = Params{}
	}
	if err := MergeParams(q.params, params); err != nil {
		q.err = errors.Join(q.err, err)
	}
	return q
}

// Options sets the statement options, replacing previous ones.
// Mutations render them on the OPTIONS clause, reads pass them to the cursor.
func (q *Query) Options(options map[string]any) *Query {
	q.options = maps.Clone(options)
	return q
}

// AddOptions adds statement options, overwriting the ones with the same name.
func (q *Query) AddOptions(options map[string]any) *Query {
	if q.options == nil {
		q.options = map[string]any{}
	}
	maps.Copy(q.options, options)
	return q
}

// BatchSize sets the number of rows fetched per round-trip by the executor.
func (q *Query) BatchSize(size int) *Query {
	q.batchSize = max(size, 0)
	return q
}

// Err returns the errors recorded by the mutators so far.
func (q *Query) Err() error {
	return q.err
}

// Clone returns a copy of the query that can be changed independently.
// Conditions are immutable once built, so they are shared.
func (q *Query) Clone() *Query {
	c := *q
	c.orderBy = slices.Clone(q.orderBy)
	c.params = maps.Clone(q.params)
	c.options = maps.Clone(q.options)
	return &c
}

// Build compiles the read statement.
func (q *Query) Build() (Statement, error) {
	return build(q, KindSelect, nil)
}

// BuildOne compiles the read statement limited to a single row.
func (q *Query) BuildOne() (Statement, error) {
	return build(q.Clone().Limit(1), KindSelect, nil)
}

// BuildCount compiles a statement that counts the matching documents.
// The count is reported by the executor as the full count of the statement.
func (q *Query) BuildCount() (Statement, error) {
	c := q.Clone().Select("1").Limit(1).Offset(0)
	st, err := build(c, KindCount, nil)
	if err != nil {
		return Statement{}, err
	}
	st.FullCount = true
	st.BatchSize = 1
	return st, nil
}

// BuildInsert compiles a statement that inserts document on the source collection.
// document is serialized by [Marshal], so it can contain expressions.
func (q *Query) BuildInsert(document any) (Statement, error) {
	return build(q, KindInsert, document)
}

// BuildUpdate compiles a statement that updates every matching document with patch.
// patch is serialized by [Marshal], so it can contain expressions.
func (q *Query) BuildUpdate(patch any) (Statement, error) {
	return build(q, KindUpdate, patch)
}

// BuildRemove compiles a statement that removes every matching document.
func (q *Query) BuildRemove() (Statement, error) {
	return build(q, KindRemove, nil)
}

// BuildKind compiles the statement of the given kind. arg is the document of inserts
// and the patch of updates, it is ignored otherwise.
func (q *Query) BuildKind(kind Kind, arg any) (Statement, error) {
	switch kind {
	case KindSelect, "":
		return q.Build()
	case KindCount:
		return q.BuildCount()
	case KindInsert:
		return q.BuildInsert(arg)
	case KindUpdate:
		return q.BuildUpdate(arg)
	case KindRemove:
		return q.BuildRemove()
	}
	_, err := ParseKind(string(kind))
	return Statement{}, err
}

func build(src *Query, kind Kind, arg any) (Statement, error) {
	a := assembler{b: newBinder()}
	text, err := a.statement(src, kind, arg)
	if err != nil {
		return Statement{}, err
	}
	st := Statement{
		Query:      text,
		BindVars:   a.b.params,
		Kind:       kind,
		Collection: strings.TrimSpace(src.from),
		BatchSize:  src.batchSize,
		IndexBy:    src.indexBy,
	}
	if !kind.Mutation() && len(src.options) > 0 {
		st.Options = maps.Clone(src.options)
	}
	return st, nil
}

func isNone(c Condition) bool {
	switch c.(type) {
	case nil, Empty:
		return true
	}
	return false
}
