package aql_test

import (
	"errors"
	"testing"

	"github.com/birdie-ai/arangoql/aql"
	"github.com/google/go-cmp/cmp"
)

func TestConditions(t *testing.T) {
	t.Parallel()
	type testcase struct {
		name   string
		where  aql.Condition
		want   string
		params aql.Params
	}

	orders := func() *aql.Query {
		return aql.New().From("orders").Select("orders.user").Where(aql.Hash{"total": 10})
	}

	for _, tc := range []testcase{
		{
			name:   "no condition",
			where:  nil,
			want:   "FOR users IN users RETURN users",
			params: aql.Params{},
		},
		{
			name:   "empty",
			where:  aql.Empty{},
			want:   "FOR users IN users RETURN users",
			params: aql.Params{},
		},
		{
			name:   "empty hash",
			where:  aql.Hash{},
			want:   "FOR users IN users RETURN users",
			params: aql.Params{},
		},
		{
			name:   "hash",
			where:  aql.Hash{"status": 1},
			want:   "FOR users IN users FILTER users.status==@qp0 RETURN users",
			params: aql.Params{"qp0": 1},
		},
		{
			name:   "hash with many fields",
			where:  aql.Hash{"b": 2, "a": "x"},
			want:   "FOR users IN users FILTER (users.a==@qp0) && (users.b==@qp1) RETURN users",
			params: aql.Params{"qp0": "x", "qp1": 2},
		},
		{
			name:   "hash null",
			where:  aql.Hash{"deleted_at": nil},
			want:   "FOR users IN users FILTER users.deleted_at==null RETURN users",
			params: aql.Params{},
		},
		{
			name:   "hash nil pointer",
			where:  aql.Hash{"age": (*int)(nil), "status": 1},
			want:   "FOR users IN users FILTER (users.age==null) && (users.status==@qp0) RETURN users",
			params: aql.Params{"qp0": 1},
		},
		{
			name:   "hash nil sub-query",
			where:  aql.Hash{"_key": (*aql.Query)(nil)},
			want:   "FOR users IN users FILTER users._key==null RETURN users",
			params: aql.Params{},
		},
		{
			name:   "in nil pointers",
			where:  aql.In("age", []*int{nil, nil}),
			want:   "FOR users IN users FILTER users.age in [null, null] RETURN users",
			params: aql.Params{},
		},
		{
			name:   "between nil pointer",
			where:  aql.Between("age", (*int)(nil), 30),
			want:   "FOR users IN users FILTER users.age >= null && users.age <= @qp0 RETURN users",
			params: aql.Params{"qp0": 30},
		},
		{
			name:   "hash list",
			where:  aql.Hash{"age": []int{20, 21}},
			want:   "FOR users IN users FILTER users.age in [@qp0, @qp1] RETURN users",
			params: aql.Params{"qp0": 20, "qp1": 21},
		},
		{
			name:   "hash empty list",
			where:  aql.Hash{"age": []int{}},
			want:   "FOR users IN users FILTER 0==1 RETURN users",
			params: aql.Params{},
		},
		{
			name:   "hash expression",
			where:  aql.Hash{"updated_at": aql.Raw("DATE_NOW()")},
			want:   "FOR users IN users FILTER users.updated_at==DATE_NOW() RETURN users",
			params: aql.Params{},
		},
		{
			name:   "hash composite value is inlined",
			where:  aql.Hash{"meta": map[string]any{"a": 1}},
			want:   `FOR users IN users FILTER users.meta=={"a":1} RETURN users`,
			params: aql.Params{},
		},
		{
			name:   "qualified and function fields",
			where:  aql.Hash{"u.name": "x", "LENGTH(users.tags)": 2},
			want:   "FOR users IN users FILTER (LENGTH(users.tags)==@qp0) && (u.name==@qp1) RETURN users",
			params: aql.Params{"qp0": 2, "qp1": "x"},
		},
		{
			name:   "not",
			where:  aql.Not(aql.Hash{"a": 1}),
			want:   "FOR users IN users FILTER !(users.a==@qp0) RETURN users",
			params: aql.Params{"qp0": 1},
		},
		{
			name:   "not empty",
			where:  aql.Not(aql.Empty{}),
			want:   "FOR users IN users RETURN users",
			params: aql.Params{},
		},
		{
			name:   "and without operands",
			where:  aql.And(),
			want:   "FOR users IN users RETURN users",
			params: aql.Params{},
		},
		{
			name:   "or without operands",
			where:  aql.Operator("or"),
			want:   "FOR users IN users RETURN users",
			params: aql.Params{},
		},
		{
			name:   "and drops empty operands",
			where:  aql.And(aql.Hash{"a": 1}, aql.Empty{}, aql.Hash{"b": 2}),
			want:   "FOR users IN users FILTER (users.a==@qp0) && (users.b==@qp1) RETURN users",
			params: aql.Params{"qp0": 1, "qp1": 2},
		},
		{
			name:   "and with a single operand",
			where:  aql.And(aql.Hash{"a": 1}),
			want:   "FOR users IN users FILTER (users.a==@qp0) RETURN users",
			params: aql.Params{"qp0": 1},
		},
		{
			name:   "or with raw text operand",
			where:  aql.Operator("or", "users.x > 1", map[string]any{"a": 1}),
			want:   "FOR users IN users FILTER (users.x > 1) || (users.a==@qp0) RETURN users",
			params: aql.Params{"qp0": 1},
		},
		{
			name:   "nesting",
			where:  aql.Or(aql.And(aql.Hash{"a": 1}, aql.Hash{"b": 2}), aql.Hash{"c": 3}),
			want:   "FOR users IN users FILTER ((users.a==@qp0) && (users.b==@qp1)) || (users.c==@qp2) RETURN users",
			params: aql.Params{"qp0": 1, "qp1": 2, "qp2": 3},
		},
		{
			name:   "in",
			where:  aql.In("id", []string{"a", "b"}),
			want:   "FOR users IN users FILTER users.id in [@qp0, @qp1] RETURN users",
			params: aql.Params{"qp0": "a", "qp1": "b"},
		},
		{
			name:   "not in",
			where:  aql.NotIn("id", []string{"a", "b"}),
			want:   "FOR users IN users FILTER users.id not in [@qp0, @qp1] RETURN users",
			params: aql.Params{"qp0": "a", "qp1": "b"},
		},
		{
			name:   "in single value",
			where:  aql.In("id", []string{"a"}),
			want:   "FOR users IN users FILTER users.id==@qp0 RETURN users",
			params: aql.Params{"qp0": "a"},
		},
		{
			name:   "not in single value",
			where:  aql.NotIn("id", []string{"a"}),
			want:   "FOR users IN users FILTER users.id!=@qp0 RETURN users",
			params: aql.Params{"qp0": "a"},
		},
		{
			name:   "in scalar",
			where:  aql.In("id", 5),
			want:   "FOR users IN users FILTER users.id==@qp0 RETURN users",
			params: aql.Params{"qp0": 5},
		},
		{
			name:   "in empty",
			where:  aql.In("id", []int{}),
			want:   "FOR users IN users FILTER 0==1 RETURN users",
			params: aql.Params{},
		},
		{
			name:   "in nil",
			where:  aql.In("id", nil),
			want:   "FOR users IN users FILTER 0==1 RETURN users",
			params: aql.Params{},
		},
		{
			name:   "not in empty",
			where:  aql.NotIn("id", []int{}),
			want:   "FOR users IN users RETURN users",
			params: aql.Params{},
		},
		{
			name:   "in empty column list",
			where:  aql.In([]string{}, []int{1}),
			want:   "FOR users IN users FILTER 0==1 RETURN users",
			params: aql.Params{},
		},
		{
			name:   "in with null",
			where:  aql.In("id", []any{1, nil}),
			want:   "FOR users IN users FILTER users.id in [@qp0, null] RETURN users",
			params: aql.Params{"qp0": 1},
		},
		{
			name:   "in with mapping rows",
			where:  aql.In("id", []any{map[string]any{"id": 1}, map[string]any{"x": 2}}),
			want:   "FOR users IN users FILTER users.id in [@qp0, null] RETURN users",
			params: aql.Params{"qp0": 1},
		},
		{
			name: "in composite",
			where: aql.In([]string{"a", "b"}, []any{
				map[string]any{"a": 1, "b": 2},
				aql.Doc{{Key: "b", Value: 3}},
			}),
			want:   "FOR users IN users FILTER [users.a, users.b] in [[@qp0, @qp1], [null, @qp2]] RETURN users",
			params: aql.Params{"qp0": 1, "qp1": 2, "qp2": 3},
		},
		{
			name:   "in expression column",
			where:  aql.In(aql.Raw("LOWER(users.email)"), []string{"a@b.c", "d@e.f"}),
			want:   "FOR users IN users FILTER LOWER(users.email) in [@qp0, @qp1] RETURN users",
			params: aql.Params{"qp0": "a@b.c", "qp1": "d@e.f"},
		},
		{
			name:   "in sub-query",
			where:  aql.In("_key", orders()),
			want:   "FOR users IN users FILTER users._key in (FOR orders IN orders FILTER orders.total==@qp0 RETURN orders.user) RETURN users",
			params: aql.Params{"qp0": 10},
		},
		{
			name:   "hash sub-query",
			where:  aql.And(aql.Hash{"active": true}, aql.Hash{"_key": orders()}),
			want:   "FOR users IN users FILTER (users.active==@qp0) && (users._key in (FOR orders IN orders FILTER orders.total==@qp1 RETURN orders.user)) RETURN users",
			params: aql.Params{"qp0": true, "qp1": 10},
		},
		{
			name:   "composite sub-query",
			where:  aql.In([]string{"a", "b"}, aql.New().From("pairs").Select("[pairs.a, pairs.b]")),
			want:   "FOR users IN users FILTER [users.a, users.b] in (FOR pairs IN pairs RETURN [pairs.a, pairs.b]) RETURN users",
			params: aql.Params{},
		},
		{
			name:   "like",
			where:  aql.Like("name", "jo%"),
			want:   `FOR users IN users FILTER LIKE(users.name, "jo%", false) RETURN users`,
			params: aql.Params{},
		},
		{
			name:   "like ignoring case",
			where:  aql.ILike("name", "jo%"),
			want:   `FOR users IN users FILTER LIKE(users.name, "jo%", true) RETURN users`,
			params: aql.Params{},
		},
		{
			name:   "like escapes the pattern",
			where:  aql.Like("name", `a"b\`),
			want:   `FOR users IN users FILTER LIKE(users.name, "a\"b\\", false) RETURN users`,
			params: aql.Params{},
		},
		{
			name:   "like flag number",
			where:  aql.Operator("LIKE", "name", "jo%", int64(1)),
			want:   `FOR users IN users FILTER LIKE(users.name, "jo%", true) RETURN users`,
			params: aql.Params{},
		},
		{
			name:   "like flag zero",
			where:  aql.Operator("LIKE", "name", "jo%", 0.0),
			want:   `FOR users IN users FILTER LIKE(users.name, "jo%", false) RETURN users`,
			params: aql.Params{},
		},
		{
			name:   "like flag string",
			where:  aql.Operator("LIKE", "name", "jo%", "yes"),
			want:   `FOR users IN users FILTER LIKE(users.name, "jo%", true) RETURN users`,
			params: aql.Params{},
		},
		{
			name:   "like flag zero string",
			where:  aql.Operator("LIKE", "name", "jo%", "0"),
			want:   `FOR users IN users FILTER LIKE(users.name, "jo%", false) RETURN users`,
			params: aql.Params{},
		},
		{
			name:   "like flag nil",
			where:  aql.Operator("LIKE", "name", "jo%", nil),
			want:   `FOR users IN users FILTER LIKE(users.name, "jo%", false) RETURN users`,
			params: aql.Params{},
		},
		{
			name:   "like expression pattern",
			where:  aql.Like("name", aql.Raw("CONCAT(@prefix, '%')")),
			want:   `FOR users IN users FILTER LIKE(users.name, CONCAT(@prefix, '%'), false) RETURN users`,
			params: aql.Params{},
		},
		{
			name:   "between",
			where:  aql.Between("age", 18, 30),
			want:   "FOR users IN users FILTER users.age >= @qp0 && users.age <= @qp1 RETURN users",
			params: aql.Params{"qp0": 18, "qp1": 30},
		},
		{
			name:   "raw",
			where:  aql.RawCondition("users.age > 18 && users.name != 'x'"),
			want:   "FOR users IN users FILTER users.age > 18 && users.name != 'x' RETURN users",
			params: aql.Params{},
		},
		{
			name:   "operator names are case insensitive",
			where:  aql.Operator("not  in", "id", []int{1, 2}),
			want:   "FOR users IN users FILTER users.id not in [@qp0, @qp1] RETURN users",
			params: aql.Params{"qp0": 1, "qp1": 2},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			st, err := aql.New().From("users").Where(tc.where).Build()
			if err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(tc.want, st.Query); diff != "" {
				t.Fatalf("got [+], want [-]: %s", diff)
			}
			if diff := cmp.Diff(tc.params, st.BindVars); diff != "" {
				t.Fatalf("params: got [+], want [-]: %s", diff)
			}
		})
	}
}

func TestConditionErrors(t *testing.T) {
	t.Parallel()
	type testcase struct {
		name  string
		query *aql.Query
		err   error
	}

	deep := aql.Condition(aql.Hash{"a": 1})
	for range aql.MaxConditionDepth + 1 {
		deep = aql.Not(deep)
	}

	for _, tc := range []testcase{
		{
			name:  "not without operands",
			query: aql.New().Where(aql.Operator("NOT")),
			err:   aql.ErrArity,
		},
		{
			name:  "not with two operands",
			query: aql.New().Where(aql.Operator("not", aql.Hash{"a": 1}, aql.Hash{"b": 1})),
			err:   aql.ErrArity,
		},
		{
			name:  "in with one operand",
			query: aql.New().Where(aql.Operator("IN", "id")),
			err:   aql.ErrArity,
		},
		{
			name:  "like without pattern",
			query: aql.New().Where(aql.Operator("LIKE", "name")),
			err:   aql.ErrArity,
		},
		{
			name:  "like nil pattern",
			query: aql.New().Where(aql.Like("name", nil)),
			err:   aql.ErrArity,
		},
		{
			name:  "empty sub-query",
			query: aql.New().From("users").Where(aql.In("_key", aql.New())),
			err:   aql.ErrMissingCollection,
		},
		{
			name:  "sub-query without source",
			query: aql.New().From("users").Where(aql.Hash{"_key": aql.New().Where(aql.Hash{"a": 1})}),
			err:   aql.ErrMissingCollection,
		},
		{
			name:  "between with two operands",
			query: aql.New().Where(aql.Operator("BETWEEN", "age", 1)),
			err:   aql.ErrArity,
		},
		{
			name:  "unknown operator",
			query: aql.New().Where(aql.Operator("XOR", aql.Hash{"a": 1}, aql.Hash{"b": 1})),
			err:   aql.ErrUnknownOperator,
		},
		{
			name:  "invalid logical operand",
			query: aql.New().Where(aql.Operator("AND", aql.Hash{"a": 1}, 42)),
			err:   aql.ErrInvalidOperand,
		},
		{
			name:  "composite in with scalar rows",
			query: aql.New().Where(aql.In([]string{"a", "b"}, []int{1, 2})),
			err:   aql.ErrInvalidOperand,
		},
		{
			name:  "unserializable value",
			query: aql.New().Where(aql.Hash{"a": make(chan int)}),
			err:   aql.ErrSerialization,
		},
		{
			name:  "sub-query params collision",
			query: aql.New().From("users").Params(aql.Params{"p": 1}).Where(aql.In("_key", aql.New().From("orders").Params(aql.Params{"p": 2}))),
			err:   aql.ErrDuplicateParam,
		},
		{
			name:  "too deep",
			query: aql.New().Where(deep),
			err:   aql.ErrConditionTooDeep,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			st, err := tc.query.Build()
			if !errors.Is(err, tc.err) {
				t.Fatalf("got %v; want %v", err, tc.err)
			}
			assertEqual(t, st, aql.Statement{})
		})
	}
}

func TestUnknownOperatorNamesToken(t *testing.T) {
	t.Parallel()

	_, err := aql.New().Where(aql.Operator("xor", aql.Hash{"a": 1})).Build()
	var uerr *aql.UnknownOperatorError
	if !errors.As(err, &uerr) {
		t.Fatalf("got %v; want *aql.UnknownOperatorError", err)
	}
	assertEqual(t, uerr.Operator, "xor")
}

func TestSubQueryParams(t *testing.T) {
	t.Parallel()

	orders := aql.New().
		From("orders").
		Select("orders.user").
		Params(aql.Params{"min": 10}).
		Where(aql.RawCondition("orders.total >= @min"))
	st, err := aql.New().
		From("users").
		Params(aql.Params{"min": 10}).
		Where(aql.And(aql.Hash{"active": true}, aql.In("_key", orders))).
		Build()
	if err != nil {
		t.Fatal(err)
	}
	assertEqual(t, st.Query, "FOR users IN users FILTER (users.active==@qp0) && (users._key in (FOR orders IN orders FILTER orders.total >= @min RETURN orders.user)) RETURN users")
	assertEqual(t, st.BindVars, aql.Params{"min": 10, "qp0": true})
}

func TestSubQueryParamsAreReserved(t *testing.T) {
	t.Parallel()
	type testcase struct {
		name  string
		where aql.Hash
		want  string
	}

	sessions := func() *aql.Query {
		return aql.New().
			From("sessions").
			Select("sessions.user").
			Params(aql.Params{"qp0": "x"}).
			Where(aql.RawCondition("sessions.token == @qp0"))
	}
	sub := "(FOR sessions IN sessions FILTER sessions.token == @qp0 RETURN sessions.user)"

	for _, tc := range []testcase{
		{
			name:  "field before the sub-query",
			where: aql.Hash{"a": 1, "b": sessions()},
			want:  "FOR users IN users FILTER (users.a==@qp1) && (users.b in " + sub + ") RETURN users",
		},
		{
			name:  "field after the sub-query",
			where: aql.Hash{"z": 1, "b": sessions()},
			want:  "FOR users IN users FILTER (users.b in " + sub + ") && (users.z==@qp1) RETURN users",
		},
		{
			name:  "nested operators",
			where: aql.Hash{"a": 1, "b": aql.New().From("orders").Select("orders.user").Where(aql.Not(aql.In("_key", sessions())))},
			want:  "FOR users IN users FILTER (users.a==@qp1) && (users.b in (FOR orders IN orders FILTER !(orders._key in " + sub + ") RETURN orders.user)) RETURN users",
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			st, err := aql.New().From("users").Where(tc.where).Build()
			if err != nil {
				t.Fatal(err)
			}
			assertEqual(t, st.Query, tc.want)
			assertEqual(t, st.BindVars, aql.Params{"qp0": "x", "qp1": 1})
		})
	}
}

func TestFieldsWithoutSource(t *testing.T) {
	t.Parallel()

	st, err := aql.New().
		Where(aql.Hash{"status": 1}).
		AndWhere(aql.Hash{"age": []int{20, 21, 22}}).
		Build()
	if err != nil {
		t.Fatal(err)
	}
	assertEqual(t, st.Query, "FILTER (status==@qp0) && (age in [@qp1, @qp2, @qp3])")
	assertEqual(t, st.BindVars, aql.Params{"qp0": 1, "qp1": 20, "qp2": 21, "qp3": 22})
}

func TestBetweenWithoutSource(t *testing.T) {
	t.Parallel()

	st, err := aql.New().Where(aql.Between("age", 18, 30)).Build()
	if err != nil {
		t.Fatal(err)
	}
	assertEqual(t, st.Query, "FILTER age >= @qp0 && age <= @qp1")
	assertEqual(t, st.BindVars, aql.Params{"qp0": 18, "qp1": 30})
}
