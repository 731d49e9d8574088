package aql_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/birdie-ai/arangoql/aql"
	"github.com/google/go-cmp/cmp"
	"golang.org/x/sync/errgroup"
)

func TestBuild(t *testing.T) {
	t.Parallel()
	type testcase struct {
		name  string
		query *aql.Query
		want  string
	}

	for _, tc := range []testcase{
		{
			name:  "empty query",
			query: aql.New(),
			want:  "",
		},
		{
			name:  "source is trimmed",
			query: aql.New().From("  users "),
			want:  "FOR users IN users RETURN users",
		},
		{
			name: "all clauses",
			query: aql.New().
				Select(map[string]string{"name": "name", "id": "_key"}).
				From("users").
				Where(aql.Hash{"status": "active"}).
				OrderBy(aql.Desc("created_at"), aql.Asc("name")).
				Limit(10).
				Offset(20),
			want: `FOR users IN users FILTER users.status==@qp0 SORT users.created_at DESC, users.name LIMIT 20, 10 RETURN {"id": users._key, "name": users.name}`,
		},
		{
			name:  "offset without limit",
			query: aql.New().From("users").Offset(10),
			want:  "FOR users IN users RETURN users",
		},
		{
			name:  "limit without offset",
			query: aql.New().From("users").Limit(5),
			want:  "FOR users IN users LIMIT 0, 5 RETURN users",
		},
		{
			name:  "zero limit",
			query: aql.New().From("users").Limit(0),
			want:  "FOR users IN users LIMIT 0, 0 RETURN users",
		},
		{
			name:  "negative limit removes it",
			query: aql.New().From("users").Limit(5).Limit(-1),
			want:  "FOR users IN users RETURN users",
		},
		{
			name:  "order by string",
			query: aql.New().From("users").OrderByString("created_at desc,  name ASC, u.age"),
			want:  "FOR users IN users SORT users.created_at DESC, users.name, u.age RETURN users",
		},
		{
			name:  "add order by",
			query: aql.New().From("users").OrderBy(aql.Asc("a")).AddOrderBy(aql.Desc("b")),
			want:  "FOR users IN users SORT users.a, users.b DESC RETURN users",
		},
		{
			name:  "expression projection",
			query: aql.New().From("users").Select("users.name"),
			want:  "FOR users IN users RETURN users.name",
		},
		{
			name:  "raw projection",
			query: aql.New().From("users").Select(aql.Raw("MERGE(users, {n: 1})")),
			want:  "FOR users IN users RETURN MERGE(users, {n: 1})",
		},
		{
			name:  "fields projection",
			query: aql.New().From("users").Select([]string{"name", "address.city"}),
			want:  `FOR users IN users RETURN {"name": users.name, "address.city": address.city}`,
		},
		{
			name: "ordered projection",
			query: aql.New().From("users").Select(aql.Doc{
				{Key: "z", Value: "name"},
				{Key: "a", Value: aql.Raw("LENGTH(users.tags)")},
			}),
			want: `FOR users IN users RETURN {"z": users.name, "a": LENGTH(users.tags)}`,
		},
		{
			name:  "empty projection",
			query: aql.New().From("users").Select(map[string]string{}),
			want:  "FOR users IN users RETURN users",
		},
		{
			name: "where replaces",
			query: aql.New().From("users").
				Where(aql.Hash{"a": 1}).
				Where(aql.Hash{"b": 1}),
			want: "FOR users IN users FILTER users.b==@qp0 RETURN users",
		},
		{
			name: "and where then or where keep grouping",
			query: aql.New().From("users").
				Where(aql.Hash{"a": 1}).
				AndWhere(aql.Hash{"b": 2}).
				OrWhere(aql.Hash{"c": 3}),
			want: "FOR users IN users FILTER ((users.a==@qp0) && (users.b==@qp1)) || (users.c==@qp2) RETURN users",
		},
		{
			name:  "and where without previous condition",
			query: aql.New().From("users").AndWhere(aql.Hash{"a": 1}),
			want:  "FOR users IN users FILTER users.a==@qp0 RETURN users",
		},
		{
			name:  "read options are not on the text",
			query: aql.New().From("users").Options(map[string]any{"maxRuntime": 2}),
			want:  "FOR users IN users RETURN users",
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			st, err := tc.query.Build()
			if err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(tc.want, st.Query); diff != "" {
				t.Fatalf("got [+], want [-]: %s", diff)
			}
			assertEqual(t, st.Kind, aql.KindSelect)
		})
	}
}

func TestBuildMutations(t *testing.T) {
	t.Parallel()

	users := func() *aql.Query {
		return aql.New().From("users").Where(aql.Hash{"_key": "1"})
	}

	t.Run("update", func(t *testing.T) {
		t.Parallel()
		st, err := users().
			Options(map[string]any{"keepNull": false}).
			BuildUpdate(map[string]any{"name": "x", "updated_at": aql.Raw("DATE_NOW()")})
		if err != nil {
			t.Fatal(err)
		}
		assertEqual(t, st, aql.Statement{
			Query:      `FOR users IN users FILTER users._key==@qp0 UPDATE users WITH {"name":"x","updated_at":DATE_NOW()} IN users OPTIONS {"keepNull":false}`,
			BindVars:   aql.Params{"qp0": "1"},
			Kind:       aql.KindUpdate,
			Collection: "users",
		})
	})

	t.Run("remove", func(t *testing.T) {
		t.Parallel()
		st, err := users().BuildRemove()
		if err != nil {
			t.Fatal(err)
		}
		assertEqual(t, st.Query, "FOR users IN users FILTER users._key==@qp0 REMOVE users IN users")
		assertEqual(t, st.Kind, aql.KindRemove)
	})

	t.Run("insert", func(t *testing.T) {
		t.Parallel()
		st, err := aql.New().
			From("users").
			AddOptions(map[string]any{"overwriteMode": "ignore"}).
			BuildInsert(aql.Doc{{Key: "name", Value: "x"}, {Key: "created_at", Value: aql.Raw("DATE_NOW()")}})
		if err != nil {
			t.Fatal(err)
		}
		assertEqual(t, st.Query, `INSERT {"name":"x","created_at":DATE_NOW()} IN users OPTIONS {"overwriteMode":"ignore"}`)
		assertEqual(t, st.BindVars, aql.Params{})
	})

	t.Run("missing collection", func(t *testing.T) {
		t.Parallel()
		for _, build := range []func(*aql.Query) (aql.Statement, error){
			func(q *aql.Query) (aql.Statement, error) { return q.BuildInsert(map[string]any{"a": 1}) },
			func(q *aql.Query) (aql.Statement, error) { return q.BuildUpdate(map[string]any{"a": 1}) },
			(*aql.Query).BuildRemove,
		} {
			_, err := build(aql.New().From(" ").Where(aql.Hash{"a": 1}))
			if !errors.Is(err, aql.ErrMissingCollection) {
				t.Fatalf("got %v; want %v", err, aql.ErrMissingCollection)
			}
		}
	})

	t.Run("nil patch", func(t *testing.T) {
		t.Parallel()
		_, err := users().BuildUpdate(nil)
		if !errors.Is(err, aql.ErrInvalidOperand) {
			t.Fatalf("got %v; want %v", err, aql.ErrInvalidOperand)
		}
	})
}

func TestBuildCount(t *testing.T) {
	t.Parallel()

	q := aql.New().From("users").Select("users.name").Where(aql.Hash{"a": 1}).Limit(10).Offset(30)
	st, err := q.BuildCount()
	if err != nil {
		t.Fatal(err)
	}
	assertEqual(t, st, aql.Statement{
		Query:      "FOR users IN users FILTER users.a==@qp0 LIMIT 0, 1 RETURN 1",
		BindVars:   aql.Params{"qp0": 1},
		Kind:       aql.KindCount,
		Collection: "users",
		FullCount:  true,
		BatchSize:  1,
	})

	// The query itself is untouched.
	st, err = q.Build()
	if err != nil {
		t.Fatal(err)
	}
	assertEqual(t, st.Query, "FOR users IN users FILTER users.a==@qp0 LIMIT 30, 10 RETURN users.name")
}

func TestBuildOne(t *testing.T) {
	t.Parallel()

	q := aql.New().From("users").Offset(3)
	st, err := q.BuildOne()
	if err != nil {
		t.Fatal(err)
	}
	assertEqual(t, st.Query, "FOR users IN users LIMIT 3, 1 RETURN users")

	st, err = q.Build()
	if err != nil {
		t.Fatal(err)
	}
	assertEqual(t, st.Query, "FOR users IN users RETURN users")
}

func TestBuildStatementMetadata(t *testing.T) {
	t.Parallel()

	st, err := aql.New().
		From("users").
		IndexBy("profile.email").
		BatchSize(100).
		Options(map[string]any{"maxRuntime": 2}).
		Build()
	if err != nil {
		t.Fatal(err)
	}
	assertEqual(t, st, aql.Statement{
		Query:      "FOR users IN users RETURN users",
		BindVars:   aql.Params{},
		Kind:       aql.KindSelect,
		Collection: "users",
		BatchSize:  100,
		IndexBy:    "profile.email",
		Options:    map[string]any{"maxRuntime": 2},
	})
}

func TestBuildIsIdempotent(t *testing.T) {
	t.Parallel()

	q := aql.New().
		From("users").
		Where(aql.Or(aql.Hash{"a": []int{1, 2}}, aql.Between("b", 1, 9))).
		AndWhere(aql.In("_key", aql.New().From("o").Select("o.u").Where(aql.Hash{"x": 1})))
	first, err := q.Build()
	if err != nil {
		t.Fatal(err)
	}
	second, err := q.Build()
	if err != nil {
		t.Fatal(err)
	}
	assertEqual(t, second, first)
}

func TestBuildInvalidProjection(t *testing.T) {
	t.Parallel()

	for _, sel := range []any{42, map[string]any{"a": 1}, aql.Doc{{Key: "a", Value: true}}} {
		_, err := aql.New().From("users").Select(sel).Build()
		if !errors.Is(err, aql.ErrInvalidProjection) {
			t.Fatalf("select %v: got %v; want %v", sel, err, aql.ErrInvalidProjection)
		}
	}
}

func TestAddParamsCollision(t *testing.T) {
	t.Parallel()

	q := aql.New().From("users").Params(aql.Params{"a": 1}).AddParams(aql.Params{"a": 2})
	if !errors.Is(q.Err(), aql.ErrDuplicateParam) {
		t.Fatalf("got %v; want %v", q.Err(), aql.ErrDuplicateParam)
	}
	_, err := q.Build()
	if !errors.Is(err, aql.ErrDuplicateParam) {
		t.Fatalf("got %v; want %v", err, aql.ErrDuplicateParam)
	}
}

func TestClone(t *testing.T) {
	t.Parallel()

	q := aql.New().From("users").OrderBy(aql.Asc("a")).Params(aql.Params{"p": 1})
	c := q.Clone().AddOrderBy(aql.Desc("b")).AddParams(aql.Params{"q": 2}).Where(aql.RawCondition("@p == @q"))

	st, err := q.Build()
	if err != nil {
		t.Fatal(err)
	}
	assertEqual(t, st.Query, "FOR users IN users SORT users.a RETURN users")
	assertEqual(t, st.BindVars, aql.Params{"p": 1})

	st, err = c.Build()
	if err != nil {
		t.Fatal(err)
	}
	assertEqual(t, st.Query, "FOR users IN users FILTER @p == @q SORT users.a, users.b DESC RETURN users")
	assertEqual(t, st.BindVars, aql.Params{"p": 1, "q": 2})
}

func TestBuildKind(t *testing.T) {
	t.Parallel()

	q := aql.New().From("users")
	st, err := q.BuildKind(aql.KindRemove, nil)
	if err != nil {
		t.Fatal(err)
	}
	assertEqual(t, st.Query, "FOR users IN users REMOVE users IN users")

	_, err = q.BuildKind("upsert", nil)
	if !errors.Is(err, aql.ErrInvalidKind) {
		t.Fatalf("got %v; want %v", err, aql.ErrInvalidKind)
	}
}

func TestConcurrentBuilds(t *testing.T) {
	t.Parallel()

	shared := aql.New().From("users").Where(aql.And(aql.Hash{"a": 1}, aql.In("b", []int{1, 2, 3})))
	want, err := shared.Build()
	if err != nil {
		t.Fatal(err)
	}

	var g errgroup.Group
	for i := range 32 {
		g.Go(func() error {
			got, err := shared.Build()
			if err != nil {
				return err
			}
			if diff := cmp.Diff(want, got); diff != "" {
				return fmt.Errorf("shared query: got [+], want [-]: %s", diff)
			}

			st, err := aql.New().From("c").Where(aql.Hash{"n": i, "m": i + 1}).Build()
			if err != nil {
				return err
			}
			wantParams := aql.Params{"qp0": i + 1, "qp1": i}
			if diff := cmp.Diff(wantParams, st.BindVars); diff != "" {
				return fmt.Errorf("query %d: got [+], want [-]: %s", i, diff)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}
}

func assertEqual[T any](t *testing.T, got, want T) {
	t.Helper()

	if diff := cmp.Diff(got, want); diff != "" {
		t.Fatalf("got(-) want(+):\n%s", diff)
	}
}
