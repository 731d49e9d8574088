// Package aql builds parameterized AQL statements from a declarative description
// of an ArangoDB operation.
//
// A [Query] is configured through chainable methods and rendered into a [Statement]:
// the query text plus the bind variables table that must be sent with it.
//
//	stmt, err := aql.New().
//		From("users").
//		Where(aql.Hash{"status": 1}).
//		AndWhere(aql.Between("age", 18, 30)).
//		OrderBy(aql.Desc("created_at")).
//		Limit(10).
//		Build()
//
// produces
//
//	FOR users IN users FILTER (users.status==@qp0) && (users.age >= @qp1 && users.age <= @qp2) SORT users.created_at DESC LIMIT 0, 10 RETURN users
//
// Scalar values are always bound as parameters. Composite values (slices, maps, [Doc])
// are inlined as escaped literals by [Marshal]. The only way to put unescaped text on
// a statement is through [Raw] expressions and [RawCondition].
package aql
