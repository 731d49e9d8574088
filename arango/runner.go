package arango

import (
	"context"
	"fmt"
	"time"

	"github.com/birdie-ai/arangoql/aql"
	"github.com/birdie-ai/arangoql/doc"
	"github.com/birdie-ai/arangoql/querylog"
	"github.com/birdie-ai/arangoql/slog"
	"github.com/birdie-ai/arangoql/tracing"
	"github.com/birdie-ai/arangoql/xjson"
)

// DefaultIndexBy is the attribute used by [Runner.Indexed] when the query has no
// index attribute (see [aql.Query.IndexBy]).
const DefaultIndexBy = "_key"

// Runner builds queries and executes them. Building errors are returned before
// anything is sent to the server.
//
// Every statement runs with a trace ID (generated if the context has none), is logged
// at debug level with its bind parameters interpolated and is sampled on the
// statement metrics. When a query log is configured an entry is published for it.
type Runner struct {
	exec     Executor
	querylog *querylog.Publisher
}

// NewRunner creates a runner that executes statements with the given executor.
func NewRunner(e Executor) *Runner {
	return &Runner{exec: e}
}

// WithQueryLog returns a copy of the runner that publishes an entry for each statement.
func (r *Runner) WithQueryLog(p *querylog.Publisher) *Runner {
	c := *r
	c.querylog = p
	return &c
}

// Run executes the statement.
func (r *Runner) Run(ctx context.Context, st aql.Statement) (Result, error) {
	ctx, traceID := tracing.Ensure(ctx)

	start := time.Now()
	res, err := r.exec.Execute(ctx, st)
	elapsed := time.Since(start)
	sampleStatement(st.Kind, elapsed, err)

	rows := int64(len(res.Rows))
	if st.Kind.Mutation() {
		rows = res.WritesExecuted
	}
	log := slog.FromCtx(ctx).With("statement", st, "elapsed", elapsed.String(), "rows", rows)
	if err != nil {
		log.Debug("arango: statement failed", "aql", st.Interpolate(), "error", err)
	} else {
		log.Debug("arango: statement executed", "aql", st.Interpolate())
	}

	if r.querylog != nil {
		entry := querylog.NewEntry(st)
		entry.TraceID = traceID
		entry.Elapsed = elapsed
		entry.Rows = rows
		entry.Time = start
		if err != nil {
			entry.Error = err.Error()
		}
		if perr := r.querylog.Publish(ctx, entry); perr != nil {
			log.Warn("arango: publishing query log entry", "error", perr)
		}
	}
	return res, err
}

// All returns the documents selected by the query.
func (r *Runner) All(ctx context.Context, q *aql.Query) ([]doc.D, error) {
	st, err := q.Build()
	if err != nil {
		return nil, err
	}
	return r.documents(ctx, st)
}

// Indexed returns the documents selected by the query indexed by the value of their
// index attribute, a path like "address.city". Documents with the same value
// replace the ones before them.
func (r *Runner) Indexed(ctx context.Context, q *aql.Query) (map[string]doc.D, error) {
	st, err := q.Build()
	if err != nil {
		return nil, err
	}
	indexBy := st.IndexBy
	if indexBy == "" {
		indexBy = DefaultIndexBy
	}
	if !doc.IsValidPath(indexBy) {
		return nil, fmt.Errorf("arango: index by %q: %w", indexBy, doc.ErrInvalidPath)
	}

	docs, err := r.documents(ctx, st)
	if err != nil {
		return nil, err
	}
	res := make(map[string]doc.D, len(docs))
	for i, d := range docs {
		v, err := doc.Lookup(d, indexBy)
		if err != nil {
			return nil, fmt.Errorf("arango: indexing row %d: %w", i, err)
		}
		key, err := doc.KeyOf(v)
		if err != nil {
			return nil, fmt.Errorf("arango: indexing row %d by %s: %w", i, indexBy, err)
		}
		res[key] = d
	}
	return res, nil
}

// One returns the first document selected by the query, only one is fetched.
// [ErrNotFound] is returned when there is none.
func (r *Runner) One(ctx context.Context, q *aql.Query) (doc.D, error) {
	st, err := q.BuildOne()
	if err != nil {
		return nil, err
	}
	docs, err := r.documents(ctx, st)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("%w: no %s document matches the query", ErrNotFound, st.Collection)
	}
	return docs[0], nil
}

// Exists reports whether the query selects any document.
func (r *Runner) Exists(ctx context.Context, q *aql.Query) (bool, error) {
	st, err := q.Clone().Select("1").BuildOne()
	if err != nil {
		return false, err
	}
	res, err := r.Run(ctx, st)
	if err != nil {
		return false, err
	}
	return len(res.Rows) > 0, nil
}

// Count returns how many documents the query selects, ignoring its limit and offset.
func (r *Runner) Count(ctx context.Context, q *aql.Query) (int64, error) {
	st, err := q.BuildCount()
	if err != nil {
		return 0, err
	}
	res, err := r.Run(ctx, st)
	if err != nil {
		return 0, err
	}
	return res.FullCount, nil
}

// Insert inserts the document on the collection of the query and returns the number
// of documents written.
func (r *Runner) Insert(ctx context.Context, q *aql.Query, document any) (int64, error) {
	st, err := q.BuildInsert(document)
	if err != nil {
		return 0, err
	}
	return r.write(ctx, st)
}

// Update applies the patch to the documents selected by the query and returns the
// number of documents written. Keys of map patches can be attribute paths, like
// "address.city", that update only that attribute of a nested document.
func (r *Runner) Update(ctx context.Context, q *aql.Query, patch any) (int64, error) {
	if m, ok := patch.(map[string]any); ok {
		expanded, err := doc.Expand(m)
		if err != nil {
			return 0, fmt.Errorf("arango: update patch: %w", err)
		}
		patch = expanded
	}
	st, err := q.BuildUpdate(patch)
	if err != nil {
		return 0, err
	}
	return r.write(ctx, st)
}

// Remove removes the documents selected by the query and returns how many were removed.
func (r *Runner) Remove(ctx context.Context, q *aql.Query) (int64, error) {
	st, err := q.BuildRemove()
	if err != nil {
		return 0, err
	}
	return r.write(ctx, st)
}

func (r *Runner) write(ctx context.Context, st aql.Statement) (int64, error) {
	res, err := r.Run(ctx, st)
	if err != nil {
		return 0, err
	}
	return res.WritesExecuted, nil
}

func (r *Runner) documents(ctx context.Context, st aql.Statement) ([]doc.D, error) {
	res, err := r.Run(ctx, st)
	if err != nil {
		return nil, err
	}
	docs, err := xjson.UnmarshalAll[doc.D](res.Rows)
	if err != nil {
		return nil, fmt.Errorf("arango: decoding rows of %s: %w", st.Collection, err)
	}
	return docs, nil
}
