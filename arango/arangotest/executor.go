// Package arangotest provides a fake [arango.Executor] for tests.
package arangotest

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/birdie-ai/arangoql/aql"
	"github.com/birdie-ai/arangoql/arango"
)

// Executor records executed statements and answers them with the results and errors
// pushed on its queue, in FIFO order. It is safe to use concurrently.
type Executor struct {
	statements []aql.Statement
	results    []result
	mutex      sync.Mutex
}

type result struct {
	res arango.Result
	err error
}

// NewExecutor creates an executor with an empty queue.
func NewExecutor() *Executor {
	return &Executor{}
}

// PushResult pushes a result on the queue.
func (e *Executor) PushResult(res arango.Result) {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	e.results = append(e.results, result{res: res})
}

// PushRows pushes a result with the given rows, encoded as JSON. It panics if a row
// can't be encoded.
func (e *Executor) PushRows(rows ...any) {
	res := arango.Result{Rows: make([]json.RawMessage, len(rows))}
	for i, row := range rows {
		data, err := json.Marshal(row)
		if err != nil {
			panic(fmt.Sprintf("arangotest: encoding row %d: %v", i, err))
		}
		res.Rows[i] = data
	}
	e.PushResult(res)
}

// PushError pushes an error on the queue.
func (e *Executor) PushError(err error) {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	e.results = append(e.results, result{err: err})
}

// Statements returns the statements executed so far.
func (e *Executor) Statements() []aql.Statement {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	return append([]aql.Statement(nil), e.statements...)
}

// Execute records the statement and returns the first result of the queue.
// It fails when the queue is empty.
func (e *Executor) Execute(_ context.Context, st aql.Statement) (arango.Result, error) {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	e.statements = append(e.statements, st)
	if len(e.results) == 0 {
		return arango.Result{}, fmt.Errorf("arangotest: no result configured for statement: %s", st.Query)
	}
	r := e.results[0]
	e.results = e.results[1:]
	return r.res, r.err
}
