package arango

import (
	"errors"
	"fmt"

	"github.com/birdie-ai/arangoql/xerrors"
)

// Error is an error response of the ArangoDB HTTP API.
type Error struct {
	// Code is the HTTP status code.
	Code int `json:"code"`
	// ErrorNum is the ArangoDB error number, like 1202 for "document not found".
	ErrorNum int `json:"errorNum"`
	// Message is the error message sent by the server.
	Message string `json:"errorMessage"`
}

var (
	// ErrNotFound indicates that a document, collection or view does not exist.
	// It is also returned by [Runner.One] when the query has no results.
	ErrNotFound = errors.New("arango: not found")

	// ErrConflict indicates a write conflict or a unique constraint violation.
	ErrConflict = errors.New("arango: conflict")

	// ErrBadQuery indicates that the server rejected the AQL statement, like a syntax
	// error or a missing bind parameter.
	ErrBadQuery = errors.New("arango: bad query")
)

// Error numbers, see https://docs.arangodb.com/stable/develop/error-codes/
const (
	errorNumConflict           = 1200
	errorNumDocumentNotFound   = 1202
	errorNumCollectionNotFound = 1203
	errorNumUniqueConstraint   = 1210
	errorNumQueryFirst         = 1500
	errorNumQueryLast          = 1599
)

func (e *Error) Error() string {
	return fmt.Sprintf("arango: %s (code %d, errorNum %d)", e.Message, e.Code, e.ErrorNum)
}

// classify tags the error with the sentinel that matches its error number, if any.
func classify(e *Error) error {
	switch {
	case e.ErrorNum == errorNumDocumentNotFound || e.ErrorNum == errorNumCollectionNotFound:
		return xerrors.Tag(e, ErrNotFound)
	case e.ErrorNum == errorNumConflict || e.ErrorNum == errorNumUniqueConstraint:
		return xerrors.Tag(e, ErrConflict)
	case e.ErrorNum >= errorNumQueryFirst && e.ErrorNum <= errorNumQueryLast:
		return xerrors.Tag(e, ErrBadQuery)
	}
	return e
}
