package vectorstore

import (
	"errors"
	"fmt"
)

// ErrorKind classifies index failures.
type ErrorKind string

const (
	// KindUnavailable means the index could not be reached or failed internally.
	KindUnavailable ErrorKind = "unavailable"
	// KindQuery means the index rejected the query or the call was cancelled.
	KindQuery ErrorKind = "query"
	// KindDecode means a stored payload did not decode into the requested type.
	KindDecode ErrorKind = "decode"
	// KindInvalidRequest means the caller passed invalid arguments.
	KindInvalidRequest ErrorKind = "invalid_request"
)

const (
	topNOperation    = "top_n"
	topNIDsOperation = "top_n_ids"
	addOperation     = "add"

	indexErrorFormat       = "vector store %s %s: %v"
	indexErrorWithIDFormat = "vector store %s %s (id=%s): %v"
)

var (
	// ErrInvalidCount is wrapped when a negative result count is requested.
	ErrInvalidCount = errors.New("result count must not be negative")
	// ErrEmbeddingMismatch is wrapped when an embedder returns the wrong number of vectors.
	ErrEmbeddingMismatch = errors.New("embedder returned unexpected number of vectors")
)

// Error is the failure type of every index operation.
type Error struct {
	Kind ErrorKind
	Op   string
	ID   string
	Err  error
}

func (e *Error) Error() string {
	if e.ID != "" {
		return fmt.Sprintf(indexErrorWithIDFormat, e.Op, e.Kind, e.ID, e.Err)
	}
	return fmt.Sprintf(indexErrorFormat, e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Transient reports whether retrying the same call may succeed.
func (e *Error) Transient() bool { return e.Kind == KindUnavailable }
