// Package vectorstore defines the vector index boundary used by lookup operations
// and ships two implementations: an in-process cosine index and a Weaviate-backed index.
package vectorstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Match is a single raw hit returned by an index. Payload holds the stored
// document as JSON; the caller of TopN chooses what to decode it into.
type Match struct {
	Score   float64
	ID      string
	Payload json.RawMessage
}

// IDMatch is a hit without its payload.
type IDMatch struct {
	Score float64
	ID    string
}

// Index is a similarity search capability. Implementations return matches in
// their own relevance order (most relevant first) and must be safe for
// concurrent use.
type Index interface {
	TopN(ctx context.Context, query string, n int) ([]Match, error)
	TopNIDs(ctx context.Context, query string, n int) ([]IDMatch, error)
}

// Result is a decoded lookup hit.
type Result[T any] struct {
	Score   float64
	ID      string
	Payload T
}

// TopN queries index for the n most relevant entries and decodes every payload
// into T. The order produced by the index is preserved. A single payload that
// fails to decode fails the whole call.
func TopN[T any](ctx context.Context, index Index, query string, n int) ([]Result[T], error) {
	if n < 0 {
		return nil, &Error{Kind: KindInvalidRequest, Op: topNOperation, Err: fmt.Errorf("%w: %d", ErrInvalidCount, n)}
	}
	if n == 0 {
		return []Result[T]{}, nil
	}

	matches, queryErr := index.TopN(ctx, query, n)
	if queryErr != nil {
		return nil, asIndexError(topNOperation, queryErr)
	}
	if len(matches) > n {
		matches = matches[:n]
	}

	results := make([]Result[T], 0, len(matches))
	for _, match := range matches {
		var payload T
		if decodeErr := json.Unmarshal(match.Payload, &payload); decodeErr != nil {
			return nil, &Error{Kind: KindDecode, Op: topNOperation, ID: match.ID, Err: decodeErr}
		}
		results = append(results, Result[T]{Score: match.Score, ID: match.ID, Payload: payload})
	}
	return results, nil
}

// TopNIDs is the payload-free variant of TopN with the same count rules.
func TopNIDs(ctx context.Context, index Index, query string, n int) ([]IDMatch, error) {
	if n < 0 {
		return nil, &Error{Kind: KindInvalidRequest, Op: topNIDsOperation, Err: fmt.Errorf("%w: %d", ErrInvalidCount, n)}
	}
	if n == 0 {
		return []IDMatch{}, nil
	}
	matches, queryErr := index.TopNIDs(ctx, query, n)
	if queryErr != nil {
		return nil, asIndexError(topNIDsOperation, queryErr)
	}
	if len(matches) > n {
		matches = matches[:n]
	}
	return matches, nil
}

func asIndexError(operation string, err error) error {
	var indexErr *Error
	if errors.As(err, &indexErr) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: KindQuery, Op: operation, Err: err}
	}
	return &Error{Kind: KindUnavailable, Op: operation, Err: err}
}
