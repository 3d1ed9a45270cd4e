package completion

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// PromptErrorKind classifies completion failures.
type PromptErrorKind string

const (
	// KindTransport means the backend could not be reached.
	KindTransport PromptErrorKind = "transport"
	// KindProvider means the backend answered with a non-success status.
	KindProvider PromptErrorKind = "provider"
	// KindResponse means the backend answered but the reply was unusable.
	KindResponse PromptErrorKind = "response"

	promptErrorFormat           = "completion %s error: %v"
	promptErrorWithStatusFormat = "completion %s error (status=%d): %v"
)

var (
	ErrNoChoices     = errors.New("chat completion returned no choices")
	ErrEmptyMessage  = errors.New("chat completion returned empty message")
	ErrRefusal       = errors.New("chat completion refusal")
	ErrToolCalls     = errors.New("chat completion produced tool_calls")
	ErrUnsupported   = errors.New("unsupported message content")
	ErrNoEmbeddings  = errors.New("embeddings response is missing vectors")
	ErrMissingAPIKey = errors.New("api key is empty")
)

// PromptError is the failure type of every completion call.
type PromptError struct {
	Kind       PromptErrorKind
	StatusCode int
	Err        error
}

func (e *PromptError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf(promptErrorWithStatusFormat, e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf(promptErrorFormat, e.Kind, e.Err)
}

func (e *PromptError) Unwrap() error { return e.Err }

// Transient reports whether the same request may succeed later: network
// failures other than caller cancellation, throttling and server errors.
func (e *PromptError) Transient() bool {
	switch e.Kind {
	case KindTransport:
		return !errors.Is(e.Err, context.Canceled)
	case KindProvider:
		return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= http.StatusInternalServerError
	default:
		return false
	}
}

// Classify returns err unchanged when it already carries a *PromptError.
// Otherwise context errors become transport failures and anything else a
// provider failure, so custom Prompter implementations surface the same type.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	var promptErr *PromptError
	if errors.As(err, &promptErr) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &PromptError{Kind: KindTransport, Err: err}
	}
	return &PromptError{Kind: KindProvider, Err: err}
}
