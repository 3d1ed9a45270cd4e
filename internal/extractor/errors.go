package extractor

import (
	"errors"
	"fmt"
)

// ErrorKind tells a failed completion apart from unusable output.
type ErrorKind string

const (
	// KindCompletion means the completion backend failed; Err is its error.
	KindCompletion ErrorKind = "completion"
	// KindParse means the reply was not a single JSON value of the target type.
	KindParse ErrorKind = "parse"
	// KindSchema means the reply parsed but violated the schema or validation tags.
	KindSchema ErrorKind = "schema"

	extractionErrorFormat = "extract %s: %s failure: %v"
)

var (
	// ErrCompletionFailed matches every KindCompletion error.
	ErrCompletionFailed = errors.New("completion failed")
	// ErrInvalidOutput matches every KindParse and KindSchema error.
	ErrInvalidOutput = errors.New("completion output is invalid")
	// ErrTrailingData is wrapped when a reply holds more than one JSON value.
	ErrTrailingData = errors.New("unexpected data after JSON value")
)

// Error is the failure type of Extract.
type Error struct {
	Kind   ErrorKind
	Target string
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf(extractionErrorFormat, e.Target, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	switch target {
	case ErrCompletionFailed:
		return e.Kind == KindCompletion
	case ErrInvalidOutput:
		return e.Kind == KindParse || e.Kind == KindSchema
	default:
		return false
	}
}

// Transient is true only for completion failures whose cause is transient.
// Output that does not fit the schema never becomes valid by asking again.
func (e *Error) Transient() bool {
	if e.Kind != KindCompletion {
		return false
	}
	var transient interface{ Transient() bool }
	return errors.As(e.Err, &transient) && transient.Transient()
}
