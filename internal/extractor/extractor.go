// Package extractor turns free text into a validated Go value by asking a
// completion backend for JSON that conforms to the schema of the target type.
package extractor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/jsonschema-go/jsonschema"

	"github.com/temirov/llm-pipes/internal/completion"
)

const (
	defaultSchemaName = "extraction"
	codeFence         = "```"

	systemPromptFormat = "%s\n\nReply with a single JSON value and nothing else. The value must conform to this JSON Schema:\n%s"
	defaultInstruction = "Extract the requested information from the user's text."

	schemaBuildErrorFormat = "build schema for %s: %w"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

type settings struct {
	name        string
	instruction string
	strict      bool
}

// Option customises an Extractor.
type Option func(*settings)

// WithName sets the schema name sent to the backend.
func WithName(name string) Option {
	return func(s *settings) { s.name = name }
}

// WithInstruction replaces the task description that precedes the schema in the system prompt.
func WithInstruction(instruction string) Option {
	return func(s *settings) { s.instruction = instruction }
}

// WithStrictSchema asks the backend to enforce the schema while decoding.
// Backends that support this require every property to be required.
func WithStrictSchema(strict bool) Option {
	return func(s *settings) { s.strict = strict }
}

// Extractor is bound to one completion backend and one target type. It is
// immutable and safe for concurrent use.
type Extractor[T any] struct {
	completer   completion.Completer
	name        string
	instruction string
	strict      bool
	schema      json.RawMessage
	resolved    *jsonschema.Resolved
}

// New derives the JSON Schema of T and binds it to completer.
func New[T any](completer completion.Completer, options ...Option) (*Extractor[T], error) {
	configured := settings{name: defaultSchemaName, instruction: defaultInstruction}
	for _, option := range options {
		option(&configured)
	}
	target := typeName[T]()

	schema, forErr := jsonschema.For[T](nil)
	if forErr != nil {
		return nil, fmt.Errorf(schemaBuildErrorFormat, target, forErr)
	}
	resolved, resolveErr := schema.Resolve(nil)
	if resolveErr != nil {
		return nil, fmt.Errorf(schemaBuildErrorFormat, target, resolveErr)
	}
	encoded, marshalErr := json.Marshal(schema)
	if marshalErr != nil {
		return nil, fmt.Errorf(schemaBuildErrorFormat, target, marshalErr)
	}
	return &Extractor[T]{
		completer:   completer,
		name:        configured.name,
		instruction: configured.instruction,
		strict:      configured.strict,
		schema:      encoded,
		resolved:    resolved,
	}, nil
}

// Schema returns the JSON Schema sent with every request.
func (e *Extractor[T]) Schema() json.RawMessage {
	return append(json.RawMessage(nil), e.schema...)
}

// Extract makes one completion request and returns its reply as T.
func (e *Extractor[T]) Extract(ctx context.Context, text string) (T, error) {
	var zero T
	target := typeName[T]()

	reply, completeErr := e.completer.Complete(ctx, completion.Request{
		SystemPrompt: fmt.Sprintf(systemPromptFormat, e.instruction, e.schema),
		UserPrompt:   text,
		SchemaName:   e.name,
		Schema:       e.schema,
		StrictSchema: e.strict,
	})
	if completeErr != nil {
		return zero, &Error{Kind: KindCompletion, Target: target, Err: completion.Classify(completeErr)}
	}

	body := stripCodeFence(reply)
	var instance any
	if err := decodeSingle(body, &instance, false); err != nil {
		return zero, &Error{Kind: KindParse, Target: target, Err: err}
	}
	if err := e.resolved.Validate(instance); err != nil {
		return zero, &Error{Kind: KindSchema, Target: target, Err: err}
	}

	var value T
	if err := decodeSingle(body, &value, true); err != nil {
		return zero, &Error{Kind: KindParse, Target: target, Err: err}
	}
	if err := validateTags(value); err != nil {
		return zero, &Error{Kind: KindSchema, Target: target, Err: err}
	}
	return value, nil
}

func decodeSingle(body string, into any, strict bool) error {
	decoder := json.NewDecoder(strings.NewReader(body))
	if strict {
		decoder.DisallowUnknownFields()
	}
	if err := decoder.Decode(into); err != nil {
		return err
	}
	if _, err := decoder.Token(); !errors.Is(err, io.EOF) {
		return ErrTrailingData
	}
	return nil
}

// validateTags applies `validate` struct tags when T is a struct or a pointer to one.
func validateTags(value any) error {
	reflected := reflect.ValueOf(value)
	for reflected.Kind() == reflect.Pointer {
		if reflected.IsNil() {
			return nil
		}
		reflected = reflected.Elem()
	}
	if reflected.Kind() != reflect.Struct {
		return nil
	}
	return validate.Struct(reflected.Interface())
}

// stripCodeFence removes a surrounding Markdown code fence, with or without a language tag.
func stripCodeFence(reply string) string {
	trimmed := strings.TrimSpace(reply)
	if !strings.HasPrefix(trimmed, codeFence) || !strings.HasSuffix(trimmed, codeFence) || len(trimmed) < 2*len(codeFence) {
		return trimmed
	}
	inner := strings.TrimSuffix(strings.TrimPrefix(trimmed, codeFence), codeFence)
	if newline := strings.IndexByte(inner, '\n'); newline >= 0 {
		firstLine := strings.TrimSpace(inner[:newline])
		if firstLine == "" || !strings.ContainsAny(firstLine, "{[\"") {
			inner = inner[newline+1:]
		}
	}
	return strings.TrimSpace(inner)
}

func typeName[T any]() string {
	return reflect.TypeFor[T]().String()
}
