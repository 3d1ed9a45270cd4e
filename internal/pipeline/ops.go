package pipeline

import (
	"context"

	"github.com/temirov/llm-pipes/internal/completion"
	"github.com/temirov/llm-pipes/internal/vectorstore"
)

// LookupOp retrieves the n most relevant index entries for its input and
// decodes their payloads into T. All-or-nothing: one payload that does not
// decode fails the call with a vectorstore.Error of kind decode.
type LookupOp[In, T any] struct {
	index   vectorstore.Index
	n       int
	toQuery func(In) string
}

// Lookup builds a LookupOp whose query is string(input).
func Lookup[In Text, T any](index vectorstore.Index, n int) *LookupOp[In, T] {
	return LookupWith[In, T](index, n, func(input In) string { return string(input) })
}

// LookupWith builds a LookupOp with a caller-supplied query conversion.
func LookupWith[In, T any](index vectorstore.Index, n int, toQuery func(In) string) *LookupOp[In, T] {
	return &LookupOp[In, T]{index: index, n: n, toQuery: toQuery}
}

// Call returns matches in the order the index produced them. n == 0 yields an
// empty result without touching the index; n < 0 is an invalid_request error.
func (l *LookupOp[In, T]) Call(ctx context.Context, input In) ([]vectorstore.Result[T], error) {
	return vectorstore.TopN[T](ctx, l.index, l.toQuery(input), l.n)
}

func (l *LookupOp[In, T]) StageName() string { return "lookup" }

// PromptOp sends its input as a single prompt and returns the reply unchanged.
type PromptOp[In any] struct {
	model    completion.Prompter
	toPrompt func(In) string
}

func Prompt[In Text](model completion.Prompter) *PromptOp[In] {
	return PromptWith[In](model, func(input In) string { return string(input) })
}

func PromptWith[In any](model completion.Prompter, toPrompt func(In) string) *PromptOp[In] {
	return &PromptOp[In]{model: model, toPrompt: toPrompt}
}

// Call makes exactly one request. Failures are *completion.PromptError.
func (p *PromptOp[In]) Call(ctx context.Context, input In) (string, error) {
	reply, err := p.model.Prompt(ctx, p.toPrompt(input))
	if err != nil {
		return "", completion.Classify(err)
	}
	return reply, nil
}

func (p *PromptOp[In]) StageName() string { return "prompt" }

// Extraction is the capability ExtractOp delegates to; *extractor.Extractor satisfies it.
type Extraction[Out any] interface {
	Extract(ctx context.Context, text string) (Out, error)
}

// ExtractOp turns its input into a schema-validated Out.
type ExtractOp[In, Out any] struct {
	extraction Extraction[Out]
	toText     func(In) string
}

func Extract[In Text, Out any](extraction Extraction[Out]) *ExtractOp[In, Out] {
	return ExtractWith[In, Out](extraction, func(input In) string { return string(input) })
}

func ExtractWith[In, Out any](extraction Extraction[Out], toText func(In) string) *ExtractOp[In, Out] {
	return &ExtractOp[In, Out]{extraction: extraction, toText: toText}
}

func (e *ExtractOp[In, Out]) Call(ctx context.Context, input In) (Out, error) {
	return e.extraction.Extract(ctx, e.toText(input))
}

func (e *ExtractOp[In, Out]) StageName() string { return "extract" }
