package pipeline

import (
	"context"
	"fmt"
	"strings"
)

const stageErrorFormat = "stage %d (%s): %v"

// StageError reports which stage of a Chain failed. Index counts from zero
// over the flattened stage list. When the context ends between stages, Index
// is the stage that was about to start and Err is the context error.
type StageError struct {
	Index int
	Stage string
	Err   error
}

func (e *StageError) Error() string { return fmt.Sprintf(stageErrorFormat, e.Index, e.Stage, e.Err) }

func (e *StageError) Unwrap() error { return e.Err }

type stage struct {
	name string
	call func(ctx context.Context, input any) (any, error)
}

// Chain is a fixed sequence of stages built by Then. Stages of nested chains
// are flattened, so grouping does not change behaviour or reported indexes.
type Chain[In, Out any] struct {
	stages []stage
}

// Then feeds the output of first into second.
func Then[A, B, C any](first Op[A, B], second Op[B, C]) *Chain[A, C] {
	head := stagesOf(first)
	tail := stagesOf(second)
	stages := make([]stage, 0, len(head)+len(tail))
	stages = append(stages, head...)
	return &Chain[A, C]{stages: append(stages, tail...)}
}

func stagesOf[In, Out any](op Op[In, Out]) []stage {
	if chain, ok := op.(*Chain[In, Out]); ok {
		return chain.stages
	}
	return []stage{{
		name: stageName(op),
		call: func(ctx context.Context, input any) (any, error) {
			typed, _ := input.(In)
			return op.Call(ctx, typed)
		},
	}}
}

// Call runs the stages in order and stops at the first failure, which is
// returned as a *StageError.
func (c *Chain[In, Out]) Call(ctx context.Context, input In) (Out, error) {
	var zero Out
	var current any = input
	for index, s := range c.stages {
		if err := ctx.Err(); err != nil {
			return zero, &StageError{Index: index, Stage: s.name, Err: err}
		}
		next, err := s.call(ctx, current)
		if err != nil {
			return zero, &StageError{Index: index, Stage: s.name, Err: err}
		}
		current = next
	}
	result, _ := current.(Out)
	return result, nil
}

// Stages returns the stage names in execution order.
func (c *Chain[In, Out]) Stages() []string {
	names := make([]string, len(c.stages))
	for i, s := range c.stages {
		names[i] = s.name
	}
	return names
}

// StageName joins the stage names, for a chain wrapped as a single stage.
func (c *Chain[In, Out]) StageName() string { return strings.Join(c.Stages(), ">") }
