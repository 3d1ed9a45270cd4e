// Package pipeline composes typed, context-aware operations into chains.
//
// Every operation implements Op. Lookup, Prompt and Extract adapt the vector
// index, completion and extraction backends; Then links two operations whose
// types line up, so a pipeline that compiles is a pipeline whose stages fit.
package pipeline

import "context"

// Op turns an input into an output or an error. Implementations honour ctx
// cancellation, never panic across Call, and are safe for concurrent use.
type Op[In, Out any] interface {
	Call(ctx context.Context, input In) (Out, error)
}

// Text is any string-like type. Operations constructed over Text inputs
// convert them with string(input).
type Text interface {
	~string
}

// Func adapts a function to Op.
type Func[In, Out any] func(ctx context.Context, input In) (Out, error)

func (f Func[In, Out]) Call(ctx context.Context, input In) (Out, error) { return f(ctx, input) }

// Map lifts a pure conversion into an Op that never fails.
func Map[In, Out any](convert func(In) Out) Op[In, Out] {
	return mapOp[In, Out]{convert: convert}
}

type mapOp[In, Out any] struct{ convert func(In) Out }

func (m mapOp[In, Out]) Call(ctx context.Context, input In) (Out, error) {
	if err := ctx.Err(); err != nil {
		var zero Out
		return zero, err
	}
	return m.convert(input), nil
}

func (mapOp[In, Out]) StageName() string { return "map" }

// Named reports op under name in stage errors and logs. Naming a chain turns
// it into a single stage.
func Named[In, Out any](name string, op Op[In, Out]) Op[In, Out] {
	return namedOp[In, Out]{name: name, op: op}
}

type namedOp[In, Out any] struct {
	name string
	op   Op[In, Out]
}

func (n namedOp[In, Out]) Call(ctx context.Context, input In) (Out, error) { return n.op.Call(ctx, input) }
func (n namedOp[In, Out]) StageName() string                              { return n.name }

type stageNamer interface{ StageName() string }

const defaultStageName = "op"

func stageName(op any) string {
	if namer, ok := op.(stageNamer); ok {
		return namer.StageName()
	}
	return defaultStageName
}
