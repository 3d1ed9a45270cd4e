package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"
)

const (
	templateParseErrorFormat  = "parse template %s: %w"
	templateRenderErrorFormat = "render template %s: %w"

	defaultRetryAttempts = 3
	defaultRetryBase     = 200 * time.Millisecond
	defaultRetryCap      = 5 * time.Second
)

// Carried pairs an operation's input with its output.
type Carried[In, Out any] struct {
	Input  In
	Output Out
}

// Carry runs op and keeps its input next to the result, so later stages can
// see both the question and what was retrieved for it.
func Carry[In, Out any](op Op[In, Out]) Op[In, Carried[In, Out]] {
	return carryOp[In, Out]{op: op}
}

type carryOp[In, Out any] struct{ op Op[In, Out] }

func (c carryOp[In, Out]) Call(ctx context.Context, input In) (Carried[In, Out], error) {
	output, err := c.op.Call(ctx, input)
	if err != nil {
		return Carried[In, Out]{}, err
	}
	return Carried[In, Out]{Input: input, Output: output}, nil
}

func (c carryOp[In, Out]) StageName() string { return stageName(c.op) }

// TemplateOp renders its input with text/template.
type TemplateOp[In any] struct {
	name     string
	template *template.Template
}

var templateFuncs = template.FuncMap{
	"trim":  strings.TrimSpace,
	"upper": strings.ToUpper,
	"lower": strings.ToLower,
	"join":  strings.Join,
	"inc":   func(i int) int { return i + 1 },
}

// Template parses text once; missing map keys are errors when rendering.
func Template[In any](name, text string) (*TemplateOp[In], error) {
	parsed, err := template.New(name).Funcs(templateFuncs).Option("missingkey=error").Parse(text)
	if err != nil {
		return nil, fmt.Errorf(templateParseErrorFormat, name, err)
	}
	return &TemplateOp[In]{name: name, template: parsed}, nil
}

func (t *TemplateOp[In]) Call(ctx context.Context, input In) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	var builder strings.Builder
	if err := t.template.Execute(&builder, input); err != nil {
		return "", fmt.Errorf(templateRenderErrorFormat, t.name, err)
	}
	return builder.String(), nil
}

func (t *TemplateOp[In]) StageName() string { return "template" }

// WithTimeout bounds each call of op by timeout. A non-positive timeout leaves op unbounded.
func WithTimeout[In, Out any](op Op[In, Out], timeout time.Duration) Op[In, Out] {
	if timeout <= 0 {
		return op
	}
	return timeoutOp[In, Out]{op: op, timeout: timeout}
}

type timeoutOp[In, Out any] struct {
	op      Op[In, Out]
	timeout time.Duration
}

func (t timeoutOp[In, Out]) Call(ctx context.Context, input In) (Out, error) {
	callCtx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.op.Call(callCtx, input)
}

func (t timeoutOp[In, Out]) StageName() string { return stageName(t.op) }

// IsTransient reports whether any error in err's chain declares itself transient.
func IsTransient(err error) bool {
	var transient interface{ Transient() bool }
	return errors.As(err, &transient) && transient.Transient()
}

// RetryPolicy configures Retry. Attempts counts the first call.
type RetryPolicy struct {
	Attempts int
	Base     time.Duration
	Cap      time.Duration
	Jitter   time.Duration
}

// Retry calls op again with exponential backoff while it fails with a
// transient error. Permanent failures, such as output that does not match a
// schema, are returned after the first attempt.
func Retry[In, Out any](op Op[In, Out], policy RetryPolicy) Op[In, Out] {
	if policy.Attempts <= 0 {
		policy.Attempts = defaultRetryAttempts
	}
	if policy.Base <= 0 {
		policy.Base = defaultRetryBase
	}
	if policy.Cap <= 0 {
		policy.Cap = defaultRetryCap
	}
	if policy.Attempts == 1 {
		return op
	}
	return retryOp[In, Out]{op: op, policy: policy}
}

type retryOp[In, Out any] struct {
	op     Op[In, Out]
	policy RetryPolicy
}

func (r retryOp[In, Out]) Call(ctx context.Context, input In) (Out, error) {
	backoff := retry.NewExponential(r.policy.Base)
	backoff = retry.WithCappedDuration(r.policy.Cap, backoff)
	if r.policy.Jitter > 0 {
		backoff = retry.WithJitter(r.policy.Jitter, backoff)
	}
	backoff = retry.WithMaxRetries(uint64(r.policy.Attempts-1), backoff)

	var output Out
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		value, callErr := r.op.Call(ctx, input)
		if callErr != nil {
			if IsTransient(callErr) {
				return retry.RetryableError(callErr)
			}
			return callErr
		}
		output = value
		return nil
	})
	if err != nil {
		var zero Out
		return zero, err
	}
	return output, nil
}

func (r retryOp[In, Out]) StageName() string { return stageName(r.op) }

// Logged records the start, end and failure of every call of op.
func Logged[In, Out any](logger *zap.Logger, op Op[In, Out]) Op[In, Out] {
	if logger == nil {
		logger = zap.NewNop()
	}
	return loggedOp[In, Out]{logger: logger, op: op}
}

type loggedOp[In, Out any] struct {
	logger *zap.Logger
	op     Op[In, Out]
}

func (l loggedOp[In, Out]) Call(ctx context.Context, input In) (Out, error) {
	name := stageName(l.op)
	started := time.Now()
	l.logger.Debug("stage started", zap.String("stage", name))
	output, err := l.op.Call(ctx, input)
	if err != nil {
		l.logger.Warn("stage failed",
			zap.String("stage", name),
			zap.Duration("duration", time.Since(started)),
			zap.Bool("transient", IsTransient(err)),
			zap.Error(err),
		)
		return output, err
	}
	l.logger.Info("stage finished", zap.String("stage", name), zap.Duration("duration", time.Since(started)))
	return output, nil
}

func (l loggedOp[In, Out]) StageName() string { return stageName(l.op) }
