package pipeline_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/temirov/llm-pipes/internal/completion"
	"github.com/temirov/llm-pipes/internal/extractor"
	"github.com/temirov/llm-pipes/internal/pipeline"
)

func flaky(calls *atomic.Int32, failures int32, err error) pipeline.Op[string, string] {
	return pipeline.Func[string, string](func(_ context.Context, input string) (string, error) {
		if calls.Add(1) <= failures {
			return "", err
		}
		return "ok:" + input, nil
	})
}

var fastRetry = pipeline.RetryPolicy{Attempts: 4, Base: time.Millisecond, Cap: 2 * time.Millisecond}

func TestRetryRecoversFromTransientFailures(t *testing.T) {
	var calls atomic.Int32
	transient := &completion.PromptError{Kind: completion.KindProvider, StatusCode: 429, Err: errors.New("slow down")}

	out, err := pipeline.Retry(flaky(&calls, 2, transient), fastRetry).Call(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, "ok:x", out)
	assert.Equal(t, int32(3), calls.Load())
}

func TestRetryGivesUpAfterAttempts(t *testing.T) {
	var calls atomic.Int32
	transient := &completion.PromptError{Kind: completion.KindTransport, Err: errors.New("reset")}

	_, err := pipeline.Retry(flaky(&calls, 100, transient), fastRetry).Call(context.Background(), "x")
	assert.ErrorIs(t, err, transient)
	assert.Equal(t, int32(4), calls.Load())
}

func TestRetryNeverRetriesSchemaFailures(t *testing.T) {
	var calls atomic.Int32
	permanent := &extractor.Error{Kind: extractor.KindSchema, Target: "Foo", Err: errors.New("missing field")}

	_, err := pipeline.Retry(flaky(&calls, 100, permanent), fastRetry).Call(context.Background(), "x")
	assert.ErrorIs(t, err, extractor.ErrInvalidOutput)
	assert.Equal(t, int32(1), calls.Load())
}

func TestIsTransient(t *testing.T) {
	transientPrompt := &completion.PromptError{Kind: completion.KindProvider, StatusCode: 503, Err: errors.New("x")}
	testCases := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "plain", err: errors.New("plain"), want: false},
		{name: "transient prompt", err: transientPrompt, want: true},
		{name: "wrapped in stage", err: &pipeline.StageError{Index: 2, Stage: "prompt", Err: transientPrompt}, want: true},
		{name: "completion inside extraction", err: &extractor.Error{Kind: extractor.KindCompletion, Err: transientPrompt}, want: true},
		{name: "parse failure", err: &extractor.Error{Kind: extractor.KindParse, Err: errors.New("x")}, want: false},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			assert.Equal(t, testCase.want, pipeline.IsTransient(testCase.err))
		})
	}
}

func TestWithTimeoutBoundsEachCall(t *testing.T) {
	slow := pipeline.Func[string, string](func(ctx context.Context, _ string) (string, error) {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(time.Second):
			return "late", nil
		}
	})
	_, err := pipeline.WithTimeout(slow, 10*time.Millisecond).Call(context.Background(), "x")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	out, err := pipeline.WithTimeout(pipeline.Map(func(s string) string { return s }), 0).Call(context.Background(), "unbounded")
	require.NoError(t, err)
	assert.Equal(t, "unbounded", out)
}

func TestLoggedRecordsOutcome(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logger := zap.New(core)

	ok := pipeline.Logged(logger, pipeline.Named("echo", pipeline.Map(func(s string) string { return s })))
	_, err := ok.Call(context.Background(), "x")
	require.NoError(t, err)

	failing := pipeline.Logged(logger, pipeline.Named("broken", pipeline.Func[string, string](func(context.Context, string) (string, error) {
		return "", errStage
	})))
	_, err = failing.Call(context.Background(), "x")
	require.ErrorIs(t, err, errStage)

	assert.Equal(t, 2, logs.FilterMessage("stage started").Len())
	finished := logs.FilterMessage("stage finished").All()
	require.Len(t, finished, 1)
	assert.Equal(t, "echo", finished[0].ContextMap()["stage"])
	failed := logs.FilterMessage("stage failed").All()
	require.Len(t, failed, 1)
	assert.Equal(t, zapcore.WarnLevel, failed[0].Level)
	assert.Equal(t, "broken", failed[0].ContextMap()["stage"])
	assert.Equal(t, "broken", pipeline.Then(failing, ok).Stages()[0])
}

func TestTemplate(t *testing.T) {
	_, err := pipeline.Template[string]("bad", "{{.Unclosed")
	require.Error(t, err)

	render, err := pipeline.Template[map[string]string]("greeting", "Hello {{upper .name}}")
	require.NoError(t, err)
	out, err := render.Call(context.Background(), map[string]string{"name": "ada"})
	require.NoError(t, err)
	assert.Equal(t, "Hello ADA", out)

	_, err = render.Call(context.Background(), map[string]string{})
	assert.Error(t, err)
}

func TestCarryKeepsInput(t *testing.T) {
	carried, err := pipeline.Carry(pipeline.Map(func(s string) int { return len(s) })).Call(context.Background(), "four")
	require.NoError(t, err)
	assert.Equal(t, pipeline.Carried[string, int]{Input: "four", Output: 4}, carried)

	_, err = pipeline.Carry(pipeline.Func[string, int](func(context.Context, string) (int, error) { return 0, errStage })).Call(context.Background(), "x")
	assert.ErrorIs(t, err, errStage)
}
