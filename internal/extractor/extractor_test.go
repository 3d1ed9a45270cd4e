package extractor_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/temirov/llm-pipes/internal/completion"
	"github.com/temirov/llm-pipes/internal/extractor"
)

type person struct {
	Name string `json:"name" validate:"required"`
	Age  int    `json:"age" validate:"gte=0,lte=150"`
}

func replying(reply string, err error) (completion.CompleterFunc, *[]completion.Request) {
	var requests []completion.Request
	return func(_ context.Context, request completion.Request) (string, error) {
		requests = append(requests, request)
		return reply, err
	}, &requests
}

func TestExtractValidReply(t *testing.T) {
	backend, requests := replying(`{"name":"Ada","age":36}`, nil)
	ex, err := extractor.New[person](backend, extractor.WithName("person"))
	require.NoError(t, err)

	value, err := ex.Extract(context.Background(), "Ada Lovelace was 36.")
	require.NoError(t, err)
	assert.Equal(t, person{Name: "Ada", Age: 36}, value)

	require.Len(t, *requests, 1)
	sent := (*requests)[0]
	assert.Equal(t, "Ada Lovelace was 36.", sent.UserPrompt)
	assert.Equal(t, "person", sent.SchemaName)
	assert.JSONEq(t, string(ex.Schema()), string(sent.Schema))
	assert.Contains(t, sent.SystemPrompt, string(ex.Schema()))
}

func TestExtractSchemaDescribesTarget(t *testing.T) {
	backend, _ := replying("", nil)
	ex, err := extractor.New[person](backend)
	require.NoError(t, err)

	var schema map[string]any
	require.NoError(t, json.Unmarshal(ex.Schema(), &schema))
	assert.Equal(t, "object", schema["type"])
	properties, ok := schema["properties"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, properties, "name")
	assert.Contains(t, properties, "age")
}

func TestExtractStripsCodeFence(t *testing.T) {
	testCases := []string{
		"```json\n{\"name\":\"Ada\",\"age\":36}\n```",
		"```\n{\"name\":\"Ada\",\"age\":36}\n```",
		"  {\"name\":\"Ada\",\"age\":36}  ",
	}
	for _, reply := range testCases {
		backend, _ := replying(reply, nil)
		ex, err := extractor.New[person](backend)
		require.NoError(t, err)
		value, err := ex.Extract(context.Background(), "text")
		require.NoError(t, err, reply)
		assert.Equal(t, "Ada", value.Name)
	}
}

func TestExtractMalformedJSONIsParseFailure(t *testing.T) {
	backend, _ := replying(`{"name": "Ada", "age": `, nil)
	ex, err := extractor.New[person](backend)
	require.NoError(t, err)

	_, err = ex.Extract(context.Background(), "text")
	var extractErr *extractor.Error
	require.ErrorAs(t, err, &extractErr)
	assert.Equal(t, extractor.KindParse, extractErr.Kind)
	assert.ErrorIs(t, err, extractor.ErrInvalidOutput)
	assert.NotErrorIs(t, err, extractor.ErrCompletionFailed)
	assert.False(t, extractErr.Transient())
}

func TestExtractOutputFailures(t *testing.T) {
	testCases := []struct {
		name  string
		reply string
		kind  extractor.ErrorKind
	}{
		{name: "trailing data", reply: `{"name":"Ada","age":1} {"name":"Bob","age":2}`, kind: extractor.KindParse},
		{name: "wrong type", reply: `{"name":"Ada","age":"old"}`, kind: extractor.KindSchema},
		{name: "missing required property", reply: `{"name":"Ada"}`, kind: extractor.KindSchema},
		{name: "unknown property", reply: `{"name":"Ada","age":3,"email":"a@b"}`},
		{name: "validation tag", reply: `{"name":"Ada","age":200}`, kind: extractor.KindSchema},
		{name: "empty required string", reply: `{"name":"","age":3}`, kind: extractor.KindSchema},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			backend, _ := replying(testCase.reply, nil)
			ex, err := extractor.New[person](backend)
			require.NoError(t, err)

			_, err = ex.Extract(context.Background(), "text")
			var extractErr *extractor.Error
			require.ErrorAs(t, err, &extractErr)
			if testCase.kind != "" {
				assert.Equal(t, testCase.kind, extractErr.Kind)
			}
			assert.ErrorIs(t, err, extractor.ErrInvalidOutput)
		})
	}
}

func TestExtractCompletionFailure(t *testing.T) {
	cause := &completion.PromptError{Kind: completion.KindProvider, StatusCode: 503, Err: errors.New("overloaded")}
	backend, _ := replying("", cause)
	ex, err := extractor.New[person](backend)
	require.NoError(t, err)

	_, err = ex.Extract(context.Background(), "text")
	var extractErr *extractor.Error
	require.ErrorAs(t, err, &extractErr)
	assert.Equal(t, extractor.KindCompletion, extractErr.Kind)
	assert.ErrorIs(t, err, extractor.ErrCompletionFailed)
	assert.NotErrorIs(t, err, extractor.ErrInvalidOutput)
	assert.True(t, extractErr.Transient())

	var promptErr *completion.PromptError
	require.ErrorAs(t, err, &promptErr)
	assert.Equal(t, 503, promptErr.StatusCode)

	permanent, _ := replying("", &completion.PromptError{Kind: completion.KindProvider, StatusCode: 400, Err: errors.New("bad")})
	ex, err = extractor.New[person](permanent)
	require.NoError(t, err)
	_, err = ex.Extract(context.Background(), "text")
	require.ErrorAs(t, err, &extractErr)
	assert.False(t, extractErr.Transient())
}

func TestExtractClassifiesUntypedCompleterErrors(t *testing.T) {
	backend, _ := replying("", errors.New("backend down"))
	ex, err := extractor.New[person](backend)
	require.NoError(t, err)

	_, err = ex.Extract(context.Background(), "text")
	var extractErr *extractor.Error
	require.ErrorAs(t, err, &extractErr)
	assert.Equal(t, extractor.KindCompletion, extractErr.Kind)
	assert.False(t, extractErr.Transient())

	var promptErr *completion.PromptError
	require.ErrorAs(t, err, &promptErr)
	assert.Equal(t, completion.KindProvider, promptErr.Kind)
	assert.EqualError(t, promptErr.Err, "backend down")

	cancelled, _ := replying("", context.Canceled)
	ex, err = extractor.New[person](cancelled)
	require.NoError(t, err)
	_, err = ex.Extract(context.Background(), "text")
	require.ErrorAs(t, err, &promptErr)
	assert.Equal(t, completion.KindTransport, promptErr.Kind)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestExtractNonStructTarget(t *testing.T) {
	backend, _ := replying(`["a","b"]`, nil)
	ex, err := extractor.New[[]string](backend)
	require.NoError(t, err)

	value, err := ex.Extract(context.Background(), "list")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, value)
}
