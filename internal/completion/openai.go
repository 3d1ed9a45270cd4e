package completion

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
)

const (
	chatCompletionsPath = "/chat/completions"
	contentTypeJSON     = "application/json"
	bearerPrefix        = "Bearer "
	finishReasonLength  = "length"
	defaultSchemaName   = "response"
	bodyPreviewLimit    = 512
	detailPreviewLimit  = 240

	bodyErrorFormat   = "%w (body=%s)"
	detailErrorFormat = "%w: %s"
)

// Client talks to an OpenAI-compatible chat completions API.
type Client struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionRequest struct {
	Model               string          `json:"model"`
	Messages            []chatMessage   `json:"messages"`
	MaxCompletionTokens int             `json:"max_completion_tokens,omitempty"`
	Temperature         *float64        `json:"temperature,omitempty"`
	ResponseFormat      *responseFormat `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type       string           `json:"type"`
	JSONSchema *namedJSONSchema `json:"json_schema,omitempty"`
}

type namedJSONSchema struct {
	Name   string          `json:"name"`
	Schema json.RawMessage `json:"schema"`
	Strict bool            `json:"strict,omitempty"`
}

type replyMessage struct {
	Role      string          `json:"role"`
	Content   json.RawMessage `json:"content"`
	Refusal   json.RawMessage `json:"refusal,omitempty"`
	ToolCalls json.RawMessage `json:"tool_calls,omitempty"`
}

type replyChoice struct {
	Message      replyMessage `json:"message"`
	FinishReason string       `json:"finish_reason"`
}

type chatCompletionResponse struct {
	Choices []replyChoice `json:"choices"`
}

// Complete sends request as one chat completion. Message contents are sent
// as given and the reply is returned unchanged; a reply that is only
// whitespace counts as empty. A nil temperature is left to the server default.
func (c Client) Complete(ctx context.Context, request Request) (string, error) {
	payload := chatCompletionRequest{
		Model:               request.Model,
		MaxCompletionTokens: request.MaxTokens,
	}
	for _, message := range request.Messages() {
		payload.Messages = append(payload.Messages, chatMessage{Role: message.Role, Content: message.Content})
	}
	if request.Temperature != nil {
		temperature := *request.Temperature
		payload.Temperature = &temperature
	}
	if len(request.Schema) > 0 {
		name := request.SchemaName
		if name == "" {
			name = defaultSchemaName
		}
		payload.ResponseFormat = &responseFormat{
			Type:       "json_schema",
			JSONSchema: &namedJSONSchema{Name: name, Schema: request.Schema, Strict: request.StrictSchema},
		}
	}

	body, status, err := c.post(ctx, chatCompletionsPath, payload)
	if err != nil {
		return "", err
	}
	preview := preview(string(body), bodyPreviewLimit)

	var decoded chatCompletionResponse
	if decodeErr := json.Unmarshal(body, &decoded); decodeErr != nil {
		return "", &PromptError{Kind: KindResponse, StatusCode: status, Err: fmt.Errorf(bodyErrorFormat, decodeErr, preview)}
	}
	if len(decoded.Choices) == 0 {
		return "", &PromptError{Kind: KindResponse, StatusCode: status, Err: fmt.Errorf(bodyErrorFormat, ErrNoChoices, preview)}
	}

	choice := decoded.Choices[0]
	content, contentErr := messageText(choice.Message)
	if contentErr != nil {
		return "", &PromptError{Kind: KindResponse, StatusCode: status, Err: contentErr}
	}
	if strings.TrimSpace(content) != "" {
		return content, nil
	}
	if !strings.EqualFold(strings.TrimSpace(choice.FinishReason), finishReasonLength) {
		if refusal := refusalText(choice.Message.Refusal); refusal != "" {
			return "", &PromptError{Kind: KindResponse, StatusCode: status, Err: fmt.Errorf(detailErrorFormat, ErrRefusal, refusal)}
		}
	}
	return "", &PromptError{Kind: KindResponse, StatusCode: status, Err: fmt.Errorf(bodyErrorFormat, ErrEmptyMessage, preview)}
}

// post sends payload as JSON and returns the body of a 2xx reply.
func (c Client) post(ctx context.Context, path string, payload any) ([]byte, int, error) {
	encoded, marshalErr := json.Marshal(payload)
	if marshalErr != nil {
		return nil, 0, &PromptError{Kind: KindTransport, Err: marshalErr}
	}
	httpRequest, buildErr := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(c.BaseURL, "/")+path, bytes.NewReader(encoded))
	if buildErr != nil {
		return nil, 0, &PromptError{Kind: KindTransport, Err: buildErr}
	}
	httpRequest.Header.Set("Content-Type", contentTypeJSON)
	httpRequest.Header.Set("Authorization", bearerPrefix+c.APIKey)

	httpClient := c.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	httpResponse, httpErr := httpClient.Do(httpRequest)
	if httpErr != nil {
		return nil, 0, &PromptError{Kind: KindTransport, Err: httpErr}
	}
	defer func(closer io.ReadCloser) { _ = closer.Close() }(httpResponse.Body)

	body, readErr := io.ReadAll(httpResponse.Body)
	if readErr != nil {
		return nil, httpResponse.StatusCode, &PromptError{Kind: KindTransport, StatusCode: httpResponse.StatusCode, Err: readErr}
	}
	if httpResponse.StatusCode < 200 || httpResponse.StatusCode >= 300 {
		return nil, httpResponse.StatusCode, &PromptError{
			Kind:       KindProvider,
			StatusCode: httpResponse.StatusCode,
			Err:        errors.New(preview(string(body), bodyPreviewLimit)),
		}
	}
	return body, httpResponse.StatusCode, nil
}

func preview(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit]) + "…"
}

// messageText accepts plain string content as well as structured content
// parts, whose text fragments are joined with newlines.
func messageText(message replyMessage) (string, error) {
	if isAbsent(message.Content) {
		if refusal := refusalText(message.Refusal); refusal != "" {
			return "", fmt.Errorf(detailErrorFormat, ErrRefusal, refusal)
		}
		return "", nil
	}

	var plain string
	if json.Unmarshal(message.Content, &plain) == nil {
		return plain, nil
	}
	if text, ok := richText(message.Content); ok {
		return text, nil
	}
	if refusal := refusalText(message.Refusal); refusal != "" {
		return "", fmt.Errorf(detailErrorFormat, ErrRefusal, refusal)
	}
	if !isAbsent(message.ToolCalls) {
		return "", fmt.Errorf(detailErrorFormat, ErrToolCalls, preview(string(message.ToolCalls), detailPreviewLimit))
	}
	return "", fmt.Errorf(detailErrorFormat, ErrUnsupported, preview(string(message.Content), detailPreviewLimit))
}

func isAbsent(raw json.RawMessage) bool {
	return len(raw) == 0 || string(raw) == "null"
}

func richText(raw json.RawMessage) (string, bool) {
	var decoded any
	if json.Unmarshal(raw, &decoded) != nil {
		return "", false
	}
	joined := strings.TrimSpace(strings.Join(textFragments(decoded), "\n"))
	return joined, joined != ""
}

// textFragments prefers the text, content and value keys of an object and
// falls back to every nested value in key order.
func textFragments(value any) []string {
	switch typed := value.(type) {
	case string:
		if trimmed := strings.TrimSpace(typed); trimmed != "" {
			return []string{trimmed}
		}
		return nil
	case []any:
		var fragments []string
		for _, item := range typed {
			fragments = append(fragments, textFragments(item)...)
		}
		return fragments
	case map[string]any:
		for _, key := range []string{"text", "content", "value"} {
			if nested, ok := typed[key]; ok {
				return textFragments(nested)
			}
		}
		keys := make([]string, 0, len(typed))
		for key := range typed {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		var fragments []string
		for _, key := range keys {
			fragments = append(fragments, textFragments(typed[key])...)
		}
		return fragments
	default:
		return nil
	}
}

func refusalText(raw json.RawMessage) string {
	if isAbsent(raw) {
		return ""
	}
	var plain string
	if json.Unmarshal(raw, &plain) == nil {
		return strings.TrimSpace(plain)
	}
	if text, ok := richText(raw); ok {
		return text
	}
	return strings.TrimSpace(preview(string(raw), 200))
}
