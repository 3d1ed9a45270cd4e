// Package completion is the boundary to chat-completion backends. It defines
// the single-turn, multi-turn and structured request capabilities consumed by
// pipeline operations and ships an OpenAI-compatible HTTP client plus
// rate-limiting and caching decorators.
package completion

import (
	"context"
	"encoding/json"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn of a conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is a fully described completion call. Empty fields fall back to the
// defaults of whatever Completer serves it.
type Request struct {
	Model        string          `json:"model,omitempty"`
	SystemPrompt string          `json:"system_prompt,omitempty"`
	History      []Message       `json:"history,omitempty"`
	UserPrompt   string          `json:"user_prompt"`
	SchemaName   string          `json:"schema_name,omitempty"`
	Schema       json.RawMessage `json:"schema,omitempty"`
	StrictSchema bool            `json:"strict_schema,omitempty"`
	Temperature  *float64        `json:"temperature,omitempty"`
	MaxTokens    int             `json:"max_tokens,omitempty"`
}

// Temperature returns a pointer to value, for the optional temperature fields.
// A nil temperature leaves the choice to the backend; zero is sent as zero.
func Temperature(value float64) *float64 { return &value }

// Messages renders the request as an ordered chat transcript:
// system prompt, history oldest-first, then the user prompt.
func (r Request) Messages() []Message {
	messages := make([]Message, 0, len(r.History)+2)
	if r.SystemPrompt != "" {
		messages = append(messages, Message{Role: RoleSystem, Content: r.SystemPrompt})
	}
	messages = append(messages, r.History...)
	return append(messages, Message{Role: RoleUser, Content: r.UserPrompt})
}

// Prompter answers a single free-text prompt.
type Prompter interface {
	Prompt(ctx context.Context, text string) (string, error)
}

// Chatter answers a message given the prior conversation, oldest turn first.
type Chatter interface {
	Chat(ctx context.Context, message string, history []Message) (string, error)
}

// Completer serves fully described requests.
type Completer interface {
	Complete(ctx context.Context, request Request) (string, error)
}

// CompleterFunc adapts a function to Completer.
type CompleterFunc func(ctx context.Context, request Request) (string, error)

func (f CompleterFunc) Complete(ctx context.Context, request Request) (string, error) {
	return f(ctx, request)
}
