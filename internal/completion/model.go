package completion

import (
	"context"
	"strings"
)

// Model binds a Completer to one model identifier and its defaults. It is the
// handle pipeline operations close over: Prompt and Chat are shaped on top of
// Complete.
type Model struct {
	Completer    Completer
	Name         string
	SystemPrompt string
	Temperature  *float64
	MaxTokens    int
}

// Prompt sends text as a single user turn.
func (m Model) Prompt(ctx context.Context, text string) (string, error) {
	return m.Complete(ctx, Request{UserPrompt: text})
}

// Chat sends message after history, oldest turn first.
func (m Model) Chat(ctx context.Context, message string, history []Message) (string, error) {
	return m.Complete(ctx, Request{UserPrompt: message, History: history})
}

// Complete fills unset request fields from the model defaults.
func (m Model) Complete(ctx context.Context, request Request) (string, error) {
	if strings.TrimSpace(request.Model) == "" {
		request.Model = m.Name
	}
	if request.SystemPrompt == "" {
		request.SystemPrompt = m.SystemPrompt
	}
	if request.Temperature == nil {
		request.Temperature = m.Temperature
	}
	if request.MaxTokens <= 0 {
		request.MaxTokens = m.MaxTokens
	}
	return m.Completer.Complete(ctx, request)
}
