// Package chat runs an interactive, line-oriented conversation against a
// chat-capable completion backend.
package chat

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/temirov/llm-pipes/internal/completion"
)

const (
	exitCommand     = "exit"
	welcomeMessage  = "Welcome to the chatbot! Type 'exit' to quit."
	goodbyeMessage  = "Goodbye!"
	inputPrompt     = "> "
	responseHeader  = "========================== Response ============================"
	responseFooter  = "================================================================"
	replyErrFormat  = "Error generating response: %v\n"
	maxLineCapacity = 1024 * 1024
)

// Session reads user lines from In and writes replies to Out. Failed turns
// are reported on Err and the loop continues; they are not added to history.
type Session struct {
	Chatter completion.Chatter
	In      io.Reader
	Out     io.Writer
	Err     io.Writer
	Logger  *zap.Logger

	history []completion.Message
}

// Run loops until the user types exit (in any case), input ends, or ctx is done.
// Every other line, blank ones included, is sent as typed.
func (s *Session) Run(ctx context.Context) error {
	logger := s.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	scanner := bufio.NewScanner(s.In)
	scanner.Buffer(make([]byte, 0, 4096), maxLineCapacity)

	fmt.Fprintln(s.Out, welcomeMessage)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		fmt.Fprint(s.Out, inputPrompt)
		if !scanner.Scan() {
			fmt.Fprintln(s.Out)
			return scanner.Err()
		}
		line := scanner.Text()
		if strings.EqualFold(strings.TrimSpace(line), exitCommand) {
			fmt.Fprintln(s.Out, goodbyeMessage)
			return nil
		}

		logger.Debug("chat prompt", zap.String("prompt", line), zap.Int("history", len(s.history)))
		reply, err := s.Chatter.Chat(ctx, line, s.History())
		if err != nil {
			logger.Warn("chat turn failed", zap.Error(err))
			fmt.Fprintf(s.Err, replyErrFormat, err)
			continue
		}
		s.history = append(s.history,
			completion.Message{Role: completion.RoleUser, Content: line},
			completion.Message{Role: completion.RoleAssistant, Content: reply},
		)
		fmt.Fprintln(s.Out, responseHeader)
		fmt.Fprintln(s.Out, reply)
		fmt.Fprintln(s.Out, responseFooter)
		fmt.Fprintln(s.Out)
		logger.Debug("chat reply", zap.String("reply", reply))
	}
}

// History returns a copy of the conversation so far, oldest turn first.
func (s *Session) History() []completion.Message {
	return append([]completion.Message(nil), s.history...)
}
