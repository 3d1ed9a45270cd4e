package llmpipes

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/temirov/llm-pipes/internal/chat"
	"github.com/temirov/llm-pipes/internal/completion"
)

type chatCommandOptions struct {
	model  string
	system string
}

func newChatCommand(app *application) *cobra.Command {
	options := &chatCommandOptions{}

	command := &cobra.Command{
		Use:   chatCommandUse,
		Short: chatCommandShort,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChatCommand(cmd, app, *options)
		},
	}
	command.Flags().StringVar(&options.model, modelFlagName, "", modelFlagUsage)
	command.Flags().StringVar(&options.system, systemFlagName, "", systemFlagUsage)
	return command
}

func runChatCommand(command *cobra.Command, app *application, options chatCommandOptions) error {
	environment, err := app.backends()
	if err != nil {
		return err
	}
	defer environment.Close()

	modelConfiguration, ok := environment.root.ResolveModel(options.model)
	if !ok {
		return fmt.Errorf(unknownModelErrorFormat, options.model)
	}
	completer, err := environment.completer()
	if err != nil {
		return err
	}
	modelName := strings.TrimSpace(modelConfiguration.ModelID)
	if modelName == "" {
		modelName = modelConfiguration.Name
	}

	session := &chat.Session{
		Chatter: completion.Model{
			Completer:    completer,
			Name:         modelName,
			SystemPrompt: strings.TrimSpace(options.system),
			Temperature:  modelConfiguration.DefaultTemperature,
			MaxTokens:    modelConfiguration.MaxCompletionTokens,
		},
		In:     command.InOrStdin(),
		Out:    command.OutOrStdout(),
		Err:    command.ErrOrStderr(),
		Logger: environment.logger,
	}
	return session.Run(command.Context())
}
