package llmpipes

import (
	"context"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// application holds the settings shared by every subcommand. Flags win over
// LLM_PIPES_* environment variables, which win over the configuration file.
type application struct {
	settings *viper.Viper
}

func (app *application) configPath() string { return app.settings.GetString(configFlagName) }
func (app *application) logLevel() string   { return app.settings.GetString(logLevelFlagName) }

// NewRootCommand assembles the llm-pipes command tree.
func NewRootCommand() *cobra.Command {
	app := &application{settings: viper.New()}

	command := &cobra.Command{
		Use:           rootCommandUse,
		Short:         rootCommandShort,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	command.PersistentFlags().String(configFlagName, "", configFlagUsage)
	command.PersistentFlags().String(logLevelFlagName, "", logLevelFlagUsage)
	_ = app.settings.BindPFlag(configFlagName, command.PersistentFlags().Lookup(configFlagName))
	_ = app.settings.BindPFlag(logLevelFlagName, command.PersistentFlags().Lookup(logLevelFlagName))
	app.settings.SetEnvPrefix(environmentPrefix)
	app.settings.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	app.settings.AutomaticEnv()

	command.AddCommand(
		newListCommand(app),
		newRunCommand(app),
		newSearchCommand(app),
		newChatCommand(app),
	)
	return command
}

// Execute runs the CLI until completion or an interrupt.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	return NewRootCommand().ExecuteContext(ctx)
}
