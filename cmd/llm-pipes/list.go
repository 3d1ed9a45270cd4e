package llmpipes

import (
	"fmt"

	"github.com/spf13/cobra"
)

type listCommandOptions struct {
	includeDisabled bool
}

func newListCommand(app *application) *cobra.Command {
	options := &listCommandOptions{}

	command := &cobra.Command{
		Use:   listCommandUse,
		Short: listCommandShort,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runListCommand(cmd, app, *options)
		},
	}
	command.Flags().BoolVar(&options.includeDisabled, allFlagName, false, allFlagUsage)
	return command
}

func runListCommand(command *cobra.Command, app *application, options listCommandOptions) error {
	rootConfiguration, err := loadRootConfiguration(app.configPath())
	if err != nil {
		return err
	}

	outputWriter := command.OutOrStdout()
	for _, recipe := range rootConfiguration.Recipes {
		if !options.includeDisabled && !recipe.Enabled {
			continue
		}
		recipeStateLabel := enabledStateLabel
		if !recipe.Enabled {
			recipeStateLabel = disabledStateLabel
		}
		_, writeErr := fmt.Fprintf(outputWriter, "%s\t(%s, type=%s, model=%s, index=%s)\n",
			recipe.Name, recipeStateLabel, recipe.Type, dashIfEmpty(recipe.Model), dashIfEmpty(recipe.Index))
		if writeErr != nil {
			return fmt.Errorf(writeOutputErrorFormat, writeErr)
		}
	}
	return nil
}

func dashIfEmpty(value string) string {
	if value == "" {
		return dashPlaceholder
	}
	return value
}
