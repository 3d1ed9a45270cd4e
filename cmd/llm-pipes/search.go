package llmpipes

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/temirov/llm-pipes/internal/vectorstore"
)

type searchCommandOptions struct {
	top     int
	idsOnly bool
}

func newSearchCommand(app *application) *cobra.Command {
	options := &searchCommandOptions{}

	command := &cobra.Command{
		Use:   searchCommandUse,
		Short: searchCommandShort,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearchCommand(cmd, app, *options, args[0], args[1])
		},
	}
	command.Flags().IntVar(&options.top, topFlagName, defaultSearchTopN, topFlagUsage)
	command.Flags().BoolVar(&options.idsOnly, idsFlagName, false, idsFlagUsage)
	return command
}

// runSearchCommand prints one tab-separated line per match: score, ID and,
// unless --ids is set, the payload as compact JSON.
func runSearchCommand(command *cobra.Command, app *application, options searchCommandOptions, indexName string, query string) error {
	environment, err := app.backends()
	if err != nil {
		return err
	}
	defer environment.Close()

	ctx := command.Context()
	index, err := environment.indexSource()(ctx, indexName)
	if err != nil {
		return err
	}

	outputWriter := command.OutOrStdout()
	if options.idsOnly {
		matches, err := vectorstore.TopNIDs(ctx, index, query, options.top)
		if err != nil {
			return err
		}
		for _, match := range matches {
			if _, err := fmt.Fprintf(outputWriter, "%.4f\t%s\n", match.Score, match.ID); err != nil {
				return fmt.Errorf(writeOutputErrorFormat, err)
			}
		}
		return nil
	}

	results, err := vectorstore.TopN[json.RawMessage](ctx, index, query, options.top)
	if err != nil {
		return err
	}
	for _, result := range results {
		if _, err := fmt.Fprintf(outputWriter, "%.4f\t%s\t%s\n", result.Score, result.ID, result.Payload); err != nil {
			return fmt.Errorf(writeOutputErrorFormat, err)
		}
	}
	return nil
}
