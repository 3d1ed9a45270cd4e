package llmpipes

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/temirov/llm-pipes/tasks"
)

type runCommandOptions struct {
	concurrency int
	timeout     time.Duration
	retries     int
	model       string
}

func newRunCommand(app *application) *cobra.Command {
	options := &runCommandOptions{}

	command := &cobra.Command{
		Use:   runCommandUse,
		Short: runCommandShort,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRecipeCommand(cmd, app, *options, args[0], args[1:])
		},
	}
	command.Flags().IntVar(&options.concurrency, concurrencyFlag, 0, concurrencyUsage)
	command.Flags().DurationVar(&options.timeout, timeoutFlagName, 0, timeoutFlagUsage)
	command.Flags().IntVar(&options.retries, retriesFlagName, 0, retriesFlagUsage)
	command.Flags().StringVar(&options.model, modelFlagName, "", modelFlagUsage)
	return command
}

type runOutcome struct {
	output string
	err    error
}

func runRecipeCommand(command *cobra.Command, app *application, options runCommandOptions, recipeName string, inputs []string) error {
	environment, err := app.backends()
	if err != nil {
		return err
	}
	defer environment.Close()

	recipe, found := environment.root.FindRecipe(recipeName)
	if !found || !recipe.Enabled {
		return fmt.Errorf(unknownRecipeErrorFormat, recipeName)
	}
	if options.model != "" {
		if _, ok := environment.root.FindModel(options.model); !ok {
			return fmt.Errorf(unknownModelErrorFormat, options.model)
		}
		recipe.Model = options.model
	}

	if len(inputs) == 0 {
		inputs, err = readInputLines(command.InOrStdin())
		if err != nil {
			return fmt.Errorf(readInputsErrorFormat, err)
		}
	}
	if len(inputs) == 0 {
		return nil
	}

	completer, err := environment.completer()
	if err != nil {
		return err
	}
	defaults := environment.root.Common.Defaults
	taskEnvironment := tasks.Environment{
		Root:      environment.root,
		Completer: completer,
		Indexes:   environment.indexSource(),
		Logger:    environment.logger.With(zap.String("recipe", recipe.Name)),
		Timeout:   environment.root.Common.Timeout(),
		Retries:   defaults.Retries,
	}
	if command.Flags().Changed(timeoutFlagName) {
		taskEnvironment.Timeout = options.timeout
	}
	if command.Flags().Changed(retriesFlagName) {
		taskEnvironment.Retries = max(options.retries, 0)
	}
	concurrency := defaults.Concurrency
	if options.concurrency > 0 {
		concurrency = options.concurrency
	}

	ctx := command.Context()
	recipePipeline, err := tasks.NewRegistry().Build(ctx, recipe, taskEnvironment)
	if err != nil {
		return err
	}

	// Each input is independent; one failure does not cancel the others.
	outcomes := make([]runOutcome, len(inputs))
	var group errgroup.Group
	group.SetLimit(concurrency)
	for i, input := range inputs {
		group.Go(func() error {
			output, callErr := recipePipeline.Call(ctx, input)
			outcomes[i] = runOutcome{output: output, err: callErr}
			return nil
		})
	}
	_ = group.Wait()

	return writeOutcomes(command.OutOrStdout(), command.ErrOrStderr(), inputs, outcomes)
}

// writeOutcomes prints results in input order, failures on errWriter.
func writeOutcomes(outWriter io.Writer, errWriter io.Writer, inputs []string, outcomes []runOutcome) error {
	failed := 0
	printed := 0
	for i, outcome := range outcomes {
		if outcome.err != nil {
			failed++
			fmt.Fprintf(errWriter, failedInputFormat, i+1, inputs[i], outcome.err)
			continue
		}
		if printed > 0 {
			if _, err := fmt.Fprintln(outWriter); err != nil {
				return fmt.Errorf(writeOutputErrorFormat, err)
			}
		}
		if _, err := fmt.Fprintln(outWriter, strings.TrimRight(outcome.output, "\n")); err != nil {
			return fmt.Errorf(writeOutputErrorFormat, err)
		}
		printed++
	}
	if failed > 0 {
		return fmt.Errorf(failedInputsErrorFormat, failed, len(outcomes))
	}
	return nil
}

// readInputLines returns the non-blank lines of reader, trimmed.
func readInputLines(reader io.Reader) ([]string, error) {
	var lines []string
	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			lines = append(lines, line)
		}
	}
	return lines, scanner.Err()
}
