package tasks

import (
	"context"
	"fmt"
	"strings"

	"github.com/temirov/llm-pipes/internal/config"
	"github.com/temirov/llm-pipes/internal/extractor"
	"github.com/temirov/llm-pipes/internal/pipeline"
)

const (
	defaultBriefTemplate = `Write a short briefing about "{{.Input}}" using these notes:
{{range .Passages}}- {{trim .Text}}
{{end}}`

	defaultBriefSystem = "You write factual briefings from notes. Do not add facts the notes do not contain."
	briefInstruction   = "Turn the briefing into a title, a one-paragraph summary and its key points."
)

// Brief is the structured form a briefing is extracted into.
type Brief struct {
	Title     string   `json:"title" validate:"required"`
	Summary   string   `json:"summary" validate:"required"`
	KeyPoints []string `json:"key_points" validate:"min=1,dive,required"`
}

// Markdown renders the brief as a heading, a paragraph and a bullet list.
func (b Brief) Markdown() string {
	var builder strings.Builder
	fmt.Fprintf(&builder, "# %s\n\n%s\n", strings.TrimSpace(b.Title), strings.TrimSpace(b.Summary))
	if len(b.KeyPoints) > 0 {
		builder.WriteString("\n")
		for _, point := range b.KeyPoints {
			fmt.Fprintf(&builder, "- %s\n", strings.TrimSpace(point))
		}
	}
	return builder.String()
}

// buildBrief is lookup, render, prompt, extract into Brief, render Markdown.
func buildBrief(ctx context.Context, recipe config.Recipe, env Environment) (pipeline.Op[string, string], error) {
	if recipe.System == "" {
		recipe.System = defaultBriefSystem
	}
	model, err := env.model(recipe)
	if err != nil {
		return nil, err
	}
	briefExtractor, err := extractor.New[Brief](model, extractor.WithName("brief"), extractor.WithInstruction(briefInstruction))
	if err != nil {
		return nil, fmt.Errorf(buildErrorFormat, recipe.Name, err)
	}
	head, err := retrieve(ctx, recipe, env, defaultBriefTemplate)
	if err != nil {
		return nil, err
	}
	draft := pipeline.Then(head, guarded[string, string](env, pipeline.Prompt[string](model)))
	structured := pipeline.Then(draft, guarded[string, Brief](env, pipeline.Extract[string, Brief](briefExtractor)))
	return pipeline.Then(structured, pipeline.Map(Brief.Markdown)), nil
}
