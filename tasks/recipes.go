package tasks

import (
	"context"
	"fmt"

	"github.com/temirov/llm-pipes/internal/config"
	"github.com/temirov/llm-pipes/internal/pipeline"
	"github.com/temirov/llm-pipes/internal/vectorstore"
)

const (
	defaultAnswerTemplate = `Context:
{{range $i, $p := .Passages}}[{{inc $i}}] {{trim $p.Text}}
{{end}}
Question: {{.Input}}`

	defaultAnswerSystem = "Answer the question using only the numbered context passages. If they do not contain the answer, say so."
)

// Passage is the retrievable unit of a corpus. ID and Score come from the
// index; Text is decoded from the stored payload.
type Passage struct {
	ID    string  `json:"id"`
	Text  string  `json:"text"`
	Score float64 `json:"-"`
}

// Grounding is what recipe templates render: the caller's input and the
// passages retrieved for it, most relevant first.
type Grounding struct {
	Input    string
	Passages []Passage
}

func ground(carried pipeline.Carried[string, []vectorstore.Result[Passage]]) Grounding {
	passages := make([]Passage, len(carried.Output))
	for i, result := range carried.Output {
		passage := result.Payload
		passage.ID = result.ID
		passage.Score = result.Score
		passages[i] = passage
	}
	return Grounding{Input: carried.Input, Passages: passages}
}

// buildPrompt sends the input, optionally rendered through the recipe
// template, as one prompt.
func buildPrompt(_ context.Context, recipe config.Recipe, env Environment) (pipeline.Op[string, string], error) {
	model, err := env.model(recipe)
	if err != nil {
		return nil, err
	}
	prompt := guarded[string, string](env, pipeline.Prompt[string](model))
	if recipe.Template == "" {
		return prompt, nil
	}
	render, err := pipeline.Template[Grounding](recipe.Name, recipe.Template)
	if err != nil {
		return nil, fmt.Errorf(buildErrorFormat, recipe.Name, err)
	}
	withInput := pipeline.Map(func(input string) Grounding { return Grounding{Input: input} })
	return pipeline.Then(pipeline.Then(withInput, render), prompt), nil
}

// retrieve is the shared head of the grounded recipes: look the input up and
// render it together with the passages found.
func retrieve(ctx context.Context, recipe config.Recipe, env Environment, fallbackTemplate string) (pipeline.Op[string, string], error) {
	index, err := env.index(ctx, recipe)
	if err != nil {
		return nil, err
	}
	templateText := recipe.Template
	if templateText == "" {
		templateText = fallbackTemplate
	}
	render, err := pipeline.Template[Grounding](recipe.Name, templateText)
	if err != nil {
		return nil, fmt.Errorf(buildErrorFormat, recipe.Name, err)
	}
	lookup := guarded[string, []vectorstore.Result[Passage]](env, pipeline.Lookup[string, Passage](index, recipe.TopN))
	return pipeline.Then(pipeline.Then(pipeline.Carry(lookup), pipeline.Map(ground)), render), nil
}

// buildAnswer is lookup, render, prompt.
func buildAnswer(ctx context.Context, recipe config.Recipe, env Environment) (pipeline.Op[string, string], error) {
	if recipe.System == "" {
		recipe.System = defaultAnswerSystem
	}
	model, err := env.model(recipe)
	if err != nil {
		return nil, err
	}
	head, err := retrieve(ctx, recipe, env, defaultAnswerTemplate)
	if err != nil {
		return nil, err
	}
	return pipeline.Then(head, guarded[string, string](env, pipeline.Prompt[string](model))), nil
}
