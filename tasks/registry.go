// Package tasks turns configured recipes into runnable text pipelines.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/temirov/llm-pipes/internal/completion"
	"github.com/temirov/llm-pipes/internal/config"
	"github.com/temirov/llm-pipes/internal/pipeline"
	"github.com/temirov/llm-pipes/internal/vectorstore"
)

const (
	unknownRecipeTypeErrorFormat = "recipe %s: no builder for type %q"
	unknownModelErrorFormat      = "recipe %s: unknown model %q"
	indexErrorFormat             = "recipe %s: index %s: %w"
	buildErrorFormat             = "recipe %s: %w"
)

// ErrNoIndexSource is returned when a recipe needs an index but the
// environment cannot provide one.
var ErrNoIndexSource = errors.New("no index source configured")

// IndexSource opens the named index. Opening a memory index embeds its corpus,
// so the call may block.
type IndexSource func(ctx context.Context, name string) (vectorstore.Index, error)

// Environment carries the shared backends a recipe is built against.
type Environment struct {
	Root      config.Root
	Completer completion.Completer
	Indexes   IndexSource
	Logger    *zap.Logger
	Timeout   time.Duration
	Retries   int
}

// Factory builds the pipeline of one recipe type.
type Factory func(ctx context.Context, recipe config.Recipe, env Environment) (pipeline.Op[string, string], error)

type Registry struct{ factories map[string]Factory }

// NewRegistry returns a registry holding the prompt, answer and brief recipe types.
func NewRegistry() *Registry {
	registry := &Registry{factories: map[string]Factory{}}
	registry.Register(config.RecipeTypePrompt, buildPrompt)
	registry.Register(config.RecipeTypeAnswer, buildAnswer)
	registry.Register(config.RecipeTypeBrief, buildBrief)
	return registry
}

func (r *Registry) Register(recipeType string, factory Factory) { r.factories[recipeType] = factory }

func (r *Registry) Types() []string {
	types := make([]string, 0, len(r.factories))
	for recipeType := range r.factories {
		types = append(types, recipeType)
	}
	sort.Strings(types)
	return types
}

// Build assembles the pipeline for recipe. The result takes one input text
// and returns the recipe's final text.
func (r *Registry) Build(ctx context.Context, recipe config.Recipe, env Environment) (pipeline.Op[string, string], error) {
	factory, ok := r.factories[recipe.Type]
	if !ok {
		return nil, fmt.Errorf(unknownRecipeTypeErrorFormat, recipe.Name, recipe.Type)
	}
	if env.Logger == nil {
		env.Logger = zap.NewNop()
	}
	op, err := factory(ctx, recipe, env)
	if err != nil {
		return nil, err
	}
	return pipeline.Named(recipe.Name, op), nil
}

// model binds the recipe's model, or the default one, to the shared completer.
func (env Environment) model(recipe config.Recipe) (completion.Model, error) {
	modelConfiguration, ok := env.Root.ResolveModel(recipe.Model)
	if !ok {
		return completion.Model{}, fmt.Errorf(unknownModelErrorFormat, recipe.Name, recipe.Model)
	}
	name := strings.TrimSpace(modelConfiguration.ModelID)
	if name == "" {
		name = modelConfiguration.Name
	}
	return completion.Model{
		Completer:    env.Completer,
		Name:         name,
		SystemPrompt: strings.TrimSpace(recipe.System),
		Temperature:  modelConfiguration.DefaultTemperature,
		MaxTokens:    modelConfiguration.MaxCompletionTokens,
	}, nil
}

func (env Environment) index(ctx context.Context, recipe config.Recipe) (vectorstore.Index, error) {
	if env.Indexes == nil {
		return nil, fmt.Errorf(indexErrorFormat, recipe.Name, recipe.Index, ErrNoIndexSource)
	}
	index, err := env.Indexes(ctx, recipe.Index)
	if err != nil {
		return nil, fmt.Errorf(indexErrorFormat, recipe.Name, recipe.Index, err)
	}
	return index, nil
}

// guarded wraps a backend-facing stage with the environment's deadline,
// transient-failure retries and stage logging.
func guarded[In, Out any](env Environment, op pipeline.Op[In, Out]) pipeline.Op[In, Out] {
	op = pipeline.WithTimeout(op, env.Timeout)
	op = pipeline.Retry(op, pipeline.RetryPolicy{Attempts: env.Retries + 1, Jitter: 100 * time.Millisecond})
	return pipeline.Logged(env.Logger, op)
}
