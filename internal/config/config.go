package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	IndexProviderMemory   = "memory"
	IndexProviderWeaviate = "weaviate"
	EmbedderHash          = "hash"
	EmbedderOpenAI        = "openai"

	RecipeTypePrompt = "prompt"
	RecipeTypeAnswer = "answer"
	RecipeTypeBrief  = "brief"

	defaultTimeoutSeconds = 60
	defaultRetries        = 2
	defaultConcurrency    = 4
	defaultTopN           = 3
	defaultCacheTTL       = 24 * time.Hour

	emptyModelsErrorMessage                  = "config.models is empty"
	missingDefaultModelErrorMessage          = "no default model found (set models[].default: true)"
	multipleDefaultModelsErrorFormat         = "models %s and %s are both marked default"
	duplicateNameErrorFormat                 = "duplicate %s name %q"
	emptyNameErrorFormat                     = "%s[%d] has no name"
	unknownIndexProviderErrorFormat          = "index %q: unknown provider %q (want memory or weaviate)"
	unknownEmbedderErrorFormat               = "index %q: unknown embedder %q (want hash or openai)"
	missingDocumentsErrorFormat              = "index %q: memory provider requires documents"
	missingWeaviateFieldErrorFormat          = "index %q: weaviate.%s is required"
	unknownRecipeTypeErrorFormat             = "recipe %q: unknown type %q (want prompt, answer or brief)"
	unknownRecipeModelErrorFormat            = "recipe %q: unknown model %q"
	unknownRecipeIndexErrorFormat            = "recipe %q: unknown index %q"
	missingRecipeIndexErrorFormat            = "recipe %q: type %s requires an index"
	missingAPIKeyErrorFormat                 = "environment variable %s is empty"
	rootConfigurationEmptyContentErrorFormat = "root configuration %s is empty"
	rootConfigurationUnmarshalErrorFormat    = "unmarshal root configuration %s: %w"
)

// ErrMissingAPIKey is wrapped when the configured key variable is unset.
var ErrMissingAPIKey = errors.New("api key is not set")

type Root struct {
	Common  Common   `yaml:"common"`
	Models  []Model  `yaml:"models"`
	Indexes []Index  `yaml:"indexes"`
	Recipes []Recipe `yaml:"recipes"`
}

type Common struct {
	API struct {
		Endpoint  string `yaml:"endpoint"`
		APIKeyEnv string `yaml:"api_key_env"`
	} `yaml:"api"`
	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"logging"`
	Defaults struct {
		TimeoutSeconds int `yaml:"timeout_seconds"`
		Retries        int `yaml:"retries"`
		Concurrency    int `yaml:"concurrency"`
	} `yaml:"defaults"`
	RateLimit struct {
		RequestsPerSecond float64 `yaml:"requests_per_second"`
		Burst             int     `yaml:"burst"`
	} `yaml:"rate_limit"`
	Cache struct {
		Enabled    bool   `yaml:"enabled"`
		Address    string `yaml:"address"`
		Password   string `yaml:"password"`
		DB         int    `yaml:"db"`
		TTLSeconds int    `yaml:"ttl_seconds"`
	} `yaml:"cache"`
}

type Model struct {
	Name                string   `yaml:"name"`
	Provider            string   `yaml:"provider"`
	ModelID             string   `yaml:"model_id"`
	Default             bool     `yaml:"default"`
	DefaultTemperature  *float64 `yaml:"default_temperature"`
	MaxCompletionTokens int      `yaml:"max_completion_tokens"`
	EmbeddingModel      string   `yaml:"embedding_model"`
}

// Index describes one vector index. Documents is a .json/.jsonl file or a
// directory of them, used by the memory provider.
type Index struct {
	Name       string `yaml:"name"`
	Provider   string `yaml:"provider"`
	Documents  string `yaml:"documents"`
	Embedder   string `yaml:"embedder"`
	Dimensions int    `yaml:"dimensions"`
	Weaviate   struct {
		Host       string   `yaml:"host"`
		Scheme     string   `yaml:"scheme"`
		APIKeyEnv  string   `yaml:"api_key_env"`
		ClassName  string   `yaml:"class_name"`
		Properties []string `yaml:"properties"`
	} `yaml:"weaviate"`
}

type Recipe struct {
	Name     string `yaml:"name"`
	Enabled  bool   `yaml:"enabled"`
	Type     string `yaml:"type"`
	Model    string `yaml:"model"`
	Index    string `yaml:"index"`
	TopN     int    `yaml:"top_n"`
	System   string `yaml:"system"`
	Template string `yaml:"template"`
}

// LoadRoot parses the provided configuration source, applies defaults and
// validates cross references.
func LoadRoot(source RootConfigurationSource) (Root, error) {
	if len(source.Content) == 0 {
		return Root{}, fmt.Errorf(rootConfigurationEmptyContentErrorFormat, source.Reference)
	}

	var rootConfiguration Root
	if err := yaml.Unmarshal(source.Content, &rootConfiguration); err != nil {
		return Root{}, fmt.Errorf(rootConfigurationUnmarshalErrorFormat, source.Reference, err)
	}
	rootConfiguration.applyDefaults()
	if err := rootConfiguration.validate(); err != nil {
		return Root{}, err
	}
	return rootConfiguration, nil
}

func (root *Root) applyDefaults() {
	defaults := &root.Common.Defaults
	if defaults.TimeoutSeconds <= 0 {
		defaults.TimeoutSeconds = defaultTimeoutSeconds
	}
	if defaults.Retries < 0 {
		defaults.Retries = 0
	} else if defaults.Retries == 0 {
		defaults.Retries = defaultRetries
	}
	if defaults.Concurrency <= 0 {
		defaults.Concurrency = defaultConcurrency
	}
	for i := range root.Indexes {
		if root.Indexes[i].Embedder == "" {
			root.Indexes[i].Embedder = EmbedderHash
		}
	}
	for i := range root.Recipes {
		if root.Recipes[i].TopN == 0 {
			root.Recipes[i].TopN = defaultTopN
		}
	}
}

func (root Root) validate() error {
	if len(root.Models) == 0 {
		return errors.New(emptyModelsErrorMessage)
	}
	var defaultModel string
	for i, model := range root.Models {
		if strings.TrimSpace(model.Name) == "" {
			return fmt.Errorf(emptyNameErrorFormat, "models", i)
		}
		if !model.Default {
			continue
		}
		if defaultModel != "" {
			return fmt.Errorf(multipleDefaultModelsErrorFormat, defaultModel, model.Name)
		}
		defaultModel = model.Name
	}
	if defaultModel == "" {
		return errors.New(missingDefaultModelErrorMessage)
	}
	if err := uniqueNames("model", root.Models, func(m Model) string { return m.Name }); err != nil {
		return err
	}

	for i, index := range root.Indexes {
		if strings.TrimSpace(index.Name) == "" {
			return fmt.Errorf(emptyNameErrorFormat, "indexes", i)
		}
		if err := index.validate(); err != nil {
			return err
		}
	}
	if err := uniqueNames("index", root.Indexes, func(i Index) string { return i.Name }); err != nil {
		return err
	}

	for i, recipe := range root.Recipes {
		if strings.TrimSpace(recipe.Name) == "" {
			return fmt.Errorf(emptyNameErrorFormat, "recipes", i)
		}
		if err := root.validateRecipe(recipe); err != nil {
			return err
		}
	}
	return uniqueNames("recipe", root.Recipes, func(r Recipe) string { return r.Name })
}

func (index Index) validate() error {
	switch index.Provider {
	case IndexProviderMemory:
		if strings.TrimSpace(index.Documents) == "" {
			return fmt.Errorf(missingDocumentsErrorFormat, index.Name)
		}
		if index.Embedder != EmbedderHash && index.Embedder != EmbedderOpenAI {
			return fmt.Errorf(unknownEmbedderErrorFormat, index.Name, index.Embedder)
		}
	case IndexProviderWeaviate:
		if strings.TrimSpace(index.Weaviate.Host) == "" {
			return fmt.Errorf(missingWeaviateFieldErrorFormat, index.Name, "host")
		}
		if strings.TrimSpace(index.Weaviate.ClassName) == "" {
			return fmt.Errorf(missingWeaviateFieldErrorFormat, index.Name, "class_name")
		}
	default:
		return fmt.Errorf(unknownIndexProviderErrorFormat, index.Name, index.Provider)
	}
	return nil
}

func (root Root) validateRecipe(recipe Recipe) error {
	switch recipe.Type {
	case RecipeTypePrompt:
	case RecipeTypeAnswer, RecipeTypeBrief:
		if recipe.Index == "" {
			return fmt.Errorf(missingRecipeIndexErrorFormat, recipe.Name, recipe.Type)
		}
	default:
		return fmt.Errorf(unknownRecipeTypeErrorFormat, recipe.Name, recipe.Type)
	}
	if recipe.Model != "" {
		if _, ok := root.FindModel(recipe.Model); !ok {
			return fmt.Errorf(unknownRecipeModelErrorFormat, recipe.Name, recipe.Model)
		}
	}
	if recipe.Index != "" {
		if _, ok := root.FindIndex(recipe.Index); !ok {
			return fmt.Errorf(unknownRecipeIndexErrorFormat, recipe.Name, recipe.Index)
		}
	}
	return nil
}

func uniqueNames[T any](kind string, items []T, name func(T) string) error {
	seen := make(map[string]bool, len(items))
	for _, item := range items {
		itemName := name(item)
		if seen[itemName] {
			return fmt.Errorf(duplicateNameErrorFormat, kind, itemName)
		}
		seen[itemName] = true
	}
	return nil
}

func (root Root) DefaultModel() (Model, bool) {
	for _, modelConfiguration := range root.Models {
		if modelConfiguration.Default {
			return modelConfiguration, true
		}
	}
	return Model{}, false
}

func (root Root) FindModel(name string) (Model, bool) {
	for _, modelConfiguration := range root.Models {
		if modelConfiguration.Name == name {
			return modelConfiguration, true
		}
	}
	return Model{}, false
}

// ResolveModel returns the named model, or the default one when name is empty.
func (root Root) ResolveModel(name string) (Model, bool) {
	if strings.TrimSpace(name) == "" {
		return root.DefaultModel()
	}
	return root.FindModel(name)
}

func (root Root) FindIndex(name string) (Index, bool) {
	for _, index := range root.Indexes {
		if index.Name == name {
			return index, true
		}
	}
	return Index{}, false
}

func (root Root) FindRecipe(name string) (Recipe, bool) {
	for _, recipe := range root.Recipes {
		if recipe.Name == name {
			return recipe, true
		}
	}
	return Recipe{}, false
}

// Timeout is the per-call deadline of a pipeline run.
func (common Common) Timeout() time.Duration {
	return time.Duration(common.Defaults.TimeoutSeconds) * time.Second
}

func (common Common) CacheTTL() time.Duration {
	if common.Cache.TTLSeconds <= 0 {
		return defaultCacheTTL
	}
	return time.Duration(common.Cache.TTLSeconds) * time.Second
}

// APIKey reads the completion API key from the configured environment variable.
func (common Common) APIKey() (string, error) {
	return lookupKey(common.API.APIKeyEnv)
}

// APIKey reads the Weaviate key; an index without api_key_env needs none.
func (index Index) APIKey() (string, error) {
	if index.Weaviate.APIKeyEnv == "" {
		return "", nil
	}
	return lookupKey(index.Weaviate.APIKeyEnv)
}

func lookupKey(variable string) (string, error) {
	value := strings.TrimSpace(os.Getenv(variable))
	if value == "" {
		return "", fmt.Errorf("%w: "+missingAPIKeyErrorFormat, ErrMissingAPIKey, variable)
	}
	return value, nil
}
