package llmpipes

const (
	rootCommandUse   = "llm-pipes"
	rootCommandShort = "Run retrieval-augmented LLM pipelines defined in config.yaml"

	environmentPrefix = "LLM_PIPES"

	configFlagName     = "config"
	configFlagUsage    = "Path to config.yaml (default: ./config.yaml, ~/.llm-pipes/config.yaml, built-in)"
	logLevelFlagName   = "log-level"
	logLevelFlagUsage  = "Override common.logging.level (debug, info, warn, error)"
	allFlagName        = "all"
	allFlagUsage       = "Show disabled recipes as well"
	concurrencyFlag    = "concurrency"
	concurrencyUsage   = "Inputs processed in parallel (0 = common.defaults.concurrency)"
	timeoutFlagName    = "timeout"
	timeoutFlagUsage   = "Per-stage timeout, e.g. 45s (0 = common.defaults.timeout_seconds)"
	retriesFlagName    = "retries"
	retriesFlagUsage   = "Retries of transient stage failures (default common.defaults.retries)"
	modelFlagName      = "model"
	modelFlagUsage     = "Model name from models[] (default: the recipe's, then the default model)"
	systemFlagName     = "system"
	systemFlagUsage    = "System prompt for the conversation"
	topFlagName        = "top"
	topFlagUsage       = "Number of matches to return"
	idsFlagName        = "ids"
	idsFlagUsage       = "Print scores and IDs without payloads"
	defaultSearchTopN  = 5
	defaultAPIEndpoint = "https://api.openai.com/v1"

	listCommandUse     = "list"
	listCommandShort   = "List recipes from config.yaml (enabled by default)"
	runCommandUse      = "run RECIPE [INPUT...]"
	runCommandShort    = "Run a recipe once per input; inputs are read from stdin lines when none are given"
	searchCommandUse   = "search INDEX QUERY"
	searchCommandShort = "Query a configured index directly"
	chatCommandUse     = "chat"
	chatCommandShort   = "Start an interactive conversation with a model"

	enabledStateLabel  = "enabled"
	disabledStateLabel = "disabled"
	dashPlaceholder    = "-"

	configurationLoaderInitializationErrorFormat = "initialize configuration loader: %w"
	configurationSourceResolutionErrorFormat     = "resolve configuration source: %w"
	rootConfigurationLoadErrorFormat             = "load root configuration %s: %w"
	loggerBuildErrorFormat                       = "build logger: %w"
	unknownIndexErrorFormat                      = "unknown index %q"
	unknownModelErrorFormat                      = "model %q not found in models[]"
	unknownRecipeErrorFormat                     = "unknown or disabled recipe %q"
	documentsLoadErrorFormat                     = "index %s: %w"
	indexOpenErrorFormat                         = "index %s: %w"
	missingAPIKeyErrorFormat                     = "missing API key: %w"
	readInputsErrorFormat                        = "read inputs: %w"
	failedInputsErrorFormat                      = "%d of %d inputs failed"
	failedInputFormat                            = "input %d (%q): %v\n"
	writeOutputErrorFormat                       = "write output: %w"
)
