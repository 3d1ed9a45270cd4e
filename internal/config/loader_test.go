package config_test

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/temirov/llm-pipes/internal/config"
	"github.com/temirov/llm-pipes/internal/fsops"
)

const (
	workingDirectory      = "/work"
	homeDirectory         = "/home/user"
	explicitLoggingLevel  = "explicit-level"
	workingLoggingLevel   = "working-level"
	homeLoggingLevel      = "home-level"
	embeddedLoggingLevel  = "info"
	configurationTemplate = `common:
  api:
    endpoint: https://example.test/v1
    api_key_env: EXAMPLE_API_KEY
  logging:
    level: %s
    format: console
models:
  - name: default
    provider: openai
    model_id: model
    default: true
recipes:
  - name: sample
    enabled: true
    type: prompt
`
)

type loaderTestCase struct {
	name                 string
	setup                func(t *testing.T, fileSystem fsops.Mem) (explicitPath string, expectedReference string)
	expectedLoggingLevel string
}

func TestRootConfigurationLoader_Load(t *testing.T) {
	testCases := []loaderTestCase{
		{
			name: "explicit path used when available",
			setup: func(t *testing.T, fileSystem fsops.Mem) (string, string) {
				path := filepath.Join(workingDirectory, "explicit.yaml")
				writeConfiguration(t, fileSystem, path, explicitLoggingLevel)
				writeConfiguration(t, fileSystem, filepath.Join(workingDirectory, "config.yaml"), workingLoggingLevel)
				return path, path
			},
			expectedLoggingLevel: explicitLoggingLevel,
		},
		{
			name: "missing explicit path falls back to working directory",
			setup: func(t *testing.T, fileSystem fsops.Mem) (string, string) {
				path := filepath.Join(workingDirectory, "config.yaml")
				writeConfiguration(t, fileSystem, path, workingLoggingLevel)
				return filepath.Join(workingDirectory, "missing.yaml"), path
			},
			expectedLoggingLevel: workingLoggingLevel,
		},
		{
			name: "working directory preferred over home",
			setup: func(t *testing.T, fileSystem fsops.Mem) (string, string) {
				path := filepath.Join(workingDirectory, "config.yaml")
				writeConfiguration(t, fileSystem, path, workingLoggingLevel)
				writeConfiguration(t, fileSystem, filepath.Join(homeDirectory, ".llm-pipes", "config.yaml"), homeLoggingLevel)
				return "", path
			},
			expectedLoggingLevel: workingLoggingLevel,
		},
		{
			name: "home directory used when other locations missing",
			setup: func(t *testing.T, fileSystem fsops.Mem) (string, string) {
				path := filepath.Join(homeDirectory, ".llm-pipes", "config.yaml")
				writeConfiguration(t, fileSystem, path, homeLoggingLevel)
				return "", path
			},
			expectedLoggingLevel: homeLoggingLevel,
		},
		{
			name: "embedded configuration used when no files available",
			setup: func(t *testing.T, fileSystem fsops.Mem) (string, string) {
				return "", config.EmbeddedRootConfigurationReference
			},
			expectedLoggingLevel: embeddedLoggingLevel,
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			fileSystem := fsops.NewMem()
			explicitPath, expectedReference := testCase.setup(t, fileSystem)
			loader := config.NewRootConfigurationLoader(fileSystem, workingDirectory, homeDirectory)

			source, loadErr := loader.Load(explicitPath)
			if loadErr != nil {
				t.Fatalf("load configuration source: %v", loadErr)
			}
			if source.Reference != expectedReference {
				t.Fatalf("expected reference %s, got %s", expectedReference, source.Reference)
			}

			rootConfiguration, parseErr := config.LoadRoot(source)
			if parseErr != nil {
				t.Fatalf("parse root configuration: %v", parseErr)
			}
			if rootConfiguration.Common.Logging.Level != testCase.expectedLoggingLevel {
				t.Fatalf("expected logging level %s, got %s", testCase.expectedLoggingLevel, rootConfiguration.Common.Logging.Level)
			}
		})
	}
}

func TestEmbeddedConfiguration_Recipes(t *testing.T) {
	source, err := config.NewRootConfigurationLoader(fsops.NewMem(), "", "").Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	rootConfiguration, err := config.LoadRoot(source)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	for _, name := range []string{"ask", "answer", "brief"} {
		if _, ok := rootConfiguration.FindRecipe(name); !ok {
			t.Fatalf("embedded configuration lacks recipe %q", name)
		}
	}
	if _, ok := rootConfiguration.FindIndex("notes"); !ok {
		t.Fatalf("embedded configuration lacks index notes")
	}
}

func writeConfiguration(t *testing.T, fileSystem fsops.Mem, path string, loggingLevel string) {
	t.Helper()
	if err := fileSystem.WriteFile(path, []byte(fmt.Sprintf(configurationTemplate, loggingLevel))); err != nil {
		t.Fatalf("write configuration file: %v", err)
	}
}
