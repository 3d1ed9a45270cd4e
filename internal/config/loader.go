package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/temirov/llm-pipes/internal/fsops"
)

const (
	// EmbeddedRootConfigurationReference identifies the built-in fallback configuration.
	EmbeddedRootConfigurationReference = "embedded default configuration"

	explicitConfigurationReadErrorFormat = "read configuration %s: %w"
	workingDirectoryErrorFormat          = "determine working directory: %w"
	homeDirectoryErrorFormat             = "determine home directory: %w"
	configurationFileName                = "config.yaml"
	homeConfigurationDirectoryName       = ".llm-pipes"
)

//go:embed default_root_configuration.yaml
var embeddedRootConfiguration []byte

// RootConfigurationSource holds raw configuration bytes and where they came from.
type RootConfigurationSource struct {
	Reference string
	Content   []byte
}

// RootConfigurationLoader searches, in order: an explicit path, config.yaml in
// the working directory, ~/.llm-pipes/config.yaml, and the embedded default.
type RootConfigurationLoader struct {
	workingDirectory string
	homeDirectory    string
	fileSystem       fsops.FS
}

func NewRootConfigurationLoader(fileSystem fsops.FS, workingDirectory string, homeDirectory string) RootConfigurationLoader {
	return RootConfigurationLoader{
		workingDirectory: workingDirectory,
		homeDirectory:    homeDirectory,
		fileSystem:       fileSystem,
	}
}

// NewDefaultRootConfigurationLoader uses the real filesystem, the process
// working directory and the user's home directory.
func NewDefaultRootConfigurationLoader() (RootConfigurationLoader, error) {
	workingDirectory, err := os.Getwd()
	if err != nil {
		return RootConfigurationLoader{}, fmt.Errorf(workingDirectoryErrorFormat, err)
	}
	homeDirectory, err := os.UserHomeDir()
	if err != nil {
		return RootConfigurationLoader{}, fmt.Errorf(homeDirectoryErrorFormat, err)
	}
	return NewRootConfigurationLoader(fsops.NewOS(), workingDirectory, homeDirectory), nil
}

// Load returns the first readable candidate. A missing explicit file falls
// through to the next location; any other read failure on it is returned.
func (loader RootConfigurationLoader) Load(explicitPath string) (RootConfigurationSource, error) {
	if explicitPath != "" {
		content, err := loader.fileSystem.ReadFile(explicitPath)
		switch {
		case err == nil:
			return RootConfigurationSource{Reference: explicitPath, Content: content}, nil
		case !errors.Is(err, fs.ErrNotExist) && !errors.Is(err, fs.ErrPermission):
			return RootConfigurationSource{}, fmt.Errorf(explicitConfigurationReadErrorFormat, explicitPath, err)
		}
	}
	for _, candidate := range loader.searchPaths() {
		content, err := loader.fileSystem.ReadFile(candidate)
		if err != nil {
			continue
		}
		return RootConfigurationSource{Reference: candidate, Content: content}, nil
	}
	return RootConfigurationSource{Reference: EmbeddedRootConfigurationReference, Content: embeddedRootConfiguration}, nil
}

func (loader RootConfigurationLoader) searchPaths() []string {
	var paths []string
	if loader.workingDirectory != "" {
		paths = append(paths, filepath.Join(loader.workingDirectory, configurationFileName))
	}
	if loader.homeDirectory != "" {
		paths = append(paths, filepath.Join(loader.homeDirectory, homeConfigurationDirectoryName, configurationFileName))
	}
	return paths
}
