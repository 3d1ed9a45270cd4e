package llmpipes

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/temirov/llm-pipes/internal/config"
)

const consoleLogFormat = "console"

func loadRootConfiguration(configurationPath string) (config.Root, error) {
	configurationLoader, loaderErr := config.NewDefaultRootConfigurationLoader()
	if loaderErr != nil {
		return config.Root{}, fmt.Errorf(configurationLoaderInitializationErrorFormat, loaderErr)
	}
	configurationSource, sourceErr := configurationLoader.Load(configurationPath)
	if sourceErr != nil {
		return config.Root{}, fmt.Errorf(configurationSourceResolutionErrorFormat, sourceErr)
	}
	rootConfiguration, loadErr := config.LoadRoot(configurationSource)
	if loadErr != nil {
		return config.Root{}, fmt.Errorf(rootConfigurationLoadErrorFormat, configurationSource.Reference, loadErr)
	}
	return rootConfiguration, nil
}

// newLogger writes to stderr so command output on stdout stays clean.
func newLogger(common config.Common, levelOverride string) (*zap.Logger, error) {
	level := strings.TrimSpace(levelOverride)
	if level == "" {
		level = strings.TrimSpace(common.Logging.Level)
	}
	if level == "" {
		level = zapcore.InfoLevel.String()
	}
	atomicLevel, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, fmt.Errorf(loggerBuildErrorFormat, err)
	}

	loggerConfiguration := zap.NewProductionConfig()
	if strings.EqualFold(common.Logging.Format, consoleLogFormat) {
		loggerConfiguration.Encoding = consoleLogFormat
		loggerConfiguration.EncoderConfig = zap.NewDevelopmentEncoderConfig()
	}
	loggerConfiguration.Level = atomicLevel
	loggerConfiguration.OutputPaths = []string{"stderr"}
	loggerConfiguration.ErrorOutputPaths = []string{"stderr"}

	logger, err := loggerConfiguration.Build()
	if err != nil {
		return nil, fmt.Errorf(loggerBuildErrorFormat, err)
	}
	return logger, nil
}
