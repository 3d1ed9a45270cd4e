package main

import (
	"os"

	"go.uber.org/zap"

	llmpipes "github.com/temirov/llm-pipes/cmd/llm-pipes"
)

func main() {
	logger := zap.Must(zap.NewProduction())

	if executionErr := llmpipes.Execute(); executionErr != nil {
		logger.Error("command execution failed", zap.Error(executionErr))
		_ = logger.Sync()
		os.Exit(1)
	}
	_ = logger.Sync()
}
