package main

import (
	"context"
	"os"

	"github.com/spf13/afero"

	"github.com/imgsmith/imgsmith/cmd"
	"github.com/imgsmith/imgsmith/pkg/logging"
)

func main() {
	fs := afero.NewOsFs()
	logger := logging.New("")

	rootCmd := cmd.NewRootCommand(fs, logger)
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		logger.Error("command failed", "error", err)
		os.Exit(1)
	}
}
