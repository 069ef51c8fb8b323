package cmd

import (
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/imgsmith/imgsmith/pkg/logging"
	"github.com/imgsmith/imgsmith/pkg/version"
)

// NewRootCommand returns the root command with all subcommands attached.
func NewRootCommand(fs afero.Fs, logger *logging.Logger) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "imgsmith",
		Short: "Session-scoped image upload and generation service.",
		Long: `Imgsmith is the backend for a prompt-driven image studio. Clients upload
reference images into a session-scoped store and ask a generative model to
produce or edit images from a text prompt plus the session's uploads.`,
		Version: version.Version,
	}

	rootCmd.AddCommand(NewServeCommand(fs, logger))
	return rootCmd
}
