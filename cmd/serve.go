package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/imgsmith/imgsmith/pkg/api"
	"github.com/imgsmith/imgsmith/pkg/environment"
	"github.com/imgsmith/imgsmith/pkg/imagegen"
	"github.com/imgsmith/imgsmith/pkg/logging"
	"github.com/imgsmith/imgsmith/pkg/session"
	"github.com/imgsmith/imgsmith/pkg/upload"
)

const shutdownGrace = 10 * time.Second

// NewServeCommand returns the command that runs the API server.
func NewServeCommand(fs afero.Fs, logger *logging.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the imgsmith API server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), fs, logger)
		},
	}
}

func runServe(ctx context.Context, fs afero.Fs, logger *logging.Logger) error {
	environ, err := environment.NewEnvironment(fs)
	if err != nil {
		return fmt.Errorf("failed to load environment: %w", err)
	}

	registry := session.NewRegistry(fs, environ.UploadDir, logger.With("component", "session"))

	reaper := session.NewReaper(registry,
		time.Duration(environ.SweepIntervalMinutes)*time.Minute,
		time.Duration(environ.SessionTTLHours)*time.Hour,
		logger.With("component", "reaper"))
	reaper.Start()
	defer reaper.Close()

	generator, err := imagegen.NewOllamaGenerator(environ.Model, logger.With("component", "imagegen"))
	if err != nil {
		return fmt.Errorf("failed to initialize image backend: %w", err)
	}

	server := api.NewServer(api.Config{
		Registry:    registry,
		Ingestor:    upload.NewIngestor(registry, logger.With("component", "upload")),
		Generator:   generator,
		Logger:      logger.With("component", "api"),
		CORSOrigins: splitOrigins(environ.CORSOrigins),
	})

	addr := fmt.Sprintf("%s:%d", environ.Host, environ.Port)

	errCh := make(chan error, 1)
	go func() {
		if err := server.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		logger.Info("signal received, shutting down", "signal", sig)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func splitOrigins(origins string) []string {
	var out []string
	for _, origin := range strings.Split(origins, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			out = append(out, origin)
		}
	}
	return out
}
