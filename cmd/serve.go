package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/jfmyers9/slackfm/internal/config"
	"github.com/jfmyers9/slackfm/internal/daemon"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the Slack bot and callback server",
	Long: `Run the Slack bot and the Last.fm callback server.

The server will:
- Connect to Slack over Socket Mode and answer slash commands
- Serve the Last.fm authorization callback and a /health endpoint
- Periodically remove expired link requests
- Handle graceful shutdown on SIGINT/SIGTERM

It runs in the foreground and logs to stderr by default.
Use the --log-file flag to log to a file.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration (run 'slackfm setup' or set SLACKFM_* variables):\n%w", err)
	}

	logger := setupLogger(logFile, logLevel)

	logger.Info().
		Str("version", version).
		Msg("Starting slackfm")

	// Ensure data directory exists
	if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	logger.Info().Str("database", cfg.Database.Path).Msg("Using database")

	d, err := daemon.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to start: %w", err)
	}

	// Run blocks until shutdown signal
	runErr := d.Run()

	if err := d.Shutdown(); err != nil {
		logger.Error().Err(err).Msg("Error during shutdown")
		if runErr == nil {
			runErr = err
		}
	}

	if runErr != nil {
		return fmt.Errorf("server error: %w", runErr)
	}

	logger.Info().Msg("slackfm stopped")
	return nil
}
