// Command graphdrive is a CLI for Graph-style drive storage services:
// folder listing with pagination, small and chunked-resumable file upload,
// and device-code login.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/mkallio/graphdrive-go/internal/api"
	"github.com/mkallio/graphdrive-go/internal/config"
	"github.com/mkallio/graphdrive-go/internal/drive"
)

// version is set at build time via ldflags.
var version = "dev"

// Global persistent flags, bound in newRootCmd().
var (
	flagConfigPath string
	flagJSON       bool
	flagVerbose    bool
	flagQuiet      bool
)

// resolvedCfg holds the effective configuration loaded by PersistentPreRunE.
// Auth commands load config themselves because login must bootstrap before
// a config file exists.
var resolvedCfg *config.Config

// httpClientTimeout bounds every request so a hung connection cannot block
// a CLI command indefinitely.
const httpClientTimeout = 30 * time.Second

func defaultHTTPClient() *http.Client {
	return &http.Client{Timeout: httpClientTimeout}
}

// skipConfigCommands handle config loading themselves.
var skipConfigCommands = map[string]bool{
	"graphdrive login":  true,
	"graphdrive logout": true,
}

// newRootCmd builds the fully-assembled root command. Called once from main().
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "graphdrive",
		Short:   "Drive storage CLI client",
		Long:    "A CLI client for Graph-style drive storage services.",
		Version: version,
		// Silence cobra's default error/usage printing — handled in main.
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if skipConfigCommands[cmd.CommandPath()] {
				return nil
			}

			return loadConfig()
		},
	}

	cmd.PersistentFlags().StringVar(&flagConfigPath, "config", "", "config file path")
	cmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "output in JSON format")
	cmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")
	cmd.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "suppress informational output")

	cmd.AddCommand(newLoginCmd())
	cmd.AddCommand(newLogoutCmd())
	cmd.AddCommand(newLsCmd())
	cmd.AddCommand(newStatCmd())
	cmd.AddCommand(newMkdirCmd())
	cmd.AddCommand(newPutCmd())
	cmd.AddCommand(newCancelUploadCmd())

	return cmd
}

// loadConfig resolves the effective configuration and stores it for
// subcommand use.
func loadConfig() error {
	cfg, err := config.Resolve(flagConfigPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	resolvedCfg = cfg

	return nil
}

// buildLogger creates an slog.Logger from the config log level; --verbose
// and --quiet override it because CLI flags always win.
func buildLogger() *slog.Logger {
	level := slog.LevelWarn

	if resolvedCfg != nil {
		switch resolvedCfg.LogLevel {
		case "debug":
			level = slog.LevelDebug
		case "info":
			level = slog.LevelInfo
		case "error":
			level = slog.LevelError
		}
	}

	if flagVerbose {
		level = slog.LevelDebug
	}

	if flagQuiet {
		level = slog.LevelError
	}

	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// newDriveClient wires the full client stack from the resolved config:
// saved token -> api client -> drive client with session persistence.
func newDriveClient(ctx context.Context, logger *slog.Logger) (*drive.Client, error) {
	token, err := api.TokenSourceFromPath(ctx, resolvedCfg.TokenPath, logger)
	if err != nil {
		return nil, fmt.Errorf("loading credentials (run 'graphdrive login'): %w", err)
	}

	apiClient := api.NewClient(resolvedCfg.BaseURL, defaultHTTPClient(), token, logger)
	sessions := drive.NewSessionStore(resolvedCfg.DataDir, logger)

	return drive.NewClient(apiClient, resolvedCfg.DriveID, sessions, logger), nil
}

// exitOnError prints a user-friendly error message to stderr and exits.
func exitOnError(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
