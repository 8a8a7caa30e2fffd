package cmd

import (
	"errors"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"pulse/internal/auth"
	"pulse/internal/config"
	"pulse/internal/rpc"
)

// Exit codes for CLI commands.
const (
	// ExitCodeSuccess indicates successful execution.
	ExitCodeSuccess = 0
	// ExitCodeError indicates a general error.
	ExitCodeError = 1
	// ExitCodeAuthRequired indicates authentication is required but not available.
	ExitCodeAuthRequired = 2
	// ExitCodeAuthFailed indicates the OAuth flow failed.
	ExitCodeAuthFailed = 3
)

// errAuthRequired is returned by commands that need a credential when none
// is stored. Mapped to ExitCodeAuthRequired for scripting.
var errAuthRequired = errors.New("not logged in - run 'pulse login' first")

var (
	configPath string
	verbose    bool
)

// rootCmd is the base command for the pulse CLI.
var rootCmd = &cobra.Command{
	Use:   "pulse",
	Short: "Generate operational reports from the Pulse backend",
	Long: `pulse connects your terminal (and your AI assistant, via MCP) to the
Pulse backend: log in with your browser, generate and fetch operational
reports, and run metric queries.`,
	// SilenceUsage prevents cobra from printing usage on errors that are
	// handled by the application.
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupLogging()
	},
}

// SetVersion sets the version for the root command.
// Typically called from main to inject the build version.
func SetVersion(v string) {
	rootCmd.Version = v
}

// Execute is the main entry point for the CLI application.
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "pulse version %s\n" .Version}}`)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(getExitCode(err))
	}
}

// getExitCode maps error types to semantic exit codes.
func getExitCode(err error) int {
	if errors.Is(err, errAuthRequired) {
		return ExitCodeAuthRequired
	}

	var authErr *auth.AuthorizationError
	if errors.As(err, &authErr) ||
		errors.Is(err, auth.ErrStateMismatch) ||
		errors.Is(err, auth.ErrCallbackTimeout) {
		return ExitCodeAuthFailed
	}

	return ExitCodeError
}

// setupLogging configures the process-wide slog default. Logs go to stderr
// so stdout stays clean for command output and the MCP stdio transport.
func setupLogging() {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})))
}

// resolveConfigPath returns the --config flag value or the default location.
func resolveConfigPath() (string, error) {
	if configPath != "" {
		return configPath, nil
	}
	return config.DefaultConfigPath()
}

// loadConfig loads the effective configuration.
func loadConfig() (config.Config, string, error) {
	path, err := resolveConfigPath()
	if err != nil {
		return config.Config{}, "", err
	}

	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, "", err
	}
	return cfg, path, nil
}

// newRPCClient builds the backend RPC client from the configuration.
func newRPCClient(cfg config.Config) (*rpc.Client, error) {
	return rpc.NewClient(rpc.ClientConfig{
		ServerURL:  cfg.ServerURL,
		Credential: cfg.Credential(),
	})
}

// requireCredential returns errAuthRequired when no usable credential is
// stored.
func requireCredential(cfg config.Config) error {
	if cfg.Credential() == "" {
		return errAuthRequired
	}
	return nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default is $HOME/.config/pulse/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}
