// Package cli provides the command-line interface for lexdesk.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/lexhq/lex-desktop/internal/config"
	"github.com/lexhq/lex-desktop/internal/logging"
	"github.com/lexhq/lex-desktop/internal/session"
	"github.com/lexhq/lex-desktop/internal/version"
)

var (
	// Global flags
	cfgFile    string
	socketPath string
	verbose    bool

	// Global logger
	logger *logging.Logger
)

// NewRootCmd creates the root command.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "lexdesk",
		Short: "Lex - desktop data cleaning and model training",
		Long: `Lex ` + version.Version + ` - Built: ` + version.BuildTime + `
Client for the Lex engine: load datasets, run the cleaning pipeline,
train models and inspect results from the terminal.

The engine runs as a separate process; lexdesk connects to its socket
and starts it on demand when a launch command is configured.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logger = logging.NewLogger("cli")
			if verbose {
				logging.SetGlobalLevel(-1) // zerolog.DebugLevel
			}
		},
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "Configuration file path")
	rootCmd.PersistentFlags().StringVar(&socketPath, "socket", "", "Engine socket path (overrides config)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output (shows debug messages)")

	rootCmd.Version = version.Version + " (" + version.BuildTime + ")"

	rootCmd.AddCommand(newOpenCmd())
	rootCmd.AddCommand(newCloseCmd())
	rootCmd.AddCommand(newInfoCmd())
	rootCmd.AddCommand(newRowsCmd())
	rootCmd.AddCommand(newPreprocessCmd())
	rootCmd.AddCommand(newAnalyzeCmd())
	rootCmd.AddCommand(newTrainCmd())
	rootCmd.AddCommand(newMLCmd())
	rootCmd.AddCommand(newThemeCmd())
	rootCmd.AddCommand(newProviderCmd())
	rootCmd.AddCommand(newStatusCmd())

	return rootCmd
}

// loadConfig reads the config file and applies CLI flag overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	if socketPath != "" {
		cfg.Engine.SocketPath = socketPath
	}
	return cfg, nil
}

// newSession connects a fully wired session for one command invocation.
func newSession() (*session.Session, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	s, err := session.New(cfg, logging.NewLogger("session"))
	if err != nil {
		return nil, fmt.Errorf("connect to engine: %w", err)
	}
	return s, nil
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
