package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/fossas/broker/internal/brokererr"
	"github.com/fossas/broker/internal/config"
)

// Version is set at build time via -ldflags.
var Version = "dev"

var (
	cfgFile  string
	dbFile   string
	dataRoot string
	verbose  bool
)

// rootCmd is the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "broker",
	Short: "Bridges internal git remotes to FOSSA without source leaving the network",
	Long: `broker polls configured git remotes, discovers new branches and tags,
runs the analysis CLI against each, and uploads the results to FOSSA —
all without any source code leaving the operator's network.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute is the entry point called from main.go. Exit codes: 0
// success, 1 generic failure, 2 configuration/validation error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		if brokererr.Is(err, brokererr.KindConfig) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initLogging)

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "",
		"config file (default: <data-root>/config.yml)")
	rootCmd.PersistentFlags().StringVarP(&dbFile, "database", "d", "",
		"database file (default: <data-root>/db.sqlite)")
	rootCmd.PersistentFlags().StringVarP(&dataRoot, "data-root", "r", "",
		"data root directory (default: $HOME/.config/fossa/broker)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false,
		"enable verbose/debug output")

	rootCmd.Version = Version
	rootCmd.AddCommand(runCmd, initCmd, fixCmd)
}

func initLogging() {
	if verbose {
		slog.SetLogLoggerLevel(slog.LevelDebug)
		slog.Debug("verbose logging enabled")
	}
}

// resolveDataRoot returns the effective data root: the -r flag if
// given, else the platform default.
func resolveDataRoot() (string, error) {
	if dataRoot != "" {
		return dataRoot, nil
	}
	return config.DefaultDataRoot()
}
