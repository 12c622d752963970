// Command flattensim plays "flatten the curve" sessions: it generates a
// synthetic population for a region, runs the player's weekly decisions
// against the worst and best cases, and stores the outcome.
package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/talgya/flatten-sim/internal/config"
	"github.com/talgya/flatten-sim/internal/logging"
)

var version = "0.1.0-dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "flattensim",
		Short: "Agent-based epidemic simulator for the flatten-the-curve game",
		Long: `flattensim simulates an epidemic in a synthetic population built from
census and hospital tables.

Each session runs three tracks side by side: the player's weekly
decisions, a worst case where nobody changes behaviour, and a best case
that locks down after the first week. Results are stored in SQLite and
can be browsed with 'history' or served over HTTP with 'serve'.`,
		SilenceUsage: true,
	}

	// Global flags
	rootCmd.PersistentFlags().String("config", "", "Path to YAML config file")
	rootCmd.PersistentFlags().String("log-level", "", "Override log level (warn, info, debug, trace)")
	rootCmd.PersistentFlags().Bool("json", false, "Output as JSON")

	rootCmd.AddCommand(
		newVersionCmd(),
		newRunCmd(),
		newHistoryCmd(),
		newTeamsCmd(),
		newServeCmd(),
	)
	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			jsonOut, _ := cmd.Flags().GetBool("json")
			if jsonOut {
				json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]string{"version": version})
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "flattensim version %s\n", version)
			}
		},
	}
}

// loadConfig reads --config and the environment, then installs the default
// logger. Logs go to stderr so stdout stays parseable.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
		cfg.Logging.Level = lvl
	}
	slog.SetDefault(logging.NewLogger(cfg.Logging.Level, cfg.Logging.Format, cmd.ErrOrStderr()))
	return cfg, nil
}
