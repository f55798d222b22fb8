// Package main is the entry point for the stormcomplete completion engine.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/dshills/stormcomplete/internal/config"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// rootOptions holds global flags for all commands.
type rootOptions struct {
	configPath string
	logLevel   string
}

func main() {
	os.Exit(run())
}

func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cmd := newRootCommand()
	if err := cmd.ExecuteContext(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			return 0
		}
		printError(cmd, err)
		return 1
	}
	return 0
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "stormcomplete",
		Short: "Asynchronous, revision-ordered completion engine",
		Long: `stormcomplete runs completion sources concurrently, ranks their
candidates with a fuzzy scorer and delivers only results for the newest
request.

Examples:
  stormcomplete check -c stormcomplete.toml     # Validate a config file
  stormcomplete complete main.go 10 4           # Complete at row 10, col 4
  stormcomplete serve -c stormcomplete.toml     # JSON-lines host on stdio`,
		Version:       fmt.Sprintf("%s (commit %s, built %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "path to configuration file (TOML or YAML)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override the configured log level (debug, info, warn, error)")

	cmd.AddCommand(newCheckCommand(opts))
	cmd.AddCommand(newCompleteCommand(opts))
	cmd.AddCommand(newServeCommand(opts))

	return cmd
}

// printError writes err to stderr, one line per config problem.
func printError(cmd *cobra.Command, err error) {
	w := cmd.ErrOrStderr()
	var bad *config.BadConfigErrors
	if errors.As(err, &bad) {
		fmt.Fprintf(w, "Error: invalid configuration:\n")
		for _, e := range bad.Errors {
			fmt.Fprintf(w, "  %s\n", e.Error())
		}
		return
	}
	fmt.Fprintf(w, "Error: %v\n", err)
}
