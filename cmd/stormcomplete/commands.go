package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/dshills/stormcomplete/internal/app"
	"github.com/dshills/stormcomplete/internal/completion"
)

func (o *rootOptions) appOptions() app.Options {
	return app.Options{
		ConfigPath: o.configPath,
		LogLevel:   o.logLevel,
	}
}

func newCheckCommand(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate the configuration and the Lua init file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := app.New(root.appOptions())
			if err != nil {
				return err
			}
			defer a.Shutdown()

			names := make([]string, 0, len(a.Bundles()))
			for _, b := range a.Bundles() {
				names = append(names, fmt.Sprintf("%s (%s)", b.Name(), b.Policy()))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "configuration ok: %d sources: %s\n", len(names), strings.Join(names, ", "))
			return nil
		},
	}
}

func newCompleteCommand(root *rootOptions) *cobra.Command {
	var (
		timeout time.Duration
		manual  bool
		limit   int
	)

	cmd := &cobra.Command{
		Use:   "complete FILE ROW COL",
		Short: "Run one completion request against a file and print the ranked items",
		Long: `Run one completion request against FILE with the cursor at the
zero-based ROW and byte column COL, wait for every source to reply and
print the ranked items as "score<TAB>text".`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			row, err := strconv.Atoi(args[1])
			if err != nil {
				return errors.Wrapf(err, "row %q", args[1])
			}
			col, err := strconv.Atoi(args[2])
			if err != nil {
				return errors.Wrapf(err, "col %q", args[2])
			}

			a, err := app.New(root.appOptions())
			if err != nil {
				return err
			}
			defer a.Shutdown()

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			if err := a.Start(ctx); err != nil {
				return err
			}

			doc, err := a.Documents().OpenFile(args[0])
			if err != nil {
				return err
			}
			kind := completion.KindAutomatic
			if manual {
				kind = completion.KindManual
			}
			res, err := a.Complete(ctx, doc, row, col, kind)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for i, s := range res.Items {
				if limit > 0 && i >= limit {
					break
				}
				fmt.Fprintf(out, "%d\t%s\n", s.Score, s.Item.Text())
			}
			return nil
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "give up after this long")
	cmd.Flags().BoolVar(&manual, "manual", false, "mark the request as manually triggered")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "print at most this many items (0 = all)")
	return cmd
}

func newServeCommand(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run a JSON-lines completion host on stdin and stdout",
		Long: `Read one JSON message per line from stdin and write one JSON event per
line to stdout. Logs go to stderr.

Messages:
  {"type":"open","handle":1,"path":"main.go","lines":["..."]}
  {"type":"change","handle":1,"text":"..."}
  {"type":"complete","handle":1,"row":0,"col":4,"manual":false}
  {"type":"cancel"}
  {"type":"close","handle":1}

Events: attached, requested, completions, source_failed, panic, fatal, error.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := app.New(root.appOptions())
			if err != nil {
				return err
			}
			defer a.Shutdown()

			return a.Serve(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
}
