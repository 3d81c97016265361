package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"mercator-hq/cadence/pkg/cli"
	"mercator-hq/cadence/pkg/ledger"
)

var ledgerCmd = &cobra.Command{
	Use:   "ledger",
	Short: "Inspect and maintain the audit ledger",
}

var historyFlags struct {
	customer  string
	decision  string
	kind      string
	limit     int
	ascending bool
}

var ledgerHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "List ledger entries, newest first",
	Example: `  cadence ledger history --customer cust_003 --limit 10
  cadence ledger history --kind override -o json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		q, err := historyQuery()
		if err != nil {
			return err
		}
		return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
			entries, err := a.ledger.Entries(ctx, q)
			if err != nil {
				return err
			}
			return printResult(cmd, entryTable(entries))
		})
	},
}

var exportFlags struct {
	format string
	file   string
	pretty bool
}

var ledgerExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the whole ledger, oldest first",
	Example: `  cadence ledger export --format csv --file audit.csv
  cadence ledger export --format json --pretty`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		exporter, ok := ledger.NewExporter(exportFlags.format, exportFlags.pretty)
		if !ok {
			return cli.WithExitCode(cli.ExitUsage, fmt.Errorf("unsupported export format: %s", exportFlags.format))
		}
		return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
			entries, err := a.ledger.Entries(ctx, &ledger.Query{Ascending: true})
			if err != nil {
				return err
			}

			var w io.Writer = cmd.OutOrStdout()
			if exportFlags.file != "" {
				f, err := os.Create(exportFlags.file)
				if err != nil {
					return fmt.Errorf("create export file: %w", err)
				}
				defer f.Close()
				w = f
			}
			if err := exporter.Export(ctx, entries, w); err != nil {
				return err
			}
			if exportFlags.file != "" {
				fmt.Fprintf(cmd.ErrOrStderr(), "exported %d entries to %s\n", len(entries), exportFlags.file)
			}
			return nil
		})
	},
}

var ledgerVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check the ledger hash chain",
	Long: `Recompute every entry hash and check the chain links, oldest first.

Exits with status 4 at the first broken link.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
			n, err := a.ledger.Verify(ctx)
			if err != nil {
				return fmt.Errorf("verified %d entries: %w", n, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "ledger intact: %d entries verified\n", n)
			return nil
		})
	},
}

var overrideFlags struct {
	action   string
	reason   string
	original string
}

var ledgerOverrideCmd = &cobra.Command{
	Use:   "override <decision-id>",
	Short: "Record a human override of a decision",
	Example: `  cadence ledger override 3f1c... --action skip --reason "customer complained"`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
			entry, err := a.ledger.AppendOverride(ctx, args[0], overrideFlags.original, overrideFlags.action, overrideFlags.reason)
			if err != nil {
				return err
			}
			return printResult(cmd, entryTable{entry})
		})
	},
}

func init() {
	f := ledgerHistoryCmd.Flags()
	f.StringVar(&historyFlags.customer, "customer", "", "only entries for this customer")
	f.StringVar(&historyFlags.decision, "decision", "", "only entries for this decision id")
	f.StringVar(&historyFlags.kind, "kind", "", "entry kind (decision, override)")
	f.IntVar(&historyFlags.limit, "limit", 50, "maximum entries (0 for all)")
	f.BoolVar(&historyFlags.ascending, "asc", false, "oldest first")

	f = ledgerExportCmd.Flags()
	f.StringVar(&exportFlags.format, "format", "json", "export format (json, csv)")
	f.StringVar(&exportFlags.file, "file", "", "write to file instead of stdout")
	f.BoolVar(&exportFlags.pretty, "pretty", false, "indent JSON output")

	f = ledgerOverrideCmd.Flags()
	f.StringVar(&overrideFlags.action, "action", "", "replacement action (required)")
	f.StringVar(&overrideFlags.reason, "reason", "", "why the decision was overridden (required)")
	f.StringVar(&overrideFlags.original, "original", "", "original action (defaults to the recorded one)")
	_ = ledgerOverrideCmd.MarkFlagRequired("action")
	_ = ledgerOverrideCmd.MarkFlagRequired("reason")

	ledgerCmd.AddCommand(ledgerHistoryCmd, ledgerExportCmd, ledgerVerifyCmd, ledgerOverrideCmd)
	rootCmd.AddCommand(ledgerCmd)
}

func historyQuery() (*ledger.Query, error) {
	if historyFlags.limit < 0 {
		return nil, cli.WithExitCode(cli.ExitUsage, fmt.Errorf("limit must be non-negative"))
	}
	q := &ledger.Query{
		CustomerID: historyFlags.customer,
		DecisionID: historyFlags.decision,
		Limit:      historyFlags.limit,
		Ascending:  historyFlags.ascending,
	}
	switch k := ledger.Kind(historyFlags.kind); k {
	case "":
	case ledger.KindDecision, ledger.KindOverride:
		q.Kind = k
	default:
		return nil, cli.WithExitCode(cli.ExitUsage, fmt.Errorf("unknown entry kind: %s", historyFlags.kind))
	}
	return q, nil
}
