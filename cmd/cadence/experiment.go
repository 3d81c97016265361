package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"mercator-hq/cadence/pkg/cli"
	"mercator-hq/cadence/pkg/experiment"
)

var experimentCmd = &cobra.Command{
	Use:     "experiment",
	Aliases: []string{"exp"},
	Short:   "Manage A/B experiments",
}

var createFlags struct {
	name         string
	variants     []string
	subject      string
	body         string
	cta          string
	controlShare float64
	confidence   float64
}

var experimentCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create an experiment",
	Long: `Create an experiment from explicit variants or from a baseline creative.

Explicit variants are given as id=share; the first is the control. With
--baseline-subject, --baseline-body or --baseline-cta the variants are
generated from the baseline and ranked by the creative scorer.`,
	Example: `  cadence experiment create --name subject-test --variant control=0.5 --variant urgency=0.5
  cadence experiment create --name spring --baseline-subject "Spring sale" --control-share 0.3`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if createFlags.name == "" {
			return cli.WithExitCode(cli.ExitUsage, fmt.Errorf("--name is required"))
		}
		return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
			specs, err := createSpecs(a.scorer)
			if err != nil {
				return cli.WithExitCode(cli.ExitUsage, err)
			}
			exp, err := a.experiments.Create(ctx, experiment.CreateRequest{
				Name:            createFlags.name,
				ConfidenceLevel: createFlags.confidence,
				Variants:        specs,
			})
			if err != nil {
				return err
			}
			return printExperiment(cmd, exp)
		})
	},
}

var listStatus string

var experimentListCmd = &cobra.Command{
	Use:   "list",
	Short: "List experiments",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		status, err := parseStatus(listStatus)
		if err != nil {
			return err
		}
		return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
			return printResult(cmd, experimentTable(a.experiments.List(ctx, status)))
		})
	},
}

var experimentShowCmd = &cobra.Command{
	Use:   "show <experiment-id>",
	Short: "Show an experiment and its variants",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
			exp, err := a.experiments.Get(ctx, args[0])
			if err != nil {
				return err
			}
			return printExperiment(cmd, exp)
		})
	},
}

var recordCount int

var experimentRecordCmd = &cobra.Command{
	Use:   "record <experiment-id> <variant-id> <impression|conversion|revenue> [value]",
	Short: "Record an event against a variant",
	Example: `  cadence experiment record exp_1 urgency impression --count 100
  cadence experiment record exp_1 urgency revenue 19.99`,
	Args: cobra.RangeArgs(3, 4),
	RunE: func(cmd *cobra.Command, args []string) error {
		event, value, err := parseEvent(args[2:])
		if err != nil {
			return err
		}
		if recordCount < 1 {
			return cli.WithExitCode(cli.ExitUsage, fmt.Errorf("--count must be at least 1"))
		}
		return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
			var v experiment.Variant
			for range recordCount {
				if v, err = a.experiments.RecordEvent(ctx, args[0], args[1], event, value); err != nil {
					return err
				}
			}
			return printResult(cmd, variantTable{v})
		})
	},
}

var experimentWinnerCmd = &cobra.Command{
	Use:   "winner <experiment-id>",
	Short: "Evaluate an experiment and declare a winner when one is significant",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
			res, err := a.experiments.Winner(ctx, args[0])
			if err != nil {
				return err
			}
			if output != "text" {
				return printResult(cmd, res)
			}
			winner := res.WinnerID
			if winner == "" {
				winner = "none"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "experiment %s: %s, winner %s\n\n", res.ExperimentID, res.Status, winner)
			return printResult(cmd, comparisonTable(res.Comparisons))
		})
	},
}

// transitionCmd builds a lifecycle command from an engine method.
func transitionCmd(use, short string, op func(*experiment.Engine, context.Context, string) (*experiment.Experiment, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <experiment-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
				exp, err := op(a.experiments, ctx, args[0])
				if err != nil {
					return err
				}
				return printResult(cmd, experimentTable{exp})
			})
		},
	}
}

var sigFlags struct {
	control    string
	variant    string
	confidence float64
}

var experimentSignificanceCmd = &cobra.Command{
	Use:   "significance",
	Short: "Test two conversion counts for significance without storing anything",
	Example: `  cadence experiment significance --control 1000:50 --variant 1000:90`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		control, err := parseCounts("control", sigFlags.control)
		if err != nil {
			return err
		}
		variant, err := parseCounts("variant", sigFlags.variant)
		if err != nil {
			return err
		}
		if sigFlags.confidence <= 0 || sigFlags.confidence >= 1 {
			return cli.WithExitCode(cli.ExitUsage, fmt.Errorf("confidence must be in (0, 1)"))
		}
		c := experiment.Compare(control, variant, sigFlags.confidence)
		return printResult(cmd, comparisonTable{c})
	},
}

func init() {
	f := experimentCreateCmd.Flags()
	f.StringVar(&createFlags.name, "name", "", "experiment name (required)")
	f.StringArrayVar(&createFlags.variants, "variant", nil, "variant as id=share, repeatable; the first is the control")
	f.StringVar(&createFlags.subject, "baseline-subject", "", "baseline creative subject")
	f.StringVar(&createFlags.body, "baseline-body", "", "baseline creative body")
	f.StringVar(&createFlags.cta, "baseline-cta", "", "baseline creative call to action")
	f.Float64Var(&createFlags.controlShare, "control-share", experiment.DefaultControlShare, "control traffic share for generated variants")
	f.Float64Var(&createFlags.confidence, "confidence", experiment.DefaultConfidenceLevel, "confidence level")

	experimentListCmd.Flags().StringVar(&listStatus, "status", "", "filter by status (running, completed, archived)")
	experimentRecordCmd.Flags().IntVar(&recordCount, "count", 1, "record the event this many times")

	f = experimentSignificanceCmd.Flags()
	f.StringVar(&sigFlags.control, "control", "", "control impressions:conversions (required)")
	f.StringVar(&sigFlags.variant, "variant", "", "variant impressions:conversions (required)")
	f.Float64Var(&sigFlags.confidence, "confidence", experiment.DefaultConfidenceLevel, "confidence level")
	_ = experimentSignificanceCmd.MarkFlagRequired("control")
	_ = experimentSignificanceCmd.MarkFlagRequired("variant")

	experimentCmd.AddCommand(
		experimentCreateCmd,
		experimentListCmd,
		experimentShowCmd,
		experimentRecordCmd,
		experimentWinnerCmd,
		transitionCmd("close", "Complete a running experiment without a winner", (*experiment.Engine).Close),
		transitionCmd("archive", "Archive a completed experiment", (*experiment.Engine).Archive),
		transitionCmd("reset", "Zero an experiment's counters and set it running", (*experiment.Engine).Reset),
		experimentSignificanceCmd,
	)
	rootCmd.AddCommand(experimentCmd)
}

// createSpecs builds variant specs from --variant or the baseline flags.
func createSpecs(scorer *experiment.Scorer) ([]experiment.VariantSpec, error) {
	baseline := createFlags.subject != "" || createFlags.body != "" || createFlags.cta != ""
	switch {
	case baseline && len(createFlags.variants) > 0:
		return nil, fmt.Errorf("--variant and baseline flags are mutually exclusive")
	case baseline:
		base := experiment.Creative{Subject: createFlags.subject, Body: createFlags.body, CTA: createFlags.cta}
		return experiment.PlanVariants(scorer, createFlags.name, base, createFlags.controlShare)
	}
	return parseVariantSpecs(createFlags.variants)
}

func parseVariantSpecs(values []string) ([]experiment.VariantSpec, error) {
	if len(values) < 2 {
		return nil, fmt.Errorf("at least two --variant values are required")
	}
	specs := make([]experiment.VariantSpec, 0, len(values))
	for _, v := range values {
		id, share, ok := strings.Cut(v, "=")
		if !ok || id == "" {
			return nil, fmt.Errorf("invalid variant %q, want id=share", v)
		}
		f, err := strconv.ParseFloat(share, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid share in %q: %w", v, err)
		}
		specs = append(specs, experiment.VariantSpec{ID: id, Name: id, TrafficShare: f})
	}
	return specs, nil
}

func parseStatus(s string) (experiment.Status, error) {
	switch st := experiment.Status(s); st {
	case "", experiment.StatusRunning, experiment.StatusCompleted, experiment.StatusArchived:
		return st, nil
	}
	return "", cli.WithExitCode(cli.ExitUsage, fmt.Errorf("unknown status: %s", s))
}

func parseEvent(args []string) (experiment.EventType, float64, error) {
	event := experiment.EventType(args[0])
	switch event {
	case experiment.EventImpression, experiment.EventConversion:
		if len(args) > 1 {
			return "", 0, cli.WithExitCode(cli.ExitUsage, fmt.Errorf("%s events take no value", event))
		}
		return event, 0, nil
	case experiment.EventRevenue:
		if len(args) < 2 {
			return "", 0, cli.WithExitCode(cli.ExitUsage, fmt.Errorf("revenue events need a value"))
		}
		value, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			return "", 0, cli.WithExitCode(cli.ExitUsage, fmt.Errorf("invalid revenue value: %w", err))
		}
		return event, value, nil
	}
	return "", 0, cli.WithExitCode(cli.ExitUsage, fmt.Errorf("unknown event: %s", args[0]))
}

// parseCounts reads "impressions:conversions".
func parseCounts(id, s string) (experiment.Variant, error) {
	imp, conv, ok := strings.Cut(s, ":")
	if !ok {
		return experiment.Variant{}, cli.WithExitCode(cli.ExitUsage, fmt.Errorf("invalid %s counts %q, want impressions:conversions", id, s))
	}
	n, err1 := strconv.ParseInt(imp, 10, 64)
	c, err2 := strconv.ParseInt(conv, 10, 64)
	if err1 != nil || err2 != nil || n < 0 || c < 0 || c > n {
		return experiment.Variant{}, cli.WithExitCode(cli.ExitUsage, fmt.Errorf("invalid %s counts %q", id, s))
	}
	return experiment.Variant{ID: id, Impressions: n, Conversions: c}, nil
}

// printExperiment prints the experiment summary followed by its variants.
func printExperiment(cmd *cobra.Command, exp *experiment.Experiment) error {
	if output != "text" {
		return printResult(cmd, exp)
	}
	if err := printResult(cmd, experimentTable{exp}); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout())
	return printResult(cmd, variantTable(exp.Variants))
}
