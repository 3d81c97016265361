package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"mercator-hq/cadence/pkg/cli"
	"mercator-hq/cadence/pkg/decision"
	"mercator-hq/cadence/pkg/experiment"
)

var triggerFlags struct {
	all               bool
	campaign          string
	expectedVolume    int
	daysSinceLastTest int
	subject           string
	body              string
	cta               string
}

var triggerCmd = &cobra.Command{
	Use:   "trigger [customer-id] <trigger>",
	Short: "Run the pipeline for one customer or all customers",
	Long: `Run the decision, guardrail, dispatch and ledger pipeline for a trigger.

With --all the trigger is processed for every known customer. Per-customer
failures are reported in the output and do not stop the batch.`,
	Example: `  cadence trigger cust_003 cart_abandoned
  cadence trigger --all weekly_digest -o json
  cadence trigger cust_001 creative_test --campaign spring --expected-volume 5000 \
      --subject "Spring is here" --cta "Shop now"`,
	Args: func(cmd *cobra.Command, args []string) error {
		if triggerFlags.all {
			return cobra.ExactArgs(1)(cmd, args)
		}
		return cobra.ExactArgs(2)(cmd, args)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
			if triggerFlags.all {
				return runTriggerAll(ctx, cmd, a, args[0])
			}
			res, err := a.pipeline.ProcessTrigger(ctx, args[0], triggerContext(args[1]))
			if err != nil {
				return err
			}
			return printResult(cmd, triggerTable{{CustomerID: args[0], Result: res}})
		})
	},
}

func init() {
	f := triggerCmd.Flags()
	f.BoolVar(&triggerFlags.all, "all", false, "process the trigger for every customer")
	f.StringVar(&triggerFlags.campaign, "campaign", "", "campaign id")
	f.IntVar(&triggerFlags.expectedVolume, "expected-volume", 0, "expected audience size, used for creative tests")
	f.IntVar(&triggerFlags.daysSinceLastTest, "days-since-last-test", 0, "days since the campaign's last creative test")
	f.StringVar(&triggerFlags.subject, "subject", "", "baseline creative subject")
	f.StringVar(&triggerFlags.body, "body", "", "baseline creative body")
	f.StringVar(&triggerFlags.cta, "cta", "", "baseline creative call to action")
	rootCmd.AddCommand(triggerCmd)
}

func triggerContext(trigger string) decision.Context {
	tc := decision.Context{
		Trigger:           trigger,
		CampaignID:        triggerFlags.campaign,
		ExpectedVolume:    triggerFlags.expectedVolume,
		DaysSinceLastTest: triggerFlags.daysSinceLastTest,
	}
	if triggerFlags.subject != "" || triggerFlags.body != "" || triggerFlags.cta != "" {
		tc.Creative = &experiment.Creative{
			Subject: triggerFlags.subject,
			Body:    triggerFlags.body,
			CTA:     triggerFlags.cta,
		}
	}
	return tc
}

func runTriggerAll(ctx context.Context, cmd *cobra.Command, a *app, trigger string) error {
	ids := a.customers.IDs()
	progress := cli.NewBatchProgress(cmd.ErrOrStderr(), len(ids))

	rows := make(triggerTable, 0, len(ids))
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			progress.Fail(err)
			return err
		}
		row := triggerRow{CustomerID: id}
		res, err := a.pipeline.ProcessTrigger(ctx, id, triggerContext(trigger))
		if err != nil {
			slog.Warn("trigger failed", "customer_id", id, "error", err)
			row.Error = err.Error()
			progress.Step("error")
		} else {
			row.Result = res
			progress.Step(string(res.Status))
		}
		rows = append(rows, row)
	}
	progress.Done()

	if err := printResult(cmd, rows); err != nil {
		return err
	}
	if failed := progress.Tally()["error"]; failed > 0 {
		return cli.WithExitCode(cli.ExitFailure, fmt.Errorf("%d of %d customers failed", failed, len(ids)))
	}
	return nil
}
