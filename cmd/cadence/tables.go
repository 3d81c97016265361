package main

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"mercator-hq/cadence/pkg/experiment"
	"mercator-hq/cadence/pkg/ledger"
	"mercator-hq/cadence/pkg/pipeline"
)

// Table adapters for text and CSV output. JSON output encodes the
// underlying values directly.

type triggerRow struct {
	CustomerID string           `json:"customer_id"`
	Result     *pipeline.Result `json:"result,omitempty"`
	Error      string           `json:"error,omitempty"`
}

type triggerTable []triggerRow

func (t triggerTable) Header() []string {
	return []string{"CUSTOMER", "STATUS", "POLICY", "ACTION", "CHANNELS", "GUARDRAILS", "EXPERIMENT", "SEQ"}
}

func (t triggerTable) Rows() [][]string {
	rows := make([][]string, 0, len(t))
	for _, r := range t {
		if r.Result == nil {
			rows = append(rows, []string{r.CustomerID, "error", "", "", "", r.Error, "", ""})
			continue
		}
		res := r.Result
		exp := ""
		if res.ExperimentID != "" {
			exp = res.ExperimentID + "/" + res.VariantID
		}
		rows = append(rows, []string{
			r.CustomerID,
			string(res.Status),
			res.Decision.Policy,
			res.Decision.Action,
			strings.Join(res.Decision.Channels, ","),
			guardrailSummary(res),
			exp,
			strconv.FormatInt(res.LedgerSeq, 10),
		})
	}
	return rows
}

// guardrailSummary lists failed checks, or "passed".
func guardrailSummary(res *pipeline.Result) string {
	if res.Guardrails == nil {
		return "-"
	}
	var failed []string
	for name, c := range res.Guardrails.Checks {
		if !c.Passed {
			failed = append(failed, name)
		}
	}
	if len(failed) == 0 {
		return "passed"
	}
	sort.Strings(failed)
	return "failed:" + strings.Join(failed, ",")
}

type entryTable []*ledger.Entry

func (t entryTable) Header() []string {
	return []string{"SEQ", "TIME", "KIND", "CUSTOMER", "DECISION", "ACTION", "GUARDRAILS", "REVIEW"}
}

func (t entryTable) Rows() [][]string {
	rows := make([][]string, 0, len(t))
	for _, e := range t {
		action, guard := "", ""
		switch e.Kind {
		case ledger.KindDecision:
			if e.Decision != nil {
				action = e.Decision.Action
			}
			guard = "failed"
			if e.GuardrailsPassed() {
				guard = "passed"
			}
		case ledger.KindOverride:
			if e.Override != nil {
				action = e.Override.OriginalAction + " -> " + e.Override.OverrideAction
			}
		}
		rows = append(rows, []string{
			strconv.FormatInt(e.Seq, 10),
			e.Timestamp.UTC().Format(time.RFC3339),
			string(e.Kind),
			e.CustomerID,
			e.DecisionID,
			action,
			guard,
			strconv.FormatBool(e.HumanReview),
		})
	}
	return rows
}

type experimentTable []*experiment.Experiment

func (t experimentTable) Header() []string {
	return []string{"ID", "NAME", "STATUS", "VARIANTS", "CONFIDENCE", "WINNER", "CREATED"}
}

func (t experimentTable) Rows() [][]string {
	rows := make([][]string, 0, len(t))
	for _, e := range t {
		rows = append(rows, []string{
			e.ID,
			e.Name,
			string(e.Status),
			strconv.Itoa(len(e.Variants)),
			formatFloat(e.ConfidenceLevel),
			e.WinnerID,
			e.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	return rows
}

// variantTable shows one experiment's variants.
type variantTable []experiment.Variant

func (t variantTable) Header() []string {
	return []string{"VARIANT", "NAME", "SHARE", "IMPRESSIONS", "CONVERSIONS", "RATE", "REVENUE"}
}

func (t variantTable) Rows() [][]string {
	rows := make([][]string, 0, len(t))
	for _, v := range t {
		rows = append(rows, []string{
			v.ID,
			v.Name,
			formatFloat(v.TrafficShare),
			strconv.FormatInt(v.Impressions, 10),
			strconv.FormatInt(v.Conversions, 10),
			formatFloat(v.ConversionRate()),
			formatFloat(v.Revenue),
		})
	}
	return rows
}

type comparisonTable []experiment.Comparison

func (t comparisonTable) Header() []string {
	return []string{"VARIANT", "RATE", "CONTROL", "LIFT", "CHI2", "P", "SIGNIFICANT", "WINS"}
}

func (t comparisonTable) Rows() [][]string {
	rows := make([][]string, 0, len(t))
	for _, c := range t {
		if !c.Defined {
			rows = append(rows, []string{c.VariantID, "-", "-", "-", "-", "-", "false", "false"})
			continue
		}
		rows = append(rows, []string{
			c.VariantID,
			formatFloat(c.ConversionRate),
			formatFloat(c.ControlRate),
			formatFloat(c.Lift),
			formatFloat(c.ChiSquare),
			formatFloat(c.PValue),
			strconv.FormatBool(c.Significant),
			strconv.FormatBool(c.Wins()),
		})
	}
	return rows
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', 4, 64)
}
