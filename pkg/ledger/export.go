package ledger

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"
)

// JSONExporter writes entries as a JSON array.
type JSONExporter struct {
	// Pretty enables indentation.
	Pretty bool
}

// NewJSONExporter creates a JSON exporter.
func NewJSONExporter(pretty bool) *JSONExporter {
	return &JSONExporter{Pretty: pretty}
}

// Export implements Exporter. An empty input yields "[]".
func (e *JSONExporter) Export(ctx context.Context, entries []*Entry, w io.Writer) error {
	if entries == nil {
		entries = []*Entry{}
	}

	var (
		data []byte
		err  error
	)
	if e.Pretty {
		data, err = json.MarshalIndent(entries, "", "  ")
	} else {
		data, err = json.Marshal(entries)
	}
	if err != nil {
		return &ExportError{Format: "json", EntryCount: len(entries), Cause: err}
	}
	if _, err := w.Write(data); err != nil {
		return &ExportError{Format: "json", EntryCount: len(entries), Cause: err}
	}
	return nil
}

// CSVExporter writes one flattened row per entry.
type CSVExporter struct {
	// IncludeHeader includes a header row with column names.
	IncludeHeader bool
}

// NewCSVExporter creates a CSV exporter.
func NewCSVExporter(includeHeader bool) *CSVExporter {
	return &CSVExporter{IncludeHeader: includeHeader}
}

var csvHeader = []string{
	"seq", "id", "kind", "timestamp", "customer_id", "decision_id",
	"policy", "action", "confidence", "requires_human_review",
	"guardrails_passed", "failed_checks", "human_review",
	"original_action", "override_action", "reason",
	"prev_hash", "hash",
}

// Export implements Exporter.
func (e *CSVExporter) Export(ctx context.Context, entries []*Entry, w io.Writer) error {
	writer := csv.NewWriter(w)

	if e.IncludeHeader {
		if err := writer.Write(csvHeader); err != nil {
			return &ExportError{Format: "csv", EntryCount: len(entries), Cause: err}
		}
	}
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := writer.Write(entryToRow(entry)); err != nil {
			return &ExportError{Format: "csv", EntryCount: len(entries), Cause: err}
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return &ExportError{Format: "csv", EntryCount: len(entries), Cause: err}
	}
	return nil
}

func entryToRow(e *Entry) []string {
	var policy, action, confidence, review string
	if d := e.Decision; d != nil {
		policy = d.Policy
		action = d.Action
		confidence = strconv.FormatFloat(d.Confidence, 'f', 2, 64)
		review = strconv.FormatBool(d.RequiresHumanReview)
	}

	var failed []string
	for name, ok := range e.Guardrails {
		if !ok {
			failed = append(failed, name)
		}
	}
	sort.Strings(failed)

	var passed string
	if e.Kind == KindDecision {
		passed = strconv.FormatBool(e.GuardrailsPassed())
	}

	var orig, override, reason string
	if o := e.Override; o != nil {
		orig, override, reason = o.OriginalAction, o.OverrideAction, o.Reason
	}

	return []string{
		strconv.FormatInt(e.Seq, 10),
		e.ID,
		string(e.Kind),
		e.Timestamp.UTC().Format(time.RFC3339),
		e.CustomerID,
		e.DecisionID,
		policy,
		action,
		confidence,
		review,
		passed,
		strings.Join(failed, ";"),
		strconv.FormatBool(e.HumanReview),
		orig,
		override,
		reason,
		e.PrevHash,
		e.Hash,
	}
}

// NewExporter returns the exporter for format ("json" or "csv").
func NewExporter(format string, pretty bool) (Exporter, bool) {
	switch strings.ToLower(format) {
	case "json":
		return NewJSONExporter(pretty), true
	case "csv":
		return NewCSVExporter(true), true
	}
	return nil, false
}
