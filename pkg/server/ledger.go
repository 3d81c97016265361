package server

import (
	"fmt"
	"net/http"
	"strconv"

	"mercator-hq/cadence/pkg/ledger"
)

// Ledger query limits.
const (
	defaultLedgerLimit = 100
	maxLedgerLimit     = 1000
)

// OverrideRequest is the body of POST /v1/ledger/overrides.
type OverrideRequest struct {
	DecisionID     string `json:"decision_id"`
	OriginalAction string `json:"original_action,omitempty"`
	OverrideAction string `json:"override_action"`
	Reason         string `json:"reason"`
}

// LedgerResponse is the JSON body of GET /v1/ledger.
type LedgerResponse struct {
	Entries []*ledger.Entry `json:"entries"`
	Count   int             `json:"count"`
}

// handleLedgerQuery serves GET /v1/ledger. Query parameters: customer_id,
// decision_id, kind, limit, order (asc|desc) and format (json|csv).
func (s *Server) handleLedgerQuery(w http.ResponseWriter, r *http.Request) {
	q, format, err := parseLedgerQuery(r)
	if err != nil {
		s.handleError(w, r, err)
		return
	}

	entries, err := s.deps.Ledger.Entries(r.Context(), q)
	if err != nil {
		s.handleError(w, r, err)
		return
	}

	if format == "csv" {
		exp, _ := ledger.NewExporter("csv", false)
		w.Header().Set("Content-Type", "text/csv")
		if err := exp.Export(r.Context(), entries, w); err != nil {
			s.logger.ErrorContext(r.Context(), "ledger export failed", "error", err)
		}
		return
	}
	if entries == nil {
		entries = []*ledger.Entry{}
	}
	writeJSON(w, http.StatusOK, LedgerResponse{Entries: entries, Count: len(entries)})
}

func parseLedgerQuery(r *http.Request) (*ledger.Query, string, error) {
	v := r.URL.Query()
	q := &ledger.Query{
		CustomerID: v.Get("customer_id"),
		DecisionID: v.Get("decision_id"),
		Limit:      defaultLedgerLimit,
	}

	switch kind := ledger.Kind(v.Get("kind")); kind {
	case "", ledger.KindDecision, ledger.KindOverride:
		q.Kind = kind
	default:
		return nil, "", badRequest(CodeInvalidValue, fmt.Sprintf("kind must be %q or %q", ledger.KindDecision, ledger.KindOverride))
	}

	if raw := v.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxLedgerLimit {
			return nil, "", badRequest(CodeInvalidValue, fmt.Sprintf("limit must be between 1 and %d", maxLedgerLimit))
		}
		q.Limit = n
	}

	switch v.Get("order") {
	case "", "desc":
	case "asc":
		q.Ascending = true
	default:
		return nil, "", badRequest(CodeInvalidValue, "order must be asc or desc")
	}

	format := v.Get("format")
	switch format {
	case "":
		format = "json"
	case "json", "csv":
	default:
		return nil, "", badRequest(CodeInvalidValue, "format must be json or csv")
	}
	return q, format, nil
}

func (s *Server) handleOverride(w http.ResponseWriter, r *http.Request) {
	var req OverrideRequest
	if err := s.schemas.decode(r, schemaOverride, &req); err != nil {
		s.handleError(w, r, err)
		return
	}

	entry, err := s.deps.Ledger.AppendOverride(r.Context(), req.DecisionID, req.OriginalAction, req.OverrideAction, req.Reason)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	if op, ok := Operator(r.Context()); ok {
		s.logger.InfoContext(r.Context(), "override recorded by operator",
			"operator", op,
			"decision_id", req.DecisionID,
			"seq", entry.Seq,
		)
	}
	writeJSON(w, http.StatusCreated, entry)
}
