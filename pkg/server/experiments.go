package server

import (
	"context"
	"net/http"

	"mercator-hq/cadence/pkg/experiment"
)

// CreateExperimentRequest is the body of POST /v1/experiments. Exactly one
// of Variants and Baseline is set.
type CreateExperimentRequest struct {
	Name            string                   `json:"name"`
	ConfidenceLevel float64                  `json:"confidence_level,omitempty"`
	ControlShare    float64                  `json:"control_share,omitempty"`
	Variants        []experiment.VariantSpec `json:"variants,omitempty"`
	Baseline        *experiment.Creative     `json:"baseline,omitempty"`
}

// EventRequest is the body of POST /v1/experiments/{id}/events.
type EventRequest struct {
	VariantID string               `json:"variant_id"`
	Event     experiment.EventType `json:"event"`
	Value     float64              `json:"value,omitempty"`
}

// ExperimentList is the body of GET /v1/experiments.
type ExperimentList struct {
	Experiments []*experiment.Experiment `json:"experiments"`
	Count       int                      `json:"count"`
}

func (s *Server) handleCreateExperiment(w http.ResponseWriter, r *http.Request) {
	var req CreateExperimentRequest
	if err := s.schemas.decode(r, schemaExperiment, &req); err != nil {
		s.handleError(w, r, err)
		return
	}

	specs := req.Variants
	if req.Baseline != nil {
		share := req.ControlShare
		if share == 0 {
			share = experiment.DefaultControlShare
		}
		planned, err := experiment.PlanVariants(s.deps.Scorer, req.Name, *req.Baseline, share)
		if err != nil {
			s.handleError(w, r, err)
			return
		}
		specs = planned
	}

	exp, err := s.deps.Experiments.Create(r.Context(), experiment.CreateRequest{
		Name:            req.Name,
		ConfidenceLevel: req.ConfidenceLevel,
		Variants:        specs,
	})
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, exp)
}

// handleListExperiments serves GET /v1/experiments with an optional status
// filter.
func (s *Server) handleListExperiments(w http.ResponseWriter, r *http.Request) {
	status := experiment.Status(r.URL.Query().Get("status"))
	switch status {
	case "", experiment.StatusRunning, experiment.StatusCompleted, experiment.StatusArchived:
	default:
		s.handleError(w, r, badRequest(CodeInvalidValue, "status must be running, completed or archived"))
		return
	}

	list := s.deps.Experiments.List(r.Context(), status)
	writeJSON(w, http.StatusOK, ExperimentList{Experiments: list, Count: len(list)})
}

func (s *Server) handleGetExperiment(w http.ResponseWriter, r *http.Request) {
	exp, err := s.deps.Experiments.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, exp)
}

func (s *Server) handleRecordEvent(w http.ResponseWriter, r *http.Request) {
	var req EventRequest
	if err := s.schemas.decode(r, schemaEvent, &req); err != nil {
		s.handleError(w, r, err)
		return
	}

	v, err := s.deps.Experiments.RecordEvent(r.Context(), r.PathValue("id"), req.VariantID, req.Event, req.Value)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) handleWinner(w http.ResponseWriter, r *http.Request) {
	res, err := s.deps.Experiments.Winner(r.Context(), r.PathValue("id"))
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleTransition adapts a status transition (close, archive, reset).
func (s *Server) handleTransition(op func(ctx context.Context, id string) (*experiment.Experiment, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		exp, err := op(r.Context(), r.PathValue("id"))
		if err != nil {
			s.handleError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, exp)
	}
}
