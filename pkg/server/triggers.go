package server

import (
	"net/http"

	"mercator-hq/cadence/pkg/decision"
	"mercator-hq/cadence/pkg/experiment"
)

// TriggerRequest is the body of POST /v1/triggers.
type TriggerRequest struct {
	CustomerID        string               `json:"customer_id"`
	Trigger           string               `json:"trigger"`
	CampaignID        string               `json:"campaign_id,omitempty"`
	ExpectedVolume    int                  `json:"expected_volume,omitempty"`
	DaysSinceLastTest int                  `json:"days_since_last_test,omitempty"`
	Creative          *experiment.Creative `json:"creative,omitempty"`
}

func (s *Server) handleTrigger(w http.ResponseWriter, r *http.Request) {
	var req TriggerRequest
	if err := s.schemas.decode(r, schemaTrigger, &req); err != nil {
		s.handleError(w, r, err)
		return
	}

	res, err := s.deps.Pipeline.ProcessTrigger(r.Context(), req.CustomerID, decision.Context{
		Trigger:           req.Trigger,
		CampaignID:        req.CampaignID,
		ExpectedVolume:    req.ExpectedVolume,
		DaysSinceLastTest: req.DaysSinceLastTest,
		Creative:          req.Creative,
	})
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
