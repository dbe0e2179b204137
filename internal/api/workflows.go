package api

import (
	"context"
	"net/http"

	"github.com/TheVoodooSoul/aktionfilmai-sub002/internal/auth"
	"github.com/TheVoodooSoul/aktionfilmai-sub002/internal/credits"
	"github.com/TheVoodooSoul/aktionfilmai-sub002/internal/models"
	"github.com/TheVoodooSoul/aktionfilmai-sub002/internal/provider"

	"github.com/go-chi/chi/v5"
)

type runWorkflowRequest struct {
	UserId string         `json:"userId" validate:"required"`
	Inputs map[string]any `json:"inputs"`
}

func (s *Server) handleRunWorkflow(w http.ResponseWriter, r *http.Request) {
	var req runWorkflowRequest
	if err := s.decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := auth.Authorize(models.GetIdentity(r.Context()), req.UserId); err != nil {
		writeError(w, r, err)
		return
	}
	if !s.Workflow.Configured() {
		writeError(w, r, provider.NotConfigured(s.Workflow.Name()))
		return
	}

	workflowId := chi.URLParam(r, "workflowID")
	cost := s.Catalog.Costs.Workflow
	var run *models.WorkflowRun
	_, err := s.Credits.Run(r.Context(), credits.Charge{
		UserId:      req.UserId,
		Amount:      cost,
		Reason:      "workflow",
		Description: "Workflow run " + workflowId,
	}, func(ctx context.Context) error {
		var err error
		run, err = s.Workflow.Run(ctx, workflowId, req.Inputs)
		return err
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	run.CreditsCharged = cost
	writeJSON(w, http.StatusOK, run)
}

func (s *Server) handleGetWorkflowRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.Workflow.Status(r.Context(), chi.URLParam(r, "runID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (s *Server) handleCancelWorkflowRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.Workflow.Cancel(r.Context(), chi.URLParam(r, "runID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}
