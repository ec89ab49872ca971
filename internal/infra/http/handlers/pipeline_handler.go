package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/xavierca1/ligue-crm/internal/entity"
	"github.com/xavierca1/ligue-crm/internal/infra/http/middleware"
	"github.com/xavierca1/ligue-crm/internal/usecase"
)

type stageTransitioner interface {
	Execute(ctx context.Context, profile *entity.Profile, input usecase.TransitionStageInput) (*usecase.TransitionStageOutput, error)
}

type stageLister interface {
	Execute(ctx context.Context, profile *entity.Profile, recordType entity.RecordType) (entity.StageCatalog, error)
}

type gateConfigurer interface {
	Execute(ctx context.Context, profile *entity.Profile, recordType entity.RecordType, stageKey string, raw []byte) (*entity.StageGate, error)
}

type PipelineHandler struct {
	Transition stageTransitioner
	Stages     stageLister
	Gates      gateConfigurer
}

func NewPipelineHandler(transition stageTransitioner, stages stageLister, gates gateConfigurer) *PipelineHandler {
	return &PipelineHandler{Transition: transition, Stages: stages, Gates: gates}
}

type stageRef struct {
	Key   string `json:"key"`
	Label string `json:"label"`
	Color string `json:"color"`
}

// transitionResponse é a união etiquetada que o cliente consome: kind ok traz
// o record, kind gated traz motivo e o estágio alvo para o diálogo.
type transitionResponse struct {
	Kind             entity.VerdictKind  `json:"kind"`
	Reason           entity.GateReason   `json:"reason,omitempty"`
	Stage            stageRef            `json:"stage"`
	MissingFields    []string            `json:"missingFields,omitempty"`
	ValidationErrors []entity.FieldError `json:"validationErrors,omitempty"`
	RequiresApproval bool                `json:"requiresApproval,omitempty"`
	Record           *entity.Record      `json:"record,omitempty"`
}

// HandleTransition (POST /api/records/{id}/stage)
func (h *PipelineHandler) HandleTransition(w http.ResponseWriter, r *http.Request) {
	profile, ok := requireProfile(w, r)
	if !ok {
		return
	}

	var input usecase.TransitionStageInput
	if !decodeJSON(w, r, &input) {
		return
	}
	input.RecordID = chi.URLParam(r, "id")

	out, err := h.Transition.Execute(r.Context(), profile, input)
	if err != nil {
		outcome := "error"
		if errors.Is(err, usecase.ErrStageConflict) {
			outcome = "conflict"
		}
		middleware.RecordStageTransition("unknown", outcome)
		handleError(w, r, "PipelineHandler.HandleTransition", err)
		return
	}

	resp := transitionResponse{
		Kind:  out.Verdict.Kind,
		Stage: stageRef{Key: out.Stage.Key, Label: out.Stage.Label, Color: out.Stage.Color},
	}
	recordType := string(out.Record.RecordType)
	if out.Verdict.IsGated() {
		resp.Reason = out.Verdict.Reason
		resp.MissingFields = out.Verdict.MissingFields
		resp.ValidationErrors = out.Verdict.ValidationErrors
		resp.RequiresApproval = out.Verdict.RequiresApproval
		middleware.RecordStageTransition(recordType, "gated")
		writeJSON(w, http.StatusUnprocessableEntity, resp)
		return
	}

	resp.Record = out.Record
	middleware.RecordStageTransition(recordType, "ok")
	writeJSON(w, http.StatusOK, resp)
}

// HandleListStages (GET /api/pipelines/{recordType}/stages)
func (h *PipelineHandler) HandleListStages(w http.ResponseWriter, r *http.Request) {
	profile, ok := requireProfile(w, r)
	if !ok {
		return
	}

	catalog, err := h.Stages.Execute(r.Context(), profile, entity.RecordType(chi.URLParam(r, "recordType")))
	if err != nil {
		handleError(w, r, "PipelineHandler.HandleListStages", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"stages": catalog})
}

// HandleConfigureGate (PUT /api/pipelines/{recordType}/stages/{stageKey}/gate)
func (h *PipelineHandler) HandleConfigureGate(w http.ResponseWriter, r *http.Request) {
	profile, ok := requireProfile(w, r)
	if !ok {
		return
	}

	raw, err := io.ReadAll(io.LimitReader(r.Body, maxJSONBody))
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "INVALID_BODY", "Could not read body")
		return
	}

	gate, err := h.Gates.Execute(r.Context(), profile,
		entity.RecordType(chi.URLParam(r, "recordType")), chi.URLParam(r, "stageKey"), raw)
	if err != nil {
		handleError(w, r, "PipelineHandler.HandleConfigureGate", err)
		return
	}
	writeJSON(w, http.StatusOK, gate)
}
