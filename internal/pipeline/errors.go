package pipeline

import (
	"fmt"
	"strings"

	"github.com/xavierca1/ligue-crm/internal/entity"
)

type StageRef struct {
	Key   string `json:"key"`
	Label string `json:"label"`
	Color string `json:"color"`
}

// GateDialog é devolvido quando uma regra do estágio alvo bloqueia o
// movimento. A UI usa Stage (label e cor do alvo) para montar o diálogo e
// Resubmit para reenviar com os dados que faltavam.
type GateDialog struct {
	RecordID         string
	FromStage        string
	Stage            StageRef
	Reason           entity.GateReason
	MissingFields    []string
	ValidationErrors []entity.FieldError
	RequiresApproval bool
}

func (d *GateDialog) Error() string {
	switch d.Reason {
	case entity.GateMissingFields:
		return fmt.Sprintf("%s requires fields: %s", d.Stage.Label, strings.Join(d.MissingFields, ", "))
	case entity.GateValidationFailed:
		msgs := make([]string, 0, len(d.ValidationErrors))
		for _, fe := range d.ValidationErrors {
			msgs = append(msgs, fe.Field+" "+fe.Message)
		}
		return fmt.Sprintf("%s validation failed: %s", d.Stage.Label, strings.Join(msgs, "; "))
	case entity.GateRequiresApproval:
		return fmt.Sprintf("%s requires approval", d.Stage.Label)
	}
	return fmt.Sprintf("%s is gated", d.Stage.Label)
}

// TransitionError cobre qualquer recusa que não seja gate: rede, 4xx, 5xx.
type TransitionError struct {
	RecordID string
	Status   int
	Code     string
	Message  string
	Err      error
}

func (e *TransitionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("stage change for %s failed: %v", e.RecordID, e.Err)
	}
	if e.Code != "" {
		return fmt.Sprintf("stage change for %s failed: %d %s - %s", e.RecordID, e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("stage change for %s failed: %d %s", e.RecordID, e.Status, e.Message)
}

func (e *TransitionError) Unwrap() error {
	return e.Err
}
