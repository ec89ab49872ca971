package pipeline

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/xavierca1/ligue-crm/internal/entity"
	"github.com/xavierca1/ligue-crm/internal/infra/logger"
)

type Transport interface {
	RequestStageChange(ctx context.Context, recordID string, in StageRequest) (*Verdict, error)
}

type Requester struct {
	Board     *Board
	Transport Transport
	// Refresh é chamado uma vez por movimento confirmado.
	Refresh func()
}

func NewRequester(board *Board, transport Transport, refresh func()) *Requester {
	return &Requester{Board: board, Transport: transport, Refresh: refresh}
}

// Move aplica o movimento no board e pede a confirmação ao servidor.
// Gate devolve *GateDialog, o resto *TransitionError; em ambos o board volta
// ao estado anterior. Não há retentativa.
func (r *Requester) Move(ctx context.Context, recordID, from, to string) error {
	return r.submit(ctx, &MoveCommand{RecordID: recordID, From: from, To: to}, nil)
}

// Resubmit refaz o movimento do diálogo com os campos informados pelo usuário.
func (r *Requester) Resubmit(ctx context.Context, dialog *GateDialog, fields map[string]any) error {
	cmd := &MoveCommand{RecordID: dialog.RecordID, From: dialog.FromStage, To: dialog.Stage.Key}
	return r.submit(ctx, cmd, fields)
}

func (r *Requester) submit(ctx context.Context, cmd *MoveCommand, fields map[string]any) error {
	if cmd.From == cmd.To {
		return nil
	}
	if err := cmd.Execute(r.Board); err != nil {
		return err
	}

	verdict, err := r.Transport.RequestStageChange(ctx, cmd.RecordID, StageRequest{
		Stage:     cmd.To,
		FromStage: cmd.From,
		Fields:    fields,
	})
	if err != nil {
		cmd.Undo(r.Board)
		logger.Get().WithFields(logrus.Fields{
			"record_id": cmd.RecordID,
			"to_stage":  cmd.To,
		}).WithError(err).Warn("movimento desfeito")
		return err
	}

	if verdict.Kind == entity.VerdictGated {
		cmd.Undo(r.Board)
		stage := verdict.Stage
		if stage.Key == "" {
			stage.Key = cmd.To
		}
		return &GateDialog{
			RecordID:         cmd.RecordID,
			FromStage:        cmd.From,
			Stage:            stage,
			Reason:           verdict.Reason,
			MissingFields:    verdict.MissingFields,
			ValidationErrors: verdict.ValidationErrors,
			RequiresApproval: verdict.RequiresApproval,
		}
	}

	if r.Refresh != nil {
		r.Refresh()
	}
	return nil
}
