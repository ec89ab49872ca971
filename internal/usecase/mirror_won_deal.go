package usecase

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/xavierca1/ligue-crm/internal/entity"
	"github.com/xavierca1/ligue-crm/internal/infra/logger"
)

// MirrorStageChangeUseCase consome os eventos de transição e replica no
// Kommo os deals que chegaram num estágio ganho.
type MirrorStageChangeUseCase struct {
	Mirror WonDealMirror
}

func NewMirrorStageChangeUseCase(mirror WonDealMirror) *MirrorStageChangeUseCase {
	return &MirrorStageChangeUseCase{Mirror: mirror}
}

func (uc *MirrorStageChangeUseCase) Execute(ctx context.Context, change entity.StageChange) error {
	if uc.Mirror == nil || !change.IsWon || change.RecordType != entity.RecordTypeDeal {
		return nil
	}

	leadID, err := uc.Mirror.MirrorWonDeal(ctx, change)
	if err != nil {
		return NewTechnicalError("KOMMO_ERROR", "failed to mirror won deal", err)
	}

	logger.Get().WithFields(logrus.Fields{
		"record_id": change.RecordID,
		"lead_id":   leadID,
	}).Info("deal ganho espelhado no Kommo")
	return nil
}
