package usecase

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/xavierca1/ligue-crm/internal/entity"
	"github.com/xavierca1/ligue-crm/internal/infra/logger"
)

type TransitionStageUseCase struct {
	Records   RecordRepositoryInterface
	Stages    StageRepositoryInterface
	Gates     GateRepositoryInterface
	Publisher EventPublisher
	Evaluator *GateEvaluator
	Now       func() time.Time
}

func NewTransitionStageUseCase(
	records RecordRepositoryInterface,
	stages StageRepositoryInterface,
	gates GateRepositoryInterface,
	publisher EventPublisher,
	evaluator *GateEvaluator,
) *TransitionStageUseCase {
	return &TransitionStageUseCase{
		Records:   records,
		Stages:    stages,
		Gates:     gates,
		Publisher: publisher,
		Evaluator: evaluator,
		Now:       time.Now,
	}
}

// Execute valida os gates antes de qualquer escrita. Um verdict gated nunca
// toca no banco; um ok faz exatamente uma escrita transacional.
func (uc *TransitionStageUseCase) Execute(ctx context.Context, profile *entity.Profile, input TransitionStageInput) (*TransitionStageOutput, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}

	rec, err := uc.Records.FindByID(ctx, profile.OrganizationID, input.RecordID)
	if err != nil {
		if errors.Is(err, entity.ErrNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, NewTechnicalError("DB_ERROR", "failed to load record", err)
	}

	if input.FromStage != "" && input.FromStage != rec.Stage {
		return nil, ErrStageConflict
	}

	catalog, err := uc.Stages.ListByRecordType(ctx, profile.OrganizationID, rec.RecordType)
	if err != nil {
		return nil, NewTechnicalError("DB_ERROR", "failed to load stages", err)
	}
	target, ok := catalog.Find(input.Stage)
	if !ok {
		return nil, ErrInvalidStage
	}

	if rec.Stage == target.Key && len(input.Fields) == 0 {
		return &TransitionStageOutput{Verdict: entity.Allowed(), Stage: *target, Record: rec}, nil
	}

	candidate := *rec
	candidate.Data = cloneData(rec.Data)
	if err := candidate.ApplyFields(input.Fields); err != nil {
		return nil, ValidationErrors{{Field: "amount", Message: err.Error()}}
	}

	var rule *entity.GateRule
	gate, err := uc.Gates.FindByStage(ctx, profile.OrganizationID, rec.RecordType, target.Key)
	switch {
	case err == nil:
		rule = &gate.Rules
	case errors.Is(err, entity.ErrNotFound):
	default:
		return nil, NewTechnicalError("DB_ERROR", "failed to load stage gate", err)
	}

	verdict := uc.Evaluator.Evaluate(rule, &candidate, profile)
	if verdict.IsGated() {
		logger.Get().WithFields(logrus.Fields{
			"record_id": rec.ID,
			"from":      rec.Stage,
			"to":        target.Key,
			"reason":    verdict.Reason,
		}).Info("transição bloqueada pelo gate")
		return &TransitionStageOutput{Verdict: verdict, Stage: *target, Record: rec}, nil
	}

	fromStage := rec.Stage
	fields := make([]string, 0, len(input.Fields))
	for key := range input.Fields {
		fields = append(fields, key)
	}
	sort.Strings(fields)

	// só o estágio e os campos informados são escritos; o resto da linha
	// pode ter mudado desde o FindByID
	saved, err := uc.Records.ApplyStageChange(ctx, entity.StagePatch{
		RecordID:       rec.ID,
		OrganizationID: rec.OrganizationID,
		FromStage:      fromStage,
		ToStage:        target.Key,
		ChangedAt:      uc.Now(),
		Fields:         fields,
		Values:         &candidate,
	})
	if err != nil {
		if errors.Is(err, entity.ErrStageConflict) {
			return nil, ErrStageConflict
		}
		if errors.Is(err, entity.ErrNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, NewTechnicalError("DB_ERROR", "failed to apply stage change", err)
	}

	if fromStage != target.Key {
		uc.publish(ctx, profile, saved, fromStage, target)
	}

	return &TransitionStageOutput{Verdict: entity.Allowed(), Stage: *target, Record: saved}, nil
}

// publish é best effort: a transição já foi confirmada no banco.
func (uc *TransitionStageUseCase) publish(ctx context.Context, profile *entity.Profile, rec *entity.Record, from string, target *entity.Stage) {
	if uc.Publisher == nil {
		return
	}
	change := entity.StageChange{
		RecordID:       rec.ID,
		OrganizationID: rec.OrganizationID,
		RecordType:     rec.RecordType,
		FromStage:      from,
		ToStage:        target.Key,
		IsWon:          target.IsWon,
		IsLost:         target.IsLost,
		Name:           rec.Name,
		Email:          rec.Email,
		Phone:          rec.Phone,
		Amount:         rec.Amount,
		ChangedBy:      profile.UserID,
		ChangedAt:      *rec.StageChangedAt,
	}
	if err := uc.Publisher.PublishStageChanged(ctx, change); err != nil {
		logger.LogError(logger.Get(), "usecase", "TransitionStageUseCase.publish", "falha ao publicar stage_changed", change.RecordID, err)
	}
}

type ListStagesUseCase struct {
	Stages StageRepositoryInterface
}

func NewListStagesUseCase(stages StageRepositoryInterface) *ListStagesUseCase {
	return &ListStagesUseCase{Stages: stages}
}

func (uc *ListStagesUseCase) Execute(ctx context.Context, profile *entity.Profile, recordType entity.RecordType) (entity.StageCatalog, error) {
	if !recordType.IsValid() {
		return nil, ErrInvalidRecordType
	}
	catalog, err := uc.Stages.ListByRecordType(ctx, profile.OrganizationID, recordType)
	if err != nil {
		return nil, NewTechnicalError("DB_ERROR", "failed to load stages", err)
	}
	if err := catalog.Validate(); err != nil {
		logger.LogError(logger.Get(), "usecase", "ListStagesUseCase.Execute", "catálogo de estágios inconsistente", recordType, err)
	}
	return catalog, nil
}

// ConfigureGateUseCase grava a regra de entrada de um estágio (só admin).
type ConfigureGateUseCase struct {
	Stages StageRepositoryInterface
	Gates  GateRepositoryInterface
}

func NewConfigureGateUseCase(stages StageRepositoryInterface, gates GateRepositoryInterface) *ConfigureGateUseCase {
	return &ConfigureGateUseCase{Stages: stages, Gates: gates}
}

func (uc *ConfigureGateUseCase) Execute(ctx context.Context, profile *entity.Profile, recordType entity.RecordType, stageKey string, raw []byte) (*entity.StageGate, error) {
	if !profile.HasRole(entity.RoleAdmin) {
		return nil, ErrForbidden
	}
	if !recordType.IsValid() {
		return nil, ErrInvalidRecordType
	}

	catalog, err := uc.Stages.ListByRecordType(ctx, profile.OrganizationID, recordType)
	if err != nil {
		return nil, NewTechnicalError("DB_ERROR", "failed to load stages", err)
	}
	if _, ok := catalog.Find(stageKey); !ok {
		return nil, ErrInvalidStage
	}

	rule, err := entity.ParseGateRule(raw)
	if err != nil {
		return nil, NewDomainError(http.StatusUnprocessableEntity, "INVALID_GATE_RULE", err.Error())
	}

	gate := &entity.StageGate{
		OrganizationID: profile.OrganizationID,
		RecordType:     recordType,
		StageKey:       stageKey,
		Rules:          rule,
	}
	if err := uc.Gates.Upsert(ctx, gate); err != nil {
		return nil, NewTechnicalError("DB_ERROR", "failed to save stage gate", err)
	}
	return gate, nil
}

func cloneData(data map[string]any) map[string]any {
	out := make(map[string]any, len(data))
	for k, v := range data {
		out[k] = v
	}
	return out
}
