package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/xavierca1/ligue-crm/internal/entity"
)

var dealCatalog = entity.StageCatalog{
	{Key: "new", Label: "Novo", Color: "#94a3b8", Position: 0},
	{Key: "proposal", Label: "Proposta", Color: "#f59e0b", Position: 1},
	{Key: "won", Label: "Ganho", Color: "#22c55e", Position: 2, IsWon: true, Probability: 100},
}

type transitionFixture struct {
	records   *MockRecordRepository
	stages    *MockStageRepository
	gates     *MockGateRepository
	publisher *MockEventPublisher
	uc        *TransitionStageUseCase
}

func newTransitionFixture() *transitionFixture {
	f := &transitionFixture{
		records:   new(MockRecordRepository),
		stages:    new(MockStageRepository),
		gates:     new(MockGateRepository),
		publisher: new(MockEventPublisher),
	}
	f.uc = NewTransitionStageUseCase(f.records, f.stages, f.gates, f.publisher, NewGateEvaluator("BR"))
	f.uc.Now = func() time.Time { return time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC) }
	return f
}

func newDeal(stage string) *entity.Record {
	return &entity.Record{
		ID:             recordID,
		OrganizationID: orgID,
		RecordType:     entity.RecordTypeDeal,
		Name:           "Empresa XPTO",
		Email:          "contato@xpto.com",
		Stage:          stage,
		Data:           map[string]any{},
	}
}

func TestTransitionStageSuccess(t *testing.T) {
	ctx := context.Background()
	f := newTransitionFixture()

	f.records.On("FindByID", ctx, orgID, recordID).Return(newDeal("new"), nil)
	f.stages.On("ListByRecordType", ctx, orgID, entity.RecordTypeDeal).Return(dealCatalog, nil)
	f.gates.On("FindByStage", ctx, orgID, entity.RecordTypeDeal, "proposal").Return(nil, entity.ErrNotFound)
	saved := newDeal("proposal")
	changedAt := f.uc.Now()
	saved.StageChangedAt = &changedAt
	f.records.On("ApplyStageChange", ctx, mock.MatchedBy(func(p entity.StagePatch) bool {
		return p.FromStage == "new" && p.ToStage == "proposal" && p.ChangedAt.Equal(changedAt) && len(p.Fields) == 0
	})).Return(saved, nil).Once()
	f.publisher.On("PublishStageChanged", ctx, mock.MatchedBy(func(c entity.StageChange) bool {
		return c.FromStage == "new" && c.ToStage == "proposal" && !c.IsWon
	})).Return(nil)

	out, err := f.uc.Execute(ctx, testProfile(entity.RoleMember), TransitionStageInput{RecordID: recordID, Stage: "proposal"})

	require.NoError(t, err)
	assert.Equal(t, entity.VerdictOK, out.Verdict.Kind)
	assert.Equal(t, "proposal", out.Record.Stage)
	assert.Equal(t, "Proposta", out.Stage.Label)
	f.records.AssertNumberOfCalls(t, "ApplyStageChange", 1)
	f.publisher.AssertExpectations(t)
}

func TestTransitionStageGatedNeverWrites(t *testing.T) {
	ctx := context.Background()
	f := newTransitionFixture()

	f.records.On("FindByID", ctx, orgID, recordID).Return(newDeal("proposal"), nil)
	f.stages.On("ListByRecordType", ctx, orgID, entity.RecordTypeDeal).Return(dealCatalog, nil)
	f.gates.On("FindByStage", ctx, orgID, entity.RecordTypeDeal, "won").Return(&entity.StageGate{
		Rules: entity.GateRule{RequiredFields: []string{"amount", "contract_number"}},
	}, nil)

	out, err := f.uc.Execute(ctx, testProfile(entity.RoleMember), TransitionStageInput{RecordID: recordID, Stage: "won"})

	require.NoError(t, err)
	assert.True(t, out.Verdict.IsGated())
	assert.Equal(t, entity.GateMissingFields, out.Verdict.Reason)
	assert.Equal(t, []string{"amount", "contract_number"}, out.Verdict.MissingFields)
	assert.Equal(t, "Ganho", out.Stage.Label)
	assert.Equal(t, "#22c55e", out.Stage.Color)
	f.records.AssertNotCalled(t, "ApplyStageChange", mock.Anything, mock.Anything)
	f.publisher.AssertNotCalled(t, "PublishStageChanged", mock.Anything, mock.Anything)
}

func TestTransitionStageSuppliedFieldsPassGate(t *testing.T) {
	ctx := context.Background()
	f := newTransitionFixture()

	f.records.On("FindByID", ctx, orgID, recordID).Return(newDeal("proposal"), nil)
	f.stages.On("ListByRecordType", ctx, orgID, entity.RecordTypeDeal).Return(dealCatalog, nil)
	f.gates.On("FindByStage", ctx, orgID, entity.RecordTypeDeal, "won").Return(&entity.StageGate{
		Rules: entity.GateRule{RequiredFields: []string{"amount", "contract_number"}},
	}, nil)
	saved := newDeal("won")
	changedAt := f.uc.Now()
	saved.StageChangedAt = &changedAt
	f.records.On("ApplyStageChange", ctx, mock.MatchedBy(func(p entity.StagePatch) bool {
		return p.FromStage == "proposal" && p.ToStage == "won" &&
			assert.ObjectsAreEqual([]string{"amount", "contract_number"}, p.Fields) &&
			p.Values.Amount.Valid && p.Values.Amount.Decimal.Equal(decimal.NewFromInt(12000)) &&
			p.Values.Data["contract_number"] == "CT-778"
	})).Return(saved, nil)
	f.publisher.On("PublishStageChanged", ctx, mock.MatchedBy(func(c entity.StageChange) bool {
		return c.IsWon && c.ToStage == "won"
	})).Return(errors.New("broker down"))

	out, err := f.uc.Execute(ctx, testProfile(entity.RoleMember), TransitionStageInput{
		RecordID: recordID,
		Stage:    "won",
		Fields:   map[string]any{"amount": 12000.0, "contract_number": "CT-778"},
	})

	// falha no broker não derruba a transição
	require.NoError(t, err)
	assert.Equal(t, entity.VerdictOK, out.Verdict.Kind)
}

func TestTransitionStageReturnsRowFromDatabase(t *testing.T) {
	ctx := context.Background()
	f := newTransitionFixture()

	f.records.On("FindByID", ctx, orgID, recordID).Return(newDeal("new"), nil)
	f.stages.On("ListByRecordType", ctx, orgID, entity.RecordTypeDeal).Return(dealCatalog, nil)
	f.gates.On("FindByStage", ctx, orgID, entity.RecordTypeDeal, "proposal").Return(nil, entity.ErrNotFound)

	// outra sessão renomeou o record depois do FindByID
	saved := newDeal("proposal")
	saved.Name = "XPTO Renomeada"
	changedAt := f.uc.Now()
	saved.StageChangedAt = &changedAt
	f.records.On("ApplyStageChange", ctx, mock.MatchedBy(func(p entity.StagePatch) bool {
		return assert.ObjectsAreEqual([]string{"nps"}, p.Fields)
	})).Return(saved, nil)
	f.publisher.On("PublishStageChanged", ctx, mock.MatchedBy(func(c entity.StageChange) bool {
		return c.Name == "XPTO Renomeada"
	})).Return(nil)

	out, err := f.uc.Execute(ctx, testProfile(entity.RoleMember), TransitionStageInput{
		RecordID: recordID,
		Stage:    "proposal",
		Fields:   map[string]any{"nps": 9.0},
	})

	require.NoError(t, err)
	assert.Equal(t, "XPTO Renomeada", out.Record.Name)
	f.publisher.AssertExpectations(t)
}

func TestTransitionStageRecordNotFound(t *testing.T) {
	ctx := context.Background()
	f := newTransitionFixture()
	f.records.On("FindByID", ctx, orgID, recordID).Return(nil, entity.ErrNotFound)

	_, err := f.uc.Execute(ctx, testProfile(entity.RoleMember), TransitionStageInput{RecordID: recordID, Stage: "won"})

	assert.ErrorIs(t, err, ErrRecordNotFound)
}

func TestTransitionStageUnknownStage(t *testing.T) {
	ctx := context.Background()
	f := newTransitionFixture()
	f.records.On("FindByID", ctx, orgID, recordID).Return(newDeal("new"), nil)
	f.stages.On("ListByRecordType", ctx, orgID, entity.RecordTypeDeal).Return(dealCatalog, nil)

	_, err := f.uc.Execute(ctx, testProfile(entity.RoleMember), TransitionStageInput{RecordID: recordID, Stage: "archived"})

	assert.ErrorIs(t, err, ErrInvalidStage)
}

func TestTransitionStageStaleFromStage(t *testing.T) {
	ctx := context.Background()
	f := newTransitionFixture()
	f.records.On("FindByID", ctx, orgID, recordID).Return(newDeal("proposal"), nil)

	_, err := f.uc.Execute(ctx, testProfile(entity.RoleMember), TransitionStageInput{RecordID: recordID, Stage: "won", FromStage: "new"})

	assert.ErrorIs(t, err, ErrStageConflict)
}

func TestTransitionStageConcurrentChange(t *testing.T) {
	ctx := context.Background()
	f := newTransitionFixture()
	f.records.On("FindByID", ctx, orgID, recordID).Return(newDeal("new"), nil)
	f.stages.On("ListByRecordType", ctx, orgID, entity.RecordTypeDeal).Return(dealCatalog, nil)
	f.gates.On("FindByStage", ctx, orgID, entity.RecordTypeDeal, "proposal").Return(nil, entity.ErrNotFound)
	f.records.On("ApplyStageChange", ctx, mock.MatchedBy(func(p entity.StagePatch) bool {
		return p.FromStage == "new"
	})).Return(nil, entity.ErrStageConflict)

	_, err := f.uc.Execute(ctx, testProfile(entity.RoleMember), TransitionStageInput{RecordID: recordID, Stage: "proposal"})

	assert.ErrorIs(t, err, ErrStageConflict)
	f.publisher.AssertNotCalled(t, "PublishStageChanged", mock.Anything, mock.Anything)
}

func TestTransitionStageSameStageIsNoop(t *testing.T) {
	ctx := context.Background()
	f := newTransitionFixture()
	f.records.On("FindByID", ctx, orgID, recordID).Return(newDeal("proposal"), nil)
	f.stages.On("ListByRecordType", ctx, orgID, entity.RecordTypeDeal).Return(dealCatalog, nil)

	out, err := f.uc.Execute(ctx, testProfile(entity.RoleMember), TransitionStageInput{RecordID: recordID, Stage: "proposal"})

	require.NoError(t, err)
	assert.Equal(t, entity.VerdictOK, out.Verdict.Kind)
	f.records.AssertNotCalled(t, "ApplyStageChange", mock.Anything, mock.Anything)
}

func TestTransitionStageInvalidInput(t *testing.T) {
	f := newTransitionFixture()

	_, err := f.uc.Execute(context.Background(), testProfile(entity.RoleMember), TransitionStageInput{RecordID: "not-a-uuid"})

	var verrs ValidationErrors
	require.ErrorAs(t, err, &verrs)
	assert.Len(t, verrs, 2)
}

func TestConfigureGateRequiresAdmin(t *testing.T) {
	uc := NewConfigureGateUseCase(new(MockStageRepository), new(MockGateRepository))

	_, err := uc.Execute(context.Background(), testProfile(entity.RoleMember), entity.RecordTypeDeal, "won", []byte(`{}`))

	assert.ErrorIs(t, err, ErrForbidden)
}

func TestConfigureGateValidatesSchema(t *testing.T) {
	ctx := context.Background()
	stages := new(MockStageRepository)
	gates := new(MockGateRepository)
	stages.On("ListByRecordType", ctx, orgID, entity.RecordTypeDeal).Return(dealCatalog, nil)
	gates.On("Upsert", ctx, mock.MatchedBy(func(g *entity.StageGate) bool {
		return g.StageKey == "won" && g.Rules.RequiresApproval
	})).Return(nil)
	uc := NewConfigureGateUseCase(stages, gates)

	_, err := uc.Execute(ctx, testProfile(entity.RoleAdmin), entity.RecordTypeDeal, "won", []byte(`{"validations":[{"field":"amount","rule":"nope"}]}`))
	var de *DomainError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, "INVALID_GATE_RULE", de.Code)

	gate, err := uc.Execute(ctx, testProfile(entity.RoleAdmin), entity.RecordTypeDeal, "won", []byte(`{"requires_approval":true}`))
	require.NoError(t, err)
	assert.True(t, gate.Rules.RequiresApproval)
}

func TestListStagesRejectsUnknownRecordType(t *testing.T) {
	uc := NewListStagesUseCase(new(MockStageRepository))

	_, err := uc.Execute(context.Background(), testProfile(entity.RoleMember), entity.RecordType("invoice"))

	assert.ErrorIs(t, err, ErrInvalidRecordType)
}
