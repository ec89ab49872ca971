package entity

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStageCatalogValidate(t *testing.T) {
	tests := []struct {
		name    string
		catalog StageCatalog
		wantErr error
	}{
		{
			name: "valid catalog",
			catalog: StageCatalog{
				{Key: "new", Probability: 10},
				{Key: "won", Probability: 100, IsWon: true},
				{Key: "lost", IsLost: true},
			},
		},
		{
			name:    "won and lost",
			catalog: StageCatalog{{Key: "closed", IsWon: true, IsLost: true}},
			wantErr: ErrStageWonAndLost,
		},
		{
			name:    "duplicate key",
			catalog: StageCatalog{{Key: "new"}, {Key: "new"}},
			wantErr: ErrDuplicateStageKey,
		},
		{
			name:    "probability out of range",
			catalog: StageCatalog{{Key: "new", Probability: 120}},
			wantErr: ErrInvalidProbability,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.catalog.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
		})
	}
}

func TestStageCatalogFind(t *testing.T) {
	catalog := StageCatalog{{Key: "new", Label: "Novo"}, {Key: "proposal", Label: "Proposta", Color: "#f59e0b"}}

	stage, ok := catalog.Find("proposal")
	require.True(t, ok)
	assert.Equal(t, "Proposta", stage.Label)

	_, ok = catalog.Find("missing")
	assert.False(t, ok)
}

func TestParseGateRule(t *testing.T) {
	raw := []byte(`{
		"required_fields": ["amount", "cpf"],
		"validations": [{"field": "amount", "rule": "gt", "value": 1000, "message": "Valor mínimo R$ 1000"}],
		"requires_approval": true,
		"approver_roles": ["admin"]
	}`)

	rule, err := ParseGateRule(raw)

	require.NoError(t, err)
	assert.Equal(t, []string{"amount", "cpf"}, rule.RequiredFields)
	require.Len(t, rule.Validations, 1)
	assert.Equal(t, RuleGreaterThan, rule.Validations[0].Rule)
	assert.True(t, rule.RequiresApproval)
}

func TestParseGateRuleRejectsInvalidDocuments(t *testing.T) {
	docs := map[string]string{
		"unknown rule":        `{"validations": [{"field": "amount", "rule": "between"}]}`,
		"missing threshold":   `{"validations": [{"field": "amount", "rule": "gte"}]}`,
		"unknown property":    `{"required": ["amount"]}`,
		"one_of without list": `{"validations": [{"field": "plan", "rule": "one_of", "value": "gold"}]}`,
		"malformed json":      `{"required_fields": [`,
	}

	for name, doc := range docs {
		t.Run(name, func(t *testing.T) {
			_, err := ParseGateRule([]byte(doc))
			assert.ErrorIs(t, err, ErrInvalidGateRule)
		})
	}
}

func TestParseGateRuleEmpty(t *testing.T) {
	rule, err := ParseGateRule(nil)
	require.NoError(t, err)
	assert.Empty(t, rule.RequiredFields)
}

func TestRecordFieldValueAndApplyFields(t *testing.T) {
	rec := &Record{Name: "Maria", Data: map[string]any{"cpf": "123"}}

	v, ok := rec.FieldValue("cpf")
	assert.True(t, ok)
	assert.Equal(t, "123", v)

	_, ok = rec.FieldValue("amount")
	assert.False(t, ok)

	err := rec.ApplyFields(map[string]any{"amount": "1500.50", "email": " maria@ligue.com ", "plan": "gold"})
	require.NoError(t, err)

	amount, ok := rec.FieldValue("amount")
	require.True(t, ok)
	assert.True(t, decimal.RequireFromString("1500.50").Equal(amount.(decimal.Decimal)))
	assert.Equal(t, "maria@ligue.com", rec.Email)
	assert.Equal(t, "gold", rec.Data["plan"])

	assert.ErrorIs(t, rec.ApplyFields(map[string]any{"amount": "abc"}), ErrInvalidAmount)
}

func TestCalendarEventOverlaps(t *testing.T) {
	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)

	inside := CalendarEvent{StartsAt: from.AddDate(0, 1, 0), EndsAt: from.AddDate(0, 1, 0).Add(time.Hour)}
	before := CalendarEvent{StartsAt: from.AddDate(0, -1, 0), EndsAt: from.AddDate(0, -1, 0).Add(time.Hour)}
	straddling := CalendarEvent{StartsAt: from.Add(-time.Hour), EndsAt: from.Add(time.Hour)}
	after := CalendarEvent{StartsAt: to.Add(time.Minute)}

	assert.True(t, inside.Overlaps(from, to))
	assert.False(t, before.Overlaps(from, to))
	assert.True(t, straddling.Overlaps(from, to))
	assert.False(t, after.Overlaps(from, to))
}
