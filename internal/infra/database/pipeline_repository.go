package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/xavierca1/ligue-crm/internal/entity"
)

type StageRepository struct {
	DB *sql.DB
}

func NewStageRepository(db *sql.DB) *StageRepository {
	return &StageRepository{DB: db}
}

func (r *StageRepository) ListByRecordType(ctx context.Context, orgID string, recordType entity.RecordType) (entity.StageCatalog, error) {
	query := `
		SELECT id, organization_id, record_type, key, label, color, probability, position, is_won, is_lost
		FROM pipeline_stages
		WHERE organization_id = $1 AND record_type = $2
		ORDER BY position, key
	`
	rows, err := r.DB.QueryContext(ctx, query, orgID, recordType)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	catalog := entity.StageCatalog{}
	for rows.Next() {
		var s entity.Stage
		if err := rows.Scan(&s.ID, &s.OrganizationID, &s.RecordType, &s.Key, &s.Label, &s.Color,
			&s.Probability, &s.Position, &s.IsWon, &s.IsLost); err != nil {
			return nil, err
		}
		catalog = append(catalog, s)
	}
	return catalog, rows.Err()
}

type GateRepository struct {
	DB *sql.DB
}

func NewGateRepository(db *sql.DB) *GateRepository {
	return &GateRepository{DB: db}
}

// FindByStage revalida o JSON salvo: a tabela pode ter sido editada fora da API.
func (r *GateRepository) FindByStage(ctx context.Context, orgID string, recordType entity.RecordType, stageKey string) (*entity.StageGate, error) {
	query := `
		SELECT id, organization_id, record_type, stage_key, rules, updated_at
		FROM stage_gates
		WHERE organization_id = $1 AND record_type = $2 AND stage_key = $3
	`
	var (
		gate entity.StageGate
		raw  []byte
	)
	err := r.DB.QueryRowContext(ctx, query, orgID, recordType, stageKey).Scan(
		&gate.ID, &gate.OrganizationID, &gate.RecordType, &gate.StageKey, &raw, &gate.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, entity.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	gate.Rules, err = entity.ParseGateRule(raw)
	if err != nil {
		return nil, err
	}
	return &gate, nil
}

func (r *GateRepository) Upsert(ctx context.Context, gate *entity.StageGate) error {
	rules, err := json.Marshal(gate.Rules)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO stage_gates (organization_id, record_type, stage_key, rules, updated_at)
		VALUES ($1, $2, $3, $4::jsonb, NOW())
		ON CONFLICT (organization_id, record_type, stage_key)
		DO UPDATE SET
			rules = EXCLUDED.rules,
			updated_at = NOW()
		RETURNING id, updated_at
	`
	return r.DB.QueryRowContext(ctx, query, gate.OrganizationID, gate.RecordType, gate.StageKey, string(rules)).
		Scan(&gate.ID, &gate.UpdatedAt)
}

type ProfileRepository struct {
	DB *sql.DB
}

func NewProfileRepository(db *sql.DB) *ProfileRepository {
	return &ProfileRepository{DB: db}
}

func (r *ProfileRepository) FindByUserID(ctx context.Context, userID string) (*entity.Profile, error) {
	query := `
		SELECT id, user_id, organization_id, role, full_name, email
		FROM profiles
		WHERE user_id = $1
	`
	var p entity.Profile
	err := r.DB.QueryRowContext(ctx, query, userID).Scan(&p.ID, &p.UserID, &p.OrganizationID, &p.Role, &p.FullName, &p.Email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, entity.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}
