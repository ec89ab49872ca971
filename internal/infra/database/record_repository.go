package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/xavierca1/ligue-crm/internal/entity"
)

type RecordRepository struct {
	DB *sql.DB
}

func NewRecordRepository(db *sql.DB) *RecordRepository {
	return &RecordRepository{DB: db}
}

const recordColumns = `id, organization_id, record_type, name, email, phone, stage, amount,
	owner_id, data, stage_changed_at, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

// recordScan junta os destinos nulos de um record; reaproveitado em joins.
type recordScan struct {
	rec            entity.Record
	email, phone   sql.NullString
	ownerID        sql.NullString
	data           []byte
	stageChangedAt sql.NullTime
}

func (s *recordScan) dest() []any {
	return []any{
		&s.rec.ID, &s.rec.OrganizationID, &s.rec.RecordType, &s.rec.Name, &s.email, &s.phone, &s.rec.Stage, &s.rec.Amount,
		&s.ownerID, &s.data, &s.stageChangedAt, &s.rec.CreatedAt, &s.rec.UpdatedAt,
	}
}

func (s *recordScan) record() (*entity.Record, error) {
	rec := s.rec
	rec.Email = stringOrEmpty(s.email)
	rec.Phone = stringOrEmpty(s.phone)
	rec.OwnerID = stringOrEmpty(s.ownerID)
	rec.StageChangedAt = timePtr(s.stageChangedAt)
	rec.Data = map[string]any{}
	if len(s.data) > 0 {
		if err := json.Unmarshal(s.data, &rec.Data); err != nil {
			return nil, fmt.Errorf("decode record data: %w", err)
		}
	}
	return &rec, nil
}

func scanRecord(row rowScanner) (*entity.Record, error) {
	var s recordScan
	if err := row.Scan(s.dest()...); err != nil {
		return nil, err
	}
	return s.record()
}

func (r *RecordRepository) FindByID(ctx context.Context, orgID, id string) (*entity.Record, error) {
	query := `SELECT ` + recordColumns + ` FROM crm_records WHERE id = $1 AND organization_id = $2`

	rec, err := scanRecord(r.DB.QueryRowContext(ctx, query, id, orgID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, entity.ErrNotFound
	}
	return rec, err
}

func (r *RecordRepository) FindByIDs(ctx context.Context, orgID string, ids []string) (map[string]*entity.Record, error) {
	out := make(map[string]*entity.Record, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	query := `SELECT ` + recordColumns + ` FROM crm_records WHERE organization_id = $1 AND id = ANY($2::uuid[])`
	rows, err := r.DB.QueryContext(ctx, query, orgID, pq.Array(ids))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out[rec.ID] = rec
	}
	return out, rows.Err()
}

// ApplyStageChange trava a linha, confere o estágio de origem e grava o patch
// numa única transação. Colunas fora do patch não são tocadas.
func (r *RecordRepository) ApplyStageChange(ctx context.Context, patch entity.StagePatch) (*entity.Record, error) {
	query, args, err := buildStageUpdate(patch)
	if err != nil {
		return nil, err
	}

	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var current string
	err = tx.QueryRowContext(ctx,
		`SELECT stage FROM crm_records WHERE id = $1 AND organization_id = $2 FOR UPDATE`,
		patch.RecordID, patch.OrganizationID,
	).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, entity.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if current != patch.FromStage {
		return nil, entity.ErrStageConflict
	}

	rec, err := scanRecord(tx.QueryRowContext(ctx, query, args...))
	if err != nil {
		return nil, err
	}
	return rec, tx.Commit()
}

// buildStageUpdate monta o UPDATE com stage, stage_changed_at e só as colunas
// em patch.Fields. Campos customizados entram por merge no JSONB.
func buildStageUpdate(patch entity.StagePatch) (string, []any, error) {
	args := []any{patch.RecordID, patch.OrganizationID, patch.ToStage, patch.ChangedAt}
	sets := []string{
		"stage = $3",
		// no SET, stage ainda é o valor antigo
		"stage_changed_at = CASE WHEN stage <> $3 THEN $4 ELSE stage_changed_at END",
		"updated_at = NOW()",
	}

	custom := map[string]any{}
	for _, field := range patch.Fields {
		var value any
		switch field {
		case "name":
			value = patch.Values.Name
		case "email":
			value = nullString(patch.Values.Email)
		case "phone":
			value = nullString(patch.Values.Phone)
		case "owner_id":
			value = nullString(patch.Values.OwnerID)
		case "amount":
			value = patch.Values.Amount
		default:
			custom[field] = patch.Values.Data[field]
			continue
		}
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", field, len(args)))
	}

	if len(custom) > 0 {
		data, err := json.Marshal(custom)
		if err != nil {
			return "", nil, fmt.Errorf("encode record data: %w", err)
		}
		args = append(args, string(data))
		sets = append(sets, fmt.Sprintf("data = COALESCE(data, '{}'::jsonb) || $%d::jsonb", len(args)))
	}

	query := `UPDATE crm_records SET ` + strings.Join(sets, ", ") + `
		WHERE id = $1 AND organization_id = $2
		RETURNING ` + recordColumns
	return query, args, nil
}
