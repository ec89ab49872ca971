package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/xavierca1/ligue-crm/internal/entity"
)

type SequenceRepository struct {
	DB *sql.DB
}

func NewSequenceRepository(db *sql.DB) *SequenceRepository {
	return &SequenceRepository{DB: db}
}

func (r *SequenceRepository) FindByID(ctx context.Context, orgID, id string) (*entity.Sequence, error) {
	query := `SELECT id, organization_id, name, active, created_at FROM sequences WHERE id = $1 AND organization_id = $2`

	var s entity.Sequence
	err := r.DB.QueryRowContext(ctx, query, id, orgID).Scan(&s.ID, &s.OrganizationID, &s.Name, &s.Active, &s.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, entity.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *SequenceRepository) ListSteps(ctx context.Context, sequenceID string) ([]entity.SequenceStep, error) {
	query := `
		SELECT id, sequence_id, position, delay_hours, subject, body
		FROM sequence_steps
		WHERE sequence_id = $1
		ORDER BY position
	`
	rows, err := r.DB.QueryContext(ctx, query, sequenceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var steps []entity.SequenceStep
	for rows.Next() {
		var s entity.SequenceStep
		if err := rows.Scan(&s.ID, &s.SequenceID, &s.Position, &s.DelayHours, &s.Subject, &s.Body); err != nil {
			return nil, err
		}
		steps = append(steps, s)
	}
	return steps, rows.Err()
}

type EnrollmentRepository struct {
	DB *sql.DB
}

func NewEnrollmentRepository(db *sql.DB) *EnrollmentRepository {
	return &EnrollmentRepository{DB: db}
}

const enrollmentColumns = `e.id, e.sequence_id, e.record_id, e.organization_id, e.status, e.current_step,
	e.next_send_at, e.enrolled_by, e.enrolled_at, e.paused_at, e.exited_at, e.completed_at, e.updated_at,
	e.failed_attempts, e.exit_reason`

const joinedRecordColumns = `r.id, r.organization_id, r.record_type, r.name, r.email, r.phone, r.stage, r.amount,
	r.owner_id, r.data, r.stage_changed_at, r.created_at, r.updated_at`

type enrollmentScan struct {
	e                                        entity.Enrollment
	enrolledBy, exitReason                   sql.NullString
	nextSendAt, pausedAt, exitedAt, complete sql.NullTime
}

func (s *enrollmentScan) dest() []any {
	return []any{
		&s.e.ID, &s.e.SequenceID, &s.e.RecordID, &s.e.OrganizationID, &s.e.Status, &s.e.CurrentStep,
		&s.nextSendAt, &s.enrolledBy, &s.e.EnrolledAt, &s.pausedAt, &s.exitedAt, &s.complete, &s.e.UpdatedAt,
		&s.e.FailedAttempts, &s.exitReason,
	}
}

func (s *enrollmentScan) enrollment() entity.Enrollment {
	e := s.e
	e.EnrolledBy = stringOrEmpty(s.enrolledBy)
	e.NextSendAt = timePtr(s.nextSendAt)
	e.PausedAt = timePtr(s.pausedAt)
	e.ExitedAt = timePtr(s.exitedAt)
	e.CompletedAt = timePtr(s.complete)
	e.ExitReason = stringOrEmpty(s.exitReason)
	return e
}

// List devolve a página pedida e o total sem paginação. status vazio lista todos.
func (r *EnrollmentRepository) List(ctx context.Context, orgID, sequenceID string, status entity.EnrollmentStatus, limit, offset int) ([]entity.Enrollment, int, error) {
	var total int
	err := r.DB.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM sequence_enrollments e
		WHERE e.organization_id = $1 AND e.sequence_id = $2 AND ($3 = '' OR e.status = $3)
	`, orgID, sequenceID, string(status)).Scan(&total)
	if err != nil {
		return nil, 0, err
	}

	query := `
		SELECT ` + enrollmentColumns + `, r.name, r.email
		FROM sequence_enrollments e
		JOIN crm_records r ON r.id = e.record_id
		WHERE e.organization_id = $1 AND e.sequence_id = $2 AND ($3 = '' OR e.status = $3)
		ORDER BY e.enrolled_at DESC, e.id
		LIMIT $4 OFFSET $5
	`
	rows, err := r.DB.QueryContext(ctx, query, orgID, sequenceID, string(status), limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []entity.Enrollment
	for rows.Next() {
		var (
			s     enrollmentScan
			name  string
			email sql.NullString
		)
		if err := rows.Scan(append(s.dest(), &name, &email)...); err != nil {
			return nil, 0, err
		}
		e := s.enrollment()
		e.RecordName = name
		e.RecordEmail = stringOrEmpty(email)
		out = append(out, e)
	}
	return out, total, rows.Err()
}

// FindOpenRecordIDs marca os records que já têm inscrição ativa ou pausada.
func (r *EnrollmentRepository) FindOpenRecordIDs(ctx context.Context, sequenceID string, recordIDs []string) (map[string]bool, error) {
	open := map[string]bool{}
	if len(recordIDs) == 0 {
		return open, nil
	}

	query := `
		SELECT record_id
		FROM sequence_enrollments
		WHERE sequence_id = $1 AND record_id = ANY($2::uuid[]) AND status IN ('active', 'paused')
	`
	rows, err := r.DB.QueryContext(ctx, query, sequenceID, pq.Array(recordIDs))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		open[id] = true
	}
	return open, rows.Err()
}

// Create reabre inscrições encerradas (exited/completed). Se a linha existente
// ainda está aberta o conflito não atualiza nada e devolve false.
func (r *EnrollmentRepository) Create(ctx context.Context, e *entity.Enrollment) (bool, error) {
	query := `
		INSERT INTO sequence_enrollments (
			id, sequence_id, record_id, organization_id, status, current_step, next_send_at,
			enrolled_by, enrolled_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (sequence_id, record_id)
		DO UPDATE SET
			status = EXCLUDED.status,
			current_step = EXCLUDED.current_step,
			next_send_at = EXCLUDED.next_send_at,
			enrolled_by = EXCLUDED.enrolled_by,
			enrolled_at = EXCLUDED.enrolled_at,
			paused_at = NULL,
			exited_at = NULL,
			completed_at = NULL,
			failed_attempts = 0,
			exit_reason = NULL,
			updated_at = EXCLUDED.updated_at
		WHERE sequence_enrollments.status IN ('exited', 'completed')
		RETURNING id
	`
	err := r.DB.QueryRowContext(ctx, query,
		e.ID,
		e.SequenceID,
		e.RecordID,
		e.OrganizationID,
		e.Status,
		e.CurrentStep,
		e.NextSendAt,
		nullString(e.EnrolledBy),
		e.EnrolledAt,
		e.UpdatedAt,
	).Scan(&e.ID)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// ApplyAction só transiciona a partir de estados compatíveis; ids fora disso
// são ignorados e não entram na contagem.
func (r *EnrollmentRepository) ApplyAction(ctx context.Context, orgID, sequenceID string, ids []string, action entity.EnrollmentAction, at time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	var set string
	switch action {
	case entity.ActionPause:
		set = `status = 'paused', paused_at = $4, updated_at = $4 WHERE status = 'active'`
	case entity.ActionResume:
		set = `status = 'active', paused_at = NULL,
			next_send_at = GREATEST(COALESCE(next_send_at, $4), $4), updated_at = $4
			WHERE status = 'paused'`
	case entity.ActionExit:
		set = `status = 'exited', exited_at = $4, next_send_at = NULL, updated_at = $4
			WHERE status IN ('active', 'paused')`
	default:
		return 0, fmt.Errorf("unknown enrollment action %q", action)
	}

	query := `UPDATE sequence_enrollments SET ` + set + `
		AND organization_id = $1 AND sequence_id = $2 AND id = ANY($3::uuid[])`
	res, err := r.DB.ExecContext(ctx, query, orgID, sequenceID, pq.Array(ids), at)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ListDue junta o record para o template; sequências desativadas ficam de fora.
func (r *EnrollmentRepository) ListDue(ctx context.Context, now time.Time, limit int) ([]entity.DueEnrollment, error) {
	query := `
		SELECT ` + enrollmentColumns + `, ` + joinedRecordColumns + `
		FROM sequence_enrollments e
		JOIN sequences s ON s.id = e.sequence_id AND s.active
		JOIN crm_records r ON r.id = e.record_id
		WHERE e.status = 'active' AND e.next_send_at <= $1
		ORDER BY e.next_send_at
		LIMIT $2
	`
	rows, err := r.DB.QueryContext(ctx, query, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []entity.DueEnrollment
	for rows.Next() {
		var (
			es enrollmentScan
			rs recordScan
		)
		if err := rows.Scan(append(es.dest(), rs.dest()...)...); err != nil {
			return nil, err
		}
		rec, err := rs.record()
		if err != nil {
			return nil, err
		}
		out = append(out, entity.DueEnrollment{Enrollment: es.enrollment(), Record: *rec})
	}
	return out, rows.Err()
}

// Advance não sobrescreve uma inscrição pausada ou encerrada durante o envio.
func (r *EnrollmentRepository) Advance(ctx context.Context, e *entity.Enrollment) error {
	query := `
		UPDATE sequence_enrollments
		SET status = $2, current_step = $3, next_send_at = $4, completed_at = $5, exited_at = $6,
			failed_attempts = $7, exit_reason = $8, updated_at = $9
		WHERE id = $1 AND status = 'active'
	`
	_, err := r.DB.ExecContext(ctx, query,
		e.ID,
		e.Status,
		e.CurrentStep,
		e.NextSendAt,
		e.CompletedAt,
		e.ExitedAt,
		e.FailedAttempts,
		nullString(e.ExitReason),
		e.UpdatedAt,
	)
	return err
}

type SentEmailRepository struct {
	DB *sql.DB
}

func NewSentEmailRepository(db *sql.DB) *SentEmailRepository {
	return &SentEmailRepository{DB: db}
}

func (r *SentEmailRepository) Create(ctx context.Context, sent *entity.SentEmail) error {
	query := `
		INSERT INTO sent_emails (id, organization_id, enrollment_id, step_id, record_id, to_email, subject, error, sent_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := r.DB.ExecContext(ctx, query,
		sent.ID,
		sent.OrganizationID,
		sent.EnrollmentID,
		sent.StepID,
		sent.RecordID,
		sent.ToEmail,
		sent.Subject,
		nullString(sent.Error),
		sent.SentAt,
	)
	return err
}
