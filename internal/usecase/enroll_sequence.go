package usecase

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/xavierca1/ligue-crm/internal/entity"
	"github.com/xavierca1/ligue-crm/internal/infra/logger"
)

const (
	defaultEnrollmentLimit = 50
	maxEnrollmentLimit     = 200
)

const (
	enrollErrRecordNotFound  = "Record not found"
	enrollErrNoEmail         = "No email address"
	enrollErrAlreadyEnrolled = "Already enrolled"
)

type EnrollmentUseCase struct {
	Sequences   SequenceRepositoryInterface
	Enrollments EnrollmentRepositoryInterface
	Records     RecordRepositoryInterface
	Now         func() time.Time
}

func NewEnrollmentUseCase(sequences SequenceRepositoryInterface, enrollments EnrollmentRepositoryInterface, records RecordRepositoryInterface) *EnrollmentUseCase {
	return &EnrollmentUseCase{
		Sequences:   sequences,
		Enrollments: enrollments,
		Records:     records,
		Now:         time.Now,
	}
}

func (uc *EnrollmentUseCase) loadSequence(ctx context.Context, profile *entity.Profile, sequenceID string) (*entity.Sequence, error) {
	if _, err := uuid.Parse(sequenceID); err != nil {
		return nil, ErrSequenceNotFound
	}
	seq, err := uc.Sequences.FindByID(ctx, profile.OrganizationID, sequenceID)
	if err != nil {
		if errors.Is(err, entity.ErrNotFound) {
			return nil, ErrSequenceNotFound
		}
		return nil, NewTechnicalError("DB_ERROR", "failed to load sequence", err)
	}
	return seq, nil
}

func (uc *EnrollmentUseCase) List(ctx context.Context, profile *entity.Profile, sequenceID string, input ListEnrollmentsInput) (*ListEnrollmentsOutput, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}
	if _, err := uc.loadSequence(ctx, profile, sequenceID); err != nil {
		return nil, err
	}

	limit := input.Limit
	if limit <= 0 {
		limit = defaultEnrollmentLimit
	}
	if limit > maxEnrollmentLimit {
		limit = maxEnrollmentLimit
	}

	items, total, err := uc.Enrollments.List(ctx, profile.OrganizationID, sequenceID, entity.EnrollmentStatus(input.Status), limit, input.Offset)
	if err != nil {
		return nil, NewTechnicalError("DB_ERROR", "failed to list enrollments", err)
	}
	if items == nil {
		items = []entity.Enrollment{}
	}

	return &ListEnrollmentsOutput{Enrollments: items, Total: total, Limit: limit, Offset: input.Offset}, nil
}

// Enroll inscreve os records válidos e devolve um erro por record recusado.
// Uma recusa individual não impede as demais inscrições.
func (uc *EnrollmentUseCase) Enroll(ctx context.Context, profile *entity.Profile, sequenceID string, input EnrollInput) (*EnrollOutput, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}
	if _, err := uc.loadSequence(ctx, profile, sequenceID); err != nil {
		return nil, err
	}

	ids := dedupe(input.RecordIDs)

	records, err := uc.Records.FindByIDs(ctx, profile.OrganizationID, validUUIDs(ids))
	if err != nil {
		return nil, NewTechnicalError("DB_ERROR", "failed to load records", err)
	}
	open, err := uc.Enrollments.FindOpenRecordIDs(ctx, sequenceID, validUUIDs(ids))
	if err != nil {
		return nil, NewTechnicalError("DB_ERROR", "failed to load enrollments", err)
	}
	steps, err := uc.Sequences.ListSteps(ctx, sequenceID)
	if err != nil {
		return nil, NewTechnicalError("DB_ERROR", "failed to load sequence steps", err)
	}

	now := uc.Now()
	nextSendAt := now
	if len(steps) > 0 {
		nextSendAt = now.Add(steps[0].Delay())
	}

	out := &EnrollOutput{Enrollments: []entity.Enrollment{}, Errors: []EnrollError{}}
	for _, id := range ids {
		rec, ok := records[id]
		switch {
		case !ok:
			out.Errors = append(out.Errors, EnrollError{RecordID: id, Error: enrollErrRecordNotFound})
			continue
		case strings.TrimSpace(rec.Email) == "":
			out.Errors = append(out.Errors, EnrollError{RecordID: id, Error: enrollErrNoEmail})
			continue
		case open[id]:
			out.Errors = append(out.Errors, EnrollError{RecordID: id, Error: enrollErrAlreadyEnrolled})
			continue
		}

		send := nextSendAt
		e := &entity.Enrollment{
			ID:             uuid.New().String(),
			SequenceID:     sequenceID,
			RecordID:       id,
			OrganizationID: profile.OrganizationID,
			Status:         entity.EnrollmentActive,
			NextSendAt:     &send,
			EnrolledBy:     profile.UserID,
			EnrolledAt:     now,
			UpdatedAt:      now,
		}
		created, err := uc.Enrollments.Create(ctx, e)
		if err != nil {
			logger.LogError(logger.Get(), "usecase", "EnrollmentUseCase.Enroll", "falha ao inscrever record", id, err)
			out.Errors = append(out.Errors, EnrollError{RecordID: id, Error: "Failed to enroll"})
			continue
		}
		if !created {
			out.Errors = append(out.Errors, EnrollError{RecordID: id, Error: enrollErrAlreadyEnrolled})
			continue
		}
		e.RecordName = rec.Name
		e.RecordEmail = rec.Email
		out.Enrollments = append(out.Enrollments, *e)
	}
	out.Enrolled = len(out.Enrollments)

	return out, nil
}

func (uc *EnrollmentUseCase) BulkAction(ctx context.Context, profile *entity.Profile, sequenceID string, input BulkEnrollmentInput) (*BulkEnrollmentOutput, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}
	action := entity.EnrollmentAction(input.Action)
	switch action {
	case entity.ActionPause, entity.ActionResume, entity.ActionExit:
	default:
		return nil, ErrInvalidAction
	}
	if _, err := uc.loadSequence(ctx, profile, sequenceID); err != nil {
		return nil, err
	}

	updated, err := uc.Enrollments.ApplyAction(ctx, profile.OrganizationID, sequenceID, validUUIDs(dedupe(input.EnrollmentIDs)), action, uc.Now())
	if err != nil {
		return nil, NewTechnicalError("DB_ERROR", "failed to update enrollments", err)
	}
	return &BulkEnrollmentOutput{Updated: updated}, nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if _, ok := seen[id]; ok || id == "" {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// validUUIDs evita erro de cast no Postgres; ids inválidos viram "não encontrado".
func validUUIDs(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, err := uuid.Parse(id); err == nil {
			out = append(out, id)
		}
	}
	return out
}
