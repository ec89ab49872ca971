package usecase

import (
	"context"
	"io"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/xavierca1/ligue-crm/internal/entity"
)

const (
	orgID      = "0b5a3f52-4d8e-4d1e-9f1a-7c8e2b1d0a01"
	recordID   = "5f0c6a3e-1f7a-4a53-9d6f-3c2a0f8a1b01"
	recordID2  = "5f0c6a3e-1f7a-4a53-9d6f-3c2a0f8a1b02"
	recordID3  = "5f0c6a3e-1f7a-4a53-9d6f-3c2a0f8a1b03"
	sequenceID = "9a1d2c3b-8e7f-4a6b-b5c4-d3e2f1a0b9c8"
	connID     = "c0ffee00-1234-4abc-8def-0123456789ab"
)

func testProfile(role string) *entity.Profile {
	return &entity.Profile{ID: "p-1", UserID: "user-1", OrganizationID: orgID, Role: role}
}

// MockRecordRepository
type MockRecordRepository struct {
	mock.Mock
}

func (m *MockRecordRepository) FindByID(ctx context.Context, org, id string) (*entity.Record, error) {
	args := m.Called(ctx, org, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Record), args.Error(1)
}

func (m *MockRecordRepository) FindByIDs(ctx context.Context, org string, ids []string) (map[string]*entity.Record, error) {
	args := m.Called(ctx, org, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]*entity.Record), args.Error(1)
}

func (m *MockRecordRepository) ApplyStageChange(ctx context.Context, patch entity.StagePatch) (*entity.Record, error) {
	args := m.Called(ctx, patch)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Record), args.Error(1)
}

// MockStageRepository
type MockStageRepository struct {
	mock.Mock
}

func (m *MockStageRepository) ListByRecordType(ctx context.Context, org string, recordType entity.RecordType) (entity.StageCatalog, error) {
	args := m.Called(ctx, org, recordType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(entity.StageCatalog), args.Error(1)
}

// MockGateRepository
type MockGateRepository struct {
	mock.Mock
}

func (m *MockGateRepository) FindByStage(ctx context.Context, org string, recordType entity.RecordType, stageKey string) (*entity.StageGate, error) {
	args := m.Called(ctx, org, recordType, stageKey)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.StageGate), args.Error(1)
}

func (m *MockGateRepository) Upsert(ctx context.Context, gate *entity.StageGate) error {
	args := m.Called(ctx, gate)
	return args.Error(0)
}

// MockEventPublisher
type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) PublishStageChanged(ctx context.Context, change entity.StageChange) error {
	args := m.Called(ctx, change)
	return args.Error(0)
}

// MockSequenceRepository
type MockSequenceRepository struct {
	mock.Mock
}

func (m *MockSequenceRepository) FindByID(ctx context.Context, org, id string) (*entity.Sequence, error) {
	args := m.Called(ctx, org, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Sequence), args.Error(1)
}

func (m *MockSequenceRepository) ListSteps(ctx context.Context, id string) ([]entity.SequenceStep, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.SequenceStep), args.Error(1)
}

// MockEnrollmentRepository
type MockEnrollmentRepository struct {
	mock.Mock
}

func (m *MockEnrollmentRepository) List(ctx context.Context, org, seqID string, status entity.EnrollmentStatus, limit, offset int) ([]entity.Enrollment, int, error) {
	args := m.Called(ctx, org, seqID, status, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]entity.Enrollment), args.Int(1), args.Error(2)
}

func (m *MockEnrollmentRepository) FindOpenRecordIDs(ctx context.Context, seqID string, ids []string) (map[string]bool, error) {
	args := m.Called(ctx, seqID, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]bool), args.Error(1)
}

func (m *MockEnrollmentRepository) Create(ctx context.Context, e *entity.Enrollment) (bool, error) {
	args := m.Called(ctx, e)
	return args.Bool(0), args.Error(1)
}

func (m *MockEnrollmentRepository) ApplyAction(ctx context.Context, org, seqID string, ids []string, action entity.EnrollmentAction, at time.Time) (int64, error) {
	args := m.Called(ctx, org, seqID, ids, action, at)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockEnrollmentRepository) ListDue(ctx context.Context, now time.Time, limit int) ([]entity.DueEnrollment, error) {
	args := m.Called(ctx, now, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.DueEnrollment), args.Error(1)
}

func (m *MockEnrollmentRepository) Advance(ctx context.Context, e *entity.Enrollment) error {
	args := m.Called(ctx, e)
	return args.Error(0)
}

// MockSentEmailRepository
type MockSentEmailRepository struct {
	mock.Mock
}

func (m *MockSentEmailRepository) Create(ctx context.Context, sent *entity.SentEmail) error {
	args := m.Called(ctx, sent)
	return args.Error(0)
}

// MockMailer
type MockMailer struct {
	mock.Mock
}

func (m *MockMailer) SendSequenceStep(ctx context.Context, to, subject, body string) error {
	args := m.Called(ctx, to, subject, body)
	return args.Error(0)
}

// MockDocumentRepository
type MockDocumentRepository struct {
	mock.Mock
}

func (m *MockDocumentRepository) Create(ctx context.Context, doc *entity.Document) error {
	args := m.Called(ctx, doc)
	return args.Error(0)
}

func (m *MockDocumentRepository) ListByRecord(ctx context.Context, org, recID string) ([]entity.Document, error) {
	args := m.Called(ctx, org, recID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.Document), args.Error(1)
}

// MockStorage
type MockStorage struct {
	mock.Mock
}

func (m *MockStorage) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	args := m.Called(ctx, key, r, size, contentType)
	return args.Error(0)
}

func (m *MockStorage) Remove(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func (m *MockStorage) PresignedURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	args := m.Called(ctx, key, ttl)
	return args.String(0), args.Error(1)
}

// MockWonDealMirror
type MockWonDealMirror struct {
	mock.Mock
}

func (m *MockWonDealMirror) MirrorWonDeal(ctx context.Context, change entity.StageChange) (int, error) {
	args := m.Called(ctx, change)
	return args.Int(0), args.Error(1)
}
