package usecase

import (
	"context"
	"io"
	"time"

	"github.com/xavierca1/ligue-crm/internal/entity"
)

type RecordRepositoryInterface interface {
	FindByID(ctx context.Context, orgID, id string) (*entity.Record, error)
	FindByIDs(ctx context.Context, orgID string, ids []string) (map[string]*entity.Record, error)
	// ApplyStageChange grava o patch numa transação e devolve a linha gravada,
	// falhando com entity.ErrStageConflict se o estágio atual não for mais FromStage.
	ApplyStageChange(ctx context.Context, patch entity.StagePatch) (*entity.Record, error)
}

type StageRepositoryInterface interface {
	ListByRecordType(ctx context.Context, orgID string, recordType entity.RecordType) (entity.StageCatalog, error)
}

type GateRepositoryInterface interface {
	FindByStage(ctx context.Context, orgID string, recordType entity.RecordType, stageKey string) (*entity.StageGate, error)
	Upsert(ctx context.Context, gate *entity.StageGate) error
}

type EventPublisher interface {
	PublishStageChanged(ctx context.Context, change entity.StageChange) error
}

type CalendarConnectionRepositoryInterface interface {
	FindByID(ctx context.Context, orgID, id string) (*entity.CalendarConnection, error)
	UpdateTokens(ctx context.Context, conn *entity.CalendarConnection) error
}

type CalendarRepositoryInterface interface {
	Upsert(ctx context.Context, cal *entity.Calendar) error
	ListByConnection(ctx context.Context, connectionID string) ([]entity.Calendar, error)
	MarkSynced(ctx context.Context, id string, at time.Time) error
}

type CalendarEventRepositoryInterface interface {
	Upsert(ctx context.Context, ev *entity.CalendarEvent) error
}

type SyncStateRepositoryInterface interface {
	Get(ctx context.Context, connectionID string) (*entity.SyncState, error)
	Save(ctx context.Context, state *entity.SyncState) error
}

// CalendarProvider é o adapter mínimo: listar calendários e eventos numa janela.
type CalendarProvider interface {
	ListCalendars(ctx context.Context) ([]entity.ProviderCalendar, error)
	ListEvents(ctx context.Context, calendarID string, from, to time.Time) (*entity.EventPage, error)
}

// IncrementalCalendarProvider é implementado por adapters com delta/sync token.
type IncrementalCalendarProvider interface {
	CalendarProvider
	ListChanges(ctx context.Context, calendarID, cursor string) (*entity.EventPage, error)
}

type CalendarProviderFactory interface {
	ForConnection(ctx context.Context, conn *entity.CalendarConnection) (CalendarProvider, error)
}

type SyncLocker interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}

type SequenceRepositoryInterface interface {
	FindByID(ctx context.Context, orgID, id string) (*entity.Sequence, error)
	ListSteps(ctx context.Context, sequenceID string) ([]entity.SequenceStep, error)
}

type EnrollmentRepositoryInterface interface {
	List(ctx context.Context, orgID, sequenceID string, status entity.EnrollmentStatus, limit, offset int) ([]entity.Enrollment, int, error)
	FindOpenRecordIDs(ctx context.Context, sequenceID string, recordIDs []string) (map[string]bool, error)
	// Create devolve false quando já existe inscrição ativa ou pausada.
	Create(ctx context.Context, e *entity.Enrollment) (bool, error)
	ApplyAction(ctx context.Context, orgID, sequenceID string, ids []string, action entity.EnrollmentAction, at time.Time) (int64, error)
	ListDue(ctx context.Context, now time.Time, limit int) ([]entity.DueEnrollment, error)
	Advance(ctx context.Context, e *entity.Enrollment) error
}

type SentEmailRepositoryInterface interface {
	Create(ctx context.Context, sent *entity.SentEmail) error
}

type SequenceMailer interface {
	SendSequenceStep(ctx context.Context, to, subject, htmlBody string) error
}

type DocumentRepositoryInterface interface {
	Create(ctx context.Context, doc *entity.Document) error
	ListByRecord(ctx context.Context, orgID, recordID string) ([]entity.Document, error)
}

type ObjectStorage interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Remove(ctx context.Context, key string) error
	PresignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
}

type WonDealMirror interface {
	MirrorWonDeal(ctx context.Context, change entity.StageChange) (int, error)
}
