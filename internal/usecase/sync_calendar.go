package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/xavierca1/ligue-crm/internal/entity"
	"github.com/xavierca1/ligue-crm/internal/infra/logger"
)

// Janela fixa do sync completo.
const (
	syncWindowPastMonths   = 1
	syncWindowFutureMonths = 6
)

type SyncCalendarUseCase struct {
	Connections CalendarConnectionRepositoryInterface
	Calendars   CalendarRepositoryInterface
	Events      CalendarEventRepositoryInterface
	States      SyncStateRepositoryInterface
	Providers   CalendarProviderFactory
	Locker      SyncLocker
	Now         func() time.Time
}

func NewSyncCalendarUseCase(
	connections CalendarConnectionRepositoryInterface,
	calendars CalendarRepositoryInterface,
	events CalendarEventRepositoryInterface,
	states SyncStateRepositoryInterface,
	providers CalendarProviderFactory,
	locker SyncLocker,
) *SyncCalendarUseCase {
	return &SyncCalendarUseCase{
		Connections: connections,
		Calendars:   calendars,
		Events:      events,
		States:      states,
		Providers:   providers,
		Locker:      locker,
		Now:         time.Now,
	}
}

func SyncWindow(now time.Time) (time.Time, time.Time) {
	return now.AddDate(0, -syncWindowPastMonths, 0), now.AddDate(0, syncWindowFutureMonths, 0)
}

// Execute sincroniza calendários e eventos da conexão. Falha num calendário é
// logada e o sync segue; o estado é persistido sempre, inclusive em erro.
func (uc *SyncCalendarUseCase) Execute(ctx context.Context, profile *entity.Profile, input SyncCalendarInput) (out *SyncCalendarOutput, err error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}

	conn, err := uc.Connections.FindByID(ctx, profile.OrganizationID, input.ConnectionID)
	if err != nil {
		if errors.Is(err, entity.ErrNotFound) {
			return nil, ErrConnectionNotFound
		}
		return nil, NewTechnicalError("DB_ERROR", "failed to load connection", err)
	}

	if uc.Locker != nil {
		release, err := uc.Locker.Acquire(ctx, "calendar-sync:"+conn.ID)
		if err != nil {
			if errors.Is(err, entity.ErrLockNotObtained) {
				return nil, ErrSyncInProgress
			}
			return nil, NewTechnicalError("LOCK_ERROR", "failed to acquire sync lock", err)
		}
		defer release()
	}

	provider, err := uc.Providers.ForConnection(ctx, conn)
	if err != nil {
		return nil, NewTechnicalError("PROVIDER_ERROR", "failed to build calendar provider", err)
	}

	state, err := uc.States.Get(ctx, conn.ID)
	switch {
	case errors.Is(err, entity.ErrNotFound):
		state = entity.NewSyncState(conn)
	case err != nil:
		return nil, NewTechnicalError("DB_ERROR", "failed to load sync state", err)
	}

	now := uc.Now()
	log := logger.Get().WithFields(logrus.Fields{
		"connection_id": conn.ID,
		"provider":      conn.Provider,
		"full_sync":     input.FullSync,
	})

	// Começa como failed; só sobrescreve no fim do caminho feliz.
	state.Status = entity.SyncFailed
	state.LastSyncAt = &now
	defer func() {
		if err != nil {
			state.Error = err.Error()
		}
		if saveErr := uc.States.Save(context.WithoutCancel(ctx), state); saveErr != nil {
			logger.LogError(logger.Get(), "usecase", "SyncCalendarUseCase.Execute", "falha ao salvar sync state", conn.ID, saveErr)
		}
	}()

	remote, err := provider.ListCalendars(ctx)
	if err != nil {
		return nil, NewTechnicalError("PROVIDER_ERROR", "failed to list calendars", err)
	}

	calendars := make([]*entity.Calendar, 0, len(remote))
	for _, rc := range remote {
		cal := &entity.Calendar{
			ConnectionID:   conn.ID,
			OrganizationID: conn.OrganizationID,
			ExternalID:     rc.ExternalID,
			Name:           rc.Name,
			Color:          rc.Color,
			TimeZone:       rc.TimeZone,
			IsPrimary:      rc.IsPrimary,
		}
		if err := uc.Calendars.Upsert(ctx, cal); err != nil {
			return nil, NewTechnicalError("DB_ERROR", "failed to save calendar", err)
		}
		calendars = append(calendars, cal)
	}

	incremental, supportsDelta := provider.(IncrementalCalendarProvider)
	windowStart, windowEnd := SyncWindow(now)

	// Sync completo recalcula todos os cursores; incremental só avança.
	cursors := map[string]string{}
	if !input.FullSync {
		for k, v := range state.Cursors {
			cursors[k] = v
		}
	}

	var (
		eventsSynced    int
		calendarsSynced int
		failed          []string
	)
	selected := selectCalendars(calendars)
	for _, cal := range selected {
		calLog := log.WithField("calendar", cal.ExternalID)
		cursor := state.Cursors[cal.ExternalID]
		useDelta := !input.FullSync && supportsDelta && cursor != ""

		var page *entity.EventPage
		var listErr error
		if useDelta {
			page, listErr = incremental.ListChanges(ctx, cal.ExternalID, cursor)
			if errors.Is(listErr, entity.ErrCursorExpired) {
				calLog.Warn("cursor expirado, refazendo janela completa")
				delete(cursors, cal.ExternalID)
				useDelta = false
			}
		}
		if !useDelta {
			page, listErr = provider.ListEvents(ctx, cal.ExternalID, windowStart, windowEnd)
		}
		if listErr != nil {
			logger.LogError(logger.Get(), "usecase", "SyncCalendarUseCase.Execute", "falha ao listar eventos do calendário", cal.ExternalID, listErr)
			failed = append(failed, cal.Name)
			continue
		}

		n, err := uc.upsertEvents(ctx, conn, cal, page.Events, !useDelta, windowStart, windowEnd)
		eventsSynced += n
		if err != nil {
			logger.LogError(logger.Get(), "usecase", "SyncCalendarUseCase.Execute", "falha ao gravar eventos do calendário", cal.ExternalID, err)
			failed = append(failed, cal.Name)
			continue
		}

		if page.NextCursor != "" {
			cursors[cal.ExternalID] = page.NextCursor
		}
		if err := uc.Calendars.MarkSynced(ctx, cal.ID, now); err != nil {
			calLog.WithError(err).Warn("falha ao marcar calendário como sincronizado")
		}
		calendarsSynced++
		calLog.WithField("events", n).Debug("calendário sincronizado")
	}

	state.Cursors = cursors
	state.EventsSynced = eventsSynced
	state.CalendarsSynced = calendarsSynced
	state.Error = ""
	if input.FullSync {
		state.LastFullSyncAt = &now
	}
	switch {
	case len(failed) == 0:
		state.Status = entity.SyncSuccess
	case calendarsSynced > 0:
		state.Status = entity.SyncPartial
		state.Error = "failed calendars: " + strings.Join(failed, ", ")
	default:
		state.Status = entity.SyncFailed
		state.Error = "failed calendars: " + strings.Join(failed, ", ")
	}

	log.WithFields(logrus.Fields{
		"status":           state.Status,
		"events_synced":    eventsSynced,
		"calendars_synced": calendarsSynced,
	}).Info("sync de calendário finalizado")

	return &SyncCalendarOutput{
		Success:        state.Status != entity.SyncFailed,
		EventsSynced:   eventsSynced,
		CalendarsCount: len(calendars),
	}, nil
}

func (uc *SyncCalendarUseCase) upsertEvents(ctx context.Context, conn *entity.CalendarConnection, cal *entity.Calendar, events []entity.ProviderEvent, inWindowOnly bool, from, to time.Time) (int, error) {
	count := 0
	for _, pe := range events {
		ev := &entity.CalendarEvent{
			ConnectionID:      conn.ID,
			CalendarID:        cal.ID,
			OrganizationID:    conn.OrganizationID,
			ExternalID:        pe.ExternalID,
			Title:             pe.Title,
			Description:       pe.Description,
			Location:          pe.Location,
			Status:            pe.Status,
			StartsAt:          pe.StartsAt,
			EndsAt:            pe.EndsAt,
			AllDay:            pe.AllDay,
			Attendees:         pe.Attendees,
			HTMLLink:          pe.HTMLLink,
			ExternalUpdatedAt: pe.UpdatedAt,
		}
		if ev.Status == "" {
			ev.Status = entity.EventConfirmed
		}
		if inWindowOnly && !ev.Overlaps(from, to) {
			continue
		}
		if err := uc.Events.Upsert(ctx, ev); err != nil {
			return count, fmt.Errorf("event %s: %w", pe.ExternalID, err)
		}
		count++
	}
	return count, nil
}

// selectCalendars usa os calendários marcados; sem nenhum, cai no primário
// e depois no primeiro da lista.
func selectCalendars(calendars []*entity.Calendar) []*entity.Calendar {
	var selected []*entity.Calendar
	for _, c := range calendars {
		if c.IsSelected {
			selected = append(selected, c)
		}
	}
	if len(selected) > 0 {
		return selected
	}
	for _, c := range calendars {
		if c.IsPrimary {
			return []*entity.Calendar{c}
		}
	}
	if len(calendars) > 0 {
		return calendars[:1]
	}
	return nil
}

type GetSyncStateUseCase struct {
	Connections CalendarConnectionRepositoryInterface
	Calendars   CalendarRepositoryInterface
	States      SyncStateRepositoryInterface
}

func NewGetSyncStateUseCase(connections CalendarConnectionRepositoryInterface, calendars CalendarRepositoryInterface, states SyncStateRepositoryInterface) *GetSyncStateUseCase {
	return &GetSyncStateUseCase{Connections: connections, Calendars: calendars, States: states}
}

func (uc *GetSyncStateUseCase) Execute(ctx context.Context, profile *entity.Profile, connectionID string) (*SyncStateOutput, error) {
	if err := validateInput(SyncCalendarInput{ConnectionID: connectionID}); err != nil {
		return nil, err
	}

	conn, err := uc.Connections.FindByID(ctx, profile.OrganizationID, connectionID)
	if err != nil {
		if errors.Is(err, entity.ErrNotFound) {
			return nil, ErrConnectionNotFound
		}
		return nil, NewTechnicalError("DB_ERROR", "failed to load connection", err)
	}

	state, err := uc.States.Get(ctx, conn.ID)
	switch {
	case errors.Is(err, entity.ErrNotFound):
		state = entity.NewSyncState(conn)
	case err != nil:
		return nil, NewTechnicalError("DB_ERROR", "failed to load sync state", err)
	}

	calendars, err := uc.Calendars.ListByConnection(ctx, conn.ID)
	if err != nil {
		return nil, NewTechnicalError("DB_ERROR", "failed to list calendars", err)
	}
	if calendars == nil {
		calendars = []entity.Calendar{}
	}

	return &SyncStateOutput{SyncState: state, Calendars: calendars}, nil
}
