package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/xavierca1/ligue-crm/internal/entity"
)

type CalendarConnectionRepository struct {
	DB *sql.DB
}

func NewCalendarConnectionRepository(db *sql.DB) *CalendarConnectionRepository {
	return &CalendarConnectionRepository{DB: db}
}

// FindByID filtra pelo tenant: conexão de outra organização é "não encontrada".
func (r *CalendarConnectionRepository) FindByID(ctx context.Context, orgID, id string) (*entity.CalendarConnection, error) {
	query := `
		SELECT id, organization_id, user_id, provider, account_email, access_token, refresh_token,
		       token_expiry, created_at, updated_at
		FROM calendar_connections
		WHERE id = $1 AND organization_id = $2
	`
	var (
		c      entity.CalendarConnection
		expiry sql.NullTime
	)
	err := r.DB.QueryRowContext(ctx, query, id, orgID).Scan(
		&c.ID, &c.OrganizationID, &c.UserID, &c.Provider, &c.AccountEmail, &c.AccessToken, &c.RefreshToken,
		&expiry, &c.CreatedAt, &c.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, entity.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	c.TokenExpiry = timePtr(expiry)
	return &c, nil
}

func (r *CalendarConnectionRepository) UpdateTokens(ctx context.Context, conn *entity.CalendarConnection) error {
	query := `
		UPDATE calendar_connections
		SET access_token = $2, refresh_token = $3, token_expiry = $4, updated_at = NOW()
		WHERE id = $1
	`
	_, err := r.DB.ExecContext(ctx, query, conn.ID, conn.AccessToken, conn.RefreshToken, conn.TokenExpiry)
	return err
}

type CalendarRepository struct {
	DB *sql.DB
}

func NewCalendarRepository(db *sql.DB) *CalendarRepository {
	return &CalendarRepository{DB: db}
}

// Upsert atualiza os metadados vindos do provedor e preserva is_selected,
// que é escolha do usuário. Devolve id e is_selected no próprio struct.
func (r *CalendarRepository) Upsert(ctx context.Context, cal *entity.Calendar) error {
	query := `
		INSERT INTO calendars (connection_id, organization_id, external_id, name, color, time_zone, is_primary)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (connection_id, external_id)
		DO UPDATE SET
			name = EXCLUDED.name,
			color = EXCLUDED.color,
			time_zone = EXCLUDED.time_zone,
			is_primary = EXCLUDED.is_primary,
			updated_at = NOW()
		RETURNING id, is_selected, created_at, updated_at
	`
	return r.DB.QueryRowContext(ctx, query,
		cal.ConnectionID,
		cal.OrganizationID,
		cal.ExternalID,
		cal.Name,
		nullString(cal.Color),
		nullString(cal.TimeZone),
		cal.IsPrimary,
	).Scan(&cal.ID, &cal.IsSelected, &cal.CreatedAt, &cal.UpdatedAt)
}

func (r *CalendarRepository) ListByConnection(ctx context.Context, connectionID string) ([]entity.Calendar, error) {
	query := `
		SELECT id, connection_id, organization_id, external_id, name, color, time_zone,
		       is_primary, is_selected, last_synced_at, created_at, updated_at
		FROM calendars
		WHERE connection_id = $1
		ORDER BY is_primary DESC, name
	`
	rows, err := r.DB.QueryContext(ctx, query, connectionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []entity.Calendar
	for rows.Next() {
		var (
			c               entity.Calendar
			color, timeZone sql.NullString
			lastSynced      sql.NullTime
		)
		if err := rows.Scan(&c.ID, &c.ConnectionID, &c.OrganizationID, &c.ExternalID, &c.Name, &color, &timeZone,
			&c.IsPrimary, &c.IsSelected, &lastSynced, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		c.Color = stringOrEmpty(color)
		c.TimeZone = stringOrEmpty(timeZone)
		c.LastSyncedAt = timePtr(lastSynced)
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *CalendarRepository) MarkSynced(ctx context.Context, id string, at time.Time) error {
	_, err := r.DB.ExecContext(ctx, `UPDATE calendars SET last_synced_at = $2 WHERE id = $1`, id, at)
	return err
}

type CalendarEventRepository struct {
	DB *sql.DB
}

func NewCalendarEventRepository(db *sql.DB) *CalendarEventRepository {
	return &CalendarEventRepository{DB: db}
}

// Upsert pela chave natural (connection_id, external_id); a última escrita vence.
func (r *CalendarEventRepository) Upsert(ctx context.Context, ev *entity.CalendarEvent) error {
	attendees := ev.Attendees
	if attendees == nil {
		attendees = []string{}
	}
	rawAttendees, err := json.Marshal(attendees)
	if err != nil {
		return err
	}

	var startsAt, endsAt *time.Time
	if !ev.StartsAt.IsZero() {
		startsAt = &ev.StartsAt
	}
	if !ev.EndsAt.IsZero() {
		endsAt = &ev.EndsAt
	}

	query := `
		INSERT INTO calendar_events (
			connection_id, calendar_id, organization_id, external_id, title, description, location,
			status, starts_at, ends_at, all_day, attendees, html_link, external_updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12::jsonb, $13, $14)
		ON CONFLICT (connection_id, external_id)
		DO UPDATE SET
			calendar_id = EXCLUDED.calendar_id,
			title = EXCLUDED.title,
			description = EXCLUDED.description,
			location = EXCLUDED.location,
			status = EXCLUDED.status,
			starts_at = EXCLUDED.starts_at,
			ends_at = EXCLUDED.ends_at,
			all_day = EXCLUDED.all_day,
			attendees = EXCLUDED.attendees,
			html_link = EXCLUDED.html_link,
			external_updated_at = EXCLUDED.external_updated_at,
			updated_at = NOW()
		RETURNING id, created_at, updated_at
	`
	return r.DB.QueryRowContext(ctx, query,
		ev.ConnectionID,
		ev.CalendarID,
		ev.OrganizationID,
		ev.ExternalID,
		ev.Title,
		nullString(ev.Description),
		nullString(ev.Location),
		ev.Status,
		startsAt,
		endsAt,
		ev.AllDay,
		string(rawAttendees),
		nullString(ev.HTMLLink),
		ev.ExternalUpdatedAt,
	).Scan(&ev.ID, &ev.CreatedAt, &ev.UpdatedAt)
}

type SyncStateRepository struct {
	DB *sql.DB
}

func NewSyncStateRepository(db *sql.DB) *SyncStateRepository {
	return &SyncStateRepository{DB: db}
}

func (r *SyncStateRepository) Get(ctx context.Context, connectionID string) (*entity.SyncState, error) {
	query := `
		SELECT connection_id, organization_id, cursors, status, error, events_synced, calendars_synced,
		       last_sync_at, last_full_sync_at, updated_at
		FROM calendar_sync_state
		WHERE connection_id = $1
	`
	var (
		s                      entity.SyncState
		rawCursors             []byte
		syncErr                sql.NullString
		lastSync, lastFullSync sql.NullTime
	)
	err := r.DB.QueryRowContext(ctx, query, connectionID).Scan(
		&s.ConnectionID, &s.OrganizationID, &rawCursors, &s.Status, &syncErr, &s.EventsSynced, &s.CalendarsSynced,
		&lastSync, &lastFullSync, &s.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, entity.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	s.Cursors = map[string]string{}
	if len(rawCursors) > 0 {
		if err := json.Unmarshal(rawCursors, &s.Cursors); err != nil {
			return nil, err
		}
	}
	s.Error = stringOrEmpty(syncErr)
	s.LastSyncAt = timePtr(lastSync)
	s.LastFullSyncAt = timePtr(lastFullSync)
	return &s, nil
}

func (r *SyncStateRepository) Save(ctx context.Context, state *entity.SyncState) error {
	cursors := state.Cursors
	if cursors == nil {
		cursors = map[string]string{}
	}
	rawCursors, err := json.Marshal(cursors)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO calendar_sync_state (
			connection_id, organization_id, cursors, status, error, events_synced, calendars_synced,
			last_sync_at, last_full_sync_at, updated_at
		)
		VALUES ($1, $2, $3::jsonb, $4, $5, $6, $7, $8, $9, NOW())
		ON CONFLICT (connection_id)
		DO UPDATE SET
			cursors = EXCLUDED.cursors,
			status = EXCLUDED.status,
			error = EXCLUDED.error,
			events_synced = EXCLUDED.events_synced,
			calendars_synced = EXCLUDED.calendars_synced,
			last_sync_at = EXCLUDED.last_sync_at,
			last_full_sync_at = COALESCE(EXCLUDED.last_full_sync_at, calendar_sync_state.last_full_sync_at),
			updated_at = NOW()
		RETURNING updated_at
	`
	return r.DB.QueryRowContext(ctx, query,
		state.ConnectionID,
		state.OrganizationID,
		string(rawCursors),
		state.Status,
		nullString(state.Error),
		state.EventsSynced,
		state.CalendarsSynced,
		state.LastSyncAt,
		state.LastFullSyncAt,
	).Scan(&state.UpdatedAt)
}
