package entity

import (
	"errors"
	"time"
)

var (
	// ErrCursorExpired indica que o provedor invalidou o sync token (Google devolve 410).
	ErrCursorExpired   = errors.New("sync cursor expired")
	ErrLockNotObtained = errors.New("lock not obtained")
	ErrUnknownProvider = errors.New("unknown calendar provider")
)

type CalendarProviderName string

const (
	ProviderGoogle    CalendarProviderName = "google"
	ProviderMicrosoft CalendarProviderName = "microsoft"
)

type CalendarConnection struct {
	ID             string               `json:"id"`
	OrganizationID string               `json:"organization_id"`
	UserID         string               `json:"user_id"`
	Provider       CalendarProviderName `json:"provider"`
	AccountEmail   string               `json:"account_email"`
	AccessToken    string               `json:"-"`
	RefreshToken   string               `json:"-"`
	TokenExpiry    *time.Time           `json:"-"`
	CreatedAt      time.Time            `json:"created_at"`
	UpdatedAt      time.Time            `json:"updated_at"`
}

type Calendar struct {
	ID             string     `json:"id"`
	ConnectionID   string     `json:"connection_id"`
	OrganizationID string     `json:"organization_id"`
	ExternalID     string     `json:"external_id"`
	Name           string     `json:"name"`
	Color          string     `json:"color,omitempty"`
	TimeZone       string     `json:"time_zone,omitempty"`
	IsPrimary      bool       `json:"is_primary"`
	IsSelected     bool       `json:"is_selected"`
	LastSyncedAt   *time.Time `json:"last_synced_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

type EventStatus string

const (
	EventConfirmed EventStatus = "confirmed"
	EventTentative EventStatus = "tentative"
	EventCancelled EventStatus = "cancelled"
)

// CalendarEvent é o item externo espelhado. Chave natural: (ConnectionID, ExternalID).
type CalendarEvent struct {
	ID                string      `json:"id"`
	ConnectionID      string      `json:"connection_id"`
	CalendarID        string      `json:"calendar_id"`
	OrganizationID    string      `json:"organization_id"`
	ExternalID        string      `json:"external_id"`
	Title             string      `json:"title"`
	Description       string      `json:"description,omitempty"`
	Location          string      `json:"location,omitempty"`
	Status            EventStatus `json:"status"`
	StartsAt          time.Time   `json:"starts_at"`
	EndsAt            time.Time   `json:"ends_at"`
	AllDay            bool        `json:"all_day"`
	Attendees         []string    `json:"attendees"`
	HTMLLink          string      `json:"html_link,omitempty"`
	ExternalUpdatedAt *time.Time  `json:"external_updated_at,omitempty"`
	CreatedAt         time.Time   `json:"created_at"`
	UpdatedAt         time.Time   `json:"updated_at"`
}

// Overlaps considera eventos sem fim como pontuais.
func (e CalendarEvent) Overlaps(from, to time.Time) bool {
	end := e.EndsAt
	if end.IsZero() {
		end = e.StartsAt
	}
	return !end.Before(from) && !e.StartsAt.After(to)
}

// ProviderCalendar e ProviderEvent são o formato neutro devolvido pelos adapters.
type ProviderCalendar struct {
	ExternalID string
	Name       string
	Color      string
	TimeZone   string
	IsPrimary  bool
}

type ProviderEvent struct {
	ExternalID  string
	Title       string
	Description string
	Location    string
	Status      EventStatus
	StartsAt    time.Time
	EndsAt      time.Time
	AllDay      bool
	Attendees   []string
	HTMLLink    string
	UpdatedAt   *time.Time
}

type EventPage struct {
	Events     []ProviderEvent
	NextCursor string
}

type SyncStatus string

const (
	SyncNever   SyncStatus = "never"
	SyncSuccess SyncStatus = "success"
	SyncPartial SyncStatus = "partial"
	SyncFailed  SyncStatus = "failed"
)

// SyncState guarda um cursor por calendário do provedor.
type SyncState struct {
	ConnectionID    string            `json:"connection_id"`
	OrganizationID  string            `json:"organization_id"`
	Cursors         map[string]string `json:"-"`
	Status          SyncStatus        `json:"status"`
	Error           string            `json:"error,omitempty"`
	EventsSynced    int               `json:"events_synced"`
	CalendarsSynced int               `json:"calendars_synced"`
	LastSyncAt      *time.Time        `json:"last_sync_at,omitempty"`
	LastFullSyncAt  *time.Time        `json:"last_full_sync_at,omitempty"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

func NewSyncState(conn *CalendarConnection) *SyncState {
	return &SyncState{
		ConnectionID:   conn.ID,
		OrganizationID: conn.OrganizationID,
		Cursors:        map[string]string{},
		Status:         SyncNever,
	}
}
