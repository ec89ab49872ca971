package usecase

import "github.com/xavierca1/ligue-crm/internal/entity"

type TransitionStageInput struct {
	RecordID  string         `json:"-" validate:"required,uuid"`
	Stage     string         `json:"stage" validate:"required"`
	FromStage string         `json:"fromStage,omitempty"`
	Fields    map[string]any `json:"fields,omitempty"`
}

type TransitionStageOutput struct {
	Verdict entity.GateVerdict
	Stage   entity.Stage
	Record  *entity.Record
}

type SyncCalendarInput struct {
	ConnectionID string `json:"connectionId" validate:"required,uuid"`
	FullSync     bool   `json:"fullSync"`
}

type SyncCalendarOutput struct {
	Success        bool `json:"success"`
	EventsSynced   int  `json:"eventsSynced"`
	CalendarsCount int  `json:"calendarsCount"`
}

type SyncStateOutput struct {
	SyncState *entity.SyncState `json:"syncState"`
	Calendars []entity.Calendar `json:"calendars"`
}

type ListEnrollmentsInput struct {
	Status string `json:"status" validate:"omitempty,oneof=active paused exited completed"`
	Limit  int    `json:"limit" validate:"gte=0"`
	Offset int    `json:"offset" validate:"gte=0"`
}

type ListEnrollmentsOutput struct {
	Enrollments []entity.Enrollment `json:"enrollments"`
	Total       int                 `json:"total"`
	Limit       int                 `json:"limit"`
	Offset      int                 `json:"offset"`
}

type EnrollInput struct {
	RecordIDs []string `json:"record_ids" validate:"required,min=1,max=500,dive,required"`
}

type EnrollError struct {
	RecordID string `json:"record_id"`
	Error    string `json:"error"`
}

type EnrollOutput struct {
	Enrolled    int                 `json:"enrolled"`
	Enrollments []entity.Enrollment `json:"enrollments"`
	Errors      []EnrollError       `json:"errors"`
}

type BulkEnrollmentInput struct {
	EnrollmentIDs []string `json:"enrollment_ids" validate:"required,min=1,max=500,dive,required"`
	Action        string   `json:"action" validate:"required"`
}

type BulkEnrollmentOutput struct {
	Updated int64 `json:"updated"`
}

type UploadDocumentInput struct {
	RecordID    string `validate:"required,uuid"`
	FileName    string `validate:"required"`
	ContentType string
	Size        int64 `validate:"gt=0"`
}
