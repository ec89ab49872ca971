package entity

import "time"

type Sequence struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organization_id"`
	Name           string    `json:"name"`
	Active         bool      `json:"active"`
	CreatedAt      time.Time `json:"created_at"`
}

type SequenceStep struct {
	ID         string `json:"id"`
	SequenceID string `json:"sequence_id"`
	Position   int    `json:"position"`
	DelayHours int    `json:"delay_hours"`
	Subject    string `json:"subject"`
	Body       string `json:"body"`
}

func (s SequenceStep) Delay() time.Duration {
	return time.Duration(s.DelayHours) * time.Hour
}

type EnrollmentStatus string

const (
	EnrollmentActive    EnrollmentStatus = "active"
	EnrollmentPaused    EnrollmentStatus = "paused"
	EnrollmentExited    EnrollmentStatus = "exited"
	EnrollmentCompleted EnrollmentStatus = "completed"
)

func (s EnrollmentStatus) IsValid() bool {
	switch s {
	case EnrollmentActive, EnrollmentPaused, EnrollmentExited, EnrollmentCompleted:
		return true
	}
	return false
}

type EnrollmentAction string

const (
	ActionPause  EnrollmentAction = "pause"
	ActionResume EnrollmentAction = "resume"
	ActionExit   EnrollmentAction = "exit"
)

type Enrollment struct {
	ID             string           `json:"id"`
	SequenceID     string           `json:"sequence_id"`
	RecordID       string           `json:"record_id"`
	OrganizationID string           `json:"organization_id"`
	Status         EnrollmentStatus `json:"status"`
	CurrentStep    int              `json:"current_step"`
	NextSendAt     *time.Time       `json:"next_send_at,omitempty"`
	EnrolledBy     string           `json:"enrolled_by,omitempty"`
	EnrolledAt     time.Time        `json:"enrolled_at"`
	PausedAt       *time.Time       `json:"paused_at,omitempty"`
	ExitedAt       *time.Time       `json:"exited_at,omitempty"`
	CompletedAt    *time.Time       `json:"completed_at,omitempty"`
	UpdatedAt      time.Time        `json:"updated_at"`
	FailedAttempts int              `json:"failed_attempts"`
	ExitReason     string           `json:"exit_reason,omitempty"`

	// Preenchidos só na listagem (join com crm_records)
	RecordName  string `json:"record_name,omitempty"`
	RecordEmail string `json:"record_email,omitempty"`
}

// DueEnrollment é uma inscrição cujo próximo passo já venceu.
type DueEnrollment struct {
	Enrollment Enrollment
	Record     Record
}

type SentEmail struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organization_id"`
	EnrollmentID   string    `json:"enrollment_id"`
	StepID         string    `json:"step_id"`
	RecordID       string    `json:"record_id"`
	ToEmail        string    `json:"to_email"`
	Subject        string    `json:"subject"`
	Error          string    `json:"error,omitempty"`
	SentAt         time.Time `json:"sent_at"`
}
