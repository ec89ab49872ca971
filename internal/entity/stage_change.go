package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// StageChange é publicado no RabbitMQ depois de cada transição confirmada.
type StageChange struct {
	RecordID       string              `json:"record_id"`
	OrganizationID string              `json:"organization_id"`
	RecordType     RecordType          `json:"record_type"`
	FromStage      string              `json:"from_stage"`
	ToStage        string              `json:"to_stage"`
	IsWon          bool                `json:"is_won"`
	IsLost         bool                `json:"is_lost"`
	Name           string              `json:"name"`
	Email          string              `json:"email,omitempty"`
	Phone          string              `json:"phone,omitempty"`
	Amount         decimal.NullDecimal `json:"amount"`
	ChangedBy      string              `json:"changed_by"`
	ChangedAt      time.Time           `json:"changed_at"`
}
