package entity

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrStageConflict = errors.New("record stage changed concurrently")
	ErrInvalidAmount = errors.New("amount must be a number")
)

type RecordType string

const (
	RecordTypeDeal    RecordType = "deal"
	RecordTypeContact RecordType = "contact"
	RecordTypeLead    RecordType = "lead"
	RecordTypeMember  RecordType = "member"
)

func (t RecordType) IsValid() bool {
	switch t {
	case RecordTypeDeal, RecordTypeContact, RecordTypeLead, RecordTypeMember:
		return true
	}
	return false
}

// Record é a linha de crm_records. Campos customizados do tenant ficam em Data.
type Record struct {
	ID             string              `json:"id"`
	OrganizationID string              `json:"organization_id"`
	RecordType     RecordType          `json:"record_type"`
	Name           string              `json:"name"`
	Email          string              `json:"email,omitempty"`
	Phone          string              `json:"phone,omitempty"`
	Stage          string              `json:"stage"`
	Amount         decimal.NullDecimal `json:"amount"`
	OwnerID        string              `json:"owner_id,omitempty"`
	Data           map[string]any      `json:"data"`
	StageChangedAt *time.Time          `json:"stage_changed_at,omitempty"`
	CreatedAt      time.Time           `json:"created_at"`
	UpdatedAt      time.Time           `json:"updated_at"`
}

// FieldValue resolve primeiro as colunas e depois os campos customizados.
func (r *Record) FieldValue(field string) (any, bool) {
	switch field {
	case "name":
		return r.Name, true
	case "email":
		return r.Email, true
	case "phone":
		return r.Phone, true
	case "owner_id":
		return r.OwnerID, true
	case "amount":
		if !r.Amount.Valid {
			return nil, false
		}
		return r.Amount.Decimal, true
	}
	if r.Data == nil {
		return nil, false
	}
	v, ok := r.Data[field]
	return v, ok
}

// ApplyFields copia os dados informados pelo usuário no diálogo de gate.
func (r *Record) ApplyFields(fields map[string]any) error {
	for key, value := range fields {
		switch key {
		case "name":
			r.Name = asString(value)
		case "email":
			r.Email = strings.TrimSpace(asString(value))
		case "phone":
			r.Phone = strings.TrimSpace(asString(value))
		case "owner_id":
			r.OwnerID = asString(value)
		case "amount":
			if value == nil || asString(value) == "" {
				r.Amount = decimal.NullDecimal{}
				continue
			}
			d, err := ToDecimal(value)
			if err != nil {
				return ErrInvalidAmount
			}
			r.Amount = decimal.NewNullDecimal(d)
		default:
			if r.Data == nil {
				r.Data = map[string]any{}
			}
			r.Data[key] = value
		}
	}
	return nil
}

// StagePatch é a escrita de uma transição: o novo estágio e só os campos que
// o usuário informou. Values traz os valores já normalizados por ApplyFields.
type StagePatch struct {
	RecordID       string
	OrganizationID string
	FromStage      string
	ToStage        string
	ChangedAt      time.Time
	Fields         []string
	Values         *Record
}

// ToDecimal aceita os tipos que chegam de JSON (float64, string, json.Number).
func ToDecimal(value any) (decimal.Decimal, error) {
	switch v := value.(type) {
	case decimal.Decimal:
		return v, nil
	case float64:
		return decimal.NewFromFloat(v), nil
	case float32:
		return decimal.NewFromFloat32(v), nil
	case int:
		return decimal.NewFromInt(int64(v)), nil
	case int64:
		return decimal.NewFromInt(v), nil
	case fmt.Stringer:
		return decimal.NewFromString(v.String())
	case string:
		return decimal.NewFromString(strings.TrimSpace(v))
	}
	return decimal.Zero, fmt.Errorf("unsupported numeric value %T", value)
}

func asString(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	}
	return fmt.Sprint(value)
}
