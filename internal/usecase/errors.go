package usecase

import (
	"errors"
	"net/http"
)

// DomainError é uma recusa esperada; Status vira o código HTTP.
type DomainError struct {
	Status  int
	Code    string
	Message string
}

func (e *DomainError) Error() string {
	return e.Message
}

func NewDomainError(status int, code, message string) *DomainError {
	return &DomainError{Status: status, Code: code, Message: message}
}

// TechnicalError embrulha falhas de infraestrutura (banco, broker, provedor).
type TechnicalError struct {
	Code    string
	Message string
	Err     error
}

func (e *TechnicalError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *TechnicalError) Unwrap() error {
	return e.Err
}

func NewTechnicalError(code, message string, err error) *TechnicalError {
	return &TechnicalError{Code: code, Message: message, Err: err}
}

func IsTechnicalError(err error) bool {
	var te *TechnicalError
	return errors.As(err, &te)
}

var (
	ErrRecordNotFound     = NewDomainError(http.StatusNotFound, "RECORD_NOT_FOUND", "Record not found")
	ErrInvalidStage       = NewDomainError(http.StatusUnprocessableEntity, "INVALID_STAGE", "Stage does not exist for this record type")
	ErrStageConflict      = NewDomainError(http.StatusConflict, "STAGE_CONFLICT", "Record stage changed since it was loaded")
	ErrInvalidRecordType  = NewDomainError(http.StatusBadRequest, "INVALID_RECORD_TYPE", "Invalid record type")
	ErrForbidden          = NewDomainError(http.StatusForbidden, "FORBIDDEN", "Insufficient role")
	ErrConnectionNotFound = NewDomainError(http.StatusNotFound, "CONNECTION_NOT_FOUND", "Calendar connection not found")
	ErrSyncInProgress     = NewDomainError(http.StatusConflict, "SYNC_IN_PROGRESS", "A sync is already running for this connection")
	ErrSequenceNotFound   = NewDomainError(http.StatusNotFound, "SEQUENCE_NOT_FOUND", "Sequence not found")
	ErrInvalidAction      = NewDomainError(http.StatusBadRequest, "INVALID_ACTION", "Action must be pause, resume or exit")
	ErrStorageDisabled    = NewDomainError(http.StatusServiceUnavailable, "STORAGE_DISABLED", "Document storage is not configured")
)
