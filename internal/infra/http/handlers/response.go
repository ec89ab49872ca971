package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/xavierca1/ligue-crm/internal/entity"
	"github.com/xavierca1/ligue-crm/internal/infra/http/middleware"
	"github.com/xavierca1/ligue-crm/internal/infra/logger"
	"github.com/xavierca1/ligue-crm/internal/usecase"
)

const maxJSONBody = 1 << 20

type errorResponse struct {
	Error   string                     `json:"error"`
	Code    string                     `json:"code,omitempty"`
	Details []usecase.ValidationError `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Get().WithError(err).Warn("falha ao escrever resposta")
	}
}

func writeErrorResponse(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Error: message, Code: code})
}

// handleError traduz os erros do usecase para HTTP. Erro técnico nunca vaza
// detalhe para o cliente, só para o log.
func handleError(w http.ResponseWriter, r *http.Request, module string, err error) {
	var (
		domainErr *usecase.DomainError
		techErr   *usecase.TechnicalError
		validErrs usecase.ValidationErrors
	)
	switch {
	case errors.As(err, &validErrs):
		writeJSON(w, validErrs.Status(), errorResponse{Error: "Validation failed", Code: "VALIDATION_ERROR", Details: validErrs})
	case errors.As(err, &domainErr):
		writeErrorResponse(w, domainErr.Status, domainErr.Code, domainErr.Message)
	case errors.As(err, &techErr):
		logger.LogError(logger.Get(), "handlers", module, techErr.Message, r.URL.Path, err)
		status := http.StatusInternalServerError
		if techErr.Code == "PROVIDER_ERROR" {
			status = http.StatusBadGateway
		}
		writeErrorResponse(w, status, techErr.Code, "Internal server error")
	default:
		logger.LogError(logger.Get(), "handlers", module, "erro inesperado", r.URL.Path, err)
		writeErrorResponse(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error")
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(io.LimitReader(r.Body, maxJSONBody)).Decode(dst); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "INVALID_JSON", "Invalid JSON body")
		return false
	}
	return true
}

// requireProfile cobre rotas montadas sem o middleware de auth por engano.
func requireProfile(w http.ResponseWriter, r *http.Request) (*entity.Profile, bool) {
	profile, ok := middleware.ProfileFromContext(r.Context())
	if !ok {
		writeErrorResponse(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized")
		return nil, false
	}
	return profile, true
}
