package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/xavierca1/ligue-crm/internal/entity"
	"github.com/xavierca1/ligue-crm/internal/infra/http/middleware"
	"github.com/xavierca1/ligue-crm/internal/usecase"
)

type enrollmentService interface {
	List(ctx context.Context, profile *entity.Profile, sequenceID string, input usecase.ListEnrollmentsInput) (*usecase.ListEnrollmentsOutput, error)
	Enroll(ctx context.Context, profile *entity.Profile, sequenceID string, input usecase.EnrollInput) (*usecase.EnrollOutput, error)
	BulkAction(ctx context.Context, profile *entity.Profile, sequenceID string, input usecase.BulkEnrollmentInput) (*usecase.BulkEnrollmentOutput, error)
}

type EnrollmentHandler struct {
	Enrollments enrollmentService
}

func NewEnrollmentHandler(enrollments enrollmentService) *EnrollmentHandler {
	return &EnrollmentHandler{Enrollments: enrollments}
}

// HandleList (GET /api/sequences/{id}/enrollments?status=&limit=&offset=)
func (h *EnrollmentHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	profile, ok := requireProfile(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	input := usecase.ListEnrollmentsInput{Status: q.Get("status")}
	var err error
	if v := q.Get("limit"); v != "" {
		if input.Limit, err = strconv.Atoi(v); err != nil {
			writeErrorResponse(w, http.StatusBadRequest, "INVALID_QUERY", "limit must be an integer")
			return
		}
	}
	if v := q.Get("offset"); v != "" {
		if input.Offset, err = strconv.Atoi(v); err != nil {
			writeErrorResponse(w, http.StatusBadRequest, "INVALID_QUERY", "offset must be an integer")
			return
		}
	}

	out, err := h.Enrollments.List(r.Context(), profile, chi.URLParam(r, "id"), input)
	if err != nil {
		handleError(w, r, "EnrollmentHandler.HandleList", err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// HandleEnroll (POST /api/sequences/{id}/enrollments). Sempre 201: falhas por
// record vão em errors e não derrubam o lote.
func (h *EnrollmentHandler) HandleEnroll(w http.ResponseWriter, r *http.Request) {
	profile, ok := requireProfile(w, r)
	if !ok {
		return
	}

	var input usecase.EnrollInput
	if !decodeJSON(w, r, &input) {
		return
	}

	out, err := h.Enrollments.Enroll(r.Context(), profile, chi.URLParam(r, "id"), input)
	if err != nil {
		handleError(w, r, "EnrollmentHandler.HandleEnroll", err)
		return
	}
	middleware.RecordEnrollments(out.Enrolled, len(out.Errors))
	writeJSON(w, http.StatusCreated, out)
}

// HandleBulkAction (PATCH /api/sequences/{id}/enrollments)
func (h *EnrollmentHandler) HandleBulkAction(w http.ResponseWriter, r *http.Request) {
	profile, ok := requireProfile(w, r)
	if !ok {
		return
	}

	var input usecase.BulkEnrollmentInput
	if !decodeJSON(w, r, &input) {
		return
	}

	out, err := h.Enrollments.BulkAction(r.Context(), profile, chi.URLParam(r, "id"), input)
	if err != nil {
		handleError(w, r, "EnrollmentHandler.HandleBulkAction", err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}
