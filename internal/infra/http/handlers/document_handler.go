package handlers

import (
	"context"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/xavierca1/ligue-crm/internal/entity"
	"github.com/xavierca1/ligue-crm/internal/usecase"
)

const maxUploadSize = 20 << 20

type documentService interface {
	Upload(ctx context.Context, profile *entity.Profile, input usecase.UploadDocumentInput, content io.Reader) (*entity.Document, error)
	List(ctx context.Context, profile *entity.Profile, recordID string) ([]entity.Document, error)
}

type DocumentHandler struct {
	Documents documentService
}

func NewDocumentHandler(documents documentService) *DocumentHandler {
	return &DocumentHandler{Documents: documents}
}

// HandleUpload (POST /api/records/{id}/documents, multipart campo "file")
func (h *DocumentHandler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	profile, ok := requireProfile(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	file, header, err := r.FormFile("file")
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "INVALID_FILE", "A file field is required (max 20MB)")
		return
	}
	defer file.Close()

	input := usecase.UploadDocumentInput{
		RecordID:    chi.URLParam(r, "id"),
		FileName:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
	}

	doc, err := h.Documents.Upload(r.Context(), profile, input, file)
	if err != nil {
		handleError(w, r, "DocumentHandler.HandleUpload", err)
		return
	}
	writeJSON(w, http.StatusCreated, doc)
}

// HandleList (GET /api/records/{id}/documents)
func (h *DocumentHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	profile, ok := requireProfile(w, r)
	if !ok {
		return
	}

	docs, err := h.Documents.List(r.Context(), profile, chi.URLParam(r, "id"))
	if err != nil {
		handleError(w, r, "DocumentHandler.HandleList", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"documents": docs})
}
