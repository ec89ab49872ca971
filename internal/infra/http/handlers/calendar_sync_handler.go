package handlers

import (
	"context"
	"net/http"

	"github.com/xavierca1/ligue-crm/internal/entity"
	"github.com/xavierca1/ligue-crm/internal/infra/http/middleware"
	"github.com/xavierca1/ligue-crm/internal/usecase"
)

type calendarSyncer interface {
	Execute(ctx context.Context, profile *entity.Profile, input usecase.SyncCalendarInput) (*usecase.SyncCalendarOutput, error)
}

type syncStateReader interface {
	Execute(ctx context.Context, profile *entity.Profile, connectionID string) (*usecase.SyncStateOutput, error)
}

type CalendarSyncHandler struct {
	Sync  calendarSyncer
	State syncStateReader
}

func NewCalendarSyncHandler(sync calendarSyncer, state syncStateReader) *CalendarSyncHandler {
	return &CalendarSyncHandler{Sync: sync, State: state}
}

// HandleSync (POST /api/calendar/sync)
func (h *CalendarSyncHandler) HandleSync(w http.ResponseWriter, r *http.Request) {
	profile, ok := requireProfile(w, r)
	if !ok {
		return
	}

	var input usecase.SyncCalendarInput
	if !decodeJSON(w, r, &input) {
		return
	}

	out, err := h.Sync.Execute(r.Context(), profile, input)
	if err != nil {
		middleware.RecordCalendarSync("error", 0)
		handleError(w, r, "CalendarSyncHandler.HandleSync", err)
		return
	}

	result := "success"
	if !out.Success {
		result = "failed"
	}
	middleware.RecordCalendarSync(result, out.EventsSynced)
	writeJSON(w, http.StatusOK, out)
}

// HandleGetState (GET /api/calendar/sync?connectionId=)
func (h *CalendarSyncHandler) HandleGetState(w http.ResponseWriter, r *http.Request) {
	profile, ok := requireProfile(w, r)
	if !ok {
		return
	}

	out, err := h.State.Execute(r.Context(), profile, r.URL.Query().Get("connectionId"))
	if err != nil {
		handleError(w, r, "CalendarSyncHandler.HandleGetState", err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}
