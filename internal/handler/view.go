package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"quizgram/internal/httputil"
	"quizgram/internal/logging"
	"quizgram/internal/model"
	"quizgram/internal/service"
)

type ViewHandler struct {
	viewService *service.ViewService
	logger      *slog.Logger
}

func NewViewHandler(viewService *service.ViewService) *ViewHandler {
	return &ViewHandler{
		viewService: viewService,
		logger:      logging.Component("ViewHandler"),
	}
}

// Record handles POST /entities/{id}/views.
func (h *ViewHandler) Record(w http.ResponseWriter, r *http.Request) {
	entityID, err := parseIDParam(r, "id")
	if err != nil {
		httputil.WriteBadRequest(w, "Invalid entity ID")
		return
	}

	count, err := h.viewService.Record(r.Context(), entityID)
	if err != nil {
		h.logger.Error("Record failed", "entity", entityID, "error", err)
		httputil.WriteInternalError(w, "Failed to record view")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, model.RecordViewResponse{EntityID: entityID, Count: count})
}

// Counts handles GET /entities/views?ids=1,2,3.
func (h *ViewHandler) Counts(w http.ResponseWriter, r *http.Request) {
	ids, err := parseIDs(r)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	counts, err := h.viewService.Counts(r.Context(), ids)
	if err != nil {
		if errors.Is(err, model.ErrInvalidEntityID) || errors.Is(err, model.ErrTooManyIDs) {
			httputil.WriteBadRequest(w, err.Error())
			return
		}
		h.logger.Error("Counts failed", "ids", len(ids), "error", err)
		httputil.WriteInternalError(w, "Failed to fetch view counts")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, model.ViewCountsResponse{Counts: counts})
}
