package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"quizgram/internal/httputil"
	"quizgram/internal/logging"
	"quizgram/internal/model"
	"quizgram/internal/service"
	"quizgram/internal/transport/http/middleware"
)

type RelationshipHandler struct {
	relationshipService *service.RelationshipService
	logger              *slog.Logger
}

func NewRelationshipHandler(relationshipService *service.RelationshipService) *RelationshipHandler {
	return &RelationshipHandler{
		relationshipService: relationshipService,
		logger:              logging.Component("RelationshipHandler"),
	}
}

// SetState handles PUT /users/{id}/following/{targetID}.
func (h *RelationshipHandler) SetState(w http.ResponseWriter, r *http.Request) {
	actorID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}

	sourceID, err := parseIDParam(r, "id")
	if err != nil {
		httputil.WriteBadRequest(w, "Invalid user ID")
		return
	}
	targetID, err := parseIDParam(r, "targetID")
	if err != nil {
		httputil.WriteBadRequest(w, "Invalid target user ID")
		return
	}

	var req model.SetRelationshipRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<10)).Decode(&req); err != nil {
		httputil.WriteBadRequest(w, "Invalid request body")
		return
	}

	state, err := h.relationshipService.SetState(r.Context(), actorID, sourceID, targetID, req.State)
	if err != nil {
		switch {
		case errors.Is(err, model.ErrCannotFollowSelf),
			errors.Is(err, model.ErrInvalidFollowState),
			errors.Is(err, model.ErrInvalidEntityID):
			httputil.WriteBadRequest(w, err.Error())
		case errors.Is(err, model.ErrForbiddenSource):
			httputil.WriteForbidden(w, err.Error())
		default:
			h.logger.Error("SetState failed", "source", sourceID, "target", targetID, "error", err)
			httputil.WriteInternalError(w, "Failed to update relationship")
		}
		return
	}

	httputil.WriteJSON(w, http.StatusOK, model.RelationshipResponse{
		SourceID: sourceID,
		TargetID: targetID,
		State:    state,
	})
}

// FollowerCount handles GET /users/{id}/followers/count.
func (h *RelationshipHandler) FollowerCount(w http.ResponseWriter, r *http.Request) {
	userID, err := parseIDParam(r, "id")
	if err != nil {
		httputil.WriteBadRequest(w, "Invalid user ID")
		return
	}

	count, err := h.relationshipService.FollowerCount(r.Context(), userID)
	if err != nil {
		h.logger.Error("FollowerCount failed", "user", userID, "error", err)
		httputil.WriteInternalError(w, "Failed to count followers")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, model.FollowerCountResponse{UserID: userID, Count: count})
}

// FollowStatus handles GET /users/{id}/following/status?ids=1,2,3.
func (h *RelationshipHandler) FollowStatus(w http.ResponseWriter, r *http.Request) {
	sourceID, err := parseIDParam(r, "id")
	if err != nil {
		httputil.WriteBadRequest(w, "Invalid user ID")
		return
	}
	ids, err := parseIDs(r)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	status, err := h.relationshipService.FollowStatus(r.Context(), sourceID, ids)
	if err != nil {
		if errors.Is(err, model.ErrInvalidEntityID) || errors.Is(err, model.ErrTooManyIDs) {
			httputil.WriteBadRequest(w, err.Error())
			return
		}
		h.logger.Error("FollowStatus failed", "source", sourceID, "error", err)
		httputil.WriteInternalError(w, "Failed to fetch follow status")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, model.FollowStatusResponse{Following: status})
}
