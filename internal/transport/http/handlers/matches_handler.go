package handlers

import (
	"context"
	"net/http"

	"github.com/IdrisKulubi/demo-site-sub001/internal/domain/model"
	authsvc "github.com/IdrisKulubi/demo-site-sub001/internal/services/auth"
	"github.com/IdrisKulubi/demo-site-sub001/internal/transport/http/dto"
	httperrors "github.com/IdrisKulubi/demo-site-sub001/internal/transport/http/errors"
)

type MatchLister interface {
	List(ctx context.Context, userID int64) ([]model.MatchSummary, error)
}

type MatchesHandler struct {
	service MatchLister
}

func NewMatchesHandler(service MatchLister) *MatchesHandler {
	return &MatchesHandler{service: service}
}

func (h *MatchesHandler) Handle(w http.ResponseWriter, r *http.Request) {
	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return
	}
	if h.service == nil {
		writeInternal(w, "MATCHES_SERVICE_UNAVAILABLE", "matches service is unavailable")
		return
	}

	items, err := h.service.List(r.Context(), identity.UserID)
	if err != nil {
		httperrors.WriteService(w, err, "failed to load matches")
		return
	}

	responseItems := make([]dto.MatchItemResponse, 0, len(items))
	for _, item := range items {
		responseItems = append(responseItems, dto.MatchItemResponse{
			ID:           item.ID,
			TargetUserID: item.TargetUserID,
			DisplayName:  item.DisplayName,
			Course:       item.Course,
			PhotoURL:     item.PhotoURL,
			UnreadCount:  item.UnreadCount,
			CreatedAt:    item.CreatedAt,
		})
	}

	httperrors.Write(w, http.StatusOK, dto.MatchesResponse{Items: responseItems})
}
