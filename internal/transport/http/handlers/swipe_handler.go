package handlers

import (
	"context"
	"net/http"

	"github.com/IdrisKulubi/demo-site-sub001/internal/domain/enums"
	authsvc "github.com/IdrisKulubi/demo-site-sub001/internal/services/auth"
	swipesvc "github.com/IdrisKulubi/demo-site-sub001/internal/services/swipes"
	"github.com/IdrisKulubi/demo-site-sub001/internal/transport/http/dto"
	httperrors "github.com/IdrisKulubi/demo-site-sub001/internal/transport/http/errors"
)

type SwipeRecorder interface {
	RecordSwipe(ctx context.Context, actorID, targetID int64, decision enums.Decision) (swipesvc.SwipeResult, error)
}

type SwipeHandler struct {
	service SwipeRecorder
}

func NewSwipeHandler(service SwipeRecorder) *SwipeHandler {
	return &SwipeHandler{service: service}
}

func (h *SwipeHandler) Handle(w http.ResponseWriter, r *http.Request) {
	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return
	}
	if h.service == nil {
		writeInternal(w, "SWIPE_SERVICE_UNAVAILABLE", "swipe service is unavailable")
		return
	}

	var req dto.SwipeRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	decision, _ := enums.ParseDecision(req.Decision)

	result, err := h.service.RecordSwipe(r.Context(), identity.UserID, req.TargetID, decision)
	if err != nil {
		httperrors.WriteService(w, err, "failed to record swipe")
		return
	}

	resp := dto.SwipeResponse{
		OK:             true,
		IsMatch:        result.IsMatch,
		AlreadyDecided: result.AlreadySwiped,
		Decision:       string(result.Swipe.Decision),
	}
	if result.Match != nil {
		resp.Match = &dto.MatchCreatedResponse{
			ID:           result.Match.ID,
			TargetUserID: result.Match.Counterpart(identity.UserID),
		}
	}
	httperrors.Write(w, http.StatusOK, resp)
}
