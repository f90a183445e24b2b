package handlers

import (
	"context"
	"net/http"

	"github.com/IdrisKulubi/demo-site-sub001/internal/domain/model"
	authsvc "github.com/IdrisKulubi/demo-site-sub001/internal/services/auth"
	"github.com/IdrisKulubi/demo-site-sub001/internal/transport/http/dto"
	httperrors "github.com/IdrisKulubi/demo-site-sub001/internal/transport/http/errors"
)

type CandidateSource interface {
	GetCandidates(ctx context.Context, userID int64) ([]model.Candidate, error)
}

type CandidateHandler struct {
	service CandidateSource
}

func NewCandidateHandler(service CandidateSource) *CandidateHandler {
	return &CandidateHandler{service: service}
}

func (h *CandidateHandler) List(w http.ResponseWriter, r *http.Request) {
	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return
	}
	if h.service == nil {
		writeInternal(w, "CANDIDATES_SERVICE_UNAVAILABLE", "candidates service is unavailable")
		return
	}

	items, err := h.service.GetCandidates(r.Context(), identity.UserID)
	if err != nil {
		httperrors.WriteService(w, err, "failed to load candidates")
		return
	}

	resp := dto.CandidatesResponse{Items: make([]dto.CandidateResponse, 0, len(items))}
	for _, c := range items {
		resp.Items = append(resp.Items, dto.CandidateResponse{
			UserID:      c.UserID,
			DisplayName: c.DisplayName,
			Age:         c.Age,
			Course:      c.Course,
			Year:        c.Year,
			Interests:   nonNilStrings(c.Interests),
			Gender:      c.Gender,
			PhotoURLs:   nonNilStrings(c.PhotoURLs),
		})
	}
	httperrors.Write(w, http.StatusOK, resp)
}

func nonNilStrings(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}
