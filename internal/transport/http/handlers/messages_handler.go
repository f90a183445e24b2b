package handlers

import (
	"context"
	"net/http"

	"github.com/IdrisKulubi/demo-site-sub001/internal/domain/enums"
	"github.com/IdrisKulubi/demo-site-sub001/internal/domain/model"
	authsvc "github.com/IdrisKulubi/demo-site-sub001/internal/services/auth"
	"github.com/IdrisKulubi/demo-site-sub001/internal/transport/http/dto"
	httperrors "github.com/IdrisKulubi/demo-site-sub001/internal/transport/http/errors"
)

type MessageService interface {
	Send(ctx context.Context, matchID, senderID int64, content string) (model.Message, error)
	MarkDelivered(ctx context.Context, matchID, recipientID int64, messageIDs []string) ([]string, error)
	MarkRead(ctx context.Context, matchID, readerID int64, messageIDs []string) ([]string, error)
	UnreadCount(ctx context.Context, matchID, userID int64) (int, error)
	History(ctx context.Context, matchID, userID int64, beforeID string, limit int) ([]model.Message, error)
	Typing(ctx context.Context, matchID, userID int64, isTyping bool) error
}

type MessagesHandler struct {
	service MessageService
}

func NewMessagesHandler(service MessageService) *MessagesHandler {
	return &MessagesHandler{service: service}
}

// begin resolves the caller and the match id shared by every route of this
// handler. It writes the error response itself.
func (h *MessagesHandler) begin(w http.ResponseWriter, r *http.Request) (authsvc.Identity, int64, bool) {
	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return authsvc.Identity{}, 0, false
	}
	if h.service == nil {
		writeInternal(w, "MESSAGES_SERVICE_UNAVAILABLE", "messages service is unavailable")
		return authsvc.Identity{}, 0, false
	}
	matchID, ok := matchIDParam(r)
	if !ok {
		writeBadRequest(w, "VALIDATION_ERROR", "match_id must be a positive integer")
		return authsvc.Identity{}, 0, false
	}
	return identity, matchID, true
}

func (h *MessagesHandler) List(w http.ResponseWriter, r *http.Request) {
	identity, matchID, ok := h.begin(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	limit := parseIntOrDefault(q.Get("limit"), 0)
	items, err := h.service.History(r.Context(), matchID, identity.UserID, q.Get("before"), limit)
	if err != nil {
		httperrors.WriteService(w, err, "failed to load messages")
		return
	}

	resp := dto.MessagesResponse{Items: make([]dto.MessageResponse, 0, len(items))}
	for _, m := range items {
		resp.Items = append(resp.Items, messageResponse(m))
	}
	if len(items) > 0 {
		resp.NextBefore = items[0].ID
	}
	httperrors.Write(w, http.StatusOK, resp)
}

func (h *MessagesHandler) Send(w http.ResponseWriter, r *http.Request) {
	identity, matchID, ok := h.begin(w, r)
	if !ok {
		return
	}

	var req dto.SendMessageRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	msg, err := h.service.Send(r.Context(), matchID, identity.UserID, req.Content)
	if err != nil {
		httperrors.WriteService(w, err, "failed to send message")
		return
	}
	httperrors.Write(w, http.StatusCreated, messageResponse(msg))
}

func (h *MessagesHandler) Read(w http.ResponseWriter, r *http.Request) {
	h.ack(w, r, enums.MessageStatusRead)
}

func (h *MessagesHandler) Delivered(w http.ResponseWriter, r *http.Request) {
	h.ack(w, r, enums.MessageStatusDelivered)
}

func (h *MessagesHandler) ack(w http.ResponseWriter, r *http.Request, to enums.MessageStatus) {
	identity, matchID, ok := h.begin(w, r)
	if !ok {
		return
	}

	var req dto.AckRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	mark := h.service.MarkDelivered
	if to == enums.MessageStatusRead {
		mark = h.service.MarkRead
	}
	changed, err := mark(r.Context(), matchID, identity.UserID, req.MessageIDs)
	if err != nil {
		httperrors.WriteService(w, err, "failed to update message status")
		return
	}
	httperrors.Write(w, http.StatusOK, dto.AckResponse{OK: true, MessageIDs: nonNilStrings(changed)})
}

func (h *MessagesHandler) Typing(w http.ResponseWriter, r *http.Request) {
	identity, matchID, ok := h.begin(w, r)
	if !ok {
		return
	}

	var req dto.TypingRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	if err := h.service.Typing(r.Context(), matchID, identity.UserID, *req.IsTyping); err != nil {
		httperrors.WriteService(w, err, "failed to send typing indicator")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *MessagesHandler) Unread(w http.ResponseWriter, r *http.Request) {
	identity, matchID, ok := h.begin(w, r)
	if !ok {
		return
	}

	n, err := h.service.UnreadCount(r.Context(), matchID, identity.UserID)
	if err != nil {
		httperrors.WriteService(w, err, "failed to count unread messages")
		return
	}
	httperrors.Write(w, http.StatusOK, dto.UnreadResponse{MatchID: matchID, Unread: n})
}

func messageResponse(m model.Message) dto.MessageResponse {
	return dto.MessageResponse{
		ID:          m.ID,
		MatchID:     m.MatchID,
		SenderID:    m.SenderID,
		Content:     m.Content,
		Status:      string(m.Status),
		CreatedAt:   m.CreatedAt,
		DeliveredAt: m.DeliveredAt,
		ReadAt:      m.ReadAt,
	}
}
