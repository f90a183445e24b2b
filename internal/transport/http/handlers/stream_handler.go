package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/IdrisKulubi/demo-site-sub001/internal/domain/errs"
	authsvc "github.com/IdrisKulubi/demo-site-sub001/internal/services/auth"
	"github.com/IdrisKulubi/demo-site-sub001/internal/services/chat"
	"github.com/IdrisKulubi/demo-site-sub001/internal/transport/http/dto"
	httperrors "github.com/IdrisKulubi/demo-site-sub001/internal/transport/http/errors"
)

const (
	frameTyping    = "typing"
	frameDelivered = "delivered"
	frameRead      = "read"

	streamReadLimit  = 16 << 10
	streamReplyQueue = 8
)

var errUnsupportedFrame = fmt.Errorf("%w: unsupported frame type", errs.ErrValidation)

type StreamSubscriber interface {
	SubscribeMatch(ctx context.Context, matchID, userID int64) (*chat.Subscription, error)
	SubscribeUser(userID int64) (*chat.Subscription, error)
}

type StreamConfig struct {
	PingInterval   time.Duration
	WriteTimeout   time.Duration
	AllowedOrigins []string
}

// StreamHandler pushes chat events to WebSocket clients and accepts typing
// and receipt frames from them. Missed events are recovered through the
// messages history endpoint, never replayed here.
type StreamHandler struct {
	channel  StreamSubscriber
	messages MessageService
	cfg      StreamConfig
	upgrader websocket.Upgrader
	log      *zap.Logger
}

func NewStreamHandler(channel StreamSubscriber, messages MessageService, cfg StreamConfig, log *zap.Logger) *StreamHandler {
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 30 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 5 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}

	h := &StreamHandler{
		channel:  channel,
		messages: messages,
		cfg:      cfg,
		log:      log,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

// User streams the caller's control topic (match-created).
func (h *StreamHandler) User(w http.ResponseWriter, r *http.Request) {
	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return
	}
	if h.channel == nil {
		writeInternal(w, "CHAT_UNAVAILABLE", "chat channel is unavailable")
		return
	}

	sub, err := h.channel.SubscribeUser(identity.UserID)
	if err != nil {
		httperrors.WriteService(w, err, "failed to open stream")
		return
	}
	h.serve(w, r, identity.UserID, 0, sub)
}

// Match streams one match topic. Participation is checked before the
// upgrade so a refusal is a plain HTTP error.
func (h *StreamHandler) Match(w http.ResponseWriter, r *http.Request) {
	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return
	}
	if h.channel == nil {
		writeInternal(w, "CHAT_UNAVAILABLE", "chat channel is unavailable")
		return
	}
	matchID, ok := matchIDParam(r)
	if !ok {
		writeBadRequest(w, "VALIDATION_ERROR", "match_id must be a positive integer")
		return
	}

	sub, err := h.channel.SubscribeMatch(r.Context(), matchID, identity.UserID)
	if err != nil {
		httperrors.WriteService(w, err, "failed to open stream")
		return
	}
	h.serve(w, r, identity.UserID, matchID, sub)
}

func (h *StreamHandler) serve(w http.ResponseWriter, r *http.Request, userID, matchID int64, sub *chat.Subscription) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		sub.Close()
		h.log.Debug("stream upgrade failed", zap.Int64("user_id", userID), zap.Error(err))
		return
	}

	// the connection outlives request deadlines set by middleware
	ctx, cancel := context.WithCancel(context.WithoutCancel(r.Context()))
	defer cancel()

	s := &streamSession{
		h:       h,
		conn:    conn,
		sub:     sub,
		userID:  userID,
		matchID: matchID,
		replies: make(chan dto.StreamError, streamReplyQueue),
		done:    make(chan struct{}),
	}
	h.log.Debug("stream opened",
		zap.Int64("user_id", userID),
		zap.String("topic", sub.Topic),
		zap.String("subscription_id", sub.ID),
	)

	go s.readLoop(ctx)
	s.writeLoop()

	h.log.Debug("stream closed",
		zap.Int64("user_id", userID),
		zap.String("subscription_id", sub.ID),
		zap.Int64("dropped", sub.Dropped()),
	)
}

func (h *StreamHandler) checkOrigin(r *http.Request) bool {
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" {
		return true
	}
	for _, allowed := range h.cfg.AllowedOrigins {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	return false
}

type streamSession struct {
	h       *StreamHandler
	conn    *websocket.Conn
	sub     *chat.Subscription
	userID  int64
	matchID int64
	replies chan dto.StreamError
	done    chan struct{}
}

// writeLoop is the only writer on conn.
func (s *streamSession) writeLoop() {
	ticker := time.NewTicker(s.h.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		s.sub.Close()
		_ = s.conn.Close()
	}()

	for {
		select {
		case ev, ok := <-s.sub.Events():
			if !ok {
				_ = s.conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "subscription closed"),
					time.Now().Add(s.h.cfg.WriteTimeout))
				return
			}
			if err := s.write(ev); err != nil {
				return
			}
		case reply := <-s.replies:
			if err := s.write(reply); err != nil {
				return
			}
		case <-ticker.C:
			if err := s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(s.h.cfg.WriteTimeout)); err != nil {
				return
			}
		case <-s.done:
			return
		}
	}
}

func (s *streamSession) write(v any) error {
	_ = s.conn.SetWriteDeadline(time.Now().Add(s.h.cfg.WriteTimeout))
	return s.conn.WriteJSON(v)
}

func (s *streamSession) readLoop(ctx context.Context) {
	defer close(s.done)

	pongWait := 2 * s.h.cfg.PingInterval
	s.conn.SetReadLimit(streamReadLimit)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var frame dto.StreamFrame
		if err := s.conn.ReadJSON(&frame); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.h.log.Debug("stream read failed", zap.Int64("user_id", s.userID), zap.Error(err))
			}
			return
		}
		_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))

		if err := s.handleFrame(ctx, frame); err != nil {
			status, code := httperrors.Status(err)
			message := err.Error()
			if status >= http.StatusInternalServerError {
				message = "failed to process frame"
				s.h.log.Warn("stream frame failed", zap.String("frame", frame.Type), zap.Error(err))
			}
			s.reply(dto.StreamError{Type: "error", Code: code, Message: message})
		}
	}
}

func (s *streamSession) handleFrame(ctx context.Context, frame dto.StreamFrame) error {
	matchID := s.matchID
	if matchID == 0 {
		matchID = frame.MatchID
	}
	if s.h.messages == nil {
		return errUnsupportedFrame
	}

	switch strings.ToLower(strings.TrimSpace(frame.Type)) {
	case frameTyping:
		return s.h.messages.Typing(ctx, matchID, s.userID, frame.IsTyping)
	case frameDelivered:
		_, err := s.h.messages.MarkDelivered(ctx, matchID, s.userID, frame.MessageIDs)
		return err
	case frameRead:
		_, err := s.h.messages.MarkRead(ctx, matchID, s.userID, frame.MessageIDs)
		return err
	default:
		return errUnsupportedFrame
	}
}

// reply queues an error frame for the writer; it drops the frame when the
// queue is full.
func (s *streamSession) reply(frame dto.StreamError) {
	select {
	case s.replies <- frame:
	default:
	}
}
