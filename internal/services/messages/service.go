package messages

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/IdrisKulubi/demo-site-sub001/internal/domain/enums"
	"github.com/IdrisKulubi/demo-site-sub001/internal/domain/errs"
	"github.com/IdrisKulubi/demo-site-sub001/internal/domain/model"
	"github.com/IdrisKulubi/demo-site-sub001/internal/pkg/id"
	"github.com/IdrisKulubi/demo-site-sub001/internal/services/chat"
	"github.com/IdrisKulubi/demo-site-sub001/internal/services/rate"
)

const (
	defaultMaxLength    = 2000
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
	maxAckBatch         = 200
)

type MessageStore interface {
	Create(ctx context.Context, msg model.Message) (model.Message, error)
	ListByMatch(ctx context.Context, matchID int64, beforeID string, limit int) ([]model.Message, error)
	Senders(ctx context.Context, matchID int64, ids []string) (map[string]int64, error)
	AdvanceStatus(ctx context.Context, matchID int64, ids []string, to enums.MessageStatus, at time.Time) ([]string, error)
	CountUnread(ctx context.Context, matchID, userID int64) (int, error)
}

type MatchLookup interface {
	Participants(ctx context.Context, matchID int64) (model.Match, error)
}

type Publisher interface {
	PublishMatch(ctx context.Context, matchID int64, payload chat.Payload)
}

type RateGate interface {
	Gate(ctx context.Context, userID int64, bucket string) error
}

type Config struct {
	MaxLength    int
	HistoryLimit int
}

type Dependencies struct {
	Store     MessageStore
	Matches   MatchLookup
	Publisher Publisher
	RateGate  RateGate
	Logger    *zap.Logger
}

type Service struct {
	store     MessageStore
	matches   MatchLookup
	publisher Publisher
	rateGate  RateGate
	log       *zap.Logger
	cfg       Config
	now       func() time.Time
	newID     func() string
}

func NewService(deps Dependencies, cfg Config) *Service {
	if cfg.MaxLength <= 0 {
		cfg.MaxLength = defaultMaxLength
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = defaultHistoryLimit
	}
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		store:     deps.Store,
		matches:   deps.Matches,
		publisher: deps.Publisher,
		rateGate:  deps.RateGate,
		log:       log,
		cfg:       cfg,
		now:       time.Now,
		newID:     id.New,
	}
}

// Send stores a message from senderID in matchID and announces it to the
// match topic. The message is durable before the publish is attempted.
func (s *Service) Send(ctx context.Context, matchID, senderID int64, content string) (model.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return model.Message{}, fmt.Errorf("%w: message is empty", errs.ErrValidation)
	}
	if n := utf8.RuneCountInString(content); n > s.cfg.MaxLength {
		return model.Message{}, fmt.Errorf("%w: message is %d characters, limit is %d", errs.ErrValidation, n, s.cfg.MaxLength)
	}
	if s.store == nil {
		return model.Message{}, fmt.Errorf("message store is nil")
	}

	m, err := s.authorize(ctx, matchID, senderID)
	if err != nil {
		return model.Message{}, err
	}
	if !m.Active() {
		return model.Message{}, fmt.Errorf("%w: match %d is %s", errs.ErrConflict, matchID, m.Status)
	}

	if s.rateGate != nil {
		if err := s.rateGate.Gate(ctx, senderID, rate.BucketMessage); err != nil {
			return model.Message{}, err
		}
	}

	msg, err := s.store.Create(ctx, model.Message{
		ID:        s.newID(),
		MatchID:   matchID,
		SenderID:  senderID,
		Content:   content,
		Status:    enums.MessageStatusSent,
		CreatedAt: s.now().UTC(),
	})
	if err != nil {
		return model.Message{}, err
	}

	s.publish(ctx, matchID, chat.NewMessagePayloadFrom(msg))
	return msg, nil
}

// MarkDelivered records that recipientID's client received the listed
// messages. Messages already delivered or read are left alone.
func (s *Service) MarkDelivered(ctx context.Context, matchID, recipientID int64, messageIDs []string) ([]string, error) {
	ids, err := s.checkAck(ctx, matchID, recipientID, messageIDs)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []string{}, nil
	}
	return s.store.AdvanceStatus(ctx, matchID, ids, enums.MessageStatusDelivered, s.now().UTC())
}

// MarkRead records that readerID has seen the listed messages and tells the
// sender through messages-read. Repeating the call is a no-op.
func (s *Service) MarkRead(ctx context.Context, matchID, readerID int64, messageIDs []string) ([]string, error) {
	ids, err := s.checkAck(ctx, matchID, readerID, messageIDs)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []string{}, nil
	}

	changed, err := s.store.AdvanceStatus(ctx, matchID, ids, enums.MessageStatusRead, s.now().UTC())
	if err != nil {
		return nil, err
	}
	if len(changed) > 0 {
		s.publish(ctx, matchID, chat.MessagesReadPayload{ReaderID: readerID, MessageIDs: changed})
	}
	return changed, nil
}

func (s *Service) UnreadCount(ctx context.Context, matchID, userID int64) (int, error) {
	if s.store == nil {
		return 0, fmt.Errorf("message store is nil")
	}
	if _, err := s.authorize(ctx, matchID, userID); err != nil {
		return 0, err
	}
	return s.store.CountUnread(ctx, matchID, userID)
}

// History pages backwards from beforeID (newest page when empty). Messages in
// a page are oldest first.
func (s *Service) History(ctx context.Context, matchID, userID int64, beforeID string, limit int) ([]model.Message, error) {
	if s.store == nil {
		return nil, fmt.Errorf("message store is nil")
	}
	beforeID = strings.TrimSpace(beforeID)
	if beforeID != "" && !id.Valid(beforeID) {
		return nil, fmt.Errorf("%w: malformed cursor", errs.ErrValidation)
	}
	if limit <= 0 {
		limit = s.cfg.HistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	if _, err := s.authorize(ctx, matchID, userID); err != nil {
		return nil, err
	}
	return s.store.ListByMatch(ctx, matchID, beforeID, limit)
}

// Typing relays a typing indicator to the match. Nothing is stored.
func (s *Service) Typing(ctx context.Context, matchID, userID int64, isTyping bool) error {
	if _, err := s.authorize(ctx, matchID, userID); err != nil {
		return err
	}
	s.publish(ctx, matchID, chat.TypingPayload{UserID: userID, IsTyping: isTyping})
	return nil
}

func (s *Service) authorize(ctx context.Context, matchID, userID int64) (model.Match, error) {
	if matchID <= 0 || userID <= 0 {
		return model.Match{}, fmt.Errorf("%w: match and user ids are required", errs.ErrValidation)
	}
	if s.matches == nil {
		return model.Match{}, fmt.Errorf("match lookup is nil")
	}

	m, err := s.matches.Participants(ctx, matchID)
	if err != nil {
		return model.Match{}, err
	}
	if !m.HasParticipant(userID) {
		return model.Match{}, fmt.Errorf("%w: user %d is not in match %d", errs.ErrUnauthorized, userID, matchID)
	}
	return m, nil
}

// checkAck validates an acknowledgement batch: every id must belong to the
// match and none may have been sent by the acknowledging user.
func (s *Service) checkAck(ctx context.Context, matchID, userID int64, messageIDs []string) ([]string, error) {
	if s.store == nil {
		return nil, fmt.Errorf("message store is nil")
	}
	ids := dedupe(messageIDs)
	if len(ids) > maxAckBatch {
		return nil, fmt.Errorf("%w: at most %d message ids per call", errs.ErrValidation, maxAckBatch)
	}
	if _, err := s.authorize(ctx, matchID, userID); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return ids, nil
	}

	senders, err := s.store.Senders(ctx, matchID, ids)
	if err != nil {
		return nil, err
	}
	for _, msgID := range ids {
		sender, ok := senders[msgID]
		if !ok {
			return nil, fmt.Errorf("%w: message %s in match %d", errs.ErrNotFound, msgID, matchID)
		}
		if sender == userID {
			return nil, fmt.Errorf("%w: cannot acknowledge own message %s", errs.ErrUnauthorized, msgID)
		}
	}
	return ids, nil
}

func (s *Service) publish(ctx context.Context, matchID int64, payload chat.Payload) {
	if s.publisher == nil {
		return
	}
	s.publisher.PublishMatch(ctx, matchID, payload)
}

func dedupe(ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, raw := range ids {
		v := strings.TrimSpace(raw)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
