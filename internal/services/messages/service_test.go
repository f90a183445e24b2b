package messages

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/IdrisKulubi/demo-site-sub001/internal/domain/enums"
	"github.com/IdrisKulubi/demo-site-sub001/internal/domain/errs"
	"github.com/IdrisKulubi/demo-site-sub001/internal/domain/model"
	"github.com/IdrisKulubi/demo-site-sub001/internal/pkg/id"
	"github.com/IdrisKulubi/demo-site-sub001/internal/services/chat"
)

type memoryMessages struct {
	mu   sync.Mutex
	rows map[string]model.Message
}

func newMemoryMessages() *memoryMessages {
	return &memoryMessages{rows: map[string]model.Message{}}
}

func (m *memoryMessages) Create(_ context.Context, msg model.Message) (model.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[msg.ID] = msg
	return msg, nil
}

func (m *memoryMessages) ListByMatch(_ context.Context, matchID int64, beforeID string, limit int) ([]model.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.Message{}
	for _, msg := range m.rows {
		if msg.MatchID == matchID && (beforeID == "" || msg.ID < beforeID) {
			out = append(out, msg)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (m *memoryMessages) Senders(_ context.Context, matchID int64, ids []string) (map[string]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[string]int64{}
	for _, msgID := range ids {
		if msg, ok := m.rows[msgID]; ok && msg.MatchID == matchID {
			out[msgID] = msg.SenderID
		}
	}
	return out, nil
}

func (m *memoryMessages) AdvanceStatus(_ context.Context, matchID int64, ids []string, to enums.MessageStatus, at time.Time) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	changed := []string{}
	for _, msgID := range ids {
		msg, ok := m.rows[msgID]
		if !ok || msg.MatchID != matchID || !msg.Status.Advances(to) {
			continue
		}
		msg.Status = to
		if msg.DeliveredAt == nil {
			msg.DeliveredAt = &at
		}
		if to == enums.MessageStatusRead {
			msg.ReadAt = &at
		}
		m.rows[msgID] = msg
		changed = append(changed, msgID)
	}
	return changed, nil
}

func (m *memoryMessages) CountUnread(_ context.Context, matchID, userID int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, msg := range m.rows {
		if msg.MatchID == matchID && msg.SenderID != userID && msg.Status != enums.MessageStatusRead {
			n++
		}
	}
	return n, nil
}

type matchTable map[int64]model.Match

func (t matchTable) Participants(_ context.Context, matchID int64) (model.Match, error) {
	m, ok := t[matchID]
	if !ok {
		return model.Match{}, errs.ErrNotFound
	}
	return m, nil
}

type recordedPublish struct {
	matchID int64
	payload chat.Payload
}

type publisher struct {
	mu     sync.Mutex
	events []recordedPublish
}

func (p *publisher) PublishMatch(_ context.Context, matchID int64, payload chat.Payload) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, recordedPublish{matchID: matchID, payload: payload})
}

func (p *publisher) ofType(t chat.EventType) []chat.Payload {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := []chat.Payload{}
	for _, ev := range p.events {
		if chat.NewEvent(ev.matchID, ev.payload, time.Now()).Type == t {
			out = append(out, ev.payload)
		}
	}
	return out
}

type rateGate struct {
	err error
}

func (g rateGate) Gate(context.Context, int64, string) error { return g.err }

const (
	alice = int64(1)
	bob   = int64(2)
	eve   = int64(3)
)

func newTestService(cfg Config) (*Service, *memoryMessages, *publisher) {
	store := newMemoryMessages()
	pub := &publisher{}
	svc := NewService(Dependencies{
		Store:     store,
		Matches:   matchTable{10: {ID: 10, UserAID: alice, UserBID: bob, Status: enums.MatchStatusActive}, 11: {ID: 11, UserAID: alice, UserBID: eve, Status: enums.MatchStatusDissolved}},
		Publisher: pub,
	}, cfg)
	return svc, store, pub
}

func sameIDs(got, want []string) bool {
	if len(got) != len(want) {
		return false
	}
	a := append([]string(nil), got...)
	b := append([]string(nil), want...)
	sort.Strings(a)
	sort.Strings(b)
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func mustSend(t *testing.T, svc *Service, matchID, senderID int64, content string) model.Message {
	t.Helper()
	msg, err := svc.Send(context.Background(), matchID, senderID, content)
	if err != nil {
		t.Fatalf("send %q: %v", content, err)
	}
	return msg
}

func TestSendPersistsThenPublishes(t *testing.T) {
	svc, store, pub := newTestService(Config{})

	msg := mustSend(t, svc, 10, alice, "  hi  ")
	if msg.Content != "hi" || msg.Status != enums.MessageStatusSent {
		t.Fatalf("unexpected message: %+v", msg)
	}
	if !id.Valid(msg.ID) {
		t.Fatalf("message id is not a ulid: %q", msg.ID)
	}
	if _, ok := store.rows[msg.ID]; !ok {
		t.Fatalf("message was not persisted")
	}

	published := pub.ofType(chat.EventNewMessage)
	if len(published) != 1 || published[0].(chat.NewMessagePayload).ID != msg.ID {
		t.Fatalf("unexpected published events: %+v", published)
	}
}

func TestSendValidation(t *testing.T) {
	svc, store, pub := newTestService(Config{MaxLength: 5})
	ctx := context.Background()

	cases := []struct {
		name    string
		matchID int64
		sender  int64
		content string
		want    error
	}{
		{name: "blank", matchID: 10, sender: alice, content: "   ", want: errs.ErrValidation},
		{name: "too long", matchID: 10, sender: alice, content: "toolong", want: errs.ErrValidation},
		{name: "outsider", matchID: 10, sender: eve, content: "hey", want: errs.ErrUnauthorized},
		{name: "unknown match", matchID: 99, sender: alice, content: "hey", want: errs.ErrNotFound},
		{name: "dissolved match", matchID: 11, sender: alice, content: "hey", want: errs.ErrConflict},
	}
	for _, tc := range cases {
		if _, err := svc.Send(ctx, tc.matchID, tc.sender, tc.content); !errors.Is(err, tc.want) {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
	}

	// the limit counts characters, not bytes
	mustSend(t, svc, 10, alice, "héllo")

	if len(store.rows) != 1 || len(pub.ofType(chat.EventNewMessage)) != 1 {
		t.Fatalf("only the valid message should be stored and published")
	}
}

func TestSendIsRateLimited(t *testing.T) {
	store := newMemoryMessages()
	svc := NewService(Dependencies{
		Store:    store,
		Matches:  matchTable{10: {ID: 10, UserAID: alice, UserBID: bob}},
		RateGate: rateGate{err: errs.RateLimitedError{Bucket: "message", Limit: 30, RetryAfterSec: 4}},
	}, Config{})

	_, err := svc.Send(context.Background(), 10, alice, "hi")
	if !errors.Is(err, errs.ErrRateLimited) {
		t.Fatalf("expected rate limited, got %v", err)
	}
	if len(store.rows) != 0 {
		t.Fatalf("limited send must not persist")
	}
}

func TestUnreadCountFollowsReadReceipts(t *testing.T) {
	svc, _, pub := newTestService(Config{})
	ctx := context.Background()

	ids := make([]string, 0, 3)
	for _, text := range []string{"one", "two", "three"} {
		ids = append(ids, mustSend(t, svc, 10, alice, text).ID)
	}

	if unread, err := svc.UnreadCount(ctx, 10, bob); err != nil || unread != 3 {
		t.Fatalf("recipient unread: %d err=%v, want 3", unread, err)
	}
	if mine, err := svc.UnreadCount(ctx, 10, alice); err != nil || mine != 0 {
		t.Fatalf("own messages are never unread: %d err=%v", mine, err)
	}

	changed, err := svc.MarkRead(ctx, 10, bob, ids)
	if err != nil {
		t.Fatalf("mark read: %v", err)
	}
	if !sameIDs(changed, ids) {
		t.Fatalf("unexpected changed ids: %v", changed)
	}

	if unread, err := svc.UnreadCount(ctx, 10, bob); err != nil || unread != 0 {
		t.Fatalf("unread after read: %d err=%v", unread, err)
	}

	reads := pub.ofType(chat.EventMessagesRead)
	if len(reads) != 1 {
		t.Fatalf("expected one read receipt, got %d", len(reads))
	}
	receipt := reads[0].(chat.MessagesReadPayload)
	if receipt.ReaderID != bob || !sameIDs(receipt.MessageIDs, ids) {
		t.Fatalf("unexpected receipt: %+v", receipt)
	}
}

func TestStatusTransitionsOnlyMoveForward(t *testing.T) {
	svc, store, pub := newTestService(Config{})
	ctx := context.Background()

	msg := mustSend(t, svc, 10, alice, "hi")

	if _, err := svc.MarkRead(ctx, 10, bob, []string{msg.ID}); err != nil {
		t.Fatalf("mark read: %v", err)
	}

	changed, err := svc.MarkDelivered(ctx, 10, bob, []string{msg.ID})
	if err != nil || len(changed) != 0 {
		t.Fatalf("delivered after read must be a no-op: %v err=%v", changed, err)
	}

	changed, err = svc.MarkRead(ctx, 10, bob, []string{msg.ID, msg.ID})
	if err != nil || len(changed) != 0 {
		t.Fatalf("repeated read must be a no-op: %v err=%v", changed, err)
	}

	if store.rows[msg.ID].Status != enums.MessageStatusRead {
		t.Fatalf("unexpected status: %s", store.rows[msg.ID].Status)
	}
	if n := len(pub.ofType(chat.EventMessagesRead)); n != 1 {
		t.Fatalf("no-op read must not publish, got %d receipts", n)
	}
}

func TestDeliveredThenRead(t *testing.T) {
	svc, store, _ := newTestService(Config{})
	ctx := context.Background()

	msg := mustSend(t, svc, 10, alice, "hi")

	changed, err := svc.MarkDelivered(ctx, 10, bob, []string{msg.ID})
	if err != nil || !sameIDs(changed, []string{msg.ID}) {
		t.Fatalf("mark delivered: %v err=%v", changed, err)
	}
	if store.rows[msg.ID].Status != enums.MessageStatusDelivered {
		t.Fatalf("unexpected status: %s", store.rows[msg.ID].Status)
	}

	changed, err = svc.MarkRead(ctx, 10, bob, []string{msg.ID})
	if err != nil || !sameIDs(changed, []string{msg.ID}) {
		t.Fatalf("mark read: %v err=%v", changed, err)
	}
	if store.rows[msg.ID].ReadAt == nil {
		t.Fatalf("read_at should be set")
	}
}

func TestAcknowledgementRules(t *testing.T) {
	svc, _, _ := newTestService(Config{})
	ctx := context.Background()

	msg := mustSend(t, svc, 10, alice, "hi")

	if _, err := svc.MarkRead(ctx, 10, alice, []string{msg.ID}); !errors.Is(err, errs.ErrUnauthorized) {
		t.Fatalf("sender cannot read own message: %v", err)
	}
	if _, err := svc.MarkRead(ctx, 10, eve, []string{msg.ID}); !errors.Is(err, errs.ErrUnauthorized) {
		t.Fatalf("outsider cannot ack: %v", err)
	}
	if _, err := svc.MarkRead(ctx, 10, bob, []string{id.New()}); !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("unknown id: %v", err)
	}
	if _, err := svc.MarkDelivered(ctx, 10, bob, make([]string, 0)); err != nil {
		t.Fatalf("empty batch should be accepted: %v", err)
	}

	tooMany := make([]string, maxAckBatch+1)
	for i := range tooMany {
		tooMany[i] = id.New()
	}
	if _, err := svc.MarkRead(ctx, 10, bob, tooMany); !errors.Is(err, errs.ErrValidation) {
		t.Fatalf("oversized batch: %v", err)
	}
}

func TestHistoryPagesBackwards(t *testing.T) {
	svc, _, _ := newTestService(Config{})
	ctx := context.Background()

	sent := make([]string, 0, 5)
	for i := 0; i < 5; i++ {
		sent = append(sent, mustSend(t, svc, 10, bob, strings.Repeat("x", i+1)).ID)
	}

	page, err := svc.History(ctx, 10, alice, "", 2)
	if err != nil {
		t.Fatalf("latest page: %v", err)
	}
	if len(page) != 2 || page[0].ID != sent[3] || page[1].ID != sent[4] {
		t.Fatalf("unexpected latest page: %+v", page)
	}

	older, err := svc.History(ctx, 10, alice, page[0].ID, 10)
	if err != nil {
		t.Fatalf("older page: %v", err)
	}
	if len(older) != 3 || older[0].ID != sent[0] {
		t.Fatalf("unexpected older page: %+v", older)
	}

	if _, err := svc.History(ctx, 10, eve, "", 10); !errors.Is(err, errs.ErrUnauthorized) {
		t.Fatalf("outsider history: %v", err)
	}
	if _, err := svc.History(ctx, 10, alice, "bogus", 10); !errors.Is(err, errs.ErrValidation) {
		t.Fatalf("bogus cursor: %v", err)
	}
}

func TestReconnectRecoversHistoryAndClearsUnread(t *testing.T) {
	svc, _, _ := newTestService(Config{})
	ctx := context.Background()

	mustSend(t, svc, 10, alice, "hi")

	history, err := svc.History(ctx, 10, bob, "", 0)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 1 || history[0].Status != enums.MessageStatusSent {
		t.Fatalf("unexpected history: %+v", history)
	}

	if _, err := svc.MarkRead(ctx, 10, bob, []string{history[0].ID}); err != nil {
		t.Fatalf("mark read: %v", err)
	}
	if unread, err := svc.UnreadCount(ctx, 10, bob); err != nil || unread != 0 {
		t.Fatalf("unread after reconnect: %d err=%v", unread, err)
	}
}

func TestTypingPublishesWithoutPersisting(t *testing.T) {
	svc, store, pub := newTestService(Config{})
	ctx := context.Background()

	if err := svc.Typing(ctx, 10, bob, true); err != nil {
		t.Fatalf("typing: %v", err)
	}
	if len(store.rows) != 0 {
		t.Fatalf("typing must not persist")
	}

	typing := pub.ofType(chat.EventTyping)
	if len(typing) != 1 || typing[0] != (chat.TypingPayload{UserID: bob, IsTyping: true}) {
		t.Fatalf("unexpected typing events: %+v", typing)
	}

	if err := svc.Typing(ctx, 10, eve, true); !errors.Is(err, errs.ErrUnauthorized) {
		t.Fatalf("outsider typing: %v", err)
	}
}
