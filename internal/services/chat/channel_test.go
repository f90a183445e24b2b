package chat

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"

	"github.com/IdrisKulubi/demo-site-sub001/internal/domain/enums"
	"github.com/IdrisKulubi/demo-site-sub001/internal/domain/errs"
	"github.com/IdrisKulubi/demo-site-sub001/internal/domain/model"
	redrepo "github.com/IdrisKulubi/demo-site-sub001/internal/repo/redis"
)

type stubMatches struct {
	matches map[int64]model.Match
}

func (s stubMatches) Participants(_ context.Context, matchID int64) (model.Match, error) {
	m, ok := s.matches[matchID]
	if !ok {
		return model.Match{}, errs.ErrNotFound
	}
	return m, nil
}

func testMatches() stubMatches {
	return stubMatches{matches: map[int64]model.Match{
		7: {ID: 7, UserAID: 1, UserBID: 2, Status: enums.MatchStatusActive},
	}}
}

func TestSubscribeMatchRequiresParticipant(t *testing.T) {
	ch := NewChannel(NewHub(8, nil), nil, testMatches(), Config{}, nil)
	ctx := context.Background()

	sub, err := ch.SubscribeMatch(ctx, 7, 2)
	if err != nil {
		t.Fatalf("participant subscribe: %v", err)
	}
	defer sub.Close()

	if _, err := ch.SubscribeMatch(ctx, 7, 3); !errors.Is(err, errs.ErrUnauthorized) {
		t.Fatalf("expected unauthorized for outsider, got %v", err)
	}
	if _, err := ch.SubscribeMatch(ctx, 99, 1); !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("expected not found for unknown match, got %v", err)
	}
}

func TestLocalModeDeliversToSubscribers(t *testing.T) {
	ch := NewChannel(NewHub(8, nil), nil, testMatches(), Config{}, nil)
	ctx := context.Background()
	if err := ch.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}

	sub, err := ch.SubscribeMatch(ctx, 7, 1)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer sub.Close()

	ch.PublishMatch(ctx, 7, TypingPayload{UserID: 2, IsTyping: true})

	ev := receive(t, sub)
	if ev.Type != EventTyping || ev.MatchID != 7 || ev.Timestamp.IsZero() {
		t.Fatalf("unexpected event: %+v", ev)
	}
}

func TestRelayFansOutAcrossInstances(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	newInstance := func() *Channel {
		client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { _ = client.Close() })
		return NewChannel(NewHub(8, nil), redrepo.NewPubSubRepo(client), testMatches(), Config{}, nil)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sender := newInstance()
	receiver := newInstance()
	if err := sender.Start(ctx); err != nil {
		t.Fatalf("start sender: %v", err)
	}
	if err := receiver.Start(ctx); err != nil {
		t.Fatalf("start receiver: %v", err)
	}

	remote, err := receiver.SubscribeMatch(ctx, 7, 2)
	if err != nil {
		t.Fatalf("remote subscribe: %v", err)
	}
	defer remote.Close()
	local, err := sender.SubscribeMatch(ctx, 7, 1)
	if err != nil {
		t.Fatalf("local subscribe: %v", err)
	}
	defer local.Close()
	control, err := receiver.SubscribeUser(2)
	if err != nil {
		t.Fatalf("control subscribe: %v", err)
	}
	defer control.Close()

	sender.PublishMatch(ctx, 7, NewMessagePayload{ID: "m1", SenderID: 1, Content: "hi"})
	sender.PublishUser(ctx, 2, 7, MatchCreatedPayload{MatchID: 7, UserAID: 1, UserBID: 2})

	ev := receive(t, remote)
	msg, ok := ev.Payload.(NewMessagePayload)
	if !ok || msg.Content != "hi" {
		t.Fatalf("unexpected remote event: %+v", ev)
	}

	ev = receive(t, local)
	if ev.Type != EventNewMessage {
		t.Fatalf("unexpected local event: %+v", ev)
	}
	if len(local.Events()) != 0 {
		t.Fatalf("local subscriber must receive the event once")
	}

	ev = receive(t, control)
	if ev.Type != EventMatchCreated {
		t.Fatalf("unexpected control event: %+v", ev)
	}
}

type blockingBroker struct{}

func (blockingBroker) Publish(ctx context.Context, _ string, _ []byte) error {
	<-ctx.Done()
	return ctx.Err()
}

func (blockingBroker) Listen(ctx context.Context, _ string, _ func(string, []byte)) (<-chan error, error) {
	return make(chan error), nil
}

func TestPublishIsBoundedAndFailsOpen(t *testing.T) {
	ch := NewChannel(NewHub(8, nil), blockingBroker{}, testMatches(), Config{PublishTimeout: 20 * time.Millisecond}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := ch.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}

	sub, err := ch.SubscribeMatch(ctx, 7, 1)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer sub.Close()

	start := time.Now()
	ch.PublishMatch(ctx, 7, TypingPayload{UserID: 2})
	if elapsed := time.Since(start); elapsed >= time.Second {
		t.Fatalf("publish blocked for %s on a hung broker", elapsed)
	}

	if ev := receive(t, sub); ev.Type != EventTyping {
		t.Fatalf("unexpected event: %+v", ev)
	}
}

func receive(t *testing.T, sub *Subscription) Event {
	t.Helper()
	select {
	case ev, ok := <-sub.Events():
		if !ok {
			t.Fatalf("subscription %s closed", sub.Topic)
		}
		return ev
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for event on %s", sub.Topic)
		return Event{}
	}
}
