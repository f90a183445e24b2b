package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/IdrisKulubi/demo-site-sub001/internal/domain/errs"
	"github.com/IdrisKulubi/demo-site-sub001/internal/domain/model"
)

const (
	defaultPublishTimeout = 500 * time.Millisecond
	defaultChannelPrefix  = "chat:"
	relayRetryDelay       = time.Second
)

// Broker carries events between service instances.
type Broker interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Listen(ctx context.Context, pattern string, handle func(channel string, payload []byte)) (<-chan error, error)
}

type MatchLookup interface {
	Participants(ctx context.Context, matchID int64) (model.Match, error)
}

type Config struct {
	PublishTimeout time.Duration
	ChannelPrefix  string
}

// Channel is the real-time notification path for matches. It is not the
// system of record: a publish that fails is logged and forgotten, and clients
// recover missed messages from history.
type Channel struct {
	hub     *Hub
	broker  Broker
	matches MatchLookup
	cfg     Config
	log     *zap.Logger
	now     func() time.Time

	relaying atomic.Bool
}

func NewChannel(hub *Hub, broker Broker, matches MatchLookup, cfg Config, log *zap.Logger) *Channel {
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = defaultPublishTimeout
	}
	if strings.TrimSpace(cfg.ChannelPrefix) == "" {
		cfg.ChannelPrefix = defaultChannelPrefix
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Channel{
		hub:     hub,
		broker:  broker,
		matches: matches,
		cfg:     cfg,
		log:     log,
		now:     time.Now,
	}
}

// Start subscribes to the broker and relays its events into the local hub
// until ctx is done. Without a broker the channel stays in local mode and
// Start returns immediately.
func (c *Channel) Start(ctx context.Context) error {
	if c.broker == nil {
		c.log.Info("chat channel running in local mode")
		return nil
	}

	done, err := c.broker.Listen(ctx, c.cfg.ChannelPrefix+"*", c.relay)
	if err != nil {
		return fmt.Errorf("start chat relay: %w", err)
	}
	c.relaying.Store(true)

	go c.superviseRelay(ctx, done)
	return nil
}

func (c *Channel) superviseRelay(ctx context.Context, done <-chan error) {
	for {
		select {
		case <-ctx.Done():
			c.relaying.Store(false)
			return
		case err := <-done:
			c.relaying.Store(false)
			if ctx.Err() != nil {
				return
			}
			c.log.Warn("chat relay stopped, resubscribing", zap.Error(err))
		}

		for {
			select {
			case <-ctx.Done():
				return
			case <-time.After(relayRetryDelay):
			}

			next, err := c.broker.Listen(ctx, c.cfg.ChannelPrefix+"*", c.relay)
			if err != nil {
				c.log.Warn("chat relay resubscribe failed", zap.Error(err))
				continue
			}
			done = next
			c.relaying.Store(true)
			break
		}
	}
}

func (c *Channel) relay(channel string, payload []byte) {
	topic := strings.TrimPrefix(channel, c.cfg.ChannelPrefix)

	var ev Event
	if err := json.Unmarshal(payload, &ev); err != nil {
		c.log.Warn("chat relay dropped undecodable event", zap.String("channel", channel), zap.Error(err))
		return
	}
	c.hub.Deliver(topic, ev)
}

// Publish sends ev to every subscriber of topic on every instance. It never
// fails the caller.
func (c *Channel) Publish(ctx context.Context, topic string, ev Event) {
	if c == nil {
		return
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = c.now().UTC()
	}

	if c.broker == nil {
		c.hub.Deliver(topic, ev)
		return
	}

	raw, err := json.Marshal(ev)
	if err != nil {
		c.log.Error("chat event encode failed", zap.String("topic", topic), zap.Error(err))
		return
	}

	// local subscribers are reached through the relay; while it is down they
	// get the event directly
	relaying := c.relaying.Load()

	ctx, cancel := context.WithTimeout(ctx, c.cfg.PublishTimeout)
	defer cancel()

	if err := c.broker.Publish(ctx, c.cfg.ChannelPrefix+topic, raw); err != nil {
		c.log.Warn("chat publish failed",
			zap.String("topic", topic),
			zap.String("event_type", string(ev.Type)),
			zap.Error(err),
		)
		relaying = false
	}
	if !relaying {
		c.hub.Deliver(topic, ev)
	}
}

func (c *Channel) PublishMatch(ctx context.Context, matchID int64, payload Payload) {
	c.Publish(ctx, MatchTopic(matchID), NewEvent(matchID, payload, c.now()))
}

func (c *Channel) PublishUser(ctx context.Context, userID, matchID int64, payload Payload) {
	c.Publish(ctx, UserTopic(userID), NewEvent(matchID, payload, c.now()))
}

// SubscribeMatch opens a subscription to a match topic. Only participants of
// the match may subscribe.
func (c *Channel) SubscribeMatch(ctx context.Context, matchID, userID int64) (*Subscription, error) {
	if matchID <= 0 || userID <= 0 {
		return nil, fmt.Errorf("%w: match and user ids are required", errs.ErrValidation)
	}
	if c.matches == nil {
		return nil, fmt.Errorf("%w: match lookup is not configured", errs.ErrDependencyUnavailable)
	}

	m, err := c.matches.Participants(ctx, matchID)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("authorize match subscription: %w", err)
	}
	if !m.HasParticipant(userID) {
		return nil, fmt.Errorf("%w: user %d is not a participant of match %d", errs.ErrUnauthorized, userID, matchID)
	}

	return c.hub.Subscribe(MatchTopic(matchID), userID), nil
}

// SubscribeUser opens the control topic of userID, which carries match-created.
func (c *Channel) SubscribeUser(userID int64) (*Subscription, error) {
	if userID <= 0 {
		return nil, fmt.Errorf("%w: user id is required", errs.ErrValidation)
	}
	return c.hub.Subscribe(UserTopic(userID), userID), nil
}

// SubscriberCount reports the subscriptions this instance holds for topic.
func (c *Channel) SubscriberCount(topic string) int {
	return c.hub.SubscriberCount(topic)
}
