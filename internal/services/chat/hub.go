package chat

import (
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const defaultSubscriberBuffer = 64

func MatchTopic(matchID int64) string {
	return "match:" + strconv.FormatInt(matchID, 10)
}

func UserTopic(userID int64) string {
	return "user:" + strconv.FormatInt(userID, 10)
}

// Subscription receives the events published to one topic after it was
// created. Events that arrive while its buffer is full are dropped.
type Subscription struct {
	ID     string
	Topic  string
	UserID int64

	ch      chan Event
	hub     *Hub
	once    sync.Once
	dropped atomic.Int64
}

func (s *Subscription) Events() <-chan Event {
	return s.ch
}

// Dropped reports how many events were skipped because the reader fell behind.
func (s *Subscription) Dropped() int64 {
	return s.dropped.Load()
}

func (s *Subscription) Close() {
	s.once.Do(func() {
		s.hub.remove(s)
	})
}

// Hub fans events out to the subscriptions of this process.
type Hub struct {
	mu     sync.RWMutex
	topics map[string]map[string]*Subscription
	buffer int
	log    *zap.Logger
}

func NewHub(buffer int, log *zap.Logger) *Hub {
	if buffer <= 0 {
		buffer = defaultSubscriberBuffer
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{
		topics: make(map[string]map[string]*Subscription),
		buffer: buffer,
		log:    log,
	}
}

func (h *Hub) Subscribe(topic string, userID int64) *Subscription {
	sub := &Subscription{
		ID:     uuid.NewString(),
		Topic:  topic,
		UserID: userID,
		ch:     make(chan Event, h.buffer),
		hub:    h,
	}

	h.mu.Lock()
	subs, ok := h.topics[topic]
	if !ok {
		subs = make(map[string]*Subscription)
		h.topics[topic] = subs
	}
	subs[sub.ID] = sub
	h.mu.Unlock()

	return sub
}

// Deliver hands ev to every current subscriber of topic without blocking and
// returns how many accepted it. Deliveries to one topic are serialized so
// each subscriber sees events in the order Deliver was called.
func (h *Hub) Deliver(topic string, ev Event) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	delivered := 0
	for _, sub := range h.topics[topic] {
		select {
		case sub.ch <- ev:
			delivered++
		default:
			sub.dropped.Add(1)
			h.log.Debug("chat subscriber buffer full, event dropped",
				zap.String("topic", topic),
				zap.String("subscription_id", sub.ID),
				zap.String("event_type", string(ev.Type)),
			)
		}
	}
	return delivered
}

func (h *Hub) SubscriberCount(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[topic])
}

func (h *Hub) remove(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if subs, ok := h.topics[sub.Topic]; ok {
		delete(subs, sub.ID)
		if len(subs) == 0 {
			delete(h.topics, sub.Topic)
		}
	}
	close(sub.ch)
}
