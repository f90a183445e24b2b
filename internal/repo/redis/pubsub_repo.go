package redis

import (
	"context"
	"fmt"

	goredis "github.com/redis/go-redis/v9"
)

type PubSubRepo struct {
	client *goredis.Client
}

func NewPubSubRepo(client *goredis.Client) *PubSubRepo {
	return &PubSubRepo{client: client}
}

func (r *PubSubRepo) Publish(ctx context.Context, channel string, payload []byte) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	if channel == "" {
		return fmt.Errorf("pubsub channel is required")
	}

	if err := r.client.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("publish to %s: %w", channel, err)
	}
	return nil
}

// Listen subscribes to pattern and calls handle for every message until ctx is
// done or the subscription breaks. It returns only after the subscription is
// confirmed by the server, so publishes issued after Listen returns are seen.
func (r *PubSubRepo) Listen(ctx context.Context, pattern string, handle func(channel string, payload []byte)) (<-chan error, error) {
	if r.client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}
	if pattern == "" || handle == nil {
		return nil, fmt.Errorf("invalid pubsub listen payload")
	}

	sub := r.client.PSubscribe(ctx, pattern)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("psubscribe %s: %w", pattern, err)
	}

	done := make(chan error, 1)
	go func() {
		defer close(done)
		defer func() { _ = sub.Close() }()

		messages := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-messages:
				if !ok {
					done <- fmt.Errorf("pubsub %s closed", pattern)
					return
				}
				handle(msg.Channel, []byte(msg.Payload))
			}
		}
	}()

	return done, nil
}
