package rate

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/IdrisKulubi/demo-site-sub001/internal/domain/errs"
)

const (
	BucketSwipe      = "swipe"
	BucketCandidates = "candidates"
	BucketMessage    = "message"

	defaultOpTimeout = 150 * time.Millisecond
)

type WindowStore interface {
	IncrementWindow(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
}

type Rule struct {
	Limit  int
	Window time.Duration
}

type Decision struct {
	Limited       bool
	Remaining     int
	Limit         int
	RetryAfterSec int64
}

type Limiter struct {
	store     WindowStore
	rules     map[string]Rule
	opTimeout time.Duration
	log       *zap.Logger
}

// NewLimiter builds a limiter over store. Every store call is bounded by
// opTimeout so a hung Redis cannot stall the gated request.
func NewLimiter(store WindowStore, rules map[string]Rule, opTimeout time.Duration, log *zap.Logger) *Limiter {
	if log == nil {
		log = zap.NewNop()
	}
	if opTimeout <= 0 {
		opTimeout = defaultOpTimeout
	}
	copied := make(map[string]Rule, len(rules))
	for bucket, rule := range rules {
		copied[bucket] = rule
	}
	return &Limiter{store: store, rules: copied, opTimeout: opTimeout, log: log}
}

// Check counts one action for userID in bucket using a fixed window and
// reports whether it went over limit. A limit of zero disables the bucket.
func (l *Limiter) Check(ctx context.Context, userID int64, bucket string, limit int, window time.Duration) (Decision, error) {
	if userID <= 0 || bucket == "" {
		return Decision{}, fmt.Errorf("invalid rate check payload")
	}
	if limit <= 0 || window <= 0 {
		return Decision{Limit: limit, Remaining: limit}, nil
	}
	if l.store == nil {
		return Decision{}, fmt.Errorf("rate limiter store is nil")
	}

	opCtx, cancel := context.WithTimeout(ctx, l.opTimeout)
	defer cancel()

	count, ttl, err := l.store.IncrementWindow(opCtx, windowKey(bucket, userID), window)
	if err != nil {
		return Decision{}, err
	}

	decision := Decision{Limit: limit, Remaining: limit - int(count)}
	if decision.Remaining < 0 {
		decision.Remaining = 0
	}
	if count > int64(limit) {
		decision.Limited = true
		decision.RetryAfterSec = ceilSeconds(ttl)
	}
	return decision, nil
}

// Gate applies the configured rule for bucket. Store failures let the action
// through so that a Redis outage does not block swipes or messages.
func (l *Limiter) Gate(ctx context.Context, userID int64, bucket string) error {
	if l == nil {
		return nil
	}
	rule, ok := l.rules[bucket]
	if !ok {
		return nil
	}

	decision, err := l.Check(ctx, userID, bucket, rule.Limit, rule.Window)
	if err != nil {
		l.log.Warn("rate limiter unavailable, allowing action",
			zap.String("bucket", bucket),
			zap.Int64("user_id", userID),
			zap.Error(err),
		)
		return nil
	}
	if decision.Limited {
		return errs.RateLimitedError{
			Bucket:        bucket,
			Limit:         decision.Limit,
			Remaining:     decision.Remaining,
			RetryAfterSec: decision.RetryAfterSec,
		}
	}
	return nil
}

func windowKey(bucket string, userID int64) string {
	return "rate:" + bucket + ":" + strconv.FormatInt(userID, 10)
}

func ceilSeconds(d time.Duration) int64 {
	if d <= 0 {
		return 1
	}
	sec := int64(d / time.Second)
	if d%time.Second != 0 {
		sec++
	}
	if sec <= 0 {
		sec = 1
	}
	return sec
}
