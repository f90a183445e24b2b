package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/IdrisKulubi/demo-site-sub001/internal/domain/enums"
	"github.com/IdrisKulubi/demo-site-sub001/internal/domain/model"
)

var ErrSwipeNotFound = errors.New("swipe not found")

type SwipeRepo struct {
	pool *pgxpool.Pool
}

func NewSwipeRepo(pool *pgxpool.Pool) *SwipeRepo {
	return &SwipeRepo{pool: pool}
}

// LockPair serializes swipe transactions touching the same two users, in
// either direction, until the surrounding transaction ends. Without it two
// reciprocal likes committed concurrently would each miss the other's row.
func (r *SwipeRepo) LockPair(ctx context.Context, tx pgx.Tx, userID, targetID int64) error {
	if userID <= 0 || targetID <= 0 {
		return fmt.Errorf("invalid swipe pair")
	}
	if tx == nil {
		return fmt.Errorf("transaction is required")
	}

	a, b := model.CanonicalPair(userID, targetID)
	key := "swipe-pair:" + strconv.FormatInt(a, 10) + ":" + strconv.FormatInt(b, 10)
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, key); err != nil {
		return fmt.Errorf("lock swipe pair: %w", err)
	}
	return nil
}

// InsertIfAbsent records the actor's decision about target. When the ordered
// pair already exists the stored swipe is returned with inserted=false and
// nothing is changed.
func (r *SwipeRepo) InsertIfAbsent(ctx context.Context, tx pgx.Tx, actorUserID, targetUserID int64, decision enums.Decision, now time.Time) (model.Swipe, bool, error) {
	if actorUserID <= 0 || targetUserID <= 0 || decision == "" {
		return model.Swipe{}, false, fmt.Errorf("invalid swipe payload")
	}
	if tx == nil {
		return model.Swipe{}, false, fmt.Errorf("transaction is required")
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	var rec model.Swipe
	err := tx.QueryRow(ctx, `
INSERT INTO swipes (
	actor_user_id,
	target_user_id,
	decision,
	created_at
) VALUES ($1, $2, $3, $4)
ON CONFLICT (actor_user_id, target_user_id) DO NOTHING
RETURNING id, actor_user_id, target_user_id, decision, created_at
`, actorUserID, targetUserID, string(decision), now.UTC()).Scan(
		&rec.ID,
		&rec.ActorUserID,
		&rec.TargetUserID,
		&rec.Decision,
		&rec.CreatedAt,
	)
	if err == nil {
		return rec, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return model.Swipe{}, false, fmt.Errorf("create swipe: %w", err)
	}

	existing, err := r.Get(ctx, tx, actorUserID, targetUserID)
	if err != nil {
		return model.Swipe{}, false, err
	}
	return existing, false, nil
}

func (r *SwipeRepo) Get(ctx context.Context, tx pgx.Tx, actorUserID, targetUserID int64) (model.Swipe, error) {
	if tx == nil {
		return model.Swipe{}, fmt.Errorf("transaction is required")
	}

	var rec model.Swipe
	err := tx.QueryRow(ctx, `
SELECT id, actor_user_id, target_user_id, decision, created_at
FROM swipes
WHERE actor_user_id = $1 AND target_user_id = $2
`, actorUserID, targetUserID).Scan(
		&rec.ID,
		&rec.ActorUserID,
		&rec.TargetUserID,
		&rec.Decision,
		&rec.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Swipe{}, ErrSwipeNotFound
		}
		return model.Swipe{}, fmt.Errorf("get swipe: %w", err)
	}

	return rec, nil
}

// HasLiked reports whether actor has a like recorded for target.
func (r *SwipeRepo) HasLiked(ctx context.Context, tx pgx.Tx, actorUserID, targetUserID int64) (bool, error) {
	if tx == nil {
		return false, fmt.Errorf("transaction is required")
	}

	var one int
	err := tx.QueryRow(ctx, `
SELECT 1
FROM swipes
WHERE actor_user_id = $1 AND target_user_id = $2 AND decision = 'like'
LIMIT 1
`, actorUserID, targetUserID).Scan(&one)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("lookup reciprocal like: %w", err)
	}
	return true, nil
}

// SwipedAmong returns the subset of targetIDs actor has already swiped on.
func (r *SwipeRepo) SwipedAmong(ctx context.Context, actorUserID int64, targetIDs []int64) (map[int64]struct{}, error) {
	out := make(map[int64]struct{})
	if actorUserID <= 0 || len(targetIDs) == 0 {
		return out, nil
	}
	if r.pool == nil {
		return nil, fmt.Errorf("postgres pool is nil")
	}

	rows, err := r.pool.Query(ctx, `
SELECT target_user_id
FROM swipes
WHERE actor_user_id = $1 AND target_user_id = ANY($2)
`, actorUserID, targetIDs)
	if err != nil {
		return nil, fmt.Errorf("lookup swiped targets: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan swiped target: %w", err)
		}
		out[id] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate swiped targets: %w", err)
	}
	return out, nil
}
