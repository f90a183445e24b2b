package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/IdrisKulubi/demo-site-sub001/internal/domain/model"
)

var ErrMatchNotFound = errors.New("match not found")

type MatchRepo struct {
	pool *pgxpool.Pool
}

func NewMatchRepo(pool *pgxpool.Pool) *MatchRepo {
	return &MatchRepo{pool: pool}
}

// CreateIfAbsent inserts the canonical match row for two users. created is
// false when the pair already had a match, in which case the existing row is
// returned unchanged.
func (r *MatchRepo) CreateIfAbsent(ctx context.Context, tx pgx.Tx, userID, targetID int64, now time.Time) (model.Match, bool, error) {
	if userID <= 0 || targetID <= 0 || userID == targetID {
		return model.Match{}, false, fmt.Errorf("invalid match payload")
	}
	if tx == nil {
		return model.Match{}, false, fmt.Errorf("transaction is required")
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	userA, userB := model.CanonicalPair(userID, targetID)

	var m model.Match
	err := tx.QueryRow(ctx, `
INSERT INTO matches (
	user_a_id,
	user_b_id,
	status,
	created_at
) VALUES ($1, $2, 'active', $3)
ON CONFLICT (user_a_id, user_b_id) DO NOTHING
RETURNING id, user_a_id, user_b_id, status, created_at
`, userA, userB, now.UTC()).Scan(&m.ID, &m.UserAID, &m.UserBID, &m.Status, &m.CreatedAt)
	if err == nil {
		return m, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return model.Match{}, false, fmt.Errorf("create match: %w", err)
	}

	existing, err := r.getByPair(ctx, tx, userA, userB)
	if err != nil {
		return model.Match{}, false, err
	}
	return existing, false, nil
}

func (r *MatchRepo) getByPair(ctx context.Context, tx pgx.Tx, userA, userB int64) (model.Match, error) {
	var m model.Match
	err := tx.QueryRow(ctx, `
SELECT id, user_a_id, user_b_id, status, created_at
FROM matches
WHERE user_a_id = $1 AND user_b_id = $2
`, userA, userB).Scan(&m.ID, &m.UserAID, &m.UserBID, &m.Status, &m.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Match{}, ErrMatchNotFound
		}
		return model.Match{}, fmt.Errorf("get match by pair: %w", err)
	}
	return m, nil
}

func (r *MatchRepo) GetByID(ctx context.Context, matchID int64) (model.Match, error) {
	if matchID <= 0 {
		return model.Match{}, ErrMatchNotFound
	}
	if r.pool == nil {
		return model.Match{}, fmt.Errorf("postgres pool is nil")
	}

	var m model.Match
	err := r.pool.QueryRow(ctx, `
SELECT id, user_a_id, user_b_id, status, created_at
FROM matches
WHERE id = $1
`, matchID).Scan(&m.ID, &m.UserAID, &m.UserBID, &m.Status, &m.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Match{}, ErrMatchNotFound
		}
		return model.Match{}, fmt.Errorf("get match: %w", err)
	}
	return m, nil
}

func (r *MatchRepo) ListActiveForUser(ctx context.Context, userID int64, limit int) ([]model.MatchSummary, error) {
	if userID <= 0 {
		return nil, fmt.Errorf("invalid user id")
	}
	if limit <= 0 {
		limit = 100
	}
	if r.pool == nil {
		return []model.MatchSummary{}, nil
	}

	rows, err := r.pool.Query(ctx, `
SELECT
	m.id,
	CASE WHEN m.user_a_id = $1 THEN m.user_b_id ELSE m.user_a_id END AS target_user_id,
	COALESCE(p.display_name, ''),
	COALESCE(p.course, ''),
	COALESCE(p.photos[1], ''),
	(
		SELECT COUNT(*)
		FROM messages msg
		WHERE msg.match_id = m.id
			AND msg.sender_id <> $1
			AND msg.status <> 'read'
	)::int AS unread_count,
	m.created_at
FROM matches m
LEFT JOIN profiles p ON p.user_id = CASE WHEN m.user_a_id = $1 THEN m.user_b_id ELSE m.user_a_id END
WHERE
	(m.user_a_id = $1 OR m.user_b_id = $1)
	AND m.status = 'active'
ORDER BY m.created_at DESC, m.id DESC
LIMIT $2
`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list active matches: %w", err)
	}
	defer rows.Close()

	items := make([]model.MatchSummary, 0, limit)
	for rows.Next() {
		var item model.MatchSummary
		if err := rows.Scan(
			&item.ID,
			&item.TargetUserID,
			&item.DisplayName,
			&item.Course,
			&item.PhotoKey,
			&item.UnreadCount,
			&item.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan active match: %w", err)
		}
		items = append(items, item)
	}

	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate active matches: %w", rows.Err())
	}

	return items, nil
}
