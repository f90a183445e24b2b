package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/IdrisKulubi/demo-site-sub001/internal/domain/enums"
	"github.com/IdrisKulubi/demo-site-sub001/internal/domain/model"
)

type MessageRepo struct {
	pool *pgxpool.Pool
}

func NewMessageRepo(pool *pgxpool.Pool) *MessageRepo {
	return &MessageRepo{pool: pool}
}

func (r *MessageRepo) Create(ctx context.Context, msg model.Message) (model.Message, error) {
	if strings.TrimSpace(msg.ID) == "" || msg.MatchID <= 0 || msg.SenderID <= 0 {
		return model.Message{}, fmt.Errorf("invalid message payload")
	}
	if r.pool == nil {
		return model.Message{}, fmt.Errorf("postgres pool is nil")
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	if msg.Status == "" {
		msg.Status = enums.MessageStatusSent
	}

	var out model.Message
	err := r.pool.QueryRow(ctx, `
INSERT INTO messages (
	id,
	match_id,
	sender_id,
	content,
	status,
	created_at
) VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id, match_id, sender_id, content, status, created_at, delivered_at, read_at
`, msg.ID, msg.MatchID, msg.SenderID, msg.Content, string(msg.Status), msg.CreatedAt.UTC()).Scan(
		&out.ID,
		&out.MatchID,
		&out.SenderID,
		&out.Content,
		&out.Status,
		&out.CreatedAt,
		&out.DeliveredAt,
		&out.ReadAt,
	)
	if err != nil {
		return model.Message{}, fmt.Errorf("create message: %w", err)
	}

	return out, nil
}

// ListByMatch returns up to limit messages older than beforeID (all when
// beforeID is empty) in ascending id order.
func (r *MessageRepo) ListByMatch(ctx context.Context, matchID int64, beforeID string, limit int) ([]model.Message, error) {
	if matchID <= 0 {
		return nil, fmt.Errorf("invalid match id")
	}
	if limit <= 0 {
		limit = 50
	}
	if r.pool == nil {
		return []model.Message{}, nil
	}

	rows, err := r.pool.Query(ctx, `
SELECT id, match_id, sender_id, content, status, created_at, delivered_at, read_at
FROM messages
WHERE match_id = $1
	AND ($2::text = '' OR id < $2::text)
ORDER BY id DESC
LIMIT $3
`, matchID, strings.TrimSpace(beforeID), limit)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	items := make([]model.Message, 0, limit)
	for rows.Next() {
		var item model.Message
		if err := rows.Scan(
			&item.ID,
			&item.MatchID,
			&item.SenderID,
			&item.Content,
			&item.Status,
			&item.CreatedAt,
			&item.DeliveredAt,
			&item.ReadAt,
		); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		items = append(items, item)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate messages: %w", rows.Err())
	}

	for i, j := 0, len(items)-1; i < j; i, j = i+1, j-1 {
		items[i], items[j] = items[j], items[i]
	}
	return items, nil
}

// Senders maps each of ids that belongs to matchID to its sender. Ids from
// other matches are absent from the result.
func (r *MessageRepo) Senders(ctx context.Context, matchID int64, ids []string) (map[string]int64, error) {
	if matchID <= 0 {
		return nil, fmt.Errorf("invalid match id")
	}
	if len(ids) == 0 {
		return map[string]int64{}, nil
	}
	if r.pool == nil {
		return nil, fmt.Errorf("postgres pool is nil")
	}

	rows, err := r.pool.Query(ctx, `
SELECT id, sender_id
FROM messages
WHERE match_id = $1 AND id = ANY($2::text[])
`, matchID, ids)
	if err != nil {
		return nil, fmt.Errorf("lookup message senders: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int64, len(ids))
	for rows.Next() {
		var (
			id       string
			senderID int64
		)
		if err := rows.Scan(&id, &senderID); err != nil {
			return nil, fmt.Errorf("scan message sender: %w", err)
		}
		out[strings.TrimSpace(id)] = senderID
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate message senders: %w", rows.Err())
	}

	return out, nil
}

// AdvanceStatus moves the listed messages to status `to`, touching only rows
// whose current status is strictly earlier. It returns the ids that changed.
func (r *MessageRepo) AdvanceStatus(ctx context.Context, matchID int64, ids []string, to enums.MessageStatus, at time.Time) ([]string, error) {
	if matchID <= 0 {
		return nil, fmt.Errorf("invalid match id")
	}
	if len(ids) == 0 {
		return []string{}, nil
	}
	if r.pool == nil {
		return nil, fmt.Errorf("postgres pool is nil")
	}

	var from []string
	switch to {
	case enums.MessageStatusDelivered:
		from = []string{string(enums.MessageStatusSent)}
	case enums.MessageStatusRead:
		from = []string{string(enums.MessageStatusSent), string(enums.MessageStatusDelivered)}
	default:
		return nil, fmt.Errorf("unsupported target status %q", to)
	}
	if at.IsZero() {
		at = time.Now().UTC()
	}

	rows, err := r.pool.Query(ctx, `
UPDATE messages
SET
	status = $3,
	delivered_at = COALESCE(delivered_at, $4),
	read_at = CASE WHEN $3 = 'read' THEN COALESCE(read_at, $4) ELSE read_at END
WHERE match_id = $1
	AND id = ANY($2::text[])
	AND status = ANY($5::text[])
RETURNING id
`, matchID, ids, string(to), at.UTC(), from)
	if err != nil {
		return nil, fmt.Errorf("advance message status: %w", err)
	}
	defer rows.Close()

	changed := make([]string, 0, len(ids))
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan advanced message: %w", err)
		}
		changed = append(changed, strings.TrimSpace(id))
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate advanced messages: %w", rows.Err())
	}

	return changed, nil
}

func (r *MessageRepo) CountUnread(ctx context.Context, matchID, userID int64) (int, error) {
	if matchID <= 0 || userID <= 0 {
		return 0, fmt.Errorf("invalid unread payload")
	}
	if r.pool == nil {
		return 0, fmt.Errorf("postgres pool is nil")
	}

	var count int
	err := r.pool.QueryRow(ctx, `
SELECT COUNT(*)::int
FROM messages
WHERE match_id = $1
	AND sender_id <> $2
	AND status <> 'read'
`, matchID, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count unread messages: %w", err)
	}
	return count, nil
}
