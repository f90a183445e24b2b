package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/IdrisKulubi/demo-site-sub001/internal/domain/model"
)

type CandidateRepo struct {
	pool *pgxpool.Pool
}

func NewCandidateRepo(pool *pgxpool.Pool) *CandidateRepo {
	return &CandidateRepo{pool: pool}
}

type CandidateQuery struct {
	ViewerUserID     int64
	ViewerGender     string
	ViewerLookingFor string
	// FilterGender excludes profiles whose preferences are incompatible with
	// the viewer in either direction.
	FilterGender bool
	Limit        int
}

// ListCandidates returns discoverable profiles the viewer has not swiped on
// yet, newest first. Ranking happens in the service.
func (r *CandidateRepo) ListCandidates(ctx context.Context, q CandidateQuery) ([]model.Profile, error) {
	if q.ViewerUserID <= 0 {
		return nil, fmt.Errorf("invalid viewer id")
	}
	if q.Limit <= 0 {
		q.Limit = 100
	}
	if r.pool == nil {
		return []model.Profile{}, nil
	}

	viewerGender := strings.ToLower(strings.TrimSpace(q.ViewerGender))
	viewerLookingFor := strings.ToLower(strings.TrimSpace(q.ViewerLookingFor))

	rows, err := r.pool.Query(ctx, `
SELECT`+profileColumns+`
FROM profiles p
WHERE
	p.user_id <> $1
	AND p.visible = TRUE
	AND p.completed = TRUE
	AND NOT EXISTS (
		SELECT 1
		FROM swipes s
		WHERE s.actor_user_id = $1
			AND s.target_user_id = p.user_id
	)
	AND (
		$2::boolean = FALSE
		OR (
			(
				$4::text IN ('', 'any', 'all', 'everyone')
				OR LOWER(TRIM(p.gender)) = $4::text
			)
			AND (
				LOWER(TRIM(p.looking_for)) IN ('', 'any', 'all', 'everyone')
				OR LOWER(TRIM(p.looking_for)) = $3::text
			)
		)
	)
ORDER BY p.created_at DESC, p.user_id DESC
LIMIT $5
`,
		q.ViewerUserID,   // $1
		q.FilterGender,   // $2
		viewerGender,     // $3
		viewerLookingFor, // $4
		q.Limit,          // $5
	)
	if err != nil {
		return nil, fmt.Errorf("list candidates: %w", err)
	}
	defer rows.Close()

	items := make([]model.Profile, 0, q.Limit)
	for rows.Next() {
		item, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan candidate: %w", err)
		}
		items = append(items, item)
	}

	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate candidates: %w", rows.Err())
	}

	return items, nil
}
