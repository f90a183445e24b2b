package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/IdrisKulubi/demo-site-sub001/internal/domain/model"
)

var ErrProfileNotFound = errors.New("profile not found")

type ProfileRepo struct {
	pool *pgxpool.Pool
}

func NewProfileRepo(pool *pgxpool.Pool) *ProfileRepo {
	return &ProfileRepo{pool: pool}
}

const profileColumns = `
	p.user_id,
	p.display_name,
	p.age,
	p.course,
	p.year,
	p.interests,
	p.gender,
	p.looking_for,
	p.visible,
	p.completed,
	p.photos,
	p.created_at`

func scanProfile(row pgx.Row) (model.Profile, error) {
	var p model.Profile
	err := row.Scan(
		&p.UserID,
		&p.DisplayName,
		&p.Age,
		&p.Course,
		&p.Year,
		&p.Interests,
		&p.Gender,
		&p.LookingFor,
		&p.Visible,
		&p.Completed,
		&p.Photos,
		&p.CreatedAt,
	)
	return p, err
}

func (r *ProfileRepo) GetProfile(ctx context.Context, userID int64) (model.Profile, error) {
	if userID <= 0 {
		return model.Profile{}, fmt.Errorf("invalid user id")
	}
	if r.pool == nil {
		return model.Profile{}, fmt.Errorf("postgres pool is nil")
	}

	p, err := scanProfile(r.pool.QueryRow(ctx, `
SELECT`+profileColumns+`
FROM profiles p
WHERE p.user_id = $1
`, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Profile{}, ErrProfileNotFound
		}
		return model.Profile{}, fmt.Errorf("get profile: %w", err)
	}

	return p, nil
}
