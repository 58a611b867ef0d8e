package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ivankudzin/matchcore/internal/domain/errs"
	"github.com/ivankudzin/matchcore/internal/domain/model"
)

type UserRepo struct {
	pool *pgxpool.Pool
}

func NewUserRepo(pool *pgxpool.Pool) *UserRepo {
	return &UserRepo{pool: pool}
}

func (r *UserRepo) GetByID(ctx context.Context, userID int64) (model.User, error) {
	if r.pool == nil {
		return model.User{}, fmt.Errorf("postgres pool is nil")
	}
	if userID <= 0 {
		return model.User{}, errs.ErrUserNotFound
	}

	var user model.User
	err := r.pool.QueryRow(ctx, `
SELECT id, external_ref, created_at
FROM users
WHERE id = $1
`, userID).Scan(&user.ID, &user.ExternalRef, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.User{}, errs.ErrUserNotFound
		}
		return model.User{}, fmt.Errorf("find user by id: %w", err)
	}

	return user, nil
}

func (r *UserRepo) GetByExternalRef(ctx context.Context, ref string) (model.User, error) {
	if r.pool == nil {
		return model.User{}, fmt.Errorf("postgres pool is nil")
	}
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return model.User{}, errs.ErrUserNotFound
	}

	var user model.User
	err := r.pool.QueryRow(ctx, `
SELECT id, external_ref, created_at
FROM users
WHERE external_ref = $1
`, ref).Scan(&user.ID, &user.ExternalRef, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.User{}, errs.ErrUserNotFound
		}
		return model.User{}, fmt.Errorf("find user by external ref: %w", err)
	}

	return user, nil
}

// GetOrCreate registers an external reference on first sight. Only the
// caller's own reference is ever registered this way.
func (r *UserRepo) GetOrCreate(ctx context.Context, ref string) (model.User, error) {
	if r.pool == nil {
		return model.User{}, fmt.Errorf("postgres pool is nil")
	}
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return model.User{}, fmt.Errorf("external ref is required")
	}

	var user model.User
	err := r.pool.QueryRow(ctx, `
INSERT INTO users (external_ref, created_at)
VALUES ($1, NOW())
ON CONFLICT (external_ref) DO UPDATE SET
	external_ref = EXCLUDED.external_ref
RETURNING id, external_ref, created_at
`, ref).Scan(&user.ID, &user.ExternalRef, &user.CreatedAt)
	if err != nil {
		return model.User{}, fmt.Errorf("get or create user: %w", err)
	}

	return user, nil
}
