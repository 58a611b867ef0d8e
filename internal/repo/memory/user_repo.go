package memory

import (
	"context"
	"strings"

	"github.com/ivankudzin/matchcore/internal/domain/errs"
	"github.com/ivankudzin/matchcore/internal/domain/model"
)

type UserRepo struct {
	s *Store
}

func NewUserRepo(s *Store) *UserRepo {
	return &UserRepo{s: s}
}

func (r *UserRepo) GetByID(ctx context.Context, userID int64) (model.User, error) {
	if err := r.s.lock(ctx, "users.get_by_id"); err != nil {
		return model.User{}, err
	}
	defer r.s.mu.Unlock()

	user, ok := r.s.users[userID]
	if !ok {
		return model.User{}, errs.ErrUserNotFound
	}
	return user, nil
}

func (r *UserRepo) GetByExternalRef(ctx context.Context, ref string) (model.User, error) {
	if err := r.s.lock(ctx, "users.get_by_external_ref"); err != nil {
		return model.User{}, err
	}
	defer r.s.mu.Unlock()

	id, ok := r.s.refs[strings.TrimSpace(ref)]
	if !ok {
		return model.User{}, errs.ErrUserNotFound
	}
	return r.s.users[id], nil
}

func (r *UserRepo) GetOrCreate(ctx context.Context, ref string) (model.User, error) {
	if err := ctx.Err(); err != nil {
		return model.User{}, err
	}
	if strings.TrimSpace(ref) == "" {
		return model.User{}, errs.ErrUserNotFound
	}
	return r.s.AddUser(ref), nil
}
