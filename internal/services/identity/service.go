package identity

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/ivankudzin/matchcore/internal/domain/errs"
	"github.com/ivankudzin/matchcore/internal/domain/model"
)

type UserStore interface {
	GetByID(ctx context.Context, userID int64) (model.User, error)
	GetByExternalRef(ctx context.Context, ref string) (model.User, error)
}

type Registrar interface {
	GetOrCreate(ctx context.Context, ref string) (model.User, error)
}

type Cache interface {
	Get(ctx context.Context, key string) (int64, bool, error)
	Set(ctx context.Context, key string, userID int64) error
}

type Dependencies struct {
	Users     UserStore
	Registrar Registrar
	Cache     Cache
	Logger    *zap.Logger
}

// Service maps any external user handle to the internal user id. It is
// called once per request at the boundary; nothing below it sees refs.
type Service struct {
	users     UserStore
	registrar Registrar
	cache     Cache
	logger    *zap.Logger
}

func NewService(deps Dependencies) *Service {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		users:     deps.Users,
		registrar: deps.Registrar,
		cache:     deps.Cache,
		logger:    logger,
	}
}

// Resolve accepts a numeric internal id or an opaque external reference.
// A numeric ref that is not a known id is retried as an external ref. Use it
// for targets named by the caller, never for the caller's own subject.
func (s *Service) Resolve(ctx context.Context, ref string) (int64, error) {
	ref = strings.TrimSpace(ref)
	if err := s.check(ref); err != nil {
		return 0, err
	}

	if id, parseErr := strconv.ParseInt(ref, 10, 64); parseErr == nil && id > 0 {
		userID, err := s.cached(ctx, idKey(id), func(ctx context.Context) (int64, error) {
			return s.byID(ctx, id)
		})
		if !errors.Is(err, errs.ErrUserNotFound) {
			return userID, err
		}
	}

	return s.resolveRef(ctx, ref)
}

// ResolveExternal matches ref against external references only, so a
// subject that happens to look like an internal id cannot claim that user.
func (s *Service) ResolveExternal(ctx context.Context, ref string) (int64, error) {
	ref = strings.TrimSpace(ref)
	if err := s.check(ref); err != nil {
		return 0, err
	}
	return s.resolveRef(ctx, ref)
}

// Register returns the id for ref, creating the user when the reference is
// new. It is meant for the authenticated caller only; targets must already exist.
func (s *Service) Register(ctx context.Context, ref string) (int64, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return 0, errs.ErrUserNotFound
	}
	if s.registrar == nil {
		return s.ResolveExternal(ctx, ref)
	}

	user, err := s.registrar.GetOrCreate(ctx, ref)
	if err != nil {
		return 0, errs.Wrap("register user", err)
	}
	s.store(ctx, refKey(ref), user.ID)
	return user.ID, nil
}

func (s *Service) check(ref string) error {
	if ref == "" {
		return errs.ErrUserNotFound
	}
	if s.users == nil {
		return errs.Unavailable("resolve user", errors.New("user store is nil"))
	}
	return nil
}

func (s *Service) resolveRef(ctx context.Context, ref string) (int64, error) {
	return s.cached(ctx, refKey(ref), func(ctx context.Context) (int64, error) {
		user, err := s.users.GetByExternalRef(ctx, ref)
		return user.ID, lookupErr(err)
	})
}

func (s *Service) byID(ctx context.Context, id int64) (int64, error) {
	user, err := s.users.GetByID(ctx, id)
	return user.ID, lookupErr(err)
}

func (s *Service) cached(ctx context.Context, key string, fetch func(context.Context) (int64, error)) (int64, error) {
	if s.cache != nil {
		userID, ok, err := s.cache.Get(ctx, key)
		if err != nil {
			s.logger.Warn("identity cache read failed", zap.String("key", key), zap.Error(err))
		} else if ok {
			return userID, nil
		}
	}

	userID, err := fetch(ctx)
	if err != nil {
		return 0, err
	}
	s.store(ctx, key, userID)
	return userID, nil
}

func (s *Service) store(ctx context.Context, key string, userID int64) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, key, userID); err != nil {
		s.logger.Warn("identity cache write failed", zap.String("key", key), zap.Error(err))
	}
}

func lookupErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, errs.ErrUserNotFound):
		return errs.ErrUserNotFound
	default:
		return errs.Unavailable("resolve user", err)
	}
}

// Internal ids and external refs share one cache, so keys are namespaced.
func idKey(id int64) string { return "id:" + strconv.FormatInt(id, 10) }

func refKey(ref string) string { return "ref:" + ref }
