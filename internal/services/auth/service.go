package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/ivankudzin/matchcore/internal/domain/errs"
)

type TokenParser interface {
	ParseAccessToken(raw string) (AccessClaims, error)
}

// Resolver matches a token subject against external references only.
type Resolver interface {
	ResolveExternal(ctx context.Context, ref string) (int64, error)
}

type Registrar interface {
	Register(ctx context.Context, ref string) (int64, error)
}

// Service turns a bearer token into the caller's internal identity. The
// reference is resolved once here; nothing downstream sees it again.
type Service struct {
	tokens    TokenParser
	resolver  Resolver
	registrar Registrar
}

func NewService(tokens TokenParser, resolver Resolver) *Service {
	return &Service{tokens: tokens, resolver: resolver}
}

// AttachRegistrar lets first-time callers with a valid token be created on
// the fly instead of being rejected.
func (s *Service) AttachRegistrar(registrar Registrar) {
	s.registrar = registrar
}

// Authenticate returns ErrUnauthorized for bad tokens and unknown users.
// Resolver outages come back unchanged so callers can answer 503.
func (s *Service) Authenticate(ctx context.Context, accessToken string) (Identity, error) {
	claims, err := s.tokens.ParseAccessToken(accessToken)
	if err != nil {
		return Identity{}, ErrUnauthorized
	}

	userID, err := s.resolver.ResolveExternal(ctx, claims.Subject)
	if errors.Is(err, errs.ErrUserNotFound) && s.registrar != nil {
		userID, err = s.registrar.Register(ctx, claims.Subject)
	}
	if err != nil {
		if errors.Is(err, errs.ErrUserNotFound) {
			return Identity{}, fmt.Errorf("%w: unknown subject", ErrUnauthorized)
		}
		return Identity{}, err
	}

	return Identity{UserID: userID, ExternalRef: claims.Subject}, nil
}
