package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ivankudzin/matchcore/internal/domain/errs"
	authsvc "github.com/ivankudzin/matchcore/internal/services/auth"
	httperrors "github.com/ivankudzin/matchcore/internal/transport/http/errors"
)

// Resolver maps an external user reference onto the internal id.
type Resolver interface {
	Resolve(ctx context.Context, ref string) (int64, error)
}

// RateLimiter reports how long the caller must wait before action is allowed again.
type RateLimiter interface {
	Allow(ctx context.Context, action string, userID int64) (int64, bool, error)
}

func requireIdentity(w http.ResponseWriter, r *http.Request) (authsvc.Identity, bool) {
	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok || identity.UserID <= 0 {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return authsvc.Identity{}, false
	}
	return identity, true
}

func resolveTarget(w http.ResponseWriter, r *http.Request, resolver Resolver, ref string) (int64, bool) {
	if strings.TrimSpace(ref) == "" {
		writeBadRequest(w, "VALIDATION_ERROR", "target is required")
		return 0, false
	}
	targetID, err := resolver.Resolve(r.Context(), ref)
	if err != nil {
		httperrors.WriteDomain(w, err)
		return 0, false
	}
	return targetID, true
}

// allowAction guards a write with the per-user limiter. A nil limiter lets
// everything through.
func allowAction(w http.ResponseWriter, r *http.Request, limiter RateLimiter, action string, userID int64) bool {
	if limiter == nil {
		return true
	}
	retryAfter, allowed, err := limiter.Allow(r.Context(), action, userID)
	if err != nil {
		httperrors.WriteDomain(w, errs.Unavailable("rate limit", err))
		return false
	}
	if !allowed {
		httperrors.Write(w, http.StatusTooManyRequests, httperrors.RateLimitError{
			Code:          "TOO_FAST",
			Message:       "too many actions, slow down",
			RetryAfterSec: retryAfter,
		})
		return false
	}
	return true
}

func decodeJSON(r *http.Request, target any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(target)
}

func writeBadRequest(w http.ResponseWriter, code, message string) {
	httperrors.Write(w, http.StatusBadRequest, httperrors.APIError{Code: code, Message: message})
}

func writeUnauthorized(w http.ResponseWriter, code, message string) {
	httperrors.Write(w, http.StatusUnauthorized, httperrors.APIError{Code: code, Message: message})
}

func writeInternal(w http.ResponseWriter, code, message string) {
	httperrors.Write(w, http.StatusInternalServerError, httperrors.APIError{Code: code, Message: message})
}

func parseIntOrDefault(raw string, fallback int) int {
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return fallback
	}
	return value
}

func pathTarget(r *http.Request) string {
	return strings.TrimSpace(chi.URLParam(r, "target"))
}
