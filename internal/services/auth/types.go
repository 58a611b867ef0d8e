package auth

import (
	"errors"
	"time"
)

var ErrUnauthorized = errors.New("unauthorized")

// AccessClaims is what a verified bearer token says about its holder.
// Subject is the external user reference, not the internal id.
type AccessClaims struct {
	Subject   string
	ExpiresAt time.Time
}
