// Package errs holds the error taxonomy shared by the relationship services.
//
// Validation and conflict errors are terminal and carry a stable code plus a
// message that is safe to show to the user. Store failures are wrapped in
// UnavailableError and are the only class a caller should retry.
package errs

import (
	"errors"
	"fmt"

	"github.com/ivankudzin/matchcore/internal/domain/model"
)

type Kind string

const (
	KindValidation  Kind = "validation"
	KindConflict    Kind = "conflict"
	KindRaceLost    Kind = "race_lost"
	KindUnavailable Kind = "unavailable"
)

type Error struct {
	Kind    Kind
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// Is matches on Code so that contextual variants still satisfy errors.Is
// against the package sentinels.
func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) {
		return false
	}
	return e.Code == other.Code
}

var (
	ErrSelfReference  = &Error{Kind: KindValidation, Code: "SELF_REFERENCE", Message: "you cannot do that to yourself"}
	ErrInvalidStatus  = &Error{Kind: KindValidation, Code: "INVALID_STATUS", Message: "invalid swipe status, must be like, superlike or dislike"}
	ErrEmptyContent   = &Error{Kind: KindValidation, Code: "EMPTY_CONTENT", Message: "message content cannot be empty"}
	ErrContentTooLong = &Error{Kind: KindValidation, Code: "CONTENT_TOO_LONG", Message: "message content is too long"}
	ErrInvalidInput   = &Error{Kind: KindValidation, Code: "VALIDATION_ERROR", Message: "invalid request"}

	ErrBlocked        = &Error{Kind: KindConflict, Code: "BLOCKED", Message: "action not allowed between these users"}
	ErrAlreadyBlocked = &Error{Kind: KindConflict, Code: "ALREADY_BLOCKED", Message: "you have already blocked this user"}
	ErrNotBlocked     = &Error{Kind: KindConflict, Code: "NOT_BLOCKED", Message: "you have not blocked this user"}
	ErrNotMatched     = &Error{Kind: KindConflict, Code: "NOT_MATCHED", Message: "you can only do that with matched users"}
	ErrNotFound       = &Error{Kind: KindConflict, Code: "NOT_FOUND", Message: "not found"}
	ErrUserNotFound   = &Error{Kind: KindConflict, Code: "USER_NOT_FOUND", Message: "user not found"}
	ErrNotOwner       = &Error{Kind: KindConflict, Code: "NOT_OWNER", Message: "you can only change your own records"}

	ErrRaceLost = &Error{Kind: KindRaceLost, Code: "RACE_LOST", Message: "a concurrent equivalent operation already applied"}
)

func SelfReference(action string) error {
	return &Error{Kind: KindValidation, Code: ErrSelfReference.Code, Message: fmt.Sprintf("you cannot %s yourself", action)}
}

// Blocked returns a direction-aware block error. byActor is true when the
// caller is the one who created the block.
func Blocked(byActor bool) error {
	msg := "this user has blocked you"
	if byActor {
		msg = "you have blocked this user"
	}
	return &Error{Kind: KindConflict, Code: ErrBlocked.Code, Message: msg}
}

func NotFound(what string) error {
	return &Error{Kind: KindConflict, Code: ErrNotFound.Code, Message: what + " not found"}
}

func NotOwner(what string) error {
	return &Error{Kind: KindConflict, Code: ErrNotOwner.Code, Message: fmt.Sprintf("you can only change your own %s", what)}
}

// UnavailableError wraps a persistence failure. The cause is kept for logs;
// Message is what the user sees.
type UnavailableError struct {
	Op  string
	Err error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("%s: store unavailable: %v", e.Op, e.Err)
}

func (e *UnavailableError) Unwrap() error {
	return e.Err
}

func (e *UnavailableError) Message() string {
	return "service temporarily unavailable, please retry"
}

func Unavailable(op string, err error) error {
	return &UnavailableError{Op: op, Err: err}
}

// CascadeError reports a teardown that stopped part way. Removed holds what
// was already deleted; re-running the cascade completes it.
type CascadeError struct {
	Step    string
	Removed model.CascadeCounts
	Err     error
}

func (e *CascadeError) Error() string {
	return fmt.Sprintf("cascade stopped at %s (removed matches=%d messages=%d swipes=%d): %v",
		e.Step, e.Removed.Matches, e.Removed.Messages, e.Removed.Swipes, e.Err)
}

func (e *CascadeError) Unwrap() error {
	return e.Err
}

// Wrap passes domain errors through untouched and turns everything else into
// an UnavailableError for op.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	if IsDomain(err) {
		return err
	}
	return Unavailable(op, err)
}

func IsDomain(err error) bool {
	var domainErr *Error
	var unavailable *UnavailableError
	var cascade *CascadeError
	return errors.As(err, &domainErr) || errors.As(err, &unavailable) || errors.As(err, &cascade)
}

func KindOf(err error) Kind {
	var cascade *CascadeError
	if errors.As(err, &cascade) {
		return KindUnavailable
	}
	var unavailable *UnavailableError
	if errors.As(err, &unavailable) {
		return KindUnavailable
	}
	var domainErr *Error
	if errors.As(err, &domainErr) {
		return domainErr.Kind
	}
	return KindUnavailable
}

func AsError(err error) (*Error, bool) {
	var domainErr *Error
	if errors.As(err, &domainErr) {
		return domainErr, true
	}
	return nil, false
}

func IsValidation(err error) bool {
	return err != nil && KindOf(err) == KindValidation
}

func IsConflict(err error) bool {
	return err != nil && KindOf(err) == KindConflict
}

func IsRaceLost(err error) bool {
	return errors.Is(err, ErrRaceLost)
}

// IsRetryable reports whether the caller may retry the operation as is.
func IsRetryable(err error) bool {
	return err != nil && KindOf(err) == KindUnavailable
}
