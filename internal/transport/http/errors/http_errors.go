package errors

import (
	"encoding/json"
	stderrors "errors"
	"net/http"

	"github.com/ivankudzin/matchcore/internal/domain/errs"
)

const unavailableRetryAfterSec = 10

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type RateLimitError struct {
	Code          string `json:"code"`
	Message       string `json:"message"`
	RetryAfterSec int64  `json:"retry_after_sec"`
}

type CascadeError struct {
	Code          string `json:"code"`
	Message       string `json:"message"`
	RetryAfterSec int64  `json:"retry_after_sec"`
	Step          string `json:"step,omitempty"`
}

func Write(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// WriteDomain renders err with the status its kind maps to. Store causes
// never reach the body.
func WriteDomain(w http.ResponseWriter, err error) {
	status, payload := FromDomain(err)
	Write(w, status, payload)
}

func FromDomain(err error) (int, any) {
	var cascade *errs.CascadeError
	if stderrors.As(err, &cascade) {
		return http.StatusServiceUnavailable, CascadeError{
			Code:          "CASCADE_INCOMPLETE",
			Message:       "operation partially applied, please retry",
			RetryAfterSec: unavailableRetryAfterSec,
			Step:          cascade.Step,
		}
	}

	domainErr, ok := errs.AsError(err)
	if !ok {
		return http.StatusServiceUnavailable, RateLimitError{
			Code:          "TEMP_UNAVAILABLE",
			Message:       (&errs.UnavailableError{}).Message(),
			RetryAfterSec: unavailableRetryAfterSec,
		}
	}

	payload := APIError{Code: domainErr.Code, Message: domainErr.Message}
	switch {
	case domainErr.Kind == errs.KindValidation:
		return http.StatusBadRequest, payload
	case stderrors.Is(err, errs.ErrNotOwner):
		return http.StatusForbidden, payload
	case stderrors.Is(err, errs.ErrNotFound), stderrors.Is(err, errs.ErrUserNotFound):
		return http.StatusNotFound, payload
	case domainErr.Kind == errs.KindConflict, domainErr.Kind == errs.KindRaceLost:
		return http.StatusConflict, payload
	default:
		return http.StatusInternalServerError, APIError{Code: "INTERNAL_ERROR", Message: "internal server error"}
	}
}
