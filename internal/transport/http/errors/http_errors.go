package errors

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/IdrisKulubi/demo-site-sub001/internal/domain/errs"
)

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type RateLimitError struct {
	Code          string `json:"code"`
	Message       string `json:"message"`
	Limit         int    `json:"limit"`
	Remaining     int    `json:"remaining"`
	RetryAfterSec int64  `json:"retry_after_sec"`
}

func Write(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// Status maps a service error to its HTTP status and error code. Errors that
// wrap no known sentinel are internal.
func Status(err error) (int, string) {
	switch {
	case errors.Is(err, errs.ErrValidation):
		return http.StatusBadRequest, "VALIDATION_ERROR"
	case errors.Is(err, errs.ErrUnauthorized):
		return http.StatusForbidden, "FORBIDDEN"
	case errors.Is(err, errs.ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, errs.ErrConflict):
		return http.StatusConflict, "CONFLICT"
	case errors.Is(err, errs.ErrRateLimited):
		return http.StatusTooManyRequests, "RATE_LIMITED"
	case errors.Is(err, errs.ErrDependencyUnavailable):
		return http.StatusServiceUnavailable, "DEPENDENCY_UNAVAILABLE"
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR"
	}
}

// WriteService writes err using Status. Internal errors get fallback as the
// message so store details never reach clients.
func WriteService(w http.ResponseWriter, err error, fallback string) {
	if rl, ok := errs.IsRateLimited(err); ok {
		if rl.RetryAfterSec > 0 {
			w.Header().Set("Retry-After", strconv.FormatInt(rl.RetryAfterSec, 10))
		}
		Write(w, http.StatusTooManyRequests, RateLimitError{
			Code:          "RATE_LIMITED",
			Message:       "too many requests, slow down",
			Limit:         rl.Limit,
			Remaining:     rl.Remaining,
			RetryAfterSec: rl.RetryAfterSec,
		})
		return
	}

	status, code := Status(err)
	message := fallback
	if status < http.StatusInternalServerError {
		message = err.Error()
	}
	Write(w, status, APIError{Code: code, Message: message})
}

