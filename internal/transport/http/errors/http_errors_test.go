package errors

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/IdrisKulubi/demo-site-sub001/internal/domain/errs"
)

func TestStatusMapsSentinels(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{fmt.Errorf("%w: bad", errs.ErrValidation), http.StatusBadRequest},
		{fmt.Errorf("%w: not yours", errs.ErrUnauthorized), http.StatusForbidden},
		{fmt.Errorf("load: %w", errs.ErrNotFound), http.StatusNotFound},
		{errs.ErrConflict, http.StatusConflict},
		{errs.RateLimitedError{Bucket: "swipe"}, http.StatusTooManyRequests},
		{errs.ErrDependencyUnavailable, http.StatusServiceUnavailable},
		{fmt.Errorf("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got, _ := Status(tc.err); got != tc.status {
			t.Fatalf("status for %v: got %d want %d", tc.err, got, tc.status)
		}
	}
}

func TestWriteServiceRateLimitPayload(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteService(rec, fmt.Errorf("swipe: %w", errs.RateLimitedError{Bucket: "swipe", Limit: 100, Remaining: 0, RetryAfterSec: 17}), "failed")

	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") != "17" {
		t.Fatalf("unexpected Retry-After: %q", rec.Header().Get("Retry-After"))
	}
	var payload RateLimitError
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload.Limit != 100 || payload.RetryAfterSec != 17 || payload.Code != "RATE_LIMITED" {
		t.Fatalf("unexpected payload: %+v", payload)
	}
}

func TestWriteServiceHidesInternalDetails(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteService(rec, fmt.Errorf("pq: connection refused"), "failed to load matches")

	var payload APIError
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload.Message != "failed to load matches" {
		t.Fatalf("internal error leaked: %q", payload.Message)
	}
}
