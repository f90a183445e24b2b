package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/IdrisKulubi/demo-site-sub001/internal/pkg/validate"
	httperrors "github.com/IdrisKulubi/demo-site-sub001/internal/transport/http/errors"
)

const maxBodyBytes = 64 << 10

func decodeJSON(r *http.Request, target any) error {
	decoder := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	return decoder.Decode(target)
}

// decodeAndValidate decodes the body into target and runs its validate tags.
// It writes the 400 itself and reports whether the handler may continue.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, target any) bool {
	if err := decodeJSON(r, target); err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid request body")
		return false
	}
	if err := validate.Struct(target); err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", err.Error())
		return false
	}
	return true
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

func matchIDParam(r *http.Request) (int64, bool) {
	raw := strings.TrimSpace(chi.URLParam(r, "match_id"))
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func parseIntOrDefault(raw string, fallback int) int {
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return fallback
	}
	return v
}
