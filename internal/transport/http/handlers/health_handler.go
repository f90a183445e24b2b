package handlers

import (
	"net/http"

	httperrors "github.com/IdrisKulubi/demo-site-sub001/internal/transport/http/errors"
)

func Health(w http.ResponseWriter, _ *http.Request) {
	httperrors.Write(w, http.StatusOK, struct {
		OK bool `json:"ok"`
	}{OK: true})
}
