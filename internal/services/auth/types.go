package auth

import (
	"fmt"
	"time"

	"github.com/IdrisKulubi/demo-site-sub001/internal/domain/errs"
)

// ErrUnauthorized matches errs.ErrUnauthorized so transports map it like any
// other authorization failure.
var ErrUnauthorized = fmt.Errorf("%w: invalid access token", errs.ErrUnauthorized)

type AccessClaims struct {
	UserID    int64
	SID       string
	Role      string
	ExpiresAt time.Time
}
