package id

import (
	"strings"

	"github.com/oklog/ulid/v2"
)

// New returns a ULID string. ulid.Make draws from a process-wide monotonic
// source, so ids made in the same millisecond still sort in creation order.
func New() string {
	return ulid.Make().String()
}

func Valid(raw string) bool {
	_, err := ulid.ParseStrict(strings.TrimSpace(raw))
	return err == nil
}
