package matcher

import "github.com/google/uuid"

// newID mints a fresh random identity for any of the domain's uuid-aliased
// id types.
func newID() uuid.UUID {
	return uuid.New()
}
