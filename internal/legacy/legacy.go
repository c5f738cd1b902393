package legacy

import (
	"context"
	"errors"
)

// Record is a user as stored in the legacy directory. It is owned by
// the external store and read-only to this gateway.
type Record struct {
	LegacyID          string `json:"legacyId"`
	LoginName         string `json:"loginName"`
	GivenName         string `json:"givenName"`
	FamilyName        string `json:"familyName"`
	DisplayName       string `json:"displayName"`
	PreferredLanguage string `json:"preferredLanguage"`
	Email             string `json:"email"`
	Password          string `json:"password"`
}

// ErrNotFound is returned when no legacy user exists for a login name.
var ErrNotFound = errors.New("legacy: user not found")

// Directory is the lookup capability the migration flow depends on.
// Implementations must treat login names case-insensitively and must
// not mutate the underlying store.
type Directory interface {
	LookupByLoginName(ctx context.Context, loginName string) (*Record, error)
}
