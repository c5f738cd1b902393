package migration

import (
	"encoding/json"
	"errors"
	"strconv"
	"strings"
)

// Envelope is the wire shape of every intercepted ZITADEL action call.
// Request and Response stay raw: untouched callbacks must pass through
// byte-identical.
type Envelope struct {
	UserID   string          `json:"userID"`
	Request  json.RawMessage `json:"request"`
	Response json.RawMessage `json:"response"`
}

// WrongPasswordMessage is the generic message forwarded to the login
// flow when a legacy password check fails. Deliberately does not reveal whether the
// user exists.
const WrongPasswordMessage = "Wrong username or password. Please try again."

// AbortResponse instructs ZITADEL to halt the intercepted call with the
// forwarded status instead of continuing its own flow.
type AbortResponse struct {
	ForwardedStatusCode   int    `json:"forwardedStatusCode"`
	ForwardedErrorMessage string `json:"forwardedErrorMessage"`
}

var (
	// ErrCredentialMismatch signals that the supplied password does not
	// match the legacy stored one.
	// Surfaced, never swallowed: the platform must abort the session
	// check or the bad password would be silently accepted.
	ErrCredentialMismatch = errors.New("wrong username or password")

	// ErrMissingUserID signals a password-reset callback without a
	// userId. Finalization cannot fail open; skipping it could leave the marker
	// stuck at "migrating".
	ErrMissingUserID = errors.New("userId is required")
)

type listUsersRequest struct {
	Queries []struct {
		LoginNameQuery struct {
			LoginName string `json:"loginName"`
		} `json:"loginNameQuery"`
	} `json:"queries"`
}

type listUsersResponse struct {
	Details struct {
		// ZITADEL serializes totalResult as a string; accept a bare
		// number too.
		TotalResult json.RawMessage `json:"totalResult"`
	} `json:"details"`
}

func totalResultCount(raw json.RawMessage) int64 {
	s := strings.Trim(strings.TrimSpace(string(raw)), `"`)
	if s == "" || s == "null" {
		return 0
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

type setSessionRequest struct {
	SessionID    string `json:"sessionId"`
	SessionToken string `json:"sessionToken"`
	Checks       struct {
		Password struct {
			Password string `json:"password"`
		} `json:"password"`
	} `json:"checks"`
}

type setPasswordRequest struct {
	UserID string `json:"userId"`
}
