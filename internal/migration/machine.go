package migration

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/matiasracedo/zitadel-trickle-migration/internal/legacy"
	"github.com/matiasracedo/zitadel-trickle-migration/internal/logger"
	"github.com/matiasracedo/zitadel-trickle-migration/internal/zitadel"
)

// PlatformClient is the slice of the identity platform the machine
// needs. Satisfied by *zitadel.Client; faked in tests.
type PlatformClient interface {
	CreateUser(ctx context.Context, rec legacy.Record) (string, error)
	SetPassword(ctx context.Context, userID string, password string) error
	GetMigrationMetadata(ctx context.Context, userID string) (migrated bool, exists bool, err error)
	SetMigratedFlag(ctx context.Context, userID string) error
	GetSession(ctx context.Context, sessionID string, sessionToken string) (userID string, loginName string, err error)
	GetUser(ctx context.Context, userID string) (json.RawMessage, error)
}

// Machine implements the three intercepted callbacks. It keeps no
// state of its own; the platform's metadata store is the single source
// of truth, so every callback is safe under retries and out-of-order
// delivery.
type Machine struct {
	directory legacy.Directory
	platform  PlatformClient

	// loginClientID, when non-empty, restricts provisioning to callbacks
	// triggered by the hosted login flow's service user.
	loginClientID string
}

func NewMachine(directory legacy.Directory, platform PlatformClient, loginClientID string) *Machine {
	return &Machine{
		directory:     directory,
		platform:      platform,
		loginClientID: loginClientID,
	}
}

// HandleListUsers intercepts user-existence checks: if the platform's own lookup came up
// empty but the legacy directory knows the login name, provision the
// user and rewrite the response as if the platform had found it.
// Every failure path falls back to the original response so the login
// page lands on its native "user not found" path instead of an error.
func (m *Machine) HandleListUsers(ctx context.Context, env *Envelope) json.RawMessage {

	if m.loginClientID != "" && env.UserID != m.loginClientID {
		return env.Response
	}

	var resp listUsersResponse
	if len(env.Response) > 0 {
		if err := json.Unmarshal(env.Response, &resp); err != nil {
			logger.Warn("list-users response not parseable, passing through", map[string]any{
				"error": err.Error(),
			})
			return env.Response
		}
	}

	// Never touch a user the platform already knows about.
	if totalResultCount(resp.Details.TotalResult) >= 1 {
		return env.Response
	}

	var req listUsersRequest
	if err := json.Unmarshal(env.Request, &req); err != nil {
		return env.Response
	}
	if len(req.Queries) == 0 {
		return env.Response
	}

	loginName := req.Queries[0].LoginNameQuery.LoginName
	if loginName == "" {
		return env.Response
	}

	rec, err := m.directory.LookupByLoginName(ctx, loginName)
	if err != nil {
		if !errors.Is(err, legacy.ErrNotFound) {
			logger.Warn("legacy lookup failed, passing through", map[string]any{
				"error": err.Error(),
			})
		}
		return env.Response
	}

	userID, err := m.platform.CreateUser(ctx, *rec)
	if err != nil {
		var upstream *zitadel.UpstreamError
		if errors.As(err, &upstream) && upstream.StatusCode == http.StatusConflict {
			// Lost a race with a concurrent first login; the other
			// callback provisioned the user and the platform's own
			// lookup wins on retry.
			logger.Info("user already provisioned concurrently", map[string]any{
				"login_name": loginName,
			})
		} else {
			logger.Error("failed to provision user, passing through", map[string]any{
				"login_name": loginName,
				"error":      err.Error(),
			})
		}
		return env.Response
	}

	userRaw, err := m.platform.GetUser(ctx, userID)
	if err != nil {
		logger.Error("failed to fetch provisioned user, passing through", map[string]any{
			"user_id": userID,
			"error":   err.Error(),
		})
		return env.Response
	}

	mutated, err := json.Marshal(map[string]any{
		"details": map[string]any{
			"totalResult": "1",
			"timestamp":   time.Now().UTC().Format(time.RFC3339Nano),
		},
		"result": []json.RawMessage{userRaw},
	})
	if err != nil {
		return env.Response
	}

	return mutated
}

// HandleSetSession intercepts session password checks for users still
// mid-migration, verifies against the legacy store, and on success
// installs the proven password and flips the marker. Only a mismatch is
// surfaced; anything unexpected fails open toward the native flow.
func (m *Machine) HandleSetSession(ctx context.Context, env *Envelope) (json.RawMessage, error) {

	var req setSessionRequest
	if err := json.Unmarshal(env.Request, &req); err != nil {
		return env.Response, nil
	}

	supplied := req.Checks.Password.Password
	if supplied == "" {
		return env.Response, nil
	}

	userID, loginName, err := m.platform.GetSession(ctx, req.SessionID, req.SessionToken)
	if err != nil {
		logger.Error("failed to resolve session, passing through", map[string]any{
			"session_id": req.SessionID,
			"error":      err.Error(),
		})
		return env.Response, nil
	}

	migrated, exists, err := m.platform.GetMigrationMetadata(ctx, userID)
	if err != nil {
		logger.Error("failed to read migration metadata, passing through", map[string]any{
			"user_id": userID,
			"error":   err.Error(),
		})
		return env.Response, nil
	}

	// Fully migrated users and users this gateway never provisioned
	// take the platform's native password verification.
	if migrated || !exists {
		return env.Response, nil
	}

	rec, err := m.directory.LookupByLoginName(ctx, loginName)
	if err != nil {
		logger.Error("legacy lookup failed during password check, passing through", map[string]any{
			"login_name": loginName,
			"error":      err.Error(),
		})
		return env.Response, nil
	}

	if !legacy.VerifyPassword(rec.Password, supplied) {
		return nil, ErrCredentialMismatch
	}

	if err := m.platform.SetPassword(ctx, userID, supplied); err != nil {
		logger.Error("failed to install legacy password, passing through", map[string]any{
			"user_id": userID,
			"error":   err.Error(),
		})
		return env.Response, nil
	}

	if err := m.platform.SetMigratedFlag(ctx, userID); err != nil {
		// Password already matches the legacy one; the next login
		// re-verifies and retries the marker write.
		logger.Error("failed to set migrated flag, passing through", map[string]any{
			"user_id": userID,
			"error":   err.Error(),
		})
		return env.Response, nil
	}

	logger.Info("user migrated via password check", map[string]any{
		"user_id": userID,
	})

	return env.Response, nil
}

// HandleSetPassword reconciles the marker after a password reset: the
// platform has already stored the new password by the time this fires.
// Unlike the other two callbacks this one fails loud; swallowing an
// error here could leave the marker stuck at "migrating" forever.
func (m *Machine) HandleSetPassword(ctx context.Context, env *Envelope) (json.RawMessage, error) {

	var req setPasswordRequest
	if err := json.Unmarshal(env.Request, &req); err != nil {
		return nil, ErrMissingUserID
	}
	if req.UserID == "" {
		return nil, ErrMissingUserID
	}

	migrated, exists, err := m.platform.GetMigrationMetadata(ctx, req.UserID)
	if err != nil {
		return nil, err
	}

	if migrated || !exists {
		return env.Response, nil
	}

	if err := m.platform.SetMigratedFlag(ctx, req.UserID); err != nil {
		return nil, err
	}

	logger.Info("user migrated via password reset", map[string]any{
		"user_id": req.UserID,
	})

	return env.Response, nil
}
