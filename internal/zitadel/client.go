package zitadel

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/matiasracedo/zitadel-trickle-migration/internal/legacy"
	"github.com/matiasracedo/zitadel-trickle-migration/internal/logger"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// MigrationMetadataKey is the single metadata key tracking a user's
// migration state: absent, "migrating", or "true".
const MigrationMetadataKey = "migratedFromLegacy"

// UpstreamError carries the HTTP status and body of a failed ZITADEL
// call. The client performs no retries; callers decide whether a
// failure is swallowed or surfaced.
type UpstreamError struct {
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("zitadel: upstream returned %d: %s", e.StatusCode, e.Body)
}

// Config holds what the client needs to reach a ZITADEL instance.
// Either PAT or ClientID+ClientSecret must be set.
type Config struct {
	Domain       string
	OrgID        string
	PAT          string
	ClientID     string
	ClientSecret string
}

// Client is a thin typed wrapper over the ZITADEL v2 REST API. Each
// method maps to exactly one outbound call.
type Client struct {
	baseURL string
	orgID   string
	httpc   *http.Client
}

// New initializes the client, resolving a bearer token source from the
// configured credential. With client credentials the token endpoint is
// discovered from the instance's OIDC configuration.
func New(ctx context.Context, cfg Config) (*Client, error) {

	if cfg.Domain == "" || cfg.OrgID == "" {
		return nil, errors.New("zitadel config missing required fields")
	}

	baseURL := "https://" + cfg.Domain

	var httpc *http.Client

	switch {
	case cfg.PAT != "":
		httpc = oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{
			AccessToken: cfg.PAT,
		}))

	case cfg.ClientID != "" && cfg.ClientSecret != "":
		provider, err := oidc.NewProvider(ctx, baseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to discover zitadel oidc endpoints: %w", err)
		}

		cc := clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     provider.Endpoint().TokenURL,
			Scopes: []string{
				oidc.ScopeOpenID,
				"urn:zitadel:iam:org:project:id:zitadel:aud",
			},
		}
		httpc = cc.Client(ctx)

	default:
		return nil, errors.New("zitadel config requires a PAT or client credentials")
	}

	return &Client{
		baseURL: baseURL,
		orgID:   cfg.OrgID,
		httpc:   httpc,
	}, nil
}

// CreateUser provisions a new human user from a legacy record. The
// profile is copied, the email is marked verified, the password is a
// freshly generated throwaway (the legacy password is installed later,
// once proven), and the migration marker starts at "migrating".
func (c *Client) CreateUser(ctx context.Context, rec legacy.Record) (string, error) {

	initial, err := InitialPassword()
	if err != nil {
		return "", err
	}

	body := map[string]any{
		"username": rec.LoginName,
		"organization": map[string]any{
			"orgId": c.orgID,
		},
		"profile": map[string]any{
			"givenName":         rec.GivenName,
			"familyName":        rec.FamilyName,
			"displayName":       rec.DisplayName,
			"preferredLanguage": rec.PreferredLanguage,
		},
		"email": map[string]any{
			"email":      rec.Email,
			"isVerified": true,
		},
		"password": map[string]any{
			"password":       initial,
			"changeRequired": false,
		},
		"metadata": []map[string]any{
			{
				"key":   MigrationMetadataKey,
				"value": base64.StdEncoding.EncodeToString([]byte("migrating")),
			},
		},
	}

	var out struct {
		UserID string `json:"userId"`
	}

	if err := c.do(ctx, http.MethodPost, "/v2/users/new", body, &out); err != nil {
		return "", err
	}

	logger.Info("provisioned user from legacy record", map[string]any{
		"user_id":   out.UserID,
		"legacy_id": rec.LegacyID,
	})

	return out.UserID, nil
}

// SetPassword overwrites the stored credential. Safe to repeat with the
// same password.
func (c *Client) SetPassword(ctx context.Context, userID string, password string) error {
	body := map[string]any{
		"password": map[string]any{
			"password":       password,
			"changeRequired": false,
		},
	}
	return c.do(ctx, http.MethodPatch, "/v2/users/"+url.PathEscape(userID), body, nil)
}

// GetMigrationMetadata reports the user's migration marker. migrated is
// true only when the decoded value is exactly "true"; exists tells
// whether the key is present at all.
func (c *Client) GetMigrationMetadata(ctx context.Context, userID string) (migrated bool, exists bool, err error) {

	body := map[string]any{
		"queries": []map[string]any{
			{
				"keyQuery": map[string]any{
					"key":    MigrationMetadataKey,
					"method": "TEXT_QUERY_METHOD_EQUALS",
				},
			},
		},
	}

	var out struct {
		Result []struct {
			Key   string `json:"key"`
			Value string `json:"value"`
		} `json:"result"`
	}

	path := "/v2/users/" + url.PathEscape(userID) + "/metadata/search"
	if err := c.do(ctx, http.MethodPost, path, body, &out); err != nil {
		return false, false, err
	}

	for _, md := range out.Result {
		if md.Key != MigrationMetadataKey {
			continue
		}
		return decodeMetadataValue(md.Value) == "true", true, nil
	}

	return false, false, nil
}

// SetMigratedFlag marks the user fully migrated.
func (c *Client) SetMigratedFlag(ctx context.Context, userID string) error {
	body := map[string]any{
		"metadata": []map[string]any{
			{
				"key":   MigrationMetadataKey,
				"value": base64.StdEncoding.EncodeToString([]byte("true")),
			},
		},
	}
	return c.do(ctx, http.MethodPost, "/v2/users/"+url.PathEscape(userID)+"/metadata", body, nil)
}

// GetSession resolves a session to its user factors.
func (c *Client) GetSession(ctx context.Context, sessionID string, sessionToken string) (userID string, loginName string, err error) {

	var out struct {
		Session struct {
			Factors struct {
				User struct {
					ID        string `json:"id"`
					LoginName string `json:"loginName"`
				} `json:"user"`
			} `json:"factors"`
		} `json:"session"`
	}

	path := "/v2/sessions/" + url.PathEscape(sessionID) + "?sessionToken=" + url.QueryEscape(sessionToken)
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return "", "", err
	}

	return out.Session.Factors.User.ID, out.Session.Factors.User.LoginName, nil
}

// GetUser fetches the canonical user object, returned raw so callers
// can embed it into intercepted responses untouched.
func (c *Client) GetUser(ctx context.Context, userID string) (json.RawMessage, error) {

	var out struct {
		User json.RawMessage `json:"user"`
	}

	if err := c.do(ctx, http.MethodGet, "/v2/users/"+url.PathEscape(userID), nil, &out); err != nil {
		return nil, err
	}

	if len(out.User) == 0 {
		return nil, errors.New("zitadel: user response missing user object")
	}

	return out.User, nil
}

func (c *Client) do(ctx context.Context, method string, path string, body any, out any) error {

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("zitadel: failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("zitadel: request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("zitadel: failed to read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return &UpstreamError{
			StatusCode: resp.StatusCode,
			Body:       string(data),
		}
	}

	if out == nil {
		return nil
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("zitadel: failed to decode response: %w", err)
	}

	return nil
}

// decodeMetadataValue handles both padded and unpadded base64, which
// differs between ZITADEL API versions.
func decodeMetadataValue(value string) string {
	if decoded, err := base64.StdEncoding.DecodeString(value); err == nil {
		return string(decoded)
	}
	if decoded, err := base64.RawStdEncoding.DecodeString(value); err == nil {
		return string(decoded)
	}
	return value
}
