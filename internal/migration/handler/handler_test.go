package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/matiasracedo/zitadel-trickle-migration/internal/legacy"
	"github.com/matiasracedo/zitadel-trickle-migration/internal/migration"
	"github.com/matiasracedo/zitadel-trickle-migration/internal/signature"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubPlatform implements migration.PlatformClient with just enough
// behavior to exercise the dispatcher's status mapping.
type stubPlatform struct {
	metadata  map[string]string
	sessions  map[string][2]string // sessionID -> {userID, loginName}
	passwords map[string]string
}

func (s *stubPlatform) CreateUser(context.Context, legacy.Record) (string, error) {
	return "210000001", nil
}

func (s *stubPlatform) SetPassword(_ context.Context, userID, password string) error {
	s.passwords[userID] = password
	return nil
}

func (s *stubPlatform) GetMigrationMetadata(_ context.Context, userID string) (bool, bool, error) {
	v, ok := s.metadata[userID]
	return v == "true", ok, nil
}

func (s *stubPlatform) SetMigratedFlag(_ context.Context, userID string) error {
	s.metadata[userID] = "true"
	return nil
}

func (s *stubPlatform) GetSession(_ context.Context, sessionID, _ string) (string, string, error) {
	f, ok := s.sessions[sessionID]
	if !ok {
		return "", "", errors.New("session not found")
	}
	return f[0], f[1], nil
}

func (s *stubPlatform) GetUser(_ context.Context, userID string) (json.RawMessage, error) {
	return json.RawMessage(`{"userId":"` + userID + `","loginNames":["legacy-user@gmail.com"]}`), nil
}

const (
	listUsersKey   = "list-users-key"
	setSessionKey  = "set-session-key"
	setPasswordKey = "set-password-key"
)

func newTestRouter(platform *stubPlatform) *gin.Engine {
	gin.SetMode(gin.TestMode)

	directory := legacy.NewMemoryDirectory(legacy.Record{
		LegacyID:  "legacy-1",
		LoginName: "legacy-user@gmail.com",
		Email:     "legacy-user@gmail.com",
		Password:  "Password1!",
	})

	machine := migration.NewMachine(directory, platform, "")

	r := gin.New()
	NewHandler(machine, SigningKeys{
		ListUsers:   listUsersKey,
		SetSession:  setSessionKey,
		SetPassword: setPasswordKey,
	}).RegisterRoutes(r)

	return r
}

func newStubPlatform() *stubPlatform {
	return &stubPlatform{
		metadata:  make(map[string]string),
		sessions:  make(map[string][2]string),
		passwords: make(map[string]string),
	}
}

func signedRequest(t *testing.T, path string, body []byte, secret string) *http.Request {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	ts := strconv.FormatInt(time.Now().Unix(), 10)
	req.Header.Set(signature.Header, "t="+ts+",v1="+signature.Compute(body, ts, secret))

	return req
}

func TestRejectsMissingSignature(t *testing.T) {
	r := newTestRouter(newStubPlatform())

	req := httptest.NewRequest(http.MethodPost, "/action/list-users", bytes.NewReader([]byte(`{}`)))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.JSONEq(t, `{"error":"missing signature header"}`, w.Body.String())
}

func TestRejectsWrongSecret(t *testing.T) {
	r := newTestRouter(newStubPlatform())

	req := signedRequest(t, "/action/list-users", []byte(`{}`), "not-the-key")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.JSONEq(t, `{"error":"invalid signature"}`, w.Body.String())
}

func TestRejectsInvalidEnvelope(t *testing.T) {
	r := newTestRouter(newStubPlatform())

	req := signedRequest(t, "/action/list-users", []byte(`not json`), listUsersKey)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListUsersPassThrough(t *testing.T) {
	r := newTestRouter(newStubPlatform())

	response := `{"details":{"totalResult":"1"},"result":[{"userId":"native"}]}`
	body := []byte(`{"userID":"caller","request":{"queries":[]},"response":` + response + `}`)

	req := signedRequest(t, "/action/list-users", body, listUsersKey)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, response, w.Body.String())
}

func TestListUsersProvisions(t *testing.T) {
	r := newTestRouter(newStubPlatform())

	body := []byte(`{
		"userID": "caller",
		"request": {"queries":[{"loginNameQuery":{"loginName":"legacy-user@gmail.com"}}]},
		"response": {"details":{"totalResult":"0"},"result":[]}
	}`)

	req := signedRequest(t, "/action/list-users", body, listUsersKey)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Details struct {
			TotalResult string `json:"totalResult"`
		} `json:"details"`
		Result []struct {
			LoginNames []string `json:"loginNames"`
		} `json:"result"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "1", resp.Details.TotalResult)
	require.Len(t, resp.Result, 1)
	assert.Contains(t, resp.Result[0].LoginNames, "legacy-user@gmail.com")
}

func TestSetSessionMismatchAbort(t *testing.T) {
	platform := newStubPlatform()
	platform.sessions["sess-1"] = [2]string{"210000001", "legacy-user@gmail.com"}
	platform.metadata["210000001"] = "migrating"
	r := newTestRouter(platform)

	body := []byte(`{
		"request": {"sessionId":"sess-1","sessionToken":"tok","checks":{"password":{"password":"wrong"}}},
		"response": {}
	}`)

	req := signedRequest(t, "/action/set-session", body, setSessionKey)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t,
		`{"forwardedStatusCode":400,"forwardedErrorMessage":"Wrong username or password. Please try again."}`,
		w.Body.String(),
	)
}

func TestSetSessionCorrectPassword(t *testing.T) {
	platform := newStubPlatform()
	platform.sessions["sess-1"] = [2]string{"210000001", "legacy-user@gmail.com"}
	platform.metadata["210000001"] = "migrating"
	r := newTestRouter(platform)

	response := `{"details":{"sequence":"42"}}`
	body := []byte(`{
		"request": {"sessionId":"sess-1","sessionToken":"tok","checks":{"password":{"password":"Password1!"}}},
		"response": ` + response + `
	}`)

	req := signedRequest(t, "/action/set-session", body, setSessionKey)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, response, w.Body.String())
	assert.Equal(t, "Password1!", platform.passwords["210000001"])
	assert.Equal(t, "true", platform.metadata["210000001"])
}

func TestSetPasswordMissingUserID(t *testing.T) {
	r := newTestRouter(newStubPlatform())

	body := []byte(`{"request":{},"response":{}}`)
	req := signedRequest(t, "/action/set-password", body, setPasswordKey)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"userId is required"}`, w.Body.String())
}

func TestSetPasswordReconciles(t *testing.T) {
	platform := newStubPlatform()
	platform.metadata["210000001"] = "migrating"
	r := newTestRouter(platform)

	response := `{"details":{"sequence":"7"}}`
	body := []byte(`{"request":{"userId":"210000001"},"response":` + response + `}`)

	req := signedRequest(t, "/action/set-password", body, setPasswordKey)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, response, w.Body.String())
	assert.Equal(t, "true", platform.metadata["210000001"])
}

func TestEndpointsUseIndependentSecrets(t *testing.T) {
	r := newTestRouter(newStubPlatform())

	// A valid list-users signature must not open the set-session door.
	body := []byte(`{"request":{},"response":{}}`)
	req := signedRequest(t, "/action/set-session", body, listUsersKey)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
