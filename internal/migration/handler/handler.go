package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/matiasracedo/zitadel-trickle-migration/internal/logger"
	"github.com/matiasracedo/zitadel-trickle-migration/internal/middleware"
	"github.com/matiasracedo/zitadel-trickle-migration/internal/migration"

	"github.com/gin-gonic/gin"
)

// SigningKeys holds the per-endpoint webhook secrets. Each endpoint is
// provisioned independently so one compromised key does not expose the
// other two callbacks.
type SigningKeys struct {
	ListUsers   string
	SetSession  string
	SetPassword string
}

type Handler struct {
	machine *migration.Machine
	keys    SigningKeys
}

func NewHandler(machine *migration.Machine, keys SigningKeys) *Handler {
	return &Handler{
		machine: machine,
		keys:    keys,
	}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.POST("/action/list-users", middleware.VerifySignature(h.keys.ListUsers), h.listUsers)
	r.POST("/action/set-session", middleware.VerifySignature(h.keys.SetSession), h.setSession)
	r.POST("/action/set-password", middleware.VerifySignature(h.keys.SetPassword), h.setPassword)

	for _, route := range r.Routes() {
		logger.Info("registered route", map[string]any{
			"method": route.Method,
			"path":   route.Path,
		})
	}
}

func (h *Handler) listUsers(c *gin.Context) {
	env, ok := parseEnvelope(c)
	if !ok {
		return
	}

	body := h.machine.HandleListUsers(c.Request.Context(), env)
	writeRaw(c, body)
}

func (h *Handler) setSession(c *gin.Context) {
	env, ok := parseEnvelope(c)
	if !ok {
		return
	}

	body, err := h.machine.HandleSetSession(c.Request.Context(), env)
	if errors.Is(err, migration.ErrCredentialMismatch) {
		c.JSON(http.StatusBadRequest, migration.AbortResponse{
			ForwardedStatusCode:   http.StatusBadRequest,
			ForwardedErrorMessage: migration.WrongPasswordMessage,
		})
		return
	}
	if err != nil {
		// The machine fails open on set-session; anything else here is
		// a defect, but the native flow must still not be blocked.
		logger.Error("unexpected set-session error, passing through", map[string]any{
			"error": err.Error(),
		})
		writeRaw(c, env.Response)
		return
	}

	writeRaw(c, body)
}

func (h *Handler) setPassword(c *gin.Context) {
	env, ok := parseEnvelope(c)
	if !ok {
		return
	}

	body, err := h.machine.HandleSetPassword(c.Request.Context(), env)
	if errors.Is(err, migration.ErrMissingUserID) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": migration.ErrMissingUserID.Error(),
		})
		return
	}
	if err != nil {
		logger.Error("failed to finalize migration", map[string]any{
			"error": err.Error(),
		})
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "failed to finalize migration",
		})
		return
	}

	writeRaw(c, body)
}

func parseEnvelope(c *gin.Context) (*migration.Envelope, bool) {
	raw, ok := c.MustGet(middleware.RawBodyKey).([]byte)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "raw body missing"})
		return nil, false
	}

	var env migration.Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return nil, false
	}

	return &env, true
}

func writeRaw(c *gin.Context, body json.RawMessage) {
	if len(body) == 0 {
		c.Status(http.StatusOK)
		return
	}
	c.Data(http.StatusOK, "application/json", body)
}
