package middleware

import (
	"net/http"

	"github.com/matiasracedo/zitadel-trickle-migration/internal/signature"

	"github.com/gin-gonic/gin"
)

// RawBodyKey is where the signature gate stashes the verified raw body
// for the handler behind it.
const RawBodyKey = "rawBody"

// VerifySignature rejects any callback that does not carry a valid
// signature for this endpoint's secret. It runs before any business
// payload is parsed; handlers behind it read the body via RawBodyKey.
func VerifySignature(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader(signature.Header)
		if header == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "missing signature header",
			})
			return
		}

		body, err := c.GetRawData()
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"error": "failed to read request body",
			})
			return
		}

		if !signature.Verify(body, header, secret) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "invalid signature",
			})
			return
		}

		c.Set(RawBodyKey, body)
		c.Next()
	}
}
