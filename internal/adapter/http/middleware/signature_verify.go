package middleware

import (
	"bytes"
	"encoding/base64"
	"io"
	"net/http"

	"github.com/aq2208/storefront-api/internal/logging"
	"github.com/aq2208/storefront-api/internal/security"
	"github.com/gin-gonic/gin"
)

const (
	SignatureHeader = "X-Payment-Signature"
	maxWebhookBody  = 64 * 1024
)

// VerifySignature rejects requests whose body does not match the base64
// RSA-SHA256 signature in SignatureHeader. The body is restored for the
// handler.
func VerifySignature(v security.SignatureVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		rawBody, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody+1))
		_ = c.Request.Body.Close()
		if err != nil || len(rawBody) > maxWebhookBody {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid_body"})
			return
		}

		sig, err := base64.StdEncoding.DecodeString(c.GetHeader(SignatureHeader))
		if err != nil || len(sig) == 0 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid_signature"})
			return
		}

		if err := v.Verify(rawBody, sig); err != nil {
			logging.From(c).Warn("webhook signature rejected", "err", err)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid_signature"})
			return
		}

		c.Request.Body = io.NopCloser(bytes.NewReader(rawBody))
		c.Request.ContentLength = int64(len(rawBody))
		c.Next()
	}
}
