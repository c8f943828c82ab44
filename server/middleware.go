package server

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"
	"stream-lab/auth"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const headerRequestID = "X-Request-ID"

// RequestLogger reads or generates a request id and logs every completed request.
func RequestLogger(log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		reqID := c.GetHeader(headerRequestID)
		if reqID == "" {
			reqID = uuid.New().String()
		}
		c.Header(headerRequestID, reqID)

		c.Next()

		attrs := []any{
			"request_id", reqID,
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency", time.Since(start),
			"client_ip", c.ClientIP(),
		}
		if claims, ok := auth.ClaimsFrom(c); ok {
			attrs = append(attrs, "operator_id", claims.OperatorID)
		}
		if len(c.Errors) > 0 {
			attrs = append(attrs, "error", c.Errors.String())
			log.Error("Request failed", attrs...)
			return
		}
		log.Debug("Request completed", attrs...)
	}
}

// BackendToken guards the completion callbacks with the shared backend secret.
// An empty secret closes the route.
func BackendToken(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
		if secret == "" || subtle.ConstantTimeCompare([]byte(token), []byte(secret)) != 1 {
			fail(c, http.StatusUnauthorized, "UNAUTHORIZED", "invalid backend token")
			return
		}
		c.Next()
	}
}
