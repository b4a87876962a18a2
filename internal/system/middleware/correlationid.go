package middleware

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/waterreg/registry-server/internal/system/constants"
	"github.com/waterreg/registry-server/internal/system/log"
)

// CorrelationIDMiddleware propagates an inbound correlation id or mints one.
// The id is stored on the gin context and on the request context for logging.
func CorrelationIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		correlationID := extractCorrelationID(c)
		if correlationID == "" {
			correlationID = uuid.New().String()
		}
		c.Set(constants.ContextKeyCorrelationID, correlationID)
		c.Header(constants.CorrelationIDHeaderName, correlationID)
		c.Request = c.Request.WithContext(
			context.WithValue(c.Request.Context(), log.ContextKeyCorrelationID, correlationID))
		c.Next()
	}
}

func extractCorrelationID(c *gin.Context) string {
	headers := []string{constants.CorrelationIDHeaderName, "X-Request-ID", "X-Trace-ID"}
	for _, header := range headers {
		if id := c.GetHeader(header); id != "" {
			return id
		}
	}
	return ""
}
