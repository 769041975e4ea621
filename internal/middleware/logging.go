package middleware

import (
	"time"

	"inkwell/internal/logging"

	"github.com/gin-gonic/gin"
)

// RequestLogger 每个请求一条日志，5xx 记为 error
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		event := logging.Info()
		switch {
		case status >= 500:
			event = logging.Error()
		case status >= 400:
			event = logging.Warn()
		}
		if len(c.Errors) > 0 {
			event = event.Str("errors", c.Errors.String())
		}
		if user := CurrentUser(c); user != nil {
			event = event.Uint("user_id", user.ID)
		}
		event.
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Str("ip", c.ClientIP()).
			Msg("request")
	}
}
