package middleware

import (
	"github.com/gin-gonic/gin"

	"realtime-chat/internal/metrics"
)

// Metrics records request counts and latency per route template.
func Metrics(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		if metrics.IsRootPath(c.Request.URL.Path) {
			c.Next()
			return
		}
		end := m.BeginRequest(c.Request.Method)
		defer func() { end(c.FullPath(), c.Writer.Status()) }()
		c.Next()
	}
}
