package middleware

import (
	"net/url"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"realtime-chat/internal/metrics"
)

// Logger writes one structured line per request. Health and scrape traffic
// is logged at debug so it does not drown real requests.
func Logger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		level := requestLevel(c.Request.URL.Path, status)
		ce := logger.Check(level, "HTTP request")
		if ce == nil {
			return
		}

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("route", c.FullPath()),
			zap.String("path", c.Request.URL.Path),
			zap.String("query", redactToken(c.Request.URL.RawQuery)),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		}
		if userID, ok := GetUserID(c); ok {
			fields = append(fields, zap.String("userId", userID.String()))
		}
		if errs := c.Errors.ByType(gin.ErrorTypePrivate); len(errs) > 0 {
			fields = append(fields, zap.String("errors", errs.String()))
		}
		ce.Write(fields...)
	}
}

func requestLevel(path string, status int) zapcore.Level {
	switch {
	case status >= 500:
		return zapcore.ErrorLevel
	case status >= 400:
		return zapcore.WarnLevel
	case path != "/ws" && metrics.IsRootPath(path):
		return zapcore.DebugLevel
	default:
		return zapcore.InfoLevel
	}
}

// redactToken hides the websocket credential carried in the query string.
func redactToken(query string) string {
	if query == "" {
		return query
	}
	values, err := url.ParseQuery(query)
	if err != nil || !values.Has("token") {
		return query
	}
	values.Set("token", "REDACTED")
	return values.Encode()
}
