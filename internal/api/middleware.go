package api

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yourorg/payment-gateway/internal/content"
)

// Headers set by the upstream auth proxy.
const (
	HeaderUserID      = "X-User-ID"
	HeaderPermissions = "X-User-Permissions"
)

// RequestLogger logs one entry per request. Query strings are left out
// since they can carry tokens.
func RequestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("route", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}
		switch status := c.Writer.Status(); {
		case status >= 500:
			log.Error("request failed", fields...)
		case status >= 400:
			log.Warn("request rejected", fields...)
		default:
			log.Info("request handled", fields...)
		}
	}
}

func viewerFromRequest(c *gin.Context) content.Viewer {
	v := content.Viewer{UserID: strings.TrimSpace(c.GetHeader(HeaderUserID))}
	for _, p := range strings.Split(c.GetHeader(HeaderPermissions), ",") {
		if p = strings.TrimSpace(p); p != "" {
			v.Permissions = append(v.Permissions, p)
		}
	}
	return v
}
