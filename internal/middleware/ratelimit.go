package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/tribute/internal/pkg/errcode"
	"github.com/xxxsen/tribute/internal/pkg/response"
	"github.com/xxxsen/tribute/internal/ratelimit"
)

// RateLimit throttles by client ip, user and route. A nil limiter disables it.
func RateLimit(limiter ratelimit.Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter == nil {
			c.Next()
			return
		}
		ip := c.ClientIP()
		uid := "0"
		if v, ok := c.Get(ContextUserIDKey); ok {
			if id, ok := v.(string); ok && id != "" {
				uid = id
			}
		}
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		ctx := c.Request.Context()
		ok, err := limiter.Allow(ctx, ratelimit.Key(ip, uid, path))
		if err != nil {
			// fail open
			logutil.GetLogger(ctx).Error("rate limiter unavailable", zap.String("path", path), zap.Error(err))
			c.Next()
			return
		}
		if !ok {
			logutil.GetLogger(ctx).Warn("rate limit hit",
				zap.String("ip", ip),
				zap.String("user_id", uid),
				zap.String("path", path),
			)
			response.Abort(c, errcode.ErrTooMany, http.StatusText(http.StatusTooManyRequests))
			return
		}
		c.Next()
	}
}
