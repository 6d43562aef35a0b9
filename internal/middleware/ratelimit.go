package middleware

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pulsemetrics/guardrail/internal/models"
	"github.com/pulsemetrics/guardrail/internal/ratelimit"
	"github.com/pulsemetrics/guardrail/internal/service"
)

// AccountIDHeader is set by the host application's auth layer once it has
// resolved the caller to an account. Requests without it are limited by
// client IP.
const AccountIDHeader = "X-Account-ID"

// RateLimit runs the decision engine for every request and translates the
// result into X-RateLimit headers and, on deny, a 429.
func RateLimit(engine *service.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		identifier := c.GetHeader(AccountIDHeader)
		kind := models.KindUser
		if identifier == "" {
			identifier = c.ClientIP()
			kind = models.KindIP
		}

		action := c.FullPath()
		if action == "" {
			action = c.Request.URL.Path
		}

		result := engine.Check(c.Request.Context(), identifier, kind, action)

		writeRateLimitHeaders(c, result)

		if !result.Allowed {
			c.Header("Retry-After", fmt.Sprintf("%d", result.ResetInSeconds))
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":       "Rate limit exceeded",
				"limit":       result.Limit,
				"retry_after": result.ResetInSeconds,
			})
			c.Abort()
			return
		}

		c.Next()
	}
}

func writeRateLimitHeaders(c *gin.Context, result ratelimit.Result) {
	c.Header("X-RateLimit-Limit", fmt.Sprintf("%d", result.Limit))
	c.Header("X-RateLimit-Remaining", fmt.Sprintf("%d", result.Remaining))
	c.Header("X-RateLimit-Reset", fmt.Sprintf("%d", result.ResetInSeconds))
}
