package middleware

import (
	"log"
	"time"

	"github.com/gin-gonic/gin"
)

// Logger writes one line per request. When the rate-limit middleware ran,
// the remaining-quota header is appended so a denied caller's log line
// shows how the decision was reached.
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		latency := time.Since(start)
		statusCode := c.Writer.Status()
		requestID := c.GetString("request_id")

		if remaining := c.Writer.Header().Get("X-RateLimit-Remaining"); remaining != "" {
			log.Printf("http: [%s] %s %s - %d - %v - %s - remaining=%s",
				requestID, method, path, statusCode, latency, c.ClientIP(), remaining)
			return
		}

		log.Printf("http: [%s] %s %s - %d - %v - %s",
			requestID, method, path, statusCode, latency, c.ClientIP())
	}
}
