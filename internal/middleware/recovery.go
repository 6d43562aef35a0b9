package middleware

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Recovery converts a panic anywhere under the engine's routes into a 500.
// The decision engine itself never panics on bad input (empty identifiers
// and unknown tiers degrade), so anything caught here is a programming
// error worth the full log line.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				requestID := c.GetString("request_id")
				log.Printf("http: [%s] panic on %s %s: %v",
					requestID, c.Request.Method, c.Request.URL.Path, err)

				c.JSON(http.StatusInternalServerError, gin.H{
					"error": "Internal Server Error",
				})
				c.Abort()
			}
		}()
		c.Next()
	}
}
