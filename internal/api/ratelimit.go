package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// RateLimitMiddleware caps request throughput across the boundary. Burst is
// allowed above the steady rate because dispatch traffic arrives in clumps:
// CSV imports fan out into registrations and GPS feeds report whole fleets
// at once.
func RateLimitMiddleware(rps, burst int) gin.HandlerFunc {
	if burst < rps {
		burst = rps
	}
	limiter := rate.NewLimiter(rate.Limit(rps), burst)

	return func(c *gin.Context) {
		if !limiter.Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "rate limit exceeded",
			})
			return
		}
		c.Next()
	}
}
