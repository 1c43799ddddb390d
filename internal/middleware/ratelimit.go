package middleware

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/temcen/gamerec/pkg/models"
)

type RateLimiter interface {
	IsAllowed(ctx context.Context, clientID, scope string) (bool, *models.RateLimitInfo, error)
}

// RateLimit limits requests per client within scope. Admin routes are keyed
// by token subject, everything else by client IP. A nil limiter disables the
// check.
func RateLimit(limiter RateLimiter, scope string, logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter == nil {
			c.Next()
			return
		}

		clientID := c.ClientIP()
		if claims := GetClaimsFromContext(c); claims != nil && claims.Subject != "" {
			clientID = claims.Subject
		}

		allowed, info, err := limiter.IsAllowed(c.Request.Context(), clientID, scope)
		if err != nil {
			logger.WithError(err).Error("Failed to check rate limit")
			// Continue on error to avoid blocking requests when Redis is down
			c.Next()
			return
		}

		// Set rate limit headers
		c.Header("X-RateLimit-Limit", strconv.Itoa(info.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(info.Remaining))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(info.ResetTime, 10))

		if !allowed {
			logger.WithFields(logrus.Fields{
				"client_id": clientID,
				"scope":     scope,
				"limit":     info.Limit,
			}).Warn("Rate limit exceeded")

			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": gin.H{
					"code":    "RATE_LIMIT_EXCEEDED",
					"message": "Rate limit exceeded. Please try again later.",
				},
				"rate_limit": info,
			})
			return
		}

		c.Next()
	}
}
