package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/temcen/gamerec/pkg/models"
)

// countingLimiter allows the first limit requests per client.
type countingLimiter struct {
	limit int
	seen  map[string]int
	err   error
}

func (l *countingLimiter) IsAllowed(_ context.Context, clientID, scope string) (bool, *models.RateLimitInfo, error) {
	if l.err != nil {
		return false, nil, l.err
	}
	l.seen[scope+":"+clientID]++
	remaining := l.limit - l.seen[scope+":"+clientID]
	if remaining < 0 {
		return false, &models.RateLimitInfo{Limit: l.limit, Remaining: 0, ResetTime: 1700000000}, nil
	}
	return true, &models.RateLimitInfo{Limit: l.limit, Remaining: remaining, ResetTime: 1700000000}, nil
}

func TestRateLimit(t *testing.T) {
	gin.SetMode(gin.TestMode)

	t.Run("rejects once the window is exhausted", func(t *testing.T) {
		limiter := &countingLimiter{limit: 2, seen: map[string]int{}}
		router := gin.New()
		router.GET("/q", RateLimit(limiter, "query", testLogger()), func(c *gin.Context) {
			c.Status(http.StatusOK)
		})

		codes := make([]int, 0, 3)
		for i := 0; i < 3; i++ {
			w := httptest.NewRecorder()
			req, _ := http.NewRequest(http.MethodGet, "/q", nil)
			router.ServeHTTP(w, req)
			codes = append(codes, w.Code)

			assert.Equal(t, "2", w.Header().Get("X-RateLimit-Limit"))
			if w.Code == http.StatusTooManyRequests {
				assert.Equal(t, "RATE_LIMIT_EXCEEDED", errorCode(t, w.Body.Bytes()))
				assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
			}
		}
		assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
	})

	t.Run("limiter errors let the request through", func(t *testing.T) {
		limiter := &countingLimiter{err: errors.New("redis down")}
		router := gin.New()
		router.GET("/q", RateLimit(limiter, "query", testLogger()), func(c *gin.Context) {
			c.Status(http.StatusOK)
		})

		w := httptest.NewRecorder()
		req, _ := http.NewRequest(http.MethodGet, "/q", nil)
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, w.Header().Get("X-RateLimit-Limit"))
	})

	t.Run("nil limiter is a no-op", func(t *testing.T) {
		router := gin.New()
		router.GET("/q", RateLimit(nil, "query", testLogger()), func(c *gin.Context) {
			c.Status(http.StatusOK)
		})

		w := httptest.NewRecorder()
		req, _ := http.NewRequest(http.MethodGet, "/q", nil)
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
	})
}
