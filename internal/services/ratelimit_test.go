package services

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/temcen/gamerec/internal/config"
)

func TestRateLimitService(t *testing.T) {
	cfg := config.RateLimitConfig{Enabled: true, Requests: 10, AdminRequests: 2, Window: time.Minute}

	t.Run("without redis every request is allowed", func(t *testing.T) {
		limiter := NewRateLimitService(cfg, testLogger(), nil)

		for i := 0; i < 20; i++ {
			allowed, info, err := limiter.IsAllowed(context.Background(), "10.0.0.1", ScopeQuery)
			require.NoError(t, err)
			assert.True(t, allowed)
			assert.Equal(t, 10, info.Limit)
		}
	})

	t.Run("admin scope has its own limit", func(t *testing.T) {
		limiter := NewRateLimitService(cfg, testLogger(), nil)

		_, info, err := limiter.IsAllowed(context.Background(), "ops", ScopeAdmin)
		require.NoError(t, err)
		assert.Equal(t, 2, info.Limit)
	})

	t.Run("fails open when redis is unreachable", func(t *testing.T) {
		client := redis.NewClient(&redis.Options{
			Addr:        "127.0.0.1:1",
			MaxRetries:  -1,
			DialTimeout: 50 * time.Millisecond,
		})
		defer client.Close()

		limiter := NewRateLimitService(cfg, testLogger(), client)
		allowed, info, err := limiter.IsAllowed(context.Background(), "10.0.0.1", ScopeQuery)
		require.NoError(t, err)
		assert.True(t, allowed)
		assert.Equal(t, 10, info.Remaining)
	})

	t.Run("keys are scoped", func(t *testing.T) {
		assert.Equal(t, "gamerec:rate_limit:query:10.0.0.1", rateLimitKey("10.0.0.1", ScopeQuery))
		assert.Equal(t, "gamerec:rate_limit:admin:ops", rateLimitKey("ops", ScopeAdmin))
	})
}
