package services

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/temcen/gamerec/internal/config"
	"github.com/temcen/gamerec/pkg/models"
)

const (
	ScopeQuery = "query"
	ScopeAdmin = "admin"
)

// RateLimitService implements a sliding window limit per client using Redis
// sorted sets. It fails open when Redis is unavailable.
type RateLimitService struct {
	config      config.RateLimitConfig
	logger      *logrus.Logger
	redisClient *redis.Client
}

func NewRateLimitService(cfg config.RateLimitConfig, logger *logrus.Logger, redisClient *redis.Client) *RateLimitService {
	return &RateLimitService{
		config:      cfg,
		logger:      logger,
		redisClient: redisClient,
	}
}

func rateLimitKey(clientID, scope string) string {
	return fmt.Sprintf("gamerec:rate_limit:%s:%s", scope, clientID)
}

func (s *RateLimitService) limitFor(scope string) int {
	if scope == ScopeAdmin {
		return s.config.AdminRequests
	}
	return s.config.Requests
}

func (s *RateLimitService) CheckLimit(ctx context.Context, clientID, scope string) (*models.RateLimitInfo, error) {
	limit := s.limitFor(scope)
	window := s.config.Window
	now := time.Now()

	permissive := &models.RateLimitInfo{
		Limit:     limit,
		Remaining: limit,
		ResetTime: now.Add(window).Unix(),
	}
	if s.redisClient == nil || limit <= 0 || window <= 0 {
		return permissive, nil
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	key := rateLimitKey(clientID, scope)
	windowStart := now.Add(-window)

	pipe := s.redisClient.Pipeline()

	// Remove expired entries
	pipe.ZRemRangeByScore(ctx, key, "0", strconv.FormatInt(windowStart.UnixNano(), 10))

	// Count current requests in window
	countCmd := pipe.ZCard(ctx, key)

	// Add current request
	pipe.ZAdd(ctx, key, redis.Z{
		Score:  float64(now.UnixNano()),
		Member: strconv.FormatInt(now.UnixNano(), 10),
	})

	pipe.Expire(ctx, key, window)

	if _, err := pipe.Exec(ctx); err != nil {
		s.logger.WithError(err).Warn("Failed to execute rate limit pipeline")
		return permissive, nil
	}

	remaining := limit - int(countCmd.Val()) - 1
	if remaining < -1 {
		remaining = -1
	}

	return &models.RateLimitInfo{
		Limit:     limit,
		Remaining: remaining,
		ResetTime: now.Add(window).Unix(),
	}, nil
}

// IsAllowed counts the request against clientID's window. The returned info
// never reports a negative remaining count.
func (s *RateLimitService) IsAllowed(ctx context.Context, clientID, scope string) (bool, *models.RateLimitInfo, error) {
	info, err := s.CheckLimit(ctx, clientID, scope)
	if err != nil {
		return false, nil, err
	}

	allowed := info.Remaining >= 0
	if info.Remaining < 0 {
		info.Remaining = 0
	}
	return allowed, info, nil
}

func (s *RateLimitService) Reset(ctx context.Context, clientID, scope string) error {
	if s.redisClient == nil {
		return nil
	}
	return s.redisClient.Del(ctx, rateLimitKey(clientID, scope)).Err()
}
