package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/temcen/gamerec/internal/config"
	"github.com/temcen/gamerec/pkg/models"
)

const cacheKeyPrefix = "gamerec"

// ResultCache stores query responses in Redis. Keys embed the model ID, a
// fingerprint of the snapshot the model was built from, so entries written by
// another replica or an earlier process are only reused for an identical
// model. A rebuild from new data makes older entries unreachable and TTLs
// reclaim them.
// A nil client turns every call into a miss.
type ResultCache struct {
	client             *redis.Client
	similarItemsTTL    time.Duration
	recommendationsTTL time.Duration
	logger             *logrus.Logger
}

func NewResultCache(client *redis.Client, cfg config.CachingConfig, logger *logrus.Logger) *ResultCache {
	return &ResultCache{
		client:             client,
		similarItemsTTL:    cfg.SimilarItemsTTL,
		recommendationsTTL: cfg.RecommendationsTTL,
		logger:             logger,
	}
}

func similarItemsKey(modelID, itemID string, k int) string {
	return fmt.Sprintf("%s:%s:similar:%s:%d", cacheKeyPrefix, modelID, itemID, k)
}

func recommendationsKey(modelID, userID string, n int) string {
	return fmt.Sprintf("%s:%s:recs:%s:%d", cacheKeyPrefix, modelID, userID, n)
}

func (c *ResultCache) GetSimilarItems(ctx context.Context, modelID, itemID string, k int) (*models.SimilarItemsResponse, bool) {
	var response models.SimilarItemsResponse
	if !c.get(ctx, similarItemsKey(modelID, itemID, k), &response) {
		return nil, false
	}
	return &response, true
}

func (c *ResultCache) SetSimilarItems(ctx context.Context, k int, response *models.SimilarItemsResponse) {
	c.set(ctx, similarItemsKey(response.ModelID, response.ItemID, k), response, c.similarItemsTTL)
}

func (c *ResultCache) GetRecommendations(ctx context.Context, modelID, userID string, n int) (*models.UserRecommendationResponse, bool) {
	var response models.UserRecommendationResponse
	if !c.get(ctx, recommendationsKey(modelID, userID, n), &response) {
		return nil, false
	}
	return &response, true
}

func (c *ResultCache) SetRecommendations(ctx context.Context, n int, response *models.UserRecommendationResponse) {
	c.set(ctx, recommendationsKey(response.ModelID, response.UserID, n), response, c.recommendationsTTL)
}

func (c *ResultCache) get(ctx context.Context, key string, dest interface{}) bool {
	if c.client == nil {
		return false
	}

	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.WithError(err).WithField("key", key).Warn("Failed to read cached result")
		}
		return false
	}

	if err := json.Unmarshal(data, dest); err != nil {
		c.logger.WithError(err).WithField("key", key).Warn("Failed to decode cached result")
		return false
	}
	return true
}

func (c *ResultCache) set(ctx context.Context, key string, value interface{}, ttl time.Duration) {
	if c.client == nil || ttl <= 0 {
		return
	}

	data, err := json.Marshal(value)
	if err != nil {
		c.logger.WithError(err).WithField("key", key).Warn("Failed to encode result for cache")
		return
	}

	if err := c.client.Set(ctx, key, data, ttl).Err(); err != nil {
		c.logger.WithError(err).WithField("key", key).Warn("Failed to cache result")
	}
}
