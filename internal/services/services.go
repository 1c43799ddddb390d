package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/temcen/gamerec/internal/config"
	"github.com/temcen/gamerec/internal/database"
	"github.com/temcen/gamerec/internal/messaging"
	"github.com/temcen/gamerec/internal/recommender"
)

type Services struct {
	Auth            *AuthService
	Health          *HealthService
	Metrics         *Metrics
	Models          *recommender.ModelService
	RateLimit       *RateLimitService
	Recommendations *RecommendationService
	SnapshotBus     *messaging.SnapshotBus
}

func New(cfg *config.Config, logger *logrus.Logger, db *database.Database, reg prometheus.Registerer) (*Services, error) {
	var redisClient *redis.Client
	var source SnapshotSource
	if db != nil {
		redisClient = db.Redis
		if db.PG != nil {
			source = database.NewSnapshotStore(db.PG, logger)
		}
	}

	opts, err := ModelOptions(&cfg.Recommendation)
	if err != nil {
		return nil, err
	}

	modelService := recommender.NewModelService(opts, logger)
	metrics := NewMetrics(reg)
	cache := NewResultCache(redisClient, cfg.Recommendation.Caching, logger)

	recommendations := NewRecommendationService(
		modelService, source, cache, metrics, &cfg.Recommendation, logger,
	)

	var rateLimit *RateLimitService
	if cfg.Security.RateLimit.Enabled {
		rateLimit = NewRateLimitService(cfg.Security.RateLimit, logger, redisClient)
	}

	var snapshotBus *messaging.SnapshotBus
	if cfg.Kafka.Enabled {
		snapshotBus, err = messaging.NewSnapshotBus(cfg, logger)
		if err != nil {
			return nil, err
		}
	}

	health := NewHealthService(logger, db, modelService, reg)
	if snapshotBus != nil {
		health.WatchRefreshConsumer(snapshotBus)
	}

	return &Services{
		Auth:            NewAuthService(cfg, logger, redisClient),
		Health:          health,
		Metrics:         metrics,
		Models:          modelService,
		RateLimit:       rateLimit,
		Recommendations: recommendations,
		SnapshotBus:     snapshotBus,
	}, nil
}
