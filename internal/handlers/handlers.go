package handlers

import (
	"github.com/sirupsen/logrus"

	"github.com/temcen/gamerec/internal/config"
	"github.com/temcen/gamerec/internal/services"
)

type Handlers struct {
	Health         *HealthHandler
	Recommendation *RecommendationHandler
	Admin          *AdminHandler
}

func New(cfg *config.Config, logger *logrus.Logger, svc *services.Services) *Handlers {
	var publisher services.RefreshPublisherInterface
	if svc.SnapshotBus != nil {
		publisher = svc.SnapshotBus
	}

	return &Handlers{
		Health:         NewHealthHandler(logger, svc.Health),
		Recommendation: NewRecommendationHandler(svc.Recommendations, &cfg.Recommendation, logger),
		Admin:          NewAdminHandler(svc.Recommendations, publisher, logger),
	}
}
