package services

import (
	"context"

	"github.com/temcen/gamerec/internal/messaging"
	"github.com/temcen/gamerec/internal/recommender"
	"github.com/temcen/gamerec/pkg/models"
)

// SnapshotSource defines where full rebuilds read their input from
type SnapshotSource interface {
	LoadSnapshot(ctx context.Context) (*models.Snapshot, error)
}

// RecommendationServiceInterface defines the interface for recommendation queries and rebuilds
type RecommendationServiceInterface interface {
	SimilarItems(ctx context.Context, itemID string, k int) (*models.SimilarItemsResponse, error)
	RecommendForUser(ctx context.Context, userID string, n int) (*models.UserRecommendationResponse, error)
	Rebuild(ctx context.Context, snapshot *models.Snapshot) (*recommender.BuildStats, error)
	Status() models.ModelStatus
}

// RefreshConsumerStats reports how far the refresh consumer is behind.
type RefreshConsumerStats interface {
	ConsumerStats() (messaging.ConsumerStats, bool)
}

// RefreshPublisherInterface defines the interface for asynchronous refresh requests
type RefreshPublisherInterface interface {
	RefreshConsumerStats
	PublishRefresh(ctx context.Context, source, requestedBy string) (*models.SnapshotRefreshEvent, error)
}
