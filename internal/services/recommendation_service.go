package services

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/temcen/gamerec/internal/config"
	"github.com/temcen/gamerec/internal/recommender"
	"github.com/temcen/gamerec/pkg/models"
)

// ModelOptions converts the recommendation config into builder options.
func ModelOptions(cfg *config.RecommendationConfig) (recommender.Options, error) {
	opts := recommender.DefaultOptions()

	switch recommender.ScoringFormula(cfg.Interactions.Scoring) {
	case "", recommender.ScoringHoursThreshold:
		opts.Interactions.Formula = recommender.ScoringHoursThreshold
	case recommender.ScoringPlainAverage:
		opts.Interactions.Formula = recommender.ScoringPlainAverage
	default:
		return opts, fmt.Errorf("unknown interaction scoring %q", cfg.Interactions.Scoring)
	}
	if cfg.Interactions.HoursThreshold > 0 {
		opts.Interactions.HoursThreshold = cfg.Interactions.HoursThreshold
	}
	if cfg.Interactions.ThresholdMultiplier > 0 {
		opts.Interactions.ThresholdMultiplier = cfg.Interactions.ThresholdMultiplier
	}
	if cfg.Interactions.HoursDivisor > 0 {
		opts.Interactions.HoursDivisor = cfg.Interactions.HoursDivisor
	}

	opts.Expansion = recommender.ExpansionConfig{
		InitialNeighbors: cfg.Expansion.InitialNeighbors,
		NeighborStep:     cfg.Expansion.NeighborStep,
		MaxRounds:        cfg.Expansion.MaxRounds,
	}
	opts.QueryTimeout = cfg.Expansion.Timeout

	opts.Workers = cfg.Build.Workers
	if opts.Workers <= 0 {
		opts.Workers = runtime.GOMAXPROCS(0)
	}

	return opts, nil
}

// RecommendationService fronts the model service with result caching,
// metrics and snapshot loading.
type RecommendationService struct {
	models  *recommender.ModelService
	source  SnapshotSource
	cache   *ResultCache
	metrics *Metrics
	config  *config.RecommendationConfig
	logger  *logrus.Logger
}

func NewRecommendationService(
	modelService *recommender.ModelService,
	source SnapshotSource,
	cache *ResultCache,
	metrics *Metrics,
	cfg *config.RecommendationConfig,
	logger *logrus.Logger,
) *RecommendationService {
	return &RecommendationService{
		models:  modelService,
		source:  source,
		cache:   cache,
		metrics: metrics,
		config:  cfg,
		logger:  logger,
	}
}

func (s *RecommendationService) SimilarItems(ctx context.Context, itemID string, k int) (*models.SimilarItemsResponse, error) {
	start := time.Now()

	model, err := s.models.Current()
	if err != nil {
		s.metrics.RecordQuery(endpointSimilarItems, queryOutcome(err), time.Since(start))
		return nil, err
	}

	if cached, ok := s.cache.GetSimilarItems(ctx, model.ID, itemID, k); ok {
		s.metrics.RecordCacheLookup(endpointSimilarItems, true)
		s.metrics.RecordQuery(endpointSimilarItems, outcomeSuccess, time.Since(start))
		cached.CacheHit = true
		return cached, nil
	}
	s.metrics.RecordCacheLookup(endpointSimilarItems, false)

	result, err := s.models.SimilarItems(ctx, itemID, k)
	s.metrics.RecordQuery(endpointSimilarItems, queryOutcome(err), time.Since(start))
	if err != nil {
		return nil, err
	}

	response := &models.SimilarItemsResponse{
		ItemID:       itemID,
		Items:        result.Items,
		ModelID:      result.ModelID,
		ModelVersion: result.Version,
		GeneratedAt:  time.Now().UTC(),
	}
	s.cache.SetSimilarItems(ctx, k, response)

	return response, nil
}

func (s *RecommendationService) RecommendForUser(ctx context.Context, userID string, n int) (*models.UserRecommendationResponse, error) {
	start := time.Now()

	model, err := s.models.Current()
	if err != nil {
		s.metrics.RecordQuery(endpointRecommendations, queryOutcome(err), time.Since(start))
		return nil, err
	}

	if cached, ok := s.cache.GetRecommendations(ctx, model.ID, userID, n); ok {
		s.metrics.RecordCacheLookup(endpointRecommendations, true)
		s.metrics.RecordQuery(endpointRecommendations, outcomeSuccess, time.Since(start))
		cached.CacheHit = true
		return cached, nil
	}
	s.metrics.RecordCacheLookup(endpointRecommendations, false)

	result, err := s.models.RecommendForUser(ctx, userID, n)
	s.metrics.RecordQuery(endpointRecommendations, queryOutcome(err), time.Since(start))
	if err != nil {
		return nil, err
	}
	s.metrics.RecordExpansion(result.Rounds, result.Insufficient)

	response := &models.UserRecommendationResponse{
		UserID:        userID,
		Items:         result.Items,
		Insufficient:  result.Insufficient,
		TimedOut:      result.TimedOut,
		Rounds:        result.Rounds,
		NeighborCount: result.NeighborCount,
		ModelID:       result.ModelID,
		ModelVersion:  result.Version,
		GeneratedAt:   time.Now().UTC(),
	}

	// A timed-out search may complete next time.
	if !result.TimedOut {
		s.cache.SetRecommendations(ctx, n, response)
	}

	return response, nil
}

// Rebuild builds new models from snapshot, or from the snapshot source when
// snapshot is nil.
func (s *RecommendationService) Rebuild(ctx context.Context, snapshot *models.Snapshot) (*recommender.BuildStats, error) {
	if s.config.Build.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.Build.Timeout)
		defer cancel()
	}

	start := time.Now()

	if snapshot == nil {
		if s.source == nil {
			err := fmt.Errorf("no snapshot source configured")
			s.metrics.RecordBuild(nil, time.Since(start), err)
			return nil, err
		}
		loaded, err := s.source.LoadSnapshot(ctx)
		if err != nil {
			err = fmt.Errorf("failed to load snapshot: %w", err)
			s.metrics.RecordBuild(nil, time.Since(start), err)
			return nil, err
		}
		snapshot = loaded
	}

	stats, err := s.models.Rebuild(ctx, *snapshot)
	s.metrics.RecordBuild(stats, time.Since(start), err)
	return stats, err
}

// HandleRefresh serves snapshot-refresh events from the message bus.
func (s *RecommendationService) HandleRefresh(ctx context.Context, event models.SnapshotRefreshEvent) error {
	s.logger.WithFields(logrus.Fields{
		"event_id":     event.EventID,
		"source":       event.Source,
		"requested_by": event.RequestedBy,
		"retry_count":  event.RetryCount,
	}).Info("Handling snapshot refresh event")

	_, err := s.Rebuild(ctx, nil)
	return err
}

func (s *RecommendationService) Status() models.ModelStatus {
	return s.models.Status()
}

func queryOutcome(err error) string {
	switch {
	case err == nil:
		return outcomeSuccess
	case errors.Is(err, recommender.ErrItemNotFound), errors.Is(err, recommender.ErrUserNotFound):
		return outcomeNotFound
	case errors.Is(err, recommender.ErrModelNotBuilt):
		return outcomeNotBuilt
	default:
		return outcomeError
	}
}
