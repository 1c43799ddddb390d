package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/temcen/gamerec/internal/config"
	"github.com/temcen/gamerec/internal/recommender"
	"github.com/temcen/gamerec/pkg/models"
)

type MockSnapshotSource struct {
	mock.Mock
}

func (m *MockSnapshotSource) LoadSnapshot(ctx context.Context) (*models.Snapshot, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Snapshot), args.Error(1)
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel) // Reduce noise in tests
	return logger
}

func yearPtr(year int) *int {
	return &year
}

func testSnapshot() *models.Snapshot {
	return &models.Snapshot{
		Catalog: []models.Game{
			{ItemID: "A", Name: "Alpha", Price: 0, FreeToPlay: true, ReleaseYear: yearPtr(2015), Categories: []string{"Action"}},
			{ItemID: "B", Name: "Bravo", Price: 10, ReleaseYear: yearPtr(2015), Categories: []string{"Action"}},
			{ItemID: "C", Name: "Charlie", Price: 10, ReleaseYear: yearPtr(2020), Categories: []string{"Puzzle"}},
		},
		Vocabulary: []string{"Action", "Puzzle"},
		Reviews: []models.Review{
			{UserID: "U", ItemID: "A", Sentiment: models.SentimentPositive, Recommend: true},
			{UserID: "V", ItemID: "A", Sentiment: models.SentimentPositive, Recommend: true},
			{UserID: "V", ItemID: "B", Sentiment: models.SentimentPositive, Recommend: true},
			{UserID: "W", ItemID: "C", Sentiment: models.SentimentNeutral, Recommend: false},
		},
		Playtime: []models.Playtime{
			{UserID: "U", ItemID: "A", Hours: 400},
		},
	}
}

func testRecommendationConfig() *config.RecommendationConfig {
	return &config.RecommendationConfig{
		Expansion: config.ExpansionConfig{
			InitialNeighbors: 5,
			NeighborStep:     5,
			MaxRounds:        10,
			Timeout:          time.Second,
		},
		Interactions: config.InteractionsConfig{
			Scoring:             "hours_threshold",
			HoursThreshold:      350,
			ThresholdMultiplier: 10,
			HoursDivisor:        35,
		},
		Build: config.BuildConfig{
			Workers: 2,
			Timeout: time.Minute,
		},
	}
}

func newTestRecommendationService(t *testing.T, source SnapshotSource) (*RecommendationService, *Metrics) {
	t.Helper()

	cfg := testRecommendationConfig()
	opts, err := ModelOptions(cfg)
	require.NoError(t, err)

	logger := testLogger()
	metrics := NewMetrics(prometheus.NewRegistry())
	cache := NewResultCache(nil, cfg.Caching, logger)

	return NewRecommendationService(recommender.NewModelService(opts, logger), source, cache, metrics, cfg, logger), metrics
}

func TestRecommendationService_NotBuilt(t *testing.T) {
	service, metrics := newTestRecommendationService(t, nil)

	_, err := service.SimilarItems(context.Background(), "A", 5)
	assert.ErrorIs(t, err, recommender.ErrModelNotBuilt)

	_, err = service.RecommendForUser(context.Background(), "U", 5)
	assert.ErrorIs(t, err, recommender.ErrModelNotBuilt)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.queriesTotal.WithLabelValues(endpointSimilarItems, outcomeNotBuilt)))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.queriesTotal.WithLabelValues(endpointRecommendations, outcomeNotBuilt)))
	assert.False(t, service.Status().Ready)
}

func TestRecommendationService_Queries(t *testing.T) {
	service, metrics := newTestRecommendationService(t, nil)

	stats, err := service.Rebuild(context.Background(), testSnapshot())
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Version)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.buildsTotal.WithLabelValues(outcomeSuccess)))
	assert.Equal(t, 3.0, testutil.ToFloat64(metrics.modelSize.WithLabelValues("items")))

	t.Run("similar items", func(t *testing.T) {
		response, err := service.SimilarItems(context.Background(), "A", 1)
		require.NoError(t, err)

		assert.Equal(t, "A", response.ItemID)
		require.Len(t, response.Items, 1)
		assert.Equal(t, "B", response.Items[0].ID)
		assert.Equal(t, "Bravo", response.Items[0].Name)
		assert.Equal(t, int64(1), response.ModelVersion)
		assert.False(t, response.CacheHit)
	})

	t.Run("unknown item", func(t *testing.T) {
		_, err := service.SimilarItems(context.Background(), "Z", 5)
		assert.ErrorIs(t, err, recommender.ErrItemNotFound)
		assert.Equal(t, 1.0, testutil.ToFloat64(metrics.queriesTotal.WithLabelValues(endpointSimilarItems, outcomeNotFound)))
	})

	t.Run("user recommendations", func(t *testing.T) {
		response, err := service.RecommendForUser(context.Background(), "U", 1)
		require.NoError(t, err)

		assert.Equal(t, "U", response.UserID)
		require.Len(t, response.Items, 1)
		assert.Equal(t, models.RecommendedItem{ID: "B", Name: "Bravo", Score: 1.5}, response.Items[0])
		assert.False(t, response.Insufficient)
		assert.Equal(t, 1, response.Rounds)
	})

	t.Run("short list counts as insufficient", func(t *testing.T) {
		before := testutil.ToFloat64(metrics.insufficient)

		response, err := service.RecommendForUser(context.Background(), "U", 5)
		require.NoError(t, err)
		assert.True(t, response.Insufficient)
		assert.Equal(t, before+1, testutil.ToFloat64(metrics.insufficient))
	})

	t.Run("unknown user", func(t *testing.T) {
		_, err := service.RecommendForUser(context.Background(), "nobody", 5)
		assert.ErrorIs(t, err, recommender.ErrUserNotFound)
	})
}

func TestRecommendationService_RebuildFromSource(t *testing.T) {
	t.Run("loads snapshot when none is given", func(t *testing.T) {
		source := new(MockSnapshotSource)
		source.On("LoadSnapshot", mock.Anything).Return(testSnapshot(), nil).Once()

		service, _ := newTestRecommendationService(t, source)
		stats, err := service.Rebuild(context.Background(), nil)
		require.NoError(t, err)
		assert.Equal(t, 3, stats.Items)
		source.AssertExpectations(t)
	})

	t.Run("source failure keeps serving previous model", func(t *testing.T) {
		source := new(MockSnapshotSource)
		source.On("LoadSnapshot", mock.Anything).Return(nil, errors.New("connection refused")).Once()

		service, metrics := newTestRecommendationService(t, source)
		_, err := service.Rebuild(context.Background(), testSnapshot())
		require.NoError(t, err)

		_, err = service.Rebuild(context.Background(), nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "connection refused")
		assert.Equal(t, 1.0, testutil.ToFloat64(metrics.buildsTotal.WithLabelValues(outcomeError)))

		response, err := service.SimilarItems(context.Background(), "A", 1)
		require.NoError(t, err)
		assert.Equal(t, int64(1), response.ModelVersion)
		source.AssertExpectations(t)
	})

	t.Run("no source configured", func(t *testing.T) {
		service, _ := newTestRecommendationService(t, nil)
		_, err := service.Rebuild(context.Background(), nil)
		assert.Error(t, err)
	})

	t.Run("invalid snapshot surfaces build error", func(t *testing.T) {
		service, _ := newTestRecommendationService(t, nil)
		snapshot := testSnapshot()
		snapshot.Catalog = nil

		_, err := service.Rebuild(context.Background(), snapshot)
		assert.ErrorIs(t, err, recommender.ErrEmptyCatalog)
		assert.Contains(t, service.Status().LastError, "empty")
	})
}

func TestRecommendationService_HandleRefresh(t *testing.T) {
	source := new(MockSnapshotSource)
	source.On("LoadSnapshot", mock.Anything).Return(testSnapshot(), nil).Twice()

	service, _ := newTestRecommendationService(t, source)
	event := models.SnapshotRefreshEvent{EventID: uuid.New(), Source: "postgres"}

	require.NoError(t, service.HandleRefresh(context.Background(), event))
	require.NoError(t, service.HandleRefresh(context.Background(), event))

	assert.Equal(t, int64(2), service.Status().Version)
	source.AssertExpectations(t)
}

func TestModelOptions(t *testing.T) {
	t.Run("converts config", func(t *testing.T) {
		opts, err := ModelOptions(testRecommendationConfig())
		require.NoError(t, err)

		assert.Equal(t, recommender.ScoringHoursThreshold, opts.Interactions.Formula)
		assert.Equal(t, 350.0, opts.Interactions.HoursThreshold)
		assert.Equal(t, 5, opts.Expansion.InitialNeighbors)
		assert.Equal(t, 10, opts.Expansion.MaxRounds)
		assert.Equal(t, time.Second, opts.QueryTimeout)
		assert.Equal(t, 2, opts.Workers)
	})

	t.Run("plain average and default workers", func(t *testing.T) {
		cfg := testRecommendationConfig()
		cfg.Interactions.Scoring = "plain_average"
		cfg.Build.Workers = 0

		opts, err := ModelOptions(cfg)
		require.NoError(t, err)
		assert.Equal(t, recommender.ScoringPlainAverage, opts.Interactions.Formula)
		assert.Greater(t, opts.Workers, 0)
	})

	t.Run("unknown scoring", func(t *testing.T) {
		cfg := testRecommendationConfig()
		cfg.Interactions.Scoring = "log_hours"

		_, err := ModelOptions(cfg)
		assert.Error(t, err)
	})
}
