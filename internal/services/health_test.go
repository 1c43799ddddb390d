package services

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/temcen/gamerec/internal/messaging"
	"github.com/temcen/gamerec/pkg/models"
)

type staticModelStatus struct {
	status models.ModelStatus
}

func (s staticModelStatus) Status() models.ModelStatus {
	return s.status
}

type staticConsumerStats struct {
	stats messaging.ConsumerStats
	ok    bool
}

func (s staticConsumerStats) ConsumerStats() (messaging.ConsumerStats, bool) {
	return s.stats, s.ok
}

func TestHealthService_CheckHealth(t *testing.T) {
	t.Run("model not built is unhealthy", func(t *testing.T) {
		hs := NewHealthService(testLogger(), nil, staticModelStatus{models.ModelStatus{LastError: "catalog is empty"}}, prometheus.NewRegistry())

		status := hs.CheckHealth(context.Background())
		assert.Equal(t, "unhealthy", status.Status)
		assert.Equal(t, []string{"model"}, status.Critical)
		assert.Equal(t, "unhealthy", status.Services["model"])
		assert.Equal(t, 0.0, testutil.ToFloat64(hs.healthCheckStatus.WithLabelValues("model")))
	})

	t.Run("ready model is healthy", func(t *testing.T) {
		hs := NewHealthService(testLogger(), nil, staticModelStatus{models.ModelStatus{Ready: true, Version: 4}}, prometheus.NewRegistry())

		status := hs.CheckHealth(context.Background())
		assert.Equal(t, "healthy", status.Status)
		assert.Equal(t, int64(4), status.Details["model_version"])
		assert.Equal(t, 1.0, testutil.ToFloat64(hs.healthCheckStatus.WithLabelValues("model")))
	})

	t.Run("non-critical failure degrades", func(t *testing.T) {
		hs := NewHealthService(testLogger(), nil, staticModelStatus{models.ModelStatus{Ready: true}}, prometheus.NewRegistry())
		hs.nonCritical["redis"] = func(ctx context.Context) error { return errors.New("connection refused") }

		status := hs.CheckHealth(context.Background())
		assert.Equal(t, "degraded", status.Status)
		assert.Equal(t, []string{"redis"}, status.NonCritical)
	})

	t.Run("missing model service", func(t *testing.T) {
		hs := NewHealthService(testLogger(), nil, nil, nil)

		status := hs.CheckHealth(context.Background())
		assert.Equal(t, "unhealthy", status.Status)
		assert.Nil(t, status.Details)
	})

	t.Run("reports refresh consumer lag", func(t *testing.T) {
		hs := NewHealthService(testLogger(), nil, staticModelStatus{models.ModelStatus{Ready: true, Version: 2}}, prometheus.NewRegistry())
		hs.WatchRefreshConsumer(staticConsumerStats{stats: messaging.ConsumerStats{Lag: 5, Offset: 10}, ok: true})

		status := hs.CheckHealth(context.Background())
		assert.Equal(t, "healthy", status.Status)
		assert.Equal(t, int64(5), status.Details["refresh_consumer_lag"])
		assert.Equal(t, 5.0, testutil.ToFloat64(hs.consumerLag))
	})

	t.Run("consumer without stats adds no lag", func(t *testing.T) {
		hs := NewHealthService(testLogger(), nil, staticModelStatus{models.ModelStatus{Ready: true}}, prometheus.NewRegistry())
		hs.WatchRefreshConsumer(staticConsumerStats{})

		status := hs.CheckHealth(context.Background())
		assert.NotContains(t, status.Details, "refresh_consumer_lag")
	})
}
