package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 5, cfg.Recommendation.SimilarItems.DefaultK)
	assert.Equal(t, 5, cfg.Recommendation.Expansion.DefaultN)
	assert.Equal(t, 5, cfg.Recommendation.Expansion.InitialNeighbors)
	assert.Equal(t, 5, cfg.Recommendation.Expansion.NeighborStep)
	assert.Equal(t, 10, cfg.Recommendation.Expansion.MaxRounds)
	assert.Equal(t, 2*time.Second, cfg.Recommendation.Expansion.Timeout)
	assert.Equal(t, "hours_threshold", cfg.Recommendation.Interactions.Scoring)
	assert.Equal(t, 350.0, cfg.Recommendation.Interactions.HoursThreshold)
	assert.Equal(t, 10.0, cfg.Recommendation.Interactions.ThresholdMultiplier)
	assert.Equal(t, 35.0, cfg.Recommendation.Interactions.HoursDivisor)
	assert.Equal(t, "snapshot-refresh", cfg.Kafka.Topics.SnapshotRefresh)
	assert.False(t, cfg.Kafka.Enabled)
	assert.Empty(t, cfg.Kafka.InstanceID)
	assert.True(t, cfg.Security.RateLimit.Enabled)
	assert.Equal(t, time.Minute, cfg.Security.RateLimit.Window)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("SERVER_PORT", "9999")
	t.Setenv("RECOMMENDATION_EXPANSION_MAX_ROUNDS", "7")
	t.Setenv("RECOMMENDATION_INTERACTIONS_SCORING", "plain_average")
	t.Setenv("KAFKA_INSTANCE_ID", "builder-2")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9999", cfg.Server.Port)
	assert.Equal(t, 7, cfg.Recommendation.Expansion.MaxRounds)
	assert.Equal(t, "plain_average", cfg.Recommendation.Interactions.Scoring)
	assert.Equal(t, "builder-2", cfg.Kafka.InstanceID)
}

// chdir changes the working directory for the duration of the test,
// equivalent to testing.T.Chdir (Go 1.24+).
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() {
		require.NoError(t, os.Chdir(prev))
	})
}
