package recommender

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/temcen/gamerec/pkg/models"
)

func TestBaseScore(t *testing.T) {
	tests := []struct {
		name      string
		sentiment models.Sentiment
		recommend bool
		expected  float64
	}{
		{"negative not recommended", models.SentimentNegative, false, 0},
		{"negative recommended", models.SentimentNegative, true, 0.5},
		{"neutral not recommended", models.SentimentNeutral, false, 0.5},
		{"neutral recommended", models.SentimentNeutral, true, 1},
		{"positive not recommended", models.SentimentPositive, false, 1},
		{"positive recommended", models.SentimentPositive, true, 1.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			score := BaseScore(models.Review{Sentiment: tt.sentiment, Recommend: tt.recommend})
			assert.Equal(t, tt.expected, score)
		})
	}
}

func TestBuildInteractionMatrix(t *testing.T) {
	opts := DefaultInteractionOptions()

	t.Run("heavy playtime multiplies by ten", func(t *testing.T) {
		reviews := []models.Review{{UserID: "U", ItemID: "X", Recommend: true, Sentiment: models.SentimentPositive}}
		playtime := []models.Playtime{{UserID: "U", ItemID: "X", Hours: 400}}

		m, err := BuildInteractionMatrix(reviews, playtime, opts)
		require.NoError(t, err)
		assert.Equal(t, 15.0, m.Score("U", "X"))
		assert.Equal(t, 0.0, m.Score("U", "Y"))
		assert.NotContains(t, m.Interacted("U"), "Y")
	})

	t.Run("known hours below threshold scale by h/35", func(t *testing.T) {
		reviews := []models.Review{{UserID: "U", ItemID: "X", Recommend: true, Sentiment: models.SentimentNeutral}}
		playtime := []models.Playtime{{UserID: "U", ItemID: "X", Hours: 70}}

		m, err := BuildInteractionMatrix(reviews, playtime, opts)
		require.NoError(t, err)
		assert.InDelta(t, 2.0, m.Score("U", "X"), 1e-12)
	})

	t.Run("unknown hours keep the base score", func(t *testing.T) {
		reviews := []models.Review{{UserID: "U", ItemID: "X", Sentiment: models.SentimentPositive}}

		m, err := BuildInteractionMatrix(reviews, nil, opts)
		require.NoError(t, err)
		assert.Equal(t, 1.0, m.Score("U", "X"))
	})

	t.Run("weighting is monotonic in hours", func(t *testing.T) {
		score := func(hours float64) float64 {
			reviews := []models.Review{{UserID: "U", ItemID: "X", Recommend: true, Sentiment: models.SentimentPositive}}
			playtime := []models.Playtime{{UserID: "U", ItemID: "X", Hours: hours}}
			m, err := BuildInteractionMatrix(reviews, playtime, opts)
			require.NoError(t, err)
			return m.Score("U", "X")
		}

		assert.Greater(t, score(400), score(300))
		assert.Greater(t, score(300), score(0))
	})

	t.Run("last review and last playtime win", func(t *testing.T) {
		reviews := []models.Review{
			{UserID: "U", ItemID: "X", Recommend: true, Sentiment: models.SentimentPositive},
			{UserID: "U", ItemID: "X", Recommend: false, Sentiment: models.SentimentNeutral},
		}
		playtime := []models.Playtime{
			{UserID: "U", ItemID: "X", Hours: 500},
			{UserID: "U", ItemID: "X", Hours: 35},
		}

		m, err := BuildInteractionMatrix(reviews, playtime, opts)
		require.NoError(t, err)
		assert.InDelta(t, 0.5, m.Score("U", "X"), 1e-12)
		assert.Equal(t, 1, m.Entries())
	})

	t.Run("playtime without a review is not stored", func(t *testing.T) {
		reviews := []models.Review{{UserID: "U", ItemID: "X", Sentiment: models.SentimentPositive}}
		playtime := []models.Playtime{{UserID: "U", ItemID: "Z", Hours: 900}, {UserID: "V", ItemID: "X", Hours: 10}}

		m, err := BuildInteractionMatrix(reviews, playtime, opts)
		require.NoError(t, err)
		assert.Equal(t, 1, m.Entries())
		assert.False(t, m.HasUser("V"))
		assert.Equal(t, 0.0, m.Score("U", "Z"))
	})

	t.Run("zero scores are stored but not interacted", func(t *testing.T) {
		reviews := []models.Review{
			{UserID: "U", ItemID: "X", Sentiment: models.SentimentNegative},
			{UserID: "U", ItemID: "Y", Sentiment: models.SentimentPositive},
		}

		m, err := BuildInteractionMatrix(reviews, nil, opts)
		require.NoError(t, err)
		assert.Equal(t, 2, m.Entries())
		assert.Equal(t, map[string]struct{}{"Y": {}}, m.Interacted("U"))
	})

	t.Run("plain average variant ignores playtime", func(t *testing.T) {
		plain := DefaultInteractionOptions()
		plain.Formula = ScoringPlainAverage
		reviews := []models.Review{{UserID: "U", ItemID: "X", Recommend: true, Sentiment: models.SentimentPositive}}
		playtime := []models.Playtime{{UserID: "U", ItemID: "X", Hours: 400}}

		m, err := BuildInteractionMatrix(reviews, playtime, plain)
		require.NoError(t, err)
		assert.Equal(t, 1.5, m.Score("U", "X"))
	})

	t.Run("no feedback", func(t *testing.T) {
		_, err := BuildInteractionMatrix(nil, []models.Playtime{{UserID: "U", ItemID: "X", Hours: 1}}, opts)
		assert.ErrorIs(t, err, ErrNoFeedbackData)
	})

	t.Run("invalid playtime", func(t *testing.T) {
		reviews := []models.Review{{UserID: "U", ItemID: "X"}}
		for _, hours := range []float64{-1, math.NaN(), math.Inf(1)} {
			_, err := BuildInteractionMatrix(reviews, []models.Playtime{{UserID: "U", ItemID: "X", Hours: hours}}, opts)
			assert.ErrorIs(t, err, ErrInvalidPlaytime)
		}
	})

	t.Run("unknown formula", func(t *testing.T) {
		bad := DefaultInteractionOptions()
		bad.Formula = "magic"
		_, err := BuildInteractionMatrix([]models.Review{{UserID: "U", ItemID: "X"}}, nil, bad)
		assert.Error(t, err)
	})
}

func TestInteractionMatrix_TopItems(t *testing.T) {
	reviews := []models.Review{
		{UserID: "U", ItemID: "c", Sentiment: models.SentimentPositive},
		{UserID: "U", ItemID: "a", Sentiment: models.SentimentPositive},
		{UserID: "U", ItemID: "b", Recommend: true, Sentiment: models.SentimentPositive},
		{UserID: "U", ItemID: "d", Sentiment: models.SentimentNeutral},
	}
	m, err := BuildInteractionMatrix(reviews, nil, DefaultInteractionOptions())
	require.NoError(t, err)

	top := m.TopItems("U", 3)
	assert.Equal(t, []ItemScore{{"b", 1.5}, {"a", 1}, {"c", 1}}, top)
	assert.Len(t, m.TopItems("U", 10), 4)
	assert.Empty(t, m.TopItems("U", 0))
	assert.Empty(t, m.TopItems("nobody", 5))
}
