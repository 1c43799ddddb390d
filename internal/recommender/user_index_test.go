package recommender

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/temcen/gamerec/pkg/models"
)

// syntheticFeedback gives each user a deterministic slice of the item space.
func syntheticFeedback(users, items int) ([]models.Review, []models.Playtime) {
	var reviews []models.Review
	var playtime []models.Playtime
	for u := 0; u < users; u++ {
		userID := fmt.Sprintf("user-%03d", u)
		for i := 0; i < items; i++ {
			if (u+i)%3 != 0 {
				continue
			}
			itemID := fmt.Sprintf("item-%03d", i)
			reviews = append(reviews, models.Review{
				UserID:    userID,
				ItemID:    itemID,
				Recommend: (u*i)%2 == 0,
				Sentiment: models.Sentiment((u + 2*i) % 3),
			})
			if i%4 != 0 {
				playtime = append(playtime, models.Playtime{UserID: userID, ItemID: itemID, Hours: float64((u*37 + i*11) % 500)})
			}
		}
	}
	return reviews, playtime
}

func buildUserIndex(t *testing.T, reviews []models.Review, playtime []models.Playtime) (*InteractionMatrix, *UserIndex) {
	t.Helper()
	m, err := BuildInteractionMatrix(reviews, playtime, DefaultInteractionOptions())
	require.NoError(t, err)
	idx, err := BuildUserIndex(context.Background(), m, 4)
	require.NoError(t, err)
	return m, idx
}

func TestSparseRowDot(t *testing.T) {
	a := sparseRow{index: []int{0, 2, 5}, value: []float64{1, 2, 3}}
	b := sparseRow{index: []int{2, 3, 5}, value: []float64{4, 5, 6}}

	assert.Equal(t, 26.0, a.dot(b))
	assert.Equal(t, a.dot(b), b.dot(a))
	assert.InDelta(t, 3.7416573867739413, a.norm(), 1e-12)
}

func TestUserIndex_TopK(t *testing.T) {
	reviews := []models.Review{
		{UserID: "u1", ItemID: "a", Recommend: true, Sentiment: models.SentimentPositive},
		{UserID: "u1", ItemID: "b", Recommend: true, Sentiment: models.SentimentPositive},
		{UserID: "u2", ItemID: "a", Recommend: true, Sentiment: models.SentimentPositive},
		{UserID: "u2", ItemID: "b", Recommend: true, Sentiment: models.SentimentPositive},
		{UserID: "u3", ItemID: "c", Recommend: true, Sentiment: models.SentimentPositive},
		{UserID: "u4", ItemID: "a", Recommend: true, Sentiment: models.SentimentPositive},
	}
	_, idx := buildUserIndex(t, reviews, nil)

	neighbors, err := idx.TopK("u1", 3)
	require.NoError(t, err)
	require.Len(t, neighbors, 3)
	assert.Equal(t, "u2", neighbors[0].ID)
	assert.InDelta(t, 1.0, neighbors[0].Similarity, 1e-12)
	assert.Equal(t, "u4", neighbors[1].ID)
	assert.InDelta(t, 0.7071067811865475, neighbors[1].Similarity, 1e-12)
	assert.Equal(t, Neighbor{ID: "u3", Similarity: 0}, neighbors[2])

	_, err = idx.TopK("ghost", 3)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestUserIndex_SymmetricAndDeterministic(t *testing.T) {
	reviews, playtime := syntheticFeedback(30, 24)
	m, first := buildUserIndex(t, reviews, playtime)

	second, err := BuildUserIndex(context.Background(), m, 1)
	require.NoError(t, err)
	assert.Equal(t, first.matrix.sims.RawSymmetric().Data, second.matrix.sims.RawSymmetric().Data)

	users := m.Users()
	for _, a := range users {
		neighbors, err := first.TopK(a, len(users))
		require.NoError(t, err)
		assert.Len(t, neighbors, len(users)-1)

		for _, b := range users {
			ab, err := first.Similarity(a, b)
			require.NoError(t, err)
			ba, err := first.Similarity(b, a)
			require.NoError(t, err)
			assert.Equal(t, ab, ba)
		}
	}
}

func TestUserIndex_ZeroRow(t *testing.T) {
	reviews := []models.Review{
		{UserID: "hater", ItemID: "a", Sentiment: models.SentimentNegative},
		{UserID: "fan", ItemID: "a", Recommend: true, Sentiment: models.SentimentPositive},
	}
	_, idx := buildUserIndex(t, reviews, nil)
	assert.Equal(t, 1, idx.Degenerate())

	sim, err := idx.Similarity("hater", "fan")
	require.NoError(t, err)
	assert.Equal(t, 0.0, sim)
}

func TestUserIndex_Empty(t *testing.T) {
	_, err := BuildUserIndex(context.Background(), nil, 1)
	assert.ErrorIs(t, err, ErrNoFeedbackData)
}
