package recommender

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/temcen/gamerec/pkg/models"
)

func yearPtr(year int) *int {
	return &year
}

func scenarioCatalog() []models.Game {
	return []models.Game{
		{ItemID: "A", Name: "Alpha", Price: 0, FreeToPlay: true, ReleaseYear: yearPtr(2015), Categories: []string{"Action"}},
		{ItemID: "B", Name: "Bravo", Price: 10, ReleaseYear: yearPtr(2015), Categories: []string{"Action"}},
		{ItemID: "C", Name: "Charlie", Price: 10, ReleaseYear: yearPtr(2020), Categories: []string{"Puzzle"}},
	}
}

func TestBuildFeatureSpace(t *testing.T) {
	t.Run("vectors follow the fixed layout", func(t *testing.T) {
		space, vectors, err := BuildFeatureSpace(scenarioCatalog(), []string{"Action", "Puzzle"})
		require.NoError(t, err)
		require.Len(t, vectors, 3)

		assert.Equal(t, 5, space.Dimensions())
		assert.Equal(t, []float64{0, 1, 0, 1, 0}, vectors[0])
		assert.Equal(t, []float64{10, 0, 0, 1, 0}, vectors[1])
		assert.Equal(t, []float64{10, 0, 1, 0, 1}, vectors[2])
	})

	t.Run("missing year is imputed with the median", func(t *testing.T) {
		catalog := []models.Game{
			{ItemID: "1", ReleaseYear: yearPtr(2000)},
			{ItemID: "2", ReleaseYear: yearPtr(2010)},
			{ItemID: "3", ReleaseYear: yearPtr(2012)},
			{ItemID: "4", ReleaseYear: yearPtr(2020)},
			{ItemID: "5"},
		}
		space, vectors, err := BuildFeatureSpace(catalog, []string{"Action"})
		require.NoError(t, err)

		assert.Equal(t, 2011.0, space.MedianYear)
		assert.Equal(t, 2000.0, space.MinYear)
		assert.Equal(t, 2020.0, space.MaxYear)
		assert.InDelta(t, 0.55, vectors[4][featureYear], 1e-12)
	})

	t.Run("single year scales to zero", func(t *testing.T) {
		catalog := []models.Game{
			{ItemID: "1", ReleaseYear: yearPtr(2018)},
			{ItemID: "2"},
		}
		_, vectors, err := BuildFeatureSpace(catalog, []string{"Action"})
		require.NoError(t, err)
		for _, vector := range vectors {
			assert.Equal(t, 0.0, vector[featureYear])
		}
	})

	t.Run("labels are normalized before lookup", func(t *testing.T) {
		catalog := []models.Game{
			{ItemID: "1", Categories: []string{" Acción", "Unknown"}},
		}
		space, vectors, err := BuildFeatureSpace(catalog, []string{"Acción", "Accio\u0301n"})
		require.NoError(t, err)

		assert.Equal(t, []string{"Acción"}, space.Vocabulary)
		assert.Equal(t, 1.0, vectors[0][numericFeatures])
	})

	t.Run("every coordinate is finite", func(t *testing.T) {
		_, vectors, err := BuildFeatureSpace(scenarioCatalog(), []string{"Action", "Puzzle"})
		require.NoError(t, err)
		for _, vector := range vectors {
			for _, value := range vector {
				assert.False(t, math.IsNaN(value) || math.IsInf(value, 0))
			}
		}
	})

	t.Run("empty catalog", func(t *testing.T) {
		_, _, err := BuildFeatureSpace(nil, []string{"Action"})
		assert.ErrorIs(t, err, ErrEmptyCatalog)
	})

	t.Run("empty vocabulary", func(t *testing.T) {
		_, _, err := BuildFeatureSpace(scenarioCatalog(), []string{" ", ""})
		assert.ErrorIs(t, err, ErrUnknownVocabulary)
	})

	t.Run("non-finite price", func(t *testing.T) {
		catalog := []models.Game{{ItemID: "1", Price: math.Inf(1)}}
		_, _, err := BuildFeatureSpace(catalog, []string{"Action"})
		assert.ErrorIs(t, err, ErrNonFiniteFeature)
	})
}

func TestFeatureSpace_VectorizeReusesFittedScale(t *testing.T) {
	space, _, err := BuildFeatureSpace(scenarioCatalog(), []string{"Action", "Puzzle"})
	require.NoError(t, err)

	later, err := space.Vectorize(models.Game{ItemID: "D", Price: 5, ReleaseYear: yearPtr(2030), Categories: []string{"Puzzle"}})
	require.NoError(t, err)
	assert.Equal(t, []float64{5, 0, 1, 0, 1}, later)

	undated, err := space.Vectorize(models.Game{ItemID: "E"})
	require.NoError(t, err)
	assert.Equal(t, 0.0, undated[featureYear], "median 2015 sits at the bottom of the fitted range")
}
