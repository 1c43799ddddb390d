package recommender

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/temcen/gamerec/pkg/models"
)

// Fixed leading coordinates of every item feature vector.
const (
	featurePrice = iota
	featureFree
	featureYear
	numericFeatures
)

// FeatureSpace is the fitted part of the item vectorizer. It is kept with the
// model so that games added later are scaled with the same parameters.
type FeatureSpace struct {
	Vocabulary []string
	MedianYear float64
	MinYear    float64
	MaxYear    float64

	index map[string]int
}

// NormalizeLabel puts a category label in the canonical form used for
// vocabulary lookups.
func NormalizeLabel(label string) string {
	return norm.NFC.String(strings.TrimSpace(label))
}

// NormalizeVocabulary normalizes labels, drops blanks and keeps the first
// occurrence of duplicates.
func NormalizeVocabulary(labels []string) []string {
	seen := make(map[string]struct{}, len(labels))
	vocabulary := make([]string, 0, len(labels))
	for _, label := range labels {
		normalized := NormalizeLabel(label)
		if normalized == "" {
			continue
		}
		if _, ok := seen[normalized]; ok {
			continue
		}
		seen[normalized] = struct{}{}
		vocabulary = append(vocabulary, normalized)
	}
	return vocabulary
}

// BuildFeatureSpace fits the year imputation and scaling over the whole
// catalog and returns one vector per game, in catalog order.
func BuildFeatureSpace(catalog []models.Game, vocabulary []string) (*FeatureSpace, [][]float64, error) {
	if len(catalog) == 0 {
		return nil, nil, ErrEmptyCatalog
	}
	vocabulary = NormalizeVocabulary(vocabulary)
	if len(vocabulary) == 0 {
		return nil, nil, ErrUnknownVocabulary
	}

	space := newFeatureSpace(vocabulary)

	years := make([]float64, 0, len(catalog))
	for _, game := range catalog {
		if game.ReleaseYear != nil {
			years = append(years, float64(*game.ReleaseYear))
		}
	}
	if len(years) > 0 {
		sort.Float64s(years)
		space.MedianYear = median(years)
		space.MinYear = years[0]
		space.MaxYear = years[len(years)-1]
	}

	vectors := make([][]float64, len(catalog))
	for i, game := range catalog {
		vector, err := space.Vectorize(game)
		if err != nil {
			return nil, nil, err
		}
		vectors[i] = vector
	}

	return space, vectors, nil
}

func newFeatureSpace(vocabulary []string) *FeatureSpace {
	index := make(map[string]int, len(vocabulary))
	for i, label := range vocabulary {
		index[label] = i
	}
	return &FeatureSpace{Vocabulary: vocabulary, index: index}
}

// Dimensions is the length of every vector produced by this space.
func (fs *FeatureSpace) Dimensions() int {
	return numericFeatures + len(fs.Vocabulary)
}

// Vectorize maps a game into the fitted feature space.
func (fs *FeatureSpace) Vectorize(game models.Game) ([]float64, error) {
	if math.IsNaN(game.Price) || math.IsInf(game.Price, 0) {
		return nil, fmt.Errorf("game %s price: %w", game.ItemID, ErrNonFiniteFeature)
	}

	vector := make([]float64, fs.Dimensions())
	vector[featurePrice] = game.Price
	if game.FreeToPlay {
		vector[featureFree] = 1
	}

	year := fs.MedianYear
	if game.ReleaseYear != nil {
		year = float64(*game.ReleaseYear)
	}
	vector[featureYear] = fs.scaleYear(year)

	for _, label := range game.Categories {
		if i, ok := fs.index[NormalizeLabel(label)]; ok {
			vector[numericFeatures+i] = 1
		}
	}

	return vector, nil
}

// scaleYear min-max scales with the fitted bounds. Years outside the fitted
// range (later additions) are clamped so the coordinate stays in [0,1].
func (fs *FeatureSpace) scaleYear(year float64) float64 {
	span := fs.MaxYear - fs.MinYear
	if span <= 0 {
		return 0
	}
	scaled := (year - fs.MinYear) / span
	return math.Max(0, math.Min(1, scaled))
}

// median expects sorted, non-empty input.
func median(sorted []float64) float64 {
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}
