package recommender

import (
	"context"
	"fmt"

	"gonum.org/v1/gonum/floats"

	"github.com/temcen/gamerec/pkg/models"
)

// ItemIndex is the content-based similarity index over catalog games.
type ItemIndex struct {
	space  *FeatureSpace
	matrix *similarityMatrix
}

// BuildItemIndex vectorizes the catalog and computes all pairwise cosine
// similarities. Duplicate item ids keep the last catalog row.
func BuildItemIndex(ctx context.Context, catalog []models.Game, vocabulary []string, workers int) (*ItemIndex, error) {
	space, vectors, err := BuildFeatureSpace(catalog, vocabulary)
	if err != nil {
		return nil, err
	}

	byID := make(map[string][]float64, len(catalog))
	for i, game := range catalog {
		byID[game.ItemID] = vectors[i]
	}
	ids := sortedKeys(byID)

	ordered := make([][]float64, len(ids))
	norms := make([]float64, len(ids))
	for i, id := range ids {
		ordered[i] = byID[id]
		norms[i] = floats.Norm(ordered[i], 2)
	}

	matrix, err := buildSimilarity(ctx, ids, pairwise{
		norms: norms,
		dot: func(i, j int) float64 {
			return floats.Dot(ordered[i], ordered[j])
		},
	}, workers)
	if err != nil {
		return nil, fmt.Errorf("item similarity: %w", err)
	}

	return &ItemIndex{space: space, matrix: matrix}, nil
}

// TopK returns up to k games most similar to itemID, never itemID itself.
func (idx *ItemIndex) TopK(itemID string, k int) ([]Neighbor, error) {
	if !idx.matrix.contains(itemID) {
		return nil, fmt.Errorf("%w: %s", ErrItemNotFound, itemID)
	}
	return idx.matrix.topK(itemID, k), nil
}

// Similarity returns the stored similarity between two indexed games.
func (idx *ItemIndex) Similarity(a, b string) (float64, error) {
	sim, ok := idx.matrix.similarity(a, b)
	if !ok {
		return 0, fmt.Errorf("%w: %s or %s", ErrItemNotFound, a, b)
	}
	return sim, nil
}

// FeatureSpace exposes the fitted vectorizer.
func (idx *ItemIndex) FeatureSpace() *FeatureSpace { return idx.space }

func (idx *ItemIndex) Len() int { return len(idx.matrix.ids) }

// Degenerate counts games whose feature vector is all zeros.
func (idx *ItemIndex) Degenerate() int { return idx.matrix.degenerate }
