package recommender

import (
	"context"
	"fmt"
	"sort"

	"gonum.org/v1/gonum/floats"
)

// sparseRow is a user row with item ordinals in ascending order, so dot
// products are a deterministic merge.
type sparseRow struct {
	index []int
	value []float64
}

func (r sparseRow) dot(other sparseRow) float64 {
	sum := 0.0
	i, j := 0, 0
	for i < len(r.index) && j < len(other.index) {
		switch {
		case r.index[i] == other.index[j]:
			sum += r.value[i] * other.value[j]
			i++
			j++
		case r.index[i] < other.index[j]:
			i++
		default:
			j++
		}
	}
	return sum
}

func (r sparseRow) norm() float64 {
	return floats.Norm(r.value, 2)
}

// UserIndex is the collaborative similarity index over interaction rows.
type UserIndex struct {
	matrix *similarityMatrix
}

// BuildUserIndex computes pairwise cosine similarity between all user rows.
func BuildUserIndex(ctx context.Context, interactions *InteractionMatrix, workers int) (*UserIndex, error) {
	if interactions == nil || interactions.Len() == 0 {
		return nil, ErrNoFeedbackData
	}

	users := interactions.Users()

	itemSet := make(map[string]struct{})
	for _, row := range interactions.scores {
		for item := range row {
			itemSet[item] = struct{}{}
		}
	}
	items := sortedKeys(itemSet)
	ordinal := make(map[string]int, len(items))
	for i, item := range items {
		ordinal[item] = i
	}

	rows := make([]sparseRow, len(users))
	norms := make([]float64, len(users))
	for u, user := range users {
		scores := interactions.scores[user]
		row := sparseRow{
			index: make([]int, 0, len(scores)),
			value: make([]float64, 0, len(scores)),
		}
		for item := range scores {
			row.index = append(row.index, ordinal[item])
		}
		sort.Ints(row.index)
		for _, i := range row.index {
			row.value = append(row.value, scores[items[i]])
		}
		rows[u] = row
		norms[u] = row.norm()
	}

	matrix, err := buildSimilarity(ctx, users, pairwise{
		norms: norms,
		dot: func(i, j int) float64 {
			return rows[i].dot(rows[j])
		},
	}, workers)
	if err != nil {
		return nil, fmt.Errorf("user similarity: %w", err)
	}

	return &UserIndex{matrix: matrix}, nil
}

// TopK returns up to k users most similar to userID, never userID itself.
func (idx *UserIndex) TopK(userID string, k int) ([]Neighbor, error) {
	if !idx.matrix.contains(userID) {
		return nil, fmt.Errorf("%w: %s", ErrUserNotFound, userID)
	}
	return idx.matrix.topK(userID, k), nil
}

// Similarity returns the stored similarity between two indexed users.
func (idx *UserIndex) Similarity(a, b string) (float64, error) {
	sim, ok := idx.matrix.similarity(a, b)
	if !ok {
		return 0, fmt.Errorf("%w: %s or %s", ErrUserNotFound, a, b)
	}
	return sim, nil
}

func (idx *UserIndex) Len() int { return len(idx.matrix.ids) }

// Degenerate counts users whose every score is zero.
func (idx *UserIndex) Degenerate() int { return idx.matrix.degenerate }
