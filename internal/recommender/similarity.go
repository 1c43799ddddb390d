package recommender

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"
)

// Neighbor is one entry of a top-K answer.
type Neighbor struct {
	ID         string  `json:"id"`
	Similarity float64 `json:"similarity"`
}

// similarityMatrix is a dense pairwise cosine matrix over a fixed, sorted id
// space. It is immutable once built.
type similarityMatrix struct {
	ids        []string
	position   map[string]int
	sims       *mat.SymDense
	degenerate int
}

// pairwise describes the rows to compare: their norms and a dot product
// between two rows by position.
type pairwise struct {
	norms []float64
	dot   func(i, j int) float64
}

// buildSimilarity fills the upper triangle row by row on a bounded worker
// pool. Every entry depends only on its two rows, so the result is the same
// regardless of scheduling.
func buildSimilarity(ctx context.Context, ids []string, rows pairwise, workers int) (*similarityMatrix, error) {
	n := len(ids)
	if n == 0 {
		return nil, fmt.Errorf("similarity over an empty id space")
	}
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	position := make(map[string]int, n)
	for i, id := range ids {
		position[id] = i
	}

	sims := mat.NewSymDense(n, nil)
	degenerate := 0
	for _, norm := range rows.norms {
		if norm == 0 {
			degenerate++
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := 0; i < n; i++ {
		if gctx.Err() != nil {
			break
		}
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if rows.norms[i] > 0 {
				sims.SetSym(i, i, 1)
			}
			for j := i + 1; j < n; j++ {
				sims.SetSym(i, j, cosine(rows.dot(i, j), rows.norms[i], rows.norms[j]))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("similarity build interrupted: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("similarity build interrupted: %w", err)
	}

	return &similarityMatrix{
		ids:        ids,
		position:   position,
		sims:       sims,
		degenerate: degenerate,
	}, nil
}

// cosine returns 0 for zero-norm rows and clamps rounding noise into [0,1];
// all coordinates fed to the indices are non-negative.
func cosine(dot, normA, normB float64) float64 {
	if normA == 0 || normB == 0 {
		return 0
	}
	value := dot / (normA * normB)
	if math.IsNaN(value) {
		return 0
	}
	return math.Max(0, math.Min(1, value))
}

func (m *similarityMatrix) contains(id string) bool {
	_, ok := m.position[id]
	return ok
}

func (m *similarityMatrix) similarity(a, b string) (float64, bool) {
	i, okA := m.position[a]
	j, okB := m.position[b]
	if !okA || !okB {
		return 0, false
	}
	return m.sims.At(i, j), true
}

// topK ranks every other row by similarity descending, ties by ascending id.
// The caller has already checked that id is present.
func (m *similarityMatrix) topK(id string, k int) []Neighbor {
	if k <= 0 {
		return []Neighbor{}
	}
	i := m.position[id]

	candidates := make([]Neighbor, 0, len(m.ids)-1)
	for j, other := range m.ids {
		if j == i {
			continue
		}
		candidates = append(candidates, Neighbor{ID: other, Similarity: m.sims.At(i, j)})
	}
	sortNeighbors(candidates)

	if len(candidates) > k {
		candidates = candidates[:k]
	}
	return candidates
}

func sortNeighbors(neighbors []Neighbor) {
	sort.Slice(neighbors, func(a, b int) bool {
		if neighbors[a].Similarity != neighbors[b].Similarity {
			return neighbors[a].Similarity > neighbors[b].Similarity
		}
		return neighbors[a].ID < neighbors[b].ID
	})
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
