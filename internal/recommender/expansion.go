package recommender

import (
	"context"
	"errors"
	"fmt"
	"sort"
)

// ExpansionConfig bounds the neighbor-expansion search.
type ExpansionConfig struct {
	InitialNeighbors int
	NeighborStep     int
	MaxRounds        int
}

func DefaultExpansionConfig() ExpansionConfig {
	return ExpansionConfig{
		InitialNeighbors: 5,
		NeighborStep:     5,
		MaxRounds:        10,
	}
}

// Expansion is the outcome of one search. Insufficient is set when the
// budget ran out before n distinct candidates were found; it is not an error.
type Expansion struct {
	Candidates    []ItemScore
	Rounds        int
	NeighborCount int
	Insufficient  bool
	TimedOut      bool
}

// NeighborExpansion recommends unseen items from the rows of similar users,
// widening the neighborhood until enough candidates are found.
type NeighborExpansion struct {
	users        *UserIndex
	interactions *InteractionMatrix
	config       ExpansionConfig
}

func NewNeighborExpansion(users *UserIndex, interactions *InteractionMatrix, cfg ExpansionConfig) *NeighborExpansion {
	defaults := DefaultExpansionConfig()
	if cfg.InitialNeighbors <= 0 {
		cfg.InitialNeighbors = defaults.InitialNeighbors
	}
	if cfg.NeighborStep <= 0 {
		cfg.NeighborStep = defaults.NeighborStep
	}
	if cfg.MaxRounds <= 0 {
		cfg.MaxRounds = defaults.MaxRounds
	}
	return &NeighborExpansion{users: users, interactions: interactions, config: cfg}
}

// Recommend runs the bounded search for userID. Scores accumulate across
// neighbors and across rounds. A context deadline ends the search like an
// exhausted budget; cancellation is returned as an error.
func (ne *NeighborExpansion) Recommend(ctx context.Context, userID string, n int) (*Expansion, error) {
	if n <= 0 {
		return nil, fmt.Errorf("requested %d recommendations, need at least 1", n)
	}
	if !ne.interactions.HasUser(userID) {
		return nil, fmt.Errorf("%w: %s", ErrUserNotFound, userID)
	}

	interacted := ne.interactions.Interacted(userID)
	accumulated := make(map[string]float64)
	result := &Expansion{}

	neighborCount := ne.config.InitialNeighbors
	for remaining := ne.config.MaxRounds; remaining > 0; remaining-- {
		if err := ctx.Err(); err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				result.TimedOut = true
				break
			}
			return nil, fmt.Errorf("neighbor expansion for %s: %w", userID, err)
		}

		result.Rounds++
		result.NeighborCount = neighborCount

		neighbors, err := ne.users.TopK(userID, neighborCount)
		if err != nil {
			return nil, err
		}
		for _, neighbor := range neighbors {
			for _, entry := range ne.interactions.TopItems(neighbor.ID, neighborCount) {
				if _, seen := interacted[entry.ItemID]; seen {
					continue
				}
				accumulated[entry.ItemID] += entry.Score
			}
		}

		if len(accumulated) >= n {
			break
		}
		neighborCount += ne.config.NeighborStep
	}

	ranked := make([]ItemScore, 0, len(accumulated))
	for item, score := range accumulated {
		ranked = append(ranked, ItemScore{ItemID: item, Score: score})
	}
	sort.Slice(ranked, func(a, b int) bool {
		if ranked[a].Score != ranked[b].Score {
			return ranked[a].Score > ranked[b].Score
		}
		return ranked[a].ItemID < ranked[b].ItemID
	})
	if len(ranked) > n {
		ranked = ranked[:n]
	}

	result.Candidates = ranked
	result.Insufficient = len(ranked) < n
	return result, nil
}
