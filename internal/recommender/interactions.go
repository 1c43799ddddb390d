package recommender

import (
	"fmt"
	"math"
	"sort"

	"github.com/temcen/gamerec/pkg/models"
)

// ScoringFormula selects how reviews and playtime fold into one score.
type ScoringFormula string

const (
	// ScoringHoursThreshold weights the review base score by playtime, with a
	// flat multiplier above an absolute engagement threshold.
	ScoringHoursThreshold ScoringFormula = "hours_threshold"
	// ScoringPlainAverage ignores playtime and keeps (sentiment+recommend)/2.
	ScoringPlainAverage ScoringFormula = "plain_average"
)

// InteractionOptions holds the playtime weighting constants.
type InteractionOptions struct {
	Formula             ScoringFormula
	HoursThreshold      float64
	ThresholdMultiplier float64
	HoursDivisor        float64
}

func DefaultInteractionOptions() InteractionOptions {
	return InteractionOptions{
		Formula:             ScoringHoursThreshold,
		HoursThreshold:      350,
		ThresholdMultiplier: 10,
		HoursDivisor:        35,
	}
}

// ItemScore is one stored (item, score) entry of a user row.
type ItemScore struct {
	ItemID string  `json:"item_id"`
	Score  float64 `json:"score"`
}

// InteractionMatrix is the sparse user x item score table. Only pairs with at
// least one review are stored; everything else reads as 0.
type InteractionMatrix struct {
	scores  map[string]map[string]float64
	ranked  map[string][]ItemScore
	entries int
}

type pairKey struct {
	user string
	item string
}

// BaseScore maps a review to (s + r) / 2 with s in {0,1,2} and r in {0,1}.
func BaseScore(review models.Review) float64 {
	r := 0.0
	if review.Recommend {
		r = 1
	}
	return (float64(review.Sentiment) + r) / 2
}

// PlaytimeWeight returns the multiplier for a pair; known is false when no
// playtime row exists for it.
func (o InteractionOptions) PlaytimeWeight(hours float64, known bool) float64 {
	if o.Formula == ScoringPlainAverage || !known {
		return 1
	}
	if hours >= o.HoursThreshold {
		return o.ThresholdMultiplier
	}
	return hours / o.HoursDivisor
}

// BuildInteractionMatrix folds reviews and playtime into interaction scores.
// For repeated reviews or playtime rows of one pair the last one wins.
func BuildInteractionMatrix(reviews []models.Review, playtime []models.Playtime, opts InteractionOptions) (*InteractionMatrix, error) {
	if len(reviews) == 0 {
		return nil, ErrNoFeedbackData
	}
	if opts.Formula == "" {
		opts.Formula = ScoringHoursThreshold
	}
	if opts.Formula != ScoringHoursThreshold && opts.Formula != ScoringPlainAverage {
		return nil, fmt.Errorf("unknown scoring formula %q", opts.Formula)
	}
	if opts.HoursDivisor <= 0 {
		return nil, fmt.Errorf("hours divisor must be positive, got %v", opts.HoursDivisor)
	}

	hours := make(map[pairKey]float64, len(playtime))
	for _, record := range playtime {
		if math.IsNaN(record.Hours) || math.IsInf(record.Hours, 0) || record.Hours < 0 {
			return nil, fmt.Errorf("user %s item %s: %w", record.UserID, record.ItemID, ErrInvalidPlaytime)
		}
		hours[pairKey{user: record.UserID, item: record.ItemID}] = record.Hours
	}

	base := make(map[pairKey]float64, len(reviews))
	for _, review := range reviews {
		if !review.Sentiment.Valid() {
			return nil, fmt.Errorf("user %s item %s: unknown sentiment %d", review.UserID, review.ItemID, int(review.Sentiment))
		}
		base[pairKey{user: review.UserID, item: review.ItemID}] = BaseScore(review)
	}

	m := &InteractionMatrix{
		scores: make(map[string]map[string]float64),
		ranked: make(map[string][]ItemScore),
	}
	for pair, b := range base {
		h, known := hours[pair]
		row, ok := m.scores[pair.user]
		if !ok {
			row = make(map[string]float64)
			m.scores[pair.user] = row
		}
		row[pair.item] = b * opts.PlaytimeWeight(h, known)
		m.entries++
	}

	for user, row := range m.scores {
		ranked := make([]ItemScore, 0, len(row))
		for item, score := range row {
			ranked = append(ranked, ItemScore{ItemID: item, Score: score})
		}
		sort.Slice(ranked, func(a, b int) bool {
			if ranked[a].Score != ranked[b].Score {
				return ranked[a].Score > ranked[b].Score
			}
			return ranked[a].ItemID < ranked[b].ItemID
		})
		m.ranked[user] = ranked
	}

	return m, nil
}

// Score returns the stored score, 0 for unobserved pairs.
func (m *InteractionMatrix) Score(userID, itemID string) float64 {
	return m.scores[userID][itemID]
}

func (m *InteractionMatrix) HasUser(userID string) bool {
	_, ok := m.scores[userID]
	return ok
}

// Interacted returns the items the user scored above zero.
func (m *InteractionMatrix) Interacted(userID string) map[string]struct{} {
	interacted := make(map[string]struct{})
	for item, score := range m.scores[userID] {
		if score > 0 {
			interacted[item] = struct{}{}
		}
	}
	return interacted
}

// TopItems returns up to k stored entries of the user's row ordered by score
// descending, ties by ascending item id.
func (m *InteractionMatrix) TopItems(userID string, k int) []ItemScore {
	if k <= 0 {
		return []ItemScore{}
	}
	ranked := m.ranked[userID]
	if k < len(ranked) {
		ranked = ranked[:k]
	}
	out := make([]ItemScore, len(ranked))
	copy(out, ranked)
	return out
}

// Users lists every user with a row, in ascending order.
func (m *InteractionMatrix) Users() []string {
	return sortedKeys(m.scores)
}

func (m *InteractionMatrix) Len() int { return len(m.scores) }

// Entries is the number of stored (user, item) scores.
func (m *InteractionMatrix) Entries() int { return m.entries }
