package models

import (
	"time"
)

// RecommendedItem is one entry of a recommendation list. Name holds the
// catalog display name or, for ids missing from the catalog, the raw id.
type RecommendedItem struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Score float64 `json:"score"`
}

type SimilarItemsResponse struct {
	ItemID       string            `json:"item_id"`
	Items        []RecommendedItem `json:"items"`
	ModelID      string            `json:"model_id"`
	ModelVersion int64             `json:"model_version"`
	GeneratedAt  time.Time         `json:"generated_at"`
	CacheHit     bool              `json:"cache_hit"`
}

type UserRecommendationResponse struct {
	UserID        string            `json:"user_id"`
	Items         []RecommendedItem `json:"items"`
	Insufficient  bool              `json:"insufficient_candidates"`
	TimedOut      bool              `json:"timed_out,omitempty"`
	Rounds        int               `json:"rounds"`
	NeighborCount int               `json:"neighbor_count"`
	ModelID       string            `json:"model_id"`
	ModelVersion  int64             `json:"model_version"`
	GeneratedAt   time.Time         `json:"generated_at"`
	CacheHit      bool              `json:"cache_hit"`
}

type SimilarItemsRequest struct {
	ItemID string `validate:"required"`
	K      int    `validate:"min=1,max=100"`
}

type UserRecommendationRequest struct {
	UserID string `validate:"required"`
	N      int    `validate:"min=1,max=100"`
}

// ModelStatus describes the model currently served and the last build attempt.
type ModelStatus struct {
	Ready         bool       `json:"ready"`
	Building      bool       `json:"building"`
	ModelID       string     `json:"model_id,omitempty"`
	Version       int64      `json:"version"`
	BuiltAt       *time.Time `json:"built_at,omitempty"`
	Items         int        `json:"items"`
	Users         int        `json:"users"`
	Interactions  int        `json:"interactions"`
	BuildDuration string     `json:"build_duration,omitempty"`
	LastError     string     `json:"last_error,omitempty"`
	LastAttemptAt *time.Time `json:"last_attempt_at,omitempty"`
}
