package models

import (
	"time"

	"github.com/google/uuid"
)

// Snapshot is everything a full model rebuild consumes.
type Snapshot struct {
	Catalog    []Game     `json:"catalog" validate:"dive"`
	Reviews    []Review   `json:"reviews" validate:"dive"`
	Playtime   []Playtime `json:"playtime" validate:"dive"`
	Vocabulary []string   `json:"vocabulary"`
}

// SnapshotRefreshEvent asks the service to reload the snapshot from its
// source and rebuild both models.
type SnapshotRefreshEvent struct {
	EventID     uuid.UUID `json:"event_id"`
	Source      string    `json:"source"`
	RequestedBy string    `json:"requested_by,omitempty"`
	RequestedAt time.Time `json:"requested_at"`
	RetryCount  int       `json:"retry_count"`
}
