package recommender

import "errors"

// Build-time failures. A rebuild returning one of these leaves the
// previously served model untouched.
var (
	ErrEmptyCatalog      = errors.New("catalog is empty")
	ErrUnknownVocabulary = errors.New("category vocabulary is empty")
	ErrNoFeedbackData    = errors.New("no feedback data")
	ErrNonFiniteFeature  = errors.New("feature value is not finite")
	ErrInvalidPlaytime   = errors.New("playtime hours must be a finite non-negative number")
)

// Query-time failures.
var (
	ErrItemNotFound  = errors.New("item not found")
	ErrUserNotFound  = errors.New("user not found")
	ErrModelNotBuilt = errors.New("models have not been built")
)
