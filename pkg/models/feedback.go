package models

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Sentiment is the three-level review sentiment produced upstream.
type Sentiment int

const (
	SentimentNegative Sentiment = 0
	SentimentNeutral  Sentiment = 1
	SentimentPositive Sentiment = 2
)

func (s Sentiment) String() string {
	switch s {
	case SentimentNegative:
		return "negative"
	case SentimentNeutral:
		return "neutral"
	case SentimentPositive:
		return "positive"
	default:
		return fmt.Sprintf("sentiment(%d)", int(s))
	}
}

// Valid reports whether s is one of the three known levels.
func (s Sentiment) Valid() bool {
	return s >= SentimentNegative && s <= SentimentPositive
}

// ParseSentiment accepts either the level name or its numeric form.
func ParseSentiment(value string) (Sentiment, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "negative", "0":
		return SentimentNegative, nil
	case "neutral", "1":
		return SentimentNeutral, nil
	case "positive", "2":
		return SentimentPositive, nil
	}
	return 0, fmt.Errorf("unknown sentiment %q", value)
}

func (s Sentiment) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *Sentiment) UnmarshalJSON(data []byte) error {
	var number int
	if err := json.Unmarshal(data, &number); err == nil {
		parsed := Sentiment(number)
		if !parsed.Valid() {
			return fmt.Errorf("unknown sentiment %d", number)
		}
		*s = parsed
		return nil
	}

	var text string
	if err := json.Unmarshal(data, &text); err != nil {
		return fmt.Errorf("sentiment must be a string or integer: %w", err)
	}
	parsed, err := ParseSentiment(text)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Review is one explicit feedback record. Several reviews may exist for the
// same (user, item) pair.
type Review struct {
	ItemID    string    `json:"item_id" db:"item_id" validate:"required"`
	UserID    string    `json:"user_id" db:"user_id" validate:"required"`
	Recommend bool      `json:"recommend" db:"recommend"`
	Sentiment Sentiment `json:"sentiment" db:"sentiment_analysis"`
}

// Playtime is the implicit signal: hours a user spent in a game.
type Playtime struct {
	UserID string  `json:"user_id" db:"user_id" validate:"required"`
	ItemID string  `json:"item_id" db:"item_id" validate:"required"`
	Hours  float64 `json:"hours" db:"playtime_hours" validate:"gte=0"`
}
