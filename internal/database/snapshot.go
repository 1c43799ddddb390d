package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/sirupsen/logrus"

	"github.com/temcen/gamerec/pkg/models"
)

// Querier is the subset of pgxpool.Pool the snapshot store needs.
type Querier interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
}

const (
	catalogQuery = `
		SELECT item_id, app_name, developer, price::float8, release_year, free_to_play, genres
		FROM games
		ORDER BY item_id`

	reviewsQuery = `
		SELECT item_id, user_id, recommend, sentiment_analysis::int4
		FROM reviews
		ORDER BY review_seq`

	playtimeQuery = `
		SELECT user_id, item_id, playtime_hours::float8
		FROM user_items
		ORDER BY item_seq`

	vocabularyQuery = `
		SELECT label
		FROM categories
		ORDER BY position, label`
)

// SnapshotStore reads the cleaned snapshot tables maintained by the
// ingestion layer. Reviews and playtime are read in insertion order so that
// "last record wins" is stable across rebuilds.
type SnapshotStore struct {
	db     Querier
	logger *logrus.Logger
}

func NewSnapshotStore(db Querier, logger *logrus.Logger) *SnapshotStore {
	return &SnapshotStore{db: db, logger: logger}
}

// LoadSnapshot reads all four feeds.
func (s *SnapshotStore) LoadSnapshot(ctx context.Context) (*models.Snapshot, error) {
	catalog, err := s.loadCatalog(ctx)
	if err != nil {
		return nil, err
	}
	reviews, err := s.loadReviews(ctx)
	if err != nil {
		return nil, err
	}
	playtime, err := s.loadPlaytime(ctx)
	if err != nil {
		return nil, err
	}
	vocabulary, err := s.loadVocabulary(ctx)
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"catalog":    len(catalog),
		"reviews":    len(reviews),
		"playtime":   len(playtime),
		"vocabulary": len(vocabulary),
	}).Info("Snapshot loaded from PostgreSQL")

	return &models.Snapshot{
		Catalog:    catalog,
		Reviews:    reviews,
		Playtime:   playtime,
		Vocabulary: vocabulary,
	}, nil
}

func (s *SnapshotStore) loadCatalog(ctx context.Context) ([]models.Game, error) {
	rows, err := s.db.Query(ctx, catalogQuery)
	if err != nil {
		return nil, fmt.Errorf("catalog query failed: %w", err)
	}
	defer rows.Close()

	var catalog []models.Game
	for rows.Next() {
		var game models.Game
		var developer *string
		if err := rows.Scan(&game.ItemID, &game.Name, &developer, &game.Price,
			&game.ReleaseYear, &game.FreeToPlay, &game.Categories); err != nil {
			return nil, fmt.Errorf("failed to scan catalog row: %w", err)
		}
		if developer != nil {
			game.Developer = *developer
		}
		catalog = append(catalog, game)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("catalog rows: %w", err)
	}
	return catalog, nil
}

func (s *SnapshotStore) loadReviews(ctx context.Context) ([]models.Review, error) {
	rows, err := s.db.Query(ctx, reviewsQuery)
	if err != nil {
		return nil, fmt.Errorf("reviews query failed: %w", err)
	}
	defer rows.Close()

	var reviews []models.Review
	for rows.Next() {
		var review models.Review
		var sentiment int32
		if err := rows.Scan(&review.ItemID, &review.UserID, &review.Recommend, &sentiment); err != nil {
			return nil, fmt.Errorf("failed to scan review row: %w", err)
		}
		review.Sentiment = models.Sentiment(sentiment)
		if !review.Sentiment.Valid() {
			s.logger.WithFields(logrus.Fields{
				"user_id":   review.UserID,
				"item_id":   review.ItemID,
				"sentiment": sentiment,
			}).Warn("Skipping review with unknown sentiment")
			continue
		}
		reviews = append(reviews, review)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("review rows: %w", err)
	}
	return reviews, nil
}

func (s *SnapshotStore) loadPlaytime(ctx context.Context) ([]models.Playtime, error) {
	rows, err := s.db.Query(ctx, playtimeQuery)
	if err != nil {
		return nil, fmt.Errorf("playtime query failed: %w", err)
	}
	defer rows.Close()

	var playtime []models.Playtime
	for rows.Next() {
		var record models.Playtime
		if err := rows.Scan(&record.UserID, &record.ItemID, &record.Hours); err != nil {
			return nil, fmt.Errorf("failed to scan playtime row: %w", err)
		}
		playtime = append(playtime, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("playtime rows: %w", err)
	}
	return playtime, nil
}

func (s *SnapshotStore) loadVocabulary(ctx context.Context) ([]string, error) {
	rows, err := s.db.Query(ctx, vocabularyQuery)
	if err != nil {
		return nil, fmt.Errorf("vocabulary query failed: %w", err)
	}
	defer rows.Close()

	var vocabulary []string
	for rows.Next() {
		var label string
		if err := rows.Scan(&label); err != nil {
			return nil, fmt.Errorf("failed to scan vocabulary row: %w", err)
		}
		vocabulary = append(vocabulary, label)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("vocabulary rows: %w", err)
	}
	return vocabulary, nil
}
