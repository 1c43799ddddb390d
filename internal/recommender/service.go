package recommender

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/temcen/gamerec/pkg/models"
)

// Options configures model construction and queries.
type Options struct {
	Workers      int
	Interactions InteractionOptions
	Expansion    ExpansionConfig
	QueryTimeout time.Duration
}

func DefaultOptions() Options {
	return Options{
		Interactions: DefaultInteractionOptions(),
		Expansion:    DefaultExpansionConfig(),
	}
}

// Model is one complete, immutable build. Queries only ever see a whole Model.
type Model struct {
	// ID is the snapshot fingerprint. Unlike Version it is stable across
	// processes.
	ID            string
	Version       int64
	BuiltAt       time.Time
	BuildDuration time.Duration
	Items         *ItemIndex
	Users         *UserIndex
	Interactions  *InteractionMatrix
	Expansion     *NeighborExpansion

	names map[string]string
}

// BuildStats summarizes a successful rebuild.
type BuildStats struct {
	ModelID         string        `json:"model_id"`
	Version         int64         `json:"version"`
	Items           int           `json:"items"`
	Users           int           `json:"users"`
	Interactions    int           `json:"interactions"`
	DegenerateItems int           `json:"degenerate_items"`
	DegenerateUsers int           `json:"degenerate_users"`
	Duration        time.Duration `json:"duration"`
	Shared          bool          `json:"shared"`
}

type SimilarItems struct {
	Items   []models.RecommendedItem
	ModelID string
	Version int64
}

type UserRecommendations struct {
	Items         []models.RecommendedItem
	Insufficient  bool
	TimedOut      bool
	Rounds        int
	NeighborCount int
	ModelID       string
	Version       int64
}

// ModelService owns both similarity models. It starts empty, is populated by
// Rebuild and answers queries lock-free from the last complete build.
type ModelService struct {
	options Options
	logger  *logrus.Logger

	current  atomic.Pointer[Model]
	version  atomic.Int64
	building atomic.Bool
	group    singleflight.Group
	buildMu  sync.Mutex

	// beforeBuild runs under buildMu ahead of every build.
	beforeBuild func(snapshot models.Snapshot)

	mu          sync.RWMutex
	lastErr     error
	lastAttempt time.Time
}

func NewModelService(opts Options, logger *logrus.Logger) *ModelService {
	if opts.Interactions.Formula == "" {
		opts.Interactions = DefaultInteractionOptions()
	}
	return &ModelService{
		options: opts,
		logger:  logger,
	}
}

// Rebuild builds new models from snapshot and swaps them in. Calls with the
// same snapshot share the build already in flight; a different snapshot waits
// for the running build and is then built itself. On failure the previous
// models keep serving and the error is returned.
func (s *ModelService) Rebuild(ctx context.Context, snapshot models.Snapshot) (*BuildStats, error) {
	id := Fingerprint(snapshot, s.options)

	result, err, shared := s.group.Do(id, func() (interface{}, error) {
		s.buildMu.Lock()
		defer s.buildMu.Unlock()

		if s.beforeBuild != nil {
			s.beforeBuild(snapshot)
		}
		return s.build(ctx, snapshot, id)
	})
	if err != nil {
		return nil, err
	}

	stats := *result.(*BuildStats)
	stats.Shared = shared
	return &stats, nil
}

func (s *ModelService) build(ctx context.Context, snapshot models.Snapshot, id string) (*BuildStats, error) {
	s.building.Store(true)
	defer s.building.Store(false)

	started := time.Now()
	model, err := s.buildModel(ctx, snapshot)

	s.mu.Lock()
	s.lastAttempt = started
	s.lastErr = err
	s.mu.Unlock()

	if err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"catalog":  len(snapshot.Catalog),
			"reviews":  len(snapshot.Reviews),
			"playtime": len(snapshot.Playtime),
		}).Error("Model rebuild failed, keeping previous models")
		return nil, err
	}

	model.ID = id
	model.Version = s.version.Add(1)
	model.BuiltAt = time.Now()
	model.BuildDuration = time.Since(started)
	s.current.Store(model)

	stats := &BuildStats{
		ModelID:         model.ID,
		Version:         model.Version,
		Items:           model.Items.Len(),
		Users:           model.Users.Len(),
		Interactions:    model.Interactions.Entries(),
		DegenerateItems: model.Items.Degenerate(),
		DegenerateUsers: model.Users.Degenerate(),
		Duration:        model.BuildDuration,
	}

	s.logger.WithFields(logrus.Fields{
		"model_id":         stats.ModelID,
		"version":          stats.Version,
		"items":            stats.Items,
		"users":            stats.Users,
		"interactions":     stats.Interactions,
		"degenerate_items": stats.DegenerateItems,
		"degenerate_users": stats.DegenerateUsers,
		"duration":         stats.Duration,
	}).Info("Models rebuilt")

	return stats, nil
}

func (s *ModelService) buildModel(ctx context.Context, snapshot models.Snapshot) (*Model, error) {
	// Reject bad snapshots before any pairwise work.
	if len(snapshot.Catalog) == 0 {
		return nil, ErrEmptyCatalog
	}
	if len(NormalizeVocabulary(snapshot.Vocabulary)) == 0 {
		return nil, ErrUnknownVocabulary
	}
	if len(snapshot.Reviews) == 0 {
		return nil, ErrNoFeedbackData
	}

	interactions, err := BuildInteractionMatrix(snapshot.Reviews, snapshot.Playtime, s.options.Interactions)
	if err != nil {
		return nil, fmt.Errorf("interaction matrix: %w", err)
	}

	var (
		items *ItemIndex
		users *UserIndex
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		items, err = BuildItemIndex(gctx, snapshot.Catalog, snapshot.Vocabulary, s.options.Workers)
		return err
	})
	g.Go(func() error {
		var err error
		users, err = BuildUserIndex(gctx, interactions, s.options.Workers)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	names := make(map[string]string, len(snapshot.Catalog))
	for _, game := range snapshot.Catalog {
		names[game.ItemID] = game.DisplayName()
	}

	return &Model{
		Items:        items,
		Users:        users,
		Interactions: interactions,
		Expansion:    NewNeighborExpansion(users, interactions, s.options.Expansion),
		names:        names,
	}, nil
}

// Current returns the model being served or ErrModelNotBuilt.
func (s *ModelService) Current() (*Model, error) {
	model := s.current.Load()
	if model == nil {
		return nil, ErrModelNotBuilt
	}
	return model, nil
}

// SimilarItems answers the item-based query from the content index.
func (s *ModelService) SimilarItems(ctx context.Context, itemID string, k int) (*SimilarItems, error) {
	model, err := s.Current()
	if err != nil {
		return nil, err
	}

	neighbors, err := model.Items.TopK(itemID, k)
	if err != nil {
		return nil, err
	}

	items := make([]models.RecommendedItem, len(neighbors))
	for i, neighbor := range neighbors {
		items[i] = model.recommended(neighbor.ID, neighbor.Similarity)
	}
	return &SimilarItems{Items: items, ModelID: model.ID, Version: model.Version}, nil
}

// RecommendForUser answers the user-based query through neighbor expansion.
// A short list is a valid answer, flagged by Insufficient.
func (s *ModelService) RecommendForUser(ctx context.Context, userID string, n int) (*UserRecommendations, error) {
	model, err := s.Current()
	if err != nil {
		return nil, err
	}

	if s.options.QueryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.options.QueryTimeout)
		defer cancel()
	}

	expansion, err := model.Expansion.Recommend(ctx, userID, n)
	if err != nil {
		return nil, err
	}

	items := make([]models.RecommendedItem, len(expansion.Candidates))
	for i, candidate := range expansion.Candidates {
		items[i] = model.recommended(candidate.ItemID, candidate.Score)
	}

	if expansion.Insufficient {
		s.logger.WithFields(logrus.Fields{
			"user_id":        userID,
			"requested":      n,
			"found":          len(items),
			"rounds":         expansion.Rounds,
			"neighbor_count": expansion.NeighborCount,
			"timed_out":      expansion.TimedOut,
		}).Debug("Neighbor expansion returned fewer candidates than requested")
	}

	return &UserRecommendations{
		Items:         items,
		Insufficient:  expansion.Insufficient,
		TimedOut:      expansion.TimedOut,
		Rounds:        expansion.Rounds,
		NeighborCount: expansion.NeighborCount,
		ModelID:       model.ID,
		Version:       model.Version,
	}, nil
}

// Status reports the served model and the outcome of the last build attempt.
func (s *ModelService) Status() models.ModelStatus {
	status := models.ModelStatus{Building: s.building.Load()}

	if model := s.current.Load(); model != nil {
		builtAt := model.BuiltAt
		status.Ready = true
		status.ModelID = model.ID
		status.Version = model.Version
		status.BuiltAt = &builtAt
		status.Items = model.Items.Len()
		status.Users = model.Users.Len()
		status.Interactions = model.Interactions.Entries()
		status.BuildDuration = model.BuildDuration.String()
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.lastAttempt.IsZero() {
		attempt := s.lastAttempt
		status.LastAttemptAt = &attempt
	}
	if s.lastErr != nil {
		status.LastError = s.lastErr.Error()
	}
	return status
}

// recommended substitutes the display name when the id is in the catalog.
func (m *Model) recommended(id string, score float64) models.RecommendedItem {
	name, ok := m.names[id]
	if !ok {
		name = id
	}
	return models.RecommendedItem{ID: id, Name: name, Score: score}
}
