package leaderboard

import (
	"context"
	"log/slog"

	"github.com/jonboulle/clockwork"

	"github.com/ddowsett/quizroom-go/internal/model"
	"github.com/ddowsett/quizroom-go/internal/store"
)

// Service maintains cross-room score totals. Every update is a per-key
// atomic increment at the store level, so any number of rounds can
// finish at once without losing points.
type Service struct {
	store  store.LeaderboardStore
	clock  clockwork.Clock
	logger *slog.Logger
}

// New creates a new leaderboard Service
func New(store store.LeaderboardStore, clock clockwork.Clock, logger *slog.Logger) *Service {
	return &Service{
		store:  store,
		clock:  clock,
		logger: logger.With(slog.String("component", "leaderboard")),
	}
}

// RecordResult folds one finished round into the player's totals.
// Zero-point rounds still count as a game played.
func (s *Service) RecordResult(ctx context.Context, player model.Player, points int, category int) error {
	err := s.store.RecordResult(ctx, player.ID, player.DisplayName, points, category, s.clock.Now())
	if err != nil {
		s.logger.Error("failed to record result",
			slog.String("player_id", string(player.ID)),
			slog.Int("points", points),
			slog.String("error", err.Error()))
		return err
	}

	s.logger.Info("result recorded",
		slog.String("player_id", string(player.ID)),
		slog.Int("points", points),
		slog.Int("category", category))
	return nil
}

// TopPlayers returns up to n entries ordered by total score descending
func (s *Service) TopPlayers(ctx context.Context, n int) ([]model.LeaderboardEntry, error) {
	return s.store.TopPlayers(ctx, n)
}
