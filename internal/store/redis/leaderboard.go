package redis

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ddowsett/quizroom-go/internal/model"
)

// Leaderboard hash fields
const (
	fieldDisplayName      = "display_name"
	fieldScore            = "score"
	fieldGamesPlayed      = "games_played"
	fieldFavoriteCategory = "favorite_category"
	fieldLastPlayed       = "last_played"
)

func (s *Storage) RecordResult(ctx context.Context, player model.PlayerID, displayName string, points int, category int, playedAt time.Time) error {
	key := leaderboardPlayerKey(player)

	// All counters are incremented, never read-modify-written, so two
	// rounds finishing at once both land
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZIncrBy(ctx, leaderboardKey(), float64(points), string(player))
		pipe.HIncrBy(ctx, key, fieldScore, int64(points))
		pipe.HIncrBy(ctx, key, fieldGamesPlayed, 1)
		pipe.HSet(ctx, key,
			fieldDisplayName, displayName,
			fieldFavoriteCategory, category,
			fieldLastPlayed, formatTime(playedAt),
		)
		return nil
	})
	return storeErr(err)
}

func (s *Storage) TopPlayers(ctx context.Context, n int) ([]model.LeaderboardEntry, error) {
	if n <= 0 {
		return []model.LeaderboardEntry{}, nil
	}

	ids, err := s.client.ZRevRange(ctx, leaderboardKey(), 0, int64(n-1)).Result()
	if err != nil {
		return nil, storeErr(err)
	}

	entries := make([]model.LeaderboardEntry, 0, len(ids))
	for _, id := range ids {
		fields, err := s.client.HGetAll(ctx, leaderboardPlayerKey(model.PlayerID(id))).Result()
		if err != nil {
			return nil, storeErr(err)
		}
		if len(fields) == 0 {
			continue
		}

		entry := model.LeaderboardEntry{
			PlayerID:    model.PlayerID(id),
			DisplayName: fields[fieldDisplayName],
			LastPlayed:  parseTime(fields[fieldLastPlayed]),
		}
		entry.Score, _ = strconv.Atoi(fields[fieldScore])
		entry.GamesPlayed, _ = strconv.Atoi(fields[fieldGamesPlayed])
		entry.FavoriteCategory, _ = strconv.Atoi(fields[fieldFavoriteCategory])
		entries = append(entries, entry)
	}
	return entries, nil
}
