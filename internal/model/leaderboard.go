package model

import "time"

// LeaderboardEntry is one player's accumulated results across all rooms
type LeaderboardEntry struct {
	PlayerID         PlayerID
	DisplayName      string
	Score            int
	GamesPlayed      int
	FavoriteCategory int // most recently played category
	LastPlayed       time.Time
}
