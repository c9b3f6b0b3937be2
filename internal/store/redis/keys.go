package redis

import (
	"fmt"

	"github.com/ddowsett/quizroom-go/internal/model"
)

// Key prefix for all quizroom data
const keyPrefix = "quizroom"

// Room hash fields
const (
	fieldName          = "name"
	fieldHost          = "host"
	fieldCategory      = "category"
	fieldState         = "state"
	fieldQuestions     = "questions"
	fieldQuestionCount = "question_count"
	fieldQuestion      = "question"
	fieldDeadline      = "deadline"
	fieldCreatedAt     = "created_at"
)

// roomKey returns the Redis key for a room's core hash
func roomKey(id model.RoomID) string {
	return fmt.Sprintf("%s:room:%s", keyPrefix, id)
}

// roomPlayersKey returns the Redis key for a room's player hash.
// Players live in their own hash so joins are HSETNX (append-if-absent).
func roomPlayersKey(id model.RoomID) string {
	return fmt.Sprintf("%s:room:%s:players", keyPrefix, id)
}

// roomScoresKey returns the Redis key for a room's score hash.
// Scores live in their own hash so updates are HINCRBY (atomic per key).
func roomScoresKey(id model.RoomID) string {
	return fmt.Sprintf("%s:room:%s:scores", keyPrefix, id)
}

// roomEventsChannel returns the pub/sub channel carrying a room's change feed
func roomEventsChannel(id model.RoomID) string {
	return fmt.Sprintf("%s:room:%s:events", keyPrefix, id)
}

// roomIndexKey returns the Redis key for the SET of live room ids
func roomIndexKey() string {
	return fmt.Sprintf("%s:rooms", keyPrefix)
}

// leaderboardKey returns the Redis key for the score-ordered leaderboard ZSET
func leaderboardKey() string {
	return fmt.Sprintf("%s:leaderboard", keyPrefix)
}

// leaderboardPlayerKey returns the Redis key for one player's totals hash
func leaderboardPlayerKey(id model.PlayerID) string {
	return fmt.Sprintf("%s:leaderboard:player:%s", keyPrefix, id)
}
