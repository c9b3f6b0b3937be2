package model

import "time"

// PlayerID uniquely identifies a player across the system
type PlayerID string

// Player represents a room participant.
//
// Score is the join-time snapshot and is always 0; the authoritative
// running score lives in Room.Scores, keyed by the player's ID.
type Player struct {
	ID          PlayerID
	DisplayName string
	Score       int
	JoinedAt    time.Time
}
