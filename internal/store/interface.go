package store

import (
	"context"
	"time"

	"github.com/ddowsett/quizroom-go/internal/model"
)

// RoomStore is the gateway to the external document store holding the
// shared room records. It is the only component that talks to the store.
//
// There is no lock around a room record; every mutating operation is
// shaped so that concurrent writers commute or one of them cleanly
// loses: AddPlayer is append-if-absent, IncrementScore is a per-key
// atomic increment, and StartRound/AdvanceQuestion are compare-and-set.
//
// Any operation may fail with model.ErrStoreUnavailable (wrapped) on a
// transient fault; missing rooms surface as model.ErrRoomNotFound.
type RoomStore interface {
	// CreateRoom persists a new room record
	CreateRoom(ctx context.Context, room *model.Room) error

	// GetRoom reads the current snapshot of a room
	GetRoom(ctx context.Context, id model.RoomID) (*model.Room, error)

	// ListRooms returns snapshots of all live rooms, oldest first
	ListRooms(ctx context.Context) ([]*model.Room, error)

	// AddPlayer inserts the player into the room's player map if and
	// only if no entry for the player's ID exists (append-if-absent).
	// Returns false when the player was already present.
	AddPlayer(ctx context.Context, id model.RoomID, player model.Player) (bool, error)

	// StartRound atomically transitions waiting -> in_progress, setting
	// the question sequence, resetting the question index to 0, setting
	// the first deadline and clearing all scores. Returns
	// model.ErrRoundAlreadyStarted if the room is not waiting.
	StartRound(ctx context.Context, id model.RoomID, questions []model.Question, deadline time.Time) error

	// IncrementScore atomically adds delta to one player's score and
	// returns the new value. Concurrent increments never lose updates.
	IncrementScore(ctx context.Context, id model.RoomID, player model.PlayerID, delta int) (int, error)

	// SetScores replaces the whole score map in one merge write. It is
	// part of the document contract but unsafe under contention (a
	// read-modify-write through it can lose concurrent increments);
	// score updates must go through IncrementScore instead.
	SetScores(ctx context.Context, id model.RoomID, scores map[model.PlayerID]int) error

	// AdvanceQuestion moves the room from question fromIndex to the
	// next one, or to the completed state when fromIndex was the last
	// question. The write only applies if the room is in progress and
	// still on fromIndex; it returns false, with no error, when another
	// client advanced first.
	AdvanceQuestion(ctx context.Context, id model.RoomID, fromIndex int, nextDeadline time.Time) (bool, error)

	// Subscribe registers a change-feed callback for one room. The
	// callback receives the current full snapshot immediately, then one
	// snapshot after each observed write, in the order this subscriber
	// observes the writes. Snapshots are private copies. The returned
	// function cancels the subscription.
	Subscribe(ctx context.Context, id model.RoomID, fn func(*model.Room)) (func(), error)
}

// LeaderboardStore persists cross-room score totals. All updates are
// per-key atomic increments so concurrent finishers cannot clobber each
// other.
type LeaderboardStore interface {
	// RecordResult adds one finished round to a player's totals
	RecordResult(ctx context.Context, player model.PlayerID, displayName string, points int, category int, playedAt time.Time) error

	// TopPlayers returns up to n entries ordered by total score descending
	TopPlayers(ctx context.Context, n int) ([]model.LeaderboardEntry, error)
}

// Store is the full persistence surface backed by the document store
type Store interface {
	RoomStore
	LeaderboardStore
}
