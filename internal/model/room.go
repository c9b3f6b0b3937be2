package model

import "time"

// RoomID uniquely identifies a room
type RoomID string

// RoomState represents the current phase of a room's lifecycle
type RoomState string

const (
	RoomStateWaiting    RoomState = "waiting"     // Players gathering, host has not started
	RoomStateInProgress RoomState = "in_progress" // Round running
	RoomStateCompleted  RoomState = "completed"   // All questions exhausted
)

// Round constants shared by every client
const (
	// QuestionDuration is the per-question countdown
	QuestionDuration = 30 * time.Second
	// RevealDuration is how long the correct answer is shown before advancing
	RevealDuration = 2 * time.Second
	// ScoreIncrement is the number of points awarded for a correct answer
	ScoreIncrement = 10
	// DefaultQuestionCount is the number of questions fetched per round
	DefaultQuestionCount = 5
	// DefaultCategory is the trivia category used when none is chosen
	DefaultCategory = 9
	// DefaultDifficulty is the trivia difficulty used for every round
	DefaultDifficulty = "medium"
)

// Room is the shared record for one quiz session. Every client reads and
// writes it through the store gateway; there is no server-side arbiter.
//
// Coordination safety comes from the shape of the record: Players and
// Scores are maps keyed by player ID so concurrent writes commute, and
// CurrentQuestion/Deadline live in the shared record so every client
// derives the same notion of "current question" and remaining time.
type Room struct {
	ID       RoomID
	Name     string
	HostID   PlayerID // only this player may start the round; immutable
	Category int

	State   RoomState
	Players map[PlayerID]Player // only grows while State is waiting

	// Questions is set exactly once, at the waiting -> in_progress
	// transition, and never mutated afterwards.
	Questions []Question

	// Scores maps player ID to accumulated points. Entries are only ever
	// incremented while the round is in progress.
	Scores map[PlayerID]int

	// CurrentQuestion indexes into Questions; Deadline is when the
	// countdown for that question expires. Both advance together via a
	// compare-and-set write that any client may attempt.
	CurrentQuestion int
	Deadline        time.Time

	CreatedAt time.Time
}

// HasPlayer reports whether the player has joined this room
func (r *Room) HasPlayer(id PlayerID) bool {
	_, ok := r.Players[id]
	return ok
}

// ActiveQuestion returns the question currently in play, or nil if the
// round is not in progress or the index is out of range
func (r *Room) ActiveQuestion() *Question {
	if r.State != RoomStateInProgress {
		return nil
	}
	if r.CurrentQuestion < 0 || r.CurrentQuestion >= len(r.Questions) {
		return nil
	}
	return &r.Questions[r.CurrentQuestion]
}

// OnLastQuestion reports whether CurrentQuestion is the final question
func (r *Room) OnLastQuestion() bool {
	return r.CurrentQuestion >= len(r.Questions)-1
}

// Clone returns a deep copy of the room. Subscription snapshots are
// always clones so callers can never mutate shared state.
func (r *Room) Clone() *Room {
	c := *r

	c.Players = make(map[PlayerID]Player, len(r.Players))
	for id, p := range r.Players {
		c.Players[id] = p
	}

	c.Scores = make(map[PlayerID]int, len(r.Scores))
	for id, s := range r.Scores {
		c.Scores[id] = s
	}

	if r.Questions != nil {
		c.Questions = make([]Question, len(r.Questions))
		for i, q := range r.Questions {
			c.Questions[i] = q
			c.Questions[i].Options = append([]string(nil), q.Options...)
		}
	}

	return &c
}
