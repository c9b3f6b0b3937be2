package session

import "github.com/ddowsett/quizroom-go/internal/model"

// Phase is the client-local phase within a room
type Phase string

const (
	PhaseLobby    Phase = "lobby"    // Room waiting for the host to start
	PhaseQuestion Phase = "question" // A question is live, countdown running
	PhaseReveal   Phase = "reveal"   // Correct answer shown before advancing
	PhaseDone     Phase = "done"     // Round over, results available
)

// State is one client's progress through a room. It is derived purely
// from shared-record snapshots plus local timer and answer inputs, so
// every client observing the same feed lands on the same question.
type State struct {
	Phase Phase
	Room  *model.Room // latest observed snapshot

	QuestionIndex  int
	Answered       bool
	SelectedAnswer string
	Correct        bool
	CorrectAnswer  string
}

// Effect is a side effect the runner must perform after a transition
type Effect int

const (
	// EffectNone requires no action
	EffectNone Effect = iota
	// EffectSubmitAnswer submits SelectedAnswer for QuestionIndex
	EffectSubmitAnswer
	// EffectAdvance attempts the compare-and-set advance from QuestionIndex
	EffectAdvance
)

// Input is an event fed into the state machine
type Input interface{ isInput() }

// SnapshotInput is a fresh room snapshot from the change feed
type SnapshotInput struct{ Room *model.Room }

// AnswerInput is the local user selecting an answer
type AnswerInput struct{ Answer string }

// CountdownExpired fires when the question countdown lapses unanswered
type CountdownExpired struct{}

// RevealExpired fires when the reveal display delay lapses
type RevealExpired struct{}

func (SnapshotInput) isInput()    {}
func (AnswerInput) isInput()      {}
func (CountdownExpired) isInput() {}
func (RevealExpired) isInput()    {}

// Next computes the state after one input. It performs no I/O; the
// runner executes the returned effect.
func Next(s State, in Input) (State, Effect) {
	switch input := in.(type) {
	case SnapshotInput:
		return nextSnapshot(s, input.Room)

	case AnswerInput:
		if s.Phase != PhaseQuestion || s.Answered {
			return s, EffectNone
		}
		question := s.Room.ActiveQuestion()
		if question == nil {
			return s, EffectNone
		}
		s.Answered = true
		s.SelectedAnswer = input.Answer
		s.Correct = question.IsCorrect(input.Answer)
		s.CorrectAnswer = question.CorrectAnswer
		s.Phase = PhaseReveal
		return s, EffectSubmitAnswer

	case CountdownExpired:
		if s.Phase != PhaseQuestion || s.Answered {
			return s, EffectNone
		}
		// Timeout: no score change, but the reveal still happens
		s.Correct = false
		s.SelectedAnswer = ""
		if q := s.Room.ActiveQuestion(); q != nil {
			s.CorrectAnswer = q.CorrectAnswer
		}
		s.Phase = PhaseReveal
		return s, EffectNone

	case RevealExpired:
		if s.Phase != PhaseReveal {
			return s, EffectNone
		}
		// Stay in reveal until a snapshot moves the shared index; the
		// advance is a CAS that any client may win
		return s, EffectAdvance
	}

	return s, EffectNone
}

func nextSnapshot(s State, room *model.Room) (State, Effect) {
	s.Room = room

	switch room.State {
	case model.RoomStateWaiting:
		s.Phase = PhaseLobby
		return s, EffectNone

	case model.RoomStateCompleted:
		s.Phase = PhaseDone
		return s, EffectNone

	case model.RoomStateInProgress:
		// A round that started with no questions has nothing to show;
		// push the shared record straight to completion
		if room.CurrentQuestion >= len(room.Questions) {
			s.QuestionIndex = room.CurrentQuestion
			return s, EffectAdvance
		}

		// Shared index moved (or the round just started): present the
		// new question and reset per-question state
		if s.Phase == PhaseLobby || room.CurrentQuestion != s.QuestionIndex {
			s.QuestionIndex = room.CurrentQuestion
			s.Phase = PhaseQuestion
			s.Answered = false
			s.SelectedAnswer = ""
			s.Correct = false
			s.CorrectAnswer = ""
		}
		return s, EffectNone
	}

	return s, EffectNone
}
