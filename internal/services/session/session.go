package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/ddowsett/quizroom-go/internal/model"
	"github.com/ddowsett/quizroom-go/internal/services/room"
)

// EventType labels the session events delivered to the UI
type EventType string

const (
	EventLobby    EventType = "lobby"    // Waiting room changed (player joined etc.)
	EventQuestion EventType = "question" // A new question is live
	EventReveal   EventType = "reveal"   // Answer feedback is being shown
	EventDone     EventType = "done"     // Round finished
)

// Event is a session state change the UI should render
type Event struct {
	Type  EventType
	State State
}

// eventBuffer is how many undelivered events the UI may lag behind
const eventBuffer = 64

// Session drives one client's progression through one room. It is a
// single event loop: change-feed snapshots, local answer selections and
// clock expiries all funnel into the pure FSM, and the resulting
// effects (score submission, compare-and-set advance) are writes back
// through the room controller. The per-question countdown is derived
// from the shared deadline, so a client joining mid-question counts
// down in step with everyone else.
type Session struct {
	rooms    *room.Controller
	clock    clockwork.Clock
	logger   *slog.Logger
	roomID   model.RoomID
	playerID model.PlayerID

	snapshots chan *model.Room
	answers   chan string
	events    chan Event

	done      chan struct{}
	closeOnce sync.Once
}

// New creates a session for one player in one room. Run must be called
// to start it.
func New(rooms *room.Controller, clock clockwork.Clock, logger *slog.Logger, roomID model.RoomID, playerID model.PlayerID) *Session {
	return &Session{
		rooms:    rooms,
		clock:    clock,
		logger:   logger.With(slog.String("component", "session"), slog.String("room_id", string(roomID))),
		roomID:   roomID,
		playerID: playerID,

		snapshots: make(chan *model.Room, eventBuffer),
		answers:   make(chan string, 1),
		events:    make(chan Event, eventBuffer),
		done:      make(chan struct{}),
	}
}

// Events returns the channel of UI events. It is closed when Run returns.
func (s *Session) Events() <-chan Event {
	return s.events
}

// Answer records the local user's answer selection. Safe to call from
// any goroutine; extra selections while one is pending are dropped.
func (s *Session) Answer(answer string) {
	select {
	case s.answers <- answer:
	default:
	}
}

// Close stops the session and its subscription
func (s *Session) Close() {
	s.closeOnce.Do(func() { close(s.done) })
}

// Run subscribes to the room and processes events until the round
// completes, the context is cancelled or Close is called
func (s *Session) Run(ctx context.Context) error {
	cancelSub, err := s.rooms.Subscribe(ctx, s.roomID, func(r *model.Room) {
		select {
		case s.snapshots <- r:
		case <-s.done:
		}
	})
	if err != nil {
		return err
	}
	defer cancelSub()
	defer close(s.events)

	state := State{Phase: PhaseLobby}

	// Timers are replaced, not reused: a nil channel variable means the
	// timer is disarmed and a stale expiry can never be selected
	var countdown, reveal clockwork.Timer
	var countdownC, revealC <-chan time.Time

	armCountdown := func(deadline time.Time) {
		if countdown != nil {
			countdown.Stop()
		}
		remaining := deadline.Sub(s.clock.Now())
		if remaining < 0 {
			remaining = 0
		}
		countdown = s.clock.NewTimer(remaining)
		countdownC = countdown.Chan()
	}
	disarmCountdown := func() {
		if countdown != nil {
			countdown.Stop()
		}
		countdownC = nil
	}
	armReveal := func() {
		if reveal != nil {
			reveal.Stop()
		}
		reveal = s.clock.NewTimer(model.RevealDuration)
		revealC = reveal.Chan()
	}
	disarmReveal := func() {
		if reveal != nil {
			reveal.Stop()
		}
		revealC = nil
	}
	defer disarmCountdown()
	defer disarmReveal()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-s.done:
			return nil

		case snapshot := <-s.snapshots:
			prevPhase, prevIndex := state.Phase, state.QuestionIndex

			var effect Effect
			state, effect = Next(state, SnapshotInput{Room: snapshot})
			s.runEffect(ctx, state, effect)

			switch {
			case state.Phase == PhaseQuestion && (prevPhase != PhaseQuestion || state.QuestionIndex != prevIndex):
				disarmReveal()
				armCountdown(snapshot.Deadline)
				s.emit(EventQuestion, state)
			case state.Phase == PhaseDone:
				disarmCountdown()
				disarmReveal()
				if prevPhase != PhaseDone {
					s.emit(EventDone, state)
				}
				return nil
			case state.Phase == PhaseLobby:
				s.emit(EventLobby, state)
			}

		case answer := <-s.answers:
			var effect Effect
			state, effect = Next(state, AnswerInput{Answer: answer})
			if state.Phase == PhaseReveal && effect == EffectSubmitAnswer {
				disarmCountdown()
				s.runEffect(ctx, state, effect)
				armReveal()
				s.emit(EventReveal, state)
			}

		case <-countdownC:
			countdownC = nil
			var effect Effect
			state, effect = Next(state, CountdownExpired{})
			s.runEffect(ctx, state, effect)
			if state.Phase == PhaseReveal {
				armReveal()
				s.emit(EventReveal, state)
			}

		case <-revealC:
			revealC = nil
			var effect Effect
			state, effect = Next(state, RevealExpired{})
			s.runEffect(ctx, state, effect)
		}
	}
}

// runEffect performs the side effect of an FSM transition. Writes are
// fire-and-forget: failures are logged and the shared record remains
// the source of truth, so local belief never flips without a confirmed
// echo through the feed.
func (s *Session) runEffect(ctx context.Context, state State, effect Effect) {
	switch effect {
	case EffectSubmitAnswer:
		result, err := s.rooms.SubmitAnswer(ctx, s.roomID, s.playerID, state.QuestionIndex, state.SelectedAnswer)
		if err != nil {
			s.logger.Error("failed to submit answer",
				slog.Int("question", state.QuestionIndex),
				slog.String("error", err.Error()))
			return
		}
		s.logger.Info("answer submitted",
			slog.Int("question", state.QuestionIndex),
			slog.Bool("correct", result.Correct),
			slog.Int("score", result.NewScore))

	case EffectAdvance:
		if _, err := s.rooms.Advance(ctx, s.roomID, state.QuestionIndex); err != nil {
			s.logger.Error("failed to advance",
				slog.Int("question", state.QuestionIndex),
				slog.String("error", err.Error()))
		}
	}
}

func (s *Session) emit(eventType EventType, state State) {
	select {
	case s.events <- Event{Type: eventType, State: state}:
	default:
		s.logger.Warn("session event dropped - ui not keeping up",
			slog.String("event", string(eventType)))
	}
}
