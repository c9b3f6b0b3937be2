package room

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jonboulle/clockwork"

	"github.com/ddowsett/quizroom-go/internal/dependencies/random"
	"github.com/ddowsett/quizroom-go/internal/model"
	"github.com/ddowsett/quizroom-go/internal/store"
	"github.com/ddowsett/quizroom-go/internal/trivia"
)

const (
	// RoomIDLength is the length of generated room ids
	RoomIDLength = 6
	// RoomIDAlphabet is the characters used in room ids (avoid confusing chars)
	RoomIDAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
)

// AnswerResult is what a client needs to render the reveal phase
type AnswerResult struct {
	Correct       bool
	CorrectAnswer string
	// NewScore is the player's score after this answer; unchanged when
	// the answer was wrong or arrived for a question no longer current
	NewScore int
}

// Controller implements the room protocols: creation, the idempotent
// join, the host-gated lifecycle transition and the scoring updates.
// All of its writes go through the store gateway and are confirmed to
// other clients (and to this one) only via the change feed.
type Controller struct {
	store  store.RoomStore
	trivia trivia.Source
	clock  clockwork.Clock
	random random.Random
	logger *slog.Logger
}

// NewController creates a new room Controller
func NewController(
	store store.RoomStore,
	trivia trivia.Source,
	clock clockwork.Clock,
	random random.Random,
	logger *slog.Logger,
) *Controller {
	return &Controller{
		store:  store,
		trivia: trivia,
		clock:  clock,
		random: random,
		logger: logger.With(slog.String("component", "room")),
	}
}

// CreateRoom creates a new waiting room with the given player as host.
// The host is the only player who may later start the round.
func (c *Controller) CreateRoom(ctx context.Context, host model.Player, name string, category int) (*model.Room, error) {
	now := c.clock.Now()
	host.Score = 0
	host.JoinedAt = now

	if name == "" {
		name = fmt.Sprintf("%s's Game", host.DisplayName)
	}
	if category <= 0 {
		category = model.DefaultCategory
	}

	// Generate an id not already in use
	var id model.RoomID
	for {
		id = model.RoomID(c.random.String(RoomIDLength, RoomIDAlphabet))
		_, err := c.store.GetRoom(ctx, id)
		if errors.Is(err, model.ErrRoomNotFound) {
			break
		}
		if err != nil {
			return nil, err
		}
	}

	room := &model.Room{
		ID:       id,
		Name:     name,
		HostID:   host.ID,
		Category: category,
		State:    model.RoomStateWaiting,
		Players: map[model.PlayerID]model.Player{
			host.ID: host,
		},
		Scores:    map[model.PlayerID]int{},
		CreatedAt: now,
	}

	if err := c.store.CreateRoom(ctx, room); err != nil {
		c.logger.Error("failed to create room",
			slog.String("room_id", string(id)),
			slog.String("error", err.Error()))
		return nil, err
	}

	c.logger.Info("room created",
		slog.String("room_id", string(id)),
		slog.String("host_id", string(host.ID)),
		slog.Int("category", category))

	return room, nil
}

// GetRoom retrieves a room snapshot by id
func (c *Controller) GetRoom(ctx context.Context, id model.RoomID) (*model.Room, error) {
	return c.store.GetRoom(ctx, id)
}

// ListRooms returns snapshots of all live rooms
func (c *Controller) ListRooms(ctx context.Context) ([]*model.Room, error) {
	return c.store.ListRooms(ctx)
}

// JoinRoom merges the player into the room's player set. Joining twice
// with the same id is a no-op, not an error: no write is issued when
// the player is already present, and a concurrent duplicate join is
// absorbed by the store's append-if-absent insert.
func (c *Controller) JoinRoom(ctx context.Context, id model.RoomID, player model.Player) (*model.Room, error) {
	room, err := c.store.GetRoom(ctx, id)
	if err != nil {
		return nil, err
	}

	if room.HasPlayer(player.ID) {
		c.logger.Debug("player already present, join is a no-op",
			slog.String("room_id", string(id)),
			slog.String("player_id", string(player.ID)))
		return room, nil
	}

	// The player set only grows while the room is waiting
	if room.State != model.RoomStateWaiting {
		return nil, model.ErrRoundAlreadyStarted
	}

	player.Score = 0
	player.JoinedAt = c.clock.Now()

	added, err := c.store.AddPlayer(ctx, id, player)
	if err != nil {
		c.logger.Error("failed to join room",
			slog.String("room_id", string(id)),
			slog.String("player_id", string(player.ID)),
			slog.String("error", err.Error()))
		return nil, err
	}
	if !added {
		c.logger.Debug("concurrent join for same player id absorbed",
			slog.String("room_id", string(id)),
			slog.String("player_id", string(player.ID)))
	}

	return c.store.GetRoom(ctx, id)
}

// StartRound transitions the room from waiting to in progress. Only the
// host may start; a non-host attempt changes nothing. Questions are
// fetched first, and a fetch failure leaves the room waiting rather
// than starting an empty round; an empty (but successful) result is
// allowed and yields a round that completes immediately.
func (c *Controller) StartRound(ctx context.Context, id model.RoomID, requester model.PlayerID) (*model.Room, error) {
	room, err := c.store.GetRoom(ctx, id)
	if err != nil {
		return nil, err
	}

	if room.HostID != requester {
		c.logger.Warn("non-host attempted to start round",
			slog.String("room_id", string(id)),
			slog.String("player_id", string(requester)))
		return nil, model.ErrNotHost
	}
	if room.State != model.RoomStateWaiting {
		return nil, model.ErrRoundAlreadyStarted
	}

	questions, err := c.trivia.FetchQuestions(ctx, room.Category, model.DefaultQuestionCount, model.DefaultDifficulty)
	if err != nil {
		c.logger.Error("failed to fetch questions, round not started",
			slog.String("room_id", string(id)),
			slog.String("error", err.Error()))
		return nil, err
	}

	deadline := c.clock.Now().Add(model.QuestionDuration)
	if err := c.store.StartRound(ctx, id, questions, deadline); err != nil {
		c.logger.Error("failed to start round",
			slog.String("room_id", string(id)),
			slog.String("error", err.Error()))
		return nil, err
	}

	c.logger.Info("round started",
		slog.String("room_id", string(id)),
		slog.Int("questions", len(questions)))

	return c.store.GetRoom(ctx, id)
}

// SubmitAnswer evaluates the player's answer to the given question and,
// when correct and still current, applies the score update as a per-key
// atomic increment. A stale submission (the shared index has already
// moved on) is evaluated for the reveal but never scored.
func (c *Controller) SubmitAnswer(ctx context.Context, id model.RoomID, player model.PlayerID, questionIndex int, answer string) (AnswerResult, error) {
	room, err := c.store.GetRoom(ctx, id)
	if err != nil {
		return AnswerResult{}, err
	}

	if room.State == model.RoomStateWaiting {
		return AnswerResult{}, model.ErrRoundNotStarted
	}
	if questionIndex < 0 || questionIndex >= len(room.Questions) {
		return AnswerResult{}, fmt.Errorf("question index %d out of range", questionIndex)
	}

	question := room.Questions[questionIndex]
	result := AnswerResult{
		Correct:       question.IsCorrect(answer),
		CorrectAnswer: question.CorrectAnswer,
		NewScore:      room.Scores[player],
	}

	if room.State != model.RoomStateInProgress || questionIndex != room.CurrentQuestion {
		c.logger.Info("stale answer ignored for scoring",
			slog.String("room_id", string(id)),
			slog.String("player_id", string(player)),
			slog.Int("question", questionIndex),
			slog.Int("current", room.CurrentQuestion))
		return result, nil
	}

	if result.Correct {
		newScore, err := c.store.IncrementScore(ctx, id, player, model.ScoreIncrement)
		if err != nil {
			c.logger.Error("failed to record score",
				slog.String("room_id", string(id)),
				slog.String("player_id", string(player)),
				slog.String("error", err.Error()))
			return AnswerResult{}, err
		}
		result.NewScore = newScore
	}

	return result, nil
}

// Advance attempts the shared compare-and-set move from fromIndex to
// the next question (or to completion after the last one). Every client
// whose countdown or reveal expires calls this; exactly one write wins
// per index and the rest observe the result through the feed.
func (c *Controller) Advance(ctx context.Context, id model.RoomID, fromIndex int) (bool, error) {
	deadline := c.clock.Now().Add(model.QuestionDuration)
	advanced, err := c.store.AdvanceQuestion(ctx, id, fromIndex, deadline)
	if err != nil {
		c.logger.Error("failed to advance question",
			slog.String("room_id", string(id)),
			slog.Int("from", fromIndex),
			slog.String("error", err.Error()))
		return false, err
	}
	if advanced {
		c.logger.Debug("advanced question",
			slog.String("room_id", string(id)),
			slog.Int("from", fromIndex))
	}
	return advanced, nil
}

// Subscribe attaches a change-feed callback for the room
func (c *Controller) Subscribe(ctx context.Context, id model.RoomID, fn func(*model.Room)) (func(), error) {
	return c.store.Subscribe(ctx, id, fn)
}
