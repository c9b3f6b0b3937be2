package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ddowsett/quizroom-go/internal/model"
	"github.com/ddowsett/quizroom-go/internal/store"
)

// casAttempts is how many times a WATCH transaction is retried when a
// concurrent writer invalidates it before the result is re-evaluated
const casAttempts = 3

// Storage is a Redis-backed implementation of the store interface.
//
// Each room is three keys: a core hash, a players hash (joins via
// HSETNX) and a scores hash (updates via HINCRBY). Lifecycle and
// question transitions are WATCH/MULTI compare-and-set transactions.
// After every successful write the writer publishes on the room's
// events channel; subscribers re-read the document and deliver the
// fresh snapshot, which is also how a writer learns its own write
// landed.
type Storage struct {
	client *redis.Client
	cfg    Config
	logger *slog.Logger
}

// New creates a new Redis storage instance
func New(cfg Config, logger *slog.Logger) (*Storage, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, err
	}

	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns

	client := redis.NewClient(opts)

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrStoreUnavailable, err)
	}

	return &Storage{
		client: client,
		cfg:    cfg,
		logger: logger.With(slog.String("component", "redis_store")),
	}, nil
}

// NewWithClient creates a Redis storage with an existing client (for testing)
func NewWithClient(client *redis.Client, cfg Config, logger *slog.Logger) *Storage {
	return &Storage{
		client: client,
		cfg:    cfg,
		logger: logger.With(slog.String("component", "redis_store")),
	}
}

// Close closes the Redis connection
func (s *Storage) Close() error {
	return s.client.Close()
}

// Ensure Storage implements the interface
var _ store.Store = (*Storage)(nil)

// storeErr maps low-level failures onto the store error taxonomy,
// leaving already-classified model errors untouched
func storeErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, model.ErrRoomNotFound),
		errors.Is(err, model.ErrRoundAlreadyStarted),
		errors.Is(err, model.ErrRoundNotStarted):
		return err
	default:
		return fmt.Errorf("%w: %v", model.ErrStoreUnavailable, err)
	}
}

// publish notifies the room's change feed. Publish failures are logged,
// not returned: the write itself has landed, and durability is only
// ever confirmed to callers via the feed anyway.
func (s *Storage) publish(ctx context.Context, id model.RoomID) {
	if err := s.client.Publish(ctx, roomEventsChannel(id), string(id)).Err(); err != nil {
		s.logger.Warn("failed to publish room change",
			slog.String("room_id", string(id)),
			slog.String("error", err.Error()))
	}
}

// Room operations

func (s *Storage) CreateRoom(ctx context.Context, room *model.Room) error {
	questions, err := json.Marshal(room.Questions)
	if err != nil {
		return err
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		key := roomKey(room.ID)
		pipe.HSet(ctx, key,
			fieldName, room.Name,
			fieldHost, string(room.HostID),
			fieldCategory, room.Category,
			fieldState, string(room.State),
			fieldQuestions, questions,
			fieldQuestionCount, len(room.Questions),
			fieldQuestion, room.CurrentQuestion,
			fieldDeadline, formatTime(room.Deadline),
			fieldCreatedAt, formatTime(room.CreatedAt),
		)
		for _, p := range room.Players {
			data, err := json.Marshal(p)
			if err != nil {
				return err
			}
			pipe.HSet(ctx, roomPlayersKey(room.ID), string(p.ID), data)
		}
		for p, v := range room.Scores {
			pipe.HSet(ctx, roomScoresKey(room.ID), string(p), v)
		}
		pipe.SAdd(ctx, roomIndexKey(), string(room.ID))
		pipe.Expire(ctx, key, s.cfg.RoomTTL)
		pipe.Expire(ctx, roomPlayersKey(room.ID), s.cfg.RoomTTL)
		pipe.Expire(ctx, roomScoresKey(room.ID), s.cfg.RoomTTL)
		return nil
	})
	if err != nil {
		return storeErr(err)
	}

	s.publish(ctx, room.ID)
	return nil
}

func (s *Storage) GetRoom(ctx context.Context, id model.RoomID) (*model.Room, error) {
	var core, players, scores *redis.MapStringStringCmd
	_, err := s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		core = pipe.HGetAll(ctx, roomKey(id))
		players = pipe.HGetAll(ctx, roomPlayersKey(id))
		scores = pipe.HGetAll(ctx, roomScoresKey(id))
		return nil
	})
	if err != nil {
		return nil, storeErr(err)
	}

	fields := core.Val()
	if len(fields) == 0 {
		return nil, model.ErrRoomNotFound
	}

	return assembleRoom(id, fields, players.Val(), scores.Val())
}

func (s *Storage) ListRooms(ctx context.Context) ([]*model.Room, error) {
	ids, err := s.client.SMembers(ctx, roomIndexKey()).Result()
	if err != nil {
		return nil, storeErr(err)
	}

	rooms := make([]*model.Room, 0, len(ids))
	for _, id := range ids {
		room, err := s.GetRoom(ctx, model.RoomID(id))
		if errors.Is(err, model.ErrRoomNotFound) {
			// Room keys expired; drop the stale index entry
			s.client.SRem(ctx, roomIndexKey(), id)
			continue
		}
		if err != nil {
			return nil, err
		}
		rooms = append(rooms, room)
	}

	sort.Slice(rooms, func(i, j int) bool {
		if rooms[i].CreatedAt.Equal(rooms[j].CreatedAt) {
			return rooms[i].ID < rooms[j].ID
		}
		return rooms[i].CreatedAt.Before(rooms[j].CreatedAt)
	})
	return rooms, nil
}

func (s *Storage) AddPlayer(ctx context.Context, id model.RoomID, player model.Player) (bool, error) {
	exists, err := s.client.Exists(ctx, roomKey(id)).Result()
	if err != nil {
		return false, storeErr(err)
	}
	if exists == 0 {
		return false, model.ErrRoomNotFound
	}

	data, err := json.Marshal(player)
	if err != nil {
		return false, err
	}

	// HSETNX is the append-if-absent that makes concurrent joins
	// set-union safe: the second writer for the same player id is a no-op
	added, err := s.client.HSetNX(ctx, roomPlayersKey(id), string(player.ID), data).Result()
	if err != nil {
		return false, storeErr(err)
	}
	if added {
		s.client.Expire(ctx, roomPlayersKey(id), s.cfg.RoomTTL)
		s.publish(ctx, id)
	}
	return added, nil
}

func (s *Storage) StartRound(ctx context.Context, id model.RoomID, questions []model.Question, deadline time.Time) error {
	data, err := json.Marshal(questions)
	if err != nil {
		return err
	}

	key := roomKey(id)
	txn := func(tx *redis.Tx) error {
		state, err := tx.HGet(ctx, key, fieldState).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return model.ErrRoomNotFound
			}
			return err
		}
		if model.RoomState(state) != model.RoomStateWaiting {
			return model.ErrRoundAlreadyStarted
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key,
				fieldState, string(model.RoomStateInProgress),
				fieldQuestions, data,
				fieldQuestionCount, len(questions),
				fieldQuestion, 0,
				fieldDeadline, formatTime(deadline),
			)
			pipe.Del(ctx, roomScoresKey(id))
			return nil
		})
		return err
	}

	for i := 0; i < casAttempts; i++ {
		err = s.client.Watch(ctx, txn, key)
		if !errors.Is(err, redis.TxFailedErr) {
			break
		}
	}
	if err != nil {
		return storeErr(err)
	}

	s.publish(ctx, id)
	return nil
}

func (s *Storage) IncrementScore(ctx context.Context, id model.RoomID, player model.PlayerID, delta int) (int, error) {
	exists, err := s.client.Exists(ctx, roomKey(id)).Result()
	if err != nil {
		return 0, storeErr(err)
	}
	if exists == 0 {
		return 0, model.ErrRoomNotFound
	}

	// HINCRBY is atomic per field: two players (or two answers from one
	// player) incrementing concurrently can never lose an update
	val, err := s.client.HIncrBy(ctx, roomScoresKey(id), string(player), int64(delta)).Result()
	if err != nil {
		return 0, storeErr(err)
	}
	s.client.Expire(ctx, roomScoresKey(id), s.cfg.RoomTTL)

	s.publish(ctx, id)
	return int(val), nil
}

func (s *Storage) SetScores(ctx context.Context, id model.RoomID, scores map[model.PlayerID]int) error {
	exists, err := s.client.Exists(ctx, roomKey(id)).Result()
	if err != nil {
		return storeErr(err)
	}
	if exists == 0 {
		return model.ErrRoomNotFound
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, roomScoresKey(id))
		for p, v := range scores {
			pipe.HSet(ctx, roomScoresKey(id), string(p), v)
		}
		pipe.Expire(ctx, roomScoresKey(id), s.cfg.RoomTTL)
		return nil
	})
	if err != nil {
		return storeErr(err)
	}

	s.publish(ctx, id)
	return nil
}

func (s *Storage) AdvanceQuestion(ctx context.Context, id model.RoomID, fromIndex int, nextDeadline time.Time) (bool, error) {
	key := roomKey(id)
	advanced := false

	txn := func(tx *redis.Tx) error {
		advanced = false

		vals, err := tx.HMGet(ctx, key, fieldState, fieldQuestion, fieldQuestionCount).Result()
		if err != nil {
			return err
		}
		if vals[0] == nil {
			return model.ErrRoomNotFound
		}

		state := model.RoomState(vals[0].(string))
		if state == model.RoomStateWaiting {
			return model.ErrRoundNotStarted
		}
		if state != model.RoomStateInProgress {
			return nil
		}

		current, count := 0, 0
		if vals[1] != nil {
			current, _ = strconv.Atoi(vals[1].(string))
		}
		if vals[2] != nil {
			count, _ = strconv.Atoi(vals[2].(string))
		}
		if current != fromIndex {
			return nil
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if fromIndex+1 >= count {
				pipe.HSet(ctx, key, fieldState, string(model.RoomStateCompleted))
			} else {
				pipe.HSet(ctx, key,
					fieldQuestion, fromIndex+1,
					fieldDeadline, formatTime(nextDeadline),
				)
			}
			return nil
		})
		if err != nil {
			return err
		}
		advanced = true
		return nil
	}

	var err error
	for i := 0; i < casAttempts; i++ {
		err = s.client.Watch(ctx, txn, key)
		if !errors.Is(err, redis.TxFailedErr) {
			break
		}
	}
	if err != nil {
		return false, storeErr(err)
	}

	if advanced {
		s.publish(ctx, id)
	}
	return advanced, nil
}

// Serialization helpers

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func assembleRoom(id model.RoomID, core, players, scores map[string]string) (*model.Room, error) {
	room := &model.Room{
		ID:        id,
		Name:      core[fieldName],
		HostID:    model.PlayerID(core[fieldHost]),
		State:     model.RoomState(core[fieldState]),
		Deadline:  parseTime(core[fieldDeadline]),
		CreatedAt: parseTime(core[fieldCreatedAt]),
		Players:   make(map[model.PlayerID]model.Player, len(players)),
		Scores:    make(map[model.PlayerID]int, len(scores)),
	}
	room.Category, _ = strconv.Atoi(core[fieldCategory])
	room.CurrentQuestion, _ = strconv.Atoi(core[fieldQuestion])

	if data := core[fieldQuestions]; data != "" {
		if err := json.Unmarshal([]byte(data), &room.Questions); err != nil {
			return nil, err
		}
	}

	for pid, data := range players {
		var p model.Player
		if err := json.Unmarshal([]byte(data), &p); err != nil {
			return nil, err
		}
		room.Players[model.PlayerID(pid)] = p
	}

	for pid, raw := range scores {
		v, err := strconv.Atoi(raw)
		if err != nil {
			continue
		}
		room.Scores[model.PlayerID(pid)] = v
	}

	return room, nil
}
