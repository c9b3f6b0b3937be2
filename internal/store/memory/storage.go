package memory

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/ddowsett/quizroom-go/internal/model"
	"github.com/ddowsett/quizroom-go/internal/store"
)

// Storage is an in-process implementation of the store interface. It is
// used in tests and for single-machine play; the change feed is a
// per-room fanout of cloned snapshots.
type Storage struct {
	mu sync.RWMutex

	rooms       map[model.RoomID]*model.Room
	leaderboard map[model.PlayerID]*model.LeaderboardEntry
	subscribers map[model.RoomID]map[*subscriber]bool

	logger *slog.Logger
}

// New creates a new in-memory storage instance
func New(logger *slog.Logger) *Storage {
	return &Storage{
		rooms:       make(map[model.RoomID]*model.Room),
		leaderboard: make(map[model.PlayerID]*model.LeaderboardEntry),
		subscribers: make(map[model.RoomID]map[*subscriber]bool),
		logger:      logger.With(slog.String("component", "memory_store")),
	}
}

// Ensure Storage implements the interface
var _ store.Store = (*Storage)(nil)

// Room operations

func (s *Storage) CreateRoom(ctx context.Context, room *model.Room) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rooms[room.ID] = room.Clone()
	s.notifyLocked(room.ID)
	return nil
}

func (s *Storage) GetRoom(ctx context.Context, id model.RoomID) (*model.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	room, ok := s.rooms[id]
	if !ok {
		return nil, model.ErrRoomNotFound
	}
	return room.Clone(), nil
}

func (s *Storage) ListRooms(ctx context.Context) ([]*model.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rooms := make([]*model.Room, 0, len(s.rooms))
	for _, room := range s.rooms {
		rooms = append(rooms, room.Clone())
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
	s.mu.Lock()
	defer s.mu.Unlock()

	room, ok := s.rooms[id]
	if !ok {
		return false, model.ErrRoomNotFound
	}
	if _, present := room.Players[player.ID]; present {
		return false, nil
	}

	room.Players[player.ID] = player
	s.notifyLocked(id)
	return true, nil
}

func (s *Storage) StartRound(ctx context.Context, id model.RoomID, questions []model.Question, deadline time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, ok := s.rooms[id]
	if !ok {
		return model.ErrRoomNotFound
	}
	if room.State != model.RoomStateWaiting {
		return model.ErrRoundAlreadyStarted
	}

	room.State = model.RoomStateInProgress
	room.Questions = questions
	room.Scores = make(map[model.PlayerID]int)
	room.CurrentQuestion = 0
	room.Deadline = deadline
	s.notifyLocked(id)
	return nil
}

func (s *Storage) IncrementScore(ctx context.Context, id model.RoomID, player model.PlayerID, delta int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, ok := s.rooms[id]
	if !ok {
		return 0, model.ErrRoomNotFound
	}
	if room.Scores == nil {
		room.Scores = make(map[model.PlayerID]int)
	}

	room.Scores[player] += delta
	s.notifyLocked(id)
	return room.Scores[player], nil
}

func (s *Storage) SetScores(ctx context.Context, id model.RoomID, scores map[model.PlayerID]int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, ok := s.rooms[id]
	if !ok {
		return model.ErrRoomNotFound
	}

	replacement := make(map[model.PlayerID]int, len(scores))
	for p, v := range scores {
		replacement[p] = v
	}
	room.Scores = replacement
	s.notifyLocked(id)
	return nil
}

func (s *Storage) AdvanceQuestion(ctx context.Context, id model.RoomID, fromIndex int, nextDeadline time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, ok := s.rooms[id]
	if !ok {
		return false, model.ErrRoomNotFound
	}
	if room.State == model.RoomStateWaiting {
		return false, model.ErrRoundNotStarted
	}
	// Lost the race: someone else already advanced or finished the round
	if room.State != model.RoomStateInProgress || room.CurrentQuestion != fromIndex {
		return false, nil
	}

	if fromIndex+1 >= len(room.Questions) {
		room.State = model.RoomStateCompleted
	} else {
		room.CurrentQuestion = fromIndex + 1
		room.Deadline = nextDeadline
	}
	s.notifyLocked(id)
	return true, nil
}

// Leaderboard operations

func (s *Storage) RecordResult(ctx context.Context, player model.PlayerID, displayName string, points int, category int, playedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.leaderboard[player]
	if !ok {
		entry = &model.LeaderboardEntry{PlayerID: player}
		s.leaderboard[player] = entry
	}
	entry.DisplayName = displayName
	entry.Score += points
	entry.GamesPlayed++
	entry.FavoriteCategory = category
	entry.LastPlayed = playedAt
	return nil
}

func (s *Storage) TopPlayers(ctx context.Context, n int) ([]model.LeaderboardEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := make([]model.LeaderboardEntry, 0, len(s.leaderboard))
	for _, e := range s.leaderboard {
		entries = append(entries, *e)
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Score == entries[j].Score {
			return entries[i].PlayerID < entries[j].PlayerID
		}
		return entries[i].Score > entries[j].Score
	})
	if n > 0 && len(entries) > n {
		entries = entries[:n]
	}
	return entries, nil
}
