package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/ddowsett/quizroom-go/internal/model"
	"github.com/ddowsett/quizroom-go/internal/testutil"
)

type StorageSuite struct {
	suite.Suite
	storage *Storage
	ctx     context.Context
}

func TestStorageSuite(t *testing.T) {
	suite.Run(t, new(StorageSuite))
}

func (s *StorageSuite) SetupTest() {
	s.storage = New(testutil.NopLogger())
	s.ctx = context.Background()
}

func (s *StorageSuite) newRoom(id string, host string) *model.Room {
	return &model.Room{
		ID:     model.RoomID(id),
		Name:   "Test Room",
		HostID: model.PlayerID(host),
		State:  model.RoomStateWaiting,
		Players: map[model.PlayerID]model.Player{
			model.PlayerID(host): {ID: model.PlayerID(host), DisplayName: "Host"},
		},
		Scores:    map[model.PlayerID]int{},
		Category:  9,
		CreatedAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

func (s *StorageSuite) questions(n int) []model.Question {
	questions := make([]model.Question, n)
	for i := range questions {
		questions[i] = model.Question{
			Text:          "q",
			Options:       []string{"a", "b"},
			CorrectAnswer: "a",
		}
	}
	return questions
}

// Room tests

func (s *StorageSuite) TestCreateAndGetRoom() {
	room := s.newRoom("ROOM01", "host-1")
	s.Require().NoError(s.storage.CreateRoom(s.ctx, room))

	got, err := s.storage.GetRoom(s.ctx, "ROOM01")
	s.Require().NoError(err)
	s.Equal(model.RoomID("ROOM01"), got.ID)
	s.Equal(model.PlayerID("host-1"), got.HostID)
	s.Equal(model.RoomStateWaiting, got.State)
	s.Len(got.Players, 1)
}

func (s *StorageSuite) TestGetRoomNotFound() {
	_, err := s.storage.GetRoom(s.ctx, "NOPE")
	s.ErrorIs(err, model.ErrRoomNotFound)
}

func (s *StorageSuite) TestSnapshotsAreIsolated() {
	room := s.newRoom("ROOM01", "host-1")
	s.Require().NoError(s.storage.CreateRoom(s.ctx, room))

	got, err := s.storage.GetRoom(s.ctx, "ROOM01")
	s.Require().NoError(err)
	got.Players["intruder"] = model.Player{ID: "intruder"}
	got.Scores["intruder"] = 999

	again, err := s.storage.GetRoom(s.ctx, "ROOM01")
	s.Require().NoError(err)
	s.Len(again.Players, 1)
	s.Empty(again.Scores)
}

func (s *StorageSuite) TestListRoomsOrderedByCreation() {
	older := s.newRoom("OLDER1", "h1")
	newer := s.newRoom("NEWER1", "h2")
	newer.CreatedAt = older.CreatedAt.Add(time.Minute)
	s.Require().NoError(s.storage.CreateRoom(s.ctx, newer))
	s.Require().NoError(s.storage.CreateRoom(s.ctx, older))

	rooms, err := s.storage.ListRooms(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(rooms, 2)
	s.Equal(model.RoomID("OLDER1"), rooms[0].ID)
	s.Equal(model.RoomID("NEWER1"), rooms[1].ID)
}

// Join tests

func (s *StorageSuite) TestAddPlayerIsAppendIfAbsent() {
	s.Require().NoError(s.storage.CreateRoom(s.ctx, s.newRoom("ROOM01", "host-1")))

	player := model.Player{ID: "p2", DisplayName: "Two"}
	added, err := s.storage.AddPlayer(s.ctx, "ROOM01", player)
	s.Require().NoError(err)
	s.True(added)

	added, err = s.storage.AddPlayer(s.ctx, "ROOM01", player)
	s.Require().NoError(err)
	s.False(added)

	room, err := s.storage.GetRoom(s.ctx, "ROOM01")
	s.Require().NoError(err)
	s.Len(room.Players, 2)
}

func (s *StorageSuite) TestAddPlayerConcurrentSameID() {
	s.Require().NoError(s.storage.CreateRoom(s.ctx, s.newRoom("ROOM01", "host-1")))

	const attempts = 16
	var wg sync.WaitGroup
	addedCount := make(chan bool, attempts)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			added, err := s.storage.AddPlayer(s.ctx, "ROOM01", model.Player{ID: "p2"})
			s.NoError(err)
			addedCount <- added
		}()
	}
	wg.Wait()
	close(addedCount)

	wins := 0
	for added := range addedCount {
		if added {
			wins++
		}
	}
	s.Equal(1, wins)

	room, err := s.storage.GetRoom(s.ctx, "ROOM01")
	s.Require().NoError(err)
	s.Len(room.Players, 2)
}

func (s *StorageSuite) TestAddPlayerRoomNotFound() {
	_, err := s.storage.AddPlayer(s.ctx, "NOPE", model.Player{ID: "p"})
	s.ErrorIs(err, model.ErrRoomNotFound)
}

// Lifecycle tests

func (s *StorageSuite) TestStartRoundTransitions() {
	s.Require().NoError(s.storage.CreateRoom(s.ctx, s.newRoom("ROOM01", "host-1")))

	deadline := time.Date(2025, 6, 1, 12, 0, 30, 0, time.UTC)
	s.Require().NoError(s.storage.StartRound(s.ctx, "ROOM01", s.questions(2), deadline))

	room, err := s.storage.GetRoom(s.ctx, "ROOM01")
	s.Require().NoError(err)
	s.Equal(model.RoomStateInProgress, room.State)
	s.Len(room.Questions, 2)
	s.Equal(0, room.CurrentQuestion)
	s.Equal(deadline, room.Deadline)
	s.Empty(room.Scores)
}

func (s *StorageSuite) TestStartRoundClearsScores() {
	s.Require().NoError(s.storage.CreateRoom(s.ctx, s.newRoom("ROOM01", "host-1")))
	s.Require().NoError(s.storage.SetScores(s.ctx, "ROOM01", map[model.PlayerID]int{"host-1": 30}))

	s.Require().NoError(s.storage.StartRound(s.ctx, "ROOM01", s.questions(1), time.Now()))

	room, err := s.storage.GetRoom(s.ctx, "ROOM01")
	s.Require().NoError(err)
	s.Empty(room.Scores)
}

func (s *StorageSuite) TestStartRoundOnlyOnce() {
	s.Require().NoError(s.storage.CreateRoom(s.ctx, s.newRoom("ROOM01", "host-1")))
	s.Require().NoError(s.storage.StartRound(s.ctx, "ROOM01", s.questions(2), time.Now()))

	err := s.storage.StartRound(s.ctx, "ROOM01", s.questions(3), time.Now())
	s.ErrorIs(err, model.ErrRoundAlreadyStarted)

	room, err := s.storage.GetRoom(s.ctx, "ROOM01")
	s.Require().NoError(err)
	s.Len(room.Questions, 2)
}

// Scoring tests

func (s *StorageSuite) TestIncrementScoreAccumulates() {
	s.Require().NoError(s.storage.CreateRoom(s.ctx, s.newRoom("ROOM01", "host-1")))
	s.Require().NoError(s.storage.StartRound(s.ctx, "ROOM01", s.questions(3), time.Now()))

	score, err := s.storage.IncrementScore(s.ctx, "ROOM01", "host-1", 10)
	s.Require().NoError(err)
	s.Equal(10, score)

	score, err = s.storage.IncrementScore(s.ctx, "ROOM01", "host-1", 10)
	s.Require().NoError(err)
	s.Equal(20, score)
}

func (s *StorageSuite) TestConcurrentIncrementsAllLand() {
	s.Require().NoError(s.storage.CreateRoom(s.ctx, s.newRoom("ROOM01", "host-1")))
	s.Require().NoError(s.storage.StartRound(s.ctx, "ROOM01", s.questions(3), time.Now()))

	const perPlayer = 20
	var wg sync.WaitGroup
	for _, player := range []model.PlayerID{"host-1", "p2"} {
		for i := 0; i < perPlayer; i++ {
			wg.Add(1)
			go func(p model.PlayerID) {
				defer wg.Done()
				_, err := s.storage.IncrementScore(s.ctx, "ROOM01", p, 10)
				s.NoError(err)
			}(player)
		}
	}
	wg.Wait()

	room, err := s.storage.GetRoom(s.ctx, "ROOM01")
	s.Require().NoError(err)
	s.Equal(perPlayer*10, room.Scores["host-1"])
	s.Equal(perPlayer*10, room.Scores["p2"])
}

// TestWholeMapWriteLosesConcurrentUpdate reproduces the lost-update
// defect: two clients each read the same stale score snapshot, bump
// their own key locally and write the whole map back. The second write
// silently discards the first client's increment.
func (s *StorageSuite) TestWholeMapWriteLosesConcurrentUpdate() {
	s.Require().NoError(s.storage.CreateRoom(s.ctx, s.newRoom("ROOM01", "host-1")))
	s.Require().NoError(s.storage.StartRound(s.ctx, "ROOM01", s.questions(1), time.Now()))

	// Both clients observe the same empty score map
	snapH, err := s.storage.GetRoom(s.ctx, "ROOM01")
	s.Require().NoError(err)
	snapP2, err := s.storage.GetRoom(s.ctx, "ROOM01")
	s.Require().NoError(err)

	snapH.Scores["host-1"] += 10
	s.Require().NoError(s.storage.SetScores(s.ctx, "ROOM01", snapH.Scores))

	snapP2.Scores["p2"] += 10
	s.Require().NoError(s.storage.SetScores(s.ctx, "ROOM01", snapP2.Scores))

	room, err := s.storage.GetRoom(s.ctx, "ROOM01")
	s.Require().NoError(err)
	s.Equal(10, room.Scores["p2"])
	// The host's increment is gone
	s.Equal(0, room.Scores["host-1"])
}

// TestAtomicIncrementKeepsConcurrentUpdate is the regression pair for
// the test above: the same interleaving through per-key increments
// loses nothing.
func (s *StorageSuite) TestAtomicIncrementKeepsConcurrentUpdate() {
	s.Require().NoError(s.storage.CreateRoom(s.ctx, s.newRoom("ROOM01", "host-1")))
	s.Require().NoError(s.storage.StartRound(s.ctx, "ROOM01", s.questions(1), time.Now()))

	_, err := s.storage.IncrementScore(s.ctx, "ROOM01", "host-1", 10)
	s.Require().NoError(err)
	_, err = s.storage.IncrementScore(s.ctx, "ROOM01", "p2", 10)
	s.Require().NoError(err)

	room, err := s.storage.GetRoom(s.ctx, "ROOM01")
	s.Require().NoError(err)
	s.Equal(10, room.Scores["host-1"])
	s.Equal(10, room.Scores["p2"])
}

// Progression tests

func (s *StorageSuite) TestAdvanceQuestionCAS() {
	s.Require().NoError(s.storage.CreateRoom(s.ctx, s.newRoom("ROOM01", "host-1")))
	s.Require().NoError(s.storage.StartRound(s.ctx, "ROOM01", s.questions(2), time.Now()))

	next := time.Date(2025, 6, 1, 12, 1, 0, 0, time.UTC)
	advanced, err := s.storage.AdvanceQuestion(s.ctx, "ROOM01", 0, next)
	s.Require().NoError(err)
	s.True(advanced)

	// A second client racing on the same index loses cleanly
	advanced, err = s.storage.AdvanceQuestion(s.ctx, "ROOM01", 0, next)
	s.Require().NoError(err)
	s.False(advanced)

	room, err := s.storage.GetRoom(s.ctx, "ROOM01")
	s.Require().NoError(err)
	s.Equal(1, room.CurrentQuestion)
	s.Equal(next, room.Deadline)
}

func (s *StorageSuite) TestAdvancePastLastQuestionCompletes() {
	s.Require().NoError(s.storage.CreateRoom(s.ctx, s.newRoom("ROOM01", "host-1")))
	s.Require().NoError(s.storage.StartRound(s.ctx, "ROOM01", s.questions(1), time.Now()))

	advanced, err := s.storage.AdvanceQuestion(s.ctx, "ROOM01", 0, time.Now())
	s.Require().NoError(err)
	s.True(advanced)

	room, err := s.storage.GetRoom(s.ctx, "ROOM01")
	s.Require().NoError(err)
	s.Equal(model.RoomStateCompleted, room.State)

	// Completed rooms never advance again
	advanced, err = s.storage.AdvanceQuestion(s.ctx, "ROOM01", 0, time.Now())
	s.Require().NoError(err)
	s.False(advanced)
}

func (s *StorageSuite) TestAdvanceBeforeStartFails() {
	s.Require().NoError(s.storage.CreateRoom(s.ctx, s.newRoom("ROOM01", "host-1")))

	_, err := s.storage.AdvanceQuestion(s.ctx, "ROOM01", 0, time.Now())
	s.ErrorIs(err, model.ErrRoundNotStarted)
}

// Change feed tests

func (s *StorageSuite) TestSubscribeDeliversInitialSnapshot() {
	s.Require().NoError(s.storage.CreateRoom(s.ctx, s.newRoom("ROOM01", "host-1")))

	snapshots := make(chan *model.Room, 16)
	cancel, err := s.storage.Subscribe(s.ctx, "ROOM01", func(r *model.Room) {
		snapshots <- r
	})
	s.Require().NoError(err)
	defer cancel()

	snap := s.waitSnapshot(snapshots)
	s.Equal(model.RoomID("ROOM01"), snap.ID)
}

func (s *StorageSuite) TestSubscribeObservesWritesInOrder() {
	s.Require().NoError(s.storage.CreateRoom(s.ctx, s.newRoom("ROOM01", "host-1")))
	s.Require().NoError(s.storage.StartRound(s.ctx, "ROOM01", s.questions(3), time.Now()))

	snapshots := make(chan *model.Room, 16)
	cancel, err := s.storage.Subscribe(s.ctx, "ROOM01", func(r *model.Room) {
		snapshots <- r
	})
	s.Require().NoError(err)
	defer cancel()

	s.waitSnapshot(snapshots) // initial

	for i := 0; i < 3; i++ {
		_, err := s.storage.IncrementScore(s.ctx, "ROOM01", "host-1", 10)
		s.Require().NoError(err)
	}

	// Observed scores are non-decreasing, one snapshot per write
	last := 0
	for i := 0; i < 3; i++ {
		snap := s.waitSnapshot(snapshots)
		s.GreaterOrEqual(snap.Scores["host-1"], last)
		last = snap.Scores["host-1"]
	}
	s.Equal(30, last)
}

func (s *StorageSuite) TestUnsubscribeStopsDelivery() {
	s.Require().NoError(s.storage.CreateRoom(s.ctx, s.newRoom("ROOM01", "host-1")))

	snapshots := make(chan *model.Room, 16)
	cancel, err := s.storage.Subscribe(s.ctx, "ROOM01", func(r *model.Room) {
		snapshots <- r
	})
	s.Require().NoError(err)

	s.waitSnapshot(snapshots) // initial
	cancel()

	_, err = s.storage.AddPlayer(s.ctx, "ROOM01", model.Player{ID: "p2"})
	s.Require().NoError(err)

	select {
	case <-snapshots:
		s.Fail("received snapshot after unsubscribe")
	case <-time.After(50 * time.Millisecond):
	}
}

func (s *StorageSuite) TestSubscribeUnknownRoom() {
	_, err := s.storage.Subscribe(s.ctx, "NOPE", func(*model.Room) {})
	s.ErrorIs(err, model.ErrRoomNotFound)
}

func (s *StorageSuite) waitSnapshot(snapshots chan *model.Room) *model.Room {
	select {
	case snap := <-snapshots:
		return snap
	case <-time.After(2 * time.Second):
		s.FailNow("timed out waiting for snapshot")
		return nil
	}
}

// Leaderboard tests

func (s *StorageSuite) TestRecordResultAccumulates() {
	playedAt := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s.Require().NoError(s.storage.RecordResult(s.ctx, "p1", "Alice", 30, 9, playedAt))
	s.Require().NoError(s.storage.RecordResult(s.ctx, "p1", "Alice", 20, 11, playedAt.Add(time.Hour)))

	entries, err := s.storage.TopPlayers(s.ctx, 10)
	s.Require().NoError(err)
	s.Require().Len(entries, 1)
	s.Equal(50, entries[0].Score)
	s.Equal(2, entries[0].GamesPlayed)
	s.Equal(11, entries[0].FavoriteCategory)
}

func (s *StorageSuite) TestTopPlayersOrderAndLimit() {
	now := time.Now()
	s.Require().NoError(s.storage.RecordResult(s.ctx, "p1", "Alice", 10, 9, now))
	s.Require().NoError(s.storage.RecordResult(s.ctx, "p2", "Bob", 30, 9, now))
	s.Require().NoError(s.storage.RecordResult(s.ctx, "p3", "Cara", 20, 9, now))

	entries, err := s.storage.TopPlayers(s.ctx, 2)
	s.Require().NoError(err)
	s.Require().Len(entries, 2)
	s.Equal(model.PlayerID("p2"), entries[0].PlayerID)
	s.Equal(model.PlayerID("p3"), entries[1].PlayerID)
}
