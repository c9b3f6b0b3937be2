package leaderboard

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ddowsett/quizroom-go/internal/model"
	"github.com/ddowsett/quizroom-go/internal/store/memory"
	"github.com/ddowsett/quizroom-go/internal/testutil"
)

func TestRecordResultStampsTime(t *testing.T) {
	storage := memory.New(testutil.NopLogger())
	clock := clockwork.NewFakeClockAt(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	service := New(storage, clock, testutil.NopLogger())
	ctx := context.Background()

	player := model.Player{ID: "p1", DisplayName: "Alice"}
	require.NoError(t, service.RecordResult(ctx, player, 30, 9))

	entries, err := service.TopPlayers(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, 30, entries[0].Score)
	assert.Equal(t, "Alice", entries[0].DisplayName)
	assert.True(t, entries[0].LastPlayed.Equal(clock.Now()))
}

func TestZeroPointRoundStillCounts(t *testing.T) {
	storage := memory.New(testutil.NopLogger())
	service := New(storage, clockwork.NewFakeClock(), testutil.NopLogger())
	ctx := context.Background()

	player := model.Player{ID: "p1", DisplayName: "Alice"}
	require.NoError(t, service.RecordResult(ctx, player, 10, 9))
	require.NoError(t, service.RecordResult(ctx, player, 0, 9))

	entries, err := service.TopPlayers(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, 10, entries[0].Score)
	assert.Equal(t, 2, entries[0].GamesPlayed)
}
