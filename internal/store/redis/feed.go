package redis

import (
	"context"
	"errors"
	"log/slog"

	"github.com/ddowsett/quizroom-go/internal/model"
)

// Subscribe registers a change-feed callback for one room.
//
// The feed is pub/sub notification plus re-read: every writer publishes
// the room id after a successful write, and each subscriber responds by
// fetching the current full document. A subscriber therefore observes
// its own feed in the order it reads the notifications; consecutive
// notifications may coalesce into one read of a later snapshot, which
// is fine because snapshots are always the full document.
func (s *Storage) Subscribe(ctx context.Context, id model.RoomID, fn func(*model.Room)) (func(), error) {
	pubsub := s.client.Subscribe(ctx, roomEventsChannel(id))

	// Confirm the subscription is active before reading the initial
	// snapshot, so no write between the two can be missed
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, storeErr(err)
	}

	initial, err := s.GetRoom(ctx, id)
	if err != nil {
		_ = pubsub.Close()
		return nil, err
	}

	logger := s.logger.With(slog.String("room_id", string(id)))

	go func() {
		fn(initial)
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-ch:
				if !ok {
					return
				}
				room, err := s.GetRoom(ctx, id)
				if err != nil {
					if errors.Is(err, model.ErrRoomNotFound) {
						logger.Info("room disappeared from change feed")
						return
					}
					logger.Warn("failed to read room after change notification",
						slog.String("error", err.Error()))
					continue
				}
				fn(room)
			}
		}
	}()

	cancel := func() {
		_ = pubsub.Close()
	}
	return cancel, nil
}
