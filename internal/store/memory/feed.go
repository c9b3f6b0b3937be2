package memory

import (
	"context"
	"log/slog"
	"sync"

	"github.com/ddowsett/quizroom-go/internal/model"
)

// subscriberBuffer is the number of pending snapshots a slow subscriber
// may fall behind before deliveries are dropped
const subscriberBuffer = 64

// subscriber is one registered change-feed callback. Snapshots are
// queued on a buffered channel and delivered by a dedicated goroutine,
// so each subscriber observes writes in applied order without ever
// running its callback under the storage lock.
type subscriber struct {
	roomID model.RoomID
	ch     chan *model.Room
	done   chan struct{}
	once   sync.Once
}

func (sub *subscriber) close() {
	sub.once.Do(func() { close(sub.done) })
}

// Subscribe registers a change-feed callback for one room. The current
// snapshot is queued immediately so new subscribers start from the
// latest state, mirroring the document store's snapshot-on-subscribe
// behavior.
func (s *Storage) Subscribe(ctx context.Context, id model.RoomID, fn func(*model.Room)) (func(), error) {
	s.mu.Lock()

	room, ok := s.rooms[id]
	if !ok {
		s.mu.Unlock()
		return nil, model.ErrRoomNotFound
	}

	sub := &subscriber{
		roomID: id,
		ch:     make(chan *model.Room, subscriberBuffer),
		done:   make(chan struct{}),
	}
	if s.subscribers[id] == nil {
		s.subscribers[id] = make(map[*subscriber]bool)
	}
	s.subscribers[id][sub] = true
	sub.ch <- room.Clone()
	s.mu.Unlock()

	go func() {
		for {
			select {
			case snapshot := <-sub.ch:
				fn(snapshot)
			case <-sub.done:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	cancel := func() {
		sub.close()
		s.mu.Lock()
		delete(s.subscribers[id], sub)
		s.mu.Unlock()
	}
	return cancel, nil
}

// notifyLocked queues the room's current snapshot for every subscriber.
// Callers must hold the write lock, which is what guarantees snapshots
// are queued in the order writes were applied.
func (s *Storage) notifyLocked(id model.RoomID) {
	subs := s.subscribers[id]
	if len(subs) == 0 {
		return
	}

	room, ok := s.rooms[id]
	if !ok {
		return
	}
	snapshot := room.Clone()

	for sub := range subs {
		select {
		case sub.ch <- snapshot:
		default:
			s.logger.Warn("change feed snapshot dropped - subscriber buffer full",
				slog.String("room_id", string(id)))
		}
	}
}
