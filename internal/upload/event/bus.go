package event

import (
	"context"
	"errors"
	"hash/fnv"
	"sync"

	"github.com/caiocltm/JSExpert-Drive/internal/upload/entity"
)

var (
	ErrBusClosed = errors.New("event bus is closed")
	ErrBusFull   = errors.New("event bus is full")

	// ErrDropped marks a delivery the target handled by discarding the
	// message for some receivers. Retrying would repeat it for the others.
	ErrDropped = errors.New("event dropped by target")
)

// Bus queues progress messages for asynchronous delivery. Messages of one
// session always land on the same shard, so a single worker per shard keeps
// them in order. Publish never blocks: uploads must not wait on observers.
type Bus struct {
	mu     sync.RWMutex
	closed bool
	shards []chan entity.ProgressMessage
}

func NewBus(buffer, shards int) *Bus {
	if buffer < 1 {
		buffer = 1
	}
	if shards < 1 {
		shards = 1
	}

	b := &Bus{shards: make([]chan entity.ProgressMessage, shards)}
	for i := range b.shards {
		b.shards[i] = make(chan entity.ProgressMessage, buffer)
	}
	return b
}

func (b *Bus) Publish(ctx context.Context, sessionID string, event entity.ProgressEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrBusClosed
	}

	select {
	case b.shards[b.shardOf(sessionID)] <- entity.ProgressMessage{SessionID: sessionID, Event: event}:
		return nil
	default:
		return ErrBusFull
	}
}

func (b *Bus) Shards() int {
	return len(b.shards)
}

func (b *Bus) Subscribe(shard int) <-chan entity.ProgressMessage {
	return b.shards[shard]
}

func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}

	b.closed = true
	for _, ch := range b.shards {
		close(ch)
	}
}

func (b *Bus) shardOf(sessionID string) int {
	if len(b.shards) == 1 {
		return 0
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(sessionID))
	return int(h.Sum32() % uint32(len(b.shards)))
}
