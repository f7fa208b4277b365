package pipeline

import (
	"context"
	"iter"
	"log/slog"
	"time"

	"github.com/caiocltm/JSExpert-Drive/internal/pkg/pkgclock"
	"github.com/caiocltm/JSExpert-Drive/internal/upload/entity"
)

// Publisher delivers progress events to the observers of a session. Delivery
// is best effort: a failed publish never fails the upload.
type Publisher interface {
	Publish(ctx context.Context, sessionID string, event entity.ProgressEvent) error
}

// CounterOption tunes a Counter.
type CounterOption func(*Counter)

// WithFirstChunkReport makes the first non-empty chunk publish regardless of
// the interval.
func WithFirstChunkReport() CounterOption {
	return func(c *Counter) {
		c.reportFirst = true
	}
}

type throttleState struct {
	lastEmittedAt time.Time
	processed     int64
	reported      int64
	emitted       int
	seenData      bool
}

// Counter is a pass-through stage that counts the bytes flowing through it
// and publishes a progress event at most once per interval. A Counter
// belongs to a single file and must not be reused.
type Counter struct {
	filename    string
	sessionID   string
	interval    time.Duration
	reportFirst bool
	clock       pkgclock.Clock
	publisher   Publisher
	state       throttleState
}

// NewCounter starts the throttle window at the current clock reading.
func NewCounter(filename, sessionID string, interval time.Duration, clock pkgclock.Clock, publisher Publisher, opts ...CounterOption) *Counter {
	if clock == nil {
		clock = pkgclock.Real{}
	}
	if interval < 0 {
		interval = 0
	}

	c := &Counter{
		filename:  filename,
		sessionID: sessionID,
		interval:  interval,
		clock:     clock,
		publisher: publisher,
	}
	for _, opt := range opts {
		opt(c)
	}

	c.state.lastEmittedAt = clock.Now()
	return c
}

// Stream forwards every chunk of src unchanged. The chunk is handed
// downstream first and only counted once the consumer has returned, so a
// published count never covers bytes the consumer has not taken yet. Source
// errors are forwarded as-is and end the stream.
func (c *Counter) Stream(ctx context.Context, src iter.Seq2[[]byte, error]) iter.Seq2[[]byte, error] {
	return func(yield func([]byte, error) bool) {
		for chunk, err := range src {
			if err != nil {
				yield(nil, err)
				return
			}

			if !yield(chunk, nil) {
				return
			}

			c.observe(ctx, len(chunk))
		}
	}
}

// Flush publishes the final count when it has not been published yet.
func (c *Counter) Flush(ctx context.Context) {
	if !c.state.seenData || c.state.processed == c.state.reported {
		return
	}

	c.state.lastEmittedAt = c.clock.Now()
	c.emit(ctx)
}

// Processed returns the number of bytes that went through the stage.
func (c *Counter) Processed() int64 {
	return c.state.processed
}

// Emitted returns the number of events handed to the publisher.
func (c *Counter) Emitted() int {
	return c.state.emitted
}

func (c *Counter) observe(ctx context.Context, n int) {
	if n == 0 {
		return
	}

	first := !c.state.seenData
	c.state.seenData = true
	c.state.processed += int64(n)

	now := c.clock.Now()
	if !(first && c.reportFirst) && now.Sub(c.state.lastEmittedAt) < c.interval {
		return
	}

	c.state.lastEmittedAt = now
	c.emit(ctx)
}

func (c *Counter) emit(ctx context.Context) {
	event := entity.ProgressEvent{
		Filename:         c.filename,
		ProcessedAlready: c.state.processed,
	}
	c.state.reported = event.ProcessedAlready
	c.state.emitted++

	if c.publisher == nil {
		return
	}

	if err := c.publisher.Publish(ctx, c.sessionID, event); err != nil {
		slog.WarnContext(ctx, "failed to publish upload progress",
			"filename", c.filename,
			"processed", event.ProcessedAlready,
			"error", err,
		)
		return
	}

	slog.InfoContext(ctx, "file progress",
		"filename", c.filename,
		"processed", event.ProcessedAlready,
		"session_id", c.sessionID,
	)
}
