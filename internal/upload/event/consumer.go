package event

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/caiocltm/JSExpert-Drive/internal/upload/entity"
)

// Target is where queued progress messages are finally delivered.
type Target interface {
	Publish(ctx context.Context, sessionID string, event entity.ProgressEvent) error
}

type ConsumerConfig struct {
	MaxRetries     int
	BaseBackoff    time.Duration
	DeliverTimeout time.Duration
}

// Dispatcher drains the bus with one worker per shard and delivers every
// message to the target, retrying failed deliveries with exponential
// backoff.
type Dispatcher struct {
	bus            *Bus
	target         Target
	maxRetries     int
	baseBackoff    time.Duration
	deliverTimeout time.Duration
	stop           chan struct{}
	stopOnce       sync.Once
	wg             sync.WaitGroup
}

func NewDispatcher(bus *Bus, target Target, cfg ConsumerConfig) *Dispatcher {
	maxRetries := cfg.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}

	baseBackoff := cfg.BaseBackoff
	if baseBackoff <= 0 {
		baseBackoff = 100 * time.Millisecond
	}

	deliverTimeout := cfg.DeliverTimeout
	if deliverTimeout <= 0 {
		deliverTimeout = 5 * time.Second
	}

	return &Dispatcher{
		bus:            bus,
		target:         target,
		maxRetries:     maxRetries,
		baseBackoff:    baseBackoff,
		deliverTimeout: deliverTimeout,
		stop:           make(chan struct{}),
	}
}

func (d *Dispatcher) Start() {
	for i := 0; i < d.bus.Shards(); i++ {
		d.wg.Add(1)
		go d.worker(i)
	}
}

// Stop closes the bus and waits for queued messages to be delivered. When
// ctx ends first, pending retries are abandoned.
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.bus.Close()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		d.stopOnce.Do(func() { close(d.stop) })
		return ctx.Err()
	}
}

func (d *Dispatcher) worker(shard int) {
	defer d.wg.Done()

	for msg := range d.bus.Subscribe(shard) {
		d.deliver(msg)
	}
}

func (d *Dispatcher) deliver(msg entity.ProgressMessage) {
	if d.target == nil {
		return
	}

	backoff := d.baseBackoff
	for attempt := 0; attempt <= d.maxRetries; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), d.deliverTimeout)
		err := d.target.Publish(ctx, msg.SessionID, msg.Event)
		cancel()
		if err == nil {
			return
		}

		if errors.Is(err, ErrDropped) {
			slog.Warn("upload progress dropped by target",
				"session_id", msg.SessionID,
				"filename", msg.Event.Filename,
				"processed", msg.Event.ProcessedAlready,
				"error", err,
			)
			return
		}

		if attempt == d.maxRetries {
			slog.Error("failed to deliver upload progress after retries",
				"session_id", msg.SessionID,
				"filename", msg.Event.Filename,
				"processed", msg.Event.ProcessedAlready,
				"error", err,
			)
			return
		}

		if !d.sleepBackoff(backoff) {
			return
		}
		backoff *= 2
	}
}

func (d *Dispatcher) sleepBackoff(wait time.Duration) bool {
	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case <-timer.C:
		return true
	case <-d.stop:
		return false
	}
}
