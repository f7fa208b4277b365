package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/caiocltm/JSExpert-Drive/internal/upload/entity"
)

// DefaultChannelPrefix prefixes the redis channel of every session.
const DefaultChannelPrefix = "upload:progress:"

// Target receives relayed progress events, typically a Hub.
type Target interface {
	Publish(ctx context.Context, sessionID string, event entity.ProgressEvent) error
}

type redisPublisher interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
}

// RedisPublisher publishes progress events on the redis channel of their
// session.
type RedisPublisher struct {
	client redisPublisher
	prefix string
}

func NewRedisPublisher(client redis.UniversalClient, prefix string) *RedisPublisher {
	return newRedisPublisher(client, prefix)
}

func newRedisPublisher(client redisPublisher, prefix string) *RedisPublisher {
	if prefix == "" {
		prefix = DefaultChannelPrefix
	}
	return &RedisPublisher{client: client, prefix: prefix}
}

func (p *RedisPublisher) Publish(ctx context.Context, sessionID string, event entity.ProgressEvent) error {
	payload, err := json.Marshal(entity.ProgressMessage{SessionID: sessionID, Event: event})
	if err != nil {
		return err
	}
	return p.client.Publish(ctx, p.prefix+sessionID, payload).Err()
}

// RedisRelay forwards every progress event published on redis, by any
// instance, to the local target.
type RedisRelay struct {
	client redis.UniversalClient
	prefix string
	target Target
}

func NewRedisRelay(client redis.UniversalClient, prefix string, target Target) *RedisRelay {
	if prefix == "" {
		prefix = DefaultChannelPrefix
	}
	return &RedisRelay{client: client, prefix: prefix, target: target}
}

// Run subscribes to every session channel and relays until ctx is done.
func (r *RedisRelay) Run(ctx context.Context) error {
	pubsub := r.client.PSubscribe(ctx, r.prefix+"*")
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s*: %w", r.prefix, err)
	}
	slog.InfoContext(ctx, "relaying upload progress from redis", "pattern", r.prefix+"*")

	ch := pubsub.Channel()
	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			r.handle(ctx, msg)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (r *RedisRelay) handle(ctx context.Context, msg *redis.Message) {
	if msg == nil {
		return
	}

	var pm entity.ProgressMessage
	if err := json.Unmarshal([]byte(msg.Payload), &pm); err != nil {
		slog.WarnContext(ctx, "invalid progress message on redis", "channel", msg.Channel, "error", err)
		return
	}

	sessionID := strings.TrimPrefix(msg.Channel, r.prefix)
	if sessionID == "" || sessionID == msg.Channel {
		sessionID = pm.SessionID
	}
	if sessionID == "" {
		return
	}

	if err := r.target.Publish(ctx, sessionID, pm.Event); err != nil && !errors.Is(err, ErrSlowClient) {
		slog.WarnContext(ctx, "failed to relay upload progress", "session_id", sessionID, "error", err)
	}
}
