package bus

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/agora-backend/internal/pkg/errors"
	"github.com/yungbote/agora-backend/internal/platform/logger"
	"github.com/yungbote/agora-backend/internal/realtime"
)

const defaultPrefix = "agora:sse"

// redisBus publishes each message on "<prefix>:<sse channel>" and forwards
// everything matching "<prefix>:*" into the local hub.
type redisBus struct {
	log    *logger.Logger
	rdb    *goredis.Client
	prefix string

	mu   sync.Mutex
	stop context.CancelFunc
}

// NewRedisBus returns a Bus over rdb. The client stays owned by the caller.
func NewRedisBus(log *logger.Logger, rdb *goredis.Client, prefix string) (Bus, error) {
	if log == nil || rdb == nil {
		return nil, errors.New("redis bus: logger and client required")
	}
	prefix = strings.TrimRight(strings.TrimSpace(prefix), ":")
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &redisBus{log: log.With("component", "RedisSSEBus"), rdb: rdb, prefix: prefix}, nil
}

func (b *redisBus) topic(channel string) string { return b.prefix + ":" + channel }

func (b *redisBus) Publish(ctx context.Context, msg realtime.SSEMessage) error {
	if strings.TrimSpace(msg.Channel) == "" {
		return errors.New("redis bus: message has no channel")
	}
	raw, err := json.Marshal(msg)
	if err != nil {
		return errors.Wrap(err, "encode sse message")
	}
	return b.rdb.Publish(ctx, b.topic(msg.Channel), raw).Err()
}

func (b *redisBus) StartForwarder(ctx context.Context, onMsg func(m realtime.SSEMessage)) error {
	if onMsg == nil {
		return errors.New("redis bus: onMsg required")
	}
	ctx, cancel := context.WithCancel(ctx)
	sub := b.rdb.PSubscribe(ctx, b.topic("*"))
	if _, err := sub.Receive(ctx); err != nil {
		cancel()
		_ = sub.Close()
		return errors.Wrap(err, "redis psubscribe")
	}

	b.mu.Lock()
	if b.stop != nil {
		b.stop()
	}
	b.stop = cancel
	b.mu.Unlock()

	go b.forward(ctx, sub, onMsg)
	return nil
}

func (b *redisBus) forward(ctx context.Context, sub *goredis.PubSub, onMsg func(m realtime.SSEMessage)) {
	defer sub.Close()
	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case m, ok := <-ch:
			if !ok {
				return
			}
			var msg realtime.SSEMessage
			if err := json.Unmarshal([]byte(m.Payload), &msg); err != nil {
				b.log.Warn("dropping undecodable sse payload", "topic", m.Channel, "error", err)
				continue
			}
			if msg.Channel == "" {
				msg.Channel = strings.TrimPrefix(m.Channel, b.prefix+":")
			}
			onMsg(msg)
		}
	}
}

// Close stops the forwarder, if one is running.
func (b *redisBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.stop != nil {
		b.stop()
		b.stop = nil
	}
	return nil
}
