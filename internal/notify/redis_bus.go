package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/tahcohcat/pizzeria-ops/internal/logger"
)

// RedisBus publishes envelopes on a Redis channel so that every instance can
// relay them to its own websocket clients.
type RedisBus struct {
	log     *logger.Log
	rdb     *goredis.Client
	channel string
}

func NewRedisBus(addr, channel string) (*RedisBus, error) {
	if addr == "" {
		return nil, fmt.Errorf("missing redis address")
	}
	if channel == "" {
		channel = "pizzeria.events"
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &RedisBus{
		log:     logger.New().With("component", "redis_bus", "channel", channel),
		rdb:     rdb,
		channel: channel,
	}, nil
}

func (b *RedisBus) Notify(ctx context.Context, event string, data any) error {
	env, err := NewEnvelope(event, data)
	if err != nil {
		return fmt.Errorf("encode %s: %w", event, err)
	}
	raw, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return b.rdb.Publish(ctx, b.channel, raw).Err()
}

// StartForwarder subscribes to the channel and hands every envelope to onMsg
// until ctx is cancelled.
func (b *RedisBus) StartForwarder(ctx context.Context, onMsg func(Envelope)) error {
	if onMsg == nil {
		return fmt.Errorf("onMsg callback required")
	}

	sub := b.rdb.Subscribe(ctx, b.channel)

	// ensures subscription actually started
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("redis subscribe: %w", err)
	}

	go func() {
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-ch:
				if !ok || m == nil {
					return
				}
				var env Envelope
				if err := json.Unmarshal([]byte(m.Payload), &env); err != nil {
					b.log.Warn("bad redis payload", "error", err)
					continue
				}
				onMsg(env)
			}
		}
	}()

	return nil
}

func (b *RedisBus) Close() error {
	return b.rdb.Close()
}
