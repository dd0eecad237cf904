package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/competency-engine/internal/logger"
)

// InvalidationMessage announces that authoring changed a criteria tree.
// Every engine process that receives it drops its cached copy.
type InvalidationMessage struct {
	CompetencyTagID uuid.UUID `json:"competency_tag_id"`
	CourseID        *string   `json:"course_id,omitempty"`
	All             bool      `json:"all,omitempty"`
}

type InvalidationBus interface {
	Publish(ctx context.Context, msg InvalidationMessage) error
	StartForwarder(ctx context.Context, onMsg func(m InvalidationMessage)) error
	Close() error
}

type invalidationBus struct {
	log     *logger.Logger
	rdb     *goredis.Client
	channel string
}

func NewInvalidationBus(log *logger.Logger) (InvalidationBus, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}

	addr := strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	if addr == "" {
		return nil, fmt.Errorf("missing REDIS_ADDR")
	}
	ch := strings.TrimSpace(os.Getenv("REDIS_CHANNEL"))
	if ch == "" {
		ch = "criteria-invalidation"
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

	return &invalidationBus{
		log:     log.With("client", "RedisInvalidationBus"),
		rdb:     rdb,
		channel: ch,
	}, nil
}

func (b *invalidationBus) Publish(ctx context.Context, msg InvalidationMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal invalidation message: %w", err)
	}
	return b.rdb.Publish(ctx, b.channel, payload).Err()
}

func (b *invalidationBus) StartForwarder(ctx context.Context, onMsg func(m InvalidationMessage)) error {
	sub := b.rdb.Subscribe(ctx, b.channel)
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
				if !ok {
					return
				}
				var msg InvalidationMessage
				if err := json.Unmarshal([]byte(m.Payload), &msg); err != nil {
					b.log.Warn("Dropping malformed invalidation message", "error", err)
					continue
				}
				onMsg(msg)
			}
		}
	}()
	b.log.Info("Invalidation forwarder started", "channel", b.channel)
	return nil
}

func (b *invalidationBus) Close() error {
	return b.rdb.Close()
}
