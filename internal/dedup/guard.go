// Package dedup guards against the same Telegram message being processed
// twice when the webhook is redelivered.
package dedup

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "bonus:delivery:"

type Guard struct {
	client redis.Cmdable
	ttl    time.Duration
}

func New(client redis.Cmdable, ttl time.Duration) *Guard {
	return &Guard{client: client, ttl: ttl}
}

func Key(chatID int64, messageID int) string {
	return fmt.Sprintf("%s%d:%d", keyPrefix, chatID, messageID)
}

// Claim marks the message as being processed. It returns false when another
// delivery already claimed it within the TTL.
func (g *Guard) Claim(ctx context.Context, chatID int64, messageID int) (bool, error) {
	ok, err := g.client.SetNX(ctx, Key(chatID, messageID), 1, g.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to claim delivery: %w", err)
	}
	return ok, nil
}

// Release drops a claim so a later delivery can retry the message.
func (g *Guard) Release(ctx context.Context, chatID int64, messageID int) error {
	if err := g.client.Del(ctx, Key(chatID, messageID)).Err(); err != nil {
		return fmt.Errorf("failed to release delivery: %w", err)
	}
	return nil
}

func Connect(ctx context.Context, opts *redis.Options) (*redis.Client, error) {
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", opts.Addr, err)
	}
	return client, nil
}
