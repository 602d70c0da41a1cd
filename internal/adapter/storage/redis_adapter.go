package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rl1809/campus-market/internal/core/domain"
)

const (
	cartKeyPrefix     = "cart:"
	cartTTL           = 24 * time.Hour
	idempotencyKeyTTL = 24 * time.Hour
)

// RedisAdapter backs the session cart (one hash per buyer, line JSON per item)
// and the checkout idempotency keys. Carts expire with the session TTL,
// refreshed on every mutation.
type RedisAdapter struct {
	client *redis.Client
}

func NewRedisAdapter(client *redis.Client) *RedisAdapter {
	return &RedisAdapter{client: client}
}

func cartKey(userID string) string {
	return cartKeyPrefix + userID
}

func (r *RedisAdapter) GetLine(ctx context.Context, userID, itemID string) (*domain.CartLine, error) {
	data, err := r.client.HGet(ctx, cartKey(userID), itemID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read cart line: %w", err)
	}

	var line domain.CartLine
	if err := json.Unmarshal(data, &line); err != nil {
		return nil, fmt.Errorf("decode cart line: %w", err)
	}
	return &line, nil
}

func (r *RedisAdapter) PutLine(ctx context.Context, userID string, line domain.CartLine) error {
	data, err := json.Marshal(line)
	if err != nil {
		return fmt.Errorf("encode cart line: %w", err)
	}

	pipe := r.client.TxPipeline()
	pipe.HSet(ctx, cartKey(userID), line.ItemID, data)
	pipe.Expire(ctx, cartKey(userID), cartTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("write cart line: %w", err)
	}
	return nil
}

func (r *RedisAdapter) RemoveLine(ctx context.Context, userID, itemID string) (bool, error) {
	removed, err := r.client.HDel(ctx, cartKey(userID), itemID).Result()
	if err != nil {
		return false, fmt.Errorf("remove cart line: %w", err)
	}
	return removed > 0, nil
}

func (r *RedisAdapter) Lines(ctx context.Context, userID string) ([]domain.CartLine, error) {
	entries, err := r.client.HGetAll(ctx, cartKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("read cart: %w", err)
	}

	lines := make([]domain.CartLine, 0, len(entries))
	for _, data := range entries {
		var line domain.CartLine
		if err := json.Unmarshal([]byte(data), &line); err != nil {
			return nil, fmt.Errorf("decode cart line: %w", err)
		}
		lines = append(lines, line)
	}

	// Hash iteration order is arbitrary; present lines in add order.
	sort.Slice(lines, func(i, j int) bool {
		if lines[i].AddedAt.Equal(lines[j].AddedAt) {
			return lines[i].ItemID < lines[j].ItemID
		}
		return lines[i].AddedAt.Before(lines[j].AddedAt)
	})
	return lines, nil
}

func (r *RedisAdapter) Clear(ctx context.Context, userID string) error {
	if err := r.client.Del(ctx, cartKey(userID)).Err(); err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	return nil
}

func (r *RedisAdapter) SetIdempotency(ctx context.Context, key string) (bool, error) {
	ok, err := r.client.SetNX(ctx, key, 1, idempotencyKeyTTL).Result()
	if err != nil {
		return false, err
	}
	return ok, nil
}

func (r *RedisAdapter) ReleaseIdempotency(ctx context.Context, key string) error {
	return r.client.Del(ctx, key).Err()
}
