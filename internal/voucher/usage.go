package voucher

import (
	"context"
	"fmt"
	"time"

	"github.com/nipark/booking/internal/domain"
	pkgredis "github.com/nipark/booking/pkg/redis"
)

const (
	usageKeyPrefix = "voucher:usage:"
	usageKeyTTL    = 90 * 24 * time.Hour
)

// RedisUsageCounter enforces voucher usage caps with an atomic counter.
// The counter is seeded from the persisted used_count on first use, so
// restarts cannot reset it below what the data API already recorded.
type RedisUsageCounter struct {
	redis *pkgredis.Client
}

// NewRedisUsageCounter creates a counter backed by redis
func NewRedisUsageCounter(redis *pkgredis.Client) *RedisUsageCounter {
	return &RedisUsageCounter{redis: redis}
}

func usageKey(voucherID int64) string {
	return fmt.Sprintf("%s%d", usageKeyPrefix, voucherID)
}

// Reserve claims one redemption of v. Vouchers without a cap always
// succeed. For capped vouchers the counter is incremented first and
// rolled back if it went over, so two concurrent claims on the last
// slot cannot both win.
func (c *RedisUsageCounter) Reserve(ctx context.Context, v *domain.Voucher) error {
	if !v.HasUsageLimit() {
		return nil
	}

	key := usageKey(v.ID)

	// Seed from the persisted count; no-op when the key already exists
	if err := c.redis.Client().SetNX(ctx, key, v.UsedCount, usageKeyTTL).Err(); err != nil {
		return fmt.Errorf("failed to seed voucher usage counter: %w", err)
	}

	n, err := c.redis.Client().Incr(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("failed to reserve voucher usage: %w", err)
	}

	if n > int64(*v.UsageLimit) {
		if err := c.redis.Client().Decr(ctx, key).Err(); err != nil {
			return fmt.Errorf("failed to roll back voucher reservation: %w", err)
		}
		return domain.ErrVoucherExhausted
	}

	return nil
}

// Release returns a reservation taken by Reserve
func (c *RedisUsageCounter) Release(ctx context.Context, v *domain.Voucher) error {
	if !v.HasUsageLimit() {
		return nil
	}

	if err := c.redis.Client().Decr(ctx, usageKey(v.ID)).Err(); err != nil {
		return fmt.Errorf("failed to release voucher reservation: %w", err)
	}

	return nil
}
