package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"upbitwatch/internal/upbit/model"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const redisTimeout = 2 * time.Second

// Redis keeps price:<symbol> set to the latest PriceUpdate and publishes it on prices.<symbol>.
type Redis struct {
	rdb    redis.Cmdable
	ttl    time.Duration
	logger *zap.Logger
}

func NewRedis(rdb redis.Cmdable, ttl time.Duration, logger *zap.Logger) *Redis {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Redis{rdb: rdb, ttl: ttl, logger: logger}
}

func PriceKey(symbol model.Symbol) string     { return "price:" + string(symbol) }
func PriceChannel(symbol model.Symbol) string { return "prices." + string(symbol) }

// OnUpdate is an eventbus handler. All writes of one cycle go out in a single pipeline.
func (r *Redis) OnUpdate(ev model.UpdateEvent) error {
	if len(ev.Deltas) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), redisTimeout)
	defer cancel()

	pipe := r.rdb.Pipeline()
	for _, u := range priceUpdates(ev) {
		payload, err := json.Marshal(u)
		if err != nil {
			return fmt.Errorf("encode %s: %w", u.Symbol, err)
		}
		pipe.Set(ctx, PriceKey(u.Symbol), payload, r.ttl)
		pipe.Publish(ctx, PriceChannel(u.Symbol), payload)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis pipeline at cycle %d: %w", ev.Cycle, err)
	}
	r.logger.Debug("redis updated", zap.Uint64("cycle", ev.Cycle), zap.Int("markets", len(ev.Deltas)))
	return nil
}
