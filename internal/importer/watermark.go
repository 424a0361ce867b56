// FilePath: internal/importer/watermark.go
package importer

import (
	"context"
	"fmt"
	"strconv"

	"github.com/aircast/hub/internal/config"
	"github.com/redis/go-redis/v9"
)

// WatermarkStore remembers the newest last-seen epoch the importer has
// already ingested. The core does not deduplicate re-delivered readings,
// so filtering by this watermark before invoking the coordinator is the
// importer's responsibility.
type WatermarkStore interface {
	Get(ctx context.Context) (int64, error)
	Set(ctx context.Context, lastSeen int64) error
}

const watermarkKey = "importer:last_seen"

type redisWatermark struct {
	client *redis.Client
}

// NewRedisWatermark creates a Redis-backed watermark store.
func NewRedisWatermark(cfg config.RedisConfig) WatermarkStore {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return &redisWatermark{client: client}
}

func (w *redisWatermark) Get(ctx context.Context) (int64, error) {
	val, err := w.client.Get(ctx, watermarkKey).Result()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(val, 10, 64)
}

func (w *redisWatermark) Set(ctx context.Context, lastSeen int64) error {
	return w.client.Set(ctx, watermarkKey, strconv.FormatInt(lastSeen, 10), 0).Err()
}
