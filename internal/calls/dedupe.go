package calls

import (
	"context"
	"time"

	"call-bridge/pkg/utils"

	"github.com/redis/go-redis/v9"
)

// RecordingDedupeTTL bounds how long a RecordingSid is remembered.
const RecordingDedupeTTL = 24 * time.Hour

// RedisDeduper claims keys with SET NX so platform retries of the same
// recording callback write one engagement.
type RedisDeduper struct {
	Client redis.Cmdable
	Prefix string
	TTL    time.Duration
}

func NewRedisDeduper(client redis.Cmdable) *RedisDeduper {
	return &RedisDeduper{Client: client, Prefix: "callbridge:", TTL: RecordingDedupeTTL}
}

func (d *RedisDeduper) FirstSeen(ctx context.Context, key string) (bool, error) {
	ttl := d.TTL
	if ttl <= 0 {
		ttl = RecordingDedupeTTL
	}
	return utils.ClaimOnce(ctx, d.Client, d.Prefix+key, ttl)
}

func (d *RedisDeduper) Forget(ctx context.Context, key string) error {
	return utils.ReleaseClaim(ctx, d.Client, d.Prefix+key)
}
