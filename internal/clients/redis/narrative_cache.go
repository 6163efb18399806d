package redis

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/helixmap/biograph-backend/internal/platform/logger"
)

// NarrativeCache keeps accepted rationale narratives in redis with a TTL so
// repeat clicks on the same edge or path skip the external generation call.
// It satisfies the rationale gate's Cache interface.
type NarrativeCache struct {
	log *logger.Logger
	rdb *goredis.Client
}

// NewNarrativeCache connects using REDIS_ADDR. A missing address is an error;
// callers that can run without a cache check for it and pass nil to the gate.
func NewNarrativeCache(log *logger.Logger) (*NarrativeCache, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}

	addr := strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	if addr == "" {
		return nil, fmt.Errorf("missing REDIS_ADDR")
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

	return &NarrativeCache{
		log: log.With("service", "NarrativeCache"),
		rdb: rdb,
	}, nil
}

// Get is best-effort: any redis error reads as a miss.
func (c *NarrativeCache) Get(ctx context.Context, key string) (string, bool) {
	if c == nil || c.rdb == nil {
		return "", false
	}
	val, err := c.rdb.Get(ctx, key).Result()
	if err != nil {
		if err != goredis.Nil {
			c.log.Warn("narrative cache get failed", "key", key, "error", err)
		}
		return "", false
	}
	return val, true
}

func (c *NarrativeCache) Set(ctx context.Context, key string, narrative string, ttl time.Duration) {
	if c == nil || c.rdb == nil {
		return
	}
	if err := c.rdb.Set(ctx, key, narrative, ttl).Err(); err != nil {
		c.log.Warn("narrative cache set failed", "key", key, "error", err)
	}
}

func (c *NarrativeCache) Close() error {
	if c == nil || c.rdb == nil {
		return nil
	}
	return c.rdb.Close()
}
