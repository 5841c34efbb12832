package leaderboard

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultCacheTTL = 30 * time.Second

// Cache keeps ranked weekly boards in Redis so public leaderboard reads skip the database.
//
// Boards are stored under a per-mode generation. Invalidate bumps the generation, so a
// board computed before a write lands under a key nobody reads any more.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

var _ WeeklyCache = (*Cache)(nil)

func NewCache(client *redis.Client, prefix string, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	if prefix == "" {
		prefix = "lb"
	}
	return &Cache{client: client, ttl: ttl, prefix: prefix}
}

func (c *Cache) genKey(mode Mode) string {
	return c.prefix + ":weekly:" + string(mode) + ":gen"
}

func (c *Cache) boardKey(mode Mode, gen int64) string {
	return c.prefix + ":weekly:" + string(mode) + ":" + strconv.FormatInt(gen, 10)
}

// Get returns the board for the current generation. The generation is returned
// on a miss too, and must be handed back to Set.
func (c *Cache) Get(ctx context.Context, mode Mode) ([]HighScore, int64, bool, error) {
	gen, err := c.client.Get(ctx, c.genKey(mode)).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, 0, false, err
	}

	data, err := c.client.Get(ctx, c.boardKey(mode, gen)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, gen, false, nil
		}
		return nil, 0, false, err
	}
	var ranked []HighScore
	if err := json.Unmarshal(data, &ranked); err != nil {
		return nil, 0, false, err
	}
	return ranked, gen, true, nil
}

func (c *Cache) Set(ctx context.Context, mode Mode, gen int64, ranked []HighScore) error {
	data, err := json.Marshal(ranked)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.boardKey(mode, gen), data, c.ttl).Err()
}

func (c *Cache) Invalidate(ctx context.Context, mode Mode) error {
	return c.client.Incr(ctx, c.genKey(mode)).Err()
}
