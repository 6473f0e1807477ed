package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	types "github.com/yungbote/custrisk-backend/internal/domain"
	"github.com/yungbote/custrisk-backend/internal/platform/logger"
)

type Config struct {
	Addr      string        `yaml:"addr"`
	Password  string        `yaml:"password"`
	DB        int           `yaml:"db"`
	KeyPrefix string        `yaml:"key_prefix"`
	TTL       time.Duration `yaml:"ttl"`
}

// kv is the slice of the go-redis API the cache uses.
type kv interface {
	Get(ctx context.Context, key string) *goredis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *goredis.StatusCmd
	Incr(ctx context.Context, key string) *goredis.IntCmd
	Close() error
}

type StatsCache struct {
	log    *logger.Logger
	rdb    kv
	client *goredis.Client
	prefix string
	ttl    time.Duration
}

// Dial connects and pings. The returned client is also used for the redis health gauge.
func Dial(cfg Config) (*goredis.Client, error) {
	addr := strings.TrimSpace(cfg.Addr)
	if addr == "" {
		return nil, fmt.Errorf("missing redis addr")
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}

func NewStatsCache(log *logger.Logger, rdb *goredis.Client, cfg Config) (*StatsCache, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if rdb == nil {
		return nil, fmt.Errorf("redis client required")
	}
	c := newStatsCache(log, rdb, cfg)
	c.client = rdb
	return c, nil
}

func newStatsCache(log *logger.Logger, rdb kv, cfg Config) *StatsCache {
	prefix := strings.TrimSpace(cfg.KeyPrefix)
	if prefix == "" {
		prefix = "custrisk"
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &StatsCache{
		log:    log.With("service", "RedisStatsCache"),
		rdb:    rdb,
		prefix: prefix,
		ttl:    ttl,
	}
}

// Entries live under the generation current when they were computed. Older
// generations are never read again and age out through the TTL.
func (c *StatsCache) key(gen int64, scope string) string {
	return c.prefix + ":stats:" + strconv.FormatInt(gen, 10) + ":" + scope
}

func (c *StatsCache) genKey() string {
	return c.prefix + ":stats:gen"
}

func (c *StatsCache) Generation(ctx context.Context) (int64, error) {
	if c == nil || c.rdb == nil {
		return 0, nil
	}
	raw, err := c.rdb.Get(ctx, c.genKey()).Result()
	if errors.Is(err, goredis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("redis get generation: %w", err)
	}
	gen, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("redis generation %q: %w", raw, err)
	}
	return gen, nil
}

func (c *StatsCache) Get(ctx context.Context, gen int64, scope string) (*types.RiskDistribution, bool, error) {
	if c == nil || c.rdb == nil {
		return nil, false, nil
	}
	raw, err := c.rdb.Get(ctx, c.key(gen, scope)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get: %w", err)
	}
	var dist types.RiskDistribution
	if err := json.Unmarshal(raw, &dist); err != nil {
		c.log.Warn("bad cached stats payload", "scope", scope, "generation", gen, "error", err)
		return nil, false, nil
	}
	return &dist, true, nil
}

func (c *StatsCache) Set(ctx context.Context, gen int64, scope string, dist *types.RiskDistribution) error {
	if c == nil || c.rdb == nil || dist == nil {
		return nil
	}
	raw, err := json.Marshal(dist)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, c.key(gen, scope), raw, c.ttl).Err()
}

func (c *StatsCache) Invalidate(ctx context.Context) error {
	if c == nil || c.rdb == nil {
		return nil
	}
	return c.rdb.Incr(ctx, c.genKey()).Err()
}

func (c *StatsCache) Client() *goredis.Client {
	if c == nil {
		return nil
	}
	return c.client
}

func (c *StatsCache) Close() error {
	if c == nil || c.rdb == nil {
		return nil
	}
	return c.rdb.Close()
}
