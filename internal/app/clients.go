package app

import (
	"fmt"
	"strings"

	"github.com/yungbote/custrisk-backend/internal/clients/kafka"
	"github.com/yungbote/custrisk-backend/internal/clients/redis"
	"github.com/yungbote/custrisk-backend/internal/platform/logger"
)

// Clients holds the optional external integrations. Nil fields are disabled.
type Clients struct {
	StatsCache *redis.StatsCache
	Events     *kafka.Publisher
}

func wireClients(log *logger.Logger, cfg Config) (Clients, error) {
	log.Info("Wiring clients...")
	var out Clients

	// Redis
	if strings.TrimSpace(cfg.Redis.Addr) != "" {
		rdb, err := redis.Dial(cfg.Redis)
		if err != nil {
			return Clients{}, fmt.Errorf("init redis: %w", err)
		}
		cache, err := redis.NewStatsCache(log, rdb, cfg.Redis)
		if err != nil {
			_ = rdb.Close()
			return Clients{}, fmt.Errorf("init stats cache: %w", err)
		}
		out.StatsCache = cache
	} else {
		log.Info("REDIS_ADDR not set; statistics are computed on every request")
	}

	// Kafka
	if len(cfg.Kafka.Brokers) > 0 {
		pub, err := kafka.NewPublisher(log, cfg.Kafka)
		if err != nil {
			out.Close()
			return Clients{}, fmt.Errorf("init kafka publisher: %w", err)
		}
		out.Events = pub
	} else {
		log.Info("KAFKA_BROKERS not set; domain events are not published")
	}

	return out, nil
}

func (c *Clients) Close() {
	if c == nil {
		return
	}
	if c.Events != nil {
		_ = c.Events.Close()
	}
	if c.StatsCache != nil {
		_ = c.StatsCache.Close()
	}
}
