package pubsub

import (
	"context"
	"fmt"

	"chatlink/pkg/config"
	"chatlink/pkg/logger"
	"chatlink/pkg/redis"
)

// NewBus 按配置创建事件总线后端
func NewBus(ctx context.Context, cfg *config.Config, redisClient *redis.RedisClient, log logger.Logger) (Bus, error) {
	switch cfg.Bus.Backend {
	case "redis":
		return NewRedisBus(ctx, redisClient, log)
	case "kafka":
		return NewKafkaBus(ctx, cfg.Kafka.Brokers, cfg.Kafka.Topic, log)
	default:
		return nil, fmt.Errorf("unknown bus backend: %q", cfg.Bus.Backend)
	}
}
