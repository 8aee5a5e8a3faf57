package config

import (
	"context"
	"time"

	"github.com/malaeb-app/app-messaging/internal/logging"
	"github.com/malaeb-app/app-messaging/internal/redisclient"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var (
	// Redis client, nil unless REDIS_ENABLED is set
	Redis *redisclient.Client
)

// InitRedis initializes the Redis connection when enabled. The service runs
// without Redis using in-memory challenge state (single-process only).
func InitRedis() {
	if !AppConfig.RedisEnabled {
		logging.Logger.Info("Redis disabled, using in-memory challenge store")
		return
	}

	if AppConfig.RedisClusterEnabled {
		clusterClient := redis.NewClusterClient(&redis.ClusterOptions{
			Addrs:        AppConfig.RedisClusterAddrs,
			Password:     AppConfig.RedisPassword,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
			PoolSize:     10,
			MinIdleConns: 5,
		})
		Redis = redisclient.NewClusterClient(clusterClient)
	} else {
		redisClient := redis.NewClient(&redis.Options{
			Addr:         AppConfig.RedisURI,
			Password:     AppConfig.RedisPassword,
			DB:           AppConfig.RedisDB,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
			PoolSize:     10,
			MinIdleConns: 5,
		})
		Redis = redisclient.NewClient(redisClient)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := Redis.Ping(ctx).Err(); err != nil {
		logging.Logger.Fatal("failed to connect to Redis",
			zap.String("uri", AppConfig.RedisURI),
			zap.Error(err),
		)
	}

	logging.Logger.Info("Connected to Redis", zap.String("uri", AppConfig.RedisURI))
}
