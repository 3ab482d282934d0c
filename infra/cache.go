package infra

import (
	"context"
	"log"
	"net"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Maestro-111/search-engine/config"
)

// RedisClient backs the job store. Records are written by the supervisor
// heartbeat, so short timeouts keep a slow Redis from stalling a job.
type RedisClient struct {
	Client *redis.Client
}

func InitRedisClient(cfg *config.EnvConfig) *RedisClient {
	client := redis.NewClient(&redis.Options{
		Addr:         net.JoinHostPort(cfg.Redis.RedisHost, cfg.Redis.RedisPort),
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.Database,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		log.Fatalf("Job store (Redis) connection failed: %v", err)
	}

	log.Printf("Connected to job store at %s (db %d)", client.Options().Addr, cfg.Redis.Database)

	return &RedisClient{Client: client}
}

func (r *RedisClient) Ping(ctx context.Context) error {
	return r.Client.Ping(ctx).Err()
}

func (r *RedisClient) Close() error {
	return r.Client.Close()
}
