package repository

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// InitRedis connects the optional slug lookup cache. The URL may be a
// redis:// / rediss:// URL or a bare host:port. A nil client is a valid
// deployment: handlers fall back to the database on every lookup.
func InitRedis(url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		// Bare host:port, as older deployments configured it.
		opts = &redis.Options{Addr: url}
	}

	rdb := redis.NewClient(opts)

	ctx := context.Background()
	if _, err := rdb.Ping(ctx).Result(); err != nil {
		return nil, err
	}

	return rdb, nil
}
