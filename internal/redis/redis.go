package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Connect opens the redis client holding pending tables, the table sequence
// and the game event channel. An empty URL returns a nil client.
func Connect(redisURL string) (*redis.Client, error) {
	if redisURL == "" {
		return nil, nil
	}

	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}

	return client, nil
}
