//go:build integration

package containers

import (
	"context"
	"testing"

	"github.com/testcontainers/testcontainers-go"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"

	"civreg/internal/platform/config"
	platformredis "civreg/internal/platform/redis"
)

// RedisContainer backs the dashboard cache in integration tests. Client is
// dialled through the same constructor the server uses.
type RedisContainer struct {
	Container testcontainers.Container
	Client    *platformredis.Client
}

func startRedis(ctx context.Context) (*RedisContainer, error) {
	container, err := tcredis.Run(ctx, "redis:7-alpine")
	if err != nil {
		return nil, err
	}
	url, err := container.ConnectionString(ctx)
	if err == nil {
		var client *platformredis.Client
		client, err = platformredis.New(ctx, config.RedisConfig{URL: url, PoolSize: 4})
		if err == nil {
			return &RedisContainer{Container: container, Client: client}, nil
		}
	}
	_ = container.Terminate(ctx)
	return nil, err
}

// FlushAll empties the server between tests.
func (r *RedisContainer) FlushAll(t *testing.T) {
	t.Helper()
	if err := r.Client.FlushAll(context.Background()).Err(); err != nil {
		t.Fatalf("flush redis: %v", err)
	}
}
