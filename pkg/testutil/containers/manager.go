//go:build integration

// Package containers starts the backing services integration tests run
// against. Each container is started once per test binary and shared across
// suites; Ryuk removes them when the binary exits.
package containers

import (
	"context"
	"sync"
	"testing"
)

type lazy[T any] struct {
	once  sync.Once
	value T
	err   error
}

func (l *lazy[T]) get(t *testing.T, name string, start func(context.Context) (T, error)) T {
	t.Helper()
	l.once.Do(func() {
		l.value, l.err = start(context.Background())
	})
	if l.err != nil {
		t.Fatalf("start %s container: %v", name, l.err)
	}
	return l.value
}

// Manager hands out the shared containers.
type Manager struct {
	postgres lazy[*PostgresContainer]
	redis    lazy[*RedisContainer]
	redpanda lazy[*RedpandaContainer]
}

var (
	managerOnce sync.Once
	manager     *Manager
)

// GetManager returns the process-wide container manager.
func GetManager() *Manager {
	managerOnce.Do(func() { manager = &Manager{} })
	return manager
}

func (m *Manager) Postgres(t *testing.T) *PostgresContainer {
	return m.postgres.get(t, "postgres", startPostgres)
}

func (m *Manager) Redis(t *testing.T) *RedisContainer {
	return m.redis.get(t, "redis", startRedis)
}

func (m *Manager) Redpanda(t *testing.T) *RedpandaContainer {
	return m.redpanda.get(t, "redpanda", startRedpanda)
}
