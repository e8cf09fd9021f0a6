package storage

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
)

// Sequence names used for human-readable codes.
const (
	SequenceHousehold = "household"
	SequenceComplaint = "complaint"
)

// PostgresSequence allocates values from the sequences table. The upsert is
// a single atomic statement; inside a transaction the row lock is held until
// commit so concurrent allocators queue rather than collide.
type PostgresSequence struct {
	db *sql.DB
}

func NewPostgresSequence(db *sql.DB) *PostgresSequence {
	return &PostgresSequence{db: db}
}

func (s *PostgresSequence) Next(ctx context.Context, name string) (int64, error) {
	const query = `
		INSERT INTO sequences (name, value) VALUES ($1, 1)
		ON CONFLICT (name) DO UPDATE SET value = sequences.value + 1
		RETURNING value
	`
	var value int64
	if err := Conn(ctx, s.db).QueryRowContext(ctx, query, name).Scan(&value); err != nil {
		return 0, fmt.Errorf("allocate %s sequence: %w", name, err)
	}
	return value, nil
}

// MemorySequence is a process-local counter per name.
type MemorySequence struct {
	mu     sync.Mutex
	values map[string]int64
}

func NewMemorySequence() *MemorySequence {
	return &MemorySequence{values: make(map[string]int64)}
}

func (s *MemorySequence) Next(_ context.Context, name string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[name]++
	return s.values[name], nil
}

// Set positions the counter so the next allocation returns value+1.
func (s *MemorySequence) Set(name string, value int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[name] = value
}
