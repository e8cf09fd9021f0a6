// Package tx carries the unit-of-work seam between services and stores.
//
// Services run multi-entity writes through a Runner. The Postgres runner
// stashes its *sql.Tx in the context and stores pick it up with From, so the
// same store code works inside and outside a transaction. The in-memory
// runner only serialises writers and cannot roll back; Run turns a failure
// after applied writes into a partial-application error for that case.
package tx

import (
	"context"
	"database/sql"
	"sync"

	dErrors "civreg/pkg/domain-errors"
)

type ctxKey struct{}

var txKey = ctxKey{}

// WithTx stores a SQL transaction in context for downstream store usage.
func WithTx(ctx context.Context, tx *sql.Tx) context.Context {
	if tx == nil {
		return ctx
	}
	return context.WithValue(ctx, txKey, tx)
}

// From extracts a SQL transaction from context if present.
func From(ctx context.Context) (*sql.Tx, bool) {
	tx, ok := ctx.Value(txKey).(*sql.Tx)
	return tx, ok
}

// Runner executes fn as one unit of work.
type Runner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
	// Atomic reports whether a failed fn leaves no trace of its writes.
	Atomic() bool
}

// MemoryRunner serialises units of work over in-memory stores. Writes made
// before a failure stay applied. Units must not nest.
type MemoryRunner struct {
	mu sync.Mutex
}

func NewMemoryRunner() *MemoryRunner {
	return &MemoryRunner{}
}

func (r *MemoryRunner) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	return fn(ctx)
}

func (r *MemoryRunner) Atomic() bool { return false }

// Journal records the sub-writes a unit of work has applied so far.
type Journal struct {
	applied []string
}

// Record notes a completed sub-write, e.g. "household:HK000003".
func (j *Journal) Record(step string) {
	j.applied = append(j.applied, step)
}

func (j *Journal) Applied() []string {
	return append([]string(nil), j.applied...)
}

func (j *Journal) Len() int { return len(j.applied) }

// Run executes fn in a unit of work with a fresh journal. When the runner is
// not atomic and fn fails after recording writes, the error is reported as a
// partial application listing what was applied.
func Run(ctx context.Context, runner Runner, op string, fn func(ctx context.Context, j *Journal) error) error {
	j := &Journal{}
	err := runner.RunInTx(ctx, func(ctx context.Context) error {
		return fn(ctx, j)
	})
	if err == nil {
		return nil
	}
	if !runner.Atomic() && j.Len() > 0 {
		return dErrors.Partial(op, j.Applied(), err)
	}
	return err
}
