package storage

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "civreg/pkg/domain-errors"
	"civreg/pkg/platform/sentinel"
	txcontext "civreg/pkg/platform/tx"
)

func TestMapError(t *testing.T) {
	t.Run("no rows becomes not found", func(t *testing.T) {
		assert.ErrorIs(t, MapError(sql.ErrNoRows), sentinel.ErrNotFound)
	})

	t.Run("unique violation keeps constraint name", func(t *testing.T) {
		err := MapError(&pgconn.PgError{Code: "23505", ConstraintName: "temporary_residences_open_person_key"})
		assert.ErrorIs(t, err, sentinel.ErrConflict)
		assert.True(t, sentinel.ConflictOn(err, "temporary_residences_open_person_key"))
	})

	t.Run("other errors pass through", func(t *testing.T) {
		boom := errors.New("boom")
		assert.Same(t, boom, MapError(boom))
		assert.NoError(t, MapError(nil))
	})
}

func TestForUpdate(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	assert.Empty(t, ForUpdate(context.Background()))

	mock.ExpectBegin()
	mock.ExpectCommit()
	err = NewPostgresTx(db, 0).RunInTx(context.Background(), func(ctx context.Context) error {
		assert.Equal(t, " FOR UPDATE", ForUpdate(ctx))
		return nil
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresTx(t *testing.T) {
	ctx := context.Background()

	t.Run("commits and exposes tx to stores", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectBegin()
		mock.ExpectExec("UPDATE households").WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		runner := NewPostgresTx(db, 0)
		err = runner.RunInTx(ctx, func(ctx context.Context) error {
			_, ok := txcontext.From(ctx)
			require.True(t, ok)
			_, err := Conn(ctx, db).ExecContext(ctx, "UPDATE households SET status = 'inactive'")
			return err
		})
		require.NoError(t, err)
		assert.True(t, runner.Atomic())
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rolls back when fn fails", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectBegin()
		mock.ExpectRollback()

		boom := errors.New("boom")
		err = NewPostgresTx(db, 0).RunInTx(ctx, func(context.Context) error { return boom })
		assert.ErrorIs(t, err, boom)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("nested unit joins the outer transaction", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectBegin()
		mock.ExpectCommit()

		runner := NewPostgresTx(db, 0)
		err = runner.RunInTx(ctx, func(outer context.Context) error {
			outerTx, _ := txcontext.From(outer)
			return runner.RunInTx(outer, func(inner context.Context) error {
				innerTx, ok := txcontext.From(inner)
				require.True(t, ok)
				assert.Same(t, outerTx, innerTx)
				return nil
			})
		})
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("cancelled context never begins", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		cctx, cancel := context.WithCancel(ctx)
		cancel()
		err = NewPostgresTx(db, 0).RunInTx(cctx, func(context.Context) error { return nil })
		assert.True(t, dErrors.HasCode(err, dErrors.CodeTimeout))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPostgresSequence(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("INSERT INTO sequences").
		WithArgs(SequenceHousehold).
		WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow(int64(1)))

	value, err := NewPostgresSequence(db).Next(context.Background(), SequenceHousehold)
	require.NoError(t, err)
	assert.Equal(t, int64(1), value)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMemorySequence(t *testing.T) {
	ctx := context.Background()

	t.Run("sequences are independent", func(t *testing.T) {
		seq := NewMemorySequence()
		h1, _ := seq.Next(ctx, SequenceHousehold)
		c1, _ := seq.Next(ctx, SequenceComplaint)
		h2, _ := seq.Next(ctx, SequenceHousehold)
		assert.Equal(t, int64(1), h1)
		assert.Equal(t, int64(1), c1)
		assert.Equal(t, int64(2), h2)
	})

	t.Run("concurrent allocations never repeat", func(t *testing.T) {
		seq := NewMemorySequence()
		const goroutines = 50
		values := make(chan int64, goroutines)
		var wg sync.WaitGroup
		for i := 0; i < goroutines; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				v, err := seq.Next(ctx, SequenceComplaint)
				require.NoError(t, err)
				values <- v
			}()
		}
		wg.Wait()
		close(values)

		seen := make(map[int64]bool)
		for v := range values {
			assert.False(t, seen[v], "value %d allocated twice", v)
			seen[v] = true
		}
		assert.Len(t, seen, goroutines)
	})
}
