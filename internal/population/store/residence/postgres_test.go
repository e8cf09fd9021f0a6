package residence

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresExpiringExcludesLowerBound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	store := NewPostgres(db)

	from := time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC)
	until := from.AddDate(0, 0, 7)
	mock.ExpectQuery(`end_date > \$1 AND end_date <= \$2`).
		WithArgs(from, until).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "person_id", "type", "start_date", "end_date", "address", "reason", "status",
			"created_by", "created_at", "updated_at",
		}))

	items, err := store.Expiring(context.Background(), from, until)
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.NoError(t, mock.ExpectationsWereMet())
}
