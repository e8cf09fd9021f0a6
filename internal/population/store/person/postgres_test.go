package person

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"civreg/internal/population/models"
	id "civreg/pkg/domain"
	"civreg/pkg/platform/sentinel"
)

func TestPostgresCreateDuplicateIDNumber(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("INSERT INTO persons").
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: ConstraintIDNumber})

	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	p, err := models.NewPerson(id.NewPersonID(), models.Profile{
		FullName: "A", DateOfBirth: now.AddDate(-20, 0, 0), Gender: models.GenderMale,
	}, false, "", id.UserID{}, now)
	require.NoError(t, err)

	err = NewPostgres(db).Create(context.Background(), p)
	assert.True(t, sentinel.ConflictOn(err, ConstraintIDNumber))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresAssignHouseholdIsOneStatement(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	ids := []id.PersonID{id.NewPersonID(), id.NewPersonID(), id.NewPersonID()}
	mock.ExpectExec(`UPDATE persons SET household_id = \$1, updated_at = \$2 WHERE id = ANY`).
		WillReturnResult(sqlmock.NewResult(0, 3))

	hid := id.NewHouseholdID()
	require.NoError(t, NewPostgres(db).AssignHousehold(context.Background(), ids, &hid, time.Now()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPersonWhere(t *testing.T) {
	now := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)

	t.Run("default excludes inactive", func(t *testing.T) {
		where, args := personWhere(models.PersonFilter{}, now)
		assert.Equal(t, " WHERE NOT is_dead AND NOT has_moved_out", where)
		assert.Empty(t, args)
	})

	t.Run("search folds accents", func(t *testing.T) {
		where, args := personWhere(models.PersonFilter{Search: "Đức", IncludeInactive: true}, now)
		assert.Contains(t, where, "name_folded LIKE '%' || $1 || '%'")
		assert.Equal(t, []any{"duc", "Đức"}, args)
	})

	t.Run("retired has no lower bound", func(t *testing.T) {
		where, args := personWhere(models.PersonFilter{AgeCategory: models.AgeRetired, IncludeInactive: true}, now)
		assert.Equal(t, " WHERE date_of_birth < $1", where)
		require.Len(t, args, 1)
	})
}
