package household

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"civreg/internal/population/models"
	"civreg/internal/storage"
	id "civreg/pkg/domain"
	"civreg/pkg/platform/sentinel"
)

func newMockStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewPostgres(db), mock
}

func TestPostgresCreate(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	h, err := models.NewHousehold(id.NewHouseholdID(), "HK000001", id.NewPersonID(), nil,
		models.Address{HouseNumber: "1"}, id.UserID{}, now)
	require.NoError(t, err)
	h.Record(models.HistoryEntry{Event: models.EventCreated, Description: "created", OccurredAt: now})

	t.Run("inserts row then history", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectExec("INSERT INTO households").WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("INSERT INTO household_history").WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, store.Create(ctx, h))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("code collision reports conflict", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectExec("INSERT INTO households").WillReturnResult(sqlmock.NewResult(0, 0))

		err := store.Create(ctx, h)
		assert.True(t, sentinel.ConflictOn(err, ConstraintCode))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPostgresUpdateMissing(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectExec("UPDATE households").WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.Update(context.Background(), &models.Household{ID: id.NewHouseholdID()})
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresFindByID(t *testing.T) {
	ctx := context.Background()
	store, mock := newMockStore(t)
	hid := id.NewHouseholdID()
	head := id.NewPersonID()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT (.+) FROM households WHERE id").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "code", "head_id", "members", "house_number", "street", "ward", "district", "city",
			"status", "created_by", "created_at", "updated_at",
		}).AddRow(hid.String(), "HK000001", head.String(), "{"+head.String()+"}", "1", "", "", "", "",
			"active", nil, now, now))
	mock.ExpectQuery("FROM household_history").
		WillReturnRows(sqlmock.NewRows([]string{"event", "description", "occurred_at", "related_household_id", "actor_id"}).
			AddRow("created", "created", now, nil, nil))

	h, err := store.FindByID(ctx, hid)
	require.NoError(t, err)
	assert.Equal(t, hid, h.ID)
	assert.Equal(t, []id.PersonID{head}, h.Members)
	require.Len(t, h.History, 1)
	assert.Equal(t, models.EventCreated, h.History[0].Event)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresFindByIDLocksRowInsideTx(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	store := NewPostgres(db)
	hid := id.NewHouseholdID()
	head := id.NewPersonID()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM households WHERE id = \\$1 FOR UPDATE").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "code", "head_id", "members", "house_number", "street", "ward", "district", "city",
			"status", "created_by", "created_at", "updated_at",
		}).AddRow(hid.String(), "HK000001", head.String(), "{"+head.String()+"}", "1", "", "", "", "",
			"active", nil, now, now))
	mock.ExpectQuery("FROM household_history").
		WillReturnRows(sqlmock.NewRows([]string{"event", "description", "occurred_at", "related_household_id", "actor_id"}))
	mock.ExpectCommit()

	err = storage.NewPostgresTx(db, 0).RunInTx(context.Background(), func(ctx context.Context) error {
		h, err := store.FindByID(ctx, hid)
		if err != nil {
			return err
		}
		assert.Equal(t, hid, h.ID)
		return nil
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
