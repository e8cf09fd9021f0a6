package complaint

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"civreg/internal/complaint/models"
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
	c, err := models.NewComplaint(id.NewComplaintID(), "KN000001", []id.PersonID{id.NewPersonID()},
		models.CategoryInfrastructure, "Đèn đường hỏng", "Ngõ 5 tối", "", id.UserID{}, base)
	require.NoError(t, err)

	t.Run("inserts row then history", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectExec("INSERT INTO complaints").WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("INSERT INTO complaint_status_history").WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, store.Create(ctx, c))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("code collision reports conflict", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectExec("INSERT INTO complaints").WillReturnResult(sqlmock.NewResult(0, 0))

		err := store.Create(ctx, c)
		assert.True(t, sentinel.ConflictOn(err, ConstraintCode))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPostgresFindByID(t *testing.T) {
	ctx := context.Background()
	cid := uuid.New()
	submitter := uuid.New()
	actor := uuid.New()

	store, mock := newMockStore(t)
	mock.ExpectQuery("SELECT (.+) FROM complaints WHERE id").
		WithArgs(cid).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "code", "submitters", "category", "title", "description", "status", "priority",
			"resolution", "resolved_at", "resolved_by", "assigned_to", "is_merged", "merged_from", "merged_into",
			"created_by", "created_at", "updated_at",
		}).AddRow(
			cid.String(), "KN000007", "{"+submitter.String()+"}", "social", "Tiếng ồn", "Karaoke khuya", "received", "high",
			"", nil, nil, nil, false, "{}", nil,
			actor.String(), base, base,
		))
	mock.ExpectQuery("SELECT (.+) FROM complaint_status_history").
		WillReturnRows(sqlmock.NewRows([]string{"complaint_id", "status", "note", "occurred_at", "actor_id"}).
			AddRow(cid.String(), "received", models.ReceivedNote, base, actor.String()))

	c, err := store.FindByID(ctx, id.ComplaintID(cid))
	require.NoError(t, err)
	assert.Equal(t, "KN000007", c.Code)
	assert.Equal(t, []id.PersonID{id.PersonID(submitter)}, c.Submitters)
	assert.Equal(t, models.PriorityHigh, c.Priority)
	assert.Empty(t, c.MergedFrom)
	assert.Nil(t, c.AssignedTo)
	require.Len(t, c.StatusHistory, 1)
	assert.Equal(t, id.UserID(actor), c.StatusHistory[0].ActorID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresFindByIDMissing(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery("SELECT (.+) FROM complaints WHERE id").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := store.FindByID(context.Background(), id.NewComplaintID())
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestPostgresMarkMerged(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectExec("UPDATE complaints SET is_merged = TRUE").
		WillReturnResult(sqlmock.NewResult(0, 2))

	n, err := store.MarkMerged(context.Background(),
		[]id.ComplaintID{id.NewComplaintID(), id.NewComplaintID()}, id.NewComplaintID(), time.Now())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresAggregate(t *testing.T) {
	from := base
	store, mock := newMockStore(t)
	mock.ExpectQuery(`SELECT status, category, COUNT\(\*\) FROM complaints WHERE NOT is_merged AND created_at >= \$1 GROUP BY`).
		WithArgs(from).
		WillReturnRows(sqlmock.NewRows([]string{"status", "category", "count"}).
			AddRow("resolved", "environment", 2).
			AddRow("received", "environment", 1).
			AddRow("received", "social", 1))

	counts, err := store.Aggregate(context.Background(), &models.DateRange{From: from})
	require.NoError(t, err)
	assert.Equal(t, 4, counts.Total)
	assert.Equal(t, 2, counts.ByStatus[models.StatusResolved])
	assert.Equal(t, 3, counts.ByCategory[models.CategoryEnvironment])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresUpdateMissing(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectExec("UPDATE complaints").WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.Update(context.Background(), &models.Complaint{ID: id.NewComplaintID()})
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}
