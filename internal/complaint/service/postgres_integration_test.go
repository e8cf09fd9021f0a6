//go:build integration

package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"civreg/internal/complaint/models"
	complaintstore "civreg/internal/complaint/store/complaint"
	"civreg/internal/storage"
	id "civreg/pkg/domain"
	"civreg/pkg/requestcontext"
	"civreg/pkg/testutil/containers"
)

func TestMergeAgainstPostgres(t *testing.T) {
	pg := containers.GetManager().Postgres(t)
	pg.Truncate(t)
	ctx := requestcontext.WithTime(context.Background(), time.Now().UTC().Truncate(time.Microsecond))
	ctx = requestcontext.WithUserID(ctx, id.UserID(uuid.New()))

	store := complaintstore.NewPostgres(pg.DB)
	svc := New(store, storage.NewPostgresSequence(pg.DB), storage.NewPostgresTx(pg.DB, 5*time.Second))

	create := func(title string) *models.Complaint {
		c, err := svc.Create(ctx, &models.CreateRequest{
			Submitters:  []id.PersonID{id.NewPersonID()},
			Category:    models.CategoryInfrastructure,
			Title:       title,
			Description: "Nước ngập sau mưa",
		})
		require.NoError(t, err)
		return c
	}
	main := create("Ngập ngõ 12")
	dupA := create("Ngập ngõ 12 (lần 2)")
	dupB := create("Ngõ 12 ngập")
	assert.Equal(t, "KN000003", dupB.Code)

	merged, err := svc.Merge(ctx, &models.MergeRequest{
		ComplaintIDs: []id.ComplaintID{main.ID, dupA.ID, dupB.ID},
		MainID:       main.ID,
	})
	require.NoError(t, err)
	assert.ElementsMatch(t, []id.ComplaintID{dupA.ID, dupB.ID}, merged.MergedFrom)
	assert.Len(t, merged.Submitters, 3)

	src, err := store.FindByID(ctx, dupA.ID)
	require.NoError(t, err)
	assert.True(t, src.IsMerged)
	assert.Equal(t, main.ID, *src.MergedInto)

	stats, err := svc.Stats(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Total)
}
