package models_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"civreg/internal/population/models"
	id "civreg/pkg/domain"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func newResidence(t *testing.T, typ models.ResidenceType, start, end time.Time) *models.TemporaryResidence {
	t.Helper()
	r, err := models.NewTemporaryResidence(id.NewResidenceID(), id.NewPersonID(), typ, start, end,
		"12 Lê Lợi", "work", id.UserID(id.NewPersonID()), start)
	require.NoError(t, err)
	return r
}

func TestNewTemporaryResidence(t *testing.T) {
	actor := id.UserID(id.NewPersonID())

	t.Run("end must be after start", func(t *testing.T) {
		_, err := models.NewTemporaryResidence(id.NewResidenceID(), id.NewPersonID(), models.TypeTemporaryResidence,
			day(2025, 1, 10), day(2025, 1, 10), "addr", "", actor, day(2025, 1, 1))
		require.Error(t, err)
	})

	t.Run("unknown type", func(t *testing.T) {
		_, err := models.NewTemporaryResidence(id.NewResidenceID(), id.NewPersonID(), "visit",
			day(2025, 1, 1), day(2025, 1, 10), "addr", "", actor, day(2025, 1, 1))
		require.Error(t, err)
	})

	t.Run("type implies person status", func(t *testing.T) {
		assert.Equal(t, models.ResidenceTemporary, models.TypeTemporaryResidence.PersonStatus())
		assert.Equal(t, models.ResidenceTemporarilyAbsent, models.TypeTemporaryAbsence.PersonStatus())
	})
}

func TestExtendAbsence(t *testing.T) {
	r := newResidence(t, models.TypeTemporaryAbsence, day(2025, 1, 1), day(2025, 1, 10))

	require.Error(t, r.CanExtend(day(2025, 1, 10)), "same end date")
	require.Error(t, r.CanExtend(day(2025, 1, 5)), "earlier end date")

	require.NoError(t, r.CanExtend(day(2025, 1, 20)))
	r.ApplyExtension(day(2025, 1, 20), "still travelling", day(2025, 1, 9))

	assert.Equal(t, models.DeclarationExtended, r.Status)
	assert.Equal(t, day(2025, 1, 20), r.EndDate)
	require.Len(t, r.Extensions, 1)
	assert.Equal(t, day(2025, 1, 10), r.Extensions[0].PreviousEndDate)
	assert.Equal(t, day(2025, 1, 20), r.Extensions[0].NewEndDate)
	assert.True(t, r.IsOpen())
}

func TestCancel(t *testing.T) {
	r := newResidence(t, models.TypeTemporaryResidence, day(2025, 1, 1), day(2025, 2, 1))
	require.NoError(t, r.CanCancel())
	r.ApplyCancel(day(2025, 1, 15))
	assert.Equal(t, models.DeclarationCancelled, r.Status)
	assert.False(t, r.IsOpen())
	assert.Error(t, r.CanCancel())
	assert.Error(t, r.CanExtend(day(2025, 3, 1)))
}

func TestExpiryClassification(t *testing.T) {
	end := day(2025, 1, 10)

	tests := []struct {
		name         string
		now          time.Time
		expired      bool
		expiringSoon bool
		daysLeft     int
	}{
		{"well before end", day(2024, 12, 1), false, false, 40},
		{"seven days left", day(2025, 1, 3), false, true, 7},
		{"partial day rounds up", end.Add(-30 * time.Hour), false, true, 2},
		{"at end instant", end, false, false, 0},
		{"after end", end.Add(time.Minute), true, false, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newResidence(t, models.TypeTemporaryResidence, day(2024, 11, 1), end)
			assert.Equal(t, tt.expired, r.IsExpired(tt.now))
			assert.Equal(t, tt.expiringSoon, r.IsExpiringSoon(tt.now))
			assert.Equal(t, tt.daysLeft, r.DaysUntilEnd(tt.now))
		})
	}

	t.Run("effective status reports expired without persisting it", func(t *testing.T) {
		r := newResidence(t, models.TypeTemporaryResidence, day(2024, 11, 1), end)
		assert.Equal(t, models.DeclarationExpired, r.EffectiveStatus(day(2025, 2, 1)))
		assert.Equal(t, models.DeclarationActive, r.Status)
	})

	t.Run("extended records are not classified", func(t *testing.T) {
		r := newResidence(t, models.TypeTemporaryResidence, day(2024, 11, 1), end)
		r.ApplyExtension(day(2025, 1, 12), "", day(2025, 1, 5))
		assert.False(t, r.IsExpired(day(2025, 2, 1)))
		assert.False(t, r.IsExpiringSoon(day(2025, 1, 8)))
	})
}
