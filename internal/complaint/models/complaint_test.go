package models_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"civreg/internal/complaint/models"
	id "civreg/pkg/domain"
	dErrors "civreg/pkg/domain-errors"
)

type ComplaintSuite struct {
	suite.Suite
	now   time.Time
	actor id.UserID
	a     id.PersonID
	b     id.PersonID
	c     id.PersonID
}

func TestComplaintSuite(t *testing.T) {
	suite.Run(t, new(ComplaintSuite))
}

func (s *ComplaintSuite) SetupTest() {
	s.now = time.Date(2025, 2, 10, 14, 0, 0, 0, time.UTC)
	s.actor = id.UserID(id.NewComplaintID())
	s.a = id.NewPersonID()
	s.b = id.NewPersonID()
	s.c = id.NewPersonID()
}

func (s *ComplaintSuite) newComplaint(n int64, submitters ...id.PersonID) *models.Complaint {
	c, err := models.NewComplaint(id.NewComplaintID(), models.FormatComplaintCode(n), submitters,
		models.CategoryEnvironment, "Rác thải", "Rác không được thu gom", "", s.actor, s.now)
	s.Require().NoError(err)
	return c
}

func (s *ComplaintSuite) TestNewComplaint() {
	s.Run("starts received with one history entry", func() {
		c := s.newComplaint(1, s.a, s.a, s.b)
		s.Equal("KN000001", c.Code)
		s.Equal(models.StatusReceived, c.Status)
		s.Equal(models.PriorityMedium, c.Priority)
		s.Equal([]id.PersonID{s.a, s.b}, c.Submitters)
		s.Require().Len(c.StatusHistory, 1)
		s.Equal(models.StatusReceived, c.StatusHistory[0].Status)
		s.Equal(models.ReceivedNote, c.StatusHistory[0].Note)
		s.Empty(c.MergedFrom)
	})

	s.Run("rejects missing submitters", func() {
		_, err := models.NewComplaint(id.NewComplaintID(), "KN000001", nil, models.CategoryOther,
			"t", "d", "", s.actor, s.now)
		s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})

	s.Run("rejects unknown category", func() {
		_, err := models.NewComplaint(id.NewComplaintID(), "KN000001", []id.PersonID{s.a}, "noise",
			"t", "d", "", s.actor, s.now)
		s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})
}

func (s *ComplaintSuite) TestTransitions() {
	s.Run("received to in progress to resolved", func() {
		c := s.newComplaint(1, s.a)
		s.Require().NoError(c.CanTransition(models.StatusInProgress, ""))
		c.ApplyStatus(models.StatusInProgress, "đang xử lý", "", s.actor, s.now.Add(time.Hour))

		s.Require().NoError(c.CanTransition(models.StatusResolved, "Đã thu gom"))
		c.ApplyStatus(models.StatusResolved, "", "Đã thu gom", s.actor, s.now.Add(2*time.Hour))

		s.Equal(models.StatusResolved, c.Status)
		s.Equal("Đã thu gom", c.Resolution)
		s.Require().NotNil(c.ResolvedAt)
		s.Equal(s.now.Add(2*time.Hour), *c.ResolvedAt)
		s.Equal(s.actor, *c.ResolvedBy)
		s.Len(c.StatusHistory, 3)
	})

	s.Run("resolving needs a resolution", func() {
		c := s.newComplaint(1, s.a)
		c.ApplyStatus(models.StatusInProgress, "", "", s.actor, s.now)
		s.Error(c.CanTransition(models.StatusResolved, "  "))
	})

	s.Run("received cannot jump to resolved", func() {
		c := s.newComplaint(1, s.a)
		s.Error(c.CanTransition(models.StatusResolved, "done"))
	})

	s.Run("terminal statuses have no way out", func() {
		c := s.newComplaint(1, s.a)
		c.ApplyStatus(models.StatusRejected, "trùng lặp", "", s.actor, s.now)
		for _, to := range models.Statuses {
			s.Error(c.CanTransition(to, "x"), to)
		}
	})

	s.Run("merged complaints cannot transition", func() {
		main := s.newComplaint(1, s.a)
		src := s.newComplaint(2, s.b)
		src.ApplyMergedInto(main, s.actor, s.now)
		s.Error(src.CanTransition(models.StatusInProgress, ""))
		s.Error(src.CanAssign(s.actor))
	})
}

func (s *ComplaintSuite) TestAssignKeepsStatus() {
	c := s.newComplaint(1, s.a)
	assignee := id.UserID(id.NewPersonID())
	entry := c.ApplyAssign(assignee, "", s.actor, s.now)
	s.Equal(models.StatusReceived, entry.Status)
	s.Equal("Assigned to "+assignee.String(), entry.Note)
	s.Equal(assignee, *c.AssignedTo)
	s.Len(c.StatusHistory, 2)
}

func (s *ComplaintSuite) TestAbsorbUnionsSubmitters() {
	c1 := s.newComplaint(1, s.a)
	c2 := s.newComplaint(2, s.b)
	c3 := s.newComplaint(3, s.a, s.c)

	s.Require().NoError(c1.CanAbsorb([]*models.Complaint{c2, c3}))
	entry := c1.ApplyAbsorb([]*models.Complaint{c2, c3}, nil, nil, s.actor, s.now)

	s.Equal([]id.PersonID{s.a, s.b, s.c}, c1.Submitters)
	s.Equal([]id.ComplaintID{c2.ID, c3.ID}, c1.MergedFrom)
	s.Equal("Merged KN000002, KN000003", entry.Note)
	s.Equal("Rác thải", c1.Title)

	s.Run("overrides replace title only when given", func() {
		title := "Rác thải khu phố 3"
		c4 := s.newComplaint(4, s.b)
		c1.ApplyAbsorb([]*models.Complaint{c4}, &title, nil, s.actor, s.now)
		s.Equal(title, c1.Title)
		s.Equal("Rác không được thu gom", c1.Description)
	})

	s.Run("already merged source is rejected", func() {
		c2.ApplyMergedInto(c1, s.actor, s.now)
		c5 := s.newComplaint(5, s.a)
		s.Error(c5.CanAbsorb([]*models.Complaint{c2}))
	})
}

func TestStatsFrom(t *testing.T) {
	t.Run("zero complaints has zero rate", func(t *testing.T) {
		stats := models.StatsFrom(models.NewCounts())
		assert.Equal(t, 0, stats.Total)
		assert.Equal(t, 0.0, stats.ResolutionRate)
		require.Len(t, stats.ByStatus, len(models.Statuses))
		assert.Len(t, stats.ByCategory, len(models.Categories))
	})

	t.Run("rate rounds to two decimals", func(t *testing.T) {
		counts := models.NewCounts()
		counts.Total = 3
		counts.ByStatus[models.StatusResolved] = 1
		counts.ByStatus[models.StatusReceived] = 2
		stats := models.StatsFrom(counts)
		assert.Equal(t, 33.33, stats.ResolutionRate)
	})
}

func TestDateRangeContains(t *testing.T) {
	day := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	var open *models.DateRange
	assert.True(t, open.Contains(day))

	r := &models.DateRange{From: day, To: day.AddDate(0, 0, 7)}
	assert.True(t, r.Contains(day))
	assert.True(t, r.Contains(day.AddDate(0, 0, 7)))
	assert.False(t, r.Contains(day.Add(-time.Second)))
	assert.False(t, r.Contains(day.AddDate(0, 0, 8)))
}

func TestMergeRequestSourceIDs(t *testing.T) {
	main := id.NewComplaintID()
	other := id.NewComplaintID()
	req := models.MergeRequest{ComplaintIDs: []id.ComplaintID{main, other, other}, MainID: main}
	assert.Equal(t, []id.ComplaintID{other}, req.SourceIDs())
	assert.NoError(t, req.Validate())

	req = models.MergeRequest{ComplaintIDs: []id.ComplaintID{main}, MainID: main}
	assert.True(t, dErrors.HasCode(req.Validate(), dErrors.CodeValidation))
}
