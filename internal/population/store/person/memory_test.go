package person

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"civreg/internal/population/models"
	id "civreg/pkg/domain"
	"civreg/pkg/platform/sentinel"
)

type PersonStoreSuite struct {
	suite.Suite
	store *InMemory
	ctx   context.Context
	now   time.Time
}

func TestPersonStoreSuite(t *testing.T) {
	suite.Run(t, new(PersonStoreSuite))
}

func (s *PersonStoreSuite) SetupTest() {
	s.store = NewInMemory()
	s.ctx = context.Background()
	s.now = time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)
}

func (s *PersonStoreSuite) newPerson(name string, age int, idNumber string) *models.Person {
	profile := models.Profile{
		FullName:    name,
		DateOfBirth: s.now.AddDate(-age, 0, 0),
		Gender:      models.GenderFemale,
	}
	if idNumber != "" {
		profile.IDNumber = &idNumber
	}
	p, err := models.NewPerson(id.NewPersonID(), profile, false, "", id.UserID{}, s.now)
	s.Require().NoError(err)
	return p
}

func (s *PersonStoreSuite) TestIDNumberUniqueness() {
	s.Require().NoError(s.store.Create(s.ctx, s.newPerson("A", 30, "001")))

	err := s.store.Create(s.ctx, s.newPerson("B", 30, "001"))
	s.True(sentinel.ConflictOn(err, ConstraintIDNumber))

	s.Run("persons without id number never collide", func() {
		s.Require().NoError(s.store.Create(s.ctx, s.newPerson("C", 1, "")))
		s.Require().NoError(s.store.Create(s.ctx, s.newPerson("D", 1, "")))
	})

	s.Run("update onto a taken id number conflicts", func() {
		p := s.newPerson("E", 40, "002")
		s.Require().NoError(s.store.Create(s.ctx, p))
		taken := "001"
		p.IDNumber = &taken
		s.True(sentinel.ConflictOn(s.store.Update(s.ctx, p), ConstraintIDNumber))
	})
}

func (s *PersonStoreSuite) TestAssignHousehold() {
	a := s.newPerson("A", 30, "")
	b := s.newPerson("B", 31, "")
	s.Require().NoError(s.store.Create(s.ctx, a))
	s.Require().NoError(s.store.Create(s.ctx, b))

	hid := id.NewHouseholdID()
	s.Require().NoError(s.store.AssignHousehold(s.ctx, []id.PersonID{a.ID, b.ID, id.NewPersonID()}, &hid, s.now))

	found, err := s.store.FindByIDs(s.ctx, []id.PersonID{b.ID, a.ID})
	s.Require().NoError(err)
	s.Require().Len(found, 2)
	s.Equal(b.ID, found[0].ID)
	for _, p := range found {
		s.Require().NotNil(p.HouseholdID)
		s.Equal(hid, *p.HouseholdID)
	}

	s.Require().NoError(s.store.AssignHousehold(s.ctx, []id.PersonID{a.ID}, nil, s.now))
	got, _ := s.store.FindByID(s.ctx, a.ID)
	s.Nil(got.HouseholdID)
}

func (s *PersonStoreSuite) TestList() {
	kid := s.newPerson("Lê Văn Đức", 8, "")
	adult := s.newPerson("Nguyễn Thị Hoa", 35, "079123")
	elder := s.newPerson("Trần Văn Bình", 70, "")
	dead := s.newPerson("Phạm Văn Dũng", 50, "")
	dead.ApplyDeath(s.now, "", s.now)
	for _, p := range []*models.Person{kid, adult, elder, dead} {
		s.Require().NoError(s.store.Create(s.ctx, p))
	}

	s.Run("excludes inactive and sorts by name", func() {
		items, total, err := s.store.List(s.ctx, models.PersonFilter{}, s.now)
		s.Require().NoError(err)
		s.Equal(3, total)
		s.Equal(kid.ID, items[0].ID)
	})

	s.Run("accent-insensitive search", func() {
		items, _, err := s.store.List(s.ctx, models.PersonFilter{Search: "duc"}, s.now)
		s.Require().NoError(err)
		s.Require().Len(items, 1)
		s.Equal(kid.ID, items[0].ID)
	})

	s.Run("search by id number", func() {
		items, _, err := s.store.List(s.ctx, models.PersonFilter{Search: "0791"}, s.now)
		s.Require().NoError(err)
		s.Require().Len(items, 1)
		s.Equal(adult.ID, items[0].ID)
	})

	s.Run("age category computed at read time", func() {
		items, _, err := s.store.List(s.ctx, models.PersonFilter{AgeCategory: models.AgeRetired}, s.now)
		s.Require().NoError(err)
		s.Require().Len(items, 1)
		s.Equal(elder.ID, items[0].ID)
	})

	s.Run("include inactive", func() {
		_, total, err := s.store.List(s.ctx, models.PersonFilter{IncludeInactive: true}, s.now)
		s.Require().NoError(err)
		s.Equal(4, total)
	})

	s.Run("breakdown counts active only", func() {
		b, err := s.store.Breakdown(s.ctx, s.now)
		s.Require().NoError(err)
		s.Equal(3, b.Total)
		s.Equal(3, b.ByGender[models.GenderFemale])
		s.Equal(1, b.ByAgeCategory[models.AgeStudent])
		s.Equal(1, b.ByAgeCategory[models.AgeWorking])
		s.Equal(1, b.ByAgeCategory[models.AgeRetired])
		s.Equal(0, b.ByAgeCategory[models.AgePreschool])
	})
}
