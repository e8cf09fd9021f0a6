package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"civreg/internal/population/models"
	householdstore "civreg/internal/population/store/household"
	personstore "civreg/internal/population/store/person"
	residencestore "civreg/internal/population/store/residence"
	"civreg/internal/storage"
	id "civreg/pkg/domain"
	dErrors "civreg/pkg/domain-errors"
	auditmemory "civreg/pkg/platform/audit/store/memory"
	"civreg/pkg/platform/audit/publisher"
	"civreg/pkg/platform/tx"
	"civreg/pkg/requestcontext"
)

// registrySuite wires both services over the in-memory stores.
type registrySuite struct {
	suite.Suite
	ctx        context.Context
	now        time.Time
	households *householdstore.InMemory
	persons    *personstore.InMemory
	residences *residencestore.InMemory
	sequence   *storage.MemorySequence
	auditStore *auditmemory.InMemoryStore
	ledger     *Ledger
	residency  *Residency
}

func (s *registrySuite) SetupTest() {
	s.now = time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)
	s.ctx = requestcontext.WithUserID(s.ctx, id.UserID(uuid.New()))

	s.households = householdstore.NewInMemory()
	s.persons = personstore.NewInMemory()
	s.residences = residencestore.NewInMemory()
	s.sequence = storage.NewMemorySequence()
	s.auditStore = auditmemory.NewInMemoryStore()
	pub := publisher.NewPublisher(s.auditStore)
	runner := tx.NewMemoryRunner()

	s.ledger = NewLedger(s.households, s.persons, s.sequence, runner, WithAuditPublisher(pub))
	s.residency = NewResidency(s.households, s.persons, s.residences, runner, WithAuditPublisher(pub))
}

func (s *registrySuite) register(name string, dob time.Time) *models.Person {
	p, err := s.residency.RegisterPerson(s.ctx, &models.RegisterPersonRequest{
		Profile: models.Profile{FullName: name, DateOfBirth: dob, Gender: models.GenderFemale},
	})
	s.Require().NoError(err)
	return p
}

func (s *registrySuite) adult(name string) *models.Person {
	return s.register(name, time.Date(1985, 6, 15, 0, 0, 0, 0, time.UTC))
}

func (s *registrySuite) person(personID id.PersonID) *models.Person {
	p, err := s.persons.FindByID(s.ctx, personID)
	s.Require().NoError(err)
	return p
}

func (s *registrySuite) household(householdID id.HouseholdID) *models.Household {
	h, err := s.households.FindByID(s.ctx, householdID)
	s.Require().NoError(err)
	return h
}

func (s *registrySuite) createHousehold(head *models.Person, others ...*models.Person) *models.Household {
	ids := make([]id.PersonID, 0, len(others))
	for _, p := range others {
		ids = append(ids, p.ID)
	}
	h, err := s.ledger.CreateHousehold(s.ctx, &models.CreateHouseholdRequest{
		HeadID:    head.ID,
		MemberIDs: ids,
		Address:   models.Address{HouseNumber: "12", Street: "Tạ Quang Bửu"},
	})
	s.Require().NoError(err)
	return h
}

func (s *registrySuite) requireCode(err error, code dErrors.Code) {
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, code), "expected %s, got %v", code, err)
}

type LedgerSuite struct {
	registrySuite
}

func TestLedgerSuite(t *testing.T) {
	suite.Run(t, new(LedgerSuite))
}

func (s *LedgerSuite) TestCreateHousehold() {
	s.Run("first household is HK000001 with the head first", func() {
		head := s.adult("Nguyễn Văn An")
		wife := s.adult("Trần Thị Bình")

		h := s.createHousehold(head, wife, head)

		s.Equal("HK000001", h.Code)
		s.Equal([]id.PersonID{head.ID, wife.ID}, h.Members)
		s.Require().Len(h.History, 1)
		s.Equal(models.EventCreated, h.History[0].Event)

		s.Equal(models.RelationshipHead, s.person(head.ID).RelationshipToHead)
		for _, m := range h.Members {
			s.Require().NotNil(s.person(m).HouseholdID)
			s.Equal(h.ID, *s.person(m).HouseholdID)
		}

		events, err := s.auditStore.ListBySubject(s.ctx, "household:HK000001")
		s.Require().NoError(err)
		s.Len(events, 1)
	})

	s.Run("member of another active household is rejected", func() {
		head := s.adult("Lê Văn Cường")
		taken := s.adult("Phạm Thị Dung")
		s.createHousehold(taken)

		_, err := s.ledger.CreateHousehold(s.ctx, &models.CreateHouseholdRequest{
			HeadID:    head.ID,
			MemberIDs: []id.PersonID{taken.ID},
			Address:   models.Address{HouseNumber: "3"},
		})
		s.requireCode(err, dErrors.CodeValidation)
	})

	s.Run("unknown member is not found", func() {
		head := s.adult("Hoàng Văn Em")
		_, err := s.ledger.CreateHousehold(s.ctx, &models.CreateHouseholdRequest{
			HeadID:    head.ID,
			MemberIDs: []id.PersonID{id.NewPersonID()},
			Address:   models.Address{HouseNumber: "4"},
		})
		s.requireCode(err, dErrors.CodeNotFound)
	})

	s.Run("missing house number is a validation error", func() {
		head := s.adult("Đỗ Thị Giang")
		_, err := s.ledger.CreateHousehold(s.ctx, &models.CreateHouseholdRequest{HeadID: head.ID})
		s.requireCode(err, dErrors.CodeValidation)
	})
}

func (s *LedgerSuite) TestCodeCollisionIsRetried() {
	first := s.createHousehold(s.adult("Nguyễn Văn An"))
	s.Equal("HK000001", first.Code)

	// Rewind so the next allocation collides with HK000001.
	s.sequence.Set(storage.SequenceHousehold, 0)
	second := s.createHousehold(s.adult("Trần Văn Bảo"))
	s.Equal("HK000002", second.Code)
}

func (s *LedgerSuite) TestSplitHousehold() {
	head := s.adult("Nguyễn Văn An")
	son := s.adult("Nguyễn Văn Bình")
	daughterInLaw := s.adult("Lê Thị Cúc")
	grandchild := s.register("Nguyễn Văn Dũng", time.Date(2020, 2, 1, 0, 0, 0, 0, time.UTC))
	source := s.createHousehold(head, son, daughterInLaw, grandchild)

	s.Run("rejects a new head outside the split members", func() {
		_, err := s.ledger.SplitHousehold(s.ctx, source.ID, &models.SplitHouseholdRequest{
			MemberIDs: []id.PersonID{daughterInLaw.ID},
			NewHeadID: son.ID,
			Address:   models.Address{HouseNumber: "20"},
		})
		s.requireCode(err, dErrors.CodeValidation)
	})

	s.Run("rejects splitting the source head away", func() {
		_, err := s.ledger.SplitHousehold(s.ctx, source.ID, &models.SplitHouseholdRequest{
			MemberIDs: []id.PersonID{head.ID, son.ID},
			NewHeadID: son.ID,
			Address:   models.Address{HouseNumber: "20"},
		})
		s.requireCode(err, dErrors.CodeValidation)
	})

	s.Run("moved members belong to exactly one household", func() {
		moved := []id.PersonID{son.ID, daughterInLaw.ID, grandchild.ID}
		created, err := s.ledger.SplitHousehold(s.ctx, source.ID, &models.SplitHouseholdRequest{
			MemberIDs: moved,
			NewHeadID: son.ID,
			Address:   models.Address{HouseNumber: "20"},
		})
		s.Require().NoError(err)

		src := s.household(source.ID)
		dst := s.household(created.ID)
		s.Equal([]id.PersonID{head.ID}, src.Members)
		s.Equal(moved, dst.Members)
		s.Equal(son.ID, dst.HeadID)
		for _, m := range moved {
			s.False(src.HasMember(m))
			s.Equal(created.ID, *s.person(m).HouseholdID)
		}
		s.Equal(models.RelationshipHead, s.person(son.ID).RelationshipToHead)

		last := src.History[len(src.History)-1]
		s.Equal(models.EventMemberRemoved, last.Event)
		s.Require().NotNil(last.RelatedHousehold)
		s.Equal(created.ID, *last.RelatedHousehold)

		s.Require().Len(dst.History, 1)
		s.Equal(models.EventSplitFrom, dst.History[0].Event)
		s.Equal(source.ID, *dst.History[0].RelatedHousehold)
	})

	s.Run("split of an unknown household is not found", func() {
		_, err := s.ledger.SplitHousehold(s.ctx, id.NewHouseholdID(), &models.SplitHouseholdRequest{
			MemberIDs: []id.PersonID{son.ID},
			NewHeadID: son.ID,
			Address:   models.Address{HouseNumber: "1"},
		})
		s.requireCode(err, dErrors.CodeNotFound)
	})
}

func (s *LedgerSuite) TestChangeHead() {
	head := s.adult("Nguyễn Văn An")
	wife := s.adult("Trần Thị Bình")
	h := s.createHousehold(head, wife)

	s.Run("same head is a no-op", func() {
		got, err := s.ledger.ChangeHead(s.ctx, h.ID, head.ID)
		s.Require().NoError(err)
		s.Len(got.History, 1)
	})

	s.Run("non-member is rejected", func() {
		outsider := s.adult("Lê Văn Cường")
		_, err := s.ledger.ChangeHead(s.ctx, h.ID, outsider.ID)
		s.requireCode(err, dErrors.CodeValidation)
	})

	s.Run("swaps relationships and snapshots names", func() {
		got, err := s.ledger.ChangeHead(s.ctx, h.ID, wife.ID)
		s.Require().NoError(err)
		s.Equal(wife.ID, got.HeadID)

		stored := s.household(h.ID)
		last := stored.History[len(stored.History)-1]
		s.Equal(models.EventChangedHead, last.Event)
		s.Equal("Head changed from Nguyễn Văn An to Trần Thị Bình", last.Description)
		s.Equal(models.RelationshipOther, s.person(head.ID).RelationshipToHead)
		s.Equal(models.RelationshipHead, s.person(wife.ID).RelationshipToHead)
	})
}

func (s *LedgerSuite) TestMembership() {
	head := s.adult("Nguyễn Văn An")
	h := s.createHousehold(head)
	lodger := s.adult("Phạm Văn Đạt")

	s.Run("add member appends and points the person at the household", func() {
		got, err := s.ledger.AddMember(s.ctx, h.ID, &models.AddMemberRequest{PersonID: lodger.ID, Relationship: models.RelationshipOther})
		s.Require().NoError(err)
		s.Equal([]id.PersonID{head.ID, lodger.ID}, got.Members)
		s.Equal(h.ID, *s.person(lodger.ID).HouseholdID)
	})

	s.Run("adding twice is rejected", func() {
		_, err := s.ledger.AddMember(s.ctx, h.ID, &models.AddMemberRequest{PersonID: lodger.ID})
		s.requireCode(err, dErrors.CodeValidation)
	})

	s.Run("removing the head is rejected", func() {
		_, err := s.ledger.RemoveMember(s.ctx, h.ID, head.ID, "")
		s.requireCode(err, dErrors.CodeValidation)
		s.True(s.household(h.ID).HasMember(head.ID))
	})

	s.Run("remove member clears the reference", func() {
		got, err := s.ledger.RemoveMember(s.ctx, h.ID, lodger.ID, "moved to relatives")
		s.Require().NoError(err)
		s.Equal([]id.PersonID{head.ID}, got.Members)
		s.Nil(s.person(lodger.ID).HouseholdID)
		last := got.History[len(got.History)-1]
		s.Equal(models.EventMemberRemoved, last.Event)
		s.Contains(last.Description, "moved to relatives")
	})
}

func (s *LedgerSuite) TestDeactivate() {
	head := s.adult("Nguyễn Văn An")
	h := s.createHousehold(head)

	got, err := s.ledger.Deactivate(s.ctx, h.ID)
	s.Require().NoError(err)
	s.Equal(models.HouseholdStatusInactive, got.Status)
	s.Equal([]id.PersonID{head.ID}, got.Members)
	s.Len(got.History, 2)

	again, err := s.ledger.Deactivate(s.ctx, h.ID)
	s.Require().NoError(err)
	s.Len(again.History, 2)

	_, err = s.ledger.AddMember(s.ctx, h.ID, &models.AddMemberRequest{PersonID: s.adult("Trần Văn Bảo").ID})
	s.requireCode(err, dErrors.CodeValidation)

	s.Run("members of an inactive household may found a new one", func() {
		fresh := s.createHousehold(s.person(head.ID))
		s.Equal(fresh.ID, *s.person(head.ID).HouseholdID)
	})
}

func (s *LedgerSuite) TestHistoryIsAppendOnly() {
	head := s.adult("Nguyễn Văn An")
	wife := s.adult("Trần Thị Bình")
	h := s.createHousehold(head, wife)
	before := s.household(h.ID).History

	_, err := s.ledger.UpdateAddress(s.ctx, h.ID, models.Address{HouseNumber: "14"})
	s.Require().NoError(err)
	_, err = s.ledger.ChangeHead(s.ctx, h.ID, wife.ID)
	s.Require().NoError(err)
	_, err = s.ledger.AddMember(s.ctx, h.ID, &models.AddMemberRequest{PersonID: s.adult("Lê Văn Cường").ID})
	s.Require().NoError(err)

	after := s.household(h.ID).History
	s.Require().Len(after, len(before)+2)
	s.Equal(before, after[:len(before)])
	s.Equal("14", s.household(h.ID).Address.HouseNumber)
}

func (s *LedgerSuite) TestListHouseholds() {
	s.createHousehold(s.adult("Nguyễn Văn An"))
	second := s.createHousehold(s.adult("Trần Văn Bảo"))
	_, err := s.ledger.Deactivate(s.ctx, second.ID)
	s.Require().NoError(err)

	items, total, err := s.ledger.ListHouseholds(s.ctx, models.HouseholdFilter{})
	s.Require().NoError(err)
	s.Equal(1, total)
	s.Equal("HK000001", items[0].Code)

	items, total, err = s.ledger.ListHouseholds(s.ctx, models.HouseholdFilter{Status: models.HouseholdStatusInactive})
	s.Require().NoError(err)
	s.Equal(1, total)
	s.Equal("HK000002", items[0].Code)

	_, _, err = s.ledger.ListHouseholds(s.ctx, models.HouseholdFilter{Status: "archived"})
	s.requireCode(err, dErrors.CodeValidation)
}
