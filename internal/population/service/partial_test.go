package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"civreg/internal/population/models"
	householdstore "civreg/internal/population/store/household"
	"civreg/internal/population/service/mocks"
	"civreg/internal/storage"
	id "civreg/pkg/domain"
	dErrors "civreg/pkg/domain-errors"
	"civreg/pkg/platform/sentinel"
	"civreg/pkg/platform/tx"
	"civreg/pkg/requestcontext"
)

type atomicRunner struct{}

func (atomicRunner) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func (atomicRunner) Atomic() bool { return true }

// FailureSuite injects store failures midway through multi-write operations.
type FailureSuite struct {
	suite.Suite
	ctrl           *gomock.Controller
	mockHouseholds *mocks.MockHouseholdStore
	mockPersons    *mocks.MockPersonStore
	mockResidences *mocks.MockResidenceStore
	mockSequence   *mocks.MockSequenceAllocator
	mockAudit      *mocks.MockAuditPublisher
	ctx            context.Context
	now            time.Time
}

func TestFailureSuite(t *testing.T) {
	suite.Run(t, new(FailureSuite))
}

func (s *FailureSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.mockHouseholds = mocks.NewMockHouseholdStore(s.ctrl)
	s.mockPersons = mocks.NewMockPersonStore(s.ctrl)
	s.mockResidences = mocks.NewMockResidenceStore(s.ctrl)
	s.mockSequence = mocks.NewMockSequenceAllocator(s.ctrl)
	s.mockAudit = mocks.NewMockAuditPublisher(s.ctrl)
	s.now = time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)
}

func (s *FailureSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *FailureSuite) ledger(runner tx.Runner) *Ledger {
	return NewLedger(s.mockHouseholds, s.mockPersons, s.mockSequence, runner, WithAuditPublisher(s.mockAudit))
}

func (s *FailureSuite) expectCreateUntilAssign(head *models.Person) {
	s.mockPersons.EXPECT().FindByIDs(gomock.Any(), []id.PersonID{head.ID}).Return([]*models.Person{head}, nil)
	s.mockSequence.EXPECT().Next(gomock.Any(), storage.SequenceHousehold).Return(int64(1), nil)
	s.mockHouseholds.EXPECT().Create(gomock.Any(), gomock.Any()).Return(nil)
	s.mockPersons.EXPECT().AssignHousehold(gomock.Any(), []id.PersonID{head.ID}, gomock.Any(), s.now).
		Return(errors.New("connection reset"))
}

func (s *FailureSuite) newPerson(name string) *models.Person {
	p, err := models.NewPerson(id.NewPersonID(), models.Profile{
		FullName:    name,
		DateOfBirth: time.Date(1980, 1, 1, 0, 0, 0, 0, time.UTC),
		Gender:      models.GenderMale,
	}, false, "", id.UserID(uuid.New()), s.now)
	s.Require().NoError(err)
	return p
}

func (s *FailureSuite) TestCreateHouseholdPartialApplication() {
	s.Run("non-atomic runner reports what was applied", func() {
		head := s.newPerson("Nguyễn Văn An")
		s.expectCreateUntilAssign(head)

		_, err := s.ledger(tx.NewMemoryRunner()).CreateHousehold(s.ctx, &models.CreateHouseholdRequest{
			HeadID:  head.ID,
			Address: models.Address{HouseNumber: "1"},
		})
		s.Require().Error(err)
		de, ok := dErrors.As(err)
		s.Require().True(ok)
		s.Equal(dErrors.CodePartialApplication, de.Code)
		s.Equal([]string{"household:HK000001"}, de.Applied)
	})

	s.Run("atomic runner surfaces the underlying failure", func() {
		head := s.newPerson("Trần Văn Bảo")
		s.expectCreateUntilAssign(head)

		_, err := s.ledger(atomicRunner{}).CreateHousehold(s.ctx, &models.CreateHouseholdRequest{
			HeadID:  head.ID,
			Address: models.Address{HouseNumber: "1"},
		})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
		s.False(dErrors.HasCode(err, dErrors.CodePartialApplication))
	})
}

func (s *FailureSuite) TestCodeAllocationGivesUp() {
	head := s.newPerson("Nguyễn Văn An")
	s.mockPersons.EXPECT().FindByIDs(gomock.Any(), gomock.Any()).Return([]*models.Person{head}, nil)
	gomock.InOrder(
		s.mockSequence.EXPECT().Next(gomock.Any(), storage.SequenceHousehold).Return(int64(7), nil),
		s.mockSequence.EXPECT().Next(gomock.Any(), storage.SequenceHousehold).Return(int64(8), nil),
		s.mockSequence.EXPECT().Next(gomock.Any(), storage.SequenceHousehold).Return(int64(9), nil),
	)
	s.mockHouseholds.EXPECT().Create(gomock.Any(), gomock.Any()).
		Return(sentinel.Conflict(householdstore.ConstraintCode)).Times(maxCodeAttempts)

	_, err := s.ledger(tx.NewMemoryRunner()).CreateHousehold(s.ctx, &models.CreateHouseholdRequest{
		HeadID:  head.ID,
		Address: models.Address{HouseNumber: "1"},
	})
	s.Require().Error(err)
	de, ok := dErrors.As(err)
	s.Require().True(ok)
	s.Equal(dErrors.CodeDuplicateKey, de.Code)
	s.Equal("code", de.Field)
}

func (s *FailureSuite) TestAuditFailureAbortsOperation() {
	head := s.newPerson("Nguyễn Văn An")
	s.mockPersons.EXPECT().FindByIDs(gomock.Any(), gomock.Any()).Return([]*models.Person{head}, nil)
	s.mockSequence.EXPECT().Next(gomock.Any(), gomock.Any()).Return(int64(1), nil)
	s.mockHouseholds.EXPECT().Create(gomock.Any(), gomock.Any()).Return(nil)
	s.mockPersons.EXPECT().AssignHousehold(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)
	s.mockPersons.EXPECT().Update(gomock.Any(), gomock.Any()).Return(nil)
	s.mockAudit.EXPECT().Emit(gomock.Any(), gomock.Any()).Return(errors.New("outbox down"))

	_, err := s.ledger(atomicRunner{}).CreateHousehold(s.ctx, &models.CreateHouseholdRequest{
		HeadID:  head.ID,
		Address: models.Address{HouseNumber: "1"},
	})
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))
}

func (s *FailureSuite) TestCancelPartialApplication() {
	person := s.newPerson("Nguyễn Văn An")
	decl, err := models.NewTemporaryResidence(id.NewResidenceID(), person.ID, models.TypeTemporaryResidence,
		s.now, s.now.AddDate(0, 1, 0), "Ký túc xá", "", id.UserID(uuid.New()), s.now)
	s.Require().NoError(err)

	s.mockResidences.EXPECT().FindByID(gomock.Any(), decl.ID).Return(decl, nil)
	s.mockPersons.EXPECT().FindByID(gomock.Any(), person.ID).Return(person, nil)
	s.mockResidences.EXPECT().Update(gomock.Any(), gomock.Any()).Return(nil)
	s.mockPersons.EXPECT().Update(gomock.Any(), gomock.Any()).Return(errors.New("write timeout"))

	residency := NewResidency(s.mockHouseholds, s.mockPersons, s.mockResidences, tx.NewMemoryRunner())
	_, err = residency.Cancel(s.ctx, decl.ID)
	s.Require().Error(err)
	de, ok := dErrors.As(err)
	s.Require().True(ok)
	s.Equal(dErrors.CodePartialApplication, de.Code)
	s.Equal([]string{"residence:" + decl.ID.String()}, de.Applied)
}
