package handler

import (
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"civreg/internal/population/handler/mocks"
	"civreg/internal/population/models"
	id "civreg/pkg/domain"
	dErrors "civreg/pkg/domain-errors"
	"civreg/pkg/platform/paging"
	"civreg/pkg/requestcontext"
	"civreg/pkg/testutil"
)

type HandlerSuite struct {
	suite.Suite
	ctrl      *gomock.Controller
	ledger    *mocks.MockLedger
	residency *mocks.MockResidency
	router    chi.Router
	actor     id.UserID
	now       time.Time
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.ledger = mocks.NewMockLedger(s.ctrl)
	s.residency = mocks.NewMockResidency(s.ctrl)
	s.actor = id.UserID(uuid.New())
	s.now = time.Date(2025, 3, 15, 10, 0, 0, 0, time.UTC)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.router = chi.NewRouter()
	New(s.ledger, s.residency, logger).Register(s.router)
}

func (s *HandlerSuite) TearDownTest() {
	s.ctrl.Finish()
}

// as sends the request as an authenticated user with the given role.
func (s *HandlerSuite) as(role string, req *http.Request) *http.Request {
	req = testutil.WithActor(req, s.actor, role)
	return req.WithContext(requestcontext.WithTime(req.Context(), s.now))
}

func (s *HandlerSuite) household() *models.Household {
	head := id.NewPersonID()
	h, err := models.NewHousehold(id.NewHouseholdID(), "HK000001", head, nil,
		models.Address{HouseNumber: "12"}, s.actor, s.now)
	s.Require().NoError(err)
	return h
}

func (s *HandlerSuite) TestCreateHousehold() {
	s.Run("editor creates", func() {
		h := s.household()
		s.ledger.EXPECT().CreateHousehold(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ any, req *models.CreateHouseholdRequest) (*models.Household, error) {
				s.Equal(h.HeadID, req.HeadID)
				s.Equal("12", req.Address.HouseNumber, "address is trimmed before the service sees it")
				return h, nil
			})

		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/households", map[string]any{
			"headId":  h.HeadID,
			"address": map[string]string{"houseNumber": "  12 "},
		})
		rr := testutil.DoRequest(s.router, s.as("team_leader", req))

		testutil.AssertStatus(s.T(), rr, http.StatusCreated)
		got := testutil.UnmarshalResponse[HouseholdResponse](s.T(), rr)
		s.Equal("HK000001", got.Code)
	})

	s.Run("staff is forbidden", func() {
		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/households", map[string]any{})
		rr := testutil.DoRequest(s.router, s.as("staff", req))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusForbidden, "forbidden")
	})

	s.Run("missing head is rejected before the service", func() {
		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/households", map[string]any{
			"address": map[string]string{"houseNumber": "12"},
		})
		rr := testutil.DoRequest(s.router, s.as("admin", req))
		testutil.AssertStatus(s.T(), rr, http.StatusBadRequest)
		body := testutil.UnmarshalErrorResponse(s.T(), rr)
		s.Equal("validation_error", body.Error)
		s.Equal("headId", body.Field)
	})

	s.Run("unknown fields are rejected", func() {
		req := testutil.NewRawRequest(s.T(), http.MethodPost, "/households", `{"headId":"x","bogus":1}`)
		rr := testutil.DoRequest(s.router, s.as("admin", req))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "bad_request")
	})
}

func (s *HandlerSuite) TestGetHousehold() {
	s.Run("includes member details with ages", func() {
		h := s.household()
		head := &models.Person{
			ID:      h.HeadID,
			Profile: models.Profile{FullName: "Nguyễn Văn A", DateOfBirth: time.Date(1965, 3, 15, 0, 0, 0, 0, time.UTC)},
		}
		s.ledger.EXPECT().GetHousehold(gomock.Any(), h.ID).Return(h, nil)
		s.ledger.EXPECT().Members(gomock.Any(), h.ID).Return([]*models.Person{head}, nil)

		rr := testutil.DoRequest(s.router, s.as("staff", testutil.NewRequest(s.T(), http.MethodGet, "/households/"+h.ID.String())))

		testutil.AssertStatusOK(s.T(), rr)
		got := testutil.UnmarshalResponse[HouseholdResponse](s.T(), rr)
		s.Require().Len(got.MemberDetails, 1)
		s.Equal(60, got.MemberDetails[0].Age)
		s.Equal(models.AgeRetired, got.MemberDetails[0].AgeCategory)
	})

	s.Run("not found", func() {
		householdID := id.NewHouseholdID()
		s.ledger.EXPECT().GetHousehold(gomock.Any(), householdID).
			Return(nil, dErrors.NotFound("household", householdID.String()))

		rr := testutil.DoRequest(s.router, s.as("staff", testutil.NewRequest(s.T(), http.MethodGet, "/households/"+householdID.String())))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusNotFound, "not_found")
	})

	s.Run("malformed id", func() {
		rr := testutil.DoRequest(s.router, s.as("staff", testutil.NewRequest(s.T(), http.MethodGet, "/households/not-a-uuid")))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "invalid_input")
	})
}

func (s *HandlerSuite) TestListHouseholds() {
	h := s.household()
	s.ledger.EXPECT().ListHouseholds(gomock.Any(), models.HouseholdFilter{
		Search: "hk00",
		Status: models.HouseholdStatusInactive,
		Page:   paging.Page{Limit: 5, Offset: 10},
	}).Return([]*models.Household{h}, 11, nil)

	rr := testutil.DoRequest(s.router, s.as("accountant",
		testutil.NewRequest(s.T(), http.MethodGet, "/households?search=hk00&status=inactive&limit=5&offset=10")))

	testutil.AssertStatusOK(s.T(), rr)
	got := testutil.UnmarshalList[HouseholdResponse](s.T(), rr)
	s.Equal(11, got.Total)
	s.Equal(5, got.Limit)
	s.Equal(10, got.Offset)
	s.Require().Len(got.Items, 1)

	s.Run("bad limit", func() {
		rr := testutil.DoRequest(s.router, s.as("staff", testutil.NewRequest(s.T(), http.MethodGet, "/households?limit=many")))
		testutil.AssertStatus(s.T(), rr, http.StatusBadRequest)
	})
}

func (s *HandlerSuite) TestSplitHousehold() {
	source := s.household()
	moving := id.NewPersonID()
	created := s.household()
	created.Code = "HK000002"

	s.ledger.EXPECT().SplitHousehold(gomock.Any(), source.ID, &models.SplitHouseholdRequest{
		MemberIDs: []id.PersonID{moving},
		NewHeadID: moving,
		Address:   models.Address{HouseNumber: "7A"},
	}).Return(created, nil)

	req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/households/"+source.ID.String()+"/split", map[string]any{
		"memberIds":  []id.PersonID{moving, moving},
		"newHeadId":  moving,
		"newAddress": map[string]string{"houseNumber": "7A"},
	})
	rr := testutil.DoRequest(s.router, s.as("deputy_leader", req))

	testutil.AssertStatus(s.T(), rr, http.StatusCreated)
	testutil.AssertJSONContains(s.T(), rr, "code", "HK000002")
}

func (s *HandlerSuite) TestChangeHead() {
	h := s.household()
	newHead := id.NewPersonID()

	s.Run("requires a new head", func() {
		req := testutil.NewJSONRequest(s.T(), http.MethodPut, "/households/"+h.ID.String()+"/head", map[string]any{})
		rr := testutil.DoRequest(s.router, s.as("admin", req))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "validation_error")
	})

	s.Run("service validation surfaces as 400", func() {
		s.ledger.EXPECT().ChangeHead(gomock.Any(), h.ID, newHead).
			Return(nil, dErrors.Validation("newHeadId", "new head must be a member of the household"))
		req := testutil.NewJSONRequest(s.T(), http.MethodPut, "/households/"+h.ID.String()+"/head", map[string]any{"newHeadId": newHead})
		rr := testutil.DoRequest(s.router, s.as("admin", req))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "validation_error")
	})
}

func (s *HandlerSuite) TestRemoveMember() {
	h := s.household()
	member := id.NewPersonID()
	s.ledger.EXPECT().RemoveMember(gomock.Any(), h.ID, member, "chuyển đi").Return(h, nil)

	path := "/households/" + h.ID.String() + "/members/" + member.String() + "?reason=chuy%E1%BB%83n%20%C4%91i"
	rr := testutil.DoRequest(s.router, s.as("admin", testutil.NewRequest(s.T(), http.MethodDelete, path)))
	testutil.AssertStatusOK(s.T(), rr)
}

func (s *HandlerSuite) TestDeactivateNeedsLeader() {
	h := s.household()

	rr := testutil.DoRequest(s.router, s.as("deputy_leader", testutil.NewRequest(s.T(), http.MethodDelete, "/households/"+h.ID.String())))
	testutil.AssertStatus(s.T(), rr, http.StatusForbidden)

	h.Status = models.HouseholdStatusInactive
	s.ledger.EXPECT().Deactivate(gomock.Any(), h.ID).Return(h, nil)
	rr = testutil.DoRequest(s.router, s.as("team_leader", testutil.NewRequest(s.T(), http.MethodDelete, "/households/"+h.ID.String())))
	testutil.AssertStatusOK(s.T(), rr)
	testutil.AssertJSONContains(s.T(), rr, "status", "inactive")
}

func (s *HandlerSuite) TestPartialApplicationReportsApplied() {
	h := s.household()
	s.ledger.EXPECT().AddMember(gomock.Any(), h.ID, gomock.Any()).
		Return(nil, dErrors.Partial("add_member", []string{"household:HK000001"}, dErrors.New(dErrors.CodeInternal, "boom")))

	req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/households/"+h.ID.String()+"/members", map[string]any{
		"personId": id.NewPersonID(),
	})
	rr := testutil.DoRequest(s.router, s.as("admin", req))

	testutil.AssertPartial(s.T(), rr, "household:HK000001")
}
