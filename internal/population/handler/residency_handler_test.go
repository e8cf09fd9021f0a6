package handler

import (
	"net/http"
	"time"

	"go.uber.org/mock/gomock"

	"civreg/internal/population/models"
	id "civreg/pkg/domain"
	dErrors "civreg/pkg/domain-errors"
	"civreg/pkg/testutil"
)

func (s *HandlerSuite) residence(end time.Time) *models.TemporaryResidence {
	r, err := models.NewTemporaryResidence(id.NewResidenceID(), id.NewPersonID(), models.TypeTemporaryAbsence,
		time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), end, "Hà Nội", "công tác", s.actor, s.now.AddDate(0, -3, 0))
	s.Require().NoError(err)
	return r
}

func (s *HandlerSuite) TestListPersonsFilter() {
	householdID := id.NewHouseholdID()
	s.residency.EXPECT().ListPersons(gomock.Any(), models.PersonFilter{
		Search:          "nguyen",
		Gender:          models.GenderFemale,
		AgeCategory:     models.AgeStudent,
		HouseholdID:     &householdID,
		IncludeInactive: true,
	}).Return(nil, 0, nil)

	path := "/population?search=nguyen&gender=female&ageCategory=student&includeInactive=true&householdId=" + householdID.String()
	rr := testutil.DoRequest(s.router, s.as("staff", testutil.NewRequest(s.T(), http.MethodGet, path)))

	testutil.AssertStatusOK(s.T(), rr)
	got := testutil.UnmarshalList[PersonResponse](s.T(), rr)
	s.Empty(got.Items)
	s.NotNil(got.Items, "empty lists render as []")

	s.Run("bad household id", func() {
		rr := testutil.DoRequest(s.router, s.as("staff", testutil.NewRequest(s.T(), http.MethodGet, "/population?householdId=abc")))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "invalid_input")
	})

	s.Run("bad flag", func() {
		rr := testutil.DoRequest(s.router, s.as("staff", testutil.NewRequest(s.T(), http.MethodGet, "/population?includeInactive=maybe")))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "validation_error")
	})
}

func (s *HandlerSuite) TestRegisterPerson() {
	person := &models.Person{
		ID:        id.NewPersonID(),
		Profile:   models.Profile{FullName: "Trần Thị B", DateOfBirth: time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)},
		IsNewborn: true,
	}
	s.residency.EXPECT().RegisterPerson(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ any, req *models.RegisterPersonRequest) (*models.Person, error) {
			s.True(req.IsNewborn)
			s.Equal("Trần Thị B", req.FullName)
			return person, nil
		})

	req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/population", map[string]any{
		"fullName":    "Trần Thị B",
		"dateOfBirth": "2025-01-02T00:00:00Z",
		"gender":      "female",
		"isNewborn":   true,
	})
	rr := testutil.DoRequest(s.router, s.as("admin", req))

	testutil.AssertStatus(s.T(), rr, http.StatusCreated)
	got := testutil.UnmarshalResponse[PersonResponse](s.T(), rr)
	s.Equal(0, got.Age)
	s.Equal(models.AgePreschool, got.AgeCategory)
}

func (s *HandlerSuite) TestMarkDeceasedTwice() {
	personID := id.NewPersonID()
	s.residency.EXPECT().MarkDeceased(gomock.Any(), personID, &models.MarkDeceasedRequest{Reason: "bệnh"}).
		Return(nil, dErrors.Validation("personId", "person is already marked dead"))

	req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/population/"+personID.String()+"/death", map[string]any{
		"deathReason": "bệnh",
	})
	rr := testutil.DoRequest(s.router, s.as("admin", req))
	testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "validation_error")
}

func (s *HandlerSuite) TestGetResidenceReportsEffectiveStatus() {
	lapsed := s.residence(time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC))
	s.residency.EXPECT().GetResidence(gomock.Any(), lapsed.ID).Return(lapsed, nil)

	rr := testutil.DoRequest(s.router, s.as("staff", testutil.NewRequest(s.T(), http.MethodGet, "/temporary-residence/"+lapsed.ID.String())))

	testutil.AssertStatusOK(s.T(), rr)
	got := testutil.UnmarshalResponse[ResidenceResponse](s.T(), rr)
	s.Equal(models.DeclarationExpired, got.Status)
	s.False(got.IsExpiringSoon)
}

func (s *HandlerSuite) TestExtendResidence() {
	r := s.residence(time.Date(2025, 3, 20, 0, 0, 0, 0, time.UTC))
	newEnd := time.Date(2025, 4, 20, 0, 0, 0, 0, time.UTC)

	s.Run("new end date is required", func() {
		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/temporary-residence/"+r.ID.String()+"/extend", map[string]any{})
		rr := testutil.DoRequest(s.router, s.as("admin", req))
		testutil.AssertStatus(s.T(), rr, http.StatusBadRequest)
	})

	s.Run("extends", func() {
		s.residency.EXPECT().Extend(gomock.Any(), r.ID, &models.ExtendResidenceRequest{NewEndDate: newEnd}).
			DoAndReturn(func(_ any, _ id.ResidenceID, req *models.ExtendResidenceRequest) (*models.TemporaryResidence, error) {
				r.ApplyExtension(req.NewEndDate, req.Reason, s.now)
				return r, nil
			})
		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/temporary-residence/"+r.ID.String()+"/extend", map[string]any{
			"newEndDate": newEnd,
		})
		rr := testutil.DoRequest(s.router, s.as("admin", req))

		testutil.AssertStatusOK(s.T(), rr)
		got := testutil.UnmarshalResponse[ResidenceResponse](s.T(), rr)
		s.Equal(models.DeclarationExtended, got.Status)
		s.Require().Len(got.Extensions, 1)
	})
}

func (s *HandlerSuite) TestExpiringDefaultsToSevenDays() {
	soon := s.residence(s.now.AddDate(0, 0, 3))
	s.residency.EXPECT().ExpiringResidences(gomock.Any(), models.ExpiringSoonDays).
		Return([]*models.TemporaryResidence{soon}, nil)

	rr := testutil.DoRequest(s.router, s.as("staff", testutil.NewRequest(s.T(), http.MethodGet, "/temporary-residence/expiring")))

	testutil.AssertStatusOK(s.T(), rr)
	got := testutil.UnmarshalResponse[[]ResidenceResponse](s.T(), rr)
	s.Require().Len(*got, 1)
	s.True((*got)[0].IsExpiringSoon)
	s.Equal(3, (*got)[0].DaysUntilEnd)
}

func (s *HandlerSuite) TestCancelResidenceStoreFailure() {
	residenceID := id.NewResidenceID()
	s.residency.EXPECT().Cancel(gomock.Any(), residenceID).
		Return(nil, dErrors.New(dErrors.CodeInternal, "connection refused"))

	rr := testutil.DoRequest(s.router, s.as("admin", testutil.NewRequest(s.T(), http.MethodPost, "/temporary-residence/"+residenceID.String()+"/cancel")))

	testutil.AssertStatus(s.T(), rr, http.StatusInternalServerError)
	body := testutil.UnmarshalErrorResponse(s.T(), rr)
	s.Empty(body.ErrorDescription)
}
