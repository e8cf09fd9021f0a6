package handler

import (
	"time"

	"civreg/internal/population/models"
)

// PersonResponse adds the age fields that depend on the request time.
type PersonResponse struct {
	*models.Person
	Age         int                `json:"age"`
	AgeCategory models.AgeCategory `json:"ageCategory"`
}

func toPerson(now time.Time) func(*models.Person) PersonResponse {
	return func(p *models.Person) PersonResponse {
		return PersonResponse{Person: p, Age: p.Age(now), AgeCategory: p.AgeCategory(now)}
	}
}

// ResidenceResponse reports the effective status, so an active declaration
// past its end date reads as expired.
type ResidenceResponse struct {
	*models.TemporaryResidence
	Status         models.DeclarationStatus `json:"status"`
	DaysUntilEnd   int                      `json:"daysUntilEnd"`
	IsExpiringSoon bool                     `json:"isExpiringSoon"`
}

func toResidence(now time.Time) func(*models.TemporaryResidence) ResidenceResponse {
	return func(r *models.TemporaryResidence) ResidenceResponse {
		return ResidenceResponse{
			TemporaryResidence: r,
			Status:             r.EffectiveStatus(now),
			DaysUntilEnd:       r.DaysUntilEnd(now),
			IsExpiringSoon:     r.IsExpiringSoon(now),
		}
	}
}

// HouseholdResponse optionally carries the member records on detail reads.
type HouseholdResponse struct {
	*models.Household
	MemberDetails []PersonResponse `json:"memberDetails,omitempty"`
}

func toHousehold(h *models.Household) HouseholdResponse {
	return HouseholdResponse{Household: h}
}
