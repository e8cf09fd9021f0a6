package models

import (
	"strings"
	"time"

	id "civreg/pkg/domain"
	dErrors "civreg/pkg/domain-errors"
)

// CreateHouseholdRequest registers a household headed by HeadID. MemberIDs
// may repeat the head; duplicates are dropped.
type CreateHouseholdRequest struct {
	HeadID    id.PersonID   `json:"headId"`
	MemberIDs []id.PersonID `json:"memberIds"`
	Address   Address       `json:"address"`
}

func (r *CreateHouseholdRequest) Normalize() {
	r.Address = r.Address.Normalize()
	r.MemberIDs = id.DedupePersonIDs(r.MemberIDs)
}

func (r *CreateHouseholdRequest) Validate() error {
	if r.HeadID.IsNil() {
		return dErrors.Validation("headId", "household head is required")
	}
	if r.Address.HouseNumber == "" {
		return dErrors.Validation("address.houseNumber", "house number is required")
	}
	return nil
}

// AllMembers returns the head followed by the other members.
func (r *CreateHouseholdRequest) AllMembers() []id.PersonID {
	return id.DedupePersonIDs(append([]id.PersonID{r.HeadID}, r.MemberIDs...))
}

type SplitHouseholdRequest struct {
	MemberIDs []id.PersonID `json:"memberIds"`
	NewHeadID id.PersonID   `json:"newHeadId"`
	Address   Address       `json:"newAddress"`
}

func (r *SplitHouseholdRequest) Normalize() {
	r.Address = r.Address.Normalize()
	r.MemberIDs = id.DedupePersonIDs(r.MemberIDs)
}

func (r *SplitHouseholdRequest) Validate() error {
	if len(r.MemberIDs) == 0 {
		return dErrors.Validation("memberIds", "at least one member must be split")
	}
	if r.NewHeadID.IsNil() {
		return dErrors.Validation("newHeadId", "new head is required")
	}
	if r.Address.HouseNumber == "" {
		return dErrors.Validation("newAddress.houseNumber", "house number is required")
	}
	return nil
}

type AddMemberRequest struct {
	PersonID     id.PersonID  `json:"personId"`
	Relationship Relationship `json:"relationshipToHead"`
}

func (r *AddMemberRequest) Validate() error {
	if r.PersonID.IsNil() {
		return dErrors.Validation("personId", "person is required")
	}
	if r.Relationship == RelationshipHead {
		return dErrors.Validation("relationshipToHead", "use change head to designate a head")
	}
	if r.Relationship != "" && !r.Relationship.IsValid() {
		return dErrors.Validation("relationshipToHead", "unknown relationship to head")
	}
	return nil
}

// RegisterPersonRequest creates a population record, optionally joining an
// existing household in the same transaction.
type RegisterPersonRequest struct {
	Profile
	IsNewborn          bool            `json:"isNewborn"`
	RelationshipToHead Relationship    `json:"relationshipToHead"`
	HouseholdID        *id.HouseholdID `json:"householdId"`
}

// UpdatePersonRequest replaces the editable profile. Household, head status,
// residency and life status are not editable here.
type UpdatePersonRequest struct {
	Profile
	RelationshipToHead Relationship `json:"relationshipToHead"`
}

type MarkDeceasedRequest struct {
	Date   time.Time `json:"deathDate"`
	Reason string    `json:"deathReason"`
}

type MarkMovedOutRequest struct {
	Date        time.Time `json:"moveOutDate"`
	Destination string    `json:"moveOutDestination"`
}

// ValidateTerminalDate defaults a zero date to now and rejects future dates.
func ValidateTerminalDate(field string, date, now time.Time) (time.Time, error) {
	if date.IsZero() {
		return now, nil
	}
	if date.After(now) {
		return time.Time{}, dErrors.Validation(field, "date cannot be in the future")
	}
	return date, nil
}

type DeclareResidenceRequest struct {
	PersonID  id.PersonID   `json:"personId"`
	Type      ResidenceType `json:"type"`
	StartDate time.Time     `json:"startDate"`
	EndDate   time.Time     `json:"endDate"`
	Address   string        `json:"address"`
	Reason    string        `json:"reason"`
}

func (r *DeclareResidenceRequest) Normalize() {
	r.Address = strings.TrimSpace(r.Address)
	r.Reason = strings.TrimSpace(r.Reason)
}

func (r *DeclareResidenceRequest) Validate() error {
	if r.PersonID.IsNil() {
		return dErrors.Validation("personId", "person is required")
	}
	return nil
}

type ExtendResidenceRequest struct {
	NewEndDate time.Time `json:"newEndDate"`
	Reason     string    `json:"reason"`
}

func (r *ExtendResidenceRequest) Validate() error {
	if r.NewEndDate.IsZero() {
		return dErrors.Validation("newEndDate", "new end date is required")
	}
	return nil
}
