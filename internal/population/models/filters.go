package models

import (
	id "civreg/pkg/domain"
	"civreg/pkg/platform/paging"
)

// HouseholdFilter narrows ListHouseholds. An empty Status means active only;
// Search matches code or house number, case-insensitively.
type HouseholdFilter struct {
	Search string
	Status HouseholdStatus
	paging.Page
}

// PersonFilter narrows ListPersons. Search matches name or id number with
// accents folded. Dead and moved-out persons are excluded unless
// IncludeInactive is set.
type PersonFilter struct {
	Search          string
	ResidenceStatus ResidenceStatus
	Gender          Gender
	AgeCategory     AgeCategory
	HouseholdID     *id.HouseholdID
	IncludeInactive bool
	paging.Page
}

// ResidenceFilter narrows ListResidences. Status is matched against the
// effective status, so active excludes records past their end date and
// expired selects exactly those.
type ResidenceFilter struct {
	Type   ResidenceType
	Status DeclarationStatus
	paging.Page
}

// PopulationBreakdown aggregates the active population.
type PopulationBreakdown struct {
	Total             int                 `json:"total"`
	Temporary         int                 `json:"temporary"`
	TemporarilyAbsent int                 `json:"temporarilyAbsent"`
	ByGender          map[Gender]int      `json:"byGender"`
	ByAgeCategory     map[AgeCategory]int `json:"byAgeCategory"`
}
