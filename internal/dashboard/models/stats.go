// Package models holds the dashboard snapshot.
package models

import (
	"time"

	popmodels "civreg/internal/population/models"
	id "civreg/pkg/domain"
)

// Stats is the dashboard snapshot over the active population.
type Stats struct {
	TotalHouseholds    int                           `json:"totalHouseholds"`
	TotalPopulation    int                           `json:"totalPopulation"`
	TemporaryResidents int                           `json:"temporaryResidents"`
	TemporarilyAbsent  int                           `json:"temporarilyAbsent"`
	AgeDistribution    map[popmodels.AgeCategory]int `json:"ageDistribution"`
	GenderDistribution map[popmodels.Gender]int      `json:"genderDistribution"`
	ExpiringResidences []ExpiringResidence           `json:"expiringResidences"`
	GeneratedAt        time.Time                     `json:"generatedAt"`
}

// ExpiringResidence is an active declaration ending within the expiry window.
type ExpiringResidence struct {
	ID           id.ResidenceID          `json:"id"`
	PersonID     id.PersonID             `json:"personId"`
	PersonName   string                  `json:"personName"`
	Type         popmodels.ResidenceType `json:"type"`
	EndDate      time.Time               `json:"endDate"`
	DaysUntilEnd int                     `json:"daysUntilEnd"`
}

// RecentActivities lists the latest household changes and person
// registrations, newest first.
type RecentActivities struct {
	Households []RecentHousehold `json:"recentHouseholds"`
	Persons    []RecentPerson    `json:"recentPopulation"`
}

type RecentHousehold struct {
	ID        id.HouseholdID            `json:"id"`
	Code      string                    `json:"householdCode"`
	HeadName  string                    `json:"headName,omitempty"`
	Address   popmodels.Address         `json:"address"`
	Status    popmodels.HouseholdStatus `json:"status"`
	UpdatedAt time.Time                 `json:"updatedAt"`
}

type RecentPerson struct {
	ID            id.PersonID `json:"id"`
	FullName      string      `json:"fullName"`
	DateOfBirth   time.Time   `json:"dateOfBirth"`
	HouseholdCode string      `json:"householdCode,omitempty"`
	CreatedAt     time.Time   `json:"createdAt"`
}
