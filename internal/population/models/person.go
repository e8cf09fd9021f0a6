package models

import (
	"strings"
	"time"

	id "civreg/pkg/domain"
	dErrors "civreg/pkg/domain-errors"
)

type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
	GenderOther  Gender = "other"
)

func (g Gender) IsValid() bool {
	switch g {
	case GenderMale, GenderFemale, GenderOther:
		return true
	}
	return false
}

type Relationship string

const (
	RelationshipHead    Relationship = "head"
	RelationshipSpouse  Relationship = "spouse"
	RelationshipChild   Relationship = "child"
	RelationshipParent  Relationship = "parent"
	RelationshipSibling Relationship = "sibling"
	RelationshipOther   Relationship = "other"
)

func (r Relationship) IsValid() bool {
	switch r {
	case RelationshipHead, RelationshipSpouse, RelationshipChild,
		RelationshipParent, RelationshipSibling, RelationshipOther:
		return true
	}
	return false
}

// ResidenceStatus is a person's residency classification.
type ResidenceStatus string

const (
	ResidencePermanent         ResidenceStatus = "permanent"
	ResidenceTemporary         ResidenceStatus = "temporary"
	ResidenceTemporarilyAbsent ResidenceStatus = "temporarily_absent"
)

func (s ResidenceStatus) IsValid() bool {
	switch s {
	case ResidencePermanent, ResidenceTemporary, ResidenceTemporarilyAbsent:
		return true
	}
	return false
}

type Education string

const (
	EducationNone         Education = ""
	EducationPrimary      Education = "primary"
	EducationSecondary    Education = "secondary"
	EducationHighSchool   Education = "high_school"
	EducationVocational   Education = "vocational"
	EducationCollege      Education = "college"
	EducationUniversity   Education = "university"
	EducationPostgraduate Education = "postgraduate"
	EducationOther        Education = "other"
)

func (e Education) IsValid() bool {
	switch e {
	case EducationNone, EducationPrimary, EducationSecondary, EducationHighSchool,
		EducationVocational, EducationCollege, EducationUniversity,
		EducationPostgraduate, EducationOther:
		return true
	}
	return false
}

type AgeCategory string

const (
	AgePreschool AgeCategory = "preschool"
	AgeStudent   AgeCategory = "student"
	AgeWorking   AgeCategory = "working"
	AgeRetired   AgeCategory = "retired"
)

func (c AgeCategory) IsValid() bool {
	switch c {
	case AgePreschool, AgeStudent, AgeWorking, AgeRetired:
		return true
	}
	return false
}

// AgeCategories lists categories youngest first.
var AgeCategories = []AgeCategory{AgePreschool, AgeStudent, AgeWorking, AgeRetired}

const (
	// NewbornPreviousAddress marks a newborn's previous address.
	NewbornPreviousAddress = "Mới sinh"
	DefaultNationality     = "Việt Nam"
	DefaultEthnicity       = "Kinh"
)

// Age returns completed years between dob and now. A birthday later this
// year than now's month and day does not count yet.
func Age(dob, now time.Time) int {
	dob = dob.In(now.Location())
	age := now.Year() - dob.Year()
	if now.Month() < dob.Month() || (now.Month() == dob.Month() && now.Day() < dob.Day()) {
		age--
	}
	if age < 0 {
		return 0
	}
	return age
}

// AgeCategoryOf buckets an age: <6 preschool, 6-17 student, 18-59 working,
// 60 and over retired.
func AgeCategoryOf(age int) AgeCategory {
	switch {
	case age < 6:
		return AgePreschool
	case age < 18:
		return AgeStudent
	case age < 60:
		return AgeWorking
	default:
		return AgeRetired
	}
}

// BirthRange returns the date-of-birth window [from, to) whose holders fall
// in category on now's date. Used to push age filters down to stores.
func BirthRange(category AgeCategory, now time.Time) (from, to time.Time) {
	// bornAfter(n) is the first birth date whose holder is still under n.
	bornAfter := func(n int) time.Time {
		d := time.Date(now.Year()-n, now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
		if d.Month() != now.Month() {
			// Feb 29 in a common year: every February birthday has passed.
			return time.Date(now.Year()-n, now.Month()+1, 1, 0, 0, 0, 0, now.Location())
		}
		return d.AddDate(0, 0, 1)
	}
	switch category {
	case AgePreschool:
		return bornAfter(6), bornAfter(0)
	case AgeStudent:
		return bornAfter(18), bornAfter(6)
	case AgeWorking:
		return bornAfter(60), bornAfter(18)
	default:
		return time.Time{}, bornAfter(60)
	}
}

type NativePlace struct {
	Province string `json:"province,omitempty"`
	District string `json:"district,omitempty"`
	Ward     string `json:"ward,omitempty"`
}

// Profile holds the freely editable fields of a population record. Household
// membership, relationship to head, residency and life status are owned by
// the ledger and residency operations and live on Person.
type Profile struct {
	FullName               string      `json:"fullName"`
	Alias                  string      `json:"alias,omitempty"`
	DateOfBirth            time.Time   `json:"dateOfBirth"`
	Gender                 Gender      `json:"gender"`
	IDNumber               *string     `json:"idNumber"`
	IDIssueDate            *time.Time  `json:"idIssueDate,omitempty"`
	IDIssuePlace           string      `json:"idIssuePlace,omitempty"`
	Nationality            string      `json:"nationality"`
	Ethnicity              string      `json:"ethnicity"`
	Religion               string      `json:"religion,omitempty"`
	NativePlace            NativePlace `json:"nativePlace"`
	Occupation             *string     `json:"occupation"`
	Education              Education   `json:"education,omitempty"`
	PermanentResidenceDate *time.Time  `json:"permanentResidenceDate,omitempty"`
	PreviousAddress        string      `json:"previousAddress,omitempty"`
	Notes                  string      `json:"notes,omitempty"`
}

// Normalize trims strings, collapses blank optional strings to nil and
// applies nationality and ethnicity defaults.
func (p Profile) Normalize() Profile {
	p.FullName = strings.TrimSpace(p.FullName)
	p.Alias = strings.TrimSpace(p.Alias)
	p.IDIssuePlace = strings.TrimSpace(p.IDIssuePlace)
	p.Nationality = strings.TrimSpace(p.Nationality)
	p.Ethnicity = strings.TrimSpace(p.Ethnicity)
	p.Religion = strings.TrimSpace(p.Religion)
	p.PreviousAddress = strings.TrimSpace(p.PreviousAddress)
	p.IDNumber = trimOptional(p.IDNumber)
	p.Occupation = trimOptional(p.Occupation)
	if p.Nationality == "" {
		p.Nationality = DefaultNationality
	}
	if p.Ethnicity == "" {
		p.Ethnicity = DefaultEthnicity
	}
	return p
}

func (p Profile) Validate(now time.Time) error {
	if p.FullName == "" {
		return dErrors.Invariant("fullName", "full name is required")
	}
	if p.DateOfBirth.IsZero() {
		return dErrors.Invariant("dateOfBirth", "date of birth is required")
	}
	if p.DateOfBirth.After(now) {
		return dErrors.Invariant("dateOfBirth", "date of birth cannot be in the future")
	}
	if !p.Gender.IsValid() {
		return dErrors.Invariant("gender", "gender must be male, female or other")
	}
	if !p.Education.IsValid() {
		return dErrors.Invariant("education", "unknown education level")
	}
	return nil
}

// ApplyNewbornRules clears id number and occupation and marks the previous
// address as newborn.
func (p Profile) ApplyNewbornRules() Profile {
	p.IDNumber = nil
	p.IDIssueDate = nil
	p.IDIssuePlace = ""
	p.Occupation = nil
	p.PreviousAddress = NewbornPreviousAddress
	return p
}

func trimOptional(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

// Person is a population record.
//
// Invariants:
//   - RelationshipToHead is head iff the person heads HouseholdID
//   - a newborn has no id number or occupation
//   - IsDead and HasMovedOut are terminal; the record is never removed
type Person struct {
	ID id.PersonID `json:"id"`
	Profile

	HouseholdID        *id.HouseholdID `json:"householdId"`
	RelationshipToHead Relationship    `json:"relationshipToHead"`
	ResidenceStatus    ResidenceStatus `json:"residenceStatus"`
	IsNewborn          bool            `json:"isNewborn"`

	IsDead      bool       `json:"isDead"`
	DeathDate   *time.Time `json:"deathDate,omitempty"`
	DeathReason string     `json:"deathReason,omitempty"`

	HasMovedOut        bool       `json:"hasMovedOut"`
	MoveOutDate        *time.Time `json:"moveOutDate,omitempty"`
	MoveOutDestination string     `json:"moveOutDestination,omitempty"`

	CreatedBy id.UserID `json:"createdBy"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// NewPerson builds a permanent-resident record with no household yet.
// relationship may not be head; heads are designated by the ledger.
func NewPerson(personID id.PersonID, profile Profile, newborn bool, relationship Relationship, actor id.UserID, now time.Time) (*Person, error) {
	profile = profile.Normalize()
	if newborn {
		profile = profile.ApplyNewbornRules()
	}
	if err := profile.Validate(now); err != nil {
		return nil, err
	}
	if relationship == "" {
		relationship = RelationshipOther
	}
	if !relationship.IsValid() {
		return nil, dErrors.Invariant("relationshipToHead", "unknown relationship to head")
	}
	if relationship == RelationshipHead {
		return nil, dErrors.Invariant("relationshipToHead", "a head is designated by creating a household or changing its head")
	}
	return &Person{
		ID:                 personID,
		Profile:            profile,
		RelationshipToHead: relationship,
		ResidenceStatus:    ResidencePermanent,
		IsNewborn:          newborn,
		CreatedBy:          actor,
		CreatedAt:          now,
		UpdatedAt:          now,
	}, nil
}

// IsActive reports whether the person counts toward the active population.
func (p *Person) IsActive() bool {
	return !p.IsDead && !p.HasMovedOut
}

func (p *Person) Age(now time.Time) int {
	return Age(p.DateOfBirth, now)
}

func (p *Person) AgeCategory(now time.Time) AgeCategory {
	return AgeCategoryOf(p.Age(now))
}

// ApplyProfile replaces editable fields. A newborn keeps the newborn
// previous-address marker unless another address is supplied.
func (p *Person) ApplyProfile(profile Profile, now time.Time) error {
	profile = profile.Normalize()
	if p.IsNewborn && profile.PreviousAddress == "" {
		profile.PreviousAddress = NewbornPreviousAddress
	}
	if err := profile.Validate(now); err != nil {
		return err
	}
	p.Profile = profile
	p.UpdatedAt = now
	return nil
}

// CanMarkTerminal rejects marking an already deceased or moved-out person.
func (p *Person) CanMarkTerminal() error {
	if p.IsDead {
		return dErrors.Invariant("personId", "person is already marked deceased")
	}
	if p.HasMovedOut {
		return dErrors.Invariant("personId", "person is already marked moved out")
	}
	return nil
}

func (p *Person) ApplyDeath(date time.Time, reason string, now time.Time) {
	p.IsDead = true
	p.DeathDate = &date
	p.DeathReason = strings.TrimSpace(reason)
	p.UpdatedAt = now
}

func (p *Person) ApplyMoveOut(date time.Time, destination string, now time.Time) {
	p.HasMovedOut = true
	p.MoveOutDate = &date
	p.MoveOutDestination = strings.TrimSpace(destination)
	p.UpdatedAt = now
}
