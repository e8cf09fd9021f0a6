package models

import (
	"math"
	"strings"
	"time"

	id "civreg/pkg/domain"
	dErrors "civreg/pkg/domain-errors"
)

type ResidenceType string

const (
	// TypeTemporaryResidence: the person lives here temporarily.
	TypeTemporaryResidence ResidenceType = "temporary_residence"
	// TypeTemporaryAbsence: the person is temporarily away from home.
	TypeTemporaryAbsence ResidenceType = "temporary_absence"
)

func (t ResidenceType) IsValid() bool {
	return t == TypeTemporaryResidence || t == TypeTemporaryAbsence
}

// PersonStatus is the residency status a declaration of this type implies.
func (t ResidenceType) PersonStatus() ResidenceStatus {
	if t == TypeTemporaryAbsence {
		return ResidenceTemporarilyAbsent
	}
	return ResidenceTemporary
}

type DeclarationStatus string

const (
	DeclarationActive    DeclarationStatus = "active"
	DeclarationExpired   DeclarationStatus = "expired"
	DeclarationExtended  DeclarationStatus = "extended"
	DeclarationCancelled DeclarationStatus = "cancelled"
)

func (s DeclarationStatus) IsValid() bool {
	switch s {
	case DeclarationActive, DeclarationExpired, DeclarationExtended, DeclarationCancelled:
		return true
	}
	return false
}

// ExpiringSoonDays is the window used by IsExpiringSoon.
const ExpiringSoonDays = 7

type Extension struct {
	PreviousEndDate time.Time `json:"previousEndDate"`
	NewEndDate      time.Time `json:"newEndDate"`
	ExtendedAt      time.Time `json:"extendedAt"`
	Reason          string    `json:"reason,omitempty"`
}

// TemporaryResidence is a temporary residence or absence declaration.
//
// Invariants:
//   - EndDate is after StartDate
//   - Extensions only grow; each records the end date it replaced
//   - cancelled is terminal
//
// Expired is a read-time classification of an active record whose end date
// has passed. It is only written when a lapsed declaration is superseded by a
// new one for the same person.
type TemporaryResidence struct {
	ID         id.ResidenceID    `json:"id"`
	PersonID   id.PersonID       `json:"personId"`
	Type       ResidenceType     `json:"type"`
	StartDate  time.Time         `json:"startDate"`
	EndDate    time.Time         `json:"endDate"`
	Address    string            `json:"address"`
	Reason     string            `json:"reason,omitempty"`
	Status     DeclarationStatus `json:"status"`
	Extensions []Extension       `json:"extensions"`
	CreatedBy  id.UserID         `json:"createdBy"`
	CreatedAt  time.Time         `json:"createdAt"`
	UpdatedAt  time.Time         `json:"updatedAt"`
}

func NewTemporaryResidence(
	residenceID id.ResidenceID,
	personID id.PersonID,
	typ ResidenceType,
	start, end time.Time,
	address, reason string,
	actor id.UserID,
	now time.Time,
) (*TemporaryResidence, error) {
	if !typ.IsValid() {
		return nil, dErrors.Invariant("type", "type must be temporary_residence or temporary_absence")
	}
	if start.IsZero() || end.IsZero() {
		return nil, dErrors.Invariant("endDate", "start and end dates are required")
	}
	if !end.After(start) {
		return nil, dErrors.Invariant("endDate", "end date must be after start date")
	}
	address = strings.TrimSpace(address)
	if address == "" {
		return nil, dErrors.Invariant("address", "address is required")
	}
	return &TemporaryResidence{
		ID:         residenceID,
		PersonID:   personID,
		Type:       typ,
		StartDate:  start,
		EndDate:    end,
		Address:    address,
		Reason:     strings.TrimSpace(reason),
		Status:     DeclarationActive,
		Extensions: []Extension{},
		CreatedBy:  actor,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

// IsOpen reports whether the declaration currently backs the person's status.
func (r *TemporaryResidence) IsOpen() bool {
	return r.Status == DeclarationActive || r.Status == DeclarationExtended
}

// DaysUntilEnd rounds the remaining time up to whole days; negative once the
// end date has passed.
func (r *TemporaryResidence) DaysUntilEnd(now time.Time) int {
	return int(math.Ceil(r.EndDate.Sub(now).Hours() / 24))
}

func (r *TemporaryResidence) IsExpired(now time.Time) bool {
	return r.Status == DeclarationActive && now.After(r.EndDate)
}

func (r *TemporaryResidence) IsExpiringSoon(now time.Time) bool {
	if r.Status != DeclarationActive {
		return false
	}
	days := r.DaysUntilEnd(now)
	return days > 0 && days <= ExpiringSoonDays
}

// EffectiveStatus is Status with read-time expiry applied.
func (r *TemporaryResidence) EffectiveStatus(now time.Time) DeclarationStatus {
	if r.IsExpired(now) {
		return DeclarationExpired
	}
	return r.Status
}

func (r *TemporaryResidence) CanExtend(newEnd time.Time) error {
	if r.Status == DeclarationCancelled {
		return dErrors.Invariant("residenceId", "a cancelled declaration cannot be extended")
	}
	if r.Status == DeclarationExpired {
		return dErrors.Invariant("residenceId", "a superseded declaration cannot be extended")
	}
	if !newEnd.After(r.EndDate) {
		return dErrors.Invariant("newEndDate", "new end date must be after the current end date")
	}
	return nil
}

// ApplyExtension appends an extension and moves the end date.
func (r *TemporaryResidence) ApplyExtension(newEnd time.Time, reason string, now time.Time) Extension {
	ext := Extension{
		PreviousEndDate: r.EndDate,
		NewEndDate:      newEnd,
		ExtendedAt:      now,
		Reason:          strings.TrimSpace(reason),
	}
	r.Extensions = append(r.Extensions, ext)
	r.EndDate = newEnd
	r.Status = DeclarationExtended
	r.UpdatedAt = now
	return ext
}

func (r *TemporaryResidence) CanCancel() error {
	if r.Status == DeclarationCancelled {
		return dErrors.Invariant("residenceId", "declaration is already cancelled")
	}
	return nil
}

func (r *TemporaryResidence) ApplyCancel(now time.Time) {
	r.Status = DeclarationCancelled
	r.UpdatedAt = now
}

// IsLapsed reports an open declaration whose end date has passed.
func (r *TemporaryResidence) IsLapsed(now time.Time) bool {
	return r.IsOpen() && now.After(r.EndDate)
}

// ApplyLapse closes a lapsed declaration so a new one can be opened.
func (r *TemporaryResidence) ApplyLapse(now time.Time) {
	r.Status = DeclarationExpired
	r.UpdatedAt = now
}
