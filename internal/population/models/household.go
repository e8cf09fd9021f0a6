package models

import (
	"fmt"
	"strings"
	"time"

	id "civreg/pkg/domain"
	dErrors "civreg/pkg/domain-errors"
)

type HouseholdStatus string

const (
	HouseholdStatusActive   HouseholdStatus = "active"
	HouseholdStatusInactive HouseholdStatus = "inactive"
)

func (s HouseholdStatus) IsValid() bool {
	return s == HouseholdStatusActive || s == HouseholdStatusInactive
}

// HistoryEvent tags an entry in a household's history log.
type HistoryEvent string

const (
	EventCreated       HistoryEvent = "created"
	EventSplitFrom     HistoryEvent = "split_from"
	EventChangedHead   HistoryEvent = "changed_head"
	EventMemberAdded   HistoryEvent = "member_added"
	EventMemberRemoved HistoryEvent = "member_removed"
	EventDeactivated   HistoryEvent = "deactivated"
)

// HouseholdCodePrefix prefixes the zero-padded household sequence.
const HouseholdCodePrefix = "HK"

// FormatHouseholdCode renders sequence value n as HK000001.
func FormatHouseholdCode(n int64) string {
	return fmt.Sprintf("%s%06d", HouseholdCodePrefix, n)
}

// Address is a household's postal address. Only the house number is required.
type Address struct {
	HouseNumber string `json:"houseNumber" validate:"max=50"`
	Street      string `json:"street,omitempty" validate:"max=200"`
	Ward        string `json:"ward,omitempty" validate:"max=100"`
	District    string `json:"district,omitempty" validate:"max=100"`
	City        string `json:"city,omitempty" validate:"max=100"`
}

// Normalize trims every field.
func (a Address) Normalize() Address {
	return Address{
		HouseNumber: strings.TrimSpace(a.HouseNumber),
		Street:      strings.TrimSpace(a.Street),
		Ward:        strings.TrimSpace(a.Ward),
		District:    strings.TrimSpace(a.District),
		City:        strings.TrimSpace(a.City),
	}
}

func (a Address) Validate() error {
	if strings.TrimSpace(a.HouseNumber) == "" {
		return dErrors.Invariant("address.houseNumber", "house number is required")
	}
	return nil
}

// String joins the non-empty parts, comma separated.
func (a Address) String() string {
	parts := make([]string, 0, 5)
	for _, p := range []string{a.HouseNumber, a.Street, a.Ward, a.District, a.City} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}

// HistoryEntry is one immutable line in a household's history log.
type HistoryEntry struct {
	Event            HistoryEvent    `json:"event"`
	Description      string          `json:"description"`
	OccurredAt       time.Time       `json:"occurredAt"`
	RelatedHousehold *id.HouseholdID `json:"relatedHousehold,omitempty"`
	ActorID          id.UserID       `json:"actorId"`
}

// Household is the aggregate root of the membership ledger.
//
// Invariants:
//   - HeadID is always an element of Members
//   - Members holds no duplicates and keeps insertion order
//   - Code is HK + 6 digits and never changes after creation
//   - History only grows; existing entries are never edited or reordered
//   - Deactivation is the only form of deletion
//
// Mutating methods come in Can/Apply pairs. Apply methods append the history
// entry they produce and return it so the store can persist it separately.
type Household struct {
	ID        id.HouseholdID  `json:"id"`
	Code      string          `json:"code"`
	HeadID    id.PersonID     `json:"headId"`
	Members   []id.PersonID   `json:"members"`
	Address   Address         `json:"address"`
	Status    HouseholdStatus `json:"status"`
	History   []HistoryEntry  `json:"history"`
	CreatedBy id.UserID       `json:"createdBy"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// NewHousehold builds an active household whose members are the head followed
// by others, de-duplicated. The caller appends the creation history entry.
func NewHousehold(
	householdID id.HouseholdID,
	code string,
	headID id.PersonID,
	others []id.PersonID,
	address Address,
	actor id.UserID,
	now time.Time,
) (*Household, error) {
	if !strings.HasPrefix(code, HouseholdCodePrefix) || len(code) < len(HouseholdCodePrefix)+6 {
		return nil, dErrors.Invariant("code", "household code must be HK followed by 6 digits")
	}
	if headID.IsNil() {
		return nil, dErrors.Invariant("headId", "household head is required")
	}
	address = address.Normalize()
	if err := address.Validate(); err != nil {
		return nil, err
	}
	members := id.DedupePersonIDs(append([]id.PersonID{headID}, others...))
	return &Household{
		ID:        householdID,
		Code:      code,
		HeadID:    headID,
		Members:   members,
		Address:   address,
		Status:    HouseholdStatusActive,
		CreatedBy: actor,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (h *Household) IsActive() bool {
	return h.Status == HouseholdStatusActive
}

func (h *Household) HasMember(personID id.PersonID) bool {
	for _, m := range h.Members {
		if m == personID {
			return true
		}
	}
	return false
}

// Record appends entry to the history log and bumps UpdatedAt.
func (h *Household) Record(entry HistoryEntry) HistoryEntry {
	h.History = append(h.History, entry)
	if entry.OccurredAt.After(h.UpdatedAt) {
		h.UpdatedAt = entry.OccurredAt
	}
	return entry
}

func (h *Household) requireActive() error {
	if !h.IsActive() {
		return dErrors.Invariant("householdId", "household is inactive")
	}
	return nil
}

// CanChangeHead checks that newHead may take over. A no-op change is allowed.
func (h *Household) CanChangeHead(newHead id.PersonID) error {
	if err := h.requireActive(); err != nil {
		return err
	}
	if !h.HasMember(newHead) {
		return dErrors.Invariant("newHeadId", "new head must be a member of the household")
	}
	return nil
}

// ApplyHeadChange sets the head and records a changed_head entry whose
// description snapshots both names as they are now.
func (h *Household) ApplyHeadChange(newHead id.PersonID, oldName, newName string, actor id.UserID, now time.Time) HistoryEntry {
	h.HeadID = newHead
	h.UpdatedAt = now
	return h.Record(HistoryEntry{
		Event:       EventChangedHead,
		Description: fmt.Sprintf("Head changed from %s to %s", oldName, newName),
		OccurredAt:  now,
		ActorID:     actor,
	})
}

// CanSplit checks a split of members into a new household headed by newHead.
// The current head cannot leave, otherwise the source would be headless.
func (h *Household) CanSplit(members []id.PersonID, newHead id.PersonID) error {
	if err := h.requireActive(); err != nil {
		return err
	}
	if len(members) == 0 {
		return dErrors.Invariant("memberIds", "at least one member must be split")
	}
	headIncluded := false
	for _, m := range members {
		if !h.HasMember(m) {
			return dErrors.Invariant("memberIds", "member "+m.String()+" does not belong to the source household")
		}
		if m == h.HeadID {
			return dErrors.Invariant("memberIds", "the household head cannot be split away; change the head first")
		}
		if m == newHead {
			headIncluded = true
		}
	}
	if !headIncluded {
		return dErrors.Invariant("newHeadId", "new head must be one of the split members")
	}
	return nil
}

// ApplyRemoveMembers pulls members from the list and records one
// member_removed entry, optionally pointing at a related household.
func (h *Household) ApplyRemoveMembers(members []id.PersonID, description string, related *id.HouseholdID, actor id.UserID, now time.Time) HistoryEntry {
	drop := make(map[id.PersonID]struct{}, len(members))
	for _, m := range members {
		drop[m] = struct{}{}
	}
	kept := make([]id.PersonID, 0, len(h.Members))
	for _, m := range h.Members {
		if _, ok := drop[m]; !ok {
			kept = append(kept, m)
		}
	}
	h.Members = kept
	h.UpdatedAt = now
	return h.Record(HistoryEntry{
		Event:            EventMemberRemoved,
		Description:      description,
		OccurredAt:       now,
		RelatedHousehold: related,
		ActorID:          actor,
	})
}

// CanAddMember checks personID can join.
func (h *Household) CanAddMember(personID id.PersonID) error {
	if err := h.requireActive(); err != nil {
		return err
	}
	if h.HasMember(personID) {
		return dErrors.Invariant("personId", "person is already a member of the household")
	}
	return nil
}

func (h *Household) ApplyAddMember(personID id.PersonID, description string, actor id.UserID, now time.Time) HistoryEntry {
	h.Members = append(h.Members, personID)
	h.UpdatedAt = now
	return h.Record(HistoryEntry{
		Event:       EventMemberAdded,
		Description: description,
		OccurredAt:  now,
		ActorID:     actor,
	})
}

// CanRemoveMember rejects removing the head; designate a new head first.
func (h *Household) CanRemoveMember(personID id.PersonID) error {
	if !h.HasMember(personID) {
		return dErrors.Invariant("personId", "person is not a member of the household")
	}
	if personID == h.HeadID {
		return dErrors.Invariant("personId", "cannot remove the household head; change the head first")
	}
	return nil
}

// ApplyDeactivation soft-deletes the household. Members and history stay.
func (h *Household) ApplyDeactivation(description string, actor id.UserID, now time.Time) HistoryEntry {
	h.Status = HouseholdStatusInactive
	h.UpdatedAt = now
	return h.Record(HistoryEntry{
		Event:       EventDeactivated,
		Description: description,
		OccurredAt:  now,
		ActorID:     actor,
	})
}
