// Package domain holds typed identifiers shared across registry modules.
//
// Each entity gets its own UUID-backed type so a PersonID can never be passed
// where a HouseholdID is expected. Parse functions are the trust boundary for
// ids arriving from requests: they reject empty, malformed and nil UUIDs.
package domain

import (
	"github.com/google/uuid"

	dErrors "civreg/pkg/domain-errors"
)

type (
	UserID      uuid.UUID
	HouseholdID uuid.UUID
	PersonID    uuid.UUID
	ResidenceID uuid.UUID
	ComplaintID uuid.UUID
)

func parseUUID(kind, s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" is required")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid "+kind)
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" cannot be nil")
	}
	return u, nil
}

func ParseUserID(s string) (UserID, error) {
	u, err := parseUUID("user id", s)
	return UserID(u), err
}

func ParseHouseholdID(s string) (HouseholdID, error) {
	u, err := parseUUID("household id", s)
	return HouseholdID(u), err
}

func ParsePersonID(s string) (PersonID, error) {
	u, err := parseUUID("person id", s)
	return PersonID(u), err
}

func ParseResidenceID(s string) (ResidenceID, error) {
	u, err := parseUUID("residence id", s)
	return ResidenceID(u), err
}

func ParseComplaintID(s string) (ComplaintID, error) {
	u, err := parseUUID("complaint id", s)
	return ComplaintID(u), err
}

func NewHouseholdID() HouseholdID { return HouseholdID(uuid.New()) }
func NewPersonID() PersonID       { return PersonID(uuid.New()) }
func NewResidenceID() ResidenceID { return ResidenceID(uuid.New()) }
func NewComplaintID() ComplaintID { return ComplaintID(uuid.New()) }

func (id UserID) String() string      { return uuid.UUID(id).String() }
func (id HouseholdID) String() string { return uuid.UUID(id).String() }
func (id PersonID) String() string    { return uuid.UUID(id).String() }
func (id ResidenceID) String() string { return uuid.UUID(id).String() }
func (id ComplaintID) String() string { return uuid.UUID(id).String() }

func (id UserID) IsNil() bool      { return uuid.UUID(id) == uuid.Nil }
func (id HouseholdID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id PersonID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id ResidenceID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id ComplaintID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }

func (id UserID) MarshalText() ([]byte, error)      { return uuid.UUID(id).MarshalText() }
func (id HouseholdID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }
func (id PersonID) MarshalText() ([]byte, error)    { return uuid.UUID(id).MarshalText() }
func (id ResidenceID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }
func (id ComplaintID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }

func (id *UserID) UnmarshalText(b []byte) error      { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *HouseholdID) UnmarshalText(b []byte) error { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *PersonID) UnmarshalText(b []byte) error    { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *ResidenceID) UnmarshalText(b []byte) error { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *ComplaintID) UnmarshalText(b []byte) error { return (*uuid.UUID)(id).UnmarshalText(b) }

// PersonIDStrings renders ids for logs and audit details.
func PersonIDStrings(ids []PersonID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}

// DedupePersonIDs removes repeats while preserving first-appearance order.
func DedupePersonIDs(ids []PersonID) []PersonID {
	seen := make(map[PersonID]struct{}, len(ids))
	out := make([]PersonID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// DedupeComplaintIDs removes repeats while preserving first-appearance order.
func DedupeComplaintIDs(ids []ComplaintID) []ComplaintID {
	seen := make(map[ComplaintID]struct{}, len(ids))
	out := make([]ComplaintID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func ComplaintIDStrings(ids []ComplaintID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}
