package audit

import (
	"context"
	"time"

	"github.com/google/uuid"

	id "civreg/pkg/domain"
)

// EventCategory classifies audit events by retention needs.
type EventCategory string

const (
	// CategoryCompliance covers changes to the legal record: households,
	// persons, declarations. Written in the same transaction as the change.
	CategoryCompliance EventCategory = "compliance"

	// CategoryOperations covers workflow activity such as complaint handling.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Category  EventCategory
	Timestamp time.Time
	ActorID   id.UserID
	// Subject identifies the record acted on, e.g. "household:HK000001".
	Subject   string
	Action    string
	RequestID string
	Details   map[string]string
}

type AuditEvent string

const (
	// Membership ledger
	EventHouseholdCreated       AuditEvent = "household_created"
	EventHouseholdSplit         AuditEvent = "household_split"
	EventHouseholdHeadChanged   AuditEvent = "household_head_changed"
	EventHouseholdMemberAdded   AuditEvent = "household_member_added"
	EventHouseholdMemberRemoved AuditEvent = "household_member_removed"
	EventHouseholdAddressUpdate AuditEvent = "household_address_updated"
	EventHouseholdDeactivated   AuditEvent = "household_deactivated"

	// Residency
	EventPersonRegistered  AuditEvent = "person_registered"
	EventPersonUpdated     AuditEvent = "person_updated"
	EventPersonDeceased    AuditEvent = "person_deceased"
	EventPersonMovedOut    AuditEvent = "person_moved_out"
	EventResidenceDeclared AuditEvent = "residence_declared"
	EventResidenceExtended AuditEvent = "residence_extended"
	EventResidenceCanceled AuditEvent = "residence_cancelled"

	// Complaints
	EventComplaintCreated       AuditEvent = "complaint_created"
	EventComplaintStatusChanged AuditEvent = "complaint_status_changed"
	EventComplaintAssigned      AuditEvent = "complaint_assigned"
	EventComplaintMerged        AuditEvent = "complaint_merged"
)

var operationsEvents = map[AuditEvent]bool{
	EventComplaintCreated:       true,
	EventComplaintStatusChanged: true,
	EventComplaintAssigned:      true,
	EventComplaintMerged:        true,
}

// Category returns the EventCategory for this audit event.
// Anything not listed as operational is compliance.
func (e AuditEvent) Category() EventCategory {
	if operationsEvents[e] {
		return CategoryOperations
	}
	return CategoryCompliance
}

// Store persists audit events. Implementations backed by the outbox write in
// the caller's transaction.
type Store interface {
	Append(ctx context.Context, event Event) error
}

// OutboxEntry is a serialised event waiting to be relayed.
type OutboxEntry struct {
	ID            uuid.UUID
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
	CreatedAt     time.Time
}

// Outbox is the relay's view of a store.
type Outbox interface {
	FetchUnpublished(ctx context.Context, limit int) ([]OutboxEntry, error)
	MarkPublished(ctx context.Context, ids []uuid.UUID, at time.Time) error
}
