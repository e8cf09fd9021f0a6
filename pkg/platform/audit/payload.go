package audit

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	id "civreg/pkg/domain"
)

// payload is the JSON structure published to Kafka.
type payload struct {
	ID        string            `json:"id"`
	Category  string            `json:"category"`
	Timestamp string            `json:"timestamp"`
	ActorID   string            `json:"actorId,omitempty"`
	Subject   string            `json:"subject"`
	Action    string            `json:"action"`
	RequestID string            `json:"requestId,omitempty"`
	Details   map[string]string `json:"details,omitempty"`
}

// NewOutboxEntry serialises event for relay. The category is always derived
// from the action so producers cannot mislabel events.
func NewOutboxEntry(event Event, now time.Time) (OutboxEntry, error) {
	eventID := uuid.New()
	p := payload{
		ID:        eventID.String(),
		Category:  string(AuditEvent(event.Action).Category()),
		Timestamp: event.Timestamp.Format(time.RFC3339Nano),
		Subject:   event.Subject,
		Action:    event.Action,
		RequestID: event.RequestID,
		Details:   event.Details,
	}
	if !event.ActorID.IsNil() {
		p.ActorID = event.ActorID.String()
	}
	b, err := json.Marshal(p)
	if err != nil {
		return OutboxEntry{}, fmt.Errorf("marshal audit payload: %w", err)
	}

	aggregateType, aggregateID := "audit", eventID.String()
	if kind, ref, ok := strings.Cut(event.Subject, ":"); ok && kind != "" && ref != "" {
		aggregateType, aggregateID = kind, ref
	}
	return OutboxEntry{
		ID:            eventID,
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		EventType:     event.Action,
		Payload:       b,
		CreatedAt:     now,
	}, nil
}

// DecodePayload reverses NewOutboxEntry for consumers and tests.
func DecodePayload(b []byte) (Event, error) {
	var p payload
	if err := json.Unmarshal(b, &p); err != nil {
		return Event{}, fmt.Errorf("unmarshal audit payload: %w", err)
	}
	ts, err := time.Parse(time.RFC3339Nano, p.Timestamp)
	if err != nil {
		return Event{}, fmt.Errorf("parse audit timestamp: %w", err)
	}
	e := Event{
		Category:  EventCategory(p.Category),
		Timestamp: ts,
		Subject:   p.Subject,
		Action:    p.Action,
		RequestID: p.RequestID,
		Details:   p.Details,
	}
	if p.ActorID != "" {
		u, err := uuid.Parse(p.ActorID)
		if err != nil {
			return Event{}, fmt.Errorf("parse audit actor: %w", err)
		}
		e.ActorID = id.UserID(u)
	}
	return e, nil
}
