package models

import (
	"fmt"
	"strings"
	"time"

	id "civreg/pkg/domain"
	dErrors "civreg/pkg/domain-errors"
)

type Category string

const (
	CategoryEnvironment    Category = "environment"
	CategorySecurity       Category = "security"
	CategoryInfrastructure Category = "infrastructure"
	CategorySocial         Category = "social"
	CategoryOther          Category = "other"
)

// Categories lists every category in display order.
var Categories = []Category{
	CategoryEnvironment, CategorySecurity, CategoryInfrastructure, CategorySocial, CategoryOther,
}

func (c Category) IsValid() bool {
	switch c {
	case CategoryEnvironment, CategorySecurity, CategoryInfrastructure, CategorySocial, CategoryOther:
		return true
	}
	return false
}

type Status string

const (
	StatusReceived   Status = "received"
	StatusInProgress Status = "in_progress"
	StatusResolved   Status = "resolved"
	StatusRejected   Status = "rejected"
)

// Statuses lists every status in lifecycle order.
var Statuses = []Status{StatusReceived, StatusInProgress, StatusResolved, StatusRejected}

func (s Status) IsValid() bool {
	switch s {
	case StatusReceived, StatusInProgress, StatusResolved, StatusRejected:
		return true
	}
	return false
}

// IsTerminal reports statuses with no outgoing transitions.
func (s Status) IsTerminal() bool {
	return s == StatusResolved || s == StatusRejected
}

// transitions is the lifecycle graph. Terminal statuses have no entry.
var transitions = map[Status][]Status{
	StatusReceived:   {StatusInProgress, StatusRejected},
	StatusInProgress: {StatusResolved, StatusRejected},
}

// CanTransitionTo reports whether to is reachable from s in one step.
func (s Status) CanTransitionTo(to Status) bool {
	for _, next := range transitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

func (p Priority) IsValid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// ComplaintCodePrefix prefixes the zero-padded complaint sequence.
const ComplaintCodePrefix = "KN"

// FormatComplaintCode renders sequence value n as KN000001.
func FormatComplaintCode(n int64) string {
	return fmt.Sprintf("%s%06d", ComplaintCodePrefix, n)
}

// StatusEntry is one immutable line in a complaint's status history.
type StatusEntry struct {
	Status  Status    `json:"status"`
	At      time.Time `json:"at"`
	Note    string    `json:"note,omitempty"`
	ActorID id.UserID `json:"actorId"`
}

// Complaint is a citizen complaint with one or more submitters.
//
// Invariants:
//   - Submitters is non-empty and holds no duplicates
//   - StatusHistory only grows and starts with a received entry
//   - a merged complaint has MergedInto set and never changes status again
//   - MergedFrom only names complaints merged into this one
type Complaint struct {
	ID            id.ComplaintID   `json:"id"`
	Code          string           `json:"code"`
	Submitters    []id.PersonID    `json:"submitters"`
	Category      Category         `json:"category"`
	Title         string           `json:"title"`
	Description   string           `json:"description"`
	Status        Status           `json:"status"`
	Priority      Priority         `json:"priority"`
	StatusHistory []StatusEntry    `json:"statusHistory"`
	Resolution    string           `json:"resolution,omitempty"`
	ResolvedAt    *time.Time       `json:"resolvedAt,omitempty"`
	ResolvedBy    *id.UserID       `json:"resolvedBy,omitempty"`
	AssignedTo    *id.UserID       `json:"assignedTo,omitempty"`
	IsMerged      bool             `json:"isMerged"`
	MergedFrom    []id.ComplaintID `json:"mergedFrom"`
	MergedInto    *id.ComplaintID  `json:"mergedInto,omitempty"`
	CreatedBy     id.UserID        `json:"createdBy"`
	CreatedAt     time.Time        `json:"createdAt"`
	UpdatedAt     time.Time        `json:"updatedAt"`
}

// ReceivedNote is the note on the entry every complaint starts with.
const ReceivedNote = "Complaint received"

// NewComplaint builds a received complaint with its first history entry.
// An empty priority defaults to medium.
func NewComplaint(
	complaintID id.ComplaintID,
	code string,
	submitters []id.PersonID,
	category Category,
	title, description string,
	priority Priority,
	actor id.UserID,
	now time.Time,
) (*Complaint, error) {
	if !strings.HasPrefix(code, ComplaintCodePrefix) || len(code) < len(ComplaintCodePrefix)+6 {
		return nil, dErrors.Invariant("code", "complaint code must be KN followed by 6 digits")
	}
	submitters = id.DedupePersonIDs(submitters)
	if len(submitters) == 0 {
		return nil, dErrors.Invariant("submitters", "at least one submitter is required")
	}
	if !category.IsValid() {
		return nil, dErrors.Invariant("category", "unknown category "+string(category))
	}
	if priority == "" {
		priority = PriorityMedium
	}
	if !priority.IsValid() {
		return nil, dErrors.Invariant("priority", "unknown priority "+string(priority))
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, dErrors.Invariant("title", "title is required")
	}
	description = strings.TrimSpace(description)
	if description == "" {
		return nil, dErrors.Invariant("description", "description is required")
	}
	c := &Complaint{
		ID:          complaintID,
		Code:        code,
		Submitters:  submitters,
		Category:    category,
		Title:       title,
		Description: description,
		Status:      StatusReceived,
		Priority:    priority,
		MergedFrom:  []id.ComplaintID{},
		CreatedBy:   actor,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	c.Record(StatusEntry{Status: StatusReceived, At: now, Note: ReceivedNote, ActorID: actor})
	return c, nil
}

// Record appends entry to the status history and bumps UpdatedAt.
func (c *Complaint) Record(entry StatusEntry) StatusEntry {
	c.StatusHistory = append(c.StatusHistory, entry)
	if entry.At.After(c.UpdatedAt) {
		c.UpdatedAt = entry.At
	}
	return entry
}

func (c *Complaint) HasSubmitter(personID id.PersonID) bool {
	for _, s := range c.Submitters {
		if s == personID {
			return true
		}
	}
	return false
}

func (c *Complaint) requireNotMerged() error {
	if c.IsMerged {
		return dErrors.Invariant("complaintId", "complaint "+c.Code+" was merged into another complaint")
	}
	return nil
}

// CanTransition checks a move to status to. Resolving needs a resolution.
func (c *Complaint) CanTransition(to Status, resolution string) error {
	if err := c.requireNotMerged(); err != nil {
		return err
	}
	if !to.IsValid() {
		return dErrors.Invariant("status", "unknown status "+string(to))
	}
	if !c.Status.CanTransitionTo(to) {
		return dErrors.Invariant("status", fmt.Sprintf("cannot move from %s to %s", c.Status, to))
	}
	if to == StatusResolved && strings.TrimSpace(resolution) == "" {
		return dErrors.Invariant("resolution", "resolution is required to resolve a complaint")
	}
	return nil
}

// ApplyStatus moves to status to and records the transition. Resolving
// stamps the resolution, its time and the resolver.
func (c *Complaint) ApplyStatus(to Status, note, resolution string, actor id.UserID, now time.Time) StatusEntry {
	c.Status = to
	if to == StatusResolved {
		resolvedBy := actor
		resolvedAt := now
		c.Resolution = strings.TrimSpace(resolution)
		c.ResolvedAt = &resolvedAt
		c.ResolvedBy = &resolvedBy
	}
	c.UpdatedAt = now
	return c.Record(StatusEntry{Status: to, At: now, Note: strings.TrimSpace(note), ActorID: actor})
}

func (c *Complaint) CanAssign(assignee id.UserID) error {
	if err := c.requireNotMerged(); err != nil {
		return err
	}
	if assignee.IsNil() {
		return dErrors.Invariant("assigneeId", "assignee is required")
	}
	return nil
}

// ApplyAssign sets the assignee and records an entry with the status unchanged.
func (c *Complaint) ApplyAssign(assignee id.UserID, note string, actor id.UserID, now time.Time) StatusEntry {
	c.AssignedTo = &assignee
	c.UpdatedAt = now
	note = strings.TrimSpace(note)
	if note == "" {
		note = "Assigned to " + assignee.String()
	}
	return c.Record(StatusEntry{Status: c.Status, At: now, Note: note, ActorID: actor})
}

// CanAbsorb checks that sources may be merged into c.
func (c *Complaint) CanAbsorb(sources []*Complaint) error {
	if err := c.requireNotMerged(); err != nil {
		return err
	}
	if len(sources) == 0 {
		return dErrors.Invariant("complaintIds", "at least two distinct complaints are required to merge")
	}
	for _, src := range sources {
		if src.ID == c.ID {
			return dErrors.Invariant("complaintIds", "a complaint cannot be merged into itself")
		}
		if src.IsMerged {
			return dErrors.Invariant("complaintIds", "complaint "+src.Code+" was already merged")
		}
	}
	return nil
}

// ApplyAbsorb folds sources into c: submitters become the union in order of
// first appearance, MergedFrom grows by the source ids, and title or
// description are replaced only when an override is given.
func (c *Complaint) ApplyAbsorb(sources []*Complaint, title, description *string, actor id.UserID, now time.Time) StatusEntry {
	submitters := append([]id.PersonID{}, c.Submitters...)
	codes := make([]string, 0, len(sources))
	for _, src := range sources {
		submitters = append(submitters, src.Submitters...)
		c.MergedFrom = append(c.MergedFrom, src.ID)
		codes = append(codes, src.Code)
	}
	c.Submitters = id.DedupePersonIDs(submitters)
	if title != nil && strings.TrimSpace(*title) != "" {
		c.Title = strings.TrimSpace(*title)
	}
	if description != nil && strings.TrimSpace(*description) != "" {
		c.Description = strings.TrimSpace(*description)
	}
	c.UpdatedAt = now
	return c.Record(StatusEntry{
		Status:  c.Status,
		At:      now,
		Note:    "Merged " + strings.Join(codes, ", "),
		ActorID: actor,
	})
}

// ApplyMergedInto flags c as absorbed by main.
func (c *Complaint) ApplyMergedInto(main *Complaint, actor id.UserID, now time.Time) StatusEntry {
	into := main.ID
	c.IsMerged = true
	c.MergedInto = &into
	c.UpdatedAt = now
	return c.Record(StatusEntry{
		Status:  c.Status,
		At:      now,
		Note:    "Merged into " + main.Code,
		ActorID: actor,
	})
}
