package models

import (
	"strings"

	id "civreg/pkg/domain"
	dErrors "civreg/pkg/domain-errors"
)

type CreateRequest struct {
	Submitters  []id.PersonID `json:"submitters" validate:"max=50"`
	Category    Category      `json:"category"`
	Title       string        `json:"title" validate:"max=200"`
	Description string        `json:"description" validate:"max=5000"`
	Priority    Priority      `json:"priority,omitempty"`
}

func (r *CreateRequest) Normalize() {
	r.Submitters = id.DedupePersonIDs(r.Submitters)
	r.Title = strings.TrimSpace(r.Title)
	r.Description = strings.TrimSpace(r.Description)
	if r.Priority == "" {
		r.Priority = PriorityMedium
	}
}

func (r *CreateRequest) Validate() error {
	if len(r.Submitters) == 0 {
		return dErrors.Validation("submitters", "at least one submitter is required")
	}
	if !r.Category.IsValid() {
		return dErrors.Validation("category", "unknown category "+string(r.Category))
	}
	if !r.Priority.IsValid() {
		return dErrors.Validation("priority", "unknown priority "+string(r.Priority))
	}
	if r.Title == "" {
		return dErrors.Validation("title", "title is required")
	}
	if r.Description == "" {
		return dErrors.Validation("description", "description is required")
	}
	return nil
}

type UpdateStatusRequest struct {
	Status     Status `json:"status"`
	Note       string `json:"note,omitempty" validate:"max=1000"`
	Resolution string `json:"resolution,omitempty" validate:"max=2000"`
}

func (r *UpdateStatusRequest) Validate() error {
	if !r.Status.IsValid() {
		return dErrors.Validation("status", "unknown status "+string(r.Status))
	}
	if r.Status == StatusResolved && strings.TrimSpace(r.Resolution) == "" {
		return dErrors.Validation("resolution", "resolution is required to resolve a complaint")
	}
	return nil
}

type AssignRequest struct {
	AssigneeID id.UserID `json:"assigneeId"`
	Note       string    `json:"note,omitempty" validate:"max=1000"`
}

// MergeRequest folds ComplaintIDs into MainID. MainID counts as one of the
// complaints whether or not it is listed. Nil overrides keep the main
// complaint's title and description.
type MergeRequest struct {
	ComplaintIDs []id.ComplaintID `json:"complaintIds" validate:"max=50"`
	MainID       id.ComplaintID   `json:"mainComplaintId"`
	Title        *string          `json:"mergedTitle,omitempty" validate:"omitempty,max=200"`
	Description  *string          `json:"mergedDescription,omitempty" validate:"omitempty,max=5000"`
}

// SourceIDs returns the distinct ids other than MainID.
func (r *MergeRequest) SourceIDs() []id.ComplaintID {
	out := make([]id.ComplaintID, 0, len(r.ComplaintIDs))
	for _, cid := range id.DedupeComplaintIDs(r.ComplaintIDs) {
		if cid != r.MainID {
			out = append(out, cid)
		}
	}
	return out
}

func (r *MergeRequest) Validate() error {
	if r.MainID.IsNil() {
		return dErrors.Validation("mainComplaintId", "main complaint is required")
	}
	if len(r.SourceIDs()) == 0 {
		return dErrors.Validation("complaintIds", "at least two distinct complaints are required to merge")
	}
	return nil
}
