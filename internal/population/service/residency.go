package service

import (
	"context"
	"errors"
	"strconv"
	"time"

	"civreg/internal/population/models"
	personstore "civreg/internal/population/store/person"
	residencestore "civreg/internal/population/store/residence"
	id "civreg/pkg/domain"
	dErrors "civreg/pkg/domain-errors"
	audit "civreg/pkg/platform/audit"
	"civreg/pkg/platform/sentinel"
	"civreg/pkg/platform/tx"
)

// Residency owns person records, their residence status and life status,
// and the temporary residence declarations that drive them.
type Residency struct {
	deps
	residences ResidenceStore
}

func NewResidency(households HouseholdStore, persons PersonStore, residences ResidenceStore, runner tx.Runner, opts ...Option) *Residency {
	return &Residency{deps: newDeps(households, persons, runner, opts), residences: residences}
}

// RegisterPerson creates a permanent-resident record. When HouseholdID is
// set the person joins that household in the same unit of work.
func (r *Residency) RegisterPerson(ctx context.Context, req *models.RegisterPersonRequest) (*models.Person, error) {
	actor, now := actorAndNow(ctx)
	p, err := models.NewPerson(id.NewPersonID(), req.Profile, req.IsNewborn, req.RelationshipToHead, actor, now)
	if err != nil {
		return nil, dErrors.InvariantToValidation(err)
	}

	err = r.run(ctx, "register_person", func(ctx context.Context, j *tx.Journal) error {
		var h *models.Household
		if req.HouseholdID != nil {
			var err error
			h, err = r.loadHousehold(ctx, *req.HouseholdID)
			if err != nil {
				return err
			}
			if err := h.CanAddMember(p.ID); err != nil {
				return dErrors.InvariantToValidation(err)
			}
			p.HouseholdID = &h.ID
		}

		if err := r.persons.Create(ctx, p); err != nil {
			if sentinel.ConflictOn(err, personstore.ConstraintIDNumber) {
				return dErrors.Duplicate("idNumber", "id number is already registered")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create person")
		}
		j.Record(personSubject(p.ID))

		if h != nil {
			entry := h.ApplyAddMember(p.ID, p.FullName+" registered into the household", actor, now)
			if err := r.saveHousehold(ctx, h, entry); err != nil {
				return err
			}
			j.Record(householdSubject(h))
		}
		return r.emit(ctx, audit.EventPersonRegistered, personSubject(p.ID), map[string]string{
			"newborn": strconv.FormatBool(p.IsNewborn),
		})
	})
	if err != nil {
		return nil, err
	}
	if r.metrics != nil {
		r.metrics.IncrementPersonsRegistered()
	}
	return p, nil
}

// UpdatePerson replaces the editable profile of a person.
func (r *Residency) UpdatePerson(ctx context.Context, personID id.PersonID, req *models.UpdatePersonRequest) (*models.Person, error) {
	_, now := actorAndNow(ctx)
	var p *models.Person
	err := r.run(ctx, "update_person", func(ctx context.Context, _ *tx.Journal) error {
		var err error
		p, err = r.loadPerson(ctx, personID)
		if err != nil {
			return err
		}
		if err := p.ApplyProfile(req.Profile, now); err != nil {
			return dErrors.InvariantToValidation(err)
		}
		if rel := req.RelationshipToHead; rel != "" && rel != p.RelationshipToHead {
			if !rel.IsValid() {
				return dErrors.Validation("relationshipToHead", "unknown relationship to head")
			}
			if rel == models.RelationshipHead || p.RelationshipToHead == models.RelationshipHead {
				return dErrors.Validation("relationshipToHead", "use change head to move the head role")
			}
			p.RelationshipToHead = rel
		}

		if err := r.persons.Update(ctx, p); err != nil {
			if sentinel.ConflictOn(err, personstore.ConstraintIDNumber) {
				return dErrors.Duplicate("idNumber", "id number is already registered")
			}
			return storeErr(err, "person", personID.String(), "failed to update person")
		}
		return r.emit(ctx, audit.EventPersonUpdated, personSubject(p.ID), nil)
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (r *Residency) GetPerson(ctx context.Context, personID id.PersonID) (*models.Person, error) {
	return r.loadPerson(ctx, personID)
}

// ListPersons excludes deceased and moved-out persons unless asked. Age
// categories are evaluated against the request time.
func (r *Residency) ListPersons(ctx context.Context, filter models.PersonFilter) ([]*models.Person, int, error) {
	if filter.AgeCategory != "" && !filter.AgeCategory.IsValid() {
		return nil, 0, dErrors.Validation("ageCategory", "unknown age category")
	}
	if filter.ResidenceStatus != "" && !filter.ResidenceStatus.IsValid() {
		return nil, 0, dErrors.Validation("residenceStatus", "unknown residence status")
	}
	if filter.Gender != "" && !filter.Gender.IsValid() {
		return nil, 0, dErrors.Validation("gender", "gender must be male, female or other")
	}
	_, now := actorAndNow(ctx)
	filter.Page = filter.Page.Normalize()
	items, total, err := r.persons.List(ctx, filter, now)
	if err != nil {
		return nil, 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list persons")
	}
	return items, total, nil
}

// DeclareTemporaryResidence opens a temporary residence or absence for an
// active person. A person holds at most one open declaration; one whose end
// date has passed is closed as expired first.
func (r *Residency) DeclareTemporaryResidence(ctx context.Context, req *models.DeclareResidenceRequest) (*models.TemporaryResidence, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}
	actor, now := actorAndNow(ctx)
	decl, err := models.NewTemporaryResidence(id.NewResidenceID(), req.PersonID, req.Type, req.StartDate, req.EndDate, req.Address, req.Reason, actor, now)
	if err != nil {
		return nil, dErrors.InvariantToValidation(err)
	}
	err = r.run(ctx, "declare_residence", func(ctx context.Context, j *tx.Journal) error {
		p, err := r.loadPerson(ctx, req.PersonID)
		if err != nil {
			return err
		}
		if !p.IsActive() {
			return dErrors.Validation("personId", "person is deceased or has moved out")
		}
		open, err := r.findOpen(ctx, p.ID)
		if err != nil {
			return err
		}
		if open != nil && !open.IsLapsed(now) {
			return dErrors.Validation("personId", "person already has an open declaration ending "+open.EndDate.Format(time.DateOnly))
		}

		if open != nil {
			open.ApplyLapse(now)
			if err := r.residences.Update(ctx, open); err != nil {
				return storeErr(err, "residence", open.ID.String(), "failed to close lapsed declaration")
			}
			j.Record(residenceSubject(open.ID))
		}
		if err := r.residences.Create(ctx, decl); err != nil {
			if sentinel.ConflictOn(err, residencestore.ConstraintOpenPerson) {
				return dErrors.Validation("personId", "person already has an open declaration")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create declaration")
		}
		j.Record(residenceSubject(decl.ID))

		p.ResidenceStatus = decl.Type.PersonStatus()
		p.UpdatedAt = now
		if err := r.savePerson(ctx, p); err != nil {
			return err
		}
		j.Record(personSubject(p.ID))

		return r.emit(ctx, audit.EventResidenceDeclared, residenceSubject(decl.ID), map[string]string{
			"person_id": p.ID.String(),
			"type":      string(decl.Type),
			"end_date":  decl.EndDate.Format(time.DateOnly),
		})
	})
	if err != nil {
		return nil, err
	}
	if r.metrics != nil {
		r.metrics.IncrementResidences()
	}
	return decl, nil
}

// Extend moves the end date forward and records the extension.
func (r *Residency) Extend(ctx context.Context, residenceID id.ResidenceID, req *models.ExtendResidenceRequest) (*models.TemporaryResidence, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	_, now := actorAndNow(ctx)
	var decl *models.TemporaryResidence
	err := r.run(ctx, "extend_residence", func(ctx context.Context, j *tx.Journal) error {
		var err error
		decl, err = r.loadResidence(ctx, residenceID)
		if err != nil {
			return err
		}
		if err := decl.CanExtend(req.NewEndDate); err != nil {
			return dErrors.InvariantToValidation(err)
		}

		ext := decl.ApplyExtension(req.NewEndDate, req.Reason, now)
		if err := r.residences.Update(ctx, decl); err != nil {
			return storeErr(err, "residence", residenceID.String(), "failed to update declaration")
		}
		j.Record(residenceSubject(decl.ID))
		if err := r.residences.AppendExtension(ctx, decl.ID, ext); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to append extension")
		}
		return r.emit(ctx, audit.EventResidenceExtended, residenceSubject(decl.ID), map[string]string{
			"previous_end_date": ext.PreviousEndDate.Format(time.DateOnly),
			"new_end_date":      ext.NewEndDate.Format(time.DateOnly),
		})
	})
	if err != nil {
		return nil, err
	}
	return decl, nil
}

// Cancel closes a declaration and reverts the person to permanent residence.
func (r *Residency) Cancel(ctx context.Context, residenceID id.ResidenceID) (*models.TemporaryResidence, error) {
	_, now := actorAndNow(ctx)
	var decl *models.TemporaryResidence
	err := r.run(ctx, "cancel_residence", func(ctx context.Context, j *tx.Journal) error {
		var err error
		decl, err = r.loadResidence(ctx, residenceID)
		if err != nil {
			return err
		}
		if err := decl.CanCancel(); err != nil {
			return dErrors.InvariantToValidation(err)
		}
		p, err := r.loadPerson(ctx, decl.PersonID)
		if err != nil {
			return err
		}

		decl.ApplyCancel(now)
		if err := r.residences.Update(ctx, decl); err != nil {
			return storeErr(err, "residence", residenceID.String(), "failed to update declaration")
		}
		j.Record(residenceSubject(decl.ID))

		p.ResidenceStatus = models.ResidencePermanent
		p.UpdatedAt = now
		if err := r.savePerson(ctx, p); err != nil {
			return err
		}
		j.Record(personSubject(p.ID))

		return r.emit(ctx, audit.EventResidenceCanceled, residenceSubject(decl.ID), map[string]string{
			"person_id": p.ID.String(),
		})
	})
	if err != nil {
		return nil, err
	}
	return decl, nil
}

func (r *Residency) GetResidence(ctx context.Context, residenceID id.ResidenceID) (*models.TemporaryResidence, error) {
	return r.loadResidence(ctx, residenceID)
}

// ListResidences filters by type and effective status, soonest end first.
func (r *Residency) ListResidences(ctx context.Context, filter models.ResidenceFilter) ([]*models.TemporaryResidence, int, error) {
	if filter.Type != "" && !filter.Type.IsValid() {
		return nil, 0, dErrors.Validation("type", "type must be temporary_residence or temporary_absence")
	}
	if filter.Status != "" && !filter.Status.IsValid() {
		return nil, 0, dErrors.Validation("status", "unknown declaration status")
	}
	_, now := actorAndNow(ctx)
	filter.Page = filter.Page.Normalize()
	items, total, err := r.residences.List(ctx, filter, now)
	if err != nil {
		return nil, 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list declarations")
	}
	return items, total, nil
}

// ExpiringResidences returns active declarations ending within days of now.
// Non-positive days fall back to the default window.
func (r *Residency) ExpiringResidences(ctx context.Context, days int) ([]*models.TemporaryResidence, error) {
	if days <= 0 {
		days = models.ExpiringSoonDays
	}
	_, now := actorAndNow(ctx)
	items, err := r.residences.Expiring(ctx, now, now.AddDate(0, 0, days))
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list expiring declarations")
	}
	return items, nil
}

// MarkDeceased records a death. The person stays in the household member
// list; the household history gains a member_removed entry.
func (r *Residency) MarkDeceased(ctx context.Context, personID id.PersonID, req *models.MarkDeceasedRequest) (*models.Person, error) {
	_, now := actorAndNow(ctx)
	date, err := models.ValidateTerminalDate("deathDate", req.Date, now)
	if err != nil {
		return nil, err
	}
	return r.markTerminal(ctx, personID, terminalMark{
		op:          "mark_deceased",
		event:       audit.EventPersonDeceased,
		description: " died",
		keepMember:  true,
		apply: func(p *models.Person) {
			p.ApplyDeath(date, req.Reason, now)
		},
	})
}

// MarkMovedOut records a permanent move away. The person leaves the member
// list and loses the household reference, unless they are the sole active
// member and head, in which case the household is deactivated around them.
func (r *Residency) MarkMovedOut(ctx context.Context, personID id.PersonID, req *models.MarkMovedOutRequest) (*models.Person, error) {
	_, now := actorAndNow(ctx)
	date, err := models.ValidateTerminalDate("moveOutDate", req.Date, now)
	if err != nil {
		return nil, err
	}
	description := " moved out"
	if req.Destination != "" {
		description += " to " + req.Destination
	}
	return r.markTerminal(ctx, personID, terminalMark{
		op:          "mark_moved_out",
		event:       audit.EventPersonMovedOut,
		description: description,
		apply: func(p *models.Person) {
			p.ApplyMoveOut(date, req.Destination, now)
		},
	})
}

type terminalMark struct {
	op          string
	event       audit.AuditEvent
	description string
	keepMember  bool
	apply       func(p *models.Person)
}

func (r *Residency) markTerminal(ctx context.Context, personID id.PersonID, mark terminalMark) (*models.Person, error) {
	actor, now := actorAndNow(ctx)
	var p *models.Person
	err := r.run(ctx, mark.op, func(ctx context.Context, j *tx.Journal) error {
		var err error
		p, err = r.loadPerson(ctx, personID)
		if err != nil {
			return err
		}
		if err := p.CanMarkTerminal(); err != nil {
			return dErrors.InvariantToValidation(err)
		}

		h, err := r.activeMembership(ctx, p)
		if err != nil {
			return err
		}
		isHead := h != nil && h.HeadID == p.ID
		if isHead {
			others, err := r.hasOtherActiveMembers(ctx, h, p.ID)
			if err != nil {
				return err
			}
			if others {
				return dErrors.Validation("personId", "person heads household "+h.Code+"; designate a new head with change head first")
			}
		}
		open, err := r.findOpen(ctx, p.ID)
		if err != nil {
			return err
		}

		mark.apply(p)
		if h != nil && !mark.keepMember && !isHead {
			p.HouseholdID = nil
			p.RelationshipToHead = models.RelationshipOther
		}
		if open != nil {
			p.ResidenceStatus = models.ResidencePermanent
		}
		if err := r.savePerson(ctx, p); err != nil {
			return err
		}
		j.Record(personSubject(p.ID))

		if open != nil {
			open.ApplyCancel(now)
			if err := r.residences.Update(ctx, open); err != nil {
				return storeErr(err, "residence", open.ID.String(), "failed to close declaration")
			}
			j.Record(residenceSubject(open.ID))
		}

		if h != nil {
			var entries []models.HistoryEntry
			if mark.keepMember || isHead {
				entries = append(entries, h.Record(models.HistoryEntry{
					Event:       models.EventMemberRemoved,
					Description: p.FullName + mark.description,
					OccurredAt:  now,
					ActorID:     actor,
				}))
			} else {
				entries = append(entries, h.ApplyRemoveMembers([]id.PersonID{p.ID}, p.FullName+mark.description, nil, actor, now))
			}
			if isHead {
				entries = append(entries, h.ApplyDeactivation("Household deactivated: no active members remain", actor, now))
			}
			if err := r.saveHousehold(ctx, h, entries...); err != nil {
				return err
			}
			j.Record(householdSubject(h))
		}

		details := map[string]string{}
		if h != nil {
			details["household"] = h.Code
		}
		return r.emit(ctx, mark.event, personSubject(p.ID), details)
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (r *Residency) loadResidence(ctx context.Context, residenceID id.ResidenceID) (*models.TemporaryResidence, error) {
	decl, err := r.residences.FindByID(ctx, residenceID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.NotFound("residence", residenceID.String())
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load declaration")
	}
	return decl, nil
}

// findOpen returns the person's open declaration, or nil when there is none.
func (r *Residency) findOpen(ctx context.Context, personID id.PersonID) (*models.TemporaryResidence, error) {
	open, err := r.residences.FindOpenByPerson(ctx, personID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, nil
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load open declaration")
	}
	return open, nil
}
