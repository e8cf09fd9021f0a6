package service

import (
	"context"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"civreg/internal/population/models"
	householdstore "civreg/internal/population/store/household"
	"civreg/internal/storage"
	id "civreg/pkg/domain"
	dErrors "civreg/pkg/domain-errors"
	audit "civreg/pkg/platform/audit"
	"civreg/pkg/platform/sentinel"
	"civreg/pkg/platform/tx"
)

// Ledger owns household membership: who belongs where and who heads it.
type Ledger struct {
	deps
	sequence SequenceAllocator
}

func NewLedger(households HouseholdStore, persons PersonStore, sequence SequenceAllocator, runner tx.Runner, opts ...Option) *Ledger {
	return &Ledger{deps: newDeps(households, persons, runner, opts), sequence: sequence}
}

// CreateHousehold registers a household with the head first among its
// members and points every member's household reference at it.
func (l *Ledger) CreateHousehold(ctx context.Context, req *models.CreateHouseholdRequest) (*models.Household, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}
	actor, now := actorAndNow(ctx)
	memberIDs := req.AllMembers()

	var created *models.Household
	err := l.run(ctx, "create_household", func(ctx context.Context, j *tx.Journal) error {
		persons, err := l.loadPersons(ctx, memberIDs)
		if err != nil {
			return err
		}
		for _, p := range persons {
			if err := l.requireJoinable(ctx, p); err != nil {
				return err
			}
		}

		h, err := l.createWithCode(ctx, func(code string) (*models.Household, error) {
			h, err := models.NewHousehold(id.NewHouseholdID(), code, req.HeadID, req.MemberIDs, req.Address, actor, now)
			if err != nil {
				return nil, err
			}
			h.Record(models.HistoryEntry{
				Event:       models.EventCreated,
				Description: "Household created with " + strconv.Itoa(len(h.Members)) + " members",
				OccurredAt:  now,
				ActorID:     actor,
			})
			return h, nil
		})
		if err != nil {
			return err
		}
		j.Record(householdSubject(h))

		if err := l.persons.AssignHousehold(ctx, h.Members, &h.ID, now); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to assign members")
		}
		j.Record("persons:" + strconv.Itoa(len(h.Members)))

		if err := l.syncRelationships(ctx, persons, h, now); err != nil {
			return err
		}
		created = h
		return l.emit(ctx, audit.EventHouseholdCreated, householdSubject(h), map[string]string{
			"household_id": h.ID.String(),
			"head_id":      h.HeadID.String(),
			"members":      strconv.Itoa(len(h.Members)),
		})
	})
	if err != nil {
		return nil, err
	}
	annotate(ctx, attribute.String("household.code", created.Code))
	if l.metrics != nil {
		l.metrics.IncrementHouseholdsCreated()
	}
	return created, nil
}

// requireJoinable rejects persons who are deceased, moved out or already in
// another active household.
func (l *Ledger) requireJoinable(ctx context.Context, p *models.Person) error {
	if !p.IsActive() {
		return dErrors.Validation("memberIds", "person "+p.ID.String()+" is deceased or has moved out")
	}
	current, err := l.activeMembership(ctx, p)
	if err != nil {
		return err
	}
	if current != nil {
		return dErrors.Validation("memberIds", "person "+p.ID.String()+" already belongs to household "+current.Code+"; split it instead")
	}
	return nil
}

// createWithCode allocates a code, builds the household and inserts it,
// re-allocating on a code collision.
func (l *Ledger) createWithCode(ctx context.Context, build func(code string) (*models.Household, error)) (*models.Household, error) {
	for attempt := 1; ; attempt++ {
		n, err := l.sequence.Next(ctx, storage.SequenceHousehold)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to allocate household code")
		}
		h, err := build(models.FormatHouseholdCode(n))
		if err != nil {
			return nil, dErrors.InvariantToValidation(err)
		}
		err = l.households.Create(ctx, h)
		if err == nil {
			return h, nil
		}
		if !sentinel.ConflictOn(err, householdstore.ConstraintCode) {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create household")
		}
		if attempt == maxCodeAttempts {
			return nil, dErrors.Duplicate("code", "household code "+h.Code+" already exists")
		}
		l.incrementCodeRetry(storage.SequenceHousehold)
	}
}

// syncRelationships makes the head's relationship head and demotes any other
// member still recorded as head. persons must all belong to h.
func (l *Ledger) syncRelationships(ctx context.Context, persons []*models.Person, h *models.Household, now time.Time) error {
	for _, p := range persons {
		want := p.RelationshipToHead
		switch {
		case p.ID == h.HeadID:
			want = models.RelationshipHead
		case p.RelationshipToHead == models.RelationshipHead:
			want = models.RelationshipOther
		}
		if want == p.RelationshipToHead {
			continue
		}
		p.RelationshipToHead = want
		p.HouseholdID = &h.ID
		p.UpdatedAt = now
		if err := l.savePerson(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

// SplitHousehold moves memberIDs out of sourceID into a new household headed
// by NewHeadID. Each moved person ends up in exactly one household.
func (l *Ledger) SplitHousehold(ctx context.Context, sourceID id.HouseholdID, req *models.SplitHouseholdRequest) (*models.Household, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}
	actor, now := actorAndNow(ctx)

	var created *models.Household
	err := l.run(ctx, "split_household", func(ctx context.Context, j *tx.Journal) error {
		source, err := l.loadHousehold(ctx, sourceID)
		if err != nil {
			return err
		}
		if err := source.CanSplit(req.MemberIDs, req.NewHeadID); err != nil {
			return dErrors.InvariantToValidation(err)
		}
		persons, err := l.loadPersons(ctx, req.MemberIDs)
		if err != nil {
			return err
		}
		for _, p := range persons {
			if p.ID == req.NewHeadID && !p.IsActive() {
				return dErrors.Validation("newHeadId", "new head is deceased or has moved out")
			}
		}

		h, err := l.createWithCode(ctx, func(code string) (*models.Household, error) {
			h, err := models.NewHousehold(id.NewHouseholdID(), code, req.NewHeadID, req.MemberIDs, req.Address, actor, now)
			if err != nil {
				return nil, err
			}
			h.Record(models.HistoryEntry{
				Event:            models.EventSplitFrom,
				Description:      "Split from household " + source.Code,
				OccurredAt:       now,
				RelatedHousehold: &source.ID,
				ActorID:          actor,
			})
			return h, nil
		})
		if err != nil {
			return err
		}
		j.Record(householdSubject(h))

		entry := source.ApplyRemoveMembers(req.MemberIDs, strconv.Itoa(len(req.MemberIDs))+" members moved to household "+h.Code, &h.ID, actor, now)
		if err := l.saveHousehold(ctx, source, entry); err != nil {
			return err
		}
		j.Record(householdSubject(source))

		if err := l.persons.AssignHousehold(ctx, h.Members, &h.ID, now); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to assign members")
		}
		j.Record("persons:" + strconv.Itoa(len(h.Members)))

		if err := l.syncRelationships(ctx, persons, h, now); err != nil {
			return err
		}
		created = h
		return l.emit(ctx, audit.EventHouseholdSplit, householdSubject(h), map[string]string{
			"household_id": h.ID.String(),
			"source":       source.Code,
			"members":      strconv.Itoa(len(h.Members)),
		})
	})
	if err != nil {
		return nil, err
	}
	if l.metrics != nil {
		l.metrics.IncrementHouseholdsSplit()
		l.metrics.IncrementHouseholdsCreated()
	}
	return created, nil
}

// ChangeHead hands the household to another member. Naming the current head
// is a no-op.
func (l *Ledger) ChangeHead(ctx context.Context, householdID id.HouseholdID, newHeadID id.PersonID) (*models.Household, error) {
	actor, now := actorAndNow(ctx)
	var h *models.Household
	err := l.run(ctx, "change_head", func(ctx context.Context, j *tx.Journal) error {
		var err error
		h, err = l.loadHousehold(ctx, householdID)
		if err != nil {
			return err
		}
		if h.HeadID == newHeadID {
			return nil
		}
		if err := h.CanChangeHead(newHeadID); err != nil {
			return dErrors.InvariantToValidation(err)
		}
		newHead, err := l.loadPerson(ctx, newHeadID)
		if err != nil {
			return err
		}
		if !newHead.IsActive() {
			return dErrors.Validation("newHeadId", "new head is deceased or has moved out")
		}
		oldHead, err := l.loadPerson(ctx, h.HeadID)
		if err != nil {
			return err
		}

		entry := h.ApplyHeadChange(newHeadID, oldHead.FullName, newHead.FullName, actor, now)
		if err := l.saveHousehold(ctx, h, entry); err != nil {
			return err
		}
		j.Record(householdSubject(h))

		oldHead.RelationshipToHead = models.RelationshipOther
		oldHead.UpdatedAt = now
		if err := l.savePerson(ctx, oldHead); err != nil {
			return err
		}
		j.Record(personSubject(oldHead.ID))

		newHead.RelationshipToHead = models.RelationshipHead
		newHead.UpdatedAt = now
		if err := l.savePerson(ctx, newHead); err != nil {
			return err
		}
		j.Record(personSubject(newHead.ID))

		return l.emit(ctx, audit.EventHouseholdHeadChanged, householdSubject(h), map[string]string{
			"old_head_id": oldHead.ID.String(),
			"new_head_id": newHead.ID.String(),
		})
	})
	if err != nil {
		return nil, err
	}
	return h, nil
}

// UpdateAddress replaces the household address. No history entry is written.
func (l *Ledger) UpdateAddress(ctx context.Context, householdID id.HouseholdID, address models.Address) (*models.Household, error) {
	_, now := actorAndNow(ctx)
	address = address.Normalize()
	if err := address.Validate(); err != nil {
		return nil, dErrors.InvariantToValidation(err)
	}

	var h *models.Household
	err := l.run(ctx, "update_household_address", func(ctx context.Context, _ *tx.Journal) error {
		var err error
		h, err = l.loadHousehold(ctx, householdID)
		if err != nil {
			return err
		}
		if !h.IsActive() {
			return dErrors.Validation("householdId", "household is inactive")
		}
		h.Address = address
		h.UpdatedAt = now
		if err := l.saveHousehold(ctx, h); err != nil {
			return err
		}
		return l.emit(ctx, audit.EventHouseholdAddressUpdate, householdSubject(h), map[string]string{
			"address": address.String(),
		})
	})
	if err != nil {
		return nil, err
	}
	return h, nil
}

// AddMember appends a person to the household's member list.
func (l *Ledger) AddMember(ctx context.Context, householdID id.HouseholdID, req *models.AddMemberRequest) (*models.Household, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	actor, now := actorAndNow(ctx)

	var h *models.Household
	err := l.run(ctx, "add_member", func(ctx context.Context, j *tx.Journal) error {
		var err error
		h, err = l.loadHousehold(ctx, householdID)
		if err != nil {
			return err
		}
		if err := h.CanAddMember(req.PersonID); err != nil {
			return dErrors.InvariantToValidation(err)
		}
		p, err := l.loadPerson(ctx, req.PersonID)
		if err != nil {
			return err
		}
		if err := l.requireJoinable(ctx, p); err != nil {
			return err
		}

		entry := h.ApplyAddMember(p.ID, p.FullName+" joined the household", actor, now)
		if err := l.saveHousehold(ctx, h, entry); err != nil {
			return err
		}
		j.Record(householdSubject(h))

		p.HouseholdID = &h.ID
		switch {
		case req.Relationship != "":
			p.RelationshipToHead = req.Relationship
		case p.RelationshipToHead == models.RelationshipHead:
			p.RelationshipToHead = models.RelationshipOther
		}
		p.UpdatedAt = now
		if err := l.savePerson(ctx, p); err != nil {
			return err
		}
		j.Record(personSubject(p.ID))

		return l.emit(ctx, audit.EventHouseholdMemberAdded, householdSubject(h), map[string]string{
			"person_id": p.ID.String(),
		})
	})
	if err != nil {
		return nil, err
	}
	return h, nil
}

// RemoveMember pulls a non-head member out of the household and clears the
// person's household reference.
func (l *Ledger) RemoveMember(ctx context.Context, householdID id.HouseholdID, personID id.PersonID, reason string) (*models.Household, error) {
	actor, now := actorAndNow(ctx)
	var h *models.Household
	err := l.run(ctx, "remove_member", func(ctx context.Context, j *tx.Journal) error {
		var err error
		h, err = l.loadHousehold(ctx, householdID)
		if err != nil {
			return err
		}
		if err := h.CanRemoveMember(personID); err != nil {
			return dErrors.InvariantToValidation(err)
		}
		p, err := l.loadPerson(ctx, personID)
		if err != nil {
			return err
		}

		description := p.FullName + " left the household"
		if reason != "" {
			description += ": " + reason
		}
		entry := h.ApplyRemoveMembers([]id.PersonID{personID}, description, nil, actor, now)
		if err := l.saveHousehold(ctx, h, entry); err != nil {
			return err
		}
		j.Record(householdSubject(h))

		p.HouseholdID = nil
		p.RelationshipToHead = models.RelationshipOther
		p.UpdatedAt = now
		if err := l.savePerson(ctx, p); err != nil {
			return err
		}
		j.Record(personSubject(p.ID))

		return l.emit(ctx, audit.EventHouseholdMemberRemoved, householdSubject(h), map[string]string{
			"person_id": p.ID.String(),
		})
	})
	if err != nil {
		return nil, err
	}
	return h, nil
}

// Deactivate soft-deletes the household. Members and history are kept and
// deactivating an inactive household changes nothing.
func (l *Ledger) Deactivate(ctx context.Context, householdID id.HouseholdID) (*models.Household, error) {
	actor, now := actorAndNow(ctx)
	var h *models.Household
	err := l.run(ctx, "deactivate_household", func(ctx context.Context, _ *tx.Journal) error {
		var err error
		h, err = l.loadHousehold(ctx, householdID)
		if err != nil {
			return err
		}
		if !h.IsActive() {
			return nil
		}
		entry := h.ApplyDeactivation("Household deactivated", actor, now)
		if err := l.saveHousehold(ctx, h, entry); err != nil {
			return err
		}
		return l.emit(ctx, audit.EventHouseholdDeactivated, householdSubject(h), nil)
	})
	if err != nil {
		return nil, err
	}
	return h, nil
}

func (l *Ledger) GetHousehold(ctx context.Context, householdID id.HouseholdID) (*models.Household, error) {
	return l.loadHousehold(ctx, householdID)
}

// Members returns the household's member records in member-list order.
func (l *Ledger) Members(ctx context.Context, householdID id.HouseholdID) ([]*models.Person, error) {
	h, err := l.loadHousehold(ctx, householdID)
	if err != nil {
		return nil, err
	}
	persons, err := l.persons.FindByIDs(ctx, h.Members)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load members")
	}
	return persons, nil
}

func (l *Ledger) ListHouseholds(ctx context.Context, filter models.HouseholdFilter) ([]*models.Household, int, error) {
	if filter.Status != "" && !filter.Status.IsValid() {
		return nil, 0, dErrors.Validation("status", "status must be active or inactive")
	}
	filter.Page = filter.Page.Normalize()
	items, total, err := l.households.List(ctx, filter)
	if err != nil {
		return nil, 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list households")
	}
	return items, total, nil
}
