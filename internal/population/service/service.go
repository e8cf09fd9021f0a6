// Package service implements the membership ledger and the residency state
// machine over the household, person and residence stores.
//
// Every multi-entity write runs in one unit of work through tx.Run. Against
// a non-atomic runner a failure after the first write surfaces as a
// partial-application error naming the writes that stuck.
package service

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"civreg/internal/platform/metrics"
	"civreg/internal/platform/tracing"
	"civreg/internal/population/models"
	id "civreg/pkg/domain"
	dErrors "civreg/pkg/domain-errors"
	audit "civreg/pkg/platform/audit"
	"civreg/pkg/platform/sentinel"
	"civreg/pkg/platform/tx"
	"civreg/pkg/requestcontext"
)

type HouseholdStore interface {
	Create(ctx context.Context, h *models.Household) error
	FindByID(ctx context.Context, householdID id.HouseholdID) (*models.Household, error)
	FindByIDs(ctx context.Context, ids []id.HouseholdID) ([]*models.Household, error)
	Update(ctx context.Context, h *models.Household) error
	AppendHistory(ctx context.Context, householdID id.HouseholdID, entry models.HistoryEntry) error
	List(ctx context.Context, filter models.HouseholdFilter) ([]*models.Household, int, error)
}

type PersonStore interface {
	Create(ctx context.Context, p *models.Person) error
	FindByID(ctx context.Context, personID id.PersonID) (*models.Person, error)
	FindByIDs(ctx context.Context, ids []id.PersonID) ([]*models.Person, error)
	Update(ctx context.Context, p *models.Person) error
	AssignHousehold(ctx context.Context, ids []id.PersonID, householdID *id.HouseholdID, now time.Time) error
	List(ctx context.Context, filter models.PersonFilter, now time.Time) ([]*models.Person, int, error)
}

type ResidenceStore interface {
	Create(ctx context.Context, r *models.TemporaryResidence) error
	FindByID(ctx context.Context, residenceID id.ResidenceID) (*models.TemporaryResidence, error)
	FindOpenByPerson(ctx context.Context, personID id.PersonID) (*models.TemporaryResidence, error)
	Update(ctx context.Context, r *models.TemporaryResidence) error
	AppendExtension(ctx context.Context, residenceID id.ResidenceID, ext models.Extension) error
	List(ctx context.Context, filter models.ResidenceFilter, now time.Time) ([]*models.TemporaryResidence, int, error)
	Expiring(ctx context.Context, from, until time.Time) ([]*models.TemporaryResidence, error)
}

// SequenceAllocator hands out the next value of a named counter.
type SequenceAllocator interface {
	Next(ctx context.Context, name string) (int64, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// maxCodeAttempts bounds re-allocation after a household code collision.
const maxCodeAttempts = 3

// deps is shared by Ledger and Residency.
type deps struct {
	households     HouseholdStore
	persons        PersonStore
	tx             tx.Runner
	logger         *slog.Logger
	auditPublisher AuditPublisher
	metrics        *metrics.Metrics
}

type Option func(*deps)

func WithLogger(logger *slog.Logger) Option {
	return func(d *deps) {
		d.logger = logger
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(d *deps) {
		d.auditPublisher = publisher
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(d *deps) {
		d.metrics = m
	}
}

func newDeps(households HouseholdStore, persons PersonStore, runner tx.Runner, opts []Option) deps {
	d := deps{households: households, persons: persons, tx: runner}
	for _, opt := range opts {
		opt(&d)
	}
	if d.tx == nil {
		d.tx = tx.NewMemoryRunner()
	}
	return d
}

// run wraps tx.Run with a span, the duration histogram and the
// partial-application counter.
func (d *deps) run(ctx context.Context, op string, fn func(ctx context.Context, j *tx.Journal) error) error {
	start := time.Now()
	ctx, span := tracing.Tracer().Start(ctx, "population."+op)
	defer span.End()

	err := tx.Run(ctx, d.tx, op, fn)
	if d.metrics != nil {
		d.metrics.ObserveOperation(op, start)
	}
	if err != nil {
		span.RecordError(err)
		if dErrors.HasCode(err, dErrors.CodePartialApplication) {
			d.incrementPartial(op)
			if d.logger != nil {
				de, _ := dErrors.As(err)
				d.logger.ErrorContext(ctx, "operation partially applied",
					"operation", op,
					"applied", de.Applied,
					"error", err,
				)
			}
		}
	}
	return err
}

func annotate(ctx context.Context, kv ...attribute.KeyValue) {
	trace.SpanFromContext(ctx).SetAttributes(kv...)
}

func (d *deps) loadHousehold(ctx context.Context, householdID id.HouseholdID) (*models.Household, error) {
	h, err := d.households.FindByID(ctx, householdID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.NotFound("household", householdID.String())
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load household")
	}
	return h, nil
}

func (d *deps) loadPerson(ctx context.Context, personID id.PersonID) (*models.Person, error) {
	p, err := d.persons.FindByID(ctx, personID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.NotFound("person", personID.String())
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load person")
	}
	return p, nil
}

// loadPersons resolves every id or reports the first one missing.
func (d *deps) loadPersons(ctx context.Context, ids []id.PersonID) ([]*models.Person, error) {
	found, err := d.persons.FindByIDs(ctx, ids)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load persons")
	}
	if len(found) == len(ids) {
		return found, nil
	}
	byID := make(map[id.PersonID]struct{}, len(found))
	for _, p := range found {
		byID[p.ID] = struct{}{}
	}
	for _, personID := range ids {
		if _, ok := byID[personID]; !ok {
			return nil, dErrors.NotFound("person", personID.String())
		}
	}
	return found, nil
}

// activeMembership returns the active household that lists p as a member,
// or nil when p's household reference is empty, stale or inactive.
func (d *deps) activeMembership(ctx context.Context, p *models.Person) (*models.Household, error) {
	if p.HouseholdID == nil {
		return nil, nil
	}
	h, err := d.households.FindByID(ctx, *p.HouseholdID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, nil
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load household")
	}
	if !h.IsActive() || !h.HasMember(p.ID) {
		return nil, nil
	}
	return h, nil
}

// hasOtherActiveMembers reports whether h lists an active person besides except.
func (d *deps) hasOtherActiveMembers(ctx context.Context, h *models.Household, except id.PersonID) (bool, error) {
	others := make([]id.PersonID, 0, len(h.Members))
	for _, m := range h.Members {
		if m != except {
			others = append(others, m)
		}
	}
	if len(others) == 0 {
		return false, nil
	}
	persons, err := d.persons.FindByIDs(ctx, others)
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load household members")
	}
	for _, p := range persons {
		if p.IsActive() {
			return true, nil
		}
	}
	return false, nil
}

// saveHousehold writes the household fields and then the new history entries.
func (d *deps) saveHousehold(ctx context.Context, h *models.Household, entries ...models.HistoryEntry) error {
	if err := d.households.Update(ctx, h); err != nil {
		return storeErr(err, "household", h.ID.String(), "failed to update household")
	}
	for _, e := range entries {
		if err := d.households.AppendHistory(ctx, h.ID, e); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to append household history")
		}
	}
	return nil
}

func (d *deps) savePerson(ctx context.Context, p *models.Person) error {
	if err := d.persons.Update(ctx, p); err != nil {
		return storeErr(err, "person", p.ID.String(), "failed to update person")
	}
	return nil
}

// storeErr translates store sentinels for entity; anything else is internal.
func storeErr(err error, entity, ref, msg string) error {
	if _, ok := dErrors.As(err); ok {
		return err
	}
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.NotFound(entity, ref)
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, msg)
}

// emit publishes an audit event. With the outbox store it joins the
// surrounding transaction, so a failure aborts the operation.
func (d *deps) emit(ctx context.Context, action audit.AuditEvent, subject string, details map[string]string) error {
	if d.logger != nil {
		args := []any{"action", string(action), "subject", subject}
		for k, v := range details {
			args = append(args, k, v)
		}
		d.logger.InfoContext(ctx, string(action), args...)
	}
	if d.auditPublisher == nil {
		return nil
	}
	if err := d.auditPublisher.Emit(ctx, audit.Event{
		Action:  string(action),
		Subject: subject,
		Details: details,
	}); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record audit event")
	}
	return nil
}

func (d *deps) incrementPartial(op string) {
	if d.metrics != nil {
		d.metrics.IncrementPartialApplication(op)
	}
}

func (d *deps) incrementCodeRetry(sequence string) {
	if d.metrics != nil {
		d.metrics.IncrementCodeRetry(sequence)
	}
}

func actorAndNow(ctx context.Context) (id.UserID, time.Time) {
	return requestcontext.UserID(ctx), requestcontext.Now(ctx)
}

func householdSubject(h *models.Household) string {
	return "household:" + h.Code
}

func personSubject(personID id.PersonID) string {
	return "person:" + personID.String()
}

func residenceSubject(residenceID id.ResidenceID) string {
	return "residence:" + residenceID.String()
}
