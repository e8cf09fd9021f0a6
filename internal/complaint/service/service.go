// Package service runs the complaint lifecycle: intake, status progression,
// assignment and the merge of duplicate submissions.
package service

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"civreg/internal/complaint/models"
	complaintstore "civreg/internal/complaint/store/complaint"
	"civreg/internal/platform/metrics"
	"civreg/internal/platform/tracing"
	popmodels "civreg/internal/population/models"
	"civreg/internal/storage"
	id "civreg/pkg/domain"
	dErrors "civreg/pkg/domain-errors"
	audit "civreg/pkg/platform/audit"
	"civreg/pkg/platform/sentinel"
	"civreg/pkg/platform/tx"
	"civreg/pkg/requestcontext"
)

type Store interface {
	Create(ctx context.Context, c *models.Complaint) error
	FindByID(ctx context.Context, complaintID id.ComplaintID) (*models.Complaint, error)
	FindByIDs(ctx context.Context, ids []id.ComplaintID) ([]*models.Complaint, error)
	Update(ctx context.Context, c *models.Complaint) error
	AppendStatus(ctx context.Context, complaintID id.ComplaintID, entry models.StatusEntry) error
	MarkMerged(ctx context.Context, ids []id.ComplaintID, into id.ComplaintID, now time.Time) (int, error)
	List(ctx context.Context, filter models.Filter) ([]*models.Complaint, int, error)
	ListCreated(ctx context.Context, r *models.DateRange) ([]*models.Complaint, error)
	Aggregate(ctx context.Context, r *models.DateRange) (models.Counts, error)
}

// PersonFinder resolves submitters against the population register.
type PersonFinder interface {
	FindByIDs(ctx context.Context, ids []id.PersonID) ([]*popmodels.Person, error)
}

type SequenceAllocator interface {
	Next(ctx context.Context, name string) (int64, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// maxCodeAttempts bounds re-allocation after a complaint code collision.
const maxCodeAttempts = 3

type Service struct {
	store          Store
	sequence       SequenceAllocator
	tx             tx.Runner
	persons        PersonFinder
	logger         *slog.Logger
	auditPublisher AuditPublisher
	metrics        *metrics.Metrics
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithPersonFinder makes Create reject submitters the register does not know.
func WithPersonFinder(persons PersonFinder) Option {
	return func(s *Service) {
		s.persons = persons
	}
}

func New(store Store, sequence SequenceAllocator, runner tx.Runner, opts ...Option) *Service {
	s := &Service{store: store, sequence: sequence, tx: runner}
	for _, opt := range opts {
		opt(s)
	}
	if s.tx == nil {
		s.tx = tx.NewMemoryRunner()
	}
	return s
}

// Create files a complaint with the next KN code.
func (s *Service) Create(ctx context.Context, req *models.CreateRequest) (*models.Complaint, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if err := s.requireSubmitters(ctx, req.Submitters); err != nil {
		return nil, err
	}
	actor, now := actorAndNow(ctx)

	var created *models.Complaint
	err := s.run(ctx, "create_complaint", func(ctx context.Context, j *tx.Journal) error {
		c, err := s.createWithCode(ctx, func(code string) (*models.Complaint, error) {
			return models.NewComplaint(id.NewComplaintID(), code, req.Submitters, req.Category,
				req.Title, req.Description, req.Priority, actor, now)
		})
		if err != nil {
			return err
		}
		j.Record(subject(c))
		created = c
		return s.emit(ctx, audit.EventComplaintCreated, subject(c), map[string]string{
			"complaint_id": c.ID.String(),
			"category":     string(c.Category),
			"priority":     string(c.Priority),
			"submitters":   strconv.Itoa(len(c.Submitters)),
		})
	})
	if err != nil {
		return nil, err
	}
	annotate(ctx, attribute.String("complaint.code", created.Code))
	if s.metrics != nil {
		s.metrics.IncrementComplaintsCreated()
	}
	return created, nil
}

func (s *Service) requireSubmitters(ctx context.Context, submitters []id.PersonID) error {
	if s.persons == nil {
		return nil
	}
	found, err := s.persons.FindByIDs(ctx, submitters)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load submitters")
	}
	known := make(map[id.PersonID]struct{}, len(found))
	for _, p := range found {
		known[p.ID] = struct{}{}
	}
	for _, personID := range submitters {
		if _, ok := known[personID]; !ok {
			return dErrors.NotFound("person", personID.String())
		}
	}
	return nil
}

func (s *Service) createWithCode(ctx context.Context, build func(code string) (*models.Complaint, error)) (*models.Complaint, error) {
	for attempt := 1; ; attempt++ {
		n, err := s.sequence.Next(ctx, storage.SequenceComplaint)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to allocate complaint code")
		}
		c, err := build(models.FormatComplaintCode(n))
		if err != nil {
			return nil, dErrors.InvariantToValidation(err)
		}
		err = s.store.Create(ctx, c)
		if err == nil {
			return c, nil
		}
		if !sentinel.ConflictOn(err, complaintstore.ConstraintCode) {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create complaint")
		}
		if attempt == maxCodeAttempts {
			return nil, dErrors.Duplicate("code", "complaint code "+c.Code+" already exists")
		}
		if s.metrics != nil {
			s.metrics.IncrementCodeRetry(storage.SequenceComplaint)
		}
	}
}

// UpdateStatus moves a complaint one step through its lifecycle.
func (s *Service) UpdateStatus(ctx context.Context, complaintID id.ComplaintID, req *models.UpdateStatusRequest) (*models.Complaint, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	actor, now := actorAndNow(ctx)

	var updated *models.Complaint
	err := s.run(ctx, "update_complaint_status", func(ctx context.Context, j *tx.Journal) error {
		c, err := s.load(ctx, complaintID)
		if err != nil {
			return err
		}
		from := c.Status
		if err := c.CanTransition(req.Status, req.Resolution); err != nil {
			return dErrors.InvariantToValidation(err)
		}
		entry := c.ApplyStatus(req.Status, req.Note, req.Resolution, actor, now)
		if err := s.save(ctx, j, c, entry); err != nil {
			return err
		}
		updated = c
		return s.emit(ctx, audit.EventComplaintStatusChanged, subject(c), map[string]string{
			"complaint_id": c.ID.String(),
			"from":         string(from),
			"to":           string(c.Status),
		})
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Assign hands a complaint to a staff member. The status stays as it is.
func (s *Service) Assign(ctx context.Context, complaintID id.ComplaintID, req *models.AssignRequest) (*models.Complaint, error) {
	actor, now := actorAndNow(ctx)

	var updated *models.Complaint
	err := s.run(ctx, "assign_complaint", func(ctx context.Context, j *tx.Journal) error {
		c, err := s.load(ctx, complaintID)
		if err != nil {
			return err
		}
		if err := c.CanAssign(req.AssigneeID); err != nil {
			return dErrors.InvariantToValidation(err)
		}
		entry := c.ApplyAssign(req.AssigneeID, req.Note, actor, now)
		if err := s.save(ctx, j, c, entry); err != nil {
			return err
		}
		updated = c
		return s.emit(ctx, audit.EventComplaintAssigned, subject(c), map[string]string{
			"complaint_id": c.ID.String(),
			"assignee_id":  req.AssigneeID.String(),
		})
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Merge folds duplicate complaints into the main one. The main complaint is
// written first, then the sources are flagged in one bulk update.
func (s *Service) Merge(ctx context.Context, req *models.MergeRequest) (*models.Complaint, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	sourceIDs := req.SourceIDs()
	actor, now := actorAndNow(ctx)

	var merged *models.Complaint
	err := s.run(ctx, "merge_complaints", func(ctx context.Context, j *tx.Journal) error {
		main, err := s.load(ctx, req.MainID)
		if err != nil {
			return err
		}
		sources, err := s.loadAll(ctx, sourceIDs)
		if err != nil {
			return err
		}
		if err := main.CanAbsorb(sources); err != nil {
			return dErrors.InvariantToValidation(err)
		}

		mainEntry := main.ApplyAbsorb(sources, req.Title, req.Description, actor, now)
		if err := s.save(ctx, j, main, mainEntry); err != nil {
			return err
		}

		n, err := s.store.MarkMerged(ctx, sourceIDs, main.ID, now)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to mark complaints merged")
		}
		if n != len(sourceIDs) {
			return dErrors.New(dErrors.CodeInternal,
				"marked "+strconv.Itoa(n)+" of "+strconv.Itoa(len(sourceIDs))+" complaints merged")
		}
		j.Record("merged:" + strconv.Itoa(n))
		for _, src := range sources {
			entry := src.ApplyMergedInto(main, actor, now)
			if err := s.store.AppendStatus(ctx, src.ID, entry); err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to append complaint status")
			}
		}

		merged = main
		codes := make([]string, len(sources))
		for i, src := range sources {
			codes[i] = src.Code
		}
		return s.emit(ctx, audit.EventComplaintMerged, subject(main), map[string]string{
			"complaint_id": main.ID.String(),
			"merged":       strings.Join(codes, ","),
			"submitters":   strconv.Itoa(len(main.Submitters)),
		})
	})
	if err != nil {
		return nil, err
	}
	annotate(ctx, attribute.Int("complaint.merged", len(sourceIDs)))
	if s.metrics != nil {
		s.metrics.AddComplaintsMerged(len(sourceIDs))
	}
	return merged, nil
}

func (s *Service) Get(ctx context.Context, complaintID id.ComplaintID) (*models.Complaint, error) {
	return s.load(ctx, complaintID)
}

// List returns complaints newest first with the total before paging.
func (s *Service) List(ctx context.Context, filter models.Filter) ([]*models.Complaint, int, error) {
	if filter.Category != "" && !filter.Category.IsValid() {
		return nil, 0, dErrors.Validation("category", "unknown category "+string(filter.Category))
	}
	if filter.Status != "" && !filter.Status.IsValid() {
		return nil, 0, dErrors.Validation("status", "unknown status "+string(filter.Status))
	}
	if filter.Priority != "" && !filter.Priority.IsValid() {
		return nil, 0, dErrors.Validation("priority", "unknown priority "+string(filter.Priority))
	}
	items, total, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list complaints")
	}
	return items, total, nil
}

// Export returns every unmerged complaint created within r, for reports.
func (s *Service) Export(ctx context.Context, r *models.DateRange) ([]*models.Complaint, error) {
	if err := validateRange(r); err != nil {
		return nil, err
	}
	items, err := s.store.ListCreated(ctx, r)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list complaints")
	}
	return items, nil
}

// Stats aggregates unmerged complaints created within r; nil means all time.
func (s *Service) Stats(ctx context.Context, r *models.DateRange) (models.Stats, error) {
	if err := validateRange(r); err != nil {
		return models.Stats{}, err
	}
	counts, err := s.store.Aggregate(ctx, r)
	if err != nil {
		return models.Stats{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to aggregate complaints")
	}
	return models.StatsFrom(counts), nil
}

func validateRange(r *models.DateRange) error {
	if r != nil && !r.From.IsZero() && !r.To.IsZero() && r.To.Before(r.From) {
		return dErrors.Validation("to", "end of range is before its start")
	}
	return nil
}

// run wraps tx.Run with a span, the duration histogram and the
// partial-application counter.
func (s *Service) run(ctx context.Context, op string, fn func(ctx context.Context, j *tx.Journal) error) error {
	start := time.Now()
	ctx, span := tracing.Tracer().Start(ctx, "complaint."+op)
	defer span.End()

	err := tx.Run(ctx, s.tx, op, fn)
	if s.metrics != nil {
		s.metrics.ObserveOperation(op, start)
	}
	if err != nil {
		span.RecordError(err)
		if dErrors.HasCode(err, dErrors.CodePartialApplication) {
			if s.metrics != nil {
				s.metrics.IncrementPartialApplication(op)
			}
			if s.logger != nil {
				de, _ := dErrors.As(err)
				s.logger.ErrorContext(ctx, "operation partially applied",
					"operation", op,
					"applied", de.Applied,
					"error", err,
				)
			}
		}
	}
	return err
}

func (s *Service) load(ctx context.Context, complaintID id.ComplaintID) (*models.Complaint, error) {
	c, err := s.store.FindByID(ctx, complaintID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.NotFound("complaint", complaintID.String())
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load complaint")
	}
	return c, nil
}

// loadAll resolves every id in order or reports the first one missing.
func (s *Service) loadAll(ctx context.Context, ids []id.ComplaintID) ([]*models.Complaint, error) {
	found, err := s.store.FindByIDs(ctx, ids)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load complaints")
	}
	byID := make(map[id.ComplaintID]*models.Complaint, len(found))
	for _, c := range found {
		byID[c.ID] = c
	}
	out := make([]*models.Complaint, 0, len(ids))
	for _, complaintID := range ids {
		c, ok := byID[complaintID]
		if !ok {
			return nil, dErrors.NotFound("complaint", complaintID.String())
		}
		out = append(out, c)
	}
	return out, nil
}

// save writes the complaint fields and then the new history entry.
func (s *Service) save(ctx context.Context, j *tx.Journal, c *models.Complaint, entry models.StatusEntry) error {
	if err := s.store.Update(ctx, c); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.NotFound("complaint", c.ID.String())
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update complaint")
	}
	j.Record(subject(c))
	if err := s.store.AppendStatus(ctx, c.ID, entry); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to append complaint status")
	}
	return nil
}

func (s *Service) emit(ctx context.Context, action audit.AuditEvent, subj string, details map[string]string) error {
	if s.logger != nil {
		args := []any{"action", string(action), "subject", subj}
		for k, v := range details {
			args = append(args, k, v)
		}
		s.logger.InfoContext(ctx, string(action), args...)
	}
	if s.auditPublisher == nil {
		return nil
	}
	if err := s.auditPublisher.Emit(ctx, audit.Event{
		Action:  string(action),
		Subject: subj,
		Details: details,
	}); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record audit event")
	}
	return nil
}

func annotate(ctx context.Context, kv ...attribute.KeyValue) {
	trace.SpanFromContext(ctx).SetAttributes(kv...)
}

func actorAndNow(ctx context.Context) (id.UserID, time.Time) {
	return requestcontext.UserID(ctx), requestcontext.Now(ctx)
}

func subject(c *models.Complaint) string {
	return "complaint:" + c.Code
}
