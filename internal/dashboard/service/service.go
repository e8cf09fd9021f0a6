package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"civreg/internal/dashboard/models"
	"civreg/internal/platform/metrics"
	popmodels "civreg/internal/population/models"
	id "civreg/pkg/domain"
	dErrors "civreg/pkg/domain-errors"
	"civreg/pkg/platform/paging"
	"civreg/pkg/requestcontext"
)

var tracer = otel.Tracer("civreg/dashboard")

type HouseholdReader interface {
	Count(ctx context.Context, status popmodels.HouseholdStatus) (int, error)
	FindByIDs(ctx context.Context, ids []id.HouseholdID) ([]*popmodels.Household, error)
	RecentlyUpdated(ctx context.Context, limit int) ([]*popmodels.Household, error)
}

type PopulationAggregator interface {
	Breakdown(ctx context.Context, now time.Time) (popmodels.PopulationBreakdown, error)
	FindByIDs(ctx context.Context, ids []id.PersonID) ([]*popmodels.Person, error)
	RecentlyRegistered(ctx context.Context, limit int) ([]*popmodels.Person, error)
}

type ResidenceLister interface {
	Expiring(ctx context.Context, from, until time.Time) ([]*popmodels.TemporaryResidence, error)
}

// Cache stores the serialized snapshot. A miss is (nil, false, nil).
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

const statsKey = "stats"

// Service computes dashboard snapshots, reading through an optional cache.
type Service struct {
	households HouseholdReader
	persons    PopulationAggregator
	residences ResidenceLister
	cache      Cache
	ttl        time.Duration
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

type Option func(*Service)

// WithCache enables cache-aside reads. A nil cache or non-positive ttl
// leaves caching off.
func WithCache(cache Cache, ttl time.Duration) Option {
	return func(s *Service) {
		s.cache = cache
		s.ttl = ttl
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func New(households HouseholdReader, persons PopulationAggregator, residences ResidenceLister, opts ...Option) *Service {
	s := &Service{
		households: households,
		persons:    persons,
		residences: residences,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) cached() bool {
	return s.cache != nil && s.ttl > 0
}

// Stats returns the dashboard snapshot. Cache failures are logged and the
// snapshot is computed directly.
func (s *Service) Stats(ctx context.Context) (*models.Stats, error) {
	ctx, span := tracer.Start(ctx, "dashboard.stats")
	defer span.End()

	if s.cached() {
		if stats, ok := s.fromCache(ctx); ok {
			s.observeCache("hit")
			return stats, nil
		}
		s.observeCache("miss")
	}
	return s.recompute(ctx)
}

// Refresh skips the cached entry, recomputes and overwrites it.
func (s *Service) Refresh(ctx context.Context) (*models.Stats, error) {
	ctx, span := tracer.Start(ctx, "dashboard.refresh")
	defer span.End()
	return s.recompute(ctx)
}

func (s *Service) recompute(ctx context.Context) (*models.Stats, error) {
	span := trace.SpanFromContext(ctx)
	stats, err := s.compute(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	if s.cached() {
		s.store(ctx, stats)
	}
	return stats, nil
}

func (s *Service) fromCache(ctx context.Context) (*models.Stats, bool) {
	raw, ok, err := s.cache.Get(ctx, statsKey)
	if err != nil {
		s.logger.WarnContext(ctx, "dashboard cache read failed", "error", err)
		s.observeCache("error")
		return nil, false
	}
	if !ok {
		return nil, false
	}
	var stats models.Stats
	if err := json.Unmarshal(raw, &stats); err != nil {
		s.logger.WarnContext(ctx, "dashboard cache entry unreadable", "error", err)
		return nil, false
	}
	return &stats, true
}

func (s *Service) store(ctx context.Context, stats *models.Stats) {
	raw, err := json.Marshal(stats)
	if err != nil {
		s.logger.WarnContext(ctx, "dashboard snapshot not cacheable", "error", err)
		return
	}
	if err := s.cache.Set(ctx, statsKey, raw, s.ttl); err != nil {
		s.logger.WarnContext(ctx, "dashboard cache write failed", "error", err)
		s.observeCache("error")
	}
}

func (s *Service) observeCache(result string) {
	if s.metrics != nil {
		s.metrics.IncrementDashboardCache(result)
	}
}

// compute gathers the three aggregates concurrently.
func (s *Service) compute(ctx context.Context) (*models.Stats, error) {
	start := time.Now()
	now := requestcontext.Now(ctx)

	var (
		households int
		breakdown  popmodels.PopulationBreakdown
		expiring   []*popmodels.TemporaryResidence
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := s.households.Count(gctx, popmodels.HouseholdStatusActive)
		households = n
		return err
	})
	g.Go(func() error {
		b, err := s.persons.Breakdown(gctx, now)
		breakdown = b
		return err
	})
	g.Go(func() error {
		items, err := s.residences.Expiring(gctx, now, now.AddDate(0, 0, popmodels.ExpiringSoonDays))
		expiring = items
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to compute dashboard stats")
	}

	names, err := s.personNames(ctx, expiring)
	if err != nil {
		return nil, err
	}

	stats := &models.Stats{
		TotalHouseholds:    households,
		TotalPopulation:    breakdown.Total,
		TemporaryResidents: breakdown.Temporary,
		TemporarilyAbsent:  breakdown.TemporarilyAbsent,
		AgeDistribution:    breakdown.ByAgeCategory,
		GenderDistribution: breakdown.ByGender,
		ExpiringResidences: make([]models.ExpiringResidence, 0, len(expiring)),
		GeneratedAt:        now,
	}
	for _, r := range expiring {
		stats.ExpiringResidences = append(stats.ExpiringResidences, models.ExpiringResidence{
			ID:           r.ID,
			PersonID:     r.PersonID,
			PersonName:   names[r.PersonID],
			Type:         r.Type,
			EndDate:      r.EndDate,
			DaysUntilEnd: r.DaysUntilEnd(now),
		})
	}
	if s.metrics != nil {
		s.metrics.ObserveOperation("dashboard_stats", start)
	}
	return stats, nil
}

func (s *Service) personNames(ctx context.Context, items []*popmodels.TemporaryResidence) (map[id.PersonID]string, error) {
	names := make(map[id.PersonID]string, len(items))
	if len(items) == 0 {
		return names, nil
	}
	ids := make([]id.PersonID, 0, len(items))
	for _, r := range items {
		ids = append(ids, r.PersonID)
	}
	persons, err := s.persons.FindByIDs(ctx, id.DedupePersonIDs(ids))
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load declarants")
	}
	for _, p := range persons {
		names[p.ID] = p.FullName
	}
	return names, nil
}

// RecentActivities returns the latest household updates and person
// registrations, at most limit of each. The limit is clamped like a list
// page. Activity is never cached.
func (s *Service) RecentActivities(ctx context.Context, limit int) (*models.RecentActivities, error) {
	ctx, span := tracer.Start(ctx, "dashboard.recent_activities")
	defer span.End()
	limit = paging.Page{Limit: limit}.Normalize().Limit

	var (
		households []*popmodels.Household
		persons    []*popmodels.Person
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		items, err := s.households.RecentlyUpdated(gctx, limit)
		households = items
		return err
	})
	g.Go(func() error {
		items, err := s.persons.RecentlyRegistered(gctx, limit)
		persons = items
		return err
	})
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load recent activities")
	}

	heads, codes, err := s.activityLabels(ctx, households, persons)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	out := &models.RecentActivities{
		Households: make([]models.RecentHousehold, 0, len(households)),
		Persons:    make([]models.RecentPerson, 0, len(persons)),
	}
	for _, h := range households {
		out.Households = append(out.Households, models.RecentHousehold{
			ID:        h.ID,
			Code:      h.Code,
			HeadName:  heads[h.HeadID],
			Address:   h.Address,
			Status:    h.Status,
			UpdatedAt: h.UpdatedAt,
		})
	}
	for _, p := range persons {
		row := models.RecentPerson{
			ID:          p.ID,
			FullName:    p.FullName,
			DateOfBirth: p.DateOfBirth,
			CreatedAt:   p.CreatedAt,
		}
		if p.HouseholdID != nil {
			row.HouseholdCode = codes[*p.HouseholdID]
		}
		out.Persons = append(out.Persons, row)
	}
	return out, nil
}

// activityLabels resolves head names and household codes for the activity
// feed in two concurrent lookups.
func (s *Service) activityLabels(ctx context.Context, households []*popmodels.Household, persons []*popmodels.Person) (map[id.PersonID]string, map[id.HouseholdID]string, error) {
	headIDs := make([]id.PersonID, 0, len(households))
	for _, h := range households {
		headIDs = append(headIDs, h.HeadID)
	}
	seen := make(map[id.HouseholdID]bool)
	var householdIDs []id.HouseholdID
	for _, p := range persons {
		if p.HouseholdID != nil && !seen[*p.HouseholdID] {
			seen[*p.HouseholdID] = true
			householdIDs = append(householdIDs, *p.HouseholdID)
		}
	}

	heads := make(map[id.PersonID]string, len(headIDs))
	codes := make(map[id.HouseholdID]string, len(householdIDs))
	g, gctx := errgroup.WithContext(ctx)
	if len(headIDs) > 0 {
		g.Go(func() error {
			found, err := s.persons.FindByIDs(gctx, id.DedupePersonIDs(headIDs))
			if err != nil {
				return err
			}
			for _, p := range found {
				heads[p.ID] = p.FullName
			}
			return nil
		})
	}
	if len(householdIDs) > 0 {
		g.Go(func() error {
			found, err := s.households.FindByIDs(gctx, householdIDs)
			if err != nil {
				return err
			}
			for _, h := range found {
				codes[h.ID] = h.Code
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to label recent activities")
	}
	return heads, codes, nil
}
