package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	complainthandler "civreg/internal/complaint/handler"
	complaintservice "civreg/internal/complaint/service"
	complaintstore "civreg/internal/complaint/store/complaint"
	dashboardhandler "civreg/internal/dashboard/handler"
	dashboardservice "civreg/internal/dashboard/service"
	httpapi "civreg/internal/http"
	"civreg/internal/jwttoken"
	"civreg/internal/platform/config"
	"civreg/internal/platform/httpserver"
	"civreg/internal/platform/kafka/producer"
	"civreg/internal/platform/logger"
	"civreg/internal/platform/metrics"
	"civreg/internal/platform/redis"
	"civreg/internal/platform/tracing"
	pophandler "civreg/internal/population/handler"
	popmodels "civreg/internal/population/models"
	popservice "civreg/internal/population/service"
	householdstore "civreg/internal/population/store/household"
	personstore "civreg/internal/population/store/person"
	residencestore "civreg/internal/population/store/residence"
	reporthandler "civreg/internal/report/handler"
	reportservice "civreg/internal/report/service"
	"civreg/internal/storage"
	audit "civreg/pkg/platform/audit"
	"civreg/pkg/platform/audit/publisher"
	auditmemory "civreg/pkg/platform/audit/store/memory"
	auditpostgres "civreg/pkg/platform/audit/store/postgres"
	"civreg/pkg/platform/audit/worker"
	"civreg/pkg/platform/tx"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg, err := config.FromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Environment, cfg.LogLevel)

	if err := run(cfg, log); err != nil {
		log.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

type householdBackend interface {
	popservice.HouseholdStore
	Count(ctx context.Context, status popmodels.HouseholdStatus) (int, error)
	RecentlyUpdated(ctx context.Context, limit int) ([]*popmodels.Household, error)
}

type personBackend interface {
	popservice.PersonStore
	Breakdown(ctx context.Context, now time.Time) (popmodels.PopulationBreakdown, error)
	RecentlyRegistered(ctx context.Context, limit int) ([]*popmodels.Person, error)
}

type auditBackend interface {
	audit.Store
	audit.Outbox
}

// backend is the storage chosen by CIVREG_STORAGE.
type backend struct {
	households householdBackend
	persons    personBackend
	residences popservice.ResidenceStore
	complaints complaintservice.Store
	sequence   popservice.SequenceAllocator
	runner     tx.Runner
	outbox     auditBackend
	close      func() error
}

func openBackend(ctx context.Context, cfg config.Server, health map[string]httpapi.HealthCheck) (*backend, error) {
	if cfg.Storage == "memory" {
		return &backend{
			households: householdstore.NewInMemory(),
			persons:    personstore.NewInMemory(),
			residences: residencestore.NewInMemory(),
			complaints: complaintstore.NewInMemory(),
			sequence:   storage.NewMemorySequence(),
			runner:     tx.NewMemoryRunner(),
			outbox:     auditmemory.NewInMemoryStore(),
			close:      func() error { return nil },
		}, nil
	}

	db, err := storage.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := storage.Migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	health["postgres"] = db.PingContext
	return &backend{
		households: householdstore.NewPostgres(db),
		persons:    personstore.NewPostgres(db),
		residences: residencestore.NewPostgres(db),
		complaints: complaintstore.NewPostgres(db),
		sequence:   storage.NewPostgresSequence(db),
		runner:     storage.NewPostgresTx(db, cfg.TxTimeout),
		outbox:     auditpostgres.New(db),
		close:      db.Close,
	}, nil
}

func run(cfg config.Server, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Setup(ctx, "civreg", cfg.OTelEndpoint)
	if err != nil {
		return fmt.Errorf("tracing: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(flushCtx)
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	health := map[string]httpapi.HealthCheck{}
	b, err := openBackend(ctx, cfg, health)
	if err != nil {
		return err
	}
	defer b.close()
	households, persons, residences := b.households, b.persons, b.residences

	auditPublisher := publisher.NewPublisher(b.outbox, publisher.WithLogger(log))
	defer auditPublisher.Close()

	if len(cfg.Kafka.Brokers) > 0 {
		p, err := producer.New(cfg.Kafka.Brokers, cfg.Kafka.AuditTopic, log)
		if err != nil {
			return fmt.Errorf("kafka: %w", err)
		}
		defer p.Close()
		if err := p.EnsureTopic(ctx, 3, 1); err != nil {
			log.Warn("could not ensure audit topic", "topic", cfg.Kafka.AuditTopic, "error", err)
		}
		relay := worker.NewRelay(b.outbox, p,
			worker.WithInterval(cfg.Kafka.PollInterval),
			worker.WithBatchSize(cfg.Kafka.BatchSize),
			worker.WithLogger(log),
		)
		go func() {
			if err := relay.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("audit relay stopped", "error", err)
			}
		}()
	}

	ledger := popservice.NewLedger(households, persons, b.sequence, b.runner,
		popservice.WithLogger(log),
		popservice.WithAuditPublisher(auditPublisher),
		popservice.WithMetrics(m),
	)
	residency := popservice.NewResidency(households, persons, residences, b.runner,
		popservice.WithLogger(log),
		popservice.WithAuditPublisher(auditPublisher),
		popservice.WithMetrics(m),
	)
	complaintSvc := complaintservice.New(b.complaints, b.sequence, b.runner,
		complaintservice.WithLogger(log),
		complaintservice.WithAuditPublisher(auditPublisher),
		complaintservice.WithMetrics(m),
		complaintservice.WithPersonFinder(persons),
	)

	dashboardOpts := []dashboardservice.Option{
		dashboardservice.WithLogger(log),
		dashboardservice.WithMetrics(m),
	}
	redisClient, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		log.Warn("redis unavailable, dashboard runs uncached", "error", err)
	}
	if redisClient != nil {
		defer redisClient.Close()
		health["redis"] = redisClient.Health
		dashboardOpts = append(dashboardOpts,
			dashboardservice.WithCache(dashboardservice.NewRedisCache(redisClient.Client), cfg.Dashboard.CacheTTL))
	}
	dashboard := dashboardservice.New(households, persons, residences, dashboardOpts...)
	reports := reportservice.New(residency, persons, households, complaintSvc)

	router := httpapi.NewRouter(httpapi.Deps{
		Logger:    log,
		Metrics:   m,
		Gatherer:  reg,
		Validator: jwttoken.New(cfg.JWTSigningKey, cfg.JWTIssuer),
		Health:    health,
		Handlers: []httpapi.Registrar{
			pophandler.New(ledger, residency, log),
			complainthandler.New(complaintSvc, log),
			dashboardhandler.New(dashboard, log),
			reporthandler.New(reports, log),
		},
	})

	log.Info("starting civreg", "addr", cfg.Addr, "storage", cfg.Storage, "env", cfg.Environment)
	return httpserver.Run(ctx, httpserver.New(cfg.Addr, router), log)
}
