package bootstrap

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	policyservice "meridian/contexts/insurance-core/policy-service"
	fraudadapter "meridian/contexts/insurance-core/policy-service/adapters/fraud"
	"meridian/contexts/insurance-core/policy-service/adapters/memory"
	postgresadapter "meridian/contexts/insurance-core/policy-service/adapters/postgres"
	workerapp "meridian/contexts/insurance-core/policy-service/application/workers"
	"meridian/internal/platform/config"
	"meridian/internal/platform/db"
	"meridian/internal/platform/httpserver"
	"meridian/internal/platform/messaging"
)

// Package bootstrap is the composition root.
// Keep construction/wiring here so module code stays framework-agnostic.

type APIApp struct {
	server   *httpserver.Server
	postgres *db.Postgres
	logger   *slog.Logger
}

type WorkerApp struct {
	postgres         *db.Postgres
	payments         workerapp.PaymentResultsConsumer
	subscriptions    workerapp.SubscriptionResultsConsumer
	evictor          workerapp.CorrelationEvictor
	outboxRelay      workerapp.OutboxRelay
	pollInterval     time.Duration
	evictionInterval time.Duration
	logger           *slog.Logger
}

func BuildAPI() (*APIApp, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := slog.Default().With("service", cfg.ServiceName, "process", "api")
	if strings.TrimSpace(cfg.PostgresDSN) == "" {
		return nil, errors.New("POSTGRES_DSN is required")
	}

	pg, err := db.Connect(cfg.PostgresDSN)
	if err != nil {
		return nil, err
	}

	repo := postgresadapter.NewRepository(pg.DB, logger)
	correlation := memory.NewCorrelationStore(cfg.CorrelationTTL)
	fraud := fraudadapter.NewHTTPGateway(cfg.FraudAPIURL, nil, logger)

	module := policyservice.NewModule(policyservice.Dependencies{
		Repository:        repo,
		Outbox:            repo,
		Correlation:       correlation,
		Fraud:             fraud,
		Clock:             postgresadapter.SystemClock{},
		IDGen:             postgresadapter.UUIDGenerator{},
		StrictTransitions: cfg.StrictTransitions,
		Logger:            logger,
	})

	server := httpserver.New(module, logger, normalizeAddr(cfg.HTTPPort))
	return &APIApp{
		server:   server,
		postgres: pg,
		logger:   logger,
	}, nil
}

func BuildWorker() (*WorkerApp, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := slog.Default().With("service", cfg.ServiceName, "process", "worker")
	if strings.TrimSpace(cfg.PostgresDSN) == "" {
		return nil, errors.New("POSTGRES_DSN is required")
	}

	pg, err := db.Connect(cfg.PostgresDSN)
	if err != nil {
		return nil, err
	}

	kafka, err := messaging.NewKafka(cfg.KafkaBrokers, logger)
	if err != nil {
		return nil, err
	}

	repo := postgresadapter.NewRepository(pg.DB, logger)
	correlation := memory.NewCorrelationStore(cfg.CorrelationTTL)
	fraud := fraudadapter.NewHTTPGateway(cfg.FraudAPIURL, nil, logger)

	module := policyservice.NewModule(policyservice.Dependencies{
		Repository:        repo,
		Outbox:            repo,
		Correlation:       correlation,
		Fraud:             fraud,
		Clock:             postgresadapter.SystemClock{},
		IDGen:             postgresadapter.UUIDGenerator{},
		StrictTransitions: cfg.StrictTransitions,
		Logger:            logger,
	})

	return &WorkerApp{
		postgres: pg,
		payments: workerapp.PaymentResultsConsumer{
			Subscriber:  kafka,
			Repository:  repo,
			Correlation: correlation,
			Lifecycle:   module.Lifecycle,
			Disabled:    !cfg.EnablePaymentConsumer,
			Logger:      logger,
		},
		subscriptions: workerapp.SubscriptionResultsConsumer{
			Subscriber:  kafka,
			Repository:  repo,
			Correlation: correlation,
			Lifecycle:   module.Lifecycle,
			Disabled:    !cfg.EnableSubscriptionConsumer,
			Logger:      logger,
		},
		evictor: workerapp.CorrelationEvictor{
			Correlation: correlation,
			Clock:       postgresadapter.SystemClock{},
			Logger:      logger,
		},
		outboxRelay: workerapp.OutboxRelay{
			Outbox:    repo,
			Publisher: kafka,
			Clock:     postgresadapter.SystemClock{},
			BatchSize: 100,
			Logger:    logger,
		},
		pollInterval:     cfg.OutboxPollInterval,
		evictionInterval: cfg.EvictionInterval,
		logger:           logger,
	}, nil
}

func (a *APIApp) Run(_ context.Context) error {
	if a.logger != nil {
		a.logger.Info("api app started",
			"event", "bootstrap_api_started",
			"module", "internal/app/bootstrap",
			"layer", "platform",
		)
	}
	return a.server.Start()
}

func (a *APIApp) Close() error {
	if a.postgres != nil {
		return a.postgres.Close()
	}
	return nil
}

func (w *WorkerApp) Run(ctx context.Context) error {
	if err := w.payments.Start(ctx); err != nil {
		return err
	}
	if err := w.subscriptions.Start(ctx); err != nil {
		return err
	}

	poll := time.NewTicker(w.pollInterval)
	defer poll.Stop()
	eviction := time.NewTicker(w.evictionInterval)
	defer eviction.Stop()

	w.logger.Info("worker app started",
		"event", "bootstrap_worker_started",
		"module", "internal/app/bootstrap",
		"layer", "platform",
		"poll_interval", w.pollInterval.String(),
		"eviction_interval", w.evictionInterval.String(),
	)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-poll.C:
			if err := w.outboxRelay.RunOnce(ctx); err != nil {
				return err
			}
		case <-eviction.C:
			if err := w.evictor.RunOnce(ctx); err != nil {
				return err
			}
		}
	}
}

func (w *WorkerApp) Close() error {
	if w.postgres != nil {
		return w.postgres.Close()
	}
	return nil
}

func normalizeAddr(port string) string {
	value := strings.TrimSpace(port)
	if value == "" {
		return ":8080"
	}
	if strings.HasPrefix(value, ":") {
		return value
	}
	return ":" + value
}
