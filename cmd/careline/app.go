package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Strob0t/careline/internal/adapter/filerecord"
	"github.com/Strob0t/careline/internal/adapter/insurance"
	"github.com/Strob0t/careline/internal/adapter/litellm"
	"github.com/Strob0t/careline/internal/adapter/memkv"
	cfnats "github.com/Strob0t/careline/internal/adapter/nats"
	"github.com/Strob0t/careline/internal/adapter/natskv"
	cfotel "github.com/Strob0t/careline/internal/adapter/otel"
	"github.com/Strob0t/careline/internal/adapter/postgres"
	"github.com/Strob0t/careline/internal/adapter/triage"
	"github.com/Strob0t/careline/internal/config"
	"github.com/Strob0t/careline/internal/port/recorder"
	"github.com/Strob0t/careline/internal/port/taskstore"
	"github.com/Strob0t/careline/internal/service"
)

// app holds the wired core shared by the serve and console commands.
type app struct {
	cfg      *config.Config
	metrics  *cfotel.Metrics
	queue    *cfnats.Queue // nil unless NATS is in use
	store    *service.TaskStore
	gateway  *service.Gateway
	protocol *service.ProtocolService
	closers  []func()
}

// needsNATS reports whether any configured component talks to NATS.
func needsNATS(cfg *config.Config) bool {
	return cfg.Store.Backend == "nats" || cfg.NATS.Events
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{cfg: cfg}
	ok := false
	defer func() {
		if !ok {
			a.close()
		}
	}()

	metrics, err := cfotel.NewMetrics()
	if err != nil {
		return nil, fmt.Errorf("metrics: %w", err)
	}
	a.metrics = metrics

	if needsNATS(cfg) {
		q, err := cfnats.Connect(ctx, cfg.NATS.URL)
		if err != nil {
			return nil, fmt.Errorf("nats: %w", err)
		}
		a.queue = q
		a.closers = append(a.closers, func() {
			if err := q.Drain(); err != nil {
				slog.Warn("nats drain failed", "error", err)
			}
		})
	}

	backend, err := a.taskBackend(ctx)
	if err != nil {
		return nil, err
	}
	a.store = service.NewTaskStore(backend)
	a.closers = append(a.closers, func() {
		if err := a.store.Close(); err != nil {
			slog.Warn("task store close failed", "error", err)
		}
	})

	sink, err := a.recordSink(ctx)
	if err != nil {
		return nil, err
	}

	a.gateway = service.NewGateway(
		litellm.NewExtractor(cfg.Extraction),
		triage.NewClient(cfg.Triage),
		insurance.NewClient(cfg.Insurance),
		cfg.Gateway,
		cfg.Breaker,
		metrics,
	)
	machine := service.NewTaskMachine(a.store)
	rec := service.NewRecorder(sink, cfg.Recorder.Sink, metrics)
	orch := service.NewOrchestrator(a.gateway, machine, rec, service.NewOrchestratorConfig(cfg.Orchestrator, cfg.Triage), metrics)
	a.protocol = service.NewProtocolService(a.store, machine, orch)

	if a.queue != nil && cfg.NATS.Events {
		a.protocol.SetQueue(a.queue)
		stop, err := a.protocol.StartCancelSubscriber(ctx)
		if err != nil {
			return nil, fmt.Errorf("cancel subscriber: %w", err)
		}
		a.closers = append(a.closers, stop)
	}

	ok = true
	return a, nil
}

func (a *app) taskBackend(ctx context.Context) (taskstore.Backend, error) {
	switch a.cfg.Store.Backend {
	case "memory":
		return memkv.New(), nil
	case "nats":
		kv, err := a.queue.KeyValue(ctx, a.cfg.NATS.TasksBucket, 0)
		if err != nil {
			return nil, fmt.Errorf("tasks bucket: %w", err)
		}
		slog.Info("task store on nats", "bucket", a.cfg.NATS.TasksBucket)
		return natskv.NewStore(kv), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", a.cfg.Store.Backend)
	}
}

func (a *app) recordSink(ctx context.Context) (recorder.Sink, error) {
	switch a.cfg.Recorder.Sink {
	case "file":
		slog.Info("session records to files", "dir", a.cfg.Recorder.Dir)
		return filerecord.New(a.cfg.Recorder.Dir), nil
	case "postgres":
		pool, err := postgres.NewPool(ctx, a.cfg.Postgres)
		if err != nil {
			return nil, fmt.Errorf("postgres: %w", err)
		}
		a.closers = append(a.closers, pool.Close)
		if err := postgres.RunMigrations(ctx, a.cfg.Postgres.DSN); err != nil {
			return nil, fmt.Errorf("migrations: %w", err)
		}
		slog.Info("session records to postgres")
		return postgres.NewRecordSink(pool), nil
	default:
		return nil, errors.New("unknown recorder sink " + a.cfg.Recorder.Sink)
	}
}

// close releases resources in reverse acquisition order.
func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
