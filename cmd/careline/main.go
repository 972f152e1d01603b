package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	cfhttp "github.com/Strob0t/careline/internal/adapter/http"
	cfmcp "github.com/Strob0t/careline/internal/adapter/mcp"
	"github.com/Strob0t/careline/internal/adapter/natskv"
	cfotel "github.com/Strob0t/careline/internal/adapter/otel"
	"github.com/Strob0t/careline/internal/adapter/ristretto"
	"github.com/Strob0t/careline/internal/adapter/tiered"
	"github.com/Strob0t/careline/internal/adapter/ws"
	"github.com/Strob0t/careline/internal/config"
	"github.com/Strob0t/careline/internal/logger"
	"github.com/Strob0t/careline/internal/middleware"
	"github.com/Strob0t/careline/internal/port/a2a"
	"github.com/Strob0t/careline/internal/port/cache"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := run(os.Args[1:]); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	cmd := "serve"
	if len(args) > 0 {
		cmd, args = args[0], args[1:]
	}

	switch cmd {
	case "serve":
		return withRuntime(os.Stdout, runServe)
	case "console":
		// The terminal belongs to the conversation, so logs go to stderr.
		return withRuntime(os.Stderr, func(ctx context.Context, cfg *config.Config) error {
			return runConsole(ctx, cfg, args)
		})
	case "migrate":
		return runMigrate(args)
	case "help", "--help", "-h":
		printHelp()
		return nil
	default:
		printHelp()
		return fmt.Errorf("unknown command: %s", cmd)
	}
}

func printHelp() {
	fmt.Fprintf(os.Stderr, `Usage: careline [command] [options]

Commands:
  serve      Run the A2A, MCP and WebSocket server (default)
  console    Talk to the intake assistant from this terminal
  migrate    Manage the session record schema (up, down, version)
  help       Show this help message
`)
}

// withRuntime loads config, installs the logger and telemetry, and runs fn
// until an interrupt or SIGTERM arrives.
func withRuntime(logOut io.Writer, fn func(ctx context.Context, cfg *config.Config) error) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	log, closer := logger.NewWithWriter(cfg.Logging, logOut)
	defer closer.Close()
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownOTEL, err := cfotel.Init(ctx, cfg.OTEL)
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOTEL(flushCtx); err != nil {
			slog.Warn("otel shutdown failed", "error", err)
		}
	}()

	slog.Info("config loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Logging.Level,
		"store", cfg.Store.Backend,
		"recorder", cfg.Recorder.Sink,
	)
	return fn(ctx, cfg)
}

func runServe(ctx context.Context, cfg *config.Config) error {
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.close()

	idem, err := a.idempotencyCache(ctx)
	if err != nil {
		return err
	}

	hub := ws.NewHub()
	a.protocol.SetBroadcaster(hub)

	handlers := &cfhttp.Handlers{
		Protocol: a.protocol,
		Card:     a2a.BuildAgentCard(cfg.Server.PublicURL, version),
		Version:  version,
		Breakers: a.gateway.BreakerStates,
	}
	if a.queue != nil {
		handlers.Queue = a.queue
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(chimw.RealIP)
	r.Use(cfhttp.Logger)
	r.Use(chimw.Recoverer)
	r.Use(cfhttp.SecurityHeaders)
	r.Use(cfotel.HTTPMiddleware(cfg.OTEL.ServiceName))

	r.Group(func(r chi.Router) {
		r.Use(middleware.SharedKey(cfg.Auth.SharedKey))
		r.Get("/ws", hub.HandleWS)

		r.Group(func(r chi.Router) {
			r.Use(chimw.Timeout(cfg.Server.RequestTimeout))
			r.Use(middleware.Idempotency(idem, cfg.Cache.TTL))
			cfhttp.MountRoutes(r, handlers)
		})
	})

	// MCP checks its own API key.
	if cfg.MCP.Enabled {
		mcpSrv := cfmcp.NewServer(
			cfmcp.ServerConfig{Name: "careline", Version: version, APIKey: cfg.MCP.APIKey},
			cfmcp.ServerDeps{Tasks: a.protocol, Card: handlers.Card},
		)
		r.Handle("/mcp", mcpSrv.Handler())
		slog.Info("mcp server enabled", "path", "/mcp")
	}

	addr := ":" + cfg.Server.Port
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      cfg.Server.RequestTimeout + 30*time.Second,
		IdleTimeout:       120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("starting server", "addr", addr, "version", version)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// idempotencyCache builds the response cache behind Idempotency-Key: ristretto
// in process, backed by a NATS KV bucket when NATS is connected.
func (a *app) idempotencyCache(ctx context.Context) (cache.Cache, error) {
	l1, err := ristretto.New(a.cfg.Cache.L1MaxSizeMB)
	if err != nil {
		return nil, fmt.Errorf("l1 cache: %w", err)
	}
	a.closers = append(a.closers, l1.Close)

	var l2 cache.Cache
	if a.queue != nil && a.cfg.Cache.L2Bucket != "" {
		kv, err := a.queue.KeyValue(ctx, a.cfg.Cache.L2Bucket, a.cfg.Cache.TTL)
		if err != nil {
			return nil, fmt.Errorf("l2 cache bucket: %w", err)
		}
		l2 = natskv.New(kv)
	}
	return tiered.New(l1, l2, a.cfg.Cache.TTL), nil
}
