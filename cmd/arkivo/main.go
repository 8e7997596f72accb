// Package main is the entry point for the arkivo daemon: it wires the
// content repository core (node service, find engine, authorization
// resolver, aspect validator) to the reference collaborators and runs
// until interrupted. Protocol adapters plug in on top of the wired
// services.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/invopop/jsonschema"
	"github.com/lmittmann/tint"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"

	"github.com/arkivo/arkivo/internal/aspects"
	"github.com/arkivo/arkivo/internal/authz"
	"github.com/arkivo/arkivo/internal/blob"
	"github.com/arkivo/arkivo/internal/config"
	"github.com/arkivo/arkivo/internal/events"
	"github.com/arkivo/arkivo/internal/filters"
	"github.com/arkivo/arkivo/internal/find"
	"github.com/arkivo/arkivo/internal/node"
	"github.com/arkivo/arkivo/internal/principal"
	"github.com/arkivo/arkivo/internal/repo"
	"github.com/arkivo/arkivo/internal/service"
)

func main() {
	if err := mainImpl(); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "arkivo: %v\n", err)
		os.Exit(1)
	}
}

func mainImpl() error {
	configPath := flag.String("config", "config.yaml", "Path to the configuration file")
	logLevel := flag.String("log-level", "", "Log level override (debug, info, warn, error)")
	schema := flag.Bool("schema", false, "Print the node JSON schema and exit")
	flag.Parse()
	if len(flag.Args()) > 0 {
		return fmt.Errorf("unknown arguments: %v", flag.Args())
	}

	if *schema {
		return printSchema()
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}

	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	defer stop()

	nodeRepo := repo.NewMemory()
	storage, err := blob.NewFS(cfg.DataDir)
	if err != nil {
		return err
	}
	aspectRepo, err := aspects.NewDirRepository(cfg.AspectsDir, logger)
	if err != nil {
		return err
	}
	if err := aspectRepo.Watch(ctx); err != nil {
		return err
	}

	bus := events.NewBus(logger)
	bus.Subscribe(events.NodeCreated, func(evt events.Event) {
		logger.Debug("audit", "event", evt.Type, "id", evt.ID)
	})
	bus.Subscribe(events.NodeUpdated, func(evt events.Event) {
		logger.Debug("audit", "event", evt.Type, "id", evt.ID)
	})
	bus.Subscribe(events.NodeDeleted, func(evt events.Event) {
		logger.Debug("audit", "event", evt.Type, "id", evt.ID)
	})

	resolver := authz.New(nodeRepo, logger)
	finder := find.New(nodeRepo, resolver, nil, logger)
	svc := service.New(service.Deps{
		Repo:    nodeRepo,
		Storage: storage,
		Aspects: aspectRepo,
		Authz:   resolver,
		Find:    finder,
		Bus:     bus,
		Logger:  logger,
	})

	// Smoke query so a broken wiring fails at startup, not first request.
	if _, err := svc.Find(ctx, principal.Root(cfg.Tenant), filters.OrFilters{{}}, 1, 1); err != nil {
		return fmt.Errorf("startup query failed: %w", err)
	}

	logger.Info("arkivo ready",
		"tenant", cfg.Tenant, "data_dir", cfg.DataDir, "aspects_dir", cfg.AspectsDir)
	<-ctx.Done()
	logger.Info("shutting down")
	return ctx.Err()
}

func newLogger(level string) *slog.Logger {
	ll := slog.LevelInfo
	switch level {
	case "debug":
		ll = slog.LevelDebug
	case "warn":
		ll = slog.LevelWarn
	case "error":
		ll = slog.LevelError
	}
	return slog.New(tint.NewHandler(colorable.NewColorable(os.Stderr), &tint.Options{
		Level:      ll,
		TimeFormat: "15:04:05.000",
		NoColor:    !isatty.IsTerminal(os.Stderr.Fd()),
	}))
}

func printSchema() error {
	reflector := &jsonschema.Reflector{}
	s := reflector.Reflect(&node.Node{})
	raw, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(raw))
	return nil
}
