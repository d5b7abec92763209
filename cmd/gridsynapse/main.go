package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kirychukyurii/gridsynapse/internal/api"
	"github.com/kirychukyurii/gridsynapse/internal/backoff"
	"github.com/kirychukyurii/gridsynapse/internal/config"
	"github.com/kirychukyurii/gridsynapse/internal/fixture"
	"github.com/kirychukyurii/gridsynapse/internal/logger"
	"github.com/kirychukyurii/gridsynapse/internal/metrics"
	"github.com/kirychukyurii/gridsynapse/internal/optimizer"
	"github.com/kirychukyurii/gridsynapse/internal/repository"
	"github.com/kirychukyurii/gridsynapse/internal/scheduler"
	"github.com/kirychukyurii/gridsynapse/internal/service"
	"github.com/kirychukyurii/gridsynapse/pkg/httpserver"
)

const (
	demoHorizonHours = 24
	demoCarbonWeight = 0.4
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "config.yaml", "path to configuration file")
	demo := flag.Bool("demo", false, "optimize the built-in demo scenario, print the result and exit")
	flag.Parse()

	if *demo {
		// stdout carries the result, logs go to stderr
		os.Exit(runDemo(logger.NewWithWriter(os.Stderr, slog.LevelWarn)))
	}

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.New().Error("failed to load configuration",
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}

	level, err := logger.ParseLevel(cfg.Log.Level)
	if err != nil {
		logger.New().Error("invalid log level",
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}
	log := logger.NewWithLevel(level)

	log.Info("configuration loaded",
		slog.Int("datacenters", len(cfg.Datacenters)),
		slog.String("store", cfg.Store.Backend),
		slog.Bool("scheduler", cfg.Scheduler.Enabled),
	)

	if err := run(cfg, log); err != nil {
		log.Error("server error",
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}

	log.Info("shutdown complete")
}

func run(cfg *config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Create store
	store, err := repository.NewStore(cfg.Store, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Warn("failed to close store",
				slog.String("error", err.Error()),
			)
		}
	}()

	log.Info("store initialized",
		slog.String("backend", store.Name()),
	)

	// Create datacenter source
	source, err := repository.NewConfigSource(cfg.Datacenters, log)
	if err != nil {
		return err
	}

	opt := optimizer.New(optimizer.Options{
		Solver:          cfg.Optimizer.Solver,
		CarbonThreshold: cfg.Optimizer.CarbonThreshold,
		Deadline:        cfg.Optimizer.Deadline,
		MaxNodes:        cfg.Optimizer.MaxNodes,
		MaxHorizonHours: cfg.Optimizer.MaxHorizonHours,
		MaxVariables:    cfg.Optimizer.MaxVariables,
	}, log)

	m := metrics.New()

	// Create service
	svc := service.NewSchedulingService(store, source, opt, service.Options{
		JobTTL:       cfg.Store.JobTTL,
		HorizonHours: cfg.Optimizer.HorizonHours,
		CarbonWeight: cfg.Optimizer.CarbonWeight,
		Solver:       cfg.Optimizer.Solver,
	}, m, log)

	// Start the continuous scheduler
	if cfg.Scheduler.Enabled {
		sched := scheduler.New(scheduler.Config{
			BatchSize:    cfg.Scheduler.BatchSize,
			PollInterval: cfg.Scheduler.PollInterval,
			Retention:    cfg.Scheduler.Retention,
			HorizonHours: cfg.Optimizer.HorizonHours,
			CarbonWeight: cfg.Optimizer.CarbonWeight,
			Backoff: backoff.NewExponentialPolicy(
				cfg.Scheduler.Backoff.Initial,
				cfg.Scheduler.Backoff.Max,
				cfg.Scheduler.Backoff.Multiplier,
			),
		}, store, source, opt, m, log)
		sched.Start(ctx)
		defer sched.Stop()
	}

	// Create HTTP handler
	handler := api.NewHandler(svc, m.Handler(), cfg.Server.BasePath, log)

	srv := httpserver.New(
		cfg.Server.Addr,
		handler.Router(),
		cfg.Server.ReadTimeout,
		cfg.Server.WriteTimeout,
		log,
	)

	log.Info("starting gridsynapse service",
		slog.String("version", service.Version),
	)

	return srv.Run(ctx)
}

// runDemo optimizes the fixture scenario and writes the result to stdout
func runDemo(log *slog.Logger) int {
	opt := optimizer.New(optimizer.Options{Deadline: 30 * time.Second}, log)
	result := opt.Optimize(context.Background(), fixture.DemoJobs(), fixture.DemoDatacenters(), demoHorizonHours, demoCarbonWeight)

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		log.Error("failed to encode result",
			slog.String("error", err.Error()),
		)
		return 1
	}

	if !result.Success {
		return 1
	}
	return 0
}
