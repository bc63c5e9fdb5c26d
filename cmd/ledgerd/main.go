package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/okian/fleetledger/internal/adapters/archive"
	"github.com/okian/fleetledger/internal/adapters/http/api"
	"github.com/okian/fleetledger/internal/adapters/kvstore"
	"github.com/okian/fleetledger/internal/adapters/notifier"
	app "github.com/okian/fleetledger/internal/app"
	"github.com/okian/fleetledger/internal/config"
	"github.com/okian/fleetledger/internal/domain/model"
	"github.com/okian/fleetledger/pkg/logger"
)

// HTTP server timeout constants.
const (
	readTimeout       = 10 * time.Second
	writeTimeout      = 35 * time.Second
	idleTimeout       = 60 * time.Second
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 30 * time.Second
)

func main() {
	// Only our own registry is served; drop the default collectors.
	prometheus.Unregister(collectors.NewGoCollector())
	prometheus.Unregister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		// logger isn't available yet
		_, _ = os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}
	if err := logger.InitWithFormat(cfg.LogFormat, os.Stderr); err != nil {
		_, _ = os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	log := logger.Get()
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	if err := run(ctx, cfg, log); err != nil {
		log.Error(ctx, "fleet ledger exited", logger.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log logger.Logger) error {
	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Warn(ctx, "closing store failed", logger.Error(err))
		}
	}()

	center, closeCenter, err := buildCenter(cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeCenter(); err != nil {
			log.Warn(ctx, "closing notification center failed", logger.Error(err))
		}
	}()

	opts, err := serviceOptions(cfg, store, center, log)
	if err != nil {
		return err
	}
	if cfg.S3Bucket != "" {
		a, err := archive.NewS3Archiver(ctx, cfg.S3Bucket, cfg.S3Prefix)
		if err != nil {
			return fmt.Errorf("s3 archiver: %w", err)
		}
		opts = append(opts, app.WithArchiver(a))
	}

	svc := app.New(opts...)
	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("start service: %w", err)
	}
	defer svc.Stop()

	if cfg.SeedFile != "" {
		drivers, err := loadSeed(cfg.SeedFile)
		if err != nil {
			return err
		}
		if err := svc.SeedDrivers(ctx, drivers); err != nil {
			return err
		}
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.NewServer(svc, cfg.Origins()).Router(),
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- fmt.Errorf("%w: %v", api.ErrServe, err)
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			return err
		}
	}
	log.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}
	log.Info(ctx, "server stopped")
	return nil
}

// openStore selects the durable key-value backend.
func openStore(ctx context.Context, cfg *config.Config) (kvstore.Store, error) {
	switch cfg.StoreBackend {
	case config.StoreMemory:
		return kvstore.NewMemoryStore(), nil
	case config.StoreFile:
		s, err := kvstore.NewFileStore(cfg.StoreDir)
		if err != nil {
			return nil, fmt.Errorf("file store: %w", err)
		}
		return s, nil
	case config.StorePostgres:
		s, err := kvstore.OpenPostgres(ctx, cfg.PostgresDSN, cfg.PostgresTable)
		if err != nil {
			return nil, fmt.Errorf("postgres store: %w", err)
		}
		return s, nil
	}
	return nil, fmt.Errorf("%w: store_backend %q", config.ErrInvalidConfig, cfg.StoreBackend)
}

// buildCenter always logs notifications and also publishes them to Kafka
// when brokers are configured.
func buildCenter(cfg *config.Config, log logger.Logger) (notifier.Center, func() error, error) {
	logCenter := notifier.NewLog(log)
	brokers := cfg.Brokers()
	if len(brokers) == 0 {
		return logCenter, func() error { return nil }, nil
	}
	k, err := notifier.NewKafka(notifier.KafkaConfig{Brokers: brokers, Topic: cfg.KafkaTopic})
	if err != nil {
		return nil, nil, err
	}
	return notifier.Fanout{logCenter, k}, k.Close, nil
}

func serviceOptions(cfg *config.Config, store kvstore.Store, center notifier.Center, log logger.Logger) ([]app.Option, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", config.ErrInvalidConfig, err)
	}
	opts := []app.Option{
		app.WithLogger(log),
		app.WithStore(store),
		app.WithCenter(center),
		app.WithMode(cfg.Mode()),
		app.WithLocation(loc),
		app.WithTracking(cfg.TrackingEnabled),
		app.WithQueueSize(cfg.NotificationQueueSize),
		app.WithWorkerCount(cfg.NotificationWorkers),
		app.WithReconcileInterval(time.Duration(cfg.ReconcileIntervalSec) * time.Second),
	}
	if cfg.SimulationEnabled {
		opts = append(opts, app.WithSimulation(time.Duration(cfg.SimulationIntervalSec)*time.Second, cfg.SimulationSeed))
	}
	return opts, nil
}

// loadSeed reads a JSON array of drivers.
func loadSeed(path string) ([]model.Driver, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("seed file: %w", err)
	}
	defer func() { _ = f.Close() }()
	return decodeSeed(f)
}

func decodeSeed(r io.Reader) ([]model.Driver, error) {
	var drivers []model.Driver
	if err := json.NewDecoder(r).Decode(&drivers); err != nil {
		return nil, fmt.Errorf("seed file: %w", err)
	}
	for i := range drivers {
		if drivers[i].Status == "" {
			drivers[i].Status = model.DriverActive
		}
	}
	return drivers, nil
}
