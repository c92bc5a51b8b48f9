// Package main provides the entry point for cfsm-agent.
//
// cfsm-agent is the long-running process of the configuration snapshot
// engine: it executes the configured recurring snapshot jobs, enforces
// retention after each run, and serves Prometheus metrics.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/NovWyatt/cloudflare-security-manager-sub000/internal/audit"
	"github.com/NovWyatt/cloudflare-security-manager-sub000/internal/core/domain"
	"github.com/NovWyatt/cloudflare-security-manager-sub000/internal/core/service"
	"github.com/NovWyatt/cloudflare-security-manager-sub000/internal/infra/buildinfo"
	"github.com/NovWyatt/cloudflare-security-manager-sub000/internal/infra/confloader"
	"github.com/NovWyatt/cloudflare-security-manager-sub000/internal/infra/shutdown"
	"github.com/NovWyatt/cloudflare-security-manager-sub000/internal/provider/cloudflare"
	"github.com/NovWyatt/cloudflare-security-manager-sub000/internal/schedule"
	"github.com/NovWyatt/cloudflare-security-manager-sub000/internal/server/config"
	"github.com/NovWyatt/cloudflare-security-manager-sub000/internal/storage/localconf"
	"github.com/NovWyatt/cloudflare-security-manager-sub000/internal/storage/snapstore"
	"github.com/NovWyatt/cloudflare-security-manager-sub000/internal/telemetry/logger"
	"github.com/NovWyatt/cloudflare-security-manager-sub000/internal/telemetry/metric"
	"github.com/NovWyatt/cloudflare-security-manager-sub000/pkg/crypto/sealbox"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configFile  = flag.String("config", "", "Path to configuration file")
		showVersion = flag.Bool("version", false, "Show version information")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("cfsm-agent %s\n", buildinfo.String())
		return nil
	}

	cfg, err := loadConfig(*configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: os.Stdout,
	})
	logger.SetDefault(log)

	log.Info("starting cfsm-agent",
		"version", buildinfo.Get().Version,
		"commit", buildinfo.Get().Commit,
		"config", *configFile)

	metrics := metric.NewRegistry()

	store, err := openSnapshotStore(cfg)
	if err != nil {
		return fmt.Errorf("open snapshot store: %w", err)
	}

	local, err := localconf.Open(localconf.Config{
		Dir:        cfg.Storage.LocalConfDir,
		SyncWrites: cfg.Storage.SyncWrites,
	}, logger.Underlying(log))
	if err != nil {
		return fmt.Errorf("open local config store: %w", err)
	}

	var recorder audit.Recorder = audit.Nop{}
	var auditFile *audit.FileRecorder
	if cfg.Audit.Path != "" {
		if auditFile, err = audit.NewFileRecorder(cfg.Audit.Path); err != nil {
			return fmt.Errorf("open audit log: %w", err)
		}
		recorder = auditFile
	}

	provider := cloudflare.NewClient(cloudflare.Config{
		BaseURL:   cfg.Provider.BaseURL,
		APIToken:  cfg.Provider.APIToken,
		Timeout:   cfg.Provider.Timeout,
		RateLimit: cfg.Provider.RateLimit,
		Logger:    log,
	})

	engine := service.NewEngine(service.EngineConfig{
		Store:          store,
		Provider:       provider,
		Local:          local,
		Recorder:       recorder,
		Logger:         log,
		Metrics:        metrics,
		PacingInterval: cfg.Restore.PacingInterval,
		Parallelism:    cfg.Schedule.Parallelism,
	})

	// Hooks run in reverse registration order: the stores close last,
	// after everything that still writes to them has stopped.
	shutdownHandler := shutdown.NewHandler(30 * time.Second)
	shutdownHandler.OnShutdown(func(context.Context) error {
		log.Info("closing local config store")
		return local.Close()
	})
	if auditFile != nil {
		shutdownHandler.OnShutdown(func(context.Context) error {
			return auditFile.Close()
		})
	}

	// Metrics endpoint.
	if cfg.Metrics.Enabled {
		metricsServer := &http.Server{
			Addr:    cfg.Metrics.Addr,
			Handler: metricsMux(metrics),
		}
		go func() {
			log.Info("metrics server listening", "addr", cfg.Metrics.Addr)
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("metrics server error", "error", err)
				shutdownHandler.Trigger()
			}
		}()
		shutdownHandler.OnShutdown(func(ctx context.Context) error {
			log.Info("shutting down metrics server")
			return metricsServer.Shutdown(ctx)
		})
	}

	// Hot reload of the log level on config file changes.
	if *configFile != "" {
		watcher, err := watchLogLevel(*configFile, log)
		if err != nil {
			log.Warn("config watcher unavailable", "error", err)
		} else {
			shutdownHandler.OnShutdown(func(context.Context) error {
				return watcher.Stop()
			})
		}
	}

	// Scheduler with the configured snapshot jobs.
	if cfg.Schedule.Enabled {
		scheduler, err := startScheduler(cfg, engine, log, metrics)
		if err != nil {
			return fmt.Errorf("start scheduler: %w", err)
		}
		shutdownHandler.OnShutdown(func(ctx context.Context) error {
			log.Info("stopping scheduler")
			return scheduler.Stop(ctx)
		})
	}

	log.Info("agent started")
	if err := shutdownHandler.Wait(); err != nil {
		log.Error("shutdown error", "error", err)
		return err
	}
	log.Info("agent stopped gracefully")
	return nil
}

// loadConfig resolves the effective configuration from defaults, the
// optional file and the environment.
func loadConfig(configFile string) (*config.Config, error) {
	cfg := config.Default()
	opts := []confloader.Option{}
	if configFile != "" {
		opts = append(opts, confloader.WithConfigFile(configFile))
	}
	if err := confloader.NewLoader(opts...).Load(cfg); err != nil {
		return nil, err
	}
	if err := config.Verify(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// openSnapshotStore opens the file store, sealed at rest when an
// encryption key is configured.
func openSnapshotStore(cfg *config.Config) (*snapstore.FileStore, error) {
	var cipher sealbox.Cipher
	if cfg.Security.EncryptionKey != "" {
		key, err := sealbox.ParseKey(cfg.Security.EncryptionKey)
		if err != nil {
			return nil, fmt.Errorf("encryption key: %w", err)
		}
		if cipher, err = sealbox.New(key); err != nil {
			return nil, fmt.Errorf("encryption key: %w", err)
		}
	}
	return snapstore.NewFileStore(snapstore.FileStoreConfig{
		Root:   cfg.Storage.BackupDir,
		Cipher: cipher,
	})
}

// startScheduler registers each configured job. A job captures its zones,
// then enforces the retention policy on the same zones so storage does not
// grow unbounded between manual prunes.
func startScheduler(cfg *config.Config, engine *service.Engine, log logger.Logger, metrics *metric.Registry) (*schedule.Scheduler, error) {
	loc, err := time.LoadLocation(cfg.Schedule.Timezone)
	if err != nil {
		return nil, fmt.Errorf("timezone %q: %w", cfg.Schedule.Timezone, err)
	}

	scheduler := schedule.New(schedule.Config{
		Location: loc,
		Workers:  cfg.Schedule.Parallelism,
		Logger:   log,
		Metrics:  metrics,
	})

	policy := retentionPolicy(cfg)
	for _, job := range cfg.Schedule.Jobs {
		job := job
		_, err := scheduler.ScheduleRecurring(job.Name, job.Spec, func(ctx context.Context) error {
			return runSnapshotJob(ctx, engine, job, policy, log)
		})
		if err != nil {
			return nil, err
		}
	}

	scheduler.Start()
	return scheduler, nil
}

// runSnapshotJob is one execution of a configured recurring job.
func runSnapshotJob(ctx context.Context, engine *service.Engine, job config.ScheduleJob, policy domain.RetentionPolicy, log logger.Logger) error {
	log = log.With("job", job.Name)

	var failed int
	for _, r := range engine.BackupAll(ctx, job.Resources, service.BuildRequest{
		Category:    domain.CategoryScheduled,
		Description: job.Description,
	}) {
		if r.Err != "" {
			failed++
			log.Error("scheduled snapshot failed", "zone", r.ResourceID, "error", r.Err)
		} else {
			log.Info("scheduled snapshot created", "zone", r.ResourceID, "snapshot_id", r.SnapshotID)
		}
	}

	for _, r := range engine.PruneAll(ctx, job.Resources, policy, false) {
		if r.Err != "" {
			failed++
			log.Error("retention sweep failed", "zone", r.ResourceID, "error", r.Err)
		} else if r.Deleted > 0 {
			log.Info("retention sweep pruned snapshots", "zone", r.ResourceID, "deleted", r.Deleted)
		}
	}

	if failed > 0 {
		return fmt.Errorf("job %s: %d zones failed", job.Name, failed)
	}
	return nil
}

func retentionPolicy(cfg *config.Config) domain.RetentionPolicy {
	policy := domain.RetentionPolicy{
		MaxAgeDays:          cfg.Retention.MaxAgeDays,
		MaxCountPerResource: cfg.Retention.MaxCountPerResource,
	}
	for _, cat := range cfg.Retention.ProtectCategories {
		policy.ProtectCategories = append(policy.ProtectCategories, domain.Category(cat))
	}
	return policy
}

// metricsMux serves the Prometheus registry plus a trivial health probe.
func metricsMux(metrics *metric.Registry) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

// watchLogLevel re-reads the log section when the config file changes and
// applies the level without a restart.
func watchLogLevel(configFile string, log logger.Logger) (*confloader.Watcher, error) {
	watcher, err := confloader.NewWatcher(confloader.WithWatcherLogger(log))
	if err != nil {
		return nil, err
	}
	if err := watcher.Watch(configFile); err != nil {
		_ = watcher.Stop()
		return nil, err
	}
	watcher.OnChange(func(path string) {
		cfg, err := loadConfig(path)
		if err != nil {
			log.Warn("config reload failed", "error", err)
			return
		}
		logger.SetLevel(cfg.Log.Level)
		log.Info("log level applied", "level", cfg.Log.Level)
	})
	watcher.StartAsync()
	return watcher, nil
}
