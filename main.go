package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/querylens-ai/querylens-engine/pkg/audit"
	"github.com/querylens-ai/querylens-engine/pkg/config"
	"github.com/querylens-ai/querylens-engine/pkg/database"
	"github.com/querylens-ai/querylens-engine/pkg/handlers"
	"github.com/querylens-ai/querylens-engine/pkg/health"
	"github.com/querylens-ai/querylens-engine/pkg/jobs"
	"github.com/querylens-ai/querylens-engine/pkg/logging"
	"github.com/querylens-ai/querylens-engine/pkg/middleware"
	"github.com/querylens-ai/querylens-engine/pkg/provider"
	"github.com/querylens-ai/querylens-engine/pkg/safety"
	"github.com/querylens-ai/querylens-engine/pkg/services"
)

// Version is set at build time via ldflags
var Version = "dev"

// supervisorModeSource lets the provider adapter consult the supervisor's
// mode. The adapter and supervisor are constructed in opposite order (the
// supervisor's probe runner includes the adapter's probe), so the reference
// is filled in after both exist. Until then the mode reads as EMERGENCY,
// which fails closed.
type supervisorModeSource struct {
	sup *health.Supervisor
}

func (m *supervisorModeSource) Mode() health.OperationalMode {
	if m.sup == nil {
		return health.ModeEmergency
	}
	return m.sup.Mode()
}

func main() {
	cfg, err := config.Load(Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.NewLogger(cfg.Env)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("Configuration loaded",
		zap.String("environment", cfg.Env),
		zap.String("version", cfg.Version),
		zap.String("database", logging.SanitizeConnectionString(cfg.Database.ConnectionString())),
		zap.String("redis", cfg.Redis.Host),
		zap.Int("provider_endpoints", len(cfg.Providers)))

	// Durable stores.
	db, err := database.NewConnection(ctx, &database.Config{
		URL:            cfg.Database.ConnectionString(),
		MaxConnections: cfg.Database.MaxConnections,
	})
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	if err := database.RunMigrations(cfg.Database.ConnectionString(), "migrations", logger); err != nil {
		logger.Fatal("Failed to run migrations", zap.Error(err))
	}

	redisClient, err := database.NewRedisClient(&cfg.Redis)
	if err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	if redisClient == nil {
		logger.Warn("Redis not configured; cache and index probes will report unavailable")
	} else {
		defer func() { _ = redisClient.Close() }()
	}

	// Model provider adapter. The mode source is bound to the supervisor
	// below, once it exists.
	modes := &supervisorModeSource{}
	endpoints, err := provider.BuildEndpoints(cfg.Providers, cfg.Breaker, logger)
	if err != nil {
		logger.Fatal("Failed to build provider endpoints", zap.Error(err))
	}
	adapter := provider.NewAdapter(endpoints, modes, logger)

	// Health supervisor: probes every dependency each tick and publishes
	// the operational mode everything else gates on.
	probes := []health.Probe{
		health.StorageProbe{DB: db},
		adapter.Probe(),
		health.CacheProbe{Client: redisClient},
		health.IndexProbe{Client: redisClient, Key: health.IndexHeartbeatKey},
	}
	runner := health.NewRunner(probes, cfg.Health.ProbeTimeout, cfg.Health.MaxConcurrentProbes, logger)
	scorer := health.NewScorer(map[string]float64{
		health.DependencyStorage:  cfg.Health.WeightStorage,
		health.DependencyProvider: cfg.Health.WeightProvider,
		health.DependencyCache:    cfg.Health.WeightCache,
		health.DependencyIndex:    cfg.Health.WeightIndex,
	}, cfg.Health.SLALatency)
	supervisor := health.NewSupervisor(runner, scorer, health.SupervisorConfig{
		Thresholds: health.Thresholds{
			Full:     cfg.Health.ThresholdFull,
			Limited:  cfg.Health.ThresholdLimited,
			ReadOnly: cfg.Health.ThresholdReadOnly,
			Config:   cfg.Health.ThresholdConfig,
		},
		TickInterval: cfg.Health.TickInterval,
		WindowSize:   cfg.Health.SampleWindow,
	}, logger)
	supervisor.SetProvidersActive(adapter.ActiveEndpoints)
	modes.sup = supervisor
	go supervisor.Run(ctx)

	// Query safety engine with its policy cache.
	policyStore := safety.NewPostgresPolicyStore(db)
	policyCache := safety.NewCache(policyStore, cfg.Policy.RefreshInterval, logger)
	if err := policyCache.Refresh(ctx); err != nil {
		// Not fatal: the engine fails closed on the empty snapshot until
		// the background refresher succeeds.
		logger.Warn("Initial policy refresh failed", zap.Error(err))
	}
	go policyCache.Run(ctx)
	engine := safety.NewEngine(policyCache, logger)

	// Job orchestrator with its durable queue and runners.
	jobStore := jobs.NewPostgresStore(db)
	orchestrator := jobs.NewOrchestrator(jobStore, jobs.Config{
		Workers:     cfg.Jobs.Workers,
		LeaseTTL:    cfg.Jobs.LeaseTTL,
		MaxAttempts: cfg.Jobs.MaxAttempts,
		BackoffBase: cfg.Jobs.BackoffBase,
		BackoffCap:  cfg.Jobs.BackoffCap,
		PollEvery:   cfg.Jobs.PollEvery,
	}, supervisor, logger)
	orchestrator.Register(jobs.NewBackupRunner(db, cfg.Jobs.BackupDir, logger))
	orchestrator.Register(jobs.NewRestoreRunner(db, logger))
	orchestrator.Register(jobs.NewRetrainRunner(db, redisClient, logger))
	go orchestrator.Run(ctx)

	auditor := audit.NewSecurityAuditor(logger)
	generationService := services.NewGenerationService(adapter, engine, redisClient, auditor, logger)

	mux := http.NewServeMux()
	handlers.NewHealthHandler(cfg, supervisor, logger).RegisterRoutes(mux)
	handlers.NewGenerateHandler(generationService, logger).RegisterRoutes(mux)
	handlers.NewJobsHandler(orchestrator, logger).RegisterRoutes(mux)

	var handler http.Handler = mux
	handler = middleware.RequestLogger(logger)(handler)
	handler = middleware.WithCorrelationID()(handler)

	server := &http.Server{
		Addr:              cfg.BindAddr + ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("Starting querylens-engine",
			zap.String("addr", server.Addr),
			zap.String("version", cfg.Version))
		serverErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("Graceful shutdown failed", zap.Error(err))
		}
	}
}
