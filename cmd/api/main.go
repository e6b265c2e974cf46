package main

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/hospitalms/patient-portal/cmd/mainconfig"
	"github.com/hospitalms/patient-portal/internal/api/router"
	"github.com/hospitalms/patient-portal/internal/app/bootstrap"
	appconfig "github.com/hospitalms/patient-portal/internal/config"
	"github.com/hospitalms/patient-portal/internal/hospital"
	"github.com/hospitalms/patient-portal/internal/http/handlers"
	"github.com/hospitalms/patient-portal/internal/notify"
	"github.com/hospitalms/patient-portal/internal/observability/metrics"
	"github.com/hospitalms/patient-portal/internal/scheduling"
	"github.com/hospitalms/patient-portal/internal/session"
	"github.com/hospitalms/patient-portal/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	// Load configuration
	cfg := appconfig.Load()

	// Initialize logger
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting patient portal API server",
		"env", cfg.Env,
		"port", cfg.Port,
		"hospital_api", cfg.HospitalAPIBaseURL,
	)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	secret, err := sessionSecret(cfg, logger)
	if err != nil {
		logger.Error("invalid session configuration", "error", err)
		os.Exit(1)
	}

	metricsHandler, workflowMetrics := setupMetrics()
	loc := cfg.Location()
	clock := func() time.Time { return time.Now().In(loc) }

	hospitalClient := hospital.NewClient(cfg.HospitalAPIBaseURL, cfg.HospitalAPITimeout, logger).WithObserver(workflowMetrics)

	// Sessions
	redisClient := bootstrap.BuildRedisClient(ctx, cfg, logger, true)
	tokens, err := session.NewTokens(secret, cfg.SessionTTL)
	if err != nil {
		logger.Error("failed to build session tokens", "error", err)
		os.Exit(1)
	}
	sessions := session.NewManager(tokens, bootstrap.BuildSessionRepository(redisClient, logger), logger).
		WithRefresher(hospitalClient)
	sessions.StartSweeper(ctx, time.Minute)

	// Workflow and follow-ups
	workflow := scheduling.NewWorkflow(scheduling.Deps{
		Checker:  hospitalClient,
		Updater:  hospitalClient,
		Creator:  hospitalClient,
		DailyCap: cfg.DailyAppointmentCap,
		Now:      clock,
		Logger:   logger,
		Metrics:  workflowMetrics,
	})

	db, err := bootstrap.OpenDatabase(ctx, cfg, logger)
	if err != nil {
		logger.Warn("audit database unavailable; history disabled", "error", err)
	}
	auditService := setupHooks(ctx, cfg, workflow, sessions, db, logger)

	// Initialize handlers
	appointmentsCfg := handlers.AppointmentsConfig{
		Scheduler:       workflow,
		Lister:          hospitalClient,
		DefaultDoctorID: cfg.DefaultDoctorID,
		Now:             clock,
		Logger:          logger,
	}
	if auditService != nil {
		appointmentsCfg.History = auditService
	}

	// Setup router
	routerCfg := &router.Config{
		Logger:             logger,
		Auth:               handlers.NewAuthHandler(hospitalClient, sessions, cfg.Env != "development", logger).WithClock(clock),
		Appointments:       handlers.NewAppointmentsHandler(appointmentsCfg),
		Stream:             handlers.NewStreamHandler(clock, logger),
		Sessions:           sessions,
		MetricsHandler:     metricsHandler,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		RateLimitRPS:       cfg.RateLimitRPS,
		RateLimitBurst:     cfg.RateLimitBurst,
		HealthChecks:       healthChecks(redisClient, db),
	}
	r := router.New(routerCfg)

	// Create HTTP server. No write timeout: the appointment stream is long-lived.
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")
	stop()

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}
	workflow.Wait()
	if redisClient != nil {
		_ = redisClient.Close()
	}
	if db != nil {
		_ = db.Close()
	}

	logger.Info("server stopped")
	fmt.Println("Server exited gracefully")
}

// sessionSecret returns SESSION_SECRET. Development gets a random per-process
// secret when none is set; every other environment must configure one.
func sessionSecret(cfg *appconfig.Config, logger *logging.Logger) (string, error) {
	if cfg.SessionSecret != "" {
		return cfg.SessionSecret, nil
	}
	if cfg.Env != "development" {
		return "", fmt.Errorf("SESSION_SECRET is required when ENV=%s", cfg.Env)
	}
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate session secret: %w", err)
	}
	logger.Warn("SESSION_SECRET not set; using a random development secret")
	return hex.EncodeToString(buf), nil
}

func setupMetrics() (http.Handler, *metrics.WorkflowMetrics) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), metrics.NewWorkflowMetrics(reg)
}

// historySource is satisfied by *audit.Service.
type historySource interface {
	handlers.HistoryReader
	scheduling.AttemptHook
}

// setupHooks registers the best-effort follow-ups that run after every
// workflow attempt and returns the audit service when one is configured.
func setupHooks(ctx context.Context, cfg *appconfig.Config, wf *scheduling.Workflow, contacts notify.ContactLookup, db *sql.DB, logger *logging.Logger) historySource {
	var history historySource
	if auditService := bootstrap.BuildAuditService(db); auditService != nil {
		wf.AddHook("audit", auditService)
		history = auditService
		logger.Info("appointment audit enabled")
	}

	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		logger.Warn("aws config unavailable; events and SES disabled", "error", err)
	}
	awsPtr := &awsCfg
	if err != nil {
		awsPtr = nil
	}

	if publisher := bootstrap.BuildEventPublisher(cfg, awsPtr, logger); publisher != nil {
		wf.AddHook("events", publisher)
		logger.Info("appointment events enabled", "queue_url", cfg.AppointmentEventsQueueURL)
	}

	sender, provider := bootstrap.BuildEmailSender(cfg, awsPtr, logger)
	wf.AddHook("notify", notify.NewService(sender, contacts, logger))
	logger.Info("confirmation emails enabled", "provider", provider)
	return history
}

func healthChecks(redisClient *redis.Client, db *sql.DB) map[string]router.HealthCheck {
	checks := map[string]router.HealthCheck{}
	if redisClient != nil {
		checks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}
	if db != nil {
		checks["database"] = db.PingContext
	}
	return checks
}
