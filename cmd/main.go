package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tesla-ce/trust-backend/internal/cache"
	"github.com/tesla-ce/trust-backend/internal/config"
	"github.com/tesla-ce/trust-backend/internal/db"
	"github.com/tesla-ce/trust-backend/internal/handlers"
	"github.com/tesla-ce/trust-backend/internal/logger"
	"github.com/tesla-ce/trust-backend/internal/middleware"
	"github.com/tesla-ce/trust-backend/internal/observability"
	"github.com/tesla-ce/trust-backend/internal/repos"
	"github.com/tesla-ce/trust-backend/internal/server"
	"github.com/tesla-ce/trust-backend/internal/services"
	"github.com/tesla-ce/trust-backend/internal/tasks"
	"github.com/tesla-ce/trust-backend/internal/utils"
)

func main() {
	// Logger
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Tracing
	otelShutdown := observability.InitOTel(ctx, log, observability.OtelConfig{
		ServiceName: "trust-backend",
		Environment: utils.GetEnv("ENVIRONMENT", "development", log),
		Version:     utils.GetEnv("SERVICE_VERSION", "dev", log),
	})
	if otelShutdown != nil {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	// Env
	log.Info("Loading environment variables from main...")
	jwtSecretKey := utils.GetEnv("JWT_SECRET_KEY", "defaultsecret", log)
	vleSecretHash := utils.GetEnv("VLE_SECRET_HASH", "", log)
	accessTokenTTL := utils.GetEnvAsInt("ACCESS_TOKEN_TTL", 3600, log)
	sweepInterval := utils.GetEnvAsInt("NOTIFICATION_SWEEP_SECONDS", 60, log)
	workerQueues := splitCSV(utils.GetEnv("WORKER_QUEUES", tasks.DefaultQueue, log))
	allowOrigins := splitCSV(utils.GetEnv("CORS_ALLOW_ORIGINS", "http://localhost:3000", log))

	// Postgres
	postgresService, err := db.NewPostgresService(log)
	if err != nil {
		log.Fatal("Postgres init failed", "error", err)
	}
	if err = postgresService.AutoMigrateAll(); err != nil {
		log.Warn("Postgres auto migration failed", "error", err)
	}
	thePG := postgresService.DB()

	// Cache
	var cacheClient cache.Cache
	cacheClient, err = cache.NewRedisCache(log)
	if err != nil {
		log.Warn("Redis init failed, falling back to in-memory cache", "error", err)
		cacheClient = cache.NewMemoryCache()
	}
	defer cacheClient.Close()

	// Repos
	log.Info("Setting up Repos from main...")
	institutionRepo := repos.NewInstitutionRepo(thePG, log)
	learnerRepo := repos.NewLearnerRepo(thePG, log)
	consentRepo := repos.NewInformedConsentRepo(thePG, log)
	instrumentRepo := repos.NewInstrumentRepo(thePG, log)
	providerRepo := repos.NewProviderRepo(thePG, log)
	activityRepo := repos.NewActivityRepo(thePG, log)
	sendRepo := repos.NewSENDRepo(thePG, log)
	enrolmentRepo := repos.NewEnrolmentRepo(thePG, log)
	sampleRepo := repos.NewEnrolmentSampleRepo(thePG, log)
	validationRepo := repos.NewSampleValidationRepo(thePG, log)
	requestRepo := repos.NewRequestRepo(thePG, log)
	resultRepo := repos.NewRequestResultRepo(thePG, log)
	providerResultRepo := repos.NewProviderResultRepo(thePG, log)
	reportRepo := repos.NewReportRepo(thePG, log)
	histogramRepo := repos.NewHistogramRepo(thePG, log)
	notificationRepo := repos.NewNotificationRepo(thePG, log)
	taskRunRepo := repos.NewTaskRunRepo(thePG, log)

	// Services
	log.Info("Setting up Services from main...")
	bucketService, err := services.NewBucketService(log)
	if err != nil {
		log.Fatal("Could not init BucketService", "error", err)
	}
	dispatcher := tasks.NewDispatcher(taskRunRepo, log)
	consentService := services.NewConsentService(thePG, log, consentRepo, learnerRepo, institutionRepo, cacheClient)
	sendService := services.NewSENDService(thePG, log, sendRepo, learnerRepo, cacheClient)
	instrumentService := services.NewActivityInstrumentService(thePG, log, activityRepo, sendService)
	enrolmentService := services.NewEnrolmentService(
		thePG, log,
		enrolmentRepo, sampleRepo, validationRepo, providerRepo, instrumentRepo,
		learnerRepo, activityRepo, instrumentService, bucketService, cacheClient,
	)
	validationService := services.NewValidationService(
		thePG, log,
		sampleRepo, validationRepo, providerRepo, instrumentRepo, learnerRepo,
		consentService, enrolmentService, bucketService, dispatcher,
	)
	verificationService := services.NewVerificationService(
		thePG, log,
		requestRepo, resultRepo, providerResultRepo, providerRepo, instrumentRepo,
		learnerRepo, activityRepo, enrolmentRepo, histogramRepo,
		consentService, enrolmentService, bucketService, dispatcher,
	)
	summaryService := services.NewSummaryService(
		thePG, log,
		requestRepo, resultRepo, providerResultRepo, providerRepo, dispatcher,
	)
	reportService := services.NewReportService(
		thePG, log,
		reportRepo, requestRepo, resultRepo, providerResultRepo, providerRepo,
		instrumentRepo, enrolmentRepo, dispatcher,
	)
	factsService := services.NewFactsService(thePG, log, reportRepo, providerRepo, histogramRepo)
	notificationService := services.NewNotificationService(
		thePG, log,
		notificationRepo, providerRepo, verificationService, validationService, dispatcher,
	)
	authService := services.NewAuthService(
		thePG, log, providerRepo,
		jwtSecretKey, vleSecretHash,
		time.Duration(accessTokenTTL)*time.Second,
	)

	// Catalogue seed
	if seedPath := utils.GetEnv("SEED_FILE", "", log); seedPath != "" {
		seed, err := config.LoadSeed(seedPath)
		if err != nil {
			log.Fatal("Could not load seed file", "error", err)
		}
		if err := config.ApplySeed(ctx, log, instrumentRepo, providerRepo, seed); err != nil {
			log.Fatal("Could not apply seed file", "error", err)
		}
	}

	// Task handlers. Provider-queue tasks (provider_verify, sample_validate,
	// enrolment_update) are consumed by the external provider workers, not
	// here.
	registry := tasks.NewRegistry()
	mustRegister(log, registry, tasks.TaskVerifyRequest, func(ctx context.Context, raw json.RawMessage) error {
		var args tasks.VerifyRequestArgs
		if err := json.Unmarshal(raw, &args); err != nil {
			return err
		}
		return verificationService.VerifyRequest(ctx, args.RequestID)
	})
	mustRegister(log, registry, tasks.TaskVerificationSummary, func(ctx context.Context, raw json.RawMessage) error {
		var args tasks.VerificationSummaryArgs
		if err := json.Unmarshal(raw, &args); err != nil {
			return err
		}
		return summaryService.CreateVerificationSummary(ctx, args.RequestID)
	})
	mustRegister(log, registry, tasks.TaskValidationSummary, func(ctx context.Context, raw json.RawMessage) error {
		var args tasks.ValidationSummaryArgs
		if err := json.Unmarshal(raw, &args); err != nil {
			return err
		}
		return validationService.CreateValidationSummary(ctx, args.SampleID, args.Attempt)
	})
	mustRegister(log, registry, tasks.TaskInstrumentReportUpdate, func(ctx context.Context, raw json.RawMessage) error {
		var args tasks.InstrumentReportUpdateArgs
		if err := json.Unmarshal(raw, &args); err != nil {
			return err
		}
		return reportService.UpdateInstrumentReport(ctx, args.ActivityID, args.LearnerID, args.InstrumentID)
	})
	mustRegister(log, registry, tasks.TaskActivityReportUpdate, func(ctx context.Context, raw json.RawMessage) error {
		var args tasks.ActivityReportUpdateArgs
		if err := json.Unmarshal(raw, &args); err != nil {
			return err
		}
		return reportService.UpdateActivityReport(ctx, args.ActivityID, args.LearnerID)
	})
	mustRegister(log, registry, tasks.TaskProviderNotify, func(ctx context.Context, raw json.RawMessage) error {
		var args tasks.ProviderNotifyArgs
		if err := json.Unmarshal(raw, &args); err != nil {
			return err
		}
		return notificationService.Replay(ctx, args.ProviderID, args.Key)
	})

	worker := tasks.NewWorker(log, taskRunRepo, registry, workerQueues)
	worker.Start(ctx)

	// Handlers
	log.Info("Setting up handlers from main...")
	authHandler := handlers.NewAuthHandler(log, authService)
	learnerHandler := handlers.NewLearnerHandler(
		log, learnerRepo,
		verificationService, validationService, enrolmentService, consentService, sendService,
	)
	providerHandler := handlers.NewProviderHandler(
		log, verificationService, validationService, enrolmentService, notificationService,
	)
	reportHandler := handlers.NewReportHandler(log, reportService, factsService)
	authMiddleware := middleware.NewAuthMiddleware(log, authService)

	// Router
	log.Info("Setting up router from main...")
	router := server.NewRouter(server.RouterConfig{
		AuthHandler:     authHandler,
		AuthMiddleware:  authMiddleware,
		LearnerHandler:  learnerHandler,
		ProviderHandler: providerHandler,
		ReportHandler:   reportHandler,
		AllowOrigins:    allowOrigins,
	})

	port := utils.GetEnv("PORT", "8080", log)
	httpServer := &http.Server{Addr: ":" + port, Handler: router}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		log.Info("Server listening", "port", port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	group.Go(func() error {
		ticker := time.NewTicker(time.Duration(sweepInterval) * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-groupCtx.Done():
				return nil
			case <-ticker.C:
				dispatched, err := notificationService.SweepDue(groupCtx)
				if err != nil {
					log.Warn("Notification sweep failed", "error", err)
					continue
				}
				if dispatched > 0 {
					log.Info("Swept due notifications", "dispatched", dispatched)
				}
			}
		}
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil {
		log.Error("Server stopped with error", "error", err)
	}
}

func mustRegister(log *logger.Logger, registry *tasks.Registry, taskName string, h tasks.HandlerFunc) {
	if err := registry.Register(taskName, h); err != nil {
		log.Fatal("Task handler registration failed", "task", taskName, "error", err)
	}
}

func splitCSV(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
