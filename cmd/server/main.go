package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"dealdossier/internal/analysis"
	"dealdossier/internal/config"
	"dealdossier/internal/domain"
	"dealdossier/internal/email/noop"
	"dealdossier/internal/email/ses"
	"dealdossier/internal/extract"
	"dealdossier/internal/handler"
	"dealdossier/internal/logging"
	"dealdossier/internal/port"
	"dealdossier/internal/progress"
	"dealdossier/internal/repository/postgres"
	"dealdossier/internal/router"
	"dealdossier/internal/service"
	"dealdossier/internal/storage"
)

const shutdownTimeout = 30 * time.Second

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	// .env is optional; real environment variables win.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := logging.Init(cfg.Log)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := postgres.NewDB(&cfg.DB)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	// Initialize repositories
	userRepo := postgres.NewUserRepo(db)
	projectRepo := postgres.NewProjectRepo(db)
	fileRepo := postgres.NewFileRepo(db)
	evidenceRepo := postgres.NewEvidenceRepo(db)
	statsRepo := postgres.NewStatsRepo(db)
	insightStore := postgres.NewInsightStore(db)

	// Initialize storage
	objectStore, err := storage.New(ctx, &cfg.Storage, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize object storage: %w", err)
	}

	progressStore, err := newProgressStore(ctx, &cfg.Progress)
	if err != nil {
		return fmt.Errorf("failed to initialize progress store: %w", err)
	}

	emailSender, err := newEmailSender(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize email sender: %w", err)
	}

	policy, err := analysis.LoadPolicy(cfg.Analysis.PolicyFile)
	if err != nil {
		return fmt.Errorf("failed to load analysis policy: %w", err)
	}
	logger.Info("analysis policy loaded",
		zap.String("name", policy.Name), zap.String("dedup", string(policy.Dedup)))

	// Initialize services
	hub := service.NewSessionHub(logger)
	defer hub.Close()

	extractor := extract.New(
		extract.WithMaxBytes(cfg.Ingest.MaxFileSizeBytes()),
		extract.WithLogger(logger),
	)
	persister := service.NewInsightPersister(insightStore, logger)
	tracker := service.NewProgressTracker(progressStore, logger)

	authSvc := service.NewAuthService(userRepo, emailSender, hub, cfg.JWT, logger)
	projectSvc := service.NewProjectService(projectRepo, fileRepo, objectStore, cfg.Storage.Bucket, logger)
	fileSvc := service.NewFileService(fileRepo, projectRepo, evidenceRepo, objectStore, cfg.Storage.Bucket, cfg.Storage.PresignExpiry, logger)
	statsSvc := service.NewStatsService(statsRepo)
	analysisSvc := service.NewAnalysisService(projectRepo, fileRepo, analysis.NewEngine(policy),
		service.AnalysisCacheConfig{Size: cfg.Analysis.CacheSize, TTL: cfg.Analysis.CacheTTL}, logger)
	uploadSvc := service.NewUploadService(projectRepo, fileRepo, objectStore, extractor, persister, tracker,
		service.UploadConfig{
			Bucket:      cfg.Storage.Bucket,
			MaxBytes:    cfg.Ingest.MaxFileSizeBytes(),
			Concurrency: cfg.Ingest.Concurrency,
			StepTimeout: cfg.Ingest.StepTimeout,
		}, logger)

	sweeper := service.NewUploadSweeper(fileRepo, service.UploadSweeperConfig{
		Interval:   cfg.Ingest.SweepInterval,
		StaleAfter: cfg.Ingest.StaleAfter,
	}, logger)
	go sweeper.Start(ctx)

	sessionEvents, unsubscribe := hub.Subscribe(uuid.Nil)
	defer unsubscribe()
	go logSessionEvents(sessionEvents, logger)

	// Initialize handlers
	handlers := router.Handlers{
		Auth:     handler.NewAuthHandler(authSvc),
		Project:  handler.NewProjectHandler(projectSvc),
		File:     handler.NewFileHandler(fileSvc),
		Upload:   handler.NewUploadHandler(uploadSvc, "", cfg.CORS.AllowedOrigins, logger),
		Analysis: handler.NewAnalysisHandler(analysisSvc, projectSvc, fileSvc),
		Stats:    handler.NewStatsHandler(statsSvc),
		Health:   handler.NewHealthHandler(db),
	}

	// Setup router
	r := router.Setup(authSvc, handlers, router.Options{
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		Swagger:        cfg.Server.Swagger,
		Logger:         logger,
	})

	srv := &http.Server{
		Addr:              cfg.Server.Port,
		Handler:           r,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.String("addr", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown failed", zap.Error(err))
	}
	if err := uploadSvc.Shutdown(shutdownCtx); err != nil {
		logger.Error("upload shutdown failed", zap.Error(err))
	}
	return nil
}

func newProgressStore(ctx context.Context, cfg *config.ProgressConfig) (port.ProgressStore, error) {
	switch cfg.Driver {
	case "", "memory":
		return progress.NewMemoryStore(0, cfg.TTL), nil
	case "redis":
		rdb, err := progress.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return nil, err
		}
		return progress.NewRedisStore(rdb, cfg.TTL), nil
	default:
		return nil, fmt.Errorf("unknown progress driver %q", cfg.Driver)
	}
}

func newEmailSender(cfg *config.Config, logger *zap.Logger) (port.EmailSender, error) {
	switch cfg.Email.Provider {
	case "", "noop":
		return noop.NewNoopSender(cfg.Email.FrontendURL, logger), nil
	case "ses":
		return ses.NewSESSender(cfg.Email.Region, cfg.Email.FromAddress, cfg.Email.FromName,
			cfg.Email.FrontendURL, cfg.JWT.MagicLinkExpiry)
	default:
		return nil, fmt.Errorf("unknown email provider %q", cfg.Email.Provider)
	}
}

func logSessionEvents(events <-chan domain.SessionEvent, logger *zap.Logger) {
	for ev := range events {
		logger.Info("session event",
			zap.String("kind", string(ev.Kind)),
			zap.String("user_id", ev.UserID.String()))
	}
}
