package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/abduss/uploads/internal/auth"
	"github.com/abduss/uploads/internal/config"
	"github.com/abduss/uploads/internal/logger"
	"github.com/abduss/uploads/internal/metrics"
	"github.com/abduss/uploads/internal/presigned"
	"github.com/abduss/uploads/internal/server"
	"github.com/abduss/uploads/internal/storage"
	"github.com/abduss/uploads/internal/upload"
	"github.com/getsentry/sentry-go"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// .env is optional outside local development.
	_ = godotenv.Load()

	log, err := logger.Init()
	if err != nil {
		panic(err)
	}
	defer log.Sync() //nolint:errcheck

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("load config", zap.Error(err))
	}

	if cfg.Sentry.Enabled() {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:         cfg.Sentry.DSN,
			Environment: cfg.Sentry.Environment,
		}); err != nil {
			log.Fatal("init sentry", zap.Error(err))
		}
		defer sentry.Flush(2 * time.Second)
	}

	gin.SetMode(gin.ReleaseMode)
	metrics.InitMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Postgres.AutoMigrate {
		version, err := storage.Migrate(cfg.Postgres.DSN())
		if err != nil {
			log.Fatal("migrate postgres", zap.Error(err))
		}
		log.Info("database schema ready", zap.Uint("version", version))
	}

	dbPool, err := storage.NewPostgresPool(ctx, cfg.Postgres)
	if err != nil {
		log.Fatal("connect postgres", zap.Error(err))
	}
	defer dbPool.Close()

	objectStore, err := openObjectStore(ctx, cfg.Storage)
	if err != nil {
		log.Fatal("open object store", zap.String("driver", cfg.Storage.Driver), zap.Error(err))
	}

	uploadService := upload.NewService(upload.NewRepository(dbPool), objectStore, cfg.Storage.Bucket, cfg.Upload.MaxFileSize)
	presignService := presigned.NewService(uploadService, objectStore, uploadService.Bucket(), cfg.Upload.PresignDefaultTTL, cfg.Upload.PresignMaxTTL)

	router := server.NewRouter(server.Dependencies{
		Config:         cfg,
		DB:             dbPool,
		ObjectStore:    objectStore,
		Verifier:       auth.NewVerifier(cfg.Auth),
		UploadService:  uploadService,
		PresignService: presignService,
	})

	httpServer := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      server.WithCORS(router, cfg.Server.AllowedOrigins),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("uploads API listening",
			zap.String("addr", cfg.Server.Address()),
			zap.String("storage_driver", cfg.Storage.Driver),
			zap.String("bucket", cfg.Storage.Bucket))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("http server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	log.Info("shutting down gracefully")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown", zap.Error(err))
	}
}

func openObjectStore(ctx context.Context, cfg config.StorageConfig) (upload.ObjectStore, error) {
	switch cfg.Driver {
	case config.StorageDriverS3:
		client, err := storage.OpenS3(ctx, cfg.S3, cfg.Bucket)
		if err != nil {
			return nil, err
		}
		return upload.NewS3Store(client, cfg.Bucket), nil
	default:
		client, err := storage.OpenMinIO(ctx, cfg.MinIO, cfg.Bucket)
		if err != nil {
			return nil, err
		}
		return upload.NewMinIOStore(client, cfg.Bucket), nil
	}
}
