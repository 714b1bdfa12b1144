package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/campushub/campus-hub-api/api/swagger"
	"github.com/campushub/campus-hub-api/internal/handler"
	"github.com/campushub/campus-hub-api/internal/repository"
	"github.com/campushub/campus-hub-api/internal/service"
	"github.com/campushub/campus-hub-api/pkg/cache"
	"github.com/campushub/campus-hub-api/pkg/config"
	"github.com/campushub/campus-hub-api/pkg/database"
	"github.com/campushub/campus-hub-api/pkg/jobs"
	"github.com/campushub/campus-hub-api/pkg/logger"
	corsmiddleware "github.com/campushub/campus-hub-api/pkg/middleware/cors"
	reqidmiddleware "github.com/campushub/campus-hub-api/pkg/middleware/requestid"
	"github.com/campushub/campus-hub-api/pkg/storage"

	appmiddleware "github.com/campushub/campus-hub-api/internal/middleware"
)

// @title Campus Hub API
// @version 1.0.0
// @description Campus announcements, complaints and facility bookings
// @BasePath /api/v1
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, announcement cache disabled", "error", err)
		redisClient = nil
	}

	validate := validator.New()

	userRepo := repository.NewUserRepository(db)
	announcementRepo := repository.NewAnnouncementRepository(db)
	complaintRepo := repository.NewComplaintRepository(db)
	bookingRepo := repository.NewBookingRepository(db)
	reportRepo := repository.NewReportRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	metricsSvc := service.NewMetricsService()

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             cfg.JWT.Issuer,
		AllowedEmailDomain: cfg.Auth.AllowedEmailDomain,
		SingleSession:      cfg.Auth.SingleSession,
	})
	userSvc := service.NewUserService(userRepo, validate, logr)

	announcementSvc := service.NewAnnouncementService(announcementRepo, cacheRepo, userRepo, validate, logr, cfg.Announcements.CacheTTL)
	announcementSvc.SetMetrics(metricsSvc)

	complaintSvc := service.NewComplaintService(complaintRepo, userRepo, validate, logr)
	complaintSvc.SetMetrics(metricsSvc)

	bookingSvc := service.NewBookingService(bookingRepo, userRepo, validate, logr)
	bookingSvc.SetMetrics(metricsSvc)

	handlers := &handler.Handlers{
		Auth:          handler.NewAuthHandler(authSvc),
		Users:         handler.NewUserHandler(userSvc),
		Announcements: handler.NewAnnouncementHandler(announcementSvc),
		Complaints:    handler.NewComplaintHandler(complaintSvc),
		Bookings:      handler.NewBookingHandler(bookingSvc),
		Metrics:       handler.NewMetricsHandler(metricsSvc, db),
		AuthService:   authSvc,
		UserRepo:      userRepo,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var reportQueue *jobs.Queue
	if cfg.Reports.Enabled {
		store, err := storage.NewLocalStorage(cfg.Reports.StorageDir)
		if err != nil {
			logr.Sugar().Fatalw("failed to prepare report storage", "error", err)
		}
		signer := storage.NewSignedURLSigner(cfg.Reports.SignedURLSecret, cfg.Reports.SignedURLTTL)

		reportSvc := service.NewReportService(reportRepo, complaintRepo, bookingRepo, store, signer, validate, logr)
		reportSvc.SetMetrics(metricsSvc)

		reportQueue = jobs.NewQueue("reports", reportSvc.HandleJob, jobs.QueueConfig{
			Workers:    cfg.Reports.WorkerConcurrency,
			MaxRetries: cfg.Reports.WorkerRetries,
			Logger:     logr,
		})
		reportQueue.Start(ctx)
		defer reportQueue.Stop()
		reportSvc.SetQueue(reportQueue)

		// Expired exports are swept on the signed URL TTL so a valid link
		// always has a file behind it.
		go func() {
			ticker := time.NewTicker(time.Hour)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					removed, err := store.Sweep(cfg.Reports.SignedURLTTL)
					if err != nil {
						logr.Sugar().Warnw("export sweep failed", "error", err)
						continue
					}
					if len(removed) > 0 {
						logr.Sugar().Infow("swept expired exports", "count", len(removed))
					}
				}
			}
		}()

		handlers.Reports = handler.NewReportHandler(reportSvc)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(appmiddleware.Metrics(metricsSvc))

	handlers.Register(r, cfg.APIPrefix)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: r,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}

	if err := cacheRepo.Close(); err != nil {
		logr.Sugar().Warnw("failed to close redis", "error", err)
	}
}
