package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/sma-timetable-api/api/swagger"
	"github.com/noah-isme/sma-timetable-api/internal/handler"
	internalmiddleware "github.com/noah-isme/sma-timetable-api/internal/middleware"
	"github.com/noah-isme/sma-timetable-api/internal/repository"
	"github.com/noah-isme/sma-timetable-api/internal/service"
	"github.com/noah-isme/sma-timetable-api/pkg/cache"
	"github.com/noah-isme/sma-timetable-api/pkg/config"
	"github.com/noah-isme/sma-timetable-api/pkg/cpsat"
	"github.com/noah-isme/sma-timetable-api/pkg/database"
	"github.com/noah-isme/sma-timetable-api/pkg/jobs"
	"github.com/noah-isme/sma-timetable-api/pkg/logger"
	"github.com/noah-isme/sma-timetable-api/pkg/mailer"
	corsmiddleware "github.com/noah-isme/sma-timetable-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/sma-timetable-api/pkg/middleware/requestid"
	"github.com/noah-isme/sma-timetable-api/pkg/storage"
)

// @title SMA Timetable API
// @version 1.0.0
// @description Weekly timetable generation, maintenance and reporting
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect database", zap.Error(err))
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		if err := database.RunMigrations(db.DB, logr); err != nil {
			logr.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		logr.Fatal("failed to connect redis", zap.Error(err))
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	courseRepo := repository.NewCourseRepository(db)
	facultyRepo := repository.NewFacultyRepository(db)
	classroomRepo := repository.NewClassroomRepository(db)
	sectionRepo := repository.NewSectionRepository(db)
	timetableRepo := repository.NewTimetableRepository(db)
	lockRepo := repository.NewGenerationLockRepository(redisClient)
	cacheRepo := repository.NewCacheRepository(redisClient, "timetable:reports:", logr)

	artifacts, err := storage.NewLocalStorage(cfg.Scheduler.OutputDir)
	if err != nil {
		logr.Fatal("failed to prepare output directory", zap.Error(err))
	}
	logr.Info("timetable exports enabled", zap.String("path", cfg.Scheduler.ExportPath()))
	signer := storage.NewSignedURLSigner(cfg.Export.SignedURLSecret, cfg.Export.SignedURLTTL)

	metricsService := service.NewMetricsService()
	authService := service.NewAuthService(service.AuthConfig{AccessTokenSecret: cfg.JWT.Secret})

	smtp := mailer.NewSMTPMailer(cfg.Mail)
	worker := service.NewNotificationWorker(smtp, metricsService, logr)
	notifications := jobs.NewQueue("notifications", worker.Handle, jobs.QueueConfig{
		Workers:    cfg.Notify.Workers,
		MaxRetries: cfg.Notify.Retries,
		DeadLetter: worker.DeadLetter,
		Logger:     logr,
	})
	notifications.Start(ctx)
	defer notifications.Stop()
	notifier := service.NewNotificationService(notifications, smtp, metricsService, logr)

	solver := cpsat.NewSolver(cpsat.Parameters{
		MaxTime: cfg.Scheduler.TimeLimit,
		Workers: cfg.Scheduler.Workers,
		Seed:    cfg.Scheduler.Seed,
	})

	guard := service.NewTimetableLock(lockRepo, cfg.Scheduler.LockTTL, logr)
	generator := service.NewTimetableGeneratorService(service.GeneratorDeps{
		Courses:   courseRepo,
		Faculty:   facultyRepo,
		Rooms:     classroomRepo,
		Sections:  sectionRepo,
		Store:     timetableRepo,
		Guard:     guard,
		Artifacts: artifacts,
		Cache:     cacheRepo,
		Notifier:  notifier,
		Solver:    solver,
		Metrics:   metricsService,
		Logger:    logr,
	}, service.GeneratorConfig{ExportFile: cfg.Scheduler.ExportFile})
	timetableService := service.NewTimetableService(
		timetableRepo, guard, facultyRepo, sectionRepo, generator, artifacts, signer, cacheRepo,
		validator.New(), logr,
		service.TimetableServiceConfig{DownloadPath: cfg.APIPrefix + "/timetable/export/download"},
	)
	reportService := service.NewReportService(timetableRepo, cacheRepo, metricsService, cfg.Scheduler.ReportCacheTTL, logr)

	timetableHandler := handler.NewTimetableHandler(generator, timetableService)
	reportHandler := handler.NewReportHandler(reportService)
	checks := map[string]handler.Pinger{"postgres": db}
	if redisClient != nil {
		checks["redis"] = redisPinger(redisClient)
	}
	metricsHandler := handler.NewMetricsHandler(metricsService, checks)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metricsService))
	r.Use(internalmiddleware.WithResponseMeta())

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	api := r.Group(cfg.APIPrefix)
	api.GET("/health", metricsHandler.Health)
	handler.Router{Timetable: timetableHandler, Reports: reportHandler, Auth: authService}.Mount(api)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}

func redisPinger(client *redis.Client) handler.Pinger {
	return handler.PingFunc(func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	})
}
