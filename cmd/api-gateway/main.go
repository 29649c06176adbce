package main

import (
	"context"
	"fmt"
	"log"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/parroquia-tools/turnos-api/api/swagger"
	"github.com/parroquia-tools/turnos-api/internal/handler"
	"github.com/parroquia-tools/turnos-api/internal/middleware"
	"github.com/parroquia-tools/turnos-api/internal/models"
	"github.com/parroquia-tools/turnos-api/internal/repository"
	"github.com/parroquia-tools/turnos-api/internal/service"
	"github.com/parroquia-tools/turnos-api/pkg/cache"
	"github.com/parroquia-tools/turnos-api/pkg/config"
	"github.com/parroquia-tools/turnos-api/pkg/database"
	"github.com/parroquia-tools/turnos-api/pkg/jobs"
	"github.com/parroquia-tools/turnos-api/pkg/logger"
	corsmiddleware "github.com/parroquia-tools/turnos-api/pkg/middleware/cors"
	reqidmiddleware "github.com/parroquia-tools/turnos-api/pkg/middleware/requestid"
	"github.com/parroquia-tools/turnos-api/pkg/storage"
)

// @title Turnos API
// @version 1.0.0
// @description Scheduling API for monthly liturgical volunteer rosters.
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
	defer db.Close() //nolint:errcheck

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to redis", "error", err)
	}
	defer redisClient.Close() //nolint:errcheck

	validate := validator.New()

	userRepo := repository.NewUserRepository(db)
	personRepo := repository.NewPersonRepository(db)
	jobRepo := repository.NewJobRepository(db)
	siblingRepo := repository.NewSiblingRepository(db)
	windowRepo := repository.NewUnavailabilityRepository(db)
	scheduleRepo := repository.NewScheduleRepository(db)
	assignmentRepo := repository.NewAssignmentRepository(db)
	historyRepo := repository.NewHistoryRepository(db)
	exportJobRepo := repository.NewExportJobRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	metricsSvc := service.NewMetricsService()
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Cache.DefaultTTL, logr, cfg.Cache.Enabled)
	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		Secret: cfg.JWT.Secret,
		Expiry: cfg.JWT.Expiration,
		Issuer: "turnos-api",
	})
	personSvc := service.NewPersonService(personRepo, jobRepo, windowRepo, db, validate, logr)
	jobSvc := service.NewJobService(jobRepo, db, validate, logr)
	siblingSvc := service.NewSiblingService(siblingRepo, personRepo, db, validate, logr)
	userSvc := service.NewUserService(userRepo, personRepo, validate, logr)
	scheduleSvc := service.NewScheduleService(
		scheduleRepo, assignmentRepo, historyRepo,
		personRepo, jobRepo, windowRepo, siblingRepo,
		cacheRepo, db, validate, logr, cfg.Scheduler,
	)
	assignmentSvc := service.NewAssignmentService(
		assignmentRepo, scheduleRepo,
		personRepo, jobRepo, windowRepo, siblingRepo, historyRepo,
		cacheRepo, db, validate, logr, cfg.Scheduler,
	)
	reportSvc := service.NewReportService(
		historyRepo, personRepo, jobRepo, scheduleRepo, assignmentRepo,
		cacheSvc, logr, service.ReportServiceConfig{
			FairnessTTL: cfg.Cache.FairnessTTL,
			SummaryTTL:  cfg.Cache.DefaultTTL,
		},
	)

	exportStore, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init export storage", "error", err)
	}
	signer := storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)

	// The queue handler closes over the worker variable: the service needs
	// the queue to enqueue and the worker needs the service to render.
	var exportWorker *service.ExportWorker
	exportQueue := jobs.NewQueue("exports", func(ctx context.Context, job jobs.Job) error {
		return exportWorker.Handle(ctx, job)
	}, jobs.QueueConfig{
		Workers:    cfg.Exports.WorkerConcurrency,
		MaxRetries: cfg.Exports.WorkerRetries,
		Logger:     logr,
	})
	exportSvc := service.NewExportService(
		exportJobRepo, scheduleRepo, assignmentRepo,
		exportQueue, exportStore, signer, validate, logr,
		service.ExportServiceConfig{
			APIPrefix:       cfg.APIPrefix,
			ResultTTL:       cfg.Exports.ResultTTL,
			CleanupInterval: cfg.Exports.CleanupInterval,
			MaxRetries:      cfg.Exports.WorkerRetries,
		},
	)
	exportWorker = service.NewExportWorker(exportJobRepo, exportSvc, cfg.Exports.WorkerRetries, logr)

	ctx := context.Background()
	if cfg.Exports.Enabled {
		exportQueue.Start(ctx)
		defer exportQueue.Stop()
		exportSvc.RecoverPendingJobs(ctx)
		exportSvc.StartCleanup(ctx)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))
	r.Use(middleware.WithResponseMeta())

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	registerRoutes(r, apiDeps{
		cfg:         cfg,
		auth:        handler.NewAuthHandler(authSvc),
		people:      handler.NewPersonHandler(personSvc),
		jobs:        handler.NewJobHandler(jobSvc),
		siblings:    handler.NewSiblingHandler(siblingSvc),
		schedules:   handler.NewScheduleHandler(scheduleSvc),
		assignments: handler.NewAssignmentHandler(assignmentSvc),
		reports:     handler.NewReportHandler(reportSvc),
		exports:     handler.NewExportHandler(exportSvc),
		users:       handler.NewUserHandler(userSvc),
		metrics:     handler.NewMetricsHandler(metricsSvc, db, redisClient),
		authSvc:     authSvc,
		userRepo:    userRepo,
	})

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}

type apiDeps struct {
	cfg         *config.Config
	auth        *handler.AuthHandler
	people      *handler.PersonHandler
	jobs        *handler.JobHandler
	siblings    *handler.SiblingHandler
	schedules   *handler.ScheduleHandler
	assignments *handler.AssignmentHandler
	reports     *handler.ReportHandler
	exports     *handler.ExportHandler
	users       *handler.UserHandler
	metrics     *handler.MetricsHandler
	authSvc     *service.AuthService
	userRepo    *repository.UserRepository
}

func registerRoutes(r *gin.Engine, d apiDeps) {
	r.GET("/health", d.metrics.Health)
	r.GET("/ready", d.metrics.Ready)
	r.GET("/metrics", d.metrics.Prometheus)

	api := r.Group(d.cfg.APIPrefix)

	// Public: login and token-signed downloads.
	api.POST("/auth/login", d.auth.Login)
	api.GET("/exports/download/:token", d.exports.Download)

	authed := api.Group("")
	authed.Use(middleware.JWT(d.authSvc))

	staff := middleware.RequireRoles(models.RoleAdmin, models.RoleCoordinator)
	admin := middleware.RequireRoles(models.RoleAdmin)
	selfOrStaff := middleware.RBAC(string(models.RoleAdmin), string(models.RoleCoordinator), "SELF")
	audit := func(action, resource string) gin.HandlerFunc {
		return middleware.Audit(d.userRepo, action, resource)
	}

	authed.GET("/auth/me", d.auth.Me)
	authed.POST("/auth/change-password", d.auth.ChangePassword)

	authed.GET("/people", d.people.List)
	authed.GET("/people/:id", d.people.Get)
	authed.POST("/people", admin, d.people.Create)
	authed.PUT("/people/:id", admin, d.people.Update)
	authed.DELETE("/people/:id", admin, d.people.Deactivate)
	authed.GET("/people/:id/unavailability", selfOrStaff, d.people.ListUnavailability)
	authed.POST("/people/:id/unavailability", selfOrStaff, d.people.AddUnavailability)
	authed.DELETE("/people/:id/unavailability/:windowId", selfOrStaff, d.people.RemoveUnavailability)
	authed.GET("/people/:id/assignments", selfOrStaff, d.assignments.MyAssignments)

	authed.GET("/jobs", d.jobs.List)
	authed.GET("/jobs/:id", d.jobs.Get)
	authed.POST("/jobs", admin, d.jobs.Create)
	authed.PUT("/jobs/:id", admin, d.jobs.Update)
	authed.DELETE("/jobs/:id", admin, d.jobs.Deactivate)

	authed.GET("/sibling-groups", d.siblings.List)
	authed.GET("/sibling-groups/:id", d.siblings.Get)
	authed.POST("/sibling-groups", admin, d.siblings.Create)
	authed.PUT("/sibling-groups/:id", admin, d.siblings.Update)
	authed.DELETE("/sibling-groups/:id", admin, d.siblings.Delete)

	authed.GET("/schedules", d.schedules.List)
	authed.GET("/schedules/:id", d.schedules.Get)
	authed.GET("/schedules/month/:year/:month", d.schedules.GetByMonth)
	authed.GET("/schedules/:id/completeness", d.schedules.Completeness)
	authed.POST("/schedules/generate", staff, d.schedules.Generate)
	authed.POST("/schedules/:id/save", staff, audit("schedule.save", "schedule"), d.schedules.Save)
	authed.POST("/schedules/:id/publish", staff, audit("schedule.publish", "schedule"), d.schedules.Publish)
	authed.POST("/schedules/:id/unpublish", staff, audit("schedule.unpublish", "schedule"), d.schedules.Unpublish)
	authed.POST("/schedules/:id/archive", staff, audit("schedule.archive", "schedule"), d.schedules.Archive)
	authed.DELETE("/schedules/:id", staff, audit("schedule.delete", "schedule"), d.schedules.Delete)

	authed.PUT("/assignments/:id", staff, audit("assignment.replace", "assignment"), d.assignments.Replace)
	authed.POST("/assignments/:id/clear", staff, audit("assignment.clear", "assignment"), d.assignments.Clear)
	authed.POST("/assignments/swap", staff, audit("assignment.swap", "assignment"), d.assignments.Swap)
	authed.POST("/assignments/move", staff, audit("assignment.move", "assignment"), d.assignments.Move)

	authed.GET("/reports/fairness", d.reports.Fairness)
	authed.GET("/reports/summary", d.reports.MonthSummary)
	authed.GET("/reports/people/:id/history", selfOrStaff, d.reports.PersonHistory)

	authed.GET("/schedules/:id/export", d.exports.Create)
	authed.GET("/schedules/:id/exports", d.exports.ListBySchedule)
	authed.GET("/exports/:id", d.exports.Status)

	authed.GET("/users", admin, d.users.List)
	authed.GET("/users/:id", middleware.RBAC(string(models.RoleAdmin), "SELF"), d.users.Get)
	authed.POST("/users", admin, audit("user.create", "user"), d.users.Create)
	authed.PUT("/users/:id", admin, audit("user.update", "user"), d.users.Update)
	authed.DELETE("/users/:id", admin, audit("user.delete", "user"), d.users.Delete)

	authed.GET("/metrics/system", admin, d.metrics.System)
}
