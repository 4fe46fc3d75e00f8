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
	"go.uber.org/zap"

	_ "github.com/escolardev/escolar-api/api/swagger"
	"github.com/escolardev/escolar-api/internal/handler"
	"github.com/escolardev/escolar-api/internal/middleware"
	"github.com/escolardev/escolar-api/internal/models"
	"github.com/escolardev/escolar-api/internal/repository"
	"github.com/escolardev/escolar-api/internal/service"
	"github.com/escolardev/escolar-api/pkg/cache"
	"github.com/escolardev/escolar-api/pkg/config"
	"github.com/escolardev/escolar-api/pkg/database"
	"github.com/escolardev/escolar-api/pkg/logger"
	corsmiddleware "github.com/escolardev/escolar-api/pkg/middleware/cors"
	reqidmiddleware "github.com/escolardev/escolar-api/pkg/middleware/requestid"
	"github.com/escolardev/escolar-api/pkg/storage"
)

// @title Escolar API
// @version 1.0.0
// @description Enrollment, gradebook and academic transcript service
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

	validate := validator.New()
	metricsSvc := service.NewMetricsService()

	var cacheSvc *service.CacheService
	if cfg.Cache.Enabled {
		redisClient, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Sugar().Fatalw("failed to connect to redis", "error", err)
		}
		defer redisClient.Close() //nolint:errcheck
		cacheRepo := repository.NewCacheRepository(redisClient, logr)
		cacheSvc = service.NewCacheService(cacheRepo, metricsSvc, cfg.Cache.TTL, logr, true)
	}

	cardRepo := repository.NewReportCardRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db, cardRepo)
	classRepo := repository.NewClassRepository(db)
	sessionRepo := repository.NewSessionRepository(db, cardRepo)
	subjectRepo := repository.NewSubjectRepository(db)
	roomRepo := repository.NewRoomRepository(db)
	calendarRepo := repository.NewCalendarRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	staffRepo := repository.NewStaffRepository(db)

	authSvc := service.NewAuthService(staffRepo, validate, logr, service.AuthConfig{
		Secret: cfg.JWT.Secret,
		Expiry: cfg.JWT.Expiration,
		Issuer: "escolar-api",
	})
	studentSvc := service.NewStudentService(studentRepo, validate, logr)
	subjectSvc := service.NewSubjectService(subjectRepo, validate, logr)
	roomSvc := service.NewRoomService(roomRepo, validate, logr)
	calendarSvc := service.NewCalendarService(calendarRepo, validate, logr)
	staffSvc := service.NewStaffService(staffRepo, subjectRepo, validate, logr)
	classSvc := service.NewClassService(classRepo, sessionRepo, enrollmentRepo, roomRepo, subjectRepo, staffRepo, calendarRepo, cacheSvc, validate, logr)
	enrollmentSvc := service.NewEnrollmentService(enrollmentRepo, studentRepo, classRepo, sessionRepo, cacheSvc, metricsSvc, validate, logr)
	gradebookSvc := service.NewGradebookService(cardRepo, studentRepo, sessionRepo, classRepo, subjectRepo, cacheSvc, metricsSvc, validate, logr)
	transcriptSvc := service.NewTranscriptService(studentRepo, enrollmentRepo, classRepo, sessionRepo, cardRepo, cacheSvc, logr)
	catalogSvc := service.NewCatalogService(sessionRepo, logr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var exportSvc *service.ExportService
	if cfg.Exports.Enabled {
		store, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
		if err != nil {
			logr.Sugar().Fatalw("failed to init export storage", "error", err)
		}
		signer := storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)
		exportSvc = service.NewExportService(transcriptSvc, store, signer, metricsSvc, service.ExportConfig{
			APIPrefix:  cfg.APIPrefix,
			ResultTTL:  cfg.Exports.SignedURLTTL,
			Workers:    cfg.Exports.WorkerConcurrency,
			MaxRetries: cfg.Exports.WorkerRetries,
		}, logr)
		exportSvc.Start(ctx)
		defer exportSvc.Stop()
		go runExportCleanup(ctx, exportSvc, cfg.Exports.CleanupInterval, logr)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	registerRoutes(r, cfg, routeDeps{
		auth:        handler.NewAuthHandler(authSvc, staffSvc),
		students:    handler.NewStudentHandler(studentSvc),
		enrollments: handler.NewEnrollmentHandler(enrollmentSvc),
		classes:     handler.NewClassHandler(classSvc),
		gradebook:   handler.NewGradebookHandler(gradebookSvc),
		transcripts: handler.NewTranscriptHandler(transcriptSvc),
		catalog:     handler.NewCatalogHandler(catalogSvc),
		exports:     handler.NewExportHandler(exportSvc),
		subjects:    handler.NewSubjectHandler(subjectSvc),
		rooms:       handler.NewRoomHandler(roomSvc),
		calendars:   handler.NewCalendarHandler(calendarSvc),
		staff:       handler.NewStaffHandler(staffSvc),
		metrics:     handler.NewMetricsHandler(metricsSvc, db),
		authSvc:     authSvc,
	})

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("shutdown failed", "error", err)
	}
}

type routeDeps struct {
	auth        *handler.AuthHandler
	students    *handler.StudentHandler
	enrollments *handler.EnrollmentHandler
	classes     *handler.ClassHandler
	gradebook   *handler.GradebookHandler
	transcripts *handler.TranscriptHandler
	catalog     *handler.CatalogHandler
	exports     *handler.ExportHandler
	subjects    *handler.SubjectHandler
	rooms       *handler.RoomHandler
	calendars   *handler.CalendarHandler
	staff       *handler.StaffHandler
	metrics     *handler.MetricsHandler
	authSvc     *service.AuthService
}

func registerRoutes(r *gin.Engine, cfg *config.Config, d routeDeps) {
	r.GET("/health", d.metrics.Health)
	r.GET("/ready", d.metrics.Ready)
	r.GET("/metrics", d.metrics.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	api.POST("/auth/login", d.auth.Login)
	// Signed token is the only credential a download needs.
	api.GET("/exports/download/:token", d.exports.Download)

	authed := api.Group("")
	authed.Use(middleware.JWT(d.authSvc))

	authed.GET("/auth/me", d.auth.Me)
	authed.PUT("/auth/password", d.auth.ChangePassword)

	// Reads are open to every authenticated staff member.
	authed.GET("/students", d.students.List)
	authed.GET("/students/:id", d.students.Get)
	authed.GET("/students/registration/:registration", d.students.GetByRegistration)
	authed.GET("/students/:id/enrollments", d.enrollments.ListByStudent)
	authed.GET("/classes", d.classes.List)
	authed.GET("/classes/:id", d.classes.Get)
	authed.GET("/classes/:id/sessions", d.classes.ListSessions)
	authed.GET("/subjects", d.subjects.List)
	authed.GET("/subjects/:code", d.subjects.Get)
	authed.GET("/rooms", d.rooms.List)
	authed.GET("/rooms/:number", d.rooms.Get)
	authed.GET("/calendars", d.calendars.List)
	authed.GET("/calendars/:year", d.calendars.Get)
	authed.GET("/staff", d.staff.List)
	authed.GET("/staff/:id", d.staff.Get)
	authed.GET("/transcripts/:registration/report-card", d.transcripts.ReportCard)
	authed.GET("/transcripts/:registration/history", d.transcripts.History)
	authed.GET("/sessions/:id", d.catalog.GetSession)
	authed.GET("/sessions/:id/roster", d.gradebook.Roster)
	authed.GET("/gradebook/:registration/:sessionId", d.gradebook.GetEntry)
	authed.POST("/exports", d.exports.Create)
	authed.GET("/exports/:id", d.exports.Get)

	// Teachers and employees both record grades and absences.
	gradebook := authed.Group("")
	gradebook.Use(middleware.RequireRoles(models.StaffRoleTeacher, models.StaffRoleEmployee))
	gradebook.POST("/gradebook/grades", d.gradebook.RecordGrade)
	gradebook.POST("/gradebook/grades/bulk", d.gradebook.BulkRecordGrades)
	gradebook.POST("/gradebook/absences", d.gradebook.RecordAbsences)

	// Administrative mutations are employee-only.
	admin := authed.Group("")
	admin.Use(middleware.RequireRoles(models.StaffRoleEmployee))
	admin.POST("/students", d.students.Create)
	admin.PUT("/students/:id", d.students.Update)
	admin.DELETE("/students/:id", d.students.Delete)
	admin.POST("/enrollments", d.enrollments.Create)
	admin.POST("/classes", d.classes.Create)
	admin.PUT("/classes/:id", d.classes.Update)
	admin.PUT("/classes/:id/close", d.classes.Close)
	admin.PUT("/classes/:id/reopen", d.classes.Reopen)
	admin.DELETE("/classes/:id", d.classes.Delete)
	admin.POST("/classes/:id/sessions", d.classes.AddSession)
	admin.PUT("/sessions/:id", d.classes.UpdateSession)
	admin.DELETE("/sessions/:id", d.classes.DeleteSession)
	admin.POST("/subjects", d.subjects.Create)
	admin.PUT("/subjects/:code", d.subjects.Update)
	admin.DELETE("/subjects/:code", d.subjects.Delete)
	admin.POST("/rooms", d.rooms.Create)
	admin.PUT("/rooms/:number", d.rooms.Update)
	admin.DELETE("/rooms/:number", d.rooms.Delete)
	admin.POST("/calendars", d.calendars.Create)
	admin.PUT("/calendars/:year", d.calendars.Update)
	admin.DELETE("/calendars/:year", d.calendars.Delete)
	admin.POST("/staff", d.staff.Create)
	admin.PUT("/staff/:id", d.staff.Update)
	admin.DELETE("/staff/:id", d.staff.Delete)
	admin.PUT("/gradebook/:registration/:sessionId/grades", d.gradebook.ReplaceGrades)
	admin.PUT("/gradebook/:registration/:sessionId/absences", d.gradebook.SetAbsences)
	admin.PUT("/gradebook/:registration/:sessionId/situation", d.gradebook.OverrideSituation)
}

func runExportCleanup(ctx context.Context, exports *service.ExportService, interval time.Duration, logr *zap.Logger) {
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := exports.Cleanup(0)
			if err != nil {
				logr.Sugar().Warnw("export cleanup failed", "error", err)
				continue
			}
			if len(removed) > 0 {
				logr.Sugar().Infow("expired exports removed", "count", len(removed))
			}
		}
	}
}
