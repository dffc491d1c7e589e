package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/klinikgo/klinik-api/api/swagger"
	"github.com/klinikgo/klinik-api/internal/handler"
	"github.com/klinikgo/klinik-api/internal/middleware"
	"github.com/klinikgo/klinik-api/internal/models"
	"github.com/klinikgo/klinik-api/internal/repository"
	"github.com/klinikgo/klinik-api/internal/service"
	"github.com/klinikgo/klinik-api/pkg/cache"
	"github.com/klinikgo/klinik-api/pkg/config"
	"github.com/klinikgo/klinik-api/pkg/database"
	"github.com/klinikgo/klinik-api/pkg/jobs"
	"github.com/klinikgo/klinik-api/pkg/logger"
	corsmiddleware "github.com/klinikgo/klinik-api/pkg/middleware/cors"
	reqidmiddleware "github.com/klinikgo/klinik-api/pkg/middleware/requestid"
	"github.com/klinikgo/klinik-api/pkg/storage"
)

// @title KlinikGo API
// @version 1.0.0
// @description Clinic management API: doctor availability, appointment booking and staff administration
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

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, availability cache disabled", zap.Error(err))
		redisClient = nil
	}
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	defer cacheRepo.Close()

	validate := validator.New()

	userRepo := repository.NewUserRepository(db)
	doctorRepo := repository.NewDoctorRepository(db)
	patientRepo := repository.NewPatientRepository(db)
	appointmentRepo := repository.NewAppointmentRepository(db)
	invitationRepo := repository.NewInvitationRepository(db)
	reportJobRepo := repository.NewReportJobRepository(db)

	metricsSvc := service.NewMetricsService()

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             cfg.JWT.Issuer,
	})

	availabilitySvc := service.NewAvailabilityService(doctorRepo, appointmentRepo, cacheRepo, logr, service.AvailabilityConfig{
		MaxRangeDays: cfg.Availability.MaxRangeDays,
		CacheTTL:     cfg.Availability.CacheTTL,
	}).WithMetrics(metricsSvc)

	doctorSvc := service.NewDoctorService(doctorRepo, availabilitySvc, validate, logr, cfg.Availability.DefaultSlotMinutes)
	patientSvc := service.NewPatientService(patientRepo, validate, logr)
	appointmentSvc := service.NewAppointmentService(appointmentRepo, doctorRepo, patientRepo, availabilitySvc, validate, logr).WithMetrics(metricsSvc)
	invitationSvc := service.NewInvitationService(invitationRepo, userRepo, validate, logr, cfg.Invitations.TTL)
	dashboardSvc := service.NewDashboardService(doctorRepo, patientRepo, appointmentRepo, cacheRepo, logr, service.DashboardConfig{
		CacheTTL: cfg.Dashboard.CacheTTL,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var reportSvc *service.ReportService
	if cfg.Reports.Enabled {
		store, err := storage.NewLocalStorage(cfg.Reports.StorageDir)
		if err != nil {
			logr.Fatal("failed to init report storage", zap.Error(err))
		}
		signer := storage.NewSignedURLSigner(cfg.Reports.SignedURLSecret, cfg.Reports.SignedURLTTL)
		reportSvc = service.NewReportService(reportJobRepo, appointmentRepo, doctorRepo, store, signer, validate, logr, jobs.QueueConfig{
			Workers:    cfg.Reports.WorkerConcurrency,
			MaxRetries: cfg.Reports.WorkerRetries,
		})
		reportSvc.Start(ctx)
		defer reportSvc.Stop()
	}

	authHandler := handler.NewAuthHandler(authSvc)
	doctorHandler := handler.NewDoctorHandler(doctorSvc)
	patientHandler := handler.NewPatientHandler(patientSvc)
	availabilityHandler := handler.NewAvailabilityHandler(availabilitySvc)
	appointmentHandler := handler.NewAppointmentHandler(appointmentSvc)
	invitationHandler := handler.NewInvitationHandler(invitationSvc)
	dashboardHandler := handler.NewDashboardHandler(dashboardSvc)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	r.GET("/metrics", gin.WrapH(metricsSvc.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	{
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.Refresh)
		auth.POST("/logout", middleware.JWT(authSvc), authHandler.Logout)
		auth.POST("/change-password", middleware.JWT(authSvc), authHandler.ChangePassword)
		auth.GET("/me", middleware.JWT(authSvc), authHandler.Me)
	}

	staffRoles := middleware.RequireRoles(models.RoleSuperAdmin, models.RoleAdmin, models.RoleStaff)
	adminRoles := middleware.RequireRoles(models.RoleSuperAdmin, models.RoleAdmin)

	doctors := api.Group("/doctors", middleware.JWT(authSvc))
	{
		doctors.GET("", doctorHandler.List)
		doctors.GET("/:id", doctorHandler.Get)
		doctors.GET("/:id/availability", availabilityHandler.Day)
		doctors.GET("/:id/availability/range", availabilityHandler.Range)
		doctors.POST("", adminRoles, doctorHandler.Create)
		doctors.PUT("/:id", adminRoles, doctorHandler.Update)
		doctors.DELETE("/:id", adminRoles, doctorHandler.Delete)
	}

	patients := api.Group("/patients", middleware.JWT(authSvc), staffRoles)
	{
		patients.GET("", patientHandler.List)
		patients.GET("/:id", patientHandler.Get)
		patients.POST("", patientHandler.Create)
		patients.PUT("/:id", patientHandler.Update)
		patients.DELETE("/:id", patientHandler.Delete)
	}

	appointments := api.Group("/appointments", middleware.JWT(authSvc))
	{
		appointments.GET("", appointmentHandler.List)
		appointments.GET("/:id", appointmentHandler.Get)
		appointments.POST("", staffRoles, appointmentHandler.Create)
		appointments.POST("/:id/cancel", staffRoles, appointmentHandler.Cancel)
		appointments.POST("/:id/complete", middleware.RequireRoles(models.RoleSuperAdmin, models.RoleAdmin, models.RoleStaff, models.RoleDoctor), appointmentHandler.Complete)
	}

	if cfg.Invitations.Enabled {
		api.POST("/invitations/accept", invitationHandler.Accept)
		invitations := api.Group("/invitations", middleware.JWT(authSvc), adminRoles)
		{
			invitations.GET("", invitationHandler.ListPending)
			invitations.POST("", invitationHandler.Invite)
			invitations.DELETE("/:id", invitationHandler.Revoke)
		}
	}

	if cfg.Dashboard.Enabled {
		api.GET("/dashboard", middleware.JWT(authSvc), adminRoles, dashboardHandler.Summary)
	}

	if reportSvc != nil {
		reportHandler := handler.NewReportHandler(reportSvc)
		api.GET("/downloads/reports", reportHandler.Download)
		reports := api.Group("/reports", middleware.JWT(authSvc), staffRoles)
		{
			reports.GET("", reportHandler.List)
			reports.GET("/:id", reportHandler.Get)
			reports.POST("", reportHandler.Create)
		}
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logr.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
	logr.Info("server stopped")
}
