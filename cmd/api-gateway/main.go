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
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/noah-isme/odl-api/api/swagger"
	"github.com/noah-isme/odl-api/internal/handler"
	"github.com/noah-isme/odl-api/internal/middleware"
	"github.com/noah-isme/odl-api/internal/models"
	"github.com/noah-isme/odl-api/internal/repository"
	"github.com/noah-isme/odl-api/internal/service"
	"github.com/noah-isme/odl-api/pkg/cache"
	"github.com/noah-isme/odl-api/pkg/config"
	"github.com/noah-isme/odl-api/pkg/database"
	"github.com/noah-isme/odl-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/odl-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/odl-api/pkg/middleware/requestid"
)

// @title On-Duty Leave API
// @version 1.0.0
// @description Multi-stage approval workflow for student on-duty leave requests
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
		logr.Sugar().Warnw("redis unavailable, submission cache disabled", "error", err)
		redisClient = nil
	}

	userRepo := repository.NewUserRepository(db)
	submissionRepo := repository.NewSubmissionRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	defer cacheRepo.Close() //nolint:errcheck

	validate := validator.New()
	metricsSvc := service.NewMetricsService()

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "odl-api",
	})

	notificationSvc := service.NewNotificationService(notificationRepo, logr, service.NotificationConfig{
		Workers:    cfg.Notifications.Workers,
		BufferSize: cfg.Notifications.BufferSize,
		MaxRetries: cfg.Notifications.MaxRetries,
		RetryDelay: cfg.Notifications.RetryDelay,
	}, service.WithNotificationMetrics(metricsSvc))

	dispatchCtx, stopDispatch := context.WithCancel(context.Background())
	notificationSvc.Start(dispatchCtx)

	verifier := service.NewPermissionVerifier(userRepo)
	approvalSvc := service.NewApprovalService(submissionRepo, verifier, notificationSvc, logr,
		service.WithApprovalCache(cacheRepo),
		service.WithApprovalMetrics(metricsSvc),
		service.WithApprovalAudit(userRepo))
	submissionSvc := service.NewSubmissionService(submissionRepo, userRepo, notificationSvc, logr,
		service.WithSubmissionCache(cacheRepo, cfg.Submissions.CacheTTL),
		service.WithSubmissionAudit(userRepo))

	authHandler := handler.NewAuthHandler(authSvc)
	submissionHandler := handler.NewSubmissionHandler(submissionSvc)
	approvalHandler := handler.NewApprovalHandler(approvalSvc)
	notificationHandler := handler.NewNotificationHandler(notificationSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	{
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.Refresh)
		auth.POST("/forgot-password", authHandler.ForgotPassword)
		auth.POST("/reset-password", authHandler.ResetPassword)
		auth.POST("/logout", middleware.JWT(authSvc), authHandler.Logout)
		auth.POST("/change-password", middleware.JWT(authSvc), authHandler.ChangePassword)
		auth.GET("/me", middleware.JWT(authSvc), authHandler.Me)
	}

	submissions := api.Group("/submissions", middleware.JWT(authSvc))
	{
		submissions.POST("", middleware.RequireRoles(models.RoleStudent), submissionHandler.Create)
		submissions.GET("", submissionHandler.List)
		submissions.GET("/:id", submissionHandler.Get)
		submissions.POST("/:id/resubmit", middleware.RequireRoles(models.RoleStudent), approvalHandler.Resubmit)
		submissions.GET("/:id/approvals", approvalHandler.Projection)
		submissions.POST("/:id/approvals/:stage",
			middleware.RequireRoles(models.RoleFaculty, models.RoleHOD, models.RolePrincipal),
			approvalHandler.Decide)
	}

	notifications := api.Group("/notifications", middleware.JWT(authSvc))
	{
		notifications.GET("", notificationHandler.List)
		notifications.GET("/unread-count", notificationHandler.UnreadCount)
		notifications.POST("/:id/read", notificationHandler.MarkRead)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("server shutdown failed", "error", err)
	}

	stopDispatch()
	notificationSvc.Stop()
}
