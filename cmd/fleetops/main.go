package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/bitfantasy/fleetops/internal/config"
	"github.com/bitfantasy/fleetops/internal/fleet/entity"
	"github.com/bitfantasy/fleetops/internal/fleet/handler"
	"github.com/bitfantasy/fleetops/internal/fleet/repository"
	"github.com/bitfantasy/fleetops/internal/fleet/seed"
	"github.com/bitfantasy/fleetops/internal/fleet/service"
	"github.com/bitfantasy/fleetops/internal/middleware"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	// 加载 .env 文件
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found, using environment variables")
	}

	// 加载配置
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 初始化日志
	zapLogger, err := initLogger(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer zapLogger.Sync()

	zapLogger.Info("Starting fleetops service",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
	)

	// 初始化数据库
	db, err := initDatabase(cfg.Database)
	if err != nil {
		zapLogger.Fatal("Failed to connect to database", zap.Error(err))
	}

	if err := db.AutoMigrate(
		&entity.User{},
		&entity.Workshop{},
		&entity.Asset{},
		&entity.MaintenanceSchedule{},
		&entity.JobCard{},
		&entity.LaborEntry{},
		&entity.PartsUsed{},
		&entity.JobCardAttachment{},
		&entity.Part{},
		&entity.AuditLog{},
		&entity.SeedMarker{},
	); err != nil {
		zapLogger.Fatal("AutoMigrate failed", zap.Error(err))
	}

	// 初始化基础数据
	if err := seed.Run(db, zapLogger); err != nil {
		zapLogger.Fatal("Seeding failed", zap.Error(err))
	}

	// Redis 未配置时认证降级为纯 JWT 校验
	var rdb *redis.Client
	if cfg.Redis.Host != "" {
		rdb = initRedis(cfg.Redis)
	}

	// MinIO 未配置时附件只落库元数据
	var minioClient *minio.Client
	if cfg.MinIO.Endpoint != "" {
		minioClient, err = minio.New(cfg.MinIO.Endpoint, &minio.Options{
			Creds:  credentials.NewStaticV4(cfg.MinIO.AccessKey, cfg.MinIO.SecretKey, ""),
			Secure: cfg.MinIO.UseSSL,
		})
		if err != nil {
			zapLogger.Warn("MinIO init failed, attachments disabled", zap.Error(err))
			minioClient = nil
		}
	}

	repos := repository.NewRepositories(db)
	services := service.NewServices(db, repos, rdb, minioClient, cfg)
	handlers := handler.NewHandlers(services)

	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(middleware.Recovery(zapLogger))
	router.Use(middleware.Logger(zapLogger))
	router.Use(middleware.CORS())
	router.Use(middleware.RequestID())
	router.Use(middleware.Metrics())
	router.Use(gzip.Gzip(gzip.DefaultCompression))

	registerRoutes(router, handlers, cfg)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		zapLogger.Info("HTTP server listening", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLogger.Fatal("Server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zapLogger.Info("Shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		zapLogger.Error("Server shutdown error", zap.Error(err))
	}
	zapLogger.Info("Server stopped")
}

func registerRoutes(r *gin.Engine, h *handler.Handlers, cfg *config.Config) {
	// 健康检查
	r.GET("/api/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// 指标
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 版本信息
	r.GET("/version", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"version":    Version,
			"build_time": BuildTime,
		})
	})

	api := r.Group("/api")

	// 认证
	auth := api.Group("/auth")
	{
		auth.POST("/login", h.Auth.Login)
		auth.POST("/refresh", h.Auth.Refresh)
	}

	// 需要登录的接口
	authed := api.Group("")
	authed.Use(middleware.JWTAuth(cfg.JWT.Secret))
	{
		authed.GET("/auth/me", h.Auth.Me)
		authed.POST("/auth/change-password", h.Auth.ChangePassword)
		authed.POST("/auth/logout", h.Auth.Logout)

		// 资产
		assets := authed.Group("/assets")
		{
			assets.GET("", h.Asset.List)
			assets.GET("/stats", h.Asset.Stats)
			assets.GET("/new", middleware.RequireRoles(entity.RoleAdmin, entity.RoleFleetManager), h.Asset.NewForm)
			assets.GET("/:id", h.Asset.Get)
			assets.POST("", middleware.RequireRoles(entity.RoleAdmin, entity.RoleFleetManager), h.Asset.Create)
			assets.PUT("/:id", middleware.RequireRoles(entity.RoleAdmin, entity.RoleFleetManager), h.Asset.Update)
			assets.DELETE("/:id", middleware.RequireRoles(entity.RoleAdmin), h.Asset.Delete)
		}

		// 车间
		workshops := authed.Group("/workshops")
		{
			workshops.GET("", h.Workshop.List)
			workshops.GET("/:id", h.Workshop.Get)
			workshops.POST("", middleware.RequireRoles(entity.RoleAdmin), h.Workshop.Create)
			workshops.PUT("/:id", middleware.RequireRoles(entity.RoleAdmin, entity.RoleSupervisor), h.Workshop.Update)
		}

		// 工单
		jobCards := authed.Group("/job-cards")
		{
			jobCards.GET("", h.JobCard.List)
			jobCards.GET("/stats", h.JobCard.Stats)
			jobCards.GET("/new", middleware.RequireRoles(entity.RoleAdmin, entity.RoleFleetManager, entity.RoleSupervisor), h.JobCard.NewForm)
			jobCards.GET("/:id", h.JobCard.Get)
			jobCards.POST("", middleware.RequireRoles(entity.RoleAdmin, entity.RoleFleetManager, entity.RoleSupervisor), h.JobCard.Create)
			jobCards.PUT("/:id", h.JobCard.Update)
			jobCards.POST("/:id/labor", h.JobCard.AddLaborEntry)
			jobCards.POST("/:id/parts", h.JobCard.AddPartsUsed)
			jobCards.POST("/:id/attachments", h.JobCard.UploadAttachment)
			jobCards.GET("/:id/attachments", h.JobCard.ListAttachments)
		}

		// 保养计划
		maintenance := authed.Group("/maintenance")
		{
			maintenance.GET("", h.Maintenance.List)
			maintenance.GET("/due-soon", h.Maintenance.DueSoon)
			maintenance.GET("/:id", h.Maintenance.Get)
			maintenance.POST("", middleware.RequireRoles(entity.RoleAdmin, entity.RoleFleetManager), h.Maintenance.Create)
			maintenance.PUT("/:id", middleware.RequireRoles(entity.RoleAdmin, entity.RoleFleetManager), h.Maintenance.Update)
			maintenance.DELETE("/:id", middleware.RequireRoles(entity.RoleAdmin, entity.RoleFleetManager), h.Maintenance.Delete)
		}

		// 配件库存
		parts := authed.Group("/parts")
		{
			parts.GET("", h.Part.List)
			parts.GET("/low-stock", h.Part.LowStock)
			parts.GET("/export", h.Part.Export)
			parts.GET("/:id", h.Part.Get)
			parts.POST("", middleware.RequireRoles(entity.RoleAdmin, entity.RoleFleetManager, entity.RoleSupervisor), h.Part.Create)
			parts.PUT("/:id", middleware.RequireRoles(entity.RoleAdmin, entity.RoleFleetManager, entity.RoleSupervisor), h.Part.Update)
			parts.POST("/:id/adjust-stock", middleware.RequireRoles(entity.RoleAdmin, entity.RoleFleetManager, entity.RoleSupervisor), h.Part.AdjustStock)
		}

		// 看板
		dashboard := authed.Group("/dashboard")
		{
			dashboard.GET("/stats", h.Dashboard.Stats)
			dashboard.GET("/recent-activity", h.Dashboard.RecentActivity)
		}

		// 审计日志
		audit := authed.Group("/audit")
		audit.Use(middleware.RequireRoles(entity.RoleAdmin, entity.RoleFleetManager))
		{
			audit.GET("", h.Audit.List)
			audit.GET("/entity/:type/:id", h.Audit.EntityTrail)
		}
	}
}

func initLogger(cfg config.LogConfig) (*zap.Logger, error) {
	var zapCfg zap.Config

	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
	}

	switch cfg.Level {
	case "debug":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "info":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	case "warn":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	}

	return zapCfg.Build()
}

func initDatabase(cfg config.DatabaseConfig) (*gorm.DB, error) {
	gormConfig := &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Warn),
		TranslateError: true,
	}

	db, err := gorm.Open(postgres.Open(cfg.DSN()), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	return db, nil
}

func initRedis(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
}
