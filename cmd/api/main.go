package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/remembrance/memorial-backend/internal/config"
	"github.com/remembrance/memorial-backend/internal/handler"
	"github.com/remembrance/memorial-backend/internal/middleware"
	"github.com/remembrance/memorial-backend/internal/migration"
	"github.com/remembrance/memorial-backend/internal/repository"
	"github.com/remembrance/memorial-backend/internal/routes"
	"github.com/remembrance/memorial-backend/internal/scheduler"
	"github.com/remembrance/memorial-backend/internal/service"
	"github.com/remembrance/memorial-backend/internal/tracing"
	"github.com/remembrance/memorial-backend/pkg/jwt"
	pkglogger "github.com/remembrance/memorial-backend/pkg/logger"
	pkgredis "github.com/remembrance/memorial-backend/pkg/redis"
	pkgstorage "github.com/remembrance/memorial-backend/pkg/storage"
)

const serviceName = "memorial-backend"

// @title           Memorial Backend API
// @version         1.0
// @description     Obituary submission, moderation and memorial lifecycle API
//
// @license.name    MIT
//
// @host            localhost:8082
// @BasePath        /api/v1
//
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description JWT Authorization header using the Bearer scheme. Example: "Bearer {token}"

// getConfigPath returns config file path based on APP_ENV environment variable
func getConfigPath() string {
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf("configs/config.%s.yaml", env)
}

func main() {
	dotenvFiles := config.LoadDotEnv(".")

	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "local"
	}
	pkglogger.InitStructured(env)
	pkglogger.Info("APP_ENV=%s, loaded env files: %v", env, dotenvFiles)

	configPath := getConfigPath()
	pkglogger.Info("Loading config from: %s", configPath)
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	config.LogResolved(cfg)
	gin.SetMode(cfg.Server.Mode)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Init(ctx, cfg.Tracing, serviceName, env)
	if err != nil {
		log.Fatalf("Failed to initialize tracing: %v", err)
	}

	// MySQL
	db, err := initDB(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	pkglogger.Info("Connected to MySQL")
	if cfg.IsDevelopment() {
		if err := migration.Run(db); err != nil {
			pkglogger.Warn("Migration warning: %v", err)
		}
	}

	// Redis is optional: without it rate limits are off and the sweep lock is local only
	var redisClient *goredis.Client
	if cfg.Redis.Host != "" {
		redisClient, err = pkgredis.NewClient(
			cfg.Redis.Host,
			cfg.Redis.Port,
			cfg.Redis.Password,
			cfg.Redis.DB,
			cfg.Redis.PoolSize,
		)
		if err != nil {
			pkglogger.Warn("Failed to connect to Redis: %v (continuing without Redis)", err)
			redisClient = nil
		} else {
			pkglogger.Info("Connected to Redis")
		}
	}

	// Object storage for image uploads and export downloads
	var s3Client *pkgstorage.S3Client
	if cfg.Storage.Enabled {
		s3Client, err = pkgstorage.NewS3Client(pkgstorage.S3Config{
			Endpoint:        cfg.Storage.Endpoint,
			Region:          cfg.Storage.Region,
			AccessKeyID:     cfg.Storage.AccessKeyID,
			SecretAccessKey: cfg.Storage.SecretAccessKey,
			Bucket:          cfg.Storage.Bucket,
			BasePath:        cfg.Storage.BasePath,
			ForcePathStyle:  cfg.Storage.ForcePathStyle,
			PublicURL:       cfg.Storage.PublicURL,
		})
		if err != nil {
			pkglogger.Warn("Failed to initialize S3 client: %v (exports fall back to image URLs)", err)
			s3Client = nil
		}
	}
	fetcher := pkgstorage.NewImageFetcher(s3Client, cfg.Export.FetchTimeout, cfg.Export.MaxImageBytes)
	if hosts := imageHosts(cfg); len(hosts) > 0 {
		fetcher.AllowHosts(hosts...)
	}

	jwtManager := jwt.NewManager(cfg.JWT.Secret, cfg.JWT.ExpiresIn)

	// Repositories
	obituaryRepo := repository.NewObituaryRepository(db)
	commentRepo := repository.NewCommentRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	auditRepo := repository.NewAuditRepository(db)

	// Services
	obituaryCache := service.NewObituaryCache(cfg.Cache.ObituarySize, cfg.Cache.ObituaryTTL)
	locker := pkgredis.NewLocker(redisClient, "memorial:lock:")

	obituaryService := service.NewObituaryService(obituaryRepo, notificationRepo, obituaryCache)
	sweeperService := service.NewSweeperService(obituaryRepo, notificationRepo, locker, cfg.Jobs.SweepLockTTL, obituaryCache)
	exportService := service.NewExportService(obituaryRepo, fetcher)
	commentService := service.NewCommentService(commentRepo, obituaryRepo)
	notificationService := service.NewNotificationService(notificationRepo)

	// Uploads need object storage; without it the endpoint answers 503
	var uploader service.ObjectUploader
	if s3Client != nil {
		uploader = s3Client
	}
	uploadService := service.NewImageUploadService(uploader, cfg.Storage.MaxUploadBytes, cfg.Storage.MaxImageWidth).
		WithMaxPixels(cfg.Storage.MaxImagePixels)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(corsConfig(cfg.CORS.AllowOrigins)))
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.InputSanitizer())
	router.Use(middleware.Metrics())
	router.Use(middleware.Tracing())
	router.Use(middleware.RequestLogger())

	// Prometheus metrics
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Health Check
	router.GET("/health", func(c *gin.Context) {
		status := http.StatusOK
		dbStatus := "ok"
		if sqlDB, err := db.DB(); err != nil || sqlDB.PingContext(c.Request.Context()) != nil {
			status = http.StatusServiceUnavailable
			dbStatus = "unavailable"
		}
		c.JSON(status, gin.H{
			"status":   dbStatus,
			"service":  serviceName,
			"database": dbStatus,
			"redis":    redisClient != nil,
			"time":     time.Now().Unix(),
		})
	})

	// Swagger UI
	if cfg.IsDevelopment() {
		router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	routes.Setup(router, routes.Handlers{
		Obituary:      handler.NewObituaryHandler(obituaryService, exportService),
		AdminObituary: handler.NewAdminObituaryHandler(obituaryService),
		Comment:       handler.NewCommentHandler(commentService),
		Notification:  handler.NewNotificationHandler(notificationService),
		Job:           handler.NewJobHandler(sweeperService, cfg.Jobs.SweepLockTTL),
		Upload:        handler.NewUploadHandler(uploadService),
		Audit:         handler.NewAuditHandler(auditRepo),
		AuditRecorder: auditRepo,
	}, jwtManager, redisClient, cfg)

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": gin.H{"code": "NOT_FOUND", "message": "not found"}})
	})

	// In-process sweep, for deployments without an external cron calling /jobs/obituary-sweep
	var sched *scheduler.Scheduler
	if cfg.Jobs.SweepInterval > 0 {
		sched = scheduler.New(*pkglogger.GetLogger(), time.Minute, cfg.Jobs.SweepLockTTL)
		sched.Register("obituary-sweep", cfg.Jobs.SweepInterval, func(ctx context.Context) error {
			_, err := sweeperService.Sweep(ctx)
			if errors.Is(err, service.ErrSweepInProgress) {
				return nil
			}
			return err
		})
		sched.Start()
		pkglogger.Info("Sweep scheduler started (interval %s)", cfg.Jobs.SweepInterval)
	}

	go reportDBStats(ctx, db)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		pkglogger.Info("Server listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	pkglogger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		pkglogger.Error("HTTP shutdown: %v", err)
	}
	if sched != nil {
		sched.Stop()
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		pkglogger.Error("Tracing shutdown: %v", err)
	}
	if redisClient != nil {
		_ = redisClient.Close()
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

func corsConfig(allowOrigins string) cors.Config {
	origins := splitAndTrim(allowOrigins, ",")
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000"}
	}
	return cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-ID", "X-Cron-Key"},
		AllowCredentials: true,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "OPTIONS"},
		ExposeHeaders:    []string{"X-Request-ID", "X-RateLimit-Remaining", "Content-Disposition"},
		MaxAge:           12 * time.Hour,
	}
}

// splitAndTrim splits s by sep and drops empty parts
// imageHosts lists the hosts export may fetch gallery URLs from
func imageHosts(cfg *config.Config) []string {
	hosts := append([]string{}, cfg.Export.AllowedImageHosts...)
	if cfg.Storage.PublicURL != "" {
		if u, err := url.Parse(cfg.Storage.PublicURL); err == nil && u.Hostname() != "" {
			hosts = append(hosts, u.Hostname())
		}
	}
	return hosts
}

func splitAndTrim(s, sep string) []string {
	var parts []string
	for _, part := range strings.Split(s, sep) {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return parts
}

// reportDBStats feeds the open-connection gauge until ctx ends
func reportDBStats(ctx context.Context, db *gorm.DB) {
	sqlDB, err := db.DB()
	if err != nil {
		return
	}
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			middleware.ObserveDBStats(sqlDB.Stats())
		}
	}
}

// initDB opens the MySQL connection pool
func initDB(cfg *config.Config) (*gorm.DB, error) {
	logLevel := gormlogger.Warn
	if cfg.IsDevelopment() {
		logLevel = gormlogger.Info
	}

	db, err := gorm.Open(mysql.Open(cfg.Database.GetDSN()), &gorm.Config{
		Logger: gormlogger.Default.LogMode(logLevel),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	sqlDB.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.Database.ConnMaxLifetime) * time.Second)

	return db, nil
}
