package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/remembrance/memorial-backend/internal/config"
	"github.com/remembrance/memorial-backend/internal/handler"
	"github.com/remembrance/memorial-backend/internal/middleware"
	"github.com/remembrance/memorial-backend/pkg/jwt"
)

// Handlers groups the HTTP handlers mounted by Setup
type Handlers struct {
	Obituary      *handler.ObituaryHandler
	AdminObituary *handler.AdminObituaryHandler
	Comment       *handler.CommentHandler
	Notification  *handler.NotificationHandler
	Job           *handler.JobHandler
	Upload        *handler.UploadHandler
	Audit         *handler.AuditHandler
	// AuditRecorder receives admin actions; nil disables the audit trail
	AuditRecorder middleware.AuditRecorder
}

// Setup configures all API routes. redisClient may be nil, which disables rate limiting.
func Setup(router *gin.Engine, h Handlers, jwtManager *jwt.Manager, redisClient *redis.Client, cfg *config.Config) {
	handler.RegisterValidators()

	cookie := cfg.JWT.CookieName
	requireAuth := middleware.JWTAuth(jwtManager, cookie)
	optionalAuth := middleware.OptionalAuth(jwtManager, cookie)

	submitLimit := middleware.RateLimit(redisClient, middleware.RateLimitConfig{
		RequestsPerMinute: cfg.Limits.SubmissionsPerMinute,
		KeyPrefix:         "memorial:ratelimit:submit:",
	})
	commentLimit := middleware.RateLimit(redisClient, middleware.RateLimitConfig{
		RequestsPerMinute: cfg.Limits.CommentsPerMinute,
		KeyPrefix:         "memorial:ratelimit:comment:",
	})

	// Scheduled jobs (shared secret, no user token)
	jobs := router.Group("/jobs", middleware.CronKeyAuth(cfg.Jobs.CronKey))
	jobs.POST("/obituary-sweep", h.Job.Sweep)

	api := router.Group("/api/v1")

	// Obituaries
	obituaries := api.Group("/obituaries")
	obituaries.GET("", h.Obituary.List)
	obituaries.POST("", requireAuth, submitLimit, h.Obituary.Submit)
	obituaries.GET("/:id", optionalAuth, h.Obituary.Get)
	obituaries.PUT("/:id/appreciation", requireAuth, h.Obituary.SetAppreciation)
	obituaries.GET("/:id/export", requireAuth, h.Obituary.Export)

	// Comments and tributes
	obituaries.GET("/:id/comments", optionalAuth, h.Comment.List)
	obituaries.POST("/:id/comments", optionalAuth, commentLimit, h.Comment.Create)

	// Images for submissions
	api.POST("/uploads/images", requireAuth, submitLimit, h.Upload.UploadImage)

	// Current user
	me := api.Group("/me", requireAuth)
	me.GET("/obituaries", h.Obituary.ListMine)

	notifications := api.Group("/notifications", requireAuth)
	notifications.GET("", h.Notification.GetList)
	notifications.GET("/unread-count", h.Notification.GetUnreadCount)
	notifications.POST("/read-all", h.Notification.MarkAllAsRead)
	notifications.POST("/:id/read", h.Notification.MarkAsRead)

	// Administration
	admin := api.Group("/admin", requireAuth, middleware.RequireAdmin())
	adminObits := admin.Group("/obituaries", middleware.AdminAudit(h.AuditRecorder, "obituary"))
	adminObits.GET("", h.AdminObituary.List)
	adminObits.GET("/stats", h.AdminObituary.Stats)
	adminObits.POST("/:id/approve", h.AdminObituary.Approve)
	adminObits.POST("/:id/reject", h.AdminObituary.Reject)
	adminObits.PATCH("/:id/payment", h.AdminObituary.SetPayment)
	adminObits.POST("/:id/archive", h.AdminObituary.Archive)

	adminComments := admin.Group("/comments", middleware.AdminAudit(h.AuditRecorder, "comment"))
	adminComments.GET("", h.Comment.ListPending)
	adminComments.POST("/:id/approve", h.Comment.Approve)

	admin.GET("/audit-logs", h.Audit.List)
}
