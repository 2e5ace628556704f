package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/remembrance/memorial-backend/internal/common"
	"github.com/remembrance/memorial-backend/internal/middleware"
	"github.com/remembrance/memorial-backend/internal/service"
	"github.com/remembrance/memorial-backend/pkg/ginutil"
)

// NotificationHandler handles notification requests
type NotificationHandler struct {
	service *service.NotificationService
}

// NewNotificationHandler creates a new NotificationHandler
func NewNotificationHandler(service *service.NotificationService) *NotificationHandler {
	return &NotificationHandler{service: service}
}

// GetUnreadCount handles GET /api/v1/notifications/unread-count
func (h *NotificationHandler) GetUnreadCount(c *gin.Context) {
	count, err := h.service.GetUnreadCount(c.Request.Context(), middleware.GetActor(c))
	if err != nil {
		respondError(c, err, "count notifications")
		return
	}
	common.Success(c, gin.H{"total_unread": count})
}

// GetList handles GET /api/v1/notifications
func (h *NotificationHandler) GetList(c *gin.Context) {
	result, err := h.service.GetList(c.Request.Context(), middleware.GetActor(c),
		ginutil.QueryInt(c, "page", 1), ginutil.QueryInt(c, "limit", 20))
	if err != nil {
		respondError(c, err, "list notifications")
		return
	}
	common.Success(c, result)
}

// MarkAsRead handles POST /api/v1/notifications/:id/read
func (h *NotificationHandler) MarkAsRead(c *gin.Context) {
	id, err := ginutil.ParamUint64(c, "id")
	if err != nil {
		invalidID(c, err)
		return
	}
	if err := h.service.MarkAsRead(c.Request.Context(), middleware.GetActor(c), id); err != nil {
		respondError(c, err, "mark notification as read")
		return
	}
	common.Success(c, gin.H{"read": true})
}

// MarkAllAsRead handles POST /api/v1/notifications/read-all
func (h *NotificationHandler) MarkAllAsRead(c *gin.Context) {
	if err := h.service.MarkAllAsRead(c.Request.Context(), middleware.GetActor(c)); err != nil {
		respondError(c, err, "mark notifications as read")
		return
	}
	common.Success(c, gin.H{"read": true})
}
