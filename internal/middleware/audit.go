package middleware

import (
	"context"
	"net/http"
	"path"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/remembrance/memorial-backend/internal/domain"
	"github.com/remembrance/memorial-backend/pkg/logger"
)

// AuditRecorder persists audit entries
type AuditRecorder interface {
	Record(ctx context.Context, entry *domain.AuditLog) error
}

// AdminAudit records every successful state-changing request under the group.
// The action is the last segment of the route (approve, reject, payment, archive),
// the resource id comes from the :id parameter. A nil recorder disables auditing.
func AdminAudit(recorder AuditRecorder, resource string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if recorder == nil || c.Request.Method == http.MethodGet {
			return
		}
		status := c.Writer.Status()
		if status >= http.StatusBadRequest {
			return
		}

		route := c.FullPath()
		if route == "" {
			return
		}
		entry := &domain.AuditLog{
			ActorID:    GetUserID(c),
			Action:     path.Base(route),
			Resource:   resource,
			ResourceID: c.Param("id"),
			Status:     status,
			ClientIP:   c.ClientIP(),
			UserAgent:  truncate(c.Request.UserAgent(), 500),
			RequestID:  c.GetString("request_id"),
			CreatedAt:  time.Now().UTC(),
		}

		// the response is already written, so a failed write is only logged
		ctx := context.WithoutCancel(c.Request.Context())
		if err := recorder.Record(ctx, entry); err != nil {
			logger.GetLogger().Error().Err(err).
				Str("action", entry.Action).
				Str("actor_id", entry.ActorID).
				Str("resource_id", entry.ResourceID).
				Msg("audit log write failed")
		}
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
