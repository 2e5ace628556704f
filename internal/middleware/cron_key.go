package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/remembrance/memorial-backend/internal/common"
)

// CronKeyHeader carries the shared secret of scheduled job callers
const CronKeyHeader = "X-Cron-Key"

// CronKeyAuth guards job endpoints with a shared secret. An empty key leaves the
// endpoint open, which is how local environments run it.
func CronKeyAuth(key string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if key == "" {
			c.Next()
			return
		}
		got := c.GetHeader(CronKeyHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(key)) != 1 {
			common.ErrorResponse(c, http.StatusForbidden, "Invalid cron key", nil)
			c.Abort()
			return
		}
		c.Next()
	}
}
