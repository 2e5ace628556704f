package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/remembrance/memorial-backend/internal/service"
	"github.com/remembrance/memorial-backend/pkg/logger"
)

// JobHandler exposes scheduled jobs to an external cron
type JobHandler struct {
	sweeper *service.SweeperService
	timeout time.Duration
}

// NewJobHandler creates a new JobHandler. timeout bounds one sweep run.
func NewJobHandler(sweeper *service.SweeperService, timeout time.Duration) *JobHandler {
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	return &JobHandler{sweeper: sweeper, timeout: timeout}
}

// Sweep godoc
// @Summary      Run the lifecycle sweep
// @Description  Memorializes pages past the 30 day window and queues renewal notices. Safe to repeat.
// @Tags         jobs
// @Produce      json
// @Param        X-Cron-Key  header  string  false  "Shared cron secret"
// @Success      200  {object}  map[string]interface{}
// @Failure      403  {object}  common.Response
// @Failure      409  {object}  map[string]interface{}
// @Router       /jobs/obituary-sweep [post]
func (h *JobHandler) Sweep(c *gin.Context) {
	// a cron client that hangs up must not cut the batch short
	ctx, cancel := context.WithTimeout(context.WithoutCancel(c.Request.Context()), h.timeout)
	defer cancel()

	result, err := h.sweeper.Sweep(ctx)
	if err != nil {
		if errors.Is(err, service.ErrSweepInProgress) {
			c.JSON(http.StatusConflict, gin.H{"ok": false, "error": err.Error()})
			return
		}
		logger.GetLogger().Error().Err(err).Str("request_id", c.GetString("request_id")).Msg("obituary sweep failed")
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": "sweep failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"ok":                   true,
		"memorializedCount":    result.Memorialized,
		"renewalNotifiedCount": result.RenewalNotified,
	})
}
