package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/remembrance/memorial-backend/internal/common"
	"github.com/remembrance/memorial-backend/internal/middleware"
	"github.com/remembrance/memorial-backend/internal/service"
	"github.com/remembrance/memorial-backend/pkg/logger"
)

// respondError maps service errors to HTTP responses. Unknown errors become a
// generic 500 and are logged with the request id.
func respondError(c *gin.Context, err error, action string) {
	var elig *service.EligibilityError
	switch {
	case errors.As(err, &elig):
		c.JSON(http.StatusForbidden, common.Response{
			Success: false,
			Error: &common.ErrorInfo{
				Code:    "NOT_ELIGIBLE",
				Message: elig.Error(),
				Details: gin.H{"available_at": elig.AvailableAt},
			},
		})
	case errors.Is(err, common.ErrUnauthorized):
		common.ErrorResponse(c, http.StatusUnauthorized, "Authentication required", nil)
	case errors.Is(err, common.ErrForbidden):
		common.ErrorResponse(c, http.StatusForbidden, "You do not have permission to perform this action", nil)
	case errors.Is(err, service.ErrTributesDisabled):
		common.ErrorResponse(c, http.StatusForbidden, err.Error(), nil)
	case errors.Is(err, service.ErrObituaryNotFound),
		errors.Is(err, service.ErrCommentNotFound),
		errors.Is(err, service.ErrNotificationNotFound),
		errors.Is(err, common.ErrNotFound):
		common.ErrorResponse(c, http.StatusNotFound, err.Error(), nil)
	case errors.Is(err, service.ErrReasonRequired),
		errors.Is(err, common.ErrInvalidInput):
		common.ErrorResponse(c, http.StatusBadRequest, err.Error(), nil)
	case errors.Is(err, service.ErrInvalidTransition),
		errors.Is(err, service.ErrSweepInProgress),
		errors.Is(err, service.ErrCommentsClosed),
		errors.Is(err, common.ErrConflict):
		common.ErrorResponse(c, http.StatusConflict, err.Error(), nil)
	case errors.Is(err, service.ErrStorageDisabled):
		common.ErrorResponse(c, http.StatusServiceUnavailable, err.Error(), nil)
	case errors.Is(err, service.ErrImageFetch):
		logRequestError(c, err, action)
		common.ErrorResponse(c, http.StatusBadGateway, "Failed to fetch archive images", err)
	default:
		logRequestError(c, err, action)
		common.ErrorResponse(c, http.StatusInternalServerError, "Failed to "+action, err)
	}
}

func logRequestError(c *gin.Context, err error, action string) {
	logger.GetLogger().Error().
		Err(err).
		Str("request_id", c.GetString("request_id")).
		Str("user_id", middleware.GetUserID(c)).
		Str("action", action).
		Msg("request failed")
}

// bindError answers a request whose body failed validation
func bindError(c *gin.Context, err error) {
	common.ErrorResponse(c, http.StatusBadRequest, "Invalid request body", err)
}

// invalidID answers a request with a malformed path id
func invalidID(c *gin.Context, err error) {
	common.ErrorResponse(c, http.StatusBadRequest, "Invalid ID", err)
}
