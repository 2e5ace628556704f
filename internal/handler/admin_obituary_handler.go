package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/remembrance/memorial-backend/internal/common"
	"github.com/remembrance/memorial-backend/internal/domain"
	"github.com/remembrance/memorial-backend/internal/middleware"
	"github.com/remembrance/memorial-backend/internal/service"
	"github.com/remembrance/memorial-backend/pkg/ginutil"
)

// AdminObituaryHandler handles moderation requests
type AdminObituaryHandler struct {
	service *service.ObituaryService
}

// NewAdminObituaryHandler creates a new AdminObituaryHandler
func NewAdminObituaryHandler(service *service.ObituaryService) *AdminObituaryHandler {
	return &AdminObituaryHandler{service: service}
}

// List godoc
// @Summary      List obituaries for moderation
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Param        status  query  string  false  "pending, approved, published, memorialized, archived or rejected"
// @Param        page    query  int     false  "Page"      default(1)
// @Param        limit   query  int     false  "Per page"  default(20)
// @Success      200  {object}  common.Response{data=[]domain.Obituary}
// @Router       /admin/obituaries [get]
func (h *AdminObituaryHandler) List(c *gin.Context) {
	obits, meta, err := h.service.ListAdmin(c.Request.Context(), middleware.GetActor(c),
		c.Query("status"), ginutil.QueryInt(c, "page", 1), ginutil.QueryInt(c, "limit", 20))
	if err != nil {
		respondError(c, err, "list obituaries")
		return
	}
	common.SuccessWithMeta(c, obits, meta)
}

// Stats handles GET /api/v1/admin/obituaries/stats
func (h *AdminObituaryHandler) Stats(c *gin.Context) {
	stats, err := h.service.Stats(c.Request.Context(), middleware.GetActor(c))
	if err != nil {
		respondError(c, err, "load statistics")
		return
	}
	common.Success(c, stats)
}

// Approve godoc
// @Summary      Approve and publish an obituary
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Param        id  path  int  true  "Obituary ID"
// @Success      200  {object}  common.Response{data=domain.Obituary}
// @Failure      403  {object}  common.Response
// @Failure      404  {object}  common.Response
// @Failure      409  {object}  common.Response
// @Router       /admin/obituaries/{id}/approve [post]
func (h *AdminObituaryHandler) Approve(c *gin.Context) {
	id, err := ginutil.ParamUint64(c, "id")
	if err != nil {
		invalidID(c, err)
		return
	}
	obit, err := h.service.Approve(c.Request.Context(), middleware.GetActor(c), id)
	if err != nil {
		respondError(c, err, "approve obituary")
		return
	}
	common.Success(c, obit)
}

// Reject godoc
// @Summary      Reject an obituary
// @Tags         admin
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path  int                   true  "Obituary ID"
// @Param        request  body  domain.RejectRequest  true  "Reason"
// @Success      200  {object}  common.Response{data=domain.Obituary}
// @Failure      400  {object}  common.Response
// @Failure      409  {object}  common.Response
// @Router       /admin/obituaries/{id}/reject [post]
func (h *AdminObituaryHandler) Reject(c *gin.Context) {
	id, err := ginutil.ParamUint64(c, "id")
	if err != nil {
		invalidID(c, err)
		return
	}
	var req domain.RejectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	obit, err := h.service.Reject(c.Request.Context(), middleware.GetActor(c), id, req.Reason)
	if err != nil {
		respondError(c, err, "reject obituary")
		return
	}
	common.Success(c, obit)
}

// SetPayment handles PATCH /api/v1/admin/obituaries/:id/payment
func (h *AdminObituaryHandler) SetPayment(c *gin.Context) {
	id, err := ginutil.ParamUint64(c, "id")
	if err != nil {
		invalidID(c, err)
		return
	}
	var req domain.PaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	obit, err := h.service.SetPayment(c.Request.Context(), middleware.GetActor(c), id, *req.Paid, req.PaymentReference)
	if err != nil {
		respondError(c, err, "update payment")
		return
	}
	common.Success(c, obit)
}

// Archive handles POST /api/v1/admin/obituaries/:id/archive
func (h *AdminObituaryHandler) Archive(c *gin.Context) {
	id, err := ginutil.ParamUint64(c, "id")
	if err != nil {
		invalidID(c, err)
		return
	}
	obit, err := h.service.Archive(c.Request.Context(), middleware.GetActor(c), id)
	if err != nil {
		respondError(c, err, "archive obituary")
		return
	}
	common.Success(c, obit)
}
