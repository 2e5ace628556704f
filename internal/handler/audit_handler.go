package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/remembrance/memorial-backend/internal/common"
	"github.com/remembrance/memorial-backend/internal/repository"
	"github.com/remembrance/memorial-backend/pkg/ginutil"
)

// AuditHandler exposes the administrative audit trail
type AuditHandler struct {
	repo *repository.AuditRepository
}

// NewAuditHandler creates a new AuditHandler
func NewAuditHandler(repo *repository.AuditRepository) *AuditHandler {
	return &AuditHandler{repo: repo}
}

// List godoc
// @Summary      List admin audit entries
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Param        actor_id  query  string  false  "Admin user id"
// @Param        action    query  string  false  "approve, reject, payment, archive"
// @Param        resource  query  string  false  "obituary or comment"
// @Param        page      query  int     false  "Page"      default(1)
// @Param        limit     query  int     false  "Per page"  default(50)
// @Success      200  {object}  common.Response{data=[]domain.AuditLog}
// @Router       /admin/audit-logs [get]
func (h *AuditHandler) List(c *gin.Context) {
	page := ginutil.QueryInt(c, "page", 1)
	if page < 1 {
		page = 1
	}
	limit := ginutil.QueryInt(c, "limit", 50)
	if limit < 1 || limit > 200 {
		limit = 50
	}

	logs, total, err := h.repo.List(c.Request.Context(), repository.AuditFilter{
		ActorID:  c.Query("actor_id"),
		Action:   c.Query("action"),
		Resource: c.Query("resource"),
		Page:     page,
		Limit:    limit,
	})
	if err != nil {
		respondError(c, err, "list audit logs")
		return
	}
	common.SuccessWithMeta(c, logs, common.NewMeta(page, limit, total))
}
