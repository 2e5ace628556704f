package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/remembrance/memorial-backend/internal/common"
	"github.com/remembrance/memorial-backend/internal/domain"
	"github.com/remembrance/memorial-backend/internal/middleware"
	"github.com/remembrance/memorial-backend/internal/service"
	"github.com/remembrance/memorial-backend/pkg/ginutil"
)

// CommentHandler handles condolence comments and tributes
type CommentHandler struct {
	service *service.CommentService
}

// NewCommentHandler creates a new CommentHandler
func NewCommentHandler(service *service.CommentService) *CommentHandler {
	return &CommentHandler{service: service}
}

// List godoc
// @Summary      List approved comments and tributes
// @Tags         comments
// @Produce      json
// @Param        id     path   int  true   "Obituary ID"
// @Param        page   query  int  false  "Page"      default(1)
// @Param        limit  query  int  false  "Per page"  default(20)
// @Success      200  {object}  common.Response{data=[]domain.Comment}
// @Router       /obituaries/{id}/comments [get]
func (h *CommentHandler) List(c *gin.Context) {
	id, err := ginutil.ParamUint64(c, "id")
	if err != nil {
		invalidID(c, err)
		return
	}
	comments, meta, err := h.service.ListApproved(c.Request.Context(), middleware.GetActor(c), id,
		ginutil.QueryInt(c, "page", 1), ginutil.QueryInt(c, "limit", 20))
	if err != nil {
		respondError(c, err, "list comments")
		return
	}
	common.SuccessWithMeta(c, comments, meta)
}

// Create godoc
// @Summary      Leave a comment or tribute
// @Description  Comments wait for moderation; tributes appear immediately when the family allows them
// @Tags         comments
// @Accept       json
// @Produce      json
// @Param        id       path  int                          true  "Obituary ID"
// @Param        request  body  domain.CreateCommentRequest  true  "Comment"
// @Success      201  {object}  common.Response{data=domain.Comment}
// @Failure      400  {object}  common.Response
// @Failure      409  {object}  common.Response
// @Router       /obituaries/{id}/comments [post]
func (h *CommentHandler) Create(c *gin.Context) {
	id, err := ginutil.ParamUint64(c, "id")
	if err != nil {
		invalidID(c, err)
		return
	}
	var req domain.CreateCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	comment, err := h.service.Create(c.Request.Context(), middleware.GetActor(c), id, &req)
	if err != nil {
		respondError(c, err, "create comment")
		return
	}
	common.Created(c, comment)
}

// ListPending handles GET /api/v1/admin/comments
func (h *CommentHandler) ListPending(c *gin.Context) {
	comments, meta, err := h.service.ListPending(c.Request.Context(), middleware.GetActor(c),
		ginutil.QueryInt(c, "page", 1), ginutil.QueryInt(c, "limit", 20))
	if err != nil {
		respondError(c, err, "list comments")
		return
	}
	common.SuccessWithMeta(c, comments, meta)
}

// Approve handles POST /api/v1/admin/comments/:id/approve
func (h *CommentHandler) Approve(c *gin.Context) {
	id, err := ginutil.ParamUint64(c, "id")
	if err != nil {
		invalidID(c, err)
		return
	}
	comment, err := h.service.Approve(c.Request.Context(), middleware.GetActor(c), id)
	if err != nil {
		respondError(c, err, "approve comment")
		return
	}
	common.Success(c, comment)
}
