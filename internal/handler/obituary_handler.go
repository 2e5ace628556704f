package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/remembrance/memorial-backend/internal/common"
	"github.com/remembrance/memorial-backend/internal/domain"
	"github.com/remembrance/memorial-backend/internal/middleware"
	"github.com/remembrance/memorial-backend/internal/service"
	"github.com/remembrance/memorial-backend/pkg/ginutil"
)

// ObituaryHandler handles public and owner obituary requests
type ObituaryHandler struct {
	service  *service.ObituaryService
	exporter *service.ExportService
}

// NewObituaryHandler creates a new ObituaryHandler
func NewObituaryHandler(service *service.ObituaryService, exporter *service.ExportService) *ObituaryHandler {
	return &ObituaryHandler{service: service, exporter: exporter}
}

// Submit godoc
// @Summary      Submit an obituary
// @Description  Stores a new obituary awaiting moderation
// @Tags         obituaries
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request  body      domain.SubmitObituaryRequest  true  "Obituary"
// @Success      201  {object}  common.Response{data=domain.Obituary}
// @Failure      400  {object}  common.Response
// @Failure      401  {object}  common.Response
// @Router       /obituaries [post]
func (h *ObituaryHandler) Submit(c *gin.Context) {
	var req domain.SubmitObituaryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	obit, err := h.service.Submit(c.Request.Context(), middleware.GetActor(c), &req)
	if err != nil {
		respondError(c, err, "submit obituary")
		return
	}
	common.Created(c, obit)
}

// List godoc
// @Summary      List public obituaries
// @Tags         obituaries
// @Produce      json
// @Param        page   query  int  false  "Page"      default(1)
// @Param        limit  query  int  false  "Per page"  default(20)
// @Success      200  {object}  common.Response{data=[]domain.Obituary}
// @Router       /obituaries [get]
func (h *ObituaryHandler) List(c *gin.Context) {
	obits, meta, err := h.service.ListPublic(c.Request.Context(),
		ginutil.QueryInt(c, "page", 1), ginutil.QueryInt(c, "limit", 20))
	if err != nil {
		respondError(c, err, "list obituaries")
		return
	}
	common.SuccessWithMeta(c, obits, meta)
}

// Get godoc
// @Summary      Get an obituary
// @Description  Public records are visible to everyone; pending and rejected ones only to the owner and admins
// @Tags         obituaries
// @Produce      json
// @Param        id  path  int  true  "Obituary ID"
// @Success      200  {object}  common.Response{data=domain.Obituary}
// @Failure      404  {object}  common.Response
// @Router       /obituaries/{id} [get]
func (h *ObituaryHandler) Get(c *gin.Context) {
	id, err := ginutil.ParamUint64(c, "id")
	if err != nil {
		invalidID(c, err)
		return
	}

	obit, err := h.service.Get(c.Request.Context(), middleware.GetActor(c), id)
	if err != nil {
		respondError(c, err, "fetch obituary")
		return
	}
	common.Success(c, obit)
}

// ListMine handles GET /api/v1/me/obituaries
func (h *ObituaryHandler) ListMine(c *gin.Context) {
	obits, meta, err := h.service.ListMine(c.Request.Context(), middleware.GetActor(c),
		ginutil.QueryInt(c, "page", 1), ginutil.QueryInt(c, "limit", 20))
	if err != nil {
		respondError(c, err, "list obituaries")
		return
	}
	common.SuccessWithMeta(c, obits, meta)
}

// SetAppreciation godoc
// @Summary      Set the appreciation message
// @Description  Owner only, available 30 days after publication
// @Tags         obituaries
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path  int                         true  "Obituary ID"
// @Param        request  body  domain.AppreciationRequest  true  "Message"
// @Success      200  {object}  common.Response{data=domain.Obituary}
// @Failure      400  {object}  common.Response
// @Failure      403  {object}  common.Response
// @Router       /obituaries/{id}/appreciation [put]
func (h *ObituaryHandler) SetAppreciation(c *gin.Context) {
	id, err := ginutil.ParamUint64(c, "id")
	if err != nil {
		invalidID(c, err)
		return
	}
	var req domain.AppreciationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	obit, err := h.service.SetAppreciation(c.Request.Context(), middleware.GetActor(c), id, req.Message)
	if err != nil {
		respondError(c, err, "update appreciation message")
		return
	}
	common.Success(c, obit)
}

// Export godoc
// @Summary      Download the memorial archive
// @Description  ZIP with metadata.json and gallery images, available 11 months after the latest lifecycle date
// @Tags         obituaries
// @Produce      application/zip
// @Security     BearerAuth
// @Param        id  path  int  true  "Obituary ID"
// @Success      200
// @Failure      403  {object}  common.Response
// @Failure      502  {object}  common.Response
// @Router       /obituaries/{id}/export [get]
func (h *ObituaryHandler) Export(c *gin.Context) {
	id, err := ginutil.ParamUint64(c, "id")
	if err != nil {
		invalidID(c, err)
		return
	}

	archive, err := h.exporter.Export(c.Request.Context(), middleware.GetActor(c), id)
	if err != nil {
		respondError(c, err, "export obituary")
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, archive.Filename))
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "application/zip", archive.Data)
}
