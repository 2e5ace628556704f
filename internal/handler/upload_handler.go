package handler

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/remembrance/memorial-backend/internal/common"
	"github.com/remembrance/memorial-backend/internal/middleware"
	"github.com/remembrance/memorial-backend/internal/service"
)

// UploadHandler handles obituary image uploads
type UploadHandler struct {
	service *service.ImageUploadService
}

// NewUploadHandler creates a new UploadHandler
func NewUploadHandler(service *service.ImageUploadService) *UploadHandler {
	return &UploadHandler{service: service}
}

// UploadImage godoc
// @Summary      Upload an obituary image
// @Description  Stores a portrait or gallery image; use the returned url and storage_key in the submission
// @Tags         uploads
// @Accept       multipart/form-data
// @Produce      json
// @Security     BearerAuth
// @Param        file  formData  file  true  "Image (jpg, png, gif, webp)"
// @Success      201  {object}  common.Response{data=service.UploadedImage}
// @Failure      400  {object}  common.Response
// @Failure      503  {object}  common.Response
// @Router       /uploads/images [post]
func (h *UploadHandler) UploadImage(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "File is required", nil)
		return
	}

	src, err := file.Open()
	if err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "File is unreadable", err)
		return
	}
	defer src.Close()

	// one byte past the limit is enough for the service to reject it
	var r io.Reader = src
	if limit := h.service.MaxBytes(); limit > 0 {
		r = io.LimitReader(src, limit+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "File is unreadable", err)
		return
	}

	img, err := h.service.UploadImage(c.Request.Context(), middleware.GetActor(c), file.Filename, data)
	if err != nil {
		respondError(c, err, "upload image")
		return
	}
	common.Created(c, img)
}
