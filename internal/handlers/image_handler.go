package handlers

import (
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/nextmessage/backend/internal/models"
	"github.com/nextmessage/backend/internal/service"
)

const imageCacheControl = "public, max-age=31536000"

type ImageHandler struct {
	messages *service.Messages
}

func NewImageHandler(messages *service.Messages) *ImageHandler {
	return &ImageHandler{messages: messages}
}

// Upload stores the multipart "image" field
func (h *ImageHandler) Upload(c *gin.Context) {
	header, err := c.FormFile("image")
	if err != nil {
		ErrorResponse(c, http.StatusBadRequest, "No image provided")
		return
	}

	file, err := header.Open()
	if err != nil {
		ErrorResponse(c, http.StatusBadRequest, "Failed to read image")
		return
	}
	defer file.Close()

	id, err := h.messages.UploadImage(c.Request.Context(), header.Filename, header.Header.Get("Content-Type"), header.Size, file)
	if err != nil {
		ServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, models.UploadImageResponse{Success: true, ImageID: id})
}

// Get streams an image with long-lived caching; ids never get reused
func (h *ImageHandler) Get(c *gin.Context) {
	obj, err := h.messages.OpenImage(c.Request.Context(), c.Param("id"))
	if err != nil {
		ServiceError(c, err)
		return
	}
	defer obj.Close()

	contentType := obj.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.Header("Content-Type", contentType)
	c.Header("Cache-Control", imageCacheControl)
	if obj.Size > 0 {
		c.Header("Content-Length", strconv.FormatInt(obj.Size, 10))
	}
	c.Status(http.StatusOK)

	if _, err := io.Copy(c.Writer, obj); err != nil {
		slog.Warn("failed to stream image", "image_id", c.Param("id"), "error", err)
	}
}
