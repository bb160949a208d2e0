package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nextmessage/backend/internal/middleware"
	"github.com/nextmessage/backend/internal/models"
	"github.com/nextmessage/backend/internal/service"
)

type AuthHandler struct {
	profiles *service.Profiles
}

func NewAuthHandler(profiles *service.Profiles) *AuthHandler {
	return &AuthHandler{profiles: profiles}
}

// Signup creates the caller's profile the first time they sign in
func (h *AuthHandler) Signup(c *gin.Context) {
	var req models.SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	profile, created, err := h.profiles.Signup(c.Request.Context(), middleware.CurrentIdentity(c), req.Username)
	if err != nil {
		ServiceError(c, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, gin.H{"success": true, "user": profile})
}

// GetMe returns the current user
func (h *AuthHandler) GetMe(c *gin.Context) {
	profile, err := h.profiles.Get(c.Request.Context(), middleware.CurrentUID(c))
	if err != nil {
		ServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, profile)
}
