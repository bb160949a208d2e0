package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/nextmessage/backend/internal/middleware"
	"github.com/nextmessage/backend/internal/models"
	"github.com/nextmessage/backend/internal/service"
)

type UserHandler struct {
	profiles *service.Profiles
}

func NewUserHandler(profiles *service.Profiles) *UserHandler {
	return &UserHandler{profiles: profiles}
}

// GetProfile looks a user up by uid or username, defaulting to the caller
func (h *UserHandler) GetProfile(c *gin.Context) {
	var (
		profile *models.UserProfile
		err     error
	)
	if username := c.Query("username"); username != "" {
		profile, err = h.profiles.GetByUsername(c.Request.Context(), username)
	} else {
		uid := c.DefaultQuery("uid", middleware.CurrentUID(c))
		profile, err = h.profiles.Get(c.Request.Context(), uid)
	}
	if err != nil {
		ServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, profile)
}

// UpdateProfile edits the caller's own profile
func (h *UserHandler) UpdateProfile(c *gin.Context) {
	var req models.ProfileUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	profile, err := h.profiles.Update(c.Request.Context(), middleware.CurrentUID(c), &req)
	if err != nil {
		ServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "user": profile})
}

// GetBulk resolves a comma separated uid list
func (h *UserHandler) GetBulk(c *gin.Context) {
	profiles, err := h.profiles.Bulk(c.Request.Context(), strings.Split(c.Query("uids"), ","))
	if err != nil {
		ServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, list(profiles))
}

func (h *UserHandler) Search(c *gin.Context) {
	profiles, err := h.profiles.Search(c.Request.Context(), c.Query("q"), middleware.CurrentUID(c))
	if err != nil {
		ServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, list(profiles))
}
