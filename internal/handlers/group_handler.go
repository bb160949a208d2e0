package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nextmessage/backend/internal/middleware"
	"github.com/nextmessage/backend/internal/models"
	"github.com/nextmessage/backend/internal/service"
)

type GroupHandler struct {
	groups *service.Groups
}

func NewGroupHandler(groups *service.Groups) *GroupHandler {
	return &GroupHandler{groups: groups}
}

// CreateGroup creates a group administered by the caller
func (h *GroupHandler) CreateGroup(c *gin.Context) {
	var req models.CreateGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	group, err := h.groups.Create(c.Request.Context(), middleware.CurrentUID(c), &req)
	if err != nil {
		ServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"success": true, "group_id": group.ID, "group": group})
}

// ListGroups returns the groups the caller belongs to
func (h *GroupHandler) ListGroups(c *gin.Context) {
	groups, err := h.groups.ListMine(c.Request.Context(), middleware.CurrentUID(c))
	if err != nil {
		ServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, list(groups))
}

func (h *GroupHandler) SearchGroups(c *gin.Context) {
	groups, err := h.groups.Search(c.Request.Context(), c.Query("q"), middleware.CurrentUID(c))
	if err != nil {
		ServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, list(groups))
}

func (h *GroupHandler) GetGroup(c *gin.Context) {
	group, err := h.groups.Get(c.Request.Context(), c.Param("id"), middleware.CurrentUID(c))
	if err != nil {
		ServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, group)
}

// UpdateGroup edits name, description or avatar (admins only)
func (h *GroupHandler) UpdateGroup(c *gin.Context) {
	var req models.GroupUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	group, err := h.groups.Update(c.Request.Context(), c.Param("id"), middleware.CurrentUID(c), &req)
	if err != nil {
		ServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "group": group})
}

// AddMember adds a user to the group (admins only)
func (h *GroupHandler) AddMember(c *gin.Context) {
	var req models.AddMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	group, err := h.groups.AddMember(c.Request.Context(), c.Param("id"), req.UserID, middleware.CurrentUID(c))
	if err != nil {
		ServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "group": group})
}

// RemoveMember kicks a member, or leaves the group when user_id is the caller
func (h *GroupHandler) RemoveMember(c *gin.Context) {
	group, err := h.groups.RemoveMember(c.Request.Context(), c.Param("id"), c.Param("user_id"), middleware.CurrentUID(c))
	if err != nil {
		ServiceError(c, err)
		return
	}

	if group == nil {
		c.JSON(http.StatusOK, gin.H{"success": true})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "group": group})
}

// GetMessages pages through group history, oldest first within a page
func (h *GroupHandler) GetMessages(c *gin.Context) {
	var req models.GetGroupMessagesRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	messages, err := h.groups.Messages(c.Request.Context(), c.Param("id"), middleware.CurrentUID(c), req.Limit, req.Before)
	if err != nil {
		ServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, list(messages))
}

func (h *GroupHandler) SendMessage(c *gin.Context) {
	var req models.SendGroupMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	message, err := h.groups.SendMessage(c.Request.Context(), c.Param("id"), middleware.CurrentUID(c), &req)
	if err != nil {
		ServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"success": true, "message_id": message.ID, "message": message})
}

// MarkRead marks one message read, or the whole group when no message_id is given
func (h *GroupHandler) MarkRead(c *gin.Context) {
	var req models.MarkGroupReadRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			ErrorResponse(c, http.StatusBadRequest, err.Error())
			return
		}
	}

	ctx := c.Request.Context()
	uid := middleware.CurrentUID(c)
	if req.MessageID != "" {
		if err := h.groups.MarkMessageRead(ctx, c.Param("id"), req.MessageID, uid); err != nil {
			ServiceError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true})
		return
	}

	n, err := h.groups.MarkAllRead(ctx, c.Param("id"), uid)
	if err != nil {
		ServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "updated": n})
}
