package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nextmessage/backend/internal/middleware"
	"github.com/nextmessage/backend/internal/models"
	"github.com/nextmessage/backend/internal/service"
)

type MessageHandler struct {
	messages *service.Messages
}

func NewMessageHandler(messages *service.Messages) *MessageHandler {
	return &MessageHandler{messages: messages}
}

// GetMessages returns the caller's conversation with another user, oldest first
func (h *MessageHandler) GetMessages(c *gin.Context) {
	var req models.GetMessagesRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	messages, err := h.messages.Conversation(c.Request.Context(), middleware.CurrentUID(c), req.With)
	if err != nil {
		ServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, list(messages))
}

// SendMessage sends a direct message from the caller
func (h *MessageHandler) SendMessage(c *gin.Context) {
	var req models.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	message, err := h.messages.Send(c.Request.Context(), middleware.CurrentUID(c), &req)
	if err != nil {
		ServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"success": true, "message_id": message.ID, "message": message})
}

// MarkRead marks everything the given sender sent the caller as read
func (h *MessageHandler) MarkRead(c *gin.Context) {
	var req models.MarkReadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	n, err := h.messages.MarkRead(c.Request.Context(), req.SenderID, middleware.CurrentUID(c))
	if err != nil {
		ServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "updated": n})
}

// Clear deletes the caller's conversation with another user in both directions
func (h *MessageHandler) Clear(c *gin.Context) {
	var req models.ClearMessagesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	res, err := h.messages.Clear(c.Request.Context(), middleware.CurrentUID(c), req.UserID)
	if err != nil {
		ServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "result": res})
}
