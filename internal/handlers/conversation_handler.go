package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nextmessage/backend/internal/middleware"
	"github.com/nextmessage/backend/internal/service"
)

// ConversationHandler serves the conversation lists. These reads never fail;
// entries that cannot be built are left out.
type ConversationHandler struct {
	conversations *service.Conversations
}

func NewConversationHandler(conversations *service.Conversations) *ConversationHandler {
	return &ConversationHandler{conversations: conversations}
}

// GetConversations returns the caller's direct conversations
func (h *ConversationHandler) GetConversations(c *gin.Context) {
	c.JSON(http.StatusOK, h.conversations.Direct(c.Request.Context(), middleware.CurrentUID(c)))
}

// GetGroupConversations returns the caller's group conversations
func (h *ConversationHandler) GetGroupConversations(c *gin.Context) {
	c.JSON(http.StatusOK, h.conversations.Groups(c.Request.Context(), middleware.CurrentUID(c)))
}
