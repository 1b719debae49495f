package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"agentchat/models"
	"agentchat/repository"
)

type createChatRequest struct {
	AgentID string `json:"agentId" binding:"required"`
	Title   string `json:"title"`
}

type updateChatRequest struct {
	Title string `json:"title" binding:"required"`
}

type sendMessageRequest struct {
	ChatID  string `json:"chatId" binding:"required"`
	Content string `json:"content" binding:"required"`
	Role    string `json:"role"`
}

type streamMessageRequest struct {
	Content string `json:"content" binding:"required"`
}

// CreateChatHandler opens a conversation with an agent the caller is
// entitled to.
// POST /api/chats
func (h *APIHandler) CreateChatHandler(c *gin.Context) {
	var req createChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid request: " + err.Error()})
		return
	}

	chat, err := h.chatService.CreateChat(currentUser(c), req.AgentID, req.Title)
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondCreated(c, "chat created successfully", chat)
}

// ListChatsHandler returns the caller's chats, most recently active
// first. A search term switches to title prefix matching.
// GET /api/chats?search=
func (h *APIHandler) ListChatsHandler(c *gin.Context) {
	userID := currentUser(c)
	params := paginationFromQuery(c)

	var (
		chats      []models.Chat
		pagination repository.Pagination
		err        error
	)
	if term := c.Query("search"); term != "" {
		chats, pagination, err = h.chatRepo.SearchByTitle(userID, term, params)
	} else {
		chats, pagination, err = h.chatRepo.ListByUser(userID, params)
	}
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondList(c, "chats retrieved successfully", chats, pagination)
}

// GetChatHandler returns one chat with its messages.
// GET /api/chats/:id
func (h *APIHandler) GetChatHandler(c *gin.Context) {
	userID := currentUser(c)
	chat, err := h.chatRepo.GetByIDForUser(c.Param("id"), userID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	messages, _, err := h.messageRepo.ListByChat(chat.ID, userID, paginationFromQuery(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	chat.Messages = messages

	respondOK(c, "chat retrieved successfully", chat)
}

// UpdateChatHandler renames a chat.
// PUT /api/chats/:id, PATCH /api/chats/:id
func (h *APIHandler) UpdateChatHandler(c *gin.Context) {
	var req updateChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid request: " + err.Error()})
		return
	}

	chat, err := h.chatRepo.UpdateTitle(c.Param("id"), currentUser(c), req.Title)
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondOK(c, "chat updated successfully", chat)
}

// DeactivateChatHandler soft-deletes a chat.
// DELETE /api/chats/:id
func (h *APIHandler) DeactivateChatHandler(c *gin.Context) {
	if err := h.chatRepo.Deactivate(c.Param("id"), currentUser(c)); err != nil {
		h.respondError(c, err)
		return
	}
	respondOK(c, "chat deleted successfully", nil)
}

// SendMessageHandler records one turn. A user turn runs a blocking
// exchange and echoes the reply as aiResponse; when the backend fails
// only the user's turn is returned. Assistant and system turns are
// stored as-is without invoking a backend.
// POST /api/messages
func (h *APIHandler) SendMessageHandler(c *gin.Context) {
	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid request: " + err.Error()})
		return
	}

	role := models.MessageRole(req.Role)
	if req.Role == "" {
		role = models.RoleUser
	}

	if role != models.RoleUser {
		message, err := h.messageRepo.Create(&models.Message{
			ChatID:  req.ChatID,
			UserID:  currentUser(c),
			Role:    role,
			Content: req.Content,
		})
		if err != nil {
			h.respondError(c, err)
			return
		}
		respondCreated(c, "message sent successfully", message)
		return
	}

	result, err := h.chatService.SendMessage(c.Request.Context(), req.ChatID, currentUser(c), req.Content)
	if err != nil {
		h.respondError(c, err)
		return
	}

	response := gin.H{
		"success": true,
		"message": "message sent successfully",
		"data":    result.UserMessage,
	}
	if result.AssistantMessage != nil {
		response["aiResponse"] = result.AssistantMessage
	}
	c.JSON(http.StatusCreated, response)
}

// ListMessagesHandler returns a chat's messages in chronological order.
// GET /api/messages?chatId=
func (h *APIHandler) ListMessagesHandler(c *gin.Context) {
	chatID := c.Query("chatId")
	if chatID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "chatId query parameter is required"})
		return
	}

	messages, pagination, err := h.messageRepo.ListByChat(chatID, currentUser(c), paginationFromQuery(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondList(c, "messages retrieved successfully", messages, pagination)
}

// SearchMessagesHandler searches the caller's messages by content.
// GET /api/messages/search?q=
func (h *APIHandler) SearchMessagesHandler(c *gin.Context) {
	term := c.Query("q")
	if term == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "q query parameter is required"})
		return
	}

	messages, pagination, err := h.messageRepo.SearchByContent(currentUser(c), term, paginationFromQuery(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondList(c, "messages retrieved successfully", messages, pagination)
}

// UpdateMessageHandler edits a message's content or metadata.
// PUT /api/messages/:id
func (h *APIHandler) UpdateMessageHandler(c *gin.Context) {
	var req struct {
		Content  string                  `json:"content"`
		Metadata *models.MessageMetadata `json:"metadata"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid request: " + err.Error()})
		return
	}

	message, err := h.messageRepo.Update(c.Param("id"), currentUser(c), req.Content, req.Metadata)
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondOK(c, "message updated successfully", message)
}

// DeactivateMessageHandler soft-deletes a message.
// DELETE /api/messages/:id
func (h *APIHandler) DeactivateMessageHandler(c *gin.Context) {
	if err := h.messageRepo.Deactivate(c.Param("id"), currentUser(c)); err != nil {
		h.respondError(c, err)
		return
	}
	respondOK(c, "message deleted successfully", nil)
}

// StreamMessageHandler runs one exchange with the reply written to the
// response as raw text chunks while they arrive.
// POST /api/chats/:id/stream
func (h *APIHandler) StreamMessageHandler(c *gin.Context) {
	var req streamMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid request: " + err.Error()})
		return
	}

	c.Writer.Header().Set("Content-Type", "text/plain; charset=utf-8")
	c.Writer.Header().Set("Cache-Control", "no-cache")

	onChunk := func(chunk string) error {
		if _, err := c.Writer.WriteString(chunk); err != nil {
			return err
		}
		c.Writer.Flush()
		return nil
	}

	if _, err := h.chatService.StreamMessage(c.Request.Context(), c.Param("id"), currentUser(c), req.Content, onChunk); err != nil {
		// Chunks may already be out. The response simply ends early; the
		// client sees a truncated body.
		h.logger.Warn("stream failed", zap.String("chatId", c.Param("id")), zap.Error(err))
	}
}

// GenerateTitleHandler derives and stores a short chat title.
// POST /api/chats/:id/generate-title
func (h *APIHandler) GenerateTitleHandler(c *gin.Context) {
	title, err := h.chatService.GenerateTitle(c.Request.Context(), c.Param("id"), currentUser(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondOK(c, "title generated successfully", gin.H{"title": title})
}
