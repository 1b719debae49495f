package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"agentchat/middleware"
	"agentchat/repository"
	"agentchat/services"
)

// APIHandler holds all dependencies for API handlers, such as
// repositories and services.
type APIHandler struct {
	userRepo     repository.UserRepository
	categoryRepo repository.CategoryRepository
	agentRepo    repository.AgentRepository
	chatRepo     repository.ChatRepository
	messageRepo  repository.MessageRepository
	entitlements services.EntitlementService
	chatService  services.ChatService
	logger       *zap.Logger
}

// NewAPIHandler creates a new APIHandler with necessary dependencies.
func NewAPIHandler(
	userRepo repository.UserRepository,
	categoryRepo repository.CategoryRepository,
	agentRepo repository.AgentRepository,
	chatRepo repository.ChatRepository,
	messageRepo repository.MessageRepository,
	entitlements services.EntitlementService,
	chatService services.ChatService,
	logger *zap.Logger,
) *APIHandler {
	return &APIHandler{
		userRepo:     userRepo,
		categoryRepo: categoryRepo,
		agentRepo:    agentRepo,
		chatRepo:     chatRepo,
		messageRepo:  messageRepo,
		entitlements: entitlements,
		chatService:  chatService,
		logger:       logger,
	}
}

// currentUser returns the identity the middleware extracted from the
// x-user-id header.
func currentUser(c *gin.Context) string {
	return c.GetString(middleware.ContextUserID)
}

func paginationFromQuery(c *gin.Context) repository.PaginationParams {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))
	return repository.PaginationParams{
		Page:           page,
		Limit:          limit,
		OrderBy:        c.Query("orderBy"),
		OrderDirection: c.Query("orderDirection"),
	}
}

func respondOK(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": message,
		"data":    data,
	})
}

func respondCreated(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"message": message,
		"data":    data,
	})
}

func respondList(c *gin.Context, message string, data interface{}, pagination repository.Pagination) {
	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"message":    message,
		"data":       data,
		"pagination": pagination,
	})
}

// respondError maps sentinel errors to HTTP statuses. Internal errors
// are logged and replaced with a generic message so nothing leaks.
func (h *APIHandler) respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	message := "internal server error"

	switch {
	case errors.Is(err, repository.ErrValidation),
		errors.Is(err, repository.ErrInvalidReference):
		status = http.StatusBadRequest
		message = err.Error()
	case errors.Is(err, repository.ErrNotFound):
		status = http.StatusNotFound
		message = err.Error()
	case errors.Is(err, repository.ErrDuplicateEntitlement),
		errors.Is(err, repository.ErrDuplicateName),
		errors.Is(err, repository.ErrAgentInUse):
		status = http.StatusConflict
		message = err.Error()
	case errors.Is(err, services.ErrAccessDenied):
		status = http.StatusForbidden
		message = err.Error()
	case errors.Is(err, services.ErrEmptyChat):
		status = http.StatusBadRequest
		message = err.Error()
	default:
		h.logger.Error("request failed", zap.String("path", c.Request.URL.Path), zap.Error(err))
	}

	c.JSON(status, gin.H{
		"success": false,
		"error":   message,
	})
}

// HealthHandler reports liveness.
// GET /healthz
func (h *APIHandler) HealthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
