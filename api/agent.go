package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"agentchat/models"
	"agentchat/repository"
)

type createCategoryRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
	Order       int    `json:"order"`
}

type createAgentRequest struct {
	Name         string   `json:"name" binding:"required"`
	Description  string   `json:"description"`
	Price        float64  `json:"price"`
	CategoryID   string   `json:"categoryId" binding:"required"`
	Model        string   `json:"model"`
	Capabilities []string `json:"capabilities"`
	SystemPrompt string   `json:"systemPrompt"`
	Temperature  float32  `json:"temperature"`
	MaxTokens    int      `json:"maxTokens"`
	IsFree       bool     `json:"isFree"`
	Icon         string   `json:"icon"`
	Tags         []string `json:"tags"`
}

// CreateCategoryHandler registers a new agent category.
// POST /api/agent-categories
func (h *APIHandler) CreateCategoryHandler(c *gin.Context) {
	var req createCategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid request: " + err.Error()})
		return
	}

	category, err := h.categoryRepo.Create(&models.AgentCategory{
		Name:        req.Name,
		Description: req.Description,
		Icon:        req.Icon,
		Order:       req.Order,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondCreated(c, "category created successfully", category)
}

// GetCategoryHandler returns one active category.
// GET /api/agent-categories/:id
func (h *APIHandler) GetCategoryHandler(c *gin.Context) {
	category, err := h.categoryRepo.GetByID(c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondOK(c, "category retrieved successfully", category)
}

// ListCategoriesHandler returns active categories ordered for display.
// GET /api/agent-categories
func (h *APIHandler) ListCategoriesHandler(c *gin.Context) {
	categories, pagination, err := h.categoryRepo.List(paginationFromQuery(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondList(c, "categories retrieved successfully", categories, pagination)
}

// UpdateCategoryHandler updates a category's fields.
// PUT /api/agent-categories/:id
func (h *APIHandler) UpdateCategoryHandler(c *gin.Context) {
	var req map[string]interface{}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid request: " + err.Error()})
		return
	}

	updates := pickFields(req, "name", "description", "icon", "order")
	if len(updates) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "no updatable fields provided"})
		return
	}
	if order, ok := updates["order"]; ok {
		updates["display_order"] = order
		delete(updates, "order")
	}

	category, err := h.categoryRepo.Update(c.Param("id"), updates)
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondOK(c, "category updated successfully", category)
}

// DeactivateCategoryHandler soft-deletes a category.
// DELETE /api/agent-categories/:id
func (h *APIHandler) DeactivateCategoryHandler(c *gin.Context) {
	if err := h.categoryRepo.Deactivate(c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}
	respondOK(c, "category deactivated successfully", nil)
}

// CreateAgentHandler registers a new agent in the directory.
// POST /api/agents
func (h *APIHandler) CreateAgentHandler(c *gin.Context) {
	var req createAgentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid request: " + err.Error()})
		return
	}

	agent, err := h.agentRepo.Create(&models.Agent{
		Name:         req.Name,
		Description:  req.Description,
		Price:        req.Price,
		CategoryID:   req.CategoryID,
		Model:        req.Model,
		Capabilities: req.Capabilities,
		SystemPrompt: req.SystemPrompt,
		Temperature:  req.Temperature,
		MaxTokens:    req.MaxTokens,
		IsFree:       req.IsFree,
		Icon:         req.Icon,
		Tags:         req.Tags,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondCreated(c, "agent created successfully", agent)
}

// GetAgentHandler returns one active agent.
// GET /api/agents/:id
func (h *APIHandler) GetAgentHandler(c *gin.Context) {
	agent, err := h.agentRepo.GetByID(c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondOK(c, "agent retrieved successfully", agent)
}

// ListAgentsHandler returns active agents, optionally filtered by
// category and name prefix.
// GET /api/agents?categoryId=&search=
func (h *APIHandler) ListAgentsHandler(c *gin.Context) {
	params := repository.AgentQueryParams{
		PaginationParams: paginationFromQuery(c),
		CategoryID:       c.Query("categoryId"),
		Search:           c.Query("search"),
	}
	agents, pagination, err := h.agentRepo.List(params)
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondList(c, "agents retrieved successfully", agents, pagination)
}

// UpdateAgentHandler updates an agent's fields.
// PUT /api/agents/:id
func (h *APIHandler) UpdateAgentHandler(c *gin.Context) {
	var req map[string]interface{}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid request: " + err.Error()})
		return
	}

	updates := pickFields(req,
		"name", "description", "price", "model", "systemPrompt",
		"temperature", "maxTokens", "isFree", "icon")
	if len(updates) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "no updatable fields provided"})
		return
	}
	renameField(updates, "systemPrompt", "system_prompt")
	renameField(updates, "maxTokens", "max_tokens")
	renameField(updates, "isFree", "is_free")

	agent, err := h.agentRepo.Update(c.Param("id"), updates)
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondOK(c, "agent updated successfully", agent)
}

// DeactivateAgentHandler soft-deletes an agent. Rejected while active
// chats still reference it.
// DELETE /api/agents/:id
func (h *APIHandler) DeactivateAgentHandler(c *gin.Context) {
	if err := h.agentRepo.Deactivate(c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}
	respondOK(c, "agent deactivated successfully", nil)
}

// pickFields keeps only the allowed keys of a raw update payload.
func pickFields(raw map[string]interface{}, allowed ...string) map[string]interface{} {
	updates := map[string]interface{}{}
	for _, key := range allowed {
		if value, ok := raw[key]; ok {
			updates[key] = value
		}
	}
	return updates
}

func renameField(updates map[string]interface{}, from, to string) {
	if value, ok := updates[from]; ok {
		updates[to] = value
		delete(updates, from)
	}
}
