package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"agentchat/models"
)

type upsertUserRequest struct {
	ID       string `json:"id"`
	Email    string `json:"email" binding:"required,email"`
	Name     string `json:"name" binding:"required"`
	Avatar   string `json:"avatar"`
	Provider string `json:"provider" binding:"required"`
}

type updateUserRequest struct {
	Name   string `json:"name"`
	Avatar string `json:"avatar"`
	Plan   string `json:"plan"`
}

// UpsertUserHandler creates or refreshes the user record behind an
// OAuth sign-in.
// POST /api/users
func (h *APIHandler) UpsertUserHandler(c *gin.Context) {
	var req upsertUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid request: " + err.Error()})
		return
	}

	user, err := h.userRepo.Upsert(&models.User{
		ID:       req.ID,
		Email:    req.Email,
		Name:     req.Name,
		Avatar:   req.Avatar,
		Provider: req.Provider,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondOK(c, "user saved successfully", user)
}

// GetUserHandler returns one active user.
// GET /api/users/:id
func (h *APIHandler) GetUserHandler(c *gin.Context) {
	user, err := h.userRepo.GetByID(c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondOK(c, "user retrieved successfully", user)
}

// ListUsersHandler returns active users, paginated.
// GET /api/users
func (h *APIHandler) ListUsersHandler(c *gin.Context) {
	users, pagination, err := h.userRepo.List(paginationFromQuery(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondList(c, "users retrieved successfully", users, pagination)
}

// UpdateUserHandler updates a user's profile fields.
// PUT /api/users/:id
func (h *APIHandler) UpdateUserHandler(c *gin.Context) {
	var req updateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid request: " + err.Error()})
		return
	}

	updates := map[string]interface{}{}
	if req.Name != "" {
		updates["name"] = req.Name
	}
	if req.Avatar != "" {
		updates["avatar"] = req.Avatar
	}
	if req.Plan != "" {
		updates["plan"] = req.Plan
	}
	if len(updates) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "no updatable fields provided"})
		return
	}

	user, err := h.userRepo.Update(c.Param("id"), updates)
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondOK(c, "user updated successfully", user)
}

// DeactivateUserHandler soft-deletes a user.
// DELETE /api/users/:id
func (h *APIHandler) DeactivateUserHandler(c *gin.Context) {
	if err := h.userRepo.Deactivate(c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}
	respondOK(c, "user deactivated successfully", nil)
}
