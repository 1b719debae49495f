package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"agentchat/services"
)

type grantRequest struct {
	UserID    string `json:"userId" binding:"required"`
	AgentID   string `json:"agentId" binding:"required"`
	PaymentID string `json:"paymentId"`
	ExpiresAt string `json:"expiresAt"`
}

type extendRequest struct {
	ExpiresAt string `json:"expiresAt" binding:"required"`
}

// GrantEntitlementHandler records a purchase, giving the user access to
// an agent.
// POST /api/user-agents
func (h *APIHandler) GrantEntitlementHandler(c *gin.Context) {
	var req grantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid request: " + err.Error()})
		return
	}

	var expiresAt *time.Time
	if req.ExpiresAt != "" {
		parsed, err := time.Parse(time.RFC3339, req.ExpiresAt)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "expiresAt must be RFC3339"})
			return
		}
		expiresAt = &parsed
	}

	entitlement, err := h.entitlements.Grant(req.UserID, req.AgentID, services.GrantOptions{
		PaymentID: req.PaymentID,
		ExpiresAt: expiresAt,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondCreated(c, "agent access granted successfully", entitlement)
}

// ListEntitlementsHandler returns a user's grants with agent data.
// GET /api/user-agents/:userId
func (h *APIHandler) ListEntitlementsHandler(c *gin.Context) {
	entitlements, pagination, err := h.entitlements.ListForUser(c.Param("userId"), paginationFromQuery(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondList(c, "user agents retrieved successfully", entitlements, pagination)
}

// CheckAccessHandler reports whether a user may converse with an agent.
// GET /api/user-agents/:userId/:agentId/access
func (h *APIHandler) CheckAccessHandler(c *gin.Context) {
	access, err := h.entitlements.CheckAccess(c.Param("userId"), c.Param("agentId"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondOK(c, "access checked successfully", access)
}

// ExtendEntitlementHandler moves a grant's expiry forward.
// PUT /api/user-agents/:userId/:agentId
func (h *APIHandler) ExtendEntitlementHandler(c *gin.Context) {
	var req extendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid request: " + err.Error()})
		return
	}
	newExpiry, err := time.Parse(time.RFC3339, req.ExpiresAt)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "expiresAt must be RFC3339"})
		return
	}

	if err := h.entitlements.Extend(c.Param("userId"), c.Param("agentId"), newExpiry); err != nil {
		h.respondError(c, err)
		return
	}
	respondOK(c, "agent access extended successfully", nil)
}

// RevokeEntitlementHandler deactivates a grant.
// DELETE /api/user-agents/:userId/:agentId
func (h *APIHandler) RevokeEntitlementHandler(c *gin.Context) {
	if err := h.entitlements.Revoke(c.Param("userId"), c.Param("agentId")); err != nil {
		h.respondError(c, err)
		return
	}
	respondOK(c, "agent access revoked successfully", nil)
}
