package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/Prateekbala/workflow-test/internal/middleware"
	"github.com/Prateekbala/workflow-test/internal/services"

	"github.com/gin-gonic/gin"
)

type ZapHandler struct {
	zaps *services.ZapService
}

func NewZapHandler(zaps *services.ZapService) *ZapHandler {
	return &ZapHandler{zaps: zaps}
}

// createZapRequest is the JSON body of POST /api/zaps. Trigger parameters are
// accepted for forward compatibility but not persisted.
type createZapRequest struct {
	Name          string         `json:"name" binding:"required"`
	TriggerType   string         `json:"triggerType" binding:"required"`
	TriggerConfig map[string]any `json:"triggerConfig"`
}

// CreateZap creates a draft zap owned by the caller
func (h *ZapHandler) CreateZap(c *gin.Context) {
	identity := middleware.CurrentIdentity(c)
	if identity == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var req createZapRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input data"})
		return
	}

	zap, err := h.zaps.CreateZap(c.Request.Context(), identity.UserID, req.Name, req.TriggerType)
	if err != nil {
		log.Printf("[Zap] Failed to create zap: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create zap"})
		return
	}

	c.JSON(http.StatusOK, zap)
}

// ListZaps returns the caller's zaps
func (h *ZapHandler) ListZaps(c *gin.Context) {
	identity := middleware.CurrentIdentity(c)
	if identity == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	zaps, err := h.zaps.ListZaps(c.Request.Context(), identity.UserID)
	if err != nil {
		log.Printf("[Zap] Failed to list zaps: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list zaps"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"zaps": zaps})
}

// TokenStatus reports whether the caller's zap has a linked provider token
// and whether that token is still valid
func (h *ZapHandler) TokenStatus(c *gin.Context) {
	identity := middleware.CurrentIdentity(c)
	if identity == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	zapID := c.Query("zapId")
	if zapID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Zap ID is required"})
		return
	}

	status, err := h.zaps.TokenStatus(c.Request.Context(), identity.UserID, zapID)
	if err != nil {
		if errors.Is(err, services.ErrZapNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Zap not found"})
			return
		}
		log.Printf("[Zap] Failed to get token status: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get token status"})
		return
	}

	c.JSON(http.StatusOK, status)
}
