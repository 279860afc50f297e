package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/Prateekbala/workflow-test/internal/metrics"
	"github.com/Prateekbala/workflow-test/internal/middleware"
	"github.com/Prateekbala/workflow-test/internal/services"

	"github.com/gin-gonic/gin"
)

// GmailHandler exposes the Gmail account linking flow
type GmailHandler struct {
	linking *services.LinkingService
	metrics metrics.Recorder
}

func NewGmailHandler(linking *services.LinkingService, m metrics.Recorder) *GmailHandler {
	return &GmailHandler{linking: linking, metrics: m}
}

type requestAccessRequest struct {
	ZapID string `json:"zapId" binding:"required"`
}

// RequestAccess returns the Google consent URL for one of the caller's zaps
func (h *GmailHandler) RequestAccess(c *gin.Context) {
	identity := middleware.CurrentIdentity(c)
	if identity == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var req requestAccessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Zap ID is required"})
		return
	}

	authURL, err := h.linking.RequestAccess(c.Request.Context(), identity.UserID, req.ZapID)
	if err != nil {
		if errors.Is(err, services.ErrZapNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Zap not found"})
			return
		}
		log.Printf("[Gmail] Failed to build consent URL: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to initiate Gmail authorization"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"authUrl": authURL})
}

// Callback handles Google's redirect after the consent screen. The browser
// always receives a redirect here, never a JSON body: this URL is loaded as
// a top-level navigation, not an API call.
func (h *GmailHandler) Callback(c *gin.Context) {
	code := c.Query("code")
	state := c.Query("state")

	if code == "" || state == "" {
		h.metrics.RecordLinkCallback("missing_params")
		c.Redirect(http.StatusFound, "/auth-error")
		return
	}

	if err := h.linking.CompleteCallback(c.Request.Context(), code, state); err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidState):
			h.metrics.RecordLinkCallback("invalid_state")
		case errors.Is(err, services.ErrUnauthorized):
			h.metrics.RecordLinkCallback("unauthorized")
		case errors.Is(err, services.ErrExchangeFailed):
			h.metrics.RecordLinkCallback("exchange_failed")
		default:
			h.metrics.RecordLinkCallback("error")
		}
		log.Printf("[Gmail] Callback failed: %v", err)
		c.Redirect(http.StatusFound, "/auth-error")
		return
	}

	h.metrics.RecordLinkCallback("success")
	c.Redirect(http.StatusFound, "/auth-success")
}
