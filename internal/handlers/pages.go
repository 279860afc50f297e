package handlers

import (
	"log"
	"net/http"

	"github.com/Prateekbala/workflow-test/internal/middleware"
	"github.com/Prateekbala/workflow-test/internal/services"

	"github.com/gin-gonic/gin"
)

// PageHandler renders the authenticated HTML pages
type PageHandler struct {
	zaps *services.ZapService
}

func NewPageHandler(zaps *services.ZapService) *PageHandler {
	return &PageHandler{zaps: zaps}
}

// Dashboard lists the caller's zaps
func (h *PageHandler) Dashboard(c *gin.Context) {
	identity := middleware.CurrentIdentity(c)
	if identity == nil {
		c.Redirect(http.StatusFound, "/sign-in")
		return
	}

	zaps, err := h.zaps.ListZaps(c.Request.Context(), identity.UserID)
	if err != nil {
		log.Printf("[Pages] Failed to list zaps: %v", err)
		c.HTML(http.StatusInternalServerError, "error.html", gin.H{
			"Error": "Failed to load your zaps.",
		})
		return
	}

	c.HTML(http.StatusOK, "dashboard.html", gin.H{
		"UserName": identity.FirstName + " " + identity.LastName,
		"Zaps":     zaps,
	})
}

// AuthSuccess is the landing page after a successful account link
func (h *PageHandler) AuthSuccess(c *gin.Context) {
	c.HTML(http.StatusOK, "success.html", nil)
}

// AuthError is the landing page after a failed account link
func (h *PageHandler) AuthError(c *gin.Context) {
	c.HTML(http.StatusOK, "error.html", gin.H{
		"Error": "We could not connect your Gmail account. Please try again.",
	})
}
