package handlers

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"log"
	"net/http"

	"github.com/Prateekbala/workflow-test/internal/auth"
	"github.com/Prateekbala/workflow-test/internal/metrics"
	"github.com/Prateekbala/workflow-test/internal/services"
	"github.com/Prateekbala/workflow-test/internal/session"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"golang.org/x/oauth2"
)

// OAuthHandler drives federated sign-in with external identity providers
type OAuthHandler struct {
	providers  map[string]*auth.OAuthProvider
	users      *services.UserService
	sessions   *session.Manager
	httpClient *http.Client // Custom HTTP client for OAuth requests
	baseURL    string
	metrics    metrics.Recorder
}

// NewOAuthHandler creates a new federated sign-in handler
func NewOAuthHandler(
	providers map[string]*auth.OAuthProvider,
	users *services.UserService,
	sessionManager *session.Manager,
	httpClient *http.Client,
	baseURL string,
	m metrics.Recorder,
) *OAuthHandler {
	return &OAuthHandler{
		providers:  providers,
		users:      users,
		sessions:   sessionManager,
		httpClient: httpClient,
		baseURL:    baseURL,
		metrics:    m,
	}
}

// LoginWithProvider redirects the user to the identity provider
func (h *OAuthHandler) LoginWithProvider(c *gin.Context) {
	provider := c.Param("provider")

	oauthProvider, exists := h.providers[provider]
	if !exists {
		c.HTML(http.StatusBadRequest, "error.html", gin.H{
			"Error": "Unsupported sign-in provider.",
		})
		return
	}

	// Generate state for CSRF protection
	state, err := generateRandomState(32)
	if err != nil {
		log.Printf("[OAuth] Failed to generate state: %v", err)
		c.HTML(http.StatusInternalServerError, "error.html", gin.H{
			"Error": "Failed to initiate sign-in.",
		})
		return
	}

	// Save state and redirect URL in the flow session
	flow := sessions.Default(c)
	flow.Set("oauth_state", state)
	flow.Set("oauth_provider", provider)

	if redirect := c.Query("redirect"); redirect != "" && isRedirectSafe(redirect, h.baseURL) {
		flow.Set("oauth_redirect", redirect)
	}

	if err := flow.Save(); err != nil {
		log.Printf("[OAuth] Failed to save session: %v", err)
		c.HTML(http.StatusInternalServerError, "error.html", gin.H{
			"Error": "Failed to save session.",
		})
		return
	}

	c.Redirect(http.StatusTemporaryRedirect, oauthProvider.GetAuthURL(state))
}

// OAuthCallback finishes federated sign-in after the provider redirects back
func (h *OAuthHandler) OAuthCallback(c *gin.Context) {
	provider := c.Param("provider")
	code := c.Query("code")
	state := c.Query("state")

	oauthProvider, exists := h.providers[provider]
	if !exists {
		c.HTML(http.StatusBadRequest, "error.html", gin.H{
			"Error": "Unknown sign-in provider.",
		})
		return
	}

	// Verify state (CSRF protection)
	flow := sessions.Default(c)
	savedState := flow.Get("oauth_state")
	savedProvider := flow.Get("oauth_provider")

	if savedState == nil || savedProvider == nil {
		c.HTML(http.StatusBadRequest, "error.html", gin.H{
			"Error": "Sign-in session expired or invalid. Please try again.",
		})
		return
	}

	if state != savedState.(string) || provider != savedProvider.(string) {
		h.metrics.RecordOAuthCallback(provider, false)
		c.HTML(http.StatusBadRequest, "error.html", gin.H{
			"Error": "State validation failed. Please try again.",
		})
		return
	}

	// Use custom HTTP client for OAuth requests
	ctx := c.Request.Context()
	if h.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, h.httpClient)
	}

	token, err := oauthProvider.ExchangeCode(ctx, code)
	if err != nil {
		h.metrics.RecordOAuthCallback(provider, false)
		log.Printf("[OAuth] Failed to exchange code: %v", err)
		c.HTML(http.StatusInternalServerError, "error.html", gin.H{
			"Error": "Failed to exchange authorization code.",
		})
		return
	}

	userInfo, err := oauthProvider.GetUserInfo(ctx, token)
	if err != nil {
		h.metrics.RecordOAuthCallback(provider, false)
		log.Printf("[OAuth] Failed to get user info: %v", err)
		c.HTML(http.StatusInternalServerError, "error.html", gin.H{
			"Error": "Failed to retrieve your profile from the provider.",
		})
		return
	}

	user, err := h.users.FederatedSignIn(c.Request.Context(), provider, userInfo)
	if err != nil {
		h.metrics.RecordOAuthCallback(provider, false)
		log.Printf("[OAuth] Federated sign-in failed: %v", err)
		c.HTML(http.StatusInternalServerError, "error.html", gin.H{
			"Error": "Unable to sign you in at this time. Please try again later.",
		})
		return
	}

	h.metrics.RecordOAuthCallback(provider, true)
	h.metrics.RecordSignIn(provider, true)

	// Clear flow state and pick up the saved redirect
	flow.Delete("oauth_state")
	flow.Delete("oauth_provider")

	redirectURL := "/dashboard"
	if savedRedirect := flow.Get("oauth_redirect"); savedRedirect != nil {
		redirectURL = savedRedirect.(string)
		flow.Delete("oauth_redirect")
	}

	if err := flow.Save(); err != nil {
		log.Printf("[OAuth] Failed to save session: %v", err)
		c.HTML(http.StatusInternalServerError, "error.html", gin.H{
			"Error": "Failed to save session.",
		})
		return
	}

	// Carry the upstream access token in the identity session
	sessionToken, err := h.sessions.Issue(session.Identity{
		UserID:      user.ID,
		Email:       user.Email,
		FirstName:   user.FirstName,
		LastName:    user.LastName,
		AccessToken: token.AccessToken,
	})
	if err != nil {
		log.Printf("[OAuth] Failed to issue session token: %v", err)
		c.HTML(http.StatusInternalServerError, "error.html", gin.H{
			"Error": "Failed to create session.",
		})
		return
	}
	h.sessions.SetCookie(c, sessionToken)

	log.Printf("[OAuth] User authenticated: user=%s provider=%s", user.Email, provider)
	c.Redirect(http.StatusFound, redirectURL)
}

// generateRandomState generates a random state string for OAuth CSRF protection
func generateRandomState(length int) (string, error) {
	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(bytes), nil
}
