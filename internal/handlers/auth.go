package handlers

import (
	"errors"
	"log"
	"net/http"
	"net/url"
	"strings"

	"github.com/Prateekbala/workflow-test/internal/auth"
	"github.com/Prateekbala/workflow-test/internal/metrics"
	"github.com/Prateekbala/workflow-test/internal/middleware"
	"github.com/Prateekbala/workflow-test/internal/models"
	"github.com/Prateekbala/workflow-test/internal/services"
	"github.com/Prateekbala/workflow-test/internal/session"

	"github.com/gin-gonic/gin"
)

// OAuthProviderInfo is the template view of a federated sign-in provider
type OAuthProviderInfo struct {
	Name        string
	DisplayName string
}

// isRedirectSafe validates that a redirect URL is safe to use.
// It only allows:
// 1. Relative paths starting with "/" but not "//"
// 2. Absolute URLs that match the baseURL host
func isRedirectSafe(redirectURL, baseURL string) bool {
	// Empty redirect is safe (will use default)
	if redirectURL == "" {
		return true
	}

	// Must not contain newlines or carriage returns (header injection)
	if strings.ContainsAny(redirectURL, "\r\n") {
		return false
	}

	// Check if it's a relative path
	if strings.HasPrefix(redirectURL, "/") {
		// Reject protocol-relative URLs like "//evil.com"
		if strings.HasPrefix(redirectURL, "//") {
			return false
		}
		// Reject backslash variations like "/\evil.com"
		if strings.Contains(redirectURL, "\\") {
			return false
		}
		return true
	}

	// If it's an absolute URL, parse and validate against baseURL
	parsedRedirect, err := url.Parse(redirectURL)
	if err != nil {
		return false
	}

	// Reject javascript:, data:, and other non-http(s) schemes
	if parsedRedirect.Scheme != "" && parsedRedirect.Scheme != "http" &&
		parsedRedirect.Scheme != "https" {
		return false
	}

	// If there's a host specified, it must match baseURL
	if parsedRedirect.Host != "" {
		parsedBase, err := url.Parse(baseURL)
		if err != nil {
			return false
		}
		if parsedRedirect.Host != parsedBase.Host {
			return false
		}
	}

	return true
}

type AuthHandler struct {
	users    *services.UserService
	sessions *session.Manager
	baseURL  string
	metrics  metrics.Recorder
}

func NewAuthHandler(
	users *services.UserService,
	sessions *session.Manager,
	baseURL string,
	m metrics.Recorder,
) *AuthHandler {
	return &AuthHandler{
		users:    users,
		sessions: sessions,
		baseURL:  baseURL,
		metrics:  m,
	}
}

// SignInPage renders the sign-in form
func (h *AuthHandler) SignInPage(c *gin.Context, providers []OAuthProviderInfo) {
	if h.alreadySignedIn(c) {
		c.Redirect(http.StatusFound, "/dashboard")
		return
	}

	redirectTo := c.Query("redirect")
	if !isRedirectSafe(redirectTo, h.baseURL) {
		redirectTo = ""
	}

	c.HTML(http.StatusOK, "signin.html", gin.H{
		"CSRFToken":      middleware.GetCSRFToken(c),
		"Redirect":       redirectTo,
		"Error":          c.Query("error"),
		"OAuthProviders": providers,
	})
}

// SignIn handles the sign-in form submission
func (h *AuthHandler) SignIn(c *gin.Context, providers []OAuthProviderInfo) {
	email := c.PostForm("email")
	password := c.PostForm("password")
	redirectTo := c.PostForm("redirect")

	if !isRedirectSafe(redirectTo, h.baseURL) {
		redirectTo = ""
	}

	user, err := h.users.SignIn(c.Request.Context(), email, password)
	if err != nil {
		h.metrics.RecordSignIn("password", false)
		c.HTML(http.StatusUnauthorized, "signin.html", gin.H{
			"CSRFToken":      middleware.GetCSRFToken(c),
			"Error":          "Invalid email or password",
			"Redirect":       redirectTo,
			"OAuthProviders": providers,
		})
		return
	}

	if err := h.startSession(c, user, ""); err != nil {
		c.HTML(http.StatusInternalServerError, "signin.html", gin.H{
			"CSRFToken": middleware.GetCSRFToken(c),
			"Error":     "Failed to create session",
		})
		return
	}

	h.metrics.RecordSignIn("password", true)
	if redirectTo != "" {
		c.Redirect(http.StatusFound, redirectTo)
	} else {
		c.Redirect(http.StatusFound, "/dashboard")
	}
}

// SignUpPage renders the sign-up form
func (h *AuthHandler) SignUpPage(c *gin.Context) {
	if h.alreadySignedIn(c) {
		c.Redirect(http.StatusFound, "/dashboard")
		return
	}

	c.HTML(http.StatusOK, "signup.html", gin.H{
		"CSRFToken": middleware.GetCSRFToken(c),
		"Error":     c.Query("error"),
	})
}

// SignUp handles the sign-up form submission
func (h *AuthHandler) SignUp(c *gin.Context) {
	email := c.PostForm("email")
	password := c.PostForm("password")
	firstName := c.PostForm("firstName")
	lastName := c.PostForm("lastName")

	if email == "" || password == "" || firstName == "" || lastName == "" {
		c.HTML(http.StatusBadRequest, "signup.html", gin.H{
			"CSRFToken": middleware.GetCSRFToken(c),
			"Error":     "All fields are required",
		})
		return
	}

	user, err := h.users.SignUp(c.Request.Context(), email, password, firstName, lastName)
	if err != nil {
		h.metrics.RecordSignUp(false)
		errorMsg := "Failed to create account"
		status := http.StatusInternalServerError
		if errors.Is(err, services.ErrEmailTaken) {
			errorMsg = "Email already in use"
			status = http.StatusConflict
		}
		c.HTML(status, "signup.html", gin.H{
			"CSRFToken": middleware.GetCSRFToken(c),
			"Error":     errorMsg,
		})
		return
	}

	h.metrics.RecordSignUp(true)
	if err := h.startSession(c, user, ""); err != nil {
		c.Redirect(http.StatusFound, "/sign-in")
		return
	}
	c.Redirect(http.StatusFound, "/dashboard")
}

// signUpRequest is the JSON body of POST /api/sign-up
type signUpRequest struct {
	Email     string `json:"email" binding:"required,email"`
	Password  string `json:"password" binding:"required,min=8"`
	FirstName string `json:"firstName" binding:"required"`
	LastName  string `json:"lastName" binding:"required"`
}

// APISignUp handles JSON sign-up requests
func (h *AuthHandler) APISignUp(c *gin.Context) {
	var req signUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input data"})
		return
	}

	_, err := h.users.SignUp(c.Request.Context(), req.Email, req.Password, req.FirstName, req.LastName)
	if err != nil {
		h.metrics.RecordSignUp(false)
		if errors.Is(err, services.ErrEmailTaken) {
			c.JSON(http.StatusConflict, gin.H{"error": "Email already in use"})
			return
		}
		log.Printf("[Auth] Sign-up failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	h.metrics.RecordSignUp(true)
	c.JSON(http.StatusOK, gin.H{"message": "User registered successfully"})
}

// signInRequest is the JSON body of POST /api/sign-in
type signInRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// APISignIn handles JSON sign-in requests and sets the session cookie
func (h *AuthHandler) APISignIn(c *gin.Context) {
	var req signInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input data"})
		return
	}

	user, err := h.users.SignIn(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.metrics.RecordSignIn("password", false)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid email or password"})
		return
	}

	if err := h.startSession(c, user, ""); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create session"})
		return
	}

	h.metrics.RecordSignIn("password", true)
	c.JSON(http.StatusOK, gin.H{
		"id":        user.ID,
		"email":     user.Email,
		"firstName": user.FirstName,
		"lastName":  user.LastName,
	})
}

// Logout clears the session cookie and redirects to sign-in
func (h *AuthHandler) Logout(c *gin.Context) {
	h.sessions.ClearCookie(c)
	h.metrics.RecordSignOut()
	c.Redirect(http.StatusFound, "/sign-in")
}

// startSession issues the session JWT and sets it as a cookie
func (h *AuthHandler) startSession(c *gin.Context, user *models.User, accessToken string) error {
	token, err := h.sessions.Issue(session.Identity{
		UserID:      user.ID,
		Email:       user.Email,
		FirstName:   user.FirstName,
		LastName:    user.LastName,
		AccessToken: accessToken,
	})
	if err != nil {
		log.Printf("[Auth] Failed to issue session token: %v", err)
		return err
	}
	h.sessions.SetCookie(c, token)
	return nil
}

func (h *AuthHandler) alreadySignedIn(c *gin.Context) bool {
	token, err := c.Cookie(session.CookieName)
	if err != nil || token == "" {
		return false
	}
	_, err = h.sessions.Validate(token)
	return err == nil
}

// ProviderInfos converts a provider map into sorted-free template data
func ProviderInfos(providers map[string]*auth.OAuthProvider) []OAuthProviderInfo {
	infos := make([]OAuthProviderInfo, 0, len(providers))
	for _, p := range providers {
		infos = append(infos, OAuthProviderInfo{
			Name:        p.GetProvider(),
			DisplayName: p.GetDisplayName(),
		})
	}
	return infos
}
