package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Prateekbala/workflow-test/internal/session"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupAuthRouter(t *testing.T) (*gin.Engine, *session.Manager) {
	gin.SetMode(gin.TestMode)
	manager := session.NewManager("test-secret", "http://localhost:8080", time.Hour, false)

	r := gin.New()
	r.Use(RequireAuth(manager))
	r.GET("/dashboard", func(c *gin.Context) {
		identity := CurrentIdentity(c)
		require.NotNil(t, identity)
		c.String(http.StatusOK, identity.UserID)
	})
	r.GET("/api/zaps", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	return r, manager
}

func TestRequireAuthAcceptsValidCookie(t *testing.T) {
	r, manager := setupAuthRouter(t)

	token, err := manager.Issue(session.Identity{UserID: "user-1", Email: "alice@example.com"})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	req.AddCookie(&http.Cookie{Name: session.CookieName, Value: token})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "user-1", w.Body.String())
}

func TestRequireAuthRedirectsPageRequests(t *testing.T) {
	r, _ := setupAuthRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusFound, w.Code)
	assert.Contains(t, w.Header().Get("Location"), "/sign-in?redirect=")
}

func TestRequireAuthReturnsJSONForAPIRequests(t *testing.T) {
	r, _ := setupAuthRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/zaps", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "Unauthorized")
}

func TestRequireAuthRejectsTamperedCookie(t *testing.T) {
	r, _ := setupAuthRouter(t)

	other := session.NewManager("other-secret", "http://localhost:8080", time.Hour, false)
	token, err := other.Issue(session.Identity{UserID: "user-1"})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/zaps", nil)
	req.AddCookie(&http.Cookie{Name: session.CookieName, Value: token})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
