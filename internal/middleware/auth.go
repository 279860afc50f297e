package middleware

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/Prateekbala/workflow-test/internal/session"

	"github.com/gin-gonic/gin"
)

const contextIdentityKey = "identity"

// RequireAuth validates the session cookie and stores the caller's identity
// on the context. API requests get a JSON 401; page requests are redirected
// to the sign-in form with a return URL.
func RequireAuth(sessions *session.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie(session.CookieName)
		if err != nil || token == "" {
			rejectUnauthenticated(c)
			return
		}

		identity, err := sessions.Validate(token)
		if err != nil {
			rejectUnauthenticated(c)
			return
		}

		c.Set(contextIdentityKey, identity)
		c.Next()
	}
}

// CurrentIdentity returns the identity stored by RequireAuth, or nil
func CurrentIdentity(c *gin.Context) *session.Identity {
	value, exists := c.Get(contextIdentityKey)
	if !exists {
		return nil
	}
	identity, ok := value.(*session.Identity)
	if !ok {
		return nil
	}
	return identity
}

func rejectUnauthenticated(c *gin.Context) {
	if strings.HasPrefix(c.Request.URL.Path, "/api/") {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		c.Abort()
		return
	}

	redirectURL := c.Request.URL.String()
	c.Redirect(http.StatusFound, "/sign-in?redirect="+url.QueryEscape(redirectURL))
	c.Abort()
}
