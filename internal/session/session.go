// Package session issues and validates the signed JWT that identifies a
// logged-in user. The token is carried in an HttpOnly cookie and is the sole
// means later endpoints use to establish caller identity.
package session

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// CookieName is the session cookie set on sign-in
const CookieName = "flowmate_session"

var (
	ErrInvalidToken = errors.New("invalid session token")
	ErrExpiredToken = errors.New("session token expired")
)

// Identity is the claim set carried by a session token
type Identity struct {
	UserID    string
	Email     string
	FirstName string
	LastName  string

	// Upstream provider access token from a federated sign-in, if any
	AccessToken string
}

// Manager signs and validates session tokens
type Manager struct {
	secret []byte
	issuer string
	maxAge time.Duration
	secure bool // Require HTTPS for the cookie in production
}

func NewManager(secret, issuer string, maxAge time.Duration, secure bool) *Manager {
	return &Manager{
		secret: []byte(secret),
		issuer: issuer,
		maxAge: maxAge,
		secure: secure,
	}
}

// Issue creates a signed session token for the identity
func (m *Manager) Issue(id Identity) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":        id.UserID,
		"email":      id.Email,
		"first_name": id.FirstName,
		"last_name":  id.LastName,
		"iss":        m.issuer,
		"iat":        now.Unix(),
		"exp":        now.Add(m.maxAge).Unix(),
		"jti":        uuid.New().String(),
	}
	if id.AccessToken != "" {
		claims["access_token"] = id.AccessToken
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}
	return signed, nil
}

// Validate parses a session token and returns the identity it carries
func (m *Manager) Validate(tokenString string) (*Identity, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	userID, _ := claims["sub"].(string)
	if userID == "" {
		return nil, ErrInvalidToken
	}

	email, _ := claims["email"].(string)
	firstName, _ := claims["first_name"].(string)
	lastName, _ := claims["last_name"].(string)
	accessToken, _ := claims["access_token"].(string)

	return &Identity{
		UserID:      userID,
		Email:       email,
		FirstName:   firstName,
		LastName:    lastName,
		AccessToken: accessToken,
	}, nil
}

// SetCookie writes the session cookie on the response
func (m *Manager) SetCookie(c *gin.Context, token string) {
	c.SetSameSite(http.SameSiteLaxMode) // Lax mode required for OAuth callbacks
	c.SetCookie(CookieName, token, int(m.maxAge.Seconds()), "/", "", m.secure, true)
}

// ClearCookie removes the session cookie
func (m *Manager) ClearCookie(c *gin.Context) {
	c.SetCookie(CookieName, "", -1, "/", "", m.secure, true)
}
