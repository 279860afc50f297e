package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Prateekbala/workflow-test/internal/metrics"
	"github.com/Prateekbala/workflow-test/internal/middleware"
	"github.com/Prateekbala/workflow-test/internal/models"
	"github.com/Prateekbala/workflow-test/internal/services"
	"github.com/Prateekbala/workflow-test/internal/session"
	"github.com/Prateekbala/workflow-test/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type zapFixture struct {
	router   *gin.Engine
	store    *store.Store
	sessions *session.Manager
	zaps     *services.ZapService
}

func setupZapFixture(t *testing.T) *zapFixture {
	gin.SetMode(gin.TestMode)

	s, err := store.New("sqlite", ":memory:")
	require.NoError(t, err)

	manager := session.NewManager("test-secret", "http://localhost:8080", time.Hour, false)
	zapService := services.NewZapService(s, &metrics.NoopMetrics{})
	handler := NewZapHandler(zapService)

	r := gin.New()
	protected := r.Group("", middleware.RequireAuth(manager))
	protected.POST("/api/zaps", handler.CreateZap)
	protected.GET("/api/zaps", handler.ListZaps)
	protected.GET("/api/zaps/token-status", handler.TokenStatus)

	return &zapFixture{router: r, store: s, sessions: manager, zaps: zapService}
}

func (f *zapFixture) createUser(t *testing.T, email string) *models.User {
	user := &models.User{
		ID:           uuid.New().String(),
		Email:        email,
		PasswordHash: "hashed_password",
	}
	require.NoError(t, f.store.CreateUser(user))
	return user
}

func (f *zapFixture) authedRequest(
	t *testing.T,
	user *models.User,
	method, target, body string,
) *httptest.ResponseRecorder {
	token, err := f.sessions.Issue(session.Identity{UserID: user.ID, Email: user.Email})
	require.NoError(t, err)

	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	req.AddCookie(&http.Cookie{Name: session.CookieName, Value: token})

	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func TestCreateZapEndpoint(t *testing.T) {
	f := setupZapFixture(t)
	user := f.createUser(t, "alice@example.com")

	w := f.authedRequest(t, user, http.MethodPost, "/api/zaps",
		`{"name":"Email notifier","triggerType":"email_received"}`)

	require.Equal(t, http.StatusOK, w.Code)

	var zap models.Zap
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &zap))
	assert.Equal(t, "Email notifier", zap.Name)
	assert.Equal(t, models.ZapStatusDraft, zap.Status)
	assert.Equal(t, user.ID, zap.UserID)
	require.NotNil(t, zap.Trigger)
	assert.Equal(t, "email_received", zap.Trigger.Type)
}

func TestCreateZapIgnoresTriggerConfig(t *testing.T) {
	f := setupZapFixture(t)
	user := f.createUser(t, "alice@example.com")

	// Extra trigger parameters are accepted but not persisted
	w := f.authedRequest(t, user, http.MethodPost, "/api/zaps",
		`{"name":"Email notifier","triggerType":"email_received","triggerConfig":{"label":"INBOX"}}`)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCreateZapValidatesInput(t *testing.T) {
	f := setupZapFixture(t)
	user := f.createUser(t, "alice@example.com")

	cases := []struct {
		name string
		body string
	}{
		{"missing name", `{"triggerType":"email_received"}`},
		{"missing trigger type", `{"name":"Email notifier"}`},
		{"not json", `name=Email`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := f.authedRequest(t, user, http.MethodPost, "/api/zaps", tc.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestCreateZapRequiresSession(t *testing.T) {
	f := setupZapFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/api/zaps",
		strings.NewReader(`{"name":"Email notifier","triggerType":"email_received"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestListZapsEndpoint(t *testing.T) {
	f := setupZapFixture(t)
	alice := f.createUser(t, "alice@example.com")
	bob := f.createUser(t, "bob@example.com")

	w := f.authedRequest(t, alice, http.MethodPost, "/api/zaps",
		`{"name":"Zap A","triggerType":"email_received"}`)
	require.Equal(t, http.StatusOK, w.Code)
	w = f.authedRequest(t, bob, http.MethodPost, "/api/zaps",
		`{"name":"Zap B","triggerType":"email_received"}`)
	require.Equal(t, http.StatusOK, w.Code)

	w = f.authedRequest(t, alice, http.MethodGet, "/api/zaps", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Zaps []models.Zap `json:"zaps"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Zaps, 1)
	assert.Equal(t, "Zap A", resp.Zaps[0].Name)
}

func TestTokenStatusEndpoint(t *testing.T) {
	f := setupZapFixture(t)
	alice := f.createUser(t, "alice@example.com")
	bob := f.createUser(t, "bob@example.com")

	zap, err := f.zaps.CreateZap(context.Background(), alice.ID, "Email notifier", "email_received")
	require.NoError(t, err)

	t.Run("missing zap id", func(t *testing.T) {
		w := f.authedRequest(t, alice, http.MethodGet, "/api/zaps/token-status", "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("unlinked zap", func(t *testing.T) {
		w := f.authedRequest(t, alice, http.MethodGet, "/api/zaps/token-status?zapId="+zap.ID, "")
		require.Equal(t, http.StatusOK, w.Code)

		var status services.TokenStatus
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
		assert.False(t, status.IsAuthenticated)
		assert.False(t, status.IsValid)
	})

	t.Run("linked zap", func(t *testing.T) {
		require.NoError(t, f.store.SaveProviderTokenAndActivate(
			zap.ID, services.ProviderGmail, "access", "refresh", time.Now().Add(time.Hour),
		))

		w := f.authedRequest(t, alice, http.MethodGet, "/api/zaps/token-status?zapId="+zap.ID, "")
		require.Equal(t, http.StatusOK, w.Code)

		var status services.TokenStatus
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
		assert.True(t, status.IsAuthenticated)
		assert.True(t, status.IsValid)
		assert.Equal(t, services.ProviderGmail, status.Provider)
	})

	t.Run("foreign zap reads as missing", func(t *testing.T) {
		w := f.authedRequest(t, bob, http.MethodGet, "/api/zaps/token-status?zapId="+zap.ID, "")
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}
