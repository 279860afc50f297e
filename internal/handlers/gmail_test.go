package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/Prateekbala/workflow-test/internal/linkstate"
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
	"golang.org/x/oauth2"
)

// stubLinkProvider fakes the Google endpoint for handler tests
type stubLinkProvider struct {
	token       *oauth2.Token
	exchangeErr error
}

func (s *stubLinkProvider) AuthURL(state string) string {
	return "https://accounts.example.com/consent?state=" + url.QueryEscape(state)
}

func (s *stubLinkProvider) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	if s.exchangeErr != nil {
		return nil, s.exchangeErr
	}
	return s.token, nil
}

type gmailFixture struct {
	router   *gin.Engine
	store    *store.Store
	sessions *session.Manager
	codec    *linkstate.Codec
	provider *stubLinkProvider
}

func setupGmailFixture(t *testing.T) *gmailFixture {
	gin.SetMode(gin.TestMode)

	s, err := store.New("sqlite", ":memory:")
	require.NoError(t, err)

	manager := session.NewManager("test-secret", "http://localhost:8080", time.Hour, false)
	codec := linkstate.NewCodec("state-secret", 10*time.Minute)
	provider := &stubLinkProvider{token: &oauth2.Token{
		AccessToken:  "access-token",
		RefreshToken: "refresh-token",
		Expiry:       time.Now().Add(time.Hour),
	}}

	linking := services.NewLinkingService(s, provider, codec, nil, time.Hour, &metrics.NoopMetrics{})
	handler := NewGmailHandler(linking, &metrics.NoopMetrics{})

	r := gin.New()
	protected := r.Group("", middleware.RequireAuth(manager))
	protected.POST("/api/gmail/request-access", handler.RequestAccess)
	r.GET("/api/gmail/callback", handler.Callback)

	return &gmailFixture{router: r, store: s, sessions: manager, codec: codec, provider: provider}
}

func (f *gmailFixture) createUserAndZap(t *testing.T) (*models.User, *models.Zap) {
	user := &models.User{
		ID:           uuid.New().String(),
		Email:        "alice@example.com",
		PasswordHash: "hashed_password",
	}
	require.NoError(t, f.store.CreateUser(user))

	zap := &models.Zap{
		ID:     uuid.New().String(),
		UserID: user.ID,
		Name:   "Email notifier",
		Status: models.ZapStatusDraft,
		Trigger: &models.Trigger{
			ID:   uuid.New().String(),
			Type: "email_received",
		},
	}
	require.NoError(t, f.store.CreateZap(zap))
	return user, zap
}

func TestRequestAccessReturnsConsentURL(t *testing.T) {
	f := setupGmailFixture(t)
	user, zap := f.createUserAndZap(t)

	token, err := f.sessions.Issue(session.Identity{UserID: user.ID, Email: user.Email})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/gmail/request-access",
		strings.NewReader(`{"zapId":"`+zap.ID+`"}`))
	req.Header.Set("Content-Type", "application/json")
	req.AddCookie(&http.Cookie{Name: session.CookieName, Value: token})

	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		AuthURL string `json:"authUrl"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.AuthURL)

	parsed, err := url.Parse(resp.AuthURL)
	require.NoError(t, err)

	// The state in the consent URL decodes back to this zap and user
	zapID, userID, err := f.codec.Decode(parsed.Query().Get("state"))
	require.NoError(t, err)
	assert.Equal(t, zap.ID, zapID)
	assert.Equal(t, user.ID, userID)
}

func TestRequestAccessRequiresSession(t *testing.T) {
	f := setupGmailFixture(t)
	_, zap := f.createUserAndZap(t)

	req := httptest.NewRequest(http.MethodPost, "/api/gmail/request-access",
		strings.NewReader(`{"zapId":"`+zap.ID+`"}`))
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequestAccessRejectsForeignZap(t *testing.T) {
	f := setupGmailFixture(t)
	_, zap := f.createUserAndZap(t)

	intruder := &models.User{
		ID:           uuid.New().String(),
		Email:        "mallory@example.com",
		PasswordHash: "hashed_password",
	}
	require.NoError(t, f.store.CreateUser(intruder))

	token, err := f.sessions.Issue(session.Identity{UserID: intruder.ID})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/gmail/request-access",
		strings.NewReader(`{"zapId":"`+zap.ID+`"}`))
	req.Header.Set("Content-Type", "application/json")
	req.AddCookie(&http.Cookie{Name: session.CookieName, Value: token})

	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCallbackActivatesZapAndRedirects(t *testing.T) {
	f := setupGmailFixture(t)
	user, zap := f.createUserAndZap(t)

	state, err := f.codec.Encode(zap.ID, user.ID)
	require.NoError(t, err)

	// The callback works without any session cookie: identity rides in the state
	req := httptest.NewRequest(http.MethodGet,
		"/api/gmail/callback?code=auth-code&state="+url.QueryEscape(state), nil)
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/auth-success", w.Header().Get("Location"))

	linked, err := f.store.GetZapByIDAndOwner(zap.ID, user.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ZapStatusActive, linked.Status)

	token, err := f.store.GetProviderTokenByZapID(zap.ID)
	require.NoError(t, err)
	assert.Equal(t, "access-token", token.AccessToken)
}

func TestCallbackRedirectsToErrorPage(t *testing.T) {
	f := setupGmailFixture(t)
	user, zap := f.createUserAndZap(t)

	goodState := func() string {
		state, err := f.codec.Encode(zap.ID, user.ID)
		require.NoError(t, err)
		return url.QueryEscape(state)
	}

	cases := []struct {
		name    string
		target  string
		prepare func()
	}{
		{"missing code", "/api/gmail/callback?state=" + goodState(), nil},
		{"missing state", "/api/gmail/callback?code=auth-code", nil},
		{"tampered state", "/api/gmail/callback?code=auth-code&state=forged", nil},
		{
			"exchange failure",
			"/api/gmail/callback?code=used-code&state=" + goodState(),
			func() { f.provider.exchangeErr = services.ErrExchangeFailed },
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if tc.prepare != nil {
				tc.prepare()
			}
			req := httptest.NewRequest(http.MethodGet, tc.target, nil)
			w := httptest.NewRecorder()
			f.router.ServeHTTP(w, req)

			// Always a redirect, never a JSON error
			assert.Equal(t, http.StatusFound, w.Code)
			assert.Equal(t, "/auth-error", w.Header().Get("Location"))
		})
	}

	// No case may have activated the zap
	found, err := f.store.GetZapByIDAndOwner(zap.ID, user.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ZapStatusDraft, found.Status)
}
