package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/Prateekbala/workflow-test/internal/linkstate"
	"github.com/Prateekbala/workflow-test/internal/metrics"
	"github.com/Prateekbala/workflow-test/internal/models"
	"github.com/Prateekbala/workflow-test/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

// fakeLinkProvider stands in for the Google endpoint in tests
type fakeLinkProvider struct {
	token       *oauth2.Token
	exchangeErr error
	lastCode    string
}

func (f *fakeLinkProvider) AuthURL(state string) string {
	return "https://accounts.example.com/o/oauth2/auth?state=" + state
}

func (f *fakeLinkProvider) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	f.lastCode = code
	if f.exchangeErr != nil {
		return nil, f.exchangeErr
	}
	return f.token, nil
}

func newLinkingFixture(t *testing.T, provider LinkProvider) (*LinkingService, *store.Store, *linkstate.Codec) {
	s := setupTestStore(t)
	codec := linkstate.NewCodec("test-secret", 10*time.Minute)
	svc := NewLinkingService(s, provider, codec, nil, time.Hour, &metrics.NoopMetrics{})
	return svc, s, codec
}

func createDraftZap(t *testing.T, s *store.Store, userID string) *models.Zap {
	svc := NewZapService(s, &metrics.NoopMetrics{})
	zap, err := svc.CreateZap(context.Background(), userID, "Email notifier", "email_received")
	require.NoError(t, err)
	return zap
}

func TestRequestAccessEmbedsSignedState(t *testing.T) {
	provider := &fakeLinkProvider{}
	svc, s, codec := newLinkingFixture(t, provider)
	user := createStoredUser(t, s, "alice@example.com")
	zap := createDraftZap(t, s, user.ID)

	authURL, err := svc.RequestAccess(context.Background(), user.ID, zap.ID)
	require.NoError(t, err)

	state := strings.TrimPrefix(authURL, "https://accounts.example.com/o/oauth2/auth?state=")
	zapID, userID, err := codec.Decode(state)
	require.NoError(t, err)
	assert.Equal(t, zap.ID, zapID)
	assert.Equal(t, user.ID, userID)
}

func TestRequestAccessRejectsForeignZap(t *testing.T) {
	provider := &fakeLinkProvider{}
	svc, s, _ := newLinkingFixture(t, provider)
	alice := createStoredUser(t, s, "alice@example.com")
	bob := createStoredUser(t, s, "bob@example.com")
	zap := createDraftZap(t, s, alice.ID)

	_, err := svc.RequestAccess(context.Background(), bob.ID, zap.ID)
	assert.ErrorIs(t, err, ErrZapNotFound)
}

func TestCompleteCallbackLinksAndActivates(t *testing.T) {
	expiry := time.Now().Add(30 * time.Minute)
	provider := &fakeLinkProvider{token: &oauth2.Token{
		AccessToken:  "access-token",
		RefreshToken: "refresh-token",
		Expiry:       expiry,
	}}
	svc, s, codec := newLinkingFixture(t, provider)
	user := createStoredUser(t, s, "alice@example.com")
	zap := createDraftZap(t, s, user.ID)

	state, err := codec.Encode(zap.ID, user.ID)
	require.NoError(t, err)

	require.NoError(t, svc.CompleteCallback(context.Background(), "auth-code", state))
	assert.Equal(t, "auth-code", provider.lastCode)

	token, err := s.GetProviderTokenByZapID(zap.ID)
	require.NoError(t, err)
	assert.Equal(t, ProviderGmail, token.Provider)
	assert.Equal(t, "access-token", token.AccessToken)
	assert.Equal(t, "refresh-token", token.RefreshToken)
	assert.WithinDuration(t, expiry, token.ExpiresAt, time.Second)

	linked, err := s.GetZapByIDAndOwner(zap.ID, user.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ZapStatusActive, linked.Status)
}

func TestCompleteCallbackAppliesFallbackExpiry(t *testing.T) {
	provider := &fakeLinkProvider{token: &oauth2.Token{
		AccessToken: "access-token",
		// Expiry omitted by the provider
	}}
	svc, s, codec := newLinkingFixture(t, provider)
	user := createStoredUser(t, s, "alice@example.com")
	zap := createDraftZap(t, s, user.ID)

	state, err := codec.Encode(zap.ID, user.ID)
	require.NoError(t, err)

	require.NoError(t, svc.CompleteCallback(context.Background(), "auth-code", state))

	token, err := s.GetProviderTokenByZapID(zap.ID)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), token.ExpiresAt, 5*time.Second)
}

func TestCompleteCallbackRejectsBadState(t *testing.T) {
	provider := &fakeLinkProvider{token: &oauth2.Token{AccessToken: "access-token"}}
	svc, _, _ := newLinkingFixture(t, provider)

	err := svc.CompleteCallback(context.Background(), "auth-code", "tampered-state")
	assert.ErrorIs(t, err, ErrInvalidState)
	assert.Empty(t, provider.lastCode, "exchange must not run with a bad state")
}

func TestCompleteCallbackRejectsStateForDeletedZap(t *testing.T) {
	provider := &fakeLinkProvider{token: &oauth2.Token{AccessToken: "access-token"}}
	svc, s, codec := newLinkingFixture(t, provider)
	user := createStoredUser(t, s, "alice@example.com")

	// Valid signature, but the zap never existed
	state, err := codec.Encode("missing-zap", user.ID)
	require.NoError(t, err)

	err = svc.CompleteCallback(context.Background(), "auth-code", state)
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = s.GetProviderTokenByZapID("missing-zap")
	assert.ErrorIs(t, err, store.ErrRecordNotFound)
}

func TestCompleteCallbackPropagatesExchangeFailure(t *testing.T) {
	provider := &fakeLinkProvider{exchangeErr: errors.New("invalid_grant")}
	svc, s, codec := newLinkingFixture(t, provider)
	user := createStoredUser(t, s, "alice@example.com")
	zap := createDraftZap(t, s, user.ID)

	state, err := codec.Encode(zap.ID, user.ID)
	require.NoError(t, err)

	err = svc.CompleteCallback(context.Background(), "used-code", state)
	assert.ErrorIs(t, err, ErrExchangeFailed)

	// The zap must remain a draft with no stored token
	found, err := s.GetZapByIDAndOwner(zap.ID, user.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ZapStatusDraft, found.Status)

	_, err = s.GetProviderTokenByZapID(zap.ID)
	assert.ErrorIs(t, err, store.ErrRecordNotFound)
}

func TestCompleteCallbackRepeatConsentKeepsRefreshToken(t *testing.T) {
	provider := &fakeLinkProvider{token: &oauth2.Token{
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
		Expiry:       time.Now().Add(time.Hour),
	}}
	svc, s, codec := newLinkingFixture(t, provider)
	user := createStoredUser(t, s, "alice@example.com")
	zap := createDraftZap(t, s, user.ID)

	state, err := codec.Encode(zap.ID, user.ID)
	require.NoError(t, err)
	require.NoError(t, svc.CompleteCallback(context.Background(), "code-1", state))

	// Second consent omits the refresh token
	provider.token = &oauth2.Token{
		AccessToken: "access-2",
		Expiry:      time.Now().Add(time.Hour),
	}
	state, err = codec.Encode(zap.ID, user.ID)
	require.NoError(t, err)
	require.NoError(t, svc.CompleteCallback(context.Background(), "code-2", state))

	token, err := s.GetProviderTokenByZapID(zap.ID)
	require.NoError(t, err)
	assert.Equal(t, "access-2", token.AccessToken)
	assert.Equal(t, "refresh-1", token.RefreshToken)
}
