package auth

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGmailAuthURLRequestsOfflineConsent(t *testing.T) {
	p := NewGmailLinkProvider(OAuthProviderConfig{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		RedirectURL:  "http://localhost:8080/api/gmail/callback",
		Scopes: []string{
			"https://www.googleapis.com/auth/gmail.readonly",
			"https://www.googleapis.com/auth/gmail.modify",
		},
	})

	authURL := p.AuthURL("signed-state")

	parsed, err := url.Parse(authURL)
	require.NoError(t, err)
	q := parsed.Query()

	assert.Equal(t, "signed-state", q.Get("state"))
	assert.Equal(t, "client-id", q.Get("client_id"))
	assert.Equal(t, "http://localhost:8080/api/gmail/callback", q.Get("redirect_uri"))

	// Both are required for Google to issue a refresh token on every consent
	assert.Equal(t, "offline", q.Get("access_type"))
	assert.Equal(t, "consent", q.Get("prompt"))

	assert.Contains(t, q.Get("scope"), "gmail.readonly")
	assert.Contains(t, q.Get("scope"), "gmail.modify")
}
