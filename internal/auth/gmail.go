package auth

import (
	"context"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// GmailLinkProvider builds consent URLs and exchanges authorization codes for
// the Gmail linking flow. It is separate from the federated sign-in providers:
// linking attaches mail scopes to a specific zap, not to the user's session.
type GmailLinkProvider struct {
	config *oauth2.Config
}

// NewGmailLinkProvider creates the Gmail linking provider
func NewGmailLinkProvider(cfg OAuthProviderConfig) *GmailLinkProvider {
	return &GmailLinkProvider{
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       cfg.Scopes,
			Endpoint:     google.Endpoint,
		},
	}
}

// AuthURL returns the consent URL for the given signed state. Offline access
// and forced consent ensure Google issues a refresh token.
func (p *GmailLinkProvider) AuthURL(state string) string {
	return p.config.AuthCodeURL(
		state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"),
	)
}

// Exchange submits an authorization code to Google's token endpoint. Codes
// are single-use; a failed exchange must not be retried.
func (p *GmailLinkProvider) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	return p.config.Exchange(ctx, code)
}
