package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
	"golang.org/x/oauth2/google"
)

// OAuthProviderConfig contains configuration for a federated sign-in provider
type OAuthProviderConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string
}

// OAuthUserInfo contains profile information from a federated provider
type OAuthUserInfo struct {
	ProviderUserID string
	Email          string // Required
	FirstName      string
	LastName       string
	AvatarURL      string
}

// OAuthProvider handles federated sign-in via an external identity provider
type OAuthProvider struct {
	config   *oauth2.Config
	provider string // "google", "github"
}

// NewGoogleProvider creates a Google federated sign-in provider
func NewGoogleProvider(cfg OAuthProviderConfig) *OAuthProvider {
	return &OAuthProvider{
		provider: "google",
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       cfg.Scopes,
			Endpoint:     google.Endpoint,
		},
	}
}

// NewGitHubProvider creates a GitHub federated sign-in provider
func NewGitHubProvider(cfg OAuthProviderConfig) *OAuthProvider {
	return &OAuthProvider{
		provider: "github",
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       cfg.Scopes,
			Endpoint:     github.Endpoint,
		},
	}
}

// GetAuthURL returns the provider's authorization URL
func (p *OAuthProvider) GetAuthURL(state string) string {
	return p.config.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

// ExchangeCode exchanges an authorization code for an access token
func (p *OAuthProvider) ExchangeCode(ctx context.Context, code string) (*oauth2.Token, error) {
	return p.config.Exchange(ctx, code)
}

// GetUserInfo retrieves profile information from the provider
func (p *OAuthProvider) GetUserInfo(
	ctx context.Context,
	token *oauth2.Token,
) (*OAuthUserInfo, error) {
	switch p.provider {
	case "google":
		return p.getGoogleUserInfo(ctx, token)
	case "github":
		return p.getGitHubUserInfo(ctx, token)
	default:
		return nil, fmt.Errorf("unsupported provider: %s", p.provider)
	}
}

// GetProvider returns the provider name
func (p *OAuthProvider) GetProvider() string {
	return p.provider
}

// GetDisplayName returns the human-readable provider name
func (p *OAuthProvider) GetDisplayName() string {
	switch p.provider {
	case "google":
		return "Google"
	case "github":
		return "GitHub"
	default:
		if len(p.provider) == 0 {
			return ""
		}
		return strings.ToUpper(p.provider[:1]) + p.provider[1:]
	}
}

// Google user info structure
type googleUser struct {
	ID         string `json:"id"`
	Email      string `json:"email"`
	GivenName  string `json:"given_name"`
	FamilyName string `json:"family_name"`
	Picture    string `json:"picture"`
}

// getGoogleUserInfo retrieves profile information from the Google userinfo API
func (p *OAuthProvider) getGoogleUserInfo(
	ctx context.Context,
	token *oauth2.Token,
) (*OAuthUserInfo, error) {
	client := p.config.Client(ctx, token)

	req, err := http.NewRequestWithContext(
		ctx, "GET", "https://www.googleapis.com/oauth2/v2/userinfo", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to get user info: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("google API error: %s - %s", resp.Status, string(body))
	}

	var user googleUser
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return nil, fmt.Errorf("failed to decode user info: %w", err)
	}

	if user.Email == "" {
		return nil, ErrProviderNoEmail
	}

	return &OAuthUserInfo{
		ProviderUserID: user.ID,
		Email:          user.Email,
		FirstName:      user.GivenName,
		LastName:       user.FamilyName,
		AvatarURL:      user.Picture,
	}, nil
}

// GitHub user info structures
type githubUser struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	AvatarURL string `json:"avatar_url"`
}

type githubEmail struct {
	Email    string `json:"email"`
	Primary  bool   `json:"primary"`
	Verified bool   `json:"verified"`
}

// getGitHubUserInfo retrieves profile information from the GitHub API
func (p *OAuthProvider) getGitHubUserInfo(
	ctx context.Context,
	token *oauth2.Token,
) (*OAuthUserInfo, error) {
	client := p.config.Client(ctx, token)

	req, err := http.NewRequestWithContext(ctx, "GET", "https://api.github.com/user", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to get user info: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("gitHub API error: %s - %s", resp.Status, string(body))
	}

	var user githubUser
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return nil, fmt.Errorf("failed to decode user info: %w", err)
	}

	// If email is not public, fetch from the emails endpoint
	if user.Email == "" {
		email, err := p.getGitHubPrimaryEmail(ctx, client)
		if err != nil {
			return nil, fmt.Errorf("failed to get user email: %w", err)
		}
		user.Email = email
	}

	if user.Email == "" {
		return nil, ErrProviderNoEmail
	}

	firstName, lastName := splitName(user.Name)
	return &OAuthUserInfo{
		ProviderUserID: fmt.Sprintf("%d", user.ID),
		Email:          user.Email,
		FirstName:      firstName,
		LastName:       lastName,
		AvatarURL:      user.AvatarURL,
	}, nil
}

// getGitHubPrimaryEmail fetches the primary email from the GitHub emails endpoint
func (p *OAuthProvider) getGitHubPrimaryEmail(
	ctx context.Context,
	client *http.Client,
) (string, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", "https://api.github.com/user/emails", nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("failed to get emails: %s", resp.Status)
	}

	var emails []githubEmail
	if err := json.NewDecoder(resp.Body).Decode(&emails); err != nil {
		return "", err
	}

	// Find primary verified email
	for _, email := range emails {
		if email.Primary && email.Verified {
			return email.Email, nil
		}
	}

	// Fallback to first verified email
	for _, email := range emails {
		if email.Verified {
			return email.Email, nil
		}
	}

	return "", fmt.Errorf("no verified email found")
}

// splitName splits a display name into first and last parts
func splitName(name string) (first, last string) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ""
	}
	parts := strings.SplitN(name, " ", 2)
	if len(parts) == 1 {
		return parts[0], ""
	}
	return parts[0], parts[1]
}
