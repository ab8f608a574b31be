package auth

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
)

// GitHubProvider wraps golang.org/x/oauth2 for the GitHub Authorization Code
// flow.
//
// Unlike a pure "sign in with GitHub" flow we keep the access token: it is
// stored on the user's GitHub Account and reused by every later sync, so the
// scopes must allow reading the contribution calendar.
type GitHubProvider struct {
	config *oauth2.Config
}

// NewGitHubProvider creates a GitHubProvider. callbackURL must match the
// OAuth App's "Authorization callback URL" exactly.
//
// Scopes:
//   - "read:user"  profile and contribution calendar
//   - "user:email" primary email for new accounts
func NewGitHubProvider(clientID, clientSecret, callbackURL string) *GitHubProvider {
	return &GitHubProvider{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  callbackURL,
			Scopes:       []string{"read:user", "user:email"},
			Endpoint:     github.Endpoint,
		},
	}
}

// WithEndpoint overrides GitHub's authorize/token URLs. Tests point it at an
// httptest.Server.
func (p *GitHubProvider) WithEndpoint(ep oauth2.Endpoint) *GitHubProvider {
	p.config.Endpoint = ep
	return p
}

// AuthURL returns the GitHub authorization URL carrying the encoded state.
func (p *GitHubProvider) AuthURL(state string) string {
	return p.config.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

// Exchange trades an authorization code for an access token
// (server-to-server, authenticated with the client secret).
func (p *GitHubProvider) Exchange(ctx context.Context, code string) (string, error) {
	tok, err := p.config.Exchange(ctx, code)
	if err != nil {
		return "", fmt.Errorf("auth: exchanging OAuth code: %w", err)
	}
	if tok.AccessToken == "" {
		return "", errors.New("auth: GitHub returned an empty access token")
	}
	return tok.AccessToken, nil
}
