// Package google wraps the outbound Google OAuth2 and Drive/Docs APIs.
package google

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/oauth2"
	oauthgoogle "golang.org/x/oauth2/google"
	"google.golang.org/api/docs/v1"
	"google.golang.org/api/drive/v3"

	"github.com/Thiwanka-Sandakalum/vidsage-google/internal/config"
)

// OAuthClient performs the OAuth2 legwork against Google: consent URL
// construction, code exchange, and access-token refresh.
type OAuthClient interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*oauth2.Token, error)
	Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error)
}

type oauthClient struct {
	cfg *oauth2.Config
}

var _ OAuthClient = (*oauthClient)(nil)

// NewOAuthClient builds the client from static configuration. The scopes
// cover file-level Drive access and document read/write only.
func NewOAuthClient(cfg config.Config) OAuthClient {
	return &oauthClient{
		cfg: &oauth2.Config{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RedirectURL:  cfg.GoogleRedirectURL,
			Scopes:       []string{drive.DriveFileScope, docs.DocumentsScope},
			Endpoint:     oauthgoogle.Endpoint,
		},
	}
}

// AuthCodeURL returns the consent URL. Offline access plus forced approval
// guarantees a refresh token even on repeat authorizations.
func (c *oauthClient) AuthCodeURL(state string) string {
	return c.cfg.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

// Exchange swaps the authorization code for a token set. A response without
// an access token is a provider-side problem and is reported as an error.
func (c *oauthClient) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	token, err := c.cfg.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchange code: %w", err)
	}
	if strings.TrimSpace(token.AccessToken) == "" {
		return nil, fmt.Errorf("exchange returned no access token")
	}
	return token, nil
}

// Refresh mints a new access token from the refresh token. Failure here
// almost always means the grant was revoked and the user must reauthorize.
func (c *oauthClient) Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	source := c.cfg.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
	token, err := source.Token()
	if err != nil {
		return nil, fmt.Errorf("refresh access token: %w", err)
	}
	if strings.TrimSpace(token.AccessToken) == "" || token.Expiry.IsZero() {
		return nil, fmt.Errorf("refresh returned incomplete token")
	}
	return token, nil
}

// IsExpired treats a missing expiry as already expired, and otherwise
// requires at least the buffer to remain before the stamped expiry. The
// buffer absorbs clock skew and request latency.
func IsExpired(expiry time.Time, buffer time.Duration) bool {
	if expiry.IsZero() {
		return true
	}
	return time.Until(expiry) < buffer
}
