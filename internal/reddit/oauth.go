package reddit

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/reddit-agent/internal/config"
	"github.com/reddit-agent/pkg/logger"
)

const tokenPath = "/api/v1/access_token"

// Authenticator performs Reddit token grants: the per-account refresh
// grant used by the publish scheduler and the app-level client
// credentials grant used by search and analytics reads.
type Authenticator struct {
	clientID     string
	clientSecret string
	log          *logger.Logger
	httpClient   *http.Client

	// TokenURL is overridable in tests; read lazily on first use
	TokenURL string

	mu        sync.Mutex
	appSource oauth2.TokenSource
}

// NewAuthenticator creates an authenticator from Reddit credentials
func NewAuthenticator(cfg config.RedditConfig, log *logger.Logger) *Authenticator {
	return &Authenticator{
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		log:          log.WithComponent("oauth"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &userAgentTransport{
				agent: cfg.UserAgent,
				base:  http.DefaultTransport,
			},
		},
		TokenURL: defaultWebBase + tokenPath,
	}
}

// Refresh exchanges a refresh token for a fresh access/refresh pair.
// Reddit may omit the rotated refresh token, in which case the oauth2
// package carries the previous one forward.
func (a *Authenticator) Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	conf := &oauth2.Config{
		ClientID:     a.clientID,
		ClientSecret: a.clientSecret,
		Endpoint: oauth2.Endpoint{
			TokenURL:  a.TokenURL,
			AuthStyle: oauth2.AuthStyleInHeader,
		},
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, a.httpClient)

	// An already-expired stub forces the source to hit the endpoint
	stale := &oauth2.Token{
		RefreshToken: refreshToken,
		Expiry:       time.Now().Add(-time.Minute),
	}

	token, err := conf.TokenSource(ctx, stale).Token()
	if err != nil {
		a.log.Error().Err(err).Msg("Token refresh failed")
		return nil, fmt.Errorf("failed to refresh token: %w", err)
	}

	a.log.Info().
		Time("expires_at", token.Expiry).
		Msg("Token refreshed successfully")

	return token, nil
}

// AppToken returns the app-level bearer token, fetching a new one only
// when the cached token is near expiry.
func (a *Authenticator) AppToken(ctx context.Context) (string, error) {
	a.mu.Lock()
	if a.appSource == nil {
		conf := &clientcredentials.Config{
			ClientID:     a.clientID,
			ClientSecret: a.clientSecret,
			TokenURL:     a.TokenURL,
			AuthStyle:    oauth2.AuthStyleInHeader,
		}
		a.appSource = conf.TokenSource(context.WithValue(context.Background(), oauth2.HTTPClient, a.httpClient))
	}
	source := a.appSource
	a.mu.Unlock()

	token, err := source.Token()
	if err != nil {
		return "", fmt.Errorf("failed to obtain app token: %w", err)
	}
	return token.AccessToken, nil
}

// userAgentTransport stamps Reddit's mandatory User-Agent header on
// token requests made by the oauth2 package.
type userAgentTransport struct {
	agent string
	base  http.RoundTripper
}

func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("User-Agent", t.agent)
	return t.base.RoundTrip(req)
}
