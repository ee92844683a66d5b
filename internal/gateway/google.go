package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"
)

// Google endpoints used by the authorization-code flow.
const (
	GoogleAuthURL     = "https://accounts.google.com/o/oauth2/auth"
	GoogleTokenURL    = "https://accounts.google.com/o/oauth2/token"
	GoogleUserInfoURL = "https://www.googleapis.com/oauth2/v1/userinfo"
)

// GoogleProfile is the subset of the userinfo response the service needs.
type GoogleProfile struct {
	ID         string `json:"id"`
	Email      string `json:"email"`
	GivenName  string `json:"given_name"`
	FamilyName string `json:"family_name"`
}

// GoogleConfig configures the OAuth client.  Empty URLs default to
// Google's production endpoints.
type GoogleConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	AuthURL      string
	TokenURL     string
	UserInfoURL  string
	Timeout      time.Duration
}

// Google runs the OAuth authorization-code flow against Google.
type Google struct {
	oauth       *oauth2.Config
	userInfoURL string
	timeout     time.Duration
}

// NewGoogle builds a Google client.
func NewGoogle(cfg GoogleConfig) *Google {
	or := func(v, def string) string {
		if v == "" {
			return def
		}
		return v
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Google{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       []string{"profile", "email"},
			Endpoint: oauth2.Endpoint{
				AuthURL:  or(cfg.AuthURL, GoogleAuthURL),
				TokenURL: or(cfg.TokenURL, GoogleTokenURL),
			},
		},
		userInfoURL: or(cfg.UserInfoURL, GoogleUserInfoURL),
		timeout:     timeout,
	}
}

// AuthURL returns the consent page URL.  state may be empty.
func (g *Google) AuthURL(state string) string {
	return g.oauth.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

// Exchange trades an authorization code for tokens and fetches the
// user's profile.
func (g *Google) Exchange(ctx context.Context, code string) (GoogleProfile, *oauth2.Token, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	tok, err := g.oauth.Exchange(ctx, code)
	if err != nil {
		return GoogleProfile{}, nil, fmt.Errorf("google token exchange: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.userInfoURL, nil)
	if err != nil {
		return GoogleProfile{}, nil, err
	}
	res, err := g.oauth.Client(ctx, tok).Do(req)
	if err != nil {
		return GoogleProfile{}, nil, fmt.Errorf("google userinfo: %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return GoogleProfile{}, nil, fmt.Errorf("%w: userinfo status %d", ErrUnexpectedResponse, res.StatusCode)
	}
	var p GoogleProfile
	if err := json.NewDecoder(res.Body).Decode(&p); err != nil {
		return GoogleProfile{}, nil, fmt.Errorf("%w: %v", ErrUnexpectedResponse, err)
	}
	if p.ID == "" {
		return GoogleProfile{}, nil, fmt.Errorf("%w: userinfo without id", ErrUnexpectedResponse)
	}
	return p, tok, nil
}
