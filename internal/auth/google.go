package auth

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"example.com/eventhub/config"
)

// Google endpoints. The two userinfo endpoints are alternatives: v2 is the
// primary profile source, the OpenID Connect one the standards-compliant
// fallback.
const (
	googleAuthURL         = "https://accounts.google.com/o/oauth2/auth"
	googleTokenURL        = "https://accounts.google.com/o/oauth2/token"
	googleUserinfoURL     = "https://www.googleapis.com/oauth2/v2/userinfo"
	googleOIDCUserinfoURL = "https://openidconnect.googleapis.com/v1/userinfo"
)

// Profile is the end-user identity retrieved from the provider
type Profile struct {
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
}

// ProviderToken is the provider's response to a code exchange
type ProviderToken struct {
	AccessToken string `json:"access_token"`
	IDToken     string `json:"id_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// GoogleClient talks to the Google OAuth endpoints
type GoogleClient struct {
	cfg        config.GoogleConfig
	httpClient *http.Client

	authURL         string
	tokenURL        string
	userinfoURL     string
	oidcUserinfoURL string
}

// NewGoogleClient creates a Google OAuth client
func NewGoogleClient(cfg config.GoogleConfig) *GoogleClient {
	return &GoogleClient{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		authURL:         googleAuthURL,
		tokenURL:        googleTokenURL,
		userinfoURL:     googleUserinfoURL,
		oidcUserinfoURL: googleOIDCUserinfoURL,
	}
}

// AuthCodeURL builds the consent-screen redirect URL
func (g *GoogleClient) AuthCodeURL(state string) string {
	q := url.Values{}
	q.Set("client_id", g.cfg.ClientID)
	q.Set("redirect_uri", g.cfg.RedirectURL)
	q.Set("response_type", "code")
	q.Set("scope", "openid email profile")
	q.Set("access_type", "offline")
	q.Set("prompt", "consent")
	q.Set("state", state)
	return g.authURL + "?" + q.Encode()
}

// Exchange swaps an authorization code for provider tokens
func (g *GoogleClient) Exchange(ctx context.Context, code string) (*ProviderToken, error) {
	form := url.Values{}
	form.Set("code", code)
	form.Set("client_id", g.cfg.ClientID)
	form.Set("client_secret", g.cfg.ClientSecret)
	form.Set("redirect_uri", g.cfg.RedirectURL)
	form.Set("grant_type", "authorization_code")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.tokenURL,
		strings.NewReader(form.Encode()))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create token request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "token exchange request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, errors.Errorf("token exchange returned status %d: %s", resp.StatusCode, string(body))
	}

	var token ProviderToken
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return nil, errors.Wrap(err, "failed to decode token response")
	}
	return &token, nil
}

// ProfileFromIDToken decodes the identity token embedded in the exchange
// response. The token arrives over TLS straight from the provider's token
// endpoint, so the claims are decoded without signature verification.
func (g *GoogleClient) ProfileFromIDToken(_ context.Context, token *ProviderToken) (*Profile, error) {
	if token.IDToken == "" {
		return nil, errors.New("no id_token in provider response")
	}

	claims := jwt.MapClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(token.IDToken, claims); err != nil {
		return nil, errors.Wrap(err, "failed to parse id_token")
	}

	profile := &Profile{}
	if email, ok := claims["email"].(string); ok {
		profile.Email = email
	}
	if name, ok := claims["name"].(string); ok {
		profile.Name = name
	}
	if picture, ok := claims["picture"].(string); ok {
		profile.Picture = picture
	}
	return profile, nil
}

// ProfileFromUserinfo fetches the profile from the primary userinfo endpoint
func (g *GoogleClient) ProfileFromUserinfo(ctx context.Context, token *ProviderToken) (*Profile, error) {
	return g.fetchProfile(ctx, g.userinfoURL, token)
}

// ProfileFromOIDCUserinfo fetches the profile from the OpenID Connect
// userinfo endpoint, the last-resort source.
func (g *GoogleClient) ProfileFromOIDCUserinfo(ctx context.Context, token *ProviderToken) (*Profile, error) {
	return g.fetchProfile(ctx, g.oidcUserinfoURL, token)
}

func (g *GoogleClient) fetchProfile(ctx context.Context, endpoint string, token *ProviderToken) (*Profile, error) {
	if token.AccessToken == "" {
		return nil, errors.New("no access_token in provider response")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create userinfo request")
	}
	req.Header.Set("Authorization", "Bearer "+token.AccessToken)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "userinfo request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		log.Warn().
			Str("endpoint", endpoint).
			Int("status", resp.StatusCode).
			Msg("Userinfo endpoint returned non-200")
		return nil, errors.Errorf("userinfo returned status %d: %s", resp.StatusCode, string(body))
	}

	var profile Profile
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return nil, errors.Wrap(err, "failed to decode userinfo response")
	}
	return &profile, nil
}
