package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"example.com/eventhub/config"
)

func testGoogleClient() *GoogleClient {
	return NewGoogleClient(config.GoogleConfig{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		RedirectURL:  "https://app.example.com/auth/callback",
	})
}

func TestAuthCodeURL(t *testing.T) {
	client := testGoogleClient()

	raw := client.AuthCodeURL("state-123")
	parsed, err := url.Parse(raw)
	require.NoError(t, err)
	require.Equal(t, "accounts.google.com", parsed.Host)

	q := parsed.Query()
	require.Equal(t, "client-id", q.Get("client_id"))
	require.Equal(t, "code", q.Get("response_type"))
	require.Equal(t, "openid email profile", q.Get("scope"))
	require.Equal(t, "state-123", q.Get("state"))
}

func TestExchange(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		require.Equal(t, "auth-code", r.PostForm.Get("code"))
		require.Equal(t, "authorization_code", r.PostForm.Get("grant_type"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"at","id_token":"idt","token_type":"Bearer","expires_in":3599}`))
	}))
	defer server.Close()

	client := testGoogleClient()
	client.tokenURL = server.URL

	token, err := client.Exchange(context.Background(), "auth-code")
	require.NoError(t, err)
	require.Equal(t, "at", token.AccessToken)
	require.Equal(t, "idt", token.IDToken)
}

func TestExchangeNonOKStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"invalid_grant"}`, http.StatusBadRequest)
	}))
	defer server.Close()

	client := testGoogleClient()
	client.tokenURL = server.URL

	_, err := client.Exchange(context.Background(), "bad-code")
	require.Error(t, err)
	require.Contains(t, err.Error(), "invalid_grant")
}

func TestProfileFromIDToken(t *testing.T) {
	// Unsigned on purpose: claims are decoded without verification
	idToken := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"email":   "a@b.com",
		"name":    "A B",
		"picture": "https://example.com/a.png",
		"exp":     time.Now().Add(time.Hour).Unix(),
	})
	raw, err := idToken.SignedString([]byte("whatever"))
	require.NoError(t, err)

	profile, err := testGoogleClient().ProfileFromIDToken(context.Background(),
		&ProviderToken{IDToken: raw})
	require.NoError(t, err)
	require.Equal(t, "a@b.com", profile.Email)
	require.Equal(t, "A B", profile.Name)
}

func TestProfileFromIDTokenMissing(t *testing.T) {
	_, err := testGoogleClient().ProfileFromIDToken(context.Background(), &ProviderToken{})
	require.Error(t, err)
}

func TestProfileFromUserinfo(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer at", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"email":"a@b.com","name":"A B"}`))
	}))
	defer server.Close()

	client := testGoogleClient()
	client.userinfoURL = server.URL

	profile, err := client.ProfileFromUserinfo(context.Background(),
		&ProviderToken{AccessToken: "at"})
	require.NoError(t, err)
	require.Equal(t, "a@b.com", profile.Email)
}

func TestProfileFromUserinfoNonOKStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "expired token", http.StatusUnauthorized)
	}))
	defer server.Close()

	client := testGoogleClient()
	client.userinfoURL = server.URL

	_, err := client.ProfileFromUserinfo(context.Background(),
		&ProviderToken{AccessToken: "expired"})
	require.Error(t, err)
}
