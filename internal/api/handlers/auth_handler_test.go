package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"example.com/eventhub/internal/auth"
	"example.com/eventhub/internal/metrics"
	"example.com/eventhub/internal/models"
)

// Mock session service for testing
type MockSessionService struct {
	mock.Mock
}

func (m *MockSessionService) LoginURL(state string) string {
	args := m.Called(state)
	return args.String(0)
}

func (m *MockSessionService) CompleteLogin(ctx context.Context, code string) (*auth.TokenPair, *models.User, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, nil, args.Error(2)
	}
	return args.Get(0).(*auth.TokenPair), args.Get(1).(*models.User), args.Error(2)
}

func (m *MockSessionService) Refresh(ctx context.Context, raw string) (*auth.TokenPair, *models.User, error) {
	args := m.Called(ctx, raw)
	if args.Get(0) == nil {
		return nil, nil, args.Error(2)
	}
	return args.Get(0).(*auth.TokenPair), args.Get(1).(*models.User), args.Error(2)
}

func (m *MockSessionService) Authenticate(ctx context.Context, raw string) (*models.User, *auth.Claims, error) {
	args := m.Called(ctx, raw)
	var user *models.User
	if v := args.Get(0); v != nil {
		user = v.(*models.User)
	}
	var claims *auth.Claims
	if v := args.Get(1); v != nil {
		claims = v.(*auth.Claims)
	}
	return user, claims, args.Error(2)
}

func newAuthTestRouter(sessions SessionService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	NewAuthHandler(sessions, metrics.NewMetrics()).RegisterRoutes(router)
	return router
}

func TestHandleLoginRedirectsToProvider(t *testing.T) {
	sessions := new(MockSessionService)
	sessions.On("LoginURL", mock.AnythingOfType("string")).
		Return("https://accounts.google.com/o/oauth2/auth?state=x")

	router := newAuthTestRouter(sessions)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/auth/login", nil))

	require.Equal(t, http.StatusTemporaryRedirect, rec.Code)
	require.Contains(t, rec.Header().Get("Location"), "accounts.google.com")
}

func TestHandleCallbackReturnsTokenPair(t *testing.T) {
	sessions := new(MockSessionService)
	sessions.On("CompleteLogin", mock.Anything, "good-code").Return(
		&auth.TokenPair{AccessToken: "at", RefreshToken: "rt", TokenType: "bearer", ExpiresIn: 1800},
		&models.User{ID: 7, Email: "a@b.com", Name: "A B"},
		nil,
	)

	router := newAuthTestRouter(sessions)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/auth/callback?code=good-code", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp TokenResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "at", resp.AccessToken)
	require.Equal(t, "bearer", resp.TokenType)
	require.Equal(t, uint(7), resp.UserInfo.ID)
}

func TestHandleCallbackMissingCode(t *testing.T) {
	router := newAuthTestRouter(new(MockSessionService))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/auth/callback", nil))

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleCallbackProviderFailure(t *testing.T) {
	sessions := new(MockSessionService)
	sessions.On("CompleteLogin", mock.Anything, "bad-code").
		Return(nil, nil, auth.ErrAuthFailed)

	router := newAuthTestRouter(sessions)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/auth/callback?code=bad-code", nil))

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleRefreshRejectsInvalidToken(t *testing.T) {
	sessions := new(MockSessionService)
	sessions.On("Refresh", mock.Anything, "stale").Return(nil, nil, auth.ErrInvalidToken)

	router := newAuthTestRouter(sessions)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/auth/refresh",
		strings.NewReader(`{"refresh_token":"stale"}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHandleRefreshRequiresBody(t *testing.T) {
	router := newAuthTestRouter(new(MockSessionService))
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/auth/refresh", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleValidate(t *testing.T) {
	expiry := time.Now().Add(30 * time.Minute).Truncate(time.Second)
	claims := &auth.Claims{
		UserID: 7,
		Kind:   auth.TokenKindAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "a@b.com",
			ExpiresAt: jwt.NewNumericDate(expiry),
		},
	}

	sessions := new(MockSessionService)
	sessions.On("Authenticate", mock.Anything, "valid-token").
		Return(&models.User{ID: 7, Email: "a@b.com", Name: "A B"}, claims, nil)

	router := newAuthTestRouter(sessions)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/auth/validate", nil)
	req.Header.Set("Authorization", "Bearer valid-token")
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Valid     bool     `json:"valid"`
		User      UserInfo `json:"user"`
		ExpiresAt int64    `json:"expires_at"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.True(t, resp.Valid)
	require.Equal(t, "a@b.com", resp.User.Email)
	require.Equal(t, expiry.Unix(), resp.ExpiresAt)
}

func TestHandleValidateMissingHeader(t *testing.T) {
	router := newAuthTestRouter(new(MockSessionService))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/auth/validate", nil))

	require.Equal(t, http.StatusUnauthorized, rec.Code)
}
