package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"example.com/eventhub/internal/api/middleware"
	"example.com/eventhub/internal/auth"
	"example.com/eventhub/internal/metrics"
	"example.com/eventhub/internal/models"
)

// SessionService is the authentication boundary the handler consumes
type SessionService interface {
	LoginURL(state string) string
	CompleteLogin(ctx context.Context, code string) (*auth.TokenPair, *models.User, error)
	Refresh(ctx context.Context, raw string) (*auth.TokenPair, *models.User, error)
	Authenticate(ctx context.Context, raw string) (*models.User, *auth.Claims, error)
}

// AuthHandler handles authentication HTTP requests
type AuthHandler struct {
	sessions SessionService
	metrics  *metrics.Metrics
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(sessions SessionService, metricsCollector *metrics.Metrics) *AuthHandler {
	return &AuthHandler{
		sessions: sessions,
		metrics:  metricsCollector,
	}
}

// RefreshRequest is the refresh endpoint's request body
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// TokenResponse is the response for login and refresh
type TokenResponse struct {
	AccessToken  string   `json:"access_token"`
	RefreshToken string   `json:"refresh_token"`
	TokenType    string   `json:"token_type"`
	ExpiresIn    int      `json:"expires_in"`
	UserInfo     UserInfo `json:"user_info"`
}

// UserInfo is the user summary embedded in token responses
type UserInfo struct {
	ID    uint   `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

func tokenResponse(pair *auth.TokenPair, user *models.User) TokenResponse {
	return TokenResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		TokenType:    pair.TokenType,
		ExpiresIn:    pair.ExpiresIn,
		UserInfo: UserInfo{
			ID:    user.ID,
			Email: user.Email,
			Name:  user.Name,
		},
	}
}

// HandleLogin redirects to the identity provider's consent screen
func (h *AuthHandler) HandleLogin(c *gin.Context) {
	state := uuid.NewString()
	c.Redirect(http.StatusTemporaryRedirect, h.sessions.LoginURL(state))
}

// HandleCallback completes the OAuth login
func (h *AuthHandler) HandleCallback(c *gin.Context) {
	code := c.Query("code")
	if code == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing authorization code"})
		return
	}

	pair, user, err := h.sessions.CompleteLogin(c.Request.Context(), code)
	if err != nil {
		h.metrics.IncrementCounter(metrics.AuthLoginsFailed)
		if errors.Is(err, auth.ErrAuthFailed) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "failed to retrieve user information from provider"})
			return
		}
		log.Error().Err(err).Msg("Login failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "authentication failed"})
		return
	}

	h.metrics.IncrementCounter(metrics.AuthLoginsCompleted)
	c.JSON(http.StatusOK, tokenResponse(pair, user))
}

// HandleRefresh rotates a refresh token into a new pair
func (h *AuthHandler) HandleRefresh(c *gin.Context) {
	var req RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	pair, user, err := h.sessions.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		h.metrics.IncrementCounter(metrics.AuthTokensRejected)
		if errors.Is(err, auth.ErrInvalidToken) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid refresh token"})
			return
		}
		log.Error().Err(err).Msg("Token refresh failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to refresh token"})
		return
	}

	h.metrics.IncrementCounter(metrics.AuthTokensRefreshed)
	c.JSON(http.StatusOK, tokenResponse(pair, user))
}

// HandleValidate reports whether a bearer access token is valid
func (h *AuthHandler) HandleValidate(c *gin.Context) {
	raw, ok := middleware.BearerToken(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing or invalid authorization header"})
		return
	}

	user, claims, err := h.sessions.Authenticate(c.Request.Context(), raw)
	if err != nil {
		h.metrics.IncrementCounter(metrics.AuthTokensRejected)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"valid": true,
		"user": UserInfo{
			ID:    user.ID,
			Email: user.Email,
			Name:  user.Name,
		},
		"expires_at": claims.ExpiresAt.Unix(),
	})
}

// RegisterRoutes registers the handler's routes
func (h *AuthHandler) RegisterRoutes(router *gin.Engine) {
	group := router.Group("/auth")
	group.GET("/login", h.HandleLogin)
	group.GET("/callback", h.HandleCallback)
	group.POST("/refresh", h.HandleRefresh)
	group.GET("/validate", h.HandleValidate)
}
