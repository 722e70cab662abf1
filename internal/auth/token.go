package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"example.com/eventhub/config"
)

// Token kinds embedded in the "type" claim
const (
	TokenKindAccess  = "access"
	TokenKindRefresh = "refresh"
)

// ErrInvalidToken is returned for any token that fails verification:
// malformed structure, bad signature, expired, or wrong kind.
var ErrInvalidToken = errors.New("invalid token")

// Claims is the payload carried by issued tokens
type Claims struct {
	UserID uint   `json:"user_id"`
	Name   string `json:"name"`
	Kind   string `json:"type"`
	jwt.RegisteredClaims
}

// TokenPair is an access/refresh token pair as returned to clients
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
}

// TokenCodec signs and verifies credential tokens. It is purely functional
// over its secret: no storage, safe for concurrent use.
type TokenCodec struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// NewTokenCodec creates a token codec from the auth configuration
func NewTokenCodec(cfg config.AuthConfig) (*TokenCodec, error) {
	if cfg.SigningSecret == "" {
		return nil, errors.New("auth signing secret is required")
	}

	return &TokenCodec{
		secret:     []byte(cfg.SigningSecret),
		accessTTL:  cfg.AccessTokenTTL,
		refreshTTL: cfg.RefreshTokenTTL,
	}, nil
}

// AccessTTL returns the configured access-token lifetime
func (c *TokenCodec) AccessTTL() time.Duration {
	return c.accessTTL
}

// Issue produces a signed token of the given kind for a user. Refresh
// tokens additionally carry a unique id so a future revocation store can
// key on it.
func (c *TokenCodec) Issue(email string, userID uint, name, kind string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID: userID,
		Name:   name,
		Kind:   kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   email,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	if kind == TokenKindRefresh {
		claims.ID = uuid.NewString()
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", errors.Wrap(err, "failed to sign token")
	}
	return signed, nil
}

// IssuePair issues a fresh access/refresh pair for a user
func (c *TokenCodec) IssuePair(email string, userID uint, name string) (*TokenPair, error) {
	access, err := c.Issue(email, userID, name, TokenKindAccess, c.accessTTL)
	if err != nil {
		return nil, err
	}

	refresh, err := c.Issue(email, userID, name, TokenKindRefresh, c.refreshTTL)
	if err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "bearer",
		ExpiresIn:    int(c.accessTTL.Seconds()),
	}, nil
}

// Verify checks signature and expiry and returns the decoded claims.
// Expiry comparison is second-granular with no clock-skew leeway.
func (c *TokenCodec) Verify(raw string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return c.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// VerifyKind verifies a token and additionally checks its type discriminator
func (c *TokenCodec) VerifyKind(raw, kind string) (*Claims, error) {
	claims, err := c.Verify(raw)
	if err != nil {
		return nil, err
	}
	if claims.Kind != kind {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
