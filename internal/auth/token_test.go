package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"example.com/eventhub/config"
)

func testCodec(t *testing.T) *TokenCodec {
	codec, err := NewTokenCodec(config.AuthConfig{
		SigningSecret:   "test-signing-secret",
		AccessTokenTTL:  30 * time.Minute,
		RefreshTokenTTL: 720 * time.Hour,
	})
	require.NoError(t, err)
	return codec
}

func TestNewTokenCodecRequiresSecret(t *testing.T) {
	_, err := NewTokenCodec(config.AuthConfig{})
	require.Error(t, err)
}

func TestIssueAndVerifyRoundTrip(t *testing.T) {
	codec := testCodec(t)

	raw, err := codec.Issue("jane@example.com", 42, "Jane", TokenKindAccess, 30*time.Minute)
	require.NoError(t, err)

	claims, err := codec.Verify(raw)
	require.NoError(t, err)
	require.Equal(t, "jane@example.com", claims.Subject)
	require.Equal(t, uint(42), claims.UserID)
	require.Equal(t, "Jane", claims.Name)
	require.Equal(t, TokenKindAccess, claims.Kind)
	require.Empty(t, claims.ID)
}

func TestRefreshTokenCarriesUniqueID(t *testing.T) {
	codec := testCodec(t)

	first, err := codec.Issue("jane@example.com", 42, "Jane", TokenKindRefresh, time.Hour)
	require.NoError(t, err)
	second, err := codec.Issue("jane@example.com", 42, "Jane", TokenKindRefresh, time.Hour)
	require.NoError(t, err)

	firstClaims, err := codec.Verify(first)
	require.NoError(t, err)
	secondClaims, err := codec.Verify(second)
	require.NoError(t, err)

	require.NotEmpty(t, firstClaims.ID)
	require.NotEmpty(t, secondClaims.ID)
	require.NotEqual(t, firstClaims.ID, secondClaims.ID)
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	codec := testCodec(t)

	raw, err := codec.Issue("jane@example.com", 42, "Jane", TokenKindAccess, -time.Minute)
	require.NoError(t, err)

	_, err = codec.Verify(raw)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsTamperedToken(t *testing.T) {
	codec := testCodec(t)
	other, err := NewTokenCodec(config.AuthConfig{
		SigningSecret:   "a-different-secret",
		AccessTokenTTL:  30 * time.Minute,
		RefreshTokenTTL: 720 * time.Hour,
	})
	require.NoError(t, err)

	raw, err := other.Issue("jane@example.com", 42, "Jane", TokenKindAccess, time.Hour)
	require.NoError(t, err)

	_, err = codec.Verify(raw)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsGarbage(t *testing.T) {
	codec := testCodec(t)

	_, err := codec.Verify("not-a-token")
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyKindRejectsMismatchedKind(t *testing.T) {
	codec := testCodec(t)

	access, err := codec.Issue("jane@example.com", 42, "Jane", TokenKindAccess, time.Hour)
	require.NoError(t, err)

	// An access token must never pass for a refresh token, and vice versa
	_, err = codec.VerifyKind(access, TokenKindRefresh)
	require.ErrorIs(t, err, ErrInvalidToken)

	refresh, err := codec.Issue("jane@example.com", 42, "Jane", TokenKindRefresh, time.Hour)
	require.NoError(t, err)
	_, err = codec.VerifyKind(refresh, TokenKindAccess)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestIssuePairShape(t *testing.T) {
	codec := testCodec(t)

	pair, err := codec.IssuePair("jane@example.com", 42, "Jane")
	require.NoError(t, err)
	require.Equal(t, "bearer", pair.TokenType)
	require.Equal(t, int((30 * time.Minute).Seconds()), pair.ExpiresIn)

	_, err = codec.VerifyKind(pair.AccessToken, TokenKindAccess)
	require.NoError(t, err)
	_, err = codec.VerifyKind(pair.RefreshToken, TokenKindRefresh)
	require.NoError(t, err)
}
