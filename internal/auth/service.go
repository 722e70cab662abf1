package auth

import (
	"context"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"example.com/eventhub/internal/models"
	"example.com/eventhub/internal/tracing"
)

// ErrAuthFailed is returned when no usable profile could be retrieved from
// the identity provider.
var ErrAuthFailed = errors.New("authentication failed")

// Provider is the OAuth identity provider boundary
type Provider interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*ProviderToken, error)
	ProfileFromIDToken(ctx context.Context, token *ProviderToken) (*Profile, error)
	ProfileFromUserinfo(ctx context.Context, token *ProviderToken) (*Profile, error)
	ProfileFromOIDCUserinfo(ctx context.Context, token *ProviderToken) (*Profile, error)
}

// UserDirectory resolves and creates local user records. A nil return means
// "could not complete", per the directory's degrade-to-nil failure policy.
type UserDirectory interface {
	GetOrCreate(ctx context.Context, email, name string) *models.User
	GetByEmail(ctx context.Context, email string) *models.User
}

// Service turns OAuth authorization codes into local sessions and manages
// the token lifecycle.
type Service struct {
	codec    *TokenCodec
	provider Provider
	users    UserDirectory
	tracer   tracing.Tracer
}

// NewService creates a new session service
func NewService(codec *TokenCodec, provider Provider, users UserDirectory, tracer tracing.Tracer) *Service {
	return &Service{
		codec:    codec,
		provider: provider,
		users:    users,
		tracer:   tracer,
	}
}

// LoginURL returns the provider consent-screen URL for the given state
func (s *Service) LoginURL(state string) string {
	return s.provider.AuthCodeURL(state)
}

// resolveProfile walks the profile sources in order until one yields a
// profile with a non-empty email.
func (s *Service) resolveProfile(ctx context.Context, token *ProviderToken) *Profile {
	sources := []struct {
		name    string
		resolve func(context.Context, *ProviderToken) (*Profile, error)
	}{
		{"id_token", s.provider.ProfileFromIDToken},
		{"userinfo", s.provider.ProfileFromUserinfo},
		{"oidc_userinfo", s.provider.ProfileFromOIDCUserinfo},
	}

	for _, source := range sources {
		profile, err := source.resolve(ctx, token)
		if err != nil {
			log.Warn().Err(err).Str("source", source.name).Msg("Profile source failed")
			continue
		}
		if profile == nil || profile.Email == "" {
			log.Warn().Str("source", source.name).Msg("Profile source yielded no email")
			continue
		}
		log.Info().Str("source", source.name).Msg("Resolved user profile")
		return profile
	}
	return nil
}

// CompleteLogin exchanges an authorization code for a local token pair,
// creating the user record on first login.
func (s *Service) CompleteLogin(ctx context.Context, code string) (*TokenPair, *models.User, error) {
	txn := s.tracer.StartTransaction("complete-oauth-login")
	defer s.tracer.EndTransaction(txn)

	span := s.tracer.StartSpan("exchange-code", txn)
	token, err := s.provider.Exchange(ctx, code)
	span.End()
	if err != nil {
		s.tracer.RecordError(txn, err)
		return nil, nil, errors.Wrap(ErrAuthFailed, err.Error())
	}

	profileSpan := s.tracer.StartSpan("resolve-profile", txn)
	profile := s.resolveProfile(ctx, token)
	profileSpan.End()
	if profile == nil {
		s.tracer.RecordError(txn, ErrAuthFailed)
		return nil, nil, errors.Wrap(ErrAuthFailed, "no usable profile from provider")
	}

	user := s.users.GetOrCreate(ctx, profile.Email, profile.Name)
	if user == nil {
		err := errors.New("failed to get or create user")
		s.tracer.RecordError(txn, err)
		return nil, nil, err
	}

	pair, err := s.codec.IssuePair(user.Email, user.ID, user.Name)
	if err != nil {
		s.tracer.RecordError(txn, err)
		return nil, nil, err
	}

	log.Info().
		Str("email", user.Email).
		Uint("user_id", user.ID).
		Msg("User authenticated successfully")

	return pair, user, nil
}

// Refresh rotates a refresh token into a brand-new pair. The old refresh
// token is not invalidated and stays usable until its own expiry.
func (s *Service) Refresh(ctx context.Context, raw string) (*TokenPair, *models.User, error) {
	claims, err := s.codec.VerifyKind(raw, TokenKindRefresh)
	if err != nil {
		return nil, nil, ErrInvalidToken
	}

	// The user must still exist for the rotation to succeed
	user := s.users.GetByEmail(ctx, claims.Subject)
	if user == nil {
		return nil, nil, ErrInvalidToken
	}

	pair, err := s.codec.IssuePair(user.Email, user.ID, user.Name)
	if err != nil {
		return nil, nil, err
	}

	log.Info().Str("email", user.Email).Msg("Refreshed token pair")
	return pair, user, nil
}

// Authenticate resolves the user behind an access token. This is the
// contract every protected endpoint consumes.
func (s *Service) Authenticate(ctx context.Context, raw string) (*models.User, *Claims, error) {
	claims, err := s.codec.VerifyKind(raw, TokenKindAccess)
	if err != nil {
		return nil, nil, ErrInvalidToken
	}

	user := s.users.GetByEmail(ctx, claims.Subject)
	if user == nil {
		return nil, nil, ErrInvalidToken
	}

	return user, claims, nil
}
