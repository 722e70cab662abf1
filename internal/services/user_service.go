package services

import (
	"context"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"example.com/eventhub/internal/models"
	"example.com/eventhub/internal/repositories"
)

// userStore is the storage boundary the user service needs
type userStore interface {
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	UpdateName(ctx context.Context, id uint, name string) error
	Exists(ctx context.Context, id uint) (bool, error)
}

// UserService is the directory of local user records. Storage failures are
// logged and degraded to nil returns, so callers must treat nil as "could
// not complete", not "definitively absent".
type UserService struct {
	users userStore
}

// NewUserService creates a new user service
func NewUserService(users userStore) *UserService {
	return &UserService{users: users}
}

// GetByEmail returns the user with the given email, or nil
func (s *UserService) GetByEmail(ctx context.Context, email string) *models.User {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, repositories.ErrNotFound) {
			log.Error().Err(err).Str("email", email).Msg("Failed to fetch user by email")
		}
		return nil
	}
	return user
}

// GetOrCreate looks up a user by email and inserts one on first login.
// The unique email constraint is the correctness mechanism: a concurrent
// duplicate insert is resolved by re-reading the existing row. When the
// provider supplies a different non-empty name, the stored name is refreshed.
func (s *UserService) GetOrCreate(ctx context.Context, email, name string) *models.User {
	user, err := s.users.GetByEmail(ctx, email)
	switch {
	case err == nil:
		if name != "" && user.Name != name {
			if err := s.users.UpdateName(ctx, user.ID, name); err != nil {
				log.Error().Err(err).Str("email", email).Msg("Failed to update user name")
			} else {
				user.Name = name
			}
		}
		return user

	case errors.Is(err, repositories.ErrNotFound):
		created := &models.User{Email: email, Name: name}
		err := s.users.Create(ctx, created)
		if err == nil {
			log.Info().Str("email", email).Msg("Created new user")
			return created
		}
		if errors.Is(err, repositories.ErrDuplicateKey) {
			// Lost the insert race - the row exists now
			existing, err := s.users.GetByEmail(ctx, email)
			if err != nil {
				log.Error().Err(err).Str("email", email).Msg("Failed to re-read user after duplicate insert")
				return nil
			}
			return existing
		}
		log.Error().Err(err).Str("email", email).Msg("Failed to create user")
		return nil

	default:
		log.Error().Err(err).Str("email", email).Msg("Failed to look up user")
		return nil
	}
}

// Exists reports whether a user id refers to a stored record
func (s *UserService) Exists(ctx context.Context, id uint) bool {
	exists, err := s.users.Exists(ctx, id)
	if err != nil {
		log.Error().Err(err).Uint("user_id", id).Msg("Failed to check user existence")
		return false
	}
	return exists
}
