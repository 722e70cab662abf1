package services

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"example.com/eventhub/internal/models"
	"example.com/eventhub/internal/repositories"
)

// Mock user repository for testing
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) Create(ctx context.Context, user *models.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepository) UpdateName(ctx context.Context, id uint, name string) error {
	args := m.Called(ctx, id, name)
	return args.Error(0)
}

func (m *MockUserRepository) Exists(ctx context.Context, id uint) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func TestGetOrCreateReturnsExistingUser(t *testing.T) {
	repo := new(MockUserRepository)
	repo.On("GetByEmail", mock.Anything, "a@b.com").
		Return(&models.User{ID: 1, Email: "a@b.com", Name: "A B"}, nil)

	service := NewUserService(repo)
	user := service.GetOrCreate(context.Background(), "a@b.com", "A B")
	require.NotNil(t, user)
	require.Equal(t, uint(1), user.ID)

	repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	repo.AssertNotCalled(t, "UpdateName", mock.Anything, mock.Anything, mock.Anything)
}

func TestGetOrCreateRefreshesChangedName(t *testing.T) {
	repo := new(MockUserRepository)
	repo.On("GetByEmail", mock.Anything, "a@b.com").
		Return(&models.User{ID: 1, Email: "a@b.com", Name: "Old Name"}, nil)
	repo.On("UpdateName", mock.Anything, uint(1), "New Name").Return(nil)

	service := NewUserService(repo)
	user := service.GetOrCreate(context.Background(), "a@b.com", "New Name")
	require.NotNil(t, user)
	require.Equal(t, "New Name", user.Name)

	repo.AssertExpectations(t)
}

func TestGetOrCreateInsertsOnFirstLogin(t *testing.T) {
	repo := new(MockUserRepository)
	repo.On("GetByEmail", mock.Anything, "new@b.com").
		Return(nil, repositories.ErrNotFound)
	repo.On("Create", mock.Anything, mock.AnythingOfType("*models.User")).Return(nil)

	service := NewUserService(repo)
	user := service.GetOrCreate(context.Background(), "new@b.com", "New User")
	require.NotNil(t, user)
	require.Equal(t, "new@b.com", user.Email)
	require.Equal(t, "New User", user.Name)

	repo.AssertExpectations(t)
}

func TestGetOrCreateResolvesInsertRace(t *testing.T) {
	repo := new(MockUserRepository)

	// First lookup misses, the insert loses the race, the re-read wins
	repo.On("GetByEmail", mock.Anything, "race@b.com").
		Return(nil, repositories.ErrNotFound).Once()
	repo.On("Create", mock.Anything, mock.AnythingOfType("*models.User")).
		Return(repositories.ErrDuplicateKey)
	repo.On("GetByEmail", mock.Anything, "race@b.com").
		Return(&models.User{ID: 3, Email: "race@b.com", Name: "Race"}, nil).Once()

	service := NewUserService(repo)
	user := service.GetOrCreate(context.Background(), "race@b.com", "Race")
	require.NotNil(t, user)
	require.Equal(t, uint(3), user.ID)

	repo.AssertExpectations(t)
}

func TestGetOrCreateDegradesToNilOnStorageFailure(t *testing.T) {
	repo := new(MockUserRepository)
	repo.On("GetByEmail", mock.Anything, "down@b.com").
		Return(nil, errors.New("connection refused"))

	service := NewUserService(repo)
	require.Nil(t, service.GetOrCreate(context.Background(), "down@b.com", "Down"))
}

func TestExistsDegradesToFalseOnStorageFailure(t *testing.T) {
	repo := new(MockUserRepository)
	repo.On("Exists", mock.Anything, uint(5)).Return(false, errors.New("connection refused"))

	service := NewUserService(repo)
	require.False(t, service.Exists(context.Background(), 5))
}
