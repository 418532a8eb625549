package account

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"golang.org/x/crypto/bcrypt"

	"github.com/ruipcf/reelbase/app/observability/metrics"
	"github.com/ruipcf/reelbase/internal/api"
)

// MockAccountRepo is a mock implementation of the AccountRepo interface
type MockAccountRepo struct {
	mock.Mock
}

// Implement all methods of the AccountRepo interface
func (m *MockAccountRepo) CreateUser(ctx context.Context, params CreateUserParams) (*User, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*User), args.Error(1)
}

func (m *MockAccountRepo) GetUserByID(ctx context.Context, userID int64) (*User, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*User), args.Error(1)
}

func (m *MockAccountRepo) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*User), args.Error(1)
}

func (m *MockAccountRepo) GetUserByToken(ctx context.Context, token string) (*User, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*User), args.Error(1)
}

func (m *MockAccountRepo) GetOrCreateToken(ctx context.Context, userID int64) (string, error) {
	args := m.Called(ctx, userID)
	return args.String(0), args.Error(1)
}

func (m *MockAccountRepo) UpdateUser(ctx context.Context, userID int64, params UpdateUserParams) error {
	args := m.Called(ctx, userID, params)
	return args.Error(0)
}

func (m *MockAccountRepo) DeleteUser(ctx context.Context, userID int64) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

func (m *MockAccountRepo) ListUsers(ctx context.Context) ([]User, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]User), args.Error(1)
}

// The service records counters, so the instruments must exist. The global
// meter provider is a no-op here, which is exactly what tests want.
func TestMain(m *testing.M) {
	metrics.InitAppMetrics()
	os.Exit(m.Run())
}

// Test cases for AccountService
func TestRegister(t *testing.T) {
	mockRepo := new(MockAccountRepo)
	logger := slog.Default()
	service := NewAccountService(mockRepo, logger)

	// Test case: successful registration hashes the password before persisting
	t.Run("Success", func(t *testing.T) {
		ctx := context.Background()
		req := RegisterRequest{
			Username: "testuser",
			Email:    "test@example.com",
			Password: "password123",
		}

		mockRepo.On("CreateUser", ctx, mock.MatchedBy(func(params CreateUserParams) bool {
			if params.Username != req.Username || params.Email != req.Email {
				return false
			}
			// The stored credential must be a hash verifying the original
			// password, never the plaintext itself.
			if params.PasswordHash == req.Password {
				return false
			}
			return bcrypt.CompareHashAndPassword([]byte(params.PasswordHash), []byte(req.Password)) == nil
		})).Return(&User{ID: 1, Username: req.Username, Email: req.Email, IsActive: true}, nil).Once()

		user, err := service.Register(ctx, req)

		assert.NoError(t, err)
		assert.NotNil(t, user)
		assert.Equal(t, int64(1), user.ID)
		mockRepo.AssertExpectations(t)
	})

	// Test case: duplicate username surfaces the conflict unchanged
	t.Run("Conflict", func(t *testing.T) {
		ctx := context.Background()
		req := RegisterRequest{
			Username: "taken",
			Email:    "taken@example.com",
			Password: "password123",
		}

		mockRepo.On("CreateUser", ctx, mock.AnythingOfType("CreateUserParams")).
			Return(nil, &ConflictError{Field: "username"}).Once()

		user, err := service.Register(ctx, req)

		assert.Error(t, err)
		assert.Nil(t, user)
		var conflict *ConflictError
		assert.ErrorAs(t, err, &conflict)
		assert.Equal(t, "username", conflict.Field)
		assert.ErrorIs(t, err, api.ErrConflict)
		mockRepo.AssertExpectations(t)
	})
}

func TestLogin(t *testing.T) {
	mockRepo := new(MockAccountRepo)
	logger := slog.Default()
	service := NewAccountService(mockRepo, logger)

	// Test case: successful login returns the user's existing token
	t.Run("Success", func(t *testing.T) {
		ctx := context.Background()
		password := "password123"
		hashedPassword, _ := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)

		user := &User{
			ID:           42,
			Username:     "testuser",
			Email:        "test@example.com",
			PasswordHash: string(hashedPassword),
			IsActive:     true,
		}

		mockRepo.On("GetUserByUsername", ctx, "testuser").Return(user, nil).Once()
		mockRepo.On("GetOrCreateToken", ctx, user.ID).Return("existing-token", nil).Once()

		token, err := service.Login(ctx, "testuser", password)

		assert.NoError(t, err)
		assert.Equal(t, "existing-token", token)
		mockRepo.AssertExpectations(t)
	})

	// Test case: repeated logins return the same token, never a fresh one
	t.Run("RepeatedLoginReusesToken", func(t *testing.T) {
		ctx := context.Background()
		password := "password123"
		hashedPassword, _ := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)

		user := &User{
			ID:           42,
			Username:     "testuser",
			PasswordHash: string(hashedPassword),
			IsActive:     true,
		}

		mockRepo.On("GetUserByUsername", ctx, "testuser").Return(user, nil).Twice()
		mockRepo.On("GetOrCreateToken", ctx, user.ID).Return("stable-token", nil).Twice()

		first, err := service.Login(ctx, "testuser", password)
		assert.NoError(t, err)
		second, err := service.Login(ctx, "testuser", password)
		assert.NoError(t, err)

		assert.Equal(t, first, second)
		mockRepo.AssertExpectations(t)
	})

	// Test case: unknown username
	t.Run("UserNotFound", func(t *testing.T) {
		ctx := context.Background()

		mockRepo.On("GetUserByUsername", ctx, "nobody").Return(nil, api.ErrNotFound).Once()

		token, err := service.Login(ctx, "nobody", "password123")

		assert.Error(t, err)
		assert.Empty(t, token)
		assert.ErrorIs(t, err, api.ErrUnauthenticated)
		mockRepo.AssertExpectations(t)
	})

	// Test case: wrong password is indistinguishable from an unknown user
	t.Run("InvalidPassword", func(t *testing.T) {
		ctx := context.Background()
		hashedPassword, _ := bcrypt.GenerateFromPassword([]byte("correctpassword"), bcrypt.DefaultCost)

		user := &User{
			ID:           42,
			Username:     "testuser",
			PasswordHash: string(hashedPassword),
			IsActive:     true,
		}

		mockRepo.On("GetUserByUsername", ctx, "testuser").Return(user, nil).Once()

		token, err := service.Login(ctx, "testuser", "wrongpassword")

		assert.Error(t, err)
		assert.Empty(t, token)
		assert.ErrorIs(t, err, api.ErrUnauthenticated)
		mockRepo.AssertNotCalled(t, "GetOrCreateToken", ctx, user.ID)
		mockRepo.AssertExpectations(t)
	})
}

func TestGetUserByToken(t *testing.T) {
	mockRepo := new(MockAccountRepo)
	logger := slog.Default()
	service := NewAccountService(mockRepo, logger)

	t.Run("Success", func(t *testing.T) {
		ctx := context.Background()
		user := &User{ID: 7, Username: "testuser", IsActive: true}

		mockRepo.On("GetUserByToken", ctx, "valid-token").Return(user, nil).Once()

		got, err := service.GetUserByToken(ctx, "valid-token")

		assert.NoError(t, err)
		assert.Equal(t, int64(7), got.ID)
		mockRepo.AssertExpectations(t)
	})

	// Unknown tokens come back as an authentication failure, not a lookup miss
	t.Run("UnknownToken", func(t *testing.T) {
		ctx := context.Background()

		mockRepo.On("GetUserByToken", ctx, "bogus").Return(nil, api.ErrNotFound).Once()

		got, err := service.GetUserByToken(ctx, "bogus")

		assert.Nil(t, got)
		assert.ErrorIs(t, err, api.ErrUnauthenticated)
		mockRepo.AssertExpectations(t)
	})
}

func TestUpdateProfile(t *testing.T) {
	mockRepo := new(MockAccountRepo)
	logger := slog.Default()
	service := NewAccountService(mockRepo, logger)

	// Test case: a supplied password is re-hashed before persisting
	t.Run("PasswordRehashed", func(t *testing.T) {
		ctx := context.Background()
		newPassword := "newpassword456"
		req := UpdateProfileRequest{Password: &newPassword}

		mockRepo.On("UpdateUser", ctx, int64(5), mock.MatchedBy(func(params UpdateUserParams) bool {
			if params.PasswordHash == nil || *params.PasswordHash == newPassword {
				return false
			}
			return bcrypt.CompareHashAndPassword([]byte(*params.PasswordHash), []byte(newPassword)) == nil
		})).Return(nil).Once()

		err := service.UpdateProfile(ctx, 5, req)

		assert.NoError(t, err)
		mockRepo.AssertExpectations(t)
	})

	// Test case: an absent password leaves the stored hash untouched
	t.Run("PasswordOmitted", func(t *testing.T) {
		ctx := context.Background()
		newEmail := "new@example.com"
		req := UpdateProfileRequest{Email: &newEmail}

		mockRepo.On("UpdateUser", ctx, int64(5), mock.MatchedBy(func(params UpdateUserParams) bool {
			return params.PasswordHash == nil && params.Email != nil && *params.Email == newEmail
		})).Return(nil).Once()

		err := service.UpdateProfile(ctx, 5, req)

		assert.NoError(t, err)
		mockRepo.AssertExpectations(t)
	})

	t.Run("UserNotFound", func(t *testing.T) {
		ctx := context.Background()
		newEmail := "new@example.com"
		req := UpdateProfileRequest{Email: &newEmail}

		mockRepo.On("UpdateUser", ctx, int64(99), mock.AnythingOfType("UpdateUserParams")).
			Return(api.ErrNotFound).Once()

		err := service.UpdateProfile(ctx, 99, req)

		assert.Error(t, err)
		assert.ErrorIs(t, err, api.ErrNotFound)
		mockRepo.AssertExpectations(t)
	})
}

func TestAdminCreateUser(t *testing.T) {
	mockRepo := new(MockAccountRepo)
	logger := slog.Default()
	service := NewAccountService(mockRepo, logger)

	// Test case: administrators may set the account flags at creation
	t.Run("WithFlags", func(t *testing.T) {
		ctx := context.Background()
		username := "staffer"
		email := "staffer@example.com"
		password := "password123"
		isStaff := true

		req := AdminUpsertRequest{
			Username: &username,
			Email:    &email,
			Password: &password,
			IsStaff:  &isStaff,
		}

		mockRepo.On("CreateUser", ctx, mock.MatchedBy(func(params CreateUserParams) bool {
			return params.Username == username && params.IsStaff && !params.IsSuperuser
		})).Return(&User{ID: 3, Username: username, Email: email, IsActive: true, IsStaff: true}, nil).Once()

		user, err := service.CreateUser(ctx, req)

		assert.NoError(t, err)
		assert.True(t, user.IsStaff)
		mockRepo.AssertExpectations(t)
	})

	// Test case: missing required fields are rejected before touching the repo
	t.Run("MissingRequiredFields", func(t *testing.T) {
		ctx := context.Background()
		username := "incomplete"

		user, err := service.CreateUser(ctx, AdminUpsertRequest{Username: &username})

		assert.Error(t, err)
		assert.Nil(t, user)
		mockRepo.AssertNotCalled(t, "CreateUser", ctx, mock.Anything)
	})
}

func TestDeleteAccount(t *testing.T) {
	mockRepo := new(MockAccountRepo)
	logger := slog.Default()
	service := NewAccountService(mockRepo, logger)

	t.Run("Success", func(t *testing.T) {
		ctx := context.Background()

		mockRepo.On("DeleteUser", ctx, int64(5)).Return(nil).Once()

		err := service.DeleteAccount(ctx, 5)

		assert.NoError(t, err)
		mockRepo.AssertExpectations(t)
	})

	t.Run("AlreadyDeleted", func(t *testing.T) {
		ctx := context.Background()

		mockRepo.On("DeleteUser", ctx, int64(5)).Return(api.ErrNotFound).Once()

		err := service.DeleteAccount(ctx, 5)

		assert.Error(t, err)
		assert.ErrorIs(t, err, api.ErrNotFound)
		mockRepo.AssertExpectations(t)
	})
}

func TestIsAdmin(t *testing.T) {
	assert.False(t, (&User{}).IsAdmin())
	assert.True(t, (&User{IsStaff: true}).IsAdmin())
	assert.True(t, (&User{IsSuperuser: true}).IsAdmin())
	assert.True(t, errors.Is(&ConflictError{Field: "email"}, api.ErrConflict))
}
