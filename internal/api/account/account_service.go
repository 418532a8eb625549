package account

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/crypto/bcrypt"

	"github.com/ruipcf/reelbase/app/observability/metrics"
	"github.com/ruipcf/reelbase/internal/api"
)

var _ AccountService = (*AccountServiceImpl)(nil)

// AccountService defines the business logic contract for account operations.
type AccountService interface {
	// Register persists a new user with a hashed password and provisions
	// its auth token atomically.
	Register(ctx context.Context, req RegisterRequest) (*User, error)

	// Login verifies credentials and returns the user's opaque token,
	// reusing the existing one when present. Unknown usernames and wrong
	// passwords both surface as api.ErrUnauthenticated.
	Login(ctx context.Context, username, password string) (string, error)

	// GetUserByToken resolves a bearer token to its owner for the
	// authentication middleware.
	GetUserByToken(ctx context.Context, token string) (*User, error)

	// Self-service profile operations, always scoped to the caller.
	GetProfile(ctx context.Context, userID int64) (*User, error)
	UpdateProfile(ctx context.Context, userID int64, req UpdateProfileRequest) error
	DeleteAccount(ctx context.Context, userID int64) error

	// Administrative collection operations.
	ListUsers(ctx context.Context) ([]User, error)
	GetUser(ctx context.Context, userID int64) (*User, error)
	CreateUser(ctx context.Context, req AdminUpsertRequest) (*User, error)
	UpdateUser(ctx context.Context, userID int64, req AdminUpsertRequest) error
	DeleteUser(ctx context.Context, userID int64) error
}

// AccountServiceImpl provides the implementation for AccountService.
type AccountServiceImpl struct {
	logger *slog.Logger
	repo   AccountRepo
}

// NewAccountService creates a new account service instance.
func NewAccountService(repo AccountRepo, logger *slog.Logger) *AccountServiceImpl {
	return &AccountServiceImpl{
		logger: logger,
		repo:   repo,
	}
}

func hashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashed), nil
}

func (s *AccountServiceImpl) Register(ctx context.Context, req RegisterRequest) (*User, error) {
	ctx, span := otel.Tracer("AccountService").Start(ctx, "Register", trace.WithAttributes(
		attribute.String("user.username", req.Username),
	))
	defer span.End()

	l := s.logger.With(slog.String("method", "Register"), slog.String("username", req.Username))

	hashed, err := hashPassword(req.Password)
	if err != nil {
		l.ErrorContext(ctx, "Failed to hash password", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "password hashing failed")
		return nil, err
	}

	user, err := s.repo.CreateUser(ctx, CreateUserParams{
		Username:       req.Username,
		Email:          req.Email,
		PasswordHash:   hashed,
		ProfilePicture: req.ProfilePicture,
	})
	if err != nil {
		var conflict *ConflictError
		if errors.As(err, &conflict) {
			l.WarnContext(ctx, "Registration conflict", slog.String("field", conflict.Field))
			span.SetStatus(codes.Error, "conflict")
			return nil, err
		}
		l.ErrorContext(ctx, "Failed to create user", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "user creation failed")
		return nil, fmt.Errorf("error creating user: %w", err)
	}

	metrics.Get().RegisterRequestsTotal.Add(ctx, 1)
	l.InfoContext(ctx, "User registered successfully", slog.Int64("userID", user.ID))
	span.SetStatus(codes.Ok, "user registered")
	return user, nil
}

func (s *AccountServiceImpl) Login(ctx context.Context, username, password string) (string, error) {
	ctx, span := otel.Tracer("AccountService").Start(ctx, "Login")
	defer span.End()

	l := s.logger.With(slog.String("method", "Login"), slog.String("username", username))
	metrics.Get().LoginRequestsTotal.Add(ctx, 1)

	user, err := s.repo.GetUserByUsername(ctx, username)
	if err != nil {
		// Unknown usernames and wrong passwords must be indistinguishable
		// to the caller.
		if errors.Is(err, api.ErrNotFound) {
			l.WarnContext(ctx, "Login rejected: unknown username")
			metrics.Get().LoginFailuresTotal.Add(ctx, 1)
			span.SetStatus(codes.Error, "invalid credentials")
			return "", api.ErrUnauthenticated
		}
		l.ErrorContext(ctx, "Failed to look up user", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "user lookup failed")
		return "", fmt.Errorf("error fetching user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		l.WarnContext(ctx, "Login rejected: password mismatch")
		metrics.Get().LoginFailuresTotal.Add(ctx, 1)
		span.SetStatus(codes.Error, "invalid credentials")
		return "", api.ErrUnauthenticated
	}

	token, err := s.repo.GetOrCreateToken(ctx, user.ID)
	if err != nil {
		l.ErrorContext(ctx, "Failed to issue token", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "token issuance failed")
		return "", fmt.Errorf("error issuing token: %w", err)
	}

	l.InfoContext(ctx, "Login successful", slog.Int64("userID", user.ID))
	span.SetStatus(codes.Ok, "login successful")
	return token, nil
}

func (s *AccountServiceImpl) GetUserByToken(ctx context.Context, token string) (*User, error) {
	user, err := s.repo.GetUserByToken(ctx, token)
	if err != nil {
		if errors.Is(err, api.ErrNotFound) {
			return nil, api.ErrUnauthenticated
		}
		return nil, fmt.Errorf("error resolving token: %w", err)
	}
	return user, nil
}

func (s *AccountServiceImpl) GetProfile(ctx context.Context, userID int64) (*User, error) {
	l := s.logger.With(slog.String("method", "GetProfile"), slog.Int64("userID", userID))

	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		l.ErrorContext(ctx, "Failed to fetch user profile", slog.Any("error", err))
		return nil, fmt.Errorf("error fetching user profile: %w", err)
	}
	return user, nil
}

func (s *AccountServiceImpl) UpdateProfile(ctx context.Context, userID int64, req UpdateProfileRequest) error {
	l := s.logger.With(slog.String("method", "UpdateProfile"), slog.Int64("userID", userID))

	params := UpdateUserParams{
		Username:       req.Username,
		Email:          req.Email,
		ProfilePicture: req.ProfilePicture,
	}
	// A supplied password is re-hashed; an absent one leaves the stored
	// hash untouched.
	if req.Password != nil && *req.Password != "" {
		hashed, err := hashPassword(*req.Password)
		if err != nil {
			l.ErrorContext(ctx, "Failed to hash new password", slog.Any("error", err))
			return err
		}
		params.PasswordHash = &hashed
	}

	if err := s.repo.UpdateUser(ctx, userID, params); err != nil {
		l.ErrorContext(ctx, "Failed to update user profile", slog.Any("error", err))
		return fmt.Errorf("error updating user profile: %w", err)
	}

	l.InfoContext(ctx, "User profile updated successfully")
	return nil
}

func (s *AccountServiceImpl) DeleteAccount(ctx context.Context, userID int64) error {
	l := s.logger.With(slog.String("method", "DeleteAccount"), slog.Int64("userID", userID))

	if err := s.repo.DeleteUser(ctx, userID); err != nil {
		l.ErrorContext(ctx, "Failed to delete account", slog.Any("error", err))
		return fmt.Errorf("error deleting account: %w", err)
	}

	l.InfoContext(ctx, "Account deleted")
	return nil
}

func (s *AccountServiceImpl) ListUsers(ctx context.Context) ([]User, error) {
	users, err := s.repo.ListUsers(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to list users", slog.Any("error", err))
		return nil, fmt.Errorf("error listing users: %w", err)
	}
	return users, nil
}

func (s *AccountServiceImpl) GetUser(ctx context.Context, userID int64) (*User, error) {
	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("error fetching user: %w", err)
	}
	return user, nil
}

func (s *AccountServiceImpl) CreateUser(ctx context.Context, req AdminUpsertRequest) (*User, error) {
	l := s.logger.With(slog.String("method", "CreateUser"))

	if req.Username == nil || req.Email == nil || req.Password == nil {
		return nil, errors.New("username, email and password are required")
	}

	hashed, err := hashPassword(*req.Password)
	if err != nil {
		l.ErrorContext(ctx, "Failed to hash password", slog.Any("error", err))
		return nil, err
	}

	params := CreateUserParams{
		Username:       *req.Username,
		Email:          *req.Email,
		PasswordHash:   hashed,
		ProfilePicture: req.ProfilePicture,
	}
	if req.IsStaff != nil {
		params.IsStaff = *req.IsStaff
	}
	if req.IsSuperuser != nil {
		params.IsSuperuser = *req.IsSuperuser
	}

	user, err := s.repo.CreateUser(ctx, params)
	if err != nil {
		l.ErrorContext(ctx, "Failed to create user", slog.Any("error", err))
		return nil, err
	}

	l.InfoContext(ctx, "User created by administrator", slog.Int64("userID", user.ID))
	return user, nil
}

func (s *AccountServiceImpl) UpdateUser(ctx context.Context, userID int64, req AdminUpsertRequest) error {
	l := s.logger.With(slog.String("method", "UpdateUser"), slog.Int64("userID", userID))

	params := UpdateUserParams{
		Username:       req.Username,
		Email:          req.Email,
		ProfilePicture: req.ProfilePicture,
		IsActive:       req.IsActive,
		IsStaff:        req.IsStaff,
		IsSuperuser:    req.IsSuperuser,
	}
	if req.Password != nil && *req.Password != "" {
		hashed, err := hashPassword(*req.Password)
		if err != nil {
			l.ErrorContext(ctx, "Failed to hash new password", slog.Any("error", err))
			return err
		}
		params.PasswordHash = &hashed
	}

	if err := s.repo.UpdateUser(ctx, userID, params); err != nil {
		l.ErrorContext(ctx, "Failed to update user", slog.Any("error", err))
		return err
	}

	l.InfoContext(ctx, "User updated by administrator")
	return nil
}

func (s *AccountServiceImpl) DeleteUser(ctx context.Context, userID int64) error {
	l := s.logger.With(slog.String("method", "DeleteUser"), slog.Int64("userID", userID))

	if err := s.repo.DeleteUser(ctx, userID); err != nil {
		l.ErrorContext(ctx, "Failed to delete user", slog.Any("error", err))
		return err
	}

	l.InfoContext(ctx, "User deleted by administrator")
	return nil
}
