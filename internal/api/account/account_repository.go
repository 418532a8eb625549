package account

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/ruipcf/reelbase/internal/api"
)

var _ AccountRepo = (*PostgresAccountRepo)(nil)

// AccountRepo defines the contract for user and token persistence.
type AccountRepo interface {
	// CreateUser persists a new user together with its auth token in one
	// transaction. Returns api.ErrConflict (as *ConflictError) when the
	// username or email is already taken.
	CreateUser(ctx context.Context, params CreateUserParams) (*User, error)

	GetUserByID(ctx context.Context, userID int64) (*User, error)
	GetUserByUsername(ctx context.Context, username string) (*User, error)

	// GetUserByToken resolves an opaque bearer token to its owner.
	// Returns api.ErrNotFound for unknown tokens.
	GetUserByToken(ctx context.Context, token string) (*User, error)

	// GetOrCreateToken returns the user's token, minting one lazily if
	// absent. A user has exactly one token at any time.
	GetOrCreateToken(ctx context.Context, userID int64) (string, error)

	// UpdateUser applies the non-nil fields of params. Columns not named
	// in params keep their stored value, including the password hash.
	UpdateUser(ctx context.Context, userID int64, params UpdateUserParams) error

	// DeleteUser hard-deletes the user; the token row cascades.
	// Returns api.ErrNotFound if no row was deleted.
	DeleteUser(ctx context.Context, userID int64) error

	ListUsers(ctx context.Context) ([]User, error)
}

// PgxPool is the subset of pgxpool.Pool the repository uses; it is what
// pgxmock implements in tests.
type PgxPool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type PostgresAccountRepo struct {
	logger *slog.Logger
	pgpool PgxPool
}

func NewPostgresAccountRepo(pgpool PgxPool, logger *slog.Logger) *PostgresAccountRepo {
	return &PostgresAccountRepo{
		logger: logger,
		pgpool: pgpool,
	}
}

const userColumns = `id, username, email, password_hash, profile_picture, is_active, is_staff, is_superuser, created_at, updated_at`

func scanUser(row pgx.Row) (*User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.ProfilePicture,
		&u.IsActive, &u.IsStaff, &u.IsSuperuser, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// conflictField maps a unique-violation constraint name to the offending field.
func conflictField(pgErr *pgconn.PgError) string {
	switch {
	case strings.Contains(pgErr.ConstraintName, "email"):
		return "email"
	case strings.Contains(pgErr.ConstraintName, "username"):
		return "username"
	default:
		return "user"
	}
}

func (r *PostgresAccountRepo) CreateUser(ctx context.Context, params CreateUserParams) (*User, error) {
	ctx, span := otel.Tracer("AccountRepo").Start(ctx, "CreateUser", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.operation", "INSERT"),
		attribute.String("db.sql.table", "users"),
	))
	defer span.End()

	tx, err := r.pgpool.Begin(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "begin transaction failed")
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx,
		`INSERT INTO users (username, email, password_hash, profile_picture, is_staff, is_superuser)
         VALUES ($1, $2, $3, $4, $5, $6)
         RETURNING `+userColumns,
		params.Username, params.Email, params.PasswordHash, params.ProfilePicture,
		params.IsStaff, params.IsSuperuser)

	user, err := scanUser(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" { // Unique violation
			span.SetStatus(codes.Error, "unique violation")
			return nil, &ConflictError{Field: conflictField(pgErr)}
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB INSERT failed")
		return nil, fmt.Errorf("failed to insert user: %w", err)
	}

	// Token is provisioned in the same transaction so a failed token insert
	// never leaves a user without one.
	_, err = tx.Exec(ctx,
		"INSERT INTO auth_tokens (token, user_id) VALUES ($1, $2)",
		uuid.NewString(), user.ID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "token insert failed")
		return nil, fmt.Errorf("failed to insert auth token: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "commit failed")
		return nil, fmt.Errorf("failed to commit user creation: %w", err)
	}

	span.SetStatus(codes.Ok, "user created")
	return user, nil
}

func (r *PostgresAccountRepo) GetUserByID(ctx context.Context, userID int64) (*User, error) {
	user, err := scanUser(r.pgpool.QueryRow(ctx,
		"SELECT "+userColumns+" FROM users WHERE id = $1", userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, api.ErrNotFound
		}
		return nil, fmt.Errorf("get user by id: query failed: %w", err)
	}
	return user, nil
}

func (r *PostgresAccountRepo) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	user, err := scanUser(r.pgpool.QueryRow(ctx,
		"SELECT "+userColumns+" FROM users WHERE username = $1", username))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, api.ErrNotFound
		}
		return nil, fmt.Errorf("get user by username: query failed: %w", err)
	}
	return user, nil
}

func (r *PostgresAccountRepo) GetUserByToken(ctx context.Context, token string) (*User, error) {
	user, err := scanUser(r.pgpool.QueryRow(ctx,
		`SELECT u.id, u.username, u.email, u.password_hash, u.profile_picture,
                u.is_active, u.is_staff, u.is_superuser, u.created_at, u.updated_at
         FROM users u
         JOIN auth_tokens t ON t.user_id = u.id
         WHERE t.token = $1`, token))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, api.ErrNotFound
		}
		return nil, fmt.Errorf("get user by token: query failed: %w", err)
	}
	return user, nil
}

func (r *PostgresAccountRepo) GetOrCreateToken(ctx context.Context, userID int64) (string, error) {
	var token string
	err := r.pgpool.QueryRow(ctx,
		"SELECT token FROM auth_tokens WHERE user_id = $1", userID).Scan(&token)
	if err == nil {
		return token, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return "", fmt.Errorf("get token: query failed: %w", err)
	}

	// Concurrent logins race to insert; the conflict clause makes the loser
	// read back the winner's token instead of minting a second one.
	err = r.pgpool.QueryRow(ctx,
		`INSERT INTO auth_tokens (token, user_id) VALUES ($1, $2)
         ON CONFLICT (user_id) DO UPDATE SET user_id = auth_tokens.user_id
         RETURNING token`,
		uuid.NewString(), userID).Scan(&token)
	if err != nil {
		return "", fmt.Errorf("create token: insert failed: %w", err)
	}
	return token, nil
}

func (r *PostgresAccountRepo) UpdateUser(ctx context.Context, userID int64, params UpdateUserParams) error {
	ctx, span := otel.Tracer("AccountRepo").Start(ctx, "UpdateUser", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.operation", "UPDATE"),
		attribute.String("db.sql.table", "users"),
	))
	defer span.End()

	var setClauses []string
	var args []interface{}
	argID := 1

	if params.Username != nil {
		setClauses = append(setClauses, fmt.Sprintf("username = $%d", argID))
		args = append(args, *params.Username)
		argID++
	}
	if params.Email != nil {
		setClauses = append(setClauses, fmt.Sprintf("email = $%d", argID))
		args = append(args, *params.Email)
		argID++
	}
	if params.PasswordHash != nil {
		setClauses = append(setClauses, fmt.Sprintf("password_hash = $%d", argID))
		args = append(args, *params.PasswordHash)
		argID++
	}
	if params.ProfilePicture != nil {
		setClauses = append(setClauses, fmt.Sprintf("profile_picture = $%d", argID))
		args = append(args, *params.ProfilePicture)
		argID++
	}
	if params.IsActive != nil {
		setClauses = append(setClauses, fmt.Sprintf("is_active = $%d", argID))
		args = append(args, *params.IsActive)
		argID++
	}
	if params.IsStaff != nil {
		setClauses = append(setClauses, fmt.Sprintf("is_staff = $%d", argID))
		args = append(args, *params.IsStaff)
		argID++
	}
	if params.IsSuperuser != nil {
		setClauses = append(setClauses, fmt.Sprintf("is_superuser = $%d", argID))
		args = append(args, *params.IsSuperuser)
		argID++
	}

	if len(setClauses) == 0 {
		span.SetStatus(codes.Ok, "no update fields provided")
		return nil
	}

	setClauses = append(setClauses, fmt.Sprintf("updated_at = $%d", argID))
	args = append(args, time.Now())
	argID++

	args = append(args, userID)
	query := fmt.Sprintf("UPDATE users SET %s WHERE id = $%d",
		strings.Join(setClauses, ", "), argID)

	tag, err := r.pgpool.Exec(ctx, query, args...)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" { // Unique violation
			span.SetStatus(codes.Error, "unique violation")
			return &ConflictError{Field: conflictField(pgErr)}
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB UPDATE failed")
		return fmt.Errorf("failed to update user: %w", err)
	}

	if tag.RowsAffected() == 0 {
		span.SetStatus(codes.Error, "user not found")
		return api.ErrNotFound
	}

	span.SetStatus(codes.Ok, "user updated")
	return nil
}

func (r *PostgresAccountRepo) DeleteUser(ctx context.Context, userID int64) error {
	tag, err := r.pgpool.Exec(ctx, "DELETE FROM users WHERE id = $1", userID)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return api.ErrNotFound
	}
	return nil
}

func (r *PostgresAccountRepo) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := r.pgpool.Query(ctx,
		"SELECT "+userColumns+" FROM users ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("list users: query failed: %w", err)
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		var u User
		err := rows.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.ProfilePicture,
			&u.IsActive, &u.IsStaff, &u.IsSuperuser, &u.CreatedAt, &u.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("list users: scan failed: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list users: rows error: %w", err)
	}
	return users, nil
}
