package account

import (
	"net/mail"
	"strings"
	"time"

	"github.com/ruipcf/reelbase/internal/api"
)

// User is the persisted account record. The password hash never leaves the
// service boundary.
type User struct {
	ID             int64     `json:"id"`
	Username       string    `json:"username"`
	Email          string    `json:"email"`
	PasswordHash   string    `json:"-"`
	ProfilePicture *string   `json:"profile_picture"`
	IsActive       bool      `json:"is_active"`
	IsStaff        bool      `json:"is_staff"`
	IsSuperuser    bool      `json:"is_superuser"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// IsAdmin reports whether the user may access the administrative surface.
func (u *User) IsAdmin() bool {
	return u.IsStaff || u.IsSuperuser
}

// ConflictError identifies which unique field an insert or update collided on,
// so handlers can return field-level detail instead of a generic conflict.
type ConflictError struct {
	Field string
}

func (e *ConflictError) Error() string {
	return e.Field + " already exists"
}

func (e *ConflictError) Unwrap() error {
	return api.ErrConflict
}

// RegisterRequest represents the registration request body
type RegisterRequest struct {
	Username       string  `json:"username"`
	Email          string  `json:"email"`
	Password       string  `json:"password"`
	ProfilePicture *string `json:"profile_picture,omitempty"`
}

// LoginRequest represents the login request body
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse carries the opaque bearer token issued on successful login.
type LoginResponse struct {
	Token string `json:"token"`
}

// StatusResponse is the acknowledgment body for write operations.
type StatusResponse struct {
	Status string `json:"status"`
}

// UpdateProfileRequest is the self-service partial update body. Absent fields
// (nil pointers) are left untouched; in particular an absent password keeps
// the stored hash verbatim.
type UpdateProfileRequest struct {
	Username       *string `json:"username,omitempty"`
	Email          *string `json:"email,omitempty"`
	Password       *string `json:"password,omitempty"`
	ProfilePicture *string `json:"profile_picture,omitempty"`
}

// AdminUpsertRequest is the administrative create/update body. Unlike the
// self-service surface it may set the account flags.
type AdminUpsertRequest struct {
	Username       *string `json:"username,omitempty"`
	Email          *string `json:"email,omitempty"`
	Password       *string `json:"password,omitempty"`
	ProfilePicture *string `json:"profile_picture,omitempty"`
	IsActive       *bool   `json:"is_active,omitempty"`
	IsStaff        *bool   `json:"is_staff,omitempty"`
	IsSuperuser    *bool   `json:"is_superuser,omitempty"`
}

// CreateUserParams is what the repository needs to persist a new user.
// Password is already hashed by the service.
type CreateUserParams struct {
	Username       string
	Email          string
	PasswordHash   string
	ProfilePicture *string
	IsStaff        bool
	IsSuperuser    bool
}

// UpdateUserParams holds the fields to change on an existing user. Nil
// pointers mean "leave the column as it is".
type UpdateUserParams struct {
	Username       *string
	Email          *string
	PasswordHash   *string
	ProfilePicture *string
	IsActive       *bool
	IsStaff        *bool
	IsSuperuser    *bool
}

// ProfileResponse is the serialized account record. ProfilePictureURL is the
// stored reference resolved against the server's base URL, or null.
type ProfileResponse struct {
	ID                int64   `json:"id"`
	Username          string  `json:"username"`
	Email             string  `json:"email"`
	ProfilePicture    *string `json:"profile_picture"`
	ProfilePictureURL *string `json:"profile_picture_url"`
	IsActive          bool    `json:"is_active"`
	IsStaff           bool    `json:"is_staff"`
	IsSuperuser       bool    `json:"is_superuser"`
}

// validateRegisterInput checks required fields and basic format constraints,
// returning per-field error codes.
func validateRegisterInput(req RegisterRequest) map[string]string {
	validationErrors := make(map[string]string)

	if strings.TrimSpace(req.Username) == "" {
		validationErrors["username"] = "username_required"
	}
	if strings.TrimSpace(req.Email) == "" {
		validationErrors["email"] = "email_required"
	} else if _, err := mail.ParseAddress(req.Email); err != nil {
		validationErrors["email"] = "invalid_email_format"
	}
	if req.Password == "" {
		validationErrors["password"] = "password_required"
	}

	if len(validationErrors) == 0 {
		return nil
	}
	return validationErrors
}
