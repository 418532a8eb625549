package account

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ruipcf/reelbase/internal/api"
)

var _ Handler = (*AccountHandler)(nil)

type Handler interface {
	Register(w http.ResponseWriter, r *http.Request)
	Login(w http.ResponseWriter, r *http.Request)
	GetProfile(w http.ResponseWriter, r *http.Request)
	UpdateProfile(w http.ResponseWriter, r *http.Request)
	DeleteProfile(w http.ResponseWriter, r *http.Request)
	ListUsers(w http.ResponseWriter, r *http.Request)
	GetUser(w http.ResponseWriter, r *http.Request)
	CreateUser(w http.ResponseWriter, r *http.Request)
	UpdateUser(w http.ResponseWriter, r *http.Request)
	DeleteUser(w http.ResponseWriter, r *http.Request)
}

type AccountHandler struct {
	accountService AccountService
	logger         *slog.Logger
	baseURL        string
}

// NewAccountHandler creates a new account handler. baseURL is used to resolve
// stored profile-picture references to absolute URLs.
func NewAccountHandler(accountService AccountService, logger *slog.Logger, baseURL string) *AccountHandler {
	return &AccountHandler{
		accountService: accountService,
		logger:         logger,
		baseURL:        strings.TrimRight(baseURL, "/"),
	}
}

// newProfileResponse serializes a user record, resolving the profile picture
// to an absolute URL when one is stored.
func (h *AccountHandler) newProfileResponse(u *User) ProfileResponse {
	resp := ProfileResponse{
		ID:             u.ID,
		Username:       u.Username,
		Email:          u.Email,
		ProfilePicture: u.ProfilePicture,
		IsActive:       u.IsActive,
		IsStaff:        u.IsStaff,
		IsSuperuser:    u.IsSuperuser,
	}
	if u.ProfilePicture != nil && *u.ProfilePicture != "" {
		url := h.baseURL + "/media/" + strings.TrimLeft(*u.ProfilePicture, "/")
		resp.ProfilePictureURL = &url
	}
	return resp
}

// Register handles POST /users/create/.
func (h *AccountHandler) Register(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := h.logger.With(slog.String("handler", "Register"))

	var req RegisterRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		l.WarnContext(ctx, "Failed to decode request", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	if fields := validateRegisterInput(req); fields != nil {
		l.WarnContext(ctx, "Registration validation failed", slog.Any("fields", fields))
		api.FieldErrorResponse(w, r, "Invalid registration data", fields)
		return
	}

	if _, err := h.accountService.Register(ctx, req); err != nil {
		var conflict *ConflictError
		if errors.As(err, &conflict) {
			api.FieldErrorResponse(w, r, "Invalid registration data",
				map[string]string{conflict.Field: "already_exists"})
			return
		}
		l.ErrorContext(ctx, "Registration failed", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusInternalServerError, "Failed to register user")
		return
	}

	api.WriteJSONResponse(w, r, http.StatusCreated, StatusResponse{Status: "User created successfully"})
}

// Login handles POST /users/login/. Unknown usernames and wrong passwords
// produce an identical response.
func (h *AccountHandler) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := h.logger.With(slog.String("handler", "Login"))

	var req LoginRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		l.WarnContext(ctx, "Failed to decode request", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	token, err := h.accountService.Login(ctx, req.Username, req.Password)
	if err != nil {
		if errors.Is(err, api.ErrUnauthenticated) {
			api.ErrorResponse(w, r, http.StatusUnauthorized, "Invalid credentials")
			return
		}
		l.ErrorContext(ctx, "Login failed", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusInternalServerError, "Failed to process login")
		return
	}

	api.WriteJSONResponse(w, r, http.StatusOK, LoginResponse{Token: token})
}

// GetProfile returns the caller's own record, never anyone else's.
func (h *AccountHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := h.logger.With(slog.String("handler", "GetProfile"))

	userID, ok := GetUserIDFromContext(ctx)
	if !ok {
		l.ErrorContext(ctx, "User ID not found in context")
		api.ErrorResponse(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}

	user, err := h.accountService.GetProfile(ctx, userID)
	if err != nil {
		l.ErrorContext(ctx, "Failed to get profile", slog.Any("error", err))
		if errors.Is(err, api.ErrNotFound) {
			api.ErrorResponse(w, r, http.StatusNotFound, "User not found")
		} else {
			api.ErrorResponse(w, r, http.StatusInternalServerError, "Failed to retrieve user profile")
		}
		return
	}

	api.WriteJSONResponse(w, r, http.StatusOK, h.newProfileResponse(user))
}

// UpdateProfile applies a partial update to the caller's own record.
func (h *AccountHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := h.logger.With(slog.String("handler", "UpdateProfile"))

	userID, ok := GetUserIDFromContext(ctx)
	if !ok {
		l.ErrorContext(ctx, "User ID not found in context")
		api.ErrorResponse(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}

	var req UpdateProfileRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		l.WarnContext(ctx, "Failed to decode request", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.accountService.UpdateProfile(ctx, userID, req); err != nil {
		var conflict *ConflictError
		if errors.As(err, &conflict) {
			api.FieldErrorResponse(w, r, "Invalid profile data",
				map[string]string{conflict.Field: "already_exists"})
			return
		}
		l.ErrorContext(ctx, "Failed to update profile", slog.Any("error", err))
		if errors.Is(err, api.ErrNotFound) {
			api.ErrorResponse(w, r, http.StatusNotFound, "User not found")
		} else {
			api.ErrorResponse(w, r, http.StatusInternalServerError, "Failed to update user profile")
		}
		return
	}

	api.WriteJSONResponse(w, r, http.StatusOK, StatusResponse{Status: "User updated successfully"})
}

// DeleteProfile hard-deletes the caller's own record; the token cascades.
func (h *AccountHandler) DeleteProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := h.logger.With(slog.String("handler", "DeleteProfile"))

	userID, ok := GetUserIDFromContext(ctx)
	if !ok {
		l.ErrorContext(ctx, "User ID not found in context")
		api.ErrorResponse(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}

	if err := h.accountService.DeleteAccount(ctx, userID); err != nil {
		l.ErrorContext(ctx, "Failed to delete account", slog.Any("error", err))
		if errors.Is(err, api.ErrNotFound) {
			api.ErrorResponse(w, r, http.StatusNotFound, "User not found")
		} else {
			api.ErrorResponse(w, r, http.StatusInternalServerError, "Failed to delete account")
		}
		return
	}

	api.WriteJSONResponse(w, r, http.StatusNoContent, nil)
}

// ListUsers handles GET /users/ (administrators only).
func (h *AccountHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := h.logger.With(slog.String("handler", "ListUsers"))

	users, err := h.accountService.ListUsers(ctx)
	if err != nil {
		l.ErrorContext(ctx, "Failed to list users", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusInternalServerError, "Failed to list users")
		return
	}

	resp := make([]ProfileResponse, 0, len(users))
	for i := range users {
		resp = append(resp, h.newProfileResponse(&users[i]))
	}
	api.WriteJSONResponse(w, r, http.StatusOK, resp)
}

func (h *AccountHandler) userIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	userID, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, "Invalid user ID")
		return 0, false
	}
	return userID, true
}

// GetUser handles GET /users/{id}/ (administrators only).
func (h *AccountHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := h.logger.With(slog.String("handler", "GetUser"))

	userID, ok := h.userIDParam(w, r)
	if !ok {
		return
	}

	user, err := h.accountService.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, api.ErrNotFound) {
			api.ErrorResponse(w, r, http.StatusNotFound, "User not found")
			return
		}
		l.ErrorContext(ctx, "Failed to get user", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusInternalServerError, "Failed to retrieve user")
		return
	}

	api.WriteJSONResponse(w, r, http.StatusOK, h.newProfileResponse(user))
}

// CreateUser handles POST /users/ (administrators only). Unlike public
// registration it may set the account flags.
func (h *AccountHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := h.logger.With(slog.String("handler", "CreateUser"))

	var req AdminUpsertRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		l.WarnContext(ctx, "Failed to decode request", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	var check RegisterRequest
	if req.Username != nil {
		check.Username = *req.Username
	}
	if req.Email != nil {
		check.Email = *req.Email
	}
	if req.Password != nil {
		check.Password = *req.Password
	}
	if fields := validateRegisterInput(check); fields != nil {
		api.FieldErrorResponse(w, r, "Invalid user data", fields)
		return
	}

	user, err := h.accountService.CreateUser(ctx, req)
	if err != nil {
		var conflict *ConflictError
		if errors.As(err, &conflict) {
			api.FieldErrorResponse(w, r, "Invalid user data",
				map[string]string{conflict.Field: "already_exists"})
			return
		}
		l.ErrorContext(ctx, "Failed to create user", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusInternalServerError, "Failed to create user")
		return
	}

	api.WriteJSONResponse(w, r, http.StatusCreated, h.newProfileResponse(user))
}

// UpdateUser handles PATCH/PUT /users/{id}/ (administrators only).
func (h *AccountHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := h.logger.With(slog.String("handler", "UpdateUser"))

	userID, ok := h.userIDParam(w, r)
	if !ok {
		return
	}

	var req AdminUpsertRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		l.WarnContext(ctx, "Failed to decode request", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.accountService.UpdateUser(ctx, userID, req); err != nil {
		var conflict *ConflictError
		if errors.As(err, &conflict) {
			api.FieldErrorResponse(w, r, "Invalid user data",
				map[string]string{conflict.Field: "already_exists"})
			return
		}
		if errors.Is(err, api.ErrNotFound) {
			api.ErrorResponse(w, r, http.StatusNotFound, "User not found")
			return
		}
		l.ErrorContext(ctx, "Failed to update user", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusInternalServerError, "Failed to update user")
		return
	}

	api.WriteJSONResponse(w, r, http.StatusOK, StatusResponse{Status: "User updated successfully"})
}

// DeleteUser handles DELETE /users/{id}/ (administrators only). Deleting an
// already-deleted user returns 404, never a silent success.
func (h *AccountHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := h.logger.With(slog.String("handler", "DeleteUser"))

	userID, ok := h.userIDParam(w, r)
	if !ok {
		return
	}

	if err := h.accountService.DeleteUser(ctx, userID); err != nil {
		if errors.Is(err, api.ErrNotFound) {
			api.ErrorResponse(w, r, http.StatusNotFound, "User not found")
			return
		}
		l.ErrorContext(ctx, "Failed to delete user", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusInternalServerError, "Failed to delete user")
		return
	}

	api.WriteJSONResponse(w, r, http.StatusNoContent, nil)
}
