package account

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/ruipcf/reelbase/internal/api"
)

// Define typed context keys
type contextKey string

const UserIDKey contextKey = "userID"
const IsAdminKey contextKey = "isAdmin"

// Authenticate is middleware that resolves the opaque bearer token to its
// owning user and stores the caller's identity in the request context.
func Authenticate(service AccountService, logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			l := logger.With(slog.String("middleware", "Authenticate"))

			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				l.WarnContext(ctx, "Missing Authorization header")
				api.ErrorResponse(w, r, http.StatusUnauthorized, "Authorization header required")
				return
			}

			headerParts := strings.Split(authHeader, " ")
			if len(headerParts) != 2 || strings.ToLower(headerParts[0]) != "bearer" {
				l.WarnContext(ctx, "Invalid Authorization header format")
				api.ErrorResponse(w, r, http.StatusUnauthorized, "Authorization header format must be Bearer {token}")
				return
			}

			user, err := service.GetUserByToken(ctx, headerParts[1])
			if err != nil {
				// Token lookup failures never leak whether the token
				// was unknown or the lookup itself failed.
				l.WarnContext(ctx, "Token resolution failed", slog.Any("error", err))
				api.ErrorResponse(w, r, http.StatusUnauthorized, "Invalid token")
				return
			}

			if !user.IsActive {
				l.WarnContext(ctx, "Inactive user presented a valid token", slog.Int64("userID", user.ID))
				api.ErrorResponse(w, r, http.StatusUnauthorized, "Invalid token")
				return
			}

			ctx = context.WithValue(ctx, UserIDKey, user.ID)
			ctx = context.WithValue(ctx, IsAdminKey, user.IsAdmin())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin gates the administrative collection endpoints.
// Runs AFTER the Authenticate middleware.
func RequireAdmin(logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			isAdmin, ok := GetIsAdminFromContext(ctx)
			if !ok {
				logger.ErrorContext(ctx, "Admin flag missing from context")
				api.ErrorResponse(w, r, http.StatusUnauthorized, "Authentication required")
				return
			}
			if !isAdmin {
				logger.WarnContext(ctx, "Non-admin attempted administrative action")
				api.ErrorResponse(w, r, http.StatusForbidden, "Action requires administrative privileges")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// Helper functions to get identity from context
func GetUserIDFromContext(ctx context.Context) (int64, bool) {
	userID, ok := ctx.Value(UserIDKey).(int64)
	return userID, ok
}

func GetIsAdminFromContext(ctx context.Context) (bool, bool) {
	isAdmin, ok := ctx.Value(IsAdminKey).(bool)
	return isAdmin, ok
}
