package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dangsayz/12img/internal/models"
	"github.com/dangsayz/12img/internal/repository"
)

type contextKey string

const userIDKey contextKey = "user_id"

// UserID returns the authenticated user ID from the request context.
func UserID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDKey).(string)
	return id, ok
}

// WithUserID injects a user ID into the context. Exposed for tests.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// sessionToken extracts the bearer token from the Authorization header.
func sessionToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if token, ok := strings.CutPrefix(auth, "Bearer "); ok && token != "" {
		return token
	}
	return ""
}

// SessionAuth resolves the session token to a user ID and stores it in the
// request context. Requests without a valid session get 401 with no detail
// about why.
func SessionAuth(sessions repository.SessionRepository) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := sessionToken(r)
			if token == "" {
				unauthorized(w)
				return
			}

			userID, err := sessions.ResolveUser(r.Context(), token)
			if err != nil {
				if !errors.Is(err, repository.ErrNotFound) && !errors.Is(err, repository.ErrInvalidInput) {
					slog.Error("session resolution failed", "error", err)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					json.NewEncoder(w).Encode(models.ErrorResponse{
						Error: "Internal server error",
						Code:  "INTERNAL_ERROR",
					})
					return
				}
				unauthorized(w)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
		})
	}
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(models.ErrorResponse{
		Error: "Unauthorized",
		Code:  "UNAUTHORIZED",
	})
}
