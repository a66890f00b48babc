package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/pratik-mahalle/assetwatch/internal/auth"
	"github.com/pratik-mahalle/assetwatch/internal/pkg/errors"
	"github.com/pratik-mahalle/assetwatch/internal/pkg/utils"
)

// ContextKey is a custom type for context keys
type ContextKey string

const (
	// ClaimsKey is the context key for the verified token claims
	ClaimsKey ContextKey = "claims"
)

// bearerToken reads the token from the Authorization header, falling back to the accessToken cookie
func bearerToken(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		scheme, token, ok := strings.Cut(header, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
		return ""
	}
	if cookie, err := r.Cookie("accessToken"); err == nil {
		return cookie.Value
	}
	return ""
}

// AuthMiddleware returns a middleware that validates JWT tokens
func AuthMiddleware(jwtSecret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenStr := bearerToken(r)
			if tokenStr == "" {
				utils.WriteError(w, errors.Unauthorized("Missing authentication token"))
				return
			}

			claims, err := auth.ParseClaims(tokenStr, jwtSecret)
			if err != nil {
				utils.WriteError(w, errors.Unauthorized("Invalid or expired token"))
				return
			}

			AddLogField(w, "user_id", claims.UserID)
			AddLogField(w, "role", claims.Role)

			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}

// RequirePermission rejects callers whose claims lack perm. It must run after AuthMiddleware.
func RequirePermission(perm string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := GetClaims(r)
			if !ok {
				utils.WriteError(w, errors.Unauthorized("Authentication required"))
				return
			}
			if !claims.HasPermission(perm) {
				utils.WriteError(w, errors.Forbidden("Missing permission "+perm))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// WithClaims stores verified claims in ctx
func WithClaims(ctx context.Context, claims *auth.Claims) context.Context {
	return context.WithValue(ctx, ClaimsKey, claims)
}

// GetClaims extracts the verified claims from the request context
func GetClaims(r *http.Request) (*auth.Claims, bool) {
	claims, ok := r.Context().Value(ClaimsKey).(*auth.Claims)
	return claims, ok && claims != nil
}

// GetUserID extracts the user ID from the request context
func GetUserID(r *http.Request) (string, bool) {
	claims, ok := GetClaims(r)
	if !ok {
		return "", false
	}
	return claims.UserID, true
}
