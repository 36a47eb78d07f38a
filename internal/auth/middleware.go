package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/Gimbo67/evokeessence-crypto-exchange-sub000/internal/models"
	pkghttp "github.com/Gimbo67/evokeessence-crypto-exchange-sub000/pkg/http"
)

type contextKey string

// UserContextKey is where the middleware stores validated token claims
const UserContextKey contextKey = "auth_user"

// UserFetcher retrieves users for role checks
type UserFetcher interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
}

// GetUserFromContext returns the authenticated token claims, or nil
func GetUserFromContext(r *http.Request) *models.TokenClaims {
	claims, _ := r.Context().Value(UserContextKey).(*models.TokenClaims)
	return claims
}

// Middleware validates the bearer access token and stores its claims in the
// request context. MFA-pending tokens are rejected here: a half-authenticated
// session must complete the second factor before reaching protected routes.
func Middleware(tm *TokenManager) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if !strings.HasPrefix(header, "Bearer ") {
				pkghttp.WriteUnauthorized(w, "Missing or invalid authorization header")
				return
			}

			claims, err := tm.ValidateToken(strings.TrimPrefix(header, "Bearer "))
			if err != nil || claims.Type != models.TokenTypeAccess {
				pkghttp.WriteUnauthorized(w, "Invalid or expired token")
				return
			}

			ctx := context.WithValue(r.Context(), UserContextKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole restricts a route group to users with the given role
func RequireRole(users UserFetcher, role string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := GetUserFromContext(r)
			if claims == nil {
				pkghttp.WriteUnauthorized(w, "Unauthorized")
				return
			}

			user, err := users.GetByID(r.Context(), claims.UserID)
			if err != nil || user.Role != role {
				pkghttp.WriteForbidden(w, "Insufficient permissions")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
