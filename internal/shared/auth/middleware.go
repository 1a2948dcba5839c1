package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rssabbirdev/smart-clinic/internal/shared/config"
	"github.com/rssabbirdev/smart-clinic/internal/shared/types"
)

type contextKey string

const (
	UserContextKey contextKey = "user"
)

// Staff and patient roles recognized by the clinic.
const (
	RoleNurse   = "nurse"
	RoleAdmin   = "admin"
	RoleStudent = "student"
)

// User represents the authenticated user from JWT claims
type User struct {
	ID        types.ID `json:"sub"`
	Role      string   `json:"role"`
	Name      string   `json:"name"`
	StudentID string   `json:"student_id,omitempty"`
	Class     string   `json:"class,omitempty"`
	Email     string   `json:"email,omitempty"`
}

// Claims extends JWT claims with clinic-specific data
type Claims struct {
	jwt.RegisteredClaims
	Role      string `json:"role"`
	Name      string `json:"name"`
	StudentID string `json:"student_id,omitempty"`
	Class     string `json:"class,omitempty"`
	Email     string `json:"email,omitempty"`
}

// Middleware creates JWT authentication middleware. Tokens are issued
// by the clinic's identity provider; this only verifies them.
func Middleware(cfg config.AuthConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeError(w, http.StatusUnauthorized, "missing authorization header")
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
				writeError(w, http.StatusUnauthorized, "invalid authorization header format")
				return
			}

			token, err := jwt.ParseWithClaims(parts[1], &Claims{}, func(token *jwt.Token) (interface{}, error) {
				return []byte(cfg.JWTSecret), nil
			})

			if err != nil {
				writeError(w, http.StatusUnauthorized, "invalid token")
				return
			}

			claims, ok := token.Claims.(*Claims)
			if !ok || !token.Valid {
				writeError(w, http.StatusUnauthorized, "invalid token claims")
				return
			}

			user := &User{
				ID:        types.ID(claims.Subject),
				Role:      claims.Role,
				Name:      claims.Name,
				StudentID: claims.StudentID,
				Class:     claims.Class,
				Email:     claims.Email,
			}

			ctx := context.WithValue(r.Context(), UserContextKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Optional is like Middleware but never rejects: a valid bearer token
// populates the user in context, anything else passes through anonymous.
// Patient-facing routes use this so identity can fall back to a guest
// session or the request body.
func Optional(cfg config.AuthConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
				next.ServeHTTP(w, r)
				return
			}

			token, err := jwt.ParseWithClaims(parts[1], &Claims{}, func(token *jwt.Token) (interface{}, error) {
				return []byte(cfg.JWTSecret), nil
			})
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}

			claims, ok := token.Claims.(*Claims)
			if !ok || !token.Valid {
				next.ServeHTTP(w, r)
				return
			}

			user := &User{
				ID:        types.ID(claims.Subject),
				Role:      claims.Role,
				Name:      claims.Name,
				StudentID: claims.StudentID,
				Class:     claims.Class,
				Email:     claims.Email,
			}

			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}

// GetUser extracts the user from request context
func GetUser(ctx context.Context) *User {
	user, ok := ctx.Value(UserContextKey).(*User)
	if !ok {
		return nil
	}
	return user
}

// WithUser returns a context carrying the given user. Used by tests
// and by handlers that resolve identity outside the middleware.
func WithUser(ctx context.Context, user *User) context.Context {
	return context.WithValue(ctx, UserContextKey, user)
}

// RequireRoles creates middleware that requires one of the given roles
func RequireRoles(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := GetUser(r.Context())
			if user == nil {
				writeError(w, http.StatusUnauthorized, "authentication required")
				return
			}

			for _, role := range roles {
				if user.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}

			writeError(w, http.StatusForbidden, "insufficient permissions")
		})
	}
}

// IsStaff reports whether the user may work the queue.
func (u *User) IsStaff() bool {
	return u.Role == RoleNurse || u.Role == RoleAdmin
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
