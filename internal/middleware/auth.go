package middleware

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/dropvault/backend/internal/models"
	"github.com/dropvault/backend/internal/services"
	"github.com/dropvault/backend/internal/types"
	"github.com/go-redis/redis/v8"
	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/viper"
)

type contextKey string

const principalKey contextKey = "principal"

var blacklist *redis.Client

// InitAuthMiddleware enables the token blacklist. A nil client disables it.
func InitAuthMiddleware(redisClient *redis.Client) {
	blacklist = redisClient
}

func AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Get token from Authorization header
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			services.WriteError(w, types.NewError(types.ErrUnauthorized, "Authorization header required"))
			return
		}

		// Extract token
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			services.WriteError(w, types.NewError(types.ErrUnauthorized, "Invalid authorization header format"))
			return
		}

		token := parts[1]

		if isBlacklisted(r.Context(), token) {
			services.WriteError(w, types.NewError(types.ErrUnauthorized, "Token revoked"))
			return
		}

		principal, err := validateToken(token)
		if err != nil {
			services.WriteError(w, types.WrapError(types.ErrUnauthorized, "Invalid token", err))
			return
		}

		next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), principal)))
	})
}

// RequireAdmin rejects principals without the admin role. It must run after
// AuthMiddleware.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, ok := PrincipalFrom(r.Context())
		if !ok {
			services.WriteError(w, types.NewError(types.ErrUnauthorized, "authentication required"))
			return
		}
		if !principal.IsAdmin() {
			services.WriteError(w, types.NewError(types.ErrForbidden, "admin role required"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func WithPrincipal(ctx context.Context, p models.Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFrom returns the principal AuthMiddleware stored on ctx
func PrincipalFrom(ctx context.Context) (models.Principal, bool) {
	p, ok := ctx.Value(principalKey).(models.Principal)
	return p, ok && p.Authenticated()
}

func isBlacklisted(ctx context.Context, token string) bool {
	if blacklist == nil {
		return false
	}
	exists, err := blacklist.Exists(ctx, "blacklist:"+token).Result()
	if err != nil {
		// lookup errors fail open
		log.Printf("[AUTH] blacklist lookup failed: %v", err)
		return false
	}
	return exists > 0
}

func validateToken(tokenString string) (models.Principal, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		return []byte(viper.GetString("jwt.secret_key")), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))

	if err != nil {
		return models.Principal{}, err
	}
	if !token.Valid {
		return models.Principal{}, errors.New("token is not valid")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return models.Principal{}, errors.New("unexpected claims type")
	}

	userID, ok := claims["user_id"]
	if !ok || userID == nil || fmt.Sprintf("%v", userID) == "" {
		return models.Principal{}, errors.New("user_id claim missing")
	}
	role, _ := claims["role"].(string)

	return models.Principal{UserID: fmt.Sprintf("%v", userID), Role: role}, nil
}
