package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dropvault/backend/internal/models"
	"github.com/go-redis/redismock/v8"
	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return token
}

func principalEcho(t *testing.T, got *models.Principal) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := PrincipalFrom(r.Context())
		require.True(t, ok)
		*got = p
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthMiddleware(t *testing.T) {
	viper.Set("jwt.secret_key", testSecret)
	InitAuthMiddleware(nil)

	t.Run("valid token carries principal", func(t *testing.T) {
		var got models.Principal
		token := signToken(t, jwt.MapClaims{"user_id": "u1", "role": "admin", "exp": time.Now().Add(time.Hour).Unix()})

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		AuthMiddleware(principalEcho(t, &got)).ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, models.Principal{UserID: "u1", Role: "admin"}, got)
	})

	cases := map[string]string{
		"missing header":  "",
		"wrong scheme":    "Basic abc",
		"garbage token":   "Bearer not-a-jwt",
		"expired token":   "Bearer " + signToken(t, jwt.MapClaims{"user_id": "u1", "exp": time.Now().Add(-time.Hour).Unix()}),
		"missing user_id": "Bearer " + signToken(t, jwt.MapClaims{"role": "admin"}),
	}
	for name, header := range cases {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if header != "" {
				req.Header.Set("Authorization", header)
			}
			w := httptest.NewRecorder()
			AuthMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				t.Fatal("handler must not run")
			})).ServeHTTP(w, req)

			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Contains(t, w.Body.String(), "UNAUTHORIZED")
		})
	}

	t.Run("wrong signing key", func(t *testing.T) {
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"user_id": "u1"}).SignedString([]byte("other"))
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		AuthMiddleware(http.NotFoundHandler()).ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestAuthMiddleware_Blacklist(t *testing.T) {
	viper.Set("jwt.secret_key", testSecret)
	redisClient, mock := redismock.NewClientMock()
	InitAuthMiddleware(redisClient)
	defer InitAuthMiddleware(nil)

	token := signToken(t, jwt.MapClaims{"user_id": "u1"})

	mock.ExpectExists("blacklist:" + token).SetVal(1)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	AuthMiddleware(http.NotFoundHandler()).ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	mock.ExpectExists("blacklist:" + token).SetVal(0)
	var got models.Principal
	w = httptest.NewRecorder()
	AuthMiddleware(principalEcho(t, &got)).ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "u1", got.UserID)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRequireAdmin(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })

	cases := []struct {
		name      string
		principal *models.Principal
		want      int
	}{
		{"admin", &models.Principal{UserID: "a", Role: models.RoleAdmin}, http.StatusNoContent},
		{"user", &models.Principal{UserID: "u"}, http.StatusForbidden},
		{"anonymous", nil, http.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", nil)
			if tc.principal != nil {
				req = req.WithContext(WithPrincipal(req.Context(), *tc.principal))
			}
			w := httptest.NewRecorder()
			RequireAdmin(ok).ServeHTTP(w, req)
			assert.Equal(t, tc.want, w.Code)
		})
	}
}
