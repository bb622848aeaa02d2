package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/freshlane/pkg/auth"
	"github.com/angelmondragon/freshlane/pkg/config"
	"github.com/angelmondragon/freshlane/pkg/enums"
)

var testJWT = config.JWTConfig{Secret: "secret", Issuer: "freshlane"}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func mintTestToken(t *testing.T, actor auth.Actor, issuedAt time.Time) string {
	t.Helper()
	token, err := auth.MintAccessToken(testJWT, issuedAt, time.Hour, actor)
	require.NoError(t, err)
	return token
}

func TestAuthRejectsMissingToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	resp := httptest.NewRecorder()
	Auth(testJWT, nil)(okHandler()).ServeHTTP(resp, req)

	assert.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestAuthRejectsInvalidToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer invalid")
	resp := httptest.NewRecorder()
	Auth(testJWT, nil)(okHandler()).ServeHTTP(resp, req)

	assert.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestAuthRejectsExpiredToken(t *testing.T) {
	token := mintTestToken(t, auth.Actor{ID: uuid.New(), Role: enums.ActorRoleBuyer}, time.Now().Add(-2*time.Hour))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	Auth(testJWT, nil)(okHandler()).ServeHTTP(resp, req)

	assert.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestAuthAllowsValidToken(t *testing.T) {
	actor := auth.Actor{ID: uuid.New(), Role: enums.ActorRoleVendor}
	token := mintTestToken(t, actor, time.Now())

	var captured auth.Actor
	handler := Auth(testJWT, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured, _ = ActorFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "bearer "+token)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, actor, captured)
}

func TestRequireRoles(t *testing.T) {
	guard := RequireRoles(nil, enums.ActorRoleVendor, enums.ActorRoleAdmin)

	cases := []struct {
		role enums.ActorRole
		want int
	}{
		{enums.ActorRoleVendor, http.StatusOK},
		{enums.ActorRoleAdmin, http.StatusOK},
		{enums.ActorRoleBuyer, http.StatusForbidden},
		{"", http.StatusForbidden},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		if tc.role != "" {
			req = req.WithContext(WithActor(req.Context(), auth.Actor{ID: uuid.New(), Role: tc.role}))
		}
		resp := httptest.NewRecorder()
		guard(okHandler()).ServeHTTP(resp, req)
		assert.Equal(t, tc.want, resp.Code, "role %q", tc.role)
	}
}

func TestBearerToken(t *testing.T) {
	cases := map[string]struct {
		header string
		token  string
		ok     bool
	}{
		"scheme":      {"Bearer abc", "abc", true},
		"lower":       {"bearer  abc ", "abc", true},
		"bare":        {"abc", "abc", true},
		"empty":       {"  ", "", false},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			token, ok := bearerToken(tc.header)
			assert.Equal(t, tc.token, token)
			assert.Equal(t, tc.ok, ok)
		})
	}
}

func TestAuthFailsClosedWithoutSecret(t *testing.T) {
	token := mintTestToken(t, auth.Actor{ID: uuid.New(), Role: enums.ActorRoleBuyer}, time.Now())
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	Auth(config.JWTConfig{Issuer: "freshlane"}, nil)(okHandler()).ServeHTTP(resp, req)

	assert.Equal(t, http.StatusInternalServerError, resp.Code)
}
