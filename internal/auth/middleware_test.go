package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/TheVoodooSoul/aktionfilmai-sub002/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "super-secret-jwt-token-with-at-least-32-characters"

func signToken(t *testing.T, secret, sub string, exp time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Email: sub + "@example.com",
		Role:  "authenticated",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	})
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func serve(v *Verifier, header string) (*httptest.ResponseRecorder, *models.Identity) {
	var seen *models.Identity
	h := v.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = models.GetIdentity(r.Context())
	}))
	req := httptest.NewRequest(http.MethodGet, "/api/profiles/u1/credits", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec, seen
}

func TestMiddleware_ValidToken(t *testing.T) {
	v := NewVerifier(models.AuthConfig{JWTSecret: testSecret})
	rec, identity := serve(v, "Bearer "+signToken(t, testSecret, "u1", time.Now().Add(time.Hour)))

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, identity)
	assert.Equal(t, "u1", identity.UserId)
	assert.Equal(t, "u1@example.com", identity.Email)
}

func TestMiddleware_Rejections(t *testing.T) {
	v := NewVerifier(models.AuthConfig{JWTSecret: testSecret})

	cases := map[string]string{
		"expired":      "Bearer " + signToken(t, testSecret, "u1", time.Now().Add(-time.Hour)),
		"wrong secret": "Bearer " + signToken(t, "another-secret-another-secret-123", "u1", time.Now().Add(time.Hour)),
		"bad scheme":   "Basic dXNlcjpwYXNz",
	}
	for name, header := range cases {
		t.Run(name, func(t *testing.T) {
			rec, identity := serve(v, header)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Nil(t, identity)
			assert.Contains(t, rec.Body.String(), `"error"`)
		})
	}
}

func TestMiddleware_MissingToken(t *testing.T) {
	rec, _ := serve(NewVerifier(models.AuthConfig{JWTSecret: testSecret}), "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = serve(NewVerifier(models.AuthConfig{JWTSecret: testSecret, Required: true}), "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMiddleware_DisabledWithoutSecret(t *testing.T) {
	rec, identity := serve(NewVerifier(models.AuthConfig{}), "Bearer garbage")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, identity)
}

func TestAuthorize(t *testing.T) {
	assert.NoError(t, Authorize(nil, "u1"))
	assert.NoError(t, Authorize(&models.Identity{UserId: "u1"}, "u1"))
	assert.NoError(t, Authorize(&models.Identity{UserId: "admin", Role: ServiceRole}, "u1"))
	assert.ErrorIs(t, Authorize(&models.Identity{UserId: "u2"}, "u1"), ErrForbidden)
}
