package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSigningKey = []byte("some_secret")

func testToken(t *testing.T, key []byte, sub any) string {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		userIdClaim: sub,
		"exp":       time.Now().Add(time.Hour).Unix(),
	})

	signed, err := token.SignedString(key)
	require.NoError(t, err, "failed to sign test token")
	return signed
}

func TestExtractUserIdFromToken(t *testing.T) {
	app := &MessagingApp{signingKey: testSigningKey}

	t.Run("valid token", func(t *testing.T) {
		userId, err := app.extractUserIdFromToken(testToken(t, testSigningKey, "user-123"))
		require.NoError(t, err)
		assert.Equal(t, "user-123", userId)
	})

	t.Run("wrong signing key", func(t *testing.T) {
		_, err := app.extractUserIdFromToken(testToken(t, []byte("other_secret"), "user-123"))
		assert.Error(t, err, "expected signature verification to fail")
	})

	t.Run("garbage token", func(t *testing.T) {
		_, err := app.extractUserIdFromToken("not.a.token")
		assert.Error(t, err)
	})

	t.Run("missing subject claim", func(t *testing.T) {
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
			"exp": time.Now().Add(time.Hour).Unix(),
		})
		signed, err := token.SignedString(testSigningKey)
		require.NoError(t, err)

		_, err = app.extractUserIdFromToken(signed)
		assert.Error(t, err, "expected error for missing user id claim")
	})

	t.Run("non-string subject claim", func(t *testing.T) {
		_, err := app.extractUserIdFromToken(testToken(t, testSigningKey, 42))
		assert.Error(t, err, "expected error for non-string user id claim")
	})
}

func TestTokenFromRequest(t *testing.T) {
	t.Run("cookie", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.AddCookie(&http.Cookie{Name: tokenCookieKey, Value: "cookie-token"})

		token, err := tokenFromRequest(r)
		require.NoError(t, err)
		assert.Equal(t, "cookie-token", token)
	})

	t.Run("bearer header", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("Authorization", "Bearer header-token")

		token, err := tokenFromRequest(r)
		require.NoError(t, err)
		assert.Equal(t, "header-token", token)
	})

	t.Run("cookie wins over header", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.AddCookie(&http.Cookie{Name: tokenCookieKey, Value: "cookie-token"})
		r.Header.Set("Authorization", "Bearer header-token")

		token, err := tokenFromRequest(r)
		require.NoError(t, err)
		assert.Equal(t, "cookie-token", token)
	})

	t.Run("no token", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		_, err := tokenFromRequest(r)
		assert.Error(t, err)
	})
}
