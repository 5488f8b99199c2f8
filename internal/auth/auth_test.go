package auth

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "test-secret"

var now = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

func TestIssue_then_Verify(t *testing.T) {
	token, err := Issue(secret, "user-7", time.Hour, time.Now())
	require.NoError(t, err)

	claims, err := Verify(secret, token)
	require.NoError(t, err)
	assert.Equal(t, "user-7", claims.UserID)
	assert.Equal(t, "herald", claims.Issuer)
}

func TestVerify_wrong_secret(t *testing.T) {
	token, err := Issue(secret, "user-7", time.Hour, time.Now())
	require.NoError(t, err)

	_, err = Verify("other", token)
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestVerify_expired(t *testing.T) {
	token, err := Issue(secret, "user-7", time.Minute, time.Now().Add(-time.Hour))
	require.NoError(t, err)

	_, err = Verify(secret, token)
	assert.ErrorIs(t, err, ErrExpired)
}

func TestIssue_requires_secret(t *testing.T) {
	_, err := Issue("", "u", time.Hour, now)
	assert.Error(t, err)
}

func TestParseCredential(t *testing.T) {
	valid, err := Issue(secret, "user-1", time.Hour, now)
	require.NoError(t, err)
	expired, err := Issue(secret, "user-1", time.Hour, now.Add(-2*time.Hour))
	require.NoError(t, err)

	t.Run("empty", func(t *testing.T) {
		_, err := ParseCredential("  ", now)
		assert.ErrorIs(t, err, ErrNoCredential)
	})

	t.Run("valid jwt", func(t *testing.T) {
		cred, err := ParseCredential(valid, now)
		require.NoError(t, err)
		assert.Equal(t, "user-1", cred.UserID)
		assert.WithinDuration(t, now.Add(time.Hour), cred.ExpiresAt, 0)
	})

	t.Run("expired jwt", func(t *testing.T) {
		_, err := ParseCredential(expired, now)
		assert.ErrorIs(t, err, ErrExpired)
	})

	t.Run("opaque token", func(t *testing.T) {
		cred, err := ParseCredential("api-key-123", now)
		require.NoError(t, err)
		assert.Equal(t, "api-key-123", cred.Token)
		assert.Empty(t, cred.UserID)
		assert.True(t, cred.ExpiresAt.IsZero())
	})
}

func TestFromRequest(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/ws", nil)
	_, err := FromRequest(r)
	assert.ErrorIs(t, err, ErrNoCredential)

	r.Header.Set("Authorization", "Bearer abc")
	tok, err := FromRequest(r)
	require.NoError(t, err)
	assert.Equal(t, "abc", tok)

	r.Header.Set("Authorization", "Basic abc")
	_, err = FromRequest(r)
	assert.ErrorIs(t, err, ErrInvalid)

	r = httptest.NewRequest(http.MethodGet, "/ws?token=q", nil)
	tok, err = FromRequest(r)
	require.NoError(t, err)
	assert.Equal(t, "q", tok)
}

func TestMiddleware(t *testing.T) {
	var seen string
	h := Middleware(secret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = UserID(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	token, err := Issue(secret, "user-9", time.Hour, time.Now())
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "user-9", seen)
}

func TestLoadToken(t *testing.T) {
	file := filepath.Join(t.TempDir(), "token")
	require.NoError(t, os.WriteFile(file, []byte("from-file\n"), 0o600))

	tok, err := LoadToken("from-flag", file)
	require.NoError(t, err)
	assert.Equal(t, "from-flag", tok)

	tok, err = LoadToken("", file)
	require.NoError(t, err)
	assert.Equal(t, "from-file", tok)

	tok, err = LoadToken("", filepath.Join(t.TempDir(), "missing"))
	require.NoError(t, err)
	assert.Empty(t, tok)
}
