package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndVerify(t *testing.T) {
	iss := NewIssuer("test-secret", time.Hour)
	token, err := iss.Issue(Identity{UserID: "u1", Email: "ada@example.com"})
	require.NoError(t, err)

	id, err := iss.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, Identity{UserID: "u1", Email: "ada@example.com"}, id)
}

func TestVerifyRejects(t *testing.T) {
	iss := NewIssuer("test-secret", time.Hour)
	good, err := iss.Issue(Identity{UserID: "u1"})
	require.NoError(t, err)

	other, err := NewIssuer("other-secret", time.Hour).Issue(Identity{UserID: "u1"})
	require.NoError(t, err)

	expiredIssuer := NewIssuer("test-secret", time.Hour)
	expiredIssuer.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	expired, err := expiredIssuer.Issue(Identity{UserID: "u1"})
	require.NoError(t, err)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{UserID: "u1"}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	noUser, err := iss.Issue(Identity{})
	require.NoError(t, err)

	for name, raw := range map[string]string{
		"garbage":        "not-a-token",
		"wrong secret":   other,
		"expired":        expired,
		"alg none":       none,
		"missing userId": noUser,
		"tampered":       good[:len(good)-2] + "xx",
	} {
		_, err := iss.Verify(raw)
		assert.ErrorIs(t, err, ErrInvalidToken, name)
	}
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("secret1")
	require.NoError(t, err)
	assert.NotEqual(t, "secret1", hash)
	assert.NoError(t, CheckPassword(hash, "secret1"))
	assert.ErrorIs(t, CheckPassword(hash, "wrong"), ErrBadCredentials)
}

func TestMiddleware(t *testing.T) {
	iss := NewIssuer("test-secret", time.Hour)
	token, err := iss.Issue(Identity{UserID: "u1", Email: "a@b.c"})
	require.NoError(t, err)

	var seen Identity
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := IdentityFromContext(r.Context())
		require.True(t, ok)
		seen = id
		w.WriteHeader(http.StatusNoContent)
	})
	var gotErr error
	onError := func(w http.ResponseWriter, _ *http.Request, err error) {
		gotErr = err
		w.WriteHeader(http.StatusUnauthorized)
	}
	h := Middleware(iss, onError)(next)

	cases := []struct {
		header string
		status int
		err    error
	}{
		{"", http.StatusUnauthorized, ErrMissingToken},
		{"Basic abc", http.StatusUnauthorized, ErrMissingToken},
		{"Bearer ", http.StatusUnauthorized, ErrMissingToken},
		{"Bearer nope", http.StatusUnauthorized, ErrInvalidToken},
		{"Bearer " + token, http.StatusNoContent, nil},
		{"bearer " + token, http.StatusNoContent, nil},
	}
	for _, tc := range cases {
		gotErr = nil
		req := httptest.NewRequest(http.MethodGet, "/expenses", nil)
		if tc.header != "" {
			req.Header.Set("Authorization", tc.header)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, tc.status, rec.Code, tc.header)
		if tc.err != nil {
			assert.True(t, errors.Is(gotErr, tc.err), "header %q: got %v", tc.header, gotErr)
		}
	}
	assert.Equal(t, "u1", seen.UserID)
}

func TestIdentityFromContextWithoutMiddleware(t *testing.T) {
	_, ok := IdentityFromContext(httptest.NewRequest(http.MethodGet, "/", nil).Context())
	assert.False(t, ok)
}
