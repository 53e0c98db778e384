package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/verse-scribe/internal/errors"
)

const testSecret = "super-secret"

func TestVerify_Success(t *testing.T) {
	t.Parallel()

	tok, err := GenerateToken(testSecret, "", "kakao|42", time.Hour, Claims{
		Email: "ruth@example.com", Name: "Ruth", Provider: "kakao",
	})
	require.NoError(t, err)

	claims, err := NewVerifier(testSecret, "").Verify(tok)
	require.NoError(t, err)
	assert.Equal(t, "kakao|42", claims.Subject)

	id := claims.Identity()
	assert.Equal(t, "kakao|42", id.AuthUserID)
	assert.Equal(t, "ruth@example.com", id.Email)
	assert.Equal(t, "Ruth", id.Name)
	assert.Equal(t, "kakao", id.Provider)
}

func TestVerify_Failures(t *testing.T) {
	t.Parallel()

	valid, err := GenerateToken(testSecret, "https://idp.example", "u1", time.Hour, Claims{})
	require.NoError(t, err)
	expired, err := GenerateToken(testSecret, "", "u1", -time.Minute, Claims{})
	require.NoError(t, err)
	noSubject, err := GenerateToken(testSecret, "", "", time.Hour, Claims{})
	require.NoError(t, err)
	noExpiry, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "u1"},
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)
	wrongAlg, err := jwt.NewWithClaims(jwt.SigningMethodHS512, Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "u1", ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)

	tests := []struct {
		name     string
		verifier *Verifier
		token    string
		reason   string
	}{
		{"missing", NewVerifier(testSecret, ""), "", "missing token"},
		{"malformed", NewVerifier(testSecret, ""), "not.a.jwt", "invalid token"},
		{"wrong secret", NewVerifier("other", ""), valid, "invalid token"},
		{"wrong issuer", NewVerifier(testSecret, "https://other.example"), valid, "invalid token"},
		{"expired", NewVerifier(testSecret, ""), expired, "token expired"},
		{"no subject", NewVerifier(testSecret, ""), noSubject, "invalid token"},
		{"no expiry", NewVerifier(testSecret, ""), noExpiry, "invalid token"},
		{"wrong algorithm", NewVerifier(testSecret, ""), wrongAlg, "invalid token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.verifier.Verify(tt.token)
			require.Error(t, err)
			assert.True(t, apperrors.IsAuthRequired(err))
			assert.Equal(t, tt.reason, apperrors.Categorize(err).Details["reason"])
		})
	}
}

func TestVerify_IssuerMatches(t *testing.T) {
	t.Parallel()

	tok, err := GenerateToken(testSecret, "https://idp.example", "u1", time.Hour, Claims{})
	require.NoError(t, err)

	_, err = NewVerifier(testSecret, "https://idp.example").Verify(tok)
	assert.NoError(t, err)
}

func TestBearerToken(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "abc", BearerToken("Bearer abc"))
	assert.Equal(t, "abc", BearerToken("bearer   abc "))
	assert.Equal(t, "", BearerToken("Basic abc"))
	assert.Equal(t, "", BearerToken("Bearer"))
	assert.Equal(t, "", BearerToken(""))
}

func TestContextHelpers(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	_, ok := ClaimsFromContext(ctx)
	assert.False(t, ok)
	_, ok = UserIDFromContext(ctx)
	assert.False(t, ok)

	claims := &Claims{}
	claims.Subject = "u1"
	ctx = WithUserID(WithClaims(ctx, claims), "profile-1")

	got, ok := ClaimsFromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, "u1", got.Subject)
	id, ok := UserIDFromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, "profile-1", id)
}
