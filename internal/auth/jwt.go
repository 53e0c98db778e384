// Package auth verifies the bearer tokens issued by the identity provider
// and carries the resulting identity through request contexts.
package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	apperrors "github.com/verse-scribe/internal/errors"
	"github.com/verse-scribe/internal/models"
)

// Claims are the token claims the service reads. The subject is the
// identity provider's user id.
type Claims struct {
	jwt.RegisteredClaims
	Email    string `json:"email,omitempty"`
	Name     string `json:"name,omitempty"`
	Picture  string `json:"picture,omitempty"`
	Provider string `json:"provider,omitempty"`
}

// Identity converts the claims to profile upsert input
func (c *Claims) Identity() models.ProfileIdentity {
	return models.ProfileIdentity{
		AuthUserID: c.Subject,
		Email:      c.Email,
		Name:       c.Name,
		AvatarURL:  c.Picture,
		Provider:   c.Provider,
	}
}

// Verifier validates HS256 bearer tokens
type Verifier struct {
	secret []byte
	issuer string
	now    func() time.Time
}

// NewVerifier creates a verifier. An empty issuer skips the issuer check.
func NewVerifier(secret, issuer string) *Verifier {
	return &Verifier{secret: []byte(secret), issuer: issuer, now: time.Now}
}

// Verify parses and validates a token. Every failure is AUTH_REQUIRED.
func (v *Verifier) Verify(tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, apperrors.NewAuthRequiredError("missing token")
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.now),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		reason := "invalid token"
		if errors.Is(err, jwt.ErrTokenExpired) {
			reason = "token expired"
		}
		return nil, apperrors.NewAuthRequiredError(reason)
	}
	if !token.Valid || claims.Subject == "" {
		return nil, apperrors.NewAuthRequiredError("invalid token")
	}

	return claims, nil
}

// BearerToken extracts the token from an Authorization header value
func BearerToken(header string) string {
	const prefix = "bearer "
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}

// GenerateToken signs a token for subject. Used by tests and local tooling.
func GenerateToken(secret, issuer, subject string, validity time.Duration, extra Claims) (string, error) {
	extra.RegisteredClaims = jwt.RegisteredClaims{
		Subject:   subject,
		Issuer:    issuer,
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(validity)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, extra).SignedString([]byte(secret))
}

type claimsKey struct{}

// WithClaims stores verified claims in the context
func WithClaims(ctx context.Context, c *Claims) context.Context {
	return context.WithValue(ctx, claimsKey{}, c)
}

// ClaimsFromContext returns the verified claims, if any
func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	c, ok := ctx.Value(claimsKey{}).(*Claims)
	return c, ok && c != nil
}

type userIDKey struct{}

// WithUserID stores the resolved profile id in the context
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey{}, userID)
}

// UserIDFromContext returns the resolved profile id, if any
func UserIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDKey{}).(string)
	return id, ok && id != ""
}
