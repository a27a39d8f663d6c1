package identity

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	sessionIssuer = "rupantar-backend"

	// Session lifetime. Clients re-authenticate through the provider when
	// it lapses, so there is no refresh-token machinery here.
	sessionTTL = 24 * time.Hour
)

// TokenService issues and validates the session JWTs this API hands back
// after a successful login or reconciliation.
//
// These are OUR tokens, distinct from the provider ID tokens the Verifier
// consumes: HS256 with a local secret, subject = internal user ID. The
// server verifies them without any store lookup.
type TokenService struct {
	secret []byte
}

// NewTokenService creates a TokenService with the given secret.
// The secret should be at least 32 bytes of random data in production.
// Example: JWT_SECRET=$(openssl rand -hex 32)
func NewTokenService(secret string) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, errors.New("identity: JWT secret must be at least 16 characters")
	}
	return &TokenService{secret: []byte(secret)}, nil
}

// sessionClaims embeds jwt.RegisteredClaims; the internal user ID travels
// in the standard "sub" claim.
type sessionClaims struct {
	jwt.RegisteredClaims
}

// Generate creates and signs a session token for the given userID.
func (s *TokenService) Generate(userID string) (string, error) {
	return s.GenerateWithDuration(userID, sessionTTL)
}

// GenerateWithDuration creates a token with a custom expiry duration.
// Used in tests and by the bootstrap command for short-lived admin tokens.
func (s *TokenService) GenerateWithDuration(userID string, d time.Duration) (string, error) {
	now := time.Now()

	c := sessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(d)),
			Issuer:    sessionIssuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("identity: signing session token: %w", err)
	}

	return signed, nil
}

// Validate parses and verifies a session token string, returning the
// userID stored in the "sub" claim.
//
// jwt.WithValidMethods pins HS256 — without it an attacker could present a
// token signed with a different algorithm and hope the library accepts it.
func (s *TokenService) Validate(tokenStr string) (string, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&sessionClaims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("identity: unexpected signing method: %v", token.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(sessionIssuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", fmt.Errorf("identity: session token expired")
		}
		return "", fmt.Errorf("identity: invalid session token: %w", err)
	}

	c, ok := token.Claims.(*sessionClaims)
	if !ok || !token.Valid {
		return "", fmt.Errorf("identity: invalid session token claims")
	}

	if c.Subject == "" {
		return "", fmt.Errorf("identity: session token has no subject")
	}

	return c.Subject, nil
}
