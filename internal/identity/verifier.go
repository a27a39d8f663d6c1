package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Verification failures are distinguishable so callers can return the right
// failure category without string matching.
var (
	ErrInvalidToken = errors.New("identity: invalid token")
	ErrExpiredToken = errors.New("identity: token expired")
	ErrRevokedToken = errors.New("identity: token revoked")
	// ErrMissingClaim is returned when the token verifies but lacks a claim
	// the caller declared required (currently only the subject).
	ErrMissingClaim = errors.New("identity: required claim missing")
)

// KeySource resolves a token's key ID to the RSA public key it was signed
// with. The production implementation (CertSource) fetches the provider's
// published certificate set over HTTP and caches it; tests inject a static
// source.
type KeySource interface {
	Key(ctx context.Context, kid string) (any, error)
}

// WatermarkSource reports the instant before which a user's previously
// issued tokens are considered revoked. Providers bump this watermark when
// an account's sessions are force-expired. Optional — without one the
// Verifier performs no revocation check.
type WatermarkSource interface {
	TokensValidAfter(ctx context.Context, uid string) (time.Time, error)
}

// idTokenClaims is the provider ID-token payload we care about. The token
// carries more; we only unmarshal what the reconciliation engine consumes.
type idTokenClaims struct {
	Name          string `json:"name"`
	Picture       string `json:"picture"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	PhoneNumber   string `json:"phone_number"`
	jwt.RegisteredClaims
}

// Verifier validates provider-issued ID tokens (RS256) and decodes them
// into normalized Claims.
//
// VALIDATION CHECKS:
//   - Signature against the provider's published key for the token's kid
//   - Algorithm is RS256 (jwt.WithValidMethods — prevents algorithm
//     confusion, same guard the session TokenService uses for HS256)
//   - Issuer and audience match the configured project
//   - Expiry is present and in the future
//   - Subject (the provider UID) is non-empty
//   - Issued-at is on or after the user's revocation watermark, when a
//     WatermarkSource is configured
type Verifier struct {
	keys       KeySource
	watermarks WatermarkSource // nil disables the revocation check
	issuer     string
	audience   string
}

// NewVerifier creates a Verifier for tokens issued by the given issuer to
// the given audience (the provider project ID).
func NewVerifier(keys KeySource, issuer, audience string) (*Verifier, error) {
	if keys == nil {
		return nil, errors.New("identity: key source must not be nil")
	}
	if issuer == "" || audience == "" {
		return nil, errors.New("identity: issuer and audience must be configured")
	}
	return &Verifier{keys: keys, issuer: issuer, audience: audience}, nil
}

// WithRevocationCheck returns a copy of the Verifier that consults the
// given watermark source on every successful parse.
func (v *Verifier) WithRevocationCheck(w WatermarkSource) *Verifier {
	dup := *v
	dup.watermarks = w
	return &dup
}

// Verify parses and validates a raw ID token.
//
// Error taxonomy: ErrExpiredToken for an otherwise-valid token past its
// expiry, ErrRevokedToken when the token predates the user's revocation
// watermark, ErrInvalidToken for everything else (bad signature, wrong
// issuer/audience, malformed). All three unwrap with errors.Is.
func (v *Verifier) Verify(ctx context.Context, raw string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(
		raw,
		&idTokenClaims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			kid, _ := token.Header["kid"].(string)
			if kid == "" {
				return nil, errors.New("token has no key ID")
			}
			return v.keys.Key(ctx, kid)
		},
		jwt.WithValidMethods([]string{"RS256"}),
		jwt.WithIssuer(v.issuer),
		jwt.WithAudience(v.audience),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: %v", ErrExpiredToken, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	tc, ok := token.Claims.(*idTokenClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if tc.Subject == "" {
		return nil, fmt.Errorf("%w: token has no subject", ErrMissingClaim)
	}

	if v.watermarks != nil {
		validAfter, err := v.watermarks.TokensValidAfter(ctx, tc.Subject)
		if err != nil {
			return nil, fmt.Errorf("identity: checking revocation for %s: %w", tc.Subject, err)
		}
		if tc.IssuedAt != nil && tc.IssuedAt.Time.Before(validAfter) {
			return nil, fmt.Errorf("%w: issued before %s", ErrRevokedToken, validAfter.Format(time.RFC3339))
		}
	}

	claims := &Claims{
		ExternalUID:   tc.Subject,
		Email:         tc.Email,
		DisplayName:   tc.Name,
		PhotoURL:      tc.Picture,
		EmailVerified: tc.EmailVerified,
		PhoneNumber:   tc.PhoneNumber,
	}
	claims.normalize()
	return claims, nil
}
