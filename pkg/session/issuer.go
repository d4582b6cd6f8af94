// Package session mints and verifies the signed session tokens handed to the
// downstream application. Tokens are stateless: the issuer never persists
// them, and a token is reconstructible only by verification, never by lookup.
package session

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/Suhaibinator/GOAuthRelay/pkg/auth"
)

// Verification failures, distinct so clients can react to each kind.
var (
	// ErrMissing indicates no Authorization header was presented.
	ErrMissing = errors.New("no authorization token provided")
	// ErrMalformedHeader indicates an Authorization header without the
	// expected bearer framing.
	ErrMalformedHeader = errors.New("invalid authorization format, use: Bearer <token>")
	// ErrExpired indicates a well-formed token past its expiry.
	ErrExpired = errors.New("token has expired")
	// ErrInvalid indicates any other verification failure: bad signature,
	// wrong algorithm, malformed structure. No partial trust.
	ErrInvalid = errors.New("invalid token")
)

// DefaultLifetime is the fixed session token lifetime from issuance.
const DefaultLifetime = 30 * 24 * time.Hour

const bearerPrefix = "Bearer "

// Claims is the session token claim set.
type Claims struct {
	jwt.RegisteredClaims
	Email     string `json:"email"`
	Name      string `json:"name"`
	AvatarURL string `json:"picture"`
}

// Issuer signs and verifies session tokens with a single shared secret and
// algorithm (HS256).
type Issuer struct {
	secret   []byte
	lifetime time.Duration
	now      func() time.Time
}

// NewIssuer creates an Issuer signing with secret. A zero lifetime means
// DefaultLifetime; a negative lifetime issues already-expired tokens, which
// is only useful in tests.
func NewIssuer(secret string, lifetime time.Duration) *Issuer {
	if lifetime == 0 {
		lifetime = DefaultLifetime
	}
	return &Issuer{
		secret:   []byte(secret),
		lifetime: lifetime,
		now:      time.Now,
	}
}

// Issue mints a signed session token carrying the profile as claims.
func (i *Issuer) Issue(profile auth.Profile) (string, error) {
	now := i.now().UTC()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   profile.Subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.lifetime)),
		},
		Email:     profile.Email,
		Name:      profile.Name,
		AvatarURL: profile.AvatarURL,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}
	return signed, nil
}

// Verify checks the token's signature and expiry and returns the embedded
// claims reshaped into a profile view. Expiry is reported as ErrExpired;
// every other failure collapses to ErrInvalid.
func (i *Issuer) Verify(tokenString string) (auth.Profile, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(tokenString, &claims,
		func(t *jwt.Token) (any, error) { return i.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return auth.Profile{}, ErrExpired
		}
		return auth.Profile{}, ErrInvalid
	}

	return auth.Profile{
		Subject:   claims.Subject,
		Email:     claims.Email,
		Name:      claims.Name,
		AvatarURL: claims.AvatarURL,
	}, nil
}

// FromAuthorization extracts the bearer token from an Authorization header
// value. A missing header and a malformed one are reported distinctly from
// signature failures.
func FromAuthorization(header string) (string, error) {
	if header == "" {
		return "", ErrMissing
	}
	if !strings.HasPrefix(header, bearerPrefix) {
		return "", ErrMalformedHeader
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, bearerPrefix))
	if token == "" {
		return "", ErrMalformedHeader
	}
	return token, nil
}
