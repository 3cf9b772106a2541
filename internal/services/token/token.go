// Package token signs and verifies bearer session tokens.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMalformedToken   = errors.New("malformed_token")
	ErrInvalidSignature = errors.New("invalid_signature")
	ErrExpiredToken     = errors.New("expired_token")
	ErrInvalidClaims    = errors.New("invalid_claims")
)

// Claims carries the account identifier (Subject) plus issue and expiry
// times. IssuedAt is what the session resolver compares against the
// account's password-change cutoff.
type Claims struct {
	jwt.RegisteredClaims
}

// Config holds the signing settings. The secret is provided by
// configuration; the codec never reads the environment itself.
type Config struct {
	Secret   []byte
	Issuer   string
	Validity time.Duration
}

// Codec is a stateless sign/verify pair over HS256. Verification is a
// pure computation; no external state is consulted.
type Codec struct {
	secret   []byte
	issuer   string
	validity time.Duration
	parser   *jwt.Parser
}

func New(cfg Config) *Codec {
	return &Codec{
		secret:   cfg.Secret,
		issuer:   cfg.Issuer,
		validity: cfg.Validity,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithExpirationRequired(),
			jwt.WithStrictDecoding(),
			jwt.WithIssuer(cfg.Issuer),
		),
	}
}

// Sign issues a session token for the given account.
func (c *Codec) Sign(accountID string) (string, error) {
	now := time.Now()
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   accountID,
			Issuer:    c.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.validity)),
		},
	})

	signed, err := t.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}

	return signed, nil
}

// Verify parses and validates a session token. Failures map onto the
// malformed / bad-signature / expired / bad-claims taxonomy.
func (c *Codec) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}

	parsed, err := c.parser.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return c.secret, nil
	})
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrExpiredToken
		case errors.Is(err, jwt.ErrTokenMalformed):
			return nil, ErrMalformedToken
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return nil, ErrInvalidSignature
		case errors.Is(err, jwt.ErrTokenInvalidClaims):
			return nil, ErrInvalidClaims
		default:
			return nil, ErrMalformedToken
		}
	}

	if !parsed.Valid || claims.Subject == "" || claims.IssuedAt == nil {
		return nil, ErrInvalidClaims
	}

	return claims, nil
}
