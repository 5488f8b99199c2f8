// Package auth handles the bearer credential used by the realtime transports
// and the reference events server.
package auth

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrNoCredential means no bearer token is available; the client must not
	// connect anonymously.
	ErrNoCredential = errors.New("no credential")
	// ErrExpired means the token's exp claim is in the past.
	ErrExpired = errors.New("credential expired")
	// ErrInvalid means the token failed signature or claim validation.
	ErrInvalid = errors.New("invalid credential")
)

const issuer = "herald"

// Claims are the JWT claims minted by Issue.
type Claims struct {
	jwt.RegisteredClaims
	UserID string `json:"user_id"`
}

// Credential is a client-side view of a bearer token.
type Credential struct {
	Token     string
	UserID    string
	ExpiresAt time.Time // zero for opaque tokens or tokens without exp
}

// ParseCredential inspects token without verifying its signature; only the
// server holds the secret. Tokens that are not JWTs are accepted as opaque
// credentials. An empty token yields ErrNoCredential and a JWT whose exp has
// passed yields ErrExpired.
func ParseCredential(token string, now time.Time) (Credential, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Credential{}, ErrNoCredential
	}

	cred := Credential{Token: token}

	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return cred, nil
	}

	cred.UserID = claims.UserID
	if cred.UserID == "" {
		cred.UserID = claims.Subject
	}
	if claims.ExpiresAt != nil {
		cred.ExpiresAt = claims.ExpiresAt.Time
		if !now.Before(cred.ExpiresAt) {
			return cred, ErrExpired
		}
	}

	return cred, nil
}

// Issue signs an HS256 token for userID valid for ttl.
func Issue(secret, userID string, ttl time.Duration, now time.Time) (string, error) {
	if secret == "" {
		return "", errors.New("signing secret is empty")
	}

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		UserID: userID,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify checks token's signature and expiry.
func Verify(secret, token string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))

	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, ErrExpired
	case err != nil:
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	case !parsed.Valid:
		return nil, ErrInvalid
	}

	if claims.UserID == "" {
		claims.UserID = claims.Subject
	}
	if claims.UserID == "" {
		return nil, fmt.Errorf("%w: missing user", ErrInvalid)
	}
	return claims, nil
}

// LoadToken returns flagValue when set, otherwise the trimmed contents of
// file. A missing file is not an error: it yields an empty token.
func LoadToken(flagValue, file string) (string, error) {
	if t := strings.TrimSpace(flagValue); t != "" {
		return t, nil
	}
	if file == "" {
		return "", nil
	}

	data, err := os.ReadFile(file)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("read token file: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}
