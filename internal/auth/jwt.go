package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrTokenMissing = errors.New("missing token")
	ErrTokenExpired = errors.New("token has expired")
	ErrTokenInvalid = errors.New("invalid token")
)

// SessionClaims are the claims carried by a session token.
type SessionClaims struct {
	UserID string `json:"uid"`
	jwt.RegisteredClaims
}

// TokenIssuer mints and verifies signed session tokens. Tokens are
// self-contained: validity is determined purely by signature and expiry.
type TokenIssuer struct {
	secret    []byte
	expiresIn time.Duration
}

// NewTokenIssuer creates a new TokenIssuer instance.
func NewTokenIssuer(secret string, expiresIn time.Duration) TokenIssuer {
	return TokenIssuer{
		secret:    []byte(secret),
		expiresIn: expiresIn,
	}
}

// Generate signs a session token binding the given user id, expiring
// expiresIn from now.
func (i TokenIssuer) Generate(userID string) (string, error) {
	now := time.Now()
	claims := SessionClaims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.expiresIn)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	tokenStr, err := token.SignedString(i.secret)
	if err != nil {
		return "", err
	}

	return tokenStr, nil
}

// Verify validates a session token and returns the bound user id. Failure
// causes are tagged: ErrTokenMissing for an empty token, ErrTokenExpired for
// an expired one, ErrTokenInvalid for anything else (malformed token, bad
// signature, missing user id).
func (i TokenIssuer) Verify(tokenStr string) (string, error) {
	if tokenStr == "" {
		return "", ErrTokenMissing
	}

	claims := &SessionClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}

		return i.secret, nil
	},
		jwt.WithExpirationRequired(),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrTokenExpired
		}

		return "", ErrTokenInvalid
	}

	if !token.Valid || claims.UserID == "" {
		return "", ErrTokenInvalid
	}

	return claims.UserID, nil
}
