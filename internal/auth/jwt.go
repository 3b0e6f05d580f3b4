package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken   = errors.New("invalid token")
	ErrUnsupportedJWT = fmt.Errorf("%w: unsupported jwt", ErrInvalidToken)
	ErrTokenExpired   = fmt.Errorf("%w: expired", ErrInvalidToken)
)

// Reconnect tokens are a few hundred bytes; anything much larger is not ours.
const maxTokenLen = 4 * 1024

// tokenClaims is the reconnect token payload: sub is the peer ID and
// connectionId the code held when the token was issued.
type tokenClaims struct {
	ConnectionID string `json:"connectionId,omitempty"`
	jwt.RegisteredClaims
}

func signHS256(secret []byte, claims tokenClaims) (string, error) {
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return token, nil
}

// parseHS256 checks signature and expiry. Only HS256 is accepted and exp is
// required.
func parseHS256(secret []byte, raw string, now func() time.Time) (*tokenClaims, error) {
	if raw == "" || len(raw) > maxTokenLen {
		return nil, ErrInvalidToken
	}

	claims := &tokenClaims{}
	token, err := jwt.ParseWithClaims(raw, claims,
		func(*jwt.Token) (any, error) { return secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(now),
	)
	switch {
	case err == nil:
		return claims, nil
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, fmt.Errorf("%w: %w", ErrTokenExpired, err)
	case token != nil && token.Header["alg"] != jwt.SigningMethodHS256.Alg():
		return nil, fmt.Errorf("%w: alg %v", ErrUnsupportedJWT, token.Header["alg"])
	default:
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
}
