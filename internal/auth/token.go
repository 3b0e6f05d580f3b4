// Package auth issues and checks the short-lived reconnect tokens handed to
// peers in the CONNECT acknowledgement.
package auth

import (
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// DefaultTokenTTL bounds the reconnect window.
const DefaultTokenTTL = 2 * time.Minute

type TokenConfig struct {
	// Secret signs every token issued by this process. When empty a random
	// secret is generated, so tokens do not survive a restart.
	Secret string
	TTL    time.Duration
	Now    func() time.Time
}

// TokenService mints and verifies HS256 reconnect tokens. The subject is the
// peer ID and the connectionId claim carries the peer's connection code.
type TokenService struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time

	generatedSecret bool
}

func NewTokenService(cfg TokenConfig) (*TokenService, error) {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTokenTTL
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	s := &TokenService{
		secret: []byte(cfg.Secret),
		ttl:    cfg.TTL,
		now:    cfg.Now,
	}
	if len(s.secret) == 0 {
		s.secret = make([]byte, 32)
		if _, err := rand.Read(s.secret); err != nil {
			return nil, fmt.Errorf("generate token secret: %w", err)
		}
		s.generatedSecret = true
	}
	return s, nil
}

// GeneratedSecret reports whether the service is using a per-process random
// secret.
func (s *TokenService) GeneratedSecret() bool { return s.generatedSecret }

func (s *TokenService) Issue(peerID uuid.UUID, connectionID string) (string, error) {
	if peerID == uuid.Nil {
		return "", errors.New("peer id is required")
	}
	jti, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	now := s.now()
	return signHS256(s.secret, tokenClaims{
		ConnectionID: connectionID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   peerID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			ID:        jti.String(),
		},
	})
}

// Verify checks signature and expiry only.
func (s *TokenService) Verify(token string) error {
	_, err := s.verify(token)
	return err
}

// Parse verifies token and returns its peer ID and connection code.
func (s *TokenService) Parse(token string) (uuid.UUID, string, error) {
	claims, err := s.verify(token)
	if err != nil {
		return uuid.Nil, "", err
	}
	peerID, err := uuid.Parse(claims.Subject)
	if err != nil || peerID == uuid.Nil {
		return uuid.Nil, "", fmt.Errorf("%w: subject is not a peer id", ErrInvalidToken)
	}
	return peerID, claims.ConnectionID, nil
}

func (s *TokenService) verify(token string) (*tokenClaims, error) {
	return parseHS256(s.secret, token, s.now)
}
