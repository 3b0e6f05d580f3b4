package turnrest

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1"
	"encoding/base64"
	"encoding/hex"
	"strconv"
	"strings"
	"time"
)

// This package implements coturn-compatible TURN REST credentials.
//
// See:
// - https://github.com/coturn/coturn/wiki/turnserver
// - https://datatracker.ietf.org/doc/html/draft-uberti-behave-turn-rest
//
// Algorithm (coturn use-auth-secret):
//
//	username   = <unix_expiry_timestamp>:<user_id>
//	credential = base64(hmac_sha1(shared_secret, username))
//
// Expiry is computed using the server clock in UTC:
//
//	unix_expiry_timestamp = now_utc_unix + ttl_seconds

// DefaultTTLSeconds matches the lifetime coturn deployments typically allow.
const DefaultTTLSeconds int64 = 3600

type IssuerConfig struct {
	// SharedSecret is coturn's static-auth-secret. When empty the issuer is
	// unavailable and Issue reports ok=false.
	SharedSecret string
	TTLSeconds   int64
	Now          func() time.Time

	userIDSource func() (string, error)
}

// Issuer mints ephemeral TURN credentials. It is safe for concurrent use.
type Issuer struct {
	sharedSecret []byte
	ttlSeconds   int64
	now          func() time.Time
	userIDSource func() (string, error)
}

func NewIssuer(cfg IssuerConfig) *Issuer {
	if cfg.TTLSeconds <= 0 {
		cfg.TTLSeconds = DefaultTTLSeconds
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.userIDSource == nil {
		cfg.userIDSource = cryptoRandomUserID
	}
	return &Issuer{
		sharedSecret: []byte(strings.TrimSpace(cfg.SharedSecret)),
		ttlSeconds:   cfg.TTLSeconds,
		now:          cfg.Now,
		userIDSource: cfg.userIDSource,
	}
}

type Credentials struct {
	Username   string
	Credential string
	ExpiryUnix int64
}

// Available reports whether a shared secret is configured.
func (i *Issuer) Available() bool {
	return i != nil && len(i.sharedSecret) > 0
}

// TTLSeconds is the lifetime used when Issue is called with a non-positive
// ttl.
func (i *Issuer) TTLSeconds() int64 {
	if i == nil {
		return 0
	}
	return i.ttlSeconds
}

// Issue returns credentials for userID valid for ttlSeconds (the configured
// TTL when ttlSeconds <= 0). ok is false when no shared secret is configured;
// TURN is optional, so callers degrade to STUN-only rather than failing.
func (i *Issuer) Issue(userID string, ttlSeconds int64) (creds Credentials, ok bool) {
	if !i.Available() {
		return Credentials{}, false
	}
	if ttlSeconds <= 0 {
		ttlSeconds = i.ttlSeconds
	}
	expiryUnix := i.now().UTC().Unix() + ttlSeconds
	username := strconv.FormatInt(expiryUnix, 10) + ":" + userID
	return Credentials{
		Username:   username,
		Credential: signUsername(i.sharedSecret, username),
		ExpiryUnix: expiryUnix,
	}, true
}

// IssueAnonymous issues credentials for a random user id. It backs the
// HTTP ICE endpoint, where the caller has no peer identity yet.
func (i *Issuer) IssueAnonymous() (Credentials, bool) {
	if !i.Available() {
		return Credentials{}, false
	}
	userID, err := i.userIDSource()
	if err != nil {
		return Credentials{}, false
	}
	return i.Issue(userID, 0)
}

func cryptoRandomUserID() (string, error) {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", err
	}
	return hex.EncodeToString(b[:]), nil
}

func signUsername(sharedSecret []byte, username string) string {
	mac := hmac.New(sha1.New, sharedSecret)
	_, _ = mac.Write([]byte(username))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
