package turnrest

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"strings"
	"testing"
	"time"
)

func fixedNow() time.Time { return time.Unix(1_700_000_000, 0).UTC() }

func TestIssue_DeterministicWithFixedTime(t *testing.T) {
	iss := NewIssuer(IssuerConfig{
		SharedSecret: "shared-secret",
		Now:          fixedNow,
	})

	creds, ok := iss.Issue("u1", 3600)
	if !ok {
		t.Fatalf("Issue reported unavailable with a configured secret")
	}

	wantExpiry := int64(1_700_003_600)
	if creds.ExpiryUnix != wantExpiry {
		t.Fatalf("ExpiryUnix: got %d, want %d", creds.ExpiryUnix, wantExpiry)
	}
	wantUsername := "1700003600:u1"
	if creds.Username != wantUsername {
		t.Fatalf("Username: got %q, want %q", creds.Username, wantUsername)
	}
	wantCred := expectedCredential(t, []byte("shared-secret"), wantUsername)
	if creds.Credential != wantCred {
		t.Fatalf("Credential: got %q, want %q", creds.Credential, wantCred)
	}
}

func TestIssue_DefaultTTL(t *testing.T) {
	now := time.Unix(42, 0).UTC()
	iss := NewIssuer(IssuerConfig{
		SharedSecret: "secret",
		TTLSeconds:   10,
		Now:          func() time.Time { return now },
	})

	creds, ok := iss.Issue("abc", 0)
	if !ok {
		t.Fatalf("Issue: unavailable")
	}
	if creds.ExpiryUnix != now.Unix()+10 {
		t.Fatalf("ExpiryUnix: got %d, want %d", creds.ExpiryUnix, now.Unix()+10)
	}
	if iss.TTLSeconds() != 10 {
		t.Fatalf("TTLSeconds=%d, want 10", iss.TTLSeconds())
	}
}

func TestIssue_UnavailableWithoutSecret(t *testing.T) {
	for _, secret := range []string{"", "   "} {
		iss := NewIssuer(IssuerConfig{SharedSecret: secret})
		if iss.Available() {
			t.Fatalf("Available()=true for secret %q", secret)
		}
		if _, ok := iss.Issue("u1", 3600); ok {
			t.Fatalf("Issue ok=true for secret %q", secret)
		}
		if _, ok := iss.IssueAnonymous(); ok {
			t.Fatalf("IssueAnonymous ok=true for secret %q", secret)
		}
	}

	var nilIssuer *Issuer
	if _, ok := nilIssuer.Issue("u1", 10); ok {
		t.Fatalf("nil issuer should be unavailable")
	}
}

func TestIssueAnonymous_UsesUserIDSource(t *testing.T) {
	iss := NewIssuer(IssuerConfig{
		SharedSecret: "s",
		TTLSeconds:   60,
		Now:          fixedNow,
		userIDSource: func() (string, error) { return "anon", nil },
	})
	creds, ok := iss.IssueAnonymous()
	if !ok {
		t.Fatalf("IssueAnonymous: unavailable")
	}
	if creds.Username != "1700000060:anon" {
		t.Fatalf("Username=%q", creds.Username)
	}
}

func TestIssueAnonymous_RandomUserIDs(t *testing.T) {
	iss := NewIssuer(IssuerConfig{SharedSecret: "s", Now: fixedNow})
	a, _ := iss.IssueAnonymous()
	b, _ := iss.IssueAnonymous()
	if a.Username == b.Username {
		t.Fatalf("expected distinct random user ids, got %q twice", a.Username)
	}
	if !strings.HasPrefix(a.Username, "1700003600:") {
		t.Fatalf("Username=%q, want expiry prefix", a.Username)
	}
}

func expectedCredential(t *testing.T, secret []byte, username string) string {
	t.Helper()
	mac := hmac.New(sha1.New, secret)
	_, _ = mac.Write([]byte(username))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
