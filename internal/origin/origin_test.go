package origin

import (
	"net/http/httptest"
	"testing"
)

func TestNormalizeHeader(t *testing.T) {
	t.Run("normalizes scheme and host and drops default port", func(t *testing.T) {
		normalized, host, ok := NormalizeHeader("HTTPS://Example.COM:443")
		if !ok {
			t.Fatalf("expected ok=true")
		}
		if normalized != "https://example.com" {
			t.Fatalf("normalized=%q, want %q", normalized, "https://example.com")
		}
		if host != "example.com" {
			t.Fatalf("host=%q, want %q", host, "example.com")
		}
	})

	t.Run("allows trailing slash", func(t *testing.T) {
		normalized, host, ok := NormalizeHeader("http://localhost:5173/")
		if !ok {
			t.Fatalf("expected ok=true")
		}
		if normalized != "http://localhost:5173" || host != "localhost:5173" {
			t.Fatalf("normalized=%q host=%q", normalized, host)
		}
	})

	t.Run("brackets ipv6 literals", func(t *testing.T) {
		normalized, host, ok := NormalizeHeader("http://[::1]:8080")
		if !ok {
			t.Fatalf("expected ok=true")
		}
		if normalized != "http://[::1]:8080" || host != "[::1]:8080" {
			t.Fatalf("normalized=%q host=%q", normalized, host)
		}
	})

	t.Run("allows null origin", func(t *testing.T) {
		normalized, host, ok := NormalizeHeader("null")
		if !ok || normalized != "null" || host != "" {
			t.Fatalf("normalized=%q host=%q ok=%v", normalized, host, ok)
		}
	})

	t.Run("rejects malformed origins", func(t *testing.T) {
		cases := []string{
			"",
			"example.com",
			"ftp://example.com",
			"https://example.com/path",
			"https://example.com/?q=1",
			"https://example.com?",
			"https://user@example.com",
			"https://example.com/#frag",
			"https://example.com:0",
			"https://example.com:70000",
			"https://example.com:",
			"http://::1",
		}
		for _, c := range cases {
			if _, _, ok := NormalizeHeader(c); ok {
				t.Fatalf("expected ok=false for %q", c)
			}
		}
	})
}

func TestIsAllowed(t *testing.T) {
	cases := []struct {
		name        string
		origin      string
		requestHost string
		allowed     []string
		want        bool
	}{
		{name: "same host", origin: "https://example.com", requestHost: "example.com", want: true},
		{name: "same host default port", origin: "https://example.com", requestHost: "example.com:443", want: true},
		{name: "scheme not compared", origin: "https://example.com", requestHost: "EXAMPLE.com", want: true},
		{name: "different port", origin: "http://localhost:5173", requestHost: "localhost:8080", want: false},
		{name: "different host", origin: "https://evil.example", requestHost: "example.com", want: false},
		{name: "null never same host", origin: "null", requestHost: "example.com", want: false},
		{name: "allow list hit", origin: "https://app.example", requestHost: "signal.example", allowed: []string{"https://app.example"}, want: true},
		{name: "allow list miss", origin: "https://evil.example", requestHost: "signal.example", allowed: []string{"https://app.example"}, want: false},
		{name: "allow list star", origin: "https://anything.example", requestHost: "signal.example", allowed: []string{"*"}, want: true},
		{name: "allow list null", origin: "null", requestHost: "signal.example", allowed: []string{"null"}, want: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			normalized, host, ok := NormalizeHeader(tc.origin)
			if !ok {
				t.Fatalf("NormalizeHeader(%q) failed", tc.origin)
			}
			if got := IsAllowed(normalized, host, tc.requestHost, tc.allowed); got != tc.want {
				t.Fatalf("IsAllowed=%v, want %v", got, tc.want)
			}
		})
	}
}

func TestCheck(t *testing.T) {
	req := httptest.NewRequest("GET", "http://signal.example/ws", nil)
	if !Check(req, nil) {
		t.Fatalf("requests without an Origin header should be allowed")
	}

	req.Header.Set("Origin", "http://signal.example")
	if !Check(req, nil) {
		t.Fatalf("same-host origin should be allowed")
	}

	req.Header.Set("Origin", "http://other.example")
	if Check(req, nil) {
		t.Fatalf("cross-host origin should be rejected")
	}

	req.Header.Set("Origin", "not an origin")
	if Check(req, []string{"*"}) {
		t.Fatalf("malformed origin should be rejected even with a wildcard")
	}
}
