package signaling

import (
	"net"
	"net/http"
	"strings"
)

// remoteIP derives the client address used to group peers on the same
// network. Proxy headers are consulted in order cf-connecting-ip, the first
// x-forwarded-for entry, then x-real-ip, and only when trustProxy is set.
func remoteIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if ip := normalizeIP(r.Header.Get("Cf-Connecting-Ip")); ip != "" {
			return ip
		}
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			if ip := normalizeIP(first); ip != "" {
				return ip
			}
		}
		if ip := normalizeIP(r.Header.Get("X-Real-Ip")); ip != "" {
			return ip
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return normalizeIP(host)
}

// normalizeIP canonicalizes an address so the same client always yields the
// same partition key. Unparseable input yields "", which never matches.
func normalizeIP(raw string) string {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimSuffix(strings.TrimPrefix(raw, "["), "]")
	ip := net.ParseIP(raw)
	if ip == nil {
		return ""
	}
	if v4 := ip.To4(); v4 != nil {
		return v4.String()
	}
	return ip.String()
}
