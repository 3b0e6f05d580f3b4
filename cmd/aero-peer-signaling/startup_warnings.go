package main

import (
	"log/slog"
	"net"
	"net/netip"

	"github.com/wilsonzlin/aero/proxy/webrtc-peer-signaling/internal/config"
)

// largeSignalingMessageBytes is well past any SDP or candidate a browser
// produces.
const largeSignalingMessageBytes = 1 << 20

func logStartupSecurityWarnings(logger *slog.Logger, cfg config.Config) {
	if logger == nil {
		return
	}

	if containsString(cfg.AllowedOrigins, "*") {
		logger.Warn("startup security warning: allowed origins includes '*'; any website can open signaling sessions",
			"warning_code", "allowed_origins_wildcard",
			"mode", cfg.Mode,
		)
	}

	if cfg.Mode == config.ModeProd && cfg.AuthTokenSecret == "" {
		logger.Warn("startup security warning: no auth token secret set; reconnect tokens will not survive restarts or work across replicas",
			"warning_code", "auth_token_secret_generated_in_prod",
			"mode", cfg.Mode,
		)
	}

	if cfg.Mode == config.ModeProd && cfg.MaxPeers <= 0 {
		logger.Warn("startup security warning: max peers is unlimited in prod",
			"warning_code", "max_peers_unlimited_in_prod",
			"mode", cfg.Mode,
		)
	}

	if !cfg.TURNREST.Enabled() {
		for _, s := range cfg.ICEServers {
			if !config.IsTURNServer(s) {
				continue
			}
			cred, _ := s.Credential.(string)
			if s.Username == "" || cred == "" {
				logger.Warn("startup security warning: TURN server configured without credentials",
					"warning_code", "turn_servers_without_credentials",
					"mode", cfg.Mode,
					"urls", s.URLs,
				)
				break
			}
		}
	}

	if cfg.MaxSignalingMessageBytes > largeSignalingMessageBytes {
		logger.Warn("startup security warning: max signaling message size is large",
			"warning_code", "max_signaling_message_bytes_large",
			"mode", cfg.Mode,
			"max_signaling_message_bytes", cfg.MaxSignalingMessageBytes,
		)
	}

	if cfg.MDNSEnabled && listensOnLoopback(cfg.ListenAddr) {
		logger.Warn("startup warning: mDNS is enabled but the listen address is loopback; LAN peers cannot reach it",
			"warning_code", "mdns_loopback_listen",
			"mode", cfg.Mode,
			"listen_addr", cfg.ListenAddr,
		)
	}
}

func listensOnLoopback(addr string) bool {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return false
	}
	if host == "localhost" {
		return true
	}
	ip, err := netip.ParseAddr(host)
	return err == nil && ip.IsLoopback()
}

func containsString(list []string, want string) bool {
	for _, v := range list {
		if v == want {
			return true
		}
	}
	return false
}
