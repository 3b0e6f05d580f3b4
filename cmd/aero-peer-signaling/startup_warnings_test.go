package main

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/pion/webrtc/v4"

	"github.com/wilsonzlin/aero/proxy/webrtc-peer-signaling/internal/config"
)

type recordedLog struct {
	level slog.Level
	msg   string
	attrs map[string]any
}

type recordingHandler struct {
	mu      *sync.Mutex
	records *[]recordedLog
	attrs   []slog.Attr
	groups  []string
}

func newRecordingLogger() (*slog.Logger, func() []recordedLog) {
	mu := &sync.Mutex{}
	records := &[]recordedLog{}
	h := &recordingHandler{mu: mu, records: records}
	logger := slog.New(h)
	return logger, func() []recordedLog {
		mu.Lock()
		defer mu.Unlock()
		out := make([]recordedLog, len(*records))
		copy(out, *records)
		return out
	}
}

func (h *recordingHandler) Enabled(context.Context, slog.Level) bool {
	return true
}

func (h *recordingHandler) Handle(_ context.Context, r slog.Record) error {
	rec := recordedLog{
		level: r.Level,
		msg:   r.Message,
		attrs: map[string]any{},
	}
	for _, a := range h.attrs {
		rec.attrs[h.key(a.Key)] = a.Value.Any()
	}
	r.Attrs(func(a slog.Attr) bool {
		rec.attrs[h.key(a.Key)] = a.Value.Any()
		return true
	})

	h.mu.Lock()
	*h.records = append(*h.records, rec)
	h.mu.Unlock()
	return nil
}

func (h *recordingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	nh := h.clone()
	nh.attrs = append(nh.attrs, attrs...)
	return nh
}

func (h *recordingHandler) WithGroup(name string) slog.Handler {
	nh := h.clone()
	nh.groups = append(nh.groups, name)
	return nh
}

func (h *recordingHandler) clone() *recordingHandler {
	return &recordingHandler{
		mu:      h.mu,
		records: h.records,
		attrs:   append([]slog.Attr(nil), h.attrs...),
		groups:  append([]string(nil), h.groups...),
	}
}

func (h *recordingHandler) key(k string) string {
	if len(h.groups) == 0 {
		return k
	}
	return strings.Join(h.groups, ".") + "." + k
}

func warningCodes(records []recordedLog) []string {
	var codes []string
	for _, r := range records {
		if r.level != slog.LevelWarn {
			continue
		}
		if code, ok := r.attrs["warning_code"].(string); ok {
			codes = append(codes, code)
		}
	}
	return codes
}

// safeProdConfig triggers no warnings.
func safeProdConfig() config.Config {
	return config.Config{
		Mode:                     config.ModeProd,
		ListenAddr:               "0.0.0.0:8080",
		AllowedOrigins:           []string{"https://aero.example"},
		AuthTokenSecret:          "secret",
		MaxPeers:                 1000,
		MaxSignalingMessageBytes: config.DefaultMaxSignalingMessageBytes,
		ICEServers: []webrtc.ICEServer{
			{URLs: []string{"stun:stun.example:3478"}},
			{URLs: []string{"turn:turn.example:3478"}, Username: "u", Credential: "p"},
		},
	}
}

func TestStartupSecurityWarnings_SafeConfigIsQuiet(t *testing.T) {
	logger, records := newRecordingLogger()
	logStartupSecurityWarnings(logger, safeProdConfig())
	if codes := warningCodes(records()); len(codes) != 0 {
		t.Fatalf("warnings = %v, want none", codes)
	}
}

func TestStartupSecurityWarnings(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{
			name:   "wildcard origin",
			mutate: func(c *config.Config) { c.AllowedOrigins = []string{"*"} },
			want:   "allowed_origins_wildcard",
		},
		{
			name:   "generated token secret",
			mutate: func(c *config.Config) { c.AuthTokenSecret = "" },
			want:   "auth_token_secret_generated_in_prod",
		},
		{
			name:   "unlimited peers",
			mutate: func(c *config.Config) { c.MaxPeers = 0 },
			want:   "max_peers_unlimited_in_prod",
		},
		{
			name: "turn without credentials",
			mutate: func(c *config.Config) {
				c.ICEServers = []webrtc.ICEServer{{URLs: []string{"turns:turn.example:5349"}}}
			},
			want: "turn_servers_without_credentials",
		},
		{
			name:   "large messages",
			mutate: func(c *config.Config) { c.MaxSignalingMessageBytes = 8 << 20 },
			want:   "max_signaling_message_bytes_large",
		},
		{
			name: "mdns on loopback",
			mutate: func(c *config.Config) {
				c.MDNSEnabled = true
				c.ListenAddr = "127.0.0.1:8080"
			},
			want: "mdns_loopback_listen",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			logger, records := newRecordingLogger()
			cfg := safeProdConfig()
			tc.mutate(&cfg)

			logStartupSecurityWarnings(logger, cfg)

			codes := warningCodes(records())
			if len(codes) != 1 || codes[0] != tc.want {
				t.Fatalf("warnings = %v, want [%s]", codes, tc.want)
			}
		})
	}
}

func TestStartupSecurityWarnings_TURNRESTCoversMissingCredentials(t *testing.T) {
	logger, records := newRecordingLogger()
	cfg := safeProdConfig()
	cfg.ICEServers = []webrtc.ICEServer{{URLs: []string{"turn:turn.example:3478"}}}
	cfg.TURNREST = config.TurnRESTConfig{SharedSecret: "s", TTLSeconds: 60}

	logStartupSecurityWarnings(logger, cfg)

	if codes := warningCodes(records()); len(codes) != 0 {
		t.Fatalf("warnings = %v, want none", codes)
	}
}

func TestStartupSecurityWarnings_DevModeSkipsProdChecks(t *testing.T) {
	logger, records := newRecordingLogger()
	cfg := safeProdConfig()
	cfg.Mode = config.ModeDev
	cfg.AuthTokenSecret = ""
	cfg.MaxPeers = 0

	logStartupSecurityWarnings(logger, cfg)

	if codes := warningCodes(records()); len(codes) != 0 {
		t.Fatalf("warnings = %v, want none", codes)
	}
}

func TestListensOnLoopback(t *testing.T) {
	cases := map[string]bool{
		"127.0.0.1:8080": true,
		"[::1]:8080":     true,
		"localhost:80":   true,
		"0.0.0.0:8080":   false,
		":8080":          false,
		"bad":            false,
	}
	for addr, want := range cases {
		if got := listensOnLoopback(addr); got != want {
			t.Errorf("listensOnLoopback(%q) = %v, want %v", addr, got, want)
		}
	}
}
