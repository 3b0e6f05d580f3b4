package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/spf13/pflag"

	"github.com/wilsonzlin/aero/proxy/webrtc-peer-signaling/internal/origin"
)

const (
	envVarConfigFile        = "AERO_PEER_SIGNALING_CONFIG"
	envVarListenAddr        = "AERO_PEER_SIGNALING_LISTEN_ADDR"
	envVarAllowedOrigins    = "ALLOWED_ORIGINS"
	envVarLogFormat         = "AERO_PEER_SIGNALING_LOG_FORMAT"
	envVarLogLevel          = "AERO_PEER_SIGNALING_LOG_LEVEL"
	envVarShutdownTimeout   = "AERO_PEER_SIGNALING_SHUTDOWN_TIMEOUT"
	envVarMode              = "AERO_PEER_SIGNALING_MODE"
	envVarSignalPath        = "AERO_PEER_SIGNALING_SIGNAL_PATH"
	envVarTrustProxyHeaders = "AERO_PEER_SIGNALING_TRUST_PROXY_HEADERS"
	envVarMaxPeers          = "MAX_PEERS"
	envVarConnectionIDLen   = "AERO_PEER_SIGNALING_CONNECTION_ID_LENGTH"

	// Liveness.
	envVarHeartbeatInterval         = "AERO_PEER_SIGNALING_HEARTBEAT_INTERVAL"
	envVarHeartbeatMaxMissed        = "AERO_PEER_SIGNALING_HEARTBEAT_MAX_MISSED"
	envVarPeerStaleAfter            = "AERO_PEER_SIGNALING_PEER_STALE_AFTER"
	envVarCredentialRefreshInterval = "AERO_PEER_SIGNALING_CREDENTIAL_REFRESH_INTERVAL"

	// Reconnect tokens.
	envVarAuthTokenSecret = "AUTH_TOKEN_SECRET"
	envVarAuthTokenTTL    = "AUTH_TOKEN_TTL"

	// coturn TURN REST (ephemeral) credentials.
	envVarTURNRESTSharedSecret = "TURN_REST_SHARED_SECRET"
	envVarTURNRESTTTLSeconds   = "TURN_REST_TTL_SECONDS"

	// WebSocket hardening.
	envVarMaxSignalingMessageBytes      = "MAX_SIGNALING_MESSAGE_BYTES"
	envVarMaxSignalingMessagesPerSecond = "MAX_SIGNALING_MESSAGES_PER_SECOND"
	envVarSendQueueBytes                = "SEND_QUEUE_BYTES"

	envVarMDNS         = "AERO_PEER_SIGNALING_MDNS"
	envVarMDNSInstance = "AERO_PEER_SIGNALING_MDNS_INSTANCE"

	DefaultListenAddr           = "127.0.0.1:8080"
	DefaultShutdown             = 15 * time.Second
	DefaultMode            Mode = ModeDev
	DefaultSignalPath           = "/ws"
	DefaultConnectionIDLength   = 6
	MinConnectionIDLength       = 4
	MaxConnectionIDLength       = 32

	DefaultHeartbeatInterval         = 15 * time.Second
	DefaultHeartbeatMaxMissed        = 3
	DefaultCredentialRefreshInterval = 60 * time.Second

	DefaultAuthTokenTTL = 2 * time.Minute

	DefaultMaxSignalingMessageBytes      = int64(64 * 1024)
	DefaultMaxSignalingMessagesPerSecond = 50
	DefaultSendQueueBytes                = 1 << 20 // 1MiB

	DefaultTURNRESTTTLSeconds int64 = 3600

	DefaultMDNSInstance = "aero-peer-signaling"
)

type Mode string

const (
	ModeDev  Mode = "dev"
	ModeProd Mode = "prod"
)

type LogFormat string

const (
	LogFormatText LogFormat = "text"
	LogFormatJSON LogFormat = "json"
)

type TurnRESTConfig struct {
	SharedSecret string
	TTLSeconds   int64
}

func (c TurnRESTConfig) Enabled() bool {
	return c.SharedSecret != ""
}

type Config struct {
	ListenAddr string
	// AllowedOrigins is the list of normalized browser origins allowed to open
	// the signaling WebSocket. Empty means same-host only; "*" allows any.
	AllowedOrigins  []string
	LogFormat       LogFormat
	LogLevel        slog.Level
	ShutdownTimeout time.Duration
	Mode            Mode
	ConfigFile      string

	SignalPath         string
	TrustProxyHeaders  bool
	MaxPeers           int
	ConnectionIDLength int

	HeartbeatInterval         time.Duration
	HeartbeatMaxMissed        int
	PeerStaleAfter            time.Duration
	CredentialRefreshInterval time.Duration

	AuthTokenSecret string
	AuthTokenTTL    time.Duration

	TURNREST TurnRESTConfig

	ICEServers []webrtc.ICEServer

	MaxSignalingMessageBytes      int64
	MaxSignalingMessagesPerSecond int
	SendQueueBytes                int

	MDNSEnabled  bool
	MDNSInstance string

	iceConfigErr error

	// Kept so WatchFile can rerun the same layering against a changed file.
	args   []string
	lookup func(string) (string, bool)
}

// ICEConfigError returns the error encountered while parsing ICE settings.
// The process still starts so /readyz can report it.
func (c Config) ICEConfigError() error {
	return c.iceConfigErr
}

func Load(args []string) (Config, error) {
	return load(os.LookupEnv, args)
}

func load(envLookup func(string) (string, bool), args []string) (Config, error) {
	configFile := configFileFromArgs(args)
	if configFile == "" {
		configFile = envOrDefault(envLookup, envVarConfigFile, "")
	}

	lookup := envLookup
	if configFile != "" {
		fc, err := LoadFile(configFile)
		if err != nil {
			return Config{}, err
		}
		values := fc.values()
		lookup = func(key string) (string, bool) {
			if v, ok := envLookup(key); ok && v != "" {
				return v, true
			}
			v, ok := values[key]
			return v, ok
		}
	}

	cfg, err := parse(lookup, args)
	if err != nil {
		return Config{}, err
	}
	cfg.ConfigFile = configFile
	cfg.args = args
	cfg.lookup = envLookup
	return cfg, nil
}

// Reload re-reads the config file and environment with the original
// command-line arguments.
func (c Config) Reload() (Config, error) {
	lookup := c.lookup
	if lookup == nil {
		lookup = os.LookupEnv
	}
	return load(lookup, c.args)
}

func parse(lookup func(string) (string, bool), args []string) (Config, error) {
	envMode, _ := lookup(envVarMode)
	modeDefault := string(DefaultMode)
	if envMode != "" {
		modeDefault = envMode
	}

	envLogFormat, envLogFormatOK := lookup(envVarLogFormat)
	envLogFormatSet := envLogFormatOK && envLogFormat != ""
	logFormatDefault := envLogFormat
	if !envLogFormatSet {
		logFormatDefault = defaultLogFormatForMode(modeDefault)
	}

	envLogLevel, envLogLevelOK := lookup(envVarLogLevel)
	envLogLevelSet := envLogLevelOK && envLogLevel != ""
	logLevelDefault := envLogLevel
	if !envLogLevelSet {
		logLevelDefault = defaultLogLevelForMode(modeDefault)
	}

	listenAddr := envOrDefault(lookup, envVarListenAddr, DefaultListenAddr)
	allowedOriginsStr := envOrDefault(lookup, envVarAllowedOrigins, "")
	signalPath := envOrDefault(lookup, envVarSignalPath, DefaultSignalPath)
	iceServersJSON := envOrDefault(lookup, envICEServersJSON, "")
	stunURLs := envOrDefault(lookup, envStunURLs, "")
	turnURLs := envOrDefault(lookup, envTurnURLs, "")
	turnUsername := envOrDefault(lookup, envTurnUsername, "")
	turnCredential := envOrDefault(lookup, envTurnCredential, "")
	authTokenSecret := envOrDefault(lookup, envVarAuthTokenSecret, "")
	turnRESTSharedSecret := envOrDefault(lookup, envVarTURNRESTSharedSecret, "")
	mdnsInstance := envOrDefault(lookup, envVarMDNSInstance, DefaultMDNSInstance)

	shutdownTimeout, err := envDurationOrDefault(lookup, envVarShutdownTimeout, DefaultShutdown)
	if err != nil {
		return Config{}, err
	}
	heartbeatInterval, err := envDurationOrDefault(lookup, envVarHeartbeatInterval, DefaultHeartbeatInterval)
	if err != nil {
		return Config{}, err
	}
	peerStaleAfter, err := envDurationOrDefault(lookup, envVarPeerStaleAfter, 0)
	if err != nil {
		return Config{}, err
	}
	credentialRefreshInterval, err := envDurationOrDefault(lookup, envVarCredentialRefreshInterval, DefaultCredentialRefreshInterval)
	if err != nil {
		return Config{}, err
	}
	authTokenTTL, err := envDurationOrDefault(lookup, envVarAuthTokenTTL, DefaultAuthTokenTTL)
	if err != nil {
		return Config{}, err
	}

	heartbeatMaxMissed, err := envIntOrDefault(lookup, envVarHeartbeatMaxMissed, DefaultHeartbeatMaxMissed)
	if err != nil {
		return Config{}, err
	}
	maxPeers, err := envIntOrDefault(lookup, envVarMaxPeers, 0)
	if err != nil {
		return Config{}, err
	}
	connectionIDLength, err := envIntOrDefault(lookup, envVarConnectionIDLen, DefaultConnectionIDLength)
	if err != nil {
		return Config{}, err
	}
	maxSignalingMessagesPerSecond, err := envIntOrDefault(lookup, envVarMaxSignalingMessagesPerSecond, DefaultMaxSignalingMessagesPerSecond)
	if err != nil {
		return Config{}, err
	}
	sendQueueBytes, err := envIntOrDefault(lookup, envVarSendQueueBytes, DefaultSendQueueBytes)
	if err != nil {
		return Config{}, err
	}

	maxSignalingMessageBytes := DefaultMaxSignalingMessageBytes
	if raw, ok := lookup(envVarMaxSignalingMessageBytes); ok && strings.TrimSpace(raw) != "" {
		n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s %q: %w", envVarMaxSignalingMessageBytes, raw, err)
		}
		maxSignalingMessageBytes = n
	}
	turnRESTTTLSeconds := DefaultTURNRESTTTLSeconds
	if raw, ok := lookup(envVarTURNRESTTTLSeconds); ok && strings.TrimSpace(raw) != "" {
		n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s %q: %w", envVarTURNRESTTTLSeconds, raw, err)
		}
		turnRESTTTLSeconds = n
	}

	trustProxyHeaders, err := envBoolOrDefault(lookup, envVarTrustProxyHeaders, true)
	if err != nil {
		return Config{}, err
	}
	mdnsEnabled, err := envBoolOrDefault(lookup, envVarMDNS, false)
	if err != nil {
		return Config{}, err
	}

	var (
		modeStr      string
		logFormatStr string
		logLevelStr  string
		configFlag   string
	)

	fs := pflag.NewFlagSet("aero-peer-signaling", pflag.ContinueOnError)
	fs.SortFlags = false
	fs.StringVar(&configFlag, "config", "", "Path to a YAML config file (env "+envVarConfigFile+")")
	fs.StringVar(&listenAddr, "listen-addr", listenAddr, "HTTP listen address (host:port)")
	fs.StringVar(&allowedOriginsStr, "allowed-origins", allowedOriginsStr, "Comma-separated list of allowed browser origins (env "+envVarAllowedOrigins+")")
	fs.StringVar(&modeStr, "mode", modeDefault, "Run mode: dev or prod")
	fs.StringVar(&logFormatStr, "log-format", logFormatDefault, "Log format: text or json")
	fs.StringVar(&logLevelStr, "log-level", logLevelDefault, "Log level: debug, info, warn, error")
	fs.DurationVar(&shutdownTimeout, "shutdown-timeout", shutdownTimeout, "Graceful shutdown timeout (e.g. 15s)")
	fs.StringVar(&signalPath, "signal-path", signalPath, "HTTP path of the signaling WebSocket (env "+envVarSignalPath+")")
	fs.BoolVar(&trustProxyHeaders, "trust-proxy-headers", trustProxyHeaders, "Derive the client IP from cf-connecting-ip / x-forwarded-for / x-real-ip (env "+envVarTrustProxyHeaders+")")
	fs.IntVar(&maxPeers, "max-peers", maxPeers, "Maximum concurrent sessions (0 = unlimited; env "+envVarMaxPeers+")")
	fs.IntVar(&connectionIDLength, "connection-id-length", connectionIDLength, "Length of manual connection codes (env "+envVarConnectionIDLen+")")
	fs.DurationVar(&heartbeatInterval, "heartbeat-interval", heartbeatInterval, "Interval between WebSocket ping probes (env "+envVarHeartbeatInterval+")")
	fs.IntVar(&heartbeatMaxMissed, "heartbeat-max-missed", heartbeatMaxMissed, "Evict a peer after this many unanswered probes (env "+envVarHeartbeatMaxMissed+")")
	fs.DurationVar(&peerStaleAfter, "peer-stale-after", peerStaleAfter, "Evict peers not seen for this long (0 = disabled; env "+envVarPeerStaleAfter+")")
	fs.DurationVar(&credentialRefreshInterval, "credential-refresh-interval", credentialRefreshInterval, "Push fresh reconnect tokens and TURN credentials at this interval (0 = disabled; env "+envVarCredentialRefreshInterval+")")
	fs.StringVar(&authTokenSecret, "auth-token-secret", authTokenSecret, "HMAC secret for reconnect tokens (random per process when empty; env "+envVarAuthTokenSecret+")")
	fs.DurationVar(&authTokenTTL, "auth-token-ttl", authTokenTTL, "Reconnect token lifetime (env "+envVarAuthTokenTTL+")")
	fs.StringVar(&iceServersJSON, "ice-servers-json", iceServersJSON, "ICE server JSON config ("+envICEServersJSON+")")
	fs.StringVar(&stunURLs, "stun-urls", stunURLs, "comma-separated STUN URLs ("+envStunURLs+")")
	fs.StringVar(&turnURLs, "turn-urls", turnURLs, "comma-separated TURN URLs ("+envTurnURLs+")")
	fs.StringVar(&turnUsername, "turn-username", turnUsername, "TURN username ("+envTurnUsername+")")
	fs.StringVar(&turnCredential, "turn-credential", turnCredential, "TURN credential ("+envTurnCredential+")")
	fs.StringVar(&turnRESTSharedSecret, "turn-rest-shared-secret", turnRESTSharedSecret, "TURN REST shared secret ("+envVarTURNRESTSharedSecret+")")
	fs.Int64Var(&turnRESTTTLSeconds, "turn-rest-ttl-seconds", turnRESTTTLSeconds, "TURN REST credential TTL seconds ("+envVarTURNRESTTTLSeconds+")")
	fs.Int64Var(&maxSignalingMessageBytes, "max-signaling-message-bytes", maxSignalingMessageBytes, "Max inbound signaling WS message size in bytes (env "+envVarMaxSignalingMessageBytes+")")
	fs.IntVar(&maxSignalingMessagesPerSecond, "max-signaling-messages-per-second", maxSignalingMessagesPerSecond, "Max inbound signaling WS messages per second (env "+envVarMaxSignalingMessagesPerSecond+")")
	fs.IntVar(&sendQueueBytes, "send-queue-bytes", sendQueueBytes, "Max queued outbound bytes per session before it is evicted (env "+envVarSendQueueBytes+")")
	fs.BoolVar(&mdnsEnabled, "mdns", mdnsEnabled, "Advertise the signaling endpoint on the LAN via mDNS (env "+envVarMDNS+")")
	fs.StringVar(&mdnsInstance, "mdns-instance", mdnsInstance, "mDNS instance name (env "+envVarMDNSInstance+")")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	mode, err := parseMode(modeStr)
	if err != nil {
		return Config{}, err
	}

	if !envLogFormatSet && !fs.Changed("log-format") {
		logFormatStr = defaultLogFormatForMode(string(mode))
	}
	if !envLogLevelSet && !fs.Changed("log-level") {
		logLevelStr = defaultLogLevelForMode(string(mode))
	}

	logFormat, err := parseLogFormat(logFormatStr)
	if err != nil {
		return Config{}, err
	}
	level, err := parseLogLevel(logLevelStr)
	if err != nil {
		return Config{}, err
	}

	allowedOrigins, err := parseAllowedOrigins(allowedOriginsStr)
	if err != nil {
		return Config{}, fmt.Errorf("invalid %s: %w", envVarAllowedOrigins, err)
	}

	if strings.TrimSpace(listenAddr) == "" {
		return Config{}, errors.New("listen address must not be empty")
	}
	if shutdownTimeout <= 0 {
		return Config{}, fmt.Errorf("shutdown timeout must be > 0 (got %s)", shutdownTimeout)
	}
	signalPath = strings.TrimSpace(signalPath)
	if !strings.HasPrefix(signalPath, "/") {
		return Config{}, fmt.Errorf("invalid %s %q (must start with /)", envVarSignalPath, signalPath)
	}
	if maxPeers < 0 {
		return Config{}, fmt.Errorf("%s must be >= 0 (got %d)", envVarMaxPeers, maxPeers)
	}
	if connectionIDLength < MinConnectionIDLength || connectionIDLength > MaxConnectionIDLength {
		return Config{}, fmt.Errorf("%s must be between %d and %d (got %d)", envVarConnectionIDLen, MinConnectionIDLength, MaxConnectionIDLength, connectionIDLength)
	}
	if heartbeatInterval <= 0 {
		return Config{}, fmt.Errorf("%s must be > 0 (got %s)", envVarHeartbeatInterval, heartbeatInterval)
	}
	if heartbeatMaxMissed <= 0 {
		return Config{}, fmt.Errorf("%s must be > 0 (got %d)", envVarHeartbeatMaxMissed, heartbeatMaxMissed)
	}
	if peerStaleAfter < 0 {
		return Config{}, fmt.Errorf("%s must be >= 0 (got %s)", envVarPeerStaleAfter, peerStaleAfter)
	}
	if peerStaleAfter > 0 && peerStaleAfter < heartbeatInterval {
		return Config{}, fmt.Errorf("%s (%s) must be >= %s (%s)", envVarPeerStaleAfter, peerStaleAfter, envVarHeartbeatInterval, heartbeatInterval)
	}
	if credentialRefreshInterval < 0 {
		return Config{}, fmt.Errorf("%s must be >= 0 (got %s)", envVarCredentialRefreshInterval, credentialRefreshInterval)
	}
	if authTokenTTL <= 0 {
		return Config{}, fmt.Errorf("%s must be > 0 (got %s)", envVarAuthTokenTTL, authTokenTTL)
	}
	if turnRESTTTLSeconds <= 0 {
		return Config{}, fmt.Errorf("%s must be > 0 (got %d)", envVarTURNRESTTTLSeconds, turnRESTTTLSeconds)
	}
	if maxSignalingMessageBytes <= 0 {
		return Config{}, fmt.Errorf("%s must be > 0 (got %d)", envVarMaxSignalingMessageBytes, maxSignalingMessageBytes)
	}
	if maxSignalingMessagesPerSecond <= 0 {
		return Config{}, fmt.Errorf("%s must be > 0 (got %d)", envVarMaxSignalingMessagesPerSecond, maxSignalingMessagesPerSecond)
	}
	if int64(sendQueueBytes) < maxSignalingMessageBytes {
		return Config{}, fmt.Errorf("%s (%d) must be >= %s (%d)", envVarSendQueueBytes, sendQueueBytes, envVarMaxSignalingMessageBytes, maxSignalingMessageBytes)
	}
	mdnsInstance = strings.TrimSpace(mdnsInstance)
	if mdnsEnabled && mdnsInstance == "" {
		return Config{}, fmt.Errorf("%s must not be empty when mDNS is enabled", envVarMDNSInstance)
	}

	turnREST := TurnRESTConfig{
		SharedSecret: turnRESTSharedSecret,
		TTLSeconds:   turnRESTTTLSeconds,
	}

	iceServers, iceErr := parseICEServersFromValues(iceServersJSON, stunURLs, turnURLs, turnUsername, turnCredential, turnREST.Enabled())
	if iceErr == nil && len(iceServers) == 0 {
		iceServers = []webrtc.ICEServer{{URLs: splitCommaSeparated(DefaultSTUNURLs)}}
	}

	return Config{
		ListenAddr:      listenAddr,
		AllowedOrigins:  allowedOrigins,
		LogFormat:       logFormat,
		LogLevel:        level,
		ShutdownTimeout: shutdownTimeout,
		Mode:            mode,

		SignalPath:         signalPath,
		TrustProxyHeaders:  trustProxyHeaders,
		MaxPeers:           maxPeers,
		ConnectionIDLength: connectionIDLength,

		HeartbeatInterval:         heartbeatInterval,
		HeartbeatMaxMissed:        heartbeatMaxMissed,
		PeerStaleAfter:            peerStaleAfter,
		CredentialRefreshInterval: credentialRefreshInterval,

		AuthTokenSecret: authTokenSecret,
		AuthTokenTTL:    authTokenTTL,

		TURNREST:   turnREST,
		ICEServers: iceServers,

		MaxSignalingMessageBytes:      maxSignalingMessageBytes,
		MaxSignalingMessagesPerSecond: maxSignalingMessagesPerSecond,
		SendQueueBytes:                sendQueueBytes,

		MDNSEnabled:  mdnsEnabled,
		MDNSInstance: mdnsInstance,

		iceConfigErr: iceErr,
	}, nil
}

// configFileFromArgs finds --config before the flag set is built, since the
// file supplies the flag defaults.
func configFileFromArgs(args []string) string {
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--" {
			return ""
		}
		if v, ok := strings.CutPrefix(arg, "--config="); ok {
			return v
		}
		if arg == "--config" && i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}

func NewLogger(cfg Config) (*slog.Logger, error) {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	var handler slog.Handler
	switch cfg.LogFormat {
	case LogFormatText:
		handler = slog.NewTextHandler(os.Stdout, opts)
	case LogFormatJSON:
		handler = slog.NewJSONHandler(os.Stdout, opts)
	default:
		return nil, fmt.Errorf("unsupported log format %q", cfg.LogFormat)
	}

	return slog.New(handler), nil
}

func envOrDefault(lookup func(string) (string, bool), key, fallback string) string {
	if v, ok := lookup(key); ok && v != "" {
		return v
	}
	return fallback
}

func envIntOrDefault(lookup func(string) (string, bool), key string, fallback int) (int, error) {
	raw, ok := lookup(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return n, nil
}

func envDurationOrDefault(lookup func(string) (string, bool), key string, fallback time.Duration) (time.Duration, error) {
	raw, ok := lookup(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return d, nil
}

func envBoolOrDefault(lookup func(string) (string, bool), key string, fallback bool) (bool, error) {
	raw, ok := lookup(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return fallback, nil
	}
	v, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		return false, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return v, nil
}

func defaultLogFormatForMode(mode string) string {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case string(ModeProd), "production":
		return string(LogFormatJSON)
	default:
		return string(LogFormatText)
	}
}

func defaultLogLevelForMode(mode string) string {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case string(ModeProd), "production":
		return "info"
	default:
		return "debug"
	}
}

func parseMode(raw string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case string(ModeDev), "development":
		return ModeDev, nil
	case string(ModeProd), "production":
		return ModeProd, nil
	default:
		return "", fmt.Errorf("invalid mode %q (expected dev or prod)", raw)
	}
}

func parseLogFormat(raw string) (LogFormat, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case string(LogFormatText):
		return LogFormatText, nil
	case string(LogFormatJSON):
		return LogFormatJSON, nil
	default:
		return "", fmt.Errorf("invalid log format %q (expected text or json)", raw)
	}
}

func parseLogLevel(raw string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid log level %q (expected debug, info, warn, error)", raw)
	}
}

func parseAllowedOrigins(raw string) ([]string, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}

	var out []string
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		if entry == "*" {
			out = append(out, entry)
			continue
		}

		normalizedOrigin, _, ok := origin.NormalizeHeader(entry)
		if !ok {
			return nil, fmt.Errorf("invalid origin %q (expected full origin like https://example.com)", entry)
		}
		out = append(out, normalizedOrigin)
	}

	return out, nil
}
