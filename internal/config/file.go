package config

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// FileConfig is the YAML config file layout. Every field is optional and
// maps onto the environment variable of the same setting; env vars and flags
// still take precedence.
type FileConfig struct {
	ListenAddr        string   `yaml:"listen_addr"`
	Mode              string   `yaml:"mode"`
	LogFormat         string   `yaml:"log_format"`
	LogLevel          string   `yaml:"log_level"`
	ShutdownTimeout   string   `yaml:"shutdown_timeout"`
	AllowedOrigins    []string `yaml:"allowed_origins"`
	SignalPath        string   `yaml:"signal_path"`
	TrustProxyHeaders *bool    `yaml:"trust_proxy_headers"`
	MaxPeers          *int     `yaml:"max_peers"`

	ConnectionIDLength *int `yaml:"connection_id_length"`

	Heartbeat struct {
		Interval  string `yaml:"interval"`
		MaxMissed *int   `yaml:"max_missed"`
		// StaleAfter evicts peers not seen for this long; empty or "0s" disables.
		StaleAfter string `yaml:"stale_after"`
	} `yaml:"heartbeat"`

	CredentialRefreshInterval string `yaml:"credential_refresh_interval"`

	AuthToken struct {
		Secret string `yaml:"secret"`
		TTL    string `yaml:"ttl"`
	} `yaml:"auth_token"`

	TURNREST struct {
		SharedSecret string `yaml:"shared_secret"`
		TTLSeconds   *int64 `yaml:"ttl_seconds"`
	} `yaml:"turn_rest"`

	ICEServers []iceServerJSON `yaml:"ice_servers"`

	MaxSignalingMessageBytes      *int64 `yaml:"max_signaling_message_bytes"`
	MaxSignalingMessagesPerSecond *int   `yaml:"max_signaling_messages_per_second"`
	SendQueueBytes                *int   `yaml:"send_queue_bytes"`

	MDNS struct {
		Enabled  *bool  `yaml:"enabled"`
		Instance string `yaml:"instance"`
	} `yaml:"mdns"`
}

// LoadFile parses a YAML config file. Unknown keys are rejected.
func LoadFile(path string) (FileConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return FileConfig{}, fmt.Errorf("read config file: %w", err)
	}
	return parseFile(raw)
}

func parseFile(raw []byte) (FileConfig, error) {
	var fc FileConfig
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&fc); err != nil && !errors.Is(err, io.EOF) {
		return FileConfig{}, fmt.Errorf("parse config file: %w", err)
	}
	return fc, nil
}

func (fc FileConfig) values() map[string]string {
	out := map[string]string{}
	setString := func(key, v string) {
		if v != "" {
			out[key] = v
		}
	}
	setInt := func(key string, v *int) {
		if v != nil {
			out[key] = strconv.Itoa(*v)
		}
	}
	setInt64 := func(key string, v *int64) {
		if v != nil {
			out[key] = strconv.FormatInt(*v, 10)
		}
	}
	setBool := func(key string, v *bool) {
		if v != nil {
			out[key] = strconv.FormatBool(*v)
		}
	}

	setString(envVarListenAddr, fc.ListenAddr)
	setString(envVarMode, fc.Mode)
	setString(envVarLogFormat, fc.LogFormat)
	setString(envVarLogLevel, fc.LogLevel)
	setString(envVarShutdownTimeout, fc.ShutdownTimeout)
	if len(fc.AllowedOrigins) > 0 {
		out[envVarAllowedOrigins] = strings.Join(fc.AllowedOrigins, ",")
	}
	setString(envVarSignalPath, fc.SignalPath)
	setBool(envVarTrustProxyHeaders, fc.TrustProxyHeaders)
	setInt(envVarMaxPeers, fc.MaxPeers)
	setInt(envVarConnectionIDLen, fc.ConnectionIDLength)

	setString(envVarHeartbeatInterval, fc.Heartbeat.Interval)
	setInt(envVarHeartbeatMaxMissed, fc.Heartbeat.MaxMissed)
	setString(envVarPeerStaleAfter, fc.Heartbeat.StaleAfter)
	setString(envVarCredentialRefreshInterval, fc.CredentialRefreshInterval)

	setString(envVarAuthTokenSecret, fc.AuthToken.Secret)
	setString(envVarAuthTokenTTL, fc.AuthToken.TTL)
	setString(envVarTURNRESTSharedSecret, fc.TURNREST.SharedSecret)
	setInt64(envVarTURNRESTTTLSeconds, fc.TURNREST.TTLSeconds)

	if len(fc.ICEServers) > 0 {
		// The same validation path as AERO_ICE_SERVERS_JSON applies.
		if b, err := json.Marshal(fc.ICEServers); err == nil {
			out[envICEServersJSON] = string(b)
		}
	}

	setInt64(envVarMaxSignalingMessageBytes, fc.MaxSignalingMessageBytes)
	setInt(envVarMaxSignalingMessagesPerSecond, fc.MaxSignalingMessagesPerSecond)
	setInt(envVarSendQueueBytes, fc.SendQueueBytes)

	setBool(envVarMDNS, fc.MDNS.Enabled)
	setString(envVarMDNSInstance, fc.MDNS.Instance)
	return out
}

// reloadDebounce coalesces the burst of events editors emit for one save.
const reloadDebounce = 100 * time.Millisecond

// WatchFile watches cfg.ConfigFile and calls onChange with the reloaded
// config after each change. Parse errors are logged and the previous config
// stays in effect. It blocks until ctx is done.
func WatchFile(ctx context.Context, cfg Config, logger *slog.Logger, onChange func(Config)) error {
	if cfg.ConfigFile == "" {
		return errors.New("no config file to watch")
	}
	if logger == nil {
		logger = slog.Default()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create config watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the directory so atomic rename-into-place saves are seen.
	target := filepath.Clean(cfg.ConfigFile)
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("watch config dir: %w", err)
	}

	var (
		timer   *time.Timer
		timerCh <-chan time.Time
	)
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			// A fresh timer per event; a stopped timer's channel may still
			// hold a tick.
			if timer != nil {
				timer.Stop()
			}
			timer = time.NewTimer(reloadDebounce)
			timerCh = timer.C
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("config watcher error", "err", err)
		case <-timerCh:
			timerCh = nil
			next, err := cfg.Reload()
			if err != nil {
				logger.Warn("config reload failed; keeping previous config", "path", target, "err", err)
				continue
			}
			logger.Info("config reloaded", "path", target)
			cfg = next
			onChange(next)
		}
	}
}
