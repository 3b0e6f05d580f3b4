package metrics

import "sync"

// Event counter names.
const (
	PeerOpened            = "peer_opened"
	PeerConnected         = "peer_connected"
	PeerClosed            = "peer_closed"
	PeerRejectedCapacity  = "peer_rejected_capacity"
	EvictedSendFailure    = "peer_evicted_send_failure"
	EvictedHeartbeat      = "peer_evicted_heartbeat"
	EvictedStale          = "peer_evicted_stale"
	DiscoveryOffer        = "discovery_offer"
	DiscoveryDisconnect   = "discovery_disconnect"
	ManualConnectHit      = "manual_connect_hit"
	ManualConnectMiss     = "manual_connect_miss"
	ReconnectHit          = "reconnect_hit"
	ReconnectMiss         = "reconnect_miss"
	RelayForwarded        = "relay_forwarded"
	RelayDroppedNoTarget  = "relay_dropped_missing_target"
	FrameMalformed        = "frame_malformed"
	FrameUnknownType      = "frame_unknown_type"
	FrameUnauthenticated  = "frame_unauthenticated"
	TokenReclaimed        = "token_reclaimed"
	TokenRejected         = "token_rejected"
	TURNUnavailable       = "turn_unavailable"
	CredentialsRefreshed  = "credentials_refreshed"
	DropReasonRateLimited = "rate_limited"
	DropReasonTooLarge    = "message_too_large"
)

// Metrics is a minimal, concurrency-safe counter registry.
type Metrics struct {
	mu sync.Mutex
	m  map[string]uint64
}

func New() *Metrics {
	return &Metrics{
		m: make(map[string]uint64),
	}
}

// Inc is a no-op on a nil receiver so components can run without metrics.
func (m *Metrics) Inc(name string) {
	m.Add(name, 1)
}

func (m *Metrics) Add(name string, delta uint64) {
	if m == nil {
		return
	}
	m.mu.Lock()
	if m.m == nil {
		m.m = make(map[string]uint64)
	}
	m.m[name] += delta
	m.mu.Unlock()
}

func (m *Metrics) Get(name string) uint64 {
	if m == nil {
		return 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.m[name]
}

func (m *Metrics) Snapshot() map[string]uint64 {
	out := make(map[string]uint64)
	if m == nil {
		return out
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, v := range m.m {
		out[k] = v
	}
	return out
}
