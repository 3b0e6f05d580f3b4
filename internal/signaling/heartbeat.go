package signaling

import (
	"context"
	"time"

	"github.com/wilsonzlin/aero/proxy/webrtc-peer-signaling/internal/metrics"
	"github.com/wilsonzlin/aero/proxy/webrtc-peer-signaling/internal/registry"
)

const (
	DefaultHeartbeatInterval = 15 * time.Second
	DefaultHeartbeatMissed   = 3
	DefaultRefreshInterval   = 60 * time.Second
)

type HeartbeatConfig struct {
	Interval time.Duration
	// MaxMissed consecutive unanswered probes evict a peer.
	MaxMissed int
	// StaleAfter evicts peers whose last inbound activity is older than this.
	// Zero disables it.
	StaleAfter time.Duration
	// RefreshInterval controls PING_PONG credential pushes. Zero disables
	// them.
	RefreshInterval time.Duration
	Now             func() time.Time
}

func (c HeartbeatConfig) withDefaults() HeartbeatConfig {
	if c.Interval <= 0 {
		c.Interval = DefaultHeartbeatInterval
	}
	if c.MaxMissed <= 0 {
		c.MaxMissed = DefaultHeartbeatMissed
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}

// Heartbeat probes every session on a fixed period and evicts the ones that
// stopped answering.
type Heartbeat struct {
	hub *Hub
	cfg HeartbeatConfig
}

func NewHeartbeat(hub *Hub, cfg HeartbeatConfig) *Heartbeat {
	return &Heartbeat{hub: hub, cfg: cfg.withDefaults()}
}

// Run ticks until ctx is cancelled. Cancel it before tearing down the
// registry's sessions.
func (m *Heartbeat) Run(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Tick()
		}
	}
}

// Tick runs one probe round over a registry snapshot.
func (m *Heartbeat) Tick() {
	now := m.cfg.Now()
	reg := m.hub.reg
	for _, p := range reg.SnapshotMatching(nil) {
		if m.cfg.StaleAfter > 0 && now.Sub(p.LastSeen) > m.cfg.StaleAfter {
			m.hub.evict(metrics.EvictedStale, p.Session)
			continue
		}

		missed, ok := reg.RecordProbe(p.Session)
		if !ok {
			continue
		}
		if missed >= m.cfg.MaxMissed {
			m.hub.evict(metrics.EvictedHeartbeat, p.Session)
			continue
		}
		if err := p.Conn.Ping(); err != nil {
			m.hub.evict(metrics.EvictedSendFailure, p.Session)
			continue
		}

		if m.cfg.RefreshInterval > 0 && reg.ClaimRefresh(p.Session, m.cfg.RefreshInterval) {
			m.refresh(p)
		}
	}
}

func (m *Heartbeat) refresh(p registry.Peer) {
	token, err := m.hub.tokens.Issue(p.PeerID, p.ConnectionID)
	if err != nil {
		m.hub.log.Error("issue reconnect token", "peer_id", p.PeerID, "err", err)
		return
	}
	if m.hub.send(p, PingPong{AuthToken: token, ICEServers: m.hub.ICEServers(p.PeerID.String())}) {
		m.hub.metrics.Inc(metrics.CredentialsRefreshed)
	}
}
