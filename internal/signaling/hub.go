package signaling

import (
	"errors"
	"log/slog"
	"strings"
	"sync/atomic"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"

	"github.com/wilsonzlin/aero/proxy/webrtc-peer-signaling/internal/auth"
	"github.com/wilsonzlin/aero/proxy/webrtc-peer-signaling/internal/metrics"
	"github.com/wilsonzlin/aero/proxy/webrtc-peer-signaling/internal/registry"
	"github.com/wilsonzlin/aero/proxy/webrtc-peer-signaling/internal/turnrest"
)

const maxNameRunes = 64

type HubConfig struct {
	Registry *registry.Registry
	Tokens   *auth.TokenService
	// TURN may be nil or unconfigured; TURN entries then degrade as described
	// on credentialSource.
	TURN       *turnrest.Issuer
	ICEServers []webrtc.ICEServer
	Metrics    *metrics.Metrics
	Logger     *slog.Logger
}

// Hub dispatches decoded frames to discovery, manual connect, and relay, and
// owns peer eviction. It holds no per-session state of its own; everything
// lives in the registry.
type Hub struct {
	reg     *registry.Registry
	tokens  *auth.TokenService
	metrics *metrics.Metrics
	log     *slog.Logger

	creds atomic.Pointer[credentialSource]
}

func NewHub(cfg HubConfig) (*Hub, error) {
	if cfg.Registry == nil {
		return nil, errors.New("signaling: registry is required")
	}
	if cfg.Tokens == nil {
		return nil, errors.New("signaling: token service is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	h := &Hub{
		reg:     cfg.Registry,
		tokens:  cfg.Tokens,
		metrics: cfg.Metrics,
		log:     logger,
	}
	h.SetCredentials(cfg.ICEServers, cfg.TURN)
	return h, nil
}

// SetCredentials atomically replaces the ICE server list and TURN issuer used
// for new CONNECT acknowledgements and refreshes.
func (h *Hub) SetCredentials(servers []webrtc.ICEServer, turn *turnrest.Issuer) {
	copied := append([]webrtc.ICEServer(nil), servers...)
	h.creds.Store(&credentialSource{servers: copied, turn: turn})
}

// ICEServers returns the ICE list with TURN credentials issued for userID, or
// for a random user when userID is empty.
func (h *Hub) ICEServers(userID string) []webrtc.ICEServer {
	servers, degraded := h.creds.Load().iceServersFor(userID)
	if degraded {
		h.metrics.Inc(metrics.TURNUnavailable)
	}
	return servers
}

func (h *Hub) Registry() *registry.Registry {
	return h.reg
}

// Open registers a newly upgraded transport session.
func (h *Hub) Open(conn registry.Conn, ip, userAgent string) (registry.SessionID, error) {
	peer, err := h.reg.Add(conn, ip, deviceFromUserAgent(userAgent))
	if err != nil {
		if errors.Is(err, registry.ErrTooManyPeers) {
			h.metrics.Inc(metrics.PeerRejectedCapacity)
		}
		return 0, err
	}
	h.metrics.Inc(metrics.PeerOpened)
	h.log.Debug("session opened", "session", peer.Session, "remote_ip", ip, "device", peer.Device)
	return peer.Session, nil
}

// Close handles a transport session that ended on its own.
func (h *Hub) Close(id registry.SessionID) {
	h.evict(metrics.PeerClosed, id)
}

// CloseAll drops every session without sending discovery withdrawals. It is
// meant for shutdown, once the heartbeat has stopped.
func (h *Hub) CloseAll() {
	for _, p := range h.reg.SnapshotMatching(nil) {
		if _, ok := h.reg.Remove(p.Session); ok && p.Conn != nil {
			_ = p.Conn.Close()
		}
	}
}

// Pong records a heartbeat reply.
func (h *Hub) Pong(id registry.SessionID) {
	h.reg.Touch(id)
}

// HandleFrame processes one inbound text frame. Malformed or unknown frames
// are counted and ignored; the session stays open.
func (h *Hub) HandleFrame(id registry.SessionID, frame []byte) {
	h.reg.Touch(id)

	typ, req, err := decodeEnvelope(frame)
	if err != nil {
		if errors.Is(err, errUnknownType) {
			h.metrics.Inc(metrics.FrameUnknownType)
		} else {
			h.metrics.Inc(metrics.FrameMalformed)
		}
		h.log.Debug("dropping inbound frame", "session", id, "type", string(typ), "err", err)
		return
	}

	peer, ok := h.reg.FindBySession(id)
	if !ok {
		return
	}
	if typ != TypeConnect && !peer.Connected {
		h.metrics.Inc(metrics.FrameUnauthenticated)
		h.log.Debug("dropping frame before CONNECT", "session", id, "type", string(typ))
		return
	}

	switch r := req.(type) {
	case *connectRequest:
		h.handleConnect(peer, r)
	case *changeSettingsRequest:
		h.handleChangeSettings(peer, r)
	case *peerConnectRequest:
		h.handlePeerConnect(peer, r)
	case *peerReconnectRequest:
		h.handlePeerReconnect(peer, r)
	case *offerRequest:
		h.relayOffer(peer, r)
	case *answerRequest:
		h.relayAnswer(peer, r)
	case *iceCandidateRequest:
		h.relayICECandidate(peer, r)
	case *endOfICECandidatesRequest:
		h.relayEndOfICECandidates(peer, r)
	}
}

func (h *Hub) handleConnect(peer registry.Peer, r *connectRequest) {
	mode, ok := registry.ParseDiscoveryMode(r.DiscoveryMode)
	if !ok {
		mode = registry.ModeNetwork
	}

	var reclaim uuid.UUID
	if token := strings.TrimSpace(r.AuthToken); token != "" && peer.PeerID == uuid.Nil {
		peerID, _, err := h.tokens.Parse(token)
		if err != nil {
			h.metrics.Inc(metrics.TokenRejected)
			h.log.Debug("ignoring reconnect token", "session", peer.Session, "err", err)
		} else {
			reclaim = peerID
		}
	}

	after, reclaimed, err := h.reg.Connect(peer.Session, registry.ConnectParams{
		Name:    displayName(r.Name),
		Mode:    mode,
		Reclaim: reclaim,
	})
	if err != nil {
		h.log.Debug("connect on closed session", "session", peer.Session, "err", err)
		return
	}
	if reclaimed {
		h.metrics.Inc(metrics.TokenReclaimed)
	}

	token, err := h.tokens.Issue(after.PeerID, after.ConnectionID)
	if err != nil {
		h.log.Error("issue reconnect token", "peer_id", after.PeerID, "err", err)
	}
	if !h.send(after, ConnectAck{
		PeerID:       after.PeerID,
		ConnectionID: after.ConnectionID,
		AuthToken:    token,
		ICEServers:   h.ICEServers(after.PeerID.String()),
	}) {
		return
	}

	h.metrics.Inc(metrics.PeerConnected)
	h.log.Info("peer connected",
		"peer_id", after.PeerID,
		"connection_id", after.ConnectionID,
		"remote_ip", after.IP,
		"mode", string(after.Mode),
		"reclaimed", reclaimed,
	)

	// Every CONNECT in NETWORK mode announces, including a repeat on the same
	// session; clients de-duplicate by peer ID.
	if after.Mode == registry.ModeNetwork {
		h.evict(metrics.EvictedSendFailure, h.announce(after)...)
		return
	}
	h.onModeChange(peer, after, peer.Connected && peer.Mode == registry.ModeNetwork)
}

func (h *Hub) handleChangeSettings(peer registry.Peer, r *changeSettingsRequest) {
	var mode registry.DiscoveryMode
	if r.DiscoveryMode != "" {
		parsed, ok := registry.ParseDiscoveryMode(r.DiscoveryMode)
		if !ok {
			h.metrics.Inc(metrics.FrameMalformed)
			h.log.Debug("ignoring unknown discovery mode", "peer_id", peer.PeerID, "mode", r.DiscoveryMode)
		}
		mode = parsed
	}
	name := strings.TrimSpace(r.Name)
	if name != "" {
		name = displayName(name)
	}

	before, after, err := h.reg.UpdateSettings(peer.Session, name, mode)
	if err != nil {
		return
	}
	h.log.Debug("peer settings changed", "peer_id", after.PeerID, "mode", string(after.Mode))
	h.onModeChange(before, after, before.Mode == registry.ModeNetwork)
}

// onModeChange runs discovery for a transition into or out of NETWORK mode.
func (h *Hub) onModeChange(before, after registry.Peer, wasNetwork bool) {
	isNetwork := after.Mode == registry.ModeNetwork
	switch {
	case isNetwork && !wasNetwork:
		h.evict(metrics.EvictedSendFailure, h.announce(after)...)
	case !isNetwork && wasNetwork:
		h.evict(metrics.EvictedSendFailure, h.withdraw(before)...)
	}
}

// send encodes and queues msg for peer. A failed send means the session is
// dead; the peer is evicted and false returned.
func (h *Hub) send(peer registry.Peer, msg Outbound) bool {
	if !h.trySend(peer, msg) {
		h.evict(metrics.EvictedSendFailure, peer.Session)
		return false
	}
	return true
}

// trySend is send without the eviction, for fan-out loops that evict once
// after visiting every target.
func (h *Hub) trySend(peer registry.Peer, msg Outbound) bool {
	frame, err := Encode(msg)
	if err != nil {
		h.log.Error("encode outbound message", "type", string(msg.Type()), "err", err)
		return true
	}
	if peer.Conn == nil {
		return false
	}
	if err := peer.Conn.Send(frame); err != nil {
		h.log.Debug("send failed", "peer_id", peer.PeerID, "type", string(msg.Type()), "err", err)
		return false
	}
	return true
}

// evict removes sessions from the registry, closes their transports, and
// withdraws them from discovery. Withdrawal sends that fail queue further
// evictions, so this runs as a worklist rather than recursively.
func (h *Hub) evict(event string, ids ...registry.SessionID) {
	queue := append([]registry.SessionID(nil), ids...)
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]

		peer, ok := h.reg.Remove(id)
		if !ok {
			continue
		}
		if peer.Conn != nil {
			_ = peer.Conn.Close()
		}
		h.metrics.Inc(event)
		h.log.Info("peer removed",
			"peer_id", peer.PeerID,
			"connection_id", peer.ConnectionID,
			"remote_ip", peer.IP,
			"reason", event,
		)
		if peer.Connected && peer.Mode == registry.ModeNetwork {
			queue = append(queue, h.withdraw(peer)...)
		}
		event = metrics.EvictedSendFailure
	}
}

func displayName(raw string) string {
	name := strings.TrimSpace(raw)
	if name == "" {
		return randomName()
	}
	if utf8.RuneCountInString(name) > maxNameRunes {
		name = string([]rune(name)[:maxNameRunes])
	}
	return name
}
