package signaling

import (
	"github.com/google/uuid"

	"github.com/wilsonzlin/aero/proxy/webrtc-peer-signaling/internal/metrics"
	"github.com/wilsonzlin/aero/proxy/webrtc-peer-signaling/internal/registry"
)

// networkCandidates selects the peers self is matched with automatically:
// addressable NETWORK-mode peers behind the same IP, excluding self. An empty
// IP never matches.
func networkCandidates(self registry.Peer) func(registry.Peer) bool {
	return func(p registry.Peer) bool {
		return self.IP != "" &&
			p.Session != self.Session &&
			p.Mode == registry.ModeNetwork &&
			p.IP == self.IP &&
			p.Addressable()
	}
}

// announce tells every candidate about a joining peer. Each existing peer
// becomes the SDP offerer for the pair. It returns the sessions whose send
// failed; the fan-out continues past them.
func (h *Hub) announce(self registry.Peer) []registry.SessionID {
	if !self.Addressable() {
		return nil
	}
	msg := Offer{
		PeerID:         self.PeerID,
		Name:           self.Name,
		Device:         self.Device,
		ConnectionType: registry.ConnectionNetwork,
	}

	var failed []registry.SessionID
	for _, p := range h.reg.SnapshotMatching(networkCandidates(self)) {
		if !h.trySend(p, msg) {
			failed = append(failed, p.Session)
			continue
		}
		h.metrics.Inc(metrics.DiscoveryOffer)
		h.log.Debug("discovery offer", "peer_id", p.PeerID, "joiner", self.PeerID, "remote_ip", self.IP)
	}
	return failed
}

// withdraw tells every candidate that self left the network group.
func (h *Hub) withdraw(self registry.Peer) []registry.SessionID {
	if self.PeerID == uuid.Nil {
		return nil
	}
	msg := Disconnect{PeerID: self.PeerID}

	var failed []registry.SessionID
	for _, p := range h.reg.SnapshotMatching(networkCandidates(self)) {
		if !h.trySend(p, msg) {
			failed = append(failed, p.Session)
			continue
		}
		h.metrics.Inc(metrics.DiscoveryDisconnect)
	}
	return failed
}
