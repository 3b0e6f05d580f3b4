package signaling

import (
	"strings"

	"github.com/wilsonzlin/aero/proxy/webrtc-peer-signaling/internal/connid"
	"github.com/wilsonzlin/aero/proxy/webrtc-peer-signaling/internal/metrics"
	"github.com/wilsonzlin/aero/proxy/webrtc-peer-signaling/internal/registry"
)

// handlePeerConnect resolves a connection code. A hit asks the code's owner
// to offer to the requester; a miss or the requester's own code is reported
// as connected=false. Neither outcome is an error.
func (h *Hub) handlePeerConnect(requester registry.Peer, r *peerConnectRequest) {
	code := strings.TrimSpace(r.ConnectionID)
	if !connid.Valid(code, h.reg.ConnectionIDLength()) {
		h.metrics.Inc(metrics.ManualConnectMiss)
		h.log.Debug("malformed connection code", "peer_id", requester.PeerID, "length", len(code))
		h.send(requester, PeerConnectAck{})
		return
	}
	target, ok := h.reg.FindByConnectionID(code)
	if !ok || target.Session == requester.Session || !target.Connected {
		h.metrics.Inc(metrics.ManualConnectMiss)
		h.send(requester, PeerConnectAck{})
		return
	}

	if !h.send(target, manualOffer(requester)) {
		// The owner just died; to the requester that is a miss.
		h.metrics.Inc(metrics.ManualConnectMiss)
		h.send(requester, PeerConnectAck{})
		return
	}
	h.metrics.Inc(metrics.ManualConnectHit)
	peerID := target.PeerID
	h.send(requester, PeerConnectAck{PeerID: &peerID, Connected: true, IsConnected: true})
	h.log.Debug("manual connect", "peer_id", requester.PeerID, "target", target.PeerID)
}

// handlePeerReconnect re-pairs with a peer ID remembered from an earlier
// session. Misses are silent.
func (h *Hub) handlePeerReconnect(requester registry.Peer, r *peerReconnectRequest) {
	target, ok := h.reg.FindByPeerID(r.PeerID)
	if !ok || target.Session == requester.Session || !target.Connected {
		h.metrics.Inc(metrics.ReconnectMiss)
		return
	}
	if h.send(target, manualOffer(requester)) {
		h.metrics.Inc(metrics.ReconnectHit)
	}
}

func manualOffer(requester registry.Peer) Offer {
	return Offer{
		PeerID:         requester.PeerID,
		Name:           requester.Name,
		Device:         requester.Device,
		ConnectionType: registry.ConnectionManual,
	}
}
