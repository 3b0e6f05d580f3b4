package signaling

import (
	"github.com/google/uuid"

	"github.com/wilsonzlin/aero/proxy/webrtc-peer-signaling/internal/metrics"
	"github.com/wilsonzlin/aero/proxy/webrtc-peer-signaling/internal/registry"
)

// relayTo forwards msg to the peer named by target. A target that is gone
// (or is the sender) drops the message silently; pairing races with
// disconnects routinely.
func (h *Hub) relayTo(sender registry.Peer, target uuid.UUID, msg Outbound) {
	peer, ok := h.reg.FindByPeerID(target)
	if !ok || peer.Session == sender.Session {
		h.metrics.Inc(metrics.RelayDroppedNoTarget)
		return
	}
	if h.send(peer, msg) {
		h.metrics.Inc(metrics.RelayForwarded)
	}
}

func (h *Hub) relayOffer(sender registry.Peer, r *offerRequest) {
	h.relayTo(sender, r.PeerID, AnswerRequest{
		PeerID:         sender.PeerID,
		Offer:          r.Offer,
		Name:           sender.Name,
		Device:         sender.Device,
		ConnectionType: r.connectionType(),
	})
}

func (h *Hub) relayAnswer(sender registry.Peer, r *answerRequest) {
	h.relayTo(sender, r.PeerID, ApproveAnswer{
		PeerID: sender.PeerID,
		Answer: r.Answer,
	})
}

func (h *Hub) relayICECandidate(sender registry.Peer, r *iceCandidateRequest) {
	if !validCandidate(r.Candidate) {
		h.metrics.Inc(metrics.FrameMalformed)
		return
	}
	h.relayTo(sender, r.PeerID, ICECandidate{
		PeerID:    sender.PeerID,
		Candidate: r.Candidate,
	})
}

func (h *Hub) relayEndOfICECandidates(sender registry.Peer, r *endOfICECandidatesRequest) {
	h.relayTo(sender, r.PeerID, EndOfICECandidates{PeerID: sender.PeerID})
}
