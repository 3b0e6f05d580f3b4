package signaling

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"

	"github.com/wilsonzlin/aero/proxy/webrtc-peer-signaling/internal/registry"
)

type MessageType string

const (
	TypeConnect            MessageType = "CONNECT"
	TypeChangeSettings     MessageType = "CHANGE_SETTINGS"
	TypePeerConnect        MessageType = "PEER_CONNECT"
	TypePeerReconnect      MessageType = "PEER_RECONNECT"
	TypeOffer              MessageType = "OFFER"
	TypeAnswer             MessageType = "ANSWER"
	TypeApproveAnswer      MessageType = "APPROVE_ANSWER"
	TypeICECandidate       MessageType = "ICE_CANDIDATE"
	TypeEndOfICECandidates MessageType = "END_OF_ICE_CANDIDATES"
	TypeDisconnect         MessageType = "DISCONNECT"
	TypePingPong           MessageType = "PING_PONG"
)

var (
	errMalformedEnvelope = errors.New("malformed envelope")
	errUnknownType       = errors.New("unknown message type")
)

// envelope is the inbound wire shape. data is decoded only once type is
// known.
type envelope struct {
	Type MessageType     `json:"type"`
	Data json.RawMessage `json:"data"`
}

type connectRequest struct {
	Name          string `json:"name"`
	DiscoveryMode string `json:"discoveryMode"`
	AuthToken     string `json:"authToken"`
}

type changeSettingsRequest struct {
	Name string `json:"name"`
	// ConnectionID is accepted for wire compatibility and ignored; codes are
	// only ever assigned by the server.
	ConnectionID  string `json:"connectionId"`
	DiscoveryMode string `json:"discoveryMode"`
}

type peerConnectRequest struct {
	ConnectionID string `json:"connectionId"`
}

type peerReconnectRequest struct {
	PeerID uuid.UUID `json:"peerId"`
}

type offerRequest struct {
	PeerID         uuid.UUID       `json:"peerId"`
	Offer          json.RawMessage `json:"offer"`
	ConnectionType string          `json:"connectionType"`
	// Older clients echo the field as discoveryMode.
	DiscoveryMode string `json:"discoveryMode"`
}

func (r offerRequest) connectionType() registry.ConnectionType {
	if r.ConnectionType != "" {
		return registry.ParseConnectionType(r.ConnectionType)
	}
	return registry.ParseConnectionType(r.DiscoveryMode)
}

type answerRequest struct {
	PeerID uuid.UUID       `json:"peerId"`
	Answer json.RawMessage `json:"answer"`
}

type iceCandidateRequest struct {
	PeerID    uuid.UUID       `json:"peerId"`
	Candidate json.RawMessage `json:"candidate"`
}

type endOfICECandidatesRequest struct {
	PeerID uuid.UUID `json:"peerId"`
}

// decodeEnvelope splits a frame into its type and the request struct for that
// type. Unknown fields inside data are ignored.
func decodeEnvelope(frame []byte) (MessageType, any, error) {
	var env envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return "", nil, fmt.Errorf("%w: %v", errMalformedEnvelope, err)
	}

	var req any
	switch env.Type {
	case TypeConnect:
		req = &connectRequest{}
	case TypeChangeSettings:
		req = &changeSettingsRequest{}
	case TypePeerConnect:
		req = &peerConnectRequest{}
	case TypePeerReconnect:
		req = &peerReconnectRequest{}
	case TypeOffer:
		req = &offerRequest{}
	case TypeAnswer:
		req = &answerRequest{}
	case TypeICECandidate:
		req = &iceCandidateRequest{}
	case TypeEndOfICECandidates:
		req = &endOfICECandidatesRequest{}
	case "":
		return "", nil, fmt.Errorf("%w: missing type", errMalformedEnvelope)
	default:
		return env.Type, nil, fmt.Errorf("%w %q", errUnknownType, env.Type)
	}

	data := bytes.TrimSpace(env.Data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		data = []byte("{}")
	}
	if err := json.Unmarshal(data, req); err != nil {
		return env.Type, nil, fmt.Errorf("%w: %s data: %v", errMalformedEnvelope, env.Type, err)
	}
	return env.Type, req, nil
}

// validCandidate reports whether raw is an RTCIceCandidateInit object. The
// raw bytes are what gets relayed.
func validCandidate(raw json.RawMessage) bool {
	if len(bytes.TrimSpace(raw)) == 0 {
		return false
	}
	var init webrtc.ICECandidateInit
	return json.Unmarshal(raw, &init) == nil
}

// Outbound is implemented by every server-to-client message. Messages are
// encoded as a flat JSON object with a "type" discriminant.
type Outbound interface {
	Type() MessageType
}

type ConnectAck struct {
	PeerID       uuid.UUID          `json:"peerId"`
	ConnectionID string             `json:"connectionId"`
	AuthToken    string             `json:"authToken"`
	ICEServers   []webrtc.ICEServer `json:"iceServers"`
}

type Disconnect struct {
	PeerID uuid.UUID `json:"peerId"`
}

// Offer either asks the receiver to create an SDP offer for PeerID (no Offer
// payload) or carries one.
type Offer struct {
	PeerID         uuid.UUID               `json:"peerId"`
	Offer          json.RawMessage         `json:"offer,omitempty"`
	Name           string                  `json:"name"`
	Device         string                  `json:"device"`
	ConnectionType registry.ConnectionType `json:"connectionType"`
}

// AnswerRequest delivers PeerID's offer and asks the receiver to answer it.
type AnswerRequest struct {
	PeerID         uuid.UUID               `json:"peerId"`
	Offer          json.RawMessage         `json:"offer"`
	Name           string                  `json:"name"`
	Device         string                  `json:"device"`
	ConnectionType registry.ConnectionType `json:"connectionType"`
}

type ApproveAnswer struct {
	PeerID uuid.UUID       `json:"peerId"`
	Answer json.RawMessage `json:"answer"`
}

// PeerConnectAck answers PEER_CONNECT. PeerID is null on a miss. IsConnected
// duplicates Connected for older clients.
type PeerConnectAck struct {
	PeerID      *uuid.UUID `json:"peerId"`
	Connected   bool       `json:"connected"`
	IsConnected bool       `json:"isConnected"`
}

type ICECandidate struct {
	PeerID    uuid.UUID       `json:"peerId"`
	Candidate json.RawMessage `json:"candidate"`
}

type EndOfICECandidates struct {
	PeerID uuid.UUID `json:"peerId"`
}

// PingPong pushes refreshed credentials to a connected peer.
type PingPong struct {
	AuthToken  string             `json:"authToken"`
	ICEServers []webrtc.ICEServer `json:"iceServers"`
}

func (ConnectAck) Type() MessageType         { return TypeConnect }
func (Disconnect) Type() MessageType         { return TypeDisconnect }
func (Offer) Type() MessageType              { return TypeOffer }
func (AnswerRequest) Type() MessageType      { return TypeAnswer }
func (ApproveAnswer) Type() MessageType      { return TypeApproveAnswer }
func (PeerConnectAck) Type() MessageType     { return TypePeerConnect }
func (ICECandidate) Type() MessageType       { return TypeICECandidate }
func (EndOfICECandidates) Type() MessageType { return TypeEndOfICECandidates }
func (PingPong) Type() MessageType           { return TypePingPong }

// Encode marshals msg with its type spliced in as the first field.
func Encode(msg Outbound) ([]byte, error) {
	body, err := json.Marshal(msg)
	if err != nil {
		return nil, err
	}
	if len(body) < 2 || body[0] != '{' {
		return nil, fmt.Errorf("encode %s: not a JSON object", msg.Type())
	}

	typeField, err := json.Marshal(msg.Type())
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(body)+len(typeField)+9)
	out = append(out, `{"type":`...)
	out = append(out, typeField...)
	if len(body) > 2 {
		out = append(out, ',')
	}
	out = append(out, body[1:]...)
	return out, nil
}
