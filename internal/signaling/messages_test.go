package signaling

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/wilsonzlin/aero/proxy/webrtc-peer-signaling/internal/registry"
)

func TestEncode_FlatWithTypeFirst(t *testing.T) {
	peerID := uuid.MustParse("6f1d3a2e-9c4b-4a8e-8f00-1234567890ab")
	got, err := Encode(Disconnect{PeerID: peerID})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	want := `{"type":"DISCONNECT","peerId":"6f1d3a2e-9c4b-4a8e-8f00-1234567890ab"}`
	if string(got) != want {
		t.Fatalf("Encode=%s, want %s", got, want)
	}
}

func TestEncode_PeerConnectMiss(t *testing.T) {
	got, err := Encode(PeerConnectAck{})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	want := `{"type":"PEER_CONNECT","peerId":null,"connected":false,"isConnected":false}`
	if string(got) != want {
		t.Fatalf("Encode=%s, want %s", got, want)
	}
}

func TestEncode_OfferOmitsEmptyPayload(t *testing.T) {
	got, err := Encode(Offer{PeerID: uuid.New(), Name: "A", Device: "Linux", ConnectionType: registry.ConnectionNetwork})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if strings.Contains(string(got), `"offer"`) {
		t.Fatalf("unexpected offer field: %s", got)
	}
	var m map[string]any
	if err := json.Unmarshal(got, &m); err != nil {
		t.Fatalf("Encode output is not JSON: %v", err)
	}
	if m["type"] != "OFFER" || m["connectionType"] != "NETWORK" {
		t.Fatalf("decoded=%v", m)
	}
}

func TestDecodeEnvelope(t *testing.T) {
	peerID := uuid.New()

	typ, req, err := decodeEnvelope([]byte(`{"type":"OFFER","data":{"peerId":"` + peerID.String() + `","offer":{"sdp":"x"},"extra":1}}`))
	if err != nil {
		t.Fatalf("decodeEnvelope: %v", err)
	}
	offer, ok := req.(*offerRequest)
	if typ != TypeOffer || !ok {
		t.Fatalf("typ=%s req=%T", typ, req)
	}
	if offer.PeerID != peerID || string(offer.Offer) != `{"sdp":"x"}` {
		t.Fatalf("offer=%+v", offer)
	}

	typ, req, err = decodeEnvelope([]byte(`{"type":"CONNECT"}`))
	if err != nil {
		t.Fatalf("CONNECT without data: %v", err)
	}
	if _, ok := req.(*connectRequest); typ != TypeConnect || !ok {
		t.Fatalf("typ=%s req=%T", typ, req)
	}

	if _, _, err := decodeEnvelope([]byte(`{"type":"CONNECT","data":null}`)); err != nil {
		t.Fatalf("null data: %v", err)
	}
}

func TestDecodeEnvelope_Errors(t *testing.T) {
	cases := []struct {
		frame string
		want  error
	}{
		{`{`, errMalformedEnvelope},
		{`{"data":{}}`, errMalformedEnvelope},
		{`{"type":7}`, errMalformedEnvelope},
		{`{"type":"ANSWER","data":[]}`, errMalformedEnvelope},
		{`{"type":"HELLO"}`, errUnknownType},
		// Outbound-only types are not accepted inbound.
		{`{"type":"APPROVE_ANSWER","data":{}}`, errUnknownType},
		{`{"type":"PING_PONG","data":{}}`, errUnknownType},
	}
	for _, tc := range cases {
		if _, _, err := decodeEnvelope([]byte(tc.frame)); !errors.Is(err, tc.want) {
			t.Fatalf("decodeEnvelope(%s) err=%v, want %v", tc.frame, err, tc.want)
		}
	}
}

func TestValidCandidate(t *testing.T) {
	valid := []string{
		`{"candidate":"candidate:1 1 udp 1 192.0.2.1 1 typ host","sdpMid":"0","sdpMLineIndex":0}`,
		`{"candidate":""}`,
	}
	for _, raw := range valid {
		if !validCandidate(json.RawMessage(raw)) {
			t.Fatalf("validCandidate(%s)=false", raw)
		}
	}
	invalid := []string{``, `  `, `"candidate"`, `42`, `{"sdpMLineIndex":-1}`}
	for _, raw := range invalid {
		if validCandidate(json.RawMessage(raw)) {
			t.Fatalf("validCandidate(%s)=true", raw)
		}
	}
}
