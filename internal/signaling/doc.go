// Package signaling brokers the WebRTC handshake between browser peers over a
// WebSocket. It matches peers behind the same public IP, resolves manual
// connection codes, and relays offers, answers, and ICE candidates. It never
// terminates a PeerConnection itself.
package signaling
