package registry

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// DiscoveryMode controls whether a peer takes part in automatic same-network
// matching.
type DiscoveryMode string

const (
	ModeNetwork    DiscoveryMode = "NETWORK"
	ModeManualOnly DiscoveryMode = "MANUAL_ONLY"
)

// ParseDiscoveryMode accepts the wire spellings of a discovery mode. Clients
// have historically sent HIDDEN for MANUAL_ONLY.
func ParseDiscoveryMode(raw string) (DiscoveryMode, bool) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case string(ModeNetwork):
		return ModeNetwork, true
	case string(ModeManualOnly), "HIDDEN", "MANUAL":
		return ModeManualOnly, true
	default:
		return "", false
	}
}

// ConnectionType tells the receiving client how a pairing came about.
type ConnectionType string

const (
	ConnectionNetwork ConnectionType = "NETWORK"
	ConnectionManual  ConnectionType = "MANUAL"
)

// ParseConnectionType returns ConnectionManual for anything that isn't
// NETWORK, so a missing field never routes a pair into the network UI.
func ParseConnectionType(raw string) ConnectionType {
	if strings.EqualFold(strings.TrimSpace(raw), string(ConnectionNetwork)) {
		return ConnectionNetwork
	}
	return ConnectionManual
}

// Conn is the transport handle owned by a peer.
//
// Send must not block on the remote end; implementations queue the frame and
// report a full or closed queue as an error.
type Conn interface {
	Send(frame []byte) error
	Ping() error
	Close() error
	Closed() bool
}

// SessionID identifies one transport session for the lifetime of the
// process.
type SessionID uint64

// Peer is a point-in-time copy of a registry entry. Mutating it has no effect
// on the registry.
type Peer struct {
	Session SessionID
	Conn    Conn

	// PeerID is uuid.Nil until the session completes CONNECT.
	PeerID       uuid.UUID
	ConnectionID string

	IP     string
	Device string
	Name   string
	Mode   DiscoveryMode

	Connected bool
	OpenedAt  time.Time
	LastSeen  time.Time
}

// Addressable reports whether other peers may be matched with p: its session
// is open and it has completed CONNECT with a name and device.
func (p Peer) Addressable() bool {
	if !p.Connected || p.Name == "" || p.Device == "" {
		return false
	}
	return p.Conn != nil && !p.Conn.Closed()
}
