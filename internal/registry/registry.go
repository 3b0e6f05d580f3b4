// Package registry holds the set of live peers shared by every signaling
// component.
package registry

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wilsonzlin/aero/proxy/webrtc-peer-signaling/internal/connid"
)

var (
	ErrTooManyPeers   = errors.New("too many peers")
	ErrUnknownSession = errors.New("unknown session")
)

type Config struct {
	// MaxPeers bounds concurrent sessions. Zero means unlimited.
	MaxPeers int
	// ConnectionIDLength defaults to connid.DefaultLength.
	ConnectionIDLength int
	Now                func() time.Time
}

type entry struct {
	Peer

	seq         uint64
	outstanding int
	lastRefresh time.Time
}

// Registry is a mutex-guarded set of peers with secondary indexes by peer ID
// and connection code. No method performs I/O while holding the lock.
type Registry struct {
	maxPeers     int
	connIDLength int
	now          func() time.Time

	mu          sync.Mutex
	nextSession SessionID
	nextSeq     uint64
	peers       map[SessionID]*entry
	byPeerID    map[uuid.UUID]*entry
	byConnID    map[string]*entry
}

func New(cfg Config) *Registry {
	if cfg.ConnectionIDLength <= 0 {
		cfg.ConnectionIDLength = connid.DefaultLength
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Registry{
		maxPeers:     cfg.MaxPeers,
		connIDLength: cfg.ConnectionIDLength,
		now:          cfg.Now,
		peers:        make(map[SessionID]*entry),
		byPeerID:     make(map[uuid.UUID]*entry),
		byConnID:     make(map[string]*entry),
	}
}

// Add registers a newly established session in its pre-CONNECT state.
func (r *Registry) Add(conn Conn, ip, device string) (Peer, error) {
	now := r.now()

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.maxPeers > 0 && len(r.peers) >= r.maxPeers {
		return Peer{}, ErrTooManyPeers
	}
	r.nextSession++
	r.nextSeq++
	e := &entry{
		Peer: Peer{
			Session:  r.nextSession,
			Conn:     conn,
			IP:       ip,
			Device:   device,
			OpenedAt: now,
			LastSeen: now,
		},
		seq: r.nextSeq,
	}
	r.peers[e.Session] = e
	return e.Peer, nil
}

// Remove deletes the session's peer. It reports false when the session was
// already gone, so exactly one caller observes a given removal.
func (r *Registry) Remove(id SessionID) (Peer, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.peers[id]
	if !ok {
		return Peer{}, false
	}
	delete(r.peers, id)
	if e.PeerID != uuid.Nil && r.byPeerID[e.PeerID] == e {
		delete(r.byPeerID, e.PeerID)
	}
	if e.ConnectionID != "" && r.byConnID[e.ConnectionID] == e {
		delete(r.byConnID, e.ConnectionID)
	}
	return e.Peer, true
}

func (r *Registry) FindBySession(id SessionID) (Peer, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.peers[id]
	if !ok {
		return Peer{}, false
	}
	return e.Peer, true
}

func (r *Registry) FindByPeerID(id uuid.UUID) (Peer, bool) {
	if id == uuid.Nil {
		return Peer{}, false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.byPeerID[id]
	if !ok {
		return Peer{}, false
	}
	return e.Peer, true
}

func (r *Registry) FindByConnectionID(code string) (Peer, bool) {
	if code == "" {
		return Peer{}, false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.byConnID[code]
	if !ok {
		return Peer{}, false
	}
	return e.Peer, true
}

// SnapshotMatching returns copies of every peer for which match returns true,
// in registration order. A nil match selects every peer.
//
// match runs under the registry lock and must not call back into the
// registry.
func (r *Registry) SnapshotMatching(match func(Peer) bool) []Peer {
	r.mu.Lock()
	entries := make([]*entry, 0, len(r.peers))
	for _, e := range r.peers {
		if match == nil || match(e.Peer) {
			entries = append(entries, e)
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].seq < entries[j].seq })
	out := make([]Peer, len(entries))
	for i, e := range entries {
		out[i] = e.Peer
	}
	r.mu.Unlock()
	return out
}

// ConnectionIDLength is the length of every code this registry assigns.
func (r *Registry) ConnectionIDLength() int {
	return r.connIDLength
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.peers)
}

type ConnectParams struct {
	Name string
	Mode DiscoveryMode
	// Reclaim is a peer ID recovered from a reconnect token. It is used only
	// when the session has no peer ID yet and no live session holds it.
	Reclaim uuid.UUID
}

// Connect makes the session addressable: it assigns a peer ID on the first
// CONNECT, always assigns a fresh connection code, and records name and mode.
// The second return value reports whether params.Reclaim was honoured.
func (r *Registry) Connect(id SessionID, params ConnectParams) (Peer, bool, error) {
	now := r.now()

	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.peers[id]
	if !ok {
		return Peer{}, false, ErrUnknownSession
	}

	reclaimed := false
	if e.PeerID == uuid.Nil {
		peerID := uuid.Nil
		if params.Reclaim != uuid.Nil {
			if _, taken := r.byPeerID[params.Reclaim]; !taken {
				peerID = params.Reclaim
				reclaimed = true
			}
		}
		for peerID == uuid.Nil {
			candidate, err := uuid.NewRandom()
			if err != nil {
				return Peer{}, false, err
			}
			if _, taken := r.byPeerID[candidate]; !taken {
				peerID = candidate
			}
		}
		e.PeerID = peerID
		r.byPeerID[peerID] = e
	}

	code, err := connid.Generate(r.connIDLength, func(c string) bool {
		_, taken := r.byConnID[c]
		return taken
	})
	if err != nil {
		return Peer{}, false, err
	}
	if e.ConnectionID != "" {
		delete(r.byConnID, e.ConnectionID)
	}
	e.ConnectionID = code
	r.byConnID[code] = e

	e.Name = params.Name
	if params.Mode != "" {
		e.Mode = params.Mode
	} else if e.Mode == "" {
		e.Mode = ModeNetwork
	}
	e.Connected = true
	e.LastSeen = now
	e.outstanding = 0
	e.lastRefresh = now
	return e.Peer, reclaimed, nil
}

// UpdateSettings changes display name and discovery mode. Empty values leave
// the current setting unchanged. It returns the peer before and after the
// change.
func (r *Registry) UpdateSettings(id SessionID, name string, mode DiscoveryMode) (Peer, Peer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.peers[id]
	if !ok {
		return Peer{}, Peer{}, ErrUnknownSession
	}
	before := e.Peer
	if name != "" {
		e.Name = name
	}
	if mode != "" {
		e.Mode = mode
	}
	return before, e.Peer, nil
}

// Touch records inbound activity from the session, including pongs. It clears
// the count of unanswered heartbeat probes.
func (r *Registry) Touch(id SessionID) {
	now := r.now()
	r.mu.Lock()
	if e, ok := r.peers[id]; ok {
		e.LastSeen = now
		e.outstanding = 0
	}
	r.mu.Unlock()
}

// RecordProbe notes that a heartbeat probe is about to be sent and returns
// the number of probes that were already unanswered.
func (r *Registry) RecordProbe(id SessionID) (int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.peers[id]
	if !ok {
		return 0, false
	}
	n := e.outstanding
	e.outstanding++
	return n, true
}

// ClaimRefresh reports whether the session's credentials are due for a
// refresh and, if so, marks them refreshed now.
func (r *Registry) ClaimRefresh(id SessionID, interval time.Duration) bool {
	now := r.now()
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.peers[id]
	if !ok || !e.Connected {
		return false
	}
	if now.Sub(e.lastRefresh) < interval {
		return false
	}
	e.lastRefresh = now
	return true
}
