package p2p

import (
	"fmt"
	"net"
	"sync"

	"github.com/sirupsen/logrus"
)

// ManagerConfig bounds how many peers a Manager will track at once.
type ManagerConfig struct {
	MaxPeers int
}

// DefaultManagerConfig returns a ManagerConfig with a sane MaxPeers.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{MaxPeers: 64}
}

// Entry is the registry's view of one tracked peer: its live handle plus
// the handshake-derived identity fields worth exposing without reaching
// into the Peer's internal lock.
type Entry struct {
	Addr            string
	ClientVersion   string
	ProtocolVersion uint64
	State           State
}

// Manager is the process-wide peer registry: it accepts/dials connections,
// bounds concurrent peers, and runs each one's loop on its own goroutine,
// forwarding every peer's events onto a single shared Bus. It is the
// one place C7 sessions and C8 subscribers meet.
type Manager struct {
	cfg ManagerConfig
	bus *Bus
	log *logrus.Entry

	mu    sync.RWMutex
	peers map[string]*Peer
}

// NewManager builds a Manager that publishes every managed peer's events
// onto bus.
func NewManager(cfg ManagerConfig, bus *Bus) *Manager {
	if cfg.MaxPeers <= 0 {
		cfg.MaxPeers = 64
	}
	return &Manager{
		cfg:   cfg,
		bus:   bus,
		log:   logrus.WithField("component", "p2p.manager"),
		peers: make(map[string]*Peer),
	}
}

// Snapshot returns a point-in-time view of every tracked peer.
func (m *Manager) Snapshot() []Entry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Entry, 0, len(m.peers))
	for addr, p := range m.peers {
		clientVersion, protocolVersion := p.RemoteIdentity()
		out = append(out, Entry{
			Addr:            addr,
			ClientVersion:   clientVersion,
			ProtocolVersion: protocolVersion,
			State:           p.State(),
		})
	}
	return out
}

// Accept wraps an inbound connection as a Peer, registers it, and starts
// its loop in a new goroutine. It returns an error without starting
// anything if MaxPeers is already reached.
func (m *Manager) Accept(conn net.Conn, cfg Config) (*Peer, error) {
	return m.add(conn, cfg, false)
}

// Dial wraps an outbound connection, sends the local Hello immediately
// (§4.7's NEW -> HELLO_SENT transition), registers it, and starts its loop.
func (m *Manager) Dial(conn net.Conn, cfg Config) (*Peer, error) {
	return m.add(conn, cfg, true)
}

func (m *Manager) add(conn net.Conn, cfg Config, sendHello bool) (*Peer, error) {
	addr := conn.RemoteAddr().String()

	m.mu.Lock()
	if len(m.peers) >= m.cfg.MaxPeers {
		m.mu.Unlock()
		_ = conn.Close()
		return nil, fmt.Errorf("p2p: manager: max peers reached")
	}
	if _, exists := m.peers[addr]; exists {
		m.mu.Unlock()
		_ = conn.Close()
		return nil, fmt.Errorf("p2p: manager: already connected: %s", addr)
	}
	p := NewPeer(conn, cfg, m.bus)
	m.peers[addr] = p
	m.mu.Unlock()

	if sendHello {
		if err := p.SendHello(); err != nil {
			m.Remove(addr)
			return nil, err
		}
	}

	go func() {
		stop := make(chan struct{})
		if err := p.Run(stop); err != nil {
			m.log.WithField("peer", addr).WithError(err).Warn("p2p: peer loop ended")
		}
		m.Remove(addr)
	}()

	return p, nil
}

// Remove drops a peer from the registry. It is idempotent.
func (m *Manager) Remove(addr string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.peers, addr)
}

// Get returns the live Peer for addr, if still tracked.
func (m *Manager) Get(addr string) (*Peer, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.peers[addr]
	return p, ok
}

// Addrs returns the addresses of every currently tracked peer.
func (m *Manager) Addrs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.peers))
	for addr := range m.peers {
		out = append(out, addr)
	}
	return out
}

// Count returns the number of currently tracked peers.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.peers)
}
