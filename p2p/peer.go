package p2p

import (
	"math/big"
	"net"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ledgerforge/node/chain"
	"github.com/ledgerforge/node/common"
)

// State is a peer's position in the handshake/session state machine.
type State int

const (
	StateNew State = iota
	StateHelloSent
	StateHelloAck
	StateReady
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "NEW"
	case StateHelloSent:
		return "HELLO_SENT"
	case StateHelloAck:
		return "HELLO_ACK"
	case StateReady:
		return "READY"
	case StateClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// Config is the local identity and chain identity a Peer presents during
// its handshake and Status exchange.
type Config struct {
	ProtocolVersion uint64
	ClientVersion   string
	Capabilities    []string
	ListenPort      uint64
	NodeID          NodeID

	EthVersion  uint64
	NetworkID   uint64
	GenesisHash common.Hash

	// IdleReadInterval bounds how long a read attempt blocks before the
	// loop re-checks the outbound queue and the stop signal. Defaults to
	// 10ms if zero.
	IdleReadInterval time.Duration
}

// Peer owns one TCP connection plus its receive buffer and outbound queue,
// tracking the state machine of §4.7.
type Peer struct {
	conn net.Conn
	cfg  Config
	bus  *Bus
	log  *logrus.Entry

	mu        sync.Mutex
	state     State
	helloSent bool
	statusSent bool

	remoteProtocolVersion uint64
	remoteClientVersion   string
	remoteCapabilities    []string
	remoteNodeID          NodeID
	remoteListenPort      uint64

	remoteTotalDifficulty *big.Int
	remoteHeadHash        common.Hash

	lastValidPacketReceived time.Time
	lastPinged              time.Time

	forgetReason *DisconnectReason

	outMu    sync.Mutex
	outbound [][]byte

	recvBuf []byte

	closing bool
}

// NewPeer wraps an established connection. The caller decides whether to
// call SendHello before Run (outbound dialer) or to wait for the remote's
// Hello to arrive (inbound listener).
func NewPeer(conn net.Conn, cfg Config, bus *Bus) *Peer {
	if cfg.IdleReadInterval <= 0 {
		cfg.IdleReadInterval = 10 * time.Millisecond
	}
	return &Peer{
		conn:  conn,
		cfg:   cfg,
		bus:   bus,
		log:   logrus.WithField("peer", conn.RemoteAddr().String()),
		state: StateNew,

		lastValidPacketReceived: time.Now(),
	}
}

// State returns the peer's current handshake/session state.
func (p *Peer) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// ForgetReason reports the disconnect reason if the peer should be
// forgotten rather than retried, or nil if it hasn't disconnected or the
// reason permits a retry.
func (p *Peer) ForgetReason() *DisconnectReason {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.forgetReason
}

// RemoteIdentity returns the client version and protocol version the peer
// reported in its Hello, or zero values before a Hello has been received.
func (p *Peer) RemoteIdentity() (clientVersion string, protocolVersion uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.remoteClientVersion, p.remoteProtocolVersion
}

// hasRemoteCapability reports whether the peer's Hello listed cap.
func (p *Peer) hasRemoteCapability(cap string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, c := range p.remoteCapabilities {
		if c == cap {
			return true
		}
	}
	return false
}

// Liveness returns the timestamps of the last valid packet received from
// this peer and the last Ping sent to it, per §4.7/§5 — an external
// liveness checker polls these rather than the session loop tracking idle
// timeouts itself.
func (p *Peer) Liveness() (lastValidPacketReceived, lastPinged time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastValidPacketReceived, p.lastPinged
}

// Addr identifies the peer by its remote network address.
func (p *Peer) Addr() string { return p.conn.RemoteAddr().String() }

func (p *Peer) enqueue(cmd CommandID, payload interface{}) error {
	raw, err := EncodePacket(cmd, payload)
	if err != nil {
		return err
	}
	p.outMu.Lock()
	p.outbound = append(p.outbound, raw)
	p.outMu.Unlock()
	return nil
}

func (p *Peer) popOutbound() ([]byte, bool) {
	p.outMu.Lock()
	defer p.outMu.Unlock()
	if len(p.outbound) == 0 {
		return nil, false
	}
	pkt := p.outbound[0]
	p.outbound = p.outbound[1:]
	return pkt, true
}

// SendHello enqueues a Hello packet and advances NEW -> HELLO_SENT. It is a
// no-op if Hello has already been sent this session.
func (p *Peer) SendHello() error {
	p.mu.Lock()
	already := p.helloSent
	p.mu.Unlock()
	if already {
		return nil
	}
	if err := p.enqueue(CmdHello, HelloPayload{
		ProtocolVersion: p.cfg.ProtocolVersion,
		ClientVersion:   p.cfg.ClientVersion,
		Capabilities:    p.cfg.Capabilities,
		ListenPort:      p.cfg.ListenPort,
		NodeID:          p.cfg.NodeID,
	}); err != nil {
		return err
	}
	p.mu.Lock()
	p.helloSent = true
	if p.state == StateNew {
		p.state = StateHelloSent
	}
	p.mu.Unlock()
	return nil
}

// SendStatus enqueues the local Status payload. Callers normally call this
// once the peer has reached HELLO_ACK.
func (p *Peer) SendStatus(totalDifficulty *big.Int, headHash common.Hash) error {
	if err := p.enqueue(CmdStatus, StatusPayload{
		EthVersion:      p.cfg.EthVersion,
		NetworkID:       p.cfg.NetworkID,
		TotalDifficulty: totalDifficulty,
		LatestHash:      headHash,
		GenesisHash:     p.cfg.GenesisHash,
	}); err != nil {
		return err
	}
	p.mu.Lock()
	p.statusSent = true
	p.mu.Unlock()
	return nil
}

func (p *Peer) sendDisconnect(reason DisconnectReason) error {
	p.mu.Lock()
	p.state = StateClosed
	if reason.Forget() {
		r := reason
		p.forgetReason = &r
	}
	p.closing = true
	p.mu.Unlock()
	return p.enqueue(CmdDisconnect, DisconnectPayload{Reason: reason})
}

// SendPing, SendGetPeers, SendPeers, SendTransactions, SendGetTransactions,
// SendBlocks, SendGetBlocks, SendBlockHashes and SendGetBlockHashes are the
// reply-side halves of the commands §6 lists; higher layers call these
// from their C8 subscribers in response to a *_received event.

func (p *Peer) SendPing() error {
	if err := p.enqueue(CmdPing, PingPayload{}); err != nil {
		return err
	}
	p.mu.Lock()
	p.lastPinged = time.Now()
	p.mu.Unlock()
	return nil
}
func (p *Peer) SendPong() error { return p.enqueue(CmdPong, PongPayload{}) }
func (p *Peer) SendGetPeers() error { return p.enqueue(CmdGetPeers, GetPeersPayload{}) }

func (p *Peer) SendPeers(peers []PeerAddr) error {
	return p.enqueue(CmdPeers, PeersPayload{Peers: Clamp(peers, MaxGetChainSendHashes)})
}

func (p *Peer) SendGetTransactions() error {
	return p.enqueue(CmdGetTransactions, GetTransactionsPayload{})
}

func (p *Peer) SendTransactions(txs [][]byte) error {
	return p.enqueue(CmdTransactions, TransactionsPayload{Transactions: txs})
}

func (p *Peer) SendBlocks(blocks [][]byte) error {
	if len(blocks) > MaxBlocksSend {
		blocks = blocks[:MaxBlocksSend]
	}
	return p.enqueue(CmdBlocks, BlocksPayload{Blocks: blocks})
}

func (p *Peer) SendGetBlocks(hashes []common.Hash) error {
	return p.enqueue(CmdGetBlocks, GetBlocksPayload{Hashes: Clamp(hashes, MaxGetChainAskBlocks)})
}

func (p *Peer) SendBlockHashes(hashes []common.Hash) error {
	return p.enqueue(CmdBlockHashes, BlockHashesPayload{Hashes: Clamp(hashes, MaxGetChainSendHashes)})
}

func (p *Peer) SendGetBlockHashes(hash common.Hash, count uint64) error {
	if count > MaxGetChainAcceptHashes {
		count = MaxGetChainAcceptHashes
	}
	return p.enqueue(CmdGetBlockHashes, GetBlockHashesPayload{Hash: hash, Count: count})
}

// Run drives the peer's loop body (§4.7) until stop is closed, the
// connection fails, or a Disconnect is sent or received. It returns nil on
// an orderly Disconnect, and a TransportError-kind error on socket failure.
func (p *Peer) Run(stop <-chan struct{}) error {
	readBuf := make([]byte, 64*1024)
	for {
		select {
		case <-stop:
			_ = p.conn.Close()
			return nil
		default:
		}

		moved := false

		if pkt, ok := p.popOutbound(); ok {
			if _, err := p.conn.Write(pkt); err != nil {
				return &chain.Error{Kind: chain.KindTransportError, Msg: "peer: write", Err: err}
			}
			moved = true
			p.mu.Lock()
			closing := p.closing
			p.mu.Unlock()
			if closing {
				time.Sleep(2 * time.Second)
				_ = p.conn.Close()
				return nil
			}
		}

		_ = p.conn.SetReadDeadline(time.Now().Add(p.cfg.IdleReadInterval))
		n, err := p.conn.Read(readBuf)
		if n > 0 {
			p.recvBuf = append(p.recvBuf, readBuf[:n]...)
			moved = true
		}
		if err != nil && !isTimeout(err) {
			return &chain.Error{Kind: chain.KindTransportError, Msg: "peer: read", Err: err}
		}

		for len(p.recvBuf) >= LengthPrefixBytes {
			size, perr := PacketSize(p.recvBuf)
			if perr != nil {
				p.recvBuf = nil
				break
			}
			total := LengthPrefixBytes + size
			if uint64(len(p.recvBuf)) < total {
				break
			}
			cmd, raw, derr := DecodePacket(p.recvBuf[:total])
			p.recvBuf = p.recvBuf[total:]
			moved = true
			if derr != nil {
				p.log.WithError(derr).Warn("p2p: malformed packet")
				_ = p.sendDisconnect(ReasonBadProtocol)
				p.recvBuf = nil
				break
			}
			p.mu.Lock()
			p.lastValidPacketReceived = time.Now()
			p.mu.Unlock()
			p.dispatch(cmd, raw)

			p.mu.Lock()
			done := p.state == StateClosed
			p.mu.Unlock()
			if done {
				// A Disconnect may now be queued (ours) or we're just
				// honoring the remote's; either way stop decoding and let
				// the outbound-flush branch above close the connection.
				break
			}
		}

		p.mu.Lock()
		closed, closing := p.state == StateClosed, p.closing
		p.mu.Unlock()
		if closed && !closing {
			// Remote-initiated Disconnect: nothing of ours left to flush.
			_ = p.conn.Close()
			return nil
		}

		if !moved {
			time.Sleep(p.cfg.IdleReadInterval)
		}
	}
}

func isTimeout(err error) bool {
	ne, ok := err.(net.Error)
	return ok && ne.Timeout()
}
