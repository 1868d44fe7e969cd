package node

import (
	"fmt"
	"net"

	"github.com/sirupsen/logrus"

	"github.com/ledgerforge/node/block"
	"github.com/ledgerforge/node/chain"
	"github.com/ledgerforge/node/common"
	"github.com/ledgerforge/node/p2p"
	"github.com/ledgerforge/node/store"
)

// Environment is the one place a running chaind process holds its state:
// the backing store, the bounded block cache, the peer registry and signal
// bus, and the logger every other piece borrows a field-tagged entry from.
// There is exactly one Environment per process; nothing below this layer
// reaches for global mutable state.
type Environment struct {
	Config Config
	Log    *logrus.Logger

	DB         *store.DB
	BlockCache *store.BlockCache

	Bus     *p2p.Bus
	Peers   *p2p.Manager
	PeerCfg p2p.Config

	listener net.Listener
}

// defaultBlockCacheSize mirrors spec §4.6/§9's "~500 recent blocks".
const defaultBlockCacheSize = 500

// NewEnvironment opens the backing store (bootstrapping genesis if the
// chain directory is empty), wires the block cache and peer registry, and
// configures logging at cfg.LogLevel. It does not yet listen or dial.
func NewEnvironment(cfg Config, alloc chain.GenesisAlloc, nodeID p2p.NodeID) (*Environment, error) {
	if err := ValidateConfig(cfg); err != nil {
		return nil, fmt.Errorf("node: environment: %w", err)
	}

	log := logrus.New()
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("node: environment: log level: %w", err)
	}
	log.SetLevel(level)

	db, err := store.Open(cfg.DataDir, cfg.ChainIDHex)
	if err != nil {
		return nil, fmt.Errorf("node: environment: open store: %w", err)
	}

	genesis, err := db.InitGenesis(cfg.ChainIDHex, alloc)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("node: environment: init genesis: %w", err)
	}
	genesisHash, err := genesis.Hash()
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("node: environment: genesis hash: %w", err)
	}

	cache, err := store.NewBlockCache(db, defaultBlockCacheSize)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("node: environment: block cache: %w", err)
	}

	bus := p2p.NewBus()
	peerCfg := p2p.Config{
		ProtocolVersion: 1,
		ClientVersion:   "ledgerforge/1.0",
		Capabilities:    []string{"chain/1"},
		ListenPort:      uint64(listenPort(cfg.BindAddr)),
		NodeID:          nodeID,
		EthVersion:      1,
		NetworkID:       chainIDToNetworkID(cfg.ChainIDHex),
		GenesisHash:     genesisHash,
	}
	peers := p2p.NewManager(p2p.ManagerConfig{MaxPeers: cfg.MaxPeers}, bus)

	return &Environment{
		Config:     cfg,
		Log:        log,
		DB:         db,
		BlockCache: cache,
		Bus:        bus,
		Peers:      peers,
		PeerCfg:    peerCfg,
	}, nil
}

// Listen binds cfg.BindAddr and accepts inbound peers in a background
// goroutine until Close is called.
func (e *Environment) Listen() error {
	ln, err := net.Listen("tcp", e.Config.BindAddr)
	if err != nil {
		return fmt.Errorf("node: environment: listen: %w", err)
	}
	e.listener = ln
	go e.acceptLoop(ln)
	return nil
}

func (e *Environment) acceptLoop(ln net.Listener) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			e.Log.WithError(err).Info("p2p: listener closed")
			return
		}
		if _, err := e.Peers.Accept(conn, e.PeerCfg); err != nil {
			e.Log.WithError(err).Warn("p2p: rejected inbound peer")
		}
	}
}

// Dial connects to addr and registers it as an outbound peer.
func (e *Environment) Dial(addr string) error {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return fmt.Errorf("node: environment: dial %s: %w", addr, err)
	}
	if _, err := e.Peers.Dial(conn, e.PeerCfg); err != nil {
		return err
	}
	return nil
}

// DialSeeds dials every configured seed peer, logging (not failing) on
// per-peer errors — one bad seed shouldn't block startup.
func (e *Environment) DialSeeds() {
	for _, addr := range e.Config.Peers {
		if err := e.Dial(addr); err != nil {
			e.Log.WithField("peer", addr).WithError(err).Warn("p2p: seed dial failed")
		}
	}
}

// Head returns the current tip block, replayed through replayer if its
// state root wasn't already known to the backend.
func (e *Environment) Head(replayer block.Replayer) (*block.Block, error) {
	m := e.DB.Manifest()
	if m == nil {
		return nil, fmt.Errorf("node: environment: store has no manifest yet")
	}
	hash, err := common.HashFromHex(m.TipHashHex)
	if err != nil {
		return nil, err
	}
	raw, ok, err := e.DB.GetBlockBytes(hash)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("node: environment: tip block %s missing from store", hash.Hex())
	}
	return block.Deserialize(e.DB, raw, replayer)
}

// Close releases the listener and the backing store.
func (e *Environment) Close() error {
	if e.listener != nil {
		_ = e.listener.Close()
	}
	return e.DB.Close()
}

func listenPort(bindAddr string) int {
	_, portStr, err := net.SplitHostPort(bindAddr)
	if err != nil {
		return 0
	}
	var port int
	_, _ = fmt.Sscanf(portStr, "%d", &port)
	return port
}

// chainIDToNetworkID derives the Status-exchange network id from the
// configured chain id hex string; both are compared for equality only, so
// any stable, collision-free derivation suffices.
func chainIDToNetworkID(chainIDHex string) uint64 {
	var v uint64
	for i := 0; i < len(chainIDHex); i++ {
		v = v*31 + uint64(chainIDHex[i])
	}
	return v
}
