package node

import (
	"context"
	"encoding/binary"
	"errors"
	"time"

	"github.com/ledgerforge/node/block"
	"github.com/ledgerforge/node/chain"
	"github.com/ledgerforge/node/common"
)

// MinerConfig controls the dev-only miner: who gets the block reward, what
// extra data is embedded, and where wall-clock timestamps come from.
type MinerConfig struct {
	Coinbase        common.Address
	ExtraData       []byte
	TimestampSource func() uint64
}

// MinedBlock summarizes a freshly sealed block.
type MinedBlock struct {
	Height     uint64
	Hash       common.Hash
	Timestamp  uint64
	Nonce      []byte
	TxCount    int
	Difficulty string
}

// Miner is a brute-force, single-goroutine block assembler used for
// local/devnet bring-up; it is not a mining-strategy implementation.
type Miner struct {
	backend  block.Backend
	replayer block.Replayer
	cfg      MinerConfig
}

// DefaultMinerConfig returns a MinerConfig with a real-clock timestamp
// source and no extra data.
func DefaultMinerConfig(coinbase common.Address) MinerConfig {
	return MinerConfig{
		Coinbase: coinbase,
		TimestampSource: func() uint64 {
			return uint64(time.Now().Unix())
		},
	}
}

// NewMiner constructs a dev-only miner bound to backend and replayer.
func NewMiner(backend block.Backend, replayer block.Replayer, cfg MinerConfig) (*Miner, error) {
	if backend == nil {
		return nil, errors.New("node: miner: nil backend")
	}
	if replayer == nil {
		return nil, errors.New("node: miner: nil replayer")
	}
	if cfg.TimestampSource == nil {
		cfg.TimestampSource = func() uint64 { return uint64(time.Now().Unix()) }
	}
	return &Miner{backend: backend, replayer: replayer, cfg: cfg}, nil
}

// MineN mines count blocks in sequence, each extending the last, feeding
// txs to every one of them — a devnet convenience, not a mempool.
func (m *Miner) MineN(ctx context.Context, parent *block.Block, count int, txs [][]byte, uncles []chain.Header) ([]MinedBlock, error) {
	if count < 0 {
		return nil, errors.New("node: miner: count must be >= 0")
	}
	out := make([]MinedBlock, 0, count)
	cur := parent
	for i := 0; i < count; i++ {
		mb, sealed, err := m.mineOne(ctx, cur, txs, uncles)
		if err != nil {
			return nil, err
		}
		out = append(out, *mb)
		cur = sealed
	}
	return out, nil
}

// MineOne builds, seals and returns a single block extending parent.
func (m *Miner) MineOne(ctx context.Context, parent *block.Block, txs [][]byte, uncles []chain.Header) (*MinedBlock, *block.Block, error) {
	return m.mineOne(ctx, parent, txs, uncles)
}

func (m *Miner) mineOne(ctx context.Context, parent *block.Block, txs [][]byte, uncles []chain.Header) (*MinedBlock, *block.Block, error) {
	if parent == nil {
		return nil, nil, errors.New("node: miner: nil parent")
	}
	if err := ctxDone(ctx); err != nil {
		return nil, nil, err
	}

	timestamp := m.cfg.TimestampSource()
	b, err := block.InitFromParent(m.backend, parent, m.cfg.Coinbase, m.cfg.ExtraData, timestamp, uncles)
	if err != nil {
		return nil, nil, err
	}
	if err := block.ValidateUncles(m.backend, b); err != nil {
		return nil, nil, err
	}

	for _, txBytes := range txs {
		if err := b.ApplyTransaction(m.replayer, txBytes); err != nil {
			return nil, nil, err
		}
	}

	// Rewards are credited, fixing state_root, before the nonce search
	// starts: the sealed hash covers state_root, so mining against a root
	// Finalize would later change invalidates the nonce.
	if err := b.ApplyBlockReward(); err != nil {
		return nil, nil, err
	}
	header := b.Header()

	nonce, err := m.searchNonce(ctx, header)
	if err != nil {
		return nil, nil, err
	}
	if err := b.SetSealNonce(nonce); err != nil {
		return nil, nil, err
	}

	if _, err := b.Finalize(); err != nil {
		return nil, nil, err
	}
	hash, err := b.Hash()
	if err != nil {
		return nil, nil, err
	}

	return &MinedBlock{
		Height:     header.Number.Uint64(),
		Hash:       hash,
		Timestamp:  timestamp,
		Nonce:      nonce,
		TxCount:    len(txs),
		Difficulty: header.Difficulty.String(),
	}, b, nil
}

// searchNonce brute-forces an 8-byte little-endian counter, zero-padded to
// chain.NonceBytes, until chain.CheckPoW accepts header sealed with it.
func (m *Miner) searchNonce(ctx context.Context, header chain.Header) ([]byte, error) {
	nonce := make([]byte, chain.NonceBytes)
	var counter uint64
	for {
		if err := ctxDone(ctx); err != nil {
			return nil, err
		}
		binary.LittleEndian.PutUint64(nonce, counter)
		header.Nonce = nonce
		if err := chain.CheckPoW(header); err == nil {
			out := make([]byte, chain.NonceBytes)
			copy(out, nonce)
			return out, nil
		}
		counter++
	}
}

func ctxDone(ctx context.Context) error {
	if ctx == nil {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}
