package store

import (
	"fmt"

	"github.com/ledgerforge/node/block"
	"github.com/ledgerforge/node/chain"
	"github.com/ledgerforge/node/common"
)

// InitGenesis builds and persists the genesis block for a freshly opened,
// manifest-less store, writing its header, block bytes, a chain-difficulty
// memo seeded to the header's own difficulty, and the initial manifest
// pointing the tip at it. If the store already carries a manifest, it
// returns the existing genesis block unchanged.
func (d *DB) InitGenesis(chainIDHex string, alloc chain.GenesisAlloc) (*block.Block, error) {
	if d.manifest != nil {
		hash, err := common.HashFromHex(d.manifest.TipHashHex)
		if err != nil {
			return nil, fmt.Errorf("manifest tip hash: %w", err)
		}
		raw, ok, err := d.GetBlockBytes(hash)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("manifest tip block %s not found", hash.Hex())
		}
		return block.Deserialize(d, raw, nil)
	}

	g, err := block.BuildGenesis(d, alloc)
	if err != nil {
		return nil, fmt.Errorf("build genesis: %w", err)
	}
	hash, err := g.Hash()
	if err != nil {
		return nil, err
	}

	if err := d.PutHeader(hash, g.Header()); err != nil {
		return nil, err
	}
	raw, err := g.Serialize()
	if err != nil {
		return nil, err
	}
	if err := d.PutBlockBytes(hash, raw); err != nil {
		return nil, err
	}
	if err := d.PutDifficulty(hash, g.Header().Difficulty); err != nil {
		return nil, err
	}

	m := &Manifest{
		SchemaVersion:         SchemaVersionV1,
		ChainIDHex:            chainIDHex,
		TipHashHex:            hash.Hex(),
		TipHeight:             0,
		TipChainDifficultyDec: g.Header().Difficulty.String(),
	}
	if err := d.SetManifest(m); err != nil {
		return nil, err
	}
	return g, nil
}
