package block

import (
	"github.com/ledgerforge/node/chain"
	"github.com/ledgerforge/node/common"
	"github.com/ledgerforge/node/state"
)

// BuildGenesis constructs the deterministic genesis block from a
// preallocation map per §4.6: fixed prevhash, coinbase sentinel, nonce and
// difficulty, gas_limit = 10**6, and a state trie pre-seeded with alloc's
// balances. The resulting hash and state root depend only on alloc, never
// on wall-clock time.
func BuildGenesis(backend Backend, alloc chain.GenesisAlloc) (*Block, error) {
	cache := state.New(backend, common.Hash{})
	for addr, balance := range alloc {
		if err := cache.SetBalance(addr, balance); err != nil {
			return nil, err
		}
	}
	stateRoot, err := cache.Commit()
	if err != nil {
		return nil, err
	}

	h := chain.GenesisHeaderTemplate()
	h.StateRoot = stateRoot
	if err := backend.Put(stateRootKey(stateRoot), []byte{1}); err != nil {
		return nil, err
	}

	b := &Block{
		backend: backend,
		header:  h,
		cache:   state.New(backend, stateRoot),
		txList:  NewTxList(backend),
		sealed:  true,
	}
	return b, nil
}
