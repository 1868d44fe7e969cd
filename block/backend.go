package block

import (
	"math/big"

	"github.com/ledgerforge/node/chain"
	"github.com/ledgerforge/node/common"
	"github.com/ledgerforge/node/trie"
)

// Backend is everything the block package needs from the backing store:
// trie node and code-blob access (so it satisfies state.Store structurally)
// plus the header/block-bytes/difficulty-memo tables §6 names. store.DB
// implements this without either package importing the other.
type Backend interface {
	trie.KVStore
	GetCode(hash common.Hash) ([]byte, bool, error)
	PutCode(hash common.Hash, code []byte) error
	GetHeader(hash common.Hash) (chain.Header, bool, error)
	PutHeader(hash common.Hash, h chain.Header) error
	GetBlockBytes(hash common.Hash) ([]byte, bool, error)
	PutBlockBytes(hash common.Hash, raw []byte) error
	GetDifficulty(hash common.Hash) (*big.Int, bool, error)
	PutDifficulty(hash common.Hash, d *big.Int) error
}

// Replayer is the out-of-scope EVM executor contract (§6 apply_transaction):
// mutate the block's state via its account ops and return the post-call
// cumulative gas used.
type Replayer interface {
	ApplyTransaction(b *Block, txBytes []byte) (cumulativeGasUsed *big.Int, err error)
}
