package block

import (
	"math/big"

	"github.com/ledgerforge/node/chain"
	"github.com/ledgerforge/node/common"
	"github.com/ledgerforge/node/state"
)

// CachedBlock is a read-only view of a sealed, deserialized block: it
// shares the underlying header and account data but exposes no mutating
// operation, so the block LRU can hand out shared values safely (§9
// "'Immutable' subclass"). Its hash is memoized at construction.
type CachedBlock struct {
	hash   common.Hash
	header chain.Header
	uncles []chain.Header
	cache  *state.Cache
}

// NewCachedBlock wraps a sealed Block as a read-only view. It is an error
// to wrap a Block that has not been sealed by Finalize.
func NewCachedBlock(b *Block) (*CachedBlock, error) {
	if !b.sealed {
		return nil, newBlockErr(chain.KindFatal, "cached_block: source block is not sealed")
	}
	hash, err := b.Hash()
	if err != nil {
		return nil, err
	}
	return &CachedBlock{hash: hash, header: b.header, uncles: b.uncles, cache: b.cache}, nil
}

// Hash returns the memoized block hash.
func (c *CachedBlock) Hash() common.Hash { return c.hash }

// Header returns the block's header.
func (c *CachedBlock) Header() chain.Header { return c.header }

// Uncles returns the block's uncle headers.
func (c *CachedBlock) Uncles() []chain.Header { return c.uncles }

func (c *CachedBlock) GetAccount(addr common.Address) (chain.Account, error) {
	return c.cache.GetAccount(addr)
}

func (c *CachedBlock) GetBalance(addr common.Address) (*big.Int, error) {
	return c.cache.GetBalance(addr)
}

func (c *CachedBlock) GetNonce(addr common.Address) (uint64, error) {
	return c.cache.GetNonce(addr)
}

func (c *CachedBlock) GetCode(addr common.Address) ([]byte, error) {
	return c.cache.GetCode(addr)
}

func (c *CachedBlock) GetStorageData(addr common.Address, idx *big.Int) (*big.Int, error) {
	return c.cache.GetStorageData(addr, idx)
}
