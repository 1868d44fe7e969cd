package store

import (
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/ledgerforge/node/block"
	"github.com/ledgerforge/node/common"
)

// DefaultBlockCacheSize is the default number of recent CachedBlocks kept
// resident, sized for a few minutes of chain activity at ordinary block
// rates (§9).
const DefaultBlockCacheSize = 500

// BlockCache is a bounded, read-only cache of recently deserialized blocks
// sitting in front of the block-bytes table, so re-validating a block an
// honest peer just relayed doesn't re-walk its whole state trie.
type BlockCache struct {
	db    *DB
	cache *lru.Cache[common.Hash, *block.CachedBlock]
}

// NewBlockCache wraps db with an LRU of the given capacity. A non-positive
// size falls back to DefaultBlockCacheSize.
func NewBlockCache(db *DB, size int) (*BlockCache, error) {
	if size <= 0 {
		size = DefaultBlockCacheSize
	}
	c, err := lru.New[common.Hash, *block.CachedBlock](size)
	if err != nil {
		return nil, err
	}
	return &BlockCache{db: db, cache: c}, nil
}

// Get returns the cached view of hash if present, deserializing and
// inserting it into the cache on a miss. replayer is only consulted on a
// miss that requires replay (an unsealed ancestor chain).
func (bc *BlockCache) Get(hash common.Hash, replayer block.Replayer) (*block.CachedBlock, error) {
	if cb, ok := bc.cache.Get(hash); ok {
		return cb, nil
	}

	raw, ok, err := bc.db.GetBlockBytes(hash)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}

	b, err := block.Deserialize(bc.db, raw, replayer)
	if err != nil {
		return nil, err
	}
	cb, err := block.NewCachedBlock(b)
	if err != nil {
		return nil, err
	}
	bc.cache.Add(hash, cb)
	return cb, nil
}

// Insert seeds the cache with an already-sealed block, e.g. right after it
// was built or imported, so the next lookup avoids a re-deserialize.
func (bc *BlockCache) Insert(b *block.Block) error {
	cb, err := block.NewCachedBlock(b)
	if err != nil {
		return err
	}
	bc.cache.Add(cb.Hash(), cb)
	return nil
}

// Purge discards every cached entry. Used in tests and on manual reset.
func (bc *BlockCache) Purge() {
	bc.cache.Purge()
}
