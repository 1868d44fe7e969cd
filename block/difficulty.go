package block

import (
	"math/big"

	"github.com/ledgerforge/node/chain"
	"github.com/ledgerforge/node/common"
)

// ChainDifficulty returns b's cumulative chain difficulty: its own
// difficulty plus its parent's cumulative difficulty plus the sum of its
// uncles' difficulties, memoized in the backend through
// PutDifficulty/GetDifficulty keyed by the block hash. Genesis returns its
// own difficulty.
func ChainDifficulty(backend Backend, b *Block) (*big.Int, error) {
	hash, err := b.Hash()
	if err != nil {
		return nil, err
	}
	return chainDifficultyFor(backend, hash, b.header, b.uncles)
}

// chainDifficultyForHash recurses by stored header alone, so intermediate
// ancestors never need a fully reconstructed Block (with its live account
// cache) just to contribute a difficulty figure.
func chainDifficultyForHash(backend Backend, hash common.Hash, h chain.Header) (*big.Int, error) {
	uncles := ancestorUncles(backend, h)
	return chainDifficultyFor(backend, hash, h, uncles)
}

func chainDifficultyFor(backend Backend, hash common.Hash, h chain.Header, uncles []chain.Header) (*big.Int, error) {
	if d, ok, err := backend.GetDifficulty(hash); err != nil {
		return nil, err
	} else if ok {
		return d, nil
	}

	if h.PrevHash == common.ZeroHash {
		d := new(big.Int).Set(h.Difficulty)
		if err := backend.PutDifficulty(hash, d); err != nil {
			return nil, err
		}
		return d, nil
	}

	parentHeader, ok, err := backend.GetHeader(h.PrevHash)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, newBlockErr(chain.KindUnknownParent, "difficulty: unknown parent")
	}
	parentDifficulty, err := chainDifficultyForHash(backend, h.PrevHash, parentHeader)
	if err != nil {
		return nil, err
	}

	total := new(big.Int).Add(h.Difficulty, parentDifficulty)
	for _, u := range uncles {
		total.Add(total, u.Difficulty)
	}
	if err := backend.PutDifficulty(hash, total); err != nil {
		return nil, err
	}
	return total, nil
}
