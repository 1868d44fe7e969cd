package chain

import (
	"math/big"

	"github.com/ledgerforge/node/common"
)

// GenesisNonce is sha3(byte(42)), the fixed nonce every genesis header
// carries — genesis is exempt from the PoW check, so this value is a
// marker rather than a solved puzzle.
var GenesisNonce = func() []byte {
	h := common.Keccak256([]byte{0x2a})
	return h[:]
}()

// GenesisCoinbase is the fixed sentinel coinbase address genesis credits
// nothing to directly; preallocated balances are the only genesis credits.
var GenesisCoinbase = common.BytesToAddress([]byte("genesis-coinbase-addr"))

// GenesisAlloc is an address → balance preallocation map.
type GenesisAlloc map[common.Address]*big.Int

// DefaultGenesisAlloc is the developer-genesis preallocation: eight fixed
// addresses, each credited 2**200 wei, matching the original reference
// client's devnet bring-up convention.
func DefaultGenesisAlloc() GenesisAlloc {
	amount := new(big.Int).Lsh(big.NewInt(1), 200)
	alloc := make(GenesisAlloc, 8)
	for i := byte(0); i < 8; i++ {
		addr := common.BytesToAddress([]byte{'d', 'e', 'v', 'a', 'l', 'l', 'o', 'c', i})
		alloc[addr] = new(big.Int).Set(amount)
	}
	return alloc
}

// GenesisHeaderTemplate returns the fixed, non-state-dependent fields of
// the genesis header per §4.6: zero prevhash, the empty uncle and
// transaction-list roots, default difficulty and gas limit, block number
// zero, and the fixed genesis nonce. Callers fill in StateRoot once the
// preallocation has been committed to the state trie.
func GenesisHeaderTemplate() Header {
	h := DefaultHeader()
	h.Coinbase = GenesisCoinbase
	h.Nonce = append([]byte(nil), GenesisNonce...)
	return h
}
