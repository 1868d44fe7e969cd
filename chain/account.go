package chain

import (
	"math/big"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/ledgerforge/node/common"
	"github.com/ledgerforge/node/trie"
)

// EmptyCodeHash is the hash of the empty byte string: the code hash every
// externally-owned (codeless) account carries.
var EmptyCodeHash = common.Keccak256(nil)

// Account is the ordered 4-tuple stored at an account key: nonce, balance,
// storage trie root, code hash. Field order is consensus-critical because
// it is what Encode/Decode serialize.
type Account struct {
	Nonce       uint64
	Balance     *big.Int
	StorageRoot common.Hash
	CodeHash    common.Hash
}

// accountRLP mirrors Account with the fixed-width fields RLP needs in order
// to round-trip big.Int and [32]byte cleanly.
type accountRLP struct {
	Nonce       uint64
	Balance     *big.Int
	StorageRoot common.Hash
	CodeHash    common.Hash
}

// BlankAccount returns the zero-value account: zero nonce and balance, the
// empty trie as storage root, and the empty string's hash as code hash.
func BlankAccount() Account {
	return Account{
		Nonce:       0,
		Balance:     new(big.Int),
		StorageRoot: trie.EmptyRoot,
		CodeHash:    EmptyCodeHash,
	}
}

// EncodeAccount renders an Account as its canonical RLP encoding.
func EncodeAccount(a Account) ([]byte, error) {
	bal := a.Balance
	if bal == nil {
		bal = new(big.Int)
	}
	if bal.Sign() < 0 {
		return nil, newErr(KindFatal, "account: negative balance has no canonical encoding")
	}
	return rlp.EncodeToBytes(&accountRLP{
		Nonce:       a.Nonce,
		Balance:     bal,
		StorageRoot: a.StorageRoot,
		CodeHash:    a.CodeHash,
	})
}

// DecodeAccount is the inverse of EncodeAccount.
func DecodeAccount(b []byte) (Account, error) {
	var r accountRLP
	if err := rlp.DecodeBytes(b, &r); err != nil {
		return Account{}, wrapErr(KindFatal, "account: decode", err)
	}
	bal := r.Balance
	if bal == nil {
		bal = new(big.Int)
	}
	return Account{
		Nonce:       r.Nonce,
		Balance:     bal,
		StorageRoot: r.StorageRoot,
		CodeHash:    r.CodeHash,
	}, nil
}

// IsBlank reports whether a is indistinguishable from BlankAccount().
func (a Account) IsBlank() bool {
	return a.Nonce == 0 &&
		(a.Balance == nil || a.Balance.Sign() == 0) &&
		a.StorageRoot == trie.EmptyRoot &&
		a.CodeHash == EmptyCodeHash
}
