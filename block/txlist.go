// Package block implements the block object (C5), genesis construction and
// the cached read-only block view (C6): everything that sits above the
// account cache and the trie, owning both for the lifetime of a single
// block's assembly or replay.
package block

import (
	"math/big"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/ledgerforge/node/chain"
	"github.com/ledgerforge/node/common"
	"github.com/ledgerforge/node/trie"
)

// TxListEntry is the triple recorded at each index of the transaction list
// trie: the raw transaction bytes, the state root immediately after it was
// applied, and the cumulative gas used through and including it.
type TxListEntry struct {
	TxBytes           []byte
	PostStateRoot      common.Hash
	CumulativeGasUsed *big.Int
}

type txListEntryRLP struct {
	TxBytes           []byte
	PostStateRoot     common.Hash
	CumulativeGasUsed *big.Int
}

// TxList is the indexed authenticated dictionary of executed transactions
// (C4): keyed by the canonical encoding of the 0-based index, valued by the
// triple above. There is no deletion; count is a plain counter.
type TxList struct {
	tr    *trie.Trie
	count uint64
}

// NewTxList opens an empty transaction list trie.
func NewTxList(store trie.KVStore) *TxList {
	return &TxList{tr: trie.New(store, trie.EmptyRoot)}
}

// ReopenTxList reopens a transaction list trie at a previously computed
// root with a known entry count (recovered from a deserialized block).
func ReopenTxList(store trie.KVStore, root common.Hash, count uint64) *TxList {
	return &TxList{tr: trie.New(store, root), count: count}
}

// Root returns tx_list_root, the trie's current root.
func (t *TxList) Root() common.Hash { return t.tr.Root() }

// Count returns the number of appended entries.
func (t *TxList) Count() uint64 { return t.count }

// Append writes the triple at the next index and increments the count.
func (t *TxList) Append(txBytes []byte, postStateRoot common.Hash, cumulativeGasUsed *big.Int) error {
	key := chain.EncodeUint64(t.count)
	val, err := encodeTxListEntry(TxListEntry{TxBytes: txBytes, PostStateRoot: postStateRoot, CumulativeGasUsed: cumulativeGasUsed})
	if err != nil {
		return err
	}
	if _, err := t.tr.Update(key, val); err != nil {
		return err
	}
	t.count++
	return nil
}

// Get returns the decoded triple recorded at index i.
func (t *TxList) Get(i uint64) (TxListEntry, bool, error) {
	key := chain.EncodeUint64(i)
	raw, ok, err := t.tr.Get(key)
	if err != nil || !ok {
		return TxListEntry{}, ok, err
	}
	e, err := decodeTxListEntry(raw)
	return e, true, err
}

func encodeTxListEntry(e TxListEntry) ([]byte, error) {
	gas := e.CumulativeGasUsed
	if gas == nil {
		gas = new(big.Int)
	}
	return rlp.EncodeToBytes(&txListEntryRLP{TxBytes: e.TxBytes, PostStateRoot: e.PostStateRoot, CumulativeGasUsed: gas})
}

func decodeTxListEntry(b []byte) (TxListEntry, error) {
	var r txListEntryRLP
	if err := rlp.DecodeBytes(b, &r); err != nil {
		return TxListEntry{}, err
	}
	return TxListEntry{TxBytes: r.TxBytes, PostStateRoot: r.PostStateRoot, CumulativeGasUsed: r.CumulativeGasUsed}, nil
}
