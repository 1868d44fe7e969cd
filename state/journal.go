package state

import (
	"math/big"

	"github.com/ledgerforge/node/common"
)

// cacheName identifies which typed cache a journal entry belongs to, so
// Revert knows which map to restore into.
type cacheName uint8

const (
	cacheBalance cacheName = iota
	cacheNonce
	cacheCode
	cacheStorage
	cacheDirty
)

// entry is one journal record: a single write to cache[key], carrying the
// previous value (hadPrev false meaning "was absent") so Revert can
// restore it.
//
// storageIdx is only meaningful when name == cacheStorage.
type entry struct {
	name        cacheName
	addr        common.Address
	storageIdx  *big.Int
	hadPrev     bool
	prevBig     *big.Int
	prevBytes   []byte
	prevDirty   bool
	newBig      *big.Int
	newBytes    []byte
}

// journal is the append-only log backing snapshot/revert. Entries are
// never removed except by Revert popping a suffix.
type journal struct {
	entries []entry
}

func (j *journal) size() int { return len(j.entries) }

func (j *journal) append(e entry) { j.entries = append(j.entries, e) }

// truncate drops every entry past n, replaying each popped entry's prev
// value back into the owning cache via undo.
func (j *journal) truncate(n int, undo func(entry)) {
	for i := len(j.entries) - 1; i >= n; i-- {
		undo(j.entries[i])
	}
	j.entries = j.entries[:n]
}
