// Package state implements the write-through account cache and journal
// that sits between speculative block/transaction execution and the
// authenticated state trie: reads fall through to the trie, writes land in
// typed in-memory caches, and every write is journaled so a snapshot taken
// mid-execution can be reverted for free.
package state

import (
	"math/big"
	"sort"

	"github.com/ledgerforge/node/chain"
	"github.com/ledgerforge/node/common"
	"github.com/ledgerforge/node/trie"
)

// Store is everything the cache needs from the backing key/value store:
// trie node access (to read/write the state and storage tries) plus a
// code-blob table keyed by hash.
type Store interface {
	trie.KVStore
	GetCode(hash common.Hash) ([]byte, bool, error)
	PutCode(hash common.Hash, code []byte) error
}

// Snapshot is an opaque handle returned by Cache.Snapshot and consumed by
// Cache.Revert. Block-level callers embed it alongside their own gas/tx-list
// bookkeeping to form the full §4.3 snapshot.
type Snapshot struct {
	root       common.Hash
	journalLen int
}

// Cache is the per-block write-through cache over a state trie. It is not
// safe for concurrent use; each in-progress block owns exactly one.
type Cache struct {
	store Store
	tr    *trie.Trie

	balance map[common.Address]*big.Int
	nonce   map[common.Address]uint64
	code    map[common.Address][]byte
	dirty   map[common.Address]struct{}
	storage map[common.Address]map[string]*big.Int

	j journal
}

// New opens a Cache over the state trie rooted at root.
func New(store Store, root common.Hash) *Cache {
	return &Cache{
		store:   store,
		tr:      trie.New(store, root),
		balance: make(map[common.Address]*big.Int),
		nonce:   make(map[common.Address]uint64),
		code:    make(map[common.Address][]byte),
		dirty:   make(map[common.Address]struct{}),
		storage: make(map[common.Address]map[string]*big.Int),
	}
}

// Root returns the state trie's current root. Until Commit runs this never
// changes: every write lands in the cache, not the trie.
func (c *Cache) Root() common.Hash { return c.tr.Root() }

// Snapshot captures the cache's contribution to §4.3 snapshot/revert: the
// current trie root (a pure pointer capture, no trie work) and the
// journal's current length.
func (c *Cache) Snapshot() Snapshot {
	return Snapshot{root: c.tr.Root(), journalLen: c.j.size()}
}

// Revert pops every journal entry appended after s was taken, restoring
// each cache[key] to its pre-write value, and resets the trie root pointer.
func (c *Cache) Revert(s Snapshot) {
	c.j.truncate(s.journalLen, c.undo)
	c.tr = c.tr.Reopen(s.root)
}

func (c *Cache) undo(e entry) {
	switch e.name {
	case cacheBalance:
		if e.hadPrev {
			c.balance[e.addr] = e.prevBig
		} else {
			delete(c.balance, e.addr)
		}
	case cacheNonce:
		if e.hadPrev {
			c.nonce[e.addr] = e.prevBig.Uint64()
		} else {
			delete(c.nonce, e.addr)
		}
	case cacheCode:
		if e.hadPrev {
			c.code[e.addr] = e.prevBytes
		} else {
			delete(c.code, e.addr)
		}
	case cacheStorage:
		m := c.storage[e.addr]
		key := e.storageIdx.String()
		if e.hadPrev {
			m[key] = e.prevBig
		} else if m != nil {
			delete(m, key)
		}
	case cacheDirty:
		if !e.prevDirty {
			delete(c.dirty, e.addr)
		}
	}
}

func (c *Cache) markDirty(addr common.Address) {
	if _, ok := c.dirty[addr]; ok {
		return
	}
	c.j.append(entry{name: cacheDirty, addr: addr, hadPrev: true, prevDirty: false})
	c.dirty[addr] = struct{}{}
}

// loadAccount reads addr's account record, falling through to the trie and
// returning BlankAccount() when absent.
func (c *Cache) loadAccount(addr common.Address) (chain.Account, error) {
	raw, ok, err := c.tr.Get(addr.Bytes())
	if err != nil {
		return chain.Account{}, err
	}
	if !ok {
		return chain.BlankAccount(), nil
	}
	return chain.DecodeAccount(raw)
}

// GetAccount returns addr's account record with the cached nonce and
// balance overlaid on top of the trie-backed value. Cached code and storage
// writes are not reflected in CodeHash or StorageRoot until Commit.
func (c *Cache) GetAccount(addr common.Address) (chain.Account, error) {
	acct, err := c.loadAccount(addr)
	if err != nil {
		return chain.Account{}, err
	}
	if v, ok := c.nonce[addr]; ok {
		acct.Nonce = v
	}
	if v, ok := c.balance[addr]; ok {
		acct.Balance = new(big.Int).Set(v)
	}
	return acct, nil
}

// GetBalance returns addr's current balance.
func (c *Cache) GetBalance(addr common.Address) (*big.Int, error) {
	acct, err := c.GetAccount(addr)
	if err != nil {
		return nil, err
	}
	return acct.Balance, nil
}

// SetBalance journals and overwrites addr's cached balance.
func (c *Cache) SetBalance(addr common.Address, v *big.Int) error {
	cur, err := c.GetBalance(addr)
	if err != nil {
		return err
	}
	if cur.Cmp(v) == 0 {
		return nil
	}
	prev, hadPrev := c.balance[addr]
	c.j.append(entry{name: cacheBalance, addr: addr, hadPrev: hadPrev, prevBig: prev, newBig: v})
	c.balance[addr] = new(big.Int).Set(v)
	c.markDirty(addr)
	return nil
}

// DeltaBalance applies delta to addr's balance. A negative delta that would
// drive the balance below zero is the OverBalance case: it returns
// (false, nil) and leaves all state untouched, per §7/S3/S5.
func (c *Cache) DeltaBalance(addr common.Address, delta *big.Int) (bool, error) {
	cur, err := c.GetBalance(addr)
	if err != nil {
		return false, err
	}
	next := new(big.Int).Add(cur, delta)
	if next.Sign() < 0 {
		return false, nil
	}
	if err := c.SetBalance(addr, next); err != nil {
		return false, err
	}
	return true, nil
}

// GetNonce returns addr's current nonce.
func (c *Cache) GetNonce(addr common.Address) (uint64, error) {
	acct, err := c.GetAccount(addr)
	if err != nil {
		return 0, err
	}
	return acct.Nonce, nil
}

// SetNonce journals and overwrites addr's cached nonce.
func (c *Cache) SetNonce(addr common.Address, v uint64) error {
	cur, err := c.GetNonce(addr)
	if err != nil {
		return err
	}
	if cur == v {
		return nil
	}
	prev, hadPrev := c.nonce[addr]
	var prevBig *big.Int
	if hadPrev {
		prevBig = new(big.Int).SetUint64(prev)
	}
	c.j.append(entry{name: cacheNonce, addr: addr, hadPrev: hadPrev, prevBig: prevBig, newBig: new(big.Int).SetUint64(v)})
	c.nonce[addr] = v
	c.markDirty(addr)
	return nil
}

// GetCode returns addr's contract code, reading through to the code-blob
// table by the account's code hash when not cached.
func (c *Cache) GetCode(addr common.Address) ([]byte, error) {
	if v, ok := c.code[addr]; ok {
		return v, nil
	}
	acct, err := c.loadAccount(addr)
	if err != nil {
		return nil, err
	}
	if acct.CodeHash == chain.EmptyCodeHash {
		return nil, nil
	}
	code, ok, err := c.store.GetCode(acct.CodeHash)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return code, nil
}

// SetCode journals and overwrites addr's cached code, writing the new code
// blob into the backing store under its hash so Commit can reference it by
// code hash alone.
func (c *Cache) SetCode(addr common.Address, code []byte) error {
	cur, err := c.GetCode(addr)
	if err != nil {
		return err
	}
	if bytesEqual(cur, code) {
		return nil
	}
	hash := common.Keccak256(code)
	if err := c.store.PutCode(hash, code); err != nil {
		return err
	}
	prev, hadPrev := c.code[addr]
	c.j.append(entry{name: cacheCode, addr: addr, hadPrev: hadPrev, prevBytes: prev, newBytes: code})
	c.code[addr] = code
	c.markDirty(addr)
	return nil
}

// GetStorageData returns the integer stored at (addr, idx), or zero when
// absent, per §4.5.
func (c *Cache) GetStorageData(addr common.Address, idx *big.Int) (*big.Int, error) {
	if m, ok := c.storage[addr]; ok {
		if v, ok := m[idx.String()]; ok {
			return new(big.Int).Set(v), nil
		}
	}
	acct, err := c.loadAccount(addr)
	if err != nil {
		return nil, err
	}
	storageTrie := trie.New(c.store, acct.StorageRoot)
	raw, ok, err := storageTrie.Get(storageKey(idx))
	if err != nil {
		return nil, err
	}
	if !ok {
		return new(big.Int), nil
	}
	return new(big.Int).SetBytes(raw), nil
}

// SetStorageData journals and overwrites the value at (addr, idx) in the
// per-account storage sub-cache.
func (c *Cache) SetStorageData(addr common.Address, idx *big.Int, value *big.Int) error {
	cur, err := c.GetStorageData(addr, idx)
	if err != nil {
		return err
	}
	if cur.Cmp(value) == 0 {
		return nil
	}
	m, ok := c.storage[addr]
	if !ok {
		m = make(map[string]*big.Int)
		c.storage[addr] = m
	}
	key := idx.String()
	prev, hadPrev := m[key]
	c.j.append(entry{name: cacheStorage, addr: addr, storageIdx: new(big.Int).Set(idx), hadPrev: hadPrev, prevBig: prev, newBig: value})
	m[key] = new(big.Int).Set(value)
	c.markDirty(addr)
	return nil
}

// storageKey renders a storage index as the 32-byte big-endian-padded trie
// key §4.3 specifies.
func storageKey(idx *big.Int) []byte {
	b := idx.Bytes()
	out := make([]byte, common.HashLength)
	copy(out[common.HashLength-len(b):], b)
	return out
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Commit flushes every dirty address's cached fields into the state trie
// per §4.3's four-step procedure, then resets every cache and the journal.
// Calling Commit twice in a row with no intervening writes is idempotent:
// the second call touches no dirty addresses and leaves the root
// unchanged.
func (c *Cache) Commit() (common.Hash, error) {
	addrs := make([]common.Address, 0, len(c.dirty))
	for a := range c.dirty {
		addrs = append(addrs, a)
	}
	for _, addr := range addrs {
		if err := c.commitAddress(addr); err != nil {
			return common.Hash{}, err
		}
	}
	c.reset()
	return c.tr.Root(), nil
}

func (c *Cache) commitAddress(addr common.Address) error {
	acct, err := c.loadAccount(addr)
	if err != nil {
		return err
	}
	if v, ok := c.nonce[addr]; ok {
		acct.Nonce = v
	}
	if v, ok := c.balance[addr]; ok {
		acct.Balance = new(big.Int).Set(v)
	}
	if v, ok := c.code[addr]; ok {
		if len(v) == 0 {
			acct.CodeHash = chain.EmptyCodeHash
		} else {
			acct.CodeHash = common.Keccak256(v)
		}
	}
	if m, ok := c.storage[addr]; ok && len(m) > 0 {
		storageTrie := trie.New(c.store, acct.StorageRoot)
		keys := make([]string, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			v := m[k]
			idx, _ := new(big.Int).SetString(k, 10)
			key := storageKey(idx)
			if v.Sign() == 0 {
				if _, err := storageTrie.Delete(key); err != nil {
					return err
				}
				continue
			}
			enc, err := chain.EncodeInt(v)
			if err != nil {
				return err
			}
			if _, err := storageTrie.Update(key, enc); err != nil {
				return err
			}
		}
		acct.StorageRoot = storageTrie.Root()
	}

	encoded, err := chain.EncodeAccount(acct)
	if err != nil {
		return err
	}
	if _, err := c.tr.Update(addr.Bytes(), encoded); err != nil {
		return err
	}
	return nil
}

func (c *Cache) reset() {
	c.balance = make(map[common.Address]*big.Int)
	c.nonce = make(map[common.Address]uint64)
	c.code = make(map[common.Address][]byte)
	c.dirty = make(map[common.Address]struct{})
	c.storage = make(map[common.Address]map[string]*big.Int)
	c.j = journal{}
}
