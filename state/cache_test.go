package state

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ledgerforge/node/common"
	"github.com/ledgerforge/node/trie"
)

// memStore is a bare in-memory Store for exercising Cache without a real
// on-disk backend.
type memStore struct {
	kv   map[string][]byte
	code map[common.Hash][]byte
}

func newMemStore() *memStore {
	return &memStore{kv: make(map[string][]byte), code: make(map[common.Hash][]byte)}
}

func (s *memStore) Get(key []byte) ([]byte, bool, error) {
	v, ok := s.kv[string(key)]
	return v, ok, nil
}

func (s *memStore) Put(key []byte, value []byte) error {
	s.kv[string(key)] = append([]byte(nil), value...)
	return nil
}

func (s *memStore) Delete(key []byte) error {
	delete(s.kv, string(key))
	return nil
}

func (s *memStore) Has(key []byte) (bool, error) {
	_, ok := s.kv[string(key)]
	return ok, nil
}

func (s *memStore) GetCode(hash common.Hash) ([]byte, bool, error) {
	v, ok := s.code[hash]
	return v, ok, nil
}

func (s *memStore) PutCode(hash common.Hash, code []byte) error {
	s.code[hash] = append([]byte(nil), code...)
	return nil
}

func addr(s string) common.Address { return common.BytesToAddress([]byte(s)) }

func TestGetAccountOfUnknownAddressIsBlank(t *testing.T) {
	c := New(newMemStore(), trie.EmptyRoot)
	acct, err := c.GetAccount(addr("nobody"))
	require.NoError(t, err)
	require.True(t, acct.IsBlank())
}

func TestSetBalanceThenGetBalance(t *testing.T) {
	c := New(newMemStore(), trie.EmptyRoot)
	a := addr("alice")
	require.NoError(t, c.SetBalance(a, big.NewInt(100)))
	got, err := c.GetBalance(a)
	require.NoError(t, err)
	require.Zero(t, got.Cmp(big.NewInt(100)))
}

func TestDeltaBalanceRejectsOverdraft(t *testing.T) {
	c := New(newMemStore(), trie.EmptyRoot)
	a := addr("bob")
	require.NoError(t, c.SetBalance(a, big.NewInt(10)))
	ok, err := c.DeltaBalance(a, big.NewInt(-20))
	require.NoError(t, err)
	require.False(t, ok, "DeltaBalance must reject a delta that would drive balance negative")
	got, err := c.GetBalance(a)
	require.NoError(t, err)
	require.Zero(t, got.Cmp(big.NewInt(10)), "a rejected DeltaBalance must leave the balance untouched")
}

func TestDeltaBalanceApplies(t *testing.T) {
	c := New(newMemStore(), trie.EmptyRoot)
	a := addr("carol")
	require.NoError(t, c.SetBalance(a, big.NewInt(10)))
	ok, err := c.DeltaBalance(a, big.NewInt(5))
	require.NoError(t, err)
	require.True(t, ok)
	got, err := c.GetBalance(a)
	require.NoError(t, err)
	require.Zero(t, got.Cmp(big.NewInt(15)))
}

func TestSnapshotRevertRestoresBalance(t *testing.T) {
	c := New(newMemStore(), trie.EmptyRoot)
	a := addr("dave")
	require.NoError(t, c.SetBalance(a, big.NewInt(50)))
	snap := c.Snapshot()
	require.NoError(t, c.SetBalance(a, big.NewInt(999)))
	c.Revert(snap)

	got, err := c.GetBalance(a)
	require.NoError(t, err)
	require.Zero(t, got.Cmp(big.NewInt(50)))
}

func TestSnapshotRevertRestoresNonceAndCode(t *testing.T) {
	c := New(newMemStore(), trie.EmptyRoot)
	a := addr("erin")
	require.NoError(t, c.SetNonce(a, 1))
	require.NoError(t, c.SetCode(a, []byte("v1")))
	snap := c.Snapshot()
	require.NoError(t, c.SetNonce(a, 2))
	require.NoError(t, c.SetCode(a, []byte("v2")))
	c.Revert(snap)

	nonce, err := c.GetNonce(a)
	require.NoError(t, err)
	require.Equal(t, uint64(1), nonce)
	code, err := c.GetCode(a)
	require.NoError(t, err)
	require.Equal(t, "v1", string(code))
}

func TestCommitPersistsAcrossCacheInstances(t *testing.T) {
	store := newMemStore()
	c := New(store, trie.EmptyRoot)
	a := addr("frank")
	require.NoError(t, c.SetBalance(a, big.NewInt(42)))
	root, err := c.Commit()
	require.NoError(t, err)

	reopened := New(store, root)
	acct, err := reopened.GetAccount(a)
	require.NoError(t, err)
	require.Zero(t, acct.Balance.Cmp(big.NewInt(42)))
}

func TestCommitTwiceIsIdempotent(t *testing.T) {
	store := newMemStore()
	c := New(store, trie.EmptyRoot)
	a := addr("gina")
	require.NoError(t, c.SetBalance(a, big.NewInt(7)))
	root1, err := c.Commit()
	require.NoError(t, err)
	root2, err := c.Commit()
	require.NoError(t, err)
	require.Equal(t, root1, root2, "committing with no intervening writes must not change the root")
}

func TestStorageSetGetRoundTrip(t *testing.T) {
	c := New(newMemStore(), trie.EmptyRoot)
	a := addr("hank")
	idx := big.NewInt(3)
	val := big.NewInt(777)
	require.NoError(t, c.SetStorageData(a, idx, val))
	got, err := c.GetStorageData(a, idx)
	require.NoError(t, err)
	require.Zero(t, got.Cmp(val))
}

func TestStorageSurvivesCommit(t *testing.T) {
	store := newMemStore()
	c := New(store, trie.EmptyRoot)
	a := addr("iris")
	idx := big.NewInt(1)
	val := big.NewInt(55)
	require.NoError(t, c.SetStorageData(a, idx, val))
	root, err := c.Commit()
	require.NoError(t, err)
	reopened := New(store, root)
	got, err := reopened.GetStorageData(a, idx)
	require.NoError(t, err)
	require.Zero(t, got.Cmp(val))
}

func TestUnaffectedAccountSurvivesCommitOfAnother(t *testing.T) {
	store := newMemStore()
	c := New(store, trie.EmptyRoot)
	x := addr("x-account")
	require.NoError(t, c.SetBalance(x, big.NewInt(1)))
	root, err := c.Commit()
	require.NoError(t, err)

	c2 := New(store, root)
	y := addr("y-account")
	require.NoError(t, c2.SetBalance(y, big.NewInt(2)))
	root2, err := c2.Commit()
	require.NoError(t, err)

	c3 := New(store, root2)
	xAcct, err := c3.GetAccount(x)
	require.NoError(t, err)
	require.Zero(t, xAcct.Balance.Cmp(big.NewInt(1)))
}
