package trie

import (
	"fmt"
	"testing"

	"github.com/ledgerforge/node/common"
)

// memKV is a bare in-memory KVStore for exercising Trie without a real
// on-disk backend.
type memKV struct {
	m map[string][]byte
}

func newMemKV() *memKV { return &memKV{m: make(map[string][]byte)} }

func (s *memKV) Get(key []byte) ([]byte, bool, error) {
	v, ok := s.m[string(key)]
	return v, ok, nil
}

func (s *memKV) Put(key []byte, value []byte) error {
	s.m[string(key)] = append([]byte(nil), value...)
	return nil
}

func (s *memKV) Delete(key []byte) error {
	delete(s.m, string(key))
	return nil
}

func (s *memKV) Has(key []byte) (bool, error) {
	_, ok := s.m[string(key)]
	return ok, nil
}

func TestEmptyTrieHasEmptyRoot(t *testing.T) {
	tr := New(newMemKV(), common.Hash{})
	if tr.Root() != EmptyRoot {
		t.Fatalf("fresh trie root = %s, want EmptyRoot %s", tr.Root().Hex(), EmptyRoot.Hex())
	}
}

func TestGetMissingKey(t *testing.T) {
	tr := New(newMemKV(), EmptyRoot)
	_, ok, err := tr.Get([]byte("nope"))
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("Get on an empty trie must report ok=false")
	}
}

func TestUpdateThenGet(t *testing.T) {
	tr := New(newMemKV(), EmptyRoot)
	if _, err := tr.Update([]byte("alpha"), []byte("one")); err != nil {
		t.Fatal(err)
	}
	if _, err := tr.Update([]byte("beta"), []byte("two")); err != nil {
		t.Fatal(err)
	}

	v, ok, err := tr.Get([]byte("alpha"))
	if err != nil || !ok || string(v) != "one" {
		t.Fatalf("Get(alpha) = %q, %v, %v", v, ok, err)
	}
	v, ok, err = tr.Get([]byte("beta"))
	if err != nil || !ok || string(v) != "two" {
		t.Fatalf("Get(beta) = %q, %v, %v", v, ok, err)
	}
}

func TestUpdateOverwritesValue(t *testing.T) {
	tr := New(newMemKV(), EmptyRoot)
	if _, err := tr.Update([]byte("key"), []byte("first")); err != nil {
		t.Fatal(err)
	}
	if _, err := tr.Update([]byte("key"), []byte("second")); err != nil {
		t.Fatal(err)
	}
	v, ok, err := tr.Get([]byte("key"))
	if err != nil || !ok || string(v) != "second" {
		t.Fatalf("Get(key) after overwrite = %q, %v, %v", v, ok, err)
	}
}

func TestDeleteRemovesKey(t *testing.T) {
	tr := New(newMemKV(), EmptyRoot)
	if _, err := tr.Update([]byte("gone"), []byte("soon")); err != nil {
		t.Fatal(err)
	}
	if _, err := tr.Delete([]byte("gone")); err != nil {
		t.Fatal(err)
	}
	_, ok, err := tr.Get([]byte("gone"))
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("key should be absent after Delete")
	}
}

func TestDeleteLastKeyRestoresEmptyRoot(t *testing.T) {
	tr := New(newMemKV(), EmptyRoot)
	if _, err := tr.Update([]byte("only"), []byte("value")); err != nil {
		t.Fatal(err)
	}
	root, err := tr.Delete([]byte("only"))
	if err != nil {
		t.Fatal(err)
	}
	if root != EmptyRoot {
		t.Fatalf("root after deleting the only key = %s, want EmptyRoot", root.Hex())
	}
}

func TestDeleteAbsentKeyIsNoop(t *testing.T) {
	tr := New(newMemKV(), EmptyRoot)
	if _, err := tr.Update([]byte("keep"), []byte("value")); err != nil {
		t.Fatal(err)
	}
	before := tr.Root()
	after, err := tr.Delete([]byte("absent"))
	if err != nil {
		t.Fatal(err)
	}
	if after != before {
		t.Fatal("deleting an absent key must leave the root unchanged")
	}
}

func TestReopenAtRootSeesSameData(t *testing.T) {
	store := newMemKV()
	tr := New(store, EmptyRoot)
	root, err := tr.Update([]byte("k"), []byte("v"))
	if err != nil {
		t.Fatal(err)
	}

	reopened := tr.Reopen(root)
	v, ok, err := reopened.Get([]byte("k"))
	if err != nil || !ok || string(v) != "v" {
		t.Fatalf("reopened trie Get(k) = %q, %v, %v", v, ok, err)
	}
}

func TestUpdateIsDeterministic(t *testing.T) {
	mk := func() common.Hash {
		tr := New(newMemKV(), EmptyRoot)
		for i := 0; i < 20; i++ {
			key := []byte(fmt.Sprintf("key-%02d", i))
			val := []byte(fmt.Sprintf("val-%02d", i))
			if _, err := tr.Update(key, val); err != nil {
				t.Fatal(err)
			}
		}
		return tr.Root()
	}
	a := mk()
	b := mk()
	if a != b {
		t.Fatal("identical insert sequences must produce identical roots")
	}
}

func TestEnumerateVisitsAllPairs(t *testing.T) {
	tr := New(newMemKV(), EmptyRoot)
	want := map[string]string{
		"alpha": "1",
		"beta":  "2",
		"gamma": "3",
	}
	for k, v := range want {
		if _, err := tr.Update([]byte(k), []byte(v)); err != nil {
			t.Fatal(err)
		}
	}
	got := map[string]string{}
	err := tr.Enumerate(func(key, value []byte) error {
		got[string(key)] = string(value)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != len(want) {
		t.Fatalf("Enumerate visited %d pairs, want %d", len(got), len(want))
	}
	for k, v := range want {
		if got[k] != v {
			t.Fatalf("Enumerate[%s] = %q, want %q", k, got[k], v)
		}
	}
}
