// Package trie is a reference Merkle-Patricia-style authenticated
// byte-to-byte dictionary. It is the external collaborator the rest of the
// tree treats as a contract (get/update/delete/root_hash/reopen-at-root),
// not a consensus-grade trie implementation.
package trie

import (
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/ledgerforge/node/common"
)

// KVStore is the narrow byte-keyed dictionary a Trie persists its nodes
// into. store.DB satisfies this structurally.
type KVStore interface {
	Get(key []byte) ([]byte, bool, error)
	Put(key []byte, value []byte) error
	Delete(key []byte) error
	Has(key []byte) (bool, error)
}

// node is the on-disk (and in-memory) representation of a trie node. Only
// two shapes exist: a leaf carrying a remaining key suffix and a value, and
// a branch with 16 child slots plus an optional value for a key that ends
// exactly at the branch.
type node struct {
	Kind     uint8 // 0 = leaf, 1 = branch
	KeyPart  []byte
	Value    []byte
	Children [16]common.Hash
}

func (n *node) isEmptyBranch() bool {
	if n.Kind != 1 {
		return false
	}
	if len(n.Value) != 0 {
		return false
	}
	for _, c := range n.Children {
		if !c.IsZero() {
			return false
		}
	}
	return true
}

func encodeNode(n *node) ([]byte, error) {
	return rlp.EncodeToBytes(n)
}

func decodeNode(b []byte) (*node, error) {
	var n node
	if err := rlp.DecodeBytes(b, &n); err != nil {
		return nil, err
	}
	return &n, nil
}

// EmptyRoot is the root hash of a trie with no entries: the hash of the
// canonical encoding of an empty branch node. Every blank account's storage
// root and every fresh block's transaction-list root starts here.
var EmptyRoot = mustEmptyRoot()

func mustEmptyRoot() common.Hash {
	b, err := encodeNode(&node{Kind: 1})
	if err != nil {
		panic(err)
	}
	return common.Keccak256(b)
}

// Trie is an authenticated byte→byte dictionary rooted at a content hash.
// Every mutating call returns the new root; nothing is implicit.
type Trie struct {
	store KVStore
	root  common.Hash
}

// New opens a Trie at root against store. A root of EmptyRoot (or the zero
// Hash, treated the same) denotes a fresh, empty trie.
func New(store KVStore, root common.Hash) *Trie {
	if root.IsZero() {
		root = EmptyRoot
	}
	return &Trie{store: store, root: root}
}

// Root returns the current root hash.
func (t *Trie) Root() common.Hash { return t.root }

// Reopen returns a new handle on the same store at a different, previously
// computed root — the "reopen-at-root" contract operation.
func (t *Trie) Reopen(root common.Hash) *Trie { return New(t.store, root) }

func (t *Trie) loadNode(h common.Hash) (*node, error) {
	if h == EmptyRoot {
		return &node{Kind: 1}, nil
	}
	raw, ok, err := t.store.Get(nodeKey(h))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, newTrieError("trie: missing node " + h.Hex())
	}
	return decodeNode(raw)
}

func (t *Trie) storeNode(n *node) (common.Hash, error) {
	raw, err := encodeNode(n)
	if err != nil {
		return common.Hash{}, err
	}
	h := common.Keccak256(raw)
	if err := t.store.Put(nodeKey(h), raw); err != nil {
		return common.Hash{}, err
	}
	return h, nil
}

func nodeKey(h common.Hash) []byte {
	return append([]byte("trienode:"), h[:]...)
}

// Get returns the value stored at key, or ok=false if absent.
func (t *Trie) Get(key []byte) ([]byte, bool, error) {
	nibbles := toNibbles(key)
	return t.get(t.root, nibbles)
}

func (t *Trie) get(root common.Hash, nibbles []byte) ([]byte, bool, error) {
	n, err := t.loadNode(root)
	if err != nil {
		return nil, false, err
	}
	switch n.Kind {
	case 0: // leaf
		if nibbleEqual(n.KeyPart, nibbles) {
			return n.Value, true, nil
		}
		return nil, false, nil
	case 1: // branch
		if len(nibbles) == 0 {
			if len(n.Value) == 0 {
				return nil, false, nil
			}
			return n.Value, true, nil
		}
		child := n.Children[nibbles[0]]
		if child.IsZero() {
			return nil, false, nil
		}
		return t.get(child, nibbles[1:])
	default:
		return nil, false, newTrieError("trie: corrupt node kind")
	}
}

// Update sets key to value, returning the new root.
func (t *Trie) Update(key []byte, value []byte) (common.Hash, error) {
	if len(value) == 0 {
		return t.Delete(key)
	}
	nibbles := toNibbles(key)
	newRoot, err := t.insert(t.root, nibbles, value)
	if err != nil {
		return common.Hash{}, err
	}
	t.root = newRoot
	return newRoot, nil
}

func (t *Trie) insert(root common.Hash, nibbles []byte, value []byte) (common.Hash, error) {
	n, err := t.loadNode(root)
	if err != nil {
		return common.Hash{}, err
	}
	switch n.Kind {
	case 0:
		if len(n.KeyPart) == 0 && len(nibbles) == 0 {
			return t.storeNode(&node{Kind: 0, KeyPart: nil, Value: value})
		}
		if nibbleEqual(n.KeyPart, nibbles) {
			return t.storeNode(&node{Kind: 0, KeyPart: n.KeyPart, Value: value})
		}
		return t.splitLeafAndInsert(n, nibbles, value)
	case 1:
		if len(nibbles) == 0 {
			n.Value = value
			return t.storeNode(n)
		}
		idx := nibbles[0]
		childRoot := n.Children[idx]
		var newChild common.Hash
		if childRoot.IsZero() {
			newChild, err = t.storeNode(&node{Kind: 0, KeyPart: nibbles[1:], Value: value})
		} else {
			newChild, err = t.insert(childRoot, nibbles[1:], value)
		}
		if err != nil {
			return common.Hash{}, err
		}
		n.Children[idx] = newChild
		return t.storeNode(n)
	default:
		return common.Hash{}, newTrieError("trie: corrupt node kind")
	}
}

// splitLeafAndInsert replaces a leaf whose key diverges from nibbles with a
// branch carrying both the original leaf's remainder and the new value.
func (t *Trie) splitLeafAndInsert(leaf *node, nibbles []byte, value []byte) (common.Hash, error) {
	var branch node
	branch.Kind = 1

	if len(leaf.KeyPart) == 0 {
		branch.Value = leaf.Value
	} else {
		child, err := t.storeNode(&node{Kind: 0, KeyPart: leaf.KeyPart[1:], Value: leaf.Value})
		if err != nil {
			return common.Hash{}, err
		}
		branch.Children[leaf.KeyPart[0]] = child
	}

	root, err := t.storeNode(&branch)
	if err != nil {
		return common.Hash{}, err
	}
	return t.insert(root, nibbles, value)
}

// Delete removes key, returning the new root. Deleting an absent key is a
// no-op that returns the unchanged root.
func (t *Trie) Delete(key []byte) (common.Hash, error) {
	nibbles := toNibbles(key)
	newRoot, _, err := t.remove(t.root, nibbles)
	if err != nil {
		return common.Hash{}, err
	}
	t.root = newRoot
	return newRoot, nil
}

func (t *Trie) remove(root common.Hash, nibbles []byte) (common.Hash, bool, error) {
	n, err := t.loadNode(root)
	if err != nil {
		return common.Hash{}, false, err
	}
	switch n.Kind {
	case 0:
		if nibbleEqual(n.KeyPart, nibbles) {
			return EmptyRoot, true, nil
		}
		return root, false, nil
	case 1:
		if len(nibbles) == 0 {
			if len(n.Value) == 0 {
				return root, false, nil
			}
			n.Value = nil
			if n.isEmptyBranch() {
				return EmptyRoot, true, nil
			}
			newRoot, err := t.storeNode(n)
			return newRoot, true, err
		}
		idx := nibbles[0]
		child := n.Children[idx]
		if child.IsZero() {
			return root, false, nil
		}
		newChild, changed, err := t.remove(child, nibbles[1:])
		if err != nil {
			return common.Hash{}, false, err
		}
		if !changed {
			return root, false, nil
		}
		if newChild == EmptyRoot {
			n.Children[idx] = common.Hash{}
		} else {
			n.Children[idx] = newChild
		}
		if n.isEmptyBranch() {
			return EmptyRoot, true, nil
		}
		newRoot, err := t.storeNode(n)
		return newRoot, true, err
	default:
		return common.Hash{}, false, newTrieError("trie: corrupt node kind")
	}
}

// Enumerate walks every (key, value) pair reachable from the current root
// in nibble order, reassembling keys from the nibbles collected along the
// path.
func (t *Trie) Enumerate(fn func(key, value []byte) error) error {
	return t.walk(t.root, nil, fn)
}

func (t *Trie) walk(root common.Hash, prefix []byte, fn func(key, value []byte) error) error {
	n, err := t.loadNode(root)
	if err != nil {
		return err
	}
	switch n.Kind {
	case 0:
		full := append(append([]byte(nil), prefix...), n.KeyPart...)
		if len(full)%2 != 0 {
			return newTrieError("trie: odd nibble count at leaf")
		}
		return fn(fromNibbles(full), n.Value)
	case 1:
		if len(n.Value) != 0 {
			if len(prefix)%2 != 0 {
				return newTrieError("trie: odd nibble count at branch value")
			}
			if err := fn(fromNibbles(prefix), n.Value); err != nil {
				return err
			}
		}
		for i, child := range n.Children {
			if child.IsZero() {
				continue
			}
			if err := t.walk(child, append(append([]byte(nil), prefix...), byte(i)), fn); err != nil {
				return err
			}
		}
		return nil
	default:
		return newTrieError("trie: corrupt node kind")
	}
}

func toNibbles(key []byte) []byte {
	out := make([]byte, 0, len(key)*2)
	for _, b := range key {
		out = append(out, b>>4, b&0x0f)
	}
	return out
}

func fromNibbles(nibbles []byte) []byte {
	out := make([]byte, len(nibbles)/2)
	for i := 0; i < len(out); i++ {
		out[i] = nibbles[2*i]<<4 | nibbles[2*i+1]
	}
	return out
}

func nibbleEqual(a, b []byte) bool {
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

type trieError string

func newTrieError(s string) error { return trieError(s) }

func (e trieError) Error() string { return string(e) }
