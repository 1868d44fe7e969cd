package block

import (
	"math/big"
	"testing"

	"github.com/ledgerforge/node/chain"
	"github.com/ledgerforge/node/common"
)

// memBackend is a bare in-memory Backend for exercising block assembly
// without a real on-disk store.
type memBackend struct {
	kv         map[string][]byte
	code       map[common.Hash][]byte
	headers    map[common.Hash]chain.Header
	blockBytes map[common.Hash][]byte
	difficulty map[common.Hash]*big.Int
}

func newMemBackend() *memBackend {
	return &memBackend{
		kv:         make(map[string][]byte),
		code:       make(map[common.Hash][]byte),
		headers:    make(map[common.Hash]chain.Header),
		blockBytes: make(map[common.Hash][]byte),
		difficulty: make(map[common.Hash]*big.Int),
	}
}

func (s *memBackend) Get(key []byte) ([]byte, bool, error) {
	v, ok := s.kv[string(key)]
	return v, ok, nil
}

func (s *memBackend) Put(key []byte, value []byte) error {
	s.kv[string(key)] = append([]byte(nil), value...)
	return nil
}

func (s *memBackend) Delete(key []byte) error {
	delete(s.kv, string(key))
	return nil
}

func (s *memBackend) Has(key []byte) (bool, error) {
	_, ok := s.kv[string(key)]
	return ok, nil
}

func (s *memBackend) GetCode(hash common.Hash) ([]byte, bool, error) {
	v, ok := s.code[hash]
	return v, ok, nil
}

func (s *memBackend) PutCode(hash common.Hash, code []byte) error {
	s.code[hash] = append([]byte(nil), code...)
	return nil
}

func (s *memBackend) GetHeader(hash common.Hash) (chain.Header, bool, error) {
	h, ok := s.headers[hash]
	return h, ok, nil
}

func (s *memBackend) PutHeader(hash common.Hash, h chain.Header) error {
	s.headers[hash] = h
	return nil
}

func (s *memBackend) GetBlockBytes(hash common.Hash) ([]byte, bool, error) {
	v, ok := s.blockBytes[hash]
	return v, ok, nil
}

func (s *memBackend) PutBlockBytes(hash common.Hash, raw []byte) error {
	s.blockBytes[hash] = append([]byte(nil), raw...)
	return nil
}

func (s *memBackend) GetDifficulty(hash common.Hash) (*big.Int, bool, error) {
	v, ok := s.difficulty[hash]
	return v, ok, nil
}

func (s *memBackend) PutDifficulty(hash common.Hash, d *big.Int) error {
	s.difficulty[hash] = new(big.Int).Set(d)
	return nil
}

// zeroNonceReplayer credits the sender nothing and reports the
// transaction's byte length as cumulative gas; it exists only to exercise
// ApplyTransaction's plumbing.
type zeroNonceReplayer struct{}

func (zeroNonceReplayer) ApplyTransaction(b *Block, txBytes []byte) (*big.Int, error) {
	return big.NewInt(int64(len(txBytes))), nil
}

func testGenesis(t *testing.T) (*memBackend, *Block) {
	t.Helper()
	backend := newMemBackend()
	amount := big.NewInt(1_000_000)
	addr := common.BytesToAddress([]byte("genesis-holder"))
	genesis, err := BuildGenesis(backend, chain.GenesisAlloc{addr: amount})
	if err != nil {
		t.Fatal(err)
	}
	hash, err := genesis.Hash()
	if err != nil {
		t.Fatal(err)
	}
	if err := backend.PutHeader(hash, genesis.Header()); err != nil {
		t.Fatal(err)
	}
	raw, err := genesis.Serialize()
	if err != nil {
		t.Fatal(err)
	}
	if err := backend.PutBlockBytes(hash, raw); err != nil {
		t.Fatal(err)
	}
	return backend, genesis
}

func TestBuildGenesisIsSealed(t *testing.T) {
	_, genesis := testGenesis(t)
	if !genesis.Sealed() {
		t.Fatal("genesis must come out sealed")
	}
}

func TestBuildGenesisAllocVisibleInAccount(t *testing.T) {
	_, genesis := testGenesis(t)
	addr := common.BytesToAddress([]byte("genesis-holder"))
	bal, err := genesis.GetBalance(addr)
	if err != nil {
		t.Fatal(err)
	}
	if bal.Cmp(big.NewInt(1_000_000)) != 0 {
		t.Fatalf("genesis balance = %s, want 1000000", bal)
	}
}

func TestInitFromParentSetsExpectedFields(t *testing.T) {
	backend, genesis := testGenesis(t)
	coinbase := common.BytesToAddress([]byte("miner-1"))
	child, err := InitFromParent(backend, genesis, coinbase, nil, genesis.header.Timestamp+1, nil)
	if err != nil {
		t.Fatal(err)
	}
	if child.header.Number.Int64() != 1 {
		t.Fatalf("child number = %s, want 1", child.header.Number)
	}
	if child.header.Coinbase != coinbase {
		t.Fatal("child coinbase mismatch")
	}
	if child.Sealed() {
		t.Fatal("a freshly initialized block must not be sealed")
	}
}

func TestApplyBlockRewardIsIdempotent(t *testing.T) {
	backend, genesis := testGenesis(t)
	coinbase := common.BytesToAddress([]byte("miner-2"))
	child, err := InitFromParent(backend, genesis, coinbase, nil, genesis.header.Timestamp+1, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := child.ApplyBlockReward(); err != nil {
		t.Fatal(err)
	}
	bal1, err := child.GetBalance(coinbase)
	if err != nil {
		t.Fatal(err)
	}
	if err := child.ApplyBlockReward(); err != nil {
		t.Fatal(err)
	}
	bal2, err := child.GetBalance(coinbase)
	if err != nil {
		t.Fatal(err)
	}
	if bal1.Cmp(bal2) != 0 {
		t.Fatalf("calling ApplyBlockReward twice changed the balance: %s -> %s", bal1, bal2)
	}
	if bal1.Cmp(chain.BlockReward) != 0 {
		t.Fatalf("coinbase balance = %s, want BlockReward %s", bal1, chain.BlockReward)
	}
}

func TestFinalizeAppliesRewardWhenNotAlreadyApplied(t *testing.T) {
	backend, genesis := testGenesis(t)
	coinbase := common.BytesToAddress([]byte("miner-3"))
	child, err := InitFromParent(backend, genesis, coinbase, nil, genesis.header.Timestamp+1, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := child.Finalize(); err != nil {
		t.Fatal(err)
	}
	bal, err := child.GetBalance(coinbase)
	if err != nil {
		t.Fatal(err)
	}
	if bal.Cmp(chain.BlockReward) != 0 {
		t.Fatalf("coinbase balance after Finalize = %s, want BlockReward %s", bal, chain.BlockReward)
	}
}

func TestFinalizeSealsBlock(t *testing.T) {
	backend, genesis := testGenesis(t)
	coinbase := common.BytesToAddress([]byte("miner-4"))
	child, err := InitFromParent(backend, genesis, coinbase, nil, genesis.header.Timestamp+1, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := child.Finalize(); err != nil {
		t.Fatal(err)
	}
	if !child.Sealed() {
		t.Fatal("Finalize must seal the block")
	}
	if err := child.SetBalance(coinbase, big.NewInt(1)); err == nil {
		t.Fatal("a sealed block must refuse further mutation")
	}
}

func TestFinalizeTwiceIsNoop(t *testing.T) {
	backend, genesis := testGenesis(t)
	coinbase := common.BytesToAddress([]byte("miner-5"))
	child, err := InitFromParent(backend, genesis, coinbase, nil, genesis.header.Timestamp+1, nil)
	if err != nil {
		t.Fatal(err)
	}
	root1, err := child.Finalize()
	if err != nil {
		t.Fatal(err)
	}
	root2, err := child.Finalize()
	if err != nil {
		t.Fatal(err)
	}
	if root1 != root2 {
		t.Fatal("calling Finalize twice must return the same root")
	}
}

func TestHeaderStateRootStableAfterRewardBeforeSeal(t *testing.T) {
	backend, genesis := testGenesis(t)
	coinbase := common.BytesToAddress([]byte("miner-6"))
	child, err := InitFromParent(backend, genesis, coinbase, nil, genesis.header.Timestamp+1, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := child.ApplyBlockReward(); err != nil {
		t.Fatal(err)
	}
	headerBeforeSeal := child.Header()
	if _, err := child.Finalize(); err != nil {
		t.Fatal(err)
	}
	if headerBeforeSeal.StateRoot != child.Header().StateRoot {
		t.Fatal("state root must not change between ApplyBlockReward and Finalize, so a nonce search stays valid")
	}
}

func TestApplyTransactionAppendsToTxList(t *testing.T) {
	backend, genesis := testGenesis(t)
	coinbase := common.BytesToAddress([]byte("miner-7"))
	child, err := InitFromParent(backend, genesis, coinbase, nil, genesis.header.Timestamp+1, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := child.ApplyTransaction(zeroNonceReplayer{}, []byte("tx-one")); err != nil {
		t.Fatal(err)
	}
	if child.txList.Count() != 1 {
		t.Fatalf("tx count = %d, want 1", child.txList.Count())
	}
	entry, ok, err := child.txList.Get(0)
	if err != nil {
		t.Fatal(err)
	}
	if !ok || string(entry.TxBytes) != "tx-one" {
		t.Fatalf("tx list entry 0 = %+v, ok=%v", entry, ok)
	}
}

func TestSerializeDeserializeRoundTrip(t *testing.T) {
	backend, genesis := testGenesis(t)
	coinbase := common.BytesToAddress([]byte("miner-8"))
	child, err := InitFromParent(backend, genesis, coinbase, nil, genesis.header.Timestamp+1, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := child.ApplyTransaction(zeroNonceReplayer{}, []byte("payload")); err != nil {
		t.Fatal(err)
	}
	if err := child.ApplyBlockReward(); err != nil {
		t.Fatal(err)
	}
	header := child.Header()
	header.Difficulty = big.NewInt(1)
	header.Nonce = make([]byte, chain.NonceBytes)
	child.header.Difficulty = header.Difficulty
	child.header.Nonce = header.Nonce

	if _, err := child.Finalize(); err != nil {
		t.Fatal(err)
	}
	raw, err := child.Serialize()
	if err != nil {
		t.Fatal(err)
	}

	hash, err := child.Hash()
	if err != nil {
		t.Fatal(err)
	}
	if err := backend.PutHeader(hash, child.Header()); err != nil {
		t.Fatal(err)
	}

	got, err := Deserialize(backend, raw, zeroNonceReplayer{})
	if err != nil {
		t.Fatal(err)
	}
	gotHash, err := got.Hash()
	if err != nil {
		t.Fatal(err)
	}
	if gotHash != hash {
		t.Fatalf("deserialized hash = %s, want %s", gotHash.Hex(), hash.Hex())
	}
	if !got.Sealed() {
		t.Fatal("a deserialized block must come back sealed")
	}
}

func TestDeserializeUnknownParentFails(t *testing.T) {
	backend, genesis := testGenesis(t)
	coinbase := common.BytesToAddress([]byte("miner-9"))
	child, err := InitFromParent(backend, genesis, coinbase, nil, genesis.header.Timestamp+1, nil)
	if err != nil {
		t.Fatal(err)
	}
	child.header.Difficulty = big.NewInt(1)
	child.header.Nonce = make([]byte, chain.NonceBytes)
	if _, err := child.Finalize(); err != nil {
		t.Fatal(err)
	}
	raw, err := child.Serialize()
	if err != nil {
		t.Fatal(err)
	}

	orphanBackend := newMemBackend()
	if _, err := Deserialize(orphanBackend, raw, zeroNonceReplayer{}); err == nil {
		t.Fatal("expected an unknown-parent error against a backend with no recorded parent")
	} else if kind, ok := chain.KindOf(err); !ok || kind != chain.KindUnknownParent {
		t.Fatalf("error kind = %v, ok=%v, want KindUnknownParent", kind, ok)
	}
}

func TestDeltaBalanceOverdraftOnBlock(t *testing.T) {
	backend, genesis := testGenesis(t)
	coinbase := common.BytesToAddress([]byte("miner-10"))
	child, err := InitFromParent(backend, genesis, coinbase, nil, genesis.header.Timestamp+1, nil)
	if err != nil {
		t.Fatal(err)
	}
	ok, err := child.DeltaBalance(coinbase, big.NewInt(-1))
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("DeltaBalance on a zero-balance account must reject a negative delta")
	}
}

func TestSnapshotRevertOnBlock(t *testing.T) {
	backend, genesis := testGenesis(t)
	coinbase := common.BytesToAddress([]byte("miner-11"))
	child, err := InitFromParent(backend, genesis, coinbase, nil, genesis.header.Timestamp+1, nil)
	if err != nil {
		t.Fatal(err)
	}
	snap := child.Snapshot()
	if err := child.SetBalance(coinbase, big.NewInt(500)); err != nil {
		t.Fatal(err)
	}
	child.Revert(snap)
	bal, err := child.GetBalance(coinbase)
	if err != nil {
		t.Fatal(err)
	}
	if bal.Sign() != 0 {
		t.Fatalf("balance after revert = %s, want 0", bal)
	}
}
